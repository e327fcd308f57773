package actions

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"parkrep/core/internal/park"
	"parkrep/core/internal/stream"
)

// Type is the stable numeric tag written into replay files for each action kind.
type Type uint32

// Flags modify how an action is executed.
type Flags uint32

const (
	// FlagGhost marks a preview action that must not be recorded.
	FlagGhost Flags = 1 << 3
	// FlagReplay marks an action re-issued from a replay.
	FlagReplay Flags = 1 << 30
)

// ErrUnknownAction reports a type tag with no registered factory.
var ErrUnknownAction = errors.New("actions: unknown action type")

// Status classifies the outcome of executing an action.
type Status int

const (
	StatusOk Status = iota
	StatusInvalidParameters
	StatusDisallowed
	StatusGamePaused
	StatusNoFreeElements
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusInvalidParameters:
		return "invalid_parameters"
	case StatusDisallowed:
		return "disallowed"
	case StatusGamePaused:
		return "game_paused"
	case StatusNoFreeElements:
		return "no_free_elements"
	default:
		return "unknown"
	}
}

// Result reports what an executed action did.
type Result struct {
	Status   Status
	Message  string
	Position park.Coords
}

// OK reports whether the action succeeded.
func (r Result) OK() bool { return r.Status == StatusOk }

// Action is a player intent that can be serialised, replayed and applied to a park.
type Action interface {
	Type() Type
	Flags() Flags
	SetFlags(Flags)
	Player() int32
	SetPlayer(int32)
	// AllowedWhilePaused reports whether the action may run on a paused park.
	AllowedWhilePaused() bool
	// Serialise writes the action payload, excluding the type tag.
	Serialise(w *stream.Writer)
	// Deserialise reads a payload written by Serialise.
	Deserialise(r *stream.Reader) error
	// Execute applies the action to the park.
	Execute(p *park.Park) Result
}

// Base carries the fields every action shares. Embed it in concrete actions.
type Base struct {
	flags  Flags
	player int32
}

// Flags returns the execution flags.
func (b *Base) Flags() Flags { return b.flags }

// SetFlags replaces the execution flags.
func (b *Base) SetFlags(f Flags) { b.flags = f }

// Player returns the issuing player id.
func (b *Base) Player() int32 { return b.player }

// SetPlayer sets the issuing player id.
func (b *Base) SetPlayer(id int32) { b.player = id }

// AllowedWhilePaused defaults to false.
func (b *Base) AllowedWhilePaused() bool { return false }

func (b *Base) serialiseBase(w *stream.Writer) {
	//1.- The replay flag belongs to the session replaying the action, not to the payload.
	w.U32(uint32(b.flags &^ FlagReplay))
	w.I32(b.player)
}

func (b *Base) deserialiseBase(r *stream.Reader) {
	b.flags = Flags(r.U32())
	b.player = r.I32()
}

// Factory creates a zero-valued action of one type.
type Factory func() Action

var (
	registryMu sync.RWMutex
	registry   = map[Type]Factory{}
)

// Register binds a type tag to a factory. Registering the same tag twice panics.
func Register(tag Type, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[tag]; exists {
		panic(fmt.Sprintf("actions: type %d registered twice", tag))
	}
	registry[tag] = factory
}

// New instantiates the action registered for tag.
func New(tag Type) (Action, error) {
	registryMu.RLock()
	factory, ok := registry[tag]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("type %d: %w", tag, ErrUnknownAction)
	}
	return factory(), nil
}

// Registered lists the known type tags in ascending order.
func Registered() []Type {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Type, 0, len(registry))
	for tag := range registry {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Encode serialises an action payload.
func Encode(a Action) ([]byte, error) {
	w := stream.NewWriter()
	a.Serialise(w)
	if err := w.Err(); err != nil {
		return nil, fmt.Errorf("encode action %d: %w", a.Type(), err)
	}
	return w.Bytes(), nil
}

// Decode rebuilds an action from its type tag and payload.
func Decode(tag Type, payload []byte) (Action, error) {
	a, err := New(tag)
	if err != nil {
		return nil, err
	}
	r := stream.NewReader(payload)
	if err := a.Deserialise(r); err != nil {
		return nil, fmt.Errorf("decode action %d: %w", tag, err)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode action %d: %w", tag, err)
	}
	return a, nil
}

// Clone deep copies an action through its serialised form, keeping its flags.
func Clone(a Action) (Action, error) {
	payload, err := Encode(a)
	if err != nil {
		return nil, err
	}
	clone, err := Decode(a.Type(), payload)
	if err != nil {
		return nil, err
	}
	clone.SetFlags(a.Flags())
	return clone, nil
}
