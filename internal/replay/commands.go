package replay

import (
	"fmt"
	"sort"

	"parkrep/core/internal/actions"
	"parkrep/core/internal/stream"
)

// Command is one recorded action scheduled for a tick.
type Command struct {
	Tick   uint32
	Index  uint32
	Action actions.Action
}

func (c Command) less(other Command) bool {
	if c.Tick != other.Tick {
		return c.Tick < other.Tick
	}
	return c.Index < other.Index
}

// DueMode selects how PopDue decides whether the earliest command is due.
type DueMode int

const (
	// DueStrict pops only a command whose tick equals the live tick.
	DueStrict DueMode = iota
	// DueCursor pops the earliest command whenever the live tick has reached the
	// normalisation cursor, whatever tick the command was recorded on. Callers move the
	// cursor past the live tick after each pop so at most one command runs per tick.
	DueCursor
)

// CommandLog keeps commands ordered by (tick, index). Indices are unique and monotonic,
// so two commands on one tick keep their submission order.
type CommandLog struct {
	cmds      []Command
	nextIndex uint32
}

// NewCommandLog returns an empty log.
func NewCommandLog() *CommandLog { return &CommandLog{} }

// Len reports how many commands remain.
func (l *CommandLog) Len() int {
	if l == nil {
		return 0
	}
	return len(l.cmds)
}

// Append schedules an action at tick and returns its command index.
func (l *CommandLog) Append(tick uint32, action actions.Action) uint32 {
	cmd := Command{Tick: tick, Index: l.nextIndex, Action: action}
	l.nextIndex++
	l.insert(cmd)
	return cmd.Index
}

func (l *CommandLog) insert(cmd Command) {
	//1.- Binary search for the first command ordered after cmd and splice it in there.
	pos := sort.Search(len(l.cmds), func(i int) bool { return cmd.less(l.cmds[i]) })
	l.cmds = append(l.cmds, Command{})
	copy(l.cmds[pos+1:], l.cmds[pos:])
	l.cmds[pos] = cmd
	if cmd.Index >= l.nextIndex {
		l.nextIndex = cmd.Index + 1
	}
}

// Peek returns the earliest command without removing it.
func (l *CommandLog) Peek() (Command, bool) {
	if l.Len() == 0 {
		return Command{}, false
	}
	return l.cmds[0], true
}

// PopDue removes and returns the earliest command if it is due. Only one command is
// returned per call; callers loop until it reports false.
func (l *CommandLog) PopDue(currentTick, cursor uint32, mode DueMode) (Command, bool) {
	head, ok := l.Peek()
	if !ok {
		return Command{}, false
	}
	due := head.Tick == currentTick
	if mode == DueCursor {
		due = currentTick >= cursor
	}
	if !due {
		return Command{}, false
	}
	l.cmds[0] = Command{}
	l.cmds = l.cmds[1:]
	return head, true
}

// popStale removes the earliest command when it is scheduled before tick.
func (l *CommandLog) popStale(tick uint32) (Command, bool) {
	head, ok := l.Peek()
	if !ok || head.Tick >= tick {
		return Command{}, false
	}
	l.cmds[0] = Command{}
	l.cmds = l.cmds[1:]
	return head, true
}

// Commands returns a copy of the ordered commands.
func (l *CommandLog) Commands() []Command {
	if l == nil {
		return nil
	}
	return append([]Command(nil), l.cmds...)
}

// Serialise writes the command count followed by every command in order.
func (l *CommandLog) Serialise(w *stream.Writer) error {
	w.U32(uint32(l.Len()))
	for _, cmd := range l.cmds {
		payload, err := actions.Encode(cmd.Action)
		if err != nil {
			return fmt.Errorf("command %d at tick %d: %w", cmd.Index, cmd.Tick, err)
		}
		w.U32(cmd.Tick)
		w.U32(cmd.Index)
		w.U32(uint32(cmd.Action.Type()))
		w.Blob(payload)
	}
	return w.Err()
}

// DeserialiseCommands reads a log written by Serialise. Unknown action tags fail the read.
func DeserialiseCommands(r *stream.Reader) (*CommandLog, error) {
	count := r.U32()
	if err := r.Err(); err != nil {
		return nil, err
	}
	//1.- Each command needs at least 16 bytes so a huge count cannot force a huge allocation.
	if uint64(count)*16 > uint64(r.Remaining()) {
		return nil, fmt.Errorf("command count %d exceeds payload: %w", count, ErrCorrupt)
	}
	log := &CommandLog{cmds: make([]Command, 0, count)}
	for i := uint32(0); i < count; i++ {
		tick := r.U32()
		index := r.U32()
		tag := actions.Type(r.U32())
		payload := r.Blob()
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		action, err := actions.Decode(tag, payload)
		if err != nil {
			return nil, fmt.Errorf("command %d at tick %d: %w", index, tick, err)
		}
		log.insert(Command{Tick: tick, Index: index, Action: action})
	}
	return log, nil
}
