// Package grpc exposes the replay library over gRPC: header inspection, index
// listing, raw file transfer and a live feed of replay notifications.
package grpc

import (
	"encoding/json"
	"io"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"parkrep/core/internal/replay"
	"parkrep/core/internal/storage"
)

// Library is the replay collection the service reads from.
type Library interface {
	Info(name string) (replay.Info, error)
	Entries(limit int) ([]storage.Entry, error)
	Open(name string) (io.ReadCloser, error)
}

// Feed fans replay notifications out to Watch subscribers. It implements
// replay.Notifier.
type Feed struct {
	mu     sync.Mutex
	subs   map[chan replay.Notification]struct{}
	buffer int
}

// NewFeed creates a feed whose subscribers buffer up to buffer notifications.
func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = 64
	}
	return &Feed{subs: make(map[chan replay.Notification]struct{}), buffer: buffer}
}

// Notify delivers n to every subscriber. Subscribers with a full buffer miss it.
func (f *Feed) Notify(n replay.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// Subscribe registers a subscriber. The returned cancel func closes the channel.
func (f *Feed) Subscribe() (<-chan replay.Notification, func()) {
	ch := make(chan replay.Notification, f.buffer)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers reports how many Watch streams are attached.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// ToStruct converts a JSON tagged value into a protobuf Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return structpb.NewStruct(fields)
}

// FromStruct decodes a protobuf Struct into a JSON tagged value.
func FromStruct(s *structpb.Struct, v any) error {
	raw, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
