package networking

import "sync/atomic"

// ProtocolVersion identifies the notification envelope format. Replays record it as
// their network version so playback can tell whether checksums are comparable.
const ProtocolVersion = "parkrep-ws/1"

// Status tracks whether a network session is live. While one is, checksums exchanged
// with peers are real and recordings keep them.
type Status struct {
	live atomic.Bool
}

// SetLive marks the network session as connected or not.
func (s *Status) SetLive(live bool) { s.live.Store(live) }

// ChecksumsAvailable reports whether the network layer is producing checksums.
func (s *Status) ChecksumsAvailable() bool {
	if s == nil {
		return false
	}
	return s.live.Load()
}
