package replay

import (
	"io"

	"parkrep/core/internal/actions"
	"parkrep/core/internal/checksum"
	"parkrep/core/internal/park"
	"parkrep/core/internal/snapshots"
)

// World exposes the simulation clock and pause control.
type World interface {
	CurrentTick() uint32
	SetCurrentTick(tick uint32)
	RandomSeed() uint32
	SetPaused(paused bool)
}

// ParkIO exports and imports the persistent park state embedded in replays. LoadPark
// stages a park and reports the objects it needs; ImportLoaded applies it.
type ParkIO interface {
	ExportPark(w io.Writer, compressionLevel int) error
	LoadPark(r io.Reader) ([]string, error)
	ImportLoaded() error
	ExportParameters() ([]byte, error)
	ImportParameters(data []byte) error
	ExportCheats() ([]byte, error)
	ImportCheats(data []byte) error
}

// Executor applies game actions to the live world.
type Executor interface {
	Execute(action actions.Action) actions.Result
}

// ChecksumProvider digests every live entity.
type ChecksumProvider interface {
	EntitiesChecksum() checksum.Digest
}

// SnapshotStore captures and compares whole entity snapshots.
type SnapshotStore interface {
	CreateSnapshot() *snapshots.Snapshot
	Capture(snap *snapshots.Snapshot)
	Link(snap *snapshots.Snapshot, tick, seed uint32)
	Serialise(snap *snapshots.Snapshot) ([]byte, error)
	Deserialise(data []byte) (*snapshots.Snapshot, error)
	Compare(left, right *snapshots.Snapshot) snapshots.CompareData
	LogCompareDataToFile(path string, cmp snapshots.CompareData) error
}

// NetworkStatus reports whether network checksums carry real values.
type NetworkStatus interface {
	ChecksumsAvailable() bool
}

// NotificationKind classifies user facing replay messages.
type NotificationKind string

const (
	NotifyRecordingStarted  NotificationKind = "recording_started"
	NotifyRecordingSaved    NotificationKind = "recording_saved"
	NotifyRecordingFailed   NotificationKind = "recording_failed"
	NotifyPlaybackStarted   NotificationKind = "playback_started"
	NotifyPlaybackFinished  NotificationKind = "playback_finished"
	NotifyPlaybackDesync    NotificationKind = "playback_desync"
	NotifyNormaliseFinished NotificationKind = "normalise_finished"
)

// Notification is raised for events a user should see.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
	File    string           `json:"file,omitempty"`
	Tick    uint32           `json:"tick"`
}

// Notifier delivers notifications to whatever surface is attached.
type Notifier interface {
	Notify(n Notification)
}

// Viewport focuses the view on a world position.
type Viewport interface {
	ScrollTo(pos park.Coords)
}

// ObjectLoader makes sure the objects a replayed park needs are available.
type ObjectLoader interface {
	EnsureLoaded(ids []string) error
}

type alwaysOnline struct{}

func (alwaysOnline) ChecksumsAvailable() bool { return true }

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}

// Notifiers fans a notification out to several notifiers in order.
type Notifiers []Notifier

// Notify forwards n to every non-nil notifier.
func (ns Notifiers) Notify(n Notification) {
	for _, notifier := range ns {
		if notifier != nil {
			notifier.Notify(n)
		}
	}
}
