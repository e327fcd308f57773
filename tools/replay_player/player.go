package replayplayer

import (
	"fmt"

	"parkrep/core/internal/actions"
	"parkrep/core/internal/replay"
	"parkrep/core/internal/snapshots"
)

// Command describes one recorded game action.
type Command struct {
	Tick         uint32 `json:"tick"`
	Index        uint32 `json:"index"`
	Type         uint32 `json:"type"`
	Player       int32  `json:"player"`
	Flags        uint32 `json:"flags"`
	PayloadBytes int    `json:"payload_bytes"`
}

// Checksum pairs a sampled tick with its hex encoded digest.
type Checksum struct {
	Tick   uint32 `json:"tick"`
	Digest string `json:"digest"`
}

// Snapshot summarises one embedded park snapshot. Blobs that fail to decode keep
// their size and carry the error.
type Snapshot struct {
	Tick     uint32 `json:"tick"`
	Seed     uint32 `json:"seed"`
	Entities int    `json:"entities"`
	Bytes    int    `json:"bytes"`
	Error    string `json:"error,omitempty"`
}

// Report is the decoded content of a replay file.
type Report struct {
	Info      replay.Info `json:"info"`
	ParkBytes int         `json:"park_bytes"`
	Commands  []Command   `json:"commands"`
	Checksums []Checksum  `json:"checksums"`
	Snapshots []Snapshot  `json:"snapshots"`
}

// Dump decodes the replay at path into a report.
func Dump(path string) (Report, error) {
	rec, err := replay.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("dump %s: %w", path, err)
	}
	report := Report{
		Info:      rec.Info(),
		ParkBytes: len(rec.ParkData),
		Commands:  []Command{},
		Checksums: make([]Checksum, 0, len(rec.Checksums)),
		Snapshots: make([]Snapshot, 0, len(rec.Snapshots)),
	}

	//1.- Commands keep the log order so ties on a tick read back by insertion index.
	if rec.Commands != nil {
		for _, cmd := range rec.Commands.Commands() {
			payload, err := actions.Encode(cmd.Action)
			if err != nil {
				return Report{}, fmt.Errorf("dump %s: command %d: %w", path, cmd.Index, err)
			}
			report.Commands = append(report.Commands, Command{
				Tick:         cmd.Tick,
				Index:        cmd.Index,
				Type:         uint32(cmd.Action.Type()),
				Player:       cmd.Action.Player(),
				Flags:        uint32(cmd.Action.Flags()),
				PayloadBytes: len(payload),
			})
		}
	}

	//2.- Checksums are rendered as hex so the report is diffable across runs.
	for _, entry := range rec.Checksums {
		report.Checksums = append(report.Checksums, Checksum{Tick: entry.Tick, Digest: entry.Digest.String()})
	}

	//3.- Snapshot blobs decode without a live park; a bad blob does not fail the dump.
	store := snapshots.NewStore(nil)
	for _, blob := range rec.Snapshots {
		summary := Snapshot{Bytes: len(blob)}
		snap, err := store.Deserialise(blob)
		if err != nil {
			summary.Error = err.Error()
		} else {
			summary.Tick, summary.Seed, summary.Entities = snap.Tick, snap.Seed, len(snap.Entities())
		}
		report.Snapshots = append(report.Snapshots, summary)
	}
	return report, nil
}
