package replay

import (
	"fmt"
	"time"

	"parkrep/core/internal/checksum"
	"parkrep/core/internal/stream"
)

const (
	// Magic identifies replay files and payloads ("ORCR" little-endian).
	Magic uint32 = 0x5243524F
	// Version is the format version written by this build.
	Version uint16 = 11
	// MinCompatibleVersion is the oldest format version this build reads.
	MinCompatibleVersion uint16 = 1

	firstCompressedVersion uint16 = 2

	// FileExtension is appended to replay names without an extension.
	FileExtension = ".parkrep"

	// MaxReplayTicks is the recording length used when no limit is wanted.
	MaxReplayTicks uint32 = 0xFFFFFFFF
)

// ChecksumEntry pairs a tick with the entity digest sampled on it.
type ChecksumEntry struct {
	Tick   uint32
	Digest checksum.Digest
}

// RecordData is everything a replay file holds. TickEnd is never before TickStart and
// checksum ticks are strictly increasing.
type RecordData struct {
	Magic          uint32
	Version        uint16
	NetworkVersion string
	Name           string
	FilePath       string
	TimeRecorded   uint64
	TickStart      uint32
	TickEnd        uint32
	Commands       *CommandLog
	Checksums      []ChecksumEntry
	ParkData       []byte
	ParkParams     []byte
	CheatData      []byte
	Snapshots      [][]byte
}

// AddChecksum appends a digest. Ticks at or before the last entry are ignored.
func (r *RecordData) AddChecksum(tick uint32, digest checksum.Digest) bool {
	if n := len(r.Checksums); n > 0 && r.Checksums[n-1].Tick >= tick {
		return false
	}
	r.Checksums = append(r.Checksums, ChecksumEntry{Tick: tick, Digest: digest})
	return true
}

// Info summarises a replay for listings and inspection.
type Info struct {
	Name           string    `json:"name"`
	FilePath       string    `json:"file_path"`
	Version        uint16    `json:"version"`
	NetworkVersion string    `json:"network_version"`
	TimeRecorded   time.Time `json:"time_recorded"`
	TickStart      uint32    `json:"tick_start"`
	TickEnd        uint32    `json:"tick_end"`
	Ticks          uint32    `json:"ticks"`
	Commands       int       `json:"commands"`
	Checksums      int       `json:"checksums"`
	Snapshots      int       `json:"snapshots"`
}

// Validate ensures the info describes a usable replay.
func (i Info) Validate() error {
	if i.Version < MinCompatibleVersion {
		return fmt.Errorf("version %d below minimum %d: %w", i.Version, MinCompatibleVersion, ErrVersionMismatch)
	}
	if i.TickEnd < i.TickStart {
		return fmt.Errorf("tick end %d before tick start %d: %w", i.TickEnd, i.TickStart, ErrCorrupt)
	}
	return nil
}

// Info derives the summary of the record.
func (r *RecordData) Info() Info {
	if r == nil {
		return Info{}
	}
	return Info{
		Name:           r.Name,
		FilePath:       r.FilePath,
		Version:        r.Version,
		NetworkVersion: r.NetworkVersion,
		TimeRecorded:   time.Unix(int64(r.TimeRecorded), 0).UTC(),
		TickStart:      r.TickStart,
		TickEnd:        r.TickEnd,
		Ticks:          r.TickEnd - r.TickStart,
		Commands:       r.Commands.Len(),
		Checksums:      len(r.Checksums),
		Snapshots:      len(r.Snapshots),
	}
}

// EncodePayload serialises the record body that sits inside the container.
func EncodePayload(r *RecordData) ([]byte, error) {
	if r.TickEnd < r.TickStart {
		return nil, fmt.Errorf("tick end %d before tick start %d: %w", r.TickEnd, r.TickStart, ErrCorrupt)
	}
	w := stream.NewWriter()
	w.U32(r.Magic)
	w.U16(r.Version)
	w.String(r.NetworkVersion)
	w.String(r.Name)
	w.U64(r.TimeRecorded)
	w.Blob(r.ParkData)
	w.Blob(r.ParkParams)
	w.Blob(r.CheatData)
	w.U32(r.TickStart)
	w.U32(r.TickEnd)
	commands := r.Commands
	if commands == nil {
		commands = NewCommandLog()
	}
	if err := commands.Serialise(w); err != nil {
		return nil, fmt.Errorf("encode commands: %w", err)
	}
	w.U32(uint32(len(r.Checksums)))
	for _, entry := range r.Checksums {
		w.U32(entry.Tick)
		w.Raw(entry.Digest[:])
	}
	w.Blob(encodeSnapshots(r.Snapshots))
	if err := w.Err(); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return w.Bytes(), nil
}

// DecodePayload parses a record body. Any failure aborts the whole read.
func DecodePayload(data []byte) (*RecordData, error) {
	r := stream.NewReader(data)
	rec := &RecordData{}
	rec.Magic = r.U32()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if rec.Magic != Magic {
		return nil, fmt.Errorf("payload magic %#x: %w", rec.Magic, ErrBadMagic)
	}
	rec.Version = r.U16()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if rec.Version < MinCompatibleVersion {
		return nil, fmt.Errorf("payload version %d: %w", rec.Version, ErrVersionMismatch)
	}
	if rec.Version > Version {
		return nil, fmt.Errorf("payload version %d: %w", rec.Version, ErrVersionUnsupported)
	}
	rec.NetworkVersion = r.String()
	rec.Name = r.String()
	rec.TimeRecorded = r.U64()
	rec.ParkData = r.Blob()
	rec.ParkParams = r.Blob()
	rec.CheatData = r.Blob()
	rec.TickStart = r.U32()
	rec.TickEnd = r.U32()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read header fields: %w", err)
	}
	if rec.TickEnd < rec.TickStart {
		return nil, fmt.Errorf("tick end %d before tick start %d: %w", rec.TickEnd, rec.TickStart, ErrCorrupt)
	}
	commands, err := DeserialiseCommands(r)
	if err != nil {
		return nil, fmt.Errorf("read commands: %w", err)
	}
	rec.Commands = commands

	count := r.U32()
	if r.Err() == nil && uint64(count)*(4+checksum.Size) > uint64(r.Remaining()) {
		return nil, fmt.Errorf("checksum count %d exceeds payload: %w", count, ErrCorrupt)
	}
	for i := uint32(0); i < count && r.Err() == nil; i++ {
		tick := r.U32()
		digest := checksum.FromBytes(r.Raw(checksum.Size))
		if r.Err() == nil && !rec.AddChecksum(tick, digest) {
			return nil, fmt.Errorf("checksum tick %d out of order: %w", tick, ErrCorrupt)
		}
	}
	snapshots := r.Blob()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read checksums: %w", err)
	}
	rec.Snapshots, err = decodeSnapshots(snapshots)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func encodeSnapshots(blobs [][]byte) []byte {
	w := stream.NewWriter()
	w.U32(uint32(len(blobs)))
	for _, blob := range blobs {
		w.Blob(blob)
	}
	return w.Bytes()
}

func decodeSnapshots(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	r := stream.NewReader(data)
	count := r.U32()
	var blobs [][]byte
	for i := uint32(0); i < count && r.Err() == nil; i++ {
		blobs = append(blobs, r.Blob())
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read snapshots: %w", err)
	}
	return blobs, nil
}
