package replay

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"parkrep/core/internal/codec"
	"parkrep/core/internal/stream"
)

// WriteContainer frames payload with the outer header for version. Versions below 2
// store the payload raw; later versions compress it.
func WriteContainer(w io.Writer, payload []byte, version uint16, level int) error {
	header := stream.NewWriter()
	header.U32(Magic)
	header.U16(version)
	body := payload
	if version >= firstCompressedVersion {
		packed, err := codec.ForReplayVersion(version, level).Compress(payload)
		if err != nil {
			return fmt.Errorf("compress payload: %w", err)
		}
		header.U64(uint64(len(payload)))
		body = packed
	}
	if _, err := w.Write(header.Bytes()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// ReadContainer validates the outer header and returns the decompressed payload.
func ReadContainer(r io.Reader) ([]byte, uint16, error) {
	var magic [4]byte
	//1.- Check the magic before touching anything else in the stream.
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, 0, fmt.Errorf("read magic: %w", truncated(err))
	}
	if got := binary.LittleEndian.Uint32(magic[:]); got != Magic {
		return nil, 0, fmt.Errorf("container magic %#x: %w", got, ErrBadMagic)
	}
	var raw [2]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return nil, 0, fmt.Errorf("read version: %w", truncated(err))
	}
	version := binary.LittleEndian.Uint16(raw[:])
	if version < MinCompatibleVersion {
		return nil, version, fmt.Errorf("container version %d: %w", version, ErrVersionMismatch)
	}
	if version > Version {
		return nil, version, fmt.Errorf("container version %d: %w", version, ErrVersionUnsupported)
	}
	if version < firstCompressedVersion {
		payload, err := io.ReadAll(r)
		if err != nil {
			return nil, version, fmt.Errorf("read payload: %w", err)
		}
		return payload, version, nil
	}

	//2.- Compressed containers declare the uncompressed size so truncation is detectable.
	var size [8]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return nil, version, fmt.Errorf("read payload size: %w", truncated(err))
	}
	expected := binary.LittleEndian.Uint64(size[:])
	packed, err := io.ReadAll(r)
	if err != nil {
		return nil, version, fmt.Errorf("read payload: %w", err)
	}
	//3.- The declared size bounds decompression so a small file cannot inflate without limit.
	payload, err := codec.DecompressLimit(codec.ForReplayVersion(version, 0), packed, expected)
	if err != nil {
		return nil, version, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if uint64(len(payload)) != expected {
		return nil, version, fmt.Errorf("payload is %d bytes, header declares %d: %w", len(payload), expected, ErrCorrupt)
	}
	return payload, version, nil
}

func truncated(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return stream.ErrTruncated
	}
	return err
}

// Encode writes rec as a current-version container.
func Encode(w io.Writer, rec *RecordData, level int) error {
	payload, err := EncodePayload(rec)
	if err != nil {
		return err
	}
	return WriteContainer(w, payload, rec.Version, level)
}

// Decode reads a container and its record.
func Decode(r io.Reader) (*RecordData, error) {
	payload, _, err := ReadContainer(r)
	if err != nil {
		return nil, err
	}
	return DecodePayload(payload)
}

// WriteFile persists rec atomically: the container is written to a temporary file in
// the target directory and renamed into place.
func WriteFile(path string, rec *RecordData, level int) error {
	var buf bytes.Buffer
	if err := Encode(&buf, rec, level); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create replay dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".parkrep-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write replay: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close replay: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename replay: %w", err)
	}
	return nil
}

// ReadFile loads and decodes a replay file.
func ReadFile(path string) (*RecordData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	rec, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rec.FilePath = path
	return rec, nil
}

// ReadInfo loads only what is needed to summarise a replay file.
func ReadInfo(path string) (Info, error) {
	rec, err := ReadFile(path)
	if err != nil {
		return Info{}, err
	}
	info := rec.Info()
	return info, info.Validate()
}
