package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Compressor applies symmetric compression to payload byte slices.
type Compressor interface {
	// Name returns the codec identifier used in logs and reports.
	Name() string
	// Compress encodes the provided payload into a compressed representation.
	Compress(data []byte) ([]byte, error)
	// Decompress restores the original payload from its compressed form.
	Decompress(data []byte) ([]byte, error)
}

// ErrLimitExceeded reports a payload that inflates past the size the caller allows.
var ErrLimitExceeded = errors.New("codec: decompressed size exceeds limit")

// LimitedDecompressor is implemented by codecs that stop inflating once the output
// would exceed limit bytes.
type LimitedDecompressor interface {
	DecompressLimit(data []byte, limit uint64) ([]byte, error)
}

// DecompressLimit restores data through c without producing more than limit bytes.
// Codecs that cannot bound their output are decompressed fully and checked afterwards.
func DecompressLimit(c Compressor, data []byte, limit uint64) ([]byte, error) {
	if limited, ok := c.(LimitedDecompressor); ok {
		return limited.DecompressLimit(data, limit)
	}
	out, err := c.Decompress(data)
	if err != nil {
		return nil, err
	}
	if uint64(len(out)) > limit {
		return nil, fmt.Errorf("%s: %d bytes: %w", c.Name(), len(out), ErrLimitExceeded)
	}
	return out, nil
}

// minDecoderMemory keeps small limits from rejecting frames that declare a window
// larger than their content.
const minDecoderMemory = 1 << 20

func clampLimit(limit uint64) uint64 {
	return min(limit, math.MaxInt64-1)
}

// zstdCompressor frames payloads with zstd, embedding content size and a content checksum.
type zstdCompressor struct {
	level zstd.EncoderLevel

	once    sync.Once
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	initErr error
}

// NewZstd constructs a zstd compressor. Level follows the zstd numeric scale; zero picks the default.
func NewZstd(level int) Compressor {
	encLevel := zstd.SpeedDefault
	if level > 0 {
		encLevel = zstd.EncoderLevelFromZstd(level)
	}
	return &zstdCompressor{level: encLevel}
}

func (z *zstdCompressor) init() error {
	z.once.Do(func() {
		//1.- Encoders are safe for concurrent EncodeAll so one instance serves all callers.
		z.enc, z.initErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(z.level), zstd.WithEncoderCRC(true))
		if z.initErr != nil {
			return
		}
		z.dec, z.initErr = zstd.NewReader(nil)
	})
	return z.initErr
}

// Name reports the identifier used for zstd encoded payloads.
func (*zstdCompressor) Name() string { return "zstd" }

// Compress encodes data as a single zstd frame.
func (z *zstdCompressor) Compress(data []byte) ([]byte, error) {
	if err := z.init(); err != nil {
		return nil, fmt.Errorf("zstd init: %w", err)
	}
	return z.enc.EncodeAll(data, make([]byte, 0, len(data)/2+64)), nil
}

// Decompress decodes a zstd frame, verifying the content checksum when present.
func (z *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	if err := z.init(); err != nil {
		return nil, fmt.Errorf("zstd init: %w", err)
	}
	out, err := z.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}

// DecompressLimit decodes a zstd frame with a decoder whose output and window are
// capped, so oversized frames fail before their content is materialised.
func (z *zstdCompressor) DecompressLimit(data []byte, limit uint64) ([]byte, error) {
	limit = clampLimit(limit)
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(max(limit, minDecoderMemory)),
	)
	if err != nil {
		return nil, fmt.Errorf("zstd init: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	switch {
	case errors.Is(err, zstd.ErrDecoderSizeExceeded), errors.Is(err, zstd.ErrWindowSizeExceeded):
		return nil, fmt.Errorf("zstd decode: %w", ErrLimitExceeded)
	case err != nil:
		return nil, fmt.Errorf("zstd decode: %w", err)
	case uint64(len(out)) > limit:
		return nil, fmt.Errorf("zstd decode: %d bytes: %w", len(out), ErrLimitExceeded)
	}
	return out, nil
}

// zlibCompressor wraps the klauspost zlib implementation.
type zlibCompressor struct {
	level int
}

// NewZlib constructs a zlib compressor. Level zero picks the default compression.
func NewZlib(level int) Compressor {
	if level == 0 {
		level = zlib.DefaultCompression
	}
	if level > zlib.BestCompression {
		level = zlib.BestCompression
	}
	return zlibCompressor{level: level}
}

// Name reports the identifier used for zlib encoded payloads.
func (zlibCompressor) Name() string { return "zlib" }

// Compress encodes data using the zlib format.
func (c zlibCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := zlib.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("zlib writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("zlib write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("zlib close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress decodes zlib data and returns the raw payload.
func (zlibCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("zlib decompress: empty payload")
	}
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib reader: %w", err)
	}
	defer reader.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, fmt.Errorf("zlib copy: %w", err)
	}
	return buf.Bytes(), nil
}

// DecompressLimit decodes zlib data, stopping one byte past limit.
func (zlibCompressor) DecompressLimit(data []byte, limit uint64) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("zlib decompress: empty payload")
	}
	limit = clampLimit(limit)
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib reader: %w", err)
	}
	defer reader.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(reader, int64(limit)+1)); err != nil {
		return nil, fmt.Errorf("zlib copy: %w", err)
	}
	if uint64(buf.Len()) > limit {
		return nil, fmt.Errorf("zlib decompress: %w", ErrLimitExceeded)
	}
	return buf.Bytes(), nil
}

// snappyCompressor uses the snappy block format for small, hot payloads such as snapshots.
type snappyCompressor struct{}

// NewSnappy constructs a Compressor backed by snappy blocks.
func NewSnappy() Compressor { return snappyCompressor{} }

// Name reports the identifier used for snappy encoded payloads.
func (snappyCompressor) Name() string { return "snappy" }

// Compress encodes data as one snappy block.
func (snappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

// Decompress decodes one snappy block.
func (snappyCompressor) Decompress(data []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy decode: %w", err)
	}
	return out, nil
}

// DecompressLimit checks the block's declared length before decoding it.
func (c snappyCompressor) DecompressLimit(data []byte, limit uint64) ([]byte, error) {
	n, err := snappy.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("snappy decode: %w", err)
	}
	if uint64(n) > limit {
		return nil, fmt.Errorf("snappy decode: %d bytes: %w", n, ErrLimitExceeded)
	}
	return c.Decompress(data)
}

// LegacyZlibVersion is the last replay container version whose payload is zlib wrapped.
const LegacyZlibVersion = 10

// ForReplayVersion returns the payload codec implied by a replay container version.
func ForReplayVersion(version uint16, level int) Compressor {
	if version <= LegacyZlibVersion {
		return NewZlib(level)
	}
	return NewZstd(level)
}

// ByName returns the compressor advertised under name, using default levels.
func ByName(name string) (Compressor, bool) {
	switch name {
	case "zstd":
		return NewZstd(0), true
	case "zlib":
		return NewZlib(0), true
	case "snappy":
		return NewSnappy(), true
	default:
		return nil, false
	}
}
