package codec

import (
	"bytes"
	"errors"
	"testing"
)

func TestCompressorsRestorePayload(t *testing.T) {
	payload := bytes.Repeat([]byte("guest-walks-to-ride;"), 200)
	for _, c := range []Compressor{NewZstd(0), NewZstd(19), NewZlib(0), NewSnappy()} {
		//1.- Compress then decompress with each codec and compare bytes.
		packed, err := c.Compress(payload)
		if err != nil {
			t.Fatalf("%s compress: %v", c.Name(), err)
		}
		if len(packed) >= len(payload) {
			t.Fatalf("%s did not shrink a repetitive payload (%d >= %d)", c.Name(), len(packed), len(payload))
		}
		restored, err := c.Decompress(packed)
		if err != nil {
			t.Fatalf("%s decompress: %v", c.Name(), err)
		}
		if !bytes.Equal(restored, payload) {
			t.Fatalf("%s produced a different payload", c.Name())
		}
	}
}

func TestZstdRejectsCorruptedChecksum(t *testing.T) {
	c := NewZstd(0)
	packed, err := c.Compress(bytes.Repeat([]byte{1, 2, 3, 4}, 64))
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	//1.- The trailing four bytes hold the content checksum; flipping one must fail decode.
	packed[len(packed)-1] ^= 0xFF
	if _, err := c.Decompress(packed); err == nil {
		t.Fatalf("expected checksum failure")
	}
}

func TestZlibRejectsEmptyPayload(t *testing.T) {
	if _, err := NewZlib(0).Decompress(nil); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

func TestByNameResolvesAdvertisedCodecs(t *testing.T) {
	for _, name := range []string{"zstd", "zlib", "snappy"} {
		c, ok := ByName(name)
		if !ok || c.Name() != name {
			t.Fatalf("ByName(%q) = %v, %v", name, c, ok)
		}
	}
	if _, ok := ByName("gzip"); ok {
		t.Fatal("expected unknown codec to be rejected")
	}
}

func TestDecompressLimitStopsAtBound(t *testing.T) {
	payload := make([]byte, 4<<20)
	for _, c := range []Compressor{NewZstd(0), NewZlib(0), NewSnappy()} {
		packed, err := c.Compress(payload)
		if err != nil {
			t.Fatalf("%s compress: %v", c.Name(), err)
		}
		//1.- The exact size is accepted and anything smaller is refused.
		restored, err := DecompressLimit(c, packed, uint64(len(payload)))
		if err != nil || len(restored) != len(payload) {
			t.Fatalf("%s at exact limit: %d bytes, %v", c.Name(), len(restored), err)
		}
		if _, err := DecompressLimit(c, packed, 16); !errors.Is(err, ErrLimitExceeded) {
			t.Fatalf("%s: expected ErrLimitExceeded, got %v", c.Name(), err)
		}
		if _, err := DecompressLimit(c, packed, uint64(len(payload)-1)); !errors.Is(err, ErrLimitExceeded) {
			t.Fatalf("%s one byte short: expected ErrLimitExceeded, got %v", c.Name(), err)
		}
	}
}

func TestDecompressLimitAcceptsEmptyZstdFrame(t *testing.T) {
	c := NewZstd(0)
	packed, err := c.Compress(nil)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	restored, err := DecompressLimit(c, packed, 0)
	if err != nil || len(restored) != 0 {
		t.Fatalf("empty frame: %d bytes, %v", len(restored), err)
	}
}
