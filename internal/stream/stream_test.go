package stream

import (
	"errors"
	"strings"
	"testing"
)

func TestWriterReaderMixedValues(t *testing.T) {
	w := NewWriter()
	w.U8(7)
	w.U16(0xBEEF)
	w.I16(-12)
	w.U32(0xDEADBEEF)
	w.I32(-400)
	w.U64(1 << 40)
	w.Bool(true)
	w.String("parkrep")
	w.Blob([]byte{1, 2, 3})
	if err := w.Err(); err != nil {
		t.Fatalf("unexpected writer error: %v", err)
	}

	r := NewReader(w.Bytes())
	if got := r.U8(); got != 7 {
		t.Fatalf("u8 = %d", got)
	}
	if got := r.U16(); got != 0xBEEF {
		t.Fatalf("u16 = %#x", got)
	}
	if got := r.I16(); got != -12 {
		t.Fatalf("i16 = %d", got)
	}
	if got := r.U32(); got != 0xDEADBEEF {
		t.Fatalf("u32 = %#x", got)
	}
	if got := r.I32(); got != -400 {
		t.Fatalf("i32 = %d", got)
	}
	if got := r.U64(); got != 1<<40 {
		t.Fatalf("u64 = %d", got)
	}
	if !r.Bool() {
		t.Fatalf("expected bool true")
	}
	if got := r.String(); got != "parkrep" {
		t.Fatalf("string = %q", got)
	}
	if got := r.Blob(); len(got) != 3 || got[2] != 3 {
		t.Fatalf("blob = %v", got)
	}
	if r.Err() != nil || r.Remaining() != 0 {
		t.Fatalf("expected clean exhaustion, err=%v remaining=%d", r.Err(), r.Remaining())
	}
}

func TestWriterLittleEndianLayout(t *testing.T) {
	w := NewWriter()
	w.U32(0x5243524F)
	got := string(w.Bytes())
	if got != "ORCR" {
		t.Fatalf("expected little-endian bytes ORCR, got %q", got)
	}
}

func TestReaderTruncationSticks(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	_ = r.U32()
	if !errors.Is(r.Err(), ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", r.Err())
	}
	//1.- Later reads keep returning zero values without clearing the first error.
	if got := r.U8(); got != 0 {
		t.Fatalf("expected zero after failure, got %d", got)
	}
	if !errors.Is(r.Err(), ErrTruncated) {
		t.Fatalf("error should persist, got %v", r.Err())
	}
}

func TestReaderBlobLengthBeyondInput(t *testing.T) {
	w := NewWriter()
	w.U32(1000)
	w.Raw([]byte{1, 2})
	r := NewReader(w.Bytes())
	if got := r.Blob(); got != nil {
		t.Fatalf("expected nil blob, got %v", got)
	}
	if !errors.Is(r.Err(), ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", r.Err())
	}
}

func TestWriterRejectsOversizedString(t *testing.T) {
	w := NewWriter()
	w.String(strings.Repeat("x", 70000))
	if !errors.Is(w.Err(), ErrTooLong) {
		t.Fatalf("expected ErrTooLong, got %v", w.Err())
	}
	if w.Len() != 0 {
		t.Fatalf("expected nothing written, got %d bytes", w.Len())
	}
}
