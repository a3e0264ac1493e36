package binary

import (
	"errors"
	"io"
	"testing"
)

func TestLEB128RoundTrip(t *testing.T) {
	u32s := []uint32{0, 1, 127, 128, 624485, 1<<32 - 1}
	for _, v := range u32s {
		w := NewWriter()
		w.WriteU32(v)
		got, err := NewReader(w.Bytes(), 0).ReadU32()
		if err != nil {
			t.Fatalf("ReadU32(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("ReadU32 = %d, want %d", got, v)
		}
	}

	s64s := []int64{0, -1, 63, -64, 64, -65, -123456, 1 << 40, -(1 << 62)}
	for _, v := range s64s {
		w := NewWriter()
		w.WriteS64(v)
		got, err := NewReader(w.Bytes(), 0).ReadS64()
		if err != nil {
			t.Fatalf("ReadS64(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("ReadS64 = %d, want %d", got, v)
		}
	}
}

func TestReadS32KnownEncodings(t *testing.T) {
	tests := []struct {
		in   []byte
		want int32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, -1},
		{[]byte{0x3f}, 63},
		{[]byte{0x40}, -64},
		{[]byte{0xc0, 0xbb, 0x78}, -123456},
	}
	for _, tt := range tests {
		got, err := NewReader(tt.in, 0).ReadS32()
		if err != nil {
			t.Fatalf("ReadS32(%x): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ReadS32(%x) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestReaderErrors(t *testing.T) {
	r := NewReader([]byte{0x80, 0x80}, 0)
	if _, err := r.ReadU32(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("truncated LEB err = %v, want ErrUnexpectedEOF", err)
	}

	r = NewReader([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x01}, 0)
	if _, err := r.ReadU32(); !errors.Is(err, ErrOverflow) {
		t.Errorf("long LEB err = %v, want ErrOverflow", err)
	}

	r = NewReader([]byte{0x02, 0xff, 0xfe}, 10)
	if _, err := r.ReadName(); err == nil {
		t.Error("invalid UTF-8 name should fail")
	}

	wrapped := r.WrapError("import", io.EOF)
	var pe *ParseError
	if !errors.As(wrapped, &pe) {
		t.Fatalf("WrapError returned %T", wrapped)
	}
	if pe.Position != 13 || pe.Section != "import" {
		t.Errorf("ParseError = %+v", pe)
	}
}

func TestWriteName(t *testing.T) {
	w := NewWriter()
	w.WriteName("env")
	w.WriteSection(1, []byte{0xaa})
	want := []byte{0x03, 'e', 'n', 'v', 0x01, 0x01, 0xaa}
	if string(w.Bytes()) != string(want) {
		t.Errorf("bytes = %x, want %x", w.Bytes(), want)
	}
}
