package types

import "testing"

func TestCursorUint32RoundTrip(t *testing.T) {
	buf := []byte{0x00, 0x00, 0x01, 0x02, 0xff, 0xff, 0xff, 0xff}
	c := NewCursor(buf)
	v, err := c.Uint32()
	if err != nil {
		t.Fatalf("Uint32() error = %v", err)
	}
	if v != 0x0102 {
		t.Fatalf("Uint32() = %#x, want 0x102", v)
	}
	if c.Pos() != 4 {
		t.Fatalf("Pos() = %d, want 4", c.Pos())
	}
	v2, err := c.Uint32()
	if err != nil {
		t.Fatalf("Uint32() error = %v", err)
	}
	if v2 != 0xffffffff {
		t.Fatalf("Uint32() = %#x, want 0xffffffff", v2)
	}
}

func TestCursorUint64BigEndian(t *testing.T) {
	buf := []byte{0, 0, 0, 0, 0, 0, 0, 7}
	c := NewCursor(buf)
	v, err := c.Uint64()
	if err != nil {
		t.Fatalf("Uint64() error = %v", err)
	}
	if v != 7 {
		t.Fatalf("Uint64() = %d, want 7", v)
	}
}

func TestCursorTruncated(t *testing.T) {
	c := NewCursor([]byte{0x01, 0x02})
	if _, err := c.Uint32(); err == nil {
		t.Fatal("Uint32() on short buffer: want error, got nil")
	} else if cdErr, ok := err.(*Error); !ok || cdErr.Kind != ErrTruncated {
		t.Fatalf("Uint32() error = %v, want ErrTruncated", err)
	}
}

func TestCursorSeekAbsBounds(t *testing.T) {
	c := NewCursor(make([]byte, 4))
	if err := c.SeekAbs(4); err != nil {
		t.Fatalf("SeekAbs(4) on a 4-byte buffer should be valid (one past end): %v", err)
	}
	if err := c.SeekAbs(5); err == nil {
		t.Fatal("SeekAbs(5) on a 4-byte buffer: want error, got nil")
	}
	if err := c.SeekAbs(-1); err == nil {
		t.Fatal("SeekAbs(-1): want error, got nil")
	}
}

func TestCursorCString(t *testing.T) {
	c := NewCursor([]byte("hello\x00world"))
	s, err := c.CString()
	if err != nil {
		t.Fatalf("CString() error = %v", err)
	}
	if s != "hello" {
		t.Fatalf("CString() = %q, want %q", s, "hello")
	}
	if c.Pos() != 6 {
		t.Fatalf("Pos() after CString() = %d, want 6", c.Pos())
	}
}

func TestCursorCStringNoTerminator(t *testing.T) {
	c := NewCursor([]byte("nonulhere"))
	if _, err := c.CString(); err == nil {
		t.Fatal("CString() with no NUL: want error, got nil")
	} else if cdErr, ok := err.(*Error); !ok || cdErr.Kind != ErrTruncated {
		t.Fatalf("CString() error = %v, want ErrTruncated", err)
	}
}

func TestCursorCStringInvalidUTF8(t *testing.T) {
	c := NewCursor([]byte{0xff, 0xfe, 0x00})
	if _, err := c.CString(); err == nil {
		t.Fatal("CString() with invalid UTF-8: want error, got nil")
	} else if cdErr, ok := err.(*Error); !ok || cdErr.Kind != ErrInvalidUTF8 {
		t.Fatalf("CString() error = %v, want ErrInvalidUTF8", err)
	}
}

func TestCursorSeekRel(t *testing.T) {
	c := NewCursor(make([]byte, 20))
	if err := c.SeekRel(10, 5); err != nil {
		t.Fatalf("SeekRel(10, 5) error = %v", err)
	}
	if c.Pos() != 15 {
		t.Fatalf("Pos() = %d, want 15", c.Pos())
	}
}
