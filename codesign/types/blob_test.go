package types

import (
	"encoding/binary"
	"testing"
)

func packSuperBlob(magic uint32, entries [][2]uint32, tail []byte) []byte {
	headerLen := 12 + 8*len(entries)
	buf := make([]byte, 0, headerLen+len(tail))
	put := func(v uint32) {
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], v)
		buf = append(buf, tmp[:]...)
	}
	length := uint32(headerLen + len(tail))
	put(magic)
	put(length)
	put(uint32(len(entries)))
	for _, e := range entries {
		put(e[0])
		put(e[1])
	}
	buf = append(buf, tail...)
	return buf
}

func TestParseSuperBlobOK(t *testing.T) {
	buf := packSuperBlob(uint32(MagicEmbeddedSignature), [][2]uint32{
		{uint32(SlotCodeDirectory), 28},
	}, make([]byte, 8))

	sb, err := ParseSuperBlob(buf, 0)
	if err != nil {
		t.Fatalf("ParseSuperBlob() error = %v", err)
	}
	if sb.Magic != MagicEmbeddedSignature {
		t.Errorf("Magic = %v, want MagicEmbeddedSignature", sb.Magic)
	}
	if sb.Count != 1 || len(sb.Index) != 1 {
		t.Fatalf("Count/Index length = %d/%d, want 1/1", sb.Count, len(sb.Index))
	}
	if sb.Index[0].Type != SlotCodeDirectory || sb.Index[0].Offset != 28 {
		t.Errorf("Index[0] = %+v, want {CodeDirectory 28}", sb.Index[0])
	}
}

func TestParseSuperBlobIndexOverflowsLength(t *testing.T) {
	buf := packSuperBlob(uint32(MagicEmbeddedSignature), [][2]uint32{
		{uint32(SlotCodeDirectory), 28},
	}, nil)
	// Lie about the length field so the declared index no longer fits.
	binary.BigEndian.PutUint32(buf[4:8], 10)

	if _, err := ParseSuperBlob(buf, 0); err == nil {
		t.Fatal("ParseSuperBlob() with overflowing index: want error, got nil")
	} else if cdErr, ok := err.(*Error); !ok || cdErr.Kind != ErrTruncated {
		t.Fatalf("ParseSuperBlob() error = %v, want ErrTruncated", err)
	}
}

func TestParseSuperBlobAtNonZeroBase(t *testing.T) {
	padding := make([]byte, 16)
	body := packSuperBlob(uint32(MagicEmbeddedSignature), nil, nil)
	buf := append(padding, body...)

	sb, err := ParseSuperBlob(buf, 16)
	if err != nil {
		t.Fatalf("ParseSuperBlob() error = %v", err)
	}
	if sb.Count != 0 {
		t.Errorf("Count = %d, want 0", sb.Count)
	}
}

func TestRequireMagic(t *testing.T) {
	buf := packSuperBlob(uint32(MagicCodeDirectory), nil, nil)
	if err := RequireMagic(buf, 0, MagicCodeDirectory); err != nil {
		t.Fatalf("RequireMagic() error = %v", err)
	}
	if err := RequireMagic(buf, 0, MagicBlobWrapper); err == nil {
		t.Fatal("RequireMagic() with mismatched magic: want error, got nil")
	} else if cdErr, ok := err.(*Error); !ok || cdErr.Kind != ErrBadMagic {
		t.Fatalf("RequireMagic() error = %v, want ErrBadMagic", err)
	}
}

func TestPeekBlobHeaderDoesNotConsume(t *testing.T) {
	buf := packSuperBlob(uint32(MagicBlobWrapper), nil, []byte{1, 2, 3, 4})
	magic, length, err := PeekBlobHeader(buf, 0)
	if err != nil {
		t.Fatalf("PeekBlobHeader() error = %v", err)
	}
	if magic != MagicBlobWrapper {
		t.Errorf("magic = %v, want MagicBlobWrapper", magic)
	}
	if length != uint32(len(buf)) {
		t.Errorf("length = %d, want %d", length, len(buf))
	}
	// A second peek at the same base reads identically: no hidden state.
	magic2, length2, err := PeekBlobHeader(buf, 0)
	if err != nil || magic2 != magic || length2 != length {
		t.Fatalf("second PeekBlobHeader() = (%v, %d, %v), want (%v, %d, nil)", magic2, length2, err, magic, length)
	}
}
