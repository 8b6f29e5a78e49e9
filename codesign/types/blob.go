package types

import "fmt"

// BlobIndex is one (type, offset) entry in a SuperBlob's index. Offset
// is relative to the start of the SuperBlob.
type BlobIndex struct {
	Type   SlotType
	Offset uint32
}

// SuperBlob is the envelope header plus its index table. It does not
// follow the index offsets or inspect the blobs they point at — that is
// the orchestrator's job (codesign.Parse).
type SuperBlob struct {
	Magic  Magic
	Length uint32
	Count  uint32
	Index  []BlobIndex
}

// blobHeaderSize is the size in bytes of a magic+length blob prefix.
const blobHeaderSize = 8

// superBlobHeaderSize is magic+length+count.
const superBlobHeaderSize = 12

// ParseSuperBlob decodes a SuperBlob envelope at base in buf: the
// 12-byte header followed by Count (type, offset) index entries. It
// enforces that the declared index fits within Length and that all
// 8*count index bytes were readable; it does not otherwise validate the
// offsets it collects.
func ParseSuperBlob(buf []byte, base int) (SuperBlob, error) {
	c := NewCursor(buf)
	if err := c.SeekAbs(base); err != nil {
		return SuperBlob{}, err
	}

	magicWord, err := c.Uint32()
	if err != nil {
		return SuperBlob{}, err
	}
	length, err := c.Uint32()
	if err != nil {
		return SuperBlob{}, err
	}
	count, err := c.Uint32()
	if err != nil {
		return SuperBlob{}, err
	}

	if uint64(count)*8+superBlobHeaderSize > uint64(length) {
		return SuperBlob{}, &Error{Kind: ErrTruncated, Msg: fmt.Sprintf("superblob index (count=%d) does not fit in declared length %d", count, length)}
	}

	index := make([]BlobIndex, count)
	for i := uint32(0); i < count; i++ {
		typ, err := c.Uint32()
		if err != nil {
			return SuperBlob{}, err
		}
		off, err := c.Uint32()
		if err != nil {
			return SuperBlob{}, err
		}
		index[i] = BlobIndex{Type: SlotType(typ), Offset: off}
	}

	return SuperBlob{
		Magic:  Magic(magicWord),
		Length: length,
		Count:  count,
		Index:  index,
	}, nil
}

// RequireMagic reads the 4-byte magic at base and fails with ErrBadMagic
// if it does not equal want.
func RequireMagic(buf []byte, base int, want Magic) error {
	c := NewCursor(buf)
	if err := c.SeekAbs(base); err != nil {
		return err
	}
	got, err := c.Uint32()
	if err != nil {
		return err
	}
	if Magic(got) != want {
		return &Error{Kind: ErrBadMagic, Msg: fmt.Sprintf("expected magic %s, got %s", want, Magic(got))}
	}
	return nil
}

// PeekBlobHeader reads the magic and length of the blob at base without
// consuming them from any caller-visible cursor.
func PeekBlobHeader(buf []byte, base int) (Magic, uint32, error) {
	c := NewCursor(buf)
	if err := c.SeekAbs(base); err != nil {
		return 0, 0, err
	}
	m, err := c.Uint32()
	if err != nil {
		return 0, 0, err
	}
	l, err := c.Uint32()
	if err != nil {
		return 0, 0, err
	}
	return Magic(m), l, nil
}
