// Package fixture builds well-formed (and deliberately malformed)
// embedded-signature byte buffers for tests, so codesign package tests
// never need a real Mach-O binary on disk.
package fixture

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/binary"
)

// Blob is one (type, payload) entry to pack into a SuperBlob.
type Blob struct {
	Type uint32
	Data []byte // includes its own magic+length header
}

// SuperBlob packs magic/length/count/index/blobs into a single
// contiguous envelope, exactly as the wire format lays them out:
// header, then count*(type,offset) index entries, then the blob bodies
// back to back in index order.
func SuperBlob(magic uint32, blobs []Blob) []byte {
	headerSize := 12 + 8*len(blobs)
	total := headerSize
	for _, b := range blobs {
		total += len(b.Data)
	}

	out := make([]byte, 0, total)
	out = putU32(out, magic)
	out = putU32(out, uint32(total))
	out = putU32(out, uint32(len(blobs)))

	offset := uint32(headerSize)
	for _, b := range blobs {
		out = putU32(out, b.Type)
		out = putU32(out, offset)
		offset += uint32(len(b.Data))
	}
	for _, b := range blobs {
		out = append(out, b.Data...)
	}
	return out
}

// Requirements returns a bare placeholder Requirements blob body
// (magic 0xfade0c01, empty set).
func Requirements() []byte {
	var buf bytes.Buffer
	putU32Buf(&buf, 0xfade0c01)
	putU32Buf(&buf, 12)
	putU32Buf(&buf, 0)
	return buf.Bytes()
}

// BlobWrapper returns a CMS BlobWrapper body (magic 0xfade0b01) wrapping
// payload verbatim.
func BlobWrapper(payload []byte) []byte {
	var buf bytes.Buffer
	putU32Buf(&buf, 0xfade0b01)
	putU32Buf(&buf, uint32(8+len(payload)))
	buf.Write(payload)
	return buf.Bytes()
}

// Entitlements returns an embedded-entitlements body (magic 0xfade7171)
// wrapping plistXML verbatim.
func Entitlements(plistXML []byte) []byte {
	var buf bytes.Buffer
	putU32Buf(&buf, 0xfade7171)
	putU32Buf(&buf, uint32(8+len(plistXML)))
	buf.Write(plistXML)
	return buf.Bytes()
}

// CodeDirectorySpec describes the CodeDirectory a test wants built. A
// zero HashSize defaults to 32 and a zero HashType to SHA-256; Version
// and PageSize are written as given.
type CodeDirectorySpec struct {
	Version       uint32
	Flags         uint32
	Identifier    string
	TeamID        string
	NSpecialSlots uint32
	NCodeSlots    uint32
	CodeLimit     uint32
	CodeLimit64   uint64
	HashSize      uint8
	HashType      uint8
	PageSize      uint8
	SpecialHashes [][]byte // index 0 == slot -1, index 1 == slot -2, ...
	Image         []byte   // source bytes used to compute code-slot hashes; nil => zero-filled slots
}

// CodeDirectory builds a complete CodeDirectory blob body: header,
// identifier, team ID (if Version supports it), and the packed hash
// array. Code-slot hashes are computed from Image when present,
// otherwise left zero-filled.
func CodeDirectory(spec CodeDirectorySpec) []byte {
	hashSize := spec.HashSize
	if hashSize == 0 {
		hashSize = 32
	}
	hashType := spec.HashType
	if hashType == 0 {
		hashType = 2 // SHA-256
	}

	// Lay out the variable tail: identifier, then team ID (if
	// supported), then the hash array, matching hashOffset/identOffset
	// bookkeeping a real signer would do.
	headerLen := fixedHeaderLen(spec.Version)

	identOffset := uint32(headerLen)
	identBytes := append([]byte(spec.Identifier), 0)

	var teamOffset uint32
	var teamBytes []byte
	cursor := identOffset + uint32(len(identBytes))
	if spec.Version >= 0x20200 {
		teamOffset = cursor
		teamBytes = append([]byte(spec.TeamID), 0)
		cursor += uint32(len(teamBytes))
	}

	nSpecial := int(spec.NSpecialSlots)
	hashOffset := cursor + uint32(nSpecial)*uint32(hashSize)

	var buf bytes.Buffer
	length := uint32(headerLen) + uint32(len(identBytes)) + uint32(len(teamBytes)) + uint32(nSpecial+int(spec.NCodeSlots))*uint32(hashSize)

	putU32Buf(&buf, 0xfade0c02) // magic
	putU32Buf(&buf, length)
	putU32Buf(&buf, spec.Version)
	putU32Buf(&buf, spec.Flags)
	putU32Buf(&buf, hashOffset)
	putU32Buf(&buf, identOffset)
	putU32Buf(&buf, spec.NSpecialSlots)
	putU32Buf(&buf, spec.NCodeSlots)
	putU32Buf(&buf, spec.CodeLimit)
	buf.WriteByte(hashSize)
	buf.WriteByte(hashType)
	buf.WriteByte(0) // platform
	buf.WriteByte(spec.PageSize)
	putU32Buf(&buf, 0) // spare2

	if spec.Version >= 0x20100 {
		putU32Buf(&buf, 0) // scatterOffset
	}
	if spec.Version >= 0x20200 {
		putU32Buf(&buf, teamOffset)
	}
	if spec.Version >= 0x20300 {
		putU32Buf(&buf, 0) // spare3
		putU64Buf(&buf, spec.CodeLimit64)
	}
	if spec.Version >= 0x20400 {
		putU64Buf(&buf, 0) // execSegBase
		putU64Buf(&buf, 0) // execSegLimit
		putU64Buf(&buf, 0) // execSegFlags
	}

	buf.Write(identBytes)
	buf.Write(teamBytes)

	for i := nSpecial; i >= 1; i-- {
		if i-1 < len(spec.SpecialHashes) && spec.SpecialHashes[i-1] != nil {
			buf.Write(padOrTrim(spec.SpecialHashes[i-1], int(hashSize)))
		} else {
			buf.Write(make([]byte, hashSize))
		}
	}

	pageSize := 1 << spec.PageSize
	if spec.PageSize == 0 {
		pageSize = int(effectiveLimit(spec))
		if pageSize == 0 {
			pageSize = 1
		}
	}
	for k := 0; k < int(spec.NCodeSlots); k++ {
		start := k * pageSize
		end := start + pageSize
		limit := int(effectiveLimit(spec))
		if k == int(spec.NCodeSlots)-1 || end > limit {
			end = limit
		}
		var window []byte
		if spec.Image != nil && start <= len(spec.Image) {
			stop := end
			if stop > len(spec.Image) {
				stop = len(spec.Image)
			}
			if start <= stop {
				window = spec.Image[start:stop]
			}
		}
		buf.Write(hashOf(hashType, window))
	}

	return buf.Bytes()
}

func effectiveLimit(spec CodeDirectorySpec) uint64 {
	if spec.CodeLimit64 != 0 {
		return spec.CodeLimit64
	}
	return uint64(spec.CodeLimit)
}

func fixedHeaderLen(version uint32) int {
	n := 44 // magic..spare2
	if version >= 0x20100 {
		n += 4
	}
	if version >= 0x20200 {
		n += 4
	}
	if version >= 0x20300 {
		n += 4 + 8
	}
	if version >= 0x20400 {
		n += 24
	}
	return n
}

func hashOf(hashType uint8, data []byte) []byte {
	switch hashType {
	case 1:
		sum := sha1.Sum(data)
		return sum[:]
	default:
		sum := sha256.Sum256(data)
		if hashType == 3 {
			return sum[:20]
		}
		return sum[:]
	}
}

func padOrTrim(b []byte, n int) []byte {
	if len(b) >= n {
		return b[:n]
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func putU32(out []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(out, tmp[:]...)
}

func putU32Buf(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func putU64Buf(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}
