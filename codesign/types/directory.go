package types

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// CodeDirectory is the version-aware decode of a CodeDirectory blob's
// fixed header. Fields that don't apply to Version are left at zero,
// per the version thresholds below — never read a field for a version
// higher than the one actually declared, since the bytes belong to
// whatever variable-length tail follows instead.
type CodeDirectory struct {
	Magic         Magic
	Length        uint32
	Version       CDVersion
	Flags         uint32
	HashOffset    uint32
	IdentOffset   uint32
	NSpecialSlots uint32
	NCodeSlots    uint32
	CodeLimit     uint32
	HashSize      uint8
	HashType      HashType
	Platform      uint8
	PageSize      uint8
	Spare2        uint32

	// Version 0x20100+
	ScatterOffset uint32
	// Version 0x20200+
	TeamIDOffset uint32
	// Version 0x20300+
	Spare3      uint32
	CodeLimit64 uint64
	// Version 0x20400+
	ExecSegBase  uint64
	ExecSegLimit uint64
	ExecSegFlags uint64
}

// EffectiveCodeLimit returns CodeLimit64 when it's nonzero (overriding
// the 32-bit CodeLimit), else CodeLimit.
func (cd CodeDirectory) EffectiveCodeLimit() uint64 {
	if cd.CodeLimit64 != 0 {
		return cd.CodeLimit64
	}
	return uint64(cd.CodeLimit)
}

// ParseCodeDirectory decodes the CodeDirectory header at base in buf.
// It rejects Version < EarliestVersion and accepts Version up to
// CompatibilityLimit, reading only the fields valid for the declared
// version.
func ParseCodeDirectory(buf []byte, base int) (CodeDirectory, error) {
	c := NewCursor(buf)
	if err := c.SeekAbs(base); err != nil {
		return CodeDirectory{}, err
	}

	var cd CodeDirectory
	read := func(dst *uint32) error {
		v, err := c.Uint32()
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}

	var magicWord, flags uint32
	var version uint32
	if err := read(&magicWord); err != nil {
		return CodeDirectory{}, err
	}
	if err := read(&cd.Length); err != nil {
		return CodeDirectory{}, err
	}
	if err := read(&version); err != nil {
		return CodeDirectory{}, err
	}
	if err := read(&flags); err != nil {
		return CodeDirectory{}, err
	}
	if err := read(&cd.HashOffset); err != nil {
		return CodeDirectory{}, err
	}
	if err := read(&cd.IdentOffset); err != nil {
		return CodeDirectory{}, err
	}
	if err := read(&cd.NSpecialSlots); err != nil {
		return CodeDirectory{}, err
	}
	if err := read(&cd.NCodeSlots); err != nil {
		return CodeDirectory{}, err
	}
	if err := read(&cd.CodeLimit); err != nil {
		return CodeDirectory{}, err
	}
	hashSize, err := c.Uint8()
	if err != nil {
		return CodeDirectory{}, err
	}
	hashType, err := c.Uint8()
	if err != nil {
		return CodeDirectory{}, err
	}
	platform, err := c.Uint8()
	if err != nil {
		return CodeDirectory{}, err
	}
	pageSize, err := c.Uint8()
	if err != nil {
		return CodeDirectory{}, err
	}
	if err := read(&cd.Spare2); err != nil {
		return CodeDirectory{}, err
	}

	cd.Magic = Magic(magicWord)
	cd.Version = CDVersion(version)
	cd.Flags = flags
	cd.HashSize = hashSize
	cd.HashType = HashType(hashType)
	cd.Platform = platform
	cd.PageSize = pageSize

	if cd.Version < EarliestVersion {
		return CodeDirectory{}, &Error{Kind: ErrUnsupportedVersion, Msg: "version too old", Version: uint32(cd.Version)}
	}
	if cd.Version > CompatibilityLimit {
		return CodeDirectory{}, &Error{Kind: ErrUnsupportedVersion, Msg: "version too new", Version: uint32(cd.Version)}
	}

	if cd.Version >= SupportsScatter {
		if err := read(&cd.ScatterOffset); err != nil {
			return CodeDirectory{}, err
		}
	}
	if cd.Version >= SupportsTeamID {
		if err := read(&cd.TeamIDOffset); err != nil {
			return CodeDirectory{}, err
		}
	}
	if cd.Version >= SupportsCodeLimit64 {
		if err := read(&cd.Spare3); err != nil {
			return CodeDirectory{}, err
		}
		v, err := c.Uint64()
		if err != nil {
			return CodeDirectory{}, err
		}
		cd.CodeLimit64 = v
	}
	if cd.Version >= SupportsExecSegment {
		segBase, err := c.Uint64()
		if err != nil {
			return CodeDirectory{}, err
		}
		segLimit, err := c.Uint64()
		if err != nil {
			return CodeDirectory{}, err
		}
		segFlags, err := c.Uint64()
		if err != nil {
			return CodeDirectory{}, err
		}
		cd.ExecSegBase, cd.ExecSegLimit, cd.ExecSegFlags = segBase, segLimit, segFlags
	}

	return cd, nil
}

// Field is a tagged "maybe" value for an optional-or-fallible field on a
// parsed blob: present with a value, explicitly missing, or failed with
// an error. This lets a report serialize a partially-successful parse
// instead of one failed field poisoning the whole record.
type Field[T any] struct {
	Present bool
	Value   T
	Err     error
}

func presentField[T any](v T) Field[T]      { return Field[T]{Present: true, Value: v} }
func failedField[T any](err error) Field[T] { return Field[T]{Err: err} }

// Identifier reads the NUL-terminated identifier string at
// base+IdentOffset.
func (cd CodeDirectory) Identifier(buf []byte, base int) Field[string] {
	c := NewCursor(buf)
	if err := c.SeekRel(base, int(cd.IdentOffset)); err != nil {
		return failedField[string](err)
	}
	s, err := c.CString()
	if err != nil {
		return failedField[string](err)
	}
	return presentField(s)
}

// TeamID reads the NUL-terminated team identifier string at
// base+TeamIDOffset. It fails with ErrTeamIDUnsupported when
// Version < SupportsTeamID.
func (cd CodeDirectory) TeamID(buf []byte, base int) Field[string] {
	if cd.Version < SupportsTeamID {
		return failedField[string](&Error{Kind: ErrTeamIDUnsupported, Msg: "CodeDirectory version predates team ID support", Version: uint32(cd.Version)})
	}
	if cd.TeamIDOffset == 0 {
		return Field[string]{} // not present, not an error
	}
	c := NewCursor(buf)
	if err := c.SeekRel(base, int(cd.TeamIDOffset)); err != nil {
		return failedField[string](err)
	}
	s, err := c.CString()
	if err != nil {
		return failedField[string](err)
	}
	return presentField(s)
}

// HashTypeName maps HashType to its canonical display name.
func (cd CodeDirectory) HashTypeName() string {
	switch cd.HashType {
	case HashSHA1:
		return "SHA-1"
	case HashSHA256:
		return "SHA-256"
	case HashSHA256Truncated:
		return "SHA-256-truncated"
	default:
		return cd.HashType.String()
	}
}

// SlotHash is one entry in a hash-slot table: a logical slot index
// (negative for special slots) and its digest.
type SlotHash struct {
	Index      int
	Hash       []byte
	IsNullPage bool
}

// Hex returns the lowercase hex encoding of Hash.
func (s SlotHash) Hex() string { return hex.EncodeToString(s.Hash) }

// nullPageSHA256 is the well-known SHA-256 digest of a 4096-byte
// all-zero page; matching it is purely a display convenience and never
// changes parse semantics.
var nullPageSHA256 = []byte{
	0xad, 0x7f, 0xac, 0xb2, 0x58, 0x6f, 0xc6, 0xe9,
	0x66, 0xc0, 0x04, 0xd7, 0xd1, 0xd1, 0x6b, 0x02,
	0x4f, 0x58, 0x05, 0xff, 0x7c, 0xb4, 0x7c, 0x7a,
	0x85, 0xda, 0xbd, 0x8b, 0x48, 0x89, 0x2c, 0xa7,
}

// StoredHashes reads the packed hash array covering logical slot
// indices [-NSpecialSlots, NCodeSlots). Index 0 of the array sits at
// base+HashOffset; negative indices precede it, slot -1 occupying the
// HashSize bytes immediately before HashOffset.
func (cd CodeDirectory) StoredHashes(buf []byte, base int) ([]SlotHash, error) {
	if cd.HashSize == 0 {
		if cd.NSpecialSlots == 0 && cd.NCodeSlots == 0 {
			return nil, nil
		}
		return nil, &Error{Kind: ErrHashGeometryMismatch, Msg: "hashSize is zero but slots are declared"}
	}

	start := int(cd.HashOffset) - int(cd.NSpecialSlots)*int(cd.HashSize)
	c := NewCursor(buf)
	if err := c.SeekRel(base, start); err != nil {
		return nil, &Error{Kind: ErrHashGeometryMismatch, Msg: fmt.Sprintf("hash array start %d out of bounds: %v", start, err)}
	}

	total := int(cd.NSpecialSlots) + int(cd.NCodeSlots)
	out := make([]SlotHash, 0, total)
	for i := -int(cd.NSpecialSlots); i < int(cd.NCodeSlots); i++ {
		h, err := c.Bytes(int(cd.HashSize))
		if err != nil {
			return nil, &Error{Kind: ErrHashGeometryMismatch, Msg: fmt.Sprintf("reading hash for slot %d: %v", i, err)}
		}
		out = append(out, SlotHash{Index: i, Hash: h})
	}
	return out, nil
}

// ComputedCodeHashes digests the code pages of image (the main binary
// region covered by code signing) according to cd's page geometry.
// PageSize()==0 means "hash the whole image as one page" covering
// [0, L). Otherwise page k covers [k*P, min((k+1)*P, L)); the final
// page is short when L is not a multiple of P. The last declared slot
// always runs to L, and more slots than ceil(L/P) is
// ErrHashGeometryMismatch.
func (cd CodeDirectory) ComputedCodeHashes(image []byte) ([]SlotHash, error) {
	l := int(cd.EffectiveCodeLimit())
	if l > len(image) {
		l = len(image)
	}

	p := PageSize(cd.PageSize)
	if p == 0 {
		p = l
		if p == 0 {
			p = 1 // avoid a zero-stride loop on an empty image
		}
	}

	nSlots := int(cd.NCodeSlots)
	if p > 0 && l > 0 {
		want := (l + p - 1) / p
		if nSlots > want {
			return nil, &Error{Kind: ErrHashGeometryMismatch, Msg: fmt.Sprintf("nCodeSlots=%d exceeds %d slots implied by codeLimit=%d/pageSize=%d", nSlots, want, l, p)}
		}
	}

	out := make([]SlotHash, 0, nSlots)
	for k := 0; k < nSlots; k++ {
		start := k * p
		var end int
		if k == nSlots-1 {
			// The final slot always runs to L, whether that's a short
			// last page (the common case, L not a multiple of P) or an
			// under-provisioned CodeDirectory whose last declared slot
			// must absorb more than one page's worth of the image.
			end = l
		} else {
			end = start + p
			if end > l {
				end = l
			}
		}
		if start > len(image) {
			start = len(image)
		}
		if end > len(image) {
			end = len(image)
		}
		digest, err := digestBytes(cd.HashType, image[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, SlotHash{
			Index:      k,
			Hash:       digest,
			IsNullPage: cd.HashType == HashSHA256 && bytesEqual(digest, nullPageSHA256),
		})
	}
	return out, nil
}

// CDHash computes the CodeDirectory hash: the digest (of cd.HashType)
// over exactly the Length bytes of this CodeDirectory blob, starting at
// base. This is the value that gets cryptographically signed.
func (cd CodeDirectory) CDHash(buf []byte, base int) (string, error) {
	c := NewCursor(buf)
	if err := c.SeekAbs(base); err != nil {
		return "", err
	}
	blob, err := c.Bytes(int(cd.Length))
	if err != nil {
		return "", err
	}
	digest, err := digestBytes(cd.HashType, blob)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(digest), nil
}

func digestBytes(ht HashType, data []byte) ([]byte, error) {
	switch ht {
	case HashSHA1:
		sum := sha1.Sum(data)
		return sum[:], nil
	case HashSHA256, HashSHA256Truncated:
		sum := sha256.Sum256(data)
		if ht == HashSHA256Truncated {
			return sum[:HashSizeSHA256Truncated], nil
		}
		return sum[:], nil
	default:
		return nil, &Error{Kind: ErrHashGeometryMismatch, Msg: fmt.Sprintf("unsupported hash type %s", ht)}
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
