// Package codesign parses the LC_CODE_SIGNATURE payload of a Mach-O
// image: the embedded-signature SuperBlob, its CodeDirectory entries,
// and the opaque blobs (requirements, entitlements, CMS) that ride
// alongside them. It consumes a byte buffer and a (offset, size) window
// already located by the caller's Mach-O/fat-file container parser —
// locating that window is out of scope here.
package codesign

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/appsworld/go-csinspect/codesign/types"
)

// Blob is implemented by every entry recorded in Signature.Blobs.
type Blob interface {
	SlotIndex() types.BlobIndex
}

// CodeDirectoryBlob is a parsed CodeDirectory entry: its header, derived
// identity fields, and both the stored and recomputed hash tables.
type CodeDirectoryBlob struct {
	Index          types.BlobIndex
	Directory      types.CodeDirectory
	Identifier     types.Field[string]
	TeamID         types.Field[string]
	HashTypeName   string
	CDHash         types.Field[string]
	StoredHashes   []types.SlotHash
	ComputedHashes []types.SlotHash
}

func (b CodeDirectoryBlob) SlotIndex() types.BlobIndex { return b.Index }

// RequirementsBlob records the presence of a requirements set without
// parsing its DSL contents — that's an external collaborator's job.
type RequirementsBlob struct {
	Index types.BlobIndex
}

func (b RequirementsBlob) SlotIndex() types.BlobIndex { return b.Index }

// SignedDataBlob is the opaque CMS/PKCS#7 wrapper, recorded with a
// SHA-256 digest over its full (magic..magic+length) bytes.
type SignedDataBlob struct {
	Index        types.BlobIndex
	SHA256Digest string
}

func (b SignedDataBlob) SlotIndex() types.BlobIndex { return b.Index }

// EntitlementsBlob records the entitlements plist slot with its raw
// opaque bytes — XML/plist parsing is an external collaborator's job.
type EntitlementsBlob struct {
	Index types.BlobIndex
	Raw   []byte
}

func (b EntitlementsBlob) SlotIndex() types.BlobIndex { return b.Index }

// UnknownBlob is recorded for any blob whose magic is not otherwise
// classified, or whose header cannot be read. An unknown magic is never
// a fatal error.
type UnknownBlob struct {
	Index types.BlobIndex
}

func (b UnknownBlob) SlotIndex() types.BlobIndex { return b.Index }

// UnhandledMagic is set on Signature when the envelope's own magic is
// not one this orchestrator recognizes as a signature container.
type UnhandledMagic struct {
	Magic uint32
}

// Signature is the orchestrator's report: everything recovered from one
// LC_CODE_SIGNATURE window.
type Signature struct {
	BaseOffset     uint32
	Size           uint32
	EnvelopeSHA256 string
	SuperBlob      types.SuperBlob
	PrimaryCDIndex *int
	Blobs          []Blob
	Unhandled      *UnhandledMagic
}

// Primary returns the CodeDirectory this signature prefers among any
// alternates, by hash-type strength (SHA-256 over SHA-256-truncated
// over SHA-1), falling back to parse order. It is additive: Signature's
// PrimaryCDIndex field still records "first CodeDirectory slot seen",
// as the wire format defines it.
func (s *Signature) Primary() (CodeDirectoryBlob, bool) {
	var best *CodeDirectoryBlob
	rank := func(ht types.HashType) int {
		switch ht {
		case types.HashSHA256:
			return 3
		case types.HashSHA256Truncated:
			return 2
		case types.HashSHA1:
			return 1
		default:
			return 0
		}
	}
	for _, b := range s.Blobs {
		cd, ok := b.(CodeDirectoryBlob)
		if !ok {
			continue
		}
		if best == nil || rank(cd.Directory.HashType) > rank(best.Directory.HashType) {
			cdCopy := cd
			best = &cdCopy
		}
	}
	if best == nil {
		return CodeDirectoryBlob{}, false
	}
	return *best, true
}

// Parse runs the full C3->C4 pipeline on the signature envelope at
// buf[baseOffset:]: it reads the envelope magic, parses one SuperBlob,
// classifies each index entry, and for CodeDirectory entries computes the
// stored and recomputed hash tables plus the CDHash. size is recorded in
// the report as given. Code-page hashes are recomputed over
// buf[0:codeLimit), and left empty when codeLimit exceeds len(buf).
//
// A SuperBlob header/index read failure surfaces to the caller.
// Per-blob decode failures (truncated reads, invalid UTF-8, unsupported
// CD versions, missing team ID support) are captured inside the
// relevant Blob entry instead, so one bad slot never invalidates the
// rest of the report. An envelope whose own magic isn't recognized
// returns a Signature with Unhandled set and no error.
func Parse(buf []byte, baseOffset, size uint32) (*Signature, error) {
	base := int(baseOffset)

	magicWord, _, err := types.PeekBlobHeader(buf, base)
	if err != nil {
		return nil, err
	}
	if magicWord != types.MagicEmbeddedSignature && magicWord != types.MagicDetachedSignature {
		return &Signature{
			BaseOffset: baseOffset,
			Size:       size,
			Unhandled:  &UnhandledMagic{Magic: uint32(magicWord)},
		}, nil
	}

	sb, err := types.ParseSuperBlob(buf, base)
	if err != nil {
		return nil, err
	}

	envelope, err := sliceAt(buf, base, int(sb.Length))
	if err != nil {
		return nil, err
	}
	envelopeDigest := sha256.Sum256(envelope)

	sig := &Signature{
		BaseOffset:     baseOffset,
		Size:           size,
		EnvelopeSHA256: hex.EncodeToString(envelopeDigest[:]),
		SuperBlob:      sb,
		Blobs:          make([]Blob, 0, len(sb.Index)),
	}

	for _, idx := range sb.Index {
		blobBase := base + int(idx.Offset)
		magic, length, err := types.PeekBlobHeader(buf, blobBase)
		if err != nil {
			sig.Blobs = append(sig.Blobs, UnknownBlob{Index: idx})
			continue
		}

		// Classification is driven by the blob's own magic, not the
		// index slot type: a CodeDirectory blob always carries
		// MagicCodeDirectory whether it's the primary or an alternate
		// hash-type entry, and a requirements set can show up as
		// either the single-Requirement or Requirements-vector magic.
		switch magic {
		case types.MagicRequirement, types.MagicRequirements:
			sig.Blobs = append(sig.Blobs, RequirementsBlob{Index: idx})

		case types.MagicCodeDirectory:
			cdBlob := parseCodeDirectoryBlob(buf, blobBase, idx)
			if sig.PrimaryCDIndex == nil {
				pos := len(sig.Blobs)
				sig.PrimaryCDIndex = &pos
			}
			sig.Blobs = append(sig.Blobs, cdBlob)

		case types.MagicBlobWrapper:
			digestHex, err := sha256DigestRegion(buf, blobBase, int(length))
			if err != nil {
				sig.Blobs = append(sig.Blobs, UnknownBlob{Index: idx})
				continue
			}
			sig.Blobs = append(sig.Blobs, SignedDataBlob{Index: idx, SHA256Digest: digestHex})

		case types.MagicEmbeddedEntitlements, types.MagicEmbeddedEntitlementsDER:
			raw, err := sliceAt(buf, blobBase+8, int(length)-8)
			if err != nil {
				raw = nil
			}
			sig.Blobs = append(sig.Blobs, EntitlementsBlob{Index: idx, Raw: raw})

		default:
			sig.Blobs = append(sig.Blobs, UnknownBlob{Index: idx})
		}
	}

	return sig, nil
}

func parseCodeDirectoryBlob(buf []byte, base int, idx types.BlobIndex) CodeDirectoryBlob {
	cd, err := types.ParseCodeDirectory(buf, base)
	if err != nil {
		return CodeDirectoryBlob{
			Index:      idx,
			Identifier: types.Field[string]{Err: err},
			TeamID:     types.Field[string]{Err: err},
			CDHash:     types.Field[string]{Err: err},
		}
	}

	out := CodeDirectoryBlob{
		Index:        idx,
		Directory:    cd,
		Identifier:   cd.Identifier(buf, base),
		TeamID:       cd.TeamID(buf, base),
		HashTypeName: cd.HashTypeName(),
	}

	if hash, err := cd.CDHash(buf, base); err != nil {
		out.CDHash = types.Field[string]{Err: err}
	} else {
		out.CDHash = types.Field[string]{Present: true, Value: hash}
	}

	if stored, err := cd.StoredHashes(buf, base); err == nil {
		out.StoredHashes = stored
	}

	limit := int(cd.EffectiveCodeLimit())
	if limit <= len(buf) {
		if computed, err := cd.ComputedCodeHashes(buf[:limit]); err == nil {
			out.ComputedHashes = computed
		}
	}

	return out
}

func sliceAt(buf []byte, start, n int) ([]byte, error) {
	if n < 0 || start < 0 || start+n > len(buf) {
		return nil, &types.Error{Kind: types.ErrTruncated, Msg: fmt.Sprintf("region [%d,%d) out of bounds (len %d)", start, start+n, len(buf))}
	}
	return buf[start : start+n], nil
}

func sha256DigestRegion(buf []byte, start, n int) (string, error) {
	region, err := sliceAt(buf, start, n)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(region)
	return hex.EncodeToString(sum[:]), nil
}
