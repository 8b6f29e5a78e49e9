package codesign

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/appsworld/go-csinspect/codesign/types"
	"github.com/appsworld/go-csinspect/internal/fixture"
)

// TestScenarios covers the six end-to-end parse scenarios: a
// fully-featured CodeDirectory with a team ID, an old-version
// CodeDirectory that can't carry one, a lone CMS wrapper with no
// CodeDirectory at all, an envelope with an unrecognized magic, page-hash
// boundary placement when nCodeSlots doesn't evenly divide codeLimit,
// and special-slot addressing with more than one special slot.
func TestScenarios(t *testing.T) {
	t.Run("S1_full_version_with_team_id", func(t *testing.T) {
		image := bytes.Repeat([]byte{0x11}, 4096)
		cd := fixture.CodeDirectory(fixture.CodeDirectorySpec{
			Version:       uint32(types.SupportsExecSegment),
			Identifier:    "com.example.app",
			TeamID:        "TEAM123456",
			NSpecialSlots: 0,
			NCodeSlots:    1,
			CodeLimit:     uint32(len(image)),
			HashSize:      types.HashSizeSHA256,
			HashType:      uint8(types.HashSHA256),
			PageSize:      12,
			Image:         image,
		})
		envelope := fixture.SuperBlob(0xfade0cc0, []fixture.Blob{
			{Type: uint32(types.SlotCodeDirectory), Data: cd},
		})

		sig, err := Parse(envelope, 0, uint32(len(envelope)))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if len(sig.Blobs) != 1 {
			t.Fatalf("len(Blobs) = %d, want 1", len(sig.Blobs))
		}
		cdBlob, ok := sig.Blobs[0].(CodeDirectoryBlob)
		if !ok {
			t.Fatalf("Blobs[0] = %T, want CodeDirectoryBlob", sig.Blobs[0])
		}
		if !cdBlob.TeamID.Present || cdBlob.TeamID.Value != "TEAM123456" {
			t.Errorf("TeamID = %+v, want present %q", cdBlob.TeamID, "TEAM123456")
		}
		if !cdBlob.Identifier.Present || cdBlob.Identifier.Value != "com.example.app" {
			t.Errorf("Identifier = %+v, want present %q", cdBlob.Identifier, "com.example.app")
		}
		if !cdBlob.CDHash.Present {
			t.Errorf("CDHash = %+v, want present", cdBlob.CDHash)
		}
		if sig.PrimaryCDIndex == nil || *sig.PrimaryCDIndex != 0 {
			t.Errorf("PrimaryCDIndex = %v, want pointer to 0", sig.PrimaryCDIndex)
		}
	})

	t.Run("S2_old_version_team_id_unsupported", func(t *testing.T) {
		cd := fixture.CodeDirectory(fixture.CodeDirectorySpec{
			Version:    uint32(types.SupportsScatter),
			Identifier: "com.example.old",
			NCodeSlots: 0,
			CodeLimit:  0,
			HashSize:   types.HashSizeSHA256,
			HashType:   uint8(types.HashSHA256),
		})
		envelope := fixture.SuperBlob(0xfade0cc0, []fixture.Blob{
			{Type: uint32(types.SlotCodeDirectory), Data: cd},
		})

		sig, err := Parse(envelope, 0, uint32(len(envelope)))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		cdBlob := sig.Blobs[0].(CodeDirectoryBlob)
		if cdBlob.TeamID.Present {
			t.Fatalf("TeamID.Present = true on pre-team-ID version, want false")
		}
		cdErr, ok := cdBlob.TeamID.Err.(*types.Error)
		if !ok || cdErr.Kind != types.ErrTeamIDUnsupported {
			t.Fatalf("TeamID.Err = %v, want ErrTeamIDUnsupported", cdBlob.TeamID.Err)
		}
	})

	t.Run("S3_lone_cms_wrapper_no_code_directory", func(t *testing.T) {
		wrapper := fixture.BlobWrapper([]byte("pretend-pkcs7-bytes"))
		envelope := fixture.SuperBlob(0xfade0cc0, []fixture.Blob{
			{Type: uint32(types.SlotCMSSignature), Data: wrapper},
		})

		sig, err := Parse(envelope, 0, uint32(len(envelope)))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if len(sig.Blobs) != 1 {
			t.Fatalf("len(Blobs) = %d, want 1", len(sig.Blobs))
		}
		if _, ok := sig.Blobs[0].(SignedDataBlob); !ok {
			t.Fatalf("Blobs[0] = %T, want SignedDataBlob", sig.Blobs[0])
		}
		if sig.PrimaryCDIndex != nil {
			t.Errorf("PrimaryCDIndex = %v, want nil (no CodeDirectory present)", sig.PrimaryCDIndex)
		}
		if _, ok := sig.Primary(); ok {
			t.Errorf("Primary() ok = true, want false with no CodeDirectory")
		}
	})

	t.Run("S4_unhandled_envelope_magic", func(t *testing.T) {
		buf := []byte{0xde, 0xad, 0xbe, 0xef, 0, 0, 0, 8}
		sig, err := Parse(buf, 0, uint32(len(buf)))
		if err != nil {
			t.Fatalf("Parse() error = %v, want nil (unrecognized magic is reported, not fatal)", err)
		}
		if sig.Unhandled == nil {
			t.Fatal("Unhandled = nil, want set for unrecognized envelope magic")
		}
		if sig.Unhandled.Magic != 0xdeadbeef {
			t.Errorf("Unhandled.Magic = %#x, want 0xdeadbeef", sig.Unhandled.Magic)
		}
	})

	t.Run("S5_page_hash_boundaries", func(t *testing.T) {
		image := bytes.Repeat([]byte{0x77}, 9000)
		cd := fixture.CodeDirectory(fixture.CodeDirectorySpec{
			Version:    uint32(types.EarliestVersion),
			NCodeSlots: 3,
			CodeLimit:  9000,
			HashSize:   types.HashSizeSHA256,
			HashType:   uint8(types.HashSHA256),
			PageSize:   12, // 4096-byte pages: 4096 + 4096 + 808 = 9000
			Image:      image,
		})
		envelope := fixture.SuperBlob(0xfade0cc0, []fixture.Blob{
			{Type: uint32(types.SlotCodeDirectory), Data: cd},
		})
		// Parse hashes code pages from the start of buf, so the image
		// precedes the envelope, as in a Mach-O file.
		buf := append(append([]byte{}, image...), envelope...)

		sig, err := Parse(buf, uint32(len(image)), uint32(len(envelope)))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		cdBlob := sig.Blobs[0].(CodeDirectoryBlob)
		if len(cdBlob.ComputedHashes) != 3 {
			t.Fatalf("len(ComputedHashes) = %d, want 3", len(cdBlob.ComputedHashes))
		}
		want2 := sha256.Sum256(image[8192:9000])
		if cdBlob.ComputedHashes[2].Hex() != hex.EncodeToString(want2[:]) {
			t.Errorf("ComputedHashes[2] = %s, want digest of image[8192:9000]", cdBlob.ComputedHashes[2].Hex())
		}
	})

	t.Run("S6_special_slot_addressing", func(t *testing.T) {
		special := make([][]byte, 5)
		for i := range special {
			special[i] = bytes.Repeat([]byte{byte(i + 1)}, 20)
		}
		cd := fixture.CodeDirectory(fixture.CodeDirectorySpec{
			Version:       uint32(types.EarliestVersion),
			NSpecialSlots: 5,
			NCodeSlots:    0,
			CodeLimit:     0,
			HashSize:      20,
			HashType:      uint8(types.HashSHA1),
			SpecialHashes: special,
		})
		envelope := fixture.SuperBlob(0xfade0cc0, []fixture.Blob{
			{Type: uint32(types.SlotCodeDirectory), Data: cd},
		})

		sig, err := Parse(envelope, 0, uint32(len(envelope)))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		cdBlob := sig.Blobs[0].(CodeDirectoryBlob)
		if len(cdBlob.StoredHashes) != 5 {
			t.Fatalf("len(StoredHashes) = %d, want 5", len(cdBlob.StoredHashes))
		}
		if cdBlob.StoredHashes[0].Index != -5 || !bytes.Equal(cdBlob.StoredHashes[0].Hash, special[4]) {
			t.Errorf("StoredHashes[0] = %+v, want slot -5 = %x", cdBlob.StoredHashes[0], special[4])
		}
		if cdBlob.StoredHashes[4].Index != -1 || !bytes.Equal(cdBlob.StoredHashes[4].Hash, special[0]) {
			t.Errorf("StoredHashes[4] = %+v, want slot -1 = %x", cdBlob.StoredHashes[4], special[0])
		}
	})
}

// TestMultiBlobClassification exercises a signature carrying one of each
// recognized blob kind plus an unknown one, verifying the orchestrator
// classifies by magic rather than by the index's declared slot type.
func TestMultiBlobClassification(t *testing.T) {
	cd := fixture.CodeDirectory(fixture.CodeDirectorySpec{
		Version:    uint32(types.EarliestVersion),
		Identifier: "com.example.multi",
		HashSize:   types.HashSizeSHA256,
		HashType:   uint8(types.HashSHA256),
	})
	envelope := fixture.SuperBlob(0xfade0cc0, []fixture.Blob{
		{Type: uint32(types.SlotRequirements), Data: fixture.Requirements()},
		{Type: uint32(types.SlotCodeDirectory), Data: cd},
		{Type: uint32(types.SlotCMSSignature), Data: fixture.BlobWrapper([]byte("cms"))},
		{Type: uint32(types.SlotEntitlements), Data: fixture.Entitlements([]byte("<plist/>"))},
		{Type: 0x99999, Data: []byte{0x12, 0x34, 0x00, 0x08, 0xaa, 0xbb, 0xcc, 0xdd}},
	})

	sig, err := Parse(envelope, 0, uint32(len(envelope)))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(sig.Blobs) != 5 {
		t.Fatalf("len(Blobs) = %d, want 5", len(sig.Blobs))
	}
	wantTypes := []Blob{
		RequirementsBlob{},
		CodeDirectoryBlob{},
		SignedDataBlob{},
		EntitlementsBlob{},
		UnknownBlob{},
	}
	for i, want := range wantTypes {
		got := sig.Blobs[i]
		if gotType, wantType := typeName(got), typeName(want); gotType != wantType {
			t.Errorf("Blobs[%d] = %s, want %s", i, gotType, wantType)
		}
	}
	ent, ok := sig.Blobs[3].(EntitlementsBlob)
	if !ok || !bytes.Equal(ent.Raw, []byte("<plist/>")) {
		t.Errorf("EntitlementsBlob.Raw = %q, want %q", ent.Raw, "<plist/>")
	}
}

func typeName(b Blob) string {
	switch b.(type) {
	case RequirementsBlob:
		return "RequirementsBlob"
	case CodeDirectoryBlob:
		return "CodeDirectoryBlob"
	case SignedDataBlob:
		return "SignedDataBlob"
	case EntitlementsBlob:
		return "EntitlementsBlob"
	default:
		return "UnknownBlob"
	}
}

// TestParseRoundTripStructuralEquality reparses the same envelope bytes
// twice and asserts the two Signature reports are structurally identical,
// the property a deterministic decoder must hold.
func TestParseRoundTripStructuralEquality(t *testing.T) {
	image := bytes.Repeat([]byte{0x05}, 8192)
	cd := fixture.CodeDirectory(fixture.CodeDirectorySpec{
		Version:       uint32(types.SupportsExecSegment),
		Identifier:    "com.example.roundtrip",
		TeamID:        "RTTEAM001",
		NSpecialSlots: 1,
		NCodeSlots:    2,
		CodeLimit:     uint32(len(image)),
		HashSize:      types.HashSizeSHA256,
		HashType:      uint8(types.HashSHA256),
		PageSize:      12,
		SpecialHashes: [][]byte{bytes.Repeat([]byte{0xee}, 32)},
		Image:         image,
	})
	envelope := fixture.SuperBlob(0xfade0cc0, []fixture.Blob{
		{Type: uint32(types.SlotCodeDirectory), Data: cd},
		{Type: uint32(types.SlotCMSSignature), Data: fixture.BlobWrapper([]byte("sig"))},
	})

	first, err := Parse(envelope, 0, uint32(len(envelope)))
	if err != nil {
		t.Fatalf("Parse() first call error = %v", err)
	}
	second, err := Parse(envelope, 0, uint32(len(envelope)))
	if err != nil {
		t.Fatalf("Parse() second call error = %v", err)
	}

	if diff := cmp.Diff(first, second, cmp.Comparer(func(a, b error) bool {
		if a == nil || b == nil {
			return a == b
		}
		return a.Error() == b.Error()
	})); diff != "" {
		t.Errorf("Parse() is not deterministic (-first +second):\n%s", diff)
	}
}

func TestUnknownBlobOnTruncatedIndexEntry(t *testing.T) {
	cd := fixture.CodeDirectory(fixture.CodeDirectorySpec{
		Version:  uint32(types.EarliestVersion),
		HashSize: types.HashSizeSHA256,
		HashType: uint8(types.HashSHA256),
	})
	envelope := fixture.SuperBlob(0xfade0cc0, []fixture.Blob{
		{Type: uint32(types.SlotCodeDirectory), Data: cd},
	})
	// Truncate the envelope so the (only) index entry's offset points
	// past the end of the buffer, and shrink the header's declared length
	// to match so the SuperBlob header itself stays well-formed.
	truncated := envelope[:len(envelope)-len(cd)]
	binary.BigEndian.PutUint32(truncated[4:8], uint32(len(truncated)))

	sig, err := Parse(truncated, 0, uint32(len(truncated)))
	if err != nil {
		t.Fatalf("Parse() error = %v, want nil (per-blob failures don't abort the parse)", err)
	}
	if len(sig.Blobs) != 1 {
		t.Fatalf("len(Blobs) = %d, want 1", len(sig.Blobs))
	}
	if _, ok := sig.Blobs[0].(UnknownBlob); !ok {
		t.Fatalf("Blobs[0] = %T, want UnknownBlob", sig.Blobs[0])
	}
}
