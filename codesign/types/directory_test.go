package types

import (
	"bytes"
	"testing"

	"github.com/appsworld/go-csinspect/internal/fixture"
)

func TestParseCodeDirectoryBasicFields(t *testing.T) {
	buf := fixture.CodeDirectory(fixture.CodeDirectorySpec{
		Version:       uint32(SupportsTeamID),
		Identifier:    "com.example.app",
		TeamID:        "ABCDE12345",
		NSpecialSlots: 0,
		NCodeSlots:    0,
		CodeLimit:     0,
		HashSize:      HashSizeSHA256,
		HashType:      uint8(HashSHA256),
		PageSize:      12,
	})

	cd, err := ParseCodeDirectory(buf, 0)
	if err != nil {
		t.Fatalf("ParseCodeDirectory() error = %v", err)
	}
	if cd.Version != SupportsTeamID {
		t.Errorf("Version = %#x, want %#x", cd.Version, SupportsTeamID)
	}
	ident := cd.Identifier(buf, 0)
	if !ident.Present || ident.Value != "com.example.app" {
		t.Errorf("Identifier() = %+v, want present %q", ident, "com.example.app")
	}
	team := cd.TeamID(buf, 0)
	if !team.Present || team.Value != "ABCDE12345" {
		t.Errorf("TeamID() = %+v, want present %q", team, "ABCDE12345")
	}
}

func TestParseCodeDirectoryTeamIDUnsupportedOnOldVersion(t *testing.T) {
	buf := fixture.CodeDirectory(fixture.CodeDirectorySpec{
		Version:    uint32(SupportsScatter),
		Identifier: "com.example.legacy",
	})

	cd, err := ParseCodeDirectory(buf, 0)
	if err != nil {
		t.Fatalf("ParseCodeDirectory() error = %v", err)
	}
	team := cd.TeamID(buf, 0)
	if team.Present {
		t.Fatalf("TeamID() Present = true on pre-TeamID version, want false")
	}
	if team.Err == nil {
		t.Fatal("TeamID() Err = nil, want ErrTeamIDUnsupported")
	}
	cdErr, ok := team.Err.(*Error)
	if !ok || cdErr.Kind != ErrTeamIDUnsupported {
		t.Fatalf("TeamID() Err = %v, want ErrTeamIDUnsupported", team.Err)
	}
	if cdErr.Version != uint32(SupportsScatter) {
		t.Errorf("TeamID() Err.Version = %#x, want %#x", cdErr.Version, SupportsScatter)
	}
}

func TestParseCodeDirectoryRejectsVersionTooOld(t *testing.T) {
	buf := fixture.CodeDirectory(fixture.CodeDirectorySpec{Version: 0x10000})
	if _, err := ParseCodeDirectory(buf, 0); err == nil {
		t.Fatal("ParseCodeDirectory() with ancient version: want error, got nil")
	} else if cdErr, ok := err.(*Error); !ok || cdErr.Kind != ErrUnsupportedVersion {
		t.Fatalf("ParseCodeDirectory() error = %v, want ErrUnsupportedVersion", err)
	}
}

func TestStoredHashesGeometry(t *testing.T) {
	special := [][]byte{
		bytes.Repeat([]byte{0xaa}, 20), // slot -1
		bytes.Repeat([]byte{0xbb}, 20), // slot -2
	}
	buf := fixture.CodeDirectory(fixture.CodeDirectorySpec{
		Version:       uint32(EarliestVersion),
		NSpecialSlots: 2,
		NCodeSlots:    1,
		CodeLimit:     10,
		HashSize:      20,
		HashType:      uint8(HashSHA1),
		SpecialHashes: special,
		Image:         bytes.Repeat([]byte{0x01}, 10),
	})

	cd, err := ParseCodeDirectory(buf, 0)
	if err != nil {
		t.Fatalf("ParseCodeDirectory() error = %v", err)
	}
	hashes, err := cd.StoredHashes(buf, 0)
	if err != nil {
		t.Fatalf("StoredHashes() error = %v", err)
	}
	if len(hashes) != 3 {
		t.Fatalf("len(hashes) = %d, want 3", len(hashes))
	}
	if hashes[0].Index != -2 || !bytes.Equal(hashes[0].Hash, special[1]) {
		t.Errorf("hashes[0] = %+v, want slot -2 = %x", hashes[0], special[1])
	}
	if hashes[1].Index != -1 || !bytes.Equal(hashes[1].Hash, special[0]) {
		t.Errorf("hashes[1] = %+v, want slot -1 = %x", hashes[1], special[0])
	}
	if hashes[2].Index != 0 {
		t.Errorf("hashes[2].Index = %d, want 0", hashes[2].Index)
	}
}

func TestComputedCodeHashesShortLastPage(t *testing.T) {
	image := bytes.Repeat([]byte{0x42}, 9000)
	buf := fixture.CodeDirectory(fixture.CodeDirectorySpec{
		Version:    uint32(EarliestVersion),
		NCodeSlots: 3,
		CodeLimit:  9000,
		HashSize:   HashSizeSHA256,
		HashType:   uint8(HashSHA256),
		PageSize:   12, // 4096-byte pages
		Image:      image,
	})

	cd, err := ParseCodeDirectory(buf, 0)
	if err != nil {
		t.Fatalf("ParseCodeDirectory() error = %v", err)
	}
	hashes, err := cd.ComputedCodeHashes(image)
	if err != nil {
		t.Fatalf("ComputedCodeHashes() error = %v", err)
	}
	if len(hashes) != 3 {
		t.Fatalf("len(hashes) = %d, want 3", len(hashes))
	}
	want0, _ := digestBytes(HashSHA256, image[0:4096])
	want1, _ := digestBytes(HashSHA256, image[4096:8192])
	want2, _ := digestBytes(HashSHA256, image[8192:9000])
	if !bytes.Equal(hashes[0].Hash, want0) {
		t.Errorf("hashes[0] mismatch")
	}
	if !bytes.Equal(hashes[1].Hash, want1) {
		t.Errorf("hashes[1] mismatch")
	}
	if !bytes.Equal(hashes[2].Hash, want2) {
		t.Errorf("hashes[2] mismatch: final slot must cover [8192,9000)")
	}
}

func TestComputedCodeHashesGeometryMismatch(t *testing.T) {
	image := bytes.Repeat([]byte{0x01}, 9000)
	buf := fixture.CodeDirectory(fixture.CodeDirectorySpec{
		Version:    uint32(EarliestVersion),
		NCodeSlots: 4, // ceil(9000/4096) == 3; 4 over-declares
		CodeLimit:  9000,
		HashSize:   HashSizeSHA256,
		HashType:   uint8(HashSHA256),
		PageSize:   12,
		Image:      image,
	})
	cd, err := ParseCodeDirectory(buf, 0)
	if err != nil {
		t.Fatalf("ParseCodeDirectory() error = %v", err)
	}
	if _, err := cd.ComputedCodeHashes(image); err == nil {
		t.Fatal("ComputedCodeHashes() with over-declared slot count: want error, got nil")
	} else if cdErr, ok := err.(*Error); !ok || cdErr.Kind != ErrHashGeometryMismatch {
		t.Fatalf("ComputedCodeHashes() error = %v, want ErrHashGeometryMismatch", err)
	}
}

func TestCDHashDigestsExactlyLength(t *testing.T) {
	buf := fixture.CodeDirectory(fixture.CodeDirectorySpec{
		Version:    uint32(EarliestVersion),
		Identifier: "id",
		HashSize:   HashSizeSHA256,
		HashType:   uint8(HashSHA256),
	})
	// Append trailing bytes that must not be included in the CDHash digest.
	padded := append(append([]byte{}, buf...), 0xde, 0xad, 0xbe, 0xef)

	cd, err := ParseCodeDirectory(padded, 0)
	if err != nil {
		t.Fatalf("ParseCodeDirectory() error = %v", err)
	}
	got, err := cd.CDHash(padded, 0)
	if err != nil {
		t.Fatalf("CDHash() error = %v", err)
	}
	want, _ := digestBytes(HashSHA256, buf[:cd.Length])
	if got != hexString(want) {
		t.Errorf("CDHash() = %s, want digest over exactly Length bytes", got)
	}
}

func hexString(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}

func TestEffectiveCodeLimitPrefers64Bit(t *testing.T) {
	cd := CodeDirectory{CodeLimit: 100, CodeLimit64: 5000}
	if cd.EffectiveCodeLimit() != 5000 {
		t.Errorf("EffectiveCodeLimit() = %d, want 5000", cd.EffectiveCodeLimit())
	}
	cd2 := CodeDirectory{CodeLimit: 100}
	if cd2.EffectiveCodeLimit() != 100 {
		t.Errorf("EffectiveCodeLimit() = %d, want 100", cd2.EffectiveCodeLimit())
	}
}
