package mp4

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// writeBox wraps payload in a standard 32-bit-size/4cc box header.
func writeBox(boxType string, payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(buf)))
	copy(buf[4:8], boxType)
	copy(buf[8:], payload)

	return buf
}

// buildFixture hand-assembles the minimal ftyp/moov/udta/meta/ilst box
// tree calyx's mp4 package needs: just enough nesting for the
// moov.udta.meta.ilst box path to resolve, no hdlr/mvhd siblings since
// nothing here reads them.
func buildFixture(t *testing.T, artist, album string) []byte {
	t.Helper()

	ilstItems := []item{
		{fourcc: [4]byte{0xA9, 'A', 'R', 'T'}, data: []byte(artist)},
		{fourcc: [4]byte{0xA9, 'a', 'l', 'b'}, data: []byte(album)},
	}

	ilstBytes, err := encodeIlst(ilstItems)
	if err != nil {
		t.Fatalf("encodeIlst: %v", err)
	}

	metaPayload := append([]byte{0, 0, 0, 0}, ilstBytes...) // full-box version+flags
	metaBox := writeBox("meta", metaPayload)
	udtaBox := writeBox("udta", metaBox)
	moovBox := writeBox("moov", udtaBox)
	ftypBox := writeBox("ftyp", append([]byte("M4A "), 0, 0, 0, 0))

	return append(append([]byte{}, ftypBox...), moovBox...)
}

func newFixture(t *testing.T, artist, album string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "track.m4a")
	if err := os.WriteFile(path, buildFixture(t, artist, album), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	return path
}

func TestOpenReadsArtistAndAlbum(t *testing.T) {
	path := newFixture(t, "Test Artist", "Test Album")

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if artist, ok := f.Artist(); !ok || artist != "Test Artist" {
		t.Fatalf("Artist() = %q, %v, want %q, true", artist, ok, "Test Artist")
	}

	if album, ok := f.Album(); !ok || album != "Test Album" {
		t.Fatalf("Album() = %q, %v, want %q, true", album, ok, "Test Album")
	}
}

// TestRoundTripGrowsAncestorSizesCorrectly is the regression test for
// the ilst splice: adding a brand-new freeform atom always grows the
// box, so every ancestor's declared size must grow by the same delta
// or the file is left with a structurally invalid box tree.
func TestRoundTripGrowsAncestorSizesCorrectly(t *testing.T) {
	path := newFixture(t, "Test Artist", "Test Album")

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	longNorm := " 00000100 00000100 00000100 00000100 00000000 00000000 00000100 00000100 00000000 00000000"
	f.SetNormalization(longNorm)

	if err := f.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rewritten, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading rewritten fixture: %v", err)
	}

	assertBoxTreeConsistent(t, rewritten)

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen after Save: %v", err)
	}
	defer reopened.Close()

	if artist, ok := reopened.Artist(); !ok || artist != "Test Artist" {
		t.Fatalf("Artist() after round trip = %q, %v, want %q, true", artist, ok, "Test Artist")
	}

	if album, ok := reopened.Album(); !ok || album != "Test Album" {
		t.Fatalf("Album() after round trip = %q, %v, want %q, true", album, ok, "Test Album")
	}

	found := false

	for _, it := range reopened.items {
		if it.freeform && it.mean == normFreeformMean && it.name == normFreeformName {
			found = true

			if string(it.data) != longNorm {
				t.Fatalf("iTunNORM data = %q, want %q", it.data, longNorm)
			}
		}
	}

	if !found {
		t.Fatal("iTunNORM freeform atom missing after round trip")
	}
}

// assertBoxTreeConsistent walks ftyp/moov/udta/meta/ilst verifying each
// box's declared size field matches the span actually available in buf,
// catching the ancestor-size corruption the splice fix addresses.
func assertBoxTreeConsistent(t *testing.T, buf []byte) {
	t.Helper()

	offset := 0
	for offset < len(buf) {
		if offset+8 > len(buf) {
			t.Fatalf("truncated box header at offset %d", offset)
		}

		size := int(binary.BigEndian.Uint32(buf[offset : offset+4]))
		if size < 8 || offset+size > len(buf) {
			t.Fatalf("box at offset %d declares size %d, exceeds remaining %d bytes", offset, size, len(buf)-offset)
		}

		boxType := string(buf[offset+4 : offset+8])
		if boxType == "moov" {
			assertNestedBoxConsistent(t, buf[offset+8:offset+size])
		}

		offset += size
	}
}

func assertNestedBoxConsistent(t *testing.T, buf []byte) {
	t.Helper()

	offset := 0
	for offset < len(buf) {
		if offset+8 > len(buf) {
			t.Fatalf("truncated nested box header at offset %d", offset)
		}

		size := int(binary.BigEndian.Uint32(buf[offset : offset+4]))
		if size < 8 || offset+size > len(buf) {
			t.Fatalf("nested box at offset %d declares size %d, exceeds remaining %d bytes", offset, size, len(buf)-offset)
		}

		boxType := string(buf[offset+4 : offset+8])

		switch boxType {
		case "udta":
			assertNestedBoxConsistent(t, buf[offset+8:offset+size])
		case "meta":
			// meta is a full box: a 4-byte version/flags field precedes
			// its child boxes (hdlr, ilst, ...).
			childStart := offset + 8 + 4
			if childStart > offset+size {
				t.Fatalf("meta box too small for its version/flags header")
			}

			assertNestedBoxConsistent(t, buf[childStart:offset+size])
		}

		offset += size
	}
}
