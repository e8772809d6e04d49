package id3

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"
)

const normText = " 00000100 00000100 00000100 00000100 00000000 00000000 00000100 00000100 00000000 00000000"

func newFixture(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "track.mp3")
	if err := os.WriteFile(path, []byte("not real audio, id3v2 only needs a file to attach a tag to"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	return path
}

func TestRoundTripWritesNormalizationAndPreservesOtherFields(t *testing.T) {
	path := newFixture(t)

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	f.tag.SetArtist("Test Artist")
	f.tag.SetAlbum("Test Album")
	f.tag.AddCommentFrame(id3v2.CommentFrame{
		Encoding:    id3v2.EncodingUTF8,
		Language:    "eng",
		Description: "",
		Text:        "a pre-existing comment",
	})

	f.SetNormalization(normText)

	if err := f.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if artist, ok := reopened.Artist(); !ok || artist != "Test Artist" {
		t.Fatalf("Artist() = %q, %v, want %q, true", artist, ok, "Test Artist")
	}

	if album, ok := reopened.Album(); !ok || album != "Test Album" {
		t.Fatalf("Album() = %q, %v, want %q, true", album, ok, "Test Album")
	}

	var sawNorm, sawOther bool

	for _, fr := range reopened.tag.GetFrames(reopened.tag.CommonID("Comments")) {
		c, ok := fr.(id3v2.CommentFrame)
		if !ok {
			continue
		}

		switch c.Description {
		case normDescription:
			sawNorm = true

			if c.Text != normText {
				t.Fatalf("iTunNORM text = %q, want %q", c.Text, normText)
			}
		case "":
			sawOther = true

			if c.Text != "a pre-existing comment" {
				t.Fatalf("other comment text = %q, want unchanged", c.Text)
			}
		}
	}

	if !sawNorm {
		t.Fatal("iTunNORM comment missing after round trip")
	}

	if !sawOther {
		t.Fatal("pre-existing comment was lost by SetNormalization")
	}
}

func TestSetNormalizationReplacesOnlyPriorNormComment(t *testing.T) {
	path := newFixture(t)

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	f.SetNormalization("first")
	f.SetNormalization("second")

	frames := f.tag.GetFrames(f.tag.CommonID("Comments"))

	count := 0

	for _, fr := range frames {
		c, ok := fr.(id3v2.CommentFrame)
		if ok && c.Description == normDescription {
			count++

			if c.Text != "second" {
				t.Fatalf("surviving iTunNORM text = %q, want %q", c.Text, "second")
			}
		}
	}

	if count != 1 {
		t.Fatalf("found %d iTunNORM comment frames after two SetNormalization calls, want 1", count)
	}
}
