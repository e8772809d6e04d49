// Package id3 wraps github.com/bogem/id3v2/v2 to satisfy the tag.File
// contract for MP3 containers.
package id3

import (
	"errors"
	"fmt"

	"github.com/bogem/id3v2/v2"

	"github.com/farcloser/primordium/fault"
)

const normDescription = "iTunNORM"

var errSaveFailure = errors.New("failed to save ID3v2 tag")

// File is an MP3 file's ID3v2 tag, opened read-write.
type File struct {
	path string
	tag  *id3v2.Tag
}

// Open reads the ID3v2 tag from path, creating an empty one if the file
// has none.
func Open(path string) (*File, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	if tag == nil {
		return nil, fmt.Errorf("%w: no ID3v2 tag in %s", fault.ErrReadFailure, path)
	}

	return &File{path: path, tag: tag}, nil
}

func (f *File) Path() string { return f.path }

func (f *File) Artist() (string, bool) {
	v := f.tag.Artist()

	return v, v != ""
}

func (f *File) Album() (string, bool) {
	v := f.tag.Album()

	return v, v != ""
}

// Compilation reads the TCMP text frame: per spec, only its first byte
// is consulted, treated as nonzero the way a single "1" character or a
// raw nonzero byte both are.
func (f *File) Compilation() bool {
	text := f.tag.GetTextFrame(id3v2.NewFrameID("TCMP")).Text
	if text == "" {
		return false
	}

	return text[0] != '0' && text[0] != 0
}

// SetNormalization removes only the prior iTunNORM comment frame,
// leaving any other comment untouched, then adds the replacement.
func (f *File) SetNormalization(text string) {
	commentsID := f.tag.CommonID("Comments")

	kept := make([]id3v2.Framer, 0)

	for _, fr := range f.tag.GetFrames(commentsID) {
		if c, ok := fr.(id3v2.CommentFrame); ok && c.Description == normDescription {
			continue
		}

		kept = append(kept, fr)
	}

	f.tag.DeleteFrames(commentsID)

	for _, fr := range kept {
		f.tag.AddFrame(commentsID, fr)
	}

	f.tag.AddCommentFrame(id3v2.CommentFrame{
		Encoding:    id3v2.EncodingUTF8,
		Language:    "eng",
		Description: normDescription,
		Text:        text,
	})
}

func (f *File) Save() error {
	if err := f.tag.Save(); err != nil {
		return fmt.Errorf("%w: %w", errSaveFailure, err)
	}

	return nil
}

// Close releases the underlying file handle.
func (f *File) Close() error {
	return f.tag.Close()
}
