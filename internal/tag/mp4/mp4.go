// Package mp4 wraps github.com/abema/go-mp4 to satisfy the tag.File
// contract for M4A containers. Unlike the MP3 side, go-mp4 is a
// box-level codec with no higher-level "iTunes metadata" concept, so
// this package does the `moov.udta.meta.ilst` item parsing itself.
package mp4

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	mp4 "github.com/abema/go-mp4"

	"github.com/farcloser/primordium/fault"
)

var (
	errNoIlst        = errors.New("no moov.udta.meta.ilst box present")
	errWriteFailure  = errors.New("failed to rewrite MP4 metadata")
	ilstPath         = mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeUdta(), mp4.BoxTypeMeta(), mp4.BoxTypeIlst()}
	normFreeformMean = "com.apple.iTunes"
	normFreeformName = "iTunNORM"
)

// item is one parsed ilst entry: a predefined 4CC atom (©ART, ©alb,
// cpil, ...) or a freeform "----" atom identified by mean/name.
type item struct {
	fourcc   [4]byte
	freeform bool
	mean     string
	name     string
	data     []byte
}

// File is an M4A file's iTunes-style metadata, opened read-write.
type File struct {
	path  string
	items []item
}

// Open parses the ilst box out of path.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}
	defer f.Close()

	boxes, err := mp4.ExtractBoxWithPayload(f, nil, ilstPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	if len(boxes) == 0 {
		return nil, fmt.Errorf("%w: %s", errNoIlst, path)
	}

	ilst, ok := boxes[0].Payload.(*mp4.Ilst)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected ilst payload in %s", errNoIlst, path)
	}

	return &File{path: path, items: decodeIlst(ilst)}, nil
}

func (f *File) Path() string { return f.path }

func (f *File) Artist() (string, bool) {
	return f.stringItem([4]byte{0xA9, 'A', 'R', 'T'})
}

func (f *File) Album() (string, bool) {
	return f.stringItem([4]byte{0xA9, 'a', 'l', 'b'})
}

func (f *File) stringItem(fourcc [4]byte) (string, bool) {
	for _, it := range f.items {
		if !it.freeform && it.fourcc == fourcc {
			return string(it.data), len(it.data) > 0
		}
	}

	return "", false
}

// Compilation reads the cpil atom. Per the behavior this repository
// preserves: only a single-byte payload is honored, a multi-byte one is
// treated as non-compilation rather than rejected.
func (f *File) Compilation() bool {
	for _, it := range f.items {
		if it.freeform || it.fourcc != [4]byte{'c', 'p', 'i', 'l'} {
			continue
		}

		return len(it.data) == 1 && it.data[0] != 0
	}

	return false
}

// SetNormalization replaces any existing com.apple.iTunes:iTunNORM
// freeform atom with one holding text.
func (f *File) SetNormalization(text string) {
	kept := f.items[:0]

	for _, it := range f.items {
		if it.freeform && it.mean == normFreeformMean && it.name == normFreeformName {
			continue
		}

		kept = append(kept, it)
	}

	f.items = append(kept, item{
		freeform: true,
		mean:     normFreeformMean,
		name:     normFreeformName,
		data:     []byte(text),
	})
}

// Save re-encodes the ilst box, patches every ancestor box's declared
// size by the resulting length delta, and splices the result back into
// the file in place of the original.
func (f *File) Save() error {
	orig, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	boxes, err := mp4.ExtractBox(bytes.NewReader(orig), nil, ilstPath)
	if err != nil || len(boxes) == 0 {
		return fmt.Errorf("%w: %s", errNoIlst, f.path)
	}

	encoded, err := encodeIlst(f.items)
	if err != nil {
		return fmt.Errorf("%w: %w", errWriteFailure, err)
	}

	delta := len(encoded) - int(boxes[0].Size)

	if err := patchAncestorSizes(orig, ilstPath[:len(ilstPath)-1], delta); err != nil {
		return fmt.Errorf("%w: %w", errWriteFailure, err)
	}

	rewritten := spliceBox(orig, boxes[0], encoded)

	if err := os.WriteFile(f.path, rewritten, 0o644); err != nil {
		return fmt.Errorf("%w: %w", errWriteFailure, err)
	}

	return nil
}

// Close is a no-op: Open only ever holds the file handle open for the
// duration of the initial read.
func (f *File) Close() error { return nil }

// patchAncestorSizes adds delta to the declared size of every box along
// path, in place, in buf. Every box on a path to a box being resized
// encloses it, so its own declared size must grow or shrink by the same
// amount; skipping this leaves a container whose ancestor boxes lie
// about their length once the ilst box they enclose changes size.
func patchAncestorSizes(buf []byte, path mp4.BoxPath, delta int) error {
	if delta == 0 {
		return nil
	}

	for i := 1; i <= len(path); i++ {
		boxes, err := mp4.ExtractBox(bytes.NewReader(buf), nil, path[:i])
		if err != nil || len(boxes) == 0 {
			return fmt.Errorf("%w: ancestor %v", errNoIlst, path[:i])
		}

		if err := patchBoxSize(buf, boxes[0], delta); err != nil {
			return err
		}
	}

	return nil
}

// patchBoxSize rewrites one box's header size field by delta. Handles
// both the ordinary 32-bit size field and the rare 64-bit "largesize"
// extension (size field == 1, actual size stored as the 8 bytes right
// after the 4-byte box type).
func patchBoxSize(buf []byte, box *mp4.BoxInfo, delta int) error {
	offset := int(box.Offset)

	size := binary.BigEndian.Uint32(buf[offset : offset+4])
	if size == 1 {
		largeOffset := offset + 8
		large := binary.BigEndian.Uint64(buf[largeOffset : largeOffset+8])
		binary.BigEndian.PutUint64(buf[largeOffset:largeOffset+8], uint64(int64(large)+int64(delta)))

		return nil
	}

	newSize := int64(size) + int64(delta)
	if newSize < 0 || newSize > math.MaxUint32 {
		return fmt.Errorf("%w: ancestor size %d out of range", errWriteFailure, newSize)
	}

	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(newSize))

	return nil
}

func decodeIlst(ilst *mp4.Ilst) []item {
	items := make([]item, 0, len(ilst.Items))

	for _, raw := range ilst.Items {
		it := item{data: raw.Data}
		if raw.Mean != "" || raw.Name != "" {
			it.freeform = true
			it.mean = raw.Mean
			it.name = raw.Name
		} else {
			copy(it.fourcc[:], raw.FourCC[:])
		}

		items = append(items, it)
	}

	return items
}

func encodeIlst(items []item) ([]byte, error) {
	ilst := &mp4.Ilst{}
	for _, it := range items {
		raw := mp4.IlstItem{Data: it.data}
		if it.freeform {
			raw.Mean = it.mean
			raw.Name = it.name
		} else {
			copy(raw.FourCC[:], it.fourcc[:])
		}

		ilst.Items = append(ilst.Items, raw)
	}

	var buf bytes.Buffer
	if _, err := mp4.Marshal(&buf, ilst, mp4.Context{}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// spliceBox replaces the byte range identified by box in orig with
// encoded, returning a new full-file byte slice. The box size field is
// not otherwise touched here; callers are expected to have sized
// encoded to include its own updated header.
func spliceBox(orig []byte, box *mp4.BoxInfo, encoded []byte) []byte {
	start := int(box.Offset)
	end := start + int(box.Size)

	out := make([]byte, 0, len(orig)-int(box.Size)+len(encoded))
	out = append(out, orig[:start]...)
	out = append(out, encoded...)
	out = append(out, orig[end:]...)

	return out
}
