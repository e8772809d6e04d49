// Package pipeline implements the batch driver: a directory walk feeds
// a bounded work queue, a fixed worker pool runs the loudness engine
// over each file, and a serial consumer writes the resulting iTunNORM
// comments once every worker has finished.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	calyx "github.com/farcloser/calyx"
	"github.com/farcloser/calyx/internal/config"
	"github.com/farcloser/calyx/internal/decode/ffmpeg"
	"github.com/farcloser/calyx/internal/normalize"
	"github.com/farcloser/calyx/internal/tag"
	"github.com/farcloser/calyx/internal/tag/id3"
	mp4tag "github.com/farcloser/calyx/internal/tag/mp4"
)

var errUnsupportedExtension = errors.New("unsupported extension")

// AlbumKey groups tracks sharing an (artist, album) pair the same way
// the driver's producer-local map does.
type AlbumKey string

func albumKey(artist, album string) AlbumKey {
	return AlbumKey(artist + "\x00" + album)
}

// Entry is one unit of work: a tag handle, its optional shared album
// group, and (once a worker finishes it) the analysis outcome.
type Entry struct {
	Path  string
	Tag   tag.File
	Group *calyx.Aggregator

	Stats *calyx.Stats
	Peak  float64
}

// resultSink collects worker output without ever blocking a worker on
// a reader, the property the spec's "unbounded result channel" exists
// for. Go channels have no true unbounded mode, so this uses a
// mutex-guarded slice instead of an oversized buffer.
type resultSink struct {
	mu      sync.Mutex
	entries []*Entry
}

func (r *resultSink) push(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, e)
}

func (r *resultSink) drain() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.entries
}

// Run walks roots, analyzes every supported file it finds, and writes
// the resulting iTunNORM comment to each file's tag (unless opts.DryRun
// is set). Per-file errors are logged and do not abort the run.
func Run(ctx context.Context, roots []string, opts config.Options) error {
	workers := opts.WorkerCount()

	workCh := make(chan *Entry, workers)
	results := &resultSink{}
	groups := &groupMap{groups: make(map[AlbumKey]*calyx.Aggregator)}

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for entry := range workCh {
				analyzeEntry(ctx, entry, results)
			}
		}()
	}

	for _, root := range roots {
		walkRoot(root, groups, workCh)
	}

	close(workCh)
	wg.Wait()

	for _, entry := range results.drain() {
		writeNormalization(entry, opts)
		closeTag(entry)
	}

	return nil
}

func closeTag(entry *Entry) {
	if err := entry.Tag.Close(); err != nil {
		slog.Warn("pipeline: tag close failed", "path", entry.Path, "error", err)
	}
}

// groupMap is the producer-local (artist, album) -> Aggregator map.
// Only the producer (walkRoot) looks groups up; workers reach a group's
// Aggregator through Entry.Group.
type groupMap struct {
	mu     sync.Mutex
	groups map[AlbumKey]*calyx.Aggregator
}

func (g *groupMap) lookupOrCreate(key AlbumKey) *calyx.Aggregator {
	g.mu.Lock()
	defer g.mu.Unlock()

	if agg, ok := g.groups[key]; ok {
		return agg
	}

	agg := calyx.NewAggregator()
	g.groups[key] = agg

	return agg
}

func openTag(path string) (tag.File, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return id3.Open(path)
	case ".m4a":
		return mp4tag.Open(path)
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedExtension, path)
	}
}

func walkRoot(root string, groups *groupMap, workCh chan<- *Entry) {
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			slog.Warn("pipeline: walk error", "path", path, "error", err)

			return nil
		}

		if d.IsDir() {
			return nil
		}

		f, err := openTag(path)
		if err != nil {
			if !errors.Is(err, errUnsupportedExtension) {
				slog.Warn("pipeline: failed to open tag", "path", path, "error", err)
			}

			return nil
		}

		entry := &Entry{Path: path, Tag: f}

		artist, hasArtist := f.Artist()
		album, hasAlbum := f.Album()

		if !f.Compilation() && hasArtist && hasAlbum {
			entry.Group = groups.lookupOrCreate(albumKey(artist, album))
		}

		workCh <- entry

		return nil
	})
	if err != nil {
		slog.Warn("pipeline: walk error", "root", root, "error", err)
	}
}

func analyzeEntry(ctx context.Context, entry *Entry, results *resultSink) {
	format, err := ffmpeg.Probe(ctx, entry.Path)
	if err != nil {
		slog.Warn("pipeline: probe failed", "path", entry.Path, "error", err)
		closeTag(entry)

		return
	}

	reader, err := ffmpeg.Open(ctx, entry.Path, format)
	if err != nil {
		slog.Warn("pipeline: decode open failed", "path", entry.Path, "error", err)
		closeTag(entry)

		return
	}
	defer reader.Close()

	track := calyx.NewTrack(reader.SampleRate(), reader.Channels())

	for {
		frame, ok, err := reader.Read()
		if err != nil {
			slog.Warn("pipeline: decode error", "path", entry.Path, "error", err)
			closeTag(entry)

			return
		}

		if !ok {
			break
		}

		track.AddSample(frame)
	}

	stats, peak := track.Flush()

	if entry.Group != nil {
		entry.Group.Merge(stats, peak)
	}

	entry.Stats = stats
	entry.Peak = peak

	results.push(entry)
}

func writeNormalization(entry *Entry, opts config.Options) {
	trackGain := entry.Stats.GetMean(opts.GateLU).ToGain()
	trackPeak := normalize.Peak(entry.Peak)

	albumGain, albumPeak := trackGain, trackPeak
	if entry.Group != nil {
		albumGain = entry.Group.Stats().GetMean(opts.GateLU).ToGain()
		albumPeak = normalize.Peak(entry.Group.Peak())
	}

	text := normalize.Format(normalize.Fields{
		TrackGainLU: trackGain,
		AlbumGainLU: albumGain,
		TrackPeak:   trackPeak,
		AlbumPeak:   albumPeak,
	})

	if opts.DryRun {
		return
	}

	entry.Tag.SetNormalization(text)

	if err := entry.Tag.Save(); err != nil {
		slog.Warn("pipeline: save failed", "path", entry.Path, "error", err)
	}
}
