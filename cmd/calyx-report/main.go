// Command calyx-report runs the same loudness engine as calyx over a
// folder but never writes a tag: it emits a gzip-compressed JSONL
// report of per-track loudness, recording each track's artist and album
// but computing no album-level gain or peak, the preview a batch
// tagging run would want to be trusted before it starts mutating a
// library.
package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v3"

	calyx "github.com/farcloser/calyx"
	"github.com/farcloser/calyx/internal/config"
	"github.com/farcloser/calyx/internal/decode/ffmpeg"
	"github.com/farcloser/calyx/internal/normalize"
	"github.com/farcloser/calyx/internal/tag"
	"github.com/farcloser/calyx/internal/tag/id3"
	mp4tag "github.com/farcloser/calyx/internal/tag/mp4"
	"github.com/farcloser/calyx/version"
)

const (
	outputFile = "calyx-report.jsonl"

	lowerQuantile = 0.10
	upperQuantile = 0.95
)

var (
	errNotDirectory = errors.New("not a directory")
	errNoAudioFiles = errors.New("no .mp3 or .m4a files found")
)

// Record is one line of the JSONL report.
type Record struct {
	File       string  `json:"file"`
	Error      string  `json:"error,omitempty"`
	Artist     string  `json:"artist,omitempty"`
	Album      string  `json:"album,omitempty"`
	Gain       float64 `json:"track_gain_lu"`
	Peak       int64   `json:"track_peak"`
	Integrated float64 `json:"integrated_lufs"`
	Range      float64 `json:"loudness_range_lu"`
}

func main() {
	ctx := context.Background()

	appl := &cli.Command{
		Name:      version.Name() + "-report",
		Usage:     "Scan a music collection and write a read-only calyx JSONL report",
		Version:   version.Version() + " " + version.Commit(),
		ArgsUsage: "<folder>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"j"},
				Usage:   "Number of concurrent workers",
				Value:   int64(runtime.GOMAXPROCS(0)),
			},
			&cli.FloatFlag{
				Name:  "gate",
				Usage: "Relative gate, in LU below the ungated mean",
				Value: config.DefaultGateLU,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("expected exactly one argument: folder path")
			}

			workers := max(int(cmd.Int("workers")), 1)

			return runReport(ctx, cmd.Args().First(), workers, cmd.Float("gate"))
		},
	}

	if err := appl.Run(ctx, os.Args); err != nil {
		slog.Error("failed to run", "error", err)
		os.Exit(1)
	}
}

func runReport(ctx context.Context, folder string, workers int, gateLU float64) error {
	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%q: %w", folder, errNotDirectory)
	}

	files, err := collectAudioFiles(folder)
	if err != nil {
		return fmt.Errorf("scanning folder: %w", err)
	}

	if len(files) == 0 {
		return fmt.Errorf("%q: %w", folder, errNoAudioFiles)
	}

	fmt.Fprintf(os.Stderr, "Found %d files to analyze (%d workers)\n", len(files), workers)

	startTime := time.Now()
	results := make([]Record, len(files))

	var progress atomic.Int64

	sem := make(chan struct{}, workers)

	var waitGroup sync.WaitGroup

	for idx, filePath := range files {
		waitGroup.Add(1)

		go func(idx int, filePath string) {
			defer waitGroup.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = processFile(ctx, filePath, gateLU)

			done := progress.Add(1)
			fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", done, len(files), filePath)
		}(idx, filePath)
	}

	waitGroup.Wait()

	if err := writeReport(results); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if err := compressFile(outputFile); err != nil {
		slog.Error("compressing report", "error", err)
	}

	failed := 0

	for idx := range results {
		if results[idx].Error != "" {
			failed++
		}
	}

	elapsed := time.Since(startTime)
	fmt.Fprintf(os.Stderr, "\nDone: %d files in %s (%d failed)\n", len(files), elapsed.Truncate(time.Millisecond), failed)
	fmt.Fprintf(os.Stderr, "Report written to %s (and %s.gz)\n", outputFile, outputFile)

	return nil
}

func openTag(path string) (tag.File, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return id3.Open(path)
	case ".m4a":
		return mp4tag.Open(path)
	default:
		return nil, fmt.Errorf("unsupported extension: %s", path)
	}
}

func processFile(ctx context.Context, filePath string, gateLU float64) Record {
	f, err := openTag(filePath)
	if err != nil {
		return Record{File: filePath, Error: fmt.Sprintf("open tag failed: %v", err)}
	}
	defer f.Close()

	artist, _ := f.Artist()
	album, _ := f.Album()

	format, err := ffmpeg.Probe(ctx, filePath)
	if err != nil {
		return Record{File: filePath, Artist: artist, Album: album, Error: fmt.Sprintf("probe failed: %v", err)}
	}

	reader, err := ffmpeg.Open(ctx, filePath, format)
	if err != nil {
		return Record{File: filePath, Artist: artist, Album: album, Error: fmt.Sprintf("decode open failed: %v", err)}
	}
	defer reader.Close()

	track := calyx.NewTrack(reader.SampleRate(), reader.Channels())

	for {
		frame, ok, err := reader.Read()
		if err != nil {
			return Record{File: filePath, Artist: artist, Album: album, Error: fmt.Sprintf("decode error: %v", err)}
		}

		if !ok {
			break
		}

		track.AddSample(frame)
	}

	stats, peak := track.Flush()

	return Record{
		File:       filePath,
		Artist:     artist,
		Album:      album,
		Gain:       stats.GetMean(gateLU).ToGain(),
		Peak:       normalize.Peak(peak),
		Integrated: float64(stats.GetMean(gateLU)),
		Range:      float64(stats.GetRange(gateLU, lowerQuantile, upperQuantile)),
	}
}

func writeReport(results []Record) error {
	out, err := os.Create(outputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	enc := json.NewEncoder(out)

	for idx := range results {
		if err := enc.Encode(&results[idx]); err != nil {
			slog.Error("writing record", "file", results[idx].File, "error", err)
		}
	}

	return out.Close()
}

func collectAudioFiles(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".mp3" || ext == ".m4a" {
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(files)

	return files, nil
}

func compressFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // reading our own output file
	if err != nil {
		return err
	}

	gzFile, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer gzFile.Close()

	gzWriter := gzip.NewWriter(gzFile)

	if _, err := gzWriter.Write(data); err != nil {
		return err
	}

	return gzWriter.Close()
}
