// Package ffmpeg is the decoder collaborator: it shells out to ffprobe
// to learn a file's sample rate and channel count, then to ffmpeg to
// produce raw float64 PCM on stdout, exposing both as the small
// Reader contract the pipeline's track analyzer consumes.
package ffmpeg

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os/exec"
	"time"

	"github.com/farcloser/primordium/fault"

	calyx "github.com/farcloser/calyx"
)

const (
	ffmpegName    = "ffmpeg"
	ffmpegTimeout = 5 * time.Minute
)

// Reader streams decoded frames from one audio file.
type Reader struct {
	cmd    *exec.Cmd
	stdout *bufio.Reader
	format Format

	cancel context.CancelFunc
}

// Open starts an ffmpeg process decoding path to interleaved float64le
// PCM and returns a Reader bound to its stdout.
func Open(ctx context.Context, path string, format Format) (*Reader, error) {
	ffmpegPath, found := binaryAvailable(ffmpegName)
	if !found {
		return nil, fmt.Errorf("%w: %s", fault.ErrMissingRequirements, ffmpegName)
	}

	ctx, cancel := context.WithTimeout(ctx, ffmpegTimeout)

	//nolint:gosec // path is user-provided input for decoding media files
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-i", path,
		"-map", "0:a:0",
		"-f", "f64le",
		"-acodec", "pcm_f64le",
		"-v", "quiet",
		"-",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()

		return nil, fmt.Errorf("%w: %w", fault.ErrCommandFailure, err)
	}

	if err := cmd.Start(); err != nil {
		cancel()

		return nil, fmt.Errorf("%w: %w", fault.ErrCommandFailure, err)
	}

	return &Reader{
		cmd:    cmd,
		stdout: bufio.NewReaderSize(stdout, 64*1024),
		format: format,
		cancel: cancel,
	}, nil
}

// SampleRate reports the stream's sample rate.
func (r *Reader) SampleRate() uint32 { return r.format.SampleRate }

// Channels reports the stream's channel count.
func (r *Reader) Channels() int { return r.format.Channels }

// Read yields the next frame, or ok=false at end of stream.
func (r *Reader) Read() (calyx.Frame, bool, error) {
	frame := make(calyx.Frame, r.format.Channels)

	for ch := range frame {
		var bits uint64
		if err := binary.Read(r.stdout, binary.LittleEndian, &bits); err != nil {
			if err == io.EOF && ch == 0 {
				return nil, false, nil
			}

			return nil, false, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
		}

		frame[ch] = math.Float64frombits(bits)
	}

	return frame, true, nil
}

// Close waits for ffmpeg to exit and releases its resources. Any
// nonzero exit after a partial read is logged rather than surfaced,
// matching the pipeline's "decode error mid-stream: log and drop the
// entry" rule.
func (r *Reader) Close() {
	defer r.cancel()

	if err := r.cmd.Wait(); err != nil {
		slog.Debug("ffmpeg.Reader.Close", "error", err)
	}
}
