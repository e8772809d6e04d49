package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/farcloser/primordium/fault"
)

const (
	ffprobeName    = "ffprobe"
	ffprobeTimeout = 60 * time.Second
)

// probeResult is the slice of ffprobe's JSON output the loudness engine
// actually needs: sample rate and channel count of the first audio
// stream.
type probeResult struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

// Format is the sample rate / channel count pair a decoder Reader needs
// to construct a matching calyx.Track.
type Format struct {
	SampleRate uint32
	Channels   int
}

// Probe runs ffprobe on path and reports the first audio stream's format.
func Probe(ctx context.Context, path string) (Format, error) {
	ffprobePath, found := binaryAvailable(ffprobeName)
	if !found {
		return Format{}, fmt.Errorf("%w: %s", fault.ErrMissingRequirements, ffprobeName)
	}

	ctx, cancel := context.WithTimeout(ctx, ffprobeTimeout)
	defer cancel()

	//nolint:gosec // path is user-provided input for probing media files, same as upstream
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		path,
	)

	var stderr bytes.Buffer

	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Format{}, fmt.Errorf("%w: after %v", fault.ErrTimeout, ffprobeTimeout)
		}

		return Format{}, fmt.Errorf("%w: %s: %w", fault.ErrCommandFailure, stderr.String(), err)
	}

	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return Format{}, fmt.Errorf("%w: %w", fault.ErrInvalidJSON, err)
	}

	for _, s := range result.Streams {
		if s.CodecType != "audio" {
			continue
		}

		rate, err := strconv.ParseUint(s.SampleRate, 10, 32)
		if err != nil {
			return Format{}, fmt.Errorf("%w: invalid sample_rate %q", fault.ErrInvalidJSON, s.SampleRate)
		}

		return Format{SampleRate: uint32(rate), Channels: s.Channels}, nil
	}

	return Format{}, fmt.Errorf("%w: no audio stream in %s", fault.ErrReadFailure, path)
}
