package calyx

import "math"

// trackBlockLength and trackBlockPartition define the single momentary
// window a Track attaches to its pre-filter: 400ms split into 4
// overlapping partials, per ITU-R BS.1770.
const (
	trackBlockLength    = 0.4
	trackBlockPartition = 4
)

// Track binds a PreFilter to one decoded audio stream, tracking sample
// peak alongside the filter's gated block statistics.
type Track struct {
	filter *PreFilter
	peak   float64
}

// NewTrack builds a Track analyzer for a stream at sampleRate with the
// given channel count.
func NewTrack(sampleRate uint32, channels int) *Track {
	filter := NewPreFilter(sampleRate, channels)
	filter.AddBlock(trackBlockLength, trackBlockPartition)

	return &Track{filter: filter}
}

// AddSample feeds one frame into the pre-filter and updates the running
// sample peak.
func (t *Track) AddSample(frame Frame) {
	t.filter.AddSample(frame)

	for _, s := range frame {
		if a := math.Abs(s); a > t.peak {
			t.peak = a
		}
	}
}

// Flush drains the pre-filter and returns the track's Stats and the
// observed sample peak.
func (t *Track) Flush() (*Stats, float64) {
	stats := t.filter.Flush()

	return stats[0], t.peak
}
