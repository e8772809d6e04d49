package calyx

// Frame is one sample instant across however many channels the decoder
// reports. Only the first maxChannels are K-weighted; the rest are
// ignored, matching the BS.1770 reference channel layout.
type Frame []float64

const (
	bufSize     = 9
	maxChannels = 5
)

// channelWeights are the BS.1770 per-channel weights: center-front
// channels (L, R, C) at unity, surrounds (Ls, Rs) boosted 1.41x.
var channelWeights = [maxChannels]float64{1.0, 1.0, 1.0, 1.41, 1.41}

// PreFilter is the ITU-R BS.1770 K-weighting stage: it runs every
// incoming Frame through the cascaded head-effect and RLB-weighting
// biquads, accumulates the weighted sum of squares across channels, and
// forwards it to every attached sliding block.
type PreFilter struct {
	blocks []*block

	sampleRate uint32
	channels   int

	f1, f2 biquad

	ringOffs int
	ringSize int
	ringBuf  [][bufSize]Power
}

// NewPreFilter builds a PreFilter for the given sample rate and channel
// count, re-quantizing the 48kHz reference K-weighting coefficients to
// sampleRate.
func NewPreFilter(sampleRate uint32, channels int) *PreFilter {
	if channels > maxChannels {
		channels = maxChannels
	}

	return &PreFilter{
		sampleRate: sampleRate,
		channels:   channels,

		f1: biquadF1Reference48k().reQuantize(sampleRate),
		f2: biquadF2Reference48k().reQuantize(sampleRate),

		ringOffs: 1,
		ringSize: 1,
		ringBuf:  make([][bufSize]Power, channels),
	}
}

// AddBlock attaches a sliding window spanning length seconds, split into
// partition overlapping partials, to this filter.
func (f *PreFilter) AddBlock(length float64, partition int) {
	f.blocks = append(f.blocks, newBlock(f.sampleRate, length, partition))
}

func xIndex(offs, i int) int {
	idx := offs + i
	if idx < 0 {
		return bufSize + idx
	}

	return idx
}

func yIndex(offs, i int) int { return xIndex(offs-6, i) }
func zIndex(offs, i int) int { return xIndex(offs-3, i) }

// AddSample runs one frame through the K-weighting cascade and forwards
// the resulting weighted sum of squares to every attached block.
func (f *PreFilter) AddSample(sample Frame) {
	offs := f.ringOffs

	var wssqs Power

	n := f.channels
	if len(sample) < n {
		n = len(sample)
	}

	for ch := range n {
		buf := &f.ringBuf[ch]

		buf[xIndex(offs, 0)] = Power(sample[ch])
		x := buf[xIndex(offs, 0)]

		if f.ringSize > 1 {
			buf[yIndex(offs, 0)] = x*Power(f.f1.b0) + buf[xIndex(offs, -1)]*Power(f.f1.b1) + buf[xIndex(offs, -2)]*Power(f.f1.b2) -
				buf[yIndex(offs, -1)]*Power(f.f1.a1) - buf[yIndex(offs, -2)]*Power(f.f1.a2)
			y := buf[yIndex(offs, 0)]

			buf[zIndex(offs, 0)] = y*Power(f.f2.b0) + buf[yIndex(offs, -1)]*Power(f.f2.b1) + buf[yIndex(offs, -2)]*Power(f.f2.b2) -
				buf[zIndex(offs, -1)]*Power(f.f2.a1) - buf[zIndex(offs, -2)]*Power(f.f2.a2)
			z := buf[zIndex(offs, 0)]

			wssqs += z * z * Power(channelWeights[ch])
		}
	}

	for _, b := range f.blocks {
		b.addSqs(wssqs)
	}

	if f.ringSize < 2 {
		f.ringSize++
	}

	f.ringOffs++
	if f.ringOffs == bufSize {
		f.ringOffs = 0
	}
}

// Flush drains the two-sample filter delay with a final silent frame and
// returns each attached block's accumulated Stats, in attachment order.
func (f *PreFilter) Flush() []*Stats {
	if f.ringSize > 1 {
		f.AddSample(make(Frame, maxChannels))
	}

	stats := make([]*Stats, len(f.blocks))
	for i, b := range f.blocks {
		stats[i] = b.stats
	}

	return stats
}
