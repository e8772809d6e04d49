package calyx

import "math"

// block is one ITU-R BS.1770 sliding window definition (e.g. the 400ms
// momentary window or a loudness-range analysis window): it partitions
// incoming gated power into overlapping partials and finalizes each
// partial's Stats contribution once a full overlap period has elapsed.
type block struct {
	stats *Stats

	gate        Power // absolute silence gate
	overlapSize int   // samples per 1/partition slice of the window
	scale       float64

	ringSize  int
	ringUsed  int
	ringCount int
	ringOffs  int
	ringWmsq  []Power
}

// newBlock creates a block spanning length seconds at sampleRate,
// divided into partition overlapping partials.
func newBlock(sampleRate uint32, length float64, partition int) *block {
	overlapSize := int(math.Round(length * float64(sampleRate) / float64(partition)))

	return &block{
		stats: NewStats(),

		gate:        PowerMin,
		overlapSize: overlapSize,
		scale:       1.0 / float64(partition*overlapSize),

		ringSize: partition,
		ringUsed: 1,
		ringWmsq: make([]Power, partition),
	}
}

// addSqs feeds one sample's weighted sum-of-squares into every in-flight
// partial. Every overlapSize samples it finalizes and gates the oldest
// partial, once that partial spans a full window of
// partition*overlapSize samples.
func (b *block) addSqs(wssqs Power) {
	scaled := wssqs * Power(b.scale)
	for i := range b.ringUsed {
		b.ringWmsq[i] += scaled
	}

	b.ringCount++
	if b.ringCount != b.overlapSize {
		return
	}

	nextOffs := b.ringOffs + 1
	if nextOffs >= b.ringSize {
		nextOffs = 0
	}

	if b.ringUsed == b.ringSize {
		prevWmsq := b.ringWmsq[nextOffs]
		if b.gate < prevWmsq {
			b.stats.addSqs(prevWmsq)
		}
	}

	b.ringWmsq[nextOffs] = 0
	b.ringCount = 0
	b.ringOffs = nextOffs

	if b.ringUsed < b.ringSize {
		b.ringUsed++
	}
}
