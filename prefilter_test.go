package calyx

import (
	"math"
	"math/cmplx"
	"testing"
)

// response evaluates a biquad's transfer function magnitude at frequency
// hz for a filter running at sampleRate.
func response(b biquad, hz, sampleRate float64) float64 {
	w := 2 * math.Pi * hz / sampleRate
	z := cmplx.Exp(complex(0, -w))

	num := complex(b.b0, 0) + complex(b.b1, 0)*z + complex(b.b2, 0)*z*z
	den := complex(1, 0) + complex(b.a1, 0)*z + complex(b.a2, 0)*z*z

	return cmplx.Abs(num / den)
}

func TestKWeightingBlocksDC(t *testing.T) {
	f1 := biquadF1Reference48k()
	f2 := biquadF2Reference48k()

	got := response(f1, 0, 48000) * response(f2, 0, 48000)
	if !almostEqual(got, 0, 1e-9) {
		t.Errorf("K-weighting DC response = %v, want 0 (RLB high-pass blocks DC)", got)
	}
}

func TestKWeighting1kHzGain(t *testing.T) {
	f1 := biquadF1Reference48k()
	f2 := biquadF2Reference48k()

	mag := response(f1, 1000, 48000) * response(f2, 1000, 48000)
	db := 20 * math.Log10(mag)

	if !almostEqual(db, 4.0, 0.3) {
		t.Errorf("K-weighting 1kHz gain = %v dB, want ~ +4 dB", db)
	}
}

func TestBlockAlignmentAt48k(t *testing.T) {
	b := newBlock(48000, 0.4, 4)

	if b.overlapSize != 4800 {
		t.Fatalf("overlapSize = %d, want 4800", b.overlapSize)
	}

	for range 19200 - 1 {
		b.addSqs(PowerOf(-20))
	}

	if b.stats.pass1Count != 0 {
		t.Fatalf("pass1Count before first finalization = %d, want 0", b.stats.pass1Count)
	}

	b.addSqs(PowerOf(-20))

	if b.stats.pass1Count != 1 {
		t.Fatalf("pass1Count after 19200 frames = %d, want 1", b.stats.pass1Count)
	}

	for range 4800 {
		b.addSqs(PowerOf(-20))
	}

	if b.stats.pass1Count != 2 {
		t.Fatalf("pass1Count after a further 4800 frames = %d, want 2", b.stats.pass1Count)
	}
}

func TestPreFilterSilenceYieldsNoGatedBlocks(t *testing.T) {
	f := NewPreFilter(48000, 2)
	f.AddBlock(trackBlockLength, trackBlockPartition)

	for range 48000 * 2 {
		f.AddSample(Frame{0, 0})
	}

	stats := f.Flush()
	if got := stats[0].GetMean(-10); got != LoudnessMin {
		t.Errorf("GetMean on silence = %v, want %v", got, LoudnessMin)
	}
}
