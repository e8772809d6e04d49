package calyx

import "math"

// biquad holds the coefficients of a normalized (a0 = 1) second order
// IIR section, tagged with the sample rate they were computed for.
// PreFilter applies it in direct form I.
type biquad struct {
	sampleRate uint32
	a1, a2     float64
	b0, b1, b2 float64
}

// biquadPs is the analog prototype (pole/zero) form recovered from a
// discrete biquad, used as the intermediate step when re-quantizing to a
// different sample rate.
type biquadPs struct {
	k, q, vb, vl, vh float64
}

// ps recovers the analog prototype by solving the bilinear-transform
// system backwards from the discrete coefficients.
func (b biquad) ps() biquadPs {
	x11 := b.a1 - 2.0
	x12 := b.a1
	x1 := -b.a1 - 2.0

	x21 := b.a2 - 1.0
	x22 := b.a2 + 1.0
	x2 := -b.a2 + 1.0

	dx := x22*x11 - x12*x21
	kSq := (x22*x1 - x12*x2) / dx
	kByQ := (x11*x2 - x21*x1) / dx
	a0 := 1.0 + kByQ + kSq

	k := math.Sqrt(kSq)

	return biquadPs{
		k:  k,
		q:  k / kByQ,
		vb: 0.5 * a0 * (b.b0 - b.b2) / kByQ,
		vl: 0.25 * a0 * (b.b0 + b.b1 + b.b2) / kSq,
		vh: 0.25 * a0 * (b.b0 - b.b1 + b.b2),
	}
}

// reQuantize returns the biquad re-derived for sampleRate, pre-warping
// and un-warping the analog prototype's corner frequency through the
// bilinear transform. No-op if already at sampleRate.
func (b biquad) reQuantize(sampleRate uint32) biquad {
	if b.sampleRate == sampleRate {
		return b
	}

	ps := b.ps()
	k := math.Tan((float64(b.sampleRate) / float64(sampleRate)) * math.Atan(ps.k))
	kSq := k * k
	kByQ := k / ps.q
	a0 := 1.0 + kByQ + kSq

	return biquad{
		sampleRate: sampleRate,
		a1:         (2.0 * (kSq - 1.0)) / a0,
		a2:         (1.0 - kByQ + kSq) / a0,
		b0:         (ps.vh + ps.vb*kByQ + ps.vl*kSq) / a0,
		b1:         (2.0 * (ps.vl*kSq - ps.vh)) / a0,
		b2:         (ps.vh - ps.vb*kByQ + ps.vl*kSq) / a0,
	}
}

// biquadF1Reference48k is the BS.1770 high-shelf (head effect) stage,
// specified at 48kHz.
func biquadF1Reference48k() biquad {
	return biquad{
		sampleRate: 48000,
		a1:         -1.69065929318241,
		a2:         0.73248077421585,
		b0:         1.53512485958697,
		b1:         -2.69169618940638,
		b2:         1.19839281085285,
	}
}

// biquadF2Reference48k is the BS.1770 high-pass (RLB weighting) stage,
// specified at 48kHz.
func biquadF2Reference48k() biquad {
	return biquad{
		sampleRate: 48000,
		a1:         -1.99004745483398,
		a2:         0.99007225036621,
		b0:         1.0,
		b1:         -2.0,
		b2:         1.0,
	}
}
