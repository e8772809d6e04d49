package calyx

import (
	"math"
	"testing"
)

func almostEqual(got, want, eps float64) bool {
	return math.Abs(got-want) < eps
}

func TestPowerLoudnessRoundTrip(t *testing.T) {
	cases := []Loudness{-70, -40, -18, -10, 0, 5}

	for _, l := range cases {
		p := PowerOf(l)
		got := LoudnessOf(p)
		if !almostEqual(float64(got), float64(l), 1e-9) {
			t.Errorf("round trip for %v: got %v", l, got)
		}
	}
}

func TestPowerBounds(t *testing.T) {
	if !almostEqual(float64(PowerOf(LoudnessMin)), float64(PowerMin), 1e-15) {
		t.Errorf("PowerOf(LoudnessMin) = %v, want %v", PowerOf(LoudnessMin), PowerMin)
	}

	if !almostEqual(float64(PowerOf(LoudnessMax)), float64(PowerMax), 1e-15) {
		t.Errorf("PowerOf(LoudnessMax) = %v, want %v", PowerOf(LoudnessMax), PowerMax)
	}
}

func TestLoudnessToGain(t *testing.T) {
	cases := []struct {
		l    Loudness
		gain float64
	}{
		{0, -18},
		{-18, 0},
		{-70, 52},
	}

	for _, c := range cases {
		if got := c.l.ToGain(); !almostEqual(got, c.gain, 1e-12) {
			t.Errorf("ToGain(%v) = %v, want %v", c.l, got, c.gain)
		}
	}
}
