package calyx

import "testing"

func TestStatsEmpty(t *testing.T) {
	s := NewStats()

	if got := s.GetMean(-10); got != LoudnessMin {
		t.Errorf("GetMean on empty Stats = %v, want %v", got, LoudnessMin)
	}

	if got := s.GetRange(-10, 0, 1); got != 0 {
		t.Errorf("GetRange on empty Stats = %v, want 0", got)
	}
}

func TestStatsAddSqsTracksMax(t *testing.T) {
	s := NewStats()

	powers := []Power{PowerOf(-30), PowerOf(-20), PowerOf(-40)}
	for _, p := range powers {
		s.addSqs(p)
	}

	if got := s.GetMax(); !almostEqual(float64(got), -20, 0.02) {
		t.Errorf("GetMax = %v, want ~ -20", got)
	}
}

func TestStatsGetMeanUngated(t *testing.T) {
	s := NewStats()

	for range 100 {
		s.addSqs(PowerOf(-20))
	}

	got := s.GetMean(-1000)
	if !almostEqual(float64(got), -20, 0.02) {
		t.Errorf("GetMean(-1000) = %v, want ~ -20", got)
	}
}

func TestStatsMergeEqualsCombinedInput(t *testing.T) {
	a := NewStats()
	b := NewStats()
	combined := NewStats()

	for range 50 {
		a.addSqs(PowerOf(-18))
		combined.addSqs(PowerOf(-18))
	}

	for range 30 {
		b.addSqs(PowerOf(-24))
		combined.addSqs(PowerOf(-24))
	}

	a.Merge(b)

	if a.pass1Count != combined.pass1Count {
		t.Fatalf("pass1Count after merge = %d, want %d", a.pass1Count, combined.pass1Count)
	}

	if !almostEqual(float64(a.pass1Wmsq), float64(combined.pass1Wmsq), 1e-12) {
		t.Errorf("pass1Wmsq after merge = %v, want %v", a.pass1Wmsq, combined.pass1Wmsq)
	}

	gotMean := a.GetMean(-1000)
	wantMean := combined.GetMean(-1000)
	if !almostEqual(float64(gotMean), float64(wantMean), 1e-9) {
		t.Errorf("GetMean after merge = %v, want %v", gotMean, wantMean)
	}
}

func TestStatsGetRangeSpread(t *testing.T) {
	s := NewStats()

	for range 25 {
		s.addSqs(PowerOf(-30))
	}

	for range 25 {
		s.addSqs(PowerOf(-10))
	}

	got := s.GetRange(-1000, 0, 1)
	if !almostEqual(float64(got), 20, 0.05) {
		t.Errorf("GetRange = %v, want ~ 20", got)
	}
}
