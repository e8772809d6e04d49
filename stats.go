package calyx

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// grain is the number of histogram bins per LU of loudness resolution.
const grain = 100.0

// binCount is the number of fixed-width bins spanning [LoudnessMin, LoudnessMax].
const binCount = int(grain*(float64(LoudnessMax)-float64(LoudnessMin)) + 1)

type bin struct {
	db    Loudness
	count int
}

// Stats is the ITU-R BS.1770 histogram accumulator: it receives gated
// block powers via addSqs and answers integrated loudness (GetMean) and
// loudness range (GetRange) queries against them.
type Stats struct {
	maxWmsq Power

	pass1Wmsq  Power // cumulative moving average of ungated block power
	pass1Count int

	bins     []bin
	binPower []Power // ascending, parallel to bins
}

// NewStats builds an empty histogram spanning the full BS.1770 loudness
// range at 0.01 LU resolution.
func NewStats() *Stats {
	step := 1.0 / grain

	bins := make([]bin, binCount)
	binPower := make([]Power, binCount)

	for i := range binCount {
		db := LoudnessMin + Loudness(float64(i)*step)
		bins[i] = bin{db: db, count: 0}
		binPower[i] = PowerOf(db)
	}

	return &Stats{
		maxWmsq:  PowerMin,
		pass1Wmsq: 0,
		bins:     bins,
		binPower: binPower,
	}
}

// floorIndex returns the index of the last bin whose Power key is <= wmsq,
// or -1 if wmsq is below every bin.
func (s *Stats) floorIndex(wmsq Power) int {
	i := sort.Search(len(s.binPower), func(i int) bool {
		return s.binPower[i] > wmsq
	})

	return i - 1
}

// addSqs folds a gated block power into the histogram.
func (s *Stats) addSqs(wmsq Power) {
	if s.maxWmsq < wmsq {
		s.maxWmsq = wmsq
	}

	idx := s.floorIndex(wmsq)
	if idx < 0 {
		return
	}

	s.pass1Count++
	s.pass1Wmsq += (wmsq - s.pass1Wmsq) / Power(s.pass1Count)
	s.bins[idx].count++
}

// Merge folds rhs's accumulated counts into s, weighting the running
// pass1 average by each side's sample count. Used to combine per-track
// statistics into an album-level Stats.
func (s *Stats) Merge(rhs *Stats) {
	if s.maxWmsq < rhs.maxWmsq {
		s.maxWmsq = rhs.maxWmsq
	}

	count := s.pass1Count + rhs.pass1Count
	if count == 0 {
		return
	}

	q1 := float64(s.pass1Count) / float64(count)
	q2 := float64(rhs.pass1Count) / float64(count)
	s.pass1Wmsq = Power(float64(s.pass1Wmsq)*q1 + float64(rhs.pass1Wmsq)*q2)
	s.pass1Count = count

	for i := range s.bins {
		s.bins[i].count += rhs.bins[i].count
	}
}

// GetMax reports the loudest single gated block seen.
func (s *Stats) GetMax() Loudness {
	return LoudnessOf(s.maxWmsq)
}

// GetMean computes the BS.1770 integrated (gated) loudness: the
// count-weighted mean power of every bin above the relative gate,
// applied on top of the ungated pass-1 average.
func (s *Stats) GetMean(gate float64) Loudness {
	threshold := s.pass1Wmsq.gate(gate)

	var xs, weights []float64

	for i, b := range s.bins {
		if b.count > 0 && threshold < s.binPower[i] {
			xs = append(xs, float64(s.binPower[i]))
			weights = append(weights, float64(b.count))
		}
	}

	if len(xs) == 0 {
		return LoudnessMin
	}

	return LoudnessOf(Power(stat.Mean(xs, weights)))
}

// GetRange computes the BS.1770 loudness range: the spread between the
// loudness at the lower and upper percentile of the gated distribution.
func (s *Stats) GetRange(gate, lower, upper float64) Loudness {
	threshold := s.pass1Wmsq.gate(gate)

	count := 0

	for i, b := range s.bins {
		if b.count > 0 && threshold < s.binPower[i] {
			count += b.count
		}
	}

	if count == 0 {
		return Loudness(0.0)
	}

	lower, upper = max(min(lower, upper), 0.0), min(max(upper, lower), 1.0)
	lowerCount := max(int(float64(count)*lower), 1)
	upperCount := max(int(float64(count)*upper), 1)

	prevCount := 0

	var lo, hi Loudness

	for i, b := range s.bins {
		if !(threshold < s.binPower[i]) {
			continue
		}

		next := prevCount + b.count

		if prevCount < lowerCount && lowerCount <= next {
			lo = b.db
		}

		if prevCount < upperCount && upperCount <= next {
			hi = b.db
		}

		prevCount = next
	}

	return hi - lo
}
