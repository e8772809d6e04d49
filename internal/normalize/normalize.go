// Package normalize formats the iTunNORM comment iTunes-era players read
// for volume normalization.
package normalize

import (
	"fmt"
	"math"
)

// maxField is the largest value any of the four gain fields may hold;
// adjustGain clamps to it rather than letting pathologically quiet
// tracks overflow the 8-hex-digit field.
const maxField = 65534

// adjustGain converts a gain in LU against a reference base into the
// integer iTunNORM encodes, per ITU-R BS.1770 tooling convention:
// 10^(-gain/10) * base, rounded and capped at maxField.
func adjustGain(gainLU, base float64) int64 {
	v := math.Round(math.Pow(10, -gainLU/10) * base)
	if v > maxField {
		return maxField
	}

	return int64(v)
}

// Fields is everything the formatter needs to build one iTunNORM
// comment: a track's own gain/peak and the gain/peak of the album it
// belongs to (equal to the track's own values when there is no album
// group, i.e. compilations and singletons).
type Fields struct {
	TrackGainLU float64
	AlbumGainLU float64
	TrackPeak   int64
	AlbumPeak   int64
}

// Format renders the ten-field, space-separated, 8-hex-digit-uppercase
// iTunNORM string.
func Format(f Fields) string {
	return fmt.Sprintf(
		" %08X %08X %08X %08X 00000000 00000000 %08X %08X 00000000 00000000",
		adjustGain(f.TrackGainLU, 1000),
		adjustGain(f.AlbumGainLU, 1000),
		adjustGain(f.TrackGainLU, 2500),
		adjustGain(f.AlbumGainLU, 2500),
		f.TrackPeak,
		f.AlbumPeak,
	)
}

// Peak converts a [-1,1] sample-peak amplitude to the 16-bit integer
// iTunNORM's peak fields use.
func Peak(amplitude float64) int64 {
	return int64(math.Round(amplitude * 32768))
}
