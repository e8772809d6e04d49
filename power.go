package calyx

import "math"

// Power is a mean-square signal power, the linear-domain unit the
// BS.1770 pipeline accumulates in before any log conversion happens.
type Power float64

const (
	// PowerMin is the smallest representable Power, corresponding to
	// Loudness MIN.
	PowerMin Power = 1.1724653045822964e-7
	// PowerMax is the largest representable Power, corresponding to
	// Loudness MAX.
	PowerMax Power = 3.7076608400031104
)

// gate scales p by 10^(gate/10), used to turn a relative gate in LU into
// an absolute power threshold.
func (p Power) gate(gate float64) Power {
	return p * Power(math.Pow(10, 0.1*gate))
}
