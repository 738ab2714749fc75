// Package modulation implements the closed-form AWGN BER models, the
// FEC coding-gain map, the BER→BLER→PER pipeline, the effective-rate
// formula and the adaptive MCS selector.
package modulation

import "math"

// Kind names a modulation scheme.
type Kind string

const (
	BPSK  Kind = "BPSK"
	QPSK  Kind = "QPSK"
	QAM16 Kind = "16QAM"
	QAM64 Kind = "64QAM"
	QAM256 Kind = "256QAM"
	QAM1024 Kind = "1024QAM"
)

// bitsPerSymbol maps a modulation Kind to log2(M).
var bitsPerSymbol = map[Kind]float64{
	BPSK:    1,
	QPSK:    2,
	QAM16:   4,
	QAM64:   6,
	QAM256:  8,
	QAM1024: 10,
}

// BitsPerSymbol returns log2(M) for the given modulation.
func BitsPerSymbol(k Kind) float64 {
	return bitsPerSymbol[k]
}

// qFunc is the Gaussian Q-function, Q(x) = 0.5*erfc(x/sqrt(2)).
func qFunc(x float64) float64 {
	return 0.5 * math.Erfc(x/math.Sqrt2)
}

// highOrderQAMCorrection returns a per-M bit-per-error correction factor
// (>= 1) applied to SER/log2(M) for high-order QAM at low SNR, where a
// symbol error more often flips more than one bit. 64-QAM and below are
// left at 1.0 (the approximation is already tight there).
func highOrderQAMCorrection(k Kind, snrLinear float64) float64 {
	switch k {
	case QAM256, QAM1024:
		if snrLinear < 10 {
			return 1.15
		}
		return 1.0
	default:
		return 1.0
	}
}

// BER returns the AWGN bit-error rate for the given modulation and linear
// (not dB) SNR, using Gray-coded BPSK/M-QAM closed forms.
func BER(k Kind, snrLinear float64) float64 {
	if snrLinear < 0 {
		snrLinear = 0
	}
	switch k {
	case BPSK:
		return 0.5 * math.Erfc(math.Sqrt(snrLinear))
	default:
		m := math.Exp2(BitsPerSymbol(k))
		if m < 4 {
			m = 4
		}
		ser := 4 * (1 - 1/math.Sqrt(m)) * qFunc(math.Sqrt(3*snrLinear/(m-1)))
		ber := ser / math.Log2(m) * highOrderQAMCorrection(k, snrLinear)
		return math.Min(math.Max(ber, 0), 1)
	}
}

// BERFromSNRdB is a convenience wrapper converting SNR in dB to linear
// before calling [BER].
func BERFromSNRdB(k Kind, snrDB float64) float64 {
	return BER(k, math.Pow(10, snrDB/10))
}
