package linkbudget

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestThermalNoiseDBm(t *testing.T) {
	t.Run("matches the closed form for representative values", func(t *testing.T) {
		got := ThermalNoiseDBm(20e6, 7)
		want := -174 + 10*math.Log10(20e6) + 7
		assert.InDelta(t, want, got, 1e-9)
	})

	t.Run("the noise-floor identity holds for any positive bandwidth", func(t *testing.T) {
		rapid.Check(t, func(rt *rapid.T) {
			bandwidth := rapid.Float64Range(1, 1e12).Draw(rt, "bandwidth")
			nf := rapid.Float64Range(-50, 50).Draw(rt, "nf")
			got := ThermalNoiseDBm(bandwidth, nf)
			want := -174 + 10*math.Log10(bandwidth) + nf
			if math.Abs(got-want) > 1e-9 {
				rt.Fatalf("mismatch: got %v want %v", got, want)
			}
		})
	})
}

func TestSNRLink(t *testing.T) {
	t.Run("20m free-space link at 80MHz yields ~35dB SNR", func(t *testing.T) {
		res := SNRLink(20, 0, 0, 72.76, 80e6, 7, false)
		assert.InDelta(t, 35.0, res.SNRDB, 1.5)
	})

	t.Run("embedded antenna gains are not double counted", func(t *testing.T) {
		embedded := SNRLink(20, 5, 5, 70, 20e6, 7, true)
		notEmbedded := SNRLink(20, 5, 5, 70, 20e6, 7, false)
		assert.InDelta(t, notEmbedded.SNRDB-embedded.SNRDB, 10.0, 1e-9)
	})

	t.Run("antenna-gain bookkeeping property: SNR differs by exactly Gtx+Grx", func(t *testing.T) {
		rapid.Check(t, func(rt *rapid.T) {
			txPower := rapid.Float64Range(-30, 40).Draw(rt, "txPower")
			gTx := rapid.Float64Range(0, 20).Draw(rt, "gTx")
			gRx := rapid.Float64Range(0, 20).Draw(rt, "gRx")
			pathLoss := rapid.Float64Range(20, 160).Draw(rt, "pathLoss")
			bandwidth := rapid.Float64Range(1e6, 1e9).Draw(rt, "bandwidth")
			nf := rapid.Float64Range(0, 15).Draw(rt, "nf")

			analytic := SNRLink(txPower, gTx, gRx, pathLoss, bandwidth, nf, false)
			geometric := SNRLink(txPower, gTx, gRx, pathLoss, bandwidth, nf, true)
			diff := analytic.SNRDB - geometric.SNRDB
			if math.Abs(diff-(gTx+gRx)) > 1e-6 {
				rt.Fatalf("expected diff %v, got %v", gTx+gRx, diff)
			}
		})
	})
}
