package modulation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func sampleTable(t *testing.T) *MCSTable {
	t.Helper()
	entries := []MCSEntry{
		{Index: 0, Modulation: BPSK, CodeRate: 0.5, FEC: FECLDPC, BandwidthMHz: 20, MinSNRDB: 2},
		{Index: 1, Modulation: QPSK, CodeRate: 0.5, FEC: FECLDPC, BandwidthMHz: 20, MinSNRDB: 5},
		{Index: 2, Modulation: QAM16, CodeRate: 0.5, FEC: FECLDPC, BandwidthMHz: 20, MinSNRDB: 10},
		{Index: 3, Modulation: QAM64, CodeRate: 0.75, FEC: FECLDPC, BandwidthMHz: 20, MinSNRDB: 18},
		{Index: 4, Modulation: QAM256, CodeRate: 0.75, FEC: FECLDPC, BandwidthMHz: 20, MinSNRDB: 24},
		{Index: 5, Modulation: QAM1024, CodeRate: 0.75, FEC: FECLDPC, BandwidthMHz: 40, MinSNRDB: 30},
	}
	table, err := NewMCSTable(entries)
	require.NoError(t, err)
	return table
}

func TestBER(t *testing.T) {
	t.Run("BPSK BER decreases with SNR", func(t *testing.T) {
		low := BER(BPSK, 1)
		high := BER(BPSK, 10)
		assert.Less(t, high, low)
	})

	t.Run("BER is bounded in [0,1]", func(t *testing.T) {
		rapid.Check(t, func(rt *rapid.T) {
			snr := rapid.Float64Range(0, 1000).Draw(rt, "snr")
			for _, k := range []Kind{BPSK, QPSK, QAM16, QAM64, QAM256, QAM1024} {
				b := BER(k, snr)
				if b < 0 || b > 1 {
					rt.Fatalf("BER(%s, %v) = %v out of range", k, snr, b)
				}
			}
		})
	})
}

func TestCodingGainDB(t *testing.T) {
	t.Run("none has zero gain", func(t *testing.T) {
		assert.Equal(t, 0.0, CodingGainDB(FECNone, 0.5))
	})
	t.Run("LDPC reference points", func(t *testing.T) {
		assert.InDelta(t, 6.5, CodingGainDB(FECLDPC, 0.5), 1e-9)
		assert.InDelta(t, 4.2, CodingGainDB(FECLDPC, 0.75), 1e-9)
	})
	t.Run("polar and turbo trail LDPC", func(t *testing.T) {
		assert.InDelta(t, 6.0, CodingGainDB(FECPolar, 0.5), 1e-9)
		assert.InDelta(t, 5.5, CodingGainDB(FECTurbo, 0.5), 1e-9)
	})
}

func TestComputeErrorRates(t *testing.T) {
	t.Run("uncoded PER follows 1-(1-BER)^L", func(t *testing.T) {
		rates := ComputeErrorRates(QAM16, 10, FECNone, 1.0, 0, 1000, 0)
		want := 1 - math.Pow(1-rates.BER, 1000)
		assert.InDelta(t, want, rates.PER, 1e-9)
	})

	t.Run("coded PER equals BLER", func(t *testing.T) {
		rates := ComputeErrorRates(QAM64, 20, FECLDPC, 0.75, 0, 0, 0)
		assert.Equal(t, rates.BLER, rates.PER)
	})
}

func TestEffectiveRateMbps(t *testing.T) {
	t.Run("rate scales with bandwidth", func(t *testing.T) {
		small := EffectiveRateMbps(20e6, QAM64, 0.75, 0.8, 0.001, 1.0)
		large := EffectiveRateMbps(80e6, QAM64, 0.75, 0.8, 0.001, 1.0)
		assert.Greater(t, large, small)
	})

	t.Run("wifi6-class 80MHz at high SNR clears 400Mbps", func(t *testing.T) {
		rate := EffectiveRateMbps(80e6, QAM1024, 0.75, 0.8, 1e-4, 1.0)
		assert.GreaterOrEqual(t, rate, 400.0)
	})
}

func TestMCSTable(t *testing.T) {
	t.Run("rejects non-monotone tables", func(t *testing.T) {
		_, err := NewMCSTable([]MCSEntry{
			{Index: 0, MinSNRDB: 10},
			{Index: 1, MinSNRDB: 5},
		})
		require.ErrorIs(t, err, ErrNotMonotone)
	})

	t.Run("selected index is non-decreasing in SNR (stateless, ignoring hysteresis)", func(t *testing.T) {
		table := sampleTable(t)
		rapid.Check(t, func(rt *rapid.T) {
			a := rapid.Float64Range(-10, 50).Draw(rt, "a")
			b := rapid.Float64Range(-10, 50).Draw(rt, "b")
			if a > b {
				a, b = b, a
			}
			lo := table.SelectStateless(a)
			hi := table.SelectStateless(b)
			if hi.Entry.Index < lo.Entry.Index {
				rt.Fatalf("selection not monotone: f(%v)=%d > f(%v)=%d", a, lo.Entry.Index, b, hi.Entry.Index)
			}
		})
	})

	t.Run("below the lowest entry's floor returns index 0 and BelowThreshold", func(t *testing.T) {
		table := sampleTable(t)
		res := table.SelectStateless(-5)
		assert.Equal(t, 0, res.Entry.Index)
		assert.True(t, res.BelowThreshold)
	})
}

func TestSelectorHysteresis(t *testing.T) {
	table := sampleTable(t)

	t.Run("oscillation around a threshold stays put, 2dB past it advances", func(t *testing.T) {
		// Adjacent tiers with floors at 18 and 20dB, 2dB hysteresis: the
		// tightest spacing the upgrade rule has to hold against.
		adjacent, err := NewMCSTable([]MCSEntry{
			{Index: 0, Modulation: QPSK, CodeRate: 0.5, FEC: FECLDPC, BandwidthMHz: 20, MinSNRDB: 14},
			{Index: 1, Modulation: QAM64, CodeRate: 0.75, FEC: FECLDPC, BandwidthMHz: 20, MinSNRDB: 18},
			{Index: 2, Modulation: QAM256, CodeRate: 0.75, FEC: FECLDPC, BandwidthMHz: 20, MinSNRDB: 20},
		})
		require.NoError(t, err)
		sel := NewSelector(adjacent, 2)
		key := LinkKey{TxNode: "a", RxNode: "b"}

		r := sel.Select(key, 19) // enters at the min_snr=18 tier
		assert.Equal(t, 1, r.Entry.Index)

		for _, snr := range []float64{21, 19, 21} {
			r = sel.Select(key, snr)
			assert.Equal(t, 1, r.Entry.Index, "snr=%v is short of 20+2 and must not transition", snr)
		}

		r = sel.Select(key, 22)
		assert.Equal(t, 2, r.Entry.Index, "22dB clears the next tier's floor by the full margin")

		r = sel.Select(key, 17)
		assert.Equal(t, 0, r.Entry.Index, "downgrade is immediate")
	})

	t.Run("upgrade requires clearing the target floor by the margin, downgrade is immediate", func(t *testing.T) {
		sel := NewSelector(table, 2)
		key := LinkKey{TxNode: "x", RxNode: "y"}
		sel.Select(key, 10) // index 2, min_snr 10

		r := sel.Select(key, 18)
		assert.Equal(t, 2, r.Entry.Index, "18dB only meets the min_snr=18 floor, it does not clear it by 2dB")

		r = sel.Select(key, 20)
		assert.Equal(t, 3, r.Entry.Index)

		r = sel.Select(key, 9)
		assert.Equal(t, 1, r.Entry.Index, "downgrade immediate to whatever tier now fits")
	})

	t.Run("per-link state is independent", func(t *testing.T) {
		sel := NewSelector(table, 2)
		a := LinkKey{TxNode: "a", RxNode: "b"}
		b := LinkKey{TxNode: "c", RxNode: "d"}
		sel.Select(a, 30)
		rb := sel.Select(b, 3)
		assert.Equal(t, 5, sel.Select(a, 30).Entry.Index)
		assert.Equal(t, 0, rb.Entry.Index)
	})

	t.Run("reset clears stored state", func(t *testing.T) {
		sel := NewSelector(table, 2)
		key := LinkKey{TxNode: "a", RxNode: "b"}
		sel.Select(key, 30)
		sel.Reset(key)
		r := sel.Select(key, 3)
		assert.Equal(t, 0, r.Entry.Index)
	})
}
