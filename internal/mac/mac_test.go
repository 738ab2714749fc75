package mac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSMA(t *testing.T) {
	m := NewCSMA(CSMAConfig{})

	t.Run("defers within carrier-sense range", func(t *testing.T) {
		assert.Equal(t, 0.0, m.ActiveProb(10, 100))
	})

	t.Run("hidden node beyond carrier-sense range uses traffic load", func(t *testing.T) {
		assert.Equal(t, defaultTrafficLoad, m.ActiveProb(1000, 100))
	})

	t.Run("throughput multiplier is ~1", func(t *testing.T) {
		assert.Equal(t, 1.0, m.ThroughputMultiplier())
	})

	t.Run("zero-valued config applies defaults", func(t *testing.T) {
		zeroCfg := NewCSMA(CSMAConfig{})
		customCfg := NewCSMA(CSMAConfig{CarrierSenseMultiplier: defaultCarrierSenseMultiplier, TrafficLoad: defaultTrafficLoad})
		assert.Equal(t, customCfg.ActiveProb(1000, 100), zeroCfg.ActiveProb(1000, 100))
	})
}

func TestTDMA(t *testing.T) {
	t.Run("fixed mode: shared slot implies full activity", func(t *testing.T) {
		m := NewTDMA(TDMAConfig{
			Mode:     SlotModeFixed,
			NumSlots: 10,
			FixedSlotMap: map[string][]int{
				"n1": {0, 1},
				"n2": {1, 5},
				"n3": {2, 3},
			},
		})
		p, err := m.ActiveProb("n1", "n2")
		require.NoError(t, err)
		assert.Equal(t, 1.0, p)

		p, err = m.ActiveProb("n1", "n3")
		require.NoError(t, err)
		assert.Equal(t, 0.0, p)
	})

	t.Run("fixed mode throughput multiplier matches slot share", func(t *testing.T) {
		m := NewTDMA(TDMAConfig{
			Mode:     SlotModeFixed,
			NumSlots: 10,
			FixedSlotMap: map[string][]int{
				"n1": {0, 1},
			},
		})
		mult, err := m.ThroughputMultiplier("n1", 3)
		require.NoError(t, err)
		assert.InDelta(t, 0.2, mult, 1e-9)
	})

	t.Run("round_robin is orthogonal with 1/N throughput", func(t *testing.T) {
		m := NewTDMA(TDMAConfig{Mode: SlotModeRoundRobin})
		p, err := m.ActiveProb("n1", "n2")
		require.NoError(t, err)
		assert.Equal(t, 0.0, p)

		mult, err := m.ThroughputMultiplier("n1", 4)
		require.NoError(t, err)
		assert.Equal(t, 0.25, mult)
	})

	t.Run("random mode uses slot probability directly", func(t *testing.T) {
		m := NewTDMA(TDMAConfig{Mode: SlotModeRandom, SlotProbability: 0.4})
		p, err := m.ActiveProb("n1", "n2")
		require.NoError(t, err)
		assert.Equal(t, 0.4, p)
	})

	t.Run("distributed mode applies the coordination factor", func(t *testing.T) {
		m := NewTDMA(TDMAConfig{Mode: SlotModeDistributed, SlotProbability: 0.4})
		p, err := m.ActiveProb("n1", "n2")
		require.NoError(t, err)
		assert.InDelta(t, 0.2, p, 1e-9)
	})

	t.Run("unknown mode is an error", func(t *testing.T) {
		m := NewTDMA(TDMAConfig{Mode: "bogus"})
		_, err := m.ActiveProb("n1", "n2")
		require.ErrorIs(t, err, ErrUnknownSlotMode)
	})

	t.Run("3 nodes on 10 slots with two slots each get a 0.2 multiplier", func(t *testing.T) {
		m := NewTDMA(TDMAConfig{
			Mode:     SlotModeFixed,
			NumSlots: 10,
			FixedSlotMap: map[string][]int{
				"n1": {0, 1},
				"n2": {2, 3},
				"n3": {4, 5},
			},
		})
		for _, node := range []string{"n1", "n2", "n3"} {
			mult, err := m.ThroughputMultiplier(node, 3)
			require.NoError(t, err)
			assert.InDelta(t, 0.2, mult, 1e-9)
		}
		p, err := m.ActiveProb("n1", "n2")
		require.NoError(t, err)
		assert.Equal(t, 0.0, p, "orthogonal slots: SINR should equal SNR")
	})
}
