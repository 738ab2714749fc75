package mac

import (
	"errors"
	"fmt"
)

// SlotMode names a TDMA slot-assignment mode.
type SlotMode string

const (
	SlotModeFixed       SlotMode = "fixed"
	SlotModeRoundRobin  SlotMode = "round_robin"
	SlotModeRandom      SlotMode = "random"
	SlotModeDistributed SlotMode = "distributed"
)

// TDMAConfig holds the TDMA statistical parameters.
type TDMAConfig struct {
	NumSlots        int
	FrameDurationMs float64
	Mode            SlotMode

	// FixedSlotMap maps node name -> owned slot indices, used by
	// SlotModeFixed.
	FixedSlotMap map[string][]int

	// SlotProbability is used by SlotModeRandom and SlotModeDistributed.
	SlotProbability float64
}

var ErrUnknownSlotMode = errors.New("mac: unknown tdma slot mode")

// distributedCoordinationFactor halves the effective collision probability
// under the "distributed" mode relative to "random", modelling a lightweight
// coordination handshake between distributed schedulers.
const distributedCoordinationFactor = 0.5

// TDMA implements the statistical TDMA model.
type TDMA struct {
	cfg TDMAConfig
}

// NewTDMA constructs a [TDMA] model.
func NewTDMA(cfg TDMAConfig) *TDMA {
	return &TDMA{cfg: cfg}
}

// ActiveProb returns the activity probability of interferer i with respect
// to transmitting node t.
func (m *TDMA) ActiveProb(txNode, interfererNode string) (float64, error) {
	switch m.cfg.Mode {
	case SlotModeFixed:
		if m.slotsShared(txNode, interfererNode) {
			return 1, nil
		}
		return 0, nil
	case SlotModeRoundRobin:
		return 0, nil
	case SlotModeRandom:
		return m.cfg.SlotProbability, nil
	case SlotModeDistributed:
		return m.cfg.SlotProbability * distributedCoordinationFactor, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSlotMode, m.cfg.Mode)
	}
}

// slotsShared reports whether two nodes have a slot in common in the fixed
// slot map.
func (m *TDMA) slotsShared(a, b string) bool {
	slotsA := m.cfg.FixedSlotMap[a]
	ownedB := make(map[int]bool, len(m.cfg.FixedSlotMap[b]))
	for _, s := range m.cfg.FixedSlotMap[b] {
		ownedB[s] = true
	}
	for _, s := range slotsA {
		if ownedB[s] {
			return true
		}
	}
	return false
}

// ThroughputMultiplier returns the per-node throughput multiplier.
func (m *TDMA) ThroughputMultiplier(node string, numNodes int) (float64, error) {
	switch m.cfg.Mode {
	case SlotModeFixed:
		if m.cfg.NumSlots == 0 {
			return 0, nil
		}
		return float64(len(m.cfg.FixedSlotMap[node])) / float64(m.cfg.NumSlots), nil
	case SlotModeRoundRobin:
		if numNodes == 0 {
			return 0, nil
		}
		return 1.0 / float64(numNodes), nil
	case SlotModeRandom, SlotModeDistributed:
		return m.cfg.SlotProbability, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSlotMode, m.cfg.Mode)
	}
}
