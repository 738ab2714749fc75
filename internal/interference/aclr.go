// Package interference implements the multi-transmitter interference
// aggregator with bandwidth-dependent ACLR filtering and RX-sensitivity
// gating.
package interference

import "math"

// Config overrides ACLRDB's default piecewise constants (the topology's
// top-level aclr_config{...} key). The zero value selects the default
// curve.
type Config struct {
	// TransitionStartDB is the ACLR at the start of the transition band
	// (B_tx/2), default 20dB.
	TransitionStartDB float64
	// TransitionEndDB is the ACLR at the far edge of the transition band
	// (B_tx/2 + 40MHz), default 28dB.
	TransitionEndDB float64
	// AdjacentBandDB is the ACLR across the next band, out to B_tx/2 +
	// 80MHz, default 40dB.
	AdjacentBandDB float64
	// FarDB is the ACLR beyond the adjacent band, default 45dB.
	FarDB float64
}

// DefaultConfig is the piecewise curve ACLRDB uses when no override is
// supplied.
var DefaultConfig = Config{TransitionStartDB: 20, TransitionEndDB: 28, AdjacentBandDB: 40, FarDB: 45}

// Band edges of the piecewise curve, relative to B_tx/2.
const (
	transitionSpanHz   = 40e6
	adjacentBandEdgeHz = 80e6
)

// ACLRDB computes the adjacent-channel leakage ratio rejection, in dB, for
// an interferer whose carrier is separated by deltaFHz from the desired
// receiver, given the interferer's and the receiver's bandwidths, using
// the default piecewise curve.
//
// The rule:
//   - overlapping (|Δf| < (B_tx+B_rx)/2): co-channel, ACLR = 0 (no
//     rejection — the interferer is fully in-band);
//   - transition band out to B_tx/2 + 40MHz: linear 20→28dB;
//   - next band out to B_tx/2 + 80MHz: 40dB;
//   - beyond: 45dB.
//
// The overlap test depends only on bwTx+bwRx, but the band edges are
// measured from bwTx/2, so ACLRDB is symmetric in (bwTx, bwRx) only when
// the two bandwidths are equal: ACLRDB(30e6, 20e6, 40e6) is 24dB while
// ACLRDB(30e6, 40e6, 20e6) is 22dB.
func ACLRDB(deltaFHz, bwTxHz, bwRxHz float64) float64 {
	return ACLRDBWithConfig(deltaFHz, bwTxHz, bwRxHz, DefaultConfig)
}

// ACLRDBWithConfig is ACLRDB with a topology-supplied override of the
// band constants, for deployments whose aclr_config{...} block reshapes
// the default curve.
func ACLRDBWithConfig(deltaFHz, bwTxHz, bwRxHz float64, cfg Config) float64 {
	if cfg == (Config{}) {
		cfg = DefaultConfig
	}

	absDelta := math.Abs(deltaFHz)
	minSepForNonOverlap := (bwTxHz + bwRxHz) / 2
	if absDelta < minSepForNonOverlap {
		return 0
	}

	halfBwTx := bwTxHz / 2
	switch {
	case absDelta <= halfBwTx+transitionSpanHz:
		frac := (absDelta - halfBwTx) / transitionSpanHz
		return cfg.TransitionStartDB + frac*(cfg.TransitionEndDB-cfg.TransitionStartDB)
	case absDelta <= halfBwTx+adjacentBandEdgeHz:
		return cfg.AdjacentBandDB
	default:
		return cfg.FarDB
	}
}

// IsOrthogonal reports whether an interferer is far enough away in
// frequency to be dropped as negligible: |Δf| > 2*max(B_tx, B_rx).
func IsOrthogonal(deltaFHz, bwTxHz, bwRxHz float64) bool {
	return math.Abs(deltaFHz) > 2*math.Max(bwTxHz, bwRxHz)
}
