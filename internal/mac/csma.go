// Package mac implements the statistical MAC models: CSMA/CA
// and TDMA. Both produce, for a transmitting node and a candidate
// interferer, an activity probability to feed the interference aggregator,
// plus a per-node throughput multiplier for the effective-rate formula.
package mac

// CSMAConfig holds the CSMA/CA statistical parameters.
type CSMAConfig struct {
	// CarrierSenseMultiplier scales the communication range to get the
	// carrier-sense range. Defaults to 2.5 when zero.
	CarrierSenseMultiplier float64

	// TrafficLoad in [0,1] is the hidden-node activity probability.
	// Defaults to 0.3 when zero.
	TrafficLoad float64
}

const (
	defaultCarrierSenseMultiplier = 2.5
	defaultTrafficLoad            = 0.3
)

func (c CSMAConfig) resolve() CSMAConfig {
	if c.CarrierSenseMultiplier == 0 {
		c.CarrierSenseMultiplier = defaultCarrierSenseMultiplier
	}
	if c.TrafficLoad == 0 {
		c.TrafficLoad = defaultTrafficLoad
	}
	return c
}

// CSMA implements the CSMA/CA statistical model.
type CSMA struct {
	cfg CSMAConfig
}

// NewCSMA constructs a [CSMA] model, applying defaults for zero fields.
func NewCSMA(cfg CSMAConfig) *CSMA {
	return &CSMA{cfg: cfg.resolve()}
}

// ActiveProb returns the activity probability of interferer i with respect
// to a transmitting node t, given the distance between them and t's
// nominal communication range. Within carrier-sense range, i defers and
// contributes no interference; beyond it, i is a hidden node and
// contributes at the configured traffic load.
func (m *CSMA) ActiveProb(distanceBetween, communicationRange float64) float64 {
	if distanceBetween < communicationRange*m.cfg.CarrierSenseMultiplier {
		return 0
	}
	return m.cfg.TrafficLoad
}

// ThroughputMultiplier is ~1 for every node under CSMA/CA: temporal reuse
// is already captured via per-interferer activity probabilities, not a
// global per-node derating.
func (m *CSMA) ThroughputMultiplier() float64 {
	return 1.0
}
