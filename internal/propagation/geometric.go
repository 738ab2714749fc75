package propagation

import "math"

// Backend is the pluggable ray-tracing collaborator the Geometric engine
// wraps. This package ships one implementation, the in-process
// [IndoorExponentBackend]; no external ray tracer is wired here.
type Backend interface {
	// Trace returns the raw geometric path result for a link, given the
	// scene's bound reference, the two endpoint positions and antenna
	// gains (already resolved to dBi, since the geometric backend folds
	// antenna patterns into its path coefficients).
	Trace(ref SceneRef, tx, rx Position, txGainDBi, rxGainDBi float64) (PathResult, error)
}

// Geometric is the ray-traced propagation engine. Antenna patterns affect
// the traced path coefficients, so AntennaGainEmbeddedInPathLoss is true:
// callers must not additionally add G_tx/G_rx at link-budget time.
type Geometric struct {
	sceneState

	// Backend is the ray-tracing collaborator. A nil Backend makes every
	// ComputePath call fail with ErrEngineUnavailable, modelling a
	// deployment where the ray-tracer binary/service is absent.
	Backend Backend
}

var _ Engine = &Geometric{}

// NewGeometric constructs a [Geometric] engine wired to the given backend.
// Passing a nil backend is valid and models an unavailable engine.
func NewGeometric(backend Backend) *Geometric {
	return &Geometric{Backend: backend}
}

func (e *Geometric) Name() string { return "geometric" }

// Available reports whether a ray-tracing backend is wired.
func (e *Geometric) Available() bool { return e.Backend != nil }

func (e *Geometric) AntennaGainEmbeddedInPathLoss() bool { return true }

func (e *Geometric) LoadScene(ref SceneRef) error {
	if e.Backend == nil {
		return ErrEngineUnavailable
	}
	_, err := e.sceneState.load(ref)
	return err
}

func (e *Geometric) ComputePath(tx, rx Position, txAntenna, rxAntenna AntennaConfig) (PathResult, error) {
	if e.Backend == nil {
		return PathResult{}, ErrEngineUnavailable
	}
	if err := e.sceneState.requireLoaded(); err != nil {
		return PathResult{}, err
	}
	txGain, err := txAntenna.ResolveGainDBi()
	if err != nil {
		return PathResult{}, err
	}
	rxGain, err := rxAntenna.ResolveGainDBi()
	if err != nil {
		return PathResult{}, err
	}
	return e.Backend.Trace(e.sceneState.ref, tx, rx, txGain, rxGain)
}

// IndoorExponentBackend is a simple in-process [Backend] grounded on an
// indoor path-loss-exponent model (the same family as the single-wall
// indoor model used by discrete radio simulators): PL = 10*n*log10(d) + C,
// with the antenna gains folded in directly as the backend contract
// requires. It reports an RMS delay spread proportional to distance, since
// a larger environment implies more and later-arriving reflections.
type IndoorExponentBackend struct {
	// PathLossExponent is "n" in the 10*n*log10(d) model. 3.5 is a common
	// indoor value (free space is 2.0).
	PathLossExponent float64

	// ReferenceLossDB is the loss at 1 metre reference distance.
	ReferenceLossDB float64

	// DelaySpreadFactorNsPerM converts distance to an RMS delay spread
	// estimate; indoor environments with more reflections yield a higher
	// factor than open outdoor ones.
	DelaySpreadFactorNsPerM float64
}

var _ Backend = &IndoorExponentBackend{}

// NewIndoorExponentBackend returns a backend with typical indoor defaults.
func NewIndoorExponentBackend() *IndoorExponentBackend {
	return &IndoorExponentBackend{
		PathLossExponent:        3.5,
		ReferenceLossDB:         40.0,
		DelaySpreadFactorNsPerM: 1.5,
	}
}

func (b *IndoorExponentBackend) Trace(ref SceneRef, tx, rx Position, txGainDBi, rxGainDBi float64) (PathResult, error) {
	d := math.Max(tx.Distance(rx), minDistanceM)
	pathLoss := 10*b.PathLossExponent*math.Log10(d) + b.ReferenceLossDB - txGainDBi - rxGainDBi
	delaySpread := d * b.DelaySpreadFactorNsPerM
	return PathResult{
		PathLossDB:       pathLoss,
		RMSDelaySpreadNs: delaySpread,
		PathsMeta: map[string]any{
			"distance_m":         d,
			"path_loss_exponent": b.PathLossExponent,
			"tx_gain_dbi":        txGainDBi,
			"rx_gain_dbi":        rxGainDBi,
		},
	}, nil
}
