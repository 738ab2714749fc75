package propagation

import "math"

// analyticFSPLConstant is the −147.55 dB term from PL_dB = 20log10(d) +
// 20log10(f_c) − 147.55 + indoor_loss_db, folding in the speed of light and
// the unit conversions for d in metres and f_c in Hz.
const analyticFSPLConstant = -147.55

// minDistanceM is the minimum distance clamp; d < 0.1 m is replaced with
// 0.1 m to avoid a log10 singularity at colocated endpoints.
const minDistanceM = 0.1

// defaultIndoorLossDB is used when a topology does not override it; 0.0
// yields pure free-space loss.
const defaultIndoorLossDB = 10.0

// AnalyticFSPL is the Friis-plus-indoor-loss fallback engine. It is always
// available (there is no external backend), though like every engine it
// rejects a second, different scene with ErrSceneReloadUnsupported, and it
// reports a delay spread of zero, since a single-ray model carries no
// multipath information.
type AnalyticFSPL struct {
	sceneState

	// IndoorLossDB is added to the free-space path loss. NewAnalyticFSPL
	// sets it to defaultIndoorLossDB; a zero-struct literal keeps it at 0,
	// i.e. pure free space.
	IndoorLossDB float64
}

var _ Engine = &AnalyticFSPL{}

// NewAnalyticFSPL constructs an [AnalyticFSPL] with the default indoor
// loss budget.
func NewAnalyticFSPL() *AnalyticFSPL {
	return &AnalyticFSPL{IndoorLossDB: defaultIndoorLossDB}
}

func (e *AnalyticFSPL) Name() string { return "analytic" }

// Available is always true: the analytic fallback has no external backend.
func (e *AnalyticFSPL) Available() bool { return true }

func (e *AnalyticFSPL) AntennaGainEmbeddedInPathLoss() bool { return false }

func (e *AnalyticFSPL) LoadScene(ref SceneRef) error {
	_, err := e.sceneState.load(ref)
	return err
}

func (e *AnalyticFSPL) ComputePath(tx, rx Position, txAntenna, rxAntenna AntennaConfig) (PathResult, error) {
	if err := e.sceneState.requireLoaded(); err != nil {
		return PathResult{}, err
	}
	ref := e.sceneState.ref
	d := math.Max(tx.Distance(rx), minDistanceM)
	pathLoss := 20*math.Log10(d) + 20*math.Log10(ref.FrequencyHz) + analyticFSPLConstant + e.IndoorLossDB
	return PathResult{
		PathLossDB:       pathLoss,
		RMSDelaySpreadNs: 0,
		PathsMeta: map[string]any{
			"distance_m":     d,
			"single_ray":     true,
			"indoor_loss_db": e.IndoorLossDB,
		},
	}, nil
}
