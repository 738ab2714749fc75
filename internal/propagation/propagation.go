// Package propagation implements the PropagationEngine contract: given a
// scene and a pair of positions, compute path loss and RMS delay spread.
//
// Two variants are provided: [Geometric], which models a pluggable
// ray-tracing backend, and [AnalyticFSPL], a free-space-path-loss fallback
// that is always available. The antenna-gain-embedding rule (whether the
// engine's path loss already accounts for antenna gains) is carried on
// every [Engine] as a fixed capability, not inferred by callers.
package propagation

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// Position is a point in 3D space, in metres.
type Position struct {
	X, Y, Z float64
}

// Distance returns the Euclidean distance between two positions.
func (p Position) Distance(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	dz := p.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// AntennaConfig describes the antenna used at one end of a link. Exactly
// one of Pattern or GainDBi is meaningful; [ResolveGainDBi] normalizes it.
type AntennaConfig struct {
	// Pattern is the named antenna pattern, if any (e.g. "dipole").
	Pattern string

	// GainDBi is the explicit antenna gain, if Pattern is empty.
	GainDBi float64
}

// antennaPatternGainsDBi is the fixed lookup table of named antenna patterns.
var antennaPatternGainsDBi = map[string]float64{
	"iso":       0.0,
	"dipole":    1.76,
	"hw_dipole": 2.16,
	"tr38901":   8.0,
}

// ResolveGainDBi returns the antenna gain in dBi, looking it up in the
// pattern table when a Pattern name is set.
func (a AntennaConfig) ResolveGainDBi() (float64, error) {
	if a.Pattern != "" {
		gain, ok := antennaPatternGainsDBi[a.Pattern]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownAntennaPattern, a.Pattern)
		}
		return gain, nil
	}
	return a.GainDBi, nil
}

// PathResult is the outcome of [Engine.ComputePath].
type PathResult struct {
	// PathLossDB is the path loss in dB.
	PathLossDB float64

	// RMSDelaySpreadNs is the RMS delay spread in nanoseconds.
	RMSDelaySpreadNs float64

	// PathsMeta is opaque diagnostic metadata about the computed paths
	// (e.g. number of rays, dominant path index). Keys are engine-specific:
	// the single-ray analytic engine reports distance_m, single_ray and
	// indoor_loss_db.
	PathsMeta map[string]any
}

// Errors returned by engines. Callers should use errors.Is.
var (
	ErrSceneNotLoaded         = errors.New("propagation: scene not loaded")
	ErrSceneReloadUnsupported = errors.New("propagation: scene reload unsupported")
	ErrEngineUnavailable      = errors.New("propagation: engine unavailable")
	ErrUnknownAntennaPattern  = errors.New("propagation: unknown antenna pattern")
)

// SceneRef identifies a scene: a geometry file plus the carrier frequency
// and bandwidth it was loaded for.
type SceneRef struct {
	File        string
	FrequencyHz float64
	BandwidthHz float64
}

// Engine is the contract every propagation engine variant implements.
type Engine interface {
	// LoadScene binds this engine to a scene. Idempotent: calling it again
	// with the SAME SceneRef after a successful load is a no-op; calling it
	// with a DIFFERENT SceneRef fails with ErrSceneReloadUnsupported. This
	// mirrors an observable limitation of real ray-tracing backends: the
	// engine is a singleton per loaded scene for the lifetime of the
	// process.
	LoadScene(ref SceneRef) error

	// ComputePath computes path loss and delay spread between tx and rx.
	// Pure for a fixed scene and fixed positions/antenna configs.
	ComputePath(tx, rx Position, txAntenna, rxAntenna AntennaConfig) (PathResult, error)

	// AntennaGainEmbeddedInPathLoss reports whether PathLossDB returned by
	// ComputePath already accounts for antenna gains. True for Geometric,
	// false for AnalyticFSPL.
	AntennaGainEmbeddedInPathLoss() bool

	// Name identifies the engine variant ("geometric" or "analytic").
	Name() string

	// Available reports whether this engine can currently serve requests
	// (e.g. false for a Geometric engine with no backend wired).
	Available() bool

	// Loaded reports whether a scene has actually been bound via
	// LoadScene, for GET /health's scene_loaded field.
	Loaded() bool
}

// sceneState is the shared Empty/Loaded scene state machine. Both engine
// variants embed it so the singleton invariant is enforced once, not
// duplicated.
type sceneState struct {
	mu     sync.Mutex
	loaded bool
	ref    SceneRef
}

func (s *sceneState) load(ref SceneRef) (alreadyLoaded bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.loaded = true
		s.ref = ref
		return false, nil
	}
	if s.ref == ref {
		return true, nil
	}
	return true, fmt.Errorf("%w: loaded %q, requested %q", ErrSceneReloadUnsupported, s.ref.File, ref.File)
}

func (s *sceneState) requireLoaded() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrSceneNotLoaded
	}
	return nil
}

// Loaded reports whether LoadScene has successfully bound a scene.
func (s *sceneState) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}
