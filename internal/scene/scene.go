// Package scene implements the engine-selection policy that sits in front
// of the two propagation.Engine variants: which engine a request gets,
// and the server-wide --force-analytic override.
package scene

import (
	"errors"
	"fmt"

	"github.com/joshuamhtsang/sine/internal/propagation"
)

// EngineType is the client-requested engine preference.
type EngineType string

const (
	Auto      EngineType = "auto"
	Geometric EngineType = "geometric"
	Analytic  EngineType = "analytic"
)

// ErrGeometricForced is returned when a request explicitly asks for the
// geometric engine while the server runs with --force-analytic.
var ErrGeometricForced = errors.New("scene: server is forcing the analytic engine")

// Registry binds the two engine variants and applies the selection policy.
// The zero value is not usable; use [NewRegistry].
type Registry struct {
	geometric propagation.Engine
	analytic  propagation.Engine

	// ForceAnalytic makes every "geometric" request fail with
	// ErrGeometricForced and every "auto" request resolve to analytic,
	// regardless of the geometric engine's actual availability.
	ForceAnalytic bool
}

// NewRegistry constructs a [Registry]. Either engine may be nil if that
// variant is entirely absent from the deployment; nil is treated the same
// as "unavailable".
func NewRegistry(geometric, analytic propagation.Engine) *Registry {
	return &Registry{geometric: geometric, analytic: analytic}
}

// LoadScene loads the given scene reference into every wired engine (the
// geometric one only when it is Available). Per
// engine, failures propagate (e.g. ErrSceneReloadUnsupported).
func (r *Registry) LoadScene(ref propagation.SceneRef) error {
	if r.geometric != nil && r.geometric.Available() {
		if err := r.geometric.LoadScene(ref); err != nil {
			return fmt.Errorf("geometric engine: %w", err)
		}
	}
	if r.analytic != nil {
		if err := r.analytic.LoadScene(ref); err != nil {
			return fmt.Errorf("analytic engine: %w", err)
		}
	}
	return nil
}

// Select resolves a request's engine preference to a concrete engine,
// returning the engine and the name that should be reported as
// engine_used. The selection table:
//
//   - auto prefers geometric if available, else analytic; under
//     --force-analytic, auto always resolves to analytic;
//   - geometric returns ErrEngineUnavailable if unavailable, or
//     ErrGeometricForced under --force-analytic;
//   - analytic always resolves to the analytic engine.
func (r *Registry) Select(requested EngineType) (propagation.Engine, string, error) {
	switch requested {
	case "", Auto:
		if !r.ForceAnalytic && r.geometric != nil && r.geometric.Available() {
			return r.geometric, r.geometric.Name(), nil
		}
		return r.requireAnalytic()
	case Geometric:
		if r.ForceAnalytic {
			return nil, "", ErrGeometricForced
		}
		if r.geometric == nil || !r.geometric.Available() {
			return nil, "", propagation.ErrEngineUnavailable
		}
		return r.geometric, r.geometric.Name(), nil
	case Analytic:
		return r.requireAnalytic()
	default:
		return nil, "", fmt.Errorf("scene: unknown engine_type %q", requested)
	}
}

func (r *Registry) requireAnalytic() (propagation.Engine, string, error) {
	if r.analytic == nil {
		return nil, "", propagation.ErrEngineUnavailable
	}
	return r.analytic, r.analytic.Name(), nil
}

// Health reports the availability of both engines, for GET /health.
type Health struct {
	GeometricAvailable bool
	AnalyticAvailable  bool
	ForceAnalytic      bool
	SceneLoaded        bool
}

// Health returns the current availability snapshot.
func (r *Registry) Health() Health {
	return Health{
		GeometricAvailable: r.geometric != nil && r.geometric.Available(),
		AnalyticAvailable:  r.analytic != nil && r.analytic.Available(),
		ForceAnalytic:      r.ForceAnalytic,
		SceneLoaded:        r.SceneLoaded(),
	}
}

// SceneLoaded reports whether LoadScene has actually bound a scene into at
// least one wired engine, as opposed to merely an engine being selectable.
func (r *Registry) SceneLoaded() bool {
	if r.geometric != nil && r.geometric.Loaded() {
		return true
	}
	if r.analytic != nil && r.analytic.Loaded() {
		return true
	}
	return false
}
