package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuamhtsang/sine/internal/propagation"
)

func TestRegistrySelect(t *testing.T) {
	geo := propagation.NewGeometric(propagation.NewIndoorExponentBackend())
	ana := propagation.NewAnalyticFSPL()

	t.Run("auto prefers geometric when available", func(t *testing.T) {
		r := NewRegistry(geo, ana)
		_, name, err := r.Select(Auto)
		require.NoError(t, err)
		assert.Equal(t, "geometric", name)
	})

	t.Run("auto falls back to analytic when geometric is unavailable", func(t *testing.T) {
		r := NewRegistry(propagation.NewGeometric(nil), ana)
		_, name, err := r.Select(Auto)
		require.NoError(t, err)
		assert.Equal(t, "analytic", name)
	})

	t.Run("explicit geometric request fails when unavailable", func(t *testing.T) {
		r := NewRegistry(propagation.NewGeometric(nil), ana)
		_, _, err := r.Select(Geometric)
		require.ErrorIs(t, err, propagation.ErrEngineUnavailable)
	})

	t.Run("force-analytic rejects explicit geometric requests", func(t *testing.T) {
		r := NewRegistry(geo, ana)
		r.ForceAnalytic = true
		_, _, err := r.Select(Geometric)
		require.ErrorIs(t, err, ErrGeometricForced)
	})

	t.Run("force-analytic makes auto resolve to analytic", func(t *testing.T) {
		r := NewRegistry(geo, ana)
		r.ForceAnalytic = true
		_, name, err := r.Select(Auto)
		require.NoError(t, err)
		assert.Equal(t, "analytic", name)
	})

	t.Run("health reports availability of both engines", func(t *testing.T) {
		r := NewRegistry(propagation.NewGeometric(nil), ana)
		h := r.Health()
		assert.False(t, h.GeometricAvailable)
		assert.True(t, h.AnalyticAvailable)
	})
}
