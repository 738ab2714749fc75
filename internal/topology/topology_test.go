package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads a well-formed shared-bridge triangle topology", func(t *testing.T) {
		doc, err := Load("testdata/triangle.yaml")
		require.NoError(t, err)
		assert.Len(t, doc.Nodes, 3)
		assert.True(t, doc.SharedBridge.Enabled)
		assert.True(t, doc.EnableSINR)
	})

	t.Run("defaults are applied when zero-valued", func(t *testing.T) {
		doc, err := Load("testdata/triangle.yaml")
		require.NoError(t, err)
		iface := doc.Nodes["n1"].Interfaces["wlan0"]
		assert.Equal(t, DefaultNoiseFigureDB, iface.NoiseFigureDB)
		assert.Equal(t, DefaultRxSensitivityDBm, iface.RxSensitivityDBm)
	})
}

func TestValidate(t *testing.T) {
	validIface := func() *Interface {
		return &Interface{AntennaPattern: "iso", FrequencyHz: 2.4e9, BandwidthHz: 20e6, TxPowerDBm: 10}
	}

	base := func() *Document {
		return &Document{
			Scene: SceneDecl{File: "s.scene"},
			Nodes: map[string]*Node{
				"n1": {Interfaces: map[string]*Interface{"wlan0": validIface()}},
				"n2": {Interfaces: map[string]*Interface{"wlan0": validIface()}},
			},
		}
	}

	t.Run("missing scene file is rejected", func(t *testing.T) {
		doc := base()
		doc.Scene.File = ""
		require.ErrorIs(t, Validate(doc), ErrMissingScene)
	})

	t.Run("antenna mutual exclusion: neither set is rejected", func(t *testing.T) {
		doc := base()
		doc.Nodes["n1"].Interfaces["wlan0"].AntennaPattern = ""
		require.ErrorIs(t, Validate(doc), ErrAntennaMutualExclusion)
	})

	t.Run("antenna mutual exclusion: both set is rejected", func(t *testing.T) {
		doc := base()
		gain := 5.0
		doc.Nodes["n1"].Interfaces["wlan0"].AntennaGainDBi = &gain
		require.ErrorIs(t, Validate(doc), ErrAntennaMutualExclusion)
	})

	t.Run("csma and tdma together are rejected", func(t *testing.T) {
		doc := base()
		iface := doc.Nodes["n1"].Interfaces["wlan0"]
		iface.CSMA = &CSMAConfig{Enabled: true}
		iface.TDMA = &TDMAConfig{Enabled: true}
		require.ErrorIs(t, Validate(doc), ErrMACMutualExclusion)
	})

	t.Run("link referencing an unknown node is rejected", func(t *testing.T) {
		doc := base()
		doc.Links = []Link{{A: LinkEndpoint{Node: "n1", Interface: "wlan0"}, B: LinkEndpoint{Node: "ghost", Interface: "wlan0"}}}
		require.ErrorIs(t, Validate(doc), ErrUnknownEndpoint)
	})

	t.Run("link referencing an unknown interface is rejected", func(t *testing.T) {
		doc := base()
		doc.Links = []Link{{A: LinkEndpoint{Node: "n1", Interface: "wlan0"}, B: LinkEndpoint{Node: "n2", Interface: "ghost"}}}
		require.ErrorIs(t, Validate(doc), ErrUnknownEndpoint)
	})

	t.Run("a valid document passes", func(t *testing.T) {
		doc := base()
		doc.Links = []Link{{A: LinkEndpoint{Node: "n1", Interface: "wlan0"}, B: LinkEndpoint{Node: "n2", Interface: "wlan0"}}}
		require.NoError(t, Validate(doc))
	})

	t.Run("fixed-netem interfaces are exempt from antenna mutual exclusion", func(t *testing.T) {
		doc := base()
		doc.Nodes["n2"].Interfaces["wlan0"] = &Interface{FixedNetem: &FixedNetem{DelayMs: 5}}
		require.NoError(t, Validate(doc))
	})
}

func TestLoadMCSTable(t *testing.T) {
	t.Run("loads and validates a well-formed table", func(t *testing.T) {
		table, err := LoadMCSTable("testdata/wifi6.mcs.csv")
		require.NoError(t, err)
		assert.Equal(t, 6, table.Len())
		assert.Equal(t, 30.0, table.Entry(5).MinSNRDB)
	})

	t.Run("missing file errors", func(t *testing.T) {
		_, err := LoadMCSTable("testdata/does-not-exist.csv")
		require.Error(t, err)
	})
}
