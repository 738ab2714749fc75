package channelsvc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuamhtsang/sine/internal/propagation"
	"github.com/joshuamhtsang/sine/internal/scene"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	reg := scene.NewRegistry(nil, propagation.NewAnalyticFSPL())
	svc := NewService(reg, nil, nil)
	require.NoError(t, svc.LoadScene(LoadSceneRequest{SceneFile: "test.scene", FrequencyHz: 2.4e9, BandwidthHz: 20e6}))
	return svc
}

func sampleLinkRequest() ComputeSingleRequest {
	return ComputeSingleRequest{
		Tx: RadioWire{
			Node: "ap1", Position: PositionWire{X: 0, Y: 0, Z: 0},
			FrequencyHz: 2.4e9, BandwidthHz: 20e6, TxPowerDBm: 20, AntennaPattern: "dipole",
		},
		Rx: RadioWire{
			Node: "sta1", Position: PositionWire{X: 10, Y: 0, Z: 0},
			FrequencyHz: 2.4e9, BandwidthHz: 20e6, NoiseFigureDB: 7, AntennaPattern: "dipole",
		},
	}
}

func TestServiceComputeSingleWithoutScene(t *testing.T) {
	reg := scene.NewRegistry(nil, propagation.NewAnalyticFSPL())
	svc := NewService(reg, nil, nil)
	_, err := svc.ComputeSingle(sampleLinkRequest())
	assert.ErrorIs(t, err, propagation.ErrSceneNotLoaded)
}

func TestServiceComputeSingle(t *testing.T) {
	svc := newTestService(t)
	resp, err := svc.ComputeSingle(sampleLinkRequest())
	require.NoError(t, err)
	assert.Greater(t, resp.PathLossDB, 0.0)
	assert.Equal(t, "analytic", resp.EngineUsed)
	assert.Greater(t, resp.DelayMs, 0.0)
}

func TestServiceComputeSingleUnknownAntennaPattern(t *testing.T) {
	svc := newTestService(t)
	req := sampleLinkRequest()
	req.Tx.AntennaPattern = "not-a-real-pattern"
	_, err := svc.ComputeSingle(req)
	assert.ErrorIs(t, err, propagation.ErrUnknownAntennaPattern)
}

func TestServiceComputeSingleWithMCSTable(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.RegisterMCSTable("wifi", RegisterMCSTableRequest{
		Entries: []MCSEntryWire{
			{Index: 0, Modulation: "BPSK", CodeRate: 0.5, FECType: "none", BandwidthMHz: 20, MinSNRDB: 0},
			{Index: 1, Modulation: "16QAM", CodeRate: 0.75, FECType: "ldpc", BandwidthMHz: 20, MinSNRDB: 15},
		},
		HysteresisDB: 2,
	}))

	req := sampleLinkRequest()
	req.MCSTableName = "wifi"
	resp, err := svc.ComputeSingle(req)
	require.NoError(t, err)
	require.NotNil(t, resp.MCSIndex)
	assert.GreaterOrEqual(t, resp.RateMbps, 0.0)
}

func TestServiceComputeSingleUnknownMCSTable(t *testing.T) {
	svc := newTestService(t)
	req := sampleLinkRequest()
	req.MCSTableName = "does-not-exist"
	_, err := svc.ComputeSingle(req)
	assert.ErrorIs(t, err, ErrUnknownMCSTable)
}

func TestServiceComputeBatchPartialFailure(t *testing.T) {
	svc := newTestService(t)
	good := sampleLinkRequest()
	bad := sampleLinkRequest()
	bad.Tx.AntennaPattern = "bogus"

	resps := svc.ComputeBatch(ComputeBatchRequest{Links: []ComputeSingleRequest{good, bad}})
	require.Len(t, resps, 2)
	assert.Greater(t, resps[0].PathLossDB, 0.0)
	assert.Contains(t, resps[1].EngineUsed, "error")
}

func TestServiceComputeSINR(t *testing.T) {
	svc := newTestService(t)
	req := ComputeSINRRequest{
		Receiver:  RadioWire{Node: "sta1", Position: PositionWire{X: 10}, FrequencyHz: 2.4e9, BandwidthHz: 20e6, NoiseFigureDB: 7, RxSensitivityDBm: -90, AntennaPattern: "dipole"},
		DesiredTx: RadioWire{Node: "ap1", Position: PositionWire{X: 0}, FrequencyHz: 2.4e9, BandwidthHz: 20e6, TxPowerDBm: 20, AntennaPattern: "dipole"},
		Interferers: []InterfererWire{
			{SourceNode: "ap2", Position: PositionWire{X: 5, Y: 20}, TxPowerDBm: 18, FrequencyHz: 2.4e9, BandwidthHz: 20e6, ActiveProb: 0.5, AntennaPattern: "dipole"},
		},
	}
	resp, err := svc.ComputeSINR(req)
	require.NoError(t, err)
	assert.LessOrEqual(t, resp.SINRDB, resp.SNRDB)
	assert.Len(t, resp.InterfererTerms, 1)
	assert.NotEmpty(t, resp.Regime)
}

func TestServiceHealth(t *testing.T) {
	svc := newTestService(t)
	h := svc.Health()
	assert.True(t, h.SceneLoaded)
	assert.True(t, h.AnalyticAvailable)
	assert.False(t, h.GeometricAvailable)
}

func TestServiceLoadSceneReloadConflict(t *testing.T) {
	svc := newTestService(t)
	err := svc.LoadScene(LoadSceneRequest{SceneFile: "different.scene", FrequencyHz: 5e9, BandwidthHz: 40e6})
	assert.ErrorIs(t, err, propagation.ErrSceneReloadUnsupported)
}

func postJSON(t *testing.T, mux http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestTransportHealth(t *testing.T) {
	svc := newTestService(t)
	mux := NewMux(svc)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.SceneLoaded)
}

func TestTransportComputeSingle(t *testing.T) {
	svc := newTestService(t)
	mux := NewMux(svc)

	rec := postJSON(t, mux, "/compute/single", sampleLinkRequest())
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ComputeSingleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Greater(t, resp.PathLossDB, 0.0)
}

func TestTransportComputeSingleUnavailableEngine(t *testing.T) {
	reg := scene.NewRegistry(nil, nil) // no analytic engine wired
	svc := NewService(reg, nil, nil)
	mux := NewMux(svc)

	rec := postJSON(t, mux, "/compute/single", sampleLinkRequest())
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTransportComputeSingleBadPattern(t *testing.T) {
	svc := newTestService(t)
	mux := NewMux(svc)

	req := sampleLinkRequest()
	req.Tx.AntennaPattern = "bogus"
	rec := postJSON(t, mux, "/compute/single", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransportLoadSceneConflict(t *testing.T) {
	svc := newTestService(t)
	mux := NewMux(svc)

	rec := postJSON(t, mux, "/scene/load", LoadSceneRequest{SceneFile: "other.scene", FrequencyHz: 5e9, BandwidthHz: 40e6})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTransportTransmissionState(t *testing.T) {
	svc := newTestService(t)
	mux := NewMux(svc)

	rec := postJSON(t, mux, "/api/transmission/state", UpdateTransmissionStateRequest{Updates: map[string]bool{"ap1": true}})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp TransmissionStateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(1), resp.Generation)
	assert.True(t, resp.State["ap1"])

	getReq := httptest.NewRequest(http.MethodGet, "/api/transmission/state", nil)
	getRec := httptest.NewRecorder()
	mux.ServeHTTP(getRec, getReq)
	assert.Equal(t, http.StatusOK, getRec.Code)
}

func TestTransportRegisterMCSTable(t *testing.T) {
	svc := newTestService(t)
	mux := NewMux(svc)

	rec := postJSON(t, mux, "/api/mcs-tables/wifi", RegisterMCSTableRequest{
		Entries: []MCSEntryWire{
			{Index: 0, Modulation: "BPSK", CodeRate: 0.5, FECType: "none", BandwidthMHz: 20, MinSNRDB: 0},
		},
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, ok := svc.selectorNamed("wifi")
	assert.True(t, ok)
}

func TestTransportMethodNotAllowed(t *testing.T) {
	svc := newTestService(t)
	mux := NewMux(svc)

	req := httptest.NewRequest(http.MethodDelete, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
