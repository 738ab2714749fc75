package channelsvc

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/joshuamhtsang/sine/internal/interference"
	"github.com/joshuamhtsang/sine/internal/linkbudget"
	"github.com/joshuamhtsang/sine/internal/logx"
	"github.com/joshuamhtsang/sine/internal/metrics"
	"github.com/joshuamhtsang/sine/internal/modulation"
	"github.com/joshuamhtsang/sine/internal/propagation"
	"github.com/joshuamhtsang/sine/internal/scene"
)

const speedOfLightMPerS = 299792458.0

// defaultProcessingDelayMs accounts for MAC/queueing latency not modeled
// elsewhere; it is added on top of the speed-of-light propagation delay.
const defaultProcessingDelayMs = 1.0

const defaultHysteresisDB = 3.0

// Fallback modulation profile for requests that name no MCS table: a
// robust mid-range scheme so ber/per/rate_mbps are still meaningful.
const (
	defaultModulation = modulation.QPSK
	defaultCodeRate   = 0.5
	defaultFEC        = modulation.FECLDPC
)

var ErrUnknownMCSTable = errors.New("channelsvc: unknown mcs_table_name, register it first")

// Service composes the channel-physics packages into the HTTP operations.
// One Service instance corresponds to one process-wide scene
// and one process-wide TransmissionState, matching the singleton-scene
// model implemented in internal/propagation.
type Service struct {
	Registry *scene.Registry
	State    *TransmissionState
	Metrics  *metrics.Registry
	Log      logx.Logger

	mu        sync.RWMutex
	selectors map[string]*modulation.Selector
}

// NewService constructs a Service around an already-built engine registry.
func NewService(reg *scene.Registry, m *metrics.Registry, log logx.Logger) *Service {
	if log == nil {
		log = &logx.NullLogger{}
	}
	return &Service{
		Registry:  reg,
		State:     NewTransmissionState(),
		Metrics:   m,
		Log:       log,
		selectors: make(map[string]*modulation.Selector),
	}
}

// RegisterMCSTable installs (or replaces) the named table's selector. The
// controller calls this once per distinct mcs_table path found while
// resolving a topology, before issuing any compute calls that reference it.
func (s *Service) RegisterMCSTable(name string, req RegisterMCSTableRequest) error {
	if len(req.Entries) == 0 {
		return fmt.Errorf("channelsvc: mcs table %q has no entries", name)
	}
	table, err := toMCSTable(req.Entries)
	if err != nil {
		return err
	}
	hysteresis := req.HysteresisDB
	if hysteresis <= 0 {
		hysteresis = defaultHysteresisDB
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectors[name] = modulation.NewSelector(table, hysteresis)
	return nil
}

func (s *Service) selectorNamed(name string) (*modulation.Selector, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sel, ok := s.selectors[name]
	return sel, ok
}

// Health reports the current engine-availability snapshot.
func (s *Service) Health() HealthResponse {
	h := s.Registry.Health()
	return HealthResponse{
		SceneLoaded:        h.SceneLoaded,
		GeometricAvailable: h.GeometricAvailable,
		AnalyticAvailable:  h.AnalyticAvailable,
		EngineForced:       h.ForceAnalytic,
	}
}

// LoadScene loads a scene into every wired, available engine.
func (s *Service) LoadScene(req LoadSceneRequest) error {
	return s.Registry.LoadScene(propagation.SceneRef{
		File:        req.SceneFile,
		FrequencyHz: req.FrequencyHz,
		BandwidthHz: req.BandwidthHz,
	})
}

func radioPosition(r RadioWire) propagation.Position {
	return propagation.Position{X: r.Position.X, Y: r.Position.Y, Z: r.Position.Z}
}

func radioAntenna(r RadioWire) (propagation.AntennaConfig, error) {
	cfg := propagation.AntennaConfig{Pattern: r.AntennaPattern}
	if r.AntennaGainDBi != nil {
		cfg.GainDBi = *r.AntennaGainDBi
		return cfg, nil
	}
	if r.AntennaPattern == "" {
		return cfg, errors.New("radio requires either antenna_pattern or antenna_gain_dbi")
	}
	return cfg, nil
}

func engineType(name string) scene.EngineType {
	switch name {
	case "geometric":
		return scene.Geometric
	case "analytic":
		return scene.Analytic
	default:
		return scene.Auto
	}
}

func propagationDelayMs(distanceM float64) float64 {
	return (distanceM/speedOfLightMPerS)*1000.0 + defaultProcessingDelayMs
}

// ComputeSingle evaluates one directional link, applying an MCS table if
// MCSTableName references one already registered.
func (s *Service) ComputeSingle(req ComputeSingleRequest) (ComputeSingleResponse, error) {
	engine, engineName, err := s.Registry.Select(engineType(req.EngineType))
	if err != nil {
		return ComputeSingleResponse{}, err
	}

	txAnt, err := radioAntenna(req.Tx)
	if err != nil {
		return ComputeSingleResponse{}, err
	}
	rxAnt, err := radioAntenna(req.Rx)
	if err != nil {
		return ComputeSingleResponse{}, err
	}

	txPos, rxPos := radioPosition(req.Tx), radioPosition(req.Rx)
	path, err := engine.ComputePath(txPos, rxPos, txAnt, rxAnt)
	if err != nil {
		return ComputeSingleResponse{}, err
	}

	gTx, err := txAnt.ResolveGainDBi()
	if err != nil {
		return ComputeSingleResponse{}, err
	}
	gRx, err := rxAnt.ResolveGainDBi()
	if err != nil {
		return ComputeSingleResponse{}, err
	}
	lb := linkbudget.SNRLink(req.Tx.TxPowerDBm, gTx, gRx, path.PathLossDB, req.Rx.BandwidthHz, req.Rx.NoiseFigureDB, engine.AntennaGainEmbeddedInPathLoss())

	resp := ComputeSingleResponse{
		PathLossDB:       path.PathLossDB,
		SNRDB:            lb.SNRDB,
		RMSDelaySpreadNs: path.RMSDelaySpreadNs,
		DelayMs:          propagationDelayMs(txPos.Distance(rxPos)),
		JitterMs:         req.MACJitterMs,
		EngineUsed:       engineName,
	}

	mod, codeRate, fec := defaultModulation, defaultCodeRate, defaultFEC
	if req.MCSTableName != "" {
		sel, ok := s.selectorNamed(req.MCSTableName)
		if !ok {
			return ComputeSingleResponse{}, fmt.Errorf("%w: %q", ErrUnknownMCSTable, req.MCSTableName)
		}
		key := modulation.LinkKey{TxNode: req.Tx.Node, RxNode: req.Rx.Node}
		result := sel.Select(key, lb.SNRDB)
		idx := result.Entry.Index
		resp.MCSIndex = &idx
		resp.BelowThreshold = result.BelowThreshold
		mod, codeRate, fec = result.Entry.Modulation, result.Entry.CodeRate, result.Entry.FEC
	}
	resp.Modulation = string(mod)
	resp.CodeRate = codeRate

	rates := modulation.ComputeErrorRates(mod, lb.SNRDB, fec, codeRate, modulation.DefaultBlockBits, modulation.DefaultPacketBits, 0)
	resp.BER = rates.BER
	resp.PER = rates.PER

	macMul := req.MACThroughputMultiplier
	if macMul <= 0 {
		macMul = 1.0
	}
	resp.RateMbps = modulation.EffectiveRateMbps(req.Rx.BandwidthHz, mod, codeRate, 0, rates.PER, macMul)

	return resp, nil
}

// ComputeBatch evaluates many directional links independently; a failure on
// one link does not abort the others: /compute/batch returns partial
// results with per-entry errors.
func (s *Service) ComputeBatch(req ComputeBatchRequest) []ComputeSingleResponse {
	out := make([]ComputeSingleResponse, len(req.Links))
	for i, link := range req.Links {
		resp, err := s.ComputeSingle(link)
		if err != nil {
			resp = ComputeSingleResponse{EngineUsed: fmt.Sprintf("error: %v", err)}
		}
		out[i] = resp
	}
	return out
}

// ComputeSINR evaluates a desired link against a set of interferers,
// classifying the SINR regime per internal/interference.
func (s *Service) ComputeSINR(req ComputeSINRRequest) (ComputeSINRResponse, error) {
	engine, engineName, err := s.Registry.Select(engineType(req.EngineType))
	if err != nil {
		return ComputeSINRResponse{}, err
	}

	rxAnt, err := radioAntenna(req.Receiver)
	if err != nil {
		return ComputeSINRResponse{}, err
	}
	txAnt, err := radioAntenna(req.DesiredTx)
	if err != nil {
		return ComputeSINRResponse{}, err
	}
	rxPos := radioPosition(req.Receiver)
	txPos := radioPosition(req.DesiredTx)

	path, err := engine.ComputePath(txPos, rxPos, txAnt, rxAnt)
	if err != nil {
		return ComputeSINRResponse{}, err
	}
	embedded := engine.AntennaGainEmbeddedInPathLoss()
	gTx, err := txAnt.ResolveGainDBi()
	if err != nil {
		return ComputeSINRResponse{}, err
	}
	gRx, err := rxAnt.ResolveGainDBi()
	if err != nil {
		return ComputeSINRResponse{}, err
	}
	lb := linkbudget.SNRLink(req.DesiredTx.TxPowerDBm, gTx, gRx, path.PathLossDB, req.Receiver.BandwidthHz, req.Receiver.NoiseFigureDB, embedded)
	noiseDBm := linkbudget.ThermalNoiseDBm(req.Receiver.BandwidthHz, req.Receiver.NoiseFigureDB)

	interferers := make([]interference.Interferer, 0, len(req.Interferers))
	for _, it := range req.Interferers {
		itAnt := propagation.AntennaConfig{Pattern: it.AntennaPattern}
		if it.AntennaGainDBi != nil {
			itAnt.GainDBi = *it.AntennaGainDBi
		}
		itPos := propagation.Position{X: it.Position.X, Y: it.Position.Y, Z: it.Position.Z}
		itPath, err := engine.ComputePath(itPos, rxPos, itAnt, rxAnt)
		if err != nil {
			s.Log.Warnf("interferer %s path compute failed: %v", it.SourceNode, err)
			continue
		}
		itGain, err := itAnt.ResolveGainDBi()
		if err != nil {
			s.Log.Warnf("interferer %s antenna gain invalid: %v", it.SourceNode, err)
			continue
		}
		interferers = append(interferers, interference.Interferer{
			SourceNode:  it.SourceNode,
			PathLossDB:  itPath.PathLossDB,
			TxPowerDBm:  it.TxPowerDBm,
			TxGainDBi:   itGain,
			FrequencyHz: it.FrequencyHz,
			BandwidthHz: it.BandwidthHz,
			ActiveProb:  it.ActiveProb,
		})
	}

	rxParams := interference.ReceiverParams{
		GainDBi:        gRx,
		NoiseFigureDB:  req.Receiver.NoiseFigureDB,
		SensitivityDBm: req.Receiver.RxSensitivityDBm,
		BandwidthHz:    req.Receiver.BandwidthHz,
		FrequencyHz:    req.Receiver.FrequencyHz,
	}
	aclrCfg := interference.DefaultConfig
	if req.ACLRConfig != nil {
		aclrCfg = interference.Config{
			TransitionStartDB: req.ACLRConfig.TransitionStartDB,
			TransitionEndDB:   req.ACLRConfig.TransitionEndDB,
			AdjacentBandDB:    req.ACLRConfig.AdjacentBandDB,
			FarDB:             req.ACLRConfig.FarDB,
		}
	}
	agg := interference.Aggregate(rxParams, lb.RxPowerDBm, noiseDBm, interferers, embedded, aclrCfg)

	terms := make([]InterferenceTermWire, len(agg.Terms))
	for i, t := range agg.Terms {
		terms[i] = InterferenceTermWire{
			SourceNode:            t.SourceNode,
			PowerDBm:              t.PowerDBm,
			ACLRDB:                t.ACLRDB,
			FrequencySeparationHz: t.FrequencySeparationHz,
		}
	}

	resp := ComputeSINRResponse{
		SNRDB:            lb.SNRDB,
		SINRDB:           agg.SINRDB,
		RMSDelaySpreadNs: path.RMSDelaySpreadNs,
		Regime:           agg.Regime,
		InterfererTerms:  terms,
		EngineUsed:       engineName,
	}

	// The MCS selection and error-rate pipeline below are fed agg.SINRDB,
	// never lb.SNRDB: once interference is in play, the effective metric
	// the SINR result reports is the one every downstream decision uses.
	mod, codeRate, fec := defaultModulation, defaultCodeRate, defaultFEC
	if req.MCSTableName != "" {
		sel, ok := s.selectorNamed(req.MCSTableName)
		if !ok {
			return ComputeSINRResponse{}, fmt.Errorf("%w: %q", ErrUnknownMCSTable, req.MCSTableName)
		}
		key := modulation.LinkKey{TxNode: req.DesiredTx.Node, RxNode: req.Receiver.Node}
		result := sel.Select(key, agg.SINRDB)
		idx := result.Entry.Index
		resp.MCSIndex = &idx
		resp.BelowThreshold = result.BelowThreshold
		mod, codeRate, fec = result.Entry.Modulation, result.Entry.CodeRate, result.Entry.FEC
	}

	rates := modulation.ComputeErrorRates(mod, agg.SINRDB, fec, codeRate, modulation.DefaultBlockBits, modulation.DefaultPacketBits, 0)
	resp.PER = rates.PER

	macMul := req.MACThroughputMultiplier
	if macMul <= 0 {
		macMul = 1.0
	}
	resp.RateMbps = modulation.EffectiveRateMbps(req.Receiver.BandwidthHz, mod, codeRate, 0, rates.PER, macMul)

	return resp, nil
}

// observeComputeSingle wraps ComputeSingle with the latency histogram,
// error counter and per-link SNR gauge the metrics registry exposes; the
// HTTP transport calls this instead of ComputeSingle directly so that
// in-process callers (e.g. internal/controller) can still use the bare
// method without paying for metrics plumbing they don't need.
func (s *Service) observeComputeSingle(req ComputeSingleRequest) (ComputeSingleResponse, error) {
	start := time.Now()
	resp, err := s.ComputeSingle(req)
	engineUsed := resp.EngineUsed
	if engineUsed == "" {
		engineUsed = req.EngineType
	}
	if s.Metrics != nil {
		s.Metrics.ComputeLatencySeconds.WithLabelValues("single", engineUsed).Observe(time.Since(start).Seconds())
		if err != nil {
			s.Metrics.ComputeErrorsTotal.WithLabelValues(errorKind(err)).Inc()
		} else {
			s.Metrics.LinkSNRDB.WithLabelValues(req.Tx.Node, req.Rx.Node).Set(resp.SNRDB)
		}
	}
	return resp, err
}

// observeComputeSINR is observeComputeSingle's counterpart for
// /compute/sinr.
func (s *Service) observeComputeSINR(req ComputeSINRRequest) (ComputeSINRResponse, error) {
	start := time.Now()
	resp, err := s.ComputeSINR(req)
	engineUsed := resp.EngineUsed
	if engineUsed == "" {
		engineUsed = req.EngineType
	}
	if s.Metrics != nil {
		s.Metrics.ComputeLatencySeconds.WithLabelValues("sinr", engineUsed).Observe(time.Since(start).Seconds())
		if err != nil {
			s.Metrics.ComputeErrorsTotal.WithLabelValues(errorKind(err)).Inc()
		} else {
			s.Metrics.LinkSINRDB.WithLabelValues(req.DesiredTx.Node, req.Receiver.Node).Set(resp.SINRDB)
		}
	}
	return resp, err
}

// errorKind reduces an error to the label cardinality metrics want: the
// sentinel it wraps, or "other" for anything unclassified.
func errorKind(err error) string {
	switch {
	case errors.Is(err, propagation.ErrEngineUnavailable):
		return "engine_unavailable"
	case errors.Is(err, propagation.ErrSceneNotLoaded):
		return "scene_not_loaded"
	case errors.Is(err, propagation.ErrSceneReloadUnsupported):
		return "scene_reload_conflict"
	case errors.Is(err, scene.ErrGeometricForced):
		return "geometric_forced"
	case errors.Is(err, ErrUnknownMCSTable):
		return "unknown_mcs_table"
	default:
		return "other"
	}
}
