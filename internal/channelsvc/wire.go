// Package channelsvc implements the channel computation service: an HTTP
// service composing the propagation, link-budget, modulation and
// interference packages into per-link and per-receiver compute operations.
package channelsvc

import "github.com/joshuamhtsang/sine/internal/modulation"

// PositionWire is the wire form of propagation.Position.
type PositionWire struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// RadioWire is the wire form of one link endpoint's radio parameters.
type RadioWire struct {
	Node             string       `json:"node"`
	Position         PositionWire `json:"position"`
	FrequencyHz      float64      `json:"frequency_hz"`
	BandwidthHz      float64      `json:"bandwidth_hz"`
	TxPowerDBm       float64      `json:"tx_power_dbm"`
	NoiseFigureDB    float64      `json:"noise_figure_db"`
	RxSensitivityDBm float64      `json:"rx_sensitivity_dbm"`
	AntennaPattern   string       `json:"antenna_pattern,omitempty"`
	AntennaGainDBi   *float64     `json:"antenna_gain_dbi,omitempty"`
}

// MCSEntryWire is the wire form of modulation.MCSEntry, used only by the
// /api/mcs-tables registration operation, not by per-link compute requests.
type MCSEntryWire struct {
	Index        int     `json:"mcs_index"`
	Modulation   string  `json:"modulation"`
	CodeRate     float64 `json:"code_rate"`
	FECType      string  `json:"fec_type"`
	BandwidthMHz float64 `json:"bandwidth_mhz"`
	MinSNRDB     float64 `json:"min_snr_db"`
}

func toMCSTable(wire []MCSEntryWire) (*modulation.MCSTable, error) {
	if len(wire) == 0 {
		return nil, nil
	}
	entries := make([]modulation.MCSEntry, len(wire))
	for i, w := range wire {
		entries[i] = modulation.MCSEntry{
			Index:        w.Index,
			Modulation:   modulation.Kind(w.Modulation),
			CodeRate:     w.CodeRate,
			FEC:          modulation.FECType(w.FECType),
			BandwidthMHz: w.BandwidthMHz,
			MinSNRDB:     w.MinSNRDB,
		}
	}
	return modulation.NewMCSTable(entries)
}

// RegisterMCSTableRequest is the body of POST /api/mcs-tables/{name}. The
// controller calls this once per MCS table referenced by the topology
// (the interface's mcs_table path), after loading it via
// internal/topology.LoadMCSTable, so that the hysteresis selector for that
// table persists across compute calls instead of being rebuilt per request.
type RegisterMCSTableRequest struct {
	Entries      []MCSEntryWire `json:"entries"`
	HysteresisDB float64        `json:"hysteresis_db,omitempty"`
}

// ErrorResponse is the JSON body for any non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	SceneLoaded       bool `json:"scene_loaded"`
	GeometricAvailable bool `json:"geometric_available"`
	AnalyticAvailable bool `json:"analytic_available"`
	EngineForced      bool `json:"engine_forced,omitempty"`
}

// LoadSceneRequest is the body of POST /scene/load.
type LoadSceneRequest struct {
	SceneFile   string  `json:"scene_file"`
	FrequencyHz float64 `json:"frequency_hz"`
	BandwidthHz float64 `json:"bandwidth_hz"`
}

// ComputeSingleRequest is the body of POST /compute/single and one element
// of POST /compute/batch's links array.
type ComputeSingleRequest struct {
	Tx                      RadioWire `json:"tx"`
	Rx                      RadioWire `json:"rx"`
	EngineType              string    `json:"engine_type,omitempty"`
	MCSTableName            string    `json:"mcs_table_name,omitempty"`
	MACJitterMs             float64   `json:"mac_jitter_ms,omitempty"`
	MACThroughputMultiplier float64   `json:"mac_throughput_multiplier,omitempty"`
}

// ComputeSingleResponse is the response of /compute/single and one element
// of /compute/batch's response array.
type ComputeSingleResponse struct {
	PathLossDB       float64 `json:"path_loss_db"`
	SNRDB            float64 `json:"snr_db"`
	BER              float64 `json:"ber"`
	PER              float64 `json:"per"`
	RateMbps         float64 `json:"rate_mbps"`
	DelayMs          float64 `json:"delay_ms"`
	JitterMs         float64 `json:"jitter_ms"`
	RMSDelaySpreadNs float64 `json:"rms_delay_spread_ns"`
	MCSIndex         *int    `json:"mcs_index,omitempty"`
	Modulation       string  `json:"modulation,omitempty"`
	CodeRate         float64 `json:"code_rate,omitempty"`
	EngineUsed       string  `json:"engine_used"`
	BelowThreshold   bool    `json:"below_threshold,omitempty"`
}

// ComputeBatchRequest is the body of POST /compute/batch.
type ComputeBatchRequest struct {
	Links []ComputeSingleRequest `json:"links"`
}

// InterfererWire is one interferer entry in a ComputeSINRRequest.
type InterfererWire struct {
	SourceNode     string       `json:"source_node"`
	Position       PositionWire `json:"position"`
	TxPowerDBm     float64      `json:"tx_power_dbm"`
	AntennaPattern string       `json:"antenna_pattern,omitempty"`
	AntennaGainDBi *float64     `json:"antenna_gain_dbi,omitempty"`
	FrequencyHz    float64      `json:"frequency_hz"`
	BandwidthHz    float64      `json:"bandwidth_hz"`
	ActiveProb     float64      `json:"active_prob"`
}

// ACLRConfigWire overrides the ACLR piecewise constants for one
// ComputeSINRRequest, mirroring a topology's aclr_config{...} block.
type ACLRConfigWire struct {
	TransitionStartDB float64 `json:"transition_start_db,omitempty"`
	TransitionEndDB   float64 `json:"transition_end_db,omitempty"`
	AdjacentBandDB    float64 `json:"adjacent_band_db,omitempty"`
	FarDB             float64 `json:"far_db,omitempty"`
}

// ComputeSINRRequest is the body of POST /compute/sinr.
type ComputeSINRRequest struct {
	Receiver                RadioWire        `json:"receiver"`
	DesiredTx               RadioWire        `json:"desired_tx"`
	Interferers             []InterfererWire `json:"interferers"`
	EngineType              string           `json:"engine_type,omitempty"`
	MCSTableName            string           `json:"mcs_table_name,omitempty"`
	MACJitterMs             float64          `json:"mac_jitter_ms,omitempty"`
	MACThroughputMultiplier float64          `json:"mac_throughput_multiplier,omitempty"`
	ACLRConfig              *ACLRConfigWire  `json:"aclr_config,omitempty"`
}

// InterferenceTermWire is one accepted interference contribution.
type InterferenceTermWire struct {
	SourceNode            string  `json:"source"`
	PowerDBm              float64 `json:"power_dbm"`
	ACLRDB                float64 `json:"aclr_db"`
	FrequencySeparationHz float64 `json:"frequency_separation_hz"`
}

// ComputeSINRResponse is the response of POST /compute/sinr.
type ComputeSINRResponse struct {
	SNRDB            float64                `json:"snr_db"`
	SINRDB           float64                `json:"sinr_db"`
	PER              float64                `json:"per"`
	RateMbps         float64                `json:"rate_mbps"`
	RMSDelaySpreadNs float64                `json:"rms_delay_spread_ns"`
	MCSIndex         *int                   `json:"mcs_index,omitempty"`
	Regime           string                 `json:"regime"`
	InterfererTerms  []InterferenceTermWire `json:"interferer_terms"`
	EngineUsed       string                 `json:"engine_used"`
	BelowThreshold   bool                   `json:"below_threshold,omitempty"`
}

// TransmissionStateResponse is the body of GET /api/transmission/state.
type TransmissionStateResponse struct {
	Generation uint64          `json:"generation"`
	State      map[string]bool `json:"state"`
}

// UpdateTransmissionStateRequest is the body of POST /api/transmission/state.
type UpdateTransmissionStateRequest struct {
	Updates map[string]bool `json:"updates"`
}
