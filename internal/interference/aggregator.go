package interference

import "math"

// ReceiverParams describes the receiver side of an interference
// computation.
type ReceiverParams struct {
	GainDBi           float64
	NoiseFigureDB     float64
	SensitivityDBm    float64
	BandwidthHz       float64
	FrequencyHz       float64
}

// Interferer is one candidate interfering transmitter.
type Interferer struct {
	// SourceNode identifies the interferer, for diagnostics.
	SourceNode string

	// PathLossDB is the path loss from this interferer to the receiver,
	// computed by the same propagation engine and scene as the desired
	// link (the caller is responsible for that consistency).
	PathLossDB float64

	// TxPowerDBm, TxGainDBi describe the interferer's transmitter.
	TxPowerDBm float64
	TxGainDBi  float64

	// FrequencyHz, BandwidthHz describe the interferer's channel.
	FrequencyHz float64
	BandwidthHz float64

	// ActiveProb is the probability in [0,1] that this interferer is
	// transmitting, as produced by a MAC model or the TransmissionState.
	ActiveProb float64
}

// Term is one accepted interference contribution, reported back as the
// SINR response's interferer_terms diagnostics.
type Term struct {
	SourceNode             string
	PowerDBm               float64
	FrequencySeparationHz  float64
	ACLRDB                 float64
	ActiveProb             float64
}

// Result is the outcome of aggregating interference at one receiver.
type Result struct {
	SignalDBm      float64
	NoiseDBm       float64
	InterferenceDBm float64 // 10*log10(I_total_linear), -inf-safe via large negative sentinel
	SINRDB         float64
	Regime         string
	Terms          []Term
}

// Regime names.
const (
	RegimeNoiseLimited       = "noise-limited"
	RegimeInterferenceLimited = "interference-limited"
	RegimeMixed              = "mixed"
)

// dbmToLinearMilliwatt converts dBm to linear milliwatts.
func dbmToLinearMilliwatt(dbm float64) float64 {
	return math.Pow(10, dbm/10)
}

// linearMilliwattToDBm converts linear milliwatts back to dBm. Returns a
// very negative sentinel for a zero (no-interference) input rather than
// -Inf, so downstream arithmetic stays well-defined.
func linearMilliwattToDBm(mw float64) float64 {
	if mw <= 0 {
		return -300
	}
	return 10 * math.Log10(mw)
}

// evaluateTerm computes one interferer's contribution at the receiver,
// applying antenna-gain-embedding, ACLR and the orthogonality cutoff. It
// returns (power_dbm, aclr_db, accepted).
func evaluateTerm(rx ReceiverParams, it Interferer, antennaGainEmbedded bool, aclrCfg Config) (float64, float64, bool) {
	deltaF := it.FrequencyHz - rx.FrequencyHz
	if IsOrthogonal(deltaF, it.BandwidthHz, rx.BandwidthHz) {
		return 0, 0, false
	}
	aclr := ACLRDBWithConfig(deltaF, it.BandwidthHz, rx.BandwidthHz, aclrCfg)

	txGain := it.TxGainDBi
	rxGain := rx.GainDBi
	if antennaGainEmbedded {
		txGain = 0
		rxGain = 0
	}

	powerDBm := it.TxPowerDBm + txGain + rxGain - it.PathLossDB - aclr
	if powerDBm < rx.SensitivityDBm {
		return powerDBm, aclr, false
	}
	if it.ActiveProb <= 0 {
		return powerDBm, aclr, false
	}
	return powerDBm, aclr, true
}

// Aggregate computes SINR for one receiver given the desired signal power
// (already computed by linkbudget.SNRLink, passed in as signalDBm/noiseDBm)
// and a list of candidate interferers. aclrCfg optionally overrides the
// ACLR piecewise constants (topology's aclr_config{...}); omitting it uses
// DefaultConfig.
func Aggregate(rx ReceiverParams, signalDBm, noiseDBm float64, interferers []Interferer, antennaGainEmbedded bool, aclrCfg ...Config) Result {
	cfg := DefaultConfig
	if len(aclrCfg) > 0 && aclrCfg[0] != (Config{}) {
		cfg = aclrCfg[0]
	}

	var totalLinearMW float64
	var terms []Term

	for _, it := range interferers {
		powerDBm, aclr, accepted := evaluateTerm(rx, it, antennaGainEmbedded, cfg)
		if !accepted {
			continue
		}
		totalLinearMW += it.ActiveProb * dbmToLinearMilliwatt(powerDBm)
		terms = append(terms, Term{
			SourceNode:            it.SourceNode,
			PowerDBm:              powerDBm,
			FrequencySeparationHz: math.Abs(it.FrequencyHz - rx.FrequencyHz),
			ACLRDB:                aclr,
			ActiveProb:            it.ActiveProb,
		})
	}

	interferenceDBm := linearMilliwattToDBm(totalLinearMW)
	noiseLinearMW := dbmToLinearMilliwatt(noiseDBm)
	sinrDB := signalDBm - 10*math.Log10(noiseLinearMW+totalLinearMW)

	regime := RegimeMixed
	switch {
	case interferenceDBm < noiseDBm-10:
		regime = RegimeNoiseLimited
	case interferenceDBm > noiseDBm+10:
		regime = RegimeInterferenceLimited
	}

	return Result{
		SignalDBm:       signalDBm,
		NoiseDBm:        noiseDBm,
		InterferenceDBm: interferenceDBm,
		SINRDB:          sinrDB,
		Regime:          regime,
		Terms:           terms,
	}
}
