package controller

import (
	"encoding/json"
	"net/http"
)

// linkStatusWire is the wire form of one directional link's last-known
// state, returned by GET /api/topology/summary.
type linkStatusWire struct {
	TxNode           string  `json:"tx_node"`
	TxIface          string  `json:"tx_interface"`
	RxNode           string  `json:"rx_node"`
	RxIface          string  `json:"rx_interface"`
	Status           string  `json:"status"`
	SNRDB            float64 `json:"snr_db,omitempty"`
	SINRDB           float64 `json:"sinr_db,omitempty"`
	RateMbps         float64 `json:"rate_mbps,omitempty"`
	DelayMs          float64 `json:"delay_ms,omitempty"`
	RMSDelaySpreadNs float64 `json:"rms_delay_spread_ns,omitempty"`
	Cause            string  `json:"cause,omitempty"`
}

// summaryWire is the body of GET /api/topology/summary.
type summaryWire struct {
	DeploymentID string           `json:"deployment_id"`
	Status       string           `json:"status"`
	Links        []linkStatusWire `json:"links"`
}

// NewStatusMux builds the controller's small status-only HTTP surface: a
// read-only summary a dashboard or health-check can poll without
// shelling out to wnetctl.
func NewStatusMux(c *Controller) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/topology/summary", c.handleSummary)
	return mux
}

func (c *Controller) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	states := c.LinkStates()
	links := make([]linkStatusWire, 0, len(states))
	for _, s := range states {
		links = append(links, linkStatusWire{
			TxNode: s.Link.TxNode, TxIface: s.Link.TxIface,
			RxNode: s.Link.RxNode, RxIface: s.Link.RxIface,
			Status: string(s.Status), SNRDB: s.SNRDB, SINRDB: s.SINRDB,
			RateMbps: s.RateMbps, DelayMs: s.DelayMs, RMSDelaySpreadNs: s.RMSDelaySpreadNs,
			Cause: s.Cause,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(summaryWire{
		DeploymentID: c.DeploymentID.String(),
		Status:       string(c.Status()),
		Links:        links,
	})
}
