package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/pflag"
)

// runStatus polls a running deployment's status endpoint (the one wnetctl
// deploy mounts with --status-addr) and prints the same per-link summary
// deploy does, for checking on a topology without restarting it.
func runStatus(args []string) error {
	fs := pflag.NewFlagSet("status", pflag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8091", "base URL of a running deployment's status endpoint")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/api/topology/summary")
	if err != nil {
		return fmt.Errorf("wnetctl status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wnetctl status: %s returned %d", *addr, resp.StatusCode)
	}

	var summary struct {
		DeploymentID string `json:"deployment_id"`
		Status       string `json:"status"`
		Links        []struct {
			TxNode   string  `json:"tx_node"`
			RxNode   string  `json:"rx_node"`
			Status   string  `json:"status"`
			SNRDB    float64 `json:"snr_db"`
			SINRDB   float64 `json:"sinr_db"`
			RateMbps float64 `json:"rate_mbps"`
			DelayMs  float64 `json:"delay_ms"`
			Cause    string  `json:"cause"`
		} `json:"links"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return fmt.Errorf("wnetctl status: decoding response: %w", err)
	}

	fmt.Printf("deployment %s: %s\n", summary.DeploymentID, summary.Status)
	for _, l := range summary.Links {
		if l.Status == "ok" {
			fmt.Printf("  %-12s -> %-12s  ok       snr=%.1fdB sinr=%.1fdB rate=%.1fMbps delay=%.2fms\n",
				l.TxNode, l.RxNode, l.SNRDB, l.SINRDB, l.RateMbps, l.DelayMs)
		} else {
			fmt.Printf("  %-12s -> %-12s  %-8s (%s)\n", l.TxNode, l.RxNode, l.Status, l.Cause)
		}
	}
	return nil
}
