package controller

import (
	"context"
	"fmt"

	"github.com/joshuamhtsang/sine/internal/channelsvc"
	"github.com/joshuamhtsang/sine/internal/modulation"
	"github.com/joshuamhtsang/sine/internal/topology"
)

// registerMCSTables loads every distinct mcs_table path referenced by the
// topology and registers it with the Channel Service under that path as
// its name, so that the per-(tx,rx) hysteresis selector
// internal/channelsvc.Service keeps for it persists across every compute
// call that references it: per-link hysteresis needs one long-lived
// Selector, not one rebuilt per request.
func (c *Controller) registerMCSTables(ctx context.Context) error {
	seen := make(map[string]bool)
	for _, node := range c.Doc.Nodes {
		for _, iface := range node.Interfaces {
			if iface.MCSTable == "" || seen[iface.MCSTable] {
				continue
			}
			seen[iface.MCSTable] = true

			table, err := topology.LoadMCSTable(iface.MCSTable)
			if err != nil {
				return fmt.Errorf("controller: load mcs table %s: %w", iface.MCSTable, err)
			}
			req := channelsvc.RegisterMCSTableRequest{Entries: mcsTableWire(table)}
			if err := c.Channel.RegisterMCSTable(ctx, iface.MCSTable, req); err != nil {
				return fmt.Errorf("controller: register mcs table %s: %w", iface.MCSTable, err)
			}
		}
	}
	return nil
}

func mcsTableWire(table *modulation.MCSTable) []channelsvc.MCSEntryWire {
	out := make([]channelsvc.MCSEntryWire, table.Len())
	for i := 0; i < table.Len(); i++ {
		e := table.Entry(i)
		out[i] = channelsvc.MCSEntryWire{
			Index:        e.Index,
			Modulation:   string(e.Modulation),
			CodeRate:     e.CodeRate,
			FECType:      string(e.FEC),
			BandwidthMHz: e.BandwidthMHz,
			MinSNRDB:     e.MinSNRDB,
		}
	}
	return out
}
