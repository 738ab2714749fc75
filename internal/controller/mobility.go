package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/montanaflynn/stats"

	"github.com/joshuamhtsang/sine/internal/topology"
)

// NodeInterface names one {node, interface} pair, the unit a position
// update addresses.
type NodeInterface struct {
	Node      string
	Interface string
}

// DelaySpreadSummary aggregates the RMS delay spread observed across a
// mobility tick's recomputed links, for the status endpoint and for
// operators watching a topology's channel volatility.
type DelaySpreadSummary struct {
	MeanNs   float64
	StdDevNs float64
	MaxNs    float64
	Samples  int
}

// MobilityReport is the result of one mobility tick: which directional
// links were touched and how their channel characterisation moved.
type MobilityReport struct {
	AffectedLinks []LinkState
	DelaySpread   DelaySpreadSummary
}

// ApplyMobilityTick is the dynamic-update path: it moves
// the named interfaces to their new positions, identifies every
// directional link whose compute result depends on one of them (as
// transmitter, receiver, or MAC-model interferer), and recomputes exactly
// that coalesced set rather than the whole topology.
func (c *Controller) ApplyMobilityTick(ctx context.Context, updates map[NodeInterface]topology.Position) (MobilityReport, error) {
	c.mu.Lock()
	for ni, pos := range updates {
		node, ok := c.Doc.Nodes[ni.Node]
		if !ok {
			c.mu.Unlock()
			return MobilityReport{}, fmt.Errorf("controller: mobility update for unknown node %q", ni.Node)
		}
		iface, ok := node.Interfaces[ni.Interface]
		if !ok {
			c.mu.Unlock()
			return MobilityReport{}, fmt.Errorf("controller: mobility update for unknown interface %q on node %q", ni.Interface, ni.Node)
		}
		iface.Position = pos
	}
	links := append([]DirectionalLink(nil), c.links...)
	c.mu.Unlock()

	affected := affectedLinks(c.Doc, links, updates)
	if len(affected) == 0 {
		return MobilityReport{}, nil
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrentComputes)
	for _, link := range affected {
		link := link
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			c.computeAndProgram(ctx, link, false)
		}()
	}
	wg.Wait()

	states := make([]LinkState, 0, len(affected))
	delaySamples := make([]float64, 0, len(affected))
	c.mu.Lock()
	for _, link := range affected {
		if s, ok := c.state[link]; ok {
			states = append(states, *s)
			if s.RMSDelaySpreadNs > 0 {
				delaySamples = append(delaySamples, s.RMSDelaySpreadNs)
			}
		}
	}
	c.mu.Unlock()

	return MobilityReport{AffectedLinks: states, DelaySpread: summarizeDelaySpread(delaySamples)}, nil
}

// affectedLinks is every link in links whose tx, rx, or candidate
// interferer set overlaps one of the nodes named in updates.
func affectedLinks(doc *topology.Document, links []DirectionalLink, updates map[NodeInterface]topology.Position) []DirectionalLink {
	movedNodes := make(map[string]bool, len(updates))
	for ni := range updates {
		movedNodes[ni.Node] = true
	}

	var out []DirectionalLink
	for _, link := range links {
		if movedNodes[link.TxNode] || movedNodes[link.RxNode] {
			out = append(out, link)
			continue
		}
		rxIface, ok := lookupInterface(doc, link.RxNode, link.RxIface)
		if !ok || rxIface.FixedNetem != nil {
			continue
		}
		for _, cand := range candidateInterferers(doc, link, rxIface) {
			if movedNodes[cand.Node] {
				out = append(out, link)
				break
			}
		}
	}
	return out
}

// summarizeDelaySpread aggregates a batch of per-link delay samples.
// Returns the zero value when samples is empty.
func summarizeDelaySpread(samples []float64) DelaySpreadSummary {
	if len(samples) == 0 {
		return DelaySpreadSummary{}
	}
	data := stats.Float64Data(samples)
	mean, _ := data.Mean()
	stddev, _ := data.StandardDeviation()
	max, _ := data.Max()
	return DelaySpreadSummary{MeanNs: mean, StdDevNs: stddev, MaxNs: max, Samples: len(samples)}
}
