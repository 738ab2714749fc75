package controller

import (
	"context"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/joshuamhtsang/sine/internal/topology"
)

// TxBytesReader reads a node interface's cumulative transmitted byte
// counter inside the container's network namespace. The production
// implementation is [netprog.NetlinkBackend]; tests inject a fake.
type TxBytesReader interface {
	TxBytes(pid int, ifaceName string) (uint64, error)
}

// TxDetectorConfig tunes the transmission-state auto-detection loop.
type TxDetectorConfig struct {
	// PollInterval between counter samples. Defaults to 100ms.
	PollInterval time.Duration

	// ThresholdKbps is the smoothed TX rate above which a node counts as
	// transmitting. Defaults to 100 kbps.
	ThresholdKbps float64

	// HysteresisKbps widens the threshold into a dead band so a rate
	// hovering at the threshold does not flap the state. Defaults to 10.
	HysteresisKbps float64

	// WindowSize is the number of samples the rate is smoothed over.
	// Defaults to 5.
	WindowSize int
}

func (c TxDetectorConfig) resolve() TxDetectorConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.ThresholdKbps <= 0 {
		c.ThresholdKbps = 100
	}
	if c.HysteresisKbps <= 0 {
		c.HysteresisKbps = 10
	}
	if c.WindowSize <= 0 {
		c.WindowSize = 5
	}
	return c
}

// TxActivityDetector polls per-interface TX byte counters and flips each
// node's transmission state when its smoothed rate crosses the threshold,
// then recomputes the SINR links the flip affects.
type TxActivityDetector struct {
	ctrl   *Controller
	reader TxBytesReader
	cfg    TxDetectorConfig

	lastBytes  map[string]uint64
	lastSample map[string]time.Time
	window     map[string][]float64
	active     map[string]bool
}

// NewTxActivityDetector constructs a detector over ctrl's deployed
// topology. The controller must have been deployed (non-dry-run) so
// container pids and veth names are known.
func NewTxActivityDetector(ctrl *Controller, reader TxBytesReader, cfg TxDetectorConfig) *TxActivityDetector {
	return &TxActivityDetector{
		ctrl:       ctrl,
		reader:     reader,
		cfg:        cfg.resolve(),
		lastBytes:  make(map[string]uint64),
		lastSample: make(map[string]time.Time),
		window:     make(map[string][]float64),
		active:     make(map[string]bool),
	}
}

// Run polls until ctx is cancelled.
func (d *TxActivityDetector) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			d.pollOnce(ctx, now)
		}
	}
}

// wirelessIface returns the name of node's first non-fixed interface, the
// one whose TX counter stands in for the node's radio activity.
func wirelessIface(doc *topology.Document, node string) (string, bool) {
	n, ok := doc.Nodes[node]
	if !ok {
		return "", false
	}
	for name, iface := range n.Interfaces {
		if iface.FixedNetem == nil {
			return name, true
		}
	}
	return "", false
}

// pollOnce samples every node once and handles any state flips. now is a
// parameter so tests can drive deterministic sample spacing.
func (d *TxActivityDetector) pollOnce(ctx context.Context, now time.Time) {
	flipped := make(map[string]bool)

	for node := range d.ctrl.Doc.Nodes {
		ifaceName, ok := wirelessIface(d.ctrl.Doc, node)
		if !ok {
			continue
		}
		pid, ok := d.ctrl.pid(node)
		if !ok {
			continue
		}
		vethName, ok := d.ctrl.vethName(node, ifaceName)
		if !ok {
			continue
		}

		count, err := d.reader.TxBytes(pid, vethName)
		if err != nil {
			d.ctrl.Log.Debugf("controller: tx counter read failed for %s/%s: %v", node, vethName, err)
			continue
		}

		prev, sampled := d.lastBytes[node]
		prevAt := d.lastSample[node]
		d.lastBytes[node] = count
		d.lastSample[node] = now
		if !sampled {
			continue
		}
		dt := now.Sub(prevAt).Seconds()
		if dt <= 0 || count < prev {
			continue // counter reset or duplicate tick
		}
		kbps := float64(count-prev) * 8 / 1000 / dt

		win := append(d.window[node], kbps)
		if len(win) > d.cfg.WindowSize {
			win = win[len(win)-d.cfg.WindowSize:]
		}
		d.window[node] = win
		smoothed, err := stats.Mean(stats.Float64Data(win))
		if err != nil {
			continue
		}

		wasActive, known := d.active[node]
		if !known {
			wasActive = true // TransmissionState defaults to transmitting
		}
		switch {
		case !wasActive && smoothed > d.cfg.ThresholdKbps+d.cfg.HysteresisKbps:
			d.active[node] = true
			flipped[node] = true
		case wasActive && smoothed < d.cfg.ThresholdKbps-d.cfg.HysteresisKbps:
			d.active[node] = false
			flipped[node] = false
		default:
			if !known {
				d.active[node] = wasActive
			}
		}
	}

	if len(flipped) == 0 {
		return
	}
	if err := d.ctrl.Channel.UpdateTransmissionState(ctx, flipped); err != nil {
		d.ctrl.Log.Warnf("controller: transmission state update failed: %v", err)
		return
	}
	for node := range flipped {
		d.ctrl.recomputeLinksTouching(ctx, node)
	}
}

// recomputeLinksTouching recomputes every directional link whose SINR
// depends on node: those it transmits or receives on, plus those where it
// is a candidate interferer for the receiver.
func (c *Controller) recomputeLinksTouching(ctx context.Context, node string) {
	c.mu.Lock()
	links := append([]DirectionalLink(nil), c.links...)
	c.mu.Unlock()

	for _, link := range links {
		if link.TxNode == node || link.RxNode == node {
			c.computeAndProgram(ctx, link, false)
			continue
		}
		rxIface, ok := lookupInterface(c.Doc, link.RxNode, link.RxIface)
		if !ok || rxIface.FixedNetem != nil {
			continue
		}
		for _, cand := range candidateInterferers(c.Doc, link, rxIface) {
			if cand.Node == node {
				c.computeAndProgram(ctx, link, false)
				break
			}
		}
	}
}
