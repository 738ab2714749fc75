package controller

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/joshuamhtsang/sine/internal/channelsvc"
	"github.com/joshuamhtsang/sine/internal/mac"
	"github.com/joshuamhtsang/sine/internal/netprog"
	"github.com/joshuamhtsang/sine/internal/topology"
)

// maxConcurrentComputes bounds the worker pool around channel-compute
// calls.
const maxConcurrentComputes = 8

// safeDefaultNetem is the conservative profile applied to a link whose
// compute failed: the link is marked degraded but traffic still flows,
// badly.
var safeDefaultNetem = netprog.Params{DelayMs: 200, JitterMs: 50, LossPercent: 20, RateMbps: 1}

// DeployReport is the per-direction deployment summary; degraded links
// carry their cause.
type DeployReport struct {
	DeploymentID string
	Status       Status
	Links        []LinkState
}

// Deploy runs the full lifecycle: provision, scene bind, enumerate,
// compute, program, summarise. dryRun skips provisioning and netem
// programming while still resolving, computing and reporting every
// directional link.
func (c *Controller) Deploy(ctx context.Context, dryRun bool) (DeployReport, error) {
	if err := topology.Validate(c.Doc); err != nil {
		return DeployReport{}, fmt.Errorf("controller: resolve topology: %w", err)
	}

	if !dryRun {
		pids, vethNames, err := c.Runtime.Provision(ctx, c.Doc)
		if err != nil {
			return DeployReport{}, fmt.Errorf("controller: provision: %w", err)
		}
		c.mu.Lock()
		c.pids = pids
		c.veth = vethNames
		c.mu.Unlock()
	}

	centre := sceneCentreFrequency(c.Doc)
	if err := c.Channel.LoadScene(ctx, channelsvc.LoadSceneRequest{
		SceneFile:   c.Doc.Scene.File,
		FrequencyHz: centre.FrequencyHz,
		BandwidthHz: centre.BandwidthHz,
	}); err != nil {
		return DeployReport{}, fmt.Errorf("controller: scene bind: %w", err)
	}

	if err := c.registerMCSTables(ctx); err != nil {
		return DeployReport{}, err
	}

	if len(c.Doc.TransmissionState) > 0 {
		if err := c.Channel.UpdateTransmissionState(ctx, c.Doc.TransmissionState); err != nil {
			return DeployReport{}, fmt.Errorf("controller: seed transmission state: %w", err)
		}
	}

	links := enumerateLinks(c.Doc)
	c.mu.Lock()
	c.links = links
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentComputes)
	for _, link := range links {
		link := link
		g.Go(func() error {
			c.computeAndProgram(gctx, link, dryRun)
			return nil
		})
	}
	_ = g.Wait() // computeAndProgram never returns an error; failures become degraded/unmanaged state

	return c.report(), nil
}

// sceneCentre is the fleet-wide scene binding frequency/bandwidth.
//
// The scene is a process-wide singleton, so a heterogeneous-frequency
// topology binds it to the first wireless interface's
// frequency/bandwidth found rather than running multiple scenes.
type sceneCentre struct {
	FrequencyHz float64
	BandwidthHz float64
}

func sceneCentreFrequency(doc *topology.Document) sceneCentre {
	for _, node := range doc.Nodes {
		for _, iface := range node.Interfaces {
			if iface.FixedNetem != nil {
				continue
			}
			return sceneCentre{FrequencyHz: iface.FrequencyHz, BandwidthHz: iface.BandwidthHz}
		}
	}
	return sceneCentre{}
}

// computeAndProgram resolves one directional link's channel quality, then
// programs (or, in dry-run, just records) the corresponding netem profile.
// Per-link failure semantics: a compute failure
// degrades the link with a safe-default profile rather than aborting the
// deployment, and a programming failure is retried once before the
// interface is marked unmanaged.
func (c *Controller) computeAndProgram(ctx context.Context, link DirectionalLink, dryRun bool) {
	mu := c.muFor(link)
	mu.Lock()
	defer mu.Unlock()

	txIface, ok := lookupInterface(c.Doc, link.TxNode, link.TxIface)
	if !ok {
		c.setState(link, LinkState{Link: link, Status: LinkUnmanaged, Cause: "unknown tx interface"})
		return
	}
	rxIface, ok := lookupInterface(c.Doc, link.RxNode, link.RxIface)
	if !ok {
		c.setState(link, LinkState{Link: link, Status: LinkUnmanaged, Cause: "unknown rx interface"})
		return
	}

	if txIface.FixedNetem != nil || rxIface.FixedNetem != nil {
		c.programFixed(ctx, link, txIface, dryRun)
		return
	}

	params, snrDB, sinrDB, rateMbps, delaySpreadNs, err := c.computeLink(ctx, link, txIface, rxIface)
	if err != nil {
		c.Log.Warnf("controller: compute failed for %s->%s: %v", link.TxNode, link.RxNode, err)
		c.setState(link, LinkState{Link: link, Status: LinkDegraded, Cause: err.Error()})
		c.applyNetem(ctx, link, safeDefaultNetem, degradedMetricDB, dryRun)
		return
	}

	c.setState(link, LinkState{
		Link: link, Status: LinkOK, SNRDB: snrDB, SINRDB: sinrDB, RateMbps: rateMbps,
		DelayMs: params.DelayMs, RMSDelaySpreadNs: delaySpreadNs,
	})
	c.applyNetem(ctx, link, params, sinrDB, dryRun)
}

func (c *Controller) programFixed(ctx context.Context, link DirectionalLink, txIface *topology.Interface, dryRun bool) {
	fx := txIface.FixedNetem
	params := netprog.Params{DelayMs: fx.DelayMs, JitterMs: fx.JitterMs, LossPercent: fx.LossPercent, RateMbps: fx.RateMbps}
	c.setState(link, LinkState{Link: link, Status: LinkOK, RateMbps: fx.RateMbps, DelayMs: fx.DelayMs})
	c.applyNetem(ctx, link, params, 0, dryRun)
}

// computeLink issues the channel-compute call for link and converts the
// response into netem parameters. The returned RMS delay spread is a
// diagnostic value only — netem jitter is never derived from it — and is
// kept separate from the netem params.
func (c *Controller) computeLink(ctx context.Context, link DirectionalLink, txIface, rxIface *topology.Interface) (params netprog.Params, snrDB, sinrDB, rateMbps, rmsDelaySpreadNs float64, err error) {
	interferers, err := c.buildInterferers(ctx, link, rxIface)
	if err != nil {
		return netprog.Params{}, 0, 0, 0, 0, err
	}

	macMul, err := c.macThroughputMultiplier(link.TxNode, txIface)
	if err != nil {
		return netprog.Params{}, 0, 0, 0, 0, err
	}

	if len(interferers) == 0 {
		resp, err := c.Channel.ComputeSingle(ctx, channelsvc.ComputeSingleRequest{
			Tx: radioWire(link.TxNode, txIface), Rx: radioWire(link.RxNode, rxIface),
			MCSTableName:            txIface.MCSTable,
			MACThroughputMultiplier: macMul,
		})
		if err != nil {
			return netprog.Params{}, 0, 0, 0, 0, err
		}
		params := netprog.Params{DelayMs: resp.DelayMs, JitterMs: resp.JitterMs, LossPercent: perToLossPercent(resp.PER), RateMbps: orDefault(resp.RateMbps, 1)}
		params.MCSIndex = resp.MCSIndex
		return params, resp.SNRDB, resp.SNRDB, resp.RateMbps, resp.RMSDelaySpreadNs, nil
	}

	resp, err := c.Channel.ComputeSINR(ctx, channelsvc.ComputeSINRRequest{
		Receiver: radioWire(link.RxNode, rxIface), DesiredTx: radioWire(link.TxNode, txIface),
		Interferers:             interferers,
		MCSTableName:            rxIface.MCSTable,
		MACThroughputMultiplier: macMul,
		ACLRConfig:              aclrConfigWire(c.Doc.ACLRConfigOverride),
	})
	if err != nil {
		return netprog.Params{}, 0, 0, 0, 0, err
	}
	params = netprog.Params{DelayMs: propagationDelayEstimate(txIface, rxIface), LossPercent: perToLossPercent(resp.PER), RateMbps: orDefault(resp.RateMbps, 1)}
	params.MCSIndex = resp.MCSIndex
	return params, resp.SNRDB, resp.SINRDB, resp.RateMbps, resp.RMSDelaySpreadNs, nil
}

func orDefault(v, fallback float64) float64 {
	if v <= 0 {
		return fallback
	}
	return v
}

func perToLossPercent(per float64) float64 {
	return math.Min(100, math.Max(0, per*100))
}

func propagationDelayEstimate(tx, rx *topology.Interface) float64 {
	return distance(tx.Position, rx.Position) / speedOfLightMPerS * 1000.0
}

const speedOfLightMPerS = 299792458.0

func distance(a, b topology.Position) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// buildInterferers resolves the active-interferer set for a receiver: any
// other node whose carrier is not orthogonal to the receiver's (see
// candidateInterferers), with an activity probability from the
// receiver's MAC model if one is configured, else from TransmissionState.
func (c *Controller) buildInterferers(ctx context.Context, link DirectionalLink, rxIface *topology.Interface) ([]channelsvc.InterfererWire, error) {
	if !c.Doc.EnableSINR {
		return nil, nil
	}
	candidates := candidateInterferers(c.Doc, link, rxIface)
	if len(candidates) == 0 {
		return nil, nil
	}

	txIface, _ := lookupInterface(c.Doc, link.TxNode, link.TxIface)
	csma, tdma := macModelFor(rxIface)
	communicationRange := distance(txIface.Position, rxIface.Position)

	out := make([]channelsvc.InterfererWire, 0, len(candidates))
	for _, cand := range candidates {
		activeProb, err := c.interfererActiveProb(ctx, link.TxNode, cand.Node, txIface, cand.Iface, csma, tdma, communicationRange)
		if err != nil {
			return nil, err
		}
		if activeProb <= 0 {
			continue
		}
		out = append(out, channelsvc.InterfererWire{
			SourceNode:     cand.Node,
			Position:       channelsvc.PositionWire{X: cand.Iface.Position.X, Y: cand.Iface.Position.Y, Z: cand.Iface.Position.Z},
			TxPowerDBm:     cand.Iface.TxPowerDBm,
			AntennaPattern: cand.Iface.AntennaPattern,
			AntennaGainDBi: cand.Iface.AntennaGainDBi,
			FrequencyHz:    cand.Iface.FrequencyHz,
			BandwidthHz:    cand.Iface.BandwidthHz,
			ActiveProb:     activeProb,
		})
	}
	return out, nil
}

func (c *Controller) interfererActiveProb(ctx context.Context, txNode, interfererNode string, txIface, interfererIface *topology.Interface, csma *mac.CSMA, tdma *mac.TDMA, communicationRange float64) (float64, error) {
	switch {
	case csma != nil:
		d := distance(txIface.Position, interfererIface.Position)
		return csma.ActiveProb(d, communicationRange), nil
	case tdma != nil:
		return tdma.ActiveProb(txNode, interfererNode)
	default:
		active, err := c.Channel.IsTransmitting(ctx, interfererNode)
		if err != nil {
			return 0, err
		}
		if active {
			return 1.0, nil
		}
		return 0.0, nil
	}
}

// degradedMetricDB is the hysteresis metric recorded for a safe-default
// apply. Far outside any plausible SNR so that the transition into and out
// of the degraded profile always clears the hysteresis margin.
const degradedMetricDB = -100.0

// applyNetem hands params to the Netem Programmer with the metric the
// hysteresis rule tracks (the direction's SINR, or SNR when no
// interference is in play), retrying once on failure before marking the
// interface unmanaged. In dry-run, or with no Programmer, it does nothing;
// the caller has already recorded the link's state.
func (c *Controller) applyNetem(ctx context.Context, link DirectionalLink, params netprog.Params, metricDB float64, dryRun bool) {
	if dryRun || c.Programmer == nil {
		return
	}
	// A node with no pid or veth means the runtime lost (or never made)
	// its container: the topology is only partially under management.
	pid, ok := c.pid(link.TxNode)
	if !ok {
		c.markUnmanaged(link, "no container pid for tx node")
		c.markPartial()
		return
	}
	vethName, ok := c.vethName(link.TxNode, link.TxIface)
	if !ok {
		c.markUnmanaged(link, "no veth name for tx interface")
		c.markPartial()
		return
	}

	sharedBridge := c.Doc.SharedBridge != nil && c.Doc.SharedBridge.Enabled

	var destIP string
	if sharedBridge {
		var ok bool
		destIP, ok = c.Doc.SharedBridge.NodeBridgeIP(link.RxNode)
		if !ok {
			c.markUnmanaged(link, "rx node not a shared-bridge participant")
			return
		}
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		var err error
		if sharedBridge {
			_, err = c.Programmer.ProgramDestination(pid, vethName, destIP, link.direction(), metricDB, params)
		} else {
			_, err = c.Programmer.ProgramPointToPoint(pid, vethName, link.direction(), metricDB, params)
		}
		if err == nil {
			return
		}
		lastErr = err
	}
	c.Log.Warnf("controller: netem programming failed twice for %s/%s: %v", link.TxNode, vethName, lastErr)
	c.markUnmanaged(link, lastErr.Error())
}

func (c *Controller) markUnmanaged(link DirectionalLink, cause string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.state[link]; ok {
		s.Status = LinkUnmanaged
		s.Cause = cause
	}
}

func (c *Controller) report() DeployReport {
	return DeployReport{
		DeploymentID: c.DeploymentID.String(),
		Status:       c.Status(),
		Links:        c.LinkStates(),
	}
}
