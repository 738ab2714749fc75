package controller

import (
	"github.com/joshuamhtsang/sine/internal/channelsvc"
	"github.com/joshuamhtsang/sine/internal/interference"
	"github.com/joshuamhtsang/sine/internal/mac"
	"github.com/joshuamhtsang/sine/internal/topology"
)

// enumerateLinks resolves the directional-link set: for point-to-point
// topologies the directional set is both orientations of every configured
// link; for shared-bridge topologies it is the full directed mesh over
// bridge participants.
func enumerateLinks(doc *topology.Document) []DirectionalLink {
	if doc.SharedBridge != nil && doc.SharedBridge.Enabled {
		nodes := doc.SharedBridge.Nodes
		out := make([]DirectionalLink, 0, len(nodes)*(len(nodes)-1))
		for _, tx := range nodes {
			for _, rx := range nodes {
				if tx == rx {
					continue
				}
				out = append(out, DirectionalLink{
					TxNode: tx, TxIface: doc.SharedBridge.InterfaceName,
					RxNode: rx, RxIface: doc.SharedBridge.InterfaceName,
				})
			}
		}
		return out
	}

	out := make([]DirectionalLink, 0, len(doc.Links)*2)
	for _, link := range doc.Links {
		out = append(out,
			DirectionalLink{TxNode: link.A.Node, TxIface: link.A.Interface, RxNode: link.B.Node, RxIface: link.B.Interface},
			DirectionalLink{TxNode: link.B.Node, TxIface: link.B.Interface, RxNode: link.A.Node, RxIface: link.A.Interface},
		)
	}
	return out
}

func lookupInterface(doc *topology.Document, node, iface string) (*topology.Interface, bool) {
	n, ok := doc.Nodes[node]
	if !ok {
		return nil, false
	}
	i, ok := n.Interfaces[iface]
	return i, ok
}

// aclrConfigWire translates a topology's optional aclr_config{...} override
// into the wire form ComputeSINRRequest carries. Returns nil when the
// topology didn't declare one, so the Channel Service falls back to its
// default ACLR curve.
func aclrConfigWire(cfg *topology.ACLRConfig) *channelsvc.ACLRConfigWire {
	if cfg == nil {
		return nil
	}
	return &channelsvc.ACLRConfigWire{
		TransitionStartDB: cfg.TransitionStartDB,
		TransitionEndDB:   cfg.TransitionEndDB,
		AdjacentBandDB:    cfg.AdjacentBandDB,
		FarDB:             cfg.FarDB,
	}
}

func radioWire(node string, iface *topology.Interface) channelsvc.RadioWire {
	return channelsvc.RadioWire{
		Node:             node,
		Position:         channelsvc.PositionWire{X: iface.Position.X, Y: iface.Position.Y, Z: iface.Position.Z},
		FrequencyHz:      iface.FrequencyHz,
		BandwidthHz:      iface.BandwidthHz,
		TxPowerDBm:       iface.TxPowerDBm,
		NoiseFigureDB:    iface.NoiseFigureDB,
		RxSensitivityDBm: iface.RxSensitivityDBm,
		AntennaPattern:   iface.AntennaPattern,
		AntennaGainDBi:   iface.AntennaGainDBi,
	}
}

// macModelFor builds the statistical MAC model an interface declares, if
// any. A nil, nil return means no MAC model is configured and every
// candidate interferer should be treated as active per TransmissionState.
func macModelFor(iface *topology.Interface) (csma *mac.CSMA, tdma *mac.TDMA) {
	if iface.CSMA != nil && iface.CSMA.Enabled {
		csma = mac.NewCSMA(mac.CSMAConfig{
			CarrierSenseMultiplier: iface.CSMA.CarrierSenseRangeMultiplier,
			TrafficLoad:            iface.CSMA.TrafficLoad,
		})
	}
	if iface.TDMA != nil && iface.TDMA.Enabled {
		tdma = mac.NewTDMA(mac.TDMAConfig{
			NumSlots:        iface.TDMA.NumSlots,
			FrameDurationMs: iface.TDMA.FrameDurationMs,
			Mode:            iface.TDMA.SlotAssignmentMode,
			FixedSlotMap:    iface.TDMA.FixedSlotMap,
			SlotProbability: iface.TDMA.SlotProbability,
		})
	}
	return csma, tdma
}

// macThroughputMultiplier resolves the per-node throughput multiplier a
// transmitter's own CSMA/TDMA configuration applies to its
// effective rate, independent of the interference it receives. CSMA's
// multiplier is always ~1 (temporal reuse is already captured via
// per-interferer activity probability); a nil return from macModelFor means
// no MAC model is configured, so the multiplier defaults to 1 (applied by
// the Channel Service when the field is zero).
func (c *Controller) macThroughputMultiplier(txNode string, txIface *topology.Interface) (float64, error) {
	csma, tdma := macModelFor(txIface)
	switch {
	case csma != nil:
		return csma.ThroughputMultiplier(), nil
	case tdma != nil:
		return tdma.ThroughputMultiplier(txNode, c.participantCount(txIface))
	default:
		return 0, nil
	}
}

// participantCount is the node count a TDMA throughput multiplier's
// round_robin/1-over-N rule divides by: the shared-bridge's participant
// count when txIface sits on a shared bridge, else the topology's total
// node count.
func (c *Controller) participantCount(txIface *topology.Interface) int {
	if c.Doc.SharedBridge != nil && c.Doc.SharedBridge.Enabled {
		return len(c.Doc.SharedBridge.Nodes)
	}
	return len(c.Doc.Nodes)
}

// candidateInterferers returns every other node with a wireless interface
// close enough in frequency to matter to the receiver: same-channel nodes
// and adjacent-channel nodes the ACLR model (internal/interference) can
// still attribute non-zero leakage power to. Only nodes whose carrier is
// far enough away to be orthogonal (|Δf| > 2*max(B_tx, B_rx))
// are excluded up front; the aggregator itself drops anything below RX
// sensitivity once ACLR and path loss are applied.
func candidateInterferers(doc *topology.Document, link DirectionalLink, rxIface *topology.Interface) []struct {
	Node  string
	Iface *topology.Interface
} {
	var out []struct {
		Node  string
		Iface *topology.Interface
	}
	for nodeName, node := range doc.Nodes {
		if nodeName == link.TxNode || nodeName == link.RxNode {
			continue
		}
		for _, iface := range node.Interfaces {
			if iface.FixedNetem != nil {
				continue
			}
			deltaFHz := iface.FrequencyHz - rxIface.FrequencyHz
			if interference.IsOrthogonal(deltaFHz, iface.BandwidthHz, rxIface.BandwidthHz) {
				continue
			}
			out = append(out, struct {
				Node  string
				Iface *topology.Interface
			}{Node: nodeName, Iface: iface})
			break
		}
	}
	return out
}
