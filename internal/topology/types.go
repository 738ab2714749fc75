// Package topology implements the topology declaration's data model and
// loaders: the YAML document describing nodes, radios and links, and the
// CSV MCS table format.
package topology

import (
	"net"
	"strings"

	"github.com/joshuamhtsang/sine/internal/mac"
)

// Position is a node/interface position in metres.
type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// CSMAConfig is the wire form of an interface's CSMA block.
type CSMAConfig struct {
	Enabled                   bool    `yaml:"enabled"`
	CarrierSenseRangeMultiplier float64 `yaml:"carrier_sense_range_multiplier"`
	TrafficLoad               float64 `yaml:"traffic_load"`
}

// TDMAConfig is the wire form of an interface's TDMA block.
type TDMAConfig struct {
	Enabled           bool             `yaml:"enabled"`
	NumSlots          int              `yaml:"num_slots"`
	FrameDurationMs   float64          `yaml:"frame_duration_ms"`
	SlotAssignmentMode mac.SlotMode    `yaml:"slot_assignment_mode"`
	FixedSlotMap      map[string][]int `yaml:"fixed_slot_map,omitempty"`
	SlotProbability   float64          `yaml:"slot_probability,omitempty"`
}

// Interface is one radio or fixed-netem interface on a node.
type Interface struct {
	Position Position `yaml:"position"`

	// Radio parameters. FrequencyHz/BandwidthHz/TxPowerDBm are required
	// for a wireless interface; an interface with FixedNetem set is a
	// fixed-netem interface instead.
	FrequencyHz    float64 `yaml:"frequency_hz"`
	BandwidthHz    float64 `yaml:"bandwidth_hz"`
	TxPowerDBm     float64 `yaml:"tx_power_dbm"`
	NoiseFigureDB  float64 `yaml:"noise_figure_db"`
	RxSensitivityDBm float64 `yaml:"rx_sensitivity_dbm"`

	// Exactly one of AntennaPattern/AntennaGainDBi must be set.
	AntennaPattern  string  `yaml:"antenna_pattern,omitempty"`
	AntennaGainDBi  *float64 `yaml:"antenna_gain_dbi,omitempty"`

	Polarization string `yaml:"polarization,omitempty"`
	MCSTable     string `yaml:"mcs_table,omitempty"`

	CSMA *CSMAConfig `yaml:"csma,omitempty"`
	TDMA *TDMAConfig `yaml:"tdma,omitempty"`

	// FixedNetem, when set, marks this as a non-wireless interface with a
	// directly-specified netem profile instead of a computed one.
	FixedNetem *FixedNetem `yaml:"fixed_netem,omitempty"`
}

// FixedNetem describes a non-wireless interface's static netem parameters.
type FixedNetem struct {
	DelayMs     float64 `yaml:"delay_ms"`
	JitterMs    float64 `yaml:"jitter_ms"`
	LossPercent float64 `yaml:"loss_percent"`
	RateMbps    float64 `yaml:"rate_mbps"`
}

// DefaultNoiseFigureDB and DefaultRxSensitivityDBm are the defaults applied
// when an interface leaves these fields at their YAML zero value.
const (
	DefaultNoiseFigureDB    = 7.0
	DefaultRxSensitivityDBm = -80.0
)

// Node is a single emulated host.
type Node struct {
	Interfaces map[string]*Interface `yaml:"interfaces"`
}

// LinkEndpoint identifies one side of an undirected Link.
type LinkEndpoint struct {
	Node      string `yaml:"node"`
	Interface string `yaml:"interface"`
}

// Link is an undirected configured link between two {node,interface} pairs.
type Link struct {
	A LinkEndpoint `yaml:"a"`
	B LinkEndpoint `yaml:"b"`
}

// SharedBridge describes a shared-bridge topology mode block.
type SharedBridge struct {
	Enabled       bool     `yaml:"enabled"`
	Name          string   `yaml:"name"`
	Nodes         []string `yaml:"nodes"`
	InterfaceName string   `yaml:"interface_name"`

	// Subnet is the IPv4 /24 (or narrower) the bridge's participants are
	// addressed from, e.g. "10.200.0.0/24". The Netem Programmer's
	// per-destination classifier filters match on destination IPv4
	// addresses from this range. Defaults to "10.200.0.0/24" when unset.
	Subnet string `yaml:"subnet,omitempty"`
}

// DefaultSharedBridgeSubnet is applied when a shared_bridge block omits
// subnet.
const DefaultSharedBridgeSubnet = "10.200.0.0/24"

// NodeBridgeIP returns the deterministic IPv4 address assigned to node
// within this shared bridge: the subnet's base address plus two, offset by
// node's position in Nodes. Nodes not listed in the bridge return false.
func (sb *SharedBridge) NodeBridgeIP(node string) (string, bool) {
	idx := -1
	for i, n := range sb.Nodes {
		if n == node {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", false
	}
	subnet := sb.Subnet
	if subnet == "" {
		subnet = DefaultSharedBridgeSubnet
	}
	base, ok := subnetBaseIPv4(subnet)
	if !ok {
		return "", false
	}
	// base.1 is reserved for the bridge's own gateway-style address;
	// participants are numbered from .2.
	base[3] += byte(idx + 2)
	return base.String(), true
}

// subnetBaseIPv4 parses a CIDR string and returns its network address as a
// 4-byte IPv4 slice, copied so callers can mutate it freely.
func subnetBaseIPv4(cidr string) (net.IP, bool) {
	addr := cidr
	if i := strings.IndexByte(cidr, '/'); i >= 0 {
		addr = cidr[:i]
	}
	ip := net.ParseIP(addr).To4()
	if ip == nil {
		return nil, false
	}
	out := make(net.IP, 4)
	copy(out, ip)
	return out, true
}

// ACLRConfig allows a topology to override the ACLR piecewise constants.
type ACLRConfig struct {
	TransitionStartDB float64 `yaml:"transition_start_db,omitempty"`
	TransitionEndDB   float64 `yaml:"transition_end_db,omitempty"`
	AdjacentBandDB    float64 `yaml:"adjacent_band_db,omitempty"`
	FarDB             float64 `yaml:"far_db,omitempty"`
}

// SceneDecl is the scene.file block.
type SceneDecl struct {
	File string `yaml:"file"`
}

// Document is the top-level topology declaration.
type Document struct {
	Scene             SceneDecl         `yaml:"scene"`
	Nodes             map[string]*Node  `yaml:"nodes"`
	Links             []Link            `yaml:"links,omitempty"`
	SharedBridge      *SharedBridge     `yaml:"shared_bridge,omitempty"`
	EnableSINR        bool              `yaml:"enable_sinr,omitempty"`
	TransmissionState map[string]bool   `yaml:"transmission_state,omitempty"`
	ACLRConfigOverride *ACLRConfig      `yaml:"aclr_config,omitempty"`
}
