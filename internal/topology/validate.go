package topology

import (
	"errors"
	"fmt"
)

// Validation error kinds. Configuration errors are never recovered from;
// they are surfaced with a precise location before any side effect.
var (
	ErrAntennaMutualExclusion = errors.New("topology: exactly one of antenna_pattern or antenna_gain_dbi must be set")
	ErrMACMutualExclusion     = errors.New("topology: csma and tdma are mutually exclusive")
	ErrUnknownEndpoint        = errors.New("topology: link references an unknown node or interface")
	ErrMissingScene           = errors.New("topology: scene.file is required")
	ErrNoNodes                = errors.New("topology: at least one node is required")
)

// Validate checks the declaration's hard invariants: antenna
// mutual exclusion, CSMA/TDMA mutual exclusion, and that every link
// endpoint names a node and interface that exist.
func Validate(doc *Document) error {
	if doc.Scene.File == "" {
		return ErrMissingScene
	}
	if len(doc.Nodes) == 0 {
		return ErrNoNodes
	}

	for nodeName, node := range doc.Nodes {
		for ifaceName, iface := range node.Interfaces {
			if err := validateInterface(nodeName, ifaceName, iface); err != nil {
				return err
			}
		}
	}

	for i, link := range doc.Links {
		if err := validateEndpoint(doc, link.A); err != nil {
			return fmt.Errorf("link[%d].a: %w", i, err)
		}
		if err := validateEndpoint(doc, link.B); err != nil {
			return fmt.Errorf("link[%d].b: %w", i, err)
		}
	}

	if doc.SharedBridge != nil && doc.SharedBridge.Enabled {
		for _, nodeName := range doc.SharedBridge.Nodes {
			if _, ok := doc.Nodes[nodeName]; !ok {
				return fmt.Errorf("shared_bridge.nodes: %w: %q", ErrUnknownEndpoint, nodeName)
			}
		}
	}

	return nil
}

func validateInterface(nodeName, ifaceName string, iface *Interface) error {
	if iface.FixedNetem == nil {
		hasPattern := iface.AntennaPattern != ""
		hasGain := iface.AntennaGainDBi != nil
		if hasPattern == hasGain {
			return fmt.Errorf("nodes.%s.interfaces.%s: %w", nodeName, ifaceName, ErrAntennaMutualExclusion)
		}
	}
	if iface.CSMA != nil && iface.CSMA.Enabled && iface.TDMA != nil && iface.TDMA.Enabled {
		return fmt.Errorf("nodes.%s.interfaces.%s: %w", nodeName, ifaceName, ErrMACMutualExclusion)
	}
	return nil
}

func validateEndpoint(doc *Document, ep LinkEndpoint) error {
	node, ok := doc.Nodes[ep.Node]
	if !ok {
		return fmt.Errorf("%w: node %q", ErrUnknownEndpoint, ep.Node)
	}
	if _, ok := node.Interfaces[ep.Interface]; !ok {
		return fmt.Errorf("%w: interface %q on node %q", ErrUnknownEndpoint, ep.Interface, ep.Node)
	}
	return nil
}
