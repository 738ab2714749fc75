package controller

import (
	"context"
	"fmt"

	"github.com/joshuamhtsang/sine/internal/topology"
)

// ContainerRuntime provisions the L2 plumbing a deployment needs:
// one network namespace per node and a veth (or bridge-attached) interface
// per declared topology interface. Abstracted behind an interface the way
// [propagation.Geometric]'s Backend is, so the Controller's lifecycle logic
// is testable without a real container runtime wired in.
type ContainerRuntime interface {
	// Provision returns, for every node in doc, the pid of its network
	// namespace and the host-visible veth name for each of its interfaces.
	Provision(ctx context.Context, doc *topology.Document) (pids map[string]int, vethNames map[string]map[string]string, err error)
}

// NoopRuntime fabricates deterministic pids (all 0) and veth names
// ("veth-<node>-<iface>") without touching the host. cmd/wnetctl wires it
// into every deploy and [New] falls back to it when runtime is nil; a
// dry-run Deploy does not call Provision at all.
type NoopRuntime struct{}

var _ ContainerRuntime = NoopRuntime{}

func (NoopRuntime) Provision(ctx context.Context, doc *topology.Document) (map[string]int, map[string]map[string]string, error) {
	pids := make(map[string]int)
	vethNames := make(map[string]map[string]string)
	for nodeName, node := range doc.Nodes {
		pids[nodeName] = 0
		ifaces := make(map[string]string, len(node.Interfaces))
		for ifaceName := range node.Interfaces {
			ifaces[ifaceName] = fmt.Sprintf("veth-%s-%s", nodeName, ifaceName)
		}
		vethNames[nodeName] = ifaces
	}
	return pids, vethNames, nil
}
