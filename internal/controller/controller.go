// Package controller implements the emulation controller: it resolves a
// topology declaration into directional links, drives the channel
// service for each of them, and hands the results to the netem
// programmer, handling mobility updates and per-link failures along the
// way.
package controller

import (
	"sync"

	"github.com/google/uuid"

	"github.com/joshuamhtsang/sine/internal/logx"
	"github.com/joshuamhtsang/sine/internal/metrics"
	"github.com/joshuamhtsang/sine/internal/netprog"
	"github.com/joshuamhtsang/sine/internal/topology"
)

// Status is a topology's overall deployment state.
type Status string

const (
	StatusHealthy Status = "healthy"
	StatusPartial Status = "partial"
)

// LinkStatus is one directional link's last-known health.
type LinkStatus string

const (
	LinkOK        LinkStatus = "ok"
	LinkDegraded  LinkStatus = "degraded"
	LinkUnmanaged LinkStatus = "unmanaged"
)

// DirectionalLink identifies one (tx, rx) pair and the interfaces the
// traffic for it rides on.
type DirectionalLink struct {
	TxNode, TxIface string
	RxNode, RxIface string
}

func (l DirectionalLink) direction() netprog.DirectionKey {
	return netprog.DirectionKey{TxNode: l.TxNode, RxNode: l.RxNode}
}

// LinkState is a directional link's last-computed characterisation, kept
// for the status endpoint and for deciding whether a mobility update needs
// to touch this link.
type LinkState struct {
	Link             DirectionalLink
	Status           LinkStatus
	SNRDB            float64
	SINRDB           float64
	RateMbps         float64
	DelayMs          float64
	RMSDelaySpreadNs float64
	Cause            string
}

// Controller owns one topology's lifecycle: provisioning, scene binding,
// per-link compute and netem programming, and mobility recompute.
//
// All stateful operations for a single DirectionalLink are
// serialised by locking that link's entry in linkMu before touching
// state[link] or calling the Netem Programmer for it; different links are
// never blocked on each other beyond that per-link lock.
type Controller struct {
	Doc        *topology.Document
	Channel    ChannelClient
	Programmer *netprog.Programmer
	Runtime    ContainerRuntime
	Metrics    *metrics.Registry
	Log        logx.Logger

	DeploymentID uuid.UUID

	mu     sync.Mutex
	status Status
	pids   map[string]int
	veth   map[string]map[string]string // node -> logical interface -> host veth name
	links  []DirectionalLink
	linkMu map[DirectionalLink]*sync.Mutex
	state  map[DirectionalLink]*LinkState
}

// New constructs a Controller around an already-validated topology
// document. Channel must not be nil. A nil runtime is replaced by
// [NoopRuntime]; a nil programmer turns every netem apply and Teardown into
// a no-op, which is how --dry-run callers construct it.
func New(doc *topology.Document, channel ChannelClient, programmer *netprog.Programmer, runtime ContainerRuntime, m *metrics.Registry, log logx.Logger) *Controller {
	if log == nil {
		log = &logx.NullLogger{}
	}
	if runtime == nil {
		runtime = NoopRuntime{}
	}
	return &Controller{
		Doc:          doc,
		Channel:      channel,
		Programmer:   programmer,
		Runtime:      runtime,
		Metrics:      m,
		Log:          log,
		DeploymentID: uuid.New(),
		status:       StatusHealthy,
		pids:         make(map[string]int),
		veth:         make(map[string]map[string]string),
		linkMu:       make(map[DirectionalLink]*sync.Mutex),
		state:        make(map[DirectionalLink]*LinkState),
	}
}

// Status reports the topology's current overall state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) markPartial() {
	c.mu.Lock()
	c.status = StatusPartial
	c.mu.Unlock()
}

// LinkStates returns a snapshot of every directional link's last-known
// state, for the status endpoint and for deploy summaries.
func (c *Controller) LinkStates() []LinkState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LinkState, 0, len(c.state))
	for _, link := range c.links {
		if s, ok := c.state[link]; ok {
			out = append(out, *s)
		}
	}
	return out
}

func (c *Controller) muFor(link DirectionalLink) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.linkMu[link]
	if !ok {
		m = &sync.Mutex{}
		c.linkMu[link] = m
	}
	return m
}

func (c *Controller) setState(link DirectionalLink, s LinkState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[link] = &s
}

func (c *Controller) pid(node string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pid, ok := c.pids[node]
	return pid, ok
}

// vethName resolves the host-visible interface name netem must be
// programmed against for node's logical interface iface. Distinct nodes
// commonly share a logical interface name (e.g. every node's bridge-facing
// interface is "br0"), so the Netem Programmer — which keys its
// bookkeeping by interface name alone — must see the per-node veth name,
// not the topology's logical one.
func (c *Controller) vethName(node, iface string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ifaces, ok := c.veth[node]
	if !ok {
		return "", false
	}
	name, ok := ifaces[iface]
	return name, ok
}
