package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuamhtsang/sine/internal/channelsvc"
	"github.com/joshuamhtsang/sine/internal/netprog"
	"github.com/joshuamhtsang/sine/internal/topology"
)

// fakeBackend mirrors internal/netprog's test double: it records every
// call instead of touching netlink, and can be told to fail the next N
// ReplacePointToPoint calls to exercise the retry-then-unmanaged path.
type fakeBackend struct {
	mu sync.Mutex

	p2pCalls    []string
	destUpserts map[string][]netprog.Params
	rootEnsured []string

	// failNextByPid, keyed by the tx node's pid, fails that many upcoming
	// ReplacePointToPoint calls for that pid. pids differ per node (see
	// fakeRuntime), so this isolates failure injection to one direction of
	// a point-to-point link without racing concurrent directions.
	failNextByPid map[int]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{destUpserts: make(map[string][]netprog.Params), failNextByPid: make(map[int]int)}
}

func (f *fakeBackend) ReplacePointToPoint(pid int, ifaceName string, p netprog.Params) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNextByPid[pid] > 0 {
		f.failNextByPid[pid]--
		return errors.New("simulated backend failure")
	}
	f.p2pCalls = append(f.p2pCalls, ifaceName)
	return nil
}

func (f *fakeBackend) EnsureRootClassful(pid int, ifaceName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rootEnsured = append(f.rootEnsured, ifaceName)
	return nil
}

func (f *fakeBackend) UpsertDestination(pid int, ifaceName string, destIndex uint32, destIP string, p netprog.Params) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ifaceName + "|" + destIP
	f.destUpserts[key] = append(f.destUpserts[key], p)
	return nil
}

func (f *fakeBackend) RemoveDestination(pid int, ifaceName string, destIndex uint32) error {
	return nil
}

func (f *fakeBackend) Teardown(pid int, ifaceName string) error { return nil }

// fakeChannelClient is an in-memory [ChannelClient] whose ComputeSingle
// response (or failure) can be set per direction.
type fakeChannelClient struct {
	mu sync.Mutex

	singleErr map[string]error
	single    channelsvc.ComputeSingleResponse
	sinr      channelsvc.ComputeSINRResponse
	active    map[string]bool

	loadSceneCalls int
}

func newFakeChannelClient() *fakeChannelClient {
	return &fakeChannelClient{
		singleErr: make(map[string]error),
		single: channelsvc.ComputeSingleResponse{
			SNRDB: 30, PER: 0.01, RateMbps: 150, DelayMs: 2, JitterMs: 0.5,
		},
		active: make(map[string]bool),
	}
}

func (f *fakeChannelClient) LoadScene(ctx context.Context, req channelsvc.LoadSceneRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadSceneCalls++
	return nil
}

func (f *fakeChannelClient) RegisterMCSTable(ctx context.Context, name string, req channelsvc.RegisterMCSTableRequest) error {
	return nil
}

func (f *fakeChannelClient) ComputeSingle(ctx context.Context, req channelsvc.ComputeSingleRequest) (channelsvc.ComputeSingleResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := req.Tx.Node + "->" + req.Rx.Node
	if err, ok := f.singleErr[key]; ok {
		return channelsvc.ComputeSingleResponse{}, err
	}
	return f.single, nil
}

func (f *fakeChannelClient) ComputeSINR(ctx context.Context, req channelsvc.ComputeSINRRequest) (channelsvc.ComputeSINRResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sinr, nil
}

func (f *fakeChannelClient) IsTransmitting(ctx context.Context, node string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	active, ok := f.active[node]
	if !ok {
		return true, nil
	}
	return active, nil
}

func (f *fakeChannelClient) UpdateTransmissionState(ctx context.Context, updates map[string]bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for node, v := range updates {
		f.active[node] = v
	}
	return nil
}

func (f *fakeChannelClient) failDirection(tx, rx string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.singleErr[tx+"->"+rx] = err
}

func (f *fakeChannelClient) setSingle(resp channelsvc.ComputeSingleResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.single = resp
}

// fakeRuntime assigns a deterministic, distinct pid per node without
// touching the host, so tests can target failure injection at one
// direction of a link by its transmitter's pid.
type fakeRuntime struct{}

var fakeNodePids = map[string]int{"a": 1, "b": 2, "c": 3}

func (fakeRuntime) Provision(ctx context.Context, doc *topology.Document) (map[string]int, map[string]map[string]string, error) {
	pids := make(map[string]int)
	vethNames := make(map[string]map[string]string)
	for name, node := range doc.Nodes {
		pid, ok := fakeNodePids[name]
		if !ok {
			pid = 99
		}
		pids[name] = pid
		ifaces := make(map[string]string, len(node.Interfaces))
		for ifaceName := range node.Interfaces {
			ifaces[ifaceName] = "veth-" + name + "-" + ifaceName
		}
		vethNames[name] = ifaces
	}
	return pids, vethNames, nil
}

func p2pDoc() *topology.Document {
	gain := 2.0
	return &topology.Document{
		Scene: topology.SceneDecl{File: "scene.glb"},
		Nodes: map[string]*topology.Node{
			"a": {Interfaces: map[string]*topology.Interface{
				"wlan0": {Position: topology.Position{X: 0}, FrequencyHz: 2.4e9, BandwidthHz: 20e6, TxPowerDBm: 20, AntennaGainDBi: &gain},
			}},
			"b": {Interfaces: map[string]*topology.Interface{
				"wlan0": {Position: topology.Position{X: 10}, FrequencyHz: 2.4e9, BandwidthHz: 20e6, TxPowerDBm: 20, AntennaGainDBi: &gain},
			}},
		},
		Links: []topology.Link{
			{A: topology.LinkEndpoint{Node: "a", Interface: "wlan0"}, B: topology.LinkEndpoint{Node: "b", Interface: "wlan0"}},
		},
	}
}

func newTestController(t *testing.T, doc *topology.Document, channel *fakeChannelClient, backend *fakeBackend) *Controller {
	t.Helper()
	// A nanosecond rate limit so back-to-back deploy/mobility updates in a
	// test are never skipped by the wall-clock rule; metric hysteresis
	// stays at its default.
	prog := netprog.NewProgrammer(backend, netprog.Config{MinInterval: time.Nanosecond}, nil, nil)
	return New(doc, channel, prog, fakeRuntime{}, nil, nil)
}

func TestControllerDeployHealthy(t *testing.T) {
	doc := p2pDoc()
	channel := newFakeChannelClient()
	backend := newFakeBackend()
	c := newTestController(t, doc, channel, backend)

	report, err := c.Deploy(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Len(t, report.Links, 2, "a point-to-point link yields both directions")
	for _, l := range report.Links {
		assert.Equal(t, LinkOK, l.Status)
		assert.Equal(t, 30.0, l.SNRDB)
	}
	assert.Equal(t, 1, channel.loadSceneCalls)
	assert.Equal(t, 2, len(backend.p2pCalls))
}

func TestControllerDeployDryRunSkipsProvisionAndProgram(t *testing.T) {
	doc := p2pDoc()
	channel := newFakeChannelClient()
	backend := newFakeBackend()
	c := newTestController(t, doc, channel, backend)

	report, err := c.Deploy(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Len(t, report.Links, 2)
	assert.Empty(t, backend.p2pCalls, "dry-run must not program netem")
}

func TestControllerDeployDegradesOnComputeFailure(t *testing.T) {
	doc := p2pDoc()
	channel := newFakeChannelClient()
	channel.failDirection("a", "b", errors.New("engine unavailable"))
	backend := newFakeBackend()
	c := newTestController(t, doc, channel, backend)

	report, err := c.Deploy(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, report.Status, "a degraded link does not flip overall status")

	var aToB, bToA *LinkState
	for i := range report.Links {
		l := &report.Links[i]
		if l.Link.TxNode == "a" {
			aToB = l
		} else {
			bToA = l
		}
	}
	require.NotNil(t, aToB)
	require.NotNil(t, bToA)
	assert.Equal(t, LinkDegraded, aToB.Status)
	assert.NotEmpty(t, aToB.Cause)
	assert.Equal(t, LinkOK, bToA.Status, "the unaffected direction must still compute normally")

	assert.Len(t, backend.p2pCalls, 2, "the degraded direction still gets a safe-default netem applied, not skipped")
}

func TestControllerDeployMarksUnmanagedAfterTwoProgramFailures(t *testing.T) {
	doc := p2pDoc()
	channel := newFakeChannelClient()
	backend := newFakeBackend()
	backend.failNextByPid[fakeNodePids["a"]] = 2 // a->b direction only
	c := newTestController(t, doc, channel, backend)

	report, err := c.Deploy(context.Background(), false)
	require.NoError(t, err)

	var failed *LinkState
	for i := range report.Links {
		l := &report.Links[i]
		if l.Status == LinkUnmanaged {
			failed = l
		}
	}
	require.NotNil(t, failed, "a link whose backend keeps failing must end up unmanaged")
	assert.NotEmpty(t, failed.Cause)
}

func TestControllerSharedBridgeProgramsPerDestination(t *testing.T) {
	gain := 2.0
	doc := &topology.Document{
		Scene: topology.SceneDecl{File: "scene.glb"},
		Nodes: map[string]*topology.Node{
			"a": {Interfaces: map[string]*topology.Interface{"br0": {FrequencyHz: 2.4e9, BandwidthHz: 20e6, TxPowerDBm: 20, AntennaGainDBi: &gain}}},
			"b": {Interfaces: map[string]*topology.Interface{"br0": {FrequencyHz: 2.4e9, BandwidthHz: 20e6, TxPowerDBm: 20, AntennaGainDBi: &gain}}},
			"c": {Interfaces: map[string]*topology.Interface{"br0": {FrequencyHz: 2.4e9, BandwidthHz: 20e6, TxPowerDBm: 20, AntennaGainDBi: &gain}}},
		},
		SharedBridge: &topology.SharedBridge{Enabled: true, Name: "br0", Nodes: []string{"a", "b", "c"}, InterfaceName: "br0"},
	}
	channel := newFakeChannelClient()
	backend := newFakeBackend()
	c := newTestController(t, doc, channel, backend)

	report, err := c.Deploy(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, report.Links, 6, "a 3-node shared bridge yields the full directed mesh")
	assert.Empty(t, backend.p2pCalls, "shared-bridge mode must program per-destination classes, not flat p2p")
	assert.Len(t, backend.rootEnsured, 3, "root classful qdisc is ensured once per transmitting interface")
}

func TestControllerApplyMobilityTickRecomputesOnlyAffectedLinks(t *testing.T) {
	doc := p2pDoc()
	channel := newFakeChannelClient()
	backend := newFakeBackend()
	c := newTestController(t, doc, channel, backend)

	_, err := c.Deploy(context.Background(), false)
	require.NoError(t, err)
	initialCalls := len(backend.p2pCalls)

	// The move degrades the channel well past the 2dB metric hysteresis,
	// so the recompute must actually reprogram, not skip.
	channel.setSingle(channelsvc.ComputeSingleResponse{SNRDB: 12, PER: 0.08, RateMbps: 40, DelayMs: 2})

	report, err := c.ApplyMobilityTick(context.Background(), map[NodeInterface]topology.Position{
		{Node: "a", Interface: "wlan0"}: {X: 50},
	})
	require.NoError(t, err)
	assert.Len(t, report.AffectedLinks, 2, "both directions touching the moved node are recomputed")
	assert.Greater(t, len(backend.p2pCalls), initialCalls, "mobility recompute must reprogram the affected links")
}

func TestControllerStatusSummaryReflectsDeploy(t *testing.T) {
	doc := p2pDoc()
	channel := newFakeChannelClient()
	backend := newFakeBackend()
	c := newTestController(t, doc, channel, backend)

	_, err := c.Deploy(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, StatusHealthy, c.Status())
	assert.Len(t, c.LinkStates(), 2)
}
