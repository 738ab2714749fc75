// Package netprog implements the netem programmer: turning a
// computed directional or per-destination link characterisation into
// concrete qdisc/class/filter structures inside a container's network
// namespace, with stable update semantics (hysteresis, rate limiting,
// idempotent teardown).
//
// The kernel-facing work is behind the [Backend] interface so the
// hysteresis/rate-limit policy in [Programmer] can be tested without a
// Linux network namespace; [NewNetlinkBackend] (linux-only) is the
// production implementation, grounded on github.com/vishvananda/netlink
// and github.com/vishvananda/netns.
package netprog

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/joshuamhtsang/sine/internal/logx"
	"github.com/joshuamhtsang/sine/internal/metrics"
)

// Params is the netem-ready applied form of a link characterisation:
// delay/jitter/loss/rate plus the MCS index used to decide
// the hysteresis-bypass rule.
type Params struct {
	DelayMs     float64
	JitterMs    float64
	LossPercent float64
	RateMbps    float64

	// MCSIndex, when non-nil, is compared across updates: a change in
	// MCS index always bypasses hysteresis.
	MCSIndex *int
}

// Validate checks the netem-parameter ranges.
func (p Params) Validate() error {
	if p.DelayMs < 0 {
		return fmt.Errorf("netprog: delay_ms must be >= 0, got %v", p.DelayMs)
	}
	if p.JitterMs < 0 {
		return fmt.Errorf("netprog: jitter_ms must be >= 0, got %v", p.JitterMs)
	}
	if p.LossPercent < 0 || p.LossPercent > 100 {
		return fmt.Errorf("netprog: loss_percent must be in [0,100], got %v", p.LossPercent)
	}
	if p.RateMbps <= 0 {
		return fmt.Errorf("netprog: rate_mbps must be > 0, got %v", p.RateMbps)
	}
	return nil
}

// DirectionKey identifies one directional link for hysteresis and
// rate-limit bookkeeping: per (tx, rx), the last applied metric and the
// last apply wall-time.
type DirectionKey struct {
	TxNode string
	RxNode string
}

// Backend is the namespace- and kernel-facing collaborator the Programmer
// drives. All methods act inside the network namespace of the container
// identified by pid.
type Backend interface {
	// ReplacePointToPoint installs (or atomically replaces) the single
	// flat netem qdisc on ifaceName, for point-to-point mode.
	ReplacePointToPoint(pid int, ifaceName string, p Params) error

	// EnsureRootClassful ensures ifaceName carries a classful root qdisc
	// with a catch-all default class for broadcast/multicast and unknown
	// destinations, for shared-bridge mode. Idempotent.
	EnsureRootClassful(pid int, ifaceName string) error

	// UpsertDestination installs or in-place replaces the child class,
	// netem qdisc and classifier filter for one destination, keyed by a
	// dense destIndex so kernel handles are deterministic.
	UpsertDestination(pid int, ifaceName string, destIndex uint32, destIP string, p Params) error

	// RemoveDestination deletes one destination's class/qdisc/filter.
	// Idempotent: a missing object is not an error.
	RemoveDestination(pid int, ifaceName string, destIndex uint32) error

	// Teardown removes every qdisc this programmer installed on
	// ifaceName, in either mode. Idempotent: destroy is always
	// best-effort.
	Teardown(pid int, ifaceName string) error
}

// Config tunes the hysteresis/rate-limit policy.
type Config struct {
	// MinInterval is the minimum wall-time between applied updates for
	// the same directional link. Defaults to 100ms.
	MinInterval time.Duration

	// HysteresisDB is the minimum |Δmetric| required to apply an update
	// that isn't an MCS-index change. Defaults to 2dB.
	HysteresisDB float64
}

const (
	// DefaultMinInterval is the default update rate limit.
	DefaultMinInterval = 100 * time.Millisecond
	// DefaultHysteresisDB is the default metric hysteresis.
	DefaultHysteresisDB = 2.0
)

func (c Config) resolve() Config {
	if c.MinInterval <= 0 {
		c.MinInterval = DefaultMinInterval
	}
	if c.HysteresisDB <= 0 {
		c.HysteresisDB = DefaultHysteresisDB
	}
	return c
}

type appliedState struct {
	metricDB  float64
	mcsIndex  *int
	appliedAt time.Time
}

func mcsChanged(prev, next *int) bool {
	if prev == nil && next == nil {
		return false
	}
	if prev == nil || next == nil {
		return true
	}
	return *prev != *next
}

// Programmer wraps a [Backend] with the per-(tx,rx) hysteresis and
// rate-limit state, plus the dense
// per-interface destination index shared-bridge mode needs for in-place
// reprogramming.
//
// mu guards the bookkeeping maps and the apply/skip decision. It is
// released while the Backend applies an update (only the one-time root
// setup of a shared-bridge interface runs under it), so Programmer does not
// serialise concurrent calls for the same DirectionKey; internal/controller
// holds a per-link lock around each call.
type Programmer struct {
	backend Backend
	cfg     Config
	metrics *metrics.Registry
	log     logx.Logger

	mu         sync.Mutex
	last       map[DirectionKey]appliedState
	rootReady  map[string]bool            // ifaceName -> EnsureRootClassful done
	destIndex  map[string]map[string]uint32 // ifaceName -> destIP -> dense index
	nextIndex  map[string]uint32          // ifaceName -> next free index
}

// NewProgrammer constructs a [Programmer] around backend. m and log may be
// nil.
func NewProgrammer(backend Backend, cfg Config, m *metrics.Registry, log logx.Logger) *Programmer {
	if log == nil {
		log = &logx.NullLogger{}
	}
	return &Programmer{
		backend:   backend,
		cfg:       cfg.resolve(),
		metrics:   m,
		log:       log,
		last:      make(map[DirectionKey]appliedState),
		rootReady: make(map[string]bool),
		destIndex: make(map[string]map[string]uint32),
		nextIndex: make(map[string]uint32),
	}
}

// shouldApply implements the update-semantics rule: skip an
// update unless this is the first one for key, the MCS index changed
// (always bypasses hysteresis), or both the minimum interval has elapsed
// AND the metric moved by at least HysteresisDB.
func (p *Programmer) shouldApply(key DirectionKey, metricDB float64, mcsIndex *int, now time.Time) (apply bool, reason string) {
	prev, ok := p.last[key]
	if !ok {
		return true, ""
	}
	if mcsChanged(prev.mcsIndex, mcsIndex) {
		return true, ""
	}
	if now.Sub(prev.appliedAt) < p.cfg.MinInterval {
		return false, "min_interval"
	}
	if math.Abs(metricDB-prev.metricDB) < p.cfg.HysteresisDB {
		return false, "hysteresis"
	}
	return true, ""
}

func (p *Programmer) recordApplied(key DirectionKey, metricDB float64, mcsIndex *int, now time.Time) {
	p.last[key] = appliedState{metricDB: metricDB, mcsIndex: mcsIndex, appliedAt: now}
}

func (p *Programmer) skip(ifaceName, reason string) {
	if p.metrics != nil {
		p.metrics.NetemSkippedTotal.WithLabelValues(reason).Inc()
	}
}

func (p *Programmer) recordApply(ifaceName string) {
	if p.metrics != nil {
		p.metrics.NetemApplyTotal.WithLabelValues(ifaceName).Inc()
	}
}

// ProgramPointToPoint applies (or skips, per hysteresis) a point-to-point
// netem update on the transmitter's egress interface.
func (p *Programmer) ProgramPointToPoint(pid int, ifaceName string, key DirectionKey, metricDB float64, params Params) (applied bool, err error) {
	if err := params.Validate(); err != nil {
		return false, err
	}
	now := time.Now()

	p.mu.Lock()
	apply, reason := p.shouldApply(key, metricDB, params.MCSIndex, now)
	if !apply {
		p.mu.Unlock()
		p.skip(ifaceName, reason)
		return false, nil
	}
	p.mu.Unlock()

	if err := p.backend.ReplacePointToPoint(pid, ifaceName, params); err != nil {
		return false, fmt.Errorf("netprog: replace point-to-point on %s: %w", ifaceName, err)
	}

	p.mu.Lock()
	p.recordApplied(key, metricDB, params.MCSIndex, now)
	p.mu.Unlock()
	p.recordApply(ifaceName)
	p.log.Infof("netprog: applied p2p netem on %s (delay=%.2fms loss=%.2f%% rate=%.2fMbps)",
		ifaceName, params.DelayMs, params.LossPercent, params.RateMbps)
	return true, nil
}

// destinationIndex returns the dense, stable index assigned to destIP on
// ifaceName, assigning the next free index on first sight. Indices are
// never reused for the lifetime of the Programmer so handle derivation
// stays stable across updates.
func (p *Programmer) destinationIndex(ifaceName, destIP string) uint32 {
	m, ok := p.destIndex[ifaceName]
	if !ok {
		m = make(map[string]uint32)
		p.destIndex[ifaceName] = m
	}
	if idx, ok := m[destIP]; ok {
		return idx
	}
	idx := p.nextIndex[ifaceName]
	m[destIP] = idx
	p.nextIndex[ifaceName] = idx + 1
	return idx
}

// ProgramDestination applies (or skips) the shared-bridge per-destination
// netem update: class + netem child + classifier filter for one peer on a
// bridge-facing interface.
func (p *Programmer) ProgramDestination(pid int, ifaceName, destIP string, key DirectionKey, metricDB float64, params Params) (applied bool, err error) {
	if err := params.Validate(); err != nil {
		return false, err
	}
	now := time.Now()

	p.mu.Lock()
	if !p.rootReady[ifaceName] {
		if err := p.backend.EnsureRootClassful(pid, ifaceName); err != nil {
			p.mu.Unlock()
			return false, fmt.Errorf("netprog: ensure root classful on %s: %w", ifaceName, err)
		}
		p.rootReady[ifaceName] = true
	}
	apply, reason := p.shouldApply(key, metricDB, params.MCSIndex, now)
	destIndex := p.destinationIndex(ifaceName, destIP)
	if !apply {
		p.mu.Unlock()
		p.skip(ifaceName, reason)
		return false, nil
	}
	p.mu.Unlock()

	if err := p.backend.UpsertDestination(pid, ifaceName, destIndex, destIP, params); err != nil {
		return false, fmt.Errorf("netprog: upsert destination %s on %s: %w", destIP, ifaceName, err)
	}

	p.mu.Lock()
	p.recordApplied(key, metricDB, params.MCSIndex, now)
	p.mu.Unlock()
	p.recordApply(ifaceName)
	p.log.Infof("netprog: applied class for %s on %s (index=%d delay=%.2fms loss=%.2f%%)",
		destIP, ifaceName, destIndex, params.DelayMs, params.LossPercent)
	return true, nil
}

// RemoveDestination tears down one destination's class/qdisc/filter,
// e.g. when a peer leaves a shared bridge.
func (p *Programmer) RemoveDestination(pid int, ifaceName, destIP string) error {
	p.mu.Lock()
	idx, ok := p.destIndex[ifaceName][destIP]
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return p.backend.RemoveDestination(pid, ifaceName, idx)
}

// Reset clears hysteresis state for key, e.g. on topology rekeying.
func (p *Programmer) Reset(key DirectionKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.last, key)
}

// Teardown removes every qdisc this programmer installed on ifaceName and
// forgets its destination-index bookkeeping. Idempotent.
func (p *Programmer) Teardown(pid int, ifaceName string) error {
	err := p.backend.Teardown(pid, ifaceName)
	p.mu.Lock()
	delete(p.rootReady, ifaceName)
	delete(p.destIndex, ifaceName)
	delete(p.nextIndex, ifaceName)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("netprog: teardown %s: %w", ifaceName, err)
	}
	return nil
}
