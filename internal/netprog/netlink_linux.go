//go:build linux

package netprog

import (
	"fmt"
	"net"
	"runtime"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"
)

// rootHandleMajor is the major of the root qdisc installed in either mode;
// rootDefaultClassMinor is the catch-all class for broadcast/multicast and
// unknown destinations in shared-bridge mode.
const (
	rootHandleMajor        = 1
	rootDefaultClassMinor  = 1
	destinationClassOffset = 10 // first per-destination class minor

	// defaultClassRateMbps bounds traffic that matches no destination
	// filter. Generous on purpose: broadcast/ARP/unknown-destination
	// traffic is not part of any emulated channel.
	defaultClassRateMbps = 1000
)

// NetlinkBackend is the production [Backend], grounded on
// github.com/vishvananda/netlink for qdisc/class/filter construction and
// github.com/vishvananda/netns for the namespace-entry primitive: every
// operation executes inside the container's network namespace.
type NetlinkBackend struct{}

var _ Backend = &NetlinkBackend{}

// NewNetlinkBackend constructs the production netns+netlink [Backend].
func NewNetlinkBackend() *NetlinkBackend { return &NetlinkBackend{} }

// withNetNS locks the calling goroutine to its OS thread, switches that
// thread into the network namespace of pid, runs fn, and restores the
// original namespace before unlocking. netlink/netns operations are
// per-thread, so this must bracket every kernel-touching call.
func withNetNS(pid int, fn func() error) (err error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	orig, err := netns.Get()
	if err != nil {
		return fmt.Errorf("netprog: get current namespace: %w", err)
	}
	defer orig.Close()

	target, err := netns.GetFromPid(pid)
	if err != nil {
		return fmt.Errorf("netprog: get namespace for pid %d: %w", pid, err)
	}
	defer target.Close()

	if err := netns.Set(target); err != nil {
		return fmt.Errorf("netprog: enter namespace for pid %d: %w", pid, err)
	}
	defer func() {
		if restoreErr := netns.Set(orig); restoreErr != nil && err == nil {
			err = fmt.Errorf("netprog: restore original namespace: %w", restoreErr)
		}
	}()

	return fn()
}

// netemAttrs converts the applied-form parameters into the attribute struct
// netlink.NewNetem expects: latency/jitter in microseconds, loss as a
// percentage.
func netemAttrs(p Params) netlink.NetemQdiscAttrs {
	return netlink.NetemQdiscAttrs{
		Latency: microseconds(p.DelayMs),
		Jitter:  microseconds(p.JitterMs),
		Loss:    float32(p.LossPercent),
		Limit:   1000,
	}
}

// microseconds converts a millisecond float into the microsecond uint32
// netlink.NetemQdiscAttrs expects.
func microseconds(ms float64) uint32 {
	if ms < 0 {
		ms = 0
	}
	return uint32(ms * 1000)
}

// rateBytesPerSec converts Mbps to the bytes/sec unit netem's Rate64 and
// netlink.HtbClass's Rate/Ceil fields expect.
func rateBytesPerSec(mbps float64) uint64 {
	return uint64(mbps * 1e6 / 8)
}

func (b *NetlinkBackend) ReplacePointToPoint(pid int, ifaceName string, p Params) error {
	return withNetNS(pid, func() error {
		link, err := netlink.LinkByName(ifaceName)
		if err != nil {
			return fmt.Errorf("find interface %s: %w", ifaceName, err)
		}
		attrs := netemAttrs(p)
		attrs.Rate64 = rateBytesPerSec(p.RateMbps)
		netem := netlink.NewNetem(netlink.QdiscAttrs{
			LinkIndex: link.Attrs().Index,
			Handle:    netlink.MakeHandle(rootHandleMajor, 0),
			Parent:    netlink.HANDLE_ROOT,
		}, attrs)

		if err := netlink.QdiscReplace(netem); err != nil {
			return fmt.Errorf("replace netem qdisc on %s: %w", ifaceName, err)
		}
		return nil
	})
}

func (b *NetlinkBackend) EnsureRootClassful(pid int, ifaceName string) error {
	return withNetNS(pid, func() error {
		link, err := netlink.LinkByName(ifaceName)
		if err != nil {
			return fmt.Errorf("find interface %s: %w", ifaceName, err)
		}
		rootHandle := netlink.MakeHandle(rootHandleMajor, 0)
		htb := netlink.NewHtb(netlink.QdiscAttrs{
			LinkIndex: link.Attrs().Index,
			Handle:    rootHandle,
			Parent:    netlink.HANDLE_ROOT,
		})
		htb.Defcls = rootDefaultClassMinor
		if err := netlink.QdiscReplace(htb); err != nil {
			return fmt.Errorf("replace root htb qdisc on %s: %w", ifaceName, err)
		}

		defaultClass := &netlink.HtbClass{
			ClassAttrs: netlink.ClassAttrs{
				LinkIndex: link.Attrs().Index,
				Parent:    rootHandle,
				Handle:    netlink.MakeHandle(rootHandleMajor, rootDefaultClassMinor),
			},
			Rate: rateBytesPerSec(defaultClassRateMbps),
			Ceil: rateBytesPerSec(defaultClassRateMbps),
		}
		if err := netlink.ClassReplace(defaultClass); err != nil {
			return fmt.Errorf("replace default htb class on %s: %w", ifaceName, err)
		}
		return nil
	})
}

func destinationClassMinor(destIndex uint32) uint16 {
	return uint16(destinationClassOffset + destIndex)
}

func (b *NetlinkBackend) UpsertDestination(pid int, ifaceName string, destIndex uint32, destIP string, p Params) error {
	return withNetNS(pid, func() error {
		link, err := netlink.LinkByName(ifaceName)
		if err != nil {
			return fmt.Errorf("find interface %s: %w", ifaceName, err)
		}
		rootHandle := netlink.MakeHandle(rootHandleMajor, 0)
		classMinor := destinationClassMinor(destIndex)
		classHandle := netlink.MakeHandle(rootHandleMajor, classMinor)

		class := &netlink.HtbClass{
			ClassAttrs: netlink.ClassAttrs{
				LinkIndex: link.Attrs().Index,
				Parent:    rootHandle,
				Handle:    classHandle,
			},
			Rate: rateBytesPerSec(p.RateMbps),
			Ceil: rateBytesPerSec(p.RateMbps),
		}
		if err := netlink.ClassReplace(class); err != nil {
			return fmt.Errorf("replace class %d for %s on %s: %w", classMinor, destIP, ifaceName, err)
		}

		// Deterministic per-destination qdisc handle, derived from the
		// dense destIndex so reprogramming this destination never
		// disturbs any other destination's handle.
		netemHandle := netlink.MakeHandle(uint16(destinationClassOffset+destIndex), 0)
		netem := netlink.NewNetem(netlink.QdiscAttrs{
			LinkIndex: link.Attrs().Index,
			Handle:    netemHandle,
			Parent:    classHandle,
		}, netemAttrs(p))
		if err := netlink.QdiscReplace(netem); err != nil {
			return fmt.Errorf("replace netem qdisc for %s on %s: %w", destIP, ifaceName, err)
		}

		ip := net.ParseIP(destIP).To4()
		if ip == nil {
			return fmt.Errorf("invalid destination IPv4 %q", destIP)
		}
		flower := &netlink.Flower{
			FilterAttrs: netlink.FilterAttrs{
				LinkIndex: link.Attrs().Index,
				Parent:    rootHandle,
				Handle:    destIndex + 1,
				Priority:  1,
				Protocol:  unix.ETH_P_IP,
			},
			EthType:    unix.ETH_P_IP,
			DestIP:     ip,
			DestIPMask: net.CIDRMask(32, 32),
			ClassId:    classHandle,
		}
		if err := netlink.FilterReplace(flower); err != nil {
			return fmt.Errorf("replace filter for %s on %s: %w", destIP, ifaceName, err)
		}
		return nil
	})
}

func (b *NetlinkBackend) RemoveDestination(pid int, ifaceName string, destIndex uint32) error {
	return withNetNS(pid, func() error {
		link, err := netlink.LinkByName(ifaceName)
		if err != nil {
			return fmt.Errorf("find interface %s: %w", ifaceName, err)
		}
		rootHandle := netlink.MakeHandle(rootHandleMajor, 0)
		classHandle := netlink.MakeHandle(rootHandleMajor, destinationClassMinor(destIndex))
		netemHandle := netlink.MakeHandle(uint16(destinationClassOffset+destIndex), 0)

		// Best-effort, idempotent: a missing object is not an error.
		_ = netlink.FilterDel(&netlink.Flower{
			FilterAttrs: netlink.FilterAttrs{
				LinkIndex: link.Attrs().Index,
				Parent:    rootHandle,
				Handle:    destIndex + 1,
				Priority:  1,
				Protocol:  unix.ETH_P_IP,
			},
		})
		_ = netlink.QdiscDel(netlink.NewNetem(netlink.QdiscAttrs{
			LinkIndex: link.Attrs().Index,
			Handle:    netemHandle,
			Parent:    classHandle,
		}, netlink.NetemQdiscAttrs{}))
		_ = netlink.ClassDel(&netlink.HtbClass{
			ClassAttrs: netlink.ClassAttrs{
				LinkIndex: link.Attrs().Index,
				Parent:    rootHandle,
				Handle:    classHandle,
			},
		})
		return nil
	})
}

// TxBytes reads ifaceName's cumulative transmitted byte counter inside
// pid's network namespace, for the controller's transmission-state
// auto-detection poll.
func (b *NetlinkBackend) TxBytes(pid int, ifaceName string) (uint64, error) {
	var out uint64
	err := withNetNS(pid, func() error {
		link, err := netlink.LinkByName(ifaceName)
		if err != nil {
			return fmt.Errorf("find interface %s: %w", ifaceName, err)
		}
		statistics := link.Attrs().Statistics
		if statistics == nil {
			return fmt.Errorf("no statistics for interface %s", ifaceName)
		}
		out = statistics.TxBytes
		return nil
	})
	return out, err
}

func (b *NetlinkBackend) Teardown(pid int, ifaceName string) error {
	return withNetNS(pid, func() error {
		link, err := netlink.LinkByName(ifaceName)
		if err != nil {
			// A container whose interface is already gone is a no-op
			// teardown, not a failure.
			return nil
		}
		qdiscs, err := netlink.QdiscList(link)
		if err != nil {
			return fmt.Errorf("list qdiscs on %s: %w", ifaceName, err)
		}
		for _, q := range qdiscs {
			if q.Attrs().Parent == netlink.HANDLE_ROOT || q.Attrs().Parent == netlink.HANDLE_NONE {
				_ = netlink.QdiscDel(q)
			}
		}
		return nil
	})
}
