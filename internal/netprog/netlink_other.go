//go:build !linux

package netprog

import "errors"

// ErrUnsupportedPlatform is returned by every [NetlinkBackend] method on a
// non-Linux build; network namespaces and netlink qdiscs are Linux-only.
var ErrUnsupportedPlatform = errors.New("netprog: netlink backend requires linux")

// NetlinkBackend is unavailable outside Linux: every method returns
// [ErrUnsupportedPlatform], so a non-dry-run deploy on these platforms
// marks each link unmanaged once its programming attempts fail.
type NetlinkBackend struct{}

var _ Backend = &NetlinkBackend{}

// NewNetlinkBackend returns a [NetlinkBackend] whose methods always fail
// with [ErrUnsupportedPlatform].
func NewNetlinkBackend() *NetlinkBackend { return &NetlinkBackend{} }

func (b *NetlinkBackend) ReplacePointToPoint(pid int, ifaceName string, p Params) error {
	return ErrUnsupportedPlatform
}

func (b *NetlinkBackend) EnsureRootClassful(pid int, ifaceName string) error {
	return ErrUnsupportedPlatform
}

func (b *NetlinkBackend) UpsertDestination(pid int, ifaceName string, destIndex uint32, destIP string, p Params) error {
	return ErrUnsupportedPlatform
}

func (b *NetlinkBackend) RemoveDestination(pid int, ifaceName string, destIndex uint32) error {
	return ErrUnsupportedPlatform
}

func (b *NetlinkBackend) Teardown(pid int, ifaceName string) error {
	return ErrUnsupportedPlatform
}

func (b *NetlinkBackend) TxBytes(pid int, ifaceName string) (uint64, error) {
	return 0, ErrUnsupportedPlatform
}
