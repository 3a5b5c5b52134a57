package ifstore

import (
	"net"

	"golang.org/x/sys/unix"
)

// HostStore reads real interfaces off the running host via net.Interfaces,
// rather than hand-rolling a netlink client. An interface whose flags
// carry golang.org/x/sys/unix's IFF_LOOPBACK is Loopback; otherwise one
// with a six-byte hardware address is Ethernet, and the rest Unknown.
type HostStore struct{}

// NewHost returns a Store backed by the host's current interface list.
// Errors from net.Interfaces are treated as "no interfaces" rather than
// surfaced, matching LIST's "no such failure mode" contract.
func NewHost() *HostStore {
	return &HostStore{}
}

func (h *HostStore) snapshot() []Interface {
	ifs, err := net.Interfaces()
	if err != nil {
		return nil
	}
	out := make([]Interface, 0, len(ifs))
	for _, ifc := range ifs {
		out = append(out, Interface{
			Name:   ifc.Name,
			MAC:    []byte(ifc.HardwareAddr),
			HWType: classify(ifc),
			Index:  ifc.Index,
		})
	}
	return out
}

// rawFlags translates net.Interface's portable flag bits into the
// unix.IFF_* values HWTYPE classification is defined in terms of, so
// the classification logic reads the same bit names the kernel itself
// uses rather than net's own renamed constants.
func rawFlags(f net.Flags) uint32 {
	var raw uint32
	if f&net.FlagUp != 0 {
		raw |= unix.IFF_UP
	}
	if f&net.FlagBroadcast != 0 {
		raw |= unix.IFF_BROADCAST
	}
	if f&net.FlagLoopback != 0 {
		raw |= unix.IFF_LOOPBACK
	}
	if f&net.FlagPointToPoint != 0 {
		raw |= unix.IFF_POINTOPOINT
	}
	if f&net.FlagMulticast != 0 {
		raw |= unix.IFF_MULTICAST
	}
	return raw
}

func classify(ifc net.Interface) HWType {
	if rawFlags(ifc.Flags)&unix.IFF_LOOPBACK != 0 {
		return Loopback
	}
	if len(ifc.HardwareAddr) == 6 {
		return Ethernet
	}
	return Unknown
}

func (h *HostStore) List() []string {
	snap := h.snapshot()
	names := make([]string, len(snap))
	for i, ifc := range snap {
		names[i] = ifc.Name
	}
	return names
}

func (h *HostStore) Lookup(name string) (Interface, bool) {
	for _, ifc := range h.snapshot() {
		if ifc.Name == name {
			return ifc, true
		}
	}
	return Interface{}, false
}
