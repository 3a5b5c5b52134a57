// Package ifstore names the network interfaces ControlSocket's LIST,
// MAC, HWTYPE and RAWSOCK commands report on: an external collaborator
// whose shape is deliberately left up to the caller's deployment.
package ifstore

import "sort"

// HWType is the coarse hardware-type classification HWTYPE reports.
type HWType int

const (
	Unknown HWType = iota
	Loopback
	Ethernet
)

func (h HWType) String() string {
	switch h {
	case Loopback:
		return "LOOPBACK"
	case Ethernet:
		return "ETHERNET"
	default:
		return "UNKNOWN"
	}
}

// Interface is one network interface as the control protocol sees it.
type Interface struct {
	Name   string
	MAC    []byte // 6 bytes, or nil/empty if the interface has none
	HWType HWType
	Index  int
}

// Store names the interfaces a kernel instance knows about, in the
// fixed order LIST reports them.
type Store interface {
	// List returns every known interface name, in report order.
	List() []string
	// Lookup finds an interface by name. ok is false if no such
	// interface exists.
	Lookup(name string) (Interface, bool)
}

// Static is a fixed, in-memory Store, useful for tests and for any
// environment that has no real network stack to introspect.
type Static struct {
	byName map[string]Interface
	order  []string
}

// NewStatic builds a Static store from ifaces, preserving the given
// order for List.
func NewStatic(ifaces ...Interface) *Static {
	s := &Static{byName: make(map[string]Interface, len(ifaces))}
	for _, ifc := range ifaces {
		if _, dup := s.byName[ifc.Name]; dup {
			continue
		}
		s.byName[ifc.Name] = ifc
		s.order = append(s.order, ifc.Name)
	}
	return s
}

func (s *Static) List() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Static) Lookup(name string) (Interface, bool) {
	ifc, ok := s.byName[name]
	return ifc, ok
}

// SortedNames is a convenience for callers that want a deterministic
// LIST order when the underlying source has none. HostStore does not
// use it: its List keeps net.Interfaces order.
func SortedNames(ifaces []Interface) []string {
	names := make([]string, len(ifaces))
	for i, ifc := range ifaces {
		names[i] = ifc.Name
	}
	sort.Strings(names)
	return names
}
