package control

import (
	"github.com/NuxiNL/corekernel/pkg/captable"
	"github.com/NuxiNL/corekernel/pkg/errno"
)

// rawSocket is the capability RAWSOCK hands back: bound to one
// interface name, but otherwise inert. Real packet I/O belongs to a
// device-driver layer out of this core's scope; this core only needs
// a distinct, nameable capability that CapTable and the rights
// ceiling can reason about.
type rawSocket struct {
	captable.RefCounted

	iface string
	err   errno.Errno
}

func newRawSocket(iface string) *rawSocket {
	r := &rawSocket{iface: iface}
	r.RefCounted.Init(nil)
	return r
}

func (r *rawSocket) Kind() captable.Kind    { return captable.KindDgramSocket }
func (r *rawSocket) Name() string           { return "rawsock:" + r.iface }
func (r *rawSocket) Flags() captable.Flags  { return 0 }
func (r *rawSocket) LastError() errno.Errno { return r.err }

func (r *rawSocket) Stat() (captable.Stat, errno.Errno) {
	return captable.Stat{Kind: r.Kind()}, errno.Success
}

var (
	_ captable.Capability = (*rawSocket)(nil)
	_ captable.Stater     = (*rawSocket)(nil)
)
