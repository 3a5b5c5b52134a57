// Package reverse implements the Reverse/Pseudo capability pair that
// backs ControlSocket's PSEUDOPAIR command. Only their contract is
// defined here, not their internals: a reverse capability behaves as
// a stream socket from the caller's side, a pseudo capability behaves
// as a filesystem object of the requested filetype, and operations on
// the pseudo side are forwarded to whatever userspace driver holds the
// reverse side. That forwarding is the driver's concern, not this
// package's; Pair only establishes the joined stream-socket link the
// two capabilities communicate over.
package reverse

import (
	"github.com/sirupsen/logrus"

	"github.com/NuxiNL/corekernel/pkg/captable"
	"github.com/NuxiNL/corekernel/pkg/errno"
	"github.com/NuxiNL/corekernel/pkg/socket"
)

// Filetype is the filesystem object kind a Pseudo impersonates, the
// decimal 0-255 argument PSEUDOPAIR parses from its command text.
type Filetype uint8

// Reverse is the caller-visible side of a reverse/pseudo pair: a plain
// stream socket that a userspace filesystem driver reads operation
// requests from and writes replies to. This package does not define
// the request/reply wire format on that stream; it is left to the
// driver and pseudo-filesystem protocol above this core.
type Reverse struct {
	*socket.PairSocket
}

// Pseudo is the filesystem-facing side of the pair: from the kernel's
// point of view it is a distinct capability of a caller-chosen
// Filetype, but every operation on it that this core does not itself
// implement is forwarded over the paired Reverse socket to the driver.
// Concretely, this means a Pseudo is a stream socket capability with
// an attached Filetype tag; its Kind remains KindStreamSocket so the
// rest of the core (CapTable, rights ceilings) treats it exactly like
// any other socket capability.
type Pseudo struct {
	*socket.PairSocket
	filetype Filetype
}

// Filetype returns the filesystem object kind this Pseudo impersonates.
func (p *Pseudo) Filetype() Filetype { return p.filetype }

// NewPair constructs a joined Reverse/Pseudo pair: both capabilities
// start life already connected to one another, before either is
// installed into a caller's CapTable. ControlSocket's PSEUDOPAIR
// command (pkg/control) queues both and installs them into the
// caller's table on the next SockRecv.
func NewPair(filetype Filetype, cfg *socket.Config, log *logrus.Entry) (*Reverse, *Pseudo, errno.Errno) {
	a := socket.New(captable.KindStreamSocket, 0, "reverse", cfg, log)
	b := socket.New(captable.KindStreamSocket, 0, "pseudo", cfg, log)
	if err := socket.MakePair(a, b); err != errno.Success {
		return nil, nil, err
	}
	return &Reverse{PairSocket: a}, &Pseudo{PairSocket: b, filetype: filetype}, errno.Success
}
