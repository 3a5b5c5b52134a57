package kernel

import (
	"github.com/sirupsen/logrus"

	"github.com/NuxiNL/corekernel/pkg/control"
	"github.com/NuxiNL/corekernel/pkg/ifstore"
	"github.com/NuxiNL/corekernel/pkg/socket"
)

// Kernel is the shared set of collaborators every ControlSocket
// instance in a running system is wired against: the interface store
// LIST/MAC/HWTYPE/RAWSOCK answer from, the PairSocket configuration
// PSEUDOPAIR's Reverse/Pseudo pair is built with, and a logger.
type Kernel struct {
	Store   ifstore.Store
	PairCfg *socket.Config
	CtlCfg  *control.Config
	Log     *logrus.Entry
}

// New returns a Kernel with the given interface store and a default
// PairSocket/ControlSocket configuration. A nil store falls back to an
// empty Static store rather than touching the host.
func New(store ifstore.Store, log *logrus.Entry) *Kernel {
	if store == nil {
		store = ifstore.NewStatic()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Kernel{
		Store:   store,
		PairCfg: socket.DefaultConfig(),
		CtlCfg:  control.DefaultConfig(),
		Log:     log,
	}
}

// NewControlSocket returns a fresh, connected ControlSocket wired to
// this Kernel's collaborators. Its COPY command spawns further
// instances from this same method, so every descendant shares the same
// interface store and configuration as the original.
func (k *Kernel) NewControlSocket() *control.ControlSocket {
	return control.New(k.Store, k.PairCfg, k.CtlCfg, k.NewControlSocket, k.Log)
}
