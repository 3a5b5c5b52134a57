// Package captable implements the polymorphic capability object and the
// per-process capability table that maps small integers to capabilities.
//
// The capability surface is a fixed set of operations dispatched by
// kind rather than by a deep inheritance tree: a concrete capability
// implements Capability plus whichever optional interfaces its kind
// supports (Reader, Writer, Stater), and a caller that
// type-asserts for an unsupported interface reports errno.NotSup
// itself, uniformly, rather than each capability kind hand-rolling the
// same check.
package captable

import (
	"sync/atomic"

	"github.com/NuxiNL/corekernel/pkg/errno"
	"github.com/NuxiNL/corekernel/pkg/rights"
)

// Kind is the capability's type tag, fixed at construction.
type Kind int

const (
	KindRegularFile Kind = iota
	KindDirectory
	KindCharacterDevice
	KindBlockDevice
	KindDgramSocket
	KindStreamSocket
	KindSharedMemory
	KindProcess
	KindPoll
	KindPipe
	KindControl
)

func (k Kind) String() string {
	switch k {
	case KindRegularFile:
		return "regular_file"
	case KindDirectory:
		return "directory"
	case KindCharacterDevice:
		return "character_device"
	case KindBlockDevice:
		return "block_device"
	case KindDgramSocket:
		return "dgram_socket"
	case KindStreamSocket:
		return "stream_socket"
	case KindSharedMemory:
		return "shared_memory"
	case KindProcess:
		return "process"
	case KindPoll:
		return "poll"
	case KindPipe:
		return "pipe"
	case KindControl:
		return "control"
	default:
		return "unknown"
	}
}

// Flags is a capability-level bitmask, independent of the rights a
// particular table slot grants.
type Flags uint32

// Nonblock is the only flag the core itself interprets: operations that
// would otherwise suspend report errno.Again instead.
const Nonblock Flags = 1 << 0

// Ceiling returns the maximum rights a capability of kind k may ever
// carry in any table slot. CapTable.Add masks every incoming base and
// inheriting mask against this before installing a slot.
func Ceiling(k Kind) rights.Rights {
	switch k {
	case KindDgramSocket, KindStreamSocket, KindPipe:
		return rights.SockShutdown | rights.SockRecv | rights.SockSend |
			rights.GetReadSignaler | rights.GetWriteSignaler | rights.Read | rights.Write | rights.Stat
	case KindControl:
		return rights.SockShutdown | rights.SockRecv | rights.SockSend |
			rights.GetReadSignaler | rights.GetWriteSignaler | rights.Stat
	case KindRegularFile, KindSharedMemory:
		return rights.Read | rights.Write | rights.Stat
	case KindCharacterDevice, KindBlockDevice, KindDirectory, KindProcess, KindPoll:
		return rights.Read | rights.Write | rights.Stat
	default:
		return rights.None
	}
}

// Capability is the abstract object every CapTable slot refers to.
// Concrete kinds additionally implement whichever of Reader, Writer
// or Stater their Kind's Ceiling rights call for; operations
// outside that set are errno.NotSup by construction (there is no method
// to invoke).
type Capability interface {
	Kind() Kind
	Name() string
	Flags() Flags

	// LastError returns the error slot left by the last operation.
	// Zero (errno.Success) means the last operation succeeded,
	// including a zero-byte read/recv signifying EOF.
	LastError() errno.Errno

	// AddRef and Release implement shared-ownership refcounting: a
	// capability is shared between table slots and in-flight
	// messages, and is destroyed only when the last reference is
	// released. Release returns true exactly when this call dropped
	// the count to zero and ran the capability's own destruction
	// logic.
	AddRef()
	Release() bool
}

// RefCounted is embedded by concrete capability kinds to get AddRef and
// Release for free. destroy is invoked at most once, when the count
// reaches zero; it is nil-safe to embed without setting one, in which
// case Release is a pure counter with no side effect.
type RefCounted struct {
	count   atomic.Int32
	destroy func()
}

// Init must be called once before first use, normally from the owning
// type's constructor. The initial reference (the caller's own) counts
// as 1.
func (r *RefCounted) Init(destroy func()) {
	r.count.Store(1)
	r.destroy = destroy
}

func (r *RefCounted) AddRef() {
	r.count.Add(1)
}

func (r *RefCounted) Release() bool {
	if r.count.Add(-1) != 0 {
		return false
	}
	if r.destroy != nil {
		r.destroy()
	}
	return true
}

// Reader is implemented by capabilities that support the read
// operation (regular files, shared memory segments).
type Reader interface {
	Read(offset int64, p []byte) (n int, err errno.Errno)
}

// Writer is implemented by capabilities that support the write
// operation.
type Writer interface {
	Write(p []byte) (n int, err errno.Errno)
}

// Stat is the subset of file metadata the core cares about; real
// filesystem stat fields are an external collaborator's concern.
type Stat struct {
	Kind Kind
}

// Stater is implemented by capabilities that support the stat
// operation.
type Stater interface {
	Stat() (Stat, errno.Errno)
}
