// Package control implements ControlSocket, the capability whose sole
// peer is the kernel itself: a one-slot datagram mailbox that brokers
// creation of new objects by parsing textual request messages (§4.4)
// and returning reply bytes plus newly installed capabilities.
package control

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/NuxiNL/corekernel/pkg/captable"
	"github.com/NuxiNL/corekernel/pkg/errno"
	"github.com/NuxiNL/corekernel/pkg/ifstore"
	"github.com/NuxiNL/corekernel/pkg/signaler"
	"github.com/NuxiNL/corekernel/pkg/socket"
)

// Status is a ControlSocket's connection state.
type Status int

const (
	StatusConnected Status = iota
	StatusShutdown
)

// ShutdownHow mirrors socket.ShutdownHow for the SHUT_RD/SHUT_WR mask.
type ShutdownHow int

const (
	ShutRD ShutdownHow = 1 << iota
	ShutWR
)

// RecvFlags is the mask accepted by SockRecv. ControlSocket has no PEEK
// mode — receiving always drains the pending reply — so this exists
// purely so call sites share PairSocket's recv-flags vocabulary; the
// Peek bit is accepted and ignored.
type RecvFlags int

const (
	Peek RecvFlags = 1 << iota
)

// RecvOutFlags reports truncation conditions, same shape as
// socket.RecvOutFlags.
type RecvOutFlags int

const (
	DataTruncated RecvOutFlags = 1 << iota
	FDsTruncated
)

// RecvResult is SockRecv's output.
type RecvResult struct {
	Datalen  int
	FDs      []int
	OutFlags RecvOutFlags
}

// spawner builds a fresh ControlSocket wired to the same collaborators
// as its parent, for the COPY command. pkg/kernel supplies this so
// pkg/control never constructs a kernel-level process context itself.
type spawner func() *ControlSocket

// ControlSocket is a single-slot datagram mailbox between a caller and
// a command interpreter: sock_send parses and dispatches a command,
// sock_recv drains the resulting reply bytes and capabilities.
type ControlSocket struct {
	captable.RefCounted

	mu     sync.Mutex
	id     uuid.UUID
	flags  captable.Flags
	name   string
	err    errno.Errno
	status Status

	hasMessage bool
	reply      []byte
	pendingFDs []pendingFD

	readCV  *signaler.Signaler // broadcast when hasMessage becomes true
	writeCV *signaler.Signaler // broadcast when hasMessage becomes false

	store   ifstore.Store
	pairCfg *socket.Config
	cfg     *Config
	spawn   spawner
	log     *logrus.Entry
}

// New returns a fresh, connected ControlSocket. store answers the
// LIST/MAC/HWTYPE/RAWSOCK commands; pairCfg configures any PairSocket
// (Reverse/Pseudo) this instance creates via PSEUDOPAIR; spawn builds
// the next instance for COPY.
func New(store ifstore.Store, pairCfg *socket.Config, cfg *Config, spawn spawner, log *logrus.Entry) *ControlSocket {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	c := &ControlSocket{
		id:      uuid.New(),
		name:    "control",
		status:  StatusConnected,
		readCV:  signaler.New(),
		writeCV: signaler.New(),
		store:   store,
		pairCfg: pairCfg,
		cfg:     cfg,
		spawn:   spawn,
		log:     log,
	}
	c.log = c.log.WithField("control", c.id.String())
	c.RefCounted.Init(c.destroy)
	return c
}

func (c *ControlSocket) Kind() captable.Kind   { return captable.KindControl }
func (c *ControlSocket) Name() string          { return c.name }
func (c *ControlSocket) Flags() captable.Flags { return c.flags }

func (c *ControlSocket) LastError() errno.Errno {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *ControlSocket) Stat() (captable.Stat, errno.Errno) {
	return captable.Stat{Kind: captable.KindControl}, errno.Success
}

func (c *ControlSocket) nonblock() bool {
	return c.flags&captable.Nonblock != 0
}

// GetReadSignaler returns the signaler that fires when a reply becomes
// available to drain.
func (c *ControlSocket) GetReadSignaler() (*signaler.Signaler, errno.Errno) {
	return c.readCV, errno.Success
}

// GetWriteSignaler returns the signaler that fires when the single
// reply slot becomes free again, or PIPE if shut down for writing.
func (c *ControlSocket) GetWriteSignaler() (*signaler.Signaler, errno.Errno) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusShutdown {
		return nil, errno.Pipe
	}
	return c.writeCV, errno.Success
}

// SockShutdown marks this instance shut down in the requested
// direction(s) and wakes anyone waiting on either CV so they observe
// the terminal state, matching PairSocket's sock_shutdown contract.
func (c *ControlSocket) SockShutdown(how ShutdownHow) errno.Errno {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusConnected {
		c.err = errno.NotConn
		return errno.NotConn
	}
	if how&(ShutRD|ShutWR) != 0 {
		c.status = StatusShutdown
		c.readCV.Broadcast(nil)
		c.writeCV.Broadcast(nil)
	}
	c.err = errno.Success
	return errno.Success
}

// SockSend assembles iov into a command buffer, dispatches it, and
// stores the reply for the next SockRecv. It blocks while a previous
// reply has not yet been drained, unless this instance is NONBLOCK.
func (c *ControlSocket) SockSend(iov [][]byte) (int, errno.Errno) {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, b := range iov {
		total += len(b)
	}
	if total > c.cfg.maxCommand() {
		c.err = errno.MsgSize
		return 0, errno.MsgSize
	}

	nonblock := c.nonblock()
	for c.hasMessage {
		if c.status != StatusConnected {
			c.err = errno.NotConn
			return 0, errno.NotConn
		}
		if nonblock {
			c.err = errno.Again
			return 0, errno.Again
		}
		_, ch := c.writeCV.Attach(func() (bool, signaler.ConditionData) {
			return !c.hasMessage, nil
		})
		signaler.Wait(&c.mu, ch)
	}
	if c.status != StatusConnected {
		c.err = errno.NotConn
		return 0, errno.NotConn
	}

	buf := make([]byte, 0, total)
	for _, b := range iov {
		buf = append(buf, b...)
	}

	reply, fds := c.dispatch(string(buf))
	if len(reply) > c.cfg.maxReply() {
		reply = []byte("EMSGSIZE\n")
	}

	c.reply = reply
	c.pendingFDs = fds
	c.hasMessage = true
	c.readCV.Broadcast(nil)

	c.err = errno.Success
	return total, errno.Success
}

// SockRecv drains the pending reply into iov using datagram rules, then
// drains pendingFDs into table.
func (c *ControlSocket) SockRecv(iov [][]byte, table *captable.CapTable, fdCapacity int, flags RecvFlags) (RecvResult, errno.Errno) {
	c.mu.Lock()
	defer c.mu.Unlock()

	nonblock := c.nonblock()
	for !c.hasMessage {
		if c.status != StatusConnected {
			c.err = errno.NotConn
			return RecvResult{}, errno.NotConn
		}
		if nonblock {
			c.err = errno.Again
			return RecvResult{}, errno.Again
		}
		_, ch := c.readCV.Attach(func() (bool, signaler.ConditionData) {
			return c.hasMessage, nil
		})
		signaler.Wait(&c.mu, ch)
	}

	copied := 0
	remaining := c.reply
	for _, dst := range iov {
		if len(remaining) == 0 {
			break
		}
		n := copy(dst, remaining)
		copied += n
		remaining = remaining[n:]
	}
	var out RecvOutFlags
	if copied < len(c.reply) {
		out |= DataTruncated
	}

	installed, truncated := installPendingFDs(c.pendingFDs, table, fdCapacity)
	if truncated {
		out |= FDsTruncated
	}

	c.reply = nil
	c.pendingFDs = nil
	c.hasMessage = false
	c.writeCV.Broadcast(nil)

	c.err = errno.Success
	return RecvResult{Datalen: copied, FDs: installed, OutFlags: out}, errno.Success
}

func (c *ControlSocket) destroy() {
	c.mu.Lock()
	c.status = StatusShutdown
	fds := c.pendingFDs
	c.pendingFDs = nil
	c.readCV.Broadcast(nil)
	c.writeCV.Broadcast(nil)
	c.mu.Unlock()

	for _, f := range fds {
		f.release()
	}
	c.log.Debug("control socket destroyed")
}

var _ captable.Capability = (*ControlSocket)(nil)
