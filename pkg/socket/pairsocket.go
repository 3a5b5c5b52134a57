// Package socket implements PairSocket, the in-memory bidirectional
// socket used for all inter-process communication: two sockets joined
// by make_pair exchange byte payloads and capabilities through a bounded
// message queue, in either datagram or stream mode.
//
// The original cooperative-scheduling design serializes every operation
// implicitly (one runnable thread at a time). This implementation
// targets real goroutines, so each PairSocket carries its own mutex, and
// any operation that touches a peer's state locks both sockets in
// address order (see lockWithPeer) to avoid deadlocking with a
// concurrent operation on the peer.
package socket

import (
	"sync"
	"unsafe"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/NuxiNL/corekernel/pkg/captable"
	"github.com/NuxiNL/corekernel/pkg/errno"
	"github.com/NuxiNL/corekernel/pkg/signaler"
)

// Status is a PairSocket's connection state.
type Status int

const (
	StatusIdle Status = iota
	StatusConnected
	StatusShutdown
)

// ShutdownHow is the mask accepted by SockShutdown.
type ShutdownHow int

const (
	ShutRD ShutdownHow = 1 << iota
	ShutWR
)

// RecvFlags is the mask accepted by SockRecv.
type RecvFlags int

const (
	// Peek leaves the message queue undisturbed: nothing is consumed
	// and no FD is destroyed, even one that did not fit in the
	// caller's fd slots. Peek is always fully non-destructive.
	Peek RecvFlags = 1 << iota
	// WaitAll is meaningful only for stream sockets: block until the
	// full requested byte count is available rather than returning
	// as soon as at least one byte is.
	WaitAll
)

// RecvOutFlags reports truncation conditions back from SockRecv.
type RecvOutFlags int

const (
	DataTruncated RecvOutFlags = 1 << iota
	FDsTruncated
)

// ConditionData is the snapshot handed to waiters of a PairSocket's
// signalers: bytes currently readable, and whether the socket has
// reached end-of-stream (peer gone or shut down for writing).
type ConditionData struct {
	BytesReadable int
	Hangup        bool
}

// RecvResult is SockRecv's output.
type RecvResult struct {
	Datalen  int
	FDs      []int // newly installed slot numbers in the caller's table
	OutFlags RecvOutFlags
}

// PairSocket is an in-memory stream or datagram socket, one half of a
// pair created by MakePair.
type PairSocket struct {
	captable.RefCounted

	mu    sync.Mutex
	id    uuid.UUID
	kind  captable.Kind // KindDgramSocket or KindStreamSocket
	flags captable.Flags
	name  string
	err   errno.Errno

	status Status
	peer   *PairSocket // non-owning: destroying a socket must not be blocked on the peer's lifetime

	recvQueue []*message
	recvBytes int

	recvSignaler *signaler.Signaler // readability / hangup of this socket
	sendSignaler *signaler.Signaler // writability of this socket (room in peer's recvBytes)

	cfg *Config
	log *logrus.Entry
}

// New returns a fresh, unconnected (StatusIdle) socket of the given
// kind. kind must be KindDgramSocket or KindStreamSocket.
func New(kind captable.Kind, flags captable.Flags, name string, cfg *Config, log *logrus.Entry) *PairSocket {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &PairSocket{
		id:           uuid.New(),
		kind:         kind,
		flags:        flags,
		name:         name,
		status:       StatusIdle,
		recvSignaler: signaler.New(),
		sendSignaler: signaler.New(),
		cfg:          cfg,
		log:          log.WithField("socket", name),
	}
	s.RefCounted.Init(s.destroy)
	return s
}

// MakePair joins two fresh sockets of the same kind; both must be idle.
// After it returns, both are StatusConnected with peer pointing at the
// other. Neither extends the other's lifetime: the link is a raw,
// non-owning pointer on each side.
func MakePair(a, b *PairSocket) errno.Errno {
	locker := newPairLocker(&a.mu, &b.mu)
	locker.Lock()
	defer locker.Unlock()
	if a.status != StatusIdle || b.status != StatusIdle || a.kind != b.kind {
		return errno.NotConn
	}
	a.status = StatusConnected
	b.status = StatusConnected
	a.peer = b
	b.peer = a
	return errno.Success
}

func (s *PairSocket) Kind() captable.Kind   { return s.kind }
func (s *PairSocket) Name() string          { return s.name }
func (s *PairSocket) Flags() captable.Flags { return s.flags }

func (s *PairSocket) LastError() errno.Errno {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *PairSocket) Stat() (captable.Stat, errno.Errno) {
	return captable.Stat{Kind: s.kind}, errno.Success
}

// lockWithPeer locks s, and if s has a live peer, locks both in address
// order and returns that peer together with an unlock func. If s has no
// peer (or the peer was concurrently destroyed), only s is locked.
func (s *PairSocket) lockWithPeer() (unlock func(), peer *PairSocket) {
	s.mu.Lock()
	p := s.peer
	if p == nil {
		return s.mu.Unlock, nil
	}
	s.mu.Unlock()

	locker := newPairLocker(&s.mu, &p.mu)
	locker.Lock()
	if s.peer != p {
		// p was destroyed between the unlocked read above and
		// acquiring both locks; fall back to s-only.
		locker.Unlock()
		s.mu.Lock()
		return s.mu.Unlock, nil
	}
	return locker.Unlock, p
}

func (s *PairSocket) nonblock() bool {
	return s.flags&captable.Nonblock != 0
}

// peerGoneLocked reports whether this socket has seen (or will never
// see) more data: no peer, or the peer has shut down writing.
func (s *PairSocket) peerGoneLocked() bool {
	return s.peer == nil || s.peer.status == StatusShutdown
}

// SockShutdown implements §4.3: SHUT_RD is forwarded to the peer as
// SHUT_WR; SHUT_WR transitions self to shutdown and wakes the peer's
// recv_cv (here, recv_signaler) so a blocked reader observes EOF.
func (s *PairSocket) SockShutdown(how ShutdownHow) errno.Errno {
	unlock, peer := s.lockWithPeer()
	defer unlock()

	if s.status != StatusConnected {
		s.err = errno.NotConn
		return errno.NotConn
	}
	if how&ShutRD != 0 && peer != nil {
		peer.status = StatusShutdown
		s.recvSignaler.Broadcast(func() signaler.ConditionData {
			return ConditionData{BytesReadable: s.recvBytes, Hangup: true}
		})
	}
	if how&ShutWR != 0 {
		s.status = StatusShutdown
		if peer != nil {
			peer.recvSignaler.Broadcast(func() signaler.ConditionData {
				return ConditionData{BytesReadable: peer.recvBytes, Hangup: peer.peerGoneLocked()}
			})
		}
	}
	s.err = errno.Success
	return errno.Success
}

// GetReadSignaler returns this socket's own readability signaler.
func (s *PairSocket) GetReadSignaler() (*signaler.Signaler, errno.Errno) {
	return s.recvSignaler, errno.Success
}

// GetWriteSignaler returns this socket's own writability signaler, or
// PIPE if the socket is already shut down for writing.
func (s *PairSocket) GetWriteSignaler() (*signaler.Signaler, errno.Errno) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusConnected {
		return nil, errno.Pipe
	}
	return s.sendSignaler, errno.Success
}

// Read is the read() convenience wrapper: a single iovec, zero FDs.
func (s *PairSocket) Read(_ int64, p []byte) (int, errno.Errno) {
	res, err := s.SockRecv([][]byte{p}, nil, 0, 0)
	return res.Datalen, err
}

// Write is the write() convenience wrapper: a single iovec, zero FDs.
func (s *PairSocket) Write(p []byte) (int, errno.Errno) {
	return s.SockSend([][]byte{p}, nil, nil)
}

func totalLen(iov [][]byte) int {
	n := 0
	for _, b := range iov {
		n += len(b)
	}
	return n
}

func copyToIovecs(iov [][]byte, src []byte, srcOffset int) int {
	copied := 0
	remaining := src[srcOffset:]
	for _, dst := range iov {
		if len(remaining) == 0 {
			break
		}
		n := copy(dst, remaining)
		copied += n
		remaining = remaining[n:]
	}
	return copied
}

// pairLocker locks two mutexes in a fixed address order, so that two
// goroutines operating on the same pair from either side always
// acquire them in the same order and cannot deadlock.
type pairLocker struct {
	first, second *sync.Mutex
}

func newPairLocker(a, b *sync.Mutex) pairLocker {
	if uintptr(unsafe.Pointer(a)) <= uintptr(unsafe.Pointer(b)) {
		return pairLocker{a, b}
	}
	return pairLocker{b, a}
}

func (p pairLocker) Lock() {
	p.first.Lock()
	p.second.Lock()
}

func (p pairLocker) Unlock() {
	p.second.Unlock()
	p.first.Unlock()
}

// destroy runs once, when the last reference to this socket is
// released: sock_shutdown(RD|WR), mark the peer's error CONNRESET, and
// destroy every still-queued message's FDs and payload. The peer link
// is cleared on both sides so neither can be mistaken for still live.
func (s *PairSocket) destroy() {
	unlock, peer := s.lockWithPeer()

	if s.status == StatusConnected {
		s.status = StatusShutdown
	}
	queue := s.recvQueue
	s.recvQueue = nil
	s.recvBytes = 0

	if peer != nil {
		peer.err = errno.ConnReset
		peer.peer = nil
		peer.recvSignaler.Broadcast(func() signaler.ConditionData {
			return ConditionData{BytesReadable: peer.recvBytes, Hangup: true}
		})
		peer.sendSignaler.Broadcast(func() signaler.ConditionData { return ConditionData{Hangup: true} })
	}
	s.peer = nil
	unlock()

	for _, m := range queue {
		m.releaseFDs()
	}
	s.log.WithField("id", s.id).Debug("pairsocket destroyed")
}

var (
	_ captable.Capability = (*PairSocket)(nil)
	_ captable.Reader     = (*PairSocket)(nil)
	_ captable.Writer     = (*PairSocket)(nil)
	_ captable.Stater     = (*PairSocket)(nil)
)
