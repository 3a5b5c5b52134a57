package socket

import (
	"github.com/NuxiNL/corekernel/pkg/captable"
	"github.com/NuxiNL/corekernel/pkg/errno"
	"github.com/NuxiNL/corekernel/pkg/rights"
	"github.com/NuxiNL/corekernel/pkg/signaler"
)

// SockSend implements §4.3 sock_send. fdNums are resolved against
// table with zero required rights (a capability-level copy needs no
// particular rights of its own, only existence) and copied into the
// message with their current rights unchanged.
func (s *PairSocket) SockSend(iov [][]byte, table *captable.CapTable, fdNums []int) (int, errno.Errno) {
	unlock, peer := s.lockWithPeer()
	defer unlock()

	nonblock := s.nonblock()
	for {
		if s.status == StatusShutdown {
			s.err = errno.Pipe
			return 0, errno.Pipe
		}
		if s.status != StatusConnected || peer == nil {
			s.err = errno.NotConn
			return 0, errno.NotConn
		}
		if peer.recvBytes < peer.cfg.maxBuffered() {
			break
		}
		if nonblock {
			s.err = errno.Again
			return 0, errno.Again
		}
		locker := newPairLocker(&s.mu, &peer.mu)
		_, ch := s.sendSignaler.Attach(func() (bool, signaler.ConditionData) {
			return s.status == StatusConnected && s.peer == peer && peer.recvBytes < peer.cfg.maxBuffered(), nil
		})
		signaler.Wait(locker, ch)
		// peer may have been destroyed while we slept; lockWithPeer
		// already holds s.mu, so re-derive the current peer.
		peer = s.peer
	}

	total := totalLen(iov)
	room := peer.cfg.maxBuffered() - peer.recvBytes
	if total > room {
		total = room // stream semantics: short writes are legal
	}

	payload := flattenInto(iov, total)

	fds := make([]fdEntry, 0, len(fdNums))
	for _, num := range fdNums {
		resolved, base, inheriting, err := table.Get(num, rights.None)
		if err != errno.Success {
			for _, f := range fds {
				f.release()
			}
			s.err = err
			return 0, err
		}
		resolved.AddRef()
		fds = append(fds, fdEntry{cap: resolved, base: base, inheriting: inheriting})
	}

	m := &message{payload: payload, fds: fds}
	peer.recvQueue = append(peer.recvQueue, m)
	peer.recvBytes += total
	if peer.cfg.OnBytesReceived != nil {
		peer.cfg.OnBytesReceived(peer)
	}
	peer.recvSignaler.Broadcast(func() signaler.ConditionData {
		return ConditionData{BytesReadable: peer.recvBytes, Hangup: false}
	})

	s.err = errno.Success
	return total, errno.Success
}

// flattenInto copies up to limit bytes out of a scatter/gather iovec
// list into one contiguous slice, the layout SockSend's message needs.
func flattenInto(iov [][]byte, limit int) []byte {
	out := make([]byte, 0, limit)
	for _, b := range iov {
		if len(out)+len(b) > limit {
			out = append(out, b[:limit-len(out)]...)
			break
		}
		out = append(out, b...)
	}
	return out
}

// SockRecv implements §4.3 sock_recv, dispatching on the socket's kind.
// fdCapacity is ri_fds_len: how many received FDs the caller is willing
// to accept (0 means the caller opted out of FDs entirely, which
// suppresses FDsTruncated even when FDs are present and dropped).
func (s *PairSocket) SockRecv(iov [][]byte, table *captable.CapTable, fdCapacity int, flags RecvFlags) (RecvResult, errno.Errno) {
	unlock, peer := s.lockWithPeer()
	defer unlock()

	peek := flags&Peek != 0
	waitAll := flags&WaitAll != 0 && s.kind == captable.KindStreamSocket
	nonblock := s.nonblock()

	wanted := 0
	if waitAll {
		wanted = totalLen(iov)
	}

	for {
		if s.status != StatusConnected && s.status != StatusShutdown {
			s.err = errno.NotConn
			return RecvResult{}, errno.NotConn
		}

		if s.satisfiedLocked(waitAll, wanted) {
			break
		}

		if peer == nil || peer.status == StatusShutdown {
			// EOF: no more data will ever arrive.
			s.err = errno.Success
			return RecvResult{}, errno.Success
		}
		if nonblock {
			s.err = errno.Again
			return RecvResult{}, errno.Again
		}

		locker := newPairLocker(&s.mu, &peer.mu)
		_, ch := s.recvSignaler.Attach(func() (bool, signaler.ConditionData) {
			return s.satisfiedLocked(waitAll, wanted) || s.peerGoneLocked(), nil
		})
		signaler.Wait(locker, ch)
		peer = s.peer
	}

	if s.kind == captable.KindStreamSocket {
		return s.recvStreamLocked(iov, table, fdCapacity, peek)
	}
	return s.recvDgramLocked(iov, table, fdCapacity, peek)
}

func (s *PairSocket) satisfiedLocked(waitAll bool, wanted int) bool {
	if waitAll {
		present := 0
		for _, m := range s.recvQueue {
			present += m.remaining()
		}
		return present >= wanted
	}
	return len(s.recvQueue) > 0
}

// recvDgramLocked takes exactly the head message, per the datagram
// boundary rule: a message longer than the supplied iovecs is
// truncated and the remainder discarded.
func (s *PairSocket) recvDgramLocked(iov [][]byte, table *captable.CapTable, fdCapacity int, peek bool) (RecvResult, errno.Errno) {
	head := s.recvQueue[0]

	copied := copyToIovecs(iov, head.payload, 0)
	var out RecvOutFlags
	if copied < len(head.payload) {
		out |= DataTruncated
	}

	installed, fdsTruncated := installFDs(head.fds, table, fdCapacity, peek)
	if fdsTruncated {
		out |= FDsTruncated
	}

	if !peek {
		s.recvQueue = s.recvQueue[1:]
		s.recvBytes -= len(head.payload)
		s.broadcastPeerSendSignalerLocked()
	}

	s.err = errno.Success
	return RecvResult{Datalen: copied, FDs: installed, OutFlags: out}, errno.Success
}

// recvStreamLocked walks the queue filling iov in order, stopping
// before any message that carries FDs once some bytes have already
// been delivered in this call: FDs act as a read boundary so they stay
// associated with the byte region they were sent alongside.
func (s *PairSocket) recvStreamLocked(iov [][]byte, table *captable.CapTable, fdCapacity int, peek bool) (RecvResult, errno.Errno) {
	var out RecvOutFlags
	totalWritten := 0
	messagesConsumed := 0
	headPartiallyAdvanced := false

	ivIdx, ivOff := 0, 0
	qIdx := 0
	peekOff := 0 // bytes of s.recvQueue[qIdx] already copied by this peek call
	for ivIdx < len(iov) && qIdx < len(s.recvQueue) {
		m := s.recvQueue[qIdx]
		if qIdx > 0 && len(m.fds) > 0 && totalWritten > 0 {
			break // FD boundary: stop before touching this message
		}
		if m.remaining() == 0 {
			qIdx++
			messagesConsumed++
			continue
		}

		dst := iov[ivIdx][ivOff:]
		if len(dst) == 0 {
			ivIdx++
			ivOff = 0
			continue
		}
		src := m.payload[m.streamOffset+peekOff:]
		n := copy(dst, src)
		ivOff += n
		if peek {
			peekOff += n
		} else {
			m.streamOffset += n
		}
		totalWritten += n
		if qIdx == 0 {
			headPartiallyAdvanced = true
		}
		if n == len(src) {
			qIdx++
			messagesConsumed++
			headPartiallyAdvanced = false
			peekOff = 0
		}
		if ivOff == len(iov[ivIdx]) {
			ivIdx++
			ivOff = 0
		}
	}

	fdMessages := messagesConsumed
	if headPartiallyAdvanced {
		fdMessages++
	}

	installed := make([]int, 0)
	for i := 0; i < fdMessages && i < len(s.recvQueue); i++ {
		m := s.recvQueue[i]
		got, truncated := installFDs(m.fds, table, fdCapacity-len(installed), peek)
		installed = append(installed, got...)
		if truncated || (fdCapacity > 0 && len(got) < len(m.fds)) {
			out |= FDsTruncated
		}
		if !peek {
			m.fds = nil
		}
	}

	if !peek {
		for messagesConsumed > 0 {
			s.recvQueue[0].releaseFDs()
			s.recvQueue = s.recvQueue[1:]
			messagesConsumed--
		}
		s.recvBytes -= totalWritten
		if totalWritten > 0 {
			s.broadcastPeerSendSignalerLocked()
		}
	}

	s.err = errno.Success
	return RecvResult{Datalen: totalWritten, FDs: installed, OutFlags: out}, errno.Success
}

// broadcastPeerSendSignalerLocked wakes a sender blocked waiting for
// room in this socket's buffer, matching §4.3's "decrement recv_bytes,
// broadcast peer's send_signaler": the peer's own send_signaler is the
// one bound to this socket's recv_bytes (see PairSocket's doc comment
// on sendSignaler for the rationale).
func (s *PairSocket) broadcastPeerSendSignalerLocked() {
	if s.peer == nil {
		return
	}
	s.peer.sendSignaler.Broadcast(func() signaler.ConditionData { return ConditionData{} })
}

// installFDs installs up to cap capability entries from fds into
// table, returning the newly installed slot numbers and whether any
// FDs were left undelivered while the caller had asked for at least
// one FD slot (cap > 0). On a non-peek call, every entry not installed
// is released (destroyed), matching the documented "lost" policy; on
// peek, entries are left untouched and never released, so a peek never
// loses a capability.
func installFDs(fds []fdEntry, table *captable.CapTable, capacity int, peek bool) ([]int, bool) {
	if capacity < 0 {
		capacity = 0
	}
	installed := make([]int, 0, len(fds))
	truncated := false
	for i, f := range fds {
		if i < capacity {
			slot := table.Add(f.cap, f.base, f.inheriting)
			installed = append(installed, slot)
			if !peek {
				f.release()
			}
			continue
		}
		if capacity > 0 {
			truncated = true
		}
		if !peek {
			f.release()
		}
	}
	return installed, truncated
}
