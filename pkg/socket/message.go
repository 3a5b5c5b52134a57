package socket

import (
	"github.com/NuxiNL/corekernel/pkg/captable"
	"github.com/NuxiNL/corekernel/pkg/rights"
)

// fdEntry is one (Capability, base, inheriting) triple traveling inside
// a Message's fd list. The table copies are a capability-level copy of
// whatever the sender held: a shared reference, with identical rights,
// not further attenuated here (attenuation against the receiving
// process's own ceiling happens when the fd is installed on recv).
type fdEntry struct {
	cap        captable.Capability
	base       rights.Rights
	inheriting rights.Rights
}

func (f fdEntry) release() {
	f.cap.Release()
}

// message is one queued unit of data (and optional capabilities) on a
// PairSocket's recv_queue. streamOffset is only meaningful for stream
// sockets: it records how many payload bytes have already been
// delivered to a prior recv call.
type message struct {
	payload      []byte
	fds          []fdEntry
	streamOffset int
}

func (m *message) remaining() int {
	return len(m.payload) - m.streamOffset
}

// releaseFDs drops this message's reference on every carried
// capability. Called both when a message is fully consumed and, on
// socket destruction, for every message still queued.
func (m *message) releaseFDs() {
	for _, f := range m.fds {
		f.release()
	}
	m.fds = nil
}
