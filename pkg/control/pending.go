package control

import (
	"github.com/NuxiNL/corekernel/pkg/captable"
	"github.com/NuxiNL/corekernel/pkg/rights"
)

// pendingFD is one capability queued for delivery by the next sock_recv,
// mirroring pkg/socket's fdEntry: a capability-level reference plus the
// rights it should be installed with.
type pendingFD struct {
	cap        captable.Capability
	base       rights.Rights
	inheriting rights.Rights
}

func (p pendingFD) release() {
	p.cap.Release()
}

// installPendingFDs installs up to capacity entries into table,
// returning their new slot numbers and whether any entries were left
// undelivered while the caller asked for at least one FD slot — the
// same FDS_TRUNCATED rule PairSocket's datagram recv uses. Entries not
// installed are released: ControlSocket replies carry no PEEK mode, so
// there is no non-destructive path to preserve them for a later call.
func installPendingFDs(fds []pendingFD, table *captable.CapTable, capacity int) ([]int, bool) {
	if capacity < 0 {
		capacity = 0
	}
	installed := make([]int, 0, len(fds))
	truncated := false
	for i, f := range fds {
		if i < capacity {
			installed = append(installed, table.Add(f.cap, f.base, f.inheriting))
			f.release()
			continue
		}
		if capacity > 0 {
			truncated = true
		}
		f.release()
	}
	return installed, truncated
}
