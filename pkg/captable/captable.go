package captable

import (
	"sync"

	"github.com/NuxiNL/corekernel/pkg/errno"
	"github.com/NuxiNL/corekernel/pkg/rights"
)

// Slot is one occupied entry of a CapTable: a shared reference to a
// capability plus the rights this particular reference carries.
type Slot struct {
	Cap        Capability
	Base       rights.Rights
	Inheriting rights.Rights
}

// CapTable is a per-process dense array mapping small non-negative
// integers ("file descriptors") to capabilities. Slot numbers are not
// promised to be small or dense, but allocation prefers the lowest free
// index.
type CapTable struct {
	mu    sync.Mutex
	slots []*Slot
}

// New returns an empty CapTable.
func New() *CapTable {
	return &CapTable{}
}

// Add installs a new capability, masking the provided rights against
// the capability's kind-specific ceiling, and returns the chosen slot
// number. The table takes a reference (AddRef) for the new slot.
func (t *CapTable) Add(cap Capability, base, inheriting rights.Rights) int {
	ceiling := Ceiling(cap.Kind())
	base = base.Mask(ceiling)
	inheriting = inheriting.Mask(ceiling)

	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.lowestFreeLocked()
	cap.AddRef()
	t.slots[idx] = &Slot{Cap: cap, Base: base, Inheriting: inheriting}
	return idx
}

// AddDerived installs cap as a new slot whose rights are attenuated by
// parentSlot's inheriting mask, per the derivation rule: base is capped
// by parentSlot's inheriting, and inheriting is capped by parentSlot's
// inheriting too. Used when a capability is derived from the authority
// of an existing slot (e.g. a file opened under a directory fd) rather
// than received wholesale from another process's message.
func (t *CapTable) AddDerived(parentSlot int, cap Capability, base, inheriting rights.Rights) (int, errno.Errno) {
	t.mu.Lock()
	parent, err := t.getLocked(parentSlot, rights.None)
	if err != errno.Success {
		t.mu.Unlock()
		return 0, err
	}
	ceiling := parent.Inheriting
	t.mu.Unlock()

	return t.Add(cap, base.Mask(ceiling), inheriting.Mask(ceiling)), errno.Success
}

// Replace atomically swaps the occupant of slot, releasing the prior
// occupant (if any) after the new one is installed. The new rights are
// masked against cap's ceiling exactly as in Add.
func (t *CapTable) Replace(slot int, cap Capability, base, inheriting rights.Rights) errno.Errno {
	ceiling := Ceiling(cap.Kind())
	base = base.Mask(ceiling)
	inheriting = inheriting.Mask(ceiling)

	t.mu.Lock()
	defer t.mu.Unlock()
	if slot < 0 || slot >= len(t.slots) {
		return errno.BadF
	}
	prior := t.slots[slot]
	cap.AddRef()
	t.slots[slot] = &Slot{Cap: cap, Base: base, Inheriting: inheriting}
	if prior != nil {
		prior.Cap.Release()
	}
	return errno.Success
}

// Get looks up slot, requiring that base contain every right in
// required. Returns BADF for an empty or out-of-range slot, NOTCAPABLE
// if required is not a subset of the slot's base rights.
func (t *CapTable) Get(slot int, required rights.Rights) (Capability, rights.Rights, rights.Rights, errno.Errno) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.getLocked(slot, required)
	if err != errno.Success {
		return nil, 0, 0, err
	}
	return s.Cap, s.Base, s.Inheriting, errno.Success
}

func (t *CapTable) getLocked(slot int, required rights.Rights) (*Slot, errno.Errno) {
	if slot < 0 || slot >= len(t.slots) || t.slots[slot] == nil {
		return nil, errno.BadF
	}
	s := t.slots[slot]
	if !s.Base.Has(required) {
		return nil, errno.NotCapable
	}
	return s, errno.Success
}

// Close empties slot, releasing the table's reference to its
// capability. BADF if the slot was already empty or out of range.
func (t *CapTable) Close(slot int) errno.Errno {
	t.mu.Lock()
	if slot < 0 || slot >= len(t.slots) || t.slots[slot] == nil {
		t.mu.Unlock()
		return errno.BadF
	}
	s := t.slots[slot]
	t.slots[slot] = nil
	t.mu.Unlock()

	s.Cap.Release()
	return errno.Success
}

// Drain empties every occupied slot, releasing each capability. Used
// when a process exits; capabilities that still have other holders
// (e.g. queued in a peer's socket) survive until those holders release
// their own reference.
func (t *CapTable) Drain() {
	t.mu.Lock()
	slots := t.slots
	t.slots = nil
	t.mu.Unlock()
	for _, s := range slots {
		if s != nil {
			s.Cap.Release()
		}
	}
}

// lowestFreeLocked finds the lowest-indexed empty slot, growing the
// backing array if every existing slot is occupied. Callers must hold
// t.mu.
func (t *CapTable) lowestFreeLocked() int {
	for i, s := range t.slots {
		if s == nil {
			return i
		}
	}
	t.slots = append(t.slots, nil)
	return len(t.slots) - 1
}
