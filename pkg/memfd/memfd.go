// Package memfd implements MemoryFD, a read-only capability backed by an
// in-memory byte buffer. It is the simplest concrete Capability kind in
// this repository, useful for exercising CapTable and rights logic
// against something other than a socket.
package memfd

import (
	"github.com/NuxiNL/corekernel/pkg/captable"
	"github.com/NuxiNL/corekernel/pkg/errno"
)

// MemoryFD is a fixed-length, read-only buffer capability.
type MemoryFD struct {
	captable.RefCounted

	name string
	data []byte
	err  errno.Errno
}

// New returns a MemoryFD over data. The caller retains no further
// interest in data; MemoryFD treats the slice as its own.
func New(name string, data []byte) *MemoryFD {
	m := &MemoryFD{name: name, data: data}
	m.RefCounted.Init(nil)
	return m
}

func (m *MemoryFD) Kind() captable.Kind   { return captable.KindSharedMemory }
func (m *MemoryFD) Name() string          { return m.name }
func (m *MemoryFD) Flags() captable.Flags { return 0 }
func (m *MemoryFD) LastError() errno.Errno {
	return m.err
}

func (m *MemoryFD) Stat() (captable.Stat, errno.Errno) {
	return captable.Stat{Kind: m.Kind()}, errno.Success
}

// Read implements the corrected length arithmetic from the Open
// Question this package resolves: EOF (a zero-byte, no-error read) iff
// offset >= length; otherwise it copies min(len(p), length-offset)
// bytes. The original source's `offset + count >= length` check
// rejected legal reads near the end of the buffer and is not
// reproduced here.
func (m *MemoryFD) Read(offset int64, p []byte) (int, errno.Errno) {
	length := int64(len(m.data))
	if offset < 0 {
		m.err = errno.BadF
		return 0, errno.BadF
	}
	if offset >= length {
		m.err = errno.Success
		return 0, errno.Success
	}
	n := copy(p, m.data[offset:])
	m.err = errno.Success
	return n, errno.Success
}

var (
	_ captable.Capability = (*MemoryFD)(nil)
	_ captable.Reader     = (*MemoryFD)(nil)
	_ captable.Stater     = (*MemoryFD)(nil)
)
