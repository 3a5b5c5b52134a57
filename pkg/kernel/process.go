// Package kernel wires the core's pieces into something a syscall
// layer can actually drive: a Process owns a CapTable and a
// termination signaler, and a Kernel factory builds ControlSocket
// instances (and, transitively, everything COPY/PSEUDOPAIR can spawn)
// bound to a shared interface store and socket configuration.
package kernel

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/NuxiNL/corekernel/pkg/captable"
	"github.com/NuxiNL/corekernel/pkg/signaler"
)

// Process is the per-process context behind `current_thread()` ->
// `current_process()` -> `cap_table()`: callers thread a *Process
// through the syscall boundary explicitly rather than reading a
// global.
type Process struct {
	mu sync.Mutex

	Table *captable.CapTable

	// TerminationSignaler is broadcast exactly once, by Exit, matching
	// the original source's get_termination_signaler/is_terminated:
	// a process-wide wake for every suspension point a thread of this
	// process may be blocked in.
	TerminationSignaler *signaler.Signaler

	terminated bool
	log        *logrus.Entry
}

// NewProcess returns a fresh Process with an empty CapTable.
func NewProcess(log *logrus.Entry) *Process {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Process{
		Table:               captable.New(),
		TerminationSignaler: signaler.New(),
		log:                 log,
	}
}

// Terminated reports whether Exit has already run.
func (p *Process) Terminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

// Exit drains the process's CapTable and wakes every waiter on
// TerminationSignaler exactly once. Calling Exit more than once is a
// no-op after the first call.
func (p *Process) Exit() {
	p.mu.Lock()
	if p.terminated {
		p.mu.Unlock()
		return
	}
	p.terminated = true
	p.mu.Unlock()

	p.Table.Drain()
	p.TerminationSignaler.Broadcast(func() signaler.ConditionData { return true })
	p.log.Debug("process terminated")
}
