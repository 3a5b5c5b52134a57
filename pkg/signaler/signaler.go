// Package signaler implements the condition-variable-like primitive
// that capabilities use to suspend and wake waiters on readability,
// writability and termination events.
//
// A Signaler is not self-synchronizing: every method must be called
// while the caller holds the lock that also guards the state the
// Signaler's predicates observe (normally the owning capability's own
// mutex). That shared lock is what makes Attach's immediate-satisfaction
// check and Broadcast's wakeups agree on predicate semantics with no
// lost wakeup in between, matching the discipline described for
// PairSocket's recv_signaler/send_signaler.
package signaler

import "sync"

// ConditionData is an opaque, per-event snapshot handed to a waiter when
// it is woken (bytes readable, hangup, and so on). nil is a valid
// snapshot when the caller has none to offer.
type ConditionData any

// PredicateFunc reports whether the condition a waiter is attaching for
// is already true, and if so, the snapshot to deliver immediately.
type PredicateFunc func() (satisfied bool, data ConditionData)

// Token identifies a waiter previously registered with Attach, for use
// with Detach. The zero Token is never issued for a real waiter: Attach
// returns it only when the predicate was already satisfied, in which
// case there is nothing left to detach.
type Token uint64

type waiter struct {
	ch chan ConditionData
}

// Signaler is a multi-waiter event source. The zero value is not
// usable; construct one with New.
type Signaler struct {
	waiters map[Token]*waiter
	nextID  Token
}

// New returns a ready Signaler.
func New() *Signaler {
	return &Signaler{waiters: make(map[Token]*waiter)}
}

// Attach registers a waiter and evaluates hook under the assumption
// that the caller already holds the object's lock. If hook reports the
// condition already satisfied, the returned channel has the snapshot
// buffered and the zero Token is returned: the caller can read the
// channel without blocking and never needs to Detach. Otherwise the
// waiter is queued and the caller should release its lock and block
// receiving on ch, then re-acquire the lock and re-check its predicate
// (broadcasts carry no guarantee beyond "recheck your condition").
func (s *Signaler) Attach(hook PredicateFunc) (token Token, ch <-chan ConditionData) {
	if ok, data := hook(); ok {
		c := make(chan ConditionData, 1)
		c <- data
		return 0, c
	}
	s.nextID++
	id := s.nextID
	w := &waiter{ch: make(chan ConditionData, 1)}
	s.waiters[id] = w
	return id, w.ch
}

// Detach removes a waiter registered by Attach, for abandonment paths
// (e.g. a thread woken by a different signaler, such as process
// termination, that must stop waiting on this one too). Detaching an
// unknown or already-fired token is a no-op.
func (s *Signaler) Detach(token Token) {
	if token == 0 {
		return
	}
	delete(s.waiters, token)
}

// Broadcast wakes every currently attached waiter, handing each the
// snapshot produced by provider (called at most once, even with zero
// waiters). provider may be nil when there is no snapshot to compute.
// Broadcast is idempotent with respect to spurious wakeups: it is
// always legal to call, including on a signaler with no waiters, or
// repeatedly for the same state transition: waiters are expected to
// recheck their own predicate after waking.
func (s *Signaler) Broadcast(provider func() ConditionData) {
	if len(s.waiters) == 0 {
		return
	}
	var data ConditionData
	if provider != nil {
		data = provider()
	}
	for id, w := range s.waiters {
		select {
		case w.ch <- data:
		default:
		}
		delete(s.waiters, id)
	}
}

// Wait is a convenience for the common "release object lock, block,
// reacquire object lock" suspension point. l must be the same lock the
// caller held while calling Attach.
func Wait(l sync.Locker, ch <-chan ConditionData) ConditionData {
	l.Unlock()
	data := <-ch
	l.Lock()
	return data
}
