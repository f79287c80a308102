// Package lock provides the binary session gate that guards a settlement
// ledger.
//
// A SessionLock has two states, Closed (the zero value) and Open. It is not
// a counter: nested work inside an open session never touches the lock, and
// a second top-level open fails immediately instead of queueing.
package lock

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrAlreadyUnlocked is returned by Unlock when a session is already open.
	ErrAlreadyUnlocked = errors.New("settlement: already unlocked")

	// ErrNotUnlocked is returned by Lock when no session is open.
	ErrNotUnlocked = errors.New("settlement: not unlocked")
)

// SessionLock is a fail-fast exclusive gate. The zero value is Closed and
// ready to use. It must not be copied after first use.
type SessionLock struct {
	open atomic.Bool
}

// Unlock transitions Closed to Open.
func (l *SessionLock) Unlock() error {
	if !l.open.CompareAndSwap(false, true) {
		return ErrAlreadyUnlocked
	}
	return nil
}

// Lock transitions Open to Closed.
func (l *SessionLock) Lock() error {
	if !l.open.CompareAndSwap(true, false) {
		return ErrNotUnlocked
	}
	return nil
}

// IsOpen reports whether a session currently holds the lock.
func (l *SessionLock) IsOpen() bool {
	return l.open.Load()
}
