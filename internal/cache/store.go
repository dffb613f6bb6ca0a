package cache

import (
	"context"
	"sync"

	"minimg/internal/decode"
	serr "minimg/internal/errors"
)

// State is the load state of one slot. A slot only ever moves
// Unread -> Reading -> Read or Err.
type State int

const (
	Unread State = iota
	Reading
	Read
	Err
)

func (s State) String() string {
	switch s {
	case Unread:
		return "unread"
	case Reading:
		return "reading"
	case Read:
		return "read"
	case Err:
		return "err"
	default:
		return "invalid"
	}
}

// Terminal reports whether the state is Read or Err
func (s State) Terminal() bool {
	return s == Read || s == Err
}

// Slot is a copy of one cache cell. Image is set when State is Read, Err when
// State is Err.
type Slot struct {
	State State
	Path  string
	Image *decode.Image
	Err   error
}

// Outcome is the result of decoding one path, handed to Store.Resolve
type Outcome struct {
	Image *decode.Image
	Err   error
}

// Store holds one slot per path, indexed like the path list. All slots are
// guarded by a single RWMutex; the lock is only held for bookkeeping, never
// while decoding. Callers must pass indices in [0, Len()).
type Store struct {
	mu    sync.RWMutex
	paths []string
	slots []Slot
	done  []chan struct{} // closed when the slot becomes terminal
}

// NewStore creates a store with every slot Unread
func NewStore(paths []string) *Store {
	s := &Store{
		paths: append([]string(nil), paths...),
		slots: make([]Slot, len(paths)),
		done:  make([]chan struct{}, len(paths)),
	}
	for i, p := range s.paths {
		s.slots[i].Path = p
		s.done[i] = make(chan struct{})
	}
	return s
}

// Len returns the number of slots
func (s *Store) Len() int {
	return len(s.slots)
}

// Path returns the path of slot idx
func (s *Store) Path(idx int) string {
	return s.paths[idx]
}

// Peek returns a copy of slot idx. It never waits for a decode.
func (s *Store) Peek(idx int) Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slots[idx]
}

// TryClaim moves slot idx from Unread to Reading. It returns false, without
// changing anything, when the slot is in any other state. Of any number of
// concurrent claims on the same slot exactly one succeeds.
func (s *Store) TryClaim(idx int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slots[idx].State != Unread {
		return false
	}
	s.slots[idx].State = Reading
	return true
}

// Resolve stores the outcome of the decode for a claimed slot and wakes its
// waiters. Resolving a slot that is not Reading breaks the claim protocol and
// panics with an *errors.InvariantError.
func (s *Store) Resolve(idx int, out Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := &s.slots[idx]
	if slot.State != Reading {
		panic(serr.NewInvariantError("resolve on a slot that was never claimed", idx, slot.State.String()))
	}
	if out.Err != nil {
		slot.State = Err
		slot.Err = out.Err
	} else {
		slot.State = Read
		slot.Image = out.Image
	}
	close(s.done[idx])
}

// Wait blocks until slot idx is terminal and returns a copy of it. An Unread
// slot is returned immediately, since nobody is decoding it.
func (s *Store) Wait(ctx context.Context, idx int) (Slot, error) {
	slot := s.Peek(idx)
	if slot.State != Reading {
		return slot, nil
	}
	select {
	case <-s.done[idx]:
		return s.Peek(idx), nil
	case <-ctx.Done():
		return slot, ctx.Err()
	}
}

// Counts summarizes the store
type Counts struct {
	Unread, Reading, Read, Err int
	// ResidentBytes estimates the memory held by decoded pixels
	ResidentBytes int64
}

// Counts returns the number of slots in each state
func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c Counts
	for i := range s.slots {
		switch s.slots[i].State {
		case Unread:
			c.Unread++
		case Reading:
			c.Reading++
		case Read:
			c.Read++
			if img := s.slots[i].Image; img != nil && img.Pixels != nil {
				c.ResidentBytes += img.Bytes()
			}
		case Err:
			c.Err++
		}
	}
	return c
}
