// Copyright 2018-2024 the Deno authors. All rights reserved. MIT license.

package eszip

import (
	"context"
	"sync"
)

// SourceSlotState is the lifecycle stage of a SourceSlot (§3: Pending ->
// Ready -> Taken).
type SourceSlotState int

const (
	SourceSlotPending SourceSlotState = iota
	SourceSlotReady
	SourceSlotTaken
)

// SourceSlot holds a module's source (or source-map) bytes. A slot born
// Pending records the offset/length its bytes will occupy in the
// sources region; readers blocked in Get/Take wake as soon as SetReady
// runs. There is no assumption of any particular task executor here --
// waiters are plain channels closed on transition, not a Rust-style
// Waker list, per spec.md §9's "async waiting without a runtime" note.
type SourceSlot struct {
	mu     sync.Mutex
	state  SourceSlotState
	offset uint32
	length uint32
	data   []byte
	ready  chan struct{}
}

// NewPendingSourceSlot creates a slot awaiting bytes that will arrive
// later at the given offset/length within the sources region.
func NewPendingSourceSlot(offset, length uint32) *SourceSlot {
	return &SourceSlot{
		state:  SourceSlotPending,
		offset: offset,
		length: length,
		ready:  make(chan struct{}),
	}
}

// NewReadySourceSlot creates a slot that is immediately Ready, for
// builder-produced modules that never need to wait on a parse stream.
func NewReadySourceSlot(data []byte) *SourceSlot {
	s := &SourceSlot{
		state: SourceSlotReady,
		data:  data,
		ready: make(chan struct{}),
	}
	close(s.ready)
	return s
}

// NewEmptySourceSlot creates a Ready slot with no bytes, for modules
// that have no source map (or no source, for opaque/redirect kinds).
func NewEmptySourceSlot() *SourceSlot {
	return NewReadySourceSlot(nil)
}

// State returns the slot's current lifecycle stage.
func (s *SourceSlot) State() SourceSlotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Offset returns the slot's declared offset within the sources region.
// Only meaningful while the slot is Pending.
func (s *SourceSlot) Offset() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// Length returns the slot's declared length within the sources region.
// Only meaningful while the slot is Pending.
func (s *SourceSlot) Length() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.length
}

// Get returns the slot's bytes, blocking until the slot becomes Ready
// if it is currently Pending. A Taken slot returns (nil, nil) -- the
// bytes are gone, not an error. Cancelling ctx while blocked returns
// ctx.Err() wrapped so errors.Is(err, context.Canceled) succeeds.
func (s *SourceSlot) Get(ctx context.Context) ([]byte, error) {
	for {
		s.mu.Lock()
		switch s.state {
		case SourceSlotReady:
			data := s.data
			s.mu.Unlock()
			return data, nil
		case SourceSlotTaken:
			s.mu.Unlock()
			return nil, nil
		}
		ready := s.ready
		s.mu.Unlock()

		select {
		case <-ready:
			continue
		case <-ctx.Done():
			return nil, errIO(ctx.Err())
		}
	}
}

// Take returns the slot's bytes (blocking on Pending exactly like Get)
// and transitions the slot to Taken, releasing the backing bytes. A
// slot already Taken returns (nil, nil) on every subsequent call.
func (s *SourceSlot) Take(ctx context.Context) ([]byte, error) {
	for {
		s.mu.Lock()
		switch s.state {
		case SourceSlotReady:
			data := s.data
			s.data = nil
			s.state = SourceSlotTaken
			s.mu.Unlock()
			return data, nil
		case SourceSlotTaken:
			s.mu.Unlock()
			return nil, nil
		}
		ready := s.ready
		s.mu.Unlock()

		select {
		case <-ready:
			continue
		case <-ctx.Done():
			return nil, errIO(ctx.Err())
		}
	}
}

// SetReady supplies bytes to a Pending slot and wakes every blocked
// Get/Take caller. Calling it on a slot that is already Ready or Taken
// is a no-op.
func (s *SourceSlot) SetReady(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SourceSlotPending {
		return
	}
	s.data = data
	s.state = SourceSlotReady
	close(s.ready)
}
