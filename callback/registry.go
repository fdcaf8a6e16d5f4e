package callback

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/wippyai/robot-bridge/errors"
)

// Registry is a generation-checked slot map from Token to Func.
type Registry struct {
	slots     []slot
	free      []int // FIFO
	observers []Observer
	live      int
	mu        sync.Mutex
	obsMu     sync.RWMutex
	closed    bool
	limit     int
}

type slot struct {
	fn   Func
	gen  uint32
	mode Mode
	used bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		slots: make([]slot, 0, 64),
		limit: maxSlots,
	}
}

// RegisterOneShot stores fn for a single invocation.
func (r *Registry) RegisterOneShot(fn Func) (Token, error) {
	return r.register(fn, OneShot)
}

// RegisterPersistent stores fn until it is released.
func (r *Registry) RegisterPersistent(fn Func) (Token, error) {
	return r.register(fn, Persistent)
}

func (r *Registry) register(fn Func, mode Mode) (Token, error) {
	if fn == nil {
		return nullToken, errors.InvalidInput(errors.PhaseRegister, "nil callback")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nullToken, errors.Closed("callback registry")
	}

	var idx int
	switch {
	case len(r.free) > 0:
		idx = r.free[0]
		r.free = r.free[1:]
	case len(r.slots) < r.limit:
		r.slots = append(r.slots, slot{gen: firstGen})
		idx = len(r.slots) - 1
	default:
		r.mu.Unlock()
		return nullToken, errors.Exhausted(r.limit)
	}

	s := &r.slots[idx]
	s.fn = fn
	s.mode = mode
	s.used = true
	r.live++
	tok := makeToken(idx, s.gen)
	r.mu.Unlock()

	r.notify(Event{Type: EventRegistered, Token: tok, Mode: mode})
	return tok, nil
}

// lookup returns the slot for tok. Caller holds r.mu.
func (r *Registry) lookup(tok Token) (*slot, error) {
	idx, ok := tok.slot()
	if !ok || idx >= len(r.slots) {
		return nil, errors.UnknownToken(uint32(tok))
	}
	s := &r.slots[idx]
	if !s.used || s.gen != tok.generation() {
		if tok.generation() == 0 || tok.generation() > s.gen {
			return nil, errors.UnknownToken(uint32(tok))
		}
		return nil, errors.StaleToken(uint32(tok))
	}
	return s, nil
}

// releaseSlot clears s and recycles its index. Caller holds r.mu.
func (r *Registry) releaseSlot(idx int) {
	s := &r.slots[idx]
	s.fn = nil
	s.used = false
	r.live--
	if s.gen == maxGen {
		// retired: the next generation would wrap onto identifiers already issued
		return
	}
	s.gen++
	r.free = append(r.free, idx)
}

// Dispatch invokes the closure registered for inv.Token. One-shot
// registrations are released before the closure runs, so a concurrent or
// repeated dispatch of the same token fails with a stale_token error.
func (r *Registry) Dispatch(ctx context.Context, inv Invocation) error {
	r.mu.Lock()
	s, err := r.lookup(inv.Token)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	fn, mode := s.fn, s.mode
	if mode == OneShot {
		idx, _ := inv.Token.slot()
		r.releaseSlot(idx)
	}
	r.mu.Unlock()

	r.notify(Event{Type: EventDispatched, Token: inv.Token, Mode: mode})
	if mode == OneShot {
		r.notify(Event{Type: EventReleased, Token: inv.Token, Mode: mode})
	}

	return invoke(ctx, fn, inv)
}

func invoke(ctx context.Context, fn Func, inv Invocation) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.CallbackFault(uint32(inv.Token), fmt.Errorf("panic: %v", p))
		}
	}()
	if cbErr := fn(ctx, inv); cbErr != nil {
		return errors.CallbackFault(uint32(inv.Token), cbErr)
	}
	return nil
}

// Release unregisters tok without invoking it. It returns false if tok is
// not live, e.g. because a one-shot token was already dispatched.
func (r *Registry) Release(tok Token) bool {
	r.mu.Lock()
	s, err := r.lookup(tok)
	if err != nil {
		r.mu.Unlock()
		return false
	}
	mode := s.mode
	idx, _ := tok.slot()
	r.releaseSlot(idx)
	r.mu.Unlock()

	r.notify(Event{Type: EventReleased, Token: tok, Mode: mode})
	return true
}

// Live reports whether tok is currently registered.
func (r *Registry) Live(tok Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.lookup(tok)
	return err == nil
}

// Len returns the number of live registrations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

// Close releases every registration and refuses new ones. Outstanding
// one-shot closures are invoked once with Invocation.Err set to reason, so
// whatever waits on them is settled instead of leaked.
func (r *Registry) Close(ctx context.Context, reason error) error {
	type pending struct {
		fn  Func
		tok Token
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true

	var oneShots []pending
	var released []Event
	for idx := range r.slots {
		s := &r.slots[idx]
		if !s.used {
			continue
		}
		tok := makeToken(idx, s.gen)
		if s.mode == OneShot {
			oneShots = append(oneShots, pending{fn: s.fn, tok: tok})
		}
		released = append(released, Event{Type: EventReleased, Token: tok, Mode: s.mode})
		r.releaseSlot(idx)
	}
	r.free = nil
	r.mu.Unlock()

	for _, e := range released {
		r.notify(e)
	}

	var errs []error
	for _, p := range oneShots {
		if err := invoke(ctx, p.fn, Invocation{Token: p.tok, Err: reason}); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Wrap(errors.PhaseDispatch, errors.KindCallbackFault, stderrors.Join(errs...), "close callbacks")
	}
	return nil
}

// Subscribe adds an observer for lifecycle events.
func (r *Registry) Subscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.observers = append(r.observers, o)
}

func (r *Registry) notify(e Event) {
	r.obsMu.RLock()
	defer r.obsMu.RUnlock()
	for _, o := range r.observers {
		o.OnCallbackEvent(e)
	}
}
