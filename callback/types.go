package callback

import (
	"context"
	"fmt"
)

// Token identifies a registered closure across the native boundary.
// Token 0 is reserved and always invalid.
type Token uint32

const (
	slotBits  = 16
	slotMask  = 1<<slotBits - 1
	maxSlots  = slotMask
	maxGen    = 1<<(32-slotBits) - 1
	firstGen  = 1
	nullToken = Token(0)
)

func makeToken(slot int, gen uint32) Token {
	return Token(gen<<slotBits | uint32(slot+1))
}

// slot returns the slot index and false for the null token.
func (t Token) slot() (int, bool) {
	idx := uint32(t) & slotMask
	if idx == 0 {
		return 0, false
	}
	return int(idx - 1), true
}

func (t Token) generation() uint32 {
	return uint32(t) >> slotBits
}

func (t Token) String() string {
	return fmt.Sprintf("0x%08x", uint32(t))
}

// Mode is the lifecycle of a registration.
type Mode uint8

const (
	OneShot Mode = iota
	Persistent
)

func (m Mode) String() string {
	switch m {
	case OneShot:
		return "one-shot"
	case Persistent:
		return "persistent"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Invocation is one inbound call of a token by the native side.
type Invocation struct {
	// Err is set when the native side reported failure or the registry is closing.
	Err   error
	Args  []uint64
	Token Token
}

// Func is a registered closure. A returned error is reported to the
// dispatcher; it never keeps a one-shot registration alive.
type Func func(ctx context.Context, inv Invocation) error

// EventType tags registry lifecycle notifications.
type EventType uint8

const (
	EventRegistered EventType = iota
	EventDispatched
	EventReleased
)

func (t EventType) String() string {
	switch t {
	case EventRegistered:
		return "registered"
	case EventDispatched:
		return "dispatched"
	case EventReleased:
		return "released"
	default:
		return fmt.Sprintf("event(%d)", uint8(t))
	}
}

// Event represents a registration lifecycle event.
type Event struct {
	Token Token
	Type  EventType
	Mode  Mode
}

// Observer receives notifications about registration lifecycle events.
// Observers are called outside the registry lock.
type Observer interface {
	OnCallbackEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnCallbackEvent(e Event) { f(e) }

// Dispatcher resolves inbound native invocations. Registry implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, inv Invocation) error
}
