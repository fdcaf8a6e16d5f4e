package bridge

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	robotbridge "github.com/wippyai/robot-bridge"
	"github.com/wippyai/robot-bridge/callback"
	"github.com/wippyai/robot-bridge/errors"
	"github.com/wippyai/robot-bridge/marshal"
	"github.com/wippyai/robot-bridge/native"
)

// strayToken is a token no registry issued.
const strayToken = callback.Token(0xdead01)

// fakeGateway is an in-process daemon. Deliver echoes its payload to the
// write callback; connect and led requests are parked until the test
// completes them, or completed during the call when autoAck is set.
//
// With strayCreate, daemon_new invokes strayToken before returning a
// handle. With strayRobot, daemon_get_robot invokes strayToken and returns
// the null handle without any further check.
type fakeGateway struct {
	mem         *marshal.SliceMemory
	reg         callback.Dispatcher
	failOnce    map[native.Operation]error
	calls       []native.Operation
	pending     []callback.Token
	faults      []error
	creates     atomic.Int32
	robots      uint32
	write       callback.Token
	mu          sync.Mutex
	pendMu      sync.Mutex
	autoAck     bool
	strayCreate bool
	strayRobot  bool
}

func newFakeGateway(reg callback.Dispatcher) *fakeGateway {
	return &fakeGateway{
		mem:      marshal.NewSliceMemory(1<<20, 1024),
		reg:      reg,
		failOnce: make(map[native.Operation]error),
	}
}

func (g *fakeGateway) Memory() robotbridge.Memory {
	return g.mem
}

func (g *fakeGateway) Invoke(ctx context.Context, op native.Operation, args ...native.Arg) (uint64, error) {
	if _, err := native.Check(op, args); err != nil {
		return 0, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, op)
	if err, ok := g.failOnce[op]; ok {
		delete(g.failOnce, op)
		return 0, err
	}
	g.faults = nil

	var result uint64
	switch op {
	case native.OpCreateDaemon:
		time.Sleep(time.Millisecond)
		if g.strayCreate {
			g.dispatch(ctx, callback.Invocation{Token: strayToken, Args: []uint64{0}})
		}
		result = uint64(g.creates.Add(1)) << 4
	case native.OpSetWriteCallback:
		g.write = callback.Token(args[1].Scalar)
	case native.OpDeliver:
		g.emit(ctx, args[1].Bytes)
	case native.OpGetRobot:
		if g.strayRobot {
			g.dispatch(ctx, callback.Invocation{Token: strayToken, Args: []uint64{0}})
			break
		}
		g.robots++
		result = uint64(4096 + g.robots<<4)
	case native.OpConnectRobot:
		g.park(ctx, callback.Token(args[3].Scalar))
	case native.OpSetLedColor:
		g.park(ctx, callback.Token(args[4].Scalar))
	}

	if len(g.faults) > 0 {
		return result, errors.New(errors.PhaseDispatch, errors.KindCallbackFault).
			Op(string(op)).
			Cause(stderrors.Join(g.faults...)).
			Build()
	}
	return result, nil
}

func (g *fakeGateway) emit(ctx context.Context, data []byte) {
	if g.write == 0 {
		return
	}
	allocs := marshal.NewAllocations()
	defer allocs.Free(g.mem)

	region, err := marshal.CopyIn(g.mem, g.mem, data)
	if err != nil {
		g.faults = append(g.faults, err)
		return
	}
	allocs.Add(region)

	desc, err := g.mem.Alloc(marshal.DescriptorSize)
	if err != nil {
		g.faults = append(g.faults, err)
		return
	}
	allocs.Add(marshal.Region{Ptr: desc, Len: marshal.DescriptorSize})

	if err := marshal.WriteDescriptor(g.mem, desc, marshal.Descriptor(region)); err != nil {
		g.faults = append(g.faults, err)
		return
	}
	g.dispatch(ctx, callback.Invocation{Token: g.write, Args: []uint64{uint64(desc)}})
}

// emitRaw dispatches the write callback with an arbitrary descriptor address.
func (g *fakeGateway) emitRaw(ctx context.Context, addr uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reg.Dispatch(ctx, callback.Invocation{Token: g.write, Args: []uint64{uint64(addr)}})
}

func (g *fakeGateway) park(ctx context.Context, tok callback.Token) {
	if g.autoAck {
		g.dispatch(ctx, callback.Invocation{Token: tok, Args: []uint64{0}})
		return
	}
	g.pendMu.Lock()
	g.pending = append(g.pending, tok)
	g.pendMu.Unlock()
}

func (g *fakeGateway) dispatch(ctx context.Context, inv callback.Invocation) {
	if err := g.reg.Dispatch(ctx, inv); err != nil {
		g.faults = append(g.faults, err)
	}
}

func (g *fakeGateway) takePending() []callback.Token {
	g.pendMu.Lock()
	defer g.pendMu.Unlock()
	out := g.pending
	g.pending = nil
	return out
}

// complete acknowledges tok the way a native worker would: outside any
// host call, possibly from another goroutine.
func (g *fakeGateway) complete(tok callback.Token) error {
	return g.reg.Dispatch(context.Background(), callback.Invocation{Token: tok, Args: []uint64{0}})
}

func (g *fakeGateway) reject(tok callback.Token, code int32) error {
	return g.reg.Dispatch(context.Background(), callback.Invocation{
		Token: tok,
		Args:  []uint64{uint64(uint32(code))},
		Err:   errors.NativeFault("", code),
	})
}

func (g *fakeGateway) callCount(op native.Operation) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == op {
			n++
		}
	}
	return n
}
