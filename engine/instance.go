package engine

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	robotbridge "github.com/wippyai/robot-bridge"
	"github.com/wippyai/robot-bridge/callback"
	"github.com/wippyai/robot-bridge/errors"
	"github.com/wippyai/robot-bridge/marshal"
	"github.com/wippyai/robot-bridge/native"
)

// Instance is a running daemon. It implements native.Gateway and is safe for
// concurrent use; calls are serialized.
type Instance struct {
	engine     *Engine
	module     api.Module
	memory     *memoryView
	alloc      *allocator
	dispatcher callback.Dispatcher
	logger     *zap.Logger
	funcs      map[native.Operation]api.Function
	name       string
	op         native.Operation // guarded by mu
	faults     []error          // guarded by mu
	mu         sync.Mutex
	closed     bool
}

var _ native.Gateway = (*Instance)(nil)

// Name returns the runtime module name of the instance.
func (i *Instance) Name() string {
	return i.name
}

// Memory returns the daemon's linear memory. It does not take the instance
// lock and may be used from callback closures.
func (i *Instance) Memory() robotbridge.Memory {
	return i.memory
}

// Invoke calls op with args. Inbound invocations made by the daemon during
// the call are dispatched before Invoke returns; if any of them failed the
// returned error has phase dispatch and joins their causes, and the raw
// result is still returned. A null handle result is always a call-phase
// native fault, with any inbound failures as its cause.
func (i *Instance) Invoke(ctx context.Context, op native.Operation, args ...native.Arg) (uint64, error) {
	sig, err := native.Check(op, args)
	if err != nil {
		return 0, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return 0, errors.Closed("daemon instance")
	}
	fn := i.funcs[op]
	if fn == nil {
		return 0, errors.NotFound(errors.PhaseCall, "export", string(op))
	}

	i.alloc.ctx = ctx
	i.op = op
	i.faults = nil
	defer func() {
		i.alloc.ctx = nil
		i.op = ""
		i.faults = nil
	}()

	allocs := marshal.NewAllocations()
	defer allocs.Free(i.alloc)

	params := make([]uint64, 0, sig.CoreParams())
	for _, a := range args {
		switch a.Kind {
		case native.KindString, native.KindBytes:
			r, err := marshal.CopyIn(i.alloc, i.memory, a.Bytes)
			if err != nil {
				return 0, err
			}
			allocs.Add(r)
			params = append(params, api.EncodeU32(r.Ptr), api.EncodeU32(r.Len))
		default:
			params = append(params, api.EncodeU32(a.Scalar))
		}
	}

	results, err := fn.Call(ctx, params...)
	if err != nil {
		return 0, errors.NativeCall(string(op), err)
	}

	var result uint64
	if sig.Result != native.KindNone && len(results) > 0 {
		result = uint64(api.DecodeU32(results[0]))
	}

	switch sig.Result {
	case native.KindDaemon, native.KindRobot:
		if result == 0 {
			nullErr := errors.NullHandle(string(op))
			if len(i.faults) > 0 {
				nullErr.Cause = stderrors.Join(i.faults...)
			}
			return 0, nullErr
		}
	}

	if len(i.faults) > 0 {
		return result, errors.New(errors.PhaseDispatch, errors.KindCallbackFault).
			Op(string(op)).
			Cause(stderrors.Join(i.faults...)).
			Detail("%d inbound invocation(s) failed", len(i.faults)).
			Build()
	}
	return result, nil
}

// fault records a failed inbound invocation. It is called from host
// functions on the goroutine that holds mu.
func (i *Instance) fault(err error) {
	i.logger.Debug("inbound invocation failed", zap.String("op", string(i.op)), zap.Error(err))
	i.faults = append(i.faults, err)
}

// Close stops the instance. Further calls fail with a closed error.
func (i *Instance) Close(ctx context.Context) error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	i.mu.Unlock()

	i.engine.untrack(i.name)
	if i.module == nil {
		return nil
	}
	return i.module.Close(ctx)
}
