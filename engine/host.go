package engine

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/robot-bridge/callback"
	"github.com/wippyai/robot-bridge/errors"
	"github.com/wippyai/robot-bridge/native"
)

// Native log levels passed to bridge.log.
const (
	LogDebug int32 = iota
	LogInfo
	LogWarn
	LogError
)

// initHost instantiates the "bridge" host module once per runtime. Calls are
// routed to the instance named by the calling module.
func (e *Engine) initHost(ctx context.Context) error {
	if e.hostDone.Load() {
		return nil
	}

	e.initMu.Lock()
	defer e.initMu.Unlock()

	if e.hostDone.Load() {
		return nil
	}

	i32 := api.ValueTypeI32
	_, err := e.runtime.NewHostModuleBuilder(native.HostModule).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.hostDispatch), []api.ValueType{i32, i32}, []api.ValueType{i32}).
		WithParameterNames("token", "arg").
		Export(native.HostDispatch).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.hostReject), []api.ValueType{i32, i32}, []api.ValueType{i32}).
		WithParameterNames("token", "code").
		Export(native.HostReject).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.hostLog), []api.ValueType{i32, i32, i32}, nil).
		WithParameterNames("level", "ptr", "len").
		Export(native.HostLog).
		Instantiate(ctx)
	if err != nil {
		return err
	}
	e.hostDone.Store(true)
	return nil
}

func (e *Engine) hostDispatch(ctx context.Context, mod api.Module, stack []uint64) {
	inv := callback.Invocation{
		Token: callback.Token(api.DecodeU32(stack[0])),
		Args:  []uint64{uint64(api.DecodeU32(stack[1]))},
	}
	stack[0] = e.route(ctx, mod, inv)
}

func (e *Engine) hostReject(ctx context.Context, mod api.Module, stack []uint64) {
	code := api.DecodeI32(stack[1])
	inv := callback.Invocation{
		Token: callback.Token(api.DecodeU32(stack[0])),
		Args:  []uint64{uint64(uint32(code))},
	}
	if inst := e.lookup(mod.Name()); inst != nil {
		inv.Err = errors.NativeFault(string(inst.op), code)
	} else {
		inv.Err = errors.NativeFault("", code)
	}
	stack[0] = e.route(ctx, mod, inv)
}

func (e *Engine) route(ctx context.Context, mod api.Module, inv callback.Invocation) uint64 {
	inst := e.lookup(mod.Name())
	if inst == nil {
		e.logger.Warn("invocation from untracked module",
			zap.String("module", mod.Name()),
			zap.Stringer("token", inv.Token))
		return api.EncodeI32(native.StatusFault)
	}
	if err := inst.dispatcher.Dispatch(ctx, inv); err != nil {
		inst.fault(err)
		return api.EncodeI32(native.StatusFault)
	}
	return api.EncodeI32(native.StatusOK)
}

func (e *Engine) hostLog(ctx context.Context, mod api.Module, stack []uint64) {
	level := api.DecodeI32(stack[0])
	ptr, length := api.DecodeU32(stack[1]), api.DecodeU32(stack[2])

	logger := e.logger
	if inst := e.lookup(mod.Name()); inst != nil {
		logger = inst.logger
	}

	mem := mod.Memory()
	if mem == nil {
		return
	}
	data, ok := mem.Read(ptr, length)
	if !ok {
		logger.Warn("native log line out of bounds", zap.Uint32("ptr", ptr), zap.Uint32("len", length))
		return
	}
	msg := string(data)

	switch level {
	case LogDebug:
		logger.Debug(msg, zap.String("source", "native"))
	case LogInfo:
		logger.Info(msg, zap.String("source", "native"))
	case LogWarn:
		logger.Warn(msg, zap.String("source", "native"))
	default:
		logger.Error(msg, zap.String("source", "native"), zap.Int32("level", level))
	}
}
