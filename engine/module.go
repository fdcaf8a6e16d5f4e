package engine

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/robot-bridge/callback"
	"github.com/wippyai/robot-bridge/errors"
	"github.com/wippyai/robot-bridge/native"
)

// Module is a compiled daemon binary.
type Module struct {
	engine   *Engine
	compiled wazero.CompiledModule
}

// Exports returns the exported function names, sorted.
func (m *Module) Exports() []string {
	defs := m.compiled.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Verify checks that the module exports memory, the allocator pair and
// every native operation with its expected core signature.
func (m *Module) Verify() error {
	missing := make(map[string]string)
	funcs := m.compiled.ExportedFunctions()

	if _, ok := m.compiled.ExportedMemories()[native.ExportMemory]; !ok {
		missing[native.ExportMemory] = "no exported memory"
	}

	checkFunc(funcs, native.ExportMalloc, 1, 1, missing)
	checkFunc(funcs, native.ExportFree, 2, 0, missing)
	for op, sig := range native.Signatures {
		checkFunc(funcs, string(op), sig.CoreParams(), sig.CoreResults(), missing)
	}

	if len(missing) > 0 {
		return errors.NewMissingExportsError(missing)
	}
	return nil
}

func checkFunc(funcs map[string]api.FunctionDefinition, name string, params, results int, missing map[string]string) {
	def, ok := funcs[name]
	if !ok {
		missing[name] = "not exported"
		return
	}
	if !allI32(def.ParamTypes(), params) || !allI32(def.ResultTypes(), results) {
		missing[name] = fmt.Sprintf("expected %d i32 params and %d i32 results, got %s",
			params, results, formatSignature(def))
	}
}

func allI32(types []api.ValueType, n int) bool {
	if len(types) != n {
		return false
	}
	for _, t := range types {
		if t != api.ValueTypeI32 {
			return false
		}
	}
	return true
}

func formatSignature(def api.FunctionDefinition) string {
	s := "("
	for i, t := range def.ParamTypes() {
		if i > 0 {
			s += ", "
		}
		s += api.ValueTypeName(t)
	}
	s += ") -> ("
	for i, t := range def.ResultTypes() {
		if i > 0 {
			s += ", "
		}
		s += api.ValueTypeName(t)
	}
	return s + ")"
}

// Instantiate starts a daemon instance whose inbound invocations are routed
// to d.
func (m *Module) Instantiate(ctx context.Context, d callback.Dispatcher) (*Instance, error) {
	if d == nil {
		return nil, errors.InvalidInput(errors.PhaseLoad, "nil dispatcher")
	}
	e := m.engine
	if e.closed.Load() {
		return nil, errors.Closed("engine")
	}

	inst := &Instance{
		engine:     e,
		name:       e.nextName(),
		dispatcher: d,
		funcs:      make(map[native.Operation]api.Function, len(native.Signatures)),
	}
	inst.logger = e.logger.With(zap.String("instance", inst.name))

	// Tracked before instantiation so start functions can already call back.
	e.track(inst)

	modCfg := wazero.NewModuleConfig().
		WithName(inst.name).
		WithStartFunctions("_initialize").
		WithStdout(writerOrDiscard(e.cfg.Stdout)).
		WithStderr(writerOrDiscard(e.cfg.Stderr))

	mod, err := e.runtime.InstantiateModule(ctx, m.compiled, modCfg)
	if err != nil {
		e.untrack(inst.name)
		return nil, errors.Instantiation(err)
	}

	mem := mod.Memory()
	if mem == nil {
		_ = mod.Close(ctx)
		e.untrack(inst.name)
		return nil, errors.NotFound(errors.PhaseLoad, "export", native.ExportMemory)
	}

	malloc := mod.ExportedFunction(native.ExportMalloc)
	free := mod.ExportedFunction(native.ExportFree)
	if malloc == nil || free == nil {
		missing := native.ExportMalloc
		if malloc != nil {
			missing = native.ExportFree
		}
		_ = mod.Close(ctx)
		e.untrack(inst.name)
		return nil, errors.NotFound(errors.PhaseLoad, "export", missing)
	}

	inst.module = mod
	inst.memory = &memoryView{mem: mem}
	inst.alloc = &allocator{malloc: malloc, free: free}
	for op := range native.Signatures {
		inst.funcs[op] = mod.ExportedFunction(string(op))
	}

	inst.logger.Debug("daemon instance started", zap.Uint32("memory", mem.Size()))
	return inst, nil
}

// Close releases the compiled module.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
