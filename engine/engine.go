package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/robot-bridge/errors"
)

// Config holds configuration for engine creation
type Config struct {
	// Stdout and Stderr receive the daemon's WASI output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	// Logger receives engine and daemon log lines. Nil uses Logger().
	Logger *zap.Logger

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means the wazero default.
	MemoryLimitPages uint32

	// EnableWASI instantiates wasi_snapshot_preview1 for daemons built
	// against wasm32-wasi.
	EnableWASI bool
}

// Engine owns a wazero runtime and every daemon instance created from it.
type Engine struct {
	runtime   wazero.Runtime
	logger    *zap.Logger
	instances map[string]*Instance
	cfg       Config
	seq       atomic.Uint64
	instMu    sync.RWMutex
	initMu    sync.Mutex
	wasiDone  atomic.Bool
	hostDone  atomic.Bool
	closed    atomic.Bool
}

// New creates an engine. cfg may be nil.
func New(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()

	e := &Engine{instances: make(map[string]*Instance)}
	if cfg != nil {
		e.cfg = *cfg
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
	}
	e.logger = e.cfg.Logger
	if e.logger == nil {
		e.logger = Logger()
	}

	e.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	if err := e.initHost(ctx); err != nil {
		_ = e.runtime.Close(ctx)
		return nil, errors.Instantiation(fmt.Errorf("host module: %w", err))
	}
	if e.cfg.EnableWASI {
		if err := e.initWASI(ctx); err != nil {
			_ = e.runtime.Close(ctx)
			return nil, errors.Instantiation(fmt.Errorf("wasi: %w", err))
		}
	}
	return e, nil
}

// Compile compiles wasmBytes without checking its exports.
func (e *Engine) Compile(ctx context.Context, wasmBytes []byte) (*Module, error) {
	if e.closed.Load() {
		return nil, errors.Closed("engine")
	}
	if len(wasmBytes) == 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "empty module binary")
	}
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile failed", err)
	}
	return &Module{engine: e, compiled: compiled}, nil
}

// Load compiles wasmBytes and verifies it exports the daemon ABI.
func (e *Engine) Load(ctx context.Context, wasmBytes []byte) (*Module, error) {
	m, err := e.Compile(ctx, wasmBytes)
	if err != nil {
		return nil, err
	}
	if err := m.Verify(); err != nil {
		_ = m.compiled.Close(ctx)
		return nil, err
	}
	e.logger.Debug("daemon module loaded",
		zap.Int("size", len(wasmBytes)),
		zap.Int("exports", len(m.compiled.ExportedFunctions())))
	return m, nil
}

// Close closes every instance and the runtime.
func (e *Engine) Close(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	e.instMu.Lock()
	instances := make([]*Instance, 0, len(e.instances))
	for _, inst := range e.instances {
		instances = append(instances, inst)
	}
	e.instMu.Unlock()

	for _, inst := range instances {
		_ = inst.Close(ctx)
	}
	return e.runtime.Close(ctx)
}

func (e *Engine) nextName() string {
	return fmt.Sprintf("daemon-%d", e.seq.Add(1))
}

func (e *Engine) track(inst *Instance) {
	e.instMu.Lock()
	e.instances[inst.name] = inst
	e.instMu.Unlock()
}

func (e *Engine) untrack(name string) {
	e.instMu.Lock()
	delete(e.instances, name)
	e.instMu.Unlock()
}

func (e *Engine) lookup(name string) *Instance {
	e.instMu.RLock()
	defer e.instMu.RUnlock()
	return e.instances[name]
}
