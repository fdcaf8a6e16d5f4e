package engine

import (
	"context"

	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

const wasiModuleName = "wasi_snapshot_preview1"

// initWASI instantiates WASI preview1 once per engine runtime, for daemon
// builds that target wasm32-wasi.
func (e *Engine) initWASI(ctx context.Context) error {
	if e.wasiDone.Load() {
		return nil
	}

	e.initMu.Lock()
	defer e.initMu.Unlock()

	if e.wasiDone.Load() {
		return nil
	}
	if e.runtime.Module(wasiModuleName) == nil {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, e.runtime); err != nil {
			return err
		}
	}
	e.wasiDone.Store(true)
	return nil
}
