// Package robotbridge is an asynchronous bridge between a Go host and a native
// robot daemon compiled to WebAssembly.
//
// The native daemon exposes a synchronous, callback-driven call interface:
// calls return immediately and completions arrive later as inbound
// invocations of host-issued callback tokens. This module turns that contract
// into host-owned handles, futures and ordered byte streams.
//
// # Architecture Overview
//
//	robotbridge/     Root package with the native Memory and Allocator interfaces
//	├── native/      Operation names, typed handles and arguments, Gateway interface
//	├── engine/      wazero-hosted Gateway: marshaled calls and inbound invocations
//	├── callback/    Token registry with one-shot and persistent callbacks
//	├── marshal/     Bounds-checked byte copies across the native boundary
//	├── bridge/      Bridge context, Daemon, Robot and Future types
//	├── transport/   Framed link between a Daemon and the daemon server
//	├── config/      YAML configuration and logger construction
//	├── errors/      Structured error types
//	└── cmd/linkbot  Command line and interactive console
//
// # Quick Start
//
//	eng, err := engine.New(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	mod, err := eng.Load(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	callbacks := callback.NewRegistry()
//	inst, err := mod.Instantiate(ctx, callbacks)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	b := bridge.New(inst, callbacks)
//	defer b.Close(ctx)
//
//	daemon, err := b.Daemon(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	robot, err := daemon.GetRobot(ctx, "ZRG6").Await(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_, err = robot.SetLedColor(ctx, 255, 0, 0).Await(ctx)
//
// # Thread Safety
//
// Bridge, Daemon and Robot are safe for concurrent use. The engine serializes
// native calls; inbound invocations run on the goroutine that issued the call
// during which the native side invoked them.
package robotbridge
