// Package engine hosts the native daemon core module on wazero.
//
// It is the only package that touches the WebAssembly runtime. Everything
// above it talks to the daemon through native.Gateway.
//
// # Architecture
//
//	Engine   - owns the wazero runtime and the shared "bridge" host module
//	Module   - a compiled daemon binary whose exports were verified
//	Instance - a running daemon; implements native.Gateway
//
// # Instantiation Flow
//
//  1. Engine.Load compiles the binary and checks the required exports
//  2. Module.Instantiate creates an Instance bound to a callback.Dispatcher
//  3. Instance.Invoke marshals arguments, calls the export and collects
//     faults raised by inbound invocations during the call
//
// # Native ABI
//
// Every parameter and result is an i32. Strings and byte buffers occupy two
// parameters (ptr, len) and are copied into memory obtained from the
// module's malloc export; they are freed with free, newest first, when the
// call returns. The module calls back into the host through three imports:
//
//	bridge.dispatch(token, arg i32) i32   complete or notify a callback
//	bridge.reject(token, code i32) i32    fail a one-shot callback
//	bridge.log(level, ptr, len i32)       forward a log line
//
// dispatch and reject return 0 when the invocation was accepted and 1 when
// the token was unknown, stale or its closure failed.
//
// # Concurrency
//
// Calls into one Instance are serialized. Inbound invocations run on the
// calling goroutine while the instance lock is held, so callback closures
// must not call Invoke on the same instance. Memory may be used from within
// closures.
package engine
