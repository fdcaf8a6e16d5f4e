// Package callback maps callback tokens handed to the native daemon back to
// host closures.
//
// The native side has no notion of closures: it stores an integer token and
// later asks the host to invoke it. The Registry issues those tokens and
// enforces their lifecycle.
//
// # Modes
//
//	OneShot     - invoked at most once, released as part of the dispatch
//	Persistent  - invoked any number of times until Release or Close
//
// # Tokens
//
// A Token packs a slot index (low 16 bits, stored as index+1) and a slot
// generation (high 16 bits). Releasing a registration bumps the generation of
// its slot, so a released token never matches a later registration:
//
//	tok, _ := reg.RegisterOneShot(fn)
//	reg.Dispatch(ctx, callback.Invocation{Token: tok}) // runs fn
//	reg.Dispatch(ctx, callback.Invocation{Token: tok}) // stale_token error
//
// Released slots are reused in FIFO order and a slot whose generation would
// wrap is retired, so no identifier is ever handed out twice.
//
// # Thread Safety
//
// Registration, dispatch and release are atomic with respect to each other.
// Closures run outside the registry lock and may register new tokens.
package callback
