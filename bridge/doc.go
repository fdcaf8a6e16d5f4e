// Package bridge is the host-facing façade over a native daemon.
//
// A Bridge is an explicit context object: it owns the callback registry
// wiring and lazily creates the single daemon instance on first use.
//
//	b := bridge.New(inst, callbacks, bridge.WithLogger(logger))
//	defer b.Close(ctx)
//
//	daemon, err := b.Daemon(ctx)
//	daemon.SetWriteCallback(ctx, func(frame []byte) { conn.Write(frame) })
//
//	robot, err := daemon.GetRobot(ctx, "ZRG6").Await(ctx)
//	_, err = robot.SetLedColor(ctx, 255, 0, 0).Await(ctx)
//
// # Futures
//
// Asynchronous operations return a Future that settles exactly once, when the
// native side completes or rejects the associated one-shot callback. A
// native call that fails while being issued rejects the future immediately.
// Closing the bridge rejects every pending future with a closed error.
//
// # Write stream
//
// Bytes emitted by the daemon are copied out of native memory during the
// inbound invocation and handed to the write handler on a dedicated
// goroutine, in emission order. Handlers may call back into the daemon.
package bridge
