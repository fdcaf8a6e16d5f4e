package bridge

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/robot-bridge/callback"
	"github.com/wippyai/robot-bridge/errors"
	"github.com/wippyai/robot-bridge/marshal"
	"github.com/wippyai/robot-bridge/native"
)

// Daemon is the single native daemon instance of a Bridge.
type Daemon struct {
	bridge *Bridge
	pump   *pump
	mu     sync.Mutex
	handle native.DaemonHandle
	write  callback.Token // guarded by mu
}

// Handle returns the native daemon handle.
func (d *Daemon) Handle() native.DaemonHandle {
	return d.handle
}

// SetWriteCallback installs handler for the daemon's outbound byte stream.
// Each native write is delivered as one call with a private copy of the
// bytes, in emission order. A previous handler is replaced once the native
// side accepted the new one; frames already queued still go to it.
func (d *Daemon) SetWriteCallback(ctx context.Context, handler func([]byte)) error {
	if handler == nil {
		return errors.InvalidInput(errors.PhaseBridge, "nil write handler")
	}
	b := d.bridge
	if err := b.checkOpen(); err != nil {
		return err
	}

	tok, err := b.reg.RegisterPersistent(func(_ context.Context, inv callback.Invocation) error {
		if inv.Err != nil {
			if errors.HasKind(inv.Err, errors.KindClosed) {
				return nil
			}
			return errors.Wrap(errors.PhaseDispatch, errors.KindInvalidData, inv.Err, "write callback rejected")
		}
		if len(inv.Args) == 0 {
			return errors.InvalidData(errors.PhaseDispatch, "write invocation without descriptor")
		}
		data, err := marshal.ReadBuffer(b.gw.Memory(), uint32(inv.Args[0]))
		if err != nil {
			return err
		}
		if !d.pump.push(handler, data) {
			return errors.Closed("write stream")
		}
		return nil
	})
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = b.gw.Invoke(ctx, native.OpSetWriteCallback, native.Daemon(d.handle), native.Token(tok))
	if err != nil && !errors.IsPhase(err, errors.PhaseDispatch) {
		b.reg.Release(tok)
		return err
	}

	if d.write != 0 {
		b.reg.Release(d.write)
	}
	d.write = tok
	b.logger.Debug("write callback installed", zap.Stringer("token", tok))
	return err
}

// Deliver hands inbound bytes to the daemon. There is no completion signal;
// the returned error reports a failed call or a failed inbound invocation
// the daemon made while processing buf.
func (d *Daemon) Deliver(ctx context.Context, buf []byte) error {
	b := d.bridge
	if err := b.checkOpen(); err != nil {
		return err
	}
	_, err := b.gw.Invoke(ctx, native.OpDeliver, native.Daemon(d.handle), native.Bytes(buf))
	if err != nil {
		b.logger.Warn("deliver failed", zap.Int("bytes", len(buf)), zap.Error(err))
	}
	return err
}

// GetRobot obtains a robot handle for serialID and starts connecting it. The
// future resolves when the native side reports the connection complete.
func (d *Daemon) GetRobot(ctx context.Context, serialID string) *Future[*Robot] {
	f := newFuture[*Robot]()
	b := d.bridge
	if err := b.checkOpen(); err != nil {
		f.reject(err)
		return f
	}

	h, err := b.gw.Invoke(ctx, native.OpGetRobot, native.Daemon(d.handle), native.String(serialID))
	if h == 0 && (err == nil || errors.IsPhase(err, errors.PhaseDispatch)) {
		nullErr := errors.NullHandle(string(native.OpGetRobot))
		nullErr.Cause = err
		err = nullErr
	}
	if err != nil {
		if !errors.IsPhase(err, errors.PhaseDispatch) {
			f.reject(err)
			return f
		}
		b.logger.Warn("inbound invocation failed", zap.String("op", string(native.OpGetRobot)), zap.Error(err))
	}

	robot := &Robot{daemon: d, handle: native.RobotHandle(h), serial: serialID}
	tok, err := b.reg.RegisterOneShot(func(_ context.Context, inv callback.Invocation) error {
		if inv.Err != nil {
			f.reject(inv.Err)
			return nil
		}
		f.resolve(robot)
		return nil
	})
	if err != nil {
		f.reject(err)
		return f
	}

	b.logger.Debug("connecting robot",
		zap.String("serial", serialID),
		zap.Uint32("handle", uint32(robot.handle)),
		zap.Stringer("token", tok))

	b.issue(ctx, tok, func(err error) { f.reject(err) }, native.OpConnectRobot,
		native.Daemon(d.handle), native.Robot(robot.handle), native.String(serialID), native.Token(tok))
	return f
}
