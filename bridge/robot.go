package bridge

import (
	"context"

	"github.com/wippyai/robot-bridge/callback"
	"github.com/wippyai/robot-bridge/native"
)

// Robot is a connected robot.
type Robot struct {
	daemon *Daemon
	serial string
	handle native.RobotHandle
}

// Handle returns the native robot handle.
func (r *Robot) Handle() native.RobotHandle {
	return r.handle
}

// SerialID returns the serial the robot was obtained with.
func (r *Robot) SerialID() string {
	return r.serial
}

// Daemon returns the daemon the robot belongs to.
func (r *Robot) Daemon() *Daemon {
	return r.daemon
}

// SetLedColor sets the LED colour. The future resolves when the native side
// acknowledges the change.
func (r *Robot) SetLedColor(ctx context.Context, red, green, blue uint8) *Future[struct{}] {
	f := newFuture[struct{}]()
	b := r.daemon.bridge
	if err := b.checkOpen(); err != nil {
		f.reject(err)
		return f
	}

	tok, err := b.reg.RegisterOneShot(func(_ context.Context, inv callback.Invocation) error {
		if inv.Err != nil {
			f.reject(inv.Err)
			return nil
		}
		f.resolve(struct{}{})
		return nil
	})
	if err != nil {
		f.reject(err)
		return f
	}

	b.issue(ctx, tok, func(err error) { f.reject(err) }, native.OpSetLedColor,
		native.Robot(r.handle), native.U8(red), native.U8(green), native.U8(blue), native.Token(tok))
	return f
}
