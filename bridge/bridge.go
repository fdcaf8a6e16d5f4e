package bridge

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/robot-bridge/callback"
	"github.com/wippyai/robot-bridge/errors"
	"github.com/wippyai/robot-bridge/native"
)

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithSession sets the session id attached to every log line. The default
// is a fresh time-ordered UUID.
func WithSession(id uuid.UUID) Option {
	return func(b *Bridge) {
		b.session = id
	}
}

// Bridge is the process-wide access point to one native daemon.
type Bridge struct {
	gw      native.Gateway
	reg     *callback.Registry
	logger  *zap.Logger
	daemon  *Daemon
	session uuid.UUID
	mu      sync.Mutex
	closed  atomic.Bool
}

// New creates a Bridge over gw. reg must be the dispatcher gw routes inbound
// invocations to.
func New(gw native.Gateway, reg *callback.Registry, opts ...Option) *Bridge {
	b := &Bridge{
		gw:     gw,
		reg:    reg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.session == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			id = uuid.New()
		}
		b.session = id
	}
	b.logger = b.logger.With(zap.String("session", b.session.String()))

	reg.Subscribe(callback.ObserverFunc(func(e callback.Event) {
		b.logger.Debug("callback "+e.Type.String(),
			zap.Stringer("token", e.Token),
			zap.Stringer("mode", e.Mode))
	}))
	return b
}

// Session returns the bridge session id.
func (b *Bridge) Session() uuid.UUID {
	return b.session
}

// Logger returns the session-scoped logger.
func (b *Bridge) Logger() *zap.Logger {
	return b.logger
}

// Daemon returns the daemon instance, creating it on first use. Concurrent
// callers observe the same instance. A failed creation is not cached. A
// creation that returned a handle is cached even if an inbound invocation
// failed during it.
func (b *Bridge) Daemon(ctx context.Context) (*Daemon, error) {
	if b.closed.Load() {
		return nil, errors.Closed("bridge")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		return nil, errors.Closed("bridge")
	}
	if b.daemon != nil {
		return b.daemon, nil
	}

	h, err := b.gw.Invoke(ctx, native.OpCreateDaemon)
	if err == nil && h == 0 {
		err = errors.NullHandle(string(native.OpCreateDaemon))
	}
	if err != nil {
		// The daemon exists once a handle came back; an inbound failure
		// during creation does not undo that.
		if h == 0 || !errors.IsPhase(err, errors.PhaseDispatch) {
			b.logger.Error("daemon creation failed", zap.Error(err))
			return nil, err
		}
		b.logger.Warn("inbound invocation failed",
			zap.String("op", string(native.OpCreateDaemon)),
			zap.Error(err))
	}

	b.daemon = &Daemon{
		bridge: b,
		handle: native.DaemonHandle(h),
		pump:   newPump(b.logger),
	}
	b.logger.Info("daemon created", zap.Uint32("handle", uint32(h)))
	return b.daemon, nil
}

// Close rejects every pending future, releases all callbacks and stops the
// write pump after it drained. Native state is left as is. Close must not be
// called from a write handler.
func (b *Bridge) Close(ctx context.Context) error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.mu.Lock()
	d := b.daemon
	b.mu.Unlock()

	err := b.reg.Close(ctx, errors.Closed("bridge"))
	if d != nil {
		d.pump.stop()
	}
	b.logger.Info("bridge closed")
	return err
}

func (b *Bridge) checkOpen() error {
	if b.closed.Load() {
		return errors.Closed("bridge")
	}
	return nil
}

// issue performs a call that carries the one-shot token tok. If the call
// fails before the native side took ownership of tok, the token is released
// and the failure is passed to reject. Faults raised by other inbound
// invocations during the call are logged only.
func (b *Bridge) issue(ctx context.Context, tok callback.Token, reject func(error), op native.Operation, args ...native.Arg) {
	_, err := b.gw.Invoke(ctx, op, args...)
	if err == nil {
		return
	}
	if errors.IsPhase(err, errors.PhaseDispatch) {
		b.logger.Warn("inbound invocation failed", zap.String("op", string(op)), zap.Error(err))
		return
	}
	if b.reg.Release(tok) {
		reject(err)
		return
	}
	// The native side completed tok before failing; its outcome stands.
	b.logger.Warn("native call failed after completion",
		zap.String("op", string(op)),
		zap.Stringer("token", tok),
		zap.Error(err))
}
