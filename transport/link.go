package transport

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/robot-bridge/errors"
)

// Endpoint is the daemon side of a link. *bridge.Daemon implements it.
type Endpoint interface {
	SetWriteCallback(ctx context.Context, handler func([]byte)) error
	Deliver(ctx context.Context, buf []byte) error
}

// Option configures a Link.
type Option func(*Link)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(k *Link) {
		if l != nil {
			k.logger = l
		}
	}
}

// WithMaxFrame lowers the frame size limit. Values outside (0, MaxFrame]
// are ignored.
func WithMaxFrame(n int) Option {
	return func(k *Link) {
		if n > 0 && n <= MaxFrame {
			k.maxFrame = n
		}
	}
}

// Link carries daemon writes to a connection and connection frames back to
// the daemon.
type Link struct {
	conn      net.Conn
	logger    *zap.Logger
	err       error
	done      chan struct{}
	maxFrame  int
	writeMu   sync.Mutex
	errMu     sync.Mutex
	closeOnce sync.Once
	bindOnce  sync.Once
}

// Dial connects to a daemon server at addr.
func Dial(ctx context.Context, addr string, opts ...Option) (*Link, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseTransport, errors.KindNotFound, err, "dial "+addr)
	}
	return NewLink(conn, opts...), nil
}

// NewLink wraps an established connection.
func NewLink(conn net.Conn, opts ...Option) *Link {
	l := &Link{
		conn:     conn,
		logger:   zap.NewNop(),
		maxFrame: MaxFrame,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(zap.String("remote", addrString(conn.RemoteAddr())))
	return l
}

// Bind installs the link as ep's write handler and starts delivering
// inbound frames to ep. A link can be bound once.
func (l *Link) Bind(ctx context.Context, ep Endpoint) error {
	var err error = errors.InvalidInput(errors.PhaseTransport, "link already bound")
	l.bindOnce.Do(func() {
		err = ep.SetWriteCallback(ctx, func(frame []byte) {
			if sendErr := l.Send(frame); sendErr != nil {
				l.logger.Warn("write frame failed", zap.Int("bytes", len(frame)), zap.Error(sendErr))
				l.finish(sendErr)
			}
		})
		if err != nil {
			close(l.done)
			return
		}
		go l.readLoop(ctx, ep)
	})
	return err
}

// Send writes one frame to the connection.
func (l *Link) Send(frame []byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return WriteFrame(l.conn, frame, l.maxFrame)
}

func (l *Link) readLoop(ctx context.Context, ep Endpoint) {
	defer close(l.done)
	for {
		frame, err := ReadFrame(l.conn, l.maxFrame)
		if err != nil {
			if stderrors.Is(err, io.EOF) || stderrors.Is(err, net.ErrClosed) || stderrors.Is(err, io.ErrClosedPipe) {
				l.logger.Debug("link closed")
				return
			}
			l.logger.Warn("read frame failed", zap.Error(err))
			l.finish(err)
			return
		}

		if err := ep.Deliver(ctx, frame); err != nil {
			if errors.HasKind(err, errors.KindClosed) {
				l.finish(err)
				return
			}
			l.logger.Warn("deliver failed", zap.Int("bytes", len(frame)), zap.Error(err))
		}
	}
}

// finish records the first terminal error and closes the connection.
func (l *Link) finish(err error) {
	l.errMu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.errMu.Unlock()
	_ = l.close()
}

// Wait blocks until the read loop stops and returns the error that stopped
// it, or nil on a clean end of stream or Close.
func (l *Link) Wait() error {
	<-l.done
	l.errMu.Lock()
	defer l.errMu.Unlock()
	return l.err
}

// Close closes the connection and waits for the read loop if it runs.
func (l *Link) Close() error {
	err := l.close()
	l.bindOnce.Do(func() { close(l.done) })
	<-l.done
	return err
}

func (l *Link) close() error {
	var err error
	l.closeOnce.Do(func() {
		err = l.conn.Close()
	})
	return err
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
