package main

import (
	"context"
	stderrors "errors"
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/robot-bridge/bridge"
	"github.com/wippyai/robot-bridge/callback"
	"github.com/wippyai/robot-bridge/config"
	"github.com/wippyai/robot-bridge/engine"
	"github.com/wippyai/robot-bridge/errors"
	"github.com/wippyai/robot-bridge/transport"
)

// session is one hosted daemon linked to the daemon server.
type session struct {
	engine *engine.Engine
	bridge *bridge.Bridge
	daemon *bridge.Daemon
	link   *transport.Link
	logger *zap.Logger
}

// traffic observes the byte stream between daemon and server.
type traffic struct {
	onWrite   func([]byte)
	onDeliver func([]byte)
}

// tap wraps an endpoint to report traffic in both directions.
type tap struct {
	transport.Endpoint
	traffic *traffic
}

func (t tap) SetWriteCallback(ctx context.Context, handler func([]byte)) error {
	return t.Endpoint.SetWriteCallback(ctx, func(frame []byte) {
		if t.traffic.onWrite != nil {
			t.traffic.onWrite(frame)
		}
		handler(frame)
	})
}

func (t tap) Deliver(ctx context.Context, buf []byte) error {
	if t.traffic.onDeliver != nil {
		t.traffic.onDeliver(buf)
	}
	return t.Endpoint.Deliver(ctx, buf)
}

// openSession loads the daemon module and links it to the configured
// server. tr may be nil.
func openSession(ctx context.Context, cfg *config.Config, logger *zap.Logger, tr *traffic) (*session, error) {
	wasm, err := os.ReadFile(cfg.Module)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindNotFound, err, "read module "+cfg.Module)
	}

	eng, err := engine.New(ctx, &engine.Config{
		MemoryLimitPages: cfg.Engine.MemoryLimitPages,
		EnableWASI:       cfg.Engine.EnableWASI,
		Stdout:           os.Stderr,
		Stderr:           os.Stderr,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	s := &session{engine: eng, logger: logger}
	if err := s.start(ctx, cfg, wasm, tr); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *session) start(ctx context.Context, cfg *config.Config, wasm []byte, tr *traffic) error {
	mod, err := s.engine.Load(ctx, wasm)
	if err != nil {
		return err
	}

	reg := callback.NewRegistry()
	inst, err := mod.Instantiate(ctx, reg)
	if err != nil {
		return err
	}

	s.bridge = bridge.New(inst, reg, bridge.WithLogger(s.logger))
	s.daemon, err = s.bridge.Daemon(ctx)
	if err != nil {
		return err
	}

	dialCtx := ctx
	if cfg.Server.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.Server.DialTimeout)
		defer cancel()
	}
	s.link, err = transport.Dial(dialCtx, cfg.Server.Address,
		transport.WithLogger(s.bridge.Logger()),
		transport.WithMaxFrame(cfg.Server.MaxFrame))
	if err != nil {
		return err
	}

	var ep transport.Endpoint = s.daemon
	if tr != nil {
		ep = tap{Endpoint: s.daemon, traffic: tr}
	}
	if err := s.link.Bind(ctx, ep); err != nil {
		return err
	}

	s.logger.Info("session started",
		zap.String("module", cfg.Module),
		zap.String("server", cfg.Server.Address),
		zap.String("session", s.bridge.Session().String()))
	return nil
}

// robot connects serial and waits for the daemon to report it ready.
func (s *session) robot(ctx context.Context, serial string) (*bridge.Robot, error) {
	return s.daemon.GetRobot(ctx, serial).Await(ctx)
}

// Close tears the session down: link first, then the bridge, then the engine.
func (s *session) Close(ctx context.Context) error {
	var errs []error
	if s.link != nil {
		if err := s.link.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.bridge != nil {
		if err := s.bridge.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.engine.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}
