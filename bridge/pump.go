package bridge

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type write struct {
	handler func([]byte)
	data    []byte
}

// pump hands write-stream frames to their handler on one goroutine, in the
// order they were pushed. push never blocks, so it is safe to call while the
// gateway is inside a native call.
type pump struct {
	logger  *zap.Logger
	queue   []write
	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	mu      sync.Mutex
	once    sync.Once
	closed  bool
}

func newPump(logger *zap.Logger) *pump {
	p := &pump{
		logger:  logger,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *pump) push(handler func([]byte), data []byte) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.queue = append(p.queue, write{handler: handler, data: data})
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return true
}

func (p *pump) run() {
	defer close(p.stopped)
	for {
		p.mu.Lock()
		batch := p.queue
		p.queue = nil
		p.mu.Unlock()

		for _, w := range batch {
			p.deliver(w)
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-p.wake:
		case <-p.done:
			p.mu.Lock()
			rest := p.queue
			p.queue = nil
			p.mu.Unlock()
			for _, w := range rest {
				p.deliver(w)
			}
			return
		}
	}
}

func (p *pump) deliver(w write) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("write handler panicked",
				zap.Int("bytes", len(w.data)),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	w.handler(w.data)
}

// stop refuses new frames, delivers what is queued and waits for the
// goroutine to exit. It must not be called from a write handler.
func (p *pump) stop() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.done)
	})
	<-p.stopped
}
