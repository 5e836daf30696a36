package activitysvc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tuutta/core"
)

const handleTimeout = 10 * time.Second

// Handler processes one activity event.
type Handler interface {
	Handle(ctx context.Context, ev core.ActivityEvent) error
}

type HandlerFunc func(ctx context.Context, ev core.ActivityEvent) error

func (f HandlerFunc) Handle(ctx context.Context, ev core.ActivityEvent) error { return f(ctx, ev) }

// AsyncSink queues events in a buffered channel drained by a single worker.
// Log never blocks: when the buffer is full the event is dropped and logged.
type AsyncSink struct {
	events   chan core.ActivityEvent
	handlers []Handler
	logger   core.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

var _ core.ActivitySink = (*AsyncSink)(nil)

func NewAsyncSink(buffer int, logger core.Logger, handlers ...Handler) *AsyncSink {
	if buffer < 1 {
		buffer = 1
	}
	s := &AsyncSink{
		events:   make(chan core.ActivityEvent, buffer),
		handlers: handlers,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *AsyncSink) Log(_ context.Context, ev core.ActivityEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.logger.Warn("activity sink closed; dropping event", ev)
		return
	}
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("activity buffer full; dropping event", ev)
	}
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for ev := range s.events {
		for _, h := range s.handlers {
			if err := s.handle(h, ev); err != nil {
				s.logger.Error(fmt.Sprintf("handling activity %s: %v", ev.Action, err), err, ev)
			}
		}
	}
}

func (s *AsyncSink) handle(h Handler, ev core.ActivityEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	return h.Handle(ctx, ev)
}

// Close stops accepting events and waits until the queued ones are handled.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "draining activity events")
	}
}
