// Package publisher delivers workflow events to a notification store,
// either synchronously or through a buffered background worker.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"ecocert/internal/notification"
)

// ErrBufferFull is returned when async emission cannot enqueue an event.
var ErrBufferFull = errors.New("notification buffer full")

// Publisher delivers events to a store. In sync mode Emit persists inline;
// with an async buffer Emit enqueues and a worker goroutine drains.
type Publisher struct {
	store  notification.Store
	logger *slog.Logger

	inbox  chan notification.Event
	done   chan struct{}
	closed sync.Once
	wg     sync.WaitGroup
}

type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous emission with the given buffer size.
// When the buffer is full, events are dropped rather than blocking the
// request path.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan notification.Event, size)
	}
}

// WithLogger attaches a logger for drop and persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store notification.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit delivers one event. Missing timestamps are stamped at emission time.
// In async mode a full buffer drops the event and returns ErrBufferFull.
func (p *Publisher) Emit(ctx context.Context, event notification.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = notification.WorkflowEvent(event.Action).Category()
	}

	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.logger.Warn("notification dropped, buffer full",
			"action", event.Action,
			"request_id", event.RequestID,
		)
		return ErrBufferFull
	}
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for {
		select {
		case event := <-p.inbox:
			p.persist(event)
		case <-p.done:
			// Drain whatever is left before exiting.
			for {
				select {
				case event := <-p.inbox:
					p.persist(event)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) persist(event notification.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.store.Append(ctx, event); err != nil {
		p.logger.Error("failed to persist notification",
			"action", event.Action,
			"request_id", event.RequestID,
			"error", err,
		)
	}
}

// Close stops the background worker, draining any buffered events first.
func (p *Publisher) Close() {
	p.closed.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}
