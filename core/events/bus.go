package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"lsadf-backend/core/metrics"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Handler processes one event.
type Handler func(ctx context.Context, e Event) error

// Mode selects how a handler is invoked.
type Mode int

const (
	Sync Mode = iota
	Async
)

func (m Mode) String() string {
	if m == Async {
		return "async"
	}
	return "sync"
}

var (
	ErrFrozen     = errors.New("event bus registry is frozen")
	ErrNotStarted = errors.New("event bus not started")
)

type registration struct {
	mode    Mode
	handler Handler
}

// Bus dispatches events to the single handler registered for their type.
type Bus struct {
	logger *zap.Logger
	cfg    Config

	mu       sync.RWMutex
	handlers map[Type]registration
	started  bool
	closed   bool

	pubsub *gochannel.GoChannel
	slots  chan struct{}
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewBus creates an empty bus.
func NewBus(cfg Config, logger *zap.Logger) *Bus {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		logger:   logger,
		cfg:      cfg,
		handlers: make(map[Type]registration),
		slots:    make(chan struct{}, cfg.Workers),
	}
}

// Register binds the handler for t. Each type accepts exactly one handler.
func (b *Bus) Register(t Type, mode Mode, h Handler) error {
	if !t.Valid() {
		return fmt.Errorf("register: unknown event type %q", t)
	}
	if h == nil {
		return fmt.Errorf("register %s: nil handler", t)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return ErrFrozen
	}
	if _, exists := b.handlers[t]; exists {
		return fmt.Errorf("register %s: handler already registered", t)
	}
	b.handlers[t] = registration{mode: mode, handler: h}
	return nil
}

// Start freezes the registry and starts consuming async topics.
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return nil
	}

	b.pubsub = gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: b.cfg.Buffer,
	}, newZapAdapter(b.logger))

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	for t, reg := range b.handlers {
		if reg.mode != Async {
			continue
		}
		msgs, err := b.pubsub.Subscribe(ctx, string(t))
		if err != nil {
			cancel()
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
		b.wg.Add(1)
		go b.consume(ctx, t, reg.handler, msgs)
	}

	b.started = true
	return nil
}

// Publish dispatches e. Sync handler errors are returned; async delivery only fails if the
// event cannot be enqueued.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	reg, ok := b.handlers[e.Type]
	started, closed := b.started, b.closed
	b.mu.RUnlock()

	if !ok {
		b.logger.Debug("No handler for event", zap.String("type", string(e.Type)))
		return nil
	}

	if reg.mode == Sync {
		err := reg.handler(ctx, e)
		metrics.EventsDispatched.WithLabelValues(string(e.Type), "sync", result(err)).Inc()
		if err != nil {
			return fmt.Errorf("handle %s: %w", e.Type, err)
		}
		return nil
	}

	if !started || closed {
		return ErrNotStarted
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.Type, err)
	}
	msg := message.NewMessage(e.ID, data)
	msg.Metadata.Set("type", string(e.Type))
	return b.pubsub.Publish(string(e.Type), msg)
}

func (b *Bus) consume(ctx context.Context, t Type, h Handler, msgs <-chan *message.Message) {
	defer b.wg.Done()

	for msg := range msgs {
		msg.Ack()

		var e Event
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			b.logger.Error("Dropping undecodable event", zap.String("type", string(t)), zap.Error(err))
			continue
		}

		select {
		case b.slots <- struct{}{}:
		case <-ctx.Done():
			b.logger.Warn("Dropping event on shutdown", zap.String("type", string(t)), zap.String("id", e.ID))
			continue
		}

		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			defer func() { <-b.slots }()
			b.runAsync(context.WithoutCancel(ctx), h, e)
		}()
	}
}

func (b *Bus) runAsync(ctx context.Context, h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.EventsDispatched.WithLabelValues(string(e.Type), "async", "panic").Inc()
			b.logger.Error("Async event handler panicked",
				zap.String("type", string(e.Type)),
				zap.String("id", e.ID),
				zap.Any("panic", r),
			)
		}
	}()

	err := h(ctx, e)
	metrics.EventsDispatched.WithLabelValues(string(e.Type), "async", result(err)).Inc()
	if err != nil {
		b.logger.Error("Async event handler failed, dropping",
			zap.String("type", string(e.Type)),
			zap.String("id", e.ID),
			zap.Error(err),
		)
	}
}

// Close stops async delivery and waits for in-flight handlers.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed || !b.started {
		b.closed = true
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	err := b.pubsub.Close()
	b.wg.Wait()
	b.cancel()
	return err
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
