package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Handler consumes one delivered envelope.
type Handler func(ctx context.Context, event *Envelope) error

// InProcessEventBus is an in-memory event bus for local mode (no RabbitMQ).
// Events are delivered synchronously to registered handlers.
type InProcessEventBus struct {
	logger   *slog.Logger
	mu       sync.Mutex
	handlers map[string][]Handler
}

// NewInProcessEventBus creates a new in-process event bus.
func NewInProcessEventBus(logger *slog.Logger) *InProcessEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessEventBus{
		logger:   logger,
		handlers: make(map[string][]Handler),
	}
}

// Subscribe registers a handler for one routing key.
func (b *InProcessEventBus) Subscribe(routingKey string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[routingKey] = append(b.handlers[routingKey], h)
}

// Publish dispatches the payload synchronously to every handler registered
// for the routing key. Handler failures are logged, never propagated: in
// local mode a broken consumer must not fail the producing operation.
func (b *InProcessEventBus) Publish(ctx context.Context, routingKey string, payload []byte) error {
	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		b.logger.Error("failed to unmarshal event payload",
			"routing_key", routingKey,
			"error", err,
		)
		return nil
	}
	if envelope.RoutingKey == "" {
		envelope.RoutingKey = routingKey
	}

	b.mu.Lock()
	handlers := append([]Handler(nil), b.handlers[routingKey]...)
	b.mu.Unlock()

	start := time.Now()
	for _, h := range handlers {
		if err := h(ctx, &envelope); err != nil {
			b.logger.Error("event dispatch failed",
				"routing_key", routingKey,
				"event_id", envelope.EventID,
				"error", err,
			)
		}
	}
	b.logger.Debug("event dispatched",
		"routing_key", routingKey,
		"event_id", envelope.EventID,
		"handlers", len(handlers),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Close is a no-op for the in-process bus.
func (b *InProcessEventBus) Close() error {
	return nil
}
