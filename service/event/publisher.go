package event

import (
	"context"
	"fmt"

	"github.com/viant/kernsim/internal/clock"
	"github.com/viant/kernsim/service/messaging"
)

type Publisher[T any] struct {
	queue messaging.Queue[Event[T]]
}

func NewPublisher[T any](queue messaging.Queue[Event[T]]) *Publisher[T] {
	return &Publisher[T]{
		queue: queue,
	}
}

func (p *Publisher[T]) Publish(ctx context.Context, event *Event[T]) error {
	if p == nil || p.queue == nil {
		return nil
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = clock.Now()
	}
	if err := p.queue.Publish(ctx, event); err != nil {
		return fmt.Errorf("failed to publish %v event: %w", event.Context.EventType, err)
	}
	return nil
}

func (p *Publisher[T]) Consume(ctx context.Context) (*Event[T], error) {
	msg, err := p.queue.Consume(ctx)
	if err != nil || msg == nil {
		return nil, err
	}
	if err = msg.Ack(); err != nil {
		return nil, err
	}
	return msg.T(), nil
}
