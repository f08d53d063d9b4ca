// Package eventbus abstracts publication and consumption of case lifecycle
// events.
package eventbus

import (
	"context"

	"github.com/derivia/orchepy/pkg/events"
)

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	Publish(ctx context.Context, key string, event events.CaseEvent) error
	Subscribe(ctx context.Context) error
	Handle(eventType events.EventType, handler EventHandler) error
	Close() error
}
