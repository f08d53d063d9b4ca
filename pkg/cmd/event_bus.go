package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/derivia/orchepy/pkg/channels/gochannel"
	"github.com/derivia/orchepy/pkg/channels/kafka"
	"github.com/derivia/orchepy/pkg/eventbus"
)

// NewEventBus creates an event bus for the given provider. An empty provider
// disables event publication and returns nil.
func NewEventBus(provider string, logger *slog.Logger) (eventbus.EventBus, error) {
	switch provider {
	case "":
		return nil, nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "orchepy")
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
