package port

import (
	"context"

	"github.com/rl1809/shopassist/internal/core/domain"
)

type EventPublisher interface {
	// Publish relays the side effects of one turn
	Publish(ctx context.Context, sessionID string, actions []domain.Action) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, []domain.Action) error { return nil }
