package educms

import (
	"context"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) ItemCreated(ctx context.Context, kind Kind, id uuid.UUID) error {
	return nil
}

func (n *NoopEventSink) ItemUpdated(ctx context.Context, kind Kind, id uuid.UUID) error {
	return nil
}

func (n *NoopEventSink) ItemDeleted(ctx context.Context, kind Kind, id uuid.UUID) error {
	return nil
}

func (n *NoopEventSink) UserJoined(ctx context.Context, userID, courseID uuid.UUID) error {
	return nil
}
