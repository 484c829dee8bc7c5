package educms

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	defaultDeleteAttempts = 3
	defaultDeleteBackoff  = 100 * time.Millisecond
)

// service implements the Service interface
type service struct {
	repository     Repository
	media          MediaStore
	eventSink      EventSink
	logger         *slog.Logger
	deleteAttempts int
	deleteBackoff  time.Duration
	now            func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithMediaStore sets the media store for the service
func WithMediaStore(store MediaStore) Option {
	return func(s *service) {
		s.media = store
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the structured logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithDeleteAttempts sets how many times a deletion restarts after a
// failed stage. Values below one are treated as one.
func WithDeleteAttempts(n int) Option {
	return func(s *service) {
		if n < 1 {
			n = 1
		}
		s.deleteAttempts = n
	}
}

// WithDeleteBackoff sets the pause between deletion attempts. The pause
// grows linearly with the attempt number.
func WithDeleteBackoff(d time.Duration) Option {
	return func(s *service) {
		s.deleteBackoff = d
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		eventSink:      NewNoopEventSink(),
		logger:         slog.Default(),
		deleteAttempts: defaultDeleteAttempts,
		deleteBackoff:  defaultDeleteBackoff,
		now:            func() time.Time { return time.Now().UTC() },
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.media == nil {
		return nil, fmt.Errorf("media store is required")
	}

	return s, nil
}

// UploadMedia stores a file and returns the path items reference it by.
func (s *service) UploadMedia(ctx context.Context, r io.Reader, ext string) (string, error) {
	if ext = NormalizeExt(ext); ext == "" {
		return "", missing("ext")
	}
	path, err := s.media.Store(ctx, r, ext)
	if err != nil {
		return "", fmt.Errorf("failed to store media: %w", err)
	}
	s.logger.Info("Stored media", "path", path)
	return path, nil
}

func (s *service) emit(event string, err error) {
	if err != nil {
		s.logger.Warn("Event sink failed", "event", event, "error", err)
	}
}

func (s *service) itemCreated(ctx context.Context, kind Kind, id uuid.UUID) {
	s.emit("item_created", s.eventSink.ItemCreated(ctx, kind, id))
}

func (s *service) itemUpdated(ctx context.Context, kind Kind, id uuid.UUID) {
	s.emit("item_updated", s.eventSink.ItemUpdated(ctx, kind, id))
}

func (s *service) itemDeleted(ctx context.Context, kind Kind, id uuid.UUID) {
	s.emit("item_deleted", s.eventSink.ItemDeleted(ctx, kind, id))
}

func (s *service) userJoined(ctx context.Context, userID, courseID uuid.UUID) {
	s.emit("user_joined", s.eventSink.UserJoined(ctx, userID, courseID))
}
