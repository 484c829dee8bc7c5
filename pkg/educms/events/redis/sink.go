// Package redis publishes content lifecycle events on a Redis pub/sub
// channel as JSON messages.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/tendant/edu-cms/pkg/educms"
)

const DefaultChannel = "educms.events"

// Event types
const (
	EventItemCreated = "item_created"
	EventItemUpdated = "item_updated"
	EventItemDeleted = "item_deleted"
	EventUserJoined  = "user_joined"
)

// Event is the message body published for every lifecycle change.
type Event struct {
	Type   string      `json:"type"`
	Kind   educms.Kind `json:"kind,omitempty"`
	ID     uuid.UUID   `json:"id"`
	UserID *uuid.UUID  `json:"user_id,omitempty"`
	At     time.Time   `json:"at"`
}

// Publisher is the subset of *goredis.Client the sink needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

// Sink implements educms.EventSink over Redis pub/sub.
type Sink struct {
	pub     Publisher
	channel string
	now     func() time.Time
}

var _ educms.EventSink = (*Sink)(nil)

func New(pub Publisher, channel string) *Sink {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Sink{pub: pub, channel: channel, now: time.Now}
}

// Dial connects to the Redis server at url (redis://...) and verifies it
// answers a ping.
func Dial(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (s *Sink) ItemCreated(ctx context.Context, kind educms.Kind, id uuid.UUID) error {
	return s.publish(ctx, Event{Type: EventItemCreated, Kind: kind, ID: id})
}

func (s *Sink) ItemUpdated(ctx context.Context, kind educms.Kind, id uuid.UUID) error {
	return s.publish(ctx, Event{Type: EventItemUpdated, Kind: kind, ID: id})
}

func (s *Sink) ItemDeleted(ctx context.Context, kind educms.Kind, id uuid.UUID) error {
	return s.publish(ctx, Event{Type: EventItemDeleted, Kind: kind, ID: id})
}

func (s *Sink) UserJoined(ctx context.Context, userID, courseID uuid.UUID) error {
	return s.publish(ctx, Event{Type: EventUserJoined, Kind: educms.KindCourse, ID: courseID, UserID: &userID})
}

func (s *Sink) publish(ctx context.Context, ev Event) error {
	ev.At = s.now().UTC()
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := s.pub.Publish(ctx, s.channel, raw).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Listen subscribes to channel and calls fn for every well-formed event
// until ctx is done.
func Listen(ctx context.Context, client *goredis.Client, channel string, fn func(Event)) error {
	if fn == nil {
		return errors.New("event callback required")
	}
	if channel == "" {
		channel = DefaultChannel
	}
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
				continue
			}
			fn(ev)
		}
	}
}
