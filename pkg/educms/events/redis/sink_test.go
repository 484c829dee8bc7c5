package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/edu-cms/pkg/educms"
	memorymedia "github.com/tendant/edu-cms/pkg/educms/media/memory"
	"github.com/tendant/edu-cms/pkg/educms/repo/memory"
)

type published struct {
	channel string
	payload []byte
}

type fakePublisher struct {
	messages []published
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd {
	if p.err != nil {
		return goredis.NewIntResult(0, p.err)
	}
	p.messages = append(p.messages, published{channel: channel, payload: message.([]byte)})
	return goredis.NewIntResult(1, nil)
}

func TestSink_Publish(t *testing.T) {
	pub := &fakePublisher{}
	sink := New(pub, "")
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	sink.now = func() time.Time { return at }

	ctx := context.Background()
	item := uuid.New()
	user := uuid.New()
	course := uuid.New()

	require.NoError(t, sink.ItemCreated(ctx, educms.KindVideo, item))
	require.NoError(t, sink.ItemDeleted(ctx, educms.KindVideo, item))
	require.NoError(t, sink.UserJoined(ctx, user, course))
	require.Len(t, pub.messages, 3)

	var events []Event
	for _, m := range pub.messages {
		assert.Equal(t, DefaultChannel, m.channel)
		var ev Event
		require.NoError(t, json.Unmarshal(m.payload, &ev))
		events = append(events, ev)
	}

	assert.Equal(t, Event{Type: EventItemCreated, Kind: educms.KindVideo, ID: item, At: at}, events[0])
	assert.Equal(t, EventItemDeleted, events[1].Type)
	assert.Equal(t, EventUserJoined, events[2].Type)
	assert.Equal(t, course, events[2].ID)
	require.NotNil(t, events[2].UserID)
	assert.Equal(t, user, *events[2].UserID)
}

func TestSink_PublishError(t *testing.T) {
	cause := errors.New("connection refused")
	sink := New(&fakePublisher{err: cause}, "custom")

	err := sink.ItemUpdated(context.Background(), educms.KindArticle, uuid.New())
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), EventItemUpdated)
}

func TestSink_FailureDoesNotBlockService(t *testing.T) {
	sink := New(&fakePublisher{err: errors.New("down")}, "")
	svc, err := educms.New(
		educms.WithRepository(memory.New()),
		educms.WithMediaStore(memorymedia.New()),
		educms.WithEventSink(sink),
	)
	require.NoError(t, err)

	category, err := svc.CreateCategory(context.Background(), "Sleep")
	require.NoError(t, err)
	_, err = svc.CreateItem(context.Background(), educms.CreateItemRequest{
		Kind:             educms.KindArticle,
		Title:            "t",
		ShortDescription: "s",
		CategoryID:       category.ID,
		Thumbnail:        "a.png",
		Body:             json.RawMessage(`{"blocks":[]}`),
	})
	assert.NoError(t, err)
}
