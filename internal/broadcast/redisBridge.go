package broadcast

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
)

// RedisBridge extends the in-process hub across server processes: every
// locally published event is also pushed through a Redis channel, and
// events published by sibling processes are fed into the local hub.
// The bridge tags frames with an origin id so it never re-delivers its own.
type RedisBridge struct {
	hub     *Hub
	client  *redis.Client
	channel string
	origin  string
}

type bridgeFrame struct {
	Origin string       `json:"origin"`
	Topics []string     `json:"topics"`
	Event  entity.Event `json:"event"`
}

func NewRedisBridge(hub *Hub, client *redis.Client, channel string) *RedisBridge {
	return &RedisBridge{
		hub:     hub,
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
	}
}

func (b *RedisBridge) Publish(event entity.Event, topics ...string) {
	b.hub.Publish(event, topics...)

	frame := bridgeFrame{Origin: b.origin, Topics: topics, Event: event}
	payload, err := json.Marshal(frame)
	if err != nil {
		logrus.Errorf("Failed to encode broadcast frame: %v", err)
		return
	}

	if err := b.client.Publish(context.Background(), b.channel, payload).Err(); err != nil {
		// Local delivery already happened; remote terminals catch up on
		// their next full-state fetch.
		logrus.Errorf("Failed to publish broadcast frame to Redis: %v", err)
	}
}

func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	logrus.Infof("Broadcast bridge subscribed to channel %s", b.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var frame bridgeFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				logrus.Errorf("Failed to decode broadcast frame: %v", err)
				continue
			}
			if frame.Origin == b.origin {
				continue
			}
			b.hub.Publish(frame.Event, frame.Topics...)
		}
	}
}
