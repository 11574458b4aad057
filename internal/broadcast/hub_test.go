package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
)

func recvEvent(t *testing.T, sub *Subscriber) entity.Event {
	t.Helper()
	select {
	case ev := <-sub.C():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return entity.Event{}
	}
}

func assertNoEvent(t *testing.T, sub *Subscriber) {
	t.Helper()
	select {
	case ev := <-sub.C():
		t.Fatalf("unexpected event %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubTopicScoping(t *testing.T) {
	hub := NewHub()

	laneOne := hub.Subscribe(entity.TopicLane("1"))
	laneTwo := hub.Subscribe(entity.TopicLane("2"))
	global := hub.Subscribe(entity.GlobalTopic(entity.EventWaitlistUpdated))

	session := entity.NewSessionEvent(&entity.LaneSessionView{
		LaneSession: entity.LaneSession{Lane: "1", Status: entity.SessionStatusActive},
	})
	hub.Publish(session, entity.TopicLane("1"))

	got := recvEvent(t, laneOne)
	assert.Equal(t, entity.EventSessionUpdated, got.Type)
	require.NotNil(t, got.Session)
	assert.Equal(t, "1", got.Session.Lane)

	assertNoEvent(t, laneTwo)
	assertNoEvent(t, global)

	waitlist := entity.NewWaitlistEvent(entity.WaitlistEntry{ID: 7, Status: entity.WaitlistStatusOffered}, nil)
	hub.Publish(waitlist, entity.GlobalTopic(entity.EventWaitlistUpdated))

	got = recvEvent(t, global)
	require.NotNil(t, got.Waitlist)
	assert.Equal(t, int64(7), got.Waitlist.Entry.ID)
	assertNoEvent(t, laneOne)
}

func TestHubDeliversOncePerSubscriber(t *testing.T) {
	hub := NewHub()

	sub := hub.Subscribe(entity.TopicLane("3"), entity.GlobalTopic(entity.EventSessionUpdated))

	ev := entity.NewSessionEvent(&entity.LaneSessionView{
		LaneSession: entity.LaneSession{Lane: "3"},
	})
	hub.Publish(ev, entity.TopicLane("3"), entity.GlobalTopic(entity.EventSessionUpdated))

	recvEvent(t, sub)
	assertNoEvent(t, sub)
}

func TestHubOrderingPerSubscriber(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(entity.TopicLane("1"))

	var published []string
	for i := 0; i < 10; i++ {
		ev := entity.NewHighlightEvent("1", "rental_type", "DOUBLE", nil)
		published = append(published, ev.ID)
		hub.Publish(ev, entity.TopicLane("1"))
	}

	for _, id := range published {
		got := recvEvent(t, sub)
		assert.Equal(t, id, got.ID)
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub()
	slow := hub.Subscribe(entity.TopicLane("1"))
	fast := hub.Subscribe(entity.TopicLane("1"))

	// Overflow the slow subscriber's buffer without draining it.
	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Publish(entity.NewHighlightEvent("1", "step", "option", nil), entity.TopicLane("1"))
	}

	// The fast subscriber kept up to its buffer; the slow one holds at
	// most a full buffer and the overflow was dropped, not blocked on.
	drained := 0
	for {
		select {
		case <-slow.C():
			drained++
			continue
		default:
		}
		break
	}
	assert.Equal(t, subscriberBuffer, drained)

	// Publish still works afterwards.
	hub.Publish(entity.NewHighlightEvent("1", "step", "after", nil), entity.TopicLane("1"))
	got := recvEvent(t, slow)
	assert.Equal(t, "after", got.Highlight.Option)
	_ = fast
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(entity.TopicLane("1"))

	hub.Unsubscribe(sub)

	_, open := <-sub.C()
	assert.False(t, open)

	// Publishing after unsubscribe must not panic or deliver.
	hub.Publish(entity.NewHighlightEvent("1", "s", "o", nil), entity.TopicLane("1"))

	// Double unsubscribe is a no-op.
	hub.Unsubscribe(sub)
}

func TestHubResubscribeReplacesTopics(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(entity.TopicLane("1"))

	hub.Resubscribe(sub, entity.TopicLane("2"))

	hub.Publish(entity.NewHighlightEvent("1", "s", "o", nil), entity.TopicLane("1"))
	assertNoEvent(t, sub)

	hub.Publish(entity.NewHighlightEvent("2", "s", "o", nil), entity.TopicLane("2"))
	got := recvEvent(t, sub)
	assert.Equal(t, "2", got.Highlight.Lane)
}
