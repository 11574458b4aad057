package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventSessionUpdated         EventType = "SESSION_UPDATED"
	EventWaitlistUpdated        EventType = "WAITLIST_UPDATED"
	EventInventoryUpdated       EventType = "INVENTORY_UPDATED"
	EventCheckinOptionHighlight EventType = "CHECKIN_OPTION_HIGHLIGHTED"
	EventRegisterSessionUpdated EventType = "REGISTER_SESSION_UPDATED"
)

// TopicLane scopes per-lane events; the event type string itself doubles
// as the global topic name.
func TopicLane(lane string) string {
	return "lane:" + lane
}

func GlobalTopic(t EventType) string {
	return string(t)
}

// HighlightPayload is ephemeral: it is never persisted, only broadcast, so
// the kiosk can preview a selection the employee has not committed yet.
type HighlightPayload struct {
	Lane      string `json:"lane"`
	Step      string `json:"step"`
	Option    string `json:"option"`
	SessionID *int64 `json:"session_id,omitempty"`
}

type WaitlistPayload struct {
	Entry          WaitlistEntry `json:"entry"`
	ResourceNumber *string       `json:"resource_number,omitempty"`
}

type InventoryPayload struct {
	Resource Resource `json:"resource"`
}

type RegisterSessionPayload struct {
	Lane   string        `json:"lane"`
	Status SessionStatus `json:"status"`
	Staff  *string       `json:"staff,omitempty"`
}

// Event is a closed tagged union: exactly one payload field is set,
// selected by Type. Subscribers dispatch on Type; the wire format is the
// flat {id, type, payload, timestamp} envelope every terminal expects.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Session   *LaneSessionView        `json:"-"`
	Waitlist  *WaitlistPayload        `json:"-"`
	Inventory *InventoryPayload       `json:"-"`
	Highlight *HighlightPayload       `json:"-"`
	Register  *RegisterSessionPayload `json:"-"`
}

type eventWire struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

func (e Event) payload() interface{} {
	switch e.Type {
	case EventSessionUpdated:
		return e.Session
	case EventWaitlistUpdated:
		return e.Waitlist
	case EventInventoryUpdated:
		return e.Inventory
	case EventCheckinOptionHighlight:
		return e.Highlight
	case EventRegisterSessionUpdated:
		return e.Register
	}
	return nil
}

func (e Event) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(e.payload())
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventWire{
		ID:        e.ID,
		Type:      e.Type,
		Payload:   raw,
		Timestamp: e.Timestamp,
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var w eventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.ID = w.ID
	e.Type = w.Type
	e.Timestamp = w.Timestamp

	switch w.Type {
	case EventSessionUpdated:
		e.Session = &LaneSessionView{}
		return json.Unmarshal(w.Payload, e.Session)
	case EventWaitlistUpdated:
		e.Waitlist = &WaitlistPayload{}
		return json.Unmarshal(w.Payload, e.Waitlist)
	case EventInventoryUpdated:
		e.Inventory = &InventoryPayload{}
		return json.Unmarshal(w.Payload, e.Inventory)
	case EventCheckinOptionHighlight:
		e.Highlight = &HighlightPayload{}
		return json.Unmarshal(w.Payload, e.Highlight)
	case EventRegisterSessionUpdated:
		e.Register = &RegisterSessionPayload{}
		return json.Unmarshal(w.Payload, e.Register)
	}
	return fmt.Errorf("unknown event type %q", w.Type)
}

func newEvent(t EventType) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
	}
}

func NewSessionEvent(view *LaneSessionView) Event {
	e := newEvent(EventSessionUpdated)
	e.Session = view
	return e
}

func NewWaitlistEvent(entry WaitlistEntry, resourceNumber *string) Event {
	e := newEvent(EventWaitlistUpdated)
	e.Waitlist = &WaitlistPayload{Entry: entry, ResourceNumber: resourceNumber}
	return e
}

func NewInventoryEvent(resource Resource) Event {
	e := newEvent(EventInventoryUpdated)
	e.Inventory = &InventoryPayload{Resource: resource}
	return e
}

func NewHighlightEvent(lane, step, option string, sessionID *int64) Event {
	e := newEvent(EventCheckinOptionHighlight)
	e.Highlight = &HighlightPayload{Lane: lane, Step: step, Option: option, SessionID: sessionID}
	return e
}

func NewRegisterSessionEvent(lane string, status SessionStatus, staff *string) Event {
	e := newEvent(EventRegisterSessionUpdated)
	e.Register = &RegisterSessionPayload{Lane: lane, Status: status, Staff: staff}
	return e
}
