package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is a publish outcome appended to the journal
type Event interface {
	EventType() string
	EventValue() ([]byte, error)
}

// DefaultEventValue provides a common implementation for EventValue
func DefaultEventValue(event interface{}) ([]byte, error) {
	return json.Marshal(event)
}

func UnmarshalEvent[T Event](event []byte) (T, error) {
	var e T
	err := json.Unmarshal(event, &e)
	return e, err
}

var EventTypes = []string{
	(&PostPublishedEvent{}).EventType(),
	(&PostSuppressedEvent{}).EventType(),
}

// Decode rebuilds a journaled event from its type name and payload
func Decode(eventType string, data []byte) (Event, error) {
	switch eventType {
	case EventTypes[0]:
		return UnmarshalEvent[*PostPublishedEvent](data)
	case EventTypes[1]:
		return UnmarshalEvent[*PostSuppressedEvent](data)
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
}

type PostPublishedEvent struct {
	AppID           int       `json:"app_id"`
	DiscountPercent int       `json:"discount_percent"`
	Status          string    `json:"status"`
	CycleID         string    `json:"cycle_id"`
	PublishedAt     time.Time `json:"published_at"`
}

func (e *PostPublishedEvent) EventType() string {
	return "PostPublishedEvent"
}

func (e *PostPublishedEvent) EventValue() ([]byte, error) {
	return DefaultEventValue(e)
}
