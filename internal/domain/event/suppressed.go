package event

import "time"

// Suppression reasons
const (
	ReasonMatchesLastPost = "matches_last_post" // first cycle, status equals the account's latest post
	ReasonNoLastPost      = "no_last_post"      // first cycle, the account has no usable latest post
	ReasonDuplicate       = "duplicate"         // the provider rejected the post as a duplicate
)

type PostSuppressedEvent struct {
	AppID           int       `json:"app_id"`
	DiscountPercent int       `json:"discount_percent"`
	Status          string    `json:"status"`
	Reason          string    `json:"reason"`
	CycleID         string    `json:"cycle_id"`
	SuppressedAt    time.Time `json:"suppressed_at"`
}

func (e *PostSuppressedEvent) EventType() string {
	return "PostSuppressedEvent"
}

func (e *PostSuppressedEvent) EventValue() ([]byte, error) {
	return DefaultEventValue(e)
}
