package domain

import "time"

// WaitingListEntry asks for a notification when capacity frees up on an event
type WaitingListEntry struct {
	ID        int64     `json:"id"`
	EventID   int64     `json:"event_id"`
	UserID    int64     `json:"user_id"`
	AddedTS   time.Time `json:"added_ts"`
	Email     string    `json:"email"`
	FirstName *string   `json:"first_name,omitempty"`
}
