package model

import "time"

// Notification is an entry of the notifications feed surfaced in the
// header and the notifications view.
type Notification struct {
	// ID is the feed's identifier, or a generated UUID when the feed has none.
	ID string `json:"id" db:"id"`

	// TaskID links the notification to a task when the feed provides one.
	TaskID string `json:"taskId,omitempty" db:"task_id"`

	// Message is the human-readable notification text.
	Message string `json:"message" db:"message"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read" db:"read"`

	// CreatedAt is when the feed produced the notification.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
