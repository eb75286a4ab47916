package models

import "time"

// LogEntry records that a care action was actually done, usually chosen while
// answering an alarm.
type LogEntry struct {
	ID         int64     `json:"id,omitempty"`
	DogID      ID        `json:"dog_id"`
	ReminderID ID        `json:"reminder_id"`
	Action     Action    `json:"action"`
	CustomName string    `json:"custom_name,omitempty"`
	Note       string    `json:"note,omitempty"`
	LoggedAt   time.Time `json:"logged_at"`
}

// Label is the custom name for custom actions, the action label otherwise.
func (e LogEntry) Label() string {
	if e.Action == ActionCustom && e.CustomName != "" {
		return e.CustomName
	}
	return e.Action.Label()
}
