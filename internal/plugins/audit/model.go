// Package audit keeps the activity log: who changed which record, and how.
// Services report mutations through Record; the activity page lists them
// newest first.
package audit

import "time"

// Entry is one recorded admin action. Action follows "kind.verb", for
// example "miqaats.updated".
type Entry struct {
	ID         int64          `json:"id"`
	UserEmail  string         `json:"user_email"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	EntityName string         `json:"entity_name"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Verb returns the part of Action after the dot.
func (e Entry) Verb() string {
	for i := len(e.Action) - 1; i >= 0; i-- {
		if e.Action[i] == '.' {
			return e.Action[i+1:]
		}
	}
	return e.Action
}
