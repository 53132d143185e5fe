package entities

import "time"

// User is a local identity keyed by the external payment network's identity
// string. Users are created on first successful authentication and never
// deleted here; deletion is an external concern.
type User struct {
	ID          int64          `db:"id"`
	ExternalID  string         `db:"external_id"`
	Username    string         `db:"username"`
	Preferences map[string]any `db:"preferences"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}
