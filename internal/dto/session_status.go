package dto

import "time"

// SessionStatus is a point-in-time view of a running or finished capture session.
type SessionStatus struct {
	ID          string    `json:"id"`
	Camera      string    `json:"camera"`
	Source      string    `json:"source"`
	Frames      int64     `json:"frames"`
	AlertActive bool      `json:"alert_active"`
	StartedAt   time.Time `json:"started_at"`
	Running     bool      `json:"running"`
}
