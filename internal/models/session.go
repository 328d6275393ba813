package models

import "time"

// Session is one run of the capture loop over a single source.
type Session struct {
	ID          string     `json:"id"`
	Camera      string     `json:"camera"`
	Source      string     `json:"source"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Frames      int64      `json:"frames"`
	AlertActive bool       `json:"alert_active"`
	StopReason  string     `json:"stop_reason,omitempty"`
}
