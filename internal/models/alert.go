package models

import "time"

// Alert is raised once per session, on the first detection of the target label.
type Alert struct {
	ID          int64     `json:"id"`
	AlertID     string    `json:"alert_id"`
	SessionID   string    `json:"session_id"`
	Camera      string    `json:"camera"`
	Label       string    `json:"label"`
	Confidence  float64   `json:"confidence"`
	FrameIndex  int64     `json:"frame_index"`
	X1          int       `json:"x1"`
	Y1          int       `json:"y1"`
	X2          int       `json:"x2"`
	Y2          int       `json:"y2"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// AlertFilter narrows alert history queries.
type AlertFilter struct {
	Camera    string
	SessionID string
	Limit     int
}
