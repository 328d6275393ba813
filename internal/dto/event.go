package dto

// Event types pushed to websocket viewers.
const (
	EventAlert          = "alert"
	EventSessionStarted = "session_started"
	EventSessionStopped = "session_stopped"
)

// Event is the JSON envelope broadcast to viewers.
type Event struct {
	Type    string      `json:"type"`
	Camera  string      `json:"camera"`
	Payload interface{} `json:"payload"`
}
