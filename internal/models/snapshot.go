package models

import "time"

// Snapshot represents an annotated frame saved to disk.
type Snapshot struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Camera    string    `json:"camera"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	FilePath  string    `json:"filepath"`
	FileSize  int64     `json:"filesize"`
}

// SnapshotFilter contains filtering options for querying snapshots.
type SnapshotFilter struct {
	Camera     string
	Object     string
	StartDate  time.Time
	EndDate    time.Time
	TimeAfter  string
	TimeBefore string
	Limit      int
	Offset     int
}

// SnapshotStats contains statistics about stored snapshots.
type SnapshotStats struct {
	TotalSnapshots int            `json:"total_snapshots"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	PerCamera      map[string]int `json:"per_camera"`
	ObjectCounts   map[string]int `json:"object_counts"`
}
