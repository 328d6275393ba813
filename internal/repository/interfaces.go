package repository

import (
	"time"

	"firewatch/internal/models"
)

// SnapshotRepository defines the interface for snapshot data operations.
type SnapshotRepository interface {
	// Create operations
	Insert(snap *models.Snapshot) (int64, error)

	// Read operations
	GetByID(id int64) (*models.Snapshot, error)
	GetByFilename(filename string) (*models.Snapshot, error)
	GetAll(filter *models.SnapshotFilter) ([]models.Snapshot, error)
	GetTotalCount(filter *models.SnapshotFilter) (int, error)
	GetTotalSize() (int64, error)
	GetCameras() ([]string, error)
	GetStats() (*models.SnapshotStats, error)
	Exists(filename string) (bool, error)

	// Delete operations
	Delete(id int64) error
	DeleteByFilename(filename string) error
	DeleteAll() error
}

// DetectionRepository defines the interface for detection data operations.
type DetectionRepository interface {
	// Create operations
	Insert(det *models.Detection) (int64, error)
	InsertBatch(detections []models.Detection) error

	// Read operations
	GetBySnapshotID(snapshotID int64) ([]models.Detection, error)
	GetObjectNamesBySnapshotID(snapshotID int64) ([]string, error)
	GetAllObjectNames() ([]string, error)

	// Delete operations
	DeleteBySnapshotID(snapshotID int64) error
}

// AlertRepository stores the alert raised by each session.
type AlertRepository interface {
	Insert(alert *models.Alert) (int64, error)
	GetAll(filter *models.AlertFilter) ([]models.Alert, error)
	Count(filter *models.AlertFilter) (int, error)
}

// SessionRepository records capture session lifecycles.
type SessionRepository interface {
	Start(session *models.Session) error
	Finish(id string, endedAt time.Time, frames int64, alertActive bool, stopReason string) error
	GetByID(id string) (*models.Session, error)
	GetRecent(limit int) ([]models.Session, error)
}
