package sqlite

import (
	"fmt"

	"firewatch/internal/models"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

const insertDetectionSQL = `
	INSERT INTO detections (snapshot_id, object_name, x1, y1, x2, y2, confidence)
	VALUES (?, ?, ?, ?, ?, ?, ?)
`

// Insert adds a new detection record to the database.
func (r *DetectionRepository) Insert(det *models.Detection) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(insertDetectionSQL,
		det.SnapshotID, det.ObjectName, det.X1, det.Y1, det.X2, det.Y2, det.Confidence)
	if err != nil {
		return 0, fmt.Errorf("failed to insert detection: %w", err)
	}

	return result.LastInsertId()
}

// InsertBatch adds multiple detections in a single transaction.
func (r *DetectionRepository) InsertBatch(detections []models.Detection) error {
	if len(detections) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertDetectionSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, det := range detections {
		if _, err := stmt.Exec(det.SnapshotID, det.ObjectName, det.X1, det.Y1, det.X2, det.Y2, det.Confidence); err != nil {
			return fmt.Errorf("failed to insert detection: %w", err)
		}
	}

	return tx.Commit()
}

// GetBySnapshotID retrieves all detections for a snapshot.
func (r *DetectionRepository) GetBySnapshotID(snapshotID int64) ([]models.Detection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, snapshot_id, object_name, x1, y1, x2, y2, confidence
		FROM detections WHERE snapshot_id = ?
		ORDER BY id
	`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var detections []models.Detection
	for rows.Next() {
		var det models.Detection
		if err := rows.Scan(&det.ID, &det.SnapshotID, &det.ObjectName, &det.X1, &det.Y1, &det.X2, &det.Y2, &det.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, det)
	}

	return detections, rows.Err()
}

func (r *DetectionRepository) queryNames(query string, args ...interface{}) ([]string, error) {
	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query object names: %w", err)
	}
	defer rows.Close()

	var objects []string
	for rows.Next() {
		var obj string
		if err := rows.Scan(&obj); err != nil {
			return nil, fmt.Errorf("failed to scan object name: %w", err)
		}
		objects = append(objects, obj)
	}
	return objects, rows.Err()
}

// GetObjectNamesBySnapshotID returns the distinct labels detected in a snapshot.
func (r *DetectionRepository) GetObjectNamesBySnapshotID(snapshotID int64) ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.queryNames(`SELECT DISTINCT object_name FROM detections WHERE snapshot_id = ? ORDER BY object_name`, snapshotID)
}

// GetAllObjectNames returns a list of all unique detected object names.
func (r *DetectionRepository) GetAllObjectNames() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.queryNames(`SELECT DISTINCT object_name FROM detections ORDER BY object_name`)
}

// DeleteBySnapshotID removes all detections for a specific snapshot.
func (r *DetectionRepository) DeleteBySnapshotID(snapshotID int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections WHERE snapshot_id = ?`, snapshotID); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}
	return nil
}
