package sqlite

import (
	"fmt"

	"firewatch/internal/models"
)

// AlertRepository implements repository.AlertRepository for SQLite.
type AlertRepository struct {
	db *DB
}

// NewAlertRepository creates a new SQLite alert repository.
func NewAlertRepository(db *DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Insert stores a triggered alert. Alert ids are unique; inserting the same one twice fails.
func (r *AlertRepository) Insert(alert *models.Alert) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO alerts (alert_id, session_id, camera, label, confidence, frame_index, x1, y1, x2, y2, triggered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, alert.AlertID, alert.SessionID, alert.Camera, alert.Label, alert.Confidence, alert.FrameIndex,
		alert.X1, alert.Y1, alert.X2, alert.Y2, alert.TriggeredAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}

	return result.LastInsertId()
}

func alertWhere(filter *models.AlertFilter) (string, []interface{}) {
	where := " WHERE 1=1"
	var args []interface{}
	if filter == nil {
		return where, args
	}
	if filter.Camera != "" {
		where += " AND camera = ?"
		args = append(args, filter.Camera)
	}
	if filter.SessionID != "" {
		where += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}
	return where, args
}

// GetAll returns alerts newest first.
func (r *AlertRepository) GetAll(filter *models.AlertFilter) ([]models.Alert, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := alertWhere(filter)
	query := `
		SELECT id, alert_id, session_id, camera, label, confidence, frame_index, x1, y1, x2, y2, triggered_at
		FROM alerts` + where + ` ORDER BY triggered_at DESC, id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.ID, &a.AlertID, &a.SessionID, &a.Camera, &a.Label, &a.Confidence, &a.FrameIndex,
			&a.X1, &a.Y1, &a.X2, &a.Y2, &a.TriggeredAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// Count returns the number of alerts matching the filter. Limit is ignored.
func (r *AlertRepository) Count(filter *models.AlertFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := alertWhere(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM alerts`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}
