package sqlite

import (
	"database/sql"
	"fmt"

	"firewatch/internal/models"
)

// SnapshotRepository implements repository.SnapshotRepository for SQLite.
type SnapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a new SQLite snapshot repository.
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

const snapshotColumns = `i.id, i.filename, i.camera, i.session_id, i.timestamp, i.filepath, i.filesize`

func scanSnapshot(row interface{ Scan(...interface{}) error }, snap *models.Snapshot) error {
	return row.Scan(&snap.ID, &snap.Filename, &snap.Camera, &snap.SessionID, &snap.Timestamp, &snap.FilePath, &snap.FileSize)
}

// Insert adds a new snapshot record to the database.
func (r *SnapshotRepository) Insert(snap *models.Snapshot) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO snapshots (filename, camera, session_id, timestamp, filepath, filesize)
		VALUES (?, ?, ?, ?, ?, ?)
	`, snap.Filename, snap.Camera, snap.SessionID, snap.Timestamp, snap.FilePath, snap.FileSize)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves a snapshot by its ID. Returns nil when it does not exist.
func (r *SnapshotRepository) GetByID(id int64) (*models.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var snap models.Snapshot
	err := scanSnapshot(r.db.Conn().QueryRow(`SELECT `+snapshotColumns+` FROM snapshots i WHERE i.id = ?`, id), &snap)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &snap, nil
}

// GetByFilename retrieves a snapshot by its filename. Returns nil when it does not exist.
func (r *SnapshotRepository) GetByFilename(filename string) (*models.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var snap models.Snapshot
	err := scanSnapshot(r.db.Conn().QueryRow(`SELECT `+snapshotColumns+` FROM snapshots i WHERE i.filename = ?`, filename), &snap)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &snap, nil
}

// applySnapshotFilter appends WHERE conditions for the filter to query.
func applySnapshotFilter(query string, args []interface{}, filter *models.SnapshotFilter) (string, []interface{}) {
	if filter == nil {
		return query, args
	}

	if filter.Camera != "" {
		query += " AND i.camera = ?"
		args = append(args, filter.Camera)
	}

	if filter.Object != "" {
		query += " AND d.object_name = ?"
		args = append(args, filter.Object)
	}

	if !filter.StartDate.IsZero() {
		query += " AND DATE(i.timestamp) >= DATE(?)"
		args = append(args, filter.StartDate)
	}

	if !filter.EndDate.IsZero() {
		query += " AND DATE(i.timestamp) <= DATE(?)"
		args = append(args, filter.EndDate)
	}

	if filter.TimeAfter != "" {
		query += " AND TIME(i.timestamp) >= TIME(?)"
		args = append(args, filter.TimeAfter)
	}

	if filter.TimeBefore != "" {
		query += " AND TIME(i.timestamp) <= TIME(?)"
		args = append(args, filter.TimeBefore)
	}

	return query, args
}

// GetAll retrieves snapshots based on filter criteria, newest first.
func (r *SnapshotRepository) GetAll(filter *models.SnapshotFilter) ([]models.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query, args := applySnapshotFilter(`
		SELECT DISTINCT `+snapshotColumns+`
		FROM snapshots i
		LEFT JOIN detections d ON i.id = d.snapshot_id
		WHERE 1=1
	`, nil, filter)

	query += " ORDER BY i.timestamp DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []models.Snapshot
	for rows.Next() {
		var snap models.Snapshot
		if err := scanSnapshot(rows, &snap); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, rows.Err()
}

// GetTotalCount returns the total count of snapshots matching the filter.
func (r *SnapshotRepository) GetTotalCount(filter *models.SnapshotFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query, args := applySnapshotFilter(`
		SELECT COUNT(DISTINCT i.id)
		FROM snapshots i
		LEFT JOIN detections d ON i.id = d.snapshot_id
		WHERE 1=1
	`, nil, filter)

	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}

	return count, nil
}

// GetTotalSize returns the summed file size of all stored snapshots.
func (r *SnapshotRepository) GetTotalSize() (int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var size int64
	if err := r.db.Conn().QueryRow(`SELECT COALESCE(SUM(filesize), 0) FROM snapshots`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to sum snapshot sizes: %w", err)
	}
	return size, nil
}

// Exists checks if a snapshot with the given filename exists.
func (r *SnapshotRepository) Exists(filename string) (bool, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM snapshots WHERE filename = ?`, filename).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check snapshot existence: %w", err)
	}
	return count > 0, nil
}

// GetCameras returns a list of unique camera names.
func (r *SnapshotRepository) GetCameras() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT DISTINCT camera FROM snapshots ORDER BY camera`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cameras: %w", err)
	}
	defer rows.Close()

	var cameras []string
	for rows.Next() {
		var camera string
		if err := rows.Scan(&camera); err != nil {
			return nil, fmt.Errorf("failed to scan camera: %w", err)
		}
		cameras = append(cameras, camera)
	}
	return cameras, rows.Err()
}

// GetStats returns statistics about stored snapshots.
func (r *SnapshotRepository) GetStats() (*models.SnapshotStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &models.SnapshotStats{
		PerCamera:    make(map[string]int),
		ObjectCounts: make(map[string]int),
	}

	if err := r.db.Conn().QueryRow(`SELECT COUNT(*), COALESCE(SUM(filesize), 0) FROM snapshots`).Scan(&stats.TotalSnapshots, &stats.TotalSizeBytes); err != nil {
		return nil, fmt.Errorf("failed to count snapshots: %w", err)
	}

	rows, err := r.db.Conn().Query(`SELECT camera, COUNT(*) FROM snapshots GROUP BY camera`)
	if err != nil {
		return nil, fmt.Errorf("failed to group snapshots by camera: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var camera string
		var count int
		if err := rows.Scan(&camera, &count); err != nil {
			return nil, err
		}
		stats.PerCamera[camera] = count
	}

	// Most detected objects
	objectRows, err := r.db.Conn().Query(`
		SELECT object_name, COUNT(*) as cnt
		FROM detections
		GROUP BY object_name
		ORDER BY cnt DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to group detections: %w", err)
	}
	defer objectRows.Close()

	for objectRows.Next() {
		var obj string
		var count int
		if err := objectRows.Scan(&obj, &count); err != nil {
			return nil, err
		}
		stats.ObjectCounts[obj] = count
	}

	return stats, nil
}

// Delete removes a snapshot and its detections by ID.
func (r *SnapshotRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections WHERE snapshot_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM snapshots WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// DeleteByFilename removes a snapshot by its filename. Unknown filenames are ignored.
func (r *SnapshotRepository) DeleteByFilename(filename string) error {
	r.db.Lock()
	defer r.db.Unlock()

	var snapshotID int64
	err := r.db.Conn().QueryRow(`SELECT id FROM snapshots WHERE filename = ?`, filename).Scan(&snapshotID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get snapshot id: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM detections WHERE snapshot_id = ?`, snapshotID); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM snapshots WHERE id = ?`, snapshotID); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// DeleteAll removes all snapshots and their detections.
func (r *SnapshotRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections`); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}

	return nil
}
