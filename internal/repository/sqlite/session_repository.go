package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"firewatch/internal/models"
)

// SessionRepository implements repository.SessionRepository for SQLite.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Start records a newly started session.
func (r *SessionRepository) Start(session *models.Session) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO sessions (id, camera, source, started_at)
		VALUES (?, ?, ?, ?)
	`, session.ID, session.Camera, session.Source, session.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Finish stores the final counters of a session.
func (r *SessionRepository) Finish(id string, endedAt time.Time, frames int64, alertActive bool, stopReason string) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		UPDATE sessions SET ended_at = ?, frames = ?, alert_active = ?, stop_reason = ?
		WHERE id = ?
	`, endedAt, frames, alertActive, stopReason, id)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s not found", id)
	}
	return nil
}

func scanSession(row interface{ Scan(...interface{}) error }) (*models.Session, error) {
	var s models.Session
	var ended sql.NullTime
	if err := row.Scan(&s.ID, &s.Camera, &s.Source, &s.StartedAt, &ended, &s.Frames, &s.AlertActive, &s.StopReason); err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		s.EndedAt = &t
	}
	return &s, nil
}

const sessionColumns = `id, camera, source, started_at, ended_at, frames, alert_active, stop_reason`

// GetByID retrieves a session. Returns nil when it does not exist.
func (r *SessionRepository) GetByID(id string) (*models.Session, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	s, err := scanSession(r.db.Conn().QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// GetRecent returns up to limit sessions, most recently started first.
func (r *SessionRepository) GetRecent(limit int) ([]models.Session, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Conn().Query(`SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}
