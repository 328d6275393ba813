package alert

import (
	"context"
	"fmt"

	"firewatch/internal/models"
	"firewatch/internal/repository"
)

// Recorder is a Notifier that stores alerts in the database.
type Recorder struct {
	repo repository.AlertRepository
}

// NewRecorder creates an alert recorder.
func NewRecorder(repo repository.AlertRepository) *Recorder {
	return &Recorder{repo: repo}
}

// Notify inserts the alert.
func (r *Recorder) Notify(_ context.Context, alert models.Alert) error {
	if _, err := r.repo.Insert(&alert); err != nil {
		return fmt.Errorf("failed to record alert %s: %w", alert.AlertID, err)
	}
	return nil
}
