package handlers

import (
	"net/http"

	"firewatch/internal/logger"
	"firewatch/internal/models"
	"firewatch/internal/repository"
)

const defaultAlertLimit = 50

// GetAlertsHandler returns raised alerts, newest first, optionally narrowed
// by the "camera" and "session" query parameters.
func GetAlertsHandler(logger *logger.Logger, alertRepo repository.AlertRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := &models.AlertFilter{
			Camera:    q.Get("camera"),
			SessionID: q.Get("session"),
			Limit:     atoiDefault(q.Get("limit"), defaultAlertLimit),
		}

		alerts, err := alertRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying alerts: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if alerts == nil {
			alerts = []models.Alert{}
		}
		writeJSON(w, logger, http.StatusOK, alerts)
	}
}
