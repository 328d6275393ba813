package handlers

import (
	"errors"
	"net/http"

	"firewatch/internal/dto"
	"firewatch/internal/logger"
	"firewatch/internal/models"
	"firewatch/internal/repository"
	"firewatch/internal/services"

	"github.com/hybridgroup/mjpeg"
)

// SessionController is the part of services.Manager the HTTP layer drives.
type SessionController interface {
	Statuses() []dto.SessionStatus
	Restart(camera string) error
	Stream(camera string) (*mjpeg.Stream, bool)
}

// GetSessionsHandler returns the live status of every camera's session.
func GetSessionsHandler(ctrl SessionController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, ctrl.Statuses())
	}
}

// GetSessionHistoryHandler returns recorded sessions, newest first.
func GetSessionHistoryHandler(logger *logger.Logger, sessionRepo repository.SessionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := sessionRepo.GetRecent(atoiDefault(r.URL.Query().Get("limit"), 0))
		if err != nil {
			logger.Error("Error querying sessions: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if sessions == nil {
			sessions = []models.Session{}
		}
		writeJSON(w, logger, http.StatusOK, sessions)
	}
}

// RestartSessionHandler starts a fresh session, with a re-armed alert, for
// the camera named by the "camera" query parameter.
func RestartSessionHandler(ctrl SessionController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		camera := r.URL.Query().Get("camera")
		if camera == "" {
			http.Error(w, "Camera parameter is required", http.StatusBadRequest)
			return
		}

		if err := ctrl.Restart(camera); err != nil {
			if errors.Is(err, services.ErrUnknownCamera) {
				http.Error(w, "Unknown camera", http.StatusNotFound)
				return
			}
			logger.Error("Failed to restart %s: %v", camera, err)
			http.Error(w, "Failed to restart session", http.StatusInternalServerError)
			return
		}

		logger.Info("Session restarted for camera %s", camera)
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "restarted", "camera": camera})
	}
}
