package handlers

import (
	"errors"
	"net/http"
	"path/filepath"

	"firewatch/internal/config"
	"firewatch/internal/dto"
	"firewatch/internal/logger"
	"firewatch/internal/models"
	"firewatch/internal/repository"
	"firewatch/internal/services/storage"
)

const defaultPageSize = 24

// GetSnapshotsHandler returns a filtered, paginated list of stored snapshots.
// Response is JSON of type dto.SnapshotsData.
func GetSnapshotsHandler(cfg *config.Config, logger *logger.Logger,
	snapshotRepo repository.SnapshotRepository, detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), defaultPageSize)

		filter := &models.SnapshotFilter{
			Camera:     q.Get("camera"),
			Object:     q.Get("object"),
			StartDate:  parseDate(q.Get("dateAfter")),
			EndDate:    parseDate(q.Get("dateBefore")),
			TimeAfter:  parseTimeOfDay(q.Get("timeAfter")),
			TimeBefore: parseTimeOfDay(q.Get("timeBefore")),
			Limit:      limit,
			Offset:     (page - 1) * limit,
		}

		snaps, err := snapshotRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying snapshots: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := snapshotRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting snapshots: %v", err)
			totalCount = len(snaps)
		}

		totalSize, err := snapshotRepo.GetTotalSize()
		if err != nil {
			logger.Error("Error summing snapshot sizes: %v", err)
		}

		infos := make([]dto.SnapshotInfo, 0, len(snaps))
		for _, snap := range snaps {
			objects, err := detectionRepo.GetObjectNamesBySnapshotID(snap.ID)
			if err != nil {
				logger.Error("Failed to load detections of snapshot %d: %v", snap.ID, err)
			}
			infos = append(infos, dto.SnapshotInfo{
				ID:        snap.ID,
				Name:      snap.Filename,
				Date:      snap.Timestamp,
				TimeOfDay: snap.Timestamp,
				Camera:    snap.Camera,
				Objects:   objects,
			})
		}

		writeJSON(w, logger, http.StatusOK, dto.SnapshotsData{
			Snapshots:   infos,
			ImagesDir:   cfg.ImageDirectory,
			Size:        totalSize,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// ViewSnapshotHandler serves a single snapshot file named by the "image" query parameter.
func ViewSnapshotHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		image := r.URL.Query().Get("image")
		if image == "" {
			http.Error(w, "Image parameter is required", http.StatusBadRequest)
			return
		}
		if image != filepath.Base(image) || image == "." || image == ".." {
			http.Error(w, "Invalid image name", http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, filepath.Join(cfg.ImageDirectory, image))
	}
}

// GetFiltersHandler returns the cameras and object names available for filtering.
func GetFiltersHandler(logger *logger.Logger, snapshotRepo repository.SnapshotRepository,
	detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cameras, err := snapshotRepo.GetCameras()
		if err != nil {
			logger.Error("Failed to get cameras: %v", err)
		}
		if cameras == nil {
			cameras = []string{}
		}

		objects, err := detectionRepo.GetAllObjectNames()
		if err != nil {
			logger.Error("Failed to get objects: %v", err)
		}
		if objects == nil {
			objects = []string{}
		}

		writeJSON(w, logger, http.StatusOK, map[string]interface{}{
			"cameras": cameras,
			"objects": objects,
		})
	}
}

// GetStatsHandler returns snapshot statistics.
func GetStatsHandler(logger *logger.Logger, snapshotRepo repository.SnapshotRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := snapshotRepo.GetStats()
		if err != nil {
			logger.Error("Failed to get stats: %v", err)
			http.Error(w, "Failed to retrieve stats", http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, http.StatusOK, stats)
	}
}

// DeleteSnapshotHandler removes a snapshot, named by the "filename" query
// parameter, from disk and the database.
func DeleteSnapshotHandler(snapshots *storage.SnapshotService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		filename := r.URL.Query().Get("filename")
		if filename == "" {
			http.Error(w, "Filename required", http.StatusBadRequest)
			return
		}

		if err := snapshots.Delete(filename); err != nil {
			if errors.Is(err, storage.ErrInvalidFilename) {
				http.Error(w, "Invalid filename", http.StatusBadRequest)
				return
			}
			logger.Error("Failed to delete snapshot %s: %v", filename, err)
			http.Error(w, "Failed to delete snapshot", http.StatusInternalServerError)
			return
		}

		logger.Info("Deleted snapshot: %s", filename)
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "deleted", "filename": filename})
	}
}

// ClearSnapshotsHandler deletes every snapshot file and row.
func ClearSnapshotsHandler(snapshots *storage.SnapshotService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := snapshots.Clear(); err != nil {
			logger.Error("Error clearing snapshots: %v", err)
			http.Error(w, "Failed to clear snapshots", http.StatusInternalServerError)
			return
		}
		logger.Info("All snapshots cleared from directory: %s", snapshots.ImagesDir())
		w.WriteHeader(http.StatusNoContent)
	}
}
