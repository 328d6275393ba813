package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"firewatch/internal/config"
	"firewatch/internal/dto"
	"firewatch/internal/logger"
	"firewatch/internal/models"
	"firewatch/internal/repository"

	"gocv.io/x/gocv"
)

const (
	// DefaultBufferLimit limits how many snapshots per camera are buffered between flushes.
	DefaultBufferLimit = 10
	// DefaultFlushInterval is how often buffered snapshots are written out.
	DefaultFlushInterval = 30 * time.Second

	timestampLayout = "2006-01-02_15-04-05.000"
)

// ErrInvalidFilename is returned for files that do not follow the snapshot naming scheme.
var ErrInvalidFilename = errors.New("invalid snapshot filename")

// SnapshotService buffers annotated detection frames in memory and
// periodically writes them to disk and the database.
type SnapshotService struct {
	imagesDir     string
	bufferLimit   int
	flushInterval time.Duration
	snapshots     []dto.BufferedSnapshot
	bufferCount   map[string]int
	mu            sync.Mutex
	logger        *logger.Logger
	snapshotRepo  repository.SnapshotRepository
	detectionRepo repository.DetectionRepository
}

// NewSnapshotService creates a SnapshotService. Repositories may be nil, in
// which case snapshots are only written to disk.
func NewSnapshotService(cfg *config.Config, log *logger.Logger, snapshotRepo repository.SnapshotRepository, detectionRepo repository.DetectionRepository) *SnapshotService {
	limit := cfg.SnapshotBufferLimit
	if limit <= 0 {
		limit = DefaultBufferLimit
	}
	interval := time.Duration(cfg.SnapshotFlushInterval) * time.Second
	if interval <= 0 {
		interval = DefaultFlushInterval
	}

	return &SnapshotService{
		imagesDir:     cfg.ImageDirectory,
		bufferLimit:   limit,
		flushInterval: interval,
		bufferCount:   make(map[string]int),
		logger:        log,
		snapshotRepo:  snapshotRepo,
		detectionRepo: detectionRepo,
	}
}

// ImagesDir returns the directory snapshots are written to.
func (s *SnapshotService) ImagesDir() string {
	return s.imagesDir
}

// Run flushes on a ticker until ctx is done, then flushes one last time.
func (s *SnapshotService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Record encodes frame as JPEG and buffers it with its detections.
func (s *SnapshotService) Record(camera, sessionID string, frame gocv.Mat, detections []dto.DetectionResult) {
	if !s.hasRoom(camera) {
		return
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		s.logger.Error("Failed to encode snapshot for %s: %v", camera, err)
		return
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	s.Add(data, camera, sessionID, detections)
}

func (s *SnapshotService) hasRoom(camera string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bufferCount[camera] < s.bufferLimit
}

// Add buffers an encoded snapshot. It reports false when the camera's buffer is full.
func (s *SnapshotService) Add(data []byte, camera, sessionID string, detections []dto.DetectionResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bufferCount[camera] >= s.bufferLimit {
		return false
	}

	s.snapshots = append(s.snapshots, dto.BufferedSnapshot{
		Timestamp:  time.Now(),
		Camera:     camera,
		SessionID:  sessionID,
		Detections: detections,
		Data:       data,
	})
	s.bufferCount[camera]++
	s.logger.Info("Snapshot buffer for camera %s: %d/%d", camera, s.bufferCount[camera], s.bufferLimit)
	return true
}

// Flush writes buffered snapshots to disk and the database and resets the
// buffer. It returns how many snapshots were saved.
func (s *SnapshotService) Flush() int {
	s.mu.Lock()
	pending := s.snapshots
	s.snapshots = nil
	s.bufferCount = make(map[string]int)
	s.mu.Unlock()

	if len(pending) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return 0
	}

	saved := 0
	for _, snap := range pending {
		filename := SnapshotFilename(snap.Timestamp, snap.Camera, snap.Detections)
		fullpath := filepath.Join(s.imagesDir, filename)

		if err := os.WriteFile(fullpath, snap.Data, 0644); err != nil {
			s.logger.Error("Error saving snapshot %s: %v", filename, err)
			continue
		}

		if err := s.store(snap, filename, fullpath); err != nil {
			s.logger.Error("Error saving snapshot %s to database: %v", filename, err)
			continue
		}
		saved++
	}

	s.logger.Info("Flushed %d snapshots to disk", saved)
	return saved
}

func (s *SnapshotService) store(snap dto.BufferedSnapshot, filename, fullpath string) error {
	if s.snapshotRepo == nil {
		return nil
	}

	id, err := s.snapshotRepo.Insert(&models.Snapshot{
		Filename:  filename,
		Camera:    snap.Camera,
		SessionID: snap.SessionID,
		Timestamp: snap.Timestamp,
		FilePath:  fullpath,
		FileSize:  int64(len(snap.Data)),
	})
	if err != nil {
		return err
	}

	if s.detectionRepo == nil || len(snap.Detections) == 0 {
		return nil
	}

	rows := make([]models.Detection, 0, len(snap.Detections))
	for _, det := range snap.Detections {
		rows = append(rows, models.Detection{
			SnapshotID: id,
			ObjectName: det.Label,
			X1:         det.Box.Min.X,
			Y1:         det.Box.Min.Y,
			X2:         det.Box.Max.X,
			Y2:         det.Box.Max.Y,
			Confidence: det.Confidence,
		})
	}
	return s.detectionRepo.InsertBatch(rows)
}

// Delete removes a snapshot file and its database rows.
func (s *SnapshotService) Delete(filename string) error {
	if filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}

	if err := os.Remove(filepath.Join(s.imagesDir, filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", filename, err)
	}
	if s.snapshotRepo != nil {
		return s.snapshotRepo.DeleteByFilename(filename)
	}
	return nil
}

// Clear removes every snapshot file and row.
func (s *SnapshotService) Clear() error {
	files, err := os.ReadDir(s.imagesDir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unable to read snapshot directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.imagesDir, file.Name())); err != nil {
			s.logger.Error("Error deleting file %s: %v", file.Name(), err)
		}
	}

	if s.snapshotRepo != nil {
		return s.snapshotRepo.DeleteAll()
	}
	return nil
}

// Reindex inserts database rows for snapshot files that have none. Files
// that do not follow the naming scheme are skipped.
func (s *SnapshotService) Reindex() (int, error) {
	if s.snapshotRepo == nil {
		return 0, errors.New("no snapshot repository configured")
	}

	files, err := os.ReadDir(s.imagesDir)
	if err != nil {
		return 0, fmt.Errorf("unable to read snapshot directory: %w", err)
	}

	added := 0
	for _, file := range files {
		if file.IsDir() || !strings.EqualFold(filepath.Ext(file.Name()), ".jpg") {
			continue
		}

		info, err := ParseSnapshotFilename(file.Name())
		if err != nil {
			s.logger.Warning("Skipping %s: %v", file.Name(), err)
			continue
		}

		exists, err := s.snapshotRepo.Exists(file.Name())
		if err != nil {
			return added, err
		}
		if exists {
			continue
		}

		stat, err := file.Info()
		if err != nil {
			s.logger.Warning("Skipping %s: %v", file.Name(), err)
			continue
		}

		id, err := s.snapshotRepo.Insert(&models.Snapshot{
			Filename:  file.Name(),
			Camera:    info.Camera,
			Timestamp: info.Date,
			FilePath:  filepath.Join(s.imagesDir, file.Name()),
			FileSize:  stat.Size(),
		})
		if err != nil {
			return added, err
		}

		if s.detectionRepo != nil && len(info.Objects) > 0 {
			rows := make([]models.Detection, 0, len(info.Objects))
			for _, obj := range info.Objects {
				rows = append(rows, models.Detection{SnapshotID: id, ObjectName: obj})
			}
			if err := s.detectionRepo.InsertBatch(rows); err != nil {
				return added, err
			}
		}
		added++
	}

	return added, nil
}

// SnapshotFilename builds "<timestamp>_<camera>_<label>_<label>.jpg" with
// each distinct label listed once in sorted order.
func SnapshotFilename(ts time.Time, camera string, detections []dto.DetectionResult) string {
	seen := make(map[string]bool)
	var labels []string
	for _, det := range detections {
		label := sanitize(det.Label)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
	}
	sort.Strings(labels)

	parts := append([]string{ts.Format(timestampLayout), sanitize(camera)}, labels...)
	return strings.Join(parts, "_") + ".jpg"
}

// ParseSnapshotFilename recovers the metadata encoded by SnapshotFilename.
func ParseSnapshotFilename(filename string) (dto.SnapshotInfo, error) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(base, "_")

	// [date, time, camera, label...]
	if len(parts) < 3 || parts[2] == "" {
		return dto.SnapshotInfo{}, fmt.Errorf("%w: %s", ErrInvalidFilename, filename)
	}

	ts, err := time.ParseInLocation(timestampLayout, parts[0]+"_"+parts[1], time.Local)
	if err != nil {
		return dto.SnapshotInfo{}, fmt.Errorf("%w: %s", ErrInvalidFilename, filename)
	}

	return dto.SnapshotInfo{
		Name:      filename,
		Date:      ts,
		TimeOfDay: ts,
		Camera:    parts[2],
		Objects:   parts[3:],
	}, nil
}

// sanitize keeps names from breaking the "_" separated filename.
func sanitize(name string) string {
	return strings.NewReplacer("_", "-", "/", "-", "\\", "-", " ", "-").Replace(strings.TrimSpace(name))
}
