package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"firewatch/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// ========================================
// Database Tests
// ========================================

func TestNew_CreatesFileAndDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "nested", "firewatch.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}
}

func TestDB_ConcurrentInserts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSnapshotRepository(db)

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(idx int) {
			snap := &models.Snapshot{
				Filename:  fmt.Sprintf("concurrent_%d.jpg", idx),
				Camera:    "cam0",
				Timestamp: time.Now(),
				FilePath:  "/images/",
				FileSize:  100,
			}
			if _, err := repo.Insert(snap); err != nil {
				t.Errorf("Concurrent insert %d failed: %v", idx, err)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	count, err := repo.GetTotalCount(&models.SnapshotFilter{})
	if err != nil {
		t.Fatalf("GetTotalCount failed: %v", err)
	}
	if count != 10 {
		t.Errorf("Expected 10 snapshots, got %d", count)
	}
}

// ========================================
// Snapshot + Detection Tests
// ========================================

func TestSnapshotWithDetections_FullFlow(t *testing.T) {
	db := setupTestDB(t)
	snapshots := NewSnapshotRepository(db)
	detections := NewDetectionRepository(db)

	ts := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	id, err := snapshots.Insert(&models.Snapshot{
		Filename:  "2026-03-14_10-30-00_kitchen_fire.jpg",
		Camera:    "kitchen",
		SessionID: "s-1",
		Timestamp: ts,
		FilePath:  "/images/2026-03-14_10-30-00_kitchen_fire.jpg",
		FileSize:  2048,
	})
	if err != nil {
		t.Fatalf("Insert snapshot failed: %v", err)
	}

	err = detections.InsertBatch([]models.Detection{
		{SnapshotID: id, ObjectName: "fire", X1: 10, Y1: 20, X2: 110, Y2: 220, Confidence: 0.91},
		{SnapshotID: id, ObjectName: "smoke", X1: 5, Y1: 5, X2: 50, Y2: 50, Confidence: 0.61},
		{SnapshotID: id, ObjectName: "fire", X1: 300, Y1: 40, X2: 380, Y2: 90, Confidence: 0.55},
	})
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	got, err := snapshots.GetByID(id)
	if err != nil || got == nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Camera != "kitchen" || got.SessionID != "s-1" || got.FileSize != 2048 {
		t.Errorf("Unexpected snapshot: %+v", got)
	}

	names, err := detections.GetObjectNamesBySnapshotID(id)
	if err != nil {
		t.Fatalf("GetObjectNamesBySnapshotID failed: %v", err)
	}
	if len(names) != 2 || names[0] != "fire" || names[1] != "smoke" {
		t.Errorf("Expected [fire smoke], got %v", names)
	}

	full, err := detections.GetBySnapshotID(id)
	if err != nil {
		t.Fatalf("GetBySnapshotID failed: %v", err)
	}
	if len(full) != 3 {
		t.Fatalf("Expected 3 detections, got %d", len(full))
	}
	if full[0].X1 != 10 || full[0].Y2 != 220 {
		t.Errorf("Box not preserved: %+v", full[0])
	}

	byObject, err := snapshots.GetAll(&models.SnapshotFilter{Object: "smoke"})
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(byObject) != 1 {
		t.Errorf("Expected 1 snapshot with smoke, got %d", len(byObject))
	}

	stats, err := snapshots.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalSnapshots != 1 || stats.TotalSizeBytes != 2048 {
		t.Errorf("Unexpected totals: %+v", stats)
	}
	if stats.ObjectCounts["fire"] != 2 || stats.PerCamera["kitchen"] != 1 {
		t.Errorf("Unexpected breakdown: %+v", stats)
	}

	if err := snapshots.Delete(id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	remaining, _ := detections.GetBySnapshotID(id)
	if len(remaining) != 0 {
		t.Errorf("Expected 0 detections after delete, got %d", len(remaining))
	}
	missing, err := snapshots.GetByID(id)
	if err != nil || missing != nil {
		t.Errorf("Expected nil snapshot after delete, got %+v (%v)", missing, err)
	}
}

func TestSnapshotRepository_FiltersAndPagination(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSnapshotRepository(db)

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		camera := "cam0"
		if i%2 == 1 {
			camera = "cam1"
		}
		_, err := repo.Insert(&models.Snapshot{
			Filename:  fmt.Sprintf("snap_%d.jpg", i),
			Camera:    camera,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			FilePath:  "/images",
			FileSize:  int64(100 * (i + 1)),
		})
		if err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
	}

	tests := []struct {
		name     string
		filter   *models.SnapshotFilter
		expected int
	}{
		{"no filter", nil, 6},
		{"camera", &models.SnapshotFilter{Camera: "cam1"}, 3},
		{"limit", &models.SnapshotFilter{Limit: 4}, 4},
		{"limit with offset", &models.SnapshotFilter{Limit: 4, Offset: 4}, 2},
		{"unknown camera", &models.SnapshotFilter{Camera: "garage"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetAll(tt.filter)
			if err != nil {
				t.Fatalf("GetAll failed: %v", err)
			}
			if len(got) != tt.expected {
				t.Errorf("Expected %d snapshots, got %d", tt.expected, len(got))
			}
		})
	}

	all, _ := repo.GetAll(nil)
	if all[0].Filename != "snap_5.jpg" {
		t.Errorf("Expected newest first, got %s", all[0].Filename)
	}

	cameras, err := repo.GetCameras()
	if err != nil {
		t.Fatalf("GetCameras failed: %v", err)
	}
	if len(cameras) != 2 {
		t.Errorf("Expected 2 cameras, got %v", cameras)
	}

	size, err := repo.GetTotalSize()
	if err != nil {
		t.Fatalf("GetTotalSize failed: %v", err)
	}
	if size != 2100 {
		t.Errorf("Expected total size 2100, got %d", size)
	}

	if err := repo.DeleteByFilename("snap_0.jpg"); err != nil {
		t.Fatalf("DeleteByFilename failed: %v", err)
	}
	if exists, _ := repo.Exists("snap_0.jpg"); exists {
		t.Error("snap_0.jpg should be gone")
	}
	if err := repo.DeleteByFilename("never_stored.jpg"); err != nil {
		t.Errorf("Deleting an unknown filename should not fail: %v", err)
	}

	if err := repo.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	if count, _ := repo.GetTotalCount(nil); count != 0 {
		t.Errorf("Expected 0 snapshots after DeleteAll, got %d", count)
	}
}

// ========================================
// Alert Tests
// ========================================

func TestAlertRepository_InsertAndQuery(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAlertRepository(db)

	base := time.Date(2026, 6, 2, 12, 0, 0, 0, time.UTC)
	alerts := []models.Alert{
		{AlertID: "a1", SessionID: "s1", Camera: "kitchen", Label: "fire", Confidence: 0.8, FrameIndex: 10, TriggeredAt: base},
		{AlertID: "a2", SessionID: "s2", Camera: "garage", Label: "fire", Confidence: 0.7, FrameIndex: 20, TriggeredAt: base.Add(time.Minute)},
		{AlertID: "a3", SessionID: "s3", Camera: "kitchen", Label: "fire", Confidence: 0.9, FrameIndex: 30, X1: 1, Y1: 2, X2: 3, Y2: 4, TriggeredAt: base.Add(2 * time.Minute)},
	}
	for i := range alerts {
		if _, err := repo.Insert(&alerts[i]); err != nil {
			t.Fatalf("Insert %s failed: %v", alerts[i].AlertID, err)
		}
	}

	if _, err := repo.Insert(&alerts[0]); err == nil {
		t.Error("Expected duplicate alert id to be rejected")
	}

	kitchen, err := repo.GetAll(&models.AlertFilter{Camera: "kitchen"})
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(kitchen) != 2 {
		t.Fatalf("Expected 2 kitchen alerts, got %d", len(kitchen))
	}
	if kitchen[0].AlertID != "a3" || kitchen[0].X2 != 3 {
		t.Errorf("Expected newest alert a3 first, got %+v", kitchen[0])
	}

	limited, _ := repo.GetAll(&models.AlertFilter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("Expected 1 alert with limit, got %d", len(limited))
	}

	count, err := repo.Count(&models.AlertFilter{SessionID: "s2"})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 alert for s2, got %d", count)
	}
}

// ========================================
// Session Tests
// ========================================

func TestSessionRepository_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db)

	started := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	if err := repo.Start(&models.Session{ID: "sess-1", Camera: "cam0", Source: "0", StartedAt: started}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	got, err := repo.GetByID("sess-1")
	if err != nil || got == nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.EndedAt != nil {
		t.Error("Running session should have no end time")
	}

	ended := started.Add(5 * time.Minute)
	if err := repo.Finish("sess-1", ended, 900, true, "source_exhausted"); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	got, _ = repo.GetByID("sess-1")
	if got.EndedAt == nil || !got.EndedAt.Equal(ended) {
		t.Errorf("Expected end time %v, got %v", ended, got.EndedAt)
	}
	if got.Frames != 900 || !got.AlertActive || got.StopReason != "source_exhausted" {
		t.Errorf("Unexpected finished session: %+v", got)
	}

	if err := repo.Finish("missing", ended, 0, false, ""); err == nil {
		t.Error("Expected error finishing an unknown session")
	}

	if err := repo.Start(&models.Session{ID: "sess-2", Camera: "cam0", Source: "0", StartedAt: ended}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	recent, err := repo.GetRecent(10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "sess-2" {
		t.Errorf("Expected sess-2 first, got %+v", recent)
	}

	missing, err := repo.GetByID("nope")
	if err != nil || missing != nil {
		t.Errorf("Expected nil for unknown session, got %+v (%v)", missing, err)
	}
}
