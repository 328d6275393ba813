package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"firewatch/internal/config"
	"firewatch/internal/logger"
	"firewatch/internal/repository/sqlite"
	"firewatch/internal/services/storage"
)

// reindex restores snapshot rows for image files the database has lost.
func main() {
	cfg := config.Load()
	imagesDir := flag.String("images", cfg.ImageDirectory, "Directory containing snapshots")
	dbPath := flag.String("db", cfg.DatabasePath, "Database path")
	flag.Parse()

	cfg.ImageDirectory = *imagesDir
	cfg.DatabasePath = *dbPath

	fmt.Printf("Indexing snapshots from %s into %s\n", *imagesDir, *dbPath)

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	snapshotRepo := sqlite.NewSnapshotRepository(db)
	svc := storage.NewSnapshotService(cfg, logger.NewWriterLogger(os.Stdout), snapshotRepo, sqlite.NewDetectionRepository(db))

	added, err := svc.Reindex()
	if err != nil {
		log.Fatalf("Reindex failed: %v", err)
	}
	fmt.Printf("✅ Indexed %d snapshots\n", added)

	stats, err := snapshotRepo.GetStats()
	if err != nil {
		return
	}
	fmt.Printf("\n📊 Database Statistics:\n")
	fmt.Printf("   Total snapshots: %d\n", stats.TotalSnapshots)
	fmt.Printf("   Total size: %d bytes\n", stats.TotalSizeBytes)
	for camera, count := range stats.PerCamera {
		fmt.Printf("      - %s: %d snapshots\n", camera, count)
	}
}
