package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"firewatch/internal/config"
	"firewatch/internal/logger"
	"firewatch/internal/repository/sqlite"
	"firewatch/internal/routes"
	"firewatch/internal/services"
	"firewatch/internal/services/ai"
	"firewatch/internal/services/alert"
	"firewatch/internal/services/mqtt"
	"firewatch/internal/services/overlay"
	"firewatch/internal/services/storage"
	"firewatch/internal/services/websocket"
)

const (
	shutdownTimeout = 5 * time.Second
	// alarmDrainTimeout bounds how long shutdown waits for an alarm that is
	// still playing, so its notifiers can store the alert.
	alarmDrainTimeout = 10 * time.Second
)

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	detector   *ai.DetectorService
	compositor *overlay.Compositor
	hub        *websocket.HubService
	snapshots  *storage.SnapshotService
	publisher  *mqtt.Publisher
	manager    *services.Manager
	server     *http.Server
}

// NewApp loads configuration and wires every service. Resources opened
// before a failure are released.
func NewApp() (_ *App, err error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.NewLogger(cfg.LogDirectory)
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, logger: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.db, err = sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	snapshotRepo := sqlite.NewSnapshotRepository(a.db)
	detectionRepo := sqlite.NewDetectionRepository(a.db)
	alertRepo := sqlite.NewAlertRepository(a.db)
	sessionRepo := sqlite.NewSessionRepository(a.db)

	a.compositor, err = overlay.NewCompositor(cfg.WarningImagePath)
	if err != nil {
		return nil, err
	}

	player, err := alert.NewCommandPlayer(cfg.AlertPlayer)
	if err != nil {
		return nil, err
	}

	a.detector, err = ai.NewDetectorService(cfg, log)
	if err != nil {
		return nil, err
	}
	a.hub = websocket.NewHubService(log)
	a.snapshots = storage.NewSnapshotService(cfg, log, snapshotRepo, detectionRepo)

	notifiers := []alert.Notifier{alert.NewRecorder(alertRepo), a.hub}
	if cfg.MQTTBroker != "" {
		a.publisher = mqtt.NewPublisher(cfg, log)
		notifiers = append(notifiers, a.publisher)
	}

	a.manager = services.NewManager(services.ManagerOptions{
		Config:    cfg,
		Logger:    log,
		Detector:  a.detector,
		Renderer:  a.compositor,
		Snapshots: a.snapshots,
		Hub:       a.hub,
		Sessions:  sessionRepo,
		Player:    player,
		Notifiers: notifiers,
	})

	a.server = &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: routes.SetupRoutes(routes.Dependencies{
			Config:        cfg,
			Logger:        log,
			Sessions:      a.manager,
			Hub:           a.hub,
			Snapshots:     a.snapshots,
			SnapshotRepo:  snapshotRepo,
			DetectionRepo: detectionRepo,
			AlertRepo:     alertRepo,
			SessionRepo:   sessionRepo,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Run starts the background services, every capture session and the HTTP
// server, and blocks until ctx is done or the server fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var background sync.WaitGroup
	background.Add(2)
	go func() {
		defer background.Done()
		a.hub.Run(ctx)
	}()
	go func() {
		defer background.Done()
		a.snapshots.Run(ctx)
	}()

	if a.publisher != nil {
		if err := a.publisher.Connect(ctx); err != nil {
			a.logger.Warning("MQTT alerts disabled: %v", err)
		}
	}

	if err := a.manager.Start(ctx); err != nil {
		cancel()
		background.Wait()
		return err
	}

	fmt.Printf("🔥 Firewatch\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("📷 Cameras: %v\n", a.manager.Cameras())
	fmt.Printf("🤖 Model: %s (%s)\n", a.config.ModelPath, a.config.ModelFormat)
	fmt.Printf("📁 Snapshots: %s\n", a.config.ImageDirectory)

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case runErr = <-serverErr:
		a.logger.Error("HTTP server failed: %v", runErr)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warning("HTTP server shutdown: %v", err)
	}

	cancel()
	a.manager.StopAll()
	a.manager.WaitAlarms(alarmDrainTimeout)
	background.Wait()

	return runErr
}

// Close releases the resources opened by NewApp.
func (a *App) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.detector != nil {
		a.detector.Close()
	}
	if a.compositor != nil {
		a.compositor.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	a.logger.Close()
}
