package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"firewatch/internal/config"
	"firewatch/internal/handlers"
	"firewatch/internal/logger"
	"firewatch/internal/middleware"
	"firewatch/internal/repository"
	"firewatch/internal/services/storage"
	"firewatch/internal/services/websocket"
)

// StaticDir holds the HTML pages and assets of the web UI.
var StaticDir = "static"

// Dependencies are the services the HTTP API is built on.
type Dependencies struct {
	Config        *config.Config
	Logger        *logger.Logger
	Sessions      handlers.SessionController
	Hub           *websocket.HubService
	Snapshots     *storage.SnapshotService
	SnapshotRepo  repository.SnapshotRepository
	DetectionRepo repository.DetectionRepository
	AlertRepo     repository.AlertRepository
	SessionRepo   repository.SessionRepository
}

// dynamicHTMLHandler serves /path as StaticDir/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join(StaticDir, filepath.Clean("/"+path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers HTTP routes, static file serving, API endpoints,
// and wraps the mux with the authentication middleware.
func SetupRoutes(d Dependencies) http.Handler {
	cfg, log := d.Config, d.Logger
	mux := http.NewServeMux()

	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(StaticDir))))

	// Live view
	mux.HandleFunc("/stream", handlers.StreamHandler(d.Sessions))
	mux.HandleFunc("/api/view", handlers.ViewWebsocketHandler(d.Hub, log))

	// Sessions and alerts
	mux.HandleFunc("/api/sessions", handlers.GetSessionsHandler(d.Sessions, log))
	mux.HandleFunc("/api/sessions/history", handlers.GetSessionHistoryHandler(log, d.SessionRepo))
	mux.HandleFunc("/api/sessions/restart", handlers.RestartSessionHandler(d.Sessions, log))
	mux.HandleFunc("/api/alerts", handlers.GetAlertsHandler(log, d.AlertRepo))

	// Snapshots
	mux.HandleFunc("/api/snapshots", handlers.GetSnapshotsHandler(cfg, log, d.SnapshotRepo, d.DetectionRepo))
	mux.HandleFunc("/api/snapshots/view", handlers.ViewSnapshotHandler(cfg))
	mux.HandleFunc("/api/snapshots/delete", handlers.DeleteSnapshotHandler(d.Snapshots, log))
	mux.HandleFunc("/api/snapshots/clear", handlers.ClearSnapshotsHandler(d.Snapshots, log))
	mux.HandleFunc("/api/snapshots/filters", handlers.GetFiltersHandler(log, d.SnapshotRepo, d.DetectionRepo))
	mux.HandleFunc("/api/snapshots/stats", handlers.GetStatsHandler(log, d.SnapshotRepo))

	// Log endpoints
	for _, level := range []struct{ path, file string }{
		{"/logs/info", logger.InfoFile},
		{"/logs/warning", logger.WarningFile},
		{"/logs/error", logger.ErrorFile},
	} {
		mux.HandleFunc(level.path, handlers.ShowLogHandler(cfg, level.file))
		mux.HandleFunc(level.path+"/clear", handlers.ClearLogHandler(log, level.file))
	}

	// Auth endpoints
	mux.HandleFunc("/auth/login", handlers.LoginHandler(cfg, log))
	mux.HandleFunc("/auth/logout", handlers.LogoutHandler)

	// /settings -> static/settings.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	return middleware.AuthMiddleware(mux)
}
