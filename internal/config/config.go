package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Source names one video input. ID is either a device index ("0") or a file/URL.
type Source struct {
	Name string
	ID   string
}

type Config struct {
	Port     int
	Password string

	Sources []Source

	ModelPath           string
	ModelConfigPath     string
	ModelFormat         string // "yolo" or "ssd"
	ModelInputSize      int
	LabelsPath          string
	TargetLabel         string
	ConfidenceThreshold float64
	NMSThreshold        float64
	PredictionInterval  int // Detector runs on every N-th frame

	AlertFile        string
	AlertRepeats     int
	AlertPlayer      string
	WarningImagePath string
	Display          bool

	ImageDirectory        string
	DatabasePath          string
	SnapshotBufferLimit   int
	SnapshotFlushInterval int // seconds
	LogDirectory          string

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string
}

// Load reads configuration from the environment. Values from a .env file in the
// working directory are applied first; a missing file is not an error.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:                  getEnvAsInt("PORT", 8080),
		Password:              getEnv("PASSWORD", "firewatch"),
		Sources:               ParseSources(getEnv("SOURCES", "0")),
		ModelPath:             getEnv("MODEL_PATH", filepath.Join(".", "runs", "detect", "train", "weights", "best.onnx")),
		ModelConfigPath:       getEnv("MODEL_CONFIG_PATH", ""),
		ModelFormat:           strings.ToLower(getEnv("MODEL_FORMAT", "yolo")),
		ModelInputSize:        getEnvAsInt("MODEL_INPUT_SIZE", 640),
		LabelsPath:            getEnv("LABELS_PATH", filepath.Join(".", "dataSet", "data.yaml")),
		TargetLabel:           getEnv("TARGET_LABEL", "fire"),
		ConfidenceThreshold:   getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.5),
		NMSThreshold:          getEnvAsFloat("NMS_THRESHOLD", 0.45),
		PredictionInterval:    getEnvAsInt("PREDICTION_INTERVAL", 10),
		AlertFile:             getEnv("ALERT_FILE", filepath.Join(".", "sound.mp3")),
		AlertRepeats:          getEnvAsInt("ALERT_REPEATS", 5),
		AlertPlayer:           getEnv("ALERT_PLAYER", "ffplay -nodisp -autoexit -loglevel quiet"),
		WarningImagePath:      getEnv("WARNING_IMAGE_PATH", filepath.Join(".", "alert.png")),
		Display:               getEnvAsBool("SHOW_WINDOW", true),
		ImageDirectory:        getEnv("IMAGE_DIR", filepath.Join(".", "images")),
		DatabasePath:          getEnv("DATABASE_PATH", filepath.Join(".", "data", "firewatch.db")),
		SnapshotBufferLimit:   getEnvAsInt("SNAPSHOT_BUFFER_LIMIT", 10),
		SnapshotFlushInterval: getEnvAsInt("SNAPSHOT_FLUSH_INTERVAL", 30),
		LogDirectory:          getEnv("LOG_DIR", filepath.Join(".", "logs")),
		MQTTBroker:            getEnv("MQTT_BROKER", ""),
		MQTTTopic:             getEnv("MQTT_TOPIC", "firewatch/alerts"),
		MQTTClientID:          getEnv("MQTT_CLIENT_ID", "firewatch"),
	}
}

// Validate rejects values the capture loop cannot run with.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if seen[s.Name] {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		seen[s.Name] = true
	}
	// HighGUI windows are not safe to drive from several capture goroutines
	if c.Display && len(c.Sources) > 1 {
		return fmt.Errorf("SHOW_WINDOW supports a single source, got %d; disable it or use the MJPEG stream", len(c.Sources))
	}
	if c.PredictionInterval <= 0 {
		return fmt.Errorf("prediction interval must be positive, got %d", c.PredictionInterval)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be between 0 and 1, got %v", c.ConfidenceThreshold)
	}
	if c.AlertRepeats < 0 {
		return fmt.Errorf("alert repeats must not be negative, got %d", c.AlertRepeats)
	}
	if c.ModelFormat != "yolo" && c.ModelFormat != "ssd" {
		return fmt.Errorf("model format must be 'yolo' or 'ssd', got %q", c.ModelFormat)
	}
	if c.TargetLabel == "" {
		return fmt.Errorf("target label is required")
	}
	return nil
}

// SourceByName returns the configured source with the given name.
func (c *Config) SourceByName(name string) (Source, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}

// ParseSources parses "front=0,garage=rtsp://host/stream" or bare identifiers.
// Bare identifiers are named cam0, cam1, ... by position.
func ParseSources(value string) []Source {
	var sources []Source
	for i, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name := fmt.Sprintf("cam%d", i)
		id := part
		// URLs contain "=" in query strings, so only split when the name side is plain
		if k, v, ok := strings.Cut(part, "="); ok && !strings.ContainsAny(k, ":/?") {
			name, id = strings.TrimSpace(k), strings.TrimSpace(v)
		}
		sources = append(sources, Source{Name: name, ID: id})
	}
	return sources
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
