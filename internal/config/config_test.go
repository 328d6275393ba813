package config

import (
	"testing"
)

func TestParseSources(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Source
	}{
		{"single device", "0", []Source{{Name: "cam0", ID: "0"}}},
		{"named", "front=0,garage=rtsp://10.0.0.2/live", []Source{
			{Name: "front", ID: "0"},
			{Name: "garage", ID: "rtsp://10.0.0.2/live"},
		}},
		{"url with query", "http://host/video?token=abc", []Source{
			{Name: "cam0", ID: "http://host/video?token=abc"},
		}},
		{"blank entries skipped", " 0 , ,1", []Source{
			{Name: "cam0", ID: "0"},
			{Name: "cam2", ID: "1"},
		}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSources(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseSources(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseSources(%q)[%d] = %v, want %v", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PREDICTION_INTERVAL", "")
	t.Setenv("CONFIDENCE_THRESHOLD", "")
	t.Setenv("ALERT_REPEATS", "")
	t.Setenv("TARGET_LABEL", "")

	cfg := Load()
	if cfg.PredictionInterval != 10 {
		t.Errorf("PredictionInterval = %d, want 10", cfg.PredictionInterval)
	}
	if cfg.ConfidenceThreshold != 0.5 {
		t.Errorf("ConfidenceThreshold = %v, want 0.5", cfg.ConfidenceThreshold)
	}
	if cfg.AlertRepeats != 5 {
		t.Errorf("AlertRepeats = %d, want 5", cfg.AlertRepeats)
	}
	if cfg.TargetLabel != "fire" {
		t.Errorf("TargetLabel = %q, want fire", cfg.TargetLabel)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PREDICTION_INTERVAL", "3")
	t.Setenv("CONFIDENCE_THRESHOLD", "0.75")
	t.Setenv("SHOW_WINDOW", "false")
	t.Setenv("SOURCES", "lab=1")
	t.Setenv("MODEL_FORMAT", "SSD")

	cfg := Load()
	if cfg.PredictionInterval != 3 {
		t.Errorf("PredictionInterval = %d, want 3", cfg.PredictionInterval)
	}
	if cfg.ConfidenceThreshold != 0.75 {
		t.Errorf("ConfidenceThreshold = %v, want 0.75", cfg.ConfidenceThreshold)
	}
	if cfg.Display {
		t.Error("Display should be false")
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Name != "lab" {
		t.Errorf("Sources = %v", cfg.Sources)
	}
	if cfg.ModelFormat != "ssd" {
		t.Errorf("ModelFormat = %q, want ssd", cfg.ModelFormat)
	}
}

func TestLoad_InvalidNumberFallsBack(t *testing.T) {
	t.Setenv("PREDICTION_INTERVAL", "often")
	if got := Load().PredictionInterval; got != 10 {
		t.Errorf("PredictionInterval = %d, want default 10", got)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Sources:             []Source{{Name: "cam0", ID: "0"}},
			PredictionInterval:  10,
			ConfidenceThreshold: 0.5,
			AlertRepeats:        5,
			ModelFormat:         "yolo",
			TargetLabel:         "fire",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"no sources", func(c *Config) { c.Sources = nil }, true},
		{"duplicate names", func(c *Config) {
			c.Sources = append(c.Sources, Source{Name: "cam0", ID: "1"})
		}, true},
		{"zero interval", func(c *Config) { c.PredictionInterval = 0 }, true},
		{"confidence too high", func(c *Config) { c.ConfidenceThreshold = 1.5 }, true},
		{"negative repeats", func(c *Config) { c.AlertRepeats = -1 }, true},
		{"unknown format", func(c *Config) { c.ModelFormat = "rcnn" }, true},
		{"no target", func(c *Config) { c.TargetLabel = "" }, true},
		{"window with one source", func(c *Config) { c.Display = true }, false},
		{"window with two sources", func(c *Config) {
			c.Display = true
			c.Sources = append(c.Sources, Source{Name: "cam1", ID: "1"})
		}, true},
		{"two sources headless", func(c *Config) {
			c.Sources = append(c.Sources, Source{Name: "cam1", ID: "1"})
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
