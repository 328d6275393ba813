package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"firewatch/internal/logger"
)

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseTimeOfDay normalizes an "HH:MM" value for SQLite TIME() comparison.
// Invalid values yield "".
func parseTimeOfDay(v string) string {
	if v == "" {
		return ""
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return ""
	}
	return t.Format("15:04:05")
}
