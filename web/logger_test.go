package web_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bluescreen10/xsession/web"
)

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		output := &bytes.Buffer{}
		logger := slog.New(slog.NewJSONHandler(output, nil))

		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})

		r := httptest.NewRequest("GET", "/endpoint", nil)
		w := httptest.NewRecorder()
		web.RequestLogger(logger)(h).ServeHTTP(w, r)

		var entry map[string]any
		if err := json.Unmarshal(output.Bytes(), &entry); err != nil {
			t.Fatal(err)
		}

		if entry["level"] != tt.level ||
			entry["method"] != "GET" ||
			entry["path"] != "/endpoint" ||
			entry["status"] != float64(tt.status) ||
			entry["ip"] != "192.0.2.1" {
			t.Fatalf("unexpected log entry %v", entry)
		}
	}
}

func TestRequestLoggerDefaultStatus(t *testing.T) {
	output := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(output, nil))

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r := httptest.NewRequest("GET", "/", nil)
	web.RequestLogger(logger)(h).ServeHTTP(httptest.NewRecorder(), r)

	var entry map[string]any
	if err := json.Unmarshal(output.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["status"] != float64(http.StatusOK) {
		t.Fatalf("expected '200' got '%v'", entry["status"])
	}
}
