package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func loggedRequest(t *testing.T, handler http.HandlerFunc) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	wrapped := Logger(logger)(handler)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log output is not a single JSON line: %v", err)
	}
	return line
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	cases := []struct {
		name   string
		status int
		level  string
	}{
		{"success", http.StatusOK, "info"},
		{"client error", http.StatusNotFound, "warn"},
		{"server error", http.StatusInternalServerError, "error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			line := loggedRequest(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte("body"))
			})

			assert.Equal(t, tc.level, line["level"])
			assert.Equal(t, float64(tc.status), line["status"])
			assert.Equal(t, "GET", line["method"])
			assert.Equal(t, "/sessions", line["path"])
			assert.Equal(t, float64(4), line["bytes"])
		})
	}
}

func TestLogger_ImplicitOKStatus(t *testing.T) {
	line := loggedRequest(t, func(w http.ResponseWriter, r *http.Request) {})

	assert.Equal(t, "info", line["level"])
	assert.Equal(t, float64(http.StatusOK), line["status"])
}
