package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactJSON(t *testing.T) {
	in := `{"email":"a@b.c","password":"hunter2","nested":{"Token":"t","items":[{"phone":"555"}]}}`
	var out map[string]any
	require.NoError(t, json.Unmarshal(redactJSON([]byte(in)), &out))

	assert.Equal(t, "a@b.c", out["email"])
	assert.Equal(t, "***redacted***", out["password"])
	nested := out["nested"].(map[string]any)
	assert.Equal(t, "***redacted***", nested["Token"])
	assert.Equal(t, "***redacted***", nested["items"].([]any)[0].(map[string]any)["phone"])

	assert.Equal(t, "plain text", string(redactJSON([]byte("plain text"))))
}

func TestLoggedBody_Truncates(t *testing.T) {
	got := loggedBody([]byte(`{"note":"`+strings.Repeat("x", 64)+`"}`), 16)
	assert.True(t, strings.HasSuffix(got, "...truncated..."))
	assert.Len(t, got, 16+len("...truncated..."))
}

func TestLogging(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	var seen []byte
	r := gin.New()
	r.Use(Logging(base))
	r.POST("/v1/token", func(c *gin.Context) {
		seen, _ = io.ReadAll(c.Request.Body)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "access_token": "leak"})
	})

	body := `{"email":"ada@example.com","password":"s3cret"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/token", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, body, string(seen), "handlers see the original body")
	assert.Equal(t, "req-42", w.Header().Get("X-Request-Id"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "req-42", entry["req_id"])
	assert.EqualValues(t, 401, entry["status"])
	assert.NotContains(t, entry["req_body"], "s3cret")
	assert.NotContains(t, entry["resp_body"], "leak")
}

func TestLogging_GeneratesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Logging(slog.New(slog.NewTextHandler(io.Discard, nil))))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Len(t, w.Header().Get("X-Request-Id"), 36)
}
