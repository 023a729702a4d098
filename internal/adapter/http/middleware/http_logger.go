package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aq2208/gorder-store/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	bodyLogLimit   = 8 << 10
	maxRequestBody = 1 << 20

	requestIDHeader = "X-Request-Id"
	truncatedMark   = "...truncated..."
)

// Keys whose values never reach the log, matched case-insensitively at any depth.
var redactedKeys = map[string]bool{
	"password":      true,
	"authorization": true,
	"token":         true,
	"access_token":  true,
	"secret":        true,
	"phone":         true,
	"customerphone": true,
}

// teeWriter keeps the first bodyLogLimit bytes of the response.
type teeWriter struct {
	gin.ResponseWriter
	head bytes.Buffer
}

func (w *teeWriter) Write(b []byte) (int, error) {
	if room := bodyLogLimit - w.head.Len(); room > 0 {
		w.head.Write(b[:min(room, len(b))])
	}
	return w.ResponseWriter.Write(b)
}

func scrub(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if redactedKeys[strings.ToLower(k)] {
				t[k] = "***redacted***"
			} else {
				t[k] = scrub(val)
			}
		}
	case []any:
		for i := range t {
			t[i] = scrub(t[i])
		}
	}
	return v
}

// redactJSON masks sensitive values. Anything that is not JSON comes back as is.
func redactJSON(raw []byte) []byte {
	var doc any
	if len(raw) == 0 || json.Unmarshal(raw, &doc) != nil {
		return raw
	}
	out, err := json.Marshal(scrub(doc))
	if err != nil {
		return raw
	}
	return out
}

// loggedBody returns the redacted form of a JSON body, capped at n bytes.
// Redaction runs on the full body so a cap never leaves a secret half-parsed.
func loggedBody(raw []byte, n int) string {
	b := redactJSON(raw)
	if len(b) > n {
		return string(b[:n]) + truncatedMark
	}
	return string(b)
}

func isJSON(contentType string) bool {
	return strings.Contains(contentType, "application/json")
}

// peekBody reads a JSON request body for logging and puts the untouched bytes
// back for the handlers.
func peekBody(r *http.Request) string {
	if r.Body == nil || !isJSON(r.Header.Get("Content-Type")) {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	return loggedBody(raw, bodyLogLimit)
}

// Logging tags every request with an id, stores a request-scoped logger in
// both the gin and the request context, and writes one line per request.
func Logging(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
			c.Request.Header.Set(requestIDHeader, reqID)
		}
		c.Header(requestIDHeader, reqID)

		l := base.With("req_id", reqID, "method", c.Request.Method, "route", c.FullPath())
		logging.With(c, l)
		c.Request = c.Request.WithContext(logging.WithCtx(c.Request.Context(), l))

		reqBody := peekBody(c.Request)
		tw := &teeWriter{ResponseWriter: c.Writer}
		c.Writer = tw

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"dur_ms", time.Since(start).Milliseconds(),
			"remote", c.ClientIP(),
			"resp_bytes", c.Writer.Size(),
		}
		if reqBody != "" {
			attrs = append(attrs, "req_body", reqBody)
		}
		// a cut-off response cannot be parsed, so it cannot be redacted either
		if isJSON(c.Writer.Header().Get("Content-Type")) && tw.head.Len() > 0 && tw.head.Len() < bodyLogLimit {
			attrs = append(attrs, "resp_body", string(redactJSON(tw.head.Bytes())))
		}
		if id := c.Param("id"); id != "" {
			attrs = append(attrs, "order_id", id)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		// re-read: Authenticate adds user_id
		l = logging.From(c)
		l.Log(c.Request.Context(), levelFor(status), "http_request", attrs...)
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
