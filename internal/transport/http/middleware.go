package httptransport

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/logging"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/stage"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"
)

type stageKeyContextKey struct{}

const participantHeader = "X-Participant-ID"

// StageKeyMiddleware resolves the stage route params once per request.
func StageKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := stage.Key{
			ExperimentID: chi.URLParam(r, "experiment_id"),
			CohortID:     chi.URLParam(r, "cohort_id"),
			StageID:      chi.URLParam(r, "stage_id"),
		}
		if err := key.Validate(); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, err.Error())
			return
		}
		httplog.SetAttrs(r.Context(), slog.String("stage_key", key.String()))
		ctx := context.WithValue(r.Context(), stageKeyContextKey{}, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func StageKeyFromContext(ctx context.Context) stage.Key {
	key, _ := ctx.Value(stageKeyContextKey{}).(stage.Key)
	return key
}

// ParticipantFromRequest returns the caller's private participant id, or ""
// for an anonymous observer.
func ParticipantFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(participantHeader))
}

func APILogMiddleware() func(http.Handler) http.Handler {
	handler := slog.NewJSONHandler(logging.Writer(), &slog.HandlerOptions{})
	return httplog.RequestLogger(slog.New(handler), &httplog.Options{
		Level:              slog.LevelInfo,
		Schema:             httplog.Schema{ResponseStatus: "status", ResponseDuration: "duration_ms"},
		LogRequestBody:     func(*http.Request) bool { return false },
		LogResponseBody:    func(*http.Request) bool { return false },
		LogRequestHeaders:  []string{},
		LogResponseHeaders: []string{},
		LogExtraAttrs:      requestAttrs,
	})
}

// requestAttrs logs the route pattern rather than the raw path so stage ids
// do not explode the route cardinality.
func requestAttrs(req *http.Request, _ string, _ int) []slog.Attr {
	route := req.URL.Path
	if rc := chi.RouteContext(req.Context()); rc != nil && rc.RoutePattern() != "" {
		route = rc.RoutePattern()
	}
	return []slog.Attr{
		slog.String("request_id", chimw.GetReqID(req.Context())),
		slog.String("method", req.Method),
		slog.String("route", route),
		slog.Bool("participant", ParticipantFromRequest(req) != ""),
	}
}

// BodyCaptureMiddleware attaches up to limit bytes of the request and
// response bodies to the request log. Event streams pass through untouched.
func BodyCaptureMiddleware(limit int) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = 4096
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSSERequest(r) {
				next.ServeHTTP(w, r)
				return
			}
			reqBody, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(reqBody))

			cw := &captureWriter{ResponseWriter: w, limit: limit}
			next.ServeHTTP(cw, r)

			reqShown, reqCut := clip(reqBody, limit)
			httplog.SetAttrs(r.Context(),
				slog.Any("request_body", parseMaybeJSON(reqShown)),
				slog.Bool("request_body_truncated", reqCut),
				slog.Any("response_body", parseMaybeJSON(cw.body.Bytes())),
				slog.Bool("response_body_truncated", cw.truncated),
			)
		})
	}
}

func clip(b []byte, limit int) ([]byte, bool) {
	if len(b) > limit {
		return b[:limit], true
	}
	return b, false
}

type captureWriter struct {
	http.ResponseWriter
	body      bytes.Buffer
	limit     int
	truncated bool
}

func (c *captureWriter) Write(p []byte) (int, error) {
	if room := c.limit - c.body.Len(); room > 0 {
		kept, cut := clip(p, room)
		c.body.Write(kept)
		c.truncated = c.truncated || cut
	} else if len(p) > 0 {
		c.truncated = true
	}
	return c.ResponseWriter.Write(p)
}

func (c *captureWriter) Flush() {
	if f, ok := c.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func parseMaybeJSON(b []byte) any {
	if len(b) == 0 {
		return ""
	}
	var out any
	if json.Unmarshal(b, &out) == nil {
		return out
	}
	return string(b)
}

// WriteHTTPError writes the {"error": code} envelope shared by every
// non-command failure.
func WriteHTTPError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": code})
}

// AdminAuthMiddleware guards experimenter routes. An empty key disables the
// check, which is only meant for local runs.
func AdminAuthMiddleware(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey != "" && !CheckAdminAuth(r, adminKey) {
				WriteHTTPError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CheckAdminAuth accepts the key from X-Admin-Key or a bearer token.
func CheckAdminAuth(r *http.Request, adminKey string) bool {
	given := r.Header.Get("X-Admin-Key")
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); given == "" && ok {
		given = v
	}
	return given != "" && subtle.ConstantTimeCompare([]byte(given), []byte(adminKey)) == 1
}

// ParseEventPage reads after_seq and limit for event log queries.
func ParseEventPage(r *http.Request) (int64, int, bool) {
	var afterSeq int64
	limit := 0
	if v := r.URL.Query().Get("after_seq"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		afterSeq = n
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, false
		}
		limit = n
	}
	if limit < 0 {
		limit = 0
	}
	if limit > 500 {
		limit = 500
	}
	return afterSeq, limit, true
}

func isSSERequest(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		return true
	}
	path := r.URL.Path
	return strings.HasSuffix(path, "/events") && strings.HasPrefix(path, "/api/experiments/")
}
