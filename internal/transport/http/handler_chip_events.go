package httptransport

import (
	"net/http"
	"time"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/feed"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

var ssePingInterval = 15 * time.Second

// Events streams stage snapshots as server-sent events. Each event id is the
// snapshot version; Last-Event-ID resumes after it.
func (h *ChipHandlers) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := StageKeyFromContext(r.Context())
		view, err := h.svc.State(r.Context(), key, "")
		if err != nil {
			writeQueryErr(w, err)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteHTTPError(w, http.StatusInternalServerError, "stream_not_supported")
			return
		}
		// Seeds an empty buffer after a restart; a stale version is ignored.
		h.hub.Publish(key, view.Public, nil)
		buf := h.hub.Buffer(key)

		metricSSEConnectionsTotal.Add(1)
		metricSSEConnectionsActive.Add(1)
		defer metricSSEConnectionsActive.Add(-1)

		feed.SetSSEHeaders(w)
		reqID := chimw.GetReqID(r.Context())
		log.Info().Str("request_id", reqID).Str("stage_key", key.String()).Msg("sse stream opened")

		ch := buf.Subscribe()
		defer buf.Unsubscribe(ch)

		var sent int64
		for _, u := range buf.ReplayAfter(r.Header.Get("Last-Event-ID")) {
			if err := feed.WriteSSE(w, u.EventID, u.Event, u); err != nil {
				return
			}
			sent = u.Version
		}
		flusher.Flush()

		ticker := time.NewTicker(ssePingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				log.Info().Str("request_id", reqID).Str("stage_key", key.String()).Err(r.Context().Err()).Msg("sse stream closed")
				return
			case u, ok := <-ch:
				if !ok {
					log.Info().Str("request_id", reqID).Str("stage_key", key.String()).Msg("sse stream channel closed")
					return
				}
				if u.Version <= sent {
					continue
				}
				if err := feed.WriteSSE(w, u.EventID, u.Event, u); err != nil {
					return
				}
				sent = u.Version
				flusher.Flush()
			case <-ticker.C:
				if err := feed.WriteSSE(w, "", "ping", map[string]any{"ts": time.Now().UnixMilli()}); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
