package httptransport

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/app/negotiation"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/chip"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/config"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/feed"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/mcpserver"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/stage"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/ws"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Pinger is the health check of the backing store; nil means always healthy.
type Pinger interface {
	Ping(ctx context.Context) error
}

func NewRouter(svc *negotiation.Service, hub *feed.Hub, cfg config.ServerConfig, health Pinger) *chi.Mux {
	chips := NewChipHandlers(svc, hub)
	wsSrv := ws.NewServer(hub, func(ctx context.Context, key stage.Key) (chip.PublicData, error) {
		view, err := svc.State(ctx, key, "")
		if err != nil {
			return chip.PublicData{}, err
		}
		return view.Public, nil
	})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", healthHandler(health))
	if cfg.MCPEnabled {
		mcpSrv := mcpserver.New(svc)
		r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
		})
		r.With(APILogMiddleware()).Method(http.MethodPost, "/mcp", mcpSrv.Handler())
		r.With(APILogMiddleware()).Method(http.MethodGet, "/mcp", mcpSrv.Handler())
		r.With(APILogMiddleware()).Method(http.MethodDelete, "/mcp", mcpSrv.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())

		capture := BodyCaptureMiddleware(4096)
		r.Route("/experiments/{experiment_id}/cohorts/{cohort_id}/stages/{stage_id}", func(r chi.Router) {
			r.Use(StageKeyMiddleware)
			r.Get("/state", chips.State())
			r.Get("/offer-check", chips.OfferCheck())
			r.With(capture).Post("/offers", chips.SubmitOffer())
			r.With(capture).Post("/responses", chips.SubmitResponse())
			r.Get("/transcript", chips.Transcript())
			r.Get("/payout", chips.Payout())
			r.Get("/answer", chips.Answer())
			r.Get("/log", chips.Log())
			r.Get("/events", chips.Events())
			r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
				wsSrv.ServeStage(w, req, StageKeyFromContext(req.Context()))
			})

			r.Group(func(r chi.Router) {
				r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
				r.With(capture).Post("/", chips.Start())
				r.With(capture).Post("/resolve", chips.ForceResolve())
				r.With(capture).Post("/skip", chips.SkipTurn())
				r.Get("/payouts", chips.Payouts())
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Get("/debug/vars", expvar.Handler().ServeHTTP)
		})
	})
	return r
}

func healthHandler(health Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health.Ping(r.Context()); err != nil {
				log.Warn().Err(err).Msg("health check failed")
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 64)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
