package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/app/negotiation"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/config"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/feed"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/logging"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/stagepush"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/store"
	httptransport "github.com/PAIR-code/deliberate-lab-sub002/internal/transport/http"

	"github.com/rs/zerolog/log"
)

func main() {
	appCfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(appCfg.Log)
	cfg := appCfg.Server

	repo, health, closeRepo, err := openRepository(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("store init failed")
	}
	defer closeRepo()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := feed.NewHub(cfg.FeedBufferSize)
	defer hub.Close()

	pushCfg, err := stagepush.ConfigFromServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("stage push config invalid")
	}
	if pushCfg.Enabled {
		pushMgr := stagepush.NewManager(pushCfg)
		if err := pushMgr.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("stage push start failed")
		}
		hub.OnPublish(pushMgr.OnUpdate)
	}

	svc := negotiation.NewService(repo, hub, cfg)
	r := httptransport.NewRouter(svc, hub, cfg, health)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("driver", cfg.StoreDriver).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// SSE and websocket streams end when the hub closes.
	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}

// openRepository builds the configured stage store. The returned Pinger is
// nil for drivers without a remote dependency.
func openRepository(ctx context.Context, cfg config.ServerConfig) (negotiation.Repository, httptransport.Pinger, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		st, err := store.New(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := st.Ping(ctx); err != nil {
			st.Close()
			return nil, nil, nil, err
		}
		return st, st, st.Close, nil
	case config.StoreDriverLevelDB:
		lv, err := store.NewLevel(cfg.LevelDBPath)
		if err != nil {
			return nil, nil, nil, err
		}
		return lv, nil, func() {
			if err := lv.Close(); err != nil {
				log.Warn().Err(err).Msg("leveldb close failed")
			}
		}, nil
	case config.StoreDriverMemory:
		return store.NewMemory(), nil, func() {}, nil
	default:
		return nil, nil, nil, config.ErrUnknownStoreDriver
	}
}
