package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/app/negotiation"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/config"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/logging"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type bot struct {
	cfg    config.BotConfig
	base   string
	client *http.Client
}

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	if logCfg.Service == "" {
		logCfg.Service = "chip-bot"
	}
	logging.Init(logCfg)
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load bot config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := &bot{
		cfg:    cfg,
		base:   strings.TrimRight(cfg.ServerURL, "/") + stagePath(cfg),
		client: &http.Client{Timeout: 10 * time.Second},
	}
	log.Info().Str("stage", b.base).Str("participant_public_id", cfg.ParticipantPublicID).Msg("bot starting")
	if err := b.run(ctx); err != nil {
		log.Fatal().Err(err).Msg("bot stopped")
	}
}

func stagePath(cfg config.BotConfig) string {
	return fmt.Sprintf("/api/experiments/%s/cohorts/%s/stages/%s",
		url.PathEscape(cfg.ExperimentID), url.PathEscape(cfg.CohortID), url.PathEscape(cfg.StageID))
}

func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/ws"
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + "/ws"
	}
	return base + "/ws"
}

func (b *bot) run(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL(b.base), nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var msg ws.SnapshotMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if msg.Type != ws.TypeSnapshot {
			continue
		}
		log.Debug().Int64("version", msg.Update.Version).Msg("snapshot")
		done, err := b.step(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("step failed")
			continue
		}
		if done {
			log.Info().Msg("game over")
			return nil
		}
	}
}

// step reacts to the latest state: answer pending offers, then offer on our
// turn. It reports whether the game has ended.
func (b *bot) step(ctx context.Context) (bool, error) {
	var view negotiation.StateView
	if err := b.get(ctx, "/state", &view); err != nil {
		return false, err
	}
	if view.Public.IsGameOver {
		return true, nil
	}
	if view.Self == nil {
		return false, fmt.Errorf("participant %s not on roster", b.cfg.ParticipantID)
	}
	for _, p := range view.Self.Pending {
		accept := acceptOffer(p)
		res, err := b.post(ctx, "/responses", negotiation.ResponseInput{
			ParticipantID: b.cfg.ParticipantID,
			RequestID:     requestID(b.cfg.ParticipantID, negotiation.OpRespond, p.Round, p.SenderID),
			Round:         p.Round,
			SenderID:      p.SenderID,
			Accept:        accept,
		})
		if err != nil {
			return false, err
		}
		log.Info().Int("round", p.Round).Str("sender_id", p.SenderID).Bool("accept", accept).Str("error_kind", res.ErrorKind).Msg("responded")
	}
	if view.Self.IsTurn && !hasOffered(view) {
		buy, sell, ok := chooseOffer(view)
		if !ok {
			return false, nil
		}
		res, err := b.post(ctx, "/offers", negotiation.OfferInput{
			ParticipantID: b.cfg.ParticipantID,
			RequestID:     requestID(b.cfg.ParticipantID, negotiation.OpSubmitOffer, view.Public.CurrentRound, view.Self.PublicID),
			Buy:           buy,
			Sell:          sell,
		})
		if err != nil {
			return false, err
		}
		log.Info().Int("round", view.Public.CurrentRound).Bool("success", res.Success).Strs("errors", res.Errors).Msg("offered")
	}
	return false, nil
}

func (b *bot) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Participant-ID", b.cfg.ParticipantID)
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// post sends a command. Rejected commands are not transport errors; the
// caller inspects the result.
func (b *bot) post(ctx context.Context, path string, body any) (negotiation.CommandResult, error) {
	var res negotiation.CommandResult
	payload, err := json.Marshal(body)
	if err != nil {
		return res, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.base+path, bytes.NewReader(payload))
	if err != nil {
		return res, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.client.Do(req)
	if err != nil {
		return res, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return res, err
	}
	return res, nil
}
