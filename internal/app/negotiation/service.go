package negotiation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/chip"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/config"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/feed"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/stage"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/store"

	"github.com/rs/zerolog/log"
)

// Repository is the persistence the service needs: a versioned stage
// document with compare-and-swap commits.
type Repository interface {
	CreateStage(ctx context.Context, rec *store.StageRecord, events []chip.Event) error
	GetStage(ctx context.Context, key stage.Key) (*store.StageRecord, error)
	CommitStage(ctx context.Context, key stage.Key, expected int64, c store.Commit) error
	SaveCommandResult(ctx context.Context, key stage.Key, res store.CommandResult) error
	GetCommandResult(ctx context.Context, key stage.Key, requestID string) (*store.CommandResult, error)
	ListEvents(ctx context.Context, key stage.Key, afterSeq int64, limit int) ([]chip.Event, error)
}

type Publisher interface {
	Publish(key stage.Key, pd chip.PublicData, events []chip.Event) (feed.Update, bool)
}

type Service struct {
	repo       Repository
	pub        Publisher
	maxRetries int
	now        func() time.Time
}

const (
	eventsDefaultLimit = 100
	eventsMaxLimit     = 500
)

func NewService(repo Repository, pub Publisher, cfg config.ServerConfig) *Service {
	retries := cfg.CommitMaxRetries
	if retries <= 0 {
		retries = 5
	}
	return &Service{repo: repo, pub: pub, maxRetries: retries, now: time.Now}
}

// StartStage creates the shared document for one cohort. The roster's
// public ids seed the turn order; a zero TurnSeed is replaced by a fresh one
// and stored with the config.
func (s *Service) StartStage(ctx context.Context, in StartInput) (*CommandResult, error) {
	if err := in.Key.Validate(); err != nil {
		return failed(err), err
	}
	if in.Config.ID == "" {
		in.Config.ID = in.Key.StageID
	}
	if in.Config.ID != in.Key.StageID {
		return failed(ErrInvalidRequest), ErrInvalidRequest
	}
	roster, err := normalizeRoster(in.Participants)
	if err != nil {
		return failed(err), err
	}
	if in.Config.TurnSeed == 0 {
		in.Config.TurnSeed = store.NewTurnSeed()
	}
	ids := make([]string, 0, len(roster))
	for _, m := range roster {
		ids = append(ids, m.PublicID)
	}
	pd, err := chip.NewPublicData(in.Config, ids)
	if err != nil {
		return failed(err), err
	}
	now := s.now().UTC()
	pd.EventSeq = 2
	events := []chip.Event{
		{Seq: 1, Type: chip.EventNewRound, Round: 0, Timestamp: now},
		{Seq: 2, Type: chip.EventNewTurn, Round: 0, ParticipantID: pd.CurrentTurn, Timestamp: now},
	}
	rec := &store.StageRecord{
		Key:       in.Key,
		Config:    in.Config,
		Roster:    roster,
		Public:    pd,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateStage(ctx, rec, events); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return failed(ErrStageExists), ErrStageExists
		}
		return nil, err
	}
	metricStagesStarted.Add(1)
	s.publish(in.Key, pd, events)
	log.Info().
		Str("stage_key", in.Key.String()).
		Int("participants", len(roster)).
		Int("num_rounds", in.Config.NumRounds).
		Strs("turn_order", pd.TurnOrder).
		Msg("chip_stage_started")
	return &CommandResult{Success: true, Version: pd.Version}, nil
}

func normalizeRoster(in []store.Member) ([]store.Member, error) {
	out := make([]store.Member, 0, len(in))
	seenPrivate := map[string]bool{}
	seenPublic := map[string]bool{}
	for _, m := range in {
		m.PrivateID = strings.TrimSpace(m.PrivateID)
		m.PublicID = strings.TrimSpace(m.PublicID)
		if m.PrivateID == "" || m.PublicID == "" || m.PrivateID == m.PublicID {
			return nil, ErrInvalidRequest
		}
		if seenPrivate[m.PrivateID] || seenPublic[m.PublicID] {
			return nil, ErrInvalidRequest
		}
		seenPrivate[m.PrivateID] = true
		seenPublic[m.PublicID] = true
		if m.Name == "" {
			m.Name = m.PublicID
		}
		out = append(out, m)
	}
	if len(out) < 2 {
		return nil, ErrInvalidRequest
	}
	return out, nil
}

func (s *Service) SubmitOffer(ctx context.Context, in OfferInput) (*CommandResult, error) {
	return s.mutate(ctx, in.Key, OpSubmitOffer, in.ParticipantID, in.RequestID, func(rec *store.StageRecord, eng *chip.Engine) (bool, error) {
		m, ok := rec.MemberByPrivateID(in.ParticipantID)
		if !ok {
			return false, chip.ErrUnknownParticipant
		}
		err := eng.SubmitOffer(chip.Offer{
			ID:       store.NewID(),
			SenderID: m.PublicID,
			Buy:      in.Buy,
			Sell:     in.Sell,
		})
		return err == nil, err
	})
}

// SubmitResponse records an accept or reject. Answering the same offer
// twice is a successful no-op; the first answer stands.
func (s *Service) SubmitResponse(ctx context.Context, in ResponseInput) (*CommandResult, error) {
	return s.mutate(ctx, in.Key, OpRespond, in.ParticipantID, in.RequestID, func(rec *store.StageRecord, eng *chip.Engine) (bool, error) {
		m, ok := rec.MemberByPrivateID(in.ParticipantID)
		if !ok {
			return false, chip.ErrUnknownParticipant
		}
		return eng.SubmitResponse(m.PublicID, in.Round, in.SenderID, in.Accept)
	})
}

// ForceResolve closes a pending transaction as REJECTED. It is the hook for
// an external round deadline.
func (s *Service) ForceResolve(ctx context.Context, in ForceResolveInput) (*CommandResult, error) {
	return s.mutate(ctx, in.Key, OpForceResolve, adminActor, in.RequestID, func(_ *store.StageRecord, eng *chip.Engine) (bool, error) {
		return true, eng.ForceResolve(in.Round, in.SenderID)
	})
}

// SkipTurn force-advances past a participant (by public id) who has not
// offered this round.
func (s *Service) SkipTurn(ctx context.Context, in SkipTurnInput) (*CommandResult, error) {
	return s.mutate(ctx, in.Key, OpSkipTurn, adminActor, in.RequestID, func(_ *store.StageRecord, eng *chip.Engine) (bool, error) {
		return true, eng.SkipTurn(in.ParticipantID)
	})
}

func (s *Service) publish(key stage.Key, pd chip.PublicData, events []chip.Event) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(key, pd, events)
}

func failed(err error) *CommandResult {
	res := &CommandResult{Success: false, ErrorKind: ErrorKind(err)}
	var oe *chip.OfferError
	if errors.As(err, &oe) {
		res.Errors = oe.Errors
	}
	return res
}
