package negotiation

import (
	"context"
	"errors"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/chip"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/stage"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/store"

	"github.com/rs/zerolog/log"
)

type applyFunc func(rec *store.StageRecord, eng *chip.Engine) (changed bool, err error)

// mutate runs one read-validate-commit cycle, retrying on version conflicts.
// A non-empty requestID makes the command idempotent: the first stored
// outcome is returned on every retry.
func (s *Service) mutate(ctx context.Context, key stage.Key, op, actor, requestID string, apply applyFunc) (*CommandResult, error) {
	metricCommandsTotal.Add(1)
	if err := key.Validate(); err != nil {
		metricCommandErrors.Add(1)
		return failed(err), err
	}
	if res, ok := s.replay(ctx, key, op, actor, requestID); ok {
		return res, replayErr(res)
	}

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		rec, err := s.repo.GetStage(ctx, key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				metricCommandErrors.Add(1)
				return failed(ErrStageNotFound), ErrStageNotFound
			}
			return nil, err
		}
		expected := rec.Public.Version
		next := rec.Public.Clone()
		eng := chip.NewEngine(rec.Config, &next)
		eng.Now = s.now

		changed, err := apply(rec, eng)
		if err != nil {
			metricCommandErrors.Add(1)
			s.remember(ctx, key, store.CommandResult{
				RequestID:     requestID,
				ParticipantID: actor,
				Op:            op,
				ErrorKind:     ErrorKind(err),
				Version:       expected,
			}, err)
			res := failed(err)
			res.Version = expected
			log.Debug().Err(err).Str("stage_key", key.String()).Str("op", op).Int64("version", expected).Msg("chip_command_rejected")
			return res, err
		}
		if !changed {
			s.remember(ctx, key, store.CommandResult{RequestID: requestID, ParticipantID: actor, Op: op, Success: true, Version: expected}, nil)
			return &CommandResult{Success: true, Version: expected}, nil
		}

		var cmd *store.CommandResult
		if requestID != "" {
			cmd = &store.CommandResult{
				RequestID:     requestID,
				ParticipantID: actor,
				Op:            op,
				Success:       true,
				Version:       next.Version,
				CreatedAt:     s.now().UTC(),
			}
		}
		events := eng.Events()
		err = s.repo.CommitStage(ctx, key, expected, store.Commit{Public: next, Events: events, Command: cmd})
		if errors.Is(err, store.ErrVersionConflict) {
			metricCommitConflicts.Add(1)
			log.Warn().Str("stage_key", key.String()).Str("op", op).Int64("version", expected).Int("attempt", attempt).Msg("chip_commit_conflict")
			if res, ok := s.replay(ctx, key, op, actor, requestID); ok {
				return res, replayErr(res)
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		s.publish(key, next, events)
		s.logCommit(key, op, attempt, next, events)
		return &CommandResult{Success: true, Version: next.Version}, nil
	}
	metricCommandErrors.Add(1)
	return failed(ErrConcurrentWriteConflict), ErrConcurrentWriteConflict
}

// replay returns the stored outcome for requestID, if any. A request id
// already used by another actor or op is rejected instead of replayed.
func (s *Service) replay(ctx context.Context, key stage.Key, op, actor, requestID string) (*CommandResult, bool) {
	if requestID == "" {
		return nil, false
	}
	prev, err := s.repo.GetCommandResult(ctx, key, requestID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Str("stage_key", key.String()).Str("request_id", requestID).Msg("load command result failed")
		}
		return nil, false
	}
	if prev.ParticipantID != actor || prev.Op != op {
		metricCommandErrors.Add(1)
		log.Warn().Str("stage_key", key.String()).Str("request_id", requestID).Str("op", op).Str("stored_op", prev.Op).Msg("chip_request_id_reused")
		res := failed(ErrInvalidRequest)
		res.Version = prev.Version
		return res, true
	}
	metricCommandReplays.Add(1)
	return &CommandResult{Success: prev.Success, ErrorKind: prev.ErrorKind, Version: prev.Version, Replayed: true}, true
}

func replayErr(res *CommandResult) error {
	if res.Success {
		return nil
	}
	return errorForKind(res.ErrorKind)
}

// remember stores outcomes that changed nothing, so a retried request id
// gets the same answer.
func (s *Service) remember(ctx context.Context, key stage.Key, res store.CommandResult, cause error) {
	if res.RequestID == "" {
		return
	}
	if cause != nil && !isTerminal(cause) {
		return
	}
	res.CreatedAt = s.now().UTC()
	if err := s.repo.SaveCommandResult(ctx, key, res); err != nil {
		log.Error().Err(err).Str("stage_key", key.String()).Str("request_id", res.RequestID).Msg("save command result failed")
	}
}

func (s *Service) logCommit(key stage.Key, op string, attempt int, pd chip.PublicData, events []chip.Event) {
	log.Debug().
		Str("stage_key", key.String()).
		Str("op", op).
		Int64("version", pd.Version).
		Int("attempt", attempt).
		Int("events", len(events)).
		Msg("chip_commit")
	for _, ev := range events {
		switch ev.Type {
		case chip.EventTransaction:
			metricTransactionsClosed.Add(string(chip.StatusAccepted), 1)
			log.Info().Str("stage_key", key.String()).Int("round", ev.Round).Str("sender_id", ev.ParticipantID).
				Str("recipient_id", ev.Transaction.RecipientID).Msg("chip_offer_accepted")
		case chip.EventOfferDeclined:
			metricTransactionsClosed.Add(string(chip.StatusRejected), 1)
			log.Info().Str("stage_key", key.String()).Int("round", ev.Round).Str("sender_id", ev.ParticipantID).Msg("chip_offer_rejected")
		case chip.EventGameOver:
			log.Info().Str("stage_key", key.String()).Int64("version", pd.Version).Msg("chip_game_over")
		}
	}
}
