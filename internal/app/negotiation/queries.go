package negotiation

import (
	"context"
	"errors"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/chip"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/stage"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/store"
)

func (s *Service) load(ctx context.Context, key stage.Key) (*store.StageRecord, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	rec, err := s.repo.GetStage(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrStageNotFound
	}
	return rec, err
}

// member resolves a private id; an empty id is an anonymous observer.
func member(rec *store.StageRecord, privateID string) (store.Member, bool, error) {
	if privateID == "" {
		return store.Member{}, false, nil
	}
	m, ok := rec.MemberByPrivateID(privateID)
	if !ok {
		return store.Member{}, false, chip.ErrUnknownParticipant
	}
	return m, true, nil
}

// State returns the public snapshot. With a participant's private id it
// adds that participant's own valuations and the offers awaiting them.
func (s *Service) State(ctx context.Context, key stage.Key, privateID string) (*StateView, error) {
	rec, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	m, ok, err := member(rec, privateID)
	if err != nil {
		return nil, err
	}
	view := &StateView{
		Key:          rec.Key,
		Config:       publicConfig(rec.Config),
		Participants: rec.Participants(),
		Public:       rec.Public,
	}
	if ok {
		view.Self = selfView(rec, m)
	}
	return view, nil
}

func selfView(rec *store.StageRecord, m store.Member) *SelfView {
	pd := rec.Public
	out := &SelfView{
		PublicID:   m.PublicID,
		Name:       m.Name,
		ChipValues: rec.Config.ParticipantChipValues[m.PublicID],
		IsTurn:     !pd.IsGameOver && pd.CurrentTurn == m.PublicID,
		Pending:    []PendingOffer{},
	}
	if out.IsTurn {
		if _, offered := pd.Transaction(pd.CurrentRound, m.PublicID); offered {
			out.IsTurn = false
		}
	}
	for _, sender := range pd.TurnOrder {
		tx, ok := pd.Transaction(pd.CurrentRound, sender)
		if !ok || tx.Status != chip.StatusPending || sender == m.PublicID {
			continue
		}
		if _, answered := tx.ResponseMap[m.PublicID]; answered {
			continue
		}
		out.Pending = append(out.Pending, PendingOffer{
			Round:      tx.Offer.Round,
			SenderID:   sender,
			Offer:      tx.Offer,
			Affordable: pd.ParticipantChipMap[m.PublicID].Covers(tx.Offer.Buy),
			Preview:    chip.OfferPreview(rec.Config, pd, m.PublicID, tx.Offer, false),
		})
	}
	return out
}

// CheckOffer runs the live offer preview for a participant.
func (s *Service) CheckOffer(ctx context.Context, key stage.Key, privateID, buyType string, buyQty int64, sellType string, sellQty int64) (chip.OfferCheck, error) {
	rec, err := s.load(ctx, key)
	if err != nil {
		return chip.OfferCheck{}, err
	}
	m, ok, err := member(rec, privateID)
	if err != nil {
		return chip.OfferCheck{}, err
	}
	if !ok {
		return chip.OfferCheck{}, chip.ErrUnknownParticipant
	}
	return chip.CheckOffer(rec.Public, m.PublicID, buyType, buyQty, sellType, sellQty), nil
}

// Transcript rebuilds the log for a participant, or for an observer when
// privateID is empty.
func (s *Service) Transcript(ctx context.Context, key stage.Key, privateID string) ([]chip.LogEntry, error) {
	rec, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	m, _, err := member(rec, privateID)
	if err != nil {
		return nil, err
	}
	return chip.BuildLog(rec.Config, rec.Public, rec.Participants(), m.PublicID), nil
}

// Payout reports one participant's own valuation of their chips.
func (s *Service) Payout(ctx context.Context, key stage.Key, privateID string) (*chip.ParticipantPayout, error) {
	rec, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	m, ok, err := member(rec, privateID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, chip.ErrUnknownParticipant
	}
	out, err := chip.SummarizePayout(rec.Config, rec.Public, m.PublicID)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PayoutSummary is the experimenter view over every participant.
func (s *Service) PayoutSummary(ctx context.Context, key stage.Key) ([]chip.ParticipantPayout, error) {
	rec, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	out := make([]chip.ParticipantPayout, 0, len(rec.Public.TurnOrder))
	for _, id := range rec.Public.TurnOrder {
		p, err := chip.SummarizePayout(rec.Config, rec.Public, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Service) Events(ctx context.Context, key stage.Key, afterSeq int64, limit int) ([]chip.Event, error) {
	if _, err := s.load(ctx, key); err != nil {
		return nil, err
	}
	if afterSeq < 0 {
		return nil, ErrInvalidRequest
	}
	return s.repo.ListEvents(ctx, key, afterSeq, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return eventsDefaultLimit
	}
	if limit > eventsMaxLimit {
		return eventsMaxLimit
	}
	return limit
}

// ParticipantAnswer is the stage progress marker: ready once the game ends.
func (s *Service) ParticipantAnswer(ctx context.Context, key stage.Key, privateID string) (stage.Answer, error) {
	rec, err := s.load(ctx, key)
	if err != nil {
		return stage.Answer{}, err
	}
	if _, ok, err := member(rec, privateID); err != nil {
		return stage.Answer{}, err
	} else if !ok {
		return stage.Answer{}, chip.ErrUnknownParticipant
	}
	ans := stage.Answer{StageID: rec.Config.StageID(), Kind: rec.Config.StageKind(), ParticipantPrivateID: privateID}
	if rec.Public.IsGameOver {
		ans.ReadyAt = rec.Public.GameOverAt
	}
	return ans, nil
}
