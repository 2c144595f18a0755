package chip

import "time"

// Engine applies protocol transitions to State. Every method validates all
// preconditions before its first write, so a returned error means State is
// untouched. Callers hand the engine a clone and commit it only on success.
type Engine struct {
	Config StageConfig
	State  *PublicData
	Now    func() time.Time

	events []Event
}

func NewEngine(cfg StageConfig, state *PublicData) *Engine {
	return &Engine{Config: cfg, State: state, Now: time.Now}
}

// NewPublicData seeds the shared document at stage start: every participant
// holds each chip's starting quantity and round 0 begins with the first
// participant in turn order.
func NewPublicData(cfg StageConfig, participants []string) (PublicData, error) {
	if err := cfg.Validate(); err != nil {
		return PublicData{}, err
	}
	order := TurnOrder(participants, cfg.TurnSeed)
	if len(order) < 2 {
		return PublicData{}, ErrInvalidConfig
	}
	pd := PublicData{
		StageID:             cfg.ID,
		Version:             1,
		ParticipantChipMap:  make(map[string]Inventory, len(order)),
		ParticipantOfferMap: map[int]map[string]Transaction{},
		TurnOrder:           order,
		CurrentRound:        0,
		CurrentTurn:         order[0],
	}
	for _, id := range order {
		pd.ParticipantChipMap[id] = cfg.StartingInventory()
	}
	return pd, nil
}

// Events returns what the last successful call appended.
func (e *Engine) Events() []Event {
	return e.events
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

func (e *Engine) SubmitOffer(offer Offer) error {
	s := e.State
	e.events = nil
	if s.IsGameOver {
		return ErrGameOver
	}
	if !s.HasParticipant(offer.SenderID) {
		return ErrUnknownParticipant
	}
	if _, ok := s.Transaction(s.CurrentRound, offer.SenderID); ok {
		return ErrDuplicateTransaction
	}
	if offer.SenderID != s.CurrentTurn {
		return ErrOutOfTurn
	}
	if err := ValidateOffer(e.Config, *s, offer); err != nil {
		return err
	}

	ts := e.now()
	offer.Round = s.CurrentRound
	offer.Buy = offer.Buy.Clone()
	offer.Sell = offer.Sell.Clone()
	if offer.Timestamp.IsZero() {
		offer.Timestamp = ts
	}
	tx := Transaction{
		Offer:       offer,
		ResponseMap: map[string]Response{},
		Status:      StatusPending,
	}
	if s.ParticipantOfferMap == nil {
		s.ParticipantOfferMap = map[int]map[string]Transaction{}
	}
	if s.ParticipantOfferMap[s.CurrentRound] == nil {
		s.ParticipantOfferMap[s.CurrentRound] = map[string]Transaction{}
	}
	s.ParticipantOfferMap[s.CurrentRound][offer.SenderID] = tx
	o := offer
	e.emit(Event{Type: EventOffer, Round: offer.Round, ParticipantID: offer.SenderID, Offer: &o, Timestamp: ts})
	s.Version++
	return nil
}

// SubmitResponse records responderID's answer to the offer sent by senderID
// in round. It reports changed=false when the responder already answered;
// the first answer stands.
func (e *Engine) SubmitResponse(responderID string, round int, senderID string, accept bool) (bool, error) {
	s := e.State
	e.events = nil
	if !s.HasParticipant(responderID) {
		return false, ErrUnknownParticipant
	}
	tx, ok := s.Transaction(round, senderID)
	if !ok {
		return false, ErrUnknownTransaction
	}
	if tx.Status != StatusPending {
		return false, ErrAlreadyResolved
	}
	if responderID == senderID {
		return false, ErrSelfResponse
	}
	if _, answered := tx.ResponseMap[responderID]; answered {
		return false, nil
	}

	var newSender, newRecipient Inventory
	wins := accept && s.ParticipantChipMap[responderID].Covers(tx.Offer.Buy)
	if wins {
		var err error
		newSender, newRecipient, err = Trade(s.ParticipantChipMap[senderID], s.ParticipantChipMap[responderID], tx.Offer)
		if err != nil {
			return false, err
		}
	}

	ts := e.now()
	tx = tx.clone()
	tx.ResponseMap[responderID] = Response{Accept: accept, Seq: len(tx.ResponseMap) + 1, Timestamp: ts}
	a := accept
	e.emit(Event{Type: EventResponse, Round: round, ParticipantID: responderID, Accept: &a, Timestamp: ts})

	if wins {
		tx.Status = StatusAccepted
		tx.RecipientID = responderID
		tx.ResolvedAt = &ts
		s.ParticipantChipMap[senderID] = newSender
		s.ParticipantChipMap[responderID] = newRecipient
		s.ParticipantOfferMap[round][senderID] = tx
		snapshot := tx.clone()
		e.emit(Event{Type: EventTransaction, Round: round, ParticipantID: senderID, Transaction: &snapshot, Timestamp: ts})
		e.advance(ts)
		s.Version++
		return true, nil
	}

	s.ParticipantOfferMap[round][senderID] = tx
	if e.Config.Policy() == RejectWhenAllRejected && e.allResponded(tx, senderID) {
		e.reject(round, senderID, ts)
	}
	s.Version++
	return true, nil
}

// ForceResolve is the external deadline hook: the pending transaction of
// senderID in round is closed as REJECTED and the turn advances.
func (e *Engine) ForceResolve(round int, senderID string) error {
	s := e.State
	e.events = nil
	tx, ok := s.Transaction(round, senderID)
	if !ok {
		return ErrUnknownTransaction
	}
	if tx.Status != StatusPending {
		return ErrAlreadyResolved
	}
	e.reject(round, senderID, e.now())
	s.Version++
	return nil
}

// SkipTurn advances past a participant who never submitted an offer.
func (e *Engine) SkipTurn(participantID string) error {
	s := e.State
	e.events = nil
	if s.IsGameOver {
		return ErrGameOver
	}
	if !s.HasParticipant(participantID) {
		return ErrUnknownParticipant
	}
	if participantID != s.CurrentTurn {
		return ErrOutOfTurn
	}
	if _, ok := s.Transaction(s.CurrentRound, participantID); ok {
		return ErrDuplicateTransaction
	}
	ts := e.now()
	e.emit(Event{Type: EventTurnSkipped, Round: s.CurrentRound, ParticipantID: participantID, Timestamp: ts})
	e.advance(ts)
	s.Version++
	return nil
}

func (e *Engine) allResponded(tx Transaction, senderID string) bool {
	for _, id := range e.State.TurnOrder {
		if id == senderID {
			continue
		}
		if _, ok := tx.ResponseMap[id]; !ok {
			return false
		}
	}
	return true
}

func (e *Engine) reject(round int, senderID string, ts time.Time) {
	s := e.State
	tx := s.ParticipantOfferMap[round][senderID].clone()
	tx.Status = StatusRejected
	tx.RecipientID = ""
	tx.ResolvedAt = &ts
	s.ParticipantOfferMap[round][senderID] = tx
	o := tx.Offer
	e.emit(Event{Type: EventOfferDeclined, Round: round, ParticipantID: senderID, Offer: &o, Timestamp: ts})
	e.advance(ts)
}

// advance moves the cursor to the next participant in turn order, rolling
// into the next round and ending the game after the last one.
func (e *Engine) advance(ts time.Time) {
	s := e.State
	next := s.TurnIndex(s.CurrentTurn) + 1
	round := s.CurrentRound
	if next >= len(s.TurnOrder) {
		next = 0
		round++
	}
	if round >= e.Config.NumRounds {
		s.CurrentRound = e.Config.NumRounds
		s.CurrentTurn = ""
		s.IsGameOver = true
		s.GameOverAt = &ts
		e.emit(Event{Type: EventGameOver, Round: s.CurrentRound, Timestamp: ts})
		return
	}
	if round != s.CurrentRound {
		s.CurrentRound = round
		e.emit(Event{Type: EventNewRound, Round: round, Timestamp: ts})
	}
	s.CurrentTurn = s.TurnOrder[next]
	e.emit(Event{Type: EventNewTurn, Round: round, ParticipantID: s.CurrentTurn, Timestamp: ts})
}

func (e *Engine) emit(ev Event) {
	e.State.EventSeq++
	ev.Seq = e.State.EventSeq
	e.events = append(e.events, ev)
}
