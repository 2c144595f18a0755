package chip

import (
	"time"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/stage"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	StatusPending  TransactionStatus = "PENDING"
	StatusAccepted TransactionStatus = "ACCEPTED"
	StatusRejected TransactionStatus = "REJECTED"
)

// RejectionPolicy decides when a transaction with no acceptance resolves.
type RejectionPolicy string

const (
	// RejectWhenAllRejected resolves REJECTED once every other participant has
	// responded without an affordable acceptance.
	RejectWhenAllRejected RejectionPolicy = "all_rejected"
	// RejectExternal only resolves REJECTED through ForceResolve.
	RejectExternal RejectionPolicy = "external"
)

type ChipItem struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Avatar           string `json:"avatar"`
	StartingQuantity int64  `json:"starting_quantity"`
	CanBuy           *bool  `json:"can_buy,omitempty"`
	CanSell          *bool  `json:"can_sell,omitempty"`
}

func (c ChipItem) Buyable() bool {
	return c.CanBuy == nil || *c.CanBuy
}

func (c ChipItem) Sellable() bool {
	return c.CanSell == nil || *c.CanSell
}

// StageConfig is written once at authoring time. ParticipantChipValues is
// private and must never be copied into PublicData.
type StageConfig struct {
	ID                    string                                `json:"id"`
	Name                  string                                `json:"name"`
	Chips                 []ChipItem                            `json:"chips"`
	NumRounds             int                                   `json:"num_rounds"`
	EnableChat            bool                                  `json:"enable_chat"`
	TurnSeed              uint64                                `json:"turn_seed,string"`
	RejectionPolicy       RejectionPolicy                       `json:"rejection_policy"`
	ParticipantChipValues map[string]map[string]decimal.Decimal `json:"participant_chip_values"`
}

func (c StageConfig) StageID() string       { return c.ID }
func (c StageConfig) StageKind() stage.Kind { return stage.KindChip }

func (c StageConfig) Chip(id string) (ChipItem, bool) {
	for _, it := range c.Chips {
		if it.ID == id {
			return it, true
		}
	}
	return ChipItem{}, false
}

func (c StageConfig) Policy() RejectionPolicy {
	if c.RejectionPolicy == "" {
		return RejectWhenAllRejected
	}
	return c.RejectionPolicy
}

func (c StageConfig) StartingInventory() Inventory {
	inv := make(Inventory, len(c.Chips))
	for _, it := range c.Chips {
		inv[it.ID] = it.StartingQuantity
	}
	return inv
}

func (c StageConfig) Validate() error {
	if c.ID == "" {
		return ErrInvalidConfig
	}
	if c.NumRounds <= 0 || len(c.Chips) == 0 {
		return ErrInvalidConfig
	}
	seen := map[string]bool{}
	for _, it := range c.Chips {
		if it.ID == "" || seen[it.ID] || it.StartingQuantity < 0 {
			return ErrInvalidConfig
		}
		seen[it.ID] = true
	}
	switch c.Policy() {
	case RejectWhenAllRejected, RejectExternal:
	default:
		return ErrInvalidConfig
	}
	return nil
}

type Offer struct {
	ID        string    `json:"id"`
	Round     int       `json:"round"`
	SenderID  string    `json:"sender_id"`
	Buy       Inventory `json:"buy"`
	Sell      Inventory `json:"sell"`
	Timestamp time.Time `json:"timestamp"`
}

// Response records one participant's answer. Seq is the commit order within
// the transaction and is what decides acceptance order.
type Response struct {
	Accept    bool      `json:"response"`
	Seq       int       `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}

type Transaction struct {
	Offer       Offer               `json:"offer"`
	ResponseMap map[string]Response `json:"response_map"`
	Status      TransactionStatus   `json:"status"`
	RecipientID string              `json:"recipient_id,omitempty"`
	ResolvedAt  *time.Time          `json:"resolved_at,omitempty"`
}

// OrderedResponders returns responder ids in acceptance order.
func (t Transaction) OrderedResponders() []string {
	out := make([]string, 0, len(t.ResponseMap))
	for id := range t.ResponseMap {
		out = append(out, id)
	}
	sortBySeq(out, t.ResponseMap)
	return out
}

// PublicData is the single shared document for one stage instance.
type PublicData struct {
	StageID             string                         `json:"stage_id"`
	Version             int64                          `json:"version"`
	ParticipantChipMap  map[string]Inventory           `json:"participant_chip_map"`
	ParticipantOfferMap map[int]map[string]Transaction `json:"participant_offer_map"`
	TurnOrder           []string                       `json:"turn_order"`
	CurrentRound        int                            `json:"current_round"`
	CurrentTurn         string                         `json:"current_turn"`
	IsGameOver          bool                           `json:"is_game_over"`
	GameOverAt          *time.Time                     `json:"game_over_at,omitempty"`
	EventSeq            int64                          `json:"event_seq"`
}

func (p PublicData) StageKind() stage.Kind  { return stage.KindChip }
func (p PublicData) SnapshotVersion() int64 { return p.Version }

func (p PublicData) Transaction(round int, senderID string) (Transaction, bool) {
	rm, ok := p.ParticipantOfferMap[round]
	if !ok {
		return Transaction{}, false
	}
	tx, ok := rm[senderID]
	return tx, ok
}

func (p PublicData) TurnIndex(participantID string) int {
	for i, id := range p.TurnOrder {
		if id == participantID {
			return i
		}
	}
	return -1
}

func (p PublicData) HasParticipant(participantID string) bool {
	return p.TurnIndex(participantID) >= 0
}

// Clone returns a deep copy so callers can mutate without touching the
// snapshot they read.
func (p PublicData) Clone() PublicData {
	out := p
	out.ParticipantChipMap = make(map[string]Inventory, len(p.ParticipantChipMap))
	for id, inv := range p.ParticipantChipMap {
		out.ParticipantChipMap[id] = inv.Clone()
	}
	out.ParticipantOfferMap = make(map[int]map[string]Transaction, len(p.ParticipantOfferMap))
	for round, rm := range p.ParticipantOfferMap {
		nm := make(map[string]Transaction, len(rm))
		for sender, tx := range rm {
			nm[sender] = tx.clone()
		}
		out.ParticipantOfferMap[round] = nm
	}
	out.TurnOrder = append([]string(nil), p.TurnOrder...)
	if p.GameOverAt != nil {
		t := *p.GameOverAt
		out.GameOverAt = &t
	}
	return out
}

func (t Transaction) clone() Transaction {
	out := t
	out.Offer.Buy = t.Offer.Buy.Clone()
	out.Offer.Sell = t.Offer.Sell.Clone()
	out.ResponseMap = make(map[string]Response, len(t.ResponseMap))
	for id, r := range t.ResponseMap {
		out.ResponseMap[id] = r
	}
	if t.ResolvedAt != nil {
		ts := *t.ResolvedAt
		out.ResolvedAt = &ts
	}
	return out
}
