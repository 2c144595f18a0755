package negotiation

import (
	"github.com/PAIR-code/deliberate-lab-sub002/internal/chip"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/stage"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/store"

	"github.com/shopspring/decimal"
)

const (
	OpStart        = "start_stage"
	OpSubmitOffer  = "submit_offer"
	OpRespond      = "submit_response"
	OpForceResolve = "force_resolve"
	OpSkipTurn     = "skip_turn"

	adminActor = "admin"
)

type StartInput struct {
	Key          stage.Key        `json:"-"`
	Config       chip.StageConfig `json:"config"`
	Participants []store.Member   `json:"participants"`
}

type OfferInput struct {
	Key           stage.Key      `json:"-"`
	ParticipantID string         `json:"participant_id"`
	RequestID     string         `json:"request_id"`
	Buy           chip.Inventory `json:"buy"`
	Sell          chip.Inventory `json:"sell"`
}

type ResponseInput struct {
	Key           stage.Key `json:"-"`
	ParticipantID string    `json:"participant_id"`
	RequestID     string    `json:"request_id"`
	Round         int       `json:"round"`
	SenderID      string    `json:"sender_id"`
	Accept        bool      `json:"response"`
}

type ForceResolveInput struct {
	Key       stage.Key `json:"-"`
	RequestID string    `json:"request_id"`
	Round     int       `json:"round"`
	SenderID  string    `json:"sender_id"`
}

type SkipTurnInput struct {
	Key           stage.Key `json:"-"`
	RequestID     string    `json:"request_id"`
	ParticipantID string    `json:"participant_id"`
}

// CommandResult is the answer to every mutating command.
type CommandResult struct {
	Success   bool     `json:"success"`
	ErrorKind string   `json:"errorKind,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	Version   int64    `json:"version,omitempty"`
	Replayed  bool     `json:"replayed,omitempty"`
}

// PublicConfig is StageConfig without the private valuations.
type PublicConfig struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	Chips           []chip.ChipItem      `json:"chips"`
	NumRounds       int                  `json:"num_rounds"`
	EnableChat      bool                 `json:"enable_chat"`
	TurnSeed        uint64               `json:"turn_seed,string"`
	RejectionPolicy chip.RejectionPolicy `json:"rejection_policy"`
}

func publicConfig(cfg chip.StageConfig) PublicConfig {
	return PublicConfig{
		ID:              cfg.ID,
		Name:            cfg.Name,
		Chips:           cfg.Chips,
		NumRounds:       cfg.NumRounds,
		EnableChat:      cfg.EnableChat,
		TurnSeed:        cfg.TurnSeed,
		RejectionPolicy: cfg.Policy(),
	}
}

// StateView is what a caller sees of a stage. Self is set only when the
// caller identified as a roster member.
type StateView struct {
	Key          stage.Key          `json:"key"`
	Config       PublicConfig       `json:"config"`
	Participants []chip.Participant `json:"participants"`
	Public       chip.PublicData    `json:"public_data"`
	Self         *SelfView          `json:"self,omitempty"`
}

type SelfView struct {
	PublicID   string                     `json:"public_id"`
	Name       string                     `json:"name"`
	ChipValues map[string]decimal.Decimal `json:"chip_values"`
	IsTurn     bool                       `json:"is_turn"`
	// Pending lists open offers this participant may still answer.
	Pending []PendingOffer `json:"pending"`
}

type PendingOffer struct {
	Round      int         `json:"round"`
	SenderID   string      `json:"sender_id"`
	Offer      chip.Offer  `json:"offer"`
	Affordable bool        `json:"affordable"`
	Preview    chip.Payout `json:"preview"`
}
