package chip

import "time"

type EventType string

const (
	EventNewRound      EventType = "new_round"
	EventNewTurn       EventType = "new_turn"
	EventOffer         EventType = "offer"
	EventResponse      EventType = "response"
	EventOfferDeclined EventType = "offer_declined"
	EventTransaction   EventType = "transaction"
	EventTurnSkipped   EventType = "turn_skipped"
	EventGameOver      EventType = "game_over"
)

// Event is one append-only entry of the stage history. Seq is dense and
// strictly increasing per stage.
type Event struct {
	Seq           int64        `json:"seq"`
	Type          EventType    `json:"type"`
	Round         int          `json:"round"`
	ParticipantID string       `json:"participant_id,omitempty"`
	Offer         *Offer       `json:"offer,omitempty"`
	Transaction   *Transaction `json:"transaction,omitempty"`
	Accept        *bool        `json:"accept,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}
