package chip

import (
	"errors"
	"strings"
)

var (
	ErrOutOfTurn            = errors.New("out_of_turn")
	ErrInvalidOffer         = errors.New("invalid_offer")
	ErrDuplicateTransaction = errors.New("duplicate_transaction")
	ErrUnknownTransaction   = errors.New("unknown_transaction")
	ErrAlreadyResolved      = errors.New("already_resolved")
	ErrGameOver             = errors.New("game_over")
	ErrUnknownParticipant   = errors.New("unknown_participant")
	ErrSelfResponse         = errors.New("self_response")
	ErrInvalidConfig        = errors.New("invalid_stage_config")
	ErrInsufficientChips    = errors.New("insufficient_chips")
	ErrNotStarted           = errors.New("not_started")
)

// OfferError carries the validator messages for a rejected offer.
type OfferError struct {
	Errors []string
}

func (e *OfferError) Error() string {
	if len(e.Errors) == 0 {
		return ErrInvalidOffer.Error()
	}
	return ErrInvalidOffer.Error() + ": " + strings.Join(e.Errors, "; ")
}

func (e *OfferError) Unwrap() error {
	return ErrInvalidOffer
}
