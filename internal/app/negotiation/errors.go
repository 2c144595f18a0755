package negotiation

import (
	"errors"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/chip"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/stage"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/store"
)

var (
	ErrInvalidRequest          = errors.New("invalid_request")
	ErrStageNotFound           = errors.New("stage_not_found")
	ErrStageExists             = errors.New("stage_exists")
	ErrConcurrentWriteConflict = errors.New("concurrent_write_conflict")
	ErrInternal                = errors.New("internal_error")
)

// kinds lists every error that crosses the command boundary with its own
// errorKind. Order matters only for wrapped errors matching several.
var kinds = []error{
	chip.ErrInvalidOffer,
	chip.ErrOutOfTurn,
	chip.ErrDuplicateTransaction,
	chip.ErrUnknownTransaction,
	chip.ErrAlreadyResolved,
	chip.ErrGameOver,
	chip.ErrUnknownParticipant,
	chip.ErrSelfResponse,
	chip.ErrInvalidConfig,
	chip.ErrInsufficientChips,
	chip.ErrNotStarted,
	stage.ErrInvalidKey,
	ErrInvalidRequest,
	ErrStageNotFound,
	ErrStageExists,
	ErrConcurrentWriteConflict,
}

// ErrorKind maps err to its wire errorKind. Unclassified errors are
// internal_error.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrStageNotFound.Error()
	case errors.Is(err, store.ErrAlreadyExists):
		return ErrStageExists.Error()
	case errors.Is(err, store.ErrVersionConflict):
		return ErrConcurrentWriteConflict.Error()
	}
	return ErrInternal.Error()
}

func errorForKind(kind string) error {
	for _, k := range kinds {
		if k.Error() == kind {
			return k
		}
	}
	return ErrInternal
}

// isTerminal reports whether err is a caller mistake that a retry with the
// same request id must reproduce.
func isTerminal(err error) bool {
	k := ErrorKind(err)
	return k != ErrInternal.Error() && k != ErrConcurrentWriteConflict.Error()
}
