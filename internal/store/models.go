package store

import (
	"errors"
	"time"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/chip"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/stage"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrVersionConflict = errors.New("version conflict")
)

// Member is one roster entry. PrivateID is the caller credential; only
// PublicID ever appears in public data.
type Member struct {
	PrivateID string `json:"private_id"`
	PublicID  string `json:"public_id"`
	Name      string `json:"name"`
}

// StageRecord is the persisted document of one negotiation stage instance.
type StageRecord struct {
	Key       stage.Key        `json:"key"`
	Config    chip.StageConfig `json:"config"`
	Roster    []Member         `json:"roster"`
	Public    chip.PublicData  `json:"public"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (r *StageRecord) Version() int64 {
	return r.Public.Version
}

// MemberByPrivateID resolves a caller credential to its roster entry.
func (r *StageRecord) MemberByPrivateID(privateID string) (Member, bool) {
	for _, m := range r.Roster {
		if m.PrivateID == privateID {
			return m, true
		}
	}
	return Member{}, false
}

func (r *StageRecord) Participants() []chip.Participant {
	out := make([]chip.Participant, 0, len(r.Roster))
	for _, m := range r.Roster {
		out = append(out, chip.Participant{PublicID: m.PublicID, Name: m.Name})
	}
	return out
}

func (r *StageRecord) clone() *StageRecord {
	out := *r
	out.Roster = append([]Member(nil), r.Roster...)
	out.Public = r.Public.Clone()
	return &out
}

// CommandResult is the stored outcome of one client command, keyed by its
// request id so a retried command returns the same answer.
type CommandResult struct {
	RequestID     string    `json:"request_id"`
	ParticipantID string    `json:"participant_id"`
	Op            string    `json:"op"`
	Success       bool      `json:"success"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
}

// Commit is everything one successful command writes together.
type Commit struct {
	Public  chip.PublicData
	Events  []chip.Event
	Command *CommandResult
}
