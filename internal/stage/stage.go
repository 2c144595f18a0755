// Package stage holds the envelope shared by every experiment stage kind.
// The chip negotiation engine implements these interfaces but never
// depends on sibling kinds.
package stage

import (
	"errors"
	"strings"
	"time"
)

type Kind string

const (
	KindChip     Kind = "chip"
	KindSurvey   Kind = "survey"
	KindChat     Kind = "chat"
	KindProfile  Kind = "profile"
	KindElection Kind = "election"
	KindPayout   Kind = "payout"
	KindReveal   Kind = "reveal"
	KindTOS      Kind = "tos"
)

var ErrInvalidKey = errors.New("invalid_stage_key")

// Key scopes a stage instance to one cohort of one experiment.
type Key struct {
	ExperimentID string `json:"experiment_id"`
	CohortID     string `json:"cohort_id"`
	StageID      string `json:"stage_id"`
}

// Validate requires three non-empty ids without "/", so String round-trips
// through ParseKey.
func (k Key) Validate() error {
	for _, id := range []string{k.ExperimentID, k.CohortID, k.StageID} {
		if strings.TrimSpace(id) == "" || strings.Contains(id, "/") {
			return ErrInvalidKey
		}
	}
	return nil
}

func (k Key) String() string {
	return k.ExperimentID + "/" + k.CohortID + "/" + k.StageID
}

func ParseKey(s string) (Key, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Key{}, false
	}
	k := Key{ExperimentID: parts[0], CohortID: parts[1], StageID: parts[2]}
	if k.Validate() != nil {
		return Key{}, false
	}
	return k, true
}

// Config is the static, authoring-time configuration of a stage.
type Config interface {
	StageID() string
	StageKind() Kind
}

// PublicData is the cohort-wide state every observer reads.
type PublicData interface {
	StageKind() Kind
	SnapshotVersion() int64
}

// Answer is the participant-local progress marker the surrounding framework
// uses to gate "ready for next stage".
type Answer struct {
	StageID              string     `json:"stage_id"`
	Kind                 Kind       `json:"kind"`
	ParticipantPrivateID string     `json:"participant_private_id"`
	ReadyAt              *time.Time `json:"ready_at,omitempty"`
}

func (a Answer) IsReady() bool {
	return a.ReadyAt != nil
}
