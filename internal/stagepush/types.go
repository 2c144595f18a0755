package stagepush

import (
	"time"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/stagepush/platforms"
)

const (
	ScopeAll        = "all"
	ScopeExperiment = "experiment"
	ScopeStage      = "stage"
)

// PushTarget is one webhook. ScopeValue is an experiment id for the
// experiment scope and a full "experiment/cohort/stage" key for the stage
// scope.
type PushTarget struct {
	Platform       string   `json:"platform"`
	Endpoint       string   `json:"endpoint"`
	Secret         string   `json:"secret"`
	ScopeType      string   `json:"scope_type"`
	ScopeValue     string   `json:"scope_value"`
	EventAllowlist []string `json:"event_allowlist"`
	Enabled        bool     `json:"enabled"`
}

// id identifies a target for circuit breaking; two entries pointing at the
// same webhook share one breaker.
func (t PushTarget) id() string {
	return t.Platform + "|" + t.Endpoint
}

type Config struct {
	Enabled             bool
	Targets             []PushTarget
	Workers             int
	RetryMax            int
	RetryBase           time.Duration
	FailureThreshold    int
	CircuitOpenDuration time.Duration
	RequestTimeout      time.Duration
	DispatchBuffer      int
}

type pushJob struct {
	Target    PushTarget
	EventType string
	Message   platforms.Message
	Attempt   int
}
