package stagepush

import (
	"strings"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/stage"
)

type Router struct{}

func (r Router) MatchTargets(targets []PushTarget, key stage.Key, eventType string) []PushTarget {
	if len(targets) == 0 {
		return nil
	}
	out := make([]PushTarget, 0, len(targets))
	for _, target := range targets {
		if !target.Enabled || !scopeMatches(target, key) || !eventAllowed(target.EventAllowlist, eventType) {
			continue
		}
		out = append(out, target)
	}
	return out
}

func scopeMatches(target PushTarget, key stage.Key) bool {
	switch target.ScopeType {
	case ScopeAll:
		return true
	case ScopeExperiment:
		return target.ScopeValue != "" && target.ScopeValue == key.ExperimentID
	case ScopeStage:
		return target.ScopeValue != "" && target.ScopeValue == key.String()
	default:
		return false
	}
}

func eventAllowed(allowlist []string, evType string) bool {
	if len(allowlist) == 0 {
		return true
	}
	evType = strings.ToLower(strings.TrimSpace(evType))
	for _, v := range allowlist {
		if v != "" && strings.ToLower(strings.TrimSpace(v)) == evType {
			return true
		}
	}
	return false
}
