package analysis

import (
	"strings"

	"github.com/finsight-ai/finsight/internal/common"
)

// EscalationPolicy decides whether a query needs full-text analysis after
// a summary-based attempt. Deterministic; no LLM involvement, so the
// escalation decision is reproducible and testable.
type EscalationPolicy struct {
	triggers        []string
	minAnswerLength int
}

// NewEscalationPolicy creates a policy from the analysis configuration
func NewEscalationPolicy(config *common.AnalysisConfig) *EscalationPolicy {
	triggers := make([]string, 0, len(config.EscalationTriggers))
	for _, t := range config.EscalationTriggers {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			triggers = append(triggers, t)
		}
	}
	return &EscalationPolicy{
		triggers:        triggers,
		minAnswerLength: config.MinAnswerLength,
	}
}

// ShouldEscalate returns true when the tier-one result is insufficient, the
// query asks for depth the summaries cannot provide, or the answer is too
// short to be useful. Matching is case-insensitive.
func (p *EscalationPolicy) ShouldEscalate(query string, tierOne *TierOneResult) bool {
	if tierOne == nil || tierOne.InsufficientData {
		return true
	}

	lowered := strings.ToLower(query)
	for _, trigger := range p.triggers {
		if strings.Contains(lowered, trigger) {
			return true
		}
	}

	answer := strings.TrimSpace(tierOne.Answer)
	if answer == "" || len(answer) < p.minAnswerLength {
		return true
	}

	return false
}
