package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finsight-ai/finsight/internal/common"
)

func newTestPolicy() *EscalationPolicy {
	return NewEscalationPolicy(&common.NewDefaultConfig().Analysis)
}

func TestShouldEscalate_SufficientAnswer(t *testing.T) {
	policy := newTestPolicy()
	result := &TierOneResult{
		Answer: strings.Repeat("NVIDIA reported strong data center revenue growth. ", 3),
	}
	assert.False(t, policy.ShouldEscalate("How did NVIDIA perform last quarter?", result))
}

func TestShouldEscalate_InsufficientData(t *testing.T) {
	policy := newTestPolicy()
	result := &TierOneResult{InsufficientData: true}
	assert.True(t, policy.ShouldEscalate("How did NVIDIA perform?", result))
}

func TestShouldEscalate_NilResult(t *testing.T) {
	policy := newTestPolicy()
	assert.True(t, policy.ShouldEscalate("anything", nil))
}

func TestShouldEscalate_TriggerPhrases(t *testing.T) {
	policy := newTestPolicy()
	longAnswer := &TierOneResult{
		Answer: strings.Repeat("A perfectly adequate summary-based answer. ", 4),
	}

	queries := []string{
		"Give me a detailed breakdown of margins",
		"What was the EXACT WORDING of the guidance?",
		"Quote the CEO verbatim on buybacks",
		"I need an in-depth review of segment results",
		"What did they say word for word about China?",
		"Walk me through the full text of the risk section",
		"Give me specifics on data center revenue",
	}
	for _, query := range queries {
		t.Run(query, func(t *testing.T) {
			assert.True(t, policy.ShouldEscalate(query, longAnswer))
		})
	}
}

func TestShouldEscalate_ShortOrEmptyAnswer(t *testing.T) {
	policy := newTestPolicy()

	assert.True(t, policy.ShouldEscalate("How was the quarter?", &TierOneResult{Answer: ""}))
	assert.True(t, policy.ShouldEscalate("How was the quarter?", &TierOneResult{Answer: "Revenue grew."}))
	assert.True(t, policy.ShouldEscalate("How was the quarter?", &TierOneResult{Answer: "   \n  "}))
}

func TestShouldEscalate_CaseInsensitiveTriggers(t *testing.T) {
	policy := newTestPolicy()
	longAnswer := &TierOneResult{
		Answer: strings.Repeat("A perfectly adequate summary-based answer. ", 4),
	}
	assert.True(t, policy.ShouldEscalate("Need a DETAILED look", longAnswer))
	assert.True(t, policy.ShouldEscalate("need a Detailed look", longAnswer))
}
