package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-ai/finsight/internal/common"
	"github.com/finsight-ai/finsight/internal/interfaces"
)

// scriptedLLM returns a fixed sequence of responses, one per Chat call
type scriptedLLM struct {
	responses []string
	errs      map[int]error // call index -> error instead of response
	calls     int
	seen      [][]interfaces.Message
}

func (s *scriptedLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	idx := s.calls
	s.calls++
	s.seen = append(s.seen, messages)

	if err, ok := s.errs[idx]; ok {
		return "", err
	}
	if idx < len(s.responses) {
		return s.responses[idx], nil
	}
	return "", fmt.Errorf("scripted LLM exhausted after %d calls", len(s.responses))
}

func (s *scriptedLLM) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return s.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	})
}

// testRegistry builds a registry with a single scripted tool
func testRegistry(t *testing.T, run func(ctx context.Context, input string) (string, error)) *Registry {
	t.Helper()
	r := &Registry{
		tools:  make(map[string]*Tool),
		logger: common.GetLogger(),
	}
	r.register(&Tool{
		Name:        "lookup",
		Signature:   "lookup(id)",
		Description: "test tool",
		Run:         run,
	})
	return r
}

func testAgentConfig() *common.AgentConfig {
	cfg := common.NewDefaultConfig().Agent
	return &cfg
}

func TestLoopRun_ImmediateFinalAnswer(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		"Thought: simple question.\nFinal Answer: Hello! How can I help with company research?",
	}}
	loop := NewLoop(testRegistry(t, nil), llm, testAgentConfig(), common.GetLogger())

	result, err := loop.Run(context.Background(), "hi", nil)
	require.NoError(t, err)

	assert.False(t, result.Failed)
	assert.Equal(t, "Hello! How can I help with company research?", result.Answer)
	assert.Equal(t, 1, result.Trace.Turns)
	assert.Equal(t, result.Answer, result.Trace.FinalAnswer)
	assert.Empty(t, result.Trace.Failure)
}

func TestLoopRun_ActionThenFinal(t *testing.T) {
	var toolInput string
	registry := testRegistry(t, func(ctx context.Context, input string) (string, error) {
		toolInput = input
		return "3 documents available", nil
	})

	llm := &scriptedLLM{responses: []string{
		"Thought: check the data first.\nAction: lookup(NVDA)",
		"Thought: the data exists.\nFinal Answer: NVIDIA has 3 documents on file.",
	}}
	loop := NewLoop(registry, llm, testAgentConfig(), common.GetLogger())

	result, err := loop.Run(context.Background(), "what do we have on NVDA?", nil)
	require.NoError(t, err)

	assert.False(t, result.Failed)
	assert.Equal(t, "NVDA", toolInput)
	assert.Equal(t, 2, result.Trace.Turns)

	// Observation was fed back as a user message on the second call
	secondCall := llm.seen[1]
	last := secondCall[len(secondCall)-1]
	assert.Equal(t, "user", last.Role)
	assert.Equal(t, "Observation: 3 documents available", last.Content)

	// Trace recorded the action step
	require.GreaterOrEqual(t, len(result.Trace.Steps), 2)
	assert.Equal(t, "lookup(NVDA)", result.Trace.Steps[0].Action)
	assert.Equal(t, "3 documents available", result.Trace.Steps[0].Observation)
}

func TestLoopRun_ToolErrorBecomesObservation(t *testing.T) {
	registry := testRegistry(t, func(ctx context.Context, input string) (string, error) {
		return "", errors.New("storage unavailable")
	})

	llm := &scriptedLLM{responses: []string{
		"Action: lookup(NVDA)",
		"Final Answer: I could not access the data.",
	}}
	loop := NewLoop(registry, llm, testAgentConfig(), common.GetLogger())

	result, err := loop.Run(context.Background(), "check NVDA", nil)
	require.NoError(t, err)
	assert.False(t, result.Failed)

	secondCall := llm.seen[1]
	last := secondCall[len(secondCall)-1]
	assert.Contains(t, last.Content, "Error executing lookup: storage unavailable")
}

func TestLoopRun_UnknownToolBecomesObservation(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		"Action: fetch_stock_price(NVDA)",
		"Final Answer: that tool does not exist.",
	}}
	loop := NewLoop(testRegistry(t, nil), llm, testAgentConfig(), common.GetLogger())

	result, err := loop.Run(context.Background(), "price of NVDA?", nil)
	require.NoError(t, err)
	assert.False(t, result.Failed)

	secondCall := llm.seen[1]
	last := secondCall[len(secondCall)-1]
	assert.Contains(t, last.Content, `Unknown tool "fetch_stock_price"`)
	assert.Contains(t, last.Content, "lookup")
}

func TestLoopRun_MalformedActionFeedback(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		"Action: lookup NVDA",
		"Final Answer: retried with correct format.",
	}}
	loop := NewLoop(testRegistry(t, nil), llm, testAgentConfig(), common.GetLogger())

	result, err := loop.Run(context.Background(), "check NVDA", nil)
	require.NoError(t, err)
	assert.False(t, result.Failed)

	secondCall := llm.seen[1]
	last := secondCall[len(secondCall)-1]
	assert.Contains(t, last.Content, "Invalid Action format")
}

func TestLoopRun_IterationCeiling(t *testing.T) {
	// The model loops forever; the ceiling must stop it with the apology
	config := testAgentConfig()
	config.MaxIterations = 3

	registry := testRegistry(t, func(ctx context.Context, input string) (string, error) {
		return "still looking", nil
	})
	llm := &scriptedLLM{responses: []string{
		"Action: lookup(a)",
		"Action: lookup(b)",
		"Action: lookup(c)",
		"Action: lookup(d)", // never reached
	}}
	loop := NewLoop(registry, llm, config, common.GetLogger())

	result, err := loop.Run(context.Background(), "endless", nil)
	require.NoError(t, err)

	assert.True(t, result.Failed)
	assert.Equal(t, "max iterations exhausted", result.FailureReason)
	assert.Equal(t, iterationLimitAnswer, result.Answer)
	assert.Equal(t, 3, result.Trace.Turns)
	assert.Equal(t, 3, llm.calls, "exactly the ceiling, never more")
}

func TestLoopRun_FinalAnswerOnLastTurn(t *testing.T) {
	config := testAgentConfig()
	config.MaxIterations = 2

	registry := testRegistry(t, func(ctx context.Context, input string) (string, error) {
		return "found it", nil
	})
	llm := &scriptedLLM{responses: []string{
		"Action: lookup(NVDA)",
		"Final Answer: answered on the last allowed turn.",
	}}
	loop := NewLoop(registry, llm, config, common.GetLogger())

	result, err := loop.Run(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.False(t, result.Failed)
	assert.Equal(t, "answered on the last allowed turn.", result.Answer)
}

func TestLoopRun_LLMErrorRetriedNextTurn(t *testing.T) {
	llm := &scriptedLLM{
		responses: []string{
			"", // consumed by the error below
			"Final Answer: recovered.",
		},
		errs: map[int]error{0: errors.New("rate limited")},
	}
	loop := NewLoop(testRegistry(t, nil), llm, testAgentConfig(), common.GetLogger())

	result, err := loop.Run(context.Background(), "q", nil)
	require.NoError(t, err)

	assert.False(t, result.Failed)
	assert.Equal(t, "recovered.", result.Answer)
	// The failure is visible in the trace
	require.NotEmpty(t, result.Trace.Steps)
	assert.Contains(t, result.Trace.Steps[0].Observation, "LLM call failed")
}

func TestLoopRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	llm := &scriptedLLM{responses: []string{"Final Answer: never reached"}}
	loop := NewLoop(testRegistry(t, nil), llm, testAgentConfig(), common.GetLogger())

	_, err := loop.Run(ctx, "q", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoopRun_HistoryWindowBounded(t *testing.T) {
	config := testAgentConfig()
	config.HistoryWindow = 2

	history := []interfaces.Message{
		{Role: "user", Content: "oldest message should be dropped"},
		{Role: "assistant", Content: "kept one"},
		{Role: "user", Content: "kept two"},
	}

	llm := &scriptedLLM{responses: []string{"Final Answer: ok"}}
	loop := NewLoop(testRegistry(t, nil), llm, config, common.GetLogger())

	_, err := loop.Run(context.Background(), "q", history)
	require.NoError(t, err)

	systemMsg := llm.seen[0][0]
	assert.Equal(t, "system", systemMsg.Role)
	assert.NotContains(t, systemMsg.Content, "oldest message should be dropped")
	assert.Contains(t, systemMsg.Content, "kept one")
	assert.Contains(t, systemMsg.Content, "kept two")
}

func TestRegistryExecute_PanicRecovered(t *testing.T) {
	registry := testRegistry(t, func(ctx context.Context, input string) (string, error) {
		panic("boom")
	})

	observation := registry.Execute(context.Background(), "lookup", "x")
	assert.Contains(t, observation, "Error executing lookup")
}

func TestRegistryFormatForPrompt(t *testing.T) {
	registry := testRegistry(t, nil)
	rendered := registry.FormatForPrompt()
	assert.Contains(t, rendered, "lookup(id)")
	assert.Contains(t, rendered, "test tool")
}
