package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/finsight-ai/finsight/internal/common"
	"github.com/finsight-ai/finsight/internal/interfaces"
	"github.com/finsight-ai/finsight/internal/models"
)

// LoopState describes where a reasoning run is in its lifecycle
type LoopState string

const (
	// StateRunning means the loop is mid-run with turns remaining
	StateRunning LoopState = "RUNNING"
	// StateDone means a final answer was produced
	StateDone LoopState = "DONE"
	// StateFailed means the loop terminated without an answer
	StateFailed LoopState = "FAILED"
)

// iterationLimitAnswer is returned to the user when the loop exhausts its
// turn budget. Policy: an apology, never an internal error message.
const iterationLimitAnswer = "I'm sorry, I wasn't able to complete the analysis within the allowed number of reasoning steps. Please try rephrasing or narrowing your question."

// RunResult is the outcome of one reasoning run
type RunResult struct {
	Answer        string
	Trace         *models.ReasoningTrace
	Failed        bool
	FailureReason string
}

// Loop drives the bounded Thought/Action/Observation cycle. Each run owns
// its trace; the loop itself is stateless between runs and safe for
// concurrent use.
type Loop struct {
	registry *Registry
	llm      interfaces.LLMService
	config   *common.AgentConfig
	logger   arbor.ILogger
}

// NewLoop creates a reasoning loop over the tool registry
func NewLoop(registry *Registry, llm interfaces.LLMService, config *common.AgentConfig, logger arbor.ILogger) *Loop {
	return &Loop{
		registry: registry,
		llm:      llm,
		config:   config,
		logger:   logger,
	}
}

// Run executes the reasoning loop for one query. history is the prior
// conversation; only the last HistoryWindow messages are embedded in the
// system prompt. The iteration ceiling is a hard stop: when it is reached
// without a final answer the run fails with the user-facing apology.
func (l *Loop) Run(ctx context.Context, query string, history []interfaces.Message) (*RunResult, error) {
	startTime := time.Now()

	trace := &models.ReasoningTrace{
		TraceID:   common.NewTraceID(),
		Query:     query,
		StartedAt: startTime,
	}

	conversationID := common.NewConversationID()
	ctx = WithConversationID(ctx, conversationID)

	systemPrompt := buildSystemPrompt(l.registry.FormatForPrompt(), history, l.config.HistoryWindow)
	transcript := []interfaces.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: query},
	}

	l.logger.Debug().
		Str("trace_id", trace.TraceID).
		Str("query", query).
		Int("max_iterations", l.config.MaxIterations).
		Msg("Starting reasoning loop")

	for turn := 0; turn < l.config.MaxIterations; turn++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		trace.Turns = turn + 1

		response, err := l.llm.Chat(ctx, transcript)
		if err != nil {
			// Recorded and retried on the next turn while budget remains
			l.logger.Warn().
				Str("trace_id", trace.TraceID).
				Int("turn", turn+1).
				Err(err).
				Msg("LLM call failed; retrying next turn")
			trace.AddStep(models.TraceStep{
				Observation: fmt.Sprintf("LLM call failed: %v", err),
				Timestamp:   time.Now(),
			})
			continue
		}

		parsed := ParseResponse(response)

		if parsed.IsFinal {
			trace.FinalAnswer = parsed.FinalAnswer
			trace.CompletedAt = time.Now()
			trace.AddStep(models.TraceStep{
				Thought:   parsed.Thought,
				Timestamp: time.Now(),
			})

			l.logger.Debug().
				Str("trace_id", trace.TraceID).
				Int("turns", trace.Turns).
				Dur("duration", time.Since(startTime)).
				Msg("Reasoning loop complete")

			return &RunResult{
				Answer: parsed.FinalAnswer,
				Trace:  trace,
			}, nil
		}

		if parsed.HasAction {
			observation := l.registry.Execute(ctx, parsed.ActionName, parsed.ActionInput)

			trace.AddStep(models.TraceStep{
				Thought:     parsed.Thought,
				Action:      fmt.Sprintf("%s(%s)", parsed.ActionName, parsed.ActionInput),
				Observation: observation,
				Timestamp:   time.Now(),
			})

			transcript = append(transcript,
				interfaces.Message{Role: "assistant", Content: response},
				interfaces.Message{Role: "user", Content: "Observation: " + observation},
			)
			continue
		}

		if parsed.MalformedAction {
			observation := "Invalid Action format. Use exactly: Action: tool_name(input)"
			trace.AddStep(models.TraceStep{
				Thought:     parsed.Thought,
				Observation: observation,
				Timestamp:   time.Now(),
			})
			transcript = append(transcript,
				interfaces.Message{Role: "assistant", Content: response},
				interfaces.Message{Role: "user", Content: "Observation: " + observation},
			)
			continue
		}

		// Neither an action nor a final answer: keep the text in the
		// transcript and let the model continue. Still costs a turn.
		trace.AddStep(models.TraceStep{
			Thought:   parsed.Thought,
			Timestamp: time.Now(),
		})
		transcript = append(transcript,
			interfaces.Message{Role: "assistant", Content: response},
			interfaces.Message{Role: "user", Content: "Observation: no action detected. Provide an Action or a Final Answer."},
		)
	}

	trace.Failure = "max iterations exhausted"
	trace.CompletedAt = time.Now()

	l.logger.Warn().
		Str("trace_id", trace.TraceID).
		Str("state", string(StateFailed)).
		Int("turns", trace.Turns).
		Msg("Reasoning loop exhausted iteration budget")

	return &RunResult{
		Answer:        iterationLimitAnswer,
		Trace:         trace,
		Failed:        true,
		FailureReason: trace.Failure,
	}, nil
}
