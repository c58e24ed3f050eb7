package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/finsight-ai/finsight/internal/common"
	"github.com/finsight-ai/finsight/internal/interfaces"
)

// Service implements the LLMService interface on top of the provider
// factory. Every call goes through the default provider's model unless the
// caller overrides it with a model prefix in config.
type Service struct {
	factory *ProviderFactory
	config  *common.Config
	logger  arbor.ILogger
	timeout time.Duration
}

// NewService creates an LLM service using the configured default provider
func NewService(config *common.Config, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) (*Service, error) {
	factory := NewProviderFactory(&config.Gemini, &config.Claude, &config.LLM, kvStorage, logger)

	timeoutStr := config.Claude.Timeout
	if config.LLM.DefaultProvider == common.LLMProviderGemini {
		timeoutStr = config.Gemini.Timeout
	}
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", timeoutStr, err)
	}

	logger.Debug().
		Str("provider", string(config.LLM.DefaultProvider)).
		Dur("timeout", timeout).
		Msg("LLM service initialized")

	return &Service{
		factory: factory,
		config:  config,
		logger:  logger,
		timeout: timeout,
	}, nil
}

// Chat generates a completion from the full conversation history.
// Messages must be in chronological order; system prompts are allowed.
func (s *Service) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty for chat completion")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()

	resp, err := s.factory.GenerateContent(timeoutCtx, &ContentRequest{
		Messages: messages,
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Int("message_count", len(messages)).
			Msg("Chat completion failed")
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	s.logger.Debug().
		Int("message_count", len(messages)).
		Int("response_length", len(resp.Text)).
		Dur("duration", time.Since(startTime)).
		Msg("Chat completion completed")

	return resp.Text, nil
}

// Complete generates a single-turn completion for a prompt with an optional
// system prompt. Convenience wrapper over Chat for the analysis paths.
func (s *Service) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	messages := make([]interfaces.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, interfaces.Message{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, interfaces.Message{Role: "user", Content: prompt})

	return s.Chat(ctx, messages)
}

// Close releases provider resources
func (s *Service) Close() error {
	return s.factory.Close()
}
