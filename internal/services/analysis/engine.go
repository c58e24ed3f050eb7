package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/finsight-ai/finsight/internal/common"
	"github.com/finsight-ai/finsight/internal/interfaces"
	"github.com/finsight-ai/finsight/internal/models"
	"github.com/finsight-ai/finsight/internal/services/resolver"
)

// AnswerRequest is a question scoped to a set of entities within a
// conversation. EntityIDs may use either identifier scheme; the engine
// normalizes them before analysis.
type AnswerRequest struct {
	Query          string
	EntityIDs      []string
	ConversationID string
}

// AnswerResult is the engine's composed answer
type AnswerResult struct {
	Answer           string
	DocumentsUsed    []string
	Escalated        bool
	InsufficientData bool
}

// Engine composes the tiered analysis flow: resolve identifiers, try the
// summary tier, escalate to full text when the policy says to.
type Engine struct {
	resolver  *resolver.Service
	documents interfaces.DocumentStorage
	tierOne   *TierOneAnalyzer
	tierTwo   *TierTwoAnalyzer
	policy    *EscalationPolicy
	logger    arbor.ILogger
}

// NewEngine creates the tiered analysis engine
func NewEngine(
	resolverSvc *resolver.Service,
	documents interfaces.DocumentStorage,
	summaries interfaces.SummaryStorage,
	llm interfaces.LLMService,
	config *common.AnalysisConfig,
	logger arbor.ILogger,
) *Engine {
	return &Engine{
		resolver:  resolverSvc,
		documents: documents,
		tierOne:   NewTierOneAnalyzer(summaries, documents, llm, config, logger),
		tierTwo:   NewTierTwoAnalyzer(documents, llm, config, logger),
		policy:    NewEscalationPolicy(config),
		logger:    logger,
	}
}

// TierTwo exposes the full-text analyzer for direct chunk navigation
func (e *Engine) TierTwo() *TierTwoAnalyzer {
	return e.tierTwo
}

// EndConversation releases pagination state held for a conversation
func (e *Engine) EndConversation(conversationID string) {
	e.tierTwo.EndConversation(conversationID)
}

// Answer runs the tiered flow for one query. Tier one always runs first;
// the escalation policy alone decides whether full-text analysis follows.
func (e *Engine) Answer(ctx context.Context, req AnswerRequest) (*AnswerResult, error) {
	table, err := e.resolver.BuildAliasTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build alias table: %w", err)
	}

	canonical := make([]string, 0, len(req.EntityIDs))
	seen := make(map[string]struct{}, len(req.EntityIDs))
	for _, id := range req.EntityIDs {
		norm := table.Normalize(id)
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		canonical = append(canonical, norm)
	}

	tierOne, err := e.tierOne.Analyze(ctx, req.Query, canonical)
	if err != nil {
		return nil, err
	}

	if !e.policy.ShouldEscalate(req.Query, tierOne) {
		return &AnswerResult{
			Answer:        tierOne.Answer,
			DocumentsUsed: tierOne.DocumentsUsed,
		}, nil
	}

	e.logger.Debug().
		Str("query", req.Query).
		Bool("insufficient_data", tierOne.InsufficientData).
		Msg("Escalating to full-text analysis")

	result := &AnswerResult{Escalated: true}

	var answers []string
	for _, entityID := range canonical {
		doc, err := e.mostRecentDocument(entityID, table)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}

		tierTwo, err := e.tierTwo.Analyze(ctx, req.Query, req.ConversationID, doc.ID, nil)
		if err != nil {
			return nil, err
		}

		answer := tierTwo.Answer
		if tierTwo.HasMoreChunks {
			answer = fmt.Sprintf("%s\n\n[Analyzed section %d of %d of %s; ask to continue for the next section.]",
				answer, tierTwo.CurrentChunk+1, tierTwo.TotalChunks, doc.Title)
		}
		answers = append(answers, answer)
		result.DocumentsUsed = append(result.DocumentsUsed, doc.ID)
	}

	if len(answers) == 0 {
		// Nothing to escalate into: no full text for any entity
		result.InsufficientData = true
		if tierOne.Answer != "" {
			result.Answer = tierOne.Answer
			result.DocumentsUsed = tierOne.DocumentsUsed
		} else {
			result.Answer = "No documents are available for the requested companies."
		}
		return result, nil
	}

	result.Answer = strings.Join(answers, "\n\n")
	return result, nil
}

// mostRecentDocument finds the newest document for an entity, trying the
// canonical id first and the opaque form second, since the document
// collection may still carry either scheme.
func (e *Engine) mostRecentDocument(entityID string, table *resolver.AliasTable) (*models.Document, error) {
	docs, err := e.documents.GetDocumentsByEntity(entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents for %s: %w", entityID, err)
	}
	if len(docs) == 0 {
		if opaque := table.Denormalize(entityID); opaque != entityID {
			docs, err = e.documents.GetDocumentsByEntity(opaque)
			if err != nil {
				return nil, fmt.Errorf("failed to load documents for %s: %w", opaque, err)
			}
		}
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}
