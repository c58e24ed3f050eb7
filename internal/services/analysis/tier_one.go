package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/finsight-ai/finsight/internal/common"
	"github.com/finsight-ai/finsight/internal/interfaces"
)

// TierOneResult is the outcome of a summary-based analysis pass
type TierOneResult struct {
	Answer string

	// DocumentsUsed lists the exact document ids whose material fed the
	// answer, including every source document behind an entity narrative,
	// so the caller always knows the evidence base.
	DocumentsUsed []string

	// EntitiesRequested counts the entities material was sought for;
	// EntitiesWithMaterial counts those that contributed at least one
	// block. A gap between the two means the answer is partial.
	// SummariesUsed counts the summary blocks actually included.
	EntitiesRequested    int
	EntitiesWithMaterial int
	SummariesUsed        int

	// InsufficientData is set when no summary material exists for any
	// requested entity. No LLM call is made in that case.
	InsufficientData bool
}

// summaryBlock is one tagged piece of summary material for the prompt.
// DocumentID labels the block in the prompt; SourceDocumentIDs is its full
// provenance, which for an entity narrative spans several documents.
type summaryBlock struct {
	DocumentID        string
	SourceDocumentIDs []string
	EntityID          string
	Period            string
	Text              string
}

// TierOneAnalyzer answers queries from pre-computed summaries. It is the
// cheap path: bounded prompt, single LLM call, never touches full text.
type TierOneAnalyzer struct {
	summaries interfaces.SummaryStorage
	documents interfaces.DocumentStorage
	llm       interfaces.LLMService
	config    *common.AnalysisConfig
	logger    arbor.ILogger
}

// NewTierOneAnalyzer creates a summary-based analyzer
func NewTierOneAnalyzer(
	summaries interfaces.SummaryStorage,
	documents interfaces.DocumentStorage,
	llm interfaces.LLMService,
	config *common.AnalysisConfig,
	logger arbor.ILogger,
) *TierOneAnalyzer {
	return &TierOneAnalyzer{
		summaries: summaries,
		documents: documents,
		llm:       llm,
		config:    config,
		logger:    logger,
	}
}

// Analyze answers the query from summaries of the given entities. Entity
// ids must already be canonical (resolver-normalized). Per entity the
// entity-level narrative is preferred; otherwise up to MaxSummaryDocs
// most-recent document summaries are used. When nothing is available for
// any entity the result reports InsufficientData instead of fabricating.
func (a *TierOneAnalyzer) Analyze(ctx context.Context, query string, entityIDs []string) (*TierOneResult, error) {
	result := &TierOneResult{
		EntitiesRequested: len(entityIDs),
	}

	if len(entityIDs) == 0 {
		result.InsufficientData = true
		return result, nil
	}

	var blocks []summaryBlock
	for _, entityID := range entityIDs {
		entityBlocks, err := a.collectBlocks(entityID)
		if err != nil {
			return nil, err
		}
		if len(entityBlocks) > 0 {
			result.EntitiesWithMaterial++
		}
		blocks = append(blocks, entityBlocks...)
	}

	if len(blocks) == 0 {
		a.logger.Debug().
			Int("entities", len(entityIDs)).
			Msg("No summary material for any requested entity")
		result.InsufficientData = true
		return result, nil
	}

	result.SummariesUsed = len(blocks)
	seen := make(map[string]struct{})
	for _, block := range blocks {
		for _, id := range block.SourceDocumentIDs {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			result.DocumentsUsed = append(result.DocumentsUsed, id)
		}
	}

	prompt := buildTierOnePrompt(query, blocks)
	answer, err := a.llm.Complete(ctx, prompt, tierOneSystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("summary analysis failed: %w", err)
	}

	result.Answer = answer
	return result, nil
}

// collectBlocks gathers the summary material for one entity. The entity
// narrative wins when present; its provenance becomes DocumentsUsed.
func (a *TierOneAnalyzer) collectBlocks(entityID string) ([]summaryBlock, error) {
	entitySummary, err := a.summaries.GetEntitySummary(entityID)
	if err == nil {
		block := summaryBlock{
			SourceDocumentIDs: entitySummary.SourceDocumentIDs,
			EntityID:          entityID,
			Period:            "entity overview",
			Text:              entitySummary.NarrativeText,
		}
		// The most recent source labels the block; every source document
		// stays in the provenance.
		if len(entitySummary.SourceDocumentIDs) > 0 {
			block.DocumentID = entitySummary.SourceDocumentIDs[0]
		}
		return []summaryBlock{block}, nil
	}
	if !errors.Is(err, interfaces.ErrSummaryNotFound) {
		return nil, fmt.Errorf("failed to load entity summary for %s: %w", entityID, err)
	}

	summaries, err := a.summaries.GetSummariesByEntity(entityID, a.config.MaxSummaryDocs)
	if err != nil {
		return nil, fmt.Errorf("failed to load summaries for %s: %w", entityID, err)
	}

	blocks := make([]summaryBlock, 0, len(summaries))
	for _, summary := range summaries {
		blocks = append(blocks, summaryBlock{
			DocumentID:        summary.DocumentID,
			SourceDocumentIDs: []string{summary.DocumentID},
			EntityID:          entityID,
			Period:            a.periodLabel(summary.DocumentID),
			Text:              summary.SummaryText,
		})
	}
	return blocks, nil
}

// periodLabel resolves a human-readable period for a document, falling back
// to "unknown period" when the document is missing.
func (a *TierOneAnalyzer) periodLabel(documentID string) string {
	doc, err := a.documents.GetDocument(documentID)
	if err != nil {
		return "unknown period"
	}
	return doc.PeriodLabel()
}
