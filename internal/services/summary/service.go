package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/finsight-ai/finsight/internal/common"
	"github.com/finsight-ai/finsight/internal/interfaces"
	"github.com/finsight-ai/finsight/internal/models"
	"github.com/finsight-ai/finsight/internal/services/analysis"
)

const documentSummarySystemPrompt = `You are a financial analyst. Condense the given earnings call transcript or SEC filing into a dense factual summary.

Include: revenue and profit figures, segment performance, guidance, notable management commentary, and material risks. Preserve exact numbers. Do not editorialize. Target 300-500 words.`

const entitySummarySystemPrompt = `You are a financial analyst. Synthesize the given per-document summaries of one company into a single narrative covering its recent trajectory.

Order the narrative from most recent to oldest. Preserve exact numbers and attribute them to their reporting period. Target 400-600 words.`

// Service generates and maintains document and entity summaries. Summaries
// are the cheap tier of analysis, so they are pre-computed rather than
// produced at query time.
type Service struct {
	documents interfaces.DocumentStorage
	summaries interfaces.SummaryStorage
	llm       interfaces.LLMService
	config    *common.AnalysisConfig
	model     string
	logger    arbor.ILogger
}

// NewService creates a summary generation service. model records which
// model produced each summary, for provenance only.
func NewService(
	documents interfaces.DocumentStorage,
	summaries interfaces.SummaryStorage,
	llm interfaces.LLMService,
	config *common.AnalysisConfig,
	model string,
	logger arbor.ILogger,
) *Service {
	return &Service{
		documents: documents,
		summaries: summaries,
		llm:       llm,
		config:    config,
		model:     model,
		logger:    logger,
	}
}

// GenerateDocumentSummary condenses one document's full text into a stored
// summary. Regeneration replaces the previous summary in place (upsert by
// DocumentID). Oversized documents are summarized from their first chunk.
func (s *Service) GenerateDocumentSummary(ctx context.Context, documentID string) (*models.DocumentSummary, error) {
	doc, err := s.documents.GetDocument(documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", documentID, err)
	}

	if strings.TrimSpace(doc.FullText) == "" {
		return nil, fmt.Errorf("document %s has no full text to summarize", documentID)
	}

	text := doc.FullText
	if analysis.ChunkCount(text, s.config.ChunkSize) > 1 {
		text, err = analysis.Chunk(text, s.config.ChunkSize, 0)
		if err != nil {
			return nil, err
		}
		s.logger.Debug().
			Str("document_id", documentID).
			Msg("Document oversized; summarizing first chunk only")
	}

	prompt := fmt.Sprintf("Document: %s (%s)\n\n%s", doc.Title, doc.PeriodLabel(), text)
	summaryText, err := s.llm.Complete(ctx, prompt, documentSummarySystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize document %s: %w", documentID, err)
	}

	summary := &models.DocumentSummary{
		DocumentID:  doc.ID,
		EntityID:    doc.EntityID,
		SummaryText: summaryText,
		GeneratedAt: time.Now(),
		Model:       s.model,
	}
	if err := s.summaries.SaveDocumentSummary(summary); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("document_id", documentID).
		Str("entity_id", doc.EntityID).
		Int("summary_length", len(summaryText)).
		Msg("Document summary generated")

	return summary, nil
}

// GenerateEntitySummary aggregates an entity's most recent document
// summaries into one narrative. Provenance is recorded most-recent-first
// in SourceDocumentIDs.
func (s *Service) GenerateEntitySummary(ctx context.Context, entityID string) (*models.EntitySummary, error) {
	docSummaries, err := s.summaries.GetSummariesByEntity(entityID, s.config.MaxSummaryDocs)
	if err != nil {
		return nil, fmt.Errorf("failed to load summaries for %s: %w", entityID, err)
	}
	if len(docSummaries) == 0 {
		return nil, fmt.Errorf("no document summaries exist for entity %s", entityID)
	}

	var b strings.Builder
	sourceIDs := make([]string, 0, len(docSummaries))
	for _, docSummary := range docSummaries {
		sourceIDs = append(sourceIDs, docSummary.DocumentID)
		period := "unknown period"
		if doc, err := s.documents.GetDocument(docSummary.DocumentID); err == nil {
			period = doc.PeriodLabel()
		}
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", period, docSummary.SummaryText)
	}

	narrative, err := s.llm.Complete(ctx, b.String(), entitySummarySystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize entity summary for %s: %w", entityID, err)
	}

	entitySummary := &models.EntitySummary{
		EntityID:          entityID,
		NarrativeText:     narrative,
		SourceDocumentIDs: sourceIDs,
		GeneratedAt:       time.Now(),
	}
	if err := s.summaries.SaveEntitySummary(entitySummary); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("entity_id", entityID).
		Int("source_documents", len(sourceIDs)).
		Msg("Entity summary generated")

	return entitySummary, nil
}

// GenerateForEntity summarizes every document of an entity that lacks a
// summary, then regenerates the entity narrative.
func (s *Service) GenerateForEntity(ctx context.Context, entityID string) error {
	docs, err := s.documents.GetDocumentsByEntity(entityID)
	if err != nil {
		return fmt.Errorf("failed to load documents for %s: %w", entityID, err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("no documents exist for entity %s", entityID)
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := s.summaries.GetDocumentSummary(doc.ID)
		if err == nil {
			continue // already summarized
		}
		if !errors.Is(err, interfaces.ErrSummaryNotFound) {
			return err
		}
		if _, err := s.GenerateDocumentSummary(ctx, doc.ID); err != nil {
			return err
		}
	}

	_, err = s.GenerateEntitySummary(ctx, entityID)
	return err
}

// GenerateAll runs GenerateForEntity over every entity in the document
// collection. Failures are logged and skipped so one bad entity does not
// block the rest.
func (s *Service) GenerateAll(ctx context.Context) error {
	entityIDs, err := s.documents.DistinctEntityIDs()
	if err != nil {
		return fmt.Errorf("failed to enumerate entities: %w", err)
	}

	for _, entityID := range entityIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.GenerateForEntity(ctx, entityID); err != nil {
			s.logger.Warn().
				Str("entity_id", entityID).
				Err(err).
				Msg("Skipping entity after summary failure")
		}
	}
	return nil
}

// RefreshEntitySummaries regenerates the narrative for every entity that
// already has document summaries.
func (s *Service) RefreshEntitySummaries(ctx context.Context) error {
	entityIDs, err := s.summaries.DistinctEntityIDs()
	if err != nil {
		return fmt.Errorf("failed to enumerate summarized entities: %w", err)
	}

	for _, entityID := range entityIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.GenerateEntitySummary(ctx, entityID); err != nil {
			s.logger.Warn().
				Str("entity_id", entityID).
				Err(err).
				Msg("Skipping entity summary refresh after failure")
		}
	}
	return nil
}
