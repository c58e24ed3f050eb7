package badger

import (
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/finsight-ai/finsight/internal/interfaces"
	"github.com/finsight-ai/finsight/internal/models"
)

// entitySummaryKeyPrefix keeps entity narratives from colliding with
// document summary keys in the shared badgerhold namespace.
const entitySummaryKeyPrefix = "entity:"

// SummaryStorage implements the SummaryStorage interface for Badger
type SummaryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSummaryStorage creates a new SummaryStorage instance
func NewSummaryStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SummaryStorage {
	return &SummaryStorage{
		db:     db,
		logger: logger,
	}
}

// SaveDocumentSummary upserts keyed by DocumentID, so regenerating a summary
// replaces the previous one instead of accumulating versions.
func (s *SummaryStorage) SaveDocumentSummary(summary *models.DocumentSummary) error {
	if summary.DocumentID == "" {
		return fmt.Errorf("document ID is required")
	}

	if summary.GeneratedAt.IsZero() {
		summary.GeneratedAt = time.Now()
	}

	if err := s.db.Store().Upsert(summary.DocumentID, summary); err != nil {
		return fmt.Errorf("failed to save document summary: %w", err)
	}
	return nil
}

func (s *SummaryStorage) GetDocumentSummary(documentID string) (*models.DocumentSummary, error) {
	var summary models.DocumentSummary
	if err := s.db.Store().Get(documentID, &summary); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, interfaces.ErrSummaryNotFound
		}
		return nil, fmt.Errorf("failed to get document summary: %w", err)
	}
	return &summary, nil
}

func (s *SummaryStorage) GetSummariesByEntity(entityID string, limit int) ([]*models.DocumentSummary, error) {
	query := badgerhold.Where("EntityID").Eq(entityID).SortBy("GeneratedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var summaries []models.DocumentSummary
	if err := s.db.Store().Find(&summaries, query); err != nil {
		return nil, fmt.Errorf("failed to get summaries by entity: %w", err)
	}

	result := make([]*models.DocumentSummary, len(summaries))
	for i := range summaries {
		result[i] = &summaries[i]
	}
	return result, nil
}

func (s *SummaryStorage) ListDocumentSummaries() ([]*models.DocumentSummary, error) {
	var summaries []models.DocumentSummary
	if err := s.db.Store().Find(&summaries, nil); err != nil {
		return nil, fmt.Errorf("failed to list document summaries: %w", err)
	}

	result := make([]*models.DocumentSummary, len(summaries))
	for i := range summaries {
		result[i] = &summaries[i]
	}
	return result, nil
}

func (s *SummaryStorage) CountDocumentSummaries() (int, error) {
	count, err := s.db.Store().Count(&models.DocumentSummary{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count document summaries: %w", err)
	}
	return int(count), nil
}

func (s *SummaryStorage) DistinctEntityIDs() ([]string, error) {
	summaries, err := s.ListDocumentSummaries()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(summaries))
	ids := make([]string, 0, len(summaries))
	for _, summary := range summaries {
		if summary.EntityID == "" {
			continue
		}
		if _, ok := seen[summary.EntityID]; ok {
			continue
		}
		seen[summary.EntityID] = struct{}{}
		ids = append(ids, summary.EntityID)
	}
	return ids, nil
}

func (s *SummaryStorage) UpdateEntityID(documentID, entityID string) error {
	var summary models.DocumentSummary
	if err := s.db.Store().Get(documentID, &summary); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return interfaces.ErrSummaryNotFound
		}
		return fmt.Errorf("failed to load summary for entity update: %w", err)
	}

	if summary.EntityID == entityID {
		return nil
	}

	summary.EntityID = entityID

	if err := s.db.Store().Update(documentID, &summary); err != nil {
		return fmt.Errorf("failed to update summary entity id: %w", err)
	}

	s.logger.Debug().
		Str("document_id", documentID).
		Str("entity_id", entityID).
		Msg("Rewrote summary entity id")
	return nil
}

// SaveEntitySummary upserts keyed by EntityID
func (s *SummaryStorage) SaveEntitySummary(summary *models.EntitySummary) error {
	if summary.EntityID == "" {
		return fmt.Errorf("entity ID is required")
	}

	if summary.GeneratedAt.IsZero() {
		summary.GeneratedAt = time.Now()
	}

	key := entitySummaryKeyPrefix + summary.EntityID
	if err := s.db.Store().Upsert(key, summary); err != nil {
		return fmt.Errorf("failed to save entity summary: %w", err)
	}
	return nil
}

func (s *SummaryStorage) GetEntitySummary(entityID string) (*models.EntitySummary, error) {
	var summary models.EntitySummary
	key := entitySummaryKeyPrefix + entityID
	if err := s.db.Store().Get(key, &summary); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, interfaces.ErrSummaryNotFound
		}
		return nil, fmt.Errorf("failed to get entity summary: %w", err)
	}
	return &summary, nil
}
