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

// DocumentStorage implements the DocumentStorage interface for Badger
type DocumentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDocumentStorage creates a new DocumentStorage instance
func NewDocumentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DocumentStorage {
	return &DocumentStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DocumentStorage) SaveDocument(doc *models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	if err := s.db.Store().Upsert(doc.ID, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (s *DocumentStorage) GetDocument(id string) (*models.Document, error) {
	var doc models.Document
	if err := s.db.Store().Get(id, &doc); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, interfaces.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// GetDocumentsByEntity returns documents whose EntityID matches exactly as
// stored, most recently published first. Callers needing scheme-agnostic
// lookup go through the resolver, not here.
func (s *DocumentStorage) GetDocumentsByEntity(entityID string) ([]*models.Document, error) {
	var docs []models.Document
	err := s.db.Store().Find(&docs, badgerhold.Where("EntityID").Eq(entityID).SortBy("PublishedAt").Reverse())
	if err != nil {
		return nil, fmt.Errorf("failed to get documents by entity: %w", err)
	}

	result := make([]*models.Document, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

func (s *DocumentStorage) DistinctEntityIDs() ([]string, error) {
	var docs []models.Document
	if err := s.db.Store().Find(&docs, nil); err != nil {
		return nil, fmt.Errorf("failed to scan documents: %w", err)
	}

	seen := make(map[string]struct{}, len(docs))
	ids := make([]string, 0, len(docs))
	for i := range docs {
		id := docs[i].EntityID
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *DocumentStorage) ListDocuments(opts *interfaces.ListOptions) ([]*models.Document, error) {
	query := badgerhold.Where("ID").Ne("") // Select all

	if opts != nil {
		if opts.EntityID != "" {
			query = query.And("EntityID").Eq(opts.EntityID)
		}
		if opts.Source != "" {
			query = query.And("Source").Eq(opts.Source)
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
	}

	var docs []models.Document
	if err := s.db.Store().Find(&docs, query); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	result := make([]*models.Document, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

func (s *DocumentStorage) CountDocuments() (int, error) {
	count, err := s.db.Store().Count(&models.Document{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(count), nil
}

// UpdateEntityID rewrites the EntityID of a single document. The read-modify-
// write keeps every other field untouched, which is what makes repair safe to
// re-run.
func (s *DocumentStorage) UpdateEntityID(documentID, entityID string) error {
	var doc models.Document
	if err := s.db.Store().Get(documentID, &doc); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return interfaces.ErrDocumentNotFound
		}
		return fmt.Errorf("failed to load document for entity update: %w", err)
	}

	if doc.EntityID == entityID {
		return nil
	}

	doc.EntityID = entityID
	doc.UpdatedAt = time.Now()

	if err := s.db.Store().Update(documentID, &doc); err != nil {
		return fmt.Errorf("failed to update document entity id: %w", err)
	}

	s.logger.Debug().
		Str("document_id", documentID).
		Str("entity_id", entityID).
		Msg("Rewrote document entity id")
	return nil
}

func (s *DocumentStorage) DeleteDocument(id string) error {
	if err := s.db.Store().Delete(id, &models.Document{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
