package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/finsight-ai/finsight/internal/models"
)

// Sentinel errors shared across storage implementations
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrSummaryNotFound  = errors.New("summary not found")
	ErrKeyNotFound      = errors.New("key not found")
)

// ListOptions controls filtering and pagination for list operations
type ListOptions struct {
	EntityID string
	Source   string
	Limit    int
	Offset   int
}

// DocumentStorage defines the interface for transcript/filing persistence.
// Documents are created by the ingestion pipeline and are read-only to the
// analysis core, except for entity id rewrites performed by identifier repair.
type DocumentStorage interface {
	SaveDocument(doc *models.Document) error
	GetDocument(id string) (*models.Document, error)

	// GetDocumentsByEntity returns documents for an entity id as stored
	// (no normalization), most recent first.
	GetDocumentsByEntity(entityID string) ([]*models.Document, error)

	// DistinctEntityIDs returns every distinct entity id present in the
	// collection, in unspecified order.
	DistinctEntityIDs() ([]string, error)

	ListDocuments(opts *ListOptions) ([]*models.Document, error)
	CountDocuments() (int, error)

	// UpdateEntityID rewrites only the entity id field of one document.
	// Used exclusively by identifier repair.
	UpdateEntityID(documentID, entityID string) error

	DeleteDocument(id string) error
}

// SummaryStorage defines the interface for pre-computed document and
// entity summaries.
type SummaryStorage interface {
	// SaveDocumentSummary upserts keyed by DocumentID: at most one current
	// summary per document, regeneration replaces in place.
	SaveDocumentSummary(summary *models.DocumentSummary) error
	GetDocumentSummary(documentID string) (*models.DocumentSummary, error)

	// GetSummariesByEntity returns up to limit summaries for an entity id
	// as stored, most recently generated first. limit <= 0 means no limit.
	GetSummariesByEntity(entityID string, limit int) ([]*models.DocumentSummary, error)

	ListDocumentSummaries() ([]*models.DocumentSummary, error)
	CountDocumentSummaries() (int, error)
	DistinctEntityIDs() ([]string, error)

	// UpdateEntityID rewrites only the entity id field of one summary.
	UpdateEntityID(documentID, entityID string) error

	// SaveEntitySummary upserts keyed by EntityID.
	SaveEntitySummary(summary *models.EntitySummary) error
	GetEntitySummary(entityID string) (*models.EntitySummary, error)
}

// KeyValuePair represents a stored key/value entry (API keys, variables)
type KeyValuePair struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// KeyValueStorage defines the interface for key/value persistence
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, description string) error
	Delete(ctx context.Context, key string) error
	GetAll(ctx context.Context) (map[string]string, error)
}

// StorageManager provides access to all storage interfaces
type StorageManager interface {
	DocumentStorage() DocumentStorage
	SummaryStorage() SummaryStorage
	KeyValueStorage() KeyValueStorage

	// RunGC reclaims storage space reclaimed by deletions and rewrites.
	// A no-op result is not an error.
	RunGC() error
	Close() error
}
