package resolver

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-ai/finsight/internal/common"
	"github.com/finsight-ai/finsight/internal/interfaces"
	"github.com/finsight-ai/finsight/internal/models"
)

// memDocStore is an in-memory DocumentStorage for resolver tests
type memDocStore struct {
	docs map[string]*models.Document
}

func newMemDocStore() *memDocStore {
	return &memDocStore{docs: make(map[string]*models.Document)}
}

func (m *memDocStore) SaveDocument(doc *models.Document) error {
	copied := *doc
	m.docs[doc.ID] = &copied
	return nil
}

func (m *memDocStore) GetDocument(id string) (*models.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, interfaces.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

func (m *memDocStore) GetDocumentsByEntity(entityID string) ([]*models.Document, error) {
	var result []*models.Document
	for _, doc := range m.docs {
		if doc.EntityID == entityID {
			copied := *doc
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PublishedAt.After(result[j].PublishedAt)
	})
	return result, nil
}

func (m *memDocStore) DistinctEntityIDs() ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, doc := range m.docs {
		if _, ok := seen[doc.EntityID]; !ok {
			seen[doc.EntityID] = struct{}{}
			ids = append(ids, doc.EntityID)
		}
	}
	return ids, nil
}

func (m *memDocStore) ListDocuments(opts *interfaces.ListOptions) ([]*models.Document, error) {
	var result []*models.Document
	for _, doc := range m.docs {
		copied := *doc
		result = append(result, &copied)
	}
	// Deterministic order for alias table construction
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *memDocStore) CountDocuments() (int, error) {
	return len(m.docs), nil
}

func (m *memDocStore) UpdateEntityID(documentID, entityID string) error {
	doc, ok := m.docs[documentID]
	if !ok {
		return interfaces.ErrDocumentNotFound
	}
	doc.EntityID = entityID
	return nil
}

func (m *memDocStore) DeleteDocument(id string) error {
	delete(m.docs, id)
	return nil
}

// memSummaryStore is an in-memory SummaryStorage for resolver tests
type memSummaryStore struct {
	summaries map[string]*models.DocumentSummary
	entities  map[string]*models.EntitySummary
}

func newMemSummaryStore() *memSummaryStore {
	return &memSummaryStore{
		summaries: make(map[string]*models.DocumentSummary),
		entities:  make(map[string]*models.EntitySummary),
	}
}

func (m *memSummaryStore) SaveDocumentSummary(summary *models.DocumentSummary) error {
	copied := *summary
	m.summaries[summary.DocumentID] = &copied
	return nil
}

func (m *memSummaryStore) GetDocumentSummary(documentID string) (*models.DocumentSummary, error) {
	summary, ok := m.summaries[documentID]
	if !ok {
		return nil, interfaces.ErrSummaryNotFound
	}
	copied := *summary
	return &copied, nil
}

func (m *memSummaryStore) GetSummariesByEntity(entityID string, limit int) ([]*models.DocumentSummary, error) {
	var result []*models.DocumentSummary
	for _, summary := range m.summaries {
		if summary.EntityID == entityID {
			copied := *summary
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].GeneratedAt.After(result[j].GeneratedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *memSummaryStore) ListDocumentSummaries() ([]*models.DocumentSummary, error) {
	var result []*models.DocumentSummary
	for _, summary := range m.summaries {
		copied := *summary
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DocumentID < result[j].DocumentID })
	return result, nil
}

func (m *memSummaryStore) CountDocumentSummaries() (int, error) {
	return len(m.summaries), nil
}

func (m *memSummaryStore) DistinctEntityIDs() ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, summary := range m.summaries {
		if _, ok := seen[summary.EntityID]; !ok {
			seen[summary.EntityID] = struct{}{}
			ids = append(ids, summary.EntityID)
		}
	}
	return ids, nil
}

func (m *memSummaryStore) UpdateEntityID(documentID, entityID string) error {
	summary, ok := m.summaries[documentID]
	if !ok {
		return interfaces.ErrSummaryNotFound
	}
	summary.EntityID = entityID
	return nil
}

func (m *memSummaryStore) SaveEntitySummary(summary *models.EntitySummary) error {
	copied := *summary
	m.entities[summary.EntityID] = &copied
	return nil
}

func (m *memSummaryStore) GetEntitySummary(entityID string) (*models.EntitySummary, error) {
	summary, ok := m.entities[entityID]
	if !ok {
		return nil, interfaces.ErrSummaryNotFound
	}
	copied := *summary
	return &copied, nil
}

const (
	nvdaUUID = "b7e2c9d4-1f3a-4e8b-9c6d-2a5f8e1b0c73"
	msftUUID = "4f9a1e7c-8b2d-4c6e-a3f1-d0b58c7e2946"
)

func seedPair(t *testing.T, docs *memDocStore, sums *memSummaryStore, docID, docEntity, sumEntity string, published time.Time) {
	t.Helper()
	require.NoError(t, docs.SaveDocument(&models.Document{
		ID:          docID,
		EntityID:    docEntity,
		Title:       docID + " transcript",
		FullText:    "full text",
		Source:      models.SourceEarningsCall,
		PublishedAt: published,
	}))
	require.NoError(t, sums.SaveDocumentSummary(&models.DocumentSummary{
		DocumentID:  docID,
		EntityID:    sumEntity,
		SummaryText: "summary",
		GeneratedAt: published,
	}))
}

func TestBuildAliasTable(t *testing.T) {
	docs := newMemDocStore()
	sums := newMemSummaryStore()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	seedPair(t, docs, sums, "doc_001", "NVDA", nvdaUUID, base)
	seedPair(t, docs, sums, "doc_002", "MSFT", msftUUID, base.AddDate(0, 1, 0))

	svc := NewService(docs, sums, common.GetLogger())
	table, err := svc.BuildAliasTable(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, table.Size())
	assert.Empty(t, table.Conflicts)
	assert.Equal(t, "NVDA", table.Normalize(nvdaUUID))
	assert.Equal(t, "MSFT", table.Normalize(msftUUID))
}

func TestBuildAliasTable_InvertedSchemes(t *testing.T) {
	// Documents carry the opaque id, summaries carry the ticker. Evidence
	// direction must not matter.
	docs := newMemDocStore()
	sums := newMemSummaryStore()
	seedPair(t, docs, sums, "doc_001", nvdaUUID, "NVDA", time.Now())

	svc := NewService(docs, sums, common.GetLogger())
	table, err := svc.BuildAliasTable(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, table.Size())
	assert.Equal(t, "NVDA", table.Normalize(nvdaUUID))
}

func TestBuildAliasTable_ConflictFirstWins(t *testing.T) {
	docs := newMemDocStore()
	sums := newMemSummaryStore()
	base := time.Now()

	// doc_001 observed first (sorted by id), pairs the uuid with NVDA.
	// doc_002 contradicts with AMD; it must be recorded, not applied.
	seedPair(t, docs, sums, "doc_001", "NVDA", nvdaUUID, base)
	seedPair(t, docs, sums, "doc_002", "AMD", nvdaUUID, base)

	svc := NewService(docs, sums, common.GetLogger())
	table, err := svc.BuildAliasTable(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, table.Size())
	require.Len(t, table.Conflicts, 1)
	assert.Equal(t, nvdaUUID, table.Conflicts[0].OpaqueID)
	assert.Equal(t, "NVDA", table.Conflicts[0].Existing)
	assert.Equal(t, "NVDA", table.Normalize(nvdaUUID))
}

func TestBuildAliasTable_SameSchemePairsContributeNothing(t *testing.T) {
	docs := newMemDocStore()
	sums := newMemSummaryStore()
	seedPair(t, docs, sums, "doc_001", "NVDA", "NVDA", time.Now())
	seedPair(t, docs, sums, "doc_002", nvdaUUID, nvdaUUID, time.Now())

	svc := NewService(docs, sums, common.GetLogger())
	table, err := svc.BuildAliasTable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, table.Size())
}

func TestNormalize_Idempotent(t *testing.T) {
	table := NewAliasTable()
	table.add(nvdaUUID, "NVDA", "doc_001")

	once := table.Normalize(nvdaUUID)
	assert.Equal(t, "NVDA", once)
	assert.Equal(t, once, table.Normalize(once))

	// Unknown ids pass through unchanged
	assert.Equal(t, "unknown-id", table.Normalize("unknown-id"))
}

func TestVerifyConsistency(t *testing.T) {
	docs := newMemDocStore()
	sums := newMemSummaryStore()
	base := time.Now()

	// Consistent after normalization: ticker vs mapped uuid
	seedPair(t, docs, sums, "doc_001", "NVDA", nvdaUUID, base)
	// Genuine mismatch: both sides carry tickers and they disagree, so no
	// alias evidence can reconcile them
	seedPair(t, docs, sums, "doc_002", "MSFT", "AMD", base)
	// Orphan transcript
	require.NoError(t, docs.SaveDocument(&models.Document{
		ID:       "doc_003",
		EntityID: "AAPL",
		FullText: "text",
	}))
	// Orphan summary
	require.NoError(t, sums.SaveDocumentSummary(&models.DocumentSummary{
		DocumentID:  "doc_999",
		EntityID:    "TSLA",
		SummaryText: "orphan",
	}))

	svc := NewService(docs, sums, common.GetLogger())
	report, err := svc.VerifyConsistency(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalDocuments)
	assert.Equal(t, 3, report.TotalSummaries)
	assert.Equal(t, 2, report.Compared)
	assert.Equal(t, 1, report.Mismatches)
	assert.Equal(t, 1, report.TranscriptsWithoutSummary)
	assert.Equal(t, 1, report.SummariesWithoutTranscript)
	assert.False(t, report.Consistent())
	require.Len(t, report.MismatchSamples, 1)
	assert.Equal(t, "doc_002", report.MismatchSamples[0].DocumentID)
}

func TestVerifyConsistency_MismatchSampleCap(t *testing.T) {
	docs := newMemDocStore()
	sums := newMemSummaryStore()
	base := time.Now()

	tickers := []string{"AAAA", "BBBB", "CCCC", "DDDD", "EEEE", "FFFF", "GGGG"}
	for i, ticker := range tickers {
		docID := "doc_00" + string(rune('a'+i))
		// Ticker disagreements on both sides: every pair mismatches
		seedPair(t, docs, sums, docID, ticker, "ZZZZ", base)
	}

	svc := NewService(docs, sums, common.GetLogger())
	report, err := svc.VerifyConsistency(context.Background())
	require.NoError(t, err)

	assert.Equal(t, len(tickers), report.Mismatches)
	assert.Len(t, report.MismatchSamples, maxMismatchSamples)
}

func TestRepair_ToTickers(t *testing.T) {
	docs := newMemDocStore()
	sums := newMemSummaryStore()
	base := time.Now()

	// Evidence pair establishes the mapping
	seedPair(t, docs, sums, "doc_001", "NVDA", nvdaUUID, base)
	// This document carries the opaque id and has no summary; repair should
	// still fix it using the table built from doc_001.
	require.NoError(t, docs.SaveDocument(&models.Document{
		ID:       "doc_002",
		EntityID: nvdaUUID,
		FullText: "text",
	}))
	// No evidence for this one: must be left untouched and counted
	require.NoError(t, docs.SaveDocument(&models.Document{
		ID:       "doc_003",
		EntityID: "deadbeef-0000-1111-2222-333344445555",
		FullText: "text",
	}))

	svc := NewService(docs, sums, common.GetLogger())
	result, err := svc.Repair(context.Background(), RepairToTickers)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Scanned)
	assert.Equal(t, 1, result.Rewritten)
	assert.Equal(t, 1, result.Unresolved)

	doc, err := docs.GetDocument("doc_002")
	require.NoError(t, err)
	assert.Equal(t, "NVDA", doc.EntityID)

	untouched, err := docs.GetDocument("doc_003")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef-0000-1111-2222-333344445555", untouched.EntityID)

	// Second pass rewrites nothing
	again, err := svc.Repair(context.Background(), RepairToTickers)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Rewritten)
	assert.Equal(t, 1, again.Unresolved)
}

func TestRepair_ToOpaque(t *testing.T) {
	docs := newMemDocStore()
	sums := newMemSummaryStore()
	base := time.Now()

	seedPair(t, docs, sums, "doc_001", nvdaUUID, "NVDA", base)

	svc := NewService(docs, sums, common.GetLogger())
	result, err := svc.Repair(context.Background(), RepairToOpaque)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 1, result.Rewritten)

	summary, err := sums.GetDocumentSummary("doc_001")
	require.NoError(t, err)
	assert.Equal(t, nvdaUUID, summary.EntityID)
}

func TestRepair_NoEvidence(t *testing.T) {
	docs := newMemDocStore()
	sums := newMemSummaryStore()
	// Both sides already use tickers: no cross-scheme evidence exists
	seedPair(t, docs, sums, "doc_001", "NVDA", "NVDA", time.Now())

	svc := NewService(docs, sums, common.GetLogger())
	_, err := svc.Repair(context.Background(), RepairToTickers)
	assert.ErrorIs(t, err, ErrNoMappingEvidence)
}

func TestParseRepairDirection(t *testing.T) {
	tests := []struct {
		input   string
		want    RepairDirection
		wantErr bool
	}{
		{"to_tickers", RepairToTickers, false},
		{"to_uuids", RepairToOpaque, false},
		{"sideways", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRepairDirection(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
