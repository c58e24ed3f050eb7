package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/finsight-ai/finsight/internal/common"
	"github.com/finsight-ai/finsight/internal/interfaces"
)

// ErrNoMappingEvidence is returned when a repair is requested but no
// ticker/opaque pairing could be derived from the stored data. Repairing
// without evidence would mean guessing identifiers.
var ErrNoMappingEvidence = errors.New("no mapping evidence: alias table is empty")

// maxMismatchSamples caps how many mismatch examples a consistency report
// carries. The counts are always complete; the samples are illustrative.
const maxMismatchSamples = 5

// RepairDirection selects which collection a repair rewrites
type RepairDirection string

const (
	// RepairToTickers rewrites document entity ids to ticker form
	RepairToTickers RepairDirection = "to_tickers"
	// RepairToOpaque rewrites summary entity ids to opaque form
	RepairToOpaque RepairDirection = "to_uuids"
)

// ParseRepairDirection validates a repair direction string from the CLI
func ParseRepairDirection(s string) (RepairDirection, error) {
	switch RepairDirection(s) {
	case RepairToTickers, RepairToOpaque:
		return RepairDirection(s), nil
	default:
		return "", fmt.Errorf("invalid repair direction %q (expected %q or %q)", s, RepairToTickers, RepairToOpaque)
	}
}

// Conflict records a contradictory pairing observed while building the
// alias table. The first observation wins; conflicts are never applied.
type Conflict struct {
	OpaqueID    string
	Existing    string
	Conflicting string
	DocumentID  string
}

// AliasTable holds the evidence-derived mapping between opaque ids and
// tickers. It is immutable once built.
type AliasTable struct {
	opaqueToTicker map[string]string
	tickerToOpaque map[string]string
	Conflicts      []Conflict
}

// NewAliasTable creates an empty alias table
func NewAliasTable() *AliasTable {
	return &AliasTable{
		opaqueToTicker: make(map[string]string),
		tickerToOpaque: make(map[string]string),
	}
}

// add records an opaque/ticker pairing. First observation wins; a
// contradiction on either direction is recorded as a conflict and ignored.
func (t *AliasTable) add(opaqueID, ticker, documentID string) {
	if existing, ok := t.opaqueToTicker[opaqueID]; ok {
		if existing != ticker {
			t.Conflicts = append(t.Conflicts, Conflict{
				OpaqueID:    opaqueID,
				Existing:    existing,
				Conflicting: ticker,
				DocumentID:  documentID,
			})
		}
		return
	}
	if existing, ok := t.tickerToOpaque[ticker]; ok {
		if existing != opaqueID {
			t.Conflicts = append(t.Conflicts, Conflict{
				OpaqueID:    opaqueID,
				Existing:    existing,
				Conflicting: opaqueID,
				DocumentID:  documentID,
			})
		}
		return
	}
	t.opaqueToTicker[opaqueID] = ticker
	t.tickerToOpaque[ticker] = opaqueID
}

// Normalize returns the ticker form of an identifier when it is opaque and
// mapped, otherwise the identifier unchanged. Never errors; idempotent.
func (t *AliasTable) Normalize(id string) string {
	if common.ClassifyIdentifier(id) == common.KindTicker {
		return id
	}
	if ticker, ok := t.opaqueToTicker[id]; ok {
		return ticker
	}
	return id
}

// Denormalize returns the opaque form of a ticker when mapped, otherwise
// the identifier unchanged.
func (t *AliasTable) Denormalize(id string) string {
	if common.ClassifyIdentifier(id) == common.KindOpaque {
		return id
	}
	if opaque, ok := t.tickerToOpaque[id]; ok {
		return opaque
	}
	return id
}

// Size returns the number of opaque→ticker pairings
func (t *AliasTable) Size() int {
	return len(t.opaqueToTicker)
}

// MismatchSample is one example of a document/summary entity id disagreement
type MismatchSample struct {
	DocumentID     string
	DocumentEntity string
	SummaryEntity  string
}

// ConsistencyReport summarizes cross-collection identifier agreement
type ConsistencyReport struct {
	TotalDocuments             int
	TotalSummaries             int
	Compared                   int
	Mismatches                 int
	MismatchSamples            []MismatchSample
	TranscriptsWithoutSummary  int
	SummariesWithoutTranscript int
	AliasCount                 int
	ConflictCount              int
}

// Consistent reports whether the two collections agree after normalization
func (r *ConsistencyReport) Consistent() bool {
	return r.Mismatches == 0
}

// RepairResult reports what a repair pass did
type RepairResult struct {
	Direction  RepairDirection
	Scanned    int
	Rewritten  int
	Unresolved int
}

// Service reconciles the identifier schemes used by the document and
// summary collections. Documents carry tickers, summaries carry opaque ids
// (or the reverse after a bad ingest); the service derives the mapping from
// the data itself and never invents a pairing.
type Service struct {
	documents interfaces.DocumentStorage
	summaries interfaces.SummaryStorage
	logger    arbor.ILogger
}

// NewService creates a new entity resolver service
func NewService(documents interfaces.DocumentStorage, summaries interfaces.SummaryStorage, logger arbor.ILogger) *Service {
	return &Service{
		documents: documents,
		summaries: summaries,
		logger:    logger,
	}
}

// BuildAliasTable derives the opaque↔ticker mapping by joining the two
// collections on DocumentID. Each pair where one side classifies as ticker
// and the other as opaque contributes evidence. Deterministic for a fixed
// document order.
func (s *Service) BuildAliasTable(ctx context.Context) (*AliasTable, error) {
	docs, err := s.documents.ListDocuments(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	table := NewAliasTable()

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		summary, err := s.summaries.GetDocumentSummary(doc.ID)
		if err != nil {
			if errors.Is(err, interfaces.ErrSummaryNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load summary for document %s: %w", doc.ID, err)
		}

		docKind := common.ClassifyIdentifier(doc.EntityID)
		sumKind := common.ClassifyIdentifier(summary.EntityID)

		switch {
		case docKind == common.KindTicker && sumKind == common.KindOpaque:
			table.add(summary.EntityID, doc.EntityID, doc.ID)
		case docKind == common.KindOpaque && sumKind == common.KindTicker:
			table.add(doc.EntityID, summary.EntityID, doc.ID)
		}
	}

	for _, conflict := range table.Conflicts {
		s.logger.Warn().
			Str("opaque_id", conflict.OpaqueID).
			Str("existing", conflict.Existing).
			Str("conflicting", conflict.Conflicting).
			Str("document_id", conflict.DocumentID).
			Msg("Contradictory identifier pairing ignored (first observation wins)")
	}

	s.logger.Debug().
		Int("aliases", table.Size()).
		Int("conflicts", len(table.Conflicts)).
		Msg("Alias table built")

	return table, nil
}

// VerifyConsistency compares entity ids across the two collections after
// normalization. Read-only; safe to run at any time.
func (s *Service) VerifyConsistency(ctx context.Context) (*ConsistencyReport, error) {
	table, err := s.BuildAliasTable(ctx)
	if err != nil {
		return nil, err
	}

	docs, err := s.documents.ListDocuments(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	summaryCount, err := s.summaries.CountDocumentSummaries()
	if err != nil {
		return nil, fmt.Errorf("failed to count summaries: %w", err)
	}

	report := &ConsistencyReport{
		TotalDocuments: len(docs),
		TotalSummaries: summaryCount,
		AliasCount:     table.Size(),
		ConflictCount:  len(table.Conflicts),
	}

	matchedSummaries := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		summary, err := s.summaries.GetDocumentSummary(doc.ID)
		if err != nil {
			if errors.Is(err, interfaces.ErrSummaryNotFound) {
				report.TranscriptsWithoutSummary++
				continue
			}
			return nil, fmt.Errorf("failed to load summary for document %s: %w", doc.ID, err)
		}
		matchedSummaries++

		report.Compared++
		if table.Normalize(doc.EntityID) != table.Normalize(summary.EntityID) {
			report.Mismatches++
			if len(report.MismatchSamples) < maxMismatchSamples {
				report.MismatchSamples = append(report.MismatchSamples, MismatchSample{
					DocumentID:     doc.ID,
					DocumentEntity: doc.EntityID,
					SummaryEntity:  summary.EntityID,
				})
			}
		}
	}

	report.SummariesWithoutTranscript = summaryCount - matchedSummaries

	s.logger.Info().
		Int("compared", report.Compared).
		Int("mismatches", report.Mismatches).
		Int("orphan_transcripts", report.TranscriptsWithoutSummary).
		Int("orphan_summaries", report.SummariesWithoutTranscript).
		Msg("Consistency verification complete")

	return report, nil
}

// Repair rewrites entity ids in one collection toward a single scheme.
// RepairToTickers rewrites documents to ticker form; RepairToOpaque rewrites
// summaries to opaque form. Only the entity id field is touched; records are
// never deleted or merged. Ids without mapping evidence are counted as
// unresolved and left alone. Safe to re-run; a second pass rewrites nothing.
func (s *Service) Repair(ctx context.Context, direction RepairDirection) (*RepairResult, error) {
	table, err := s.BuildAliasTable(ctx)
	if err != nil {
		return nil, err
	}
	if table.Size() == 0 {
		return nil, ErrNoMappingEvidence
	}

	result := &RepairResult{Direction: direction}

	switch direction {
	case RepairToTickers:
		docs, err := s.documents.ListDocuments(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}
		for _, doc := range docs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			result.Scanned++
			if common.ClassifyIdentifier(doc.EntityID) == common.KindTicker {
				continue
			}
			ticker := table.Normalize(doc.EntityID)
			if ticker == doc.EntityID {
				result.Unresolved++
				continue
			}
			if err := s.documents.UpdateEntityID(doc.ID, ticker); err != nil {
				return nil, fmt.Errorf("failed to rewrite document %s: %w", doc.ID, err)
			}
			result.Rewritten++
		}

	case RepairToOpaque:
		summaries, err := s.summaries.ListDocumentSummaries()
		if err != nil {
			return nil, fmt.Errorf("failed to list summaries: %w", err)
		}
		for _, summary := range summaries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			result.Scanned++
			if common.ClassifyIdentifier(summary.EntityID) == common.KindOpaque {
				continue
			}
			opaque := table.Denormalize(summary.EntityID)
			if opaque == summary.EntityID {
				result.Unresolved++
				continue
			}
			if err := s.summaries.UpdateEntityID(summary.DocumentID, opaque); err != nil {
				return nil, fmt.Errorf("failed to rewrite summary %s: %w", summary.DocumentID, err)
			}
			result.Rewritten++
		}

	default:
		return nil, fmt.Errorf("invalid repair direction: %q", direction)
	}

	s.logger.Info().
		Str("direction", string(direction)).
		Int("scanned", result.Scanned).
		Int("rewritten", result.Rewritten).
		Int("unresolved", result.Unresolved).
		Msg("Identifier repair complete")

	return result, nil
}
