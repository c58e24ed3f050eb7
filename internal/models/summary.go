package models

import "time"

// DocumentSummary is a pre-computed condensation of one document.
// At most one current summary exists per DocumentID; regeneration
// replaces it in place.
type DocumentSummary struct {
	DocumentID string `json:"document_id"`

	// EntityID is stored independently of the document's EntityID and the
	// two are not guaranteed to agree; the resolver reconciles them.
	EntityID string `json:"entity_id"`

	SummaryText string    `json:"summary_text"`
	GeneratedAt time.Time `json:"generated_at"`
	Model       string    `json:"model,omitempty"` // model that produced the summary
}

// EntitySummary is a synthesized cross-document narrative for one entity,
// built by aggregating its document summaries.
type EntitySummary struct {
	EntityID      string `json:"entity_id"`
	NarrativeText string `json:"narrative_text"`

	// SourceDocumentIDs lists the documents the narrative was built from,
	// most recent first, for provenance and reproducibility.
	SourceDocumentIDs []string  `json:"source_document_ids"`
	GeneratedAt       time.Time `json:"generated_at"`
}
