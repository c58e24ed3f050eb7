package models

import (
	"fmt"
	"time"
)

// Document sources
const (
	SourceEarningsCall = "earnings_call"
	SourceSECFiling    = "sec_filing"
)

// Document represents one earnings-call transcript or regulatory filing.
// Documents are created by the ingestion pipeline and never mutated by the
// analysis core, with one exception: identifier repair may rewrite EntityID
// to the canonical form.
type Document struct {
	// Identity
	ID string `json:"id"` // doc_<uuid>

	// EntityID is the company identifier as stored. It may be either a
	// ticker symbol or an opaque token; it is not guaranteed canonical.
	EntityID string `json:"entity_id"`

	// Content
	Title    string `json:"title"`
	FullText string `json:"full_text"`
	Source   string `json:"source"` // earnings_call, sec_filing

	// Reporting period
	PublishedAt time.Time `json:"published_at"`
	Quarter     int       `json:"quarter"`
	FiscalYear  int       `json:"fiscal_year"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PeriodLabel returns the fiscal period in display form, e.g. "Q3 2018".
// Falls back to the published date when period fields are unset.
func (d *Document) PeriodLabel() string {
	if d.Quarter > 0 && d.FiscalYear > 0 {
		return fmt.Sprintf("Q%d %d", d.Quarter, d.FiscalYear)
	}
	if !d.PublishedAt.IsZero() {
		return d.PublishedAt.Format("2006-01-02")
	}
	return "unknown period"
}
