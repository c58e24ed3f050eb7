// Package common provides shared utilities across the application.
package common

import (
	"strings"
)

// IdentifierKind classifies the shape of an entity identifier.
// The corpus stores company identifiers in two incompatible schemes:
// human-readable ticker symbols and opaque unique tokens.
type IdentifierKind string

const (
	// KindTicker is a short, uppercase, human-readable code (e.g. "AAPL").
	KindTicker IdentifierKind = "ticker"
	// KindOpaque is any other identifier shape. Opaque ids are treated as
	// format-agnostic tokens; no textual structure is assumed.
	KindOpaque IdentifierKind = "opaque"
)

// maxTickerLen is the longest identifier still treated as a ticker symbol.
const maxTickerLen = 5

// ClassifyIdentifier returns KindTicker iff the id is 1-5 uppercase ASCII
// letters. Anything else, including empty input, classifies as KindOpaque:
// the safe default is to treat an unrecognized shape as an opaque key rather
// than reject it.
func ClassifyIdentifier(id string) IdentifierKind {
	id = strings.TrimSpace(id)
	if len(id) == 0 || len(id) > maxTickerLen {
		return KindOpaque
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 'A' || id[i] > 'Z' {
			return KindOpaque
		}
	}
	return KindTicker
}

// IsTicker reports whether the id classifies as a ticker symbol.
func IsTicker(id string) bool {
	return ClassifyIdentifier(id) == KindTicker
}

// ExtractTickers returns the ticker-shaped tokens found in free text, in
// order of first appearance, without duplicates. Used by the agent to pull
// candidate entities out of a user query ("AMZN vs AAPL 2018 growth").
func ExtractTickers(text string) []string {
	seen := make(map[string]bool)
	var tickers []string

	var token strings.Builder
	flush := func() {
		if token.Len() > 0 {
			candidate := token.String()
			token.Reset()
			if IsTicker(candidate) && !seen[candidate] {
				seen[candidate] = true
				tickers = append(tickers, candidate)
			}
		}
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			token.WriteByte(c)
		} else {
			flush()
		}
	}
	flush()

	return tickers
}
