package analysis

import (
	"fmt"
	"strings"
)

const tierOneSystemPrompt = `You are a financial analyst assistant. You answer questions about companies using pre-computed summaries of earnings call transcripts and SEC filings.

Rules:
- Base your answer ONLY on the provided summaries. Do not use outside knowledge.
- If the summaries do not contain the information needed, say so plainly.
- Attribute claims to the document they came from (company and period).
- Be concise and factual. Do not speculate about future performance.`

const tierTwoSystemPrompt = `You are a financial analyst assistant performing a close reading of one section of an earnings call transcript or SEC filing.

Rules:
- Base your answer ONLY on the transcript section provided. Do not use outside knowledge.
- Quote exact wording when the question asks for it.
- If the answer is not in this section, say so; it may appear in a later section.
- Be precise and factual.`

// buildTierOnePrompt assembles the summary blocks and the question into a
// single bounded prompt. Each block is tagged with its document id and
// period so the model can attribute claims.
func buildTierOnePrompt(query string, blocks []summaryBlock) string {
	var b strings.Builder

	b.WriteString("Here are summaries of the available documents:\n\n")
	for _, block := range blocks {
		fmt.Fprintf(&b, "--- Document %s (%s, %s) ---\n%s\n\n", block.DocumentID, block.EntityID, block.Period, block.Text)
	}
	fmt.Fprintf(&b, "Question: %s\n\nAnswer based only on the summaries above.", query)

	return b.String()
}

// buildTierTwoPrompt scopes the question to one chunk of one document
func buildTierTwoPrompt(query, title, period, chunk string, currentChunk, totalChunks int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Document: %s (%s)\n", title, period)
	fmt.Fprintf(&b, "Section %d of %d:\n\n%s\n\n", currentChunk+1, totalChunks, chunk)
	fmt.Fprintf(&b, "Question: %s\n\nAnswer based only on the section above.", query)

	return b.String()
}
