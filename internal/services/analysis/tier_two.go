package analysis

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/finsight-ai/finsight/internal/common"
	"github.com/finsight-ai/finsight/internal/interfaces"
)

// TierTwoResult is the outcome of analyzing one chunk of one document.
// Pagination state is explicit so the caller can decide whether to continue.
type TierTwoResult struct {
	Answer        string
	DocumentID    string
	CurrentChunk  int
	TotalChunks   int
	HasMoreChunks bool
	NextChunk     *int
}

// cursorKey identifies a conversation's position within a document
type cursorKey struct {
	conversationID string
	documentID     string
}

// TierTwoAnalyzer performs full-text analysis over fixed-size chunks. One
// chunk per call; a cursor per (conversation, document) remembers where a
// follow-up "continue" should resume.
type TierTwoAnalyzer struct {
	documents interfaces.DocumentStorage
	llm       interfaces.LLMService
	config    *common.AnalysisConfig
	logger    arbor.ILogger

	mu      sync.Mutex
	cursors map[cursorKey]int
}

// NewTierTwoAnalyzer creates a full-text analyzer
func NewTierTwoAnalyzer(
	documents interfaces.DocumentStorage,
	llm interfaces.LLMService,
	config *common.AnalysisConfig,
	logger arbor.ILogger,
) *TierTwoAnalyzer {
	return &TierTwoAnalyzer{
		documents: documents,
		llm:       llm,
		config:    config,
		logger:    logger,
		cursors:   make(map[cursorKey]int),
	}
}

// Analyze runs the query against a single chunk of the document's full
// text. A nil chunkIndex means "resume from the conversation cursor"
// (first call starts at chunk 0). An explicit out-of-range index fails
// fast with ErrInvalidChunkIndex rather than clamping.
func (a *TierTwoAnalyzer) Analyze(ctx context.Context, query, conversationID, documentID string, chunkIndex *int) (*TierTwoResult, error) {
	doc, err := a.documents.GetDocument(documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", documentID, err)
	}

	totalChunks := ChunkCount(doc.FullText, a.config.ChunkSize)
	if totalChunks == 0 {
		return nil, fmt.Errorf("document %s has no full text", documentID)
	}

	key := cursorKey{conversationID: conversationID, documentID: documentID}

	var index int
	if chunkIndex != nil {
		index = *chunkIndex
	} else {
		a.mu.Lock()
		index = a.cursors[key] // zero value starts at the beginning
		a.mu.Unlock()
	}

	chunk, err := Chunk(doc.FullText, a.config.ChunkSize, index)
	if err != nil {
		return nil, err
	}

	prompt := buildTierTwoPrompt(query, doc.Title, doc.PeriodLabel(), chunk, index, totalChunks)
	answer, err := a.llm.Complete(ctx, prompt, tierTwoSystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("full-text analysis failed: %w", err)
	}

	result := &TierTwoResult{
		Answer:       answer,
		DocumentID:   documentID,
		CurrentChunk: index,
		TotalChunks:  totalChunks,
	}

	a.mu.Lock()
	if index+1 < totalChunks {
		next := index + 1
		result.HasMoreChunks = true
		result.NextChunk = &next
		a.cursors[key] = next
	} else {
		// Exhausted: drop the cursor so a later query starts fresh
		delete(a.cursors, key)
	}
	a.mu.Unlock()

	a.logger.Debug().
		Str("document_id", documentID).
		Int("chunk", index).
		Int("total_chunks", totalChunks).
		Bool("has_more", result.HasMoreChunks).
		Msg("Full-text chunk analyzed")

	return result, nil
}

// EndConversation drops all cursors held for a conversation
func (a *TierTwoAnalyzer) EndConversation(conversationID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key := range a.cursors {
		if key.conversationID == conversationID {
			delete(a.cursors, key)
		}
	}
}
