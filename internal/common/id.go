package common

import (
	"github.com/google/uuid"
)

// NewDocumentID generates a unique document ID with the "doc_" prefix
// Format: doc_<uuid>
func NewDocumentID() string {
	return "doc_" + uuid.New().String()
}

// NewConversationID generates a unique conversation ID
func NewConversationID() string {
	return uuid.New().String()
}

// NewTraceID generates a unique reasoning trace ID with the "trace_" prefix
func NewTraceID() string {
	return "trace_" + uuid.New().String()
}
