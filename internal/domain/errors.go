package domain

import "errors"

var (
	// ErrKnowledgeNotFound signals a missing knowledge collection.
	ErrKnowledgeNotFound = errors.New("knowledge not found")
	// ErrIndexNotFound signals that a collection has never been indexed.
	ErrIndexNotFound = errors.New("index not found")
	// ErrNoDocuments signals that a collection has zero loadable sources.
	ErrNoDocuments = errors.New("no documents to embed")
	// ErrValidation signals malformed request parameters.
	ErrValidation = errors.New("invalid request")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrCompletionProvider signals a chat completion provider failure.
	ErrCompletionProvider = errors.New("completion provider error")
	// ErrNotImplemented signals a capability with no configured backend.
	ErrNotImplemented = errors.New("not implemented")
)
