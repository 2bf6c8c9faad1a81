package domain

import "errors"

var (
	// ErrNotFound signals an unknown content id.
	ErrNotFound = errors.New("content not found")
	// ErrAlreadyExists signals a duplicate content id on ingest.
	ErrAlreadyExists = errors.New("content already exists")
	// ErrInvalidRequest signals a malformed search or ingest request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrEmbeddingUnavailable signals an embedding provider failure.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	// ErrIndexUnavailable signals a vector index failure.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrLLMUnavailable signals a language model failure.
	ErrLLMUnavailable = errors.New("language model unavailable")
	// ErrRetrievalUnavailable signals that every retrieval branch failed.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrRateLimited signals a provider-side rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)
