package ingestion

import "errors"

var (
	// ErrStoreRequired is returned when no document metadata store is provided.
	ErrStoreRequired = errors.New("document store required")

	// ErrStorageRequired is returned when no file storage is provided.
	ErrStorageRequired = errors.New("file storage required")

	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrVectorStoreRequired is returned when no tenant vector store is provided.
	ErrVectorStoreRequired = errors.New("vector store required")
)
