package domain

import "errors"

var (
	// ErrIndexExists is the structured already-exists variant returned by
	// VectorIndex.EnsureIndex so callers never classify by message text.
	ErrIndexExists = errors.New("vector index already exists")

	// ErrMissingTenant rejects a chunk lacking tenant_id metadata before
	// it can reach the index.
	ErrMissingTenant = errors.New("chunk metadata missing tenant_id")

	// ErrNoConversions fails an ingestion run in which no file produced text.
	ErrNoConversions = errors.New("no documents were successfully converted")

	// ErrMetadataMismatch rejects a text batch whose metadata list does not
	// line up with its texts.
	ErrMetadataMismatch = errors.New("metadata entries do not match texts")
)
