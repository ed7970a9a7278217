package domain

import (
	"crypto/md5" //nolint:gosec // identifier derivation, not security
	"encoding/hex"
	"time"
)

// IndexID derives the opaque index identifier for a knowledge collection
// name. The name is user-chosen free text; hashing it keeps index names safe
// for the storage layer regardless of what characters the name contains.
// Deterministic and stable across restarts: same name, same index.
func IndexID(name string) string {
	sum := md5.Sum([]byte(name)) //nolint:gosec // see above
	return "kb_" + hex.EncodeToString(sum[:])[:8]
}

// KnowledgeMetadata is the persisted description record of a collection.
type KnowledgeMetadata struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// KnowledgeInfo is a collection summary for listings.
type KnowledgeInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PDFCount    int    `json:"pdf_count"`
	CSVCount    int    `json:"csv_count"`
}
