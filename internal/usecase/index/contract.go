package index

import (
	"context"

	"github.com/vanasso-deeplearning/kbrag/internal/domain"
)

// SourceStore reads collection sources from disk.
type SourceStore interface {
	Exists(name string) bool
	LoadSources(ctx context.Context, name string) ([]domain.SourceDocument, error)
}

// Chunker splits a source document into embeddable chunks.
type Chunker interface {
	Split(doc domain.SourceDocument) []domain.Chunk
}

// Index defines the vector index contract for embedding runs.
type Index interface {
	CreateIndex(ctx context.Context, indexID string, dim int) error
	DropIndex(ctx context.Context, indexID string) error
	IndexExists(ctx context.Context, indexID string) (bool, error)
	AddChunks(ctx context.Context, indexID string, chunks []domain.Chunk, vectors [][]float32) error
	ListSources(ctx context.Context, indexID string) (map[string]struct{}, error)
	CountChunks(ctx context.Context, indexID string) (int, error)
}

// Embedder vectorizes chunk batches.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}
