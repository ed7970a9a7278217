package retrieval

import (
	"context"

	"github.com/vanasso-deeplearning/kbrag/internal/domain"
)

// Searcher defines the vector index contract for retrieval.
type Searcher interface {
	IndexExists(ctx context.Context, indexID string) (bool, error)
	SearchKNN(ctx context.Context, indexID string, vector []float32, k int) ([]domain.RetrievedDocument, error)
}

// Embedder vectorizes the question.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
