package qa

import (
	"context"

	"github.com/vanasso-deeplearning/kbrag/internal/domain"
	"github.com/vanasso-deeplearning/kbrag/internal/usecase/retrieval"
)

// KnowledgeChecker verifies that a collection exists on disk.
type KnowledgeChecker interface {
	Exists(name string) bool
}

// Retriever searches collections and merges the results.
type Retriever interface {
	RetrieveMulti(ctx context.Context, names []string, question string, topKPer, finalTopK int) (retrieval.Merged, error)
}

// Generator turns retrieved context into an answer with citations. An empty
// model means the generator's default.
type Generator interface {
	Generate(ctx context.Context, docs []domain.RetrievedDocument, question, model string) (string, []domain.Source, error)
}
