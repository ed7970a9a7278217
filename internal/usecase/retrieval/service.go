// Package retrieval answers "which stored chunks are relevant to this
// question" across one or many knowledge collections.
package retrieval

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/vanasso-deeplearning/kbrag/internal/domain"
	"github.com/vanasso-deeplearning/kbrag/internal/logger"
	"github.com/vanasso-deeplearning/kbrag/internal/metrics"
)

// Service retrieves relevant chunks per collection and merges them into one
// ranked pool.
type Service struct {
	search Searcher
	embed  Embedder
}

// New creates a retrieval service.
func New(search Searcher, embed Embedder) *Service {
	return &Service{search: search, embed: embed}
}

// Merged is the cross-collection retrieval outcome.
type Merged struct {
	Documents []domain.RetrievedDocument
	// Stats counts, per collection, how many documents survived the final
	// cut. Collections with zero survivors still appear with 0.
	Stats map[string]int
}

// Retrieve returns up to topK chunks from a single collection, best first.
func (s *Service) Retrieve(
	ctx context.Context, name string, question string, topK int,
) ([]domain.RetrievedDocument, error) {
	indexID := domain.IndexID(name)

	exists, err := s.search.IndexExists(ctx, indexID)
	if err != nil {
		return nil, fmt.Errorf("index exists %s: %w", name, err)
	}
	if !exists {
		return nil, fmt.Errorf("knowledge %q: %w", name, domain.ErrIndexNotFound)
	}

	embRes, err := s.embed.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("vectorize question: %w", err)
	}

	docs, err := s.search.SearchKNN(ctx, indexID, embRes.Embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", name, err)
	}

	for i := range docs {
		if docs[i].Knowledge == "" {
			docs[i].Knowledge = name
		}
	}
	return docs, nil
}

// RetrieveMulti queries every named collection in parallel and merges the
// per-collection pools by score. A collection that fails (missing index,
// provider error) contributes nothing instead of aborting the whole request.
func (s *Service) RetrieveMulti(
	ctx context.Context, names []string, question string, topKPer, finalTopK int,
) (Merged, error) {
	log := logger.FromContext(ctx)

	pools := make([][]domain.RetrievedDocument, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			docs, err := s.Retrieve(ctx, name, question, topKPer)
			if err != nil {
				metrics.RetrievalRequestsTotal.WithLabelValues(name, "error").Inc()
				log.Warn("collection retrieval failed",
					zap.String("knowledge", name), zap.Error(err))
				return
			}
			metrics.RetrievalRequestsTotal.WithLabelValues(name, "ok").Inc()
			pools[i] = docs
		}()
	}
	wg.Wait()

	return mergeByScore(names, pools, finalTopK), nil
}
