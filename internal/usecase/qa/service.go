// Package qa composes retrieval and answer generation into the full
// question-answering pipeline.
package qa

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vanasso-deeplearning/kbrag/internal/domain"
	"github.com/vanasso-deeplearning/kbrag/internal/logger"
)

// Parameter bounds and defaults for one question.
const (
	DefaultTopKPerKnowledge = 3
	MaxTopKPerKnowledge     = 10
	DefaultFinalTopK        = 5
	MaxFinalTopK            = 20
)

// Request is one user question against a set of collections. Model overrides
// the default completion model when non-empty.
type Request struct {
	KnowledgeNames   []string `json:"knowledge_names"`
	Question         string   `json:"question"`
	TopKPerKnowledge int      `json:"top_k_per_knowledge"`
	FinalTopK        int      `json:"final_top_k"`
	Model            string   `json:"model,omitempty"`
}

// Service runs the ask pipeline.
type Service struct {
	knowledge KnowledgeChecker
	retriever Retriever
	generator Generator

	defaultTopKPer   int
	defaultFinalTopK int
}

// New creates a question-answering service. topKPer and finalTopK are the
// deployment defaults applied to requests that leave the parameters unset; a
// value outside the documented bounds falls back to the package defaults.
func New(knowledge KnowledgeChecker, retriever Retriever, generator Generator, topKPer, finalTopK int) *Service {
	if topKPer < 1 || topKPer > MaxTopKPerKnowledge {
		topKPer = DefaultTopKPerKnowledge
	}
	if finalTopK < 1 || finalTopK > MaxFinalTopK {
		finalTopK = DefaultFinalTopK
	}
	return &Service{
		knowledge:        knowledge,
		retriever:        retriever,
		generator:        generator,
		defaultTopKPer:   topKPer,
		defaultFinalTopK: finalTopK,
	}
}

// Ask validates the request, retrieves context across all named collections,
// and generates a grounded answer. Collections must exist on disk; a missing
// collection aborts the request, while per-collection retrieval failures
// degrade to zero contribution.
func (s *Service) Ask(ctx context.Context, req Request) (domain.Answer, error) {
	if err := s.normalize(&req); err != nil {
		return domain.Answer{}, err
	}

	merged, err := s.retriever.RetrieveMulti(
		ctx, req.KnowledgeNames, req.Question, req.TopKPerKnowledge, req.FinalTopK,
	)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("retrieve: %w", err)
	}

	text, sources, err := s.generator.Generate(ctx, merged.Documents, req.Question, req.Model)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("answer: %w", err)
	}

	logger.FromContext(ctx).Info("question answered",
		zap.Strings("knowledge_names", req.KnowledgeNames),
		zap.Int("documents_used", len(merged.Documents)),
	)

	return domain.Answer{
		Answer:         text,
		Sources:        sources,
		KnowledgeStats: merged.Stats,
	}, nil
}

// normalize applies defaults, enforces bounds, and checks that every named
// collection exists.
func (s *Service) normalize(req *Request) error {
	if strings.TrimSpace(req.Question) == "" {
		return fmt.Errorf("question is required: %w", domain.ErrValidation)
	}
	if len(req.KnowledgeNames) == 0 {
		return fmt.Errorf("knowledge_names is required: %w", domain.ErrValidation)
	}
	for _, name := range req.KnowledgeNames {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("empty knowledge name: %w", domain.ErrValidation)
		}
	}

	if req.TopKPerKnowledge == 0 {
		req.TopKPerKnowledge = s.defaultTopKPer
	}
	if req.TopKPerKnowledge < 1 || req.TopKPerKnowledge > MaxTopKPerKnowledge {
		return fmt.Errorf("top_k_per_knowledge must be in [1, %d]: %w",
			MaxTopKPerKnowledge, domain.ErrValidation)
	}

	if req.FinalTopK == 0 {
		req.FinalTopK = s.defaultFinalTopK
	}
	if req.FinalTopK < 1 || req.FinalTopK > MaxFinalTopK {
		return fmt.Errorf("final_top_k must be in [1, %d]: %w",
			MaxFinalTopK, domain.ErrValidation)
	}

	for _, name := range req.KnowledgeNames {
		if !s.knowledge.Exists(name) {
			return fmt.Errorf("knowledge %q: %w", name, domain.ErrKnowledgeNotFound)
		}
	}
	return nil
}
