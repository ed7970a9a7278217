// Package answer turns a ranked pool of retrieved chunks into a grounded,
// cited natural-language answer.
package answer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/vanasso-deeplearning/kbrag/internal/domain"
)

// fallbackAnswer is returned without calling the model when retrieval found
// nothing. Keeping the model out of the empty path makes "no documents"
// cheap and deterministic.
const fallbackAnswer = "Sorry, I could not find any relevant information."

const previewLimit = 100

// Service generates answers from retrieved context.
type Service struct {
	complete domain.Completer
	model    string
}

// New creates an answer service bound to a completion model.
func New(complete domain.Completer, model string) *Service {
	return &Service{complete: complete, model: model}
}

// Generate produces the answer text and its citations. An empty document
// pool short-circuits to the fallback answer; the completion provider is
// never contacted. model overrides the service default when non-empty.
func (s *Service) Generate(
	ctx context.Context, docs []domain.RetrievedDocument, question, model string,
) (string, []domain.Source, error) {
	if len(docs) == 0 {
		return fallbackAnswer, []domain.Source{}, nil
	}

	if model == "" {
		model = s.model
	}
	sources := buildSources(docs)
	userPrompt := buildUserPrompt(buildContext(docs), question)

	text, err := s.complete.Complete(ctx, systemPrompt, userPrompt, model)
	if err != nil {
		return "", nil, fmt.Errorf("generate answer: %w", err)
	}
	return text, sources, nil
}

// buildSources extracts the citation list. Index matches the [source N]
// numbering in the prompt context.
func buildSources(docs []domain.RetrievedDocument) []domain.Source {
	sources := make([]domain.Source, len(docs))
	for i, doc := range docs {
		page := "N/A"
		if doc.Meta.Page > 0 {
			page = strconv.Itoa(doc.Meta.Page)
		}
		sources[i] = domain.Source{
			Index:          i + 1,
			KnowledgeName:  doc.Knowledge,
			SourceFile:     doc.Meta.Source,
			Page:           page,
			Score:          doc.Score,
			ContentPreview: preview(doc.Content),
		}
	}
	return sources
}

// preview truncates on runes so multi-byte text is never cut mid-character.
func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLimit {
		return content
	}
	return string(runes[:previewLimit]) + "..."
}
