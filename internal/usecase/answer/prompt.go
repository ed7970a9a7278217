package answer

import (
	"fmt"
	"strings"

	"github.com/vanasso-deeplearning/kbrag/internal/domain"
)

// systemPrompt pins the model to the retrieved context. Grounding rules are
// numbered so violations are easy to point at during prompt reviews.
const systemPrompt = `You are an assistant that answers strictly from the provided documents.

Follow these rules:
1. Use only the provided context to answer.
2. Never guess at anything the context does not state.
3. Cite where each piece of information comes from using [source N] markers.
4. Answer in the same language as the question, clearly and politely.
5. Be as detailed and concrete as possible. Include examples and specifics.
6. Explain each main point fully, splitting into paragraphs where it helps.
7. If the context has no answer, say honestly that the provided documents contain no relevant information.`

// buildContext renders retrieved chunks as numbered source blocks. Numbering
// is 1-based and matches the indexes reported in Answer.Sources.
func buildContext(docs []domain.RetrievedDocument) string {
	parts := make([]string, len(docs))
	for i, doc := range docs {
		parts[i] = fmt.Sprintf("[source %d]\n%s", i+1, doc.Content)
	}
	return strings.Join(parts, "\n\n")
}

func buildUserPrompt(contextText, question string) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer:", contextText, question)
}
