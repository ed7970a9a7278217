package domain

// Source is one citation attached to an answer, 1-indexed in the order the
// context was presented to the model.
type Source struct {
	Index          int     `json:"index"`
	KnowledgeName  string  `json:"knowledge_name"`
	SourceFile     string  `json:"source_file"`
	Page           string  `json:"page"`
	Score          float64 `json:"score"`
	ContentPreview string  `json:"content_preview"`
}

// Answer is the final response of the question-answering pipeline. Produced
// once per question, never persisted.
type Answer struct {
	Answer         string         `json:"answer"`
	Sources        []Source       `json:"sources"`
	KnowledgeStats map[string]int `json:"knowledge_stats"`
}
