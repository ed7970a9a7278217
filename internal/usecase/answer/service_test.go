package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vanasso-deeplearning/kbrag/internal/domain"
)

type mockCompleter struct {
	text       string
	err        error
	called     bool
	lastSystem string
	lastUser   string
	lastModel  string
}

func (m *mockCompleter) Complete(_ context.Context, system, user, model string) (string, error) {
	m.called = true
	m.lastSystem = system
	m.lastUser = user
	m.lastModel = model
	return m.text, m.err
}

func retrievedDoc(knowledge, source, content string, page int, score float64) domain.RetrievedDocument {
	return domain.RetrievedDocument{
		ID:        source + "#0",
		Content:   content,
		Score:     score,
		Knowledge: knowledge,
		Meta:      domain.ChunkMeta{Source: source, Knowledge: knowledge, Page: page},
	}
}

func TestGenerate_EmptyPoolSkipsModel(t *testing.T) {
	c := &mockCompleter{}
	s := New(c, "gpt-4o-mini")

	text, sources, err := s.Generate(context.Background(), nil, "anything?", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != fallbackAnswer {
		t.Errorf("expected fallback answer, got %q", text)
	}
	if len(sources) != 0 {
		t.Errorf("expected no sources, got %d", len(sources))
	}
	if c.called {
		t.Error("completer must not be called on empty pool")
	}
}

func TestGenerate_BuildsNumberedContext(t *testing.T) {
	c := &mockCompleter{text: "Staking pays weekly [source 1]."}
	s := New(c, "gpt-4o-mini")

	docs := []domain.RetrievedDocument{
		retrievedDoc("coins", "guide.pdf", "Staking pays out weekly.", 4, 0.9),
		retrievedDoc("chain", "rates.csv", "coin: USDT | rate: 1.0", 0, 0.7),
	}

	text, sources, err := s.Generate(context.Background(), docs, "when does staking pay?", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != c.text {
		t.Errorf("unexpected answer: %q", text)
	}

	if !strings.Contains(c.lastUser, "[source 1]\nStaking pays out weekly.") {
		t.Errorf("context missing first source block:\n%s", c.lastUser)
	}
	if !strings.Contains(c.lastUser, "[source 2]\ncoin: USDT | rate: 1.0") {
		t.Errorf("context missing second source block:\n%s", c.lastUser)
	}
	if !strings.Contains(c.lastUser, "Question: when does staking pay?") {
		t.Errorf("question missing from prompt:\n%s", c.lastUser)
	}
	if c.lastModel != "gpt-4o-mini" {
		t.Errorf("unexpected model: %q", c.lastModel)
	}

	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].Index != 1 || sources[1].Index != 2 {
		t.Errorf("citation indexes must be 1-based: %+v", sources)
	}
	if sources[0].Page != "4" {
		t.Errorf("expected page 4, got %q", sources[0].Page)
	}
	if sources[1].Page != "N/A" {
		t.Errorf("pageless chunk must report N/A, got %q", sources[1].Page)
	}
	if sources[1].KnowledgeName != "chain" || sources[1].SourceFile != "rates.csv" {
		t.Errorf("unexpected citation: %+v", sources[1])
	}
}

func TestGenerate_ModelOverride(t *testing.T) {
	c := &mockCompleter{text: "ok"}
	s := New(c, "gpt-4o-mini")

	docs := []domain.RetrievedDocument{retrievedDoc("coins", "a.pdf", "text", 1, 0.5)}

	if _, _, err := s.Generate(context.Background(), docs, "q", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.lastModel != "gpt-4o-mini" {
		t.Errorf("expected default model, got %q", c.lastModel)
	}

	if _, _, err := s.Generate(context.Background(), docs, "q", "gpt-4o"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.lastModel != "gpt-4o" {
		t.Errorf("expected override model, got %q", c.lastModel)
	}
}

func TestGenerate_CompleterFailure(t *testing.T) {
	c := &mockCompleter{err: errors.New("rate limited")}
	s := New(c, "gpt-4o-mini")

	_, _, err := s.Generate(context.Background(),
		[]domain.RetrievedDocument{retrievedDoc("coins", "a.pdf", "text", 1, 0.5)}, "q", "")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestPreview(t *testing.T) {
	short := "short content"
	if got := preview(short); got != short {
		t.Errorf("short content must pass through, got %q", got)
	}

	long := strings.Repeat("a", 150)
	got := preview(long)
	if len([]rune(got)) != previewLimit+3 {
		t.Errorf("expected %d runes, got %d", previewLimit+3, len([]rune(got)))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("long preview must end with ellipsis: %q", got)
	}

	// multi-byte safety
	hangul := strings.Repeat("가", 150)
	got = preview(hangul)
	if !strings.HasPrefix(got, strings.Repeat("가", previewLimit)) {
		t.Error("multi-byte preview cut mid-character")
	}
}
