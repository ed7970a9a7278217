package index

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/vanasso-deeplearning/kbrag/internal/domain"
	"github.com/vanasso-deeplearning/kbrag/internal/logger"
	"github.com/vanasso-deeplearning/kbrag/internal/metrics"
)

// Embedding requests are grouped to stay well under provider input limits
// while keeping the call count low.
const embedBatchSize = 64

// StatusSuccess is reported for every run that finishes, including an
// incremental no-op. Clients read Mode and NewChunks for the outcome detail.
const StatusSuccess = "success"

// Service builds a collection's vector index from its stored sources.
type Service struct {
	sources SourceStore
	chunker Chunker
	index   Index
	embed   Embedder
	dim     int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an indexing service. dim is the embedding dimensionality, fixed
// per deployment.
func New(sources SourceStore, chunker Chunker, index Index, embed Embedder, dim int) *Service {
	return &Service{
		sources: sources,
		chunker: chunker,
		index:   index,
		embed:   embed,
		dim:     dim,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Result summarizes one embedding run. NewFiles lists the source identifiers
// embedded by this run; it is empty for an incremental no-op.
type Result struct {
	Status         string   `json:"status"`
	Mode           string   `json:"mode"`
	Message        string   `json:"message,omitempty"`
	KnowledgeName  string   `json:"knowledge_name"`
	TotalDocuments int      `json:"total_documents"`
	PDFCount       int      `json:"pdf_count"`
	CSVCount       int      `json:"csv_count"`
	TotalChunks    int      `json:"total_chunks"`
	NewChunks      int      `json:"new_chunks"`
	NewFiles       []string `json:"new_files"`
}

// Embed builds or extends the collection's index. Full mode drops and
// rebuilds from scratch; incremental mode embeds only sources not yet stored.
// Runs for the same collection are serialized; different collections proceed
// in parallel.
func (s *Service) Embed(ctx context.Context, name string, incremental bool) (Result, error) {
	if !s.sources.Exists(name) {
		return Result{}, fmt.Errorf("knowledge %q: %w", name, domain.ErrKnowledgeNotFound)
	}

	lock := s.collectionLock(name)
	lock.Lock()
	defer lock.Unlock()

	log := logger.FromContext(ctx).With(zap.String("knowledge", name))
	mode := "full"
	if incremental {
		mode = "incremental"
	}

	docs, err := s.sources.LoadSources(ctx, name)
	if err != nil {
		return Result{}, fmt.Errorf("load sources: %w", err)
	}
	if len(docs) == 0 {
		return Result{}, fmt.Errorf("knowledge %q: %w", name, domain.ErrNoDocuments)
	}

	result := Result{
		Status:         StatusSuccess,
		Mode:           mode,
		KnowledgeName:  name,
		TotalDocuments: len(docs),
		NewFiles:       []string{},
	}
	for _, d := range docs {
		switch d.Kind {
		case domain.KindPDF:
			result.PDFCount++
		case domain.KindCSV:
			result.CSVCount++
		}
	}

	indexID := domain.IndexID(name)

	toEmbed := docs
	if incremental {
		toEmbed, err = s.filterNewSources(ctx, indexID, docs, log)
		if err != nil {
			return Result{}, err
		}
	} else {
		if err := s.index.DropIndex(ctx, indexID); err != nil && !errors.Is(err, domain.ErrIndexNotFound) {
			return Result{}, fmt.Errorf("drop index: %w", err)
		}
	}

	if err := s.index.CreateIndex(ctx, indexID, s.dim); err != nil {
		return Result{}, fmt.Errorf("create index: %w", err)
	}

	if len(toEmbed) == 0 {
		result.Message = "no new files to embed"
		result.TotalChunks, err = s.index.CountChunks(ctx, indexID)
		if err != nil {
			return Result{}, fmt.Errorf("count chunks: %w", err)
		}
		log.Info("embedding skipped, no new files")
		return result, nil
	}
	for _, doc := range toEmbed {
		result.NewFiles = append(result.NewFiles, doc.Source)
	}

	var chunks []domain.Chunk
	for _, doc := range toEmbed {
		chunks = append(chunks, s.chunker.Split(doc)...)
	}
	if len(chunks) == 0 {
		return Result{}, fmt.Errorf("knowledge %q: sources produced no chunks: %w", name, domain.ErrNoDocuments)
	}

	if err := s.embedAndStore(ctx, indexID, chunks); err != nil {
		return Result{}, err
	}
	result.NewChunks = len(chunks)
	metrics.IndexedChunksTotal.WithLabelValues(name, mode).Add(float64(len(chunks)))

	result.TotalChunks, err = s.index.CountChunks(ctx, indexID)
	if err != nil {
		return Result{}, fmt.Errorf("count chunks: %w", err)
	}

	log.Info("embedding run finished",
		zap.String("mode", mode),
		zap.Strings("new_files", result.NewFiles),
		zap.Int("new_chunks", result.NewChunks),
		zap.Int("total_chunks", result.TotalChunks),
	)
	return result, nil
}

// filterNewSources keeps only documents whose source is absent from the
// index. A fresh index means everything is new. If the stored source list
// cannot be read, all documents are re-embedded; chunk IDs are deterministic,
// so rewriting is idempotent.
func (s *Service) filterNewSources(
	ctx context.Context, indexID string, docs []domain.SourceDocument, log *zap.Logger,
) ([]domain.SourceDocument, error) {
	exists, err := s.index.IndexExists(ctx, indexID)
	if err != nil {
		return nil, fmt.Errorf("index exists: %w", err)
	}
	if !exists {
		return docs, nil
	}

	stored, err := s.index.ListSources(ctx, indexID)
	if err != nil {
		log.Warn("listing stored sources failed, re-embedding all", zap.Error(err))
		return docs, nil
	}

	fresh := make([]domain.SourceDocument, 0, len(docs))
	for _, doc := range docs {
		if _, ok := stored[doc.Source]; !ok {
			fresh = append(fresh, doc)
		}
	}
	return fresh, nil
}

// embedAndStore vectorizes chunks in batches and writes them to the index.
func (s *Service) embedAndStore(ctx context.Context, indexID string, chunks []domain.Chunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		res, err := s.embed.BatchEmbed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		if len(res.Embeddings) != len(batch) {
			return fmt.Errorf("embed batch [%d:%d]: got %d vectors for %d chunks",
				start, end, len(res.Embeddings), len(batch))
		}

		if err := s.index.AddChunks(ctx, indexID, batch, res.Embeddings); err != nil {
			return fmt.Errorf("store batch [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

func (s *Service) collectionLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[name] = lock
	}
	return lock
}
