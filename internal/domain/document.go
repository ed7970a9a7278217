package domain

// Kind is the origin format of a source document.
type Kind string

const (
	// KindPDF marks text extracted from an uploaded PDF.
	KindPDF Kind = "pdf"
	// KindCSV marks text linearized from a curated CSV table.
	KindCSV Kind = "csv"
)

// SourceDocument is one normalized unit of collection content: the full
// extracted text of a PDF or the linearized rows of a curated table.
// Immutable once produced by the loader.
type SourceDocument struct {
	// Source is the original filename, unique within a collection. It is
	// the identity used by incremental indexing to skip already-embedded
	// documents.
	Source      string
	Kind        Kind
	Knowledge   string
	Content     string
	Description string
	Columns     []string
}

// ChunkMeta carries everything needed to cite a chunk without reopening the
// source file. Optional fields are explicit: Page is 0 when unknown,
// Description and Columns are empty for PDF-derived chunks.
type ChunkMeta struct {
	Source      string
	Kind        Kind
	Knowledge   string
	Page        int
	Description string
	Columns     []string
}

// Chunk is a bounded-size slice of a SourceDocument, the unit of embedding
// and storage. IDs are deterministic (source filename + running sequence) so
// repeated indexing of identical input produces identical chunks.
type Chunk struct {
	ID      string
	Content string
	Meta    ChunkMeta
}

// RetrievedDocument is a stored chunk returned by a similarity query,
// annotated with its score and originating collection. Transient: it lives
// for one question only.
//
// Score convention: similarity, higher is better, normalized into [0,1] at
// the vector store boundary (cosine distance d becomes max(0, 1-d)). Every
// layer above the store sorts descending.
type RetrievedDocument struct {
	ID        string
	Content   string
	Score     float64
	Knowledge string
	Meta      ChunkMeta
}
