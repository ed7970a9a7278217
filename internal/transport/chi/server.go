// Package chi exposes the question-answering and collection admin APIs over
// HTTP.
package chi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vanasso-deeplearning/kbrag/internal/domain"
	"github.com/vanasso-deeplearning/kbrag/internal/knowledge"
	"github.com/vanasso-deeplearning/kbrag/internal/usecase/health"
	"github.com/vanasso-deeplearning/kbrag/internal/usecase/index"
	"github.com/vanasso-deeplearning/kbrag/internal/usecase/qa"
)

const maxUploadBytes = 50 << 20

// Asker answers questions against knowledge collections.
type Asker interface {
	Ask(ctx context.Context, req qa.Request) (domain.Answer, error)
}

// Indexer runs embedding builds.
type Indexer interface {
	Embed(ctx context.Context, name string, incremental bool) (index.Result, error)
}

// IndexProber checks whether a collection has been indexed.
type IndexProber interface {
	IndexExists(ctx context.Context, indexID string) (bool, error)
}

// KnowledgeStore manages collection assets on disk.
type KnowledgeStore interface {
	Exists(name string) bool
	SaveMetadata(name, description string) (domain.KnowledgeMetadata, error)
	Metadata(name string) (domain.KnowledgeMetadata, bool, error)
	List() ([]domain.KnowledgeInfo, error)
	SavePDF(name, filename string, r io.Reader) (int64, error)
	PDFBytes(name, filename string) ([]byte, error)
	SaveTableCSV(name, pdfFilename string, page, tableIndex int, description string, columns []string, rows [][]string) (string, error)
	CSVPath(name, filename string) (string, error)
	ListFiles(name string) (pdfs, csvs []knowledge.FileInfo, err error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

// Server holds the HTTP handlers.
type Server struct {
	qa      Asker
	indexer Indexer
	prober  IndexProber
	kb      KnowledgeStore
	health  HealthChecker
	tables  domain.TableExtractor
	pages   domain.PageRenderer
	logger  *zap.Logger
}

// NewServer creates an HTTP API server. tables and pages are optional
// capabilities; their endpoints answer 501 when nil.
func NewServer(
	asker Asker,
	indexer Indexer,
	prober IndexProber,
	kb KnowledgeStore,
	healthSvc HealthChecker,
	tables domain.TableExtractor,
	pages domain.PageRenderer,
	logger *zap.Logger,
) *Server {
	return &Server{
		qa:      asker,
		indexer: indexer,
		prober:  prober,
		kb:      kb,
		health:  healthSvc,
		tables:  tables,
		pages:   pages,
		logger:  logger,
	}
}

// RegisterRoutes mounts every endpoint on the router.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
		r.Get("/available-knowledge", s.handleAvailableKnowledge)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/save-knowledge-metadata", s.handleSaveMetadata)
		r.Get("/get-knowledge-metadata/{knowledgeName}", s.handleGetMetadata)
		r.Get("/list-knowledge", s.handleListKnowledge)
		r.Post("/upload-pdf", s.handleUploadPDF)
		r.Post("/extract-tables", s.handleExtractTables)
		r.Get("/get-pdf-page-image/{knowledgeName}/{pdfFilename}/{pageNumber}", s.handlePDFPageImage)
		r.Post("/save-table-to-csv", s.handleSaveTableCSV)
		r.Get("/download-csv/{knowledgeName}/{filename}", s.handleDownloadCSV)
		r.Get("/list-files/{knowledgeName}", s.handleListFiles)
		r.Post("/start-embedding", s.handleStartEmbedding)
	})
}

// --- User API ---

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req qa.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	answer, err := s.qa.Ask(r.Context(), req)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// availableKnowledgeItem is one entry of the available-knowledge listing.
type availableKnowledgeItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// handleAvailableKnowledge lists collections whose index is ready for
// questions. Collections without an index are silently omitted.
func (s *Server) handleAvailableKnowledge(w http.ResponseWriter, r *http.Request) {
	infos, err := s.kb.List()
	if err != nil {
		handleDomainError(w, err)
		return
	}

	available := make([]availableKnowledgeItem, 0, len(infos))
	for _, info := range infos {
		exists, err := s.prober.IndexExists(r.Context(), domain.IndexID(info.Name))
		if err != nil {
			handleDomainError(w, err)
			return
		}
		if !exists {
			continue
		}
		available = append(available, availableKnowledgeItem{
			Name:        info.Name,
			Description: info.Description,
		})
	}
	writeJSON(w, http.StatusOK, available)
}

// --- Admin API ---

func (s *Server) handleSaveMetadata(w http.ResponseWriter, r *http.Request) {
	var req struct {
		KnowledgeName string `json:"knowledge_name"`
		Description   string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.KnowledgeName) == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "knowledge_name is required")
		return
	}

	meta, err := s.kb.SaveMetadata(req.KnowledgeName, req.Description)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "knowledgeName")

	meta, ok, err := s.kb.Metadata(name)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "knowledge "+strconv.Quote(name)+" not found")
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handleListKnowledge(w http.ResponseWriter, _ *http.Request) {
	infos, err := s.kb.List()
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleUploadPDF(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("knowledge_name")
	if name == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "knowledge_name is required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "file is required")
		return
	}
	defer file.Close()

	size, err := s.kb.SavePDF(name, header.Filename, file)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	s.logger.Info("pdf uploaded",
		zap.String("knowledge", name),
		zap.String("filename", header.Filename),
		zap.Int64("bytes", size))
	writeJSON(w, http.StatusOK, map[string]any{
		"filename": header.Filename,
		"size":     size,
	})
}

func (s *Server) handleExtractTables(w http.ResponseWriter, r *http.Request) {
	var req struct {
		KnowledgeName string `json:"knowledge_name"`
		PDFFilename   string `json:"pdf_filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if s.tables == nil {
		writeError(w, http.StatusNotImplemented, codeNotImplemented, "table extraction is not configured")
		return
	}

	pdf, err := s.kb.PDFBytes(req.KnowledgeName, req.PDFFilename)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	tables, err := s.tables.ExtractTables(r.Context(), pdf)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (s *Server) handlePDFPageImage(w http.ResponseWriter, r *http.Request) {
	if s.pages == nil {
		writeError(w, http.StatusNotImplemented, codeNotImplemented, "page rendering is not configured")
		return
	}

	name := chi.URLParam(r, "knowledgeName")
	filename := chi.URLParam(r, "pdfFilename")
	page, err := strconv.Atoi(chi.URLParam(r, "pageNumber"))
	if err != nil || page < 1 {
		writeError(w, http.StatusBadRequest, codeValidation, "page number must be a positive integer")
		return
	}

	pdf, err := s.kb.PDFBytes(name, filename)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	img, err := s.pages.RenderPage(r.Context(), pdf, page)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func (s *Server) handleSaveTableCSV(w http.ResponseWriter, r *http.Request) {
	var req struct {
		KnowledgeName string     `json:"knowledge_name"`
		PDFFilename   string     `json:"pdf_filename"`
		Page          int        `json:"page"`
		TableIndex    int        `json:"table_index"`
		Description   string     `json:"description"`
		Columns       []string   `json:"columns"`
		Rows          [][]string `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	filename, err := s.kb.SaveTableCSV(
		req.KnowledgeName, req.PDFFilename,
		req.Page, req.TableIndex, req.Description, req.Columns, req.Rows,
	)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"filename": filename})
}

func (s *Server) handleDownloadCSV(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "knowledgeName")
	filename := chi.URLParam(r, "filename")

	path, err := s.kb.CSVPath(name, filename)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(filename))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	http.ServeFile(w, r, path)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "knowledgeName")

	pdfs, csvs, err := s.kb.ListFiles(name)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pdfs": pdfs,
		"csvs": csvs,
	})
}

// handleStartEmbedding triggers an embedding run. force_recreate=true drops
// the index first; otherwise only new files are embedded.
func (s *Server) handleStartEmbedding(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("knowledge_name")
	if name == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "knowledge_name is required")
		return
	}
	force := false
	if v := r.URL.Query().Get("force_recreate"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "force_recreate must be a boolean")
			return
		}
		force = parsed
	}

	result, err := s.indexer.Embed(r.Context(), name, !force)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	s.logger.Info("embedding run finished",
		zap.String("knowledge", name),
		zap.String("status", result.Status),
		zap.String("mode", result.Mode),
		zap.Int("new_chunks", result.NewChunks))
	writeJSON(w, http.StatusOK, result)
}

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}
