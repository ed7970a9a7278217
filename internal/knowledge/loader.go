package knowledge

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/vanasso-deeplearning/kbrag/internal/domain"
	"github.com/vanasso-deeplearning/kbrag/internal/logger"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadSources reads every raw asset of a collection and emits normalized
// source documents: PDFs first, then curated CSV tables. A failure on one
// asset is logged and skipped; it never aborts the rest of the collection.
func (s *Store) LoadSources(ctx context.Context, name string) ([]domain.SourceDocument, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if !s.Exists(name) {
		return nil, fmt.Errorf("knowledge %q: %w", name, domain.ErrKnowledgeNotFound)
	}

	docs := s.loadPDFs(ctx, name)
	docs = append(docs, s.loadCSVs(ctx, name)...)
	return docs, nil
}

func (s *Store) loadPDFs(ctx context.Context, name string) []domain.SourceDocument {
	log := logger.FromContext(ctx)
	dir := filepath.Join(s.dir(name), pdfSubdir)

	var docs []domain.SourceDocument
	for _, filename := range globFiles(dir, ".pdf") {
		text, err := extractPDFText(filepath.Join(dir, filename))
		if err != nil {
			log.Warn("skipping unreadable pdf",
				zap.String("knowledge", name),
				zap.String("file", filename),
				zap.Error(err),
			)
			continue
		}
		docs = append(docs, domain.SourceDocument{
			Source:    filename,
			Kind:      domain.KindPDF,
			Knowledge: name,
			Content:   text,
		})
	}
	return docs
}

// extractPDFText concatenates page texts with an explicit page marker so
// approximate page attribution stays recoverable from plain text downstream.
func extractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		p := r.Page(pageNum)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			// Page-level extraction failures shrink the document
			// but do not invalidate it.
			continue
		}
		fmt.Fprintf(&sb, "\n\n--- page %d ---\n\n%s", pageNum, text)
	}
	return sb.String(), nil
}

func (s *Store) loadCSVs(ctx context.Context, name string) []domain.SourceDocument {
	log := logger.FromContext(ctx)
	dir := filepath.Join(s.dir(name), csvSubdir)

	var docs []domain.SourceDocument
	for _, filename := range globFiles(dir, ".csv") {
		doc, err := loadCSV(filepath.Join(dir, filename))
		if err != nil {
			log.Warn("skipping unreadable csv",
				zap.String("knowledge", name),
				zap.String("file", filename),
				zap.Error(err),
			)
			continue
		}
		doc.Knowledge = name
		docs = append(docs, doc)
	}
	return docs
}

// loadCSV linearizes a curated table: every row becomes
// "column: value | column: value" with empty cells omitted, rows joined by
// newlines. The human-entered description is recovered from the filename
// (the last underscore-separated token of the stem).
func loadCSV(path string) (domain.SourceDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.SourceDocument{}, fmt.Errorf("read csv: %w", err)
	}
	// Curated tables are written UTF-8 with BOM for spreadsheet tooling.
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return domain.SourceDocument{}, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return domain.SourceDocument{}, fmt.Errorf("csv has no rows")
	}

	columns := records[0]
	lines := make([]string, 0, len(records)-1)
	for _, row := range records[1:] {
		var parts []string
		for i, cell := range row {
			if i >= len(columns) {
				break
			}
			if strings.TrimSpace(cell) == "" {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s: %s", columns[i], cell))
		}
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, " | "))
		}
	}

	filename := filepath.Base(path)
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	description := ""
	if idx := strings.LastIndex(stem, "_"); idx >= 0 {
		description = stem[idx+1:]
	}

	return domain.SourceDocument{
		Source:      filename,
		Kind:        domain.KindCSV,
		Content:     strings.Join(lines, "\n"),
		Description: description,
		Columns:     columns,
	}, nil
}

// writeCSV stores a curated table UTF-8 with BOM for spreadsheet
// compatibility, matching what loadCSV strips on the way back in.
func writeCSV(path string, columns []string, rows [][]string) error {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write csv file: %w", err)
	}
	return nil
}
