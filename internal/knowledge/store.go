// Package knowledge manages the on-disk assets of knowledge collections:
// one directory per collection holding uploaded PDFs, curated CSV tables and
// a metadata document. It is also the loader turning those assets into
// normalized source documents for indexing.
package knowledge

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vanasso-deeplearning/kbrag/internal/domain"
)

const (
	pdfSubdir    = "pdf"
	csvSubdir    = "csv"
	metadataFile = "metadata.json"
)

// FileInfo describes one stored asset file.
type FileInfo struct {
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Store maps collection names to their directory layout under a base dir.
type Store struct {
	baseDir string
}

// NewStore creates a Store rooted at baseDir. The directory is created on
// first use, not here.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Exists reports whether a collection directory exists.
func (s *Store) Exists(name string) bool {
	if err := checkName(name); err != nil {
		return false
	}
	info, err := os.Stat(s.dir(name))
	return err == nil && info.IsDir()
}

// SaveMetadata creates or updates a collection's description. Saving
// metadata for an unknown name creates the collection.
func (s *Store) SaveMetadata(name, description string) (domain.KnowledgeMetadata, error) {
	if err := checkName(name); err != nil {
		return domain.KnowledgeMetadata{}, err
	}
	if err := s.ensureLayout(name); err != nil {
		return domain.KnowledgeMetadata{}, err
	}

	meta, ok, err := s.Metadata(name)
	if err != nil {
		return domain.KnowledgeMetadata{}, err
	}
	now := time.Now().UTC()
	if !ok {
		meta = domain.KnowledgeMetadata{Name: name, CreatedAt: now}
	}
	meta.Description = description
	meta.UpdatedAt = now

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return domain.KnowledgeMetadata{}, fmt.Errorf("marshal metadata: %w", err)
	}
	path := filepath.Join(s.dir(name), metadataFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return domain.KnowledgeMetadata{}, fmt.Errorf("write metadata: %w", err)
	}
	return meta, nil
}

// Metadata reads a collection's metadata document. The second return value
// is false when no metadata has been saved yet.
func (s *Store) Metadata(name string) (domain.KnowledgeMetadata, bool, error) {
	if err := checkName(name); err != nil {
		return domain.KnowledgeMetadata{}, false, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir(name), metadataFile))
	if os.IsNotExist(err) {
		return domain.KnowledgeMetadata{}, false, nil
	}
	if err != nil {
		return domain.KnowledgeMetadata{}, false, fmt.Errorf("read metadata: %w", err)
	}
	var meta domain.KnowledgeMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return domain.KnowledgeMetadata{}, false, fmt.Errorf("parse metadata: %w", err)
	}
	return meta, true, nil
}

// List returns a summary of every collection, sorted by name.
func (s *Store) List() ([]domain.KnowledgeInfo, error) {
	entries, err := os.ReadDir(s.baseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read base dir: %w", err)
	}

	infos := make([]domain.KnowledgeInfo, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		meta, _, _ := s.Metadata(name)

		infos = append(infos, domain.KnowledgeInfo{
			Name:        name,
			Description: meta.Description,
			PDFCount:    len(globFiles(filepath.Join(s.dir(name), pdfSubdir), ".pdf")),
			CSVCount:    len(globFiles(filepath.Join(s.dir(name), csvSubdir), ".csv")),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// SavePDF stores an uploaded PDF under the collection, creating the
// collection layout on first upload. Returns the stored size.
func (s *Store) SavePDF(name, filename string, r io.Reader) (int64, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}
	if err := checkFilename(filename); err != nil {
		return 0, err
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return 0, fmt.Errorf("only .pdf files can be uploaded: %w", domain.ErrValidation)
	}
	if err := s.ensureLayout(name); err != nil {
		return 0, err
	}

	path := filepath.Join(s.dir(name), pdfSubdir, filename)
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create pdf file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return 0, fmt.Errorf("write pdf file: %w", err)
	}
	return n, nil
}

// PDFBytes reads a stored PDF for table extraction or page rendering.
func (s *Store) PDFBytes(name, filename string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if err := checkFilename(filename); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir(name), pdfSubdir, filename))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("pdf %q: %w", filename, domain.ErrKnowledgeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	return data, nil
}

// SaveTableCSV writes a curated table as a CSV asset. The filename encodes
// the originating PDF, table number and the human-entered description (or
// the page number when no description was given), mirroring how curated
// tables are named for download.
func (s *Store) SaveTableCSV(
	name, pdfFilename string, page, tableIndex int,
	description string, columns []string, rows [][]string,
) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("table data is empty: %w", domain.ErrValidation)
	}
	if err := s.ensureLayout(name); err != nil {
		return "", err
	}

	base := strings.TrimSuffix(pdfFilename, filepath.Ext(pdfFilename))
	var filename string
	if description != "" {
		filename = fmt.Sprintf("%s_table%d_%s.csv", base, tableIndex, description)
	} else {
		filename = fmt.Sprintf("%s_table%d_page%d.csv", base, tableIndex, page)
	}
	if err := checkFilename(filename); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir(name), csvSubdir, filename)
	if err := writeCSV(path, columns, rows); err != nil {
		return "", err
	}
	return filename, nil
}

// CSVPath resolves a stored CSV for download, rejecting unknown files.
func (s *Store) CSVPath(name, filename string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	if err := checkFilename(filename); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir(name), csvSubdir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("csv %q: %w", filename, domain.ErrKnowledgeNotFound)
	}
	return path, nil
}

// ListFiles returns the PDF and CSV assets of a collection, newest first.
func (s *Store) ListFiles(name string) (pdfs, csvs []FileInfo, err error) {
	if err := checkName(name); err != nil {
		return nil, nil, err
	}
	if !s.Exists(name) {
		return nil, nil, fmt.Errorf("knowledge %q: %w", name, domain.ErrKnowledgeNotFound)
	}

	pdfs = fileInfos(filepath.Join(s.dir(name), pdfSubdir), ".pdf")
	csvs = fileInfos(filepath.Join(s.dir(name), csvSubdir), ".csv")
	return pdfs, csvs, nil
}

func (s *Store) dir(name string) string {
	return filepath.Join(s.baseDir, name)
}

func (s *Store) ensureLayout(name string) error {
	for _, sub := range []string{pdfSubdir, csvSubdir} {
		if err := os.MkdirAll(filepath.Join(s.dir(name), sub), 0o755); err != nil {
			return fmt.Errorf("create collection layout: %w", err)
		}
	}
	return nil
}

// checkName rejects collection names that would escape the base directory.
// Names are user-chosen labels; the vector index uses a hashed identifier,
// but the directory key is the raw name and must stay a single path element.
func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("knowledge name is required: %w", domain.ErrValidation)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("knowledge name %q contains path separators: %w", name, domain.ErrValidation)
	}
	return nil
}

func checkFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename is required: %w", domain.ErrValidation)
	}
	if strings.ContainsAny(filename, `/\`) || filename == "." || filename == ".." {
		return fmt.Errorf("filename %q contains path separators: %w", filename, domain.ErrValidation)
	}
	return nil
}

func globFiles(dir, ext string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ext) {
			out = append(out, e.Name())
		}
	}
	return out
}

func fileInfos(dir, ext string) []FileInfo {
	names := globFiles(dir, ext)
	infos := make([]FileInfo, 0, len(names))
	for _, n := range names {
		st, err := os.Stat(filepath.Join(dir, n))
		if err != nil {
			continue
		}
		infos = append(infos, FileInfo{Filename: n, Size: st.Size(), ModifiedAt: st.ModTime()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ModifiedAt.After(infos[j].ModifiedAt) })
	return infos
}
