package knowledge

import (
	"strings"
	"testing"
)

func TestSaveMetadata_CreatesCollection(t *testing.T) {
	s := NewStore(t.TempDir())

	if s.Exists("coins") {
		t.Fatal("collection should not exist yet")
	}

	meta, err := s.SaveMetadata("coins", "stablecoin reference data")
	if err != nil {
		t.Fatalf("SaveMetadata: %v", err)
	}
	if meta.Name != "coins" || meta.Description != "stablecoin reference data" {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if meta.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
	if !s.Exists("coins") {
		t.Error("collection directory not created")
	}

	got, ok, err := s.Metadata("coins")
	if err != nil || !ok {
		t.Fatalf("Metadata: ok=%v err=%v", ok, err)
	}
	if got.Description != meta.Description {
		t.Errorf("round-trip description mismatch: %q", got.Description)
	}
}

func TestSaveMetadata_UpdateKeepsCreatedAt(t *testing.T) {
	s := NewStore(t.TempDir())

	first, err := s.SaveMetadata("coins", "v1")
	if err != nil {
		t.Fatalf("SaveMetadata: %v", err)
	}
	second, err := s.SaveMetadata("coins", "v2")
	if err != nil {
		t.Fatalf("SaveMetadata update: %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created_at changed on update: %v vs %v", second.CreatedAt, first.CreatedAt)
	}
	if second.Description != "v2" {
		t.Errorf("description not updated: %q", second.Description)
	}
}

func TestStore_RejectsPathTraversal(t *testing.T) {
	s := NewStore(t.TempDir())

	for _, name := range []string{"", "..", "a/b", `a\b`} {
		if _, err := s.SaveMetadata(name, "x"); err == nil {
			t.Errorf("expected validation error for name %q", name)
		}
	}

	if _, err := s.SavePDF("coins", "../evil.pdf", strings.NewReader("x")); err == nil {
		t.Error("expected validation error for traversal filename")
	}
}

func TestSavePDF_AndListFiles(t *testing.T) {
	s := NewStore(t.TempDir())

	n, err := s.SavePDF("coins", "whitepaper.pdf", strings.NewReader("%PDF-1.4 fake"))
	if err != nil {
		t.Fatalf("SavePDF: %v", err)
	}
	if n == 0 {
		t.Error("expected non-zero size")
	}

	if _, err := s.SavePDF("coins", "notes.txt", strings.NewReader("x")); err == nil {
		t.Error("expected rejection of non-pdf upload")
	}

	pdfs, csvs, err := s.ListFiles("coins")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(pdfs) != 1 || pdfs[0].Filename != "whitepaper.pdf" {
		t.Errorf("unexpected pdfs: %+v", pdfs)
	}
	if len(csvs) != 0 {
		t.Errorf("unexpected csvs: %+v", csvs)
	}
}

func TestSaveTableCSV_FilenameVariants(t *testing.T) {
	s := NewStore(t.TempDir())

	name, err := s.SaveTableCSV("coins", "report.pdf", 3, 1, "rates",
		[]string{"coin", "rate"}, [][]string{{"USDT", "1.0"}})
	if err != nil {
		t.Fatalf("SaveTableCSV: %v", err)
	}
	if name != "report_table1_rates.csv" {
		t.Errorf("unexpected filename: %q", name)
	}

	name, err = s.SaveTableCSV("coins", "report.pdf", 3, 2, "",
		[]string{"coin"}, [][]string{{"USDC"}})
	if err != nil {
		t.Fatalf("SaveTableCSV without description: %v", err)
	}
	if name != "report_table2_page3.csv" {
		t.Errorf("unexpected filename: %q", name)
	}

	if _, err := s.SaveTableCSV("coins", "report.pdf", 1, 1, "x", []string{"c"}, nil); err == nil {
		t.Error("expected validation error for empty table data")
	}

	if _, err := s.CSVPath("coins", "report_table1_rates.csv"); err != nil {
		t.Errorf("CSVPath for stored file: %v", err)
	}
	if _, err := s.CSVPath("coins", "missing.csv"); err == nil {
		t.Error("expected not-found for missing csv")
	}
}

func TestList_CountsAndDescriptions(t *testing.T) {
	s := NewStore(t.TempDir())

	if _, err := s.SaveMetadata("chain", "on-chain data"); err != nil {
		t.Fatalf("SaveMetadata: %v", err)
	}
	if _, err := s.SavePDF("chain", "a.pdf", strings.NewReader("x")); err != nil {
		t.Fatalf("SavePDF: %v", err)
	}
	if _, err := s.SaveTableCSV("chain", "a.pdf", 1, 1, "fees",
		[]string{"tx", "fee"}, [][]string{{"t1", "0.1"}}); err != nil {
		t.Fatalf("SaveTableCSV: %v", err)
	}
	if _, err := s.SaveMetadata("coins", ""); err != nil {
		t.Fatalf("SaveMetadata: %v", err)
	}

	infos, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 collections, got %d", len(infos))
	}
	// Sorted by name: chain, coins.
	if infos[0].Name != "chain" || infos[0].PDFCount != 1 || infos[0].CSVCount != 1 {
		t.Errorf("unexpected chain info: %+v", infos[0])
	}
	if infos[0].Description != "on-chain data" {
		t.Errorf("description not surfaced in listing: %+v", infos[0])
	}
	if infos[1].Name != "coins" {
		t.Errorf("unexpected second collection: %+v", infos[1])
	}

	missing, ok, err := s.Metadata("nope")
	if err != nil || ok {
		t.Errorf("expected missing metadata, got %+v ok=%v err=%v", missing, ok, err)
	}
}
