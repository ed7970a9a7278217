package domain

import "context"

// Table is one table extracted from a PDF, row-major, before curation.
type Table struct {
	Page       int        `json:"page"`
	TableIndex int        `json:"table_index"`
	Columns    []string   `json:"columns"`
	Rows       [][]string `json:"rows"`
}

// TableExtractor is the external PDF table extraction capability. The
// service only orchestrates it; no implementation ships in this repository.
type TableExtractor interface {
	ExtractTables(ctx context.Context, pdf []byte) ([]Table, error)
}

// PageRenderer is the external PDF page rasterization capability.
type PageRenderer interface {
	RenderPage(ctx context.Context, pdf []byte, page int) ([]byte, error)
}
