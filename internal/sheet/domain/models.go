package domain

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Display formats understood by the table renderer.
const (
	FormatText     = "@"
	FormatDate     = "yyyy-MM-dd"
	FormatTime     = "HH:mm:ss"
	FormatDecimal5 = "#,##0.00000"
)

// HeaderRow is the row number of the header; data rows start right after it.
const HeaderRow = 1

type Annotation string

const (
	AnnotationNone Annotation = ""
	// AnnotationVoid renders a row struck-through, italic and grey. Display only.
	AnnotationVoid Annotation = "void"
)

// Table is a full in-memory snapshot of one sheet.
type Table struct {
	Name          string
	Headers       []string
	HeaderFormats []string
	BodyFormats   []string
	FrozenRows    int
	SortColumn    *int
	SortAscending bool
	Rows          []Row
	UpdatedAt     time.Time
}

type Row struct {
	Number     int
	Cells      []string
	Annotation Annotation
}

// HeaderIndex maps a header name to its zero-based column.
type HeaderIndex map[string]int

func NewHeaderIndex(headers []string) HeaderIndex {
	idx := make(HeaderIndex, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if _, exists := idx[h]; !exists {
			idx[h] = i
		}
	}
	return idx
}

func (h HeaderIndex) Col(name string) (int, bool) {
	col, ok := h[strings.TrimSpace(name)]
	return col, ok
}

func (t *Table) Index() HeaderIndex {
	return NewHeaderIndex(t.Headers)
}

// LastRow is the number of the last populated row, counting the header.
func (t *Table) LastRow() int {
	if len(t.Rows) == 0 {
		return HeaderRow
	}
	return t.Rows[len(t.Rows)-1].Number
}

func (t *Table) Row(number int) (*Row, bool) {
	for i := range t.Rows {
		if t.Rows[i].Number == number {
			return &t.Rows[i], true
		}
	}
	return nil, false
}

// FindRow returns the first row whose cell under header equals value after trimming.
func (t *Table) FindRow(header, value string) (*Row, bool) {
	col, ok := t.Index().Col(header)
	if !ok {
		return nil, false
	}
	value = strings.TrimSpace(value)
	for i := range t.Rows {
		if strings.TrimSpace(t.Rows[i].cell(col)) == value {
			return &t.Rows[i], true
		}
	}
	return nil, false
}

// Get reads the cell under header, empty when the header or cell is absent.
func (r Row) Get(idx HeaderIndex, header string) string {
	col, ok := idx.Col(header)
	if !ok {
		return ""
	}
	return r.cell(col)
}

// Record returns the row as header to value pairs.
func (r Row) Record(headers []string) map[string]string {
	out := make(map[string]string, len(headers))
	for i, h := range headers {
		out[h] = r.cell(i)
	}
	return out
}

func (r Row) cell(col int) string {
	if col < 0 || col >= len(r.Cells) {
		return ""
	}
	return r.Cells[col]
}

// OverwriteRequest replaces a sheet wholesale.
type OverwriteRequest struct {
	Name          string
	Headers       []string
	Rows          [][]string
	HeaderFormats []string
	BodyFormats   []string
	FrozenRows    int
}

// SheetRecord is the persisted sheet metadata.
type SheetRecord struct {
	Name          string         `gorm:"primaryKey;type:text"`
	Headers       datatypes.JSON `gorm:"type:jsonb;not null"`
	HeaderFormats datatypes.JSON `gorm:"type:jsonb"`
	BodyFormats   datatypes.JSON `gorm:"type:jsonb"`
	FrozenRows    int            `gorm:"not null;default:0"`
	SortColumn    *int
	SortAscending bool      `gorm:"not null;default:true"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (SheetRecord) TableName() string { return "sheets" }

// RowRecord is one persisted data row.
type RowRecord struct {
	SheetName  string         `gorm:"primaryKey;type:text"`
	RowNumber  int            `gorm:"column:row_no;primaryKey;autoIncrement:false"`
	Cells      datatypes.JSON `gorm:"type:jsonb;not null"`
	Annotation string         `gorm:"type:text;not null;default:''"`
	UpdatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (RowRecord) TableName() string { return "sheet_rows" }
