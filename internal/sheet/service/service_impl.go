package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/smallbiznis/labdesk/internal/clock"
	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
	"github.com/smallbiznis/labdesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  sheetdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  sheetdomain.Repository
}

func New(p Params) sheetdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("sheet.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) GetTable(ctx context.Context, name string) (*sheetdomain.Table, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, sheetdomain.ErrInvalidName
	}
	return s.load(ctx, s.db, name)
}

func (s *Service) EnsureTable(ctx context.Context, name string, headers []string) (*sheetdomain.Table, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, sheetdomain.ErrInvalidName
	}
	if len(headers) == 0 {
		return nil, sheetdomain.ErrInvalidHeaders
	}

	existing, err := s.repo.FindSheet(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		now := s.clock.Now()
		if err := s.repo.UpsertSheet(ctx, s.db, &sheetdomain.SheetRecord{
			Name:          name,
			Headers:       mustJSON(headers),
			HeaderFormats: mustJSON(textFormats(len(headers))),
			BodyFormats:   mustJSON([]string{}),
			FrozenRows:    1,
			SortAscending: true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}); err != nil {
			return nil, err
		}
		s.log.Info("sheet created", zap.String("sheet", name), zap.Int("columns", len(headers)))
	}
	return s.load(ctx, s.db, name)
}

// OverwriteTable clears the sheet and writes headers, rows and formats in one transaction.
func (s *Service) OverwriteTable(ctx context.Context, req sheetdomain.OverwriteRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return sheetdomain.ErrInvalidName
	}
	if len(req.Headers) == 0 {
		return sheetdomain.ErrInvalidHeaders
	}

	headerFormats := req.HeaderFormats
	if len(headerFormats) == 0 {
		headerFormats = textFormats(len(req.Headers))
	}
	bodyFormats := req.BodyFormats
	if bodyFormats == nil {
		bodyFormats = []string{}
	}

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpsertSheet(ctx, tx, &sheetdomain.SheetRecord{
			Name:          name,
			Headers:       mustJSON(req.Headers),
			HeaderFormats: mustJSON(headerFormats),
			BodyFormats:   mustJSON(bodyFormats),
			FrozenRows:    req.FrozenRows,
			SortColumn:    nil,
			SortAscending: true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}); err != nil {
			return err
		}
		if err := s.repo.DeleteRows(ctx, tx, name); err != nil {
			return err
		}

		records := make([]sheetdomain.RowRecord, 0, len(req.Rows))
		for i, cells := range req.Rows {
			records = append(records, sheetdomain.RowRecord{
				SheetName: name,
				RowNumber: sheetdomain.HeaderRow + 1 + i,
				Cells:     mustJSON(fitCells(cells, len(req.Headers))),
				UpdatedAt: now,
			})
		}
		if err := s.repo.InsertRows(ctx, tx, records); err != nil {
			return err
		}

		s.log.Debug("sheet overwritten", zap.String("sheet", name), zap.Int("rows", len(records)))
		return nil
	})
}

// appendAttempts bounds retries when a concurrent writer takes the next row number first.
const appendAttempts = 3

func (s *Service) AppendRow(ctx context.Context, name string, cells []string) (int, error) {
	var (
		number int
		err    error
	)
	for attempt := 1; attempt <= appendAttempts; attempt++ {
		number, err = s.appendRow(ctx, name, cells)
		if err == nil || !db.IsDuplicateKeyErr(err) {
			break
		}
		s.log.Debug("row number taken, retrying append", zap.String("sheet", name), zap.Int("attempt", attempt))
	}
	if err != nil {
		return 0, err
	}
	return number, nil
}

func (s *Service) appendRow(ctx context.Context, name string, cells []string) (int, error) {
	var number int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sheet, err := s.requireSheet(ctx, tx, name)
		if err != nil {
			return err
		}
		headers := decodeStrings(sheet.Headers)

		last, err := s.repo.MaxRowNumber(ctx, tx, sheet.Name)
		if err != nil {
			return err
		}
		number = last + 1
		return s.repo.InsertRows(ctx, tx, []sheetdomain.RowRecord{{
			SheetName: sheet.Name,
			RowNumber: number,
			Cells:     mustJSON(fitCells(cells, len(headers))),
			UpdatedAt: s.clock.Now(),
		}})
	})
	return number, err
}

// AppendRecord appends a row built from header to value pairs; unknown headers are ignored.
func (s *Service) AppendRecord(ctx context.Context, name string, values map[string]string) (int, error) {
	sheet, err := s.requireSheet(ctx, s.db, name)
	if err != nil {
		return 0, err
	}
	idx := sheetdomain.NewHeaderIndex(decodeStrings(sheet.Headers))
	cells := make([]string, len(idx))
	for header, value := range values {
		if col, ok := idx.Col(header); ok && col < len(cells) {
			cells[col] = value
		}
	}
	return s.AppendRow(ctx, sheet.Name, cells)
}

func (s *Service) UpdateRow(ctx context.Context, name string, number int, cells []string) error {
	sheet, err := s.requireSheet(ctx, s.db, name)
	if err != nil {
		return err
	}
	if number <= sheetdomain.HeaderRow {
		return sheetdomain.ErrRowOutOfRange
	}
	headers := decodeStrings(sheet.Headers)

	affected, err := s.repo.UpdateRow(ctx, s.db, &sheetdomain.RowRecord{
		SheetName: sheet.Name,
		RowNumber: number,
		Cells:     mustJSON(fitCells(cells, len(headers))),
		UpdatedAt: s.clock.Now(),
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return sheetdomain.ErrRowOutOfRange
	}
	return nil
}

// UpdateCells rewrites the named cells of one row and leaves the others untouched.
func (s *Service) UpdateCells(ctx context.Context, name string, number int, values map[string]string) error {
	table, err := s.GetTable(ctx, name)
	if err != nil {
		return err
	}
	row, ok := table.Row(number)
	if !ok {
		return sheetdomain.ErrRowOutOfRange
	}

	idx := table.Index()
	cells := fitCells(row.Cells, len(table.Headers))
	for header, value := range values {
		col, ok := idx.Col(header)
		if !ok {
			return fmt.Errorf("%w: %s", sheetdomain.ErrUnknownColumn, header)
		}
		cells[col] = value
	}
	return s.UpdateRow(ctx, table.Name, number, cells)
}

func (s *Service) AnnotateRow(ctx context.Context, name string, number int, annotation sheetdomain.Annotation) error {
	sheet, err := s.requireSheet(ctx, s.db, name)
	if err != nil {
		return err
	}
	affected, err := s.repo.UpdateAnnotation(ctx, s.db, sheet.Name, number, string(annotation))
	if err != nil {
		return err
	}
	if affected == 0 {
		return sheetdomain.ErrRowOutOfRange
	}
	return nil
}

// SortByColumn reorders data rows by the given zero-based column and renumbers them.
// Ties keep their previous relative order.
func (s *Service) SortByColumn(ctx context.Context, name string, column int, ascending bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sheet, err := s.requireSheet(ctx, tx, name)
		if err != nil {
			return err
		}
		headers := decodeStrings(sheet.Headers)
		if column < 0 || column >= len(headers) {
			return fmt.Errorf("%w: column %d", sheetdomain.ErrUnknownColumn, column)
		}

		records, err := s.repo.ListRows(ctx, tx, sheet.Name)
		if err != nil {
			return err
		}
		keys := make([]string, len(records))
		for i := range records {
			cells := decodeStrings(records[i].Cells)
			if column < len(cells) {
				keys[i] = cells[column]
			}
		}
		order := make([]int, len(records))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			if ascending {
				return keys[order[a]] < keys[order[b]]
			}
			return keys[order[a]] > keys[order[b]]
		})

		sorted := make([]sheetdomain.RowRecord, 0, len(records))
		for i, from := range order {
			rec := records[from]
			rec.RowNumber = sheetdomain.HeaderRow + 1 + i
			sorted = append(sorted, rec)
		}
		if err := s.repo.DeleteRows(ctx, tx, sheet.Name); err != nil {
			return err
		}
		if err := s.repo.InsertRows(ctx, tx, sorted); err != nil {
			return err
		}

		col := column
		sheet.SortColumn = &col
		sheet.SortAscending = ascending
		sheet.UpdatedAt = s.clock.Now()
		return s.repo.UpsertSheet(ctx, tx, sheet)
	})
}

func (s *Service) requireSheet(ctx context.Context, db *gorm.DB, name string) (*sheetdomain.SheetRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, sheetdomain.ErrInvalidName
	}
	sheet, err := s.repo.FindSheet(ctx, db, name)
	if err != nil {
		return nil, err
	}
	if sheet == nil {
		return nil, fmt.Errorf("%w: %s", sheetdomain.ErrTableNotFound, name)
	}
	return sheet, nil
}

func (s *Service) load(ctx context.Context, db *gorm.DB, name string) (*sheetdomain.Table, error) {
	sheet, err := s.requireSheet(ctx, db, name)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.ListRows(ctx, db, sheet.Name)
	if err != nil {
		return nil, err
	}

	headers := decodeStrings(sheet.Headers)
	table := &sheetdomain.Table{
		Name:          sheet.Name,
		Headers:       headers,
		HeaderFormats: decodeStrings(sheet.HeaderFormats),
		BodyFormats:   decodeStrings(sheet.BodyFormats),
		FrozenRows:    sheet.FrozenRows,
		SortColumn:    sheet.SortColumn,
		SortAscending: sheet.SortAscending,
		UpdatedAt:     sheet.UpdatedAt,
		Rows:          make([]sheetdomain.Row, 0, len(records)),
	}
	for _, rec := range records {
		table.Rows = append(table.Rows, sheetdomain.Row{
			Number:     rec.RowNumber,
			Cells:      fitCells(decodeStrings(rec.Cells), len(headers)),
			Annotation: sheetdomain.Annotation(rec.Annotation),
		})
	}
	return table, nil
}

func fitCells(cells []string, width int) []string {
	out := make([]string, width)
	copy(out, cells)
	return out
}

func textFormats(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = sheetdomain.FormatText
	}
	return out
}

func mustJSON(v []string) datatypes.JSON {
	if v == nil {
		v = []string{}
	}
	raw, _ := json.Marshal(v)
	return datatypes.JSON(raw)
}

func decodeStrings(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
