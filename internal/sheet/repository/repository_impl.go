package repository

import (
	"context"

	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() sheetdomain.Repository {
	return &repo{}
}

func (r *repo) FindSheet(ctx context.Context, db *gorm.DB, name string) (*sheetdomain.SheetRecord, error) {
	var sheet sheetdomain.SheetRecord
	err := db.WithContext(ctx).Raw(
		`SELECT name, headers, header_formats, body_formats, frozen_rows, sort_column, sort_ascending, created_at, updated_at
		 FROM sheets WHERE name = ?`,
		name,
	).Scan(&sheet).Error
	if err != nil {
		return nil, err
	}
	if sheet.Name == "" {
		return nil, nil
	}
	return &sheet, nil
}

func (r *repo) UpsertSheet(ctx context.Context, db *gorm.DB, sheet *sheetdomain.SheetRecord) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"headers", "header_formats", "body_formats", "frozen_rows", "sort_column", "sort_ascending", "updated_at",
		}),
	}).Create(sheet).Error
}

func (r *repo) ListRows(ctx context.Context, db *gorm.DB, name string) ([]sheetdomain.RowRecord, error) {
	var rows []sheetdomain.RowRecord
	err := db.WithContext(ctx).Raw(
		`SELECT sheet_name, row_no, cells, annotation, updated_at
		 FROM sheet_rows WHERE sheet_name = ?
		 ORDER BY row_no ASC`,
		name,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) DeleteRows(ctx context.Context, db *gorm.DB, name string) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM sheet_rows WHERE sheet_name = ?`,
		name,
	).Error
}

func (r *repo) InsertRows(ctx context.Context, db *gorm.DB, rows []sheetdomain.RowRecord) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(rows, 200).Error
}

func (r *repo) UpdateRow(ctx context.Context, db *gorm.DB, row *sheetdomain.RowRecord) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE sheet_rows
		 SET cells = ?, updated_at = ?
		 WHERE sheet_name = ? AND row_no = ?`,
		row.Cells,
		row.UpdatedAt,
		row.SheetName,
		row.RowNumber,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) UpdateAnnotation(ctx context.Context, db *gorm.DB, name string, number int, annotation string) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE sheet_rows SET annotation = ? WHERE sheet_name = ? AND row_no = ?`,
		annotation,
		name,
		number,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) MaxRowNumber(ctx context.Context, db *gorm.DB, name string) (int, error) {
	var max *int
	err := db.WithContext(ctx).Raw(
		`SELECT MAX(row_no) FROM sheet_rows WHERE sheet_name = ?`,
		name,
	).Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return sheetdomain.HeaderRow, nil
	}
	return *max, nil
}
