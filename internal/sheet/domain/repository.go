package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindSheet(ctx context.Context, db *gorm.DB, name string) (*SheetRecord, error)
	UpsertSheet(ctx context.Context, db *gorm.DB, sheet *SheetRecord) error
	ListRows(ctx context.Context, db *gorm.DB, name string) ([]RowRecord, error)
	DeleteRows(ctx context.Context, db *gorm.DB, name string) error
	InsertRows(ctx context.Context, db *gorm.DB, rows []RowRecord) error
	UpdateRow(ctx context.Context, db *gorm.DB, row *RowRecord) (int64, error)
	UpdateAnnotation(ctx context.Context, db *gorm.DB, name string, number int, annotation string) (int64, error)
	MaxRowNumber(ctx context.Context, db *gorm.DB, name string) (int, error)
}
