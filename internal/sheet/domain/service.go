package domain

import (
	"context"
	"errors"
)

// Service is the tabular store: named sheets of string cells addressed by 1-based row numbers.
type Service interface {
	GetTable(ctx context.Context, name string) (*Table, error)
	EnsureTable(ctx context.Context, name string, headers []string) (*Table, error)
	OverwriteTable(ctx context.Context, req OverwriteRequest) error
	AppendRow(ctx context.Context, name string, cells []string) (int, error)
	AppendRecord(ctx context.Context, name string, values map[string]string) (int, error)
	UpdateRow(ctx context.Context, name string, number int, cells []string) error
	UpdateCells(ctx context.Context, name string, number int, values map[string]string) error
	AnnotateRow(ctx context.Context, name string, number int, annotation Annotation) error
	SortByColumn(ctx context.Context, name string, column int, ascending bool) error
}

var (
	ErrTableNotFound  = errors.New("table_not_found")
	ErrInvalidName    = errors.New("invalid_table_name")
	ErrInvalidHeaders = errors.New("invalid_headers")
	ErrRowOutOfRange  = errors.New("row_out_of_range")
	ErrUnknownColumn  = errors.New("unknown_column")
)
