// Package sheettest opens an isolated in-memory tabular store for tests.
package sheettest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/labdesk/internal/clock"
	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
	"github.com/smallbiznis/labdesk/internal/sheet/repository"
	"github.com/smallbiznis/labdesk/internal/sheet/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// OpenDB returns a private in-memory sqlite database with the sheet schema and any extra models migrated.
func OpenDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_loc=auto", name, dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	all := append([]any{&sheetdomain.SheetRecord{}, &sheetdomain.RowRecord{}}, models...)
	if err := db.AutoMigrate(all...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// New returns a sheet service over a fresh database, driven by clk.
func New(t *testing.T, clk clock.Clock, models ...any) (sheetdomain.Service, *gorm.DB) {
	t.Helper()

	if clk == nil {
		clk = clock.NewFakeClock(time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC))
	}
	db := OpenDB(t, models...)
	svc := service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return svc, db
}

// Seed creates a sheet with headers and rows, failing the test on error.
func Seed(t *testing.T, svc sheetdomain.Service, name string, headers []string, rows ...[]string) {
	t.Helper()

	err := svc.OverwriteTable(t.Context(), sheetdomain.OverwriteRequest{
		Name:       name,
		Headers:    headers,
		Rows:       rows,
		FrozenRows: 1,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
}
