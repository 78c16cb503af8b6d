package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	activeuserdomain "github.com/smallbiznis/labdesk/internal/activeuser/domain"
	basketdomain "github.com/smallbiznis/labdesk/internal/basket/domain"
	"github.com/smallbiznis/labdesk/internal/clock"
	"github.com/smallbiznis/labdesk/internal/config"
	exemptiondomain "github.com/smallbiznis/labdesk/internal/exemption/domain"
	"github.com/smallbiznis/labdesk/internal/lock"
	"github.com/smallbiznis/labdesk/internal/notification"
	"github.com/smallbiznis/labdesk/internal/observability/metrics"
	"github.com/smallbiznis/labdesk/internal/providers/pdf"
	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
	"github.com/smallbiznis/labdesk/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config      config.Config
	Log         *zap.Logger
	Clock       clock.Clock
	Locker      lock.Locker
	Sheets      sheetdomain.Service
	ActiveUsers activeuserdomain.Service
	Exemptions  exemptiondomain.Service
	Notifier    *notification.Notifier
	PDF         pdf.Provider
	Bucket      storage.Bucket
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	indexSheet        string
	registrationSheet string
	guideKey          string
	forms             config.FormLinks

	log         *zap.Logger
	clock       clock.Clock
	locker      lock.Locker
	sheets      sheetdomain.Service
	activeUsers activeuserdomain.Service
	exemptions  exemptiondomain.Service
	notifier    *notification.Notifier
	pdf         pdf.Provider
	bucket      storage.Bucket
	metrics     *metrics.Metrics
}

func New(p Params) basketdomain.Service {
	return &Service{
		indexSheet:        p.Config.Sheets.BasketIndex,
		registrationSheet: p.Config.Sheets.BasketRegistration,
		guideKey:          p.Config.Storage.GuideKey,
		forms:             p.Config.Forms,
		log:               p.Log.Named("basket.service"),
		clock:             p.Clock,
		locker:            p.Locker,
		sheets:            p.Sheets,
		activeUsers:       p.ActiveUsers,
		exemptions:        p.Exemptions,
		notifier:          p.Notifier,
		pdf:               p.PDF,
		bucket:            p.Bucket,
		metrics:           p.Metrics,
	}
}

func (s *Service) lockIndex(ctx context.Context) (func(), error) {
	return s.locker.Acquire(ctx, "sheet:"+s.indexSheet)
}

func (s *Service) entries(ctx context.Context) ([]basketdomain.IndexEntry, error) {
	table, err := s.sheets.GetTable(ctx, s.indexSheet)
	if err != nil {
		return nil, err
	}
	idx := table.Index()
	out := make([]basketdomain.IndexEntry, 0, len(table.Rows))
	for _, row := range table.Rows {
		out = append(out, basketdomain.EntryFromRow(idx, row))
	}
	return out, nil
}

func findByID(entries []basketdomain.IndexEntry, id string) (basketdomain.IndexEntry, bool) {
	id = strings.TrimSpace(id)
	for _, e := range entries {
		if e.BasketID == id {
			return e, true
		}
	}
	return basketdomain.IndexEntry{}, false
}

func (s *Service) Assign(ctx context.Context, req basketdomain.AssignRequest) (basketdomain.AssignmentResult, error) {
	if strings.TrimSpace(req.FirstName) == "" && strings.TrimSpace(req.LastName) == "" && strings.TrimSpace(req.EID) == "" {
		return basketdomain.AssignmentResult{}, basketdomain.ErrInvalidRequester
	}
	assignedAt, err := s.assignedAt(req.Timestamp)
	if err != nil {
		return basketdomain.AssignmentResult{}, err
	}
	req.Timestamp = assignedAt

	release, err := s.lockIndex(ctx)
	if err != nil {
		return basketdomain.AssignmentResult{}, err
	}
	defer release()

	entries, err := s.entries(ctx)
	if err != nil {
		return basketdomain.AssignmentResult{}, err
	}

	if existing := strings.TrimSpace(req.ExistingBasketID); basketdomain.ValidID(existing) {
		entry, ok := findByID(entries, existing)
		if !ok {
			s.metrics.RecordBasketAssignment(ctx, req.Zone, "not_found")
			return basketdomain.AssignmentResult{}, fmt.Errorf("%w: %s", basketdomain.ErrNotFound, existing)
		}
		if err := s.sheets.UpdateCells(ctx, s.indexSheet, entry.Row, req.ReassignCells()); err != nil {
			return basketdomain.AssignmentResult{}, err
		}
		s.log.Info("basket reassigned",
			zap.String("basket_id", entry.BasketID),
			zap.String("user", req.User()),
		)
		s.metrics.RecordBasketAssignment(ctx, entry.Zone, "reassigned")
		return basketdomain.AssignmentResult{
			BasketID:   entry.BasketID,
			Zone:       entry.Zone,
			Row:        entry.Row,
			Reassigned: true,
		}, nil
	}

	zone := strings.TrimSpace(req.Zone)
	if zone == "" {
		return basketdomain.AssignmentResult{}, basketdomain.ErrInvalidZone
	}

	for _, entry := range entries {
		if entry.Zone != zone || !entry.Available {
			continue
		}
		if err := s.sheets.UpdateCells(ctx, s.indexSheet, entry.Row, req.AssignCells()); err != nil {
			return basketdomain.AssignmentResult{}, err
		}
		result := basketdomain.AssignmentResult{BasketID: entry.BasketID, Zone: zone, Row: entry.Row}
		s.log.Info("basket assigned",
			zap.String("basket_id", entry.BasketID),
			zap.String("zone", zone),
			zap.String("user", req.User()),
		)
		s.metrics.RecordBasketAssignment(ctx, zone, "assigned")

		if req.RecordRow != nil {
			err := s.sheets.UpdateCells(ctx, s.registrationSheet, *req.RecordRow, map[string]string{
				sheetdomain.ColumnBasketID: entry.BasketID,
			})
			if err != nil {
				s.log.Warn("registration row not linked",
					zap.String("basket_id", entry.BasketID),
					zap.Int("record_row", *req.RecordRow),
					zap.Error(err),
				)
				result.Warnings = append(result.Warnings, fmt.Sprintf("link registration row %d: %v", *req.RecordRow, err))
			}
		}
		return result, nil
	}

	s.log.Info("no basket available", zap.String("zone", zone), zap.String("user", req.User()))
	s.metrics.RecordBasketAssignment(ctx, zone, "unavailable")
	return basketdomain.AssignmentResult{Zone: zone}, nil
}

// assignedAt normalises the requester's timestamp. Empty means now; unreadable
// or future values are rejected since they would skew the grace period.
func (s *Service) assignedAt(raw string) (string, error) {
	now := s.clock.Now()
	if strings.TrimSpace(raw) == "" {
		return sheetdomain.FormatTimestamp(now), nil
	}
	at, ok := sheetdomain.ParseTimestamp(raw, now.Location())
	if !ok {
		return "", fmt.Errorf("%w: %q", basketdomain.ErrInvalidTimestamp, raw)
	}
	if at.After(now) {
		return "", fmt.Errorf("%w: %q is in the future", basketdomain.ErrInvalidTimestamp, raw)
	}
	return sheetdomain.FormatTimestamp(at), nil
}

func (s *Service) Return(ctx context.Context, ids ...string) (basketdomain.ReturnResult, error) {
	release, err := s.lockIndex(ctx)
	if err != nil {
		return basketdomain.ReturnResult{}, err
	}
	defer release()

	entries, err := s.entries(ctx)
	if err != nil {
		return basketdomain.ReturnResult{}, err
	}

	var (
		result basketdomain.ReturnResult
		errs   []error
	)
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		entry, ok := findByID(entries, id)
		if !ok {
			result.Failed = append(result.Failed, id)
			errs = append(errs, fmt.Errorf("%w: %s", basketdomain.ErrNotFound, id))
			s.metrics.RecordBasketReturn(ctx, "not_found")
			continue
		}

		if err := s.sheets.UpdateCells(ctx, s.indexSheet, entry.Row, basketdomain.ReturnedCells()); err != nil {
			result.Failed = append(result.Failed, id)
			errs = append(errs, fmt.Errorf("return %s: %w", id, err))
			s.metrics.RecordBasketReturn(ctx, "error")
			continue
		}
		result.Returned = append(result.Returned, id)
		s.metrics.RecordBasketReturn(ctx, "returned")
		s.log.Info("basket returned", zap.String("basket_id", id), zap.String("user", entry.User()))

		if entry.RecordRow == nil {
			continue
		}
		if err := s.sheets.AnnotateRow(ctx, s.registrationSheet, *entry.RecordRow, sheetdomain.AnnotationVoid); err != nil {
			errs = append(errs, fmt.Errorf("void registration row %d for %s: %w", *entry.RecordRow, id, err))
			continue
		}
		result.Voided = append(result.Voided, *entry.RecordRow)
	}

	return result, errors.Join(errs...)
}

func (s *Service) ReturnRows(ctx context.Context, rows []int) (basketdomain.ReturnResult, error) {
	table, err := s.sheets.GetTable(ctx, s.indexSheet)
	if err != nil {
		return basketdomain.ReturnResult{}, err
	}
	idx := table.Index()
	ids := make([]string, 0, len(rows))
	for _, n := range rows {
		row, ok := table.Row(n)
		if !ok {
			return basketdomain.ReturnResult{}, fmt.Errorf("%w: %d", sheetdomain.ErrRowOutOfRange, n)
		}
		ids = append(ids, basketdomain.EntryFromRow(idx, *row).BasketID)
	}
	return s.Return(ctx, ids...)
}

func (s *Service) Lookup(ctx context.Context, id string) (*basketdomain.IndexEntry, error) {
	if !basketdomain.ValidID(id) {
		return nil, basketdomain.ErrInvalidBasketID
	}
	entries, err := s.entries(ctx)
	if err != nil {
		return nil, err
	}
	entry, ok := findByID(entries, id)
	if !ok {
		return nil, basketdomain.ErrNotFound
	}
	return &entry, nil
}

func (s *Service) List(ctx context.Context) ([]basketdomain.IndexEntry, error) {
	return s.entries(ctx)
}

func (s *Service) Seed(ctx context.Context, seeds []config.BasketSeed) (int, error) {
	release, err := s.lockIndex(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	table, err := s.sheets.EnsureTable(ctx, s.indexSheet, basketdomain.IndexHeaders)
	if err != nil {
		return 0, err
	}
	if len(table.Rows) > 0 {
		return 0, nil
	}

	added := 0
	for _, seed := range seeds {
		id := strings.TrimSpace(seed.ID)
		if !basketdomain.ValidID(id) {
			return added, fmt.Errorf("%w: %q", basketdomain.ErrInvalidBasketID, seed.ID)
		}
		_, err := s.sheets.AppendRecord(ctx, s.indexSheet, map[string]string{
			sheetdomain.ColumnBasketID:   id,
			sheetdomain.ColumnCleanroom:  strings.TrimSpace(seed.Zone),
			basketdomain.ColumnAvailable: sheetdomain.FormatBool(true),
			basketdomain.ColumnActive:    sheetdomain.FormatBool(false),
		})
		if err != nil {
			return added, err
		}
		added++
	}
	if added > 0 {
		s.log.Info("basket index seeded", zap.Int("baskets", added))
	}
	return added, nil
}
