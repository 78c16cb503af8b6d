package service

import (
	"context"
	"fmt"
	"strings"

	badgedomain "github.com/smallbiznis/labdesk/internal/badge/domain"
	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/smallbiznis/labdesk/internal/input"
	"github.com/smallbiznis/labdesk/internal/providers/pdf"
	registrationdomain "github.com/smallbiznis/labdesk/internal/registration/domain"
	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Sheets sheetdomain.Service
	PDF    pdf.Provider
}

type Service struct {
	sheet  string
	log    *zap.Logger
	sheets sheetdomain.Service
	pdf    pdf.Provider
}

func New(p Params) badgedomain.Service {
	return &Service{
		sheet:  p.Config.Sheets.Registration,
		log:    p.Log.Named("badge.service"),
		sheets: p.Sheets,
		pdf:    p.PDF,
	}
}

func (s *Service) RowsForEIDs(ctx context.Context, eids []string) ([]int, error) {
	table, err := s.sheets.GetTable(ctx, s.sheet)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(eids))
	for _, eid := range eids {
		if eid = strings.TrimSpace(eid); eid != "" {
			wanted[eid] = struct{}{}
		}
	}

	idx := table.Index()
	rows := make([]int, 0)
	for _, row := range table.Rows {
		if _, ok := wanted[strings.TrimSpace(row.Get(idx, sheetdomain.ColumnEID))]; ok {
			rows = append(rows, row.Number)
		}
	}
	return rows, nil
}

func (s *Service) ParseRows(ctx context.Context, text string) ([]int, error) {
	table, err := s.sheets.GetTable(ctx, s.sheet)
	if err != nil {
		return nil, err
	}
	return input.ParseRowNumbers(text, input.Bounds{Min: sheetdomain.HeaderRow + 1, Max: table.LastRow()})
}

func (s *Service) Badges(ctx context.Context, rows []int) ([]badgedomain.Badge, error) {
	table, err := s.sheets.GetTable(ctx, s.sheet)
	if err != nil {
		return nil, err
	}
	idx := table.Index()

	badges := make([]badgedomain.Badge, 0, len(rows)+badgedomain.PerRow)
	for _, n := range rows {
		row, ok := table.Row(n)
		if !ok {
			return nil, fmt.Errorf("%w: %d", sheetdomain.ErrRowOutOfRange, n)
		}
		r := registrationdomain.RegistrantFromRow(idx, *row)
		contact := registrationdomain.Contact{
			FirstName: r.FirstName,
			LastName:  r.LastName,
			Phone:     r.Phone,
			Email:     r.Email,
			EID:       r.EID,
		}
		badges = append(badges, badgedomain.Badge{Name: contact.Name(), VCard: contact.VCard()})
	}
	return badgedomain.Pad(badges), nil
}

func (s *Service) Sheet(ctx context.Context, rows []int) ([]byte, error) {
	if len(rows) == 0 {
		return nil, badgedomain.ErrNoBadges
	}
	badges, err := s.Badges(ctx, rows)
	if err != nil {
		return nil, err
	}
	cells := make([]pdf.Badge, 0, len(badges))
	for _, b := range badges {
		cells = append(cells, pdf.Badge{Name: b.Name, VCard: b.VCard})
	}
	doc, err := s.pdf.BadgeSheet(ctx, cells)
	if err != nil {
		return nil, fmt.Errorf("render badge sheet: %w", err)
	}
	s.log.Info("badge sheet rendered", zap.Int("badges", len(rows)))
	return doc, nil
}
