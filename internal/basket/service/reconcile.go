package service

import (
	"context"
	"fmt"

	basketdomain "github.com/smallbiznis/labdesk/internal/basket/domain"
	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/smallbiznis/labdesk/internal/notification"
	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
	"go.uber.org/zap"
)

func (s *Service) Reconcile(ctx context.Context, graceDays int) ([]basketdomain.StatusChange, error) {
	members, err := s.activeUsers.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active users: %w", err)
	}
	exempt, err := s.exemptions.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("load exemptions: %w", err)
	}
	for name := range exempt {
		members[name] = struct{}{}
	}

	release, err := s.lockIndex(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	entries, err := s.entries(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	grace := float64(graceDays)
	changes := make([]basketdomain.StatusChange, 0)
	for _, entry := range entries {
		if entry.Available {
			continue
		}
		user := entry.User()
		_, active := members[user]
		if active == entry.Active {
			continue
		}
		days := entry.DaysAssigned(now)
		if !(days > grace) {
			continue
		}

		if err := s.sheets.UpdateCells(ctx, s.indexSheet, entry.Row, map[string]string{
			basketdomain.ColumnActive: sheetdomain.FormatBool(active),
		}); err != nil {
			return changes, err
		}
		changes = append(changes, basketdomain.StatusChange{
			BasketID: entry.BasketID,
			Row:      entry.Row,
			User:     user,
			From:     entry.Active,
			To:       active,
			Days:     days,
		})
		s.metrics.RecordStatusChange(ctx, active)
		s.log.Info(fmt.Sprintf("%s went from %s to %s", user, basketdomain.StatusLabel(entry.Active), basketdomain.StatusLabel(active)),
			zap.String("basket_id", entry.BasketID),
		)
	}

	s.log.Info("basket status reconciled",
		zap.Int("baskets", len(entries)),
		zap.Int("members", len(members)),
		zap.Int("changes", len(changes)),
	)
	return changes, nil
}

func (s *Service) PurgeCandidates(ctx context.Context) ([]basketdomain.IndexEntry, error) {
	entries, err := s.entries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]basketdomain.IndexEntry, 0)
	for _, e := range entries {
		if !e.Available && !e.Active {
			out = append(out, e)
		}
	}
	return out, nil
}

// SendPurgeWarnings mails every purge candidate once. Delivery failures are logged and
// reported but never stop the batch.
func (s *Service) SendPurgeWarnings(ctx context.Context) (basketdomain.PurgeReport, error) {
	candidates, err := s.PurgeCandidates(ctx)
	if err != nil {
		return basketdomain.PurgeReport{}, err
	}

	report := basketdomain.PurgeReport{Candidates: len(candidates)}
	for _, c := range candidates {
		url := config.ExpandURL(s.forms.PurgeCorrection, map[string]string{
			"eid":   c.EID,
			"first": c.FirstName,
			"last":  c.LastName,
		})
		err := s.notifier.Send(ctx, notification.Notification{
			To:       nonEmpty(c.Email),
			Subject:  "Inactive Basket Purge Notification",
			Template: notification.TemplateBasketPurge,
			Data: map[string]string{
				"FirstName": c.FirstName,
				"LastName":  c.LastName,
				"BasketID":  c.BasketID,
				"URL":       url,
			},
			SenderName: notification.SenderPurge,
		})
		if err != nil {
			report.Failed = append(report.Failed, c.BasketID)
			s.metrics.RecordPurgeNotice(ctx, "failed")
			s.log.Warn("purge warning not sent", zap.String("basket_id", c.BasketID), zap.Error(err))
			continue
		}
		report.Sent++
		s.metrics.RecordPurgeNotice(ctx, "sent")
	}

	s.log.Info("purge warnings sent",
		zap.Int("candidates", report.Candidates),
		zap.Int("sent", report.Sent),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
