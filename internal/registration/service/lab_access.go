package service

import (
	"context"
	"fmt"

	calendardomain "github.com/smallbiznis/labdesk/internal/calendar/domain"
	"github.com/smallbiznis/labdesk/internal/notification"
	registrationdomain "github.com/smallbiznis/labdesk/internal/registration/domain"
	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
	"github.com/smallbiznis/labdesk/internal/storage"
	"go.uber.org/zap"
)

// RequestLabAccess posts the lab access form when an external form is configured.
// Otherwise the request is recorded in the Lab Access sheet and processed in place.
func (s *Service) RequestLabAccess(ctx context.Context, r registrationdomain.Registrant) error {
	req := r.LabAccessRequest()
	if s.forms.LabAccess != "" {
		err := s.submitter.Submit(ctx, s.forms.LabAccess, map[string]string{
			"first":      req.FirstName,
			"last":       req.LastName,
			"eid":        req.EID,
			"phone":      req.Phone,
			"email":      req.Email,
			"supervisor": req.Supervisor,
		})
		if err != nil {
			return fmt.Errorf("submit lab access form: %w", err)
		}
		s.log.Info("lab access form submitted", zap.String("eid", req.EID))
		return nil
	}

	if _, err := s.store.EnsureTable(ctx, s.sheets.LabAccess, registrationdomain.LabAccessHeaders); err != nil {
		return err
	}
	req.Timestamp = sheetdomain.FormatTimestamp(s.clock.Now().In(s.loc))
	row, err := s.store.AppendRecord(ctx, s.sheets.LabAccess, req.Record())
	if err != nil {
		return fmt.Errorf("record lab access request: %w", err)
	}
	req.Row = row
	_, err = s.ProcessLabAccess(ctx, req)
	return err
}

func (s *Service) RequestLabAccessRows(ctx context.Context, rows []int) (registrationdomain.EmailReport, error) {
	registrants, err := s.registrants(ctx, rows)
	if err != nil {
		return registrationdomain.EmailReport{}, err
	}
	var report registrationdomain.EmailReport
	for _, r := range registrants {
		if err := s.RequestLabAccess(ctx, r); err != nil {
			s.log.Warn("lab access request failed", zap.String("eid", r.EID), zap.Error(err))
			report.Failed = append(report.Failed, r.EID)
			continue
		}
		report.Sent++
	}
	return report, nil
}

func (s *Service) ProcessLabAccess(ctx context.Context, req registrationdomain.LabAccessRequest) (registrationdomain.LabAccessResult, error) {
	var result registrationdomain.LabAccessResult
	warn := func(step string, err error) {
		s.log.Warn("lab access step failed", zap.String("step", step), zap.String("eid", req.EID), zap.Error(err))
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", step, err))
	}
	data := req.TemplateData()

	description, err := s.notifier.Renderer().Text(notification.TemplateLabAccessEvent, data)
	if err != nil {
		warn("event description", err)
	}
	start := registrationdomain.NextBusinessDay(s.clock.Now().In(s.loc))
	event, err := s.calendar.Create(ctx, calendardomain.CreateEventRequest{
		Title:           "Lab Access: Create Account | User: " + req.Name(),
		Description:     description,
		Start:           start,
		End:             start.Add(registrationdomain.TaskDuration),
		Color:           calendardomain.ColorGray,
		ReminderMinutes: registrationdomain.TaskReminderMinutes,
	})
	if err != nil {
		warn("calendar event", err)
	} else {
		result.EventID = event.ID.String()
	}

	if s.contacts.LabAccessTextTo != "" {
		err := s.notifier.Send(ctx, notification.Notification{
			To:         []string{s.contacts.LabAccessTextTo},
			Subject:    "New User Setup",
			Template:   notification.TemplateLabAccessText,
			Data:       data,
			SenderName: notification.SenderSetup,
		})
		if err != nil {
			warn("setup text", err)
		}
	}

	err = s.notifier.Send(ctx, notification.Notification{
		To:         nonEmpty(req.Email),
		Subject:    fmt.Sprintf("Lab Access & Sedona Account Info | %s | %s", req.Name(), req.EID),
		Template:   notification.TemplateLabAccessConfirmation,
		Data:       data,
		SenderName: notification.SenderLabAccess,
	})
	if err != nil {
		warn("confirmation email", err)
	}

	contact := registrationdomain.Contact{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Email:     req.Email,
		EID:       req.EID,
	}
	key := storage.Join(registrationdomain.VCardPrefix, fmt.Sprintf("%s - %s.vcf", req.EID, req.Name()))
	if err := s.bucket.Put(ctx, key, []byte(contact.VCard()), "text/vcard"); err != nil {
		warn("vcard", err)
	} else {
		result.VCardKey = key
	}

	s.log.Info("lab access request processed", zap.String("eid", req.EID), zap.Int("warnings", len(result.Warnings)))
	return result, nil
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
