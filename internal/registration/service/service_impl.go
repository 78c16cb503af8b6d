package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	calendardomain "github.com/smallbiznis/labdesk/internal/calendar/domain"
	"github.com/smallbiznis/labdesk/internal/clock"
	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/smallbiznis/labdesk/internal/notification"
	"github.com/smallbiznis/labdesk/internal/providers/email"
	"github.com/smallbiznis/labdesk/internal/providers/pdf"
	"github.com/smallbiznis/labdesk/internal/providers/webform"
	registrationdomain "github.com/smallbiznis/labdesk/internal/registration/domain"
	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
	"github.com/smallbiznis/labdesk/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config    config.Config
	Log       *zap.Logger
	Clock     clock.Clock
	Sheets    sheetdomain.Service
	Calendar  calendardomain.Service
	Notifier  *notification.Notifier
	PDF       pdf.Provider
	Bucket    storage.Bucket
	Submitter webform.Submitter
}

type Service struct {
	sheets    config.SheetNames
	forms     config.FormLinks
	contacts  config.ContactConfig
	loc       *time.Location
	log       *zap.Logger
	clock     clock.Clock
	store     sheetdomain.Service
	calendar  calendardomain.Service
	notifier  *notification.Notifier
	pdf       pdf.Provider
	bucket    storage.Bucket
	submitter webform.Submitter
}

func New(p Params) registrationdomain.Service {
	return &Service{
		sheets:    p.Config.Sheets,
		forms:     p.Config.Forms,
		contacts:  p.Config.Contacts,
		loc:       p.Config.Calendar.Location(),
		log:       p.Log.Named("registration.service"),
		clock:     p.Clock,
		store:     p.Sheets,
		calendar:  p.Calendar,
		notifier:  p.Notifier,
		pdf:       p.PDF,
		bucket:    p.Bucket,
		submitter: p.Submitter,
	}
}

func (s *Service) ProcessRegistration(ctx context.Context, r registrationdomain.Registrant) (registrationdomain.BuildingAccessResult, error) {
	var result registrationdomain.BuildingAccessResult
	warn := func(step string, err error) {
		s.log.Warn("building access step failed", zap.String("step", step), zap.String("eid", r.EID), zap.Error(err))
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", step, err))
	}

	if r.CreateLabAccess {
		if err := s.RequestLabAccess(ctx, r); err != nil {
			warn("lab access form", err)
		} else {
			result.LabAccessRequested = true
		}
	}

	start := registrationdomain.NextBusinessDay(s.clock.Now().In(s.loc))
	event, err := s.calendar.Create(ctx, calendardomain.CreateEventRequest{
		Title:           "Building Access: Give Access | User: " + r.Name(),
		Description:     fmt.Sprintf("Security Center: %s\n\nEID: %s", registrationdomain.SecurityCenterURL, r.EID),
		Start:           start,
		End:             start.Add(registrationdomain.TaskDuration),
		Color:           calendardomain.ColorCyan,
		ReminderMinutes: registrationdomain.TaskReminderMinutes,
	})
	if err != nil {
		warn("calendar event", err)
	} else {
		result.EventID = event.ID.String()
	}

	form, err := s.accessForm(ctx, r)
	if err != nil {
		warn("access form", err)
	} else {
		result.AccessFormKey = storage.Join(registrationdomain.AccessFormPrefix, form.Filename)
		if err := s.emailAccessOfficer(ctx, form); err != nil {
			warn("access control email", err)
		}
	}

	if err := s.emailSupplies(ctx, r); err != nil {
		warn("supplies email", err)
	}

	s.log.Info("building access registration processed",
		zap.String("eid", r.EID),
		zap.Bool("lab_access", result.LabAccessRequested),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

func (s *Service) RebuildAccessForms(ctx context.Context, rows []int) ([]string, error) {
	registrants, err := s.registrants(ctx, rows)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(registrants))
	for _, r := range registrants {
		form, err := s.accessForm(ctx, r)
		if err != nil {
			return keys, fmt.Errorf("row %d: %w", r.Row, err)
		}
		keys = append(keys, storage.Join(registrationdomain.AccessFormPrefix, form.Filename))
	}
	return keys, nil
}

// accessForm renders the paper building access form and stores a copy.
func (s *Service) accessForm(ctx context.Context, r registrationdomain.Registrant) (email.Attachment, error) {
	submitted, ok := sheetdomain.ParseTimestamp(r.Timestamp, s.loc)
	if !ok {
		submitted = s.clock.Now().In(s.loc)
	}
	signature := strings.TrimSpace(fmt.Sprintf("%s %s", s.contacts.AccessFormSigner, r.Timestamp))
	activated := registrationdomain.NextBusinessDay(submitted).Format("2006-01-02")

	record := r.Record()
	record["Signature"] = signature
	record["Date Activated"] = activated
	record[sheetdomain.ColumnTimestamp] = submitted.Format("2006-01-02")
	qr, err := json.Marshal(record)
	if err != nil {
		return email.Attachment{}, err
	}

	doc, err := s.pdf.AccessForm(ctx, pdf.AccessForm{
		Title: "Access Control Request",
		Fields: []pdf.Field{
			{Label: "Date", Value: record[sheetdomain.ColumnTimestamp]},
			{Label: "Name", Value: r.Name()},
			{Label: "UT EID", Value: r.EID},
			{Label: "Email", Value: r.Email},
			{Label: "Phone", Value: r.Phone},
			{Label: "Affiliation", Value: r.Affiliation},
			{Label: "Department or Company", Value: r.Department},
			{Label: "Professor or Supervisor", Value: r.Supervisor},
			{Label: "Date Activated", Value: activated},
		},
		Signature: signature,
		QRContent: string(qr),
	})
	if err != nil {
		return email.Attachment{}, err
	}

	name := registrationdomain.AccessFormName(r) + ".pdf"
	if err := s.bucket.Put(ctx, storage.Join(registrationdomain.AccessFormPrefix, name), doc, "application/pdf"); err != nil {
		return email.Attachment{}, fmt.Errorf("store access form: %w", err)
	}
	return email.Attachment{Filename: name, ContentType: "application/pdf", Data: doc}, nil
}

func (s *Service) emailAccessOfficer(ctx context.Context, form email.Attachment) error {
	if s.contacts.AccessOfficerEmail == "" {
		s.log.Warn("no access control officer configured, form not mailed")
		return nil
	}
	return s.notifier.Send(ctx, notification.Notification{
		To:          []string{s.contacts.AccessOfficerEmail},
		Subject:     "Completed: Access Control Request",
		Template:    notification.TemplateAccessControl,
		SenderName:  notification.SenderAccess,
		Attachments: []email.Attachment{form},
	})
}

func (s *Service) emailSupplies(ctx context.Context, r registrationdomain.Registrant) error {
	if r.Email == "" {
		return fmt.Errorf("registrant %q has no email", r.EID)
	}
	return s.notifier.Send(ctx, notification.Notification{
		To:       []string{r.Email},
		Subject:  "Get Cleanroom Supplies | Safety Training | " + r.EID,
		Template: notification.TemplateSupplies,
		Data: map[string]string{
			"Name": r.Name(),
			"URL": config.ExpandURL(s.forms.BasketRequest, map[string]string{
				"eid":   r.EID,
				"phone": r.Phone,
				"email": r.Email,
				"first": r.FirstName,
				"last":  r.LastName,
			}),
		},
		Progress:   true,
		SenderName: notification.SenderTraining,
	})
}

func (s *Service) registrants(ctx context.Context, rows []int) ([]registrationdomain.Registrant, error) {
	table, err := s.store.GetTable(ctx, s.sheets.Registration)
	if err != nil {
		return nil, err
	}
	idx := table.Index()
	out := make([]registrationdomain.Registrant, 0, len(rows))
	for _, n := range rows {
		row, ok := table.Row(n)
		if !ok {
			return nil, fmt.Errorf("%w: %d", sheetdomain.ErrRowOutOfRange, n)
		}
		out = append(out, registrationdomain.RegistrantFromRow(idx, *row))
	}
	return out, nil
}
