package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gosimple/slug"
	basketdomain "github.com/smallbiznis/labdesk/internal/basket/domain"
	"github.com/smallbiznis/labdesk/internal/notification"
	"github.com/smallbiznis/labdesk/internal/providers/email"
	"github.com/smallbiznis/labdesk/internal/providers/pdf"
	"github.com/smallbiznis/labdesk/internal/storage"
	"go.uber.org/zap"
)

// LabelPrefix is where generated basket labels are stored.
const LabelPrefix = "baskets"

type labelContent struct {
	EID      string `json:"eid"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Basket   string `json:"basket"`
	Assigned string `json:"assigned"`
}

func (s *Service) NotifyAssignment(ctx context.Context, req basketdomain.AssignRequest, res basketdomain.AssignmentResult) error {
	data := map[string]string{
		"FirstName": req.FirstName,
		"LastName":  req.LastName,
		"BasketID":  res.BasketID,
		"Zone":      res.Zone,
	}
	if !res.Assigned() {
		return s.notifier.Send(ctx, notification.Notification{
			To:         nonEmpty(req.Email),
			Subject:    "No Cleanroom Basket Available",
			Template:   notification.TemplateBasketUnavailable,
			Data:       data,
			SenderName: notification.SenderBasket,
		})
	}

	label, err := s.renderLabel(ctx, req, res)
	if err != nil {
		return err
	}
	attachments := []email.Attachment{label}

	guide, err := s.bucket.Get(ctx, s.guideKey)
	switch {
	case err == nil:
		attachments = append(attachments, email.Attachment{
			Filename:    "Basket Guide.pdf",
			ContentType: "application/pdf",
			Data:        guide,
		})
	case errors.Is(err, storage.ErrObjectNotFound):
		s.log.Warn("basket guide missing, sending without it", zap.String("key", s.guideKey))
	default:
		return fmt.Errorf("load basket guide: %w", err)
	}

	return s.notifier.Send(ctx, notification.Notification{
		To:          nonEmpty(req.Email),
		Subject:     "Cleanroom Basket Assigned",
		Template:    notification.TemplateBasketAssigned,
		Data:        data,
		SenderName:  notification.SenderBasket,
		Attachments: attachments,
	})
}

// renderLabel builds the QR label PDF and keeps a copy in storage.
func (s *Service) renderLabel(ctx context.Context, req basketdomain.AssignRequest, res basketdomain.AssignmentResult) (email.Attachment, error) {
	content := labelContent{
		EID:      req.EID,
		Name:     req.User(),
		Phone:    req.Phone,
		Email:    req.Email,
		Basket:   res.BasketID,
		Assigned: req.Timestamp,
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return email.Attachment{}, err
	}

	doc, err := s.pdf.BasketLabel(ctx, pdf.BasketLabel{
		BasketID:  res.BasketID,
		Zone:      res.Zone,
		Assignee:  content.Name,
		QRContent: string(raw),
	})
	if err != nil {
		return email.Attachment{}, fmt.Errorf("render basket label: %w", err)
	}

	name := fmt.Sprintf("Basket %s %s %s", content.Basket, content.Assigned, content.Name)
	key := storage.Join(LabelPrefix, slug.Make(name)+".pdf")
	if err := s.bucket.Put(ctx, key, doc, "application/pdf"); err != nil {
		return email.Attachment{}, fmt.Errorf("store basket label: %w", err)
	}

	return email.Attachment{
		Filename:    name + ".pdf",
		ContentType: "application/pdf",
		Data:        doc,
	}, nil
}
