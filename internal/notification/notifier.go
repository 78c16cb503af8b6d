package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/smallbiznis/labdesk/internal/observability/metrics"
	"github.com/smallbiznis/labdesk/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrDelivery wraps any failure to hand a message to the mail provider.
var ErrDelivery = errors.New("notification_delivery_failed")

// Sender names shown in the From header, per workflow.
const (
	SenderBasket     = "Automated Basket Assignment"
	SenderPurge      = "Automated Basket Purge"
	SenderTraining   = "Safety Training Automated Message"
	SenderOnboarding = "New User Onboarding Automated Message"
	SenderAccess     = "Automated Access Control Request"
	SenderLabAccess  = "Lab Access Automated Message"
	SenderSetup      = "New User Setup"
)

type Notification struct {
	To          []string
	Subject     string
	Template    string
	Data        any
	Progress    bool
	SenderName  string
	Attachments []email.Attachment
}

type Params struct {
	fx.In

	Config   config.Config
	Provider email.Provider
	Log      *zap.Logger
	Metrics  *metrics.Metrics `optional:"true"`
}

type Notifier struct {
	provider email.Provider
	renderer *Renderer
	replyTo  string
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func New(p Params) *Notifier {
	return &Notifier{
		provider: p.Provider,
		renderer: NewRenderer(p.Config.Forms),
		replyTo:  p.Config.Contacts.ReplyTo,
		log:      p.Log.Named("notification"),
		metrics:  p.Metrics,
	}
}

func (n *Notifier) Renderer() *Renderer {
	return n.renderer
}

// Send renders and delivers one message. Rendering errors are returned as is;
// provider errors are wrapped in ErrDelivery.
func (n *Notifier) Send(ctx context.Context, msg Notification) error {
	body, err := n.renderer.HTML(msg.Template, msg.Data, msg.Progress)
	if err != nil {
		return err
	}

	err = n.provider.Send(ctx, email.Message{
		To:          msg.To,
		Subject:     msg.Subject,
		HTMLBody:    body,
		SenderName:  msg.SenderName,
		ReplyTo:     n.replyTo,
		Attachments: msg.Attachments,
	})
	if err != nil {
		n.metrics.RecordNotificationFailure(ctx, msg.Template)
		n.log.Warn("failed to send notification",
			zap.String("template", msg.Template),
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	n.log.Debug("notification sent",
		zap.String("template", msg.Template),
		zap.Int("recipients", len(msg.To)),
		zap.Int("attachments", len(msg.Attachments)),
	)
	return nil
}
