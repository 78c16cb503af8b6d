package service

import (
	"context"
	"fmt"

	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/smallbiznis/labdesk/internal/notification"
	registrationdomain "github.com/smallbiznis/labdesk/internal/registration/domain"
	"go.uber.org/zap"
)

// genericName addresses recipients known only by email.
const genericName = "MER User"

func (s *Service) SendOnboarding(ctx context.Context, kind registrationdomain.EmailKind, addresses []string) (registrationdomain.EmailReport, error) {
	build, ok := s.onboardingBuilders()[kind]
	if !ok {
		return registrationdomain.EmailReport{}, fmt.Errorf("%w: %q", registrationdomain.ErrUnknownEmailKind, kind)
	}
	if len(addresses) == 0 {
		return registrationdomain.EmailReport{}, registrationdomain.ErrNoAddresses
	}

	var report registrationdomain.EmailReport
	for _, address := range addresses {
		if err := s.notifier.Send(ctx, build(address)); err != nil {
			s.log.Warn("onboarding email not sent", zap.String("kind", string(kind)), zap.String("email", address), zap.Error(err))
			report.Failed = append(report.Failed, address)
			continue
		}
		report.Sent++
	}
	s.log.Info("onboarding emails sent",
		zap.String("kind", string(kind)),
		zap.Int("sent", report.Sent),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func (s *Service) onboardingBuilders() map[registrationdomain.EmailKind]func(string) notification.Notification {
	return map[registrationdomain.EmailKind]func(string) notification.Notification{
		registrationdomain.EmailTrainingRequest: func(address string) notification.Notification {
			return notification.Notification{
				To:         []string{address},
				Subject:    "MER | New User Onboarding",
				Template:   notification.TemplateTrainingRequest,
				Data:       map[string]string{"URL": config.ExpandURL(s.forms.TrainingRequest, map[string]string{"email": address})},
				Progress:   true,
				SenderName: notification.SenderOnboarding,
			}
		},
		registrationdomain.EmailTrainingRequestTemplate: func(address string) notification.Notification {
			return notification.Notification{
				To:         []string{address},
				Subject:    "MER | New User Onboarding",
				Template:   notification.TemplateTrainingRequest,
				Data:       map[string]string{"URL": config.ExpandURL(s.forms.TrainingRequest, nil)},
				Progress:   true,
				SenderName: notification.SenderOnboarding,
			}
		},
		registrationdomain.EmailBuildingAccess: func(address string) notification.Notification {
			return notification.Notification{
				To:       []string{address},
				Subject:  "Passed Quiz | Safety Training | " + genericName,
				Template: notification.TemplateQuizPassed,
				Data: map[string]string{
					"Name": genericName,
					"URL":  config.ExpandURL(s.forms.BuildingAccess, map[string]string{"email": address}),
				},
				SenderName: notification.SenderTraining,
			}
		},
		registrationdomain.EmailBasketRequest: func(address string) notification.Notification {
			return notification.Notification{
				To:       []string{address},
				Subject:  "Get Cleanroom Supplies | Safety Training | " + genericName,
				Template: notification.TemplateSupplies,
				Data: map[string]string{
					"Name": genericName,
					"URL":  config.ExpandURL(s.forms.BasketRequest, map[string]string{"email": address}),
				},
				SenderName: notification.SenderTraining,
			}
		},
	}
}
