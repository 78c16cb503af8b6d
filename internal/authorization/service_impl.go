package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/labdesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectActiveUsers = "active_users"
	ObjectBasket      = "basket"
	ObjectExemption   = "exemption"
	ObjectForm        = "form"
	ObjectBadge       = "badge"
	ObjectEmail       = "email"
	ObjectTraining    = "training"
	ObjectAudit       = "audit"
)

const (
	ActionActiveUsersRefresh = "active_users.refresh"

	ActionBasketView      = "basket.view"
	ActionBasketAssign    = "basket.assign"
	ActionBasketReturn    = "basket.return"
	ActionBasketReconcile = "basket.reconcile"
	ActionBasketPurge     = "basket.purge_warnings"

	ActionExemptionView   = "exemption.view"
	ActionExemptionManage = "exemption.manage"

	ActionFormSubmit   = "form.submit"
	ActionBadgePrint   = "badge.print"
	ActionEmailSend    = "email.send"
	ActionTrainingView = "training.view"

	ActionAuditView = "audit.view"
)

type Params struct {
	fx.In

	Config   config.Config
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	tokens   map[string]config.APIToken
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	tokens := make(map[string]config.APIToken, len(p.Config.APITokens))
	for _, t := range p.Config.APITokens {
		if t.Name == "" || t.Hash == "" {
			continue
		}
		tokens[t.Name] = t
	}
	return &ServiceImpl{
		tokens:   tokens,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Enabled() bool {
	return len(s.tokens) > 0
}

func (s *ServiceImpl) Authenticate(ctx context.Context, token string) (Actor, error) {
	name, secret, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || name == "" || secret == "" {
		return Actor{}, ErrInvalidToken
	}
	entry, ok := s.tokens[name]
	if !ok {
		return Actor{}, ErrInvalidToken
	}
	if err := bcrypt.CompareHashAndPassword([]byte(entry.Hash), []byte(secret)); err != nil {
		s.log.Warn("api token rejected", zap.String("token", name))
		return Actor{}, ErrInvalidToken
	}
	return Actor{Name: entry.Name, Role: entry.Role}, nil
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor Actor, object string, action string) error {
	if strings.TrimSpace(actor.Name) == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	role := strings.ToLower(strings.TrimSpace(actor.Role))
	if role != RoleStaff && role != RoleAdmin {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidActor, actor.Role)
	}
	subject := actor.Subject()
	if err := s.ensureGrouping(subject, "role:"+role); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Info("authorization denied",
			zap.String("subject", subject),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

// ensureGrouping keeps exactly one role link per subject so a token whose role changed is regrouped.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		_, _ = s.enforcer.RemoveGroupingPolicy(params...)
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Staff run the day-to-day desk.
		{"role:staff", ObjectBasket, ActionBasketView},
		{"role:staff", ObjectBasket, ActionBasketAssign},
		{"role:staff", ObjectBasket, ActionBasketReturn},
		{"role:staff", ObjectExemption, ActionExemptionView},
		{"role:staff", ObjectForm, ActionFormSubmit},
		{"role:staff", ObjectBadge, ActionBadgePrint},
		{"role:staff", ObjectEmail, ActionEmailSend},
		{"role:staff", ObjectTraining, ActionTrainingView},

		// Admins also run the sweeps and own the exemption list.
		{"role:admin", ObjectActiveUsers, ActionActiveUsersRefresh},
		{"role:admin", ObjectBasket, ActionBasketReconcile},
		{"role:admin", ObjectBasket, ActionBasketPurge},
		{"role:admin", ObjectExemption, ActionExemptionManage},
		{"role:admin", ObjectAudit, ActionAuditView},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	if _, err := enforcer.AddGroupingPolicy("role:admin", "role:staff"); err != nil {
		return err
	}
	_, err := enforcer.AddGroupingPolicy(System.Subject(), "role:admin")
	return err
}
