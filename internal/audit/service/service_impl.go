package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/labdesk/internal/audit/domain"
	"github.com/smallbiznis/labdesk/internal/audit/masking"
	"github.com/smallbiznis/labdesk/internal/clock"
	obscontext "github.com/smallbiznis/labdesk/internal/observability/context"
	"github.com/smallbiznis/labdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	GenID *snowflake.Node
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		clock: p.Clock,
		genID: p.GenID,
		repo:  p.Repo,
	}
}

// Record stores entry with the actor, client and request id carried by ctx.
// Contact details in the metadata are masked.
func (s *Service) Record(ctx context.Context, entry auditdomain.Entry) error {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	targetType := strings.TrimSpace(entry.TargetType)
	if targetType == "" {
		targetType = "unknown"
	}

	payload := masking.MaskContacts(entry.Metadata)
	if payload == nil {
		payload = map[string]any{}
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}

	actorType, actorID := obscontext.ActorFromContext(ctx)
	if actorType == "" {
		actorType = auditdomain.ActorTypeSystem
	}
	ip, userAgent := obscontext.ClientFromContext(ctx)

	log := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		ActorType:  actorType,
		ActorID:    optional(actorID),
		Action:     action,
		TargetType: targetType,
		TargetID:   optional(entry.TargetID),
		Metadata:   datatypes.JSONMap(payload),
		IPAddress:  optional(ip),
		UserAgent:  optional(userAgent),
		CreatedAt:  s.clock.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, s.db, &log); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListResponse{}, auditdomain.ErrInvalidTimeRange
	}

	var before snowflake.ID
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return auditdomain.ListResponse{}, err
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil || id == 0 {
			return auditdomain.ListResponse{}, pagination.ErrInvalidPageToken
		}
		before = id
	}

	size := req.Size()
	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		Action:     req.Action,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		BeforeID:   before,
		Limit:      size,
	})
	if err != nil {
		return auditdomain.ListResponse{}, err
	}

	resp := auditdomain.ListResponse{AuditLogs: items}
	if len(items) > size {
		resp.AuditLogs = items[:size]
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: resp.AuditLogs[size-1].ID.String()})
		if err != nil {
			return auditdomain.ListResponse{}, err
		}
		resp.PageInfo = pagination.PageInfo{NextPageToken: token, HasMore: true}
	}
	return resp, nil
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
