package service

import (
	"context"
	"strings"
	"sync"

	"github.com/smallbiznis/labdesk/internal/clock"
	exemptiondomain "github.com/smallbiznis/labdesk/internal/exemption/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Clock clock.Clock
	Repo  exemptiondomain.Repository
}

type Service struct {
	log   *zap.Logger
	clock clock.Clock
	repo  exemptiondomain.Repository

	// serializes read-modify-write cycles against the file
	mu sync.Mutex
}

func New(p Params) exemptiondomain.Service {
	return &Service{
		log:   p.Log.Named("exemption.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) List(ctx context.Context) ([]exemptiondomain.Exemption, error) {
	return s.repo.Load(ctx)
}

func (s *Service) Names(ctx context.Context) (map[string]struct{}, error) {
	items, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item.User)
		if name != "" {
			out[name] = struct{}{}
		}
	}
	return out, nil
}

// Add records an exemption. Adding an already exempt user replaces the reason.
func (s *Service) Add(ctx context.Context, req exemptiondomain.AddRequest) (*exemptiondomain.Exemption, error) {
	user := strings.Join(strings.Fields(req.User), " ")
	if user == "" {
		return nil, exemptiondomain.ErrInvalidUser
	}
	reason := strings.TrimSpace(req.Reason)

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}

	entry := exemptiondomain.Exemption{User: user, Reason: reason, AddedAt: s.clock.Now()}
	replaced := false
	for i := range items {
		if strings.TrimSpace(items[i].User) == user {
			items[i].Reason = reason
			entry = items[i]
			replaced = true
			break
		}
	}
	if !replaced {
		items = append(items, entry)
	}

	if err := s.repo.Save(ctx, items); err != nil {
		return nil, err
	}
	s.log.Info("basket exemption added",
		zap.String("user", user),
		zap.String("reason", reason),
		zap.Bool("replaced", replaced),
	)
	return &entry, nil
}

func (s *Service) Remove(ctx context.Context, user string) error {
	user = strings.Join(strings.Fields(user), " ")
	if user == "" {
		return exemptiondomain.ErrInvalidUser
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	kept := items[:0]
	found := false
	for _, item := range items {
		if strings.TrimSpace(item.User) == user {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return exemptiondomain.ErrNotFound
	}
	if err := s.repo.Save(ctx, kept); err != nil {
		return err
	}
	s.log.Info("basket exemption removed", zap.String("user", user))
	return nil
}
