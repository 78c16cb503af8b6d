package domain

import (
	"context"
	"errors"
	"time"
)

// Exemption keeps a user's basket active regardless of recent tool usage.
type Exemption struct {
	User    string    `yaml:"user" json:"user"`
	Reason  string    `yaml:"reason" json:"reason"`
	AddedAt time.Time `yaml:"added_at,omitempty" json:"added_at,omitempty"`
}

// Document is the on-disk layout of the exemption file.
type Document struct {
	Exemptions []Exemption `yaml:"exemptions"`
}

type Repository interface {
	Load(ctx context.Context) ([]Exemption, error)
	Save(ctx context.Context, items []Exemption) error
}

type AddRequest struct {
	User   string `json:"user"`
	Reason string `json:"reason"`
}

type Service interface {
	List(ctx context.Context) ([]Exemption, error)
	// Names returns the exempt user names, keyed exactly as "First Last".
	Names(ctx context.Context) (map[string]struct{}, error)
	Add(ctx context.Context, req AddRequest) (*Exemption, error)
	Remove(ctx context.Context, user string) error
}

var (
	ErrInvalidUser = errors.New("invalid_user")
	ErrNotFound    = errors.New("exemption_not_found")
)
