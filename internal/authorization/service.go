package authorization

import (
	"context"
	"errors"
)

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrInvalidToken  = errors.New("invalid_token")
	ErrForbidden     = errors.New("forbidden")
)

// Roles carried by API tokens.
const (
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// Actor is the caller behind a request. System actors run scheduled jobs and the CLI.
type Actor struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// System is the actor of in-process callers.
var System = Actor{Name: "system", Role: RoleAdmin}

func (a Actor) Subject() string {
	if a == System {
		return "system"
	}
	return "token:" + a.Name
}

type Service interface {
	// Enabled reports whether any API token is configured. With none, every request is allowed.
	Enabled() bool
	// Authenticate resolves a bearer token of the form "name.secret".
	Authenticate(ctx context.Context, token string) (Actor, error)
	Authorize(ctx context.Context, actor Actor, object, action string) error
}
