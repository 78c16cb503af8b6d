package obscontext

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
)

type requestIDKey struct{}
type actorKey struct{}

type actor struct {
	kind string
	id   string
}

// WithRequestID stores the correlation id for the current request or job run.
func WithRequestID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// EnsureRequestID guarantees a correlation id on the context, generating a ULID when missing.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	id := RequestIDFromContext(ctx)
	if id == "" {
		id = NewRequestID()
		ctx = WithRequestID(ctx, id)
	}
	return ctx, id
}

func NewRequestID() string {
	return ulid.Make().String()
}

// WithActor records who triggered the operation: "token", "scheduler" or "cli".
func WithActor(ctx context.Context, kind, id string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{kind: strings.TrimSpace(kind), id: strings.TrimSpace(id)})
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if v, ok := ctx.Value(actorKey{}).(actor); ok {
		return v.kind, v.id
	}
	return "", ""
}

type clientKey struct{}

type client struct {
	ip        string
	userAgent string
}

// WithClient records the caller's address and user agent for audit entries.
func WithClient(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientKey{}, client{ip: strings.TrimSpace(ip), userAgent: strings.TrimSpace(userAgent)})
}

func ClientFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if v, ok := ctx.Value(clientKey{}).(client); ok {
		return v.ip, v.userAgent
	}
	return "", ""
}
