package obscontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureRequestIDKeepsExisting(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx, id := EnsureRequestID(ctx)
	assert.Equal(t, "req-1", id)
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
}

func TestEnsureRequestIDGenerates(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	assert.Len(t, id, 26)
	assert.Equal(t, id, RequestIDFromContext(ctx))
}

func TestActor(t *testing.T) {
	kind, id := ActorFromContext(context.Background())
	assert.Empty(t, kind)
	assert.Empty(t, id)

	kind, id = ActorFromContext(WithActor(context.Background(), "scheduler", "active_users"))
	assert.Equal(t, "scheduler", kind)
	assert.Equal(t, "active_users", id)
}

func TestClient(t *testing.T) {
	ip, ua := ClientFromContext(context.Background())
	assert.Empty(t, ip)
	assert.Empty(t, ua)

	ip, ua = ClientFromContext(WithClient(context.Background(), " 10.0.0.1 ", "labctl"))
	assert.Equal(t, "10.0.0.1", ip)
	assert.Equal(t, "labctl", ua)
}
