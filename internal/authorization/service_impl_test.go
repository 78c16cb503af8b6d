package authorization

import (
	"context"
	"testing"

	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/smallbiznis/labdesk/internal/sheet/sheettest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newService(t *testing.T, tokens ...config.APIToken) Service {
	t.Helper()
	enforcer, err := NewEnforcer(sheettest.OpenDB(t))
	require.NoError(t, err)
	return NewService(Params{
		Config:   config.Config{APITokens: tokens},
		Log:      zap.NewNop(),
		Enforcer: enforcer,
	})
}

func token(t *testing.T, name, role, secret string) config.APIToken {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)
	return config.APIToken{Name: name, Role: role, Hash: string(hash)}
}

func TestAuthenticate(t *testing.T) {
	svc := newService(t, token(t, "desk", RoleStaff, "s3cret"))
	ctx := context.Background()
	require.True(t, svc.Enabled())

	actor, err := svc.Authenticate(ctx, "desk.s3cret")
	require.NoError(t, err)
	assert.Equal(t, Actor{Name: "desk", Role: RoleStaff}, actor)

	for _, bad := range []string{"", "desk", "desk.", "desk.wrong", "other.s3cret"} {
		_, err := svc.Authenticate(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidToken, bad)
	}
}

func TestDisabledWithoutTokens(t *testing.T) {
	svc := newService(t, config.APIToken{Name: "broken"})
	assert.False(t, svc.Enabled())
}

func TestAuthorizeByRole(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	staff := Actor{Name: "desk", Role: RoleStaff}
	admin := Actor{Name: "boss", Role: RoleAdmin}

	assert.NoError(t, svc.Authorize(ctx, staff, ObjectBasket, ActionBasketAssign))
	assert.ErrorIs(t, svc.Authorize(ctx, staff, ObjectBasket, ActionBasketReconcile), ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, staff, ObjectExemption, ActionExemptionManage), ErrForbidden)

	// Admins inherit every staff permission.
	assert.NoError(t, svc.Authorize(ctx, admin, ObjectBasket, ActionBasketAssign))
	assert.NoError(t, svc.Authorize(ctx, admin, ObjectBasket, ActionBasketReconcile))
	assert.NoError(t, svc.Authorize(ctx, System, ObjectActiveUsers, ActionActiveUsersRefresh))
}

func TestAuthorizeRegroupsChangedRole(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, Actor{Name: "desk", Role: RoleAdmin}, ObjectBasket, ActionBasketPurge))
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{Name: "desk", Role: RoleStaff}, ObjectBasket, ActionBasketPurge), ErrForbidden)
}

func TestAuthorizeRejectsMalformedRequests(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, Actor{}, ObjectBasket, ActionBasketView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{Name: "x", Role: "owner"}, ObjectBasket, ActionBasketView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{Name: "x", Role: RoleStaff}, "", ActionBasketView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{Name: "x", Role: RoleStaff}, ObjectBasket, " "), ErrInvalidAction)
}
