package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/smallbiznis/labdesk/internal/clock"
	exemptiondomain "github.com/smallbiznis/labdesk/internal/exemption/domain"
	"github.com/smallbiznis/labdesk/internal/exemption/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) exemptiondomain.Service {
	t.Helper()
	return New(Params{
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)),
		Repo:  repository.NewFileStore(filepath.Join(t.TempDir(), "exemptions.yml"), zap.NewNop()),
	})
}

func TestAddListNames(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	_, err := svc.Add(ctx, exemptiondomain.AddRequest{User: "  Jane   Doe ", Reason: "staff"})
	require.NoError(t, err)
	_, err = svc.Add(ctx, exemptiondomain.AddRequest{User: "Ann Lee", Reason: "PI"})
	require.NoError(t, err)

	names, err := svc.Names(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "Jane Doe")
	assert.Contains(t, names, "Ann Lee")

	items, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), items[0].AddedAt)
}

func TestAddExistingReplacesReason(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	_, err := svc.Add(ctx, exemptiondomain.AddRequest{User: "Jane Doe", Reason: "staff"})
	require.NoError(t, err)
	got, err := svc.Add(ctx, exemptiondomain.AddRequest{User: "Jane Doe", Reason: "on leave"})
	require.NoError(t, err)
	assert.Equal(t, "on leave", got.Reason)

	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	_, err := svc.Add(ctx, exemptiondomain.AddRequest{User: "Jane Doe"})
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, "Jane Doe"))
	assert.ErrorIs(t, svc.Remove(ctx, "Jane Doe"), exemptiondomain.ErrNotFound)
	assert.ErrorIs(t, svc.Remove(ctx, " "), exemptiondomain.ErrInvalidUser)

	_, err = svc.Add(ctx, exemptiondomain.AddRequest{User: ""})
	assert.ErrorIs(t, err, exemptiondomain.ErrInvalidUser)
}
