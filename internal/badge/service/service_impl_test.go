package service_test

import (
	"bytes"
	"context"
	"testing"

	badgedomain "github.com/smallbiznis/labdesk/internal/badge/domain"
	"github.com/smallbiznis/labdesk/internal/input"
	registrationdomain "github.com/smallbiznis/labdesk/internal/registration/domain"
	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
	"github.com/smallbiznis/labdesk/internal/testenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *testenv.Env {
	t.Helper()
	env := testenv.New(t)
	env.Seed(t, env.Config.Sheets.Registration, registrationdomain.Headers,
		[]string{"2024-06-28 10:00:00", "jane@test.edu", "jd123", "Jane", "Doe", "555-0100", "UT Student", "ECE", "Dr. Smith", "No"},
		[]string{"2024-06-28 11:00:00", "bo@test.edu", "bo456", "Bo", "Li", "555-0101", "Non-UT", "Acme Corp", "", "Yes"},
		[]string{"2024-06-29 09:00:00", "jane.d@test.edu", "jd123", "Jane", "Doe", "555-0102", "UT Student", "ECE", "Dr. Smith", "No"},
	)
	return env
}

func TestRowsForEIDs(t *testing.T) {
	env := seeded(t)

	rows, err := env.Badges.RowsForEIDs(context.Background(), []string{" jd123 ", "zz999", ""})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, rows)
}

func TestParseRowsChecksSheetBounds(t *testing.T) {
	env := seeded(t)
	ctx := context.Background()

	rows, err := env.Badges.ParseRows(ctx, "4, 2-3")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, rows)

	_, err = env.Badges.ParseRows(ctx, "1")
	assert.ErrorIs(t, err, input.ErrInvalidRow)
	_, err = env.Badges.ParseRows(ctx, "5")
	assert.ErrorIs(t, err, input.ErrInvalidRow)
}

func TestBadgesArePaddedToFullRows(t *testing.T) {
	env := seeded(t)

	badges, err := env.Badges.Badges(context.Background(), []int{2, 3, 4, 3})
	require.NoError(t, err)
	require.Len(t, badges, 2*badgedomain.PerRow)
	assert.Equal(t, "Jane Doe", badges[0].Name)
	assert.Contains(t, badges[0].VCard, "NOTE:jd123")
	assert.Equal(t, "Bo Li", badges[1].Name)
	assert.Equal(t, badgedomain.Badge{}, badges[5])

	_, err = env.Badges.Badges(context.Background(), []int{9})
	assert.ErrorIs(t, err, sheetdomain.ErrRowOutOfRange)
}

func TestSheet(t *testing.T) {
	env := seeded(t)

	doc, err := env.Badges.Sheet(context.Background(), []int{2})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))

	_, err = env.Badges.Sheet(context.Background(), nil)
	assert.ErrorIs(t, err, badgedomain.ErrNoBadges)
}
