package seed

import (
	"testing"

	basketdomain "github.com/smallbiznis/labdesk/internal/basket/domain"
	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/smallbiznis/labdesk/internal/testenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSeeder(env *testenv.Env, baskets ...config.BasketSeed) *Seeder {
	policy := config.DefaultPolicy()
	policy.Baskets = baskets
	return New(Params{
		Config:  env.Config,
		Policy:  config.NewStaticPolicyHolder(policy),
		Log:     zap.NewNop(),
		Sheets:  env.Sheets,
		Baskets: env.Baskets,
	})
}

func TestRunCreatesSheetsAndSeedsBaskets(t *testing.T) {
	env := testenv.New(t)
	s := newSeeder(env,
		config.BasketSeed{ID: "S001", Zone: "Cleanroom A"},
		config.BasketSeed{ID: "N001", Zone: "Cleanroom B"},
	)

	report, err := s.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Baskets)
	assert.Contains(t, report.Created, env.Config.Sheets.Quiz)
	assert.Contains(t, report.Created, env.Config.Sheets.Registration)

	index := env.Table(t, env.Config.Sheets.BasketIndex)
	assert.Equal(t, basketdomain.IndexHeaders, index.Headers)
	require.Len(t, index.Rows, 2)

	again, err := s.Run(t.Context())
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	assert.Zero(t, again.Baskets)
	assert.Len(t, env.Table(t, env.Config.Sheets.BasketIndex).Rows, 2)
}

func TestRunKeepsExistingSheets(t *testing.T) {
	env := testenv.New(t)
	env.Seed(t, env.Config.Sheets.Quiz, []string{"Timestamp", "Email Address", "Score"},
		[]string{"2024-06-30 10:00:00", "a@test.edu", "10 / 10"},
	)

	report, err := newSeeder(env).Run(t.Context())
	require.NoError(t, err)
	assert.NotContains(t, report.Created, env.Config.Sheets.Quiz)
	assert.Len(t, env.Table(t, env.Config.Sheets.Quiz).Rows, 1)
}

func TestRunRejectsInvalidBasketIDs(t *testing.T) {
	env := testenv.New(t)

	_, err := newSeeder(env, config.BasketSeed{ID: "basket-1", Zone: "Cleanroom A"}).Run(t.Context())
	require.ErrorIs(t, err, basketdomain.ErrInvalidBasketID)
}
