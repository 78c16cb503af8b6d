package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	activeuserdomain "github.com/smallbiznis/labdesk/internal/activeuser/domain"
	basketdomain "github.com/smallbiznis/labdesk/internal/basket/domain"
	registrationdomain "github.com/smallbiznis/labdesk/internal/registration/domain"
	"github.com/smallbiznis/labdesk/internal/seed"
	"github.com/smallbiznis/labdesk/internal/testenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// useEnv points the commands at an in-memory environment for the duration of the test.
func useEnv(t *testing.T, env *testenv.Env) {
	t.Helper()
	prev := withServices
	withServices = func(cmd *cobra.Command, fn func(ctx context.Context, svc services) error) error {
		return fn(cmd.Context(), services{
			Policy:       env.Policy,
			ActiveUsers:  env.ActiveUsers,
			Baskets:      env.Baskets,
			Exemptions:   env.Exemptions,
			Badges:       env.Badges,
			Registration: env.Registration,
			Seeder: seed.New(seed.Params{
				Config:  env.Config,
				Policy:  env.Policy,
				Log:     zap.NewNop(),
				Sheets:  env.Sheets,
				Baskets: env.Baskets,
			}),
		})
	}
	t.Cleanup(func() { withServices = prev })
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if s, ok := f.Value.(interface{ Replace([]string) error }); ok {
			_ = s.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(t.Context())
	return out.String(), err
}

func takenBasket(id string) []string {
	return []string{id, "Cleanroom A", "FALSE", "TRUE", "", "bo456", "555", "bo@test.edu", "Bo", "Li", "2024-06-01 10:00:00"}
}

func TestBasketsReturn(t *testing.T) {
	env := testenv.New(t)
	env.Seed(t, env.Config.Sheets.BasketIndex, basketdomain.IndexHeaders, takenBasket("S001"), takenBasket("S002"))
	useEnv(t, env)

	out, err := run(t, "baskets", "return", "s001")
	require.NoError(t, err)
	assert.Contains(t, out, `"S001"`)

	out, err = run(t, "baskets", "return", "--rows", "3")
	require.NoError(t, err)
	assert.Contains(t, out, `"S002"`)

	for _, id := range []string{"S001", "S002"} {
		entry, err := env.Baskets.Lookup(t.Context(), id)
		require.NoError(t, err)
		assert.True(t, entry.Available, id)
	}

	_, err = run(t, "baskets", "return")
	require.Error(t, err)
	_, err = run(t, "baskets", "return", "--rows", "2", "S001")
	require.Error(t, err)
	_, err = run(t, "baskets", "return", "--rows", "1")
	require.Error(t, err)
}

func TestBasketsReconcileUsesPolicyUnlessOverridden(t *testing.T) {
	env := testenv.New(t)
	env.Seed(t, env.Config.Sheets.ActiveUsers, activeuserdomain.Headers)
	env.Seed(t, env.Config.Sheets.BasketIndex, basketdomain.IndexHeaders, takenBasket("S001"))
	useEnv(t, env)

	// Assigned 30 days ago, inside the default grace period.
	out, err := run(t, "baskets", "reconcile")
	require.NoError(t, err)
	assert.Equal(t, "no status changes\n", out)

	out, err = run(t, "baskets", "reconcile", "--grace-days", "7")
	require.NoError(t, err)
	assert.Contains(t, out, `"basket_id": "S001"`)

	entry, err := env.Baskets.Lookup(t.Context(), "S001")
	require.NoError(t, err)
	assert.False(t, entry.Active)

	_, err = run(t, "baskets", "reconcile", "--grace-days", "-1")
	require.Error(t, err)
}

func TestExemptions(t *testing.T) {
	useEnv(t, testenv.New(t))

	out, err := run(t, "exemptions", "add", "Bo", "Li", "--reason", "sabbatical")
	require.NoError(t, err)
	assert.Equal(t, "exempted Bo Li\n", out)

	out, err = run(t, "exemptions", "list")
	require.NoError(t, err)
	assert.Equal(t, "Bo Li\tsabbatical\n", out)

	_, err = run(t, "exemptions", "remove", "Bo Li")
	require.NoError(t, err)
	out, err = run(t, "exemptions", "list")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEmails(t *testing.T) {
	env := testenv.New(t)
	useEnv(t, env)

	out, err := run(t, "emails", "sendBuildingAccessEmail", "a@test.edu,", "b@test.edu junk")
	require.NoError(t, err)
	assert.Contains(t, out, `"sent": 2`)
	assert.Len(t, env.Mail.Messages(), 2)

	_, err = run(t, "emails", "postcards", "a@test.edu")
	require.ErrorIs(t, err, registrationdomain.ErrUnknownEmailKind)
}

func TestBadges(t *testing.T) {
	env := testenv.New(t)
	env.Seed(t, env.Config.Sheets.Registration, registrationdomain.Headers,
		[]string{"2024-06-28 10:00:00", "jane@test.edu", "jd123", "Jane", "Doe", "555-0100", "UT Student", "ECE", "Dr. Smith", "No"},
	)
	useEnv(t, env)

	path := filepath.Join(t.TempDir(), "badges.pdf")
	out, err := run(t, "badges", "--eid", "jd123", "-o", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "wrote 1 badges"))

	doc, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))

	_, err = run(t, "badges")
	require.Error(t, err)
}

func TestCommandTree(t *testing.T) {
	want := []string{
		"active-users refresh",
		"baskets reconcile",
		"baskets return",
		"baskets purge-warnings",
		"exemptions list",
		"exemptions add",
		"exemptions remove",
		"badges",
		"emails",
		"migrate",
	}
	for _, path := range want {
		cmd, rest, err := rootCmd.Find(strings.Fields(path))
		require.NoError(t, err, path)
		assert.Empty(t, rest, path)
		assert.Equal(t, path[strings.LastIndex(path, " ")+1:], cmd.Name(), path)
	}
}
