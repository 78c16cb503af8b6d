package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	calendardomain "github.com/smallbiznis/labdesk/internal/calendar/domain"
	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/smallbiznis/labdesk/internal/providers/email"
	registrationdomain "github.com/smallbiznis/labdesk/internal/registration/domain"
	"github.com/smallbiznis/labdesk/internal/testenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registrant(labAccess bool) registrationdomain.Registrant {
	return registrationdomain.Registrant{
		Row:             2,
		Timestamp:       "2024-07-01 08:30:00",
		Email:           "jane@test.edu",
		EID:             "jd123",
		FirstName:       "Jane",
		LastName:        "Doe",
		Phone:           "555-0100",
		Affiliation:     "UT Student",
		Department:      "ECE",
		Supervisor:      "Dr. Smith",
		CreateLabAccess: labAccess,
	}
}

// tomorrow lists the events on the next business day after testenv.Now.
func tomorrow(t *testing.T, env *testenv.Env) []calendardomain.Event {
	t.Helper()
	day := time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC)
	events, err := env.Calendar.ListEvents(context.Background(), calendardomain.Window{Start: day, End: day.Add(24 * time.Hour)}, "")
	require.NoError(t, err)
	return events
}

func subjects(msgs []email.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Subject)
	}
	return out
}

func TestProcessRegistration(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	res, err := env.Registration.ProcessRegistration(ctx, registrant(false))
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.False(t, res.LabAccessRequested)
	assert.Equal(t, "access-forms/Access Control Request - Doe, Jane - jd123.pdf", res.AccessFormKey)

	events := tomorrow(t, env)
	require.Len(t, events, 1)
	assert.Equal(t, "Building Access: Give Access | User: Jane Doe", events[0].Title)
	assert.Equal(t, calendardomain.ColorCyan, events[0].Color)
	assert.True(t, events[0].Start.Equal(time.Date(2024, 7, 2, 13, 0, 0, 0, time.UTC)))
	assert.Equal(t, 10*time.Minute, events[0].End.Sub(events[0].Start))
	assert.Contains(t, events[0].Description, "EID: jd123")
	assert.Equal(t, events[0].ID.String(), res.EventID)

	doc, err := env.Bucket.Get(ctx, res.AccessFormKey)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(doc), "%PDF"))

	msgs := env.Mail.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, []string{"officer@test.edu"}, msgs[0].To)
	assert.Equal(t, "Completed: Access Control Request", msgs[0].Subject)
	require.Len(t, msgs[0].Attachments, 1)
	assert.Equal(t, "Access Control Request - Doe, Jane - jd123.pdf", msgs[0].Attachments[0].Filename)
	assert.Equal(t, "Get Cleanroom Supplies | Safety Training | jd123", msgs[1].Subject)
	assert.Contains(t, msgs[1].HTMLBody, "https://forms.test/basket?eid=jd123")
}

func TestProcessRegistrationPostsLabAccessForm(t *testing.T) {
	env := testenv.New(t, func(c *config.Config) {
		c.Forms.LabAccess = "https://forms.test/lab-access"
	})
	r := registrant(true)
	r.Affiliation = registrationdomain.AffiliationNonUT
	r.Department = "Acme Corp"

	res, err := env.Registration.ProcessRegistration(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, res.LabAccessRequested)

	subs := env.Forms.Submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "https://forms.test/lab-access", subs[0].Endpoint)
	assert.Equal(t, "Acme Corp", subs[0].Fields["supervisor"])
	assert.Equal(t, "jd123", subs[0].Fields["eid"])
}

func TestProcessRegistrationLabAccessFormRejected(t *testing.T) {
	env := testenv.New(t, func(c *config.Config) {
		c.Forms.LabAccess = "https://forms.test/lab-access"
	})
	env.Forms.Fail = errors.New("form closed")

	res, err := env.Registration.ProcessRegistration(context.Background(), registrant(true))
	require.NoError(t, err)
	assert.False(t, res.LabAccessRequested)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "lab access form")
	// The remaining steps still run.
	assert.Len(t, env.Mail.Messages(), 2)
}

func TestProcessRegistrationRecordsLabAccessInPlace(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	res, err := env.Registration.ProcessRegistration(ctx, registrant(true))
	require.NoError(t, err)
	assert.True(t, res.LabAccessRequested)
	assert.Empty(t, res.Warnings)

	table := env.Table(t, env.Config.Sheets.LabAccess)
	require.Len(t, table.Rows, 1)
	row := table.Rows[0]
	assert.Equal(t, "jd123", row.Get(table.Index(), "UT EID"))
	assert.Equal(t, "Dr. Smith", row.Get(table.Index(), registrationdomain.ColumnSupervisor))

	titles := make([]string, 0)
	for _, e := range tomorrow(t, env) {
		titles = append(titles, e.Title)
	}
	assert.ElementsMatch(t, []string{
		"Lab Access: Create Account | User: Jane Doe",
		"Building Access: Give Access | User: Jane Doe",
	}, titles)

	assert.Equal(t, []string{
		"New User Setup",
		"Lab Access & Sedona Account Info | Jane Doe | jd123",
		"Completed: Access Control Request",
		"Get Cleanroom Supplies | Safety Training | jd123",
	}, subjects(env.Mail.Messages()))

	card, err := env.Bucket.Get(ctx, "vcards/jd123 - Jane Doe.vcf")
	require.NoError(t, err)
	assert.Contains(t, string(card), "FN:Jane Doe")
}

func TestProcessLabAccessWarnsOnMailFailure(t *testing.T) {
	env := testenv.New(t)
	env.Mail.Fail = func(m email.Message) error {
		if m.Subject == "New User Setup" {
			return errors.New("sms gateway down")
		}
		return nil
	}

	res, err := env.Registration.ProcessLabAccess(context.Background(), registrant(true).LabAccessRequest())
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "setup text")
	assert.NotEmpty(t, res.EventID)
	assert.Equal(t, "vcards/jd123 - Jane Doe.vcf", res.VCardKey)
}

func TestRebuildAccessForms(t *testing.T) {
	env := testenv.New(t)
	env.Seed(t, env.Config.Sheets.Registration, registrationdomain.Headers,
		[]string{"2024-06-28 10:00:00", "jane@test.edu", "jd123", "Jane", "Doe", "555", "UT Student", "ECE", "Dr. Smith", "No"},
		[]string{"2024-06-28 11:00:00", "bo@test.edu", "bo456", "Bo", "Li", "555", "Non-UT", "Acme Corp", "", "Yes"},
	)

	keys, err := env.Registration.RebuildAccessForms(context.Background(), []int{3, 2})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"access-forms/Access Control Request - Li, Bo - bo456.pdf",
		"access-forms/Access Control Request - Doe, Jane - jd123.pdf",
	}, keys)
	assert.Empty(t, env.Mail.Messages())
}

func TestSendOnboarding(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()
	env.Mail.Fail = func(m email.Message) error {
		if m.To[0] == "bad@test.edu" {
			return errors.New("bounced")
		}
		return nil
	}

	report, err := env.Registration.SendOnboarding(ctx, registrationdomain.EmailTrainingRequest, []string{"a@test.edu", "bad@test.edu"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, []string{"bad@test.edu"}, report.Failed)

	msgs := env.Mail.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "MER | New User Onboarding", msgs[0].Subject)
	assert.Contains(t, msgs[0].HTMLBody, "https://forms.test/training?email=a%40test.edu")

	env.Mail.Reset()
	_, err = env.Registration.SendOnboarding(ctx, registrationdomain.EmailBuildingAccess, []string{"a@test.edu"})
	require.NoError(t, err)
	msgs = env.Mail.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Passed Quiz | Safety Training | MER User", msgs[0].Subject)

	_, err = env.Registration.SendOnboarding(ctx, "spam", []string{"a@test.edu"})
	assert.ErrorIs(t, err, registrationdomain.ErrUnknownEmailKind)

	_, err = env.Registration.SendOnboarding(ctx, registrationdomain.EmailBasketRequest, nil)
	assert.ErrorIs(t, err, registrationdomain.ErrNoAddresses)
}
