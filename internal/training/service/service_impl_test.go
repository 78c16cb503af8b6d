package service_test

import (
	"context"
	"testing"
	"time"

	calendardomain "github.com/smallbiznis/labdesk/internal/calendar/domain"
	quizdomain "github.com/smallbiznis/labdesk/internal/quiz/domain"
	"github.com/smallbiznis/labdesk/internal/testenv"
	trainingdomain "github.com/smallbiznis/labdesk/internal/training/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionValue = "2024-07-02 | 10:00 to 11:00"

var sessionStart = time.Date(2024, 7, 2, 10, 0, 0, 0, time.UTC)

func trainingEvent(t *testing.T, env *testenv.Env, start time.Time, guests ...calendardomain.Attendee) *calendardomain.Event {
	t.Helper()
	event, err := env.Calendar.Create(context.Background(), calendardomain.CreateEventRequest{
		Title:     env.Config.Calendar.TrainingTitle,
		Start:     start,
		End:       start.Add(time.Hour),
		Attendees: guests,
	})
	require.NoError(t, err)
	return event
}

func request(first, email string) trainingdomain.Request {
	return trainingdomain.Request{
		Student: quizdomain.Student{EID: "eid-" + first, FirstName: first, LastName: "Doe", Email: email},
		Phone:   "555",
		Session: sessionValue,
	}
}

func seedRequests(t *testing.T, env *testenv.Env, rows ...[]string) {
	t.Helper()
	env.Seed(t, env.Config.Sheets.TrainingRequests, trainingdomain.Headers, rows...)
}

func TestAddToTrainingEvent(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()
	event := trainingEvent(t, env, sessionStart)

	res, err := env.Training.AddToTrainingEvent(ctx, request("Jane", "jane@test.edu"))
	require.NoError(t, err)
	assert.True(t, res.Added)
	assert.Equal(t, event.ID, res.EventID)

	got, err := env.Calendar.Get(ctx, event.ID)
	require.NoError(t, err)
	assert.True(t, got.HasGuest("jane@test.edu"))

	triggers, err := env.Training.Triggers(ctx)
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, event.ID, triggers[0].EventID)
	assert.True(t, triggers[0].FireAt.Equal(sessionStart.Add(time.Hour)))

	// A second request for the same guest changes nothing.
	res, err = env.Training.AddToTrainingEvent(ctx, request("Jane", "JANE@test.edu"))
	require.NoError(t, err)
	assert.False(t, res.Added)

	// A second guest shares the event trigger.
	res, err = env.Training.AddToTrainingEvent(ctx, request("Bo", "bo@test.edu"))
	require.NoError(t, err)
	assert.True(t, res.Added)
	triggers, err = env.Training.Triggers(ctx)
	require.NoError(t, err)
	assert.Len(t, triggers, 1)
}

func TestAddToTrainingEventErrors(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	_, err := env.Training.AddToTrainingEvent(ctx, request("Jane", "jane@test.edu"))
	assert.ErrorIs(t, err, calendardomain.ErrEventNotFound)

	bad := request("Jane", "jane@test.edu")
	bad.Session = "next tuesday"
	_, err = env.Training.AddToTrainingEvent(ctx, bad)
	assert.ErrorIs(t, err, trainingdomain.ErrInvalidSession)
}

func TestFireDueTriggersSendsQuizAfterSession(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()
	trainingEvent(t, env, sessionStart)
	seedRequests(t, env,
		[]string{"2024-06-20 10:00:00", "jane@test.edu", "jd123", "Jane", "Doe", "555", sessionValue},
	)

	_, err := env.Training.AddToTrainingEvent(ctx, request("Jane", "jane@test.edu"))
	require.NoError(t, err)

	fired, err := env.Training.FireDueTriggers(ctx)
	require.NoError(t, err)
	assert.Zero(t, fired)
	assert.Empty(t, env.Mail.Messages())

	env.Clock.Set(sessionStart.Add(time.Hour))
	fired, err = env.Training.FireDueTriggers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	msgs := env.Mail.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Quiz | Safety Training | jd123", msgs[0].Subject)

	triggers, err := env.Training.Triggers(ctx)
	require.NoError(t, err)
	assert.Empty(t, triggers)

	fired, err = env.Training.FireDueTriggers(ctx)
	require.NoError(t, err)
	assert.Zero(t, fired)
	assert.Len(t, env.Mail.Messages(), 1)
}

func TestSendGroupQuiz(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()
	event := trainingEvent(t, env, sessionStart,
		calendardomain.Attendee{Email: "Jane@test.edu"},
		calendardomain.Attendee{Email: "bo@test.edu", Status: calendardomain.StatusDeclined},
		calendardomain.Attendee{Email: "ghost@test.edu"},
	)
	seedRequests(t, env,
		[]string{"2024-06-20 10:00:00", "jane@test.edu", "old123", "Jane", "Doe", "555", sessionValue},
		[]string{"2024-06-21 10:00:00", "jane@test.edu", "jd123", "Jane", "Doe", "555", sessionValue},
		[]string{"2024-06-21 11:00:00", "bo@test.edu", "bo456", "Bo", "Li", "555", sessionValue},
	)

	report, err := env.Training.SendGroupQuiz(ctx, sessionStart)
	require.NoError(t, err)
	assert.Equal(t, event.ID, report.EventID)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, []string{"bo@test.edu"}, report.Skipped)
	assert.Equal(t, []string{"ghost@test.edu"}, report.Failed)

	msgs := env.Mail.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"Jane@test.edu"}, msgs[0].To)
	assert.Equal(t, "Quiz | Safety Training | jd123", msgs[0].Subject)

	report, err = env.Training.SendGroupQuiz(ctx, sessionStart.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Zero(t, report.Sent)
}

func TestUpcomingSessions(t *testing.T) {
	env := testenv.New(t)
	trainingEvent(t, env, testenv.Now.Add(12*time.Hour))
	trainingEvent(t, env, sessionStart.AddDate(0, 0, 2))
	trainingEvent(t, env, sessionStart.AddDate(0, 0, 9))
	trainingEvent(t, env, testenv.Now.AddDate(0, 3, 0))

	sessions, err := env.Training.UpcomingSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2024-07-04 | 10:00 to 11:00",
		"2024-07-11 | 10:00 to 11:00",
	}, sessions)
}
