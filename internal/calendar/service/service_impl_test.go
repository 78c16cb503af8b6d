package service_test

import (
	"context"
	"testing"
	"time"

	calendardomain "github.com/smallbiznis/labdesk/internal/calendar/domain"
	"github.com/smallbiznis/labdesk/internal/testenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const training = "Training: OH 102"

func session(t *testing.T, env *testenv.Env, title string, start time.Time, guests ...string) *calendardomain.Event {
	t.Helper()
	attendees := make([]calendardomain.Attendee, 0, len(guests))
	for _, g := range guests {
		attendees = append(attendees, calendardomain.Attendee{Email: g})
	}
	event, err := env.Calendar.Create(context.Background(), calendardomain.CreateEventRequest{
		Title:     title,
		Start:     start,
		End:       start.Add(time.Hour),
		Attendees: attendees,
	})
	require.NoError(t, err)
	return event
}

func TestCreateNormalizesAttendees(t *testing.T) {
	env := testenv.New(t)
	event := session(t, env, training, testenv.Now.Add(24*time.Hour), "a@test.edu", "A@test.edu", "b@test.edu")

	assert.Equal(t, "lab@test.edu", event.CalendarID)
	require.Len(t, event.Attendees, 2)
	assert.Equal(t, calendardomain.StatusInvited, event.Attendees[0].Status)

	got, err := env.Calendar.Get(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, training, got.Title)
	assert.True(t, got.Start.Equal(event.Start))
	assert.Len(t, got.Attendees, 2)
}

func TestCreateRejectsInvalidEvents(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	_, err := env.Calendar.Create(ctx, calendardomain.CreateEventRequest{Title: " ", Start: testenv.Now, End: testenv.Now.Add(time.Hour)})
	assert.ErrorIs(t, err, calendardomain.ErrInvalidEvent)

	_, err = env.Calendar.Create(ctx, calendardomain.CreateEventRequest{Title: training, Start: testenv.Now, End: testenv.Now})
	assert.ErrorIs(t, err, calendardomain.ErrInvalidEvent)

	_, err = env.Calendar.Create(ctx, calendardomain.CreateEventRequest{
		Title:     training,
		Start:     testenv.Now,
		End:       testenv.Now.Add(time.Hour),
		Attendees: []calendardomain.Attendee{{Email: "a@test.edu", Status: "maybe"}},
	})
	assert.ErrorIs(t, err, calendardomain.ErrInvalidStatus)
}

func TestListEventsByWindowAndTitle(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()
	day := testenv.Now.Add(24 * time.Hour)

	first := session(t, env, training, day)
	second := session(t, env, training, day.Add(3*time.Hour))
	session(t, env, "Building Access: Give Access | User: Jane Doe", day.Add(time.Hour))
	session(t, env, training, day.Add(72*time.Hour))

	events, err := env.Calendar.ListEvents(ctx, calendardomain.Window{Start: day, End: day.Add(24 * time.Hour)}, training)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, second.ID, events[1].ID)

	all, err := env.Calendar.ListEvents(ctx, calendardomain.Window{Start: day, End: day.Add(24 * time.Hour)}, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Overlap, not containment.
	partial, err := env.Calendar.ListEvents(ctx, calendardomain.Window{Start: day.Add(30 * time.Minute), End: day.Add(45 * time.Minute)}, training)
	require.NoError(t, err)
	require.Len(t, partial, 1)
	assert.Equal(t, first.ID, partial[0].ID)

	_, err = env.Calendar.ListEvents(ctx, calendardomain.Window{Start: day, End: day}, "")
	assert.ErrorIs(t, err, calendardomain.ErrInvalidWindow)
}

func TestAddGuestIsIdempotent(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()
	event := session(t, env, training, testenv.Now.Add(24*time.Hour))

	added, err := env.Calendar.AddGuest(ctx, event.ID, "jane@test.edu")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = env.Calendar.AddGuest(ctx, event.ID, "JANE@test.edu")
	require.NoError(t, err)
	assert.False(t, added)

	got, err := env.Calendar.Get(ctx, event.ID)
	require.NoError(t, err)
	assert.Len(t, got.Attendees, 1)

	_, err = env.Calendar.AddGuest(ctx, event.ID, "")
	assert.ErrorIs(t, err, calendardomain.ErrInvalidGuest)

	_, err = env.Calendar.AddGuest(ctx, env.GenID.Generate(), "jane@test.edu")
	assert.ErrorIs(t, err, calendardomain.ErrEventNotFound)
}

func TestSetGuestStatus(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()
	event := session(t, env, training, testenv.Now.Add(24*time.Hour), "jane@test.edu")

	require.NoError(t, env.Calendar.SetGuestStatus(ctx, event.ID, "Jane@test.edu", calendardomain.StatusDeclined))
	got, err := env.Calendar.Get(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, calendardomain.StatusDeclined, got.Attendees[0].Status)

	assert.ErrorIs(t, env.Calendar.SetGuestStatus(ctx, event.ID, "bo@test.edu", calendardomain.StatusAccepted), calendardomain.ErrGuestNotFound)
	assert.ErrorIs(t, env.Calendar.SetGuestStatus(ctx, event.ID, "jane@test.edu", "maybe"), calendardomain.ErrInvalidStatus)
}

func TestSetAttendeesReplacesList(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()
	event := session(t, env, training, testenv.Now.Add(24*time.Hour), "jane@test.edu")

	updated, err := env.Calendar.SetAttendees(ctx, event.ID, []calendardomain.Attendee{
		{Email: "bo@test.edu", Status: calendardomain.StatusAccepted},
	})
	require.NoError(t, err)
	require.Len(t, updated.Attendees, 1)
	assert.False(t, updated.HasGuest("jane@test.edu"))
	assert.True(t, updated.HasGuest("BO@test.edu"))
}
