package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSession(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	s, err := ParseSession("2024-07-02 | 10:00 to 11:30", chicago)
	require.NoError(t, err)
	assert.True(t, s.Start.Equal(time.Date(2024, 7, 2, 15, 0, 0, 0, time.UTC)))
	assert.True(t, s.End.Equal(time.Date(2024, 7, 2, 16, 30, 0, 0, time.UTC)))
	assert.Equal(t, "2024-07-02 | 10:00 to 11:30", FormatSession(s.Start, s.End, chicago))

	for _, bad := range []string{"", "2024-07-02", "2024-07-02 | 10:00", "2024-07-02 | 11:00 to 10:00", "2024-13-02 | 10:00 to 11:00"} {
		_, err := ParseSession(bad, time.UTC)
		assert.ErrorIs(t, err, ErrInvalidSession, bad)
	}
}
