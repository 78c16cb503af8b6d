package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConsole(t *testing.T) {
	log, err := NewConsole("")
	require.NoError(t, err)
	assert.NotNil(t, log)

	_, err = NewConsole("loud")
	assert.Error(t, err)
}
