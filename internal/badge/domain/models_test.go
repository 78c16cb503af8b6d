package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPad(t *testing.T) {
	assert.Empty(t, Pad(nil))
	assert.Len(t, Pad(make([]Badge, 1)), 3)
	assert.Len(t, Pad(make([]Badge, 3)), 3)
	padded := Pad([]Badge{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}})
	assert.Len(t, padded, 6)
	assert.Equal(t, Badge{}, padded[5])
}
