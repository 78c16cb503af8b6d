package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)
	for _, in := range []string{"2024-05-10 09:30:00", "2024-05-10T09:30:00Z", "5/10/2024 09:30:00"} {
		got, ok := ParseTimestamp(in, nil)
		assert.True(t, ok, in)
		assert.True(t, want.Equal(got), in)
	}
	_, ok := ParseTimestamp("", nil)
	assert.False(t, ok)
	_, ok = ParseTimestamp("not a date", nil)
	assert.False(t, ok)
}

func TestBoolCells(t *testing.T) {
	assert.Equal(t, "TRUE", FormatBool(true))
	assert.True(t, ParseBool(" true "))
	assert.False(t, ParseBool("FALSE"))
	assert.False(t, ParseBool(""))
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Jane Doe", FullName(" Jane", "Doe "))
	assert.Equal(t, "Jane", FullName("Jane", ""))
}

func TestTableLookups(t *testing.T) {
	table := &Table{
		Headers: []string{"Basket ID", "Cleanroom"},
		Rows: []Row{
			{Number: 2, Cells: []string{"S001", "Cleanroom A"}},
			{Number: 3, Cells: []string{"N001", "Cleanroom B"}},
		},
	}
	row, ok := table.FindRow("Basket ID", " N001 ")
	assert.True(t, ok)
	assert.Equal(t, 3, row.Number)
	assert.Equal(t, "Cleanroom B", row.Get(table.Index(), "Cleanroom"))
	assert.Equal(t, 3, table.LastRow())

	_, ok = table.FindRow("Missing", "x")
	assert.False(t, ok)
}
