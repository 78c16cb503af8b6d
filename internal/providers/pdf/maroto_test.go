package pdf

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasketLabel(t *testing.T) {
	out, err := New().BasketLabel(context.Background(), BasketLabel{
		BasketID:  "S001",
		Zone:      "Cleanroom A",
		Assignee:  "Jane Doe",
		QRContent: `{"basket":"S001"}`,
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = New().BasketLabel(context.Background(), BasketLabel{})
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestBadgeSheetWithBlanks(t *testing.T) {
	out, err := New().BadgeSheet(context.Background(), []Badge{
		{Name: "Jane Doe", VCard: "BEGIN:VCARD\r\nVERSION:4.0\r\nFN:Jane Doe\r\nEND:VCARD"},
		{}, {},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = New().BadgeSheet(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestAccessForm(t *testing.T) {
	out, err := New().AccessForm(context.Background(), AccessForm{
		Title:     "Access Control Request",
		Fields:    []Field{{Label: "UT EID", Value: "jd1"}},
		Signature: "Lab Manager 2024-07-01",
		QRContent: `{"UT EID":"jd1"}`,
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
