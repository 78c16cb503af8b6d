package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceWalksEveryPage(t *testing.T) {
	items := []string{"S001", "S002", "S003", "S004", "S005"}
	key := func(s string) string { return s }

	page, info, err := Slice(items, Pagination{PageSize: 2}, key)
	require.NoError(t, err)
	assert.Equal(t, []string{"S001", "S002"}, page)
	require.True(t, info.HasMore)

	page, info, err = Slice(items, Pagination{PageSize: 2, PageToken: info.NextPageToken}, key)
	require.NoError(t, err)
	assert.Equal(t, []string{"S003", "S004"}, page)
	require.True(t, info.HasMore)

	page, info, err = Slice(items, Pagination{PageSize: 2, PageToken: info.NextPageToken}, key)
	require.NoError(t, err)
	assert.Equal(t, []string{"S005"}, page)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestSliceRejectsUnknownCursor(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "N999"})
	require.NoError(t, err)

	_, _, err = Slice([]string{"S001"}, Pagination{PageToken: token}, func(s string) string { return s })
	assert.ErrorIs(t, err, ErrInvalidPageToken)

	_, _, err = Slice([]string{"S001"}, Pagination{PageToken: "%%%"}, func(s string) string { return s })
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}

func TestSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Size())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Size())
	assert.Equal(t, 7, Pagination{PageSize: 7}.Size())
}
