package pagination

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	require.Equal(t, Page{Page: 1, Limit: 10}, Page{}.Normalize())
	require.Equal(t, Page{Page: 3, Limit: 100}, Page{Page: 3, Limit: 500}.Normalize())
	require.Equal(t, Page{Page: 1, Limit: 25}, Page{Page: -2, Limit: 25}.Normalize())
}

func TestOffset(t *testing.T) {
	require.Equal(t, 0, Page{Page: 1, Limit: 20}.Offset())
	require.Equal(t, 40, Page{Page: 3, Limit: 20}.Offset())
}

func TestBuildPageInfo(t *testing.T) {
	info := BuildPageInfo(Page{Page: 1, Limit: 10}, 25)
	require.Equal(t, 3, info.TotalPages)
	require.True(t, info.HasMore)

	info = BuildPageInfo(Page{Page: 3, Limit: 10}, 25)
	require.False(t, info.HasMore)

	info = BuildPageInfo(Page{Page: 1, Limit: 10}, 0)
	require.Equal(t, 0, info.TotalPages)
	require.False(t, info.HasMore)
}
