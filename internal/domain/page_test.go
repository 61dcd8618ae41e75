package domain_test

import (
	"testing"

	"github.com/netgrid/netgrid/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestNewPage(t *testing.T) {
	t.Parallel()

	page := domain.NewPage([]int{1, 2, 3}, 10, 0, 3)
	require.Equal(t, int64(1), page.Page)
	require.Equal(t, int64(4), page.Pages)
	require.Equal(t, int64(3), page.Size)

	page = domain.NewPage([]int{4, 5, 6}, 10, 3, 3)
	require.Equal(t, int64(2), page.Page)

	page = domain.NewPage[int](nil, 0, 0, 0)
	require.NotNil(t, page.Items)
	require.Empty(t, page.Items)
	require.Equal(t, int64(100), page.Size)
	require.Zero(t, page.Pages)
}
