package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoinLatestPairsByURLID(t *testing.T) {
	t.Parallel()

	urls := []URL{{ID: 3, Name: "https://c.test"}, {ID: 2, Name: "https://b.test"}, {ID: 1, Name: "https://a.test"}}
	checks := []Check{
		{ID: 10, URLID: 3, StatusCode: 200},
		{ID: 7, URLID: 1, StatusCode: 500},
		{ID: 4, URLID: 1, StatusCode: 200},
		{ID: 99, URLID: 42, StatusCode: 200},
	}

	got := JoinLatest(urls, checks)

	require.Len(t, got, 3)
	require.Equal(t, int64(3), got[0].URL.ID)
	require.NotNil(t, got[0].LastCheck)
	require.Equal(t, int64(10), got[0].LastCheck.ID)
	require.Equal(t, int64(2), got[1].URL.ID)
	require.Nil(t, got[1].LastCheck, "unchecked url must not borrow a neighbour's check")
	require.NotNil(t, got[2].LastCheck)
	require.Equal(t, int64(7), got[2].LastCheck.ID)
	require.Equal(t, 500, got[2].LastCheck.StatusCode)
}

func TestJoinLatestEmpty(t *testing.T) {
	t.Parallel()

	require.Empty(t, JoinLatest(nil, []Check{{ID: 1, URLID: 1}}))
}
