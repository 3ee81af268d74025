package store_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kanti-proxy/kanti/internal/capture"
	"github.com/kanti-proxy/kanti/internal/store"
)

func TestAppendAndSnapshotOrdering(t *testing.T) {
	s := store.New(3)

	s.Append(capture.RequestDetails{ID: 1, Host: "a.test"})
	s.Append(capture.RequestDetails{ID: 2, Host: "b.test"})
	s.Append(capture.RequestDetails{ID: 3, Host: "c.test"})

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, int64(3), snap[0].ID)
	require.Equal(t, int64(2), snap[1].ID)
	require.Equal(t, int64(1), snap[2].ID)
}

func TestAppendEvictsOldestAtCapacity(t *testing.T) {
	s := store.New(2)

	s.Append(capture.RequestDetails{ID: 1})
	s.Append(capture.RequestDetails{ID: 2})
	s.Append(capture.RequestDetails{ID: 3})

	require.Equal(t, 2, s.Len())
	snap := s.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, int64(3), snap[0].ID)
	require.Equal(t, int64(2), snap[1].ID)
}

func TestUpdateByIDReplacesInPlace(t *testing.T) {
	s := store.New(4)
	s.Append(capture.RequestDetails{ID: 1, Host: "a.test"})

	ok := s.UpdateByID(1, capture.RequestDetails{ID: 1, Host: "a.test", Status: 200})
	require.True(t, ok)

	snap := s.Snapshot()
	require.Equal(t, 200, snap[0].Status)
}

func TestUpdateByIDReturnsFalseAfterEviction(t *testing.T) {
	s := store.New(1)
	s.Append(capture.RequestDetails{ID: 1})
	s.Append(capture.RequestDetails{ID: 2})

	ok := s.UpdateByID(1, capture.RequestDetails{ID: 1, Status: 500})
	require.False(t, ok)
}

func TestClearEmptiesStore(t *testing.T) {
	s := store.New(4)
	s.Append(capture.RequestDetails{ID: 1})
	s.Append(capture.RequestDetails{ID: 2})

	s.Clear()

	require.Equal(t, 0, s.Len())
	require.Empty(t, s.Snapshot())
}
