package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/nvr-ai/go-linecount/counter"
	"github.com/nvr-ai/go-linecount/images"
	"github.com/nvr-ai/go-linecount/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path, logs.NewTestingLog(t))
	require.NoError(t, err)
	return s
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "events.sqlite"))
	defer s.Close()

	session, err := s.StartSession(ctx, "traffic.mp4", counter.PolicyPreviousFrame)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, session.ID)

	crossings := []counter.Crossing{
		{Frame: 3, Category: models.VehicleCar, Class: 2, Score: 0.75, Center: images.Point{X: 10, Y: 280}},
		{Frame: 3, Category: models.VehicleTruck, Class: 7, Score: 0.5, Center: images.Point{X: 200, Y: 270}},
		{Frame: 9, Category: models.VehicleCar, Class: 2, Score: 0.875, Center: images.Point{X: 40, Y: 290}},
	}
	require.NoError(t, s.RecordCrossings(ctx, session.ID, crossings[:2]))
	require.NoError(t, s.RecordCrossings(ctx, session.ID, nil))
	require.NoError(t, s.RecordCrossings(ctx, session.ID, crossings[2:]))
	require.NoError(t, s.EndSession(ctx, session.ID, 12))

	got, err := s.Crossings(ctx, session.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(crossings, got); diff != "" {
		t.Errorf("crossings mismatch (-want +got):\n%s", diff)
	}

	totals, err := s.Totals(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, counter.Counts{2, 0, 0, 1}, totals)

	loaded, err := s.Session(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "traffic.mp4", loaded.Source)
	assert.Equal(t, "previous-frame", loaded.Policy)
	assert.Equal(t, uint64(12), loaded.Frames)
	assert.Equal(t, session.StartedAt.UnixNano(), loaded.StartedAt.UnixNano())
	assert.False(t, loaded.EndedAt.IsZero())
}

func TestSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "events.sqlite"))
	defer s.Close()

	a, err := s.StartSession(ctx, "camera:0", counter.PolicyAlwaysCount)
	require.NoError(t, err)
	b, err := s.StartSession(ctx, "camera:0", counter.PolicyAlwaysCount)
	require.NoError(t, err)

	require.NoError(t, s.RecordCrossings(ctx, a.ID, []counter.Crossing{{Category: models.VehicleBus, Class: 5}}))

	totals, err := s.Totals(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, counter.Counts{}, totals)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "events.sqlite")

	s := openStore(t, path)
	session, err := s.StartSession(ctx, "clip.avi", counter.PolicyPreviousFrame)
	require.NoError(t, err)
	require.NoError(t, s.RecordCrossings(ctx, session.ID, []counter.Crossing{{Category: models.VehicleMotorcycle, Class: 3}}))
	require.NoError(t, s.Close())

	s = openStore(t, path)
	defer s.Close()

	totals, err := s.Totals(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), totals.Get(models.VehicleMotorcycle))
}

func TestUnknownSession(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "events.sqlite"))
	defer s.Close()

	_, err := s.Session(ctx, uuid.New())
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	err = s.EndSession(ctx, uuid.New(), 1)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}
