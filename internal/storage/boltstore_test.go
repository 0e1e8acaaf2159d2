// internal/storage/boltstore_test.go
package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testIncident(alertID string, created int64, severity int) *Incident {
	return &Incident{
		AlertID:  alertID,
		Name:     "Alert " + alertID,
		Occurred: time.Unix(created, 0).UTC().Format("2006-01-02T15:04:05.000Z"),
		Severity: severity,
		Created:  created,
		RawJSON:  fmt.Sprintf(`{"alert_id":%q,"created":%d}`, alertID, created),
	}
}

func TestSaveAndGetIncident(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	incidents := []*Incident{
		testIncident("a1", 1000, 3),
		testIncident("a2", 1001, 1),
	}
	require.NoError(t, store.SaveIncidents(ctx, incidents))

	assert.NotEmpty(t, incidents[0].ID, "IDs must be assigned on save")
	assert.False(t, incidents[0].IngestedAt.IsZero())

	got, err := store.GetIncident(ctx, incidents[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "a1", got.AlertID)
	assert.Equal(t, int64(1000), got.Created)

	_, err = store.GetIncident(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetIncidentsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveIncidents(ctx, []*Incident{
		testIncident("a1", 1000, 2),
		testIncident("a3", 3000, 2),
		testIncident("a2", 2000, 2),
	}))

	incidents, err := store.GetIncidents(ctx, IncidentFilters{})
	require.NoError(t, err)
	require.Len(t, incidents, 3)
	assert.Equal(t, "a3", incidents[0].AlertID)
	assert.Equal(t, "a2", incidents[1].AlertID)
	assert.Equal(t, "a1", incidents[2].AlertID)
}

func TestGetIncidentsFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveIncidents(ctx, []*Incident{
		testIncident("low-old", 1000, 1),
		testIncident("high-old", 1100, 3),
		testIncident("low-new", 2000, 1),
		testIncident("crit-new", 2100, 4),
	}))

	t.Run("min severity", func(t *testing.T) {
		incidents, err := store.GetIncidents(ctx, IncidentFilters{MinSeverity: 3})
		require.NoError(t, err)
		require.Len(t, incidents, 2)
		assert.Equal(t, "crit-new", incidents[0].AlertID)
		assert.Equal(t, "high-old", incidents[1].AlertID)
	})

	t.Run("since", func(t *testing.T) {
		since := time.Unix(2000, 0)
		incidents, err := store.GetIncidents(ctx, IncidentFilters{Since: &since})
		require.NoError(t, err)
		require.Len(t, incidents, 2)
		assert.Equal(t, "crit-new", incidents[0].AlertID)
		assert.Equal(t, "low-new", incidents[1].AlertID)
	})

	t.Run("limit", func(t *testing.T) {
		incidents, err := store.GetIncidents(ctx, IncidentFilters{Limit: 1})
		require.NoError(t, err)
		require.Len(t, incidents, 1)
		assert.Equal(t, "crit-new", incidents[0].AlertID)
	})
}

func TestMarkForwarded(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	incidents := []*Incident{
		testIncident("a1", 1000, 2),
		testIncident("a2", 1001, 2),
	}
	require.NoError(t, store.SaveIncidents(ctx, incidents))

	require.NoError(t, store.MarkForwarded(ctx, []string{incidents[0].ID, "missing"}))

	got, err := store.GetIncident(ctx, incidents[0].ID)
	require.NoError(t, err)
	assert.True(t, got.Forwarded)

	got, err = store.GetIncident(ctx, incidents[1].ID)
	require.NoError(t, err)
	assert.False(t, got.Forwarded)
}

func TestCheckpoint(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ts, err := store.GetCheckpoint(ctx)
	require.NoError(t, err)
	assert.Zero(t, ts, "fresh store has no checkpoint")

	require.NoError(t, store.SetCheckpoint(ctx, 1700000000))

	ts, err = store.GetCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), ts)
}

func TestPurgeIncidentsBefore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := testIncident("old", 1000, 2)
	old.IngestedAt = time.Now().Add(-48 * time.Hour)
	fresh := testIncident("fresh", 2000, 2)

	require.NoError(t, store.SaveIncidents(ctx, []*Incident{old, fresh}))

	deleted, err := store.PurgeIncidentsBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = store.GetIncident(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	incidents, err := store.GetIncidents(ctx, IncidentFilters{})
	require.NoError(t, err)
	require.Len(t, incidents, 1)
	assert.Equal(t, "fresh", incidents[0].AlertID)
}

func TestFetchRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	for i := 0; i < 3; i++ {
		run := &FetchRun{
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
			Incidents:  i,
			Checkpoint: 1000 + int64(i),
		}
		require.NoError(t, store.SaveFetchRun(ctx, run))
		assert.NotEmpty(t, run.ID)
	}

	runs, err := store.GetFetchRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 2, runs[0].Incidents, "newest run first")
	assert.Equal(t, 1, runs[1].Incidents)
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveIncidents(ctx, []*Incident{
		testIncident("a1", 1000, 2),
		testIncident("a2", 3000, 2),
	}))
	require.NoError(t, store.SaveFetchRun(ctx, &FetchRun{StartedAt: time.Now()}))
	require.NoError(t, store.SetCheckpoint(ctx, 3000))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Incidents)
	assert.Equal(t, 1, stats.FetchRuns)
	assert.Equal(t, int64(3000), stats.Checkpoint)
	require.NotNil(t, stats.OldestIncident)
	require.NotNil(t, stats.NewestIncident)
	assert.Equal(t, int64(1000), stats.OldestIncident.Unix())
	assert.Equal(t, int64(3000), stats.NewestIncident.Unix())
	assert.Greater(t, stats.SizeBytes, int64(0))
}

func TestCompactKeepsData(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	incidents := []*Incident{testIncident("a1", 1000, 2)}
	require.NoError(t, store.SaveIncidents(ctx, incidents))
	require.NoError(t, store.SetCheckpoint(ctx, 1000))

	require.NoError(t, store.Compact(ctx))

	got, err := store.GetIncident(ctx, incidents[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "a1", got.AlertID)

	ts, err := store.GetCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), ts)
}

// Compaction swaps the underlying database handle; writes arriving while the
// swap is in flight must block on it rather than race it.
func TestCompactConcurrentWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const writes = 50
	saveErr := make(chan error, 1)
	go func() {
		for i := 0; i < writes; i++ {
			incident := testIncident(fmt.Sprintf("a%d", i), int64(1000+i), 2)
			if err := store.SaveIncidents(ctx, []*Incident{incident}); err != nil {
				saveErr <- err
				return
			}
		}
		saveErr <- nil
	}()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Compact(ctx))
	}
	require.NoError(t, <-saveErr)

	incidents, err := store.GetIncidents(ctx, IncidentFilters{})
	require.NoError(t, err)
	assert.Len(t, incidents, writes, "no write may be lost across a handle swap")

	require.NoError(t, store.Compact(ctx))
	incidents, err = store.GetIncidents(ctx, IncidentFilters{})
	require.NoError(t, err)
	assert.Len(t, incidents, writes)
}
