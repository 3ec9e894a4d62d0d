package teamsync_test

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/teamsync/pkg/teamsync"
)

func report(id, name, position, ts string) teamsync.PositionInput {
	return teamsync.PositionInput{
		ClientID:    id,
		DisplayName: name,
		Position:    json.RawMessage(position),
		ReportedAt:  ts,
	}
}

func TestPositionRegistry_EmptySnapshot(t *testing.T) {
	registry := teamsync.NewPositionRegistry()

	snapshot := registry.Snapshot()
	assert.NotNil(t, snapshot)
	assert.Empty(t, snapshot)
	assert.Equal(t, 0, registry.Len())
}

func TestPositionRegistry_UpsertAndSnapshot(t *testing.T) {
	registry := teamsync.NewPositionRegistry()

	ack, err := registry.Upsert(report("a", "Alice", `{"easting":674000.0,"northing":6580000.0}`, "2025-03-27T10:30:00Z"))
	require.NoError(t, err)
	assert.Equal(t, "a", ack.ClientID)

	assert.Equal(t, []teamsync.PositionRecord{{
		ClientID:    "a",
		DisplayName: "Alice",
		Position:    teamsync.Position{Easting: 674000.0, Northing: 6580000.0},
		ReportedAt:  "2025-03-27T10:30:00Z",
	}}, registry.Snapshot())
}

func TestPositionRegistry_LastWriteWins(t *testing.T) {
	registry := teamsync.NewPositionRegistry()

	_, err := registry.Upsert(report("a", "Alice", `{"easting":1,"northing":2}`, "2025-03-27T10:30:00Z"))
	require.NoError(t, err)
	// older timestamp still overwrites: arrival order decides
	_, err = registry.Upsert(report("a", "Alice B.", `{"easting":3,"northing":4}`, "2020-01-01T00:00:00Z"))
	require.NoError(t, err)

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, teamsync.PositionRecord{
		ClientID:    "a",
		DisplayName: "Alice B.",
		Position:    teamsync.Position{Easting: 3, Northing: 4},
		ReportedAt:  "2020-01-01T00:00:00Z",
	}, snapshot[0])
}

func TestPositionRegistry_RejectedReportLeavesRecord(t *testing.T) {
	registry := teamsync.NewPositionRegistry()

	_, err := registry.Upsert(report("a", "Alice", `{"easting":1,"northing":2}`, "t1"))
	require.NoError(t, err)

	_, err = registry.Upsert(report("a", "Mallory", `{"easting":"x","northing":1}`, "t2"))
	require.Error(t, err)
	assert.ErrorIs(t, err, teamsync.ErrNonNumericCoordinate)
	assert.True(t, teamsync.IsValidationError(err))

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "Alice", snapshot[0].DisplayName)
	assert.Equal(t, "t1", snapshot[0].ReportedAt)
}

func TestPositionRegistry_SnapshotIsACopy(t *testing.T) {
	registry := teamsync.NewPositionRegistry()
	_, err := registry.Upsert(report("a", "Alice", `{"easting":1,"northing":2}`, "t1"))
	require.NoError(t, err)

	snapshot := registry.Snapshot()
	snapshot[0].DisplayName = "changed"
	snapshot[0].Position.Easting = 99

	again := registry.Snapshot()
	assert.Equal(t, "Alice", again[0].DisplayName)
	assert.Equal(t, 1.0, again[0].Position.Easting)
}

func TestPositionRegistry_SnapshotOrderedByClientID(t *testing.T) {
	registry := teamsync.NewPositionRegistry()
	for _, id := range []string{"c", "a", "b"} {
		_, err := registry.Upsert(report(id, "n-"+id, `{"easting":1,"northing":2}`, "t"))
		require.NoError(t, err)
	}

	var ids []string
	for _, r := range registry.Snapshot() {
		ids = append(ids, r.ClientID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestPositionRegistry_ConcurrentClients(t *testing.T) {
	registry := teamsync.NewPositionRegistry()
	const clients = 100
	const reports = 50

	var wg sync.WaitGroup
	for c := 0; c < clients; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			id := fmt.Sprintf("client-%03d", c)
			for i := 0; i < reports; i++ {
				pos := fmt.Sprintf(`{"easting":%d,"northing":%d}`, c*1000+i, i)
				if _, err := registry.Upsert(report(id, fmt.Sprintf("%s-%d", id, i), pos, fmt.Sprintf("t%d", i))); err != nil {
					t.Errorf("upsert %s: %v", id, err)
				}
			}
		}(c)
	}

	// snapshots taken mid-flight must never show a torn record
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			for _, r := range registry.Snapshot() {
				var c, n int
				if _, err := fmt.Sscanf(r.DisplayName, "client-%03d-%d", &c, &n); err != nil {
					t.Errorf("unexpected name %q", r.DisplayName)
					continue
				}
				if r.Position.Easting != float64(c*1000+n) || r.Position.Northing != float64(n) || r.ReportedAt != fmt.Sprintf("t%d", n) {
					t.Errorf("torn record %+v", r)
				}
			}
		}
	}()

	wg.Wait()
	<-done

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, clients)
	for c, r := range snapshot {
		id := fmt.Sprintf("client-%03d", c)
		assert.Equal(t, id, r.ClientID)
		assert.Equal(t, fmt.Sprintf("%s-%d", id, reports-1), r.DisplayName)
		assert.Equal(t, teamsync.Position{Easting: float64(c*1000 + reports - 1), Northing: reports - 1}, r.Position)
		assert.Equal(t, fmt.Sprintf("t%d", reports-1), r.ReportedAt)
	}
}
