// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package results

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"grimm.is/gwemu/internal/stats"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStartRunAssignsIncrementingIDs(t *testing.T) {
	s := openTestStore(t)

	id1, uuid1, err := s.StartRun("run1.hcl", time.Unix(1000, 0))
	require.NoError(t, err)
	id2, uuid2, err := s.StartRun("run2.hcl", time.Unix(2000, 0))
	require.NoError(t, err)

	require.Greater(t, id2, id1)
	require.NotEqual(t, uuid1, uuid2)
	require.NotEmpty(t, uuid1)
}

func TestRecordAndQueryStreamHistory(t *testing.T) {
	s := openTestStore(t)
	runID, _, err := s.StartRun("run.hcl", time.Unix(1000, 0))
	require.NoError(t, err)

	records := []stats.Record{
		{Name: "up-1", Direction: "up", FlowID: 7, RXPackets: 100, TXPackets: 100, RXLoss: 1, RXPPS: 10, TXPPS: 10, TXBpsL2: 1000, RXBpsL2: 1000, RXBpsL3: 900},
	}
	require.NoError(t, s.RecordSnapshots(runID, time.Unix(1001, 0), records))
	require.NoError(t, s.RecordSnapshots(runID, time.Unix(1002, 0), records))

	history, err := s.StreamHistory(runID, "up-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, uint64(7), history[0].FlowID)
}

func TestRunSummaryAggregatesLatestSnapshotPerStream(t *testing.T) {
	s := openTestStore(t)
	runID, runUUID, err := s.StartRun("run.hcl", time.Unix(1000, 0))
	require.NoError(t, err)

	require.NoError(t, s.RecordSnapshots(runID, time.Unix(1001, 0), []stats.Record{
		{Name: "up-1", Direction: "up", RXPackets: 50, RXLoss: 1},
	}))
	require.NoError(t, s.RecordSnapshots(runID, time.Unix(1002, 0), []stats.Record{
		{Name: "up-1", Direction: "up", RXPackets: 100, RXLoss: 2},
		{Name: "down-1", Direction: "down", RXPackets: 30, RXLoss: 0},
	}))

	sum, err := s.RunSummary(runID)
	require.NoError(t, err)
	require.Equal(t, 2, sum.StreamCount)
	require.Equal(t, uint64(130), sum.TotalRXPacket)
	require.Equal(t, uint64(2), sum.TotalRXLoss)
	require.Equal(t, runUUID, sum.RunUUID)
}

func TestRecordSnapshotsNoOpOnEmptyBatch(t *testing.T) {
	s := openTestStore(t)
	runID, _, err := s.StartRun("run.hcl", time.Unix(1000, 0))
	require.NoError(t, err)
	require.NoError(t, s.RecordSnapshots(runID, time.Unix(1001, 0), nil))
}
