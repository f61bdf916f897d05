package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotTableRows(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	table := snapshotTable{{
		ID: "snap-1", VolumeID: "vol-1", VolumeSize: 8, State: "completed", StartTime: start, Description: "test",
	}}

	assert.Equal(t, []string{"ID", "VOLUME", "SIZE", "STATE", "STARTED", "DESCRIPTION"}, table.Headers())
	rows := table.Rows()
	require := assert.New(t)
	require.Len(rows, 1)
	require.Equal("snap-1", rows[0][0])
	require.Equal("vol-1", rows[0][1])
	require.Equal("8.00GiB", rows[0][2])
}
