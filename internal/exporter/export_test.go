package exporter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"markscope/internal/shared/testutil"
	"markscope/internal/snapshot"
)

func sampleSnapshot(t *testing.T) *snapshot.Snapshot {
	t.Helper()
	files := testutil.WriteSampleData(t)
	logger, _ := testutil.NewTestLogger(t)
	snap, err := snapshot.NewLoader(snapshot.Config{
		AssignmentsPath: files.Assignments,
		MemberPath:      files.Member,
	}, logger).Get(context.Background())
	require.NoError(t, err)
	return snap
}

func noon(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}
