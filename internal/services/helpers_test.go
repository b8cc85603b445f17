package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"markscope/internal/charts"
	"markscope/internal/render"
	"markscope/internal/shared/testutil"
	"markscope/internal/snapshot"
)

// MockSnapshotSource is a mock implementation of SnapshotSource
type MockSnapshotSource struct {
	mock.Mock
}

func (m *MockSnapshotSource) Get(ctx context.Context) (*snapshot.Snapshot, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*snapshot.Snapshot), args.Error(1)
}

func (m *MockSnapshotSource) Reload(ctx context.Context) (*snapshot.Snapshot, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*snapshot.Snapshot), args.Error(1)
}

func (m *MockSnapshotSource) Current() (*snapshot.Snapshot, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*snapshot.Snapshot), args.Error(1)
}

func sampleLoader(t *testing.T) (*snapshot.Loader, testutil.DataFiles) {
	t.Helper()
	files := testutil.WriteSampleData(t)
	logger, _ := testutil.NewTestLogger(t)
	return snapshot.NewLoader(snapshot.Config{
		AssignmentsPath: files.Assignments,
		MemberPath:      files.Member,
	}, logger), files
}

func newChartService(t *testing.T, source SnapshotSource, opts ...ChartServiceOption) *ChartService {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return NewChartService(
		source,
		charts.NewAssembler(charts.DefaultOptions(), logger),
		render.NewRenderer(render.Size{Width: 640, Height: 480}, logger),
		logger,
		opts...,
	)
}

var _ SnapshotSource = (*snapshot.Loader)(nil)
