package services

import (
	"context"

	"markscope/internal/snapshot"
)

// SnapshotSource provides the loaded coursework data. *snapshot.Loader
// satisfies it.
type SnapshotSource interface {
	Get(ctx context.Context) (*snapshot.Snapshot, error)
	Reload(ctx context.Context) (*snapshot.Snapshot, error)
	Current() (*snapshot.Snapshot, error)
}

// SnapshotInfo summarises a loaded snapshot.
type SnapshotInfo struct {
	Digest      string `json:"digest"`
	LoadedAt    string `json:"loaded_at"`
	Assignments int    `json:"assignments"`
	Excluded    int    `json:"excluded"`
	Modules     int    `json:"modules"`
	CourseYears int    `json:"course_years"`
}

func infoOf(snap *snapshot.Snapshot) SnapshotInfo {
	return SnapshotInfo{
		Digest:      snap.Digest,
		LoadedAt:    snap.LoadedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Assignments: len(snap.Assignments),
		Excluded:    snap.Excluded,
		Modules:     len(snap.Modules()),
		CourseYears: snap.CourseYears(),
	}
}
