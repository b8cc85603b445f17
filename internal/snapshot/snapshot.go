package snapshot

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"markscope/internal/records"
)

// ErrNotLoaded is returned by Current before the first successful load.
var ErrNotLoaded = errors.New("snapshot not loaded")

// Snapshot is an immutable view of both collections. It is shared by every
// render and must not be modified.
type Snapshot struct {
	Assignments []records.AssignmentRecord
	Excluded    int
	Course      records.Course
	// Digest identifies the exact input bytes; it changes whenever either file does.
	Digest   string
	LoadedAt time.Time
}

// CourseStart is the first day of the course.
func (s *Snapshot) CourseStart() time.Time { return s.Course.Start }

// CourseYears is the number of academic years the course spans.
func (s *Snapshot) CourseYears() int { return s.Course.Years }

// Modules returns the module registrations across all course details.
func (s *Snapshot) Modules() []records.ModuleRecord { return s.Course.Modules }

// Config names the two input files.
type Config struct {
	AssignmentsPath string
	MemberPath      string
}

// Option configures a Loader.
type Option func(*Loader)

// WithTracer traces loads with tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(l *Loader) { l.tracer = tracer }
}

// WithLoadObserver is called after every load attempt with its outcome.
func WithLoadObserver(fn func(ctx context.Context, err error)) Option {
	return func(l *Loader) { l.observe = fn }
}

// Loader reads the snapshot once and serves it until Reload.
type Loader struct {
	cfg     Config
	logger  *slog.Logger
	tracer  trace.Tracer
	observe func(ctx context.Context, err error)
	now     func() time.Time

	group   singleflight.Group
	current atomic.Pointer[Snapshot]
}

// NewLoader creates a loader for the files in cfg. Nothing is read until the
// first Get.
func NewLoader(cfg Config, logger *slog.Logger, opts ...Option) *Loader {
	l := &Loader{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "snapshot_loader")),
		tracer:  noop.NewTracerProvider().Tracer("snapshot"),
		observe: func(context.Context, error) {},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Get returns the loaded snapshot, loading it on first use. Concurrent first
// calls share a single load.
func (l *Loader) Get(ctx context.Context) (*Snapshot, error) {
	if s := l.current.Load(); s != nil {
		return s, nil
	}
	return l.loadShared(ctx, false)
}

// Reload re-reads both files and atomically replaces the snapshot. On failure
// the previous snapshot stays in place.
func (l *Loader) Reload(ctx context.Context) (*Snapshot, error) {
	return l.loadShared(ctx, true)
}

// Current returns the loaded snapshot without triggering a load.
func (l *Loader) Current() (*Snapshot, error) {
	if s := l.current.Load(); s != nil {
		return s, nil
	}
	return nil, ErrNotLoaded
}

// loadShared runs one load per key at a time. The load is detached from the
// cancellation of whichever caller started it; each caller stops waiting when
// its own ctx ends.
func (l *Loader) loadShared(ctx context.Context, force bool) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := "load"
	if force {
		key = "reload"
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key, func() (interface{}, error) {
		if !force {
			// A concurrent load may have finished while this call waited
			if s := l.current.Load(); s != nil {
				return s, nil
			}
		}
		s, err := l.load(loadCtx)
		if err != nil {
			return nil, err
		}
		l.current.Store(s)
		return s, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			l.logger.DebugContext(ctx, "joined in-flight snapshot load", slog.String("key", key))
		}
		return res.Val.(*Snapshot), nil
	}
}

func (l *Loader) load(ctx context.Context) (snap *Snapshot, err error) {
	ctx, span := l.tracer.Start(ctx, "snapshot.load",
		trace.WithAttributes(
			attribute.String("snapshot.assignments_path", l.cfg.AssignmentsPath),
			attribute.String("snapshot.member_path", l.cfg.MemberPath),
		))
	start := l.now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			l.logger.ErrorContext(ctx, "snapshot load failed", slog.String("error", err.Error()))
		}
		l.observe(ctx, err)
		span.End()
	}()

	var (
		assignments records.Assignments
		course      records.Course
		rawA, rawM  []byte
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := readFile(gctx, l.cfg.AssignmentsPath)
		if err != nil {
			return fmt.Errorf("failed to read assignments: %w", err)
		}
		parsed, err := records.ParseAssignments(bytes.NewReader(data))
		if err != nil {
			return err
		}
		rawA, assignments = data, parsed
		return nil
	})
	g.Go(func() error {
		data, err := readFile(gctx, l.cfg.MemberPath)
		if err != nil {
			return fmt.Errorf("failed to read member: %w", err)
		}
		parsed, err := records.ParseCourse(bytes.NewReader(data))
		if err != nil {
			return err
		}
		rawM, course = data, parsed
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap = &Snapshot{
		Assignments: assignments.Records,
		Excluded:    assignments.Excluded,
		Course:      course,
		Digest:      digest(rawA, rawM),
		LoadedAt:    l.now(),
	}

	span.SetAttributes(
		attribute.Int("snapshot.assignments", len(snap.Assignments)),
		attribute.Int("snapshot.excluded", snap.Excluded),
		attribute.Int("snapshot.modules", len(snap.Course.Modules)),
		attribute.String("snapshot.digest", snap.Digest),
	)
	l.logger.InfoContext(ctx, "snapshot loaded",
		slog.Int("assignments", len(snap.Assignments)),
		slog.Int("excluded", snap.Excluded),
		slog.Int("modules", len(snap.Course.Modules)),
		slog.Int("course_years", snap.Course.Years),
		slog.String("digest", snap.Digest),
		slog.Duration("duration", snap.LoadedAt.Sub(start)))

	return snap, nil
}

func readFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// digest hashes both inputs, length-prefixed so the boundary between them is
// unambiguous.
func digest(assignments, member []byte) string {
	h, _ := blake2b.New256(nil)
	for _, part := range [][]byte{assignments, member} {
		fmt.Fprintf(h, "%d:", len(part))
		h.Write(part)
	}
	return hex.EncodeToString(h.Sum(nil))
}
