package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
	"github.com/reconlab/recon-engine/pkg/apperrors"
	"github.com/reconlab/recon-engine/pkg/config"
	"github.com/reconlab/recon-engine/pkg/export"
	"github.com/reconlab/recon-engine/pkg/models"
	"github.com/reconlab/recon-engine/pkg/services/workqueue"
)

// RunService owns the lifecycle of reconciliation runs: accepted
// definitions become queued pipeline tasks, their status and stage trace
// stay queryable while they execute, and finished runs keep their report
// and export artifacts until evicted. The registry is in-process; only
// export artifacts survive a restart.
type RunService interface {
	// Submit validates a run definition, registers a pending run and
	// queues its pipeline. The returned run is a snapshot.
	Submit(def models.RunDefinition) (*models.Run, error)

	// List returns snapshots of all retained runs, newest first.
	List() []*models.Run

	// Get returns a snapshot of one run.
	Get(id uuid.UUID) (*models.Run, error)

	// Cancel requests cancellation of a pending or running run.
	Cancel(id uuid.UUID) error

	// Report returns the report of a completed run.
	Report(id uuid.UUID) (*models.Report, error)

	// ExportArtifact returns the path of the run's artifact in the given
	// format, rendering it first if the run did not already export it.
	ExportArtifact(id uuid.UUID, format string) (string, error)

	// WaitForRun blocks until the run reaches a terminal status and
	// returns its final snapshot.
	WaitForRun(ctx context.Context, id uuid.UUID) (*models.Run, error)

	// Shutdown cancels queued and running work.
	Shutdown()
}

type runService struct {
	factory   reader.Factory
	matcher   ColumnMatcher
	validator MappingValidator
	engine    ComparisonEngine
	profiler  ProfileService
	exporter  export.Exporter
	queue     *workqueue.Queue
	retain    int
	logger    *zap.Logger

	mu      sync.Mutex
	entries map[uuid.UUID]*runEntry
	order   []uuid.UUID
}

// runEntry pairs a run with its live control state. The entry mutex guards
// every mutable run field; the service mutex only guards the registry.
type runEntry struct {
	mu        sync.Mutex
	run       *models.Run
	cancel    context.CancelFunc
	cancelReq bool
	artifacts map[string]string
	done      chan struct{}
}

// NewRunService creates the run manager. The queue throttles concurrent
// pipelines at cfg.MaxConcurrent. Failed pipelines are not re-enqueued:
// readers already retry transient source errors internally, and re-running
// a pipeline would replay its status transitions.
func NewRunService(
	factory reader.Factory,
	matcher ColumnMatcher,
	validator MappingValidator,
	engine ComparisonEngine,
	profiler ProfileService,
	exporter export.Exporter,
	cfg config.RunsConfig,
	logger *zap.Logger,
) RunService {
	log := logger.Named("run-service")
	queue := workqueue.New(log,
		workqueue.WithStrategy(workqueue.NewThrottledIOStrategy(cfg.MaxConcurrent)),
	)
	return &runService{
		factory:   factory,
		matcher:   matcher,
		validator: validator,
		engine:    engine,
		profiler:  profiler,
		exporter:  exporter,
		queue:     queue,
		retain:    cfg.RetainLimit,
		logger:    log,
		entries:   make(map[uuid.UUID]*runEntry),
	}
}

func (s *runService) Submit(def models.RunDefinition) (*models.Run, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	for _, spec := range []models.ReaderSpec{def.Source, def.Target} {
		if !reader.IsRegistered(spec.Type) {
			return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownReader, spec.Type)
		}
	}
	formats, err := normalizeFormats(def.Export.Formats)
	if err != nil {
		return nil, err
	}
	def.Export.Formats = formats

	run := &models.Run{
		ID:         uuid.New(),
		Name:       def.Name,
		Status:     models.RunPending,
		Definition: def,
		CreatedAt:  time.Now().UTC(),
	}
	entry := &runEntry{
		run:       run,
		artifacts: make(map[string]string),
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	s.entries[run.ID] = entry
	s.order = append(s.order, run.ID)
	s.evictLocked()
	s.mu.Unlock()

	s.logger.Info("run submitted",
		zap.String("run_id", run.ID.String()),
		zap.String("name", def.Name),
		zap.String("source", def.Source.Type),
		zap.String("target", def.Target.Type))

	s.queue.Enqueue(newReconcileTask(s, run.ID))
	return entry.snapshot(), nil
}

// normalizeFormats lowercases and deduplicates export formats, rejecting
// unknown ones before a long pipeline gets queued. An empty list defaults
// to a JSON artifact so every completed run leaves something on disk.
func normalizeFormats(formats []string) ([]string, error) {
	if len(formats) == 0 {
		return []string{export.FormatJSON}, nil
	}
	known := make(map[string]bool, 3)
	for _, f := range export.Formats() {
		known[f] = true
	}
	out := make([]string, 0, len(formats))
	seen := make(map[string]bool, len(formats))
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if !known[f] {
			return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownFormat, f)
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out, nil
}

func (s *runService) List() []*models.Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs := make([]*models.Run, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		if entry, ok := s.entries[s.order[i]]; ok {
			runs = append(runs, entry.snapshot())
		}
	}
	return runs
}

func (s *runService) Get(id uuid.UUID) (*models.Run, error) {
	entry, ok := s.entry(id)
	if !ok {
		return nil, fmt.Errorf("%w: run %s", apperrors.ErrNotFound, id)
	}
	return entry.snapshot(), nil
}

func (s *runService) Cancel(id uuid.UUID) error {
	entry, ok := s.entry(id)
	if !ok {
		return fmt.Errorf("%w: run %s", apperrors.ErrNotFound, id)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.run.Status.Terminal() {
		return fmt.Errorf("%w: run %s is %s", apperrors.ErrRunNotCancellable, id, entry.run.Status)
	}
	entry.cancelReq = true
	if entry.cancel != nil {
		// The pipeline is executing; its context unwinds the stages.
		entry.cancel()
		return nil
	}
	// Not picked up by the queue yet, nothing to unwind.
	entry.finishLocked(models.RunCancelled, nil)
	return nil
}

func (s *runService) Report(id uuid.UUID) (*models.Report, error) {
	entry, ok := s.entry(id)
	if !ok {
		return nil, fmt.Errorf("%w: run %s", apperrors.ErrNotFound, id)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.run.Status != models.RunCompleted || entry.run.Report == nil {
		return nil, fmt.Errorf("%w: run %s is %s", apperrors.ErrRunNotFinished, id, entry.run.Status)
	}
	return entry.run.Report, nil
}

func (s *runService) ExportArtifact(id uuid.UUID, format string) (string, error) {
	entry, ok := s.entry(id)
	if !ok {
		return "", fmt.Errorf("%w: run %s", apperrors.ErrNotFound, id)
	}
	format = strings.ToLower(strings.TrimSpace(format))

	entry.mu.Lock()
	if entry.run.Status != models.RunCompleted || entry.run.Report == nil {
		status := entry.run.Status
		entry.mu.Unlock()
		return "", fmt.Errorf("%w: run %s is %s", apperrors.ErrRunNotFinished, id, status)
	}
	if path, ok := entry.artifacts[format]; ok {
		entry.mu.Unlock()
		return path, nil
	}
	report := entry.run.Report
	dir := entry.run.Definition.Export.Dir
	entry.mu.Unlock()

	// Render outside the entry lock; workbook building is not cheap.
	path, err := s.renderArtifact(dir, report, format)
	if err != nil {
		return "", err
	}

	entry.mu.Lock()
	entry.artifacts[format] = path
	entry.run.ExportPaths = append(entry.run.ExportPaths, path)
	entry.mu.Unlock()
	return path, nil
}

func (s *runService) renderArtifact(dir string, report *models.Report, format string) (string, error) {
	if dir != "" {
		return s.exporter.ExportInto(dir, report, format)
	}
	return s.exporter.Export(report, format)
}

func (s *runService) WaitForRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	entry, ok := s.entry(id)
	if !ok {
		return nil, fmt.Errorf("%w: run %s", apperrors.ErrNotFound, id)
	}
	select {
	case <-entry.done:
		return entry.snapshot(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *runService) Shutdown() {
	s.queue.Cancel()
}

func (s *runService) entry(id uuid.UUID) (*runEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	return entry, ok
}

// evictLocked drops the oldest terminal runs once the registry exceeds the
// retain limit. Live runs are never evicted, even over the limit.
func (s *runService) evictLocked() {
	if s.retain <= 0 {
		return
	}
	for len(s.order) > s.retain {
		evicted := false
		for i, id := range s.order {
			entry, ok := s.entries[id]
			if !ok {
				s.order = append(s.order[:i], s.order[i+1:]...)
				evicted = true
				break
			}
			entry.mu.Lock()
			terminal := entry.run.Status.Terminal()
			entry.mu.Unlock()
			if terminal {
				delete(s.entries, id)
				s.order = append(s.order[:i], s.order[i+1:]...)
				s.logger.Debug("run evicted", zap.String("run_id", id.String()))
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}

// start arms per-run cancellation and marks the run running on its first
// call. ok is false when cancellation arrived before the task did.
func (e *runEntry) start(parent context.Context) (context.Context, context.CancelFunc, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancelReq || e.run.Status.Terminal() {
		return nil, nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	e.cancel = cancel
	if e.run.Status == models.RunPending {
		e.run.Status = models.RunRunning
		now := time.Now().UTC()
		e.run.StartedAt = &now
	}
	return ctx, cancel, true
}

func (e *runEntry) beginStage(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.run.Stage = name
	e.run.Stages = append(e.run.Stages, models.StageProgress{
		Name:      name,
		StartedAt: time.Now().UTC(),
	})
}

func (e *runEntry) endStage(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.run.Stages) == 0 {
		return
	}
	last := &e.run.Stages[len(e.run.Stages)-1]
	now := time.Now().UTC()
	last.FinishedAt = &now
	if err != nil {
		last.Error = err.Error()
	}
}

func (e *runEntry) setValidation(result *models.ValidationResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.run.Validation = result
}

func (e *runEntry) setReport(report *models.Report) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.run.Report = report
}

func (e *runEntry) recordArtifacts(paths map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for format, path := range paths {
		e.artifacts[format] = path
		e.run.ExportPaths = append(e.run.ExportPaths, path)
	}
}

func (e *runEntry) definition() models.RunDefinition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run.Definition
}

func (e *runEntry) finish(status models.RunStatus, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finishLocked(status, err)
}

// finishLocked records the terminal status once; later calls no-op so a
// cancelled pipeline cannot overwrite an already-final run.
func (e *runEntry) finishLocked(status models.RunStatus, err error) {
	if e.run.Status.Terminal() {
		return
	}
	e.run.Status = status
	e.run.Stage = ""
	now := time.Now().UTC()
	e.run.FinishedAt = &now
	if err != nil && status != models.RunCancelled {
		e.run.Error = err.Error()
	}
	close(e.done)
}

// snapshot copies the run for callers outside the service. Slices are
// copied; the definition, validation verdict, and report are immutable
// once set and stay shared.
func (e *runEntry) snapshot() *models.Run {
	e.mu.Lock()
	defer e.mu.Unlock()

	run := *e.run
	run.Stages = append([]models.StageProgress(nil), e.run.Stages...)
	run.ExportPaths = append([]string(nil), e.run.ExportPaths...)
	return &run
}
