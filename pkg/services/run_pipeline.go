package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/models"
	"github.com/reconlab/recon-engine/pkg/services/workqueue"
)

// Stage names recorded on the run's progress trace, in pipeline order.
const (
	StageIngestSource   = "ingest_source"
	StageIngestTarget   = "ingest_target"
	StageProposeMapping = "propose_mapping"
	StageValidate       = "validate"
	StageCompare        = "compare"
	StageProfile        = "profile"
	StageAggregate      = "aggregate"
	StageExport         = "export"
)

// reconcileTask runs the pipeline from ingestion through report assembly.
// It is an io-class task: wall time is dominated by reading the two
// sources. Export runs as a follow-up compute task so a slow workbook
// render does not hold an io slot.
type reconcileTask struct {
	workqueue.BaseTask
	svc   *runService
	runID uuid.UUID
}

func newReconcileTask(svc *runService, runID uuid.UUID) *reconcileTask {
	return &reconcileTask{
		BaseTask: workqueue.NewBaseTask(fmt.Sprintf("reconcile %s", runID), workqueue.TaskClassIO),
		svc:      svc,
		runID:    runID,
	}
}

func (t *reconcileTask) Execute(ctx context.Context, enqueuer workqueue.TaskEnqueuer) (err error) {
	entry, ok := t.svc.entry(t.runID)
	if !ok {
		// Evicted between submit and execution; nothing left to update.
		return nil
	}
	runCtx, cancel, ok := entry.start(ctx)
	if !ok {
		entry.finish(models.RunCancelled, nil)
		return nil
	}
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
			entry.finish(models.RunFailed, err)
			t.svc.logger.Error("pipeline panicked",
				zap.String("run_id", t.runID.String()),
				zap.Any("panic", r))
		}
	}()

	return t.svc.settle(entry, t.runID, t.svc.executePipeline(runCtx, entry, t.runID, enqueuer))
}

// settle maps a pipeline error onto the run's terminal status and onto the
// error the queue sees. Cancellation is a clean outcome for the run but
// still reported to the queue so the task lands in its cancelled bucket.
func (s *runService) settle(entry *runEntry, runID uuid.UUID, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		entry.finish(models.RunCancelled, nil)
		s.logger.Info("run cancelled", zap.String("run_id", runID.String()))
		return context.Canceled
	}
	entry.finish(models.RunFailed, err)
	s.logger.Error("run failed", zap.String("run_id", runID.String()), zap.Error(err))
	return err
}

// executePipeline drives the stages up to the export hand-off. A mapping
// that fails validation finishes the run as validation_failed and returns
// nil: that is a reconciliation verdict, not an infrastructure failure.
func (s *runService) executePipeline(ctx context.Context, entry *runEntry, runID uuid.UUID, enqueuer workqueue.TaskEnqueuer) error {
	def := entry.definition()
	opts := def.Options.Normalized()

	entry.beginStage(StageIngestSource)
	source, err := s.ingest(ctx, def.Source)
	entry.endStage(err)
	if err != nil {
		return fmt.Errorf("ingest source: %w", err)
	}

	entry.beginStage(StageIngestTarget)
	target, err := s.ingest(ctx, def.Target)
	entry.endStage(err)
	if err != nil {
		return fmt.Errorf("ingest target: %w", err)
	}

	entry.beginStage(StageProposeMapping)
	mapping := s.matcher.Propose(source.ColumnNames(), target.ColumnNames(), opts.MatchThreshold)
	if len(def.Mapping) > 0 {
		mapping = mapping.Merge(def.Mapping)
	}
	entry.endStage(nil)

	entry.beginStage(StageValidate)
	verdict := s.validator.Validate(source, target, mapping, def.JoinColumns)
	entry.setValidation(&verdict)
	entry.endStage(nil)
	if !verdict.OK {
		entry.finish(models.RunValidationFailed, errors.New("mapping validation failed"))
		s.logger.Info("run rejected by mapping validation",
			zap.String("run_id", runID.String()),
			zap.Int("failures", len(verdict.Failures)))
		return nil
	}

	entry.beginStage(StageCompare)
	result, err := s.engine.Compare(ctx, source, target, mapping, def.JoinColumns, opts)
	entry.endStage(err)
	if err != nil {
		return fmt.Errorf("compare: %w", err)
	}

	var profiles *models.ReportProfiles
	if opts.Profile {
		entry.beginStage(StageProfile)
		profiles, err = s.profileBoth(ctx, source, target, opts)
		entry.endStage(err)
		if err != nil {
			return fmt.Errorf("profile: %w", err)
		}
	}

	entry.beginStage(StageAggregate)
	report := BuildReport(ReportParams{
		RunID:        runID,
		Name:         def.Name,
		Source:       source,
		SourceReader: def.Source.Type,
		Target:       target,
		TargetReader: def.Target.Type,
		Mapping:      mapping,
		JoinColumns:  def.JoinColumns,
		Options:      opts,
		Result:       result,
		Profiles:     profiles,
	})
	entry.setReport(report)
	entry.endStage(nil)

	s.logger.Info("comparison finished",
		zap.String("run_id", runID.String()),
		zap.String("verdict", string(report.Summary.OverallStatus)),
		zap.Int("matched_rows", result.MatchedRows),
		zap.Int("columns_with_mismatches", report.Summary.ColumnsWithMismatches))

	enqueuer.Enqueue(newExportTask(s, runID))
	return nil
}

func (s *runService) ingest(ctx context.Context, spec models.ReaderSpec) (*models.Dataset, error) {
	r, err := s.factory.NewReader(spec, s.logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil {
			s.logger.Warn("reader close failed",
				zap.String("reader", spec.Type),
				zap.Error(cerr))
		}
	}()
	return r.Read(ctx)
}

func (s *runService) profileBoth(ctx context.Context, source, target *models.Dataset, opts models.RunOptions) (*models.ReportProfiles, error) {
	sourceProfile, err := s.profiler.Profile(ctx, source, opts)
	if err != nil {
		return nil, err
	}
	targetProfile, err := s.profiler.Profile(ctx, target, opts)
	if err != nil {
		return nil, err
	}
	return &models.ReportProfiles{Source: *sourceProfile, Target: *targetProfile}, nil
}

// exportTask renders the report artifacts after the pipeline succeeds.
type exportTask struct {
	workqueue.BaseTask
	svc   *runService
	runID uuid.UUID
}

func newExportTask(svc *runService, runID uuid.UUID) *exportTask {
	return &exportTask{
		BaseTask: workqueue.NewBaseTask(fmt.Sprintf("export %s", runID), workqueue.TaskClassCompute),
		svc:      svc,
		runID:    runID,
	}
}

func (t *exportTask) Execute(ctx context.Context, _ workqueue.TaskEnqueuer) (err error) {
	entry, ok := t.svc.entry(t.runID)
	if !ok {
		return nil
	}
	runCtx, cancel, ok := entry.start(ctx)
	if !ok {
		// Cancelled in the gap between the pipeline and this task.
		entry.finish(models.RunCancelled, nil)
		return nil
	}
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("export panic: %v", r)
			entry.finish(models.RunFailed, err)
			t.svc.logger.Error("export panicked",
				zap.String("run_id", t.runID.String()),
				zap.Any("panic", r))
		}
	}()

	return t.svc.settle(entry, t.runID, t.svc.exportArtifacts(runCtx, entry, t.runID))
}

func (s *runService) exportArtifacts(ctx context.Context, entry *runEntry, runID uuid.UUID) error {
	def := entry.definition()
	report := entry.report()
	if report == nil {
		return errors.New("export scheduled without a report")
	}

	entry.beginStage(StageExport)
	artifacts := make(map[string]string, len(def.Export.Formats))
	for _, format := range def.Export.Formats {
		// Rendering does not watch the context, so check between formats.
		if err := ctx.Err(); err != nil {
			entry.endStage(err)
			return err
		}
		path, err := s.renderArtifact(def.Export.Dir, report, format)
		if err != nil {
			entry.endStage(err)
			return fmt.Errorf("export %s: %w", format, err)
		}
		artifacts[format] = path
	}
	entry.recordArtifacts(artifacts)
	entry.endStage(nil)
	entry.finish(models.RunCompleted, nil)

	s.logger.Info("run completed",
		zap.String("run_id", runID.String()),
		zap.String("verdict", string(report.Summary.OverallStatus)),
		zap.Int("artifacts", len(artifacts)))
	return nil
}

func (e *runEntry) report() *models.Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run.Report
}
