package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/analytics"
	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"
	"github.com/Brownbull/gabeda-backend/internal/common/cnst"
	"github.com/Brownbull/gabeda-backend/internal/common/config"
	"github.com/Brownbull/gabeda-backend/internal/ledger"
	"github.com/Brownbull/gabeda-backend/internal/publisher"
	"github.com/Brownbull/gabeda-backend/internal/storage"
	"github.com/Brownbull/gabeda-backend/pkg/metrics"
	"github.com/Brownbull/gabeda-backend/pkg/trace"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// DuplicateError is returned when the tenant already ingested the same content
type DuplicateError struct {
	AttemptID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("file already uploaded as %s", e.AttemptID)
}

func (e *DuplicateError) Unwrap() error { return cnst.ErrDuplicateUpload }

// Upload is a file accepted for ingestion
type Upload struct {
	TenantID   uint
	UploaderID uint
	FileName   string
	Content    []byte
}

// Orchestrator drives attempts through pending, processing and a terminal status.
// It is the only component that changes an attempt's status.
type Orchestrator struct {
	db        database.Database
	files     storage.Storage
	ledger    *ledger.Writer
	engine    *analytics.Engine
	publisher *publisher.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	cfg       config.PipelineConfig
	layouts   []string
	now       func() time.Time
}

// Deps are the collaborators of an Orchestrator. Metrics may be nil.
type Deps struct {
	DB        database.Database
	Files     storage.Storage
	Ledger    *ledger.Writer
	Engine    *analytics.Engine
	Publisher *publisher.Publisher
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

func NewOrchestrator(deps Deps, cfg config.PipelineConfig) *Orchestrator {
	var layouts []string
	for _, f := range cfg.DateFormats {
		layouts = append(layouts, DateLayout(f))
	}
	if cfg.MaxRejectionSamples <= 0 {
		cfg.MaxRejectionSamples = 50
	}
	return &Orchestrator{
		db:        deps.DB,
		files:     deps.Files,
		ledger:    deps.Ledger,
		engine:    deps.Engine,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    deps.Logger.Named("ingest.orchestrator"),
		cfg:       cfg,
		layouts:   layouts,
		now:       time.Now,
	}
}

// Upload stores the file and creates a pending attempt for it
func (o *Orchestrator) Upload(ctx context.Context, up Upload) (*database.Attempt, error) {
	if _, err := o.db.GetTenantByID(ctx, up.TenantID); err != nil {
		return nil, err
	}

	fingerprint := Fingerprint(up.Content)
	if cnst.DuplicatePolicy(o.cfg.DuplicatePolicy) != cnst.DuplicateAllow {
		existing, err := o.db.FindAttemptByFingerprint(ctx, up.TenantID, fingerprint)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, &DuplicateError{AttemptID: existing.ID}
		}
	}

	id := uuid.NewString()
	ref := storage.ObjectName(up.TenantID, id, up.FileName, o.now())
	if err := o.files.Save(ctx, ref, bytes.NewReader(up.Content)); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	attempt := &database.Attempt{
		ID:          id,
		TenantID:    up.TenantID,
		UploaderID:  up.UploaderID,
		FileName:    up.FileName,
		FileRef:     ref,
		FileSize:    int64(len(up.Content)),
		Fingerprint: fingerprint,
		Status:      database.AttemptPending,
	}
	if err := o.db.CreateAttempt(ctx, attempt); err != nil {
		if derr := o.files.Delete(context.WithoutCancel(ctx), ref); derr != nil {
			o.logger.Warn("failed to remove orphaned upload", zap.String("file_ref", ref), zap.Error(derr))
		}
		return nil, err
	}

	o.logger.Info("upload accepted",
		zap.String("attempt_id", attempt.ID),
		zap.Uint("tenant_id", attempt.TenantID),
		zap.String("file_ref", ref),
		zap.Int64("size", attempt.FileSize))
	return attempt, nil
}

// Submit creates a pending attempt for a file already held by the file provider
func (o *Orchestrator) Submit(ctx context.Context, tenantID, uploaderID uint, fileRef, fileName string) (string, error) {
	if _, err := o.db.GetTenantByID(ctx, tenantID); err != nil {
		return "", err
	}
	if fileName == "" {
		fileName = fileRef
	}
	attempt := &database.Attempt{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		UploaderID: uploaderID,
		FileName:   fileName,
		FileRef:    fileRef,
		Status:     database.AttemptPending,
	}
	if err := o.db.CreateAttempt(ctx, attempt); err != nil {
		return "", err
	}
	o.logger.Info("attempt submitted",
		zap.String("attempt_id", attempt.ID),
		zap.Uint("tenant_id", tenantID),
		zap.String("file_ref", fileRef))
	return attempt.ID, nil
}

// Reprocess deletes the attempt's ledger records and puts it back to pending.
// Results already published stay as history.
func (o *Orchestrator) Reprocess(ctx context.Context, attemptID string) error {
	return o.db.Transaction(ctx, func(ctx context.Context) error {
		if _, err := o.ledger.Purge(ctx, attemptID); err != nil {
			return err
		}
		empty := ""
		err := o.db.TransitionAttempt(ctx, attemptID,
			[]database.AttemptStatus{database.AttemptCompleted, database.AttemptFailed},
			database.AttemptUpdate{
				Status:       database.AttemptPending,
				ErrorMessage: &empty,
				Metadata:     datatypes.JSON("null"),
			})
		if err != nil {
			return err
		}
		o.logger.Info("attempt reset for reprocessing", zap.String("attempt_id", attemptID))
		return nil
	})
}

// run is the mutable state of one Process call
type run struct {
	attempt  *database.Attempt
	started  time.Time
	meta     database.AttemptMetadata
	rowCount int
	first    *time.Time
	last     *time.Time
}

// Process runs a pending attempt to a terminal status. It returns the cause
// when the attempt failed; the failure is already recorded on the attempt.
func (o *Orchestrator) Process(ctx context.Context, attemptID string) (err error) {
	attempt, err := o.db.GetAttempt(ctx, database.SystemScope(), attemptID)
	if err != nil {
		return err
	}

	r := &run{attempt: attempt, started: o.now()}
	startedAt := r.started
	err = o.db.TransitionAttempt(ctx, attemptID, []database.AttemptStatus{database.AttemptPending},
		database.AttemptUpdate{Status: database.AttemptProcessing, ProcessingStartedAt: &startedAt})
	if err != nil {
		return err
	}
	o.metrics.AttemptStart()
	o.logger.Info("attempt processing",
		zap.String("attempt_id", attemptID),
		zap.Uint("tenant_id", attempt.TenantID),
		zap.String("status", string(database.AttemptProcessing)))

	scope := trace.Tracer(cnst.TraceIngest).Start(ctx, cnst.SpanAttemptProcess).
		WithAttrs(
			attribute.String(cnst.AttrAttemptID, attemptID),
			attribute.Int64(cnst.AttrTenantID, int64(attempt.TenantID)),
		)
	defer scope.End()
	ctx = scope.Ctx

	defer func() {
		if p := recover(); p != nil {
			o.logger.Error("attempt panicked",
				zap.String("attempt_id", attemptID),
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("internal error: %v", p)
			o.fail(ctx, r, err)
		}
		if err != nil {
			scope.WithAttrs(attribute.String(cnst.AttrErrorReason, err.Error())).Fail(err)
		}
	}()

	runCtx := ctx
	if o.cfg.ProcessingTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.ProcessingTimeout)
		defer cancel()
	}

	if err = o.execute(runCtx, r); err != nil {
		if runCtx.Err() != nil && ctx.Err() == nil {
			err = fmt.Errorf("processing exceeded %s: %w", o.cfg.ProcessingTimeout, err)
		}
		o.fail(ctx, r, err)
		return err
	}
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run) error {
	a := r.attempt

	table, err := stage(ctx, o, cnst.SpanStageLoad, func(ctx context.Context) (*Table, error) {
		rc, err := o.files.Load(ctx, a.FileRef)
		if err != nil {
			return nil, fmt.Errorf("file %s unreadable: %w", a.FileRef, err)
		}
		defer rc.Close()
		return DecodeCSV(rc)
	})
	if err != nil {
		return err
	}
	r.rowCount = len(table.Rows)

	tenant, err := o.db.GetTenantByID(ctx, a.TenantID)
	if err != nil {
		return err
	}

	columns, err := stage(ctx, o, cnst.SpanStageMap, func(ctx context.Context) (*ColumnMap, error) {
		return ResolveColumns(tenant.Columns(), table.Header)
	})
	if err != nil {
		return err
	}

	records, err := stage(ctx, o, cnst.SpanStageNormalize, func(ctx context.Context) ([]*database.Transaction, error) {
		records, rejections := Partition(NewNormalizer(columns, tenant.DateFormat, o.layouts).Normalize(table))
		r.meta.RejectedRows = len(rejections)
		for _, rej := range rejections[:min(len(rejections), o.cfg.MaxRejectionSamples)] {
			r.meta.Rejections = append(r.meta.Rejections, rej.Diagnostic())
		}
		o.metrics.RowsProcessed(len(records), len(rejections))
		oteltrace.SpanFromContext(ctx).SetAttributes(
			attribute.Int(cnst.AttrRowsAccepted, len(records)),
			attribute.Int(cnst.AttrRowsRejected, len(rejections)),
		)
		if len(records) == 0 {
			if len(rejections) == 0 {
				return nil, fmt.Errorf("%w: file has a header but no data rows", cnst.ErrNoValidRows)
			}
			return nil, fmt.Errorf("%w: all %d data rows were rejected, first: %s",
				cnst.ErrNoValidRows, len(rejections), rejections[0].Error())
		}
		return records, nil
	})
	if err != nil {
		return err
	}
	for _, rec := range records {
		if r.first == nil || rec.Date.Before(*r.first) {
			d := rec.Date
			r.first = &d
		}
		if r.last == nil || rec.Date.After(*r.last) {
			d := rec.Date
			r.last = &d
		}
	}

	written, err := stage(ctx, o, cnst.SpanStageWrite, func(ctx context.Context) (int, error) {
		return o.ledger.Write(ctx, a.TenantID, a.ID, records)
	})
	if err != nil {
		return err
	}
	r.meta.TransactionsCreated = written

	report, err := stage(ctx, o, cnst.SpanStageAnalyze, func(ctx context.Context) (*analytics.Report, error) {
		snapshot, err := o.ledger.Snapshot(ctx, a.TenantID)
		if err != nil {
			return nil, err
		}
		report, err := o.engine.Compute(ctx, tenant, snapshot)
		if err != nil {
			return nil, err
		}
		oteltrace.SpanFromContext(ctx).SetAttributes(attribute.Bool(cnst.AttrFallback, report.Mock))
		return report, nil
	})
	if err != nil {
		return err
	}
	if report.Mock {
		o.metrics.FallbackUsed()
	}
	r.meta.FallbackAnalytics = report.Mock

	_, err = stage(ctx, o, cnst.SpanStagePublish, func(ctx context.Context) (int, error) {
		// results and the completed status commit together
		err := o.db.Transaction(ctx, func(ctx context.Context) error {
			results, err := o.publisher.Publish(ctx, a.TenantID, &a.ID, report)
			if err != nil {
				return err
			}
			r.meta.ResultsCreated = len(results)
			return o.complete(ctx, r)
		})
		return r.meta.ResultsCreated, err
	})
	if err != nil {
		return err
	}

	o.metrics.AttemptDone(string(database.AttemptCompleted), r.started)
	o.logger.Info("attempt completed",
		zap.String("attempt_id", a.ID),
		zap.Uint("tenant_id", a.TenantID),
		zap.String("status", string(database.AttemptCompleted)),
		zap.Int("transactions_created", r.meta.TransactionsCreated),
		zap.Int("rejected_rows", r.meta.RejectedRows),
		zap.Int("results_created", r.meta.ResultsCreated),
		zap.Bool("fallback_analytics", r.meta.FallbackAnalytics))
	return nil
}

func (o *Orchestrator) complete(ctx context.Context, r *run) error {
	done := o.now()
	r.meta.ProcessingTimeSeconds = done.Sub(r.started).Seconds()
	meta, err := database.EncodeMetadata(&r.meta)
	if err != nil {
		return err
	}
	rowCount := r.rowCount
	err = o.db.TransitionAttempt(ctx, r.attempt.ID, []database.AttemptStatus{database.AttemptProcessing},
		database.AttemptUpdate{
			Status:                database.AttemptCompleted,
			Metadata:              meta,
			RowCount:              &rowCount,
			AnalysisStartDate:     r.first,
			AnalysisEndDate:       r.last,
			ProcessingCompletedAt: &done,
		})
	if err != nil {
		return &ledger.StorageError{Op: "complete attempt", Err: err}
	}
	return nil
}

// fail records cause on the attempt and removes its ledger records. It runs
// even when ctx was cancelled.
func (o *Orchestrator) fail(ctx context.Context, r *run, cause error) {
	ctx = context.WithoutCancel(ctx)
	a := r.attempt

	if _, err := o.ledger.Purge(ctx, a.ID); err != nil {
		o.logger.Error("failed to purge ledger of failed attempt", zap.String("attempt_id", a.ID), zap.Error(err))
	}

	done := o.now()
	r.meta.TransactionsCreated = 0
	r.meta.ResultsCreated = 0
	r.meta.ProcessingTimeSeconds = done.Sub(r.started).Seconds()
	msg := cause.Error()
	update := database.AttemptUpdate{
		Status:                database.AttemptFailed,
		ErrorMessage:          &msg,
		RowCount:              &r.rowCount,
		ProcessingCompletedAt: &done,
	}
	if meta, err := database.EncodeMetadata(&r.meta); err == nil {
		update.Metadata = meta
	}

	err := o.db.TransitionAttempt(ctx, a.ID, []database.AttemptStatus{database.AttemptProcessing}, update)
	switch {
	case errors.Is(err, cnst.ErrInvalidTransition):
		o.logger.Warn("attempt was already terminated elsewhere", zap.String("attempt_id", a.ID), zap.Error(cause))
	case err != nil:
		o.logger.Error("failed to record attempt failure", zap.String("attempt_id", a.ID), zap.Error(err))
	}

	o.metrics.AttemptDone(string(database.AttemptFailed), r.started)
	o.logger.Warn("attempt failed",
		zap.String("attempt_id", a.ID),
		zap.Uint("tenant_id", a.TenantID),
		zap.String("status", string(database.AttemptFailed)),
		zap.Error(cause))
}

// stage runs fn under its own span and records its duration
func stage[T any](ctx context.Context, o *Orchestrator, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	scope := trace.Tracer(cnst.TraceIngest).Start(ctx, name)
	defer scope.End()
	start := time.Now()
	v, err := fn(scope.Ctx)
	scope.Fail(err)
	o.metrics.StageDone(name, start, err)
	return v, err
}
