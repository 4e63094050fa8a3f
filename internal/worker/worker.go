// Package worker runs reconcile passes on a cron schedule so that documents left behind
// by deferred or interrupted migrations reach the active version of their schema.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/halopress/halopress/internal/cms"
	"github.com/halopress/halopress/internal/logging"
)

// Reconciler brings every schema's documents up to date
type Reconciler interface {
	ReconcileAll(ctx context.Context) ([]*cms.ReconcileReport, error)
}

// Worker schedules reconcile passes
type Worker struct {
	reconciler Reconciler
	schedule   string
	logger     *zap.Logger
	timeout    time.Duration

	cron *cron.Cron

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Worker
type Option func(*Worker)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

// WithTimeout bounds a single pass. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(w *Worker) { w.timeout = d }
}

// New creates a Worker running reconciler on schedule, a standard five-field cron
// expression or a descriptor such as "@every 5m"
func New(reconciler Reconciler, schedule string, opts ...Option) (*Worker, error) {
	w := &Worker{reconciler: reconciler, schedule: schedule}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logging.OrNop(w.logger).With(zap.String("system", "worker"))

	cronLogger := zapCronLogger{w.logger.Sugar()}
	w.cron = cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(
			recoverPanics(w.logger),
			cron.SkipIfStillRunning(cronLogger),
		),
	)
	if _, err := w.cron.AddJob(schedule, cron.FuncJob(w.tick)); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return w, nil
}

// Start begins scheduling passes. Passes run with a context derived from ctx.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.logger.Info("worker started", zap.String("schedule", w.schedule))
	w.cron.Start()
}

// Stop cancels a running pass and waits for it to return
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()

	<-w.cron.Stop().Done()
	w.logger.Info("worker stopped")
}

// Run starts the worker and blocks until ctx is done
func (w *Worker) Run(ctx context.Context) error {
	w.Start(ctx)
	<-ctx.Done()
	w.Stop()
	return nil
}

// Next returns the time of the next scheduled pass, or zero when not started
func (w *Worker) Next() time.Time {
	entries := w.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (w *Worker) tick() {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	_ = w.RunOnce(ctx)
}

// RunOnce performs a single reconcile pass and logs its outcome
func (w *Worker) RunOnce(ctx context.Context) error {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	logger := w.logger.With(zap.String("execution_id", uuid.NewString()))
	start := time.Now()
	logger.Debug("reconcile pass started")

	reports, err := w.reconciler.ReconcileAll(ctx)
	for _, r := range reports {
		fields := []zap.Field{
			zap.String("schema", r.SchemaKey),
			zap.Int("version", r.Version),
			zap.Int("upgraded", r.Upgraded()),
		}
		failed := 0
		for _, m := range r.Migrations {
			failed += m.Failed
		}
		if failed > 0 {
			logger.Warn("documents could not be upgraded", append(fields, zap.Int("failed", failed))...)
		} else if len(r.Migrations) > 0 {
			logger.Info("documents upgraded", fields...)
		}
	}
	if err != nil {
		logger.Error("reconcile pass failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return err
	}

	logger.Debug("reconcile pass finished", zap.Int("schemas", len(reports)), zap.Duration("duration", time.Since(start)))
	return nil
}

func recoverPanics(logger *zap.Logger) cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("reconcile pass panicked",
						zap.Any("panic", r),
						zap.ByteString("stack", debug.Stack()))
				}
			}()
			j.Run()
		})
	}
}

// zapCronLogger adapts zap to cron's logger interface
type zapCronLogger struct {
	s *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
