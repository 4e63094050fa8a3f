package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/halopress/halopress/internal/cms"
	"github.com/halopress/halopress/internal/migrate"
)

type fakeReconciler struct {
	calls   atomic.Int32
	reports []*cms.ReconcileReport
	err     error
	panics  bool
}

func (f *fakeReconciler) ReconcileAll(ctx context.Context) ([]*cms.ReconcileReport, error) {
	f.calls.Add(1)
	if f.panics {
		panic("boom")
	}
	return f.reports, f.err
}

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestNew_RejectsInvalidSchedule(t *testing.T) {
	_, err := New(&fakeReconciler{}, "every now and then")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
}

func TestRunOnce_LogsUpgradesAndFailures(t *testing.T) {
	logger, logs := observed()
	rec := &fakeReconciler{reports: []*cms.ReconcileReport{
		{SchemaKey: "article", Version: 2, Migrations: map[int]*migrate.Report{1: {Updated: 3}}},
		{SchemaKey: "product", Version: 5, Migrations: map[int]*migrate.Report{4: {Updated: 1, Failed: 2}}},
		{SchemaKey: "page", Version: 1},
	}}
	w, err := New(rec, "@every 1h", WithLogger(logger))
	require.NoError(t, err)

	require.NoError(t, w.RunOnce(context.Background()))

	upgraded := logs.FilterMessage("documents upgraded").All()
	require.Len(t, upgraded, 1)
	assert.Equal(t, "article", upgraded[0].ContextMap()["schema"])
	assert.EqualValues(t, 3, upgraded[0].ContextMap()["upgraded"])

	failed := logs.FilterMessage("documents could not be upgraded").All()
	require.Len(t, failed, 1)
	assert.EqualValues(t, 2, failed[0].ContextMap()["failed"])
}

func TestRunOnce_ReturnsReconcileError(t *testing.T) {
	logger, logs := observed()
	rec := &fakeReconciler{err: errors.New("database is locked")}
	w, err := New(rec, "@every 1h", WithLogger(logger))
	require.NoError(t, err)

	err = w.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("reconcile pass failed").Len())
}

func TestRunOnce_AppliesTimeout(t *testing.T) {
	var deadline bool
	rec := reconcilerFunc(func(ctx context.Context) ([]*cms.ReconcileReport, error) {
		_, deadline = ctx.Deadline()
		return nil, nil
	})
	w, err := New(rec, "@every 1h", WithTimeout(time.Minute))
	require.NoError(t, err)

	require.NoError(t, w.RunOnce(context.Background()))
	assert.True(t, deadline)
}

func TestScheduledJob_RecoversPanics(t *testing.T) {
	logger, logs := observed()
	rec := &fakeReconciler{panics: true}
	w, err := New(rec, "@every 1h", WithLogger(logger))
	require.NoError(t, err)

	entries := w.cron.Entries()
	require.Len(t, entries, 1)
	assert.NotPanics(t, func() { entries[0].WrappedJob.Run() })
	assert.EqualValues(t, 1, rec.calls.Load())
	assert.Equal(t, 1, logs.FilterMessage("reconcile pass panicked").Len())
}

func TestRun_StopsWhenContextIsDone(t *testing.T) {
	w, err := New(&fakeReconciler{}, "@every 1h")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return !w.Next().IsZero() }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

type reconcilerFunc func(ctx context.Context) ([]*cms.ReconcileReport, error)

func (f reconcilerFunc) ReconcileAll(ctx context.Context) ([]*cms.ReconcileReport, error) {
	return f(ctx)
}
