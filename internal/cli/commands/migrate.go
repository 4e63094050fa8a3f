package commands

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/halopress/halopress/internal/cli/ui"
	"github.com/halopress/halopress/internal/cms"
	"github.com/halopress/halopress/internal/worker"
)

var (
	summariesAllFlag   bool
	workerOnceFlag     bool
	workerScheduleFlag string
	workerTimeoutFlag  time.Duration
)

// NewMigrateCommand creates the migrate command
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [schema]",
		Short: "Upgrade documents left on older schema versions",
		Long: `Move every document still on an older version of its schema to the active
version, applying the kind changes between the two, then build missing summaries.
Without a schema every schema with an active version is reconciled.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if len(args) == 1 {
				report, err := a.svc.Reconcile(ctx, args[0])
				if report != nil {
					if emitErr := a.emit(report, func() { a.printer.Reconcile(report) }); emitErr != nil {
						return emitErr
					}
				}
				if err != nil {
					return a.schemaError(ctx, args[0], err)
				}
				return nil
			}

			reports, err := a.svc.ReconcileAll(ctx)
			if emitErr := a.emit(reports, func() {
				for _, r := range reports {
					a.printer.Reconcile(r)
				}
			}); emitErr != nil {
				return emitErr
			}
			return err
		},
		ValidArgsFunction: completeSchemaKeys,
	}
}

// NewResyncCommand creates the resync command
func NewResyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resync <schema>",
		Short: "Regenerate the projections of every document of a schema",
		Long: `Rewrite the search field configs of a schema from its active version and
regenerate the references, search entries and summary of each of its documents.
Document bodies are not changed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.svc.Resync(cmd.Context(), args[0])
			if report != nil {
				if emitErr := a.emit(report, func() { a.printer.Resync(report) }); emitErr != nil {
					return emitErr
				}
			}
			if err != nil {
				return a.schemaError(cmd.Context(), args[0], err)
			}
			return nil
		},
		ValidArgsFunction: completeSchemaKeys,
	}
}

// NewSummariesCommand creates the summaries command
func NewSummariesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summaries [schema]",
		Short: "Build document summaries",
		Long: `Build the summary of every document that has none, or of every document with
--all. Without a schema the documents of every schema are visited.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			schemaKey := ""
			if len(args) == 1 {
				schemaKey = args[0]
			}
			report, err := a.svc.SyncSummaries(cmd.Context(), schemaKey, !summariesAllFlag)
			if err != nil {
				return err
			}
			return a.emit(report, func() { a.printer.Summaries(report) })
		},
		ValidArgsFunction: completeSchemaKeys,
	}

	cmd.Flags().BoolVar(&summariesAllFlag, "all", false, "Rebuild summaries that already exist")

	return cmd
}

// NewWorkerCommand creates the worker command
func NewWorkerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Reconcile schemas on a schedule",
		Long: `Run reconcile passes over every schema on the schedule from worker.schedule
until interrupted. With --once a single pass runs and the command exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			schedule := a.cfg.Worker.Schedule
			if workerScheduleFlag != "" {
				schedule = workerScheduleFlag
			}
			timeout := a.cfg.Worker.Timeout
			if cmd.Flags().Changed("timeout") {
				timeout = workerTimeoutFlag
			}
			w, err := worker.New(a.svc, schedule, worker.WithLogger(a.logger), worker.WithTimeout(timeout))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if workerOnceFlag {
				return w.RunOnce(ctx)
			}

			ui.Success(a.out, a.printer.NoColor, "worker running on %q (ctrl-c to stop)", schedule)
			return w.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&workerOnceFlag, "once", false, "Run a single pass and exit")
	cmd.Flags().StringVar(&workerScheduleFlag, "schedule", "", "Override worker.schedule")
	cmd.Flags().DurationVar(&workerTimeoutFlag, "timeout", 0, "Override worker.timeout (0 = unbounded)")

	return cmd
}

var _ worker.Reconciler = (*cms.Service)(nil)
