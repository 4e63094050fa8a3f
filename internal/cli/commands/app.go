package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/halopress/halopress/internal/cache"
	"github.com/halopress/halopress/internal/cli/config"
	"github.com/halopress/halopress/internal/cli/ui"
	"github.com/halopress/halopress/internal/cms"
	"github.com/halopress/halopress/internal/logging"
	"github.com/halopress/halopress/internal/schema"
	"github.com/halopress/halopress/internal/store"
	"github.com/halopress/halopress/internal/summary"
	"github.com/halopress/halopress/internal/transaction"
)

// app holds everything a command needs to talk to the engine
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *store.DB
	cache   cache.Cache
	svc     *cms.Service
	out     io.Writer
	printer ui.Printer
}

// openApp loads the configuration and connects to the database and cache
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.Database.Driver, cfg.Database.URL, store.Options{
		TablePrefix:  cfg.Database.TablePrefix,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, &cliError{
			msg: ui.Message{
				Title:   "DATABASE UNAVAILABLE",
				Details: []string{stripCredentials(err).Error()},
				Hints: []string{
					"Check database.url in halopress.yml or HALOPRESS_DATABASE_URL",
					"Create a Postgres database: halopress db create",
				},
			},
			err: err,
		}
	}

	c, err := openCache(cmd.Context(), cfg, logger)
	if err != nil {
		db.Close()
		_ = logger.Sync()
		return nil, err
	}

	svc := cms.New(db, cms.Options{
		Logger:   logger,
		Cache:    c,
		Retry:    transaction.DefaultRetryConfig(),
		PageSize: cfg.Migration.PageSize,
		Summary: summary.Options{
			DescriptionLimit: cfg.Summary.DescriptionLimit,
			AssetURLPattern:  cfg.Summary.AssetURLPattern,
		},
	})

	out := cmd.OutOrStdout()
	return &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		cache:   c,
		svc:     svc,
		out:     out,
		printer: ui.Printer{W: out, NoColor: noColor()},
	}, nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(configFlag)
	if err != nil {
		return nil, err
	}
	cfg.Database.URL = config.GetDatabaseURL(cfg)
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.Cache, error) {
	cc := cache.Config{Prefix: cfg.Redis.Prefix, TTL: cfg.Redis.TTL, MaxEntries: cfg.Redis.MaxEntries}
	if cfg.Redis.Addr == "" {
		return cache.NewMemory(cc), nil
	}

	rc, err := cache.DialRedis(ctx, cache.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cc)
	if err != nil {
		return nil, err
	}
	logger.Debug("using redis version cache", zap.String("addr", cfg.Redis.Addr))
	return rc, nil
}

// Close releases the connections held by the app
func (a *app) Close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("failed to close cache", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// emit prints v as JSON when --json is set and calls render otherwise
func (a *app) emit(v any, render func()) error {
	if !jsonFlag {
		render()
		return nil
	}
	return a.printJSON(v)
}

func (a *app) printJSON(v any) error {
	return writeJSON(a.out, v)
}

// writeJSON writes v as indented JSON
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// schemaError turns a missing schema into a message suggesting close schema keys
func (a *app) schemaError(ctx context.Context, schemaKey string, err error) error {
	var title string
	switch {
	case errors.Is(err, cms.ErrDraftNotFound):
		title = fmt.Sprintf("NO DRAFT FOR SCHEMA: %s", schemaKey)
	case errors.Is(err, cms.ErrNoActiveSchema):
		title = fmt.Sprintf("SCHEMA NOT FOUND: %s", schemaKey)
	case errors.Is(err, store.ErrNotFound):
		title = fmt.Sprintf("SCHEMA NOT FOUND: %s", schemaKey)
		err = fmt.Errorf("%s: %w", schemaKey, cms.ErrNoActiveSchema)
	default:
		return err
	}

	var keys []string
	if pointers, lerr := a.svc.Versions().ListActive(ctx); lerr == nil {
		for _, p := range pointers {
			keys = append(keys, p.SchemaKey)
		}
	}
	return &cliError{
		msg: ui.Message{
			Title:       title,
			Suggestions: ui.Suggest(schemaKey, keys),
			Hints:       []string{"List schemas: halopress schema list"},
		},
		err: err,
	}
}

// cliError carries a formatted message for an error
type cliError struct {
	msg ui.Message
	err error
}

func (e *cliError) Error() string { return e.err.Error() }

func (e *cliError) Unwrap() error { return e.err }

func noColor() bool {
	return color.NoColor
}

// reportError prints err in the most helpful form available
func reportError(w io.Writer, err error) {
	var ce *cliError
	if errors.As(err, &ce) {
		msg := ce.msg
		msg.NoColor = color.NoColor
		msg.Write(w)
		return
	}

	var ve *schema.ValidationErrors
	if errors.As(err, &ve) {
		ui.Printer{W: w, NoColor: color.NoColor}.ValidationErrors(ve)
		return
	}

	errorColor := color.New(color.FgRed, color.Bold)
	errorColor.Fprintf(w, "Error: %v\n", err)
}
