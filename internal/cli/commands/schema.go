package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/halopress/halopress/internal/cli/ui"
	"github.com/halopress/halopress/internal/cms"
	"github.com/halopress/halopress/internal/field"
	"github.com/halopress/halopress/internal/migrate"
	"github.com/halopress/halopress/internal/schema"
)

var (
	schemaShowVersionFlag int
	schemaShowFormatFlag  string
	schemaPublishFileFlag string
	schemaPublishNoteFlag string
	schemaPublishMigrate  bool
	schemaPublishDryRun   bool
	schemaChangesFromFlag int
	schemaChangesToFlag   int
)

// NewSchemaCommand creates the schema command
func NewSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect, draft and publish content schemas",
		Example: `  # Check an AST file without touching the database
  halopress schema validate product.json

  # Publish a schema and migrate existing documents
  halopress schema publish product --file product.json --migrate

  # Show the JSON Schema of the active version
  halopress schema show product --format validation`,
	}

	cmd.AddCommand(newSchemaListCommand())
	cmd.AddCommand(newSchemaVersionsCommand())
	cmd.AddCommand(newSchemaShowCommand())
	cmd.AddCommand(newSchemaValidateCommand())
	cmd.AddCommand(newSchemaDraftCommand())
	cmd.AddCommand(newSchemaPublishCommand())
	cmd.AddCommand(newSchemaChangesCommand())

	return cmd
}

// readAST decodes an AST from path, or from stdin when path is "-"
func readAST(cmd *cobra.Command, path string) (*field.SchemaAst, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return field.DecodeAST(data)
}

func newSchemaListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List schemas with an active version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			pointers, err := a.svc.Versions().ListActive(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(pointers, func() { a.printer.Schemas(pointers) })
		},
	}
}

func newSchemaVersionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <schema>",
		Short: "List the published versions of a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			versions, err := a.svc.Versions().ListVersions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				return a.schemaError(cmd.Context(), args[0], cms.ErrNoActiveSchema)
			}
			return a.emit(versions, func() { a.printer.Versions(versions) })
		},
		ValidArgsFunction: completeSchemaKeys,
	}
}

func newSchemaShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <schema>",
		Short: "Show a published version",
		Long: `Show a published version of a schema. Without --format the fields are listed
as a table; with --format one compiled artifact is printed as JSON:

  ast         the field AST
  registry    the field registry with relation descriptors
  validation  the JSON Schema documents are validated against
  ui          the form rendering hints`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			v, err := a.svc.Versions().GetActive(ctx, args[0])
			if err == nil && schemaShowVersionFlag > 0 && schemaShowVersionFlag != v.Version {
				v, err = a.svc.Versions().GetVersion(ctx, args[0], schemaShowVersionFlag)
			}
			if err != nil {
				return a.schemaError(ctx, args[0], err)
			}

			var artifact any
			switch schemaShowFormatFlag {
			case "":
				return a.emit(v, func() {
					ui.Header(a.out, fmt.Sprintf("%s v%d: %s", v.SchemaKey, v.Version, v.Title), a.printer.NoColor)
					a.printer.Fields(v.Registry)
				})
			case "ast":
				artifact = v.AST
			case "registry":
				artifact = v.Registry
			case "validation":
				artifact = v.ValidationSchema
			case "ui":
				artifact = v.UISchema
			default:
				return fmt.Errorf("unknown format %q (expected ast, registry, validation or ui)", schemaShowFormatFlag)
			}
			return a.printJSON(artifact)
		},
		ValidArgsFunction: completeSchemaKeys,
	}

	cmd.Flags().IntVar(&schemaShowVersionFlag, "version", 0, "Version to show (default: active)")
	cmd.Flags().StringVar(&schemaShowFormatFlag, "format", "", "Artifact to print: ast, registry, validation, ui")

	return cmd
}

func newSchemaValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check an AST file against the structural rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ast, err := readAST(cmd, args[0])
			if err != nil {
				return err
			}
			if err := schema.Validate(ast); err != nil {
				return err
			}
			ui.Success(cmd.OutOrStdout(), noColor(), "%s is valid (%d fields)", ast.SchemaKey, len(ast.Fields))
			return nil
		},
	}
}

func newSchemaDraftCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Read or save the working copy of a schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <schema>",
		Short: "Print the draft AST of a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			draft, err := a.svc.GetDraft(cmd.Context(), args[0])
			if err != nil {
				return a.schemaError(cmd.Context(), args[0], err)
			}
			return a.printJSON(draft.AST)
		},
		ValidArgsFunction: completeSchemaKeys,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "save <file>",
		Short: "Validate an AST file and store it as the draft of its schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ast, err := readAST(cmd, args[0])
			if err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			draft, err := a.svc.SaveDraft(cmd.Context(), ast)
			if err != nil {
				return err
			}
			return a.emit(draft, func() {
				ui.Success(a.out, a.printer.NoColor, "saved draft of %s", draft.SchemaKey)
			})
		},
	})

	return cmd
}

func newSchemaPublishCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish <schema>",
		Short: "Publish the next version of a schema",
		Long: `Publish the next version of a schema from an AST file, or from its draft when
--file is omitted. The new version becomes active immediately.

With --migrate, documents are moved to the new version when fields changed kind.
Without it they stay on their version until 'halopress migrate' or the worker
upgrades them.

With --dry-run nothing is written. The documents are walked as a migration would
walk them and every value that would be dropped is listed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := cms.PublishRequest{Note: schemaPublishNoteFlag, Migrate: schemaPublishMigrate}
			if schemaPublishFileFlag != "" {
				ast, err := readAST(cmd, schemaPublishFileFlag)
				if err != nil {
					return err
				}
				req.AST = ast
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var result *cms.PublishResult
			render := func() { a.printer.Publish(result) }
			if schemaPublishDryRun {
				result, err = a.svc.PreviewPublish(cmd.Context(), args[0], req.AST)
				render = func() { a.printer.PublishPreview(result) }
			} else {
				result, err = a.svc.Publish(cmd.Context(), args[0], req)
			}
			if result != nil {
				if emitErr := a.emit(result, render); emitErr != nil {
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

	cmd.Flags().StringVarP(&schemaPublishFileFlag, "file", "f", "", "AST file to publish ('-' for stdin)")
	cmd.Flags().StringVar(&schemaPublishNoteFlag, "note", "", "Note recorded with the version")
	cmd.Flags().BoolVar(&schemaPublishMigrate, "migrate", false, "Migrate documents when fields changed kind")
	cmd.Flags().BoolVar(&schemaPublishDryRun, "dry-run", false, "Report what a migrating publish would change without writing")

	return cmd
}

func newSchemaChangesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changes <schema>",
		Short: "List fields that changed kind, cardinality or key between two versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			to, err := a.svc.Versions().GetActive(ctx, args[0])
			if err == nil && schemaChangesToFlag > 0 && schemaChangesToFlag != to.Version {
				to, err = a.svc.Versions().GetVersion(ctx, args[0], schemaChangesToFlag)
			}
			if err != nil {
				return a.schemaError(ctx, args[0], err)
			}

			fromVersion := schemaChangesFromFlag
			if fromVersion <= 0 {
				fromVersion = to.Version - 1
			}
			if fromVersion <= 0 {
				return fmt.Errorf("%s has a single version", args[0])
			}
			from, err := a.svc.Versions().GetVersion(ctx, args[0], fromVersion)
			if err != nil {
				return fmt.Errorf("version %d of %s: %w", fromVersion, args[0], err)
			}

			changes := migrate.KindChanges(from.AST, to.AST)
			return a.emit(changes, func() {
				if len(changes) == 0 {
					ui.Success(a.out, a.printer.NoColor, "no kind changes between v%d and v%d", from.Version, to.Version)
					return
				}
				a.printer.Changes(changes)
			})
		},
		ValidArgsFunction: completeSchemaKeys,
	}

	cmd.Flags().IntVar(&schemaChangesFromFlag, "from", 0, "Old version (default: the one before --to)")
	cmd.Flags().IntVar(&schemaChangesToFlag, "to", 0, "New version (default: active)")

	return cmd
}
