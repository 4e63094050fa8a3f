package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/halopress/halopress/internal/cli/ui"
	"github.com/halopress/halopress/internal/cms"
	"github.com/halopress/halopress/internal/content"
	"github.com/halopress/halopress/internal/refsync"
	"github.com/halopress/halopress/internal/search"
	"github.com/halopress/halopress/internal/store"
	"github.com/halopress/halopress/internal/summary"
)

var (
	contentIDFlag          string
	contentTitleFlag       string
	contentStatusFlag      string
	contentFileFlag        string
	contentProjectionsFlag bool
	contentAfterFlag       string
	contentLimitFlag       int
)

// NewContentCommand creates the content command
func NewContentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Write and read documents",
		Example: `  # Create a document from a JSON body
  halopress content put article --file post.json --title "Hello"

  # Show a document with its references, search entries and summary
  halopress content get 6f1c... --projections`,
	}

	cmd.AddCommand(newContentPutCommand())
	cmd.AddCommand(newContentGetCommand())
	cmd.AddCommand(newContentListCommand())
	cmd.AddCommand(newContentDeleteCommand())

	return cmd
}

func newContentPutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <schema>",
		Short: "Create or update a document",
		Long: `Create a document, or update the one named by --id. The body is a JSON object
read from --file ('-' for stdin). The document moves to the active version of its
schema and its projections are regenerated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cms.DocumentInput{ID: contentIDFlag, SchemaKey: args[0]}
			if cmd.Flags().Changed("title") {
				in.Title = &contentTitleFlag
			}
			if cmd.Flags().Changed("status") {
				in.Status = &contentStatusFlag
			}
			if contentFileFlag != "" {
				body, err := readBody(cmd, contentFileFlag)
				if err != nil {
					return err
				}
				in.Body = body
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			doc, err := a.svc.SaveDocument(cmd.Context(), in)
			if doc != nil {
				if emitErr := a.emit(doc, func() {
					ui.Success(a.out, a.printer.NoColor, "saved %s", doc.ID)
					a.printer.Document(doc)
				}); emitErr != nil {
					return emitErr
				}
			}
			if errors.Is(err, cms.ErrNoActiveSchema) {
				return a.schemaError(cmd.Context(), args[0], err)
			}
			return err
		},
		ValidArgsFunction: completeSchemaKeys,
	}

	cmd.Flags().StringVar(&contentIDFlag, "id", "", "Document to update (default: create a new one)")
	cmd.Flags().StringVar(&contentTitleFlag, "title", "", "Document title")
	cmd.Flags().StringVar(&contentStatusFlag, "status", "", "Document status (draft, published)")
	cmd.Flags().StringVarP(&contentFileFlag, "file", "f", "", "JSON body file ('-' for stdin)")

	return cmd
}

func readBody(cmd *cobra.Command, path string) (json.RawMessage, error) {
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
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return data, nil
}

// documentView is a document with its projections
type documentView struct {
	*content.Document
	References []refsync.Edge   `json:"references,omitempty"`
	Search     []search.Row     `json:"search,omitempty"`
	Summary    *summary.Summary `json:"summary,omitempty"`
}

func newContentGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			doc, err := a.svc.GetDocument(ctx, args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("document %s not found", args[0])
			}
			if err != nil {
				return err
			}

			view := documentView{Document: doc}
			if contentProjectionsFlag {
				if view.References, err = a.svc.Refs().Edges(ctx, doc.ID); err != nil {
					return err
				}
				if view.Search, err = a.svc.Index().Rows(ctx, doc.ID); err != nil {
					return err
				}
				view.Summary, err = a.svc.Summaries().Get(ctx, doc.ID)
				if err != nil && !errors.Is(err, store.ErrNotFound) {
					return err
				}
			}

			return a.emit(view, func() {
				a.printer.Document(doc)
				ui.Header(a.out, "Body", a.printer.NoColor)
				fmt.Fprintln(a.out, string(doc.Body))
				if !contentProjectionsFlag {
					return
				}
				ui.Header(a.out, "References", a.printer.NoColor)
				a.printer.Edges(view.References)
				ui.Header(a.out, "Search", a.printer.NoColor)
				a.printer.SearchRows(view.Search)
				if view.Summary != nil {
					ui.Header(a.out, "Summary", a.printer.NoColor)
					a.printer.Summary(view.Summary)
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&contentProjectionsFlag, "projections", "p", false, "Include references, search entries and summary")

	return cmd
}

func newContentListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <schema>",
		Short: "List the documents of a schema in id order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			docs, err := a.svc.Documents().List(cmd.Context(), content.Filter{
				SchemaKey: args[0],
				AfterID:   contentAfterFlag,
				Limit:     contentLimitFlag,
			})
			if err != nil {
				return err
			}
			return a.emit(docs, func() { a.printer.Documents(docs) })
		},
		ValidArgsFunction: completeSchemaKeys,
	}

	cmd.Flags().StringVar(&contentAfterFlag, "after", "", "Start after this document id")
	cmd.Flags().IntVar(&contentLimitFlag, "limit", 50, "Maximum number of documents")

	return cmd
}

func newContentDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document and its projections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.DeleteDocument(cmd.Context(), args[0]); err != nil {
				return err
			}
			ui.Success(a.out, a.printer.NoColor, "deleted %s", args[0])
			return nil
		},
	}
}
