package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/tenantrag/internal/document"
	"github.com/nikhilbhutani/tenantrag/internal/queue"
)

func newIngestCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <document-id>",
		Short: "Run ingestion for a document in this process",
		Long: `Runs the ingestion pipeline synchronously, exactly as the worker would.
Documents that are not PENDING are left untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			svc, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			pipeline, err := svc.IngestionPipeline()
			if err != nil {
				return err
			}
			res, err := pipeline.Ingest(ctx, id)
			if err != nil {
				return fmt.Errorf("ingest document %d: %w", id, err)
			}
			printStatus(cmd, id, string(res.Status), res.Reason)
			return nil
		},
	}
}

func newEnqueueCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <document-id>",
		Short: "Queue a document for the worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			qc := queue.NewClient(cfg.Redis)
			defer qc.Close()

			jobID, err := qc.EnqueueIngest(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "document %d queued as job %s\n", id, jobID)
			return nil
		},
	}
}

func newStatusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status <document-id>",
		Short: "Show a document's processing status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			svc, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			doc, err := svc.Docs.GetByID(ctx, id)
			if errors.Is(err, document.ErrNotFound) {
				return fmt.Errorf("document %d not found", id)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tenant:   %s\nfilename: %s\n", doc.TenantID, doc.Filename)
			printStatus(cmd, id, string(doc.Status), doc.Reason)
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, id int64, status, reason string) {
	if reason != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "document %d: %s (%s)\n", id, status, reason)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "document %d: %s\n", id, status)
}
