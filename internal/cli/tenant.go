package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/tenantrag/internal/auth"
	"github.com/nikhilbhutani/tenantrag/internal/tenant"
)

func newQueryCmd(g *globals) *cobra.Command {
	var (
		tenantFlag string
		text       string
		jsonOut    bool
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Ask a question against one tenant's documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tid, err := tenant.Parse(tenantFlag)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			svc, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			pipeline, err := svc.QueryPipeline()
			if err != nil {
				return err
			}
			ans := pipeline.Ask(ctx, tid, text)

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(ans)
			}
			fmt.Fprintln(out, ans.Text)
			for i, src := range ans.Sources {
				fmt.Fprintf(out, "  [%d] %s #%d (%.3f)\n", i+1, src.Source, src.Ordinal, src.Similarity)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantFlag, "tenant", "", "tenant id (client token)")
	cmd.Flags().StringVar(&text, "text", "", "question to ask")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the full answer as JSON")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func newDeleteTenantCmd(g *globals) *cobra.Command {
	var tenantFlag string
	cmd := &cobra.Command{
		Use:   "delete-tenant",
		Short: "Delete every indexed chunk for a tenant",
		Long: `Drops the tenant's vector collection. Document records and files are
kept. Deleting a tenant with no indexed data succeeds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tid, err := tenant.Parse(tenantFlag)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			svc, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			pipeline, err := svc.QueryPipeline()
			if err != nil {
				return err
			}
			if err := pipeline.DeleteTenantData(ctx, tid); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tenant %s data deleted\n", tid)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantFlag, "tenant", "", "tenant id (client token)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func newTokenCmd(g *globals) *cobra.Command {
	var (
		tenantFlag string
		subject    string
		ttl        time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tid, err := tenant.Parse(tenantFlag)
			if err != nil {
				return err
			}
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireAuth(); err != nil {
				return err
			}
			token, err := auth.IssueToken(cfg.Auth.JWTSecret, tid, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantFlag, "tenant", "", "tenant id (client token)")
	cmd.Flags().StringVar(&subject, "subject", "ragctl", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
