package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/tenantrag/internal/tenant"
)

func newUsageCmd(g *globals) *cobra.Command {
	var (
		tenantFlag string
		since      time.Duration
		jsonOut    bool
	)
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Summarise a tenant's model usage and cost",
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
			if svc.Usage == nil {
				return errors.New("usage logs require the postgres driver")
			}

			var start *time.Time
			if since > 0 {
				t := time.Now().Add(-since)
				start = &t
			}
			summaries, err := svc.Usage.GetUsageSummary(ctx, tid, start, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(summaries)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PROVIDER\tMODEL\tCALLS\tTOKENS\tCOST (USD)")
			for _, s := range summaries {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.4f\n", s.Provider, s.Model, s.TotalCalls, s.TotalTokens, s.TotalCostUSD)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&tenantFlag, "tenant", "", "tenant id (client token)")
	cmd.Flags().DurationVar(&since, "since", 0, "only count usage newer than this, e.g. 720h")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
