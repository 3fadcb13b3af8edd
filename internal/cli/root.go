// Package cli implements ragctl, the operator tool for running ingestion by
// hand, inspecting documents and issuing tenant tokens.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/tenantrag/internal/app"
	"github.com/nikhilbhutani/tenantrag/internal/config"
)

type globals struct {
	cfgFile string
	verbose bool
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "ragctl",
		Short: "Operate the tenant document question-answering service",
		Long: `ragctl runs ingestion jobs synchronously, queues them for the worker,
asks questions on behalf of a tenant and manages tenant data. It reads the
same configuration as the api and worker binaries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.cfgFile, "config", "", "config file path (default $RAG_CONFIG or "+config.DefaultPath+")")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newIngestCmd(g),
		newEnqueueCmd(g),
		newQueryCmd(g),
		newDeleteTenantCmd(g),
		newStatusCmd(g),
		newMigrateCmd(g),
		newTokenCmd(g),
		newUsageCmd(g),
	)
	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}

func (g *globals) logger() *slog.Logger {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (g *globals) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.cfgFile != "" {
		cfg, err = config.LoadFile(g.cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// open loads and validates config, then connects every backend.
func (g *globals) open(ctx context.Context) (*app.Services, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.Open(ctx, cfg, g.logger())
}

func parseDocumentID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid document id %q", s)
	}
	return id, nil
}
