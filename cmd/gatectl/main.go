// Command gatectl inspects and maintains the console gate's audit trail and
// per-tab lockout state.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mktdata/admin-console/config"
	"github.com/mktdata/admin-console/internal/bootstrap"
	"github.com/mktdata/admin-console/internal/ports"
	"github.com/spf13/cobra"
)

type cli struct {
	cfg    *config.AppConfig
	logger *slog.Logger
	out    io.Writer
	in     io.Reader
	now    func() time.Time

	audit func(ctx context.Context) (auditStore, func() error, error)
	tabs  func(ctx context.Context) (ports.TabStorage, func() error, error)
}

func newCLI(out io.Writer, in io.Reader) *cli {
	c := &cli{out: out, in: in, now: time.Now}
	c.audit = c.openAuditStore
	c.tabs = c.openTabStorage
	return c
}

func main() {
	c := newCLI(os.Stdout, os.Stdin)
	if err := c.rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gatectl",
		Short:         "Admin console gate maintenance",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return c.loadConfig()
		},
	}
	root.AddCommand(c.auditCmd(), c.gateCmd(), c.hashPasswordCmd(), c.migrateCmd())
	return root
}

// loadConfig reads the same environment as the server unless a config was injected.
func (c *cli) loadConfig() error {
	if c.cfg == nil {
		cfg, err := bootstrap.LoadConfig()
		if err != nil {
			return err
		}
		c.cfg = &cfg
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	return nil
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply auth_events migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := c.connectDB()
			if err != nil {
				return err
			}
			defer closeQuietly(c, "database", db.Close)
			if err := bootstrap.RunMigrations(cmd.Context(), db, c.logger); err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.out, "migrations applied")
			return err
		},
	}
}
