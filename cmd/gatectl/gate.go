package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mktdata/admin-console/internal/domain/gate"
	"github.com/mktdata/admin-console/internal/service"
	"github.com/spf13/cobra"
)

func (c *cli) gateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Inspect or reset a tab's sign-in lockout",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <tab-id>",
			Short: "Show failed attempts and lockout for a tab",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				tabID, err := parseTabID(args[0])
				if err != nil {
					return err
				}
				storage, closer, err := c.tabs(cmd.Context())
				if err != nil {
					return err
				}
				defer closeQuietly(c, "tab storage", closer)

				rec := service.NewGateStore(storage, tabID, c.logger).Read(cmd.Context())
				return printGate(c, tabID, rec)
			},
		},
		&cobra.Command{
			Use:   "clear <tab-id>",
			Short: "Reset failed attempts and lift any lockout for a tab",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				tabID, err := parseTabID(args[0])
				if err != nil {
					return err
				}
				storage, closer, err := c.tabs(cmd.Context())
				if err != nil {
					return err
				}
				defer closeQuietly(c, "tab storage", closer)

				service.NewGateStore(storage, tabID, c.logger).Clear(cmd.Context())
				_, err = fmt.Fprintf(c.out, "cleared gate for tab %s\n", tabID)
				return err
			},
		},
	)
	return cmd
}

func parseTabID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid tab id %q: %w", raw, err)
	}
	return id.String(), nil
}

func printGate(c *cli, tabID string, rec gate.Record) error {
	now := c.now()
	fmt.Fprintf(c.out, "tab:       %s\n", tabID)
	fmt.Fprintf(c.out, "attempts:  %d\n", rec.Attempts)
	switch {
	case rec.Locked(now):
		secs := gate.SecondsRemaining(*rec.LockedUntil, now)
		_, err := fmt.Fprintf(c.out, "locked:    until %s (%s remaining)\n",
			rec.LockedUntil.UTC().Format(time.RFC3339), gate.FormatRemaining(secs))
		return err
	case rec.Expired(now):
		_, err := fmt.Fprintln(c.out, "locked:    no (lockout elapsed)")
		return err
	default:
		_, err := fmt.Fprintln(c.out, "locked:    no")
		return err
	}
}
