package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mktdata/admin-console/internal/domain/auth"
	"github.com/mktdata/admin-console/internal/ports"
	"github.com/mktdata/admin-console/internal/service"
	"github.com/spf13/cobra"
)

type auditListOptions struct {
	user  string
	kind  string
	since time.Duration
	limit int
	json  bool
}

func (c *cli) auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect and prune the auth event trail",
	}
	cmd.AddCommand(c.auditListCmd(), c.auditPruneCmd())
	return cmd
}

func (c *cli) auditListCmd() *cobra.Command {
	var opts auditListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent auth events, newest first",
		Long: `List recent auth events, newest first.

Examples:
  gatectl audit list --since 24h
  gatectl audit list --type brute_force_lockout
  gatectl audit list --user 7f3c --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := ports.AuthEventQuery{UserID: opts.user, Limit: opts.limit}
			if opts.kind != "" {
				q.Type = auth.EventType(strings.TrimSpace(opts.kind))
				if !q.Type.Valid() {
					return fmt.Errorf("unknown event type %q", opts.kind)
				}
			}
			if opts.since > 0 {
				q.Since = c.now().Add(-opts.since)
			}

			store, closer, err := c.audit(cmd.Context())
			if err != nil {
				return err
			}
			defer closeQuietly(c, "audit store", closer)

			events, err := store.List(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("list auth events: %w", err)
			}
			if opts.json {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(events)
			}
			return printEvents(c, events)
		},
	}
	cmd.Flags().StringVar(&opts.user, "user", "", "only events for this user id")
	cmd.Flags().StringVar(&opts.kind, "type", "", "only events of this type")
	cmd.Flags().DurationVar(&opts.since, "since", 0, "only events newer than this (e.g. 24h)")
	cmd.Flags().IntVar(&opts.limit, "limit", 50, "maximum events to show")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print JSON")
	return cmd
}

func printEvents(c *cli, events []auth.Event) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(c.out, "no auth events")
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tUSER\tACTION\tDETAILS")
	for _, ev := range events {
		user := ev.UserID
		if user == "" {
			user = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, user, ev.Action, formatMetadata(ev.Metadata))
	}
	return tw.Flush()
}

func formatMetadata(meta map[string]string) string {
	if len(meta) == 0 {
		return ""
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+meta[k])
	}
	return strings.Join(parts, " ")
}

func (c *cli) auditPruneCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete auth events older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				olderThan = c.cfg.Storage.AuditRetention
			}
			if olderThan <= 0 {
				return fmt.Errorf("no retention configured; pass --older-than")
			}

			store, closer, err := c.audit(cmd.Context())
			if err != nil {
				return err
			}
			defer closeQuietly(c, "audit store", closer)

			reaper, err := service.NewAuditReaper(service.AuditReaperOptions{
				Repo:      store,
				Retention: olderThan,
				Logger:    c.logger,
			})
			if err != nil {
				return err
			}
			n, err := reaper.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.out, "pruned %d auth events older than %s\n", n, olderThan)
			return err
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "retention window (default AUDIT_RETENTION)")
	return cmd
}
