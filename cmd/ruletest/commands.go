package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"automator/auth"
	"automator/internal/engine"
	"automator/internal/models"
	"automator/internal/params"
	"automator/internal/scheduler"

	"github.com/spf13/cobra"
)

// Backend is what the diagnostics read
type Backend interface {
	ListRules(ctx context.Context) ([]models.Rule, error)
	GetRule(ctx context.Context, id string) (models.Rule, error)
	GetTriggersForRule(ctx context.Context, ruleID string) ([]models.Trigger, error)
	DryRun(ctx context.Context, ruleID string) (engine.DryRunReport, error)
	Location() *time.Location
}

// Opener connects a backend; the returned func releases it
type Opener func(ctx context.Context) (Backend, func(), error)

// RootOptions holds global flags for all commands
type RootOptions struct {
	Format string // "json" | "text"
}

var validFormats = []string{"text", "json"}

// NewRootCommand creates the ruletest command tree
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ruletest",
		Short: "Inspect automation rules without executing them",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range validFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newListCommand(opts, open))
	cmd.AddCommand(newCheckCommand(opts, open))
	cmd.AddCommand(newNextCommand(opts, open))
	cmd.AddCommand(newHashSecretCommand())
	return cmd
}

func withBackend(cmd *cobra.Command, open Opener, fn func(ctx context.Context, b Backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, release, err := open(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx, b)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newListCommand(opts *RootOptions, open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules with their execution counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b Backend) error {
				rules, err := b.ListRules(ctx)
				if err != nil {
					return err
				}
				if opts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), rules)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tENABLED\tEXECUTIONS")
				for _, r := range rules {
					fmt.Fprintf(tw, "%s\t%s\t%t\t%d\n", r.ID, r.Name, r.IsEnabled, r.ExecutionCount)
				}
				return tw.Flush()
			})
		},
	}
}

func newCheckCommand(opts *RootOptions, open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "check <rule-id>",
		Short: "Evaluate a rule's triggers and conditions against the cached device state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b Backend) error {
				rep, err := b.DryRun(ctx, args[0])
				if err != nil {
					return err
				}
				if opts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), rep)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Rule %s (%s) enabled=%t\n", rep.RuleID, rep.Name, rep.Enabled)
				printChecks(out, "Triggers", rep.Triggers)
				printChecks(out, "Conditions", rep.Conditions)
				fmt.Fprintf(out, "Would execute: %t\n", rep.WouldExecute)
				return nil
			})
		},
	}
}

func printChecks(w io.Writer, title string, checks []engine.CheckReport) {
	fmt.Fprintf(w, "%s:\n", title)
	if len(checks) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, c := range checks {
		line := fmt.Sprintf("  %s %-20s active=%t holds=%t", c.ID, c.Kind, c.Active, c.Holds)
		if c.Error != "" {
			line += " error=" + c.Error
		}
		fmt.Fprintln(w, line)
	}
}

type nextFire struct {
	TriggerID string    `json:"trigger_id"`
	Key       string    `json:"key"`
	FireAt    time.Time `json:"fire_at"`
}

func newNextCommand(opts *RootOptions, open Opener) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "next <rule-id>",
		Short: "Show when the rule's TIME triggers fire next",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				now = t
			}
			return withBackend(cmd, open, func(ctx context.Context, b Backend) error {
				now = now.In(b.Location())
				rule, err := b.GetRule(ctx, args[0])
				if err != nil {
					return err
				}
				triggers, err := b.GetTriggersForRule(ctx, rule.ID)
				if err != nil {
					return err
				}
				var fires []nextFire
				for _, t := range triggers {
					tod, ok := t.Params.(params.TimeOfDay)
					if t.Kind != models.TriggerTime || !t.IsActive || !ok {
						continue
					}
					fires = append(fires, nextFire{TriggerID: t.ID, Key: scheduler.Key(rule.ID, t.ID), FireAt: scheduler.NextFire(now, tod)})
				}
				if opts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), fires)
				}
				if len(fires) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No active TIME triggers")
					return nil
				}
				for _, f := range fires {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", f.FireAt.Format("Mon 2006-01-02 15:04"), f.Key)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "reference time (RFC3339), defaults to now")
	return cmd
}

func newHashSecretCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret <secret>",
		Short: "Print the bcrypt hash for jwt.client_secret_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashSecret(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
