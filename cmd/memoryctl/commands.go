package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/engine"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/result"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/pkg/types"
)

func newExtractCmd(opts *rootOptions) *cobra.Command {
	var reply string

	cmd := &cobra.Command{
		Use:   "extract <message>",
		Short: "Record a user message and run extraction",
		Long: `Record a user message for the subject, then run the memory pipeline
over the recent transcript and print what it did.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireSubject(); err != nil {
				return err
			}
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return errors.New("message is empty")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if reply != "" {
					turn := types.Turn{Role: types.RoleAssistant, Text: reply, Timestamp: time.Now()}
					if err := a.store.AppendTurn(ctx, opts.identity, opts.subject, turn); err != nil {
						return err
					}
				}
				turn := types.Turn{Role: types.RoleUser, Text: text, Timestamp: time.Now()}
				if err := a.store.AppendTurn(ctx, opts.identity, opts.subject, turn); err != nil {
					return err
				}

				out := a.pipeline.Process(ctx, engine.Job{
					Identity:    opts.identity,
					Subject:     opts.subject,
					SubjectName: opts.subjectName(),
				})
				printOutcome(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reply, "reply", "", "Assistant reply to record before the message")
	return cmd
}

func printOutcome(w io.Writer, out engine.Outcome) {
	if out.Skipped {
		fmt.Fprintln(w, "skipped: capture is disabled for this subject")
		return
	}
	if out.Fallback {
		fmt.Fprintf(w, "fallback: %s\n", out.ErrorCode)
	} else if out.ErrorCode != result.KindNone {
		fmt.Fprintf(w, "status: %s\n", out.ErrorCode)
	}
	fmt.Fprintf(w, "facts written: %d\n", out.FactsWritten)
	fmt.Fprintf(w, "keys touched: %d\n", out.KeysTouched)
	fmt.Fprintf(w, "continuity updated: %t\n", out.ContinuityUpdated)
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored facts for a subject",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.requireSubject(); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				res := a.facts.ListFacts(ctx, opts.identity, opts.subject, opts.limit)
				if !res.IsOK() {
					return res.Err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tCATEGORY\tKEY\tVALUE\tIMP\tCONF\tSOURCE")
				for _, f := range res.Value {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
						f.ID, f.Category, f.Key, f.Value, f.Importance, f.Confidence, f.Source)
				}
				return tw.Flush()
			})
		},
	}
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the consolidated memories for a subject",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.requireSubject(); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				w := cmd.OutOrStdout()
				sections := a.pipeline.Memories(ctx, opts.identity, opts.subject)
				if len(sections) == 0 {
					fmt.Fprintln(w, "no memories")
					return nil
				}
				for _, s := range sections {
					fmt.Fprintf(w, "%s\n", s.Category)
					for _, item := range s.Items {
						fmt.Fprintf(w, "  - %s", item.Value)
						if item.IsMerged {
							fmt.Fprintf(w, " (%d facts)", len(item.SourceFactIDs))
						}
						fmt.Fprintln(w)
					}
				}
				return nil
			})
		},
	}
}

func newContinuityCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "continuity",
		Short: "Print the continuity summary for a subject",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.requireSubject(); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				res := a.continuity.Get(ctx, opts.identity, opts.subject)
				if !res.IsOK() {
					return res.Err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res.Value)
			})
		},
	}
}

func newToggleCmd(opts *rootOptions, enabled bool) *cobra.Command {
	use, short := "disable", "Stop capturing new memories for a subject"
	if enabled {
		use, short = "enable", "Resume capturing memories for a subject"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.requireSubject(); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				res := a.continuity.SetEnabled(ctx, opts.identity, opts.subject, enabled)
				if !res.IsOK() {
					return res.Err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "capture %sd for %s\n", use, opts.subject)
				return nil
			})
		},
	}
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <fact-id>...",
		Short: "Delete facts by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(opts.identity) == "" {
				return errors.New("--identity is required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				deleted := 0
				for _, id := range args {
					res := a.facts.DeleteFact(ctx, opts.identity, id)
					if !res.IsOK() {
						return res.Err
					}
					deleted += res.Value
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d fact(s)\n", deleted)
				return nil
			})
		},
	}
}
