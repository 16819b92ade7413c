package main

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/config"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/logger"
)

const rootLongDesc string = `memoryctl drives the subject memory pipeline from the command line.

Examples:
  memoryctl extract --subject mom --name Mom "Mom passed away 3 years ago."
  memoryctl list --subject mom
  memoryctl show --subject mom
  memoryctl disable --subject mom
  memoryctl delete 6f1c0e3a-...`

const rootShortDesc string = "Subject memory pipeline CLI"

type rootOptions struct {
	identity string
	subject  string
	name     string
	limit    int
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "memoryctl",
		Short:         rootShortDesc,
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.identity, "identity", "i", "local", "Owning identity")
	pf.StringVarP(&opts.subject, "subject", "s", "", "Subject the memories are about")
	pf.StringVarP(&opts.name, "name", "n", "", "Display name of the subject (default: --subject)")
	pf.IntVarP(&opts.limit, "limit", "l", 50, "Maximum facts to list")

	cmd.AddCommand(
		newExtractCmd(opts),
		newListCmd(opts),
		newShowCmd(opts),
		newContinuityCmd(opts),
		newToggleCmd(opts, true),
		newToggleCmd(opts, false),
		newDeleteCmd(opts),
	)
	return cmd
}

func (o *rootOptions) subjectName() string {
	if n := strings.TrimSpace(o.name); n != "" {
		return n
	}
	return o.subject
}

func (o *rootOptions) requireSubject() error {
	if strings.TrimSpace(o.identity) == "" {
		return errors.New("--identity is required")
	}
	if strings.TrimSpace(o.subject) == "" {
		return errors.New("--subject is required")
	}
	return nil
}

// withApp loads configuration, wires the pipeline and runs fn against it.
func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Options{Mode: cfg.Log.Mode, Verbose: cfg.Log.Verbose})
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := openApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
