// SPDX-License-Identifier: GPL-3.0-or-later

// Command capport runs a capport pipeline from a directory of YAML
// configuration (§6 External Interfaces).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/capport-dev/capport"
	"github.com/capport-dev/capport/capperr"
	"github.com/capport-dev/capport/config"
	"github.com/capport-dev/capport/envreg"
	"github.com/capport-dev/capport/internal/capplog"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var opts options

	root := &cobra.Command{
		Use:          "capport",
		Short:        "Run a configuration-driven data-movement pipeline",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd.Context(), opts)
		},
	}
	root.Flags().StringVarP(&opts.configDir, "config", "c", "", "directory of YAML configuration (required)")
	root.Flags().StringVarP(&opts.outputDir, "output", "o", "", "directory for logs and local-write outputs (required)")
	root.Flags().StringVarP(&opts.pipeline, "pipeline", "p", "", "pipeline name to run (required)")
	root.Flags().StringVarP(&opts.runner, "runner", "r", "", "runner spec name")
	root.Flags().BoolVarP(&opts.execute, "execute", "e", false, "execute writes (absent: dry-run)")
	root.Flags().StringVarP(&opts.refDate, "ref-date", "d", "", "reference date override (ISO date)")
	root.Flags().StringVarP(&opts.refDatetime, "ref-datetime", "t", "", "reference datetime override (ISO datetime+tz)")
	for _, name := range []string{"config", "output", "pipeline"} {
		_ = root.MarkFlagRequired(name)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "capport: interrupted")
		return 130
	}

	var capErr *capperr.Error
	if errors.As(err, &capErr) {
		fmt.Fprintln(os.Stderr, "capport:", capErr.Error())
		return capperr.ExitCode(capErr.Kind)
	}
	fmt.Fprintln(os.Stderr, "capport:", err)
	return 1
}

type options struct {
	configDir   string
	outputDir   string
	pipeline    string
	runner      string
	execute     bool
	refDate     string
	refDatetime string
}

func execute(ctx context.Context, opts options) error {
	env, err := envreg.Bootstrap(opts.configDir, opts.outputDir, opts.execute)
	if err != nil {
		return err
	}
	defer env.Teardown()

	if opts.refDate != "" {
		env.SetRefDate(opts.refDate)
	}
	if opts.refDatetime != "" {
		t, err := time.Parse(time.RFC3339, opts.refDatetime)
		if err != nil {
			return fmt.Errorf("capport: invalid --ref-datetime %q: %w", opts.refDatetime, err)
		}
		env.SetRefDatetime(t)
	}

	doc, err := config.LoadDir(opts.configDir)
	if err != nil {
		return err
	}

	logger, logFile, err := buildLogger(doc, opts.pipeline, opts.outputDir)
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}

	engine, err := capport.Build(doc, opts.pipeline, env, logger)
	if err != nil {
		return err
	}

	if opts.runner == "" {
		return engine.RunOnce(ctx)
	}
	runnerSpec, err := config.FindRunner(doc, opts.runner)
	if err != nil {
		return err
	}
	return engine.RunWithRunner(ctx, runnerSpec)
}

// buildLogger picks the LoggerSpec named after the pipeline if one
// exists, else the document's first logger, else falls back to a
// discarding logger so a configuration with no logger entries still
// runs (logging is ambient, not a required catalog entry).
func buildLogger(doc *config.Document, pipeline, outputDir string) (capplog.Logger, *os.File, error) {
	spec, ok := findLoggerSpec(doc, pipeline)
	if !ok {
		return capplog.Discard(), nil, nil
	}
	return config.BuildLogger(spec, pipeline, outputDir, time.Now())
}

func findLoggerSpec(doc *config.Document, pipeline string) (config.LoggerSpec, bool) {
	for _, l := range doc.Loggers {
		if l.Name == pipeline {
			return l, true
		}
	}
	if len(doc.Loggers) > 0 {
		return doc.Loggers[0], true
	}
	return config.LoggerSpec{}, false
}
