// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Command thin-check validates the metadata device of a
// thin-provisioning pool.
package main

import (
	"context"
	"os"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/spf13/cobra"

	"git.lukeshu.com/thinp-progs-ng/lib/profile"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/blockio"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/thincheck"
	"git.lukeshu.com/thinp-progs-ng/lib/textui"
)

type subcommand struct {
	cobra.Command
	RunE func(blockio.Engine, *cobra.Command, []string) error
}

var inspectors []subcommand

type globalFlags struct {
	logLevel textui.LogLevelFlag
	engine   blockio.EngineConfig

	stopProfiling profile.StopFunc
}

// withEngine wraps runE so that it runs inside of a signal-handling
// dgroup, with logging set up and the metadata device (the last
// positional argument) opened.
func (gflags *globalFlags) withEngine(runE func(blockio.Engine, *cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := textui.NewLogger(os.Stderr, gflags.logLevel.Level)
		ctx = dlog.WithLogger(ctx, logger)
		ctx = dlog.WithField(ctx, "mem", new(textui.LiveMemUse))
		dlog.SetFallbackLogger(logger.WithField("thin-check.THIS_IS_A_BUG", true))

		grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{
			EnableSignalHandling: true,
		})
		grp.Go("main", func(ctx context.Context) (err error) {
			maybeSetErr := func(_err error) {
				if _err != nil && err == nil {
					err = _err
				}
			}
			defer func() {
				maybeSetErr(gflags.stopProfiling())
			}()
			engine, err := blockio.Open(ctx, args[len(args)-1], gflags.engine)
			if err != nil {
				return err
			}
			defer func() {
				maybeSetErr(engine.Close())
			}()

			cmd.SetContext(ctx)
			return runE(engine, cmd, args[:len(args)-1])
		})
		return grp.Wait()
	}
}

func main() {
	gflags := &globalFlags{
		logLevel: textui.LogLevelFlag{
			Level: dlog.LogLevelInfo,
		},
	}
	var checkFlags struct {
		opts thincheck.Options
		json bool
	}

	argparser := &cobra.Command{
		Use:   "thin-check [flags] METADATA_DEV",
		Short: "Check the metadata of a thin-provisioning pool",

		Args: cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: gflags.withEngine(func(engine blockio.Engine, cmd *cobra.Command, _ []string) error {
			return runCheck(cmd.Context(), engine, checkFlags.opts, checkFlags.json)
		}),

		SilenceErrors: true, // main() will handle this after .ExecuteContext() returns
		SilenceUsage:  true, // our FlagErrorFunc will handle it

		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	argparser.SetHelpTemplate(cliutil.HelpTemplate)

	pflags := argparser.PersistentFlags()
	pflags.Var(&gflags.logLevel, "verbosity", "set the verbosity")
	pflags.Var(&gflags.engine.Kind, "engine", "read the metadata device with the `sync` or `parallel` I/O engine")
	pflags.IntVar(&gflags.engine.QueueDepth, "queue-depth", blockio.DefaultQueueDepth,
		"number of reads the parallel engine keeps in flight")
	pflags.IntVar(&gflags.engine.CacheSize, "cache-size", 0,
		"cache up to `N` metadata blocks in memory (0 disables the cache)")
	gflags.stopProfiling = profile.AddProfileFlags(pflags, "profile.")

	flags := argparser.Flags()
	flags.BoolVar(&checkFlags.opts.SuperblockOnly, "super-block-only", false, "only check the superblock")
	flags.BoolVar(&checkFlags.opts.SkipMappings, "skip-mappings", false, "do not walk the mapping tree")
	flags.BoolVar(&checkFlags.opts.SkipDetails, "skip-details", false, "do not walk the device-details tree")
	flags.BoolVar(&checkFlags.json, "json", false, "write the report to stdout as JSON")

	argparserInspect := &cobra.Command{
		Use:   "inspect {[flags]|SUBCOMMAND}",
		Short: "Dump (but don't check) parts of the metadata",

		Args: cliutil.WrapPositionalArgs(cliutil.OnlySubcommands),
		RunE: cliutil.RunSubcommands,
	}
	argparser.AddCommand(argparserInspect)

	for _, child := range inspectors {
		cmd := child.Command
		cmd.RunE = gflags.withEngine(child.RunE)
		argparserInspect.AddCommand(&cmd)
	}

	if err := argparser.ExecuteContext(context.Background()); err != nil {
		textui.Fprintf(os.Stderr, "%v: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}
