// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package profile

import (
	"fmt"
	"os"

	"github.com/datawire/dlib/derror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type flagSet struct {
	shutdown []StopFunc
}

// Stop finishes every profile that was started, most recent first.
func (fs *flagSet) Stop() error {
	var errs derror.MultiError
	for i := len(fs.shutdown) - 1; i >= 0; i-- {
		if err := fs.shutdown[i](); err != nil {
			errs = append(errs, err)
		}
	}
	fs.shutdown = nil
	if len(errs) > 0 {
		return errs
	}
	return nil
}

type flagValue struct {
	parent   *flagSet
	start    startFunc
	filename string
}

var _ pflag.Value = (*flagValue)(nil)

// String implements pflag.Value.
func (fv *flagValue) String() string { return fv.filename }

// Type implements pflag.Value.
func (*flagValue) Type() string { return "filename" }

// Set implements pflag.Value.
func (fv *flagValue) Set(filename string) error {
	if filename == "" {
		return nil
	}
	fh, err := os.Create(filename)
	if err != nil {
		return err
	}
	stop, err := fv.start(fh)
	if err != nil {
		_ = fh.Close()
		return err
	}
	fv.filename = filename
	fv.parent.shutdown = append(fv.parent.shutdown, func() error {
		if err := stop(); err != nil {
			_ = fh.Close()
			return fmt.Errorf("%s: %w", filename, err)
		}
		return fh.Close()
	})
	return nil
}

var flagProfiles = []struct {
	name  string
	start startFunc
	file  string
}{
	{"cpu", CPU, "cpu.pprof"},
	{"trace", Trace, "trace.out"},
	{"goroutine", Named("goroutine"), "goroutine.pprof"},
	{"heap", Named("heap"), "heap.pprof"},
	{"allocs", Named("allocs"), "allocs.pprof"},
	{"block", Named("block"), "block.pprof"},
	{"mutex", Named("mutex"), "mutex.pprof"},
}

// AddProfileFlags adds a "{prefix}{name}=FILENAME" flag for each
// supported profile, and returns a function that finishes writing
// whichever profiles were requested; call it at program shutdown.
func AddProfileFlags(flags *pflag.FlagSet, prefix string) StopFunc {
	root := new(flagSet)
	for _, prof := range flagProfiles {
		flags.Var(&flagValue{parent: root, start: prof.start}, prefix+prof.name,
			fmt.Sprintf("write a %s profile to the file `%s`", prof.name, prof.file))
		_ = cobra.MarkFlagFilename(flags, prefix+prof.name)
	}
	return root.Stop
}
