// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package textui

import (
	"fmt"
	"strings"

	"github.com/datawire/dlib/dlog"
	"github.com/spf13/pflag"
)

var logLevels = []struct {
	lvl   dlog.LogLevel
	name  string
	alias string
	tag   string
}{
	{dlog.LogLevelError, "error", "", "ERR"},
	{dlog.LogLevelWarn, "warn", "warning", "WRN"},
	{dlog.LogLevelInfo, "info", "", "INF"},
	{dlog.LogLevelDebug, "debug", "", "DBG"},
	{dlog.LogLevelTrace, "trace", "", "TRC"},
}

func levelTag(lvl dlog.LogLevel) string {
	for _, l := range logLevels {
		if l.lvl == lvl {
			return l.tag
		}
	}
	return "???"
}

// LogLevelFlag is a pflag.Value for choosing how verbose the logger
// returned by NewLogger is.
type LogLevelFlag struct {
	Level dlog.LogLevel
}

var _ pflag.Value = (*LogLevelFlag)(nil)

// Type implements pflag.Value.
func (*LogLevelFlag) Type() string { return "loglevel" }

// Set implements pflag.Value.
func (f *LogLevelFlag) Set(str string) error {
	str = strings.ToLower(str)
	for _, l := range logLevels {
		if str == l.name || (l.alias != "" && str == l.alias) {
			f.Level = l.lvl
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %q", str)
}

// String implements pflag.Value.
func (f *LogLevelFlag) String() string {
	for _, l := range logLevels {
		if l.lvl == f.Level {
			return l.name
		}
	}
	panic(fmt.Errorf("invalid log level: %#v", f.Level))
}
