// Copyright (C) 2019-2022  Ambassador Labs
// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: Apache-2.0
//
// Contains code based on:
// https://github.com/datawire/dlib/blob/b09ab2e017e16d261f05fff5b3b860d645e774d4/dlog/logger_logrus.go
// https://github.com/datawire/dlib/blob/b09ab2e017e16d261f05fff5b3b860d645e774d4/dlog/logger_testing.go
// https://github.com/telepresenceio/telepresence/blob/ece94a40b00a90722af36b12e40f91cbecc0550c/pkg/log/formatter.go

package textui

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"git.lukeshu.com/go/typedsync"
	"github.com/datawire/dlib/dlog"
)

const (
	thisModule  = "git.lukeshu.com/thinp-progs-ng"
	thisPackage = thisModule + "/lib/textui"
)

// A log line is
//
//	TIME LVL [early fields] : message : [late fields] (from file:line)
//
// where a field is early if fieldOrd gives it a negative position.
type logger struct {
	parent *logger
	out    io.Writer
	lvl    dlog.LogLevel

	// only valid if parent is non-nil
	fieldKey string
	fieldVal any
}

var _ dlog.OptimizedLogger = (*logger)(nil)

// NewLogger returns a dlog.Logger that writes lines at or above lvl
// to out.  Numbers in messages and fields are humanized.
func NewLogger(out io.Writer, lvl dlog.LogLevel) dlog.Logger {
	return &logger{
		out: out,
		lvl: lvl,
	}
}

// Helper implements dlog.Logger.
func (*logger) Helper() {}

// WithField implements dlog.Logger.
func (l *logger) WithField(key string, value any) dlog.Logger {
	return &logger{
		parent: l,
		out:    l.out,
		lvl:    l.lvl,

		fieldKey: key,
		fieldVal: value,
	}
}

type logWriter struct {
	log *logger
	lvl dlog.LogLevel
}

// Write implements io.Writer.
func (lw logWriter) Write(data []byte) (int, error) {
	lw.log.log(lw.lvl, func(w io.Writer) {
		_, _ = w.Write(data)
	})
	return len(data), nil
}

// StdLogger implements dlog.Logger.
func (l *logger) StdLogger(lvl dlog.LogLevel) *log.Logger {
	return log.New(logWriter{log: l, lvl: lvl}, "", 0)
}

// Log implements dlog.Logger.
func (*logger) Log(dlog.LogLevel, string) {
	panic("should not happen: optimized log methods should be used instead")
}

// UnformattedLog implements dlog.OptimizedLogger.
func (l *logger) UnformattedLog(lvl dlog.LogLevel, args ...any) {
	l.log(lvl, func(w io.Writer) {
		_, _ = printer.Fprint(w, args...)
	})
}

// UnformattedLogln implements dlog.OptimizedLogger.
func (l *logger) UnformattedLogln(lvl dlog.LogLevel, args ...any) {
	l.log(lvl, func(w io.Writer) {
		_, _ = printer.Fprintln(w, args...)
	})
}

// UnformattedLogf implements dlog.OptimizedLogger.
func (l *logger) UnformattedLogf(lvl dlog.LogLevel, format string, args ...any) {
	l.log(lvl, func(w io.Writer) {
		_, _ = printer.Fprintf(w, format, args...)
	})
}

var (
	logBufPool = typedsync.Pool[*bytes.Buffer]{
		New: func() *bytes.Buffer {
			return new(bytes.Buffer)
		},
	}
	logMu      sync.Mutex
	thisModDir string
)

func init() {
	//nolint:dogsled // I can't change the signature of the stdlib.
	_, file, _, _ := runtime.Caller(0)
	thisModDir = filepath.Dir(filepath.Dir(filepath.Dir(file)))
}

type logField struct {
	key string
	val any
}

// fields returns the fields of l in display order; the innermost
// WithField wins for a repeated key.
func (l *logger) fields() []logField {
	seen := make(map[string]struct{})
	var ret []logField
	for f := l; f.parent != nil; f = f.parent {
		if _, dup := seen[f.fieldKey]; dup {
			continue
		}
		seen[f.fieldKey] = struct{}{}
		ret = append(ret, logField{key: f.fieldKey, val: f.fieldVal})
	}
	sort.Slice(ret, func(i, j int) bool {
		iOrd, jOrd := fieldOrd(ret[i].key), fieldOrd(ret[j].key)
		if iOrd != jOrd {
			return iOrd < jOrd
		}
		return ret[i].key < ret[j].key
	})
	return ret
}

func (l *logger) log(lvl dlog.LogLevel, writeMsg func(io.Writer)) {
	if lvl > l.lvl {
		return
	}
	logBuf, _ := logBufPool.Get()
	defer logBufPool.Put(logBuf)
	defer logBuf.Reset()

	const timeFmt = "15:04:05.0000"
	var timeBuf [len(timeFmt)]byte
	logBuf.Write(time.Now().AppendFormat(timeBuf[:0], timeFmt))
	logBuf.WriteString(" ")
	logBuf.WriteString(levelTag(lvl))

	fields := l.fields()
	late := sort.Search(len(fields), func(i int) bool {
		return fieldOrd(fields[i].key) >= 0
	})
	for _, field := range fields[:late] {
		writeField(logBuf, field.key, field.val)
	}

	logBuf.WriteString(" : ")
	writeMsg(logBuf)

	logBuf.WriteString(" :")
	for _, field := range fields[late:] {
		writeField(logBuf, field.key, field.val)
	}

	if file, line, ok := callerOutsidePackage(); ok {
		fmt.Fprintf(logBuf, " (from %s:%d)", file, line)
	}

	logBuf.WriteByte('\n')

	logMu.Lock()
	_, _ = l.out.Write(logBuf.Bytes())
	logMu.Unlock()
}

// callerOutsidePackage returns the innermost frame that is in this
// module but not in this package, with the file name relative to the
// module root.
func callerOutsidePackage() (file string, line int, ok bool) {
	const (
		maximumCallerDepth int = 25
		minimumCallerDepth int = 4 // runtime.Callers + callerOutsidePackage + .log + .Log
	)
	var pcs [maximumCallerDepth]uintptr
	depth := runtime.Callers(minimumCallerDepth, pcs[:])
	frames := runtime.CallersFrames(pcs[:depth])
	for f, again := frames.Next(); again; f, again = frames.Next() {
		if !strings.HasPrefix(f.Function, thisModule+"/") || strings.HasPrefix(f.Function, thisPackage+".") {
			continue
		}
		return strings.TrimPrefix(f.File, thisModDir+"/"), f.Line, true
	}
	return "", 0, false
}

// fieldOrd returns the sort-position for a given log-field-key.  Fields
// with a negative position are written to the left of the message,
// the rest to the right.
var fieldOrds = map[string]int{
	"THREAD": -99, // dgroup

	"thincheck.tree":     -2,
	"thin-check.inspect": -1,
}

func fieldOrd(key string) int {
	if ord, ok := fieldOrds[key]; ok {
		return ord
	}
	return 1
}

// fieldPrefixes are stripped from field names when writing them.
var fieldPrefixes = []string{
	"thincheck.",
	"thin-check.",
}

func writeField(w io.Writer, key string, val any) {
	valStr := printer.Sprint(val)
	if needsQuote(valStr) {
		valStr = strconv.Quote(valStr)
	}

	name := key
	if name == "THREAD" {
		name = "thread"
		valStr = strings.TrimPrefix(valStr, "/main")
		valStr = strings.TrimPrefix(valStr, "/")
		if valStr == "" {
			return
		}
	}
	for _, prefix := range fieldPrefixes {
		if strings.HasPrefix(name, prefix) {
			name = strings.TrimPrefix(name, prefix)
			break
		}
	}

	fmt.Fprintf(w, " %s=%s", name, valStr)
}

func needsQuote(str string) bool {
	if strings.HasPrefix(str, `"`) {
		return true
	}
	for _, r := range str {
		if !unicode.IsPrint(r) || r == ' ' {
			return true
		}
	}
	return false
}
