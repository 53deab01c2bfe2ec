// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package blockio

import (
	"context"
	"fmt"
	"strings"

	"github.com/datawire/dlib/dlog"
	"github.com/spf13/pflag"

	"git.lukeshu.com/thinp-progs-ng/lib/diskio"
	"git.lukeshu.com/thinp-progs-ng/lib/textui"
)

type EngineKind int

const (
	EngineParallel EngineKind = iota
	EngineSync
)

var _ pflag.Value = (*EngineKind)(nil)

// Type implements pflag.Value.
func (k *EngineKind) Type() string { return "engine" }

// Set implements pflag.Value.
func (k *EngineKind) Set(str string) error {
	switch strings.ToLower(str) {
	case "parallel", "async":
		*k = EngineParallel
	case "sync":
		*k = EngineSync
	default:
		return fmt.Errorf("invalid engine: %q", str)
	}
	return nil
}

// String implements pflag.Value.
func (k *EngineKind) String() string {
	switch *k {
	case EngineParallel:
		return "parallel"
	case EngineSync:
		return "sync"
	default:
		panic(fmt.Errorf("invalid engine kind: %d", int(*k)))
	}
}

// DefaultQueueDepth is the number of reads a ParallelEngine keeps in
// flight when no other depth is configured.
var DefaultQueueDepth = textui.Tunable(256)

type EngineConfig struct {
	Kind EngineKind
	// QueueDepth is only used by EngineParallel; <=0 means
	// DefaultQueueDepth.
	QueueDepth int
	// CacheSize is a number of blocks; 0 disables the cache.
	CacheSize int
}

// NewEngine builds the engine stack described by cfg over an
// already-open file.  Closing the Engine closes the file.
func NewEngine(ctx context.Context, file diskio.File[DevOffset], cfg EngineConfig) (Engine, error) {
	var engine Engine
	switch cfg.Kind {
	case EngineSync:
		engine = NewSyncEngine(file)
	case EngineParallel:
		depth := cfg.QueueDepth
		if depth <= 0 {
			depth = DefaultQueueDepth
		}
		engine = NewParallelEngine(file, depth)
	default:
		return nil, fmt.Errorf("invalid engine kind: %d", int(cfg.Kind))
	}
	dlog.Debugf(ctx, "metadata device %q: %v blocks, engine=%v queue-depth=%v cache-size=%v",
		file.Name(), engine.NrBlocks(), &cfg.Kind, cfg.QueueDepth, cfg.CacheSize)
	if cfg.CacheSize > 0 {
		cached, err := NewCachedEngine(engine, cfg.CacheSize)
		if err != nil {
			_ = engine.Close()
			return nil, err
		}
		engine = cached
	}
	return engine, nil
}

// Open opens the metadata device read-only.
func Open(ctx context.Context, filename string, cfg EngineConfig) (Engine, error) {
	file, err := diskio.OpenOSFile[DevOffset](filename)
	if err != nil {
		return nil, err
	}
	engine, err := NewEngine(ctx, file, cfg)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return engine, nil
}
