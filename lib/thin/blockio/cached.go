// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package blockio

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// CachedEngine layers an ARC cache of block contents over another
// Engine.  Cache hits copy the cached bytes into the caller's Block,
// so callers may Free their blocks as usual.
type CachedEngine struct {
	Engine
	mu    sync.Mutex
	cache *lru.ARCCache
}

var _ Engine = (*CachedEngine)(nil)

func NewCachedEngine(inner Engine, size int) (*CachedEngine, error) {
	cache, err := lru.NewARC(size)
	if err != nil {
		return nil, fmt.Errorf("block cache: %w", err)
	}
	return &CachedEngine{
		Engine: inner,
		cache:  cache,
	}, nil
}

func (e *CachedEngine) lookup(blk *Block) bool {
	e.mu.Lock()
	val, ok := e.cache.Get(blk.Addr)
	e.mu.Unlock()
	if !ok {
		return false
	}
	data := val.([]byte)
	blk.alloc(len(data))
	copy(blk.Data, data)
	return true
}

func (e *CachedEngine) store(blk Block) {
	data := make([]byte, len(blk.Data))
	copy(data, blk.Data)
	e.mu.Lock()
	e.cache.Add(blk.Addr, data)
	e.mu.Unlock()
}

func (e *CachedEngine) Read(ctx context.Context, blk *Block) error {
	if e.lookup(blk) {
		return nil
	}
	if err := e.Engine.Read(ctx, blk); err != nil {
		return err
	}
	e.store(*blk)
	return nil
}

func (e *CachedEngine) ReadMany(ctx context.Context, blocks []Block) error {
	var (
		misses   []Block
		missIdxs []int
	)
	for i := range blocks {
		if !e.lookup(&blocks[i]) {
			misses = append(misses, blocks[i])
			missIdxs = append(missIdxs, i)
		}
	}
	if len(misses) == 0 {
		return nil
	}
	err := e.Engine.ReadMany(ctx, misses)
	// Buffers the inner engine allocated belong to the caller's
	// blocks, even when the batch failed.
	for j, i := range missIdxs {
		blocks[i] = misses[j]
	}
	if err != nil {
		return err
	}
	for _, blk := range misses {
		e.store(blk)
	}
	return nil
}

func (e *CachedEngine) Close() error {
	e.mu.Lock()
	e.cache.Purge()
	e.mu.Unlock()
	return e.Engine.Close()
}
