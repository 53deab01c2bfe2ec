// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package blockio

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"git.lukeshu.com/thinp-progs-ng/lib/diskio"
)

// Engine reads metadata blocks.
//
// Both methods block until every requested block is read or an
// error occurs.  ReadMany fills every block in place and fails as a
// whole if any one block cannot be read; it makes no promise about
// the order in which the reads are issued.
type Engine interface {
	Name() string
	BlockSize() int
	NrBlocks() BlockAddr
	Read(context.Context, *Block) error
	ReadMany(context.Context, []Block) error
	Close() error
}

type fileReader struct {
	file     diskio.File[DevOffset]
	nrBlocks BlockAddr
}

func newFileReader(file diskio.File[DevOffset]) fileReader {
	return fileReader{
		file:     file,
		nrBlocks: BlockAddr(file.Size() / BlockSize),
	}
}

func (r fileReader) Name() string { return r.file.Name() }
func (r fileReader) BlockSize() int { return BlockSize }
func (r fileReader) NrBlocks() BlockAddr { return r.nrBlocks }
func (r fileReader) Close() error { return r.file.Close() }

func (r fileReader) readOne(ctx context.Context, blk *Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if blk.Addr >= r.nrBlocks {
		return &IOError{Addr: blk.Addr, Err: ErrOutOfRange}
	}
	blk.alloc(BlockSize)
	n, err := r.file.ReadAt(blk.Data, blk.Addr.Offset(BlockSize))
	switch {
	case n == len(blk.Data) && (err == nil || errors.Is(err, io.EOF)):
		return nil
	case err == nil:
		err = io.ErrUnexpectedEOF
	}
	return &IOError{
		Addr: blk.Addr,
		Err:  fmt.Errorf("short read (%v/%v bytes): %w", n, len(blk.Data), err),
	}
}

// SyncEngine reads blocks one after another.
type SyncEngine struct {
	fileReader
}

var _ Engine = (*SyncEngine)(nil)

func NewSyncEngine(file diskio.File[DevOffset]) *SyncEngine {
	return &SyncEngine{fileReader: newFileReader(file)}
}

func (e *SyncEngine) Read(ctx context.Context, blk *Block) error {
	return e.readOne(ctx, blk)
}

func (e *SyncEngine) ReadMany(ctx context.Context, blocks []Block) error {
	for i := range blocks {
		if err := e.readOne(ctx, &blocks[i]); err != nil {
			return err
		}
	}
	return nil
}

// ParallelEngine keeps up to QueueDepth reads in flight at once, so
// that a batch costs roughly one round of device latency rather than
// one per block.
type ParallelEngine struct {
	fileReader
	queueDepth int
}

var _ Engine = (*ParallelEngine)(nil)

func NewParallelEngine(file diskio.File[DevOffset], queueDepth int) *ParallelEngine {
	if queueDepth < 1 {
		queueDepth = 1
	}
	return &ParallelEngine{
		fileReader: newFileReader(file),
		queueDepth: queueDepth,
	}
}

func (e *ParallelEngine) Read(ctx context.Context, blk *Block) error {
	return e.readOne(ctx, blk)
}

func (e *ParallelEngine) ReadMany(ctx context.Context, blocks []Block) error {
	switch len(blocks) {
	case 0:
		return nil
	case 1:
		return e.readOne(ctx, &blocks[0])
	}
	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(e.queueDepth)
	for i := range blocks {
		blk := &blocks[i]
		grp.Go(func() error {
			return e.readOne(ctx, blk)
		})
	}
	return grp.Wait()
}
