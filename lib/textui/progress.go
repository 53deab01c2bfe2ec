// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package textui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/datawire/dlib/dlog"
)

type Stats interface {
	comparable
	fmt.Stringer
}

// Progress logs a line describing the latest value passed to Set,
// at most once per interval, and only when the line has changed.
type Progress[T Stats] struct {
	ctx      context.Context //nolint:containedctx // for logging from the background goroutine
	lvl      dlog.LogLevel
	interval time.Duration

	cancel context.CancelFunc
	start  sync.Once
	done   chan struct{}

	mu      sync.Mutex
	cur     T
	oldStat T
	oldLine string
}

func NewProgress[T Stats](ctx context.Context, lvl dlog.LogLevel, interval time.Duration) *Progress[T] {
	ctx, cancel := context.WithCancel(ctx)
	return &Progress[T]{
		ctx:      ctx,
		lvl:      lvl,
		interval: interval,

		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (p *Progress[T]) Set(val T) {
	p.mu.Lock()
	p.cur = val
	p.mu.Unlock()
	p.start.Do(func() { go p.run() })
}

// Done logs the final value (if it has not already been logged) and
// stops the background goroutine.
func (p *Progress[T]) Done() {
	p.cancel()
	p.start.Do(func() { close(p.done) })
	<-p.done
}

func (p *Progress[T]) flush(force bool) {
	p.mu.Lock()
	cur := p.cur
	p.mu.Unlock()
	if !force && cur == p.oldStat {
		return
	}
	p.oldStat = cur

	line := cur.String()
	if !force && line == p.oldLine {
		return
	}
	p.oldLine = line

	dlog.Log(p.ctx, p.lvl, line)
}

func (p *Progress[T]) run() {
	defer close(p.done)
	p.flush(true)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			p.flush(false)
			return
		case <-ticker.C:
			p.flush(false)
		}
	}
}
