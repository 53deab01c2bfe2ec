// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package textui

import (
	"fmt"
	"runtime"
	"sync"
	"time"
)

// LiveMemUse is a log field value that reports the memory use of
// the process each time the log line is formatted.
type LiveMemUse struct {
	mu    sync.Mutex
	stats runtime.MemStats
	last  time.Time
}

var _ fmt.Stringer = (*LiveMemUse)(nil)

var LiveMemUseUpdateInterval = Tunable(1 * time.Second)

func (o *LiveMemUse) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()

	// runtime.ReadMemStats() stops the world; rate-limit it.
	if now := time.Now(); now.Sub(o.last) > LiveMemUseUpdateInterval {
		runtime.ReadMemStats(&o.stats)
		o.last = now
	}

	// Of what the runtime has mapped (Sys), HeapReleased has been
	// handed back to the OS; the rest is split between data, heap
	// fragmentation, and idle spans.
	var (
		released = o.stats.HeapReleased
		mapped   = o.stats.Sys - released
		inuse    = o.stats.HeapInuse + o.stats.StackInuse + o.stats.MSpanInuse + o.stats.MCacheInuse +
			o.stats.BuckHashSys + o.stats.GCSys + o.stats.OtherSys
		frag = o.stats.HeapInuse - o.stats.HeapAlloc
	)

	return Sprintf("mapped=%.1f (data:%.1f + frag:%.1f + idle:%.1f) released=%.1f",
		IEC(mapped, "B"),
		IEC(inuse-frag, "B"),
		IEC(frag, "B"),
		IEC(mapped-inuse, "B"),
		IEC(released, "B"))
}
