// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package containers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"git.lukeshu.com/thinp-progs-ng/lib/containers"
)

func TestSlicePool(t *testing.T) {
	t.Parallel()
	var pool containers.SlicePool[byte]
	assert.Nil(t, pool.Get(0))

	buf := pool.Get(8)
	assert.Len(t, buf, 8)
	pool.Put(buf)
	pool.Put(nil)

	// Whether or not the pooled buffer is reused, the length must
	// be what was asked for.
	assert.Len(t, pool.Get(4), 4)
	assert.Len(t, pool.Get(16), 16)
}
