// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package containers_test

import (
	"bytes"
	"testing"

	"git.lukeshu.com/go/lowmemjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.lukeshu.com/thinp-progs-ng/lib/containers"
)

func TestSetSub(t *testing.T) {
	t.Parallel()
	a := containers.NewSet[uint64](1, 2, 3, 5)
	b := containers.NewSet[uint64](2, 3, 4)
	assert.Equal(t, []uint64{1, 5}, a.Sub(b))
	assert.Equal(t, []uint64{4}, b.Sub(a))
	assert.Nil(t, a.Sub(a))
	assert.Equal(t, []uint64{1, 2, 3, 5}, a.Sorted())
}

func TestSetJSON(t *testing.T) {
	t.Parallel()
	in := containers.NewSet[uint64](7, 1, 3)
	var buf bytes.Buffer
	require.NoError(t, lowmemjson.NewEncoder(&buf).Encode(in))
	assert.JSONEq(t, `[1,3,7]`, buf.String())

	// as a struct field, too
	buf.Reset()
	require.NoError(t, lowmemjson.NewEncoder(&buf).Encode(struct {
		Devices containers.Set[uint64] `json:"devices"`
	}{in}))
	assert.JSONEq(t, `{"devices":[1,3,7]}`, buf.String())
}

func TestSortedKeys(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []uint64{1, 2, 9}, containers.SortedKeys(map[uint64]string{9: "c", 1: "a", 2: "b"}))
	assert.Empty(t, containers.SortedKeys(map[uint64]string{}))
}
