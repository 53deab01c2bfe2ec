// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package thinsum_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.lukeshu.com/thinp-progs-ng/lib/thin/blockio"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/thinsum"
)

func TestStampClassify(t *testing.T) {
	t.Parallel()
	for _, typ := range []thinsum.BlockType{
		thinsum.BlockTypeSuperblock,
		thinsum.BlockTypeNode,
		thinsum.BlockTypeIndex,
		thinsum.BlockTypeBitmap,
	} {
		typ := typ
		t.Run(typ.String(), func(t *testing.T) {
			t.Parallel()
			buf := make([]byte, 4096)
			for i := range buf {
				buf[i] = byte(i * 7)
			}
			require.NoError(t, thinsum.Stamp(buf, typ))
			assert.Equal(t, typ, thinsum.Classify(buf))

			buf[100] ^= 0x01
			assert.Equal(t, thinsum.BlockTypeUnknown, thinsum.Classify(buf))
		})
	}
}

func TestClassifyGarbage(t *testing.T) {
	t.Parallel()
	assert.Equal(t, thinsum.BlockTypeUnknown, thinsum.Classify(make([]byte, 4096)))
	assert.Equal(t, thinsum.BlockTypeUnknown, thinsum.Classify([]byte{1, 2}))
}

func TestStampErrors(t *testing.T) {
	t.Parallel()
	assert.Error(t, thinsum.Stamp(make([]byte, 64), thinsum.BlockTypeUnknown))
	assert.Error(t, thinsum.Stamp(make([]byte, 2), thinsum.BlockTypeNode))
}

func TestBlockTypeString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "btree-node", thinsum.BlockTypeNode.String())
	assert.Equal(t, "42", thinsum.BlockType(42).String())
}

func TestVerify(t *testing.T) {
	t.Parallel()
	blk := blockio.Block{Addr: 42, Data: make([]byte, blockio.BlockSize)}
	require.NoError(t, thinsum.Stamp(blk.Data, thinsum.BlockTypeIndex))
	assert.NoError(t, thinsum.Verify(blk, thinsum.BlockTypeIndex))

	err := thinsum.Verify(blk, thinsum.BlockTypeNode)
	var csumErr *thinsum.ChecksumError
	require.True(t, errors.As(err, &csumErr))
	assert.Equal(t, blockio.BlockAddr(42), csumErr.Addr)
	assert.Equal(t, thinsum.BlockTypeIndex, csumErr.Got)
	assert.EqualError(t, err, "block 42: checksum marks it as a space-map-index, not a btree-node")

	blk.Data[7] ^= 0x80
	assert.EqualError(t, thinsum.Verify(blk, thinsum.BlockTypeNode), "block 42: checksum mismatch: not a valid btree-node")
}
