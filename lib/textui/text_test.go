// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package textui_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"git.lukeshu.com/thinp-progs-ng/lib/textui"
)

func TestFprintf(t *testing.T) {
	t.Parallel()
	var out strings.Builder
	_, _ = textui.Fprintf(&out, "%d", 12345)
	assert.Equal(t, "12,345", out.String())
}

func TestPortion(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "100% (0/0)", fmt.Sprint(textui.Portion[int]{}))
	assert.Equal(t, "0% (1/12,345)", fmt.Sprint(textui.Portion[int]{N: 1, D: 12345}))
	assert.Equal(t, "50% (2/4)", fmt.Sprint(textui.Portion[uint64]{N: 2, D: 4}))
}

func TestIEC(t *testing.T) {
	t.Parallel()
	kib := fmt.Sprint(textui.IEC(4096, "B"))
	assert.True(t, strings.HasPrefix(kib, "4"), kib)
	assert.True(t, strings.HasSuffix(kib, "KiB"), kib)
	mib := fmt.Sprint(textui.IEC(uint64(3<<19), "B"))
	assert.True(t, strings.HasPrefix(mib, "1"), mib)
	assert.True(t, strings.HasSuffix(mib, "MiB"), mib)
}
