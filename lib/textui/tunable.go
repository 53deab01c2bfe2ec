// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package textui

// Tunable marks a value (an interval, a queue depth, a cache size)
// as a knob that may need adjusting once the checker has been
// profiled against real pools.
//
// TODO(lukeshu): Have Tunable be runtime-configurable.
func Tunable[T any](x T) T {
	return x
}
