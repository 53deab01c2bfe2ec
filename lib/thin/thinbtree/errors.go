// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package thinbtree

// DecodeError is returned when a node's declared shape does not fit
// the bytes it was read from.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "malformed node: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }
