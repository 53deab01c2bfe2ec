// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package binstruct

import (
	"fmt"
	"reflect"
)

// InvalidTypeError is a programmer error: the type cannot be laid
// out statically.  It is raised with panic().
type InvalidTypeError struct {
	Type reflect.Type
	Err  error
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("%v: %v", e.Type, e.Err)
}
func (e *InvalidTypeError) Unwrap() error { return e.Err }

type codecError struct {
	Type   reflect.Type
	Method string
	Err    error
}

func (e *codecError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("%v: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("(%v).%v: %v", e.Type, e.Method, e.Err)
}

type UnmarshalError codecError

func (e *UnmarshalError) Error() string { return (*codecError)(e).Error() }
func (e *UnmarshalError) Unwrap() error { return e.Err }

type MarshalError codecError

func (e *MarshalError) Error() string { return (*codecError)(e).Error() }
func (e *MarshalError) Unwrap() error { return e.Err }
