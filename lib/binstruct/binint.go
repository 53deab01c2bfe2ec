// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package binstruct

import (
	"reflect"

	"git.lukeshu.com/thinp-progs-ng/lib/binstruct/binint"
)

type (
	U8    = binint.U8
	U32le = binint.U32le
	U64le = binint.U64le
)

// On-disk metadata is little-endian and unsigned throughout; those
// are the only plain kinds that get an implicit wire type.
var intKind2Type = map[reflect.Kind]reflect.Type{
	reflect.Uint8:  reflect.TypeOf(U8(0)),
	reflect.Uint32: reflect.TypeOf(U32le(0)),
	reflect.Uint64: reflect.TypeOf(U64le(0)),
}
