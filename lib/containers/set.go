// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package containers implements small generic containers.
package containers

import (
	"io"

	"git.lukeshu.com/go/lowmemjson"
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

type Set[T constraints.Ordered] map[T]struct{}

var _ lowmemjson.Encodable = Set[int]{}

func NewSet[T constraints.Ordered](values ...T) Set[T] {
	ret := make(Set[T], len(values))
	for _, v := range values {
		ret.Insert(v)
	}
	return ret
}

// EncodeJSON implements lowmemjson.Encodable; sets are encoded as
// sorted arrays.
func (o Set[T]) EncodeJSON(w io.Writer) error {
	return lowmemjson.NewEncoder(w).Encode(o.Sorted())
}

func (o Set[T]) Insert(v T) {
	o[v] = struct{}{}
}

func (o Set[T]) Has(v T) bool {
	_, has := o[v]
	return has
}

func (o Set[T]) Sorted() []T {
	return SortedKeys(o)
}

// Sub returns the members of o that are not in p, in sorted order.
func (o Set[T]) Sub(p Set[T]) []T {
	var ret []T
	for v := range o {
		if !p.Has(v) {
			ret = append(ret, v)
		}
	}
	slices.Sort(ret)
	return ret
}
