// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package textui implements utilities for emitting human-friendly
// text on stdout and stderr.
package textui

import (
	"fmt"
	"io"
	"math/big"
	"strings"
	"unicode/utf8"

	"golang.org/x/exp/constraints"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.English)

// Fprintf is like `fmt.Fprintf`, but (1) includes the extensions of
// `golang.org/x/text/message.Printer`, and (2) is useful for marking
// when a print call is part of the UI, rather than something
// internal.
func Fprintf(w io.Writer, key string, a ...any) (n int, err error) {
	return printer.Fprintf(w, key, a...)
}

// Sprintf is like `fmt.Sprintf`, but (1) includes the extensions of
// `golang.org/x/text/message.Printer`, and (2) is useful for marking
// when a sprint call is part of the UI, rather than something
// internal.
func Sprintf(key string, a ...any) string {
	return printer.Sprintf(key, a...)
}

// fmtStateString returns the fmt.Printf string that produced a given
// fmt.State and verb, optionally with a different width.
func fmtStateString(st fmt.State, verb rune, width int, haveWidth bool) string {
	var ret strings.Builder
	ret.WriteByte('%')
	for _, flag := range []int{'-', '+', '#', ' ', '0'} {
		if st.Flag(flag) {
			ret.WriteByte(byte(flag))
		}
	}
	if haveWidth {
		fmt.Fprintf(&ret, "%v", width)
	}
	if prec, ok := st.Precision(); ok {
		fmt.Fprintf(&ret, ".%v", prec)
	}
	ret.WriteRune(verb)
	return ret.String()
}

////////////////////////////////////////////////////////////////////////////////

// Portion renders a fraction N/D as both a percentage and
// parenthetically as the exact fractional value, rendered with
// human-friendly commas.
//
// For example:
//
//	fmt.Sprint(Portion[int]{N: 1, D: 12345}) ⇒ "0% (1/12,345)"
type Portion[T constraints.Integer] struct {
	N, D T
}

var _ fmt.Stringer = Portion[int]{}

// String implements fmt.Stringer.
func (p Portion[T]) String() string {
	pct := uint64(100)
	if p.D > 0 {
		pct = (uint64(p.N) * 100) / uint64(p.D)
	}
	return printer.Sprintf("%d%% (%v/%v)", pct, uint64(p.N), uint64(p.D))
}

////////////////////////////////////////////////////////////////////////////////

type iec struct {
	Val  *big.Rat
	Unit string
}

var (
	_ fmt.Formatter = iec{}
	_ fmt.Stringer  = iec{}
)

// IEC renders a quantity with a binary (1024-based) prefix, such as
// "3.5MiB".
func IEC[T constraints.Integer](x T, unit string) iec {
	var val *big.Rat
	if x < 0 {
		val = new(big.Rat).SetInt64(int64(x))
	} else {
		val = new(big.Rat).SetUint64(uint64(x))
	}
	return iec{
		Val:  val,
		Unit: unit,
	}
}

var iecPrefixes = []string{
	"Ki",
	"Mi",
	"Gi",
	"Ti",
	"Pi",
	"Ei",
}

var (
	kibi    = big.NewRat(1024, 1)
	kibiInv = new(big.Rat).Inv(kibi)
)

// Format implements fmt.Formatter.
func (v iec) Format(f fmt.State, verb rune) {
	var prefix string
	rat := new(big.Rat).Abs(v.Val)
	for i := 0; rat.Cmp(kibi) >= 0 && i < len(iecPrefixes); i++ {
		rat.Mul(rat, kibiInv)
		prefix = iecPrefixes[i]
	}
	if v.Val.Sign() < 0 {
		rat.Neg(rat)
	}
	val, _ := rat.Float64()
	suffix := prefix + v.Unit

	var options []number.Option
	width, haveWidth := f.Width()
	if haveWidth {
		width -= utf8.RuneCountInString(suffix)
		options = append(options, number.FormatWidth(width))
	}
	if prec, ok := f.Precision(); ok {
		options = append(options, number.Precision(prec))
	}
	_, _ = printer.Fprintf(f, fmtStateString(f, verb, width, haveWidth)+"%s",
		number.Decimal(val, options...), suffix)
}

// String implements fmt.Stringer.
func (v iec) String() string {
	return fmt.Sprint(v)
}
