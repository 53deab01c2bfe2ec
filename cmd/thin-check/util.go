// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bufio"
	"io"

	"git.lukeshu.com/go/lowmemjson"
	"github.com/davecgh/go-spew/spew"
)

func writeJSONFile(w io.Writer, obj any, cfg lowmemjson.ReEncoderConfig) (err error) {
	buffer := bufio.NewWriter(w)
	defer func() {
		if _err := buffer.Flush(); err == nil && _err != nil {
			err = _err
		}
	}()
	return lowmemjson.NewEncoder(lowmemjson.NewReEncoder(buffer, cfg)).Encode(obj)
}

func writeDump(w io.Writer, obj any) error {
	spew := spew.NewDefaultConfig()
	spew.DisablePointerAddresses = true
	buffer := bufio.NewWriter(w)
	spew.Fdump(buffer, obj)
	return buffer.Flush()
}
