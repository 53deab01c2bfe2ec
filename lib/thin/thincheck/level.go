// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package thincheck

import (
	"fmt"
)

// Level says which tree a node belongs to, and so how the values of
// a leaf are to be interpreted.  The node itself does not say; the
// level is decided by how the walk reached it.
type Level int

const (
	// LevelTop is the upper level of the mapping tree: thin device
	// ID -> root of that device's LevelBottom tree.
	LevelTop Level = iota
	// LevelBottom is the lower level of the mapping tree: virtual
	// block -> BlockTime.
	LevelBottom
	// LevelDetails is the device-details tree: thin device ID ->
	// DeviceDetails.
	LevelDetails

	nrLevels
)

func (l Level) String() string {
	switch l {
	case LevelTop:
		return "top"
	case LevelBottom:
		return "bottom"
	case LevelDetails:
		return "details"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Set implements pflag.Value.
func (l *Level) Set(str string) error {
	for lvl := Level(0); lvl < nrLevels; lvl++ {
		if str == lvl.String() {
			*l = lvl
			return nil
		}
	}
	return fmt.Errorf("invalid level: %q", str)
}

// Type implements pflag.Value.
func (*Level) Type() string { return "level" }
