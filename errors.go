// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package baobab

import "errors"

var (
	ErrNotFound          = errors.New("baobab: entry not found")
	ErrBrokenChain       = errors.New("baobab: required predecessor entry missing")
	ErrImproperRange     = errors.New("baobab: improper range")
	ErrConflict          = errors.New("baobab: conflicting entry already stored")
	ErrImproperArguments = errors.New("baobab: improper arguments")
)
