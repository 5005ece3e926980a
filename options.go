// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

package dynscale

import (
	"go.uber.org/zap"

	"github.com/pk910/dynamic-scale/scaletypes"
)

type DecoderOption func(*DecoderOptions)

type DecoderOptions struct {
	Logger     *zap.Logger
	ChainTypes *scaletypes.ChainTypes
}

// WithLogger sets the logger used for diagnostics. The default is a no-op
// logger.
func WithLogger(logger *zap.Logger) DecoderOption {
	return func(opts *DecoderOptions) {
		opts.Logger = logger
	}
}

// WithChainTypes supplies a pre-populated type dictionary instead of the
// empty one a new Decoder starts with.
func WithChainTypes(types *scaletypes.ChainTypes) DecoderOption {
	return func(opts *DecoderOptions) {
		opts.ChainTypes = types
	}
}
