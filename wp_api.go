//
// Copyright (c) 2021-2024 The flashkit authors
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package flashkit

import (
	"github.com/openfw/flashkit/chip"
	"github.com/openfw/flashkit/wp"
)

// WPResult is the status code family of the write-protect operations.
// Values are forwarded from the engine untranslated.
type WPResult = wp.Result

const (
	WPOK                      WPResult = wp.OK                      // 0
	WPErrChipUnsupported      WPResult = wp.ErrChipUnsupported      // 1
	WPErrOther                WPResult = wp.ErrOther                // 2
	WPErrReadFailed           WPResult = wp.ErrReadFailed           // 3
	WPErrWriteFailed          WPResult = wp.ErrWriteFailed          // 4
	WPErrVerifyFailed         WPResult = wp.ErrVerifyFailed         // 5
	WPErrRangeUnsupported     WPResult = wp.ErrRangeUnsupported     // 6
	WPErrModeUnsupported      WPResult = wp.ErrModeUnsupported      // 7
	WPErrRangeListUnavailable WPResult = wp.ErrRangeListUnavailable // 8
	WPErrUnsupportedState     WPResult = wp.ErrUnsupportedState     // 9
)

// WPMode is the protection enforcement mode.
type WPMode = wp.Mode

const (
	WPModeDisabled   WPMode = wp.ModeDisabled
	WPModeHardware   WPMode = wp.ModeHardware
	WPModePowerCycle WPMode = wp.ModePowerCycle
	WPModePermanent  WPMode = wp.ModePermanent
)

// WPCfg is a detached write-protect configuration: a mode plus a range.
type WPCfg struct {
	cfg wp.Cfg
}

// WPRanges is an immutable list of the protection ranges a chip admits.
type WPRanges struct {
	ranges []chip.WPRange
}

// WPCfgNew returns a new zeroed configuration.
func WPCfgNew() (*WPCfg, WPResult) {
	return &WPCfg{}, WPOK
}

// WPCfgRelease frees the configuration. Safe on nil.
func WPCfgRelease(c *WPCfg) {
	if c != nil {
		c.cfg = wp.Cfg{}
	}
}

// WPSetMode sets the protection mode.
func WPSetMode(c *WPCfg, mode WPMode) {
	c.cfg.Mode = mode
}

// WPGetMode returns the protection mode.
func WPGetMode(c *WPCfg) WPMode {
	return c.cfg.Mode
}

// WPSetRange sets the protection range.
func WPSetRange(c *WPCfg, start, length uint) {
	c.cfg.Start = uint32(start)
	c.cfg.Len = uint32(length)
}

// WPGetRange returns the protection range.
func WPGetRange(c *WPCfg) (start, length uint) {
	return uint(c.cfg.Start), uint(c.cfg.Len)
}

// wpSPIOnly gates the chip-touching WP operations: they need raw SPI
// access to the status registers.
func wpSPIOnly(f *FlashCtx) bool {
	return f.ctx.Mst != nil && f.ctx.Mst.Buses&chip.BusSPI != 0
}

// WPReadCfg populates c from the chip's current protection state.
func WPReadCfg(c *WPCfg, f *FlashCtx) WPResult {
	if !wpSPIOnly(f) {
		return WPErrOther
	}
	return wp.ReadCfg(&c.cfg, &f.ctx)
}

// WPWriteCfg applies c to the chip.
func WPWriteCfg(f *FlashCtx, c *WPCfg) WPResult {
	if !wpSPIOnly(f) {
		return WPErrOther
	}
	return wp.WriteCfg(&f.ctx, &c.cfg)
}

// WPGetAvailableRanges lists every protection range the probed chip
// admits. The list is an owned snapshot; release it with
// WPRangesRelease.
func WPGetAvailableRanges(f *FlashCtx) (*WPRanges, WPResult) {
	if !wpSPIOnly(f) {
		return nil, WPErrOther
	}
	rr, res := wp.GetAvailableRanges(&f.ctx)
	if res != wp.OK {
		return nil, res
	}
	return &WPRanges{ranges: rr}, WPOK
}

// WPRangesGetCount returns the number of ranges in the list.
func WPRangesGetCount(r *WPRanges) uint {
	return uint(len(r.ranges))
}

// WPRangesGetRange returns the range at index. Indexes at or beyond the
// count fail with WPErrOther.
func WPRangesGetRange(r *WPRanges, index uint) (start, length uint, res WPResult) {
	if index >= uint(len(r.ranges)) {
		return 0, 0, WPErrOther
	}
	return uint(r.ranges[index].Start), uint(r.ranges[index].Len), WPOK
}

// WPRangesRelease frees the list. Safe on nil.
func WPRangesRelease(r *WPRanges) {
	if r != nil {
		r.ranges = nil
	}
}
