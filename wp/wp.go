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

// Package wp drives SPI NOR write protection through status register 1:
// the BP bits select the protected range via the chip's decode table,
// SRP0 selects how the protection is enforced.
package wp

import (
	"github.com/golang/glog"

	"github.com/openfw/flashkit/chip"
	"github.com/openfw/flashkit/prog"
)

// Mode is the protection enforcement mode.
type Mode int

const (
	ModeDisabled Mode = iota
	ModeHardware
	ModePowerCycle
	ModePermanent
)

// Result is the write-protect status code family. The values are part of
// the public contract and must not be renumbered.
type Result int

const (
	OK                      Result = 0
	ErrChipUnsupported      Result = 1
	ErrOther                Result = 2
	ErrReadFailed           Result = 3
	ErrWriteFailed          Result = 4
	ErrVerifyFailed         Result = 5
	ErrRangeUnsupported     Result = 6
	ErrModeUnsupported      Result = 7
	ErrRangeListUnavailable Result = 8
	ErrUnsupportedState     Result = 9
)

// Cfg is a detached protection configuration: a mode plus a range.
type Cfg struct {
	Mode  Mode
	Start uint32
	Len   uint32
}

const (
	srp0Bit = 7
	bpShift = 2
)

func bpMask(d *chip.WPDesc) uint8 {
	return (uint8(1<<d.BPBits) - 1) << bpShift
}

// ReadCfg populates cfg from the chip's status register.
func ReadCfg(cfg *Cfg, c *prog.Context) Result {
	d := c.Chip.WP
	if d == nil {
		return ErrChipUnsupported
	}
	sr, err := prog.SPIReadSR(c.Mst.SPI)
	if err != nil {
		glog.V(1).Infof("wp: status read failed: %v", err)
		return ErrReadFailed
	}
	bp := (sr & bpMask(d)) >> bpShift
	found := false
	for _, dec := range d.Ranges {
		if dec.BP == bp {
			cfg.Start = dec.Range.Start
			cfg.Len = dec.Range.Len
			found = true
			break
		}
	}
	if !found {
		// The BP pattern on the chip is one we cannot express as a range.
		return ErrUnsupportedState
	}
	if sr&(1<<srp0Bit) != 0 {
		cfg.Mode = ModeHardware
	} else {
		cfg.Mode = ModeDisabled
	}
	return OK
}

// WriteCfg applies cfg to the chip and verifies the result by reading the
// register back.
func WriteCfg(c *prog.Context, cfg *Cfg) Result {
	d := c.Chip.WP
	if d == nil {
		return ErrChipUnsupported
	}
	var bp uint8
	found := false
	for _, dec := range d.Ranges {
		if dec.Range.Start == cfg.Start && dec.Range.Len == cfg.Len {
			bp = dec.BP
			found = true
			break
		}
	}
	if !found {
		return ErrRangeUnsupported
	}
	var srp0 uint8
	switch cfg.Mode {
	case ModeDisabled:
		srp0 = 0
	case ModeHardware:
		srp0 = 1 << srp0Bit
	default:
		// Power-cycle and permanent modes need SR2 or OTP support we do
		// not drive on these chips.
		return ErrModeUnsupported
	}

	sr, err := prog.SPIReadSR(c.Mst.SPI)
	if err != nil {
		return ErrReadFailed
	}
	want := sr&^(bpMask(d)|1<<srp0Bit) | bp<<bpShift | srp0
	if err := prog.SPIWriteSR(c.Mst.SPI, want); err != nil {
		glog.V(1).Infof("wp: status write failed: %v", err)
		return ErrWriteFailed
	}
	got, err := prog.SPIReadSR(c.Mst.SPI)
	if err != nil {
		return ErrReadFailed
	}
	if got&(bpMask(d)|1<<srp0Bit) != want&(bpMask(d)|1<<srp0Bit) {
		return ErrVerifyFailed
	}
	return OK
}

// GetAvailableRanges lists every protection range the chip's decode table
// admits, in table order.
func GetAvailableRanges(c *prog.Context) ([]chip.WPRange, Result) {
	d := c.Chip.WP
	if d == nil {
		return nil, ErrRangeListUnavailable
	}
	rr := make([]chip.WPRange, 0, len(d.Ranges))
	for _, dec := range d.Ranges {
		rr = append(rr, dec.Range)
	}
	return rr, OK
}
