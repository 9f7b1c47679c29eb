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
package main

import (
	"strconv"
	"strings"

	"github.com/juju/errors"

	"github.com/openfw/flashkit"
	"github.com/openfw/flashkit/cli/ourutil"
)

func wpModeName(m flashkit.WPMode) string {
	switch m {
	case flashkit.WPModeDisabled:
		return "disabled"
	case flashkit.WPModeHardware:
		return "hardware"
	case flashkit.WPModePowerCycle:
		return "power-cycle"
	case flashkit.WPModePermanent:
		return "permanent"
	}
	return "unknown"
}

func cmdWPStatus(f *flashkit.FlashCtx) error {
	cfg, res := flashkit.WPCfgNew()
	if res != flashkit.WPOK {
		return errors.Errorf("allocating a WP config failed (%d)", res)
	}
	defer flashkit.WPCfgRelease(cfg)
	if res := flashkit.WPReadCfg(cfg, f); res != flashkit.WPOK {
		return errors.Errorf("reading the WP state failed (%d)", res)
	}
	start, length := flashkit.WPGetRange(cfg)
	ourutil.Reportf("Protection mode: %s", wpModeName(flashkit.WPGetMode(cfg)))
	ourutil.Reportf("Protection range: start=0x%08x length=0x%08x", start, length)
	return nil
}

func cmdWPList(f *flashkit.FlashCtx) error {
	rr, res := flashkit.WPGetAvailableRanges(f)
	if res != flashkit.WPOK {
		return errors.Errorf("listing WP ranges failed (%d)", res)
	}
	defer flashkit.WPRangesRelease(rr)
	count := flashkit.WPRangesGetCount(rr)
	ourutil.Reportf("Available protection ranges:")
	for i := uint(0); i < count; i++ {
		start, length, _ := flashkit.WPRangesGetRange(rr, i)
		ourutil.Reportf("  start=0x%08x length=0x%08x", start, length)
	}
	return nil
}

func parseWPRange(s string) (start, length uint, err error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0, errors.Errorf(`--wp-range must be "start,length"`)
	}
	st, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 0, 32)
	if err != nil {
		return 0, 0, errors.Trace(err)
	}
	ln, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 0, 32)
	if err != nil {
		return 0, 0, errors.Trace(err)
	}
	return uint(st), uint(ln), nil
}

func cmdWPEnable(f *flashkit.FlashCtx) error {
	if *wpRange == "" {
		return errors.Errorf("wp-enable needs --wp-range")
	}
	start, length, err := parseWPRange(*wpRange)
	if err != nil {
		return errors.Trace(err)
	}
	cfg, _ := flashkit.WPCfgNew()
	defer flashkit.WPCfgRelease(cfg)
	flashkit.WPSetMode(cfg, flashkit.WPModeHardware)
	flashkit.WPSetRange(cfg, start, length)
	if res := flashkit.WPWriteCfg(f, cfg); res != flashkit.WPOK {
		if res == flashkit.WPErrRangeUnsupported {
			return errors.Errorf("the chip does not support that range, see wp-list")
		}
		return errors.Errorf("enabling WP failed (%d)", res)
	}
	ourutil.Reportf("Protection enabled: start=0x%08x length=0x%08x", start, length)
	return nil
}

func cmdWPDisable(f *flashkit.FlashCtx) error {
	cfg, _ := flashkit.WPCfgNew()
	defer flashkit.WPCfgRelease(cfg)
	flashkit.WPSetMode(cfg, flashkit.WPModeDisabled)
	flashkit.WPSetRange(cfg, 0, 0)
	if res := flashkit.WPWriteCfg(f, cfg); res != flashkit.WPOK {
		return errors.Errorf("disabling WP failed (%d)", res)
	}
	ourutil.Reportf("Protection disabled")
	return nil
}
