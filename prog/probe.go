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

package prog

import (
	"github.com/golang/glog"

	"github.com/openfw/flashkit/chip"
	"github.com/openfw/flashkit/msg"
)

// ProbeFlash walks the chip table from startIndex looking for a chip that
// is reachable over master m and identifies as present. On a match the
// context's chip and master bindings are filled in and the table index is
// returned; -1 means no match. The process-wide chip-to-probe hint, when
// set, restricts matching to chips of that name.
func ProbeFlash(m *Master, startIndex int, c *Context) int {
	ids := identify(m)

	for i := startIndex; i < len(chip.Chips); i++ {
		ch := &chip.Chips[i]
		if chipToProbe != "" && ch.Name != chipToProbe {
			continue
		}
		if ch.Bus&m.Buses == 0 {
			continue
		}
		if ids == nil || ids.mfg != ch.ManufacturerID || ids.model != ch.ModelID {
			continue
		}
		msg.Ginfo("Found %s flash chip \"%s\" (%d kB, %s) on %s.",
			ch.Vendor, ch.Name, ch.TotalSize, ch.Bus, m.Name)
		c.Chip = ch
		c.Mst = m
		return i
	}
	return -1
}

type deviceIDs struct {
	mfg   uint8
	model uint16
}

func identify(m *Master) *deviceIDs {
	switch {
	case m.SPI != nil:
		mfg, model, err := SPIReadID(m.SPI)
		if err != nil {
			glog.V(1).Infof("%s: SPI identification failed: %v", m.Name, err)
			return nil
		}
		return &deviceIDs{mfg, model}
	case m.Opaque != nil:
		mfg, model, err := m.Opaque.Probe()
		if err != nil {
			glog.V(1).Infof("%s: probe failed: %v", m.Name, err)
			return nil
		}
		return &deviceIDs{mfg, model}
	}
	return nil
}
