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

// Package ich decodes the Intel flash descriptor found at offset 0 of
// descriptor-mode SPI flashes and turns its region table into layout
// regions.
package ich

import (
	"encoding/binary"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/openfw/flashkit/layout"
)

const (
	// DescriptorLen is the size of the descriptor window read from
	// flash offset 0.
	DescriptorLen = 0x1000

	// flashValSig ("Flash Valid Signature") sits at byte offset 0x10.
	flashValSig    = 0x0ff0a55a
	flashValSigOff = 0x10
	flmap0Off      = 0x14

	maxRegions = 9
)

// Canonical descriptor region names, in FLREG order.
var regionNames = []string{"fd", "bios", "me", "gbe", "pd", "reg5", "reg6", "reg7", "reg8"}

// Parse decodes the descriptor in buf and returns one layout region per
// defined flash region, in FLREG order, none of them included.
func Parse(buf []byte) ([]layout.Region, error) {
	if len(buf) < DescriptorLen {
		return nil, errors.Errorf("descriptor too short: %d bytes", len(buf))
	}
	if binary.LittleEndian.Uint32(buf[flashValSigOff:]) != flashValSig {
		return nil, errors.Errorf("no valid flash descriptor signature")
	}
	flmap0 := binary.LittleEndian.Uint32(buf[flmap0Off:])
	frba := (flmap0 >> 16 & 0xff) << 4
	nr := int(flmap0>>24&0x7) + 1
	if nr > maxRegions {
		nr = maxRegions
	}
	if int(frba)+nr*4 > len(buf) {
		return nil, errors.Errorf("region table at 0x%x runs past the descriptor", frba)
	}

	var regions []layout.Region
	for i := 0; i < nr; i++ {
		flreg := binary.LittleEndian.Uint32(buf[int(frba)+i*4:])
		base := (flreg & 0x1fff) << 12
		limit := (flreg >> 16 & 0x1fff) << 12
		if base > limit {
			// Region not present on this platform.
			glog.V(2).Infof("descriptor region %d (%s) unused", i, regionNames[i])
			continue
		}
		regions = append(regions, layout.Region{
			Start: base,
			End:   limit | 0xfff,
			Name:  regionNames[i],
		})
	}
	if len(regions) == 0 {
		return nil, errors.Errorf("descriptor defines no regions")
	}
	return regions, nil
}

// RegionsEqual reports whether two parsed region tables are identical in
// count and content.
func RegionsEqual(a, b []layout.Region) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
