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

// Package chip holds the static table of supported flash chips and the
// descriptors needed to probe and drive them.
package chip

// Bus is a bitmask of the transports a chip (or a master) can be reached
// over.
type Bus uint32

const (
	BusParallel Bus = 1 << iota
	BusLPC
	BusFWH
	BusSPI

	BusNone Bus = 0
)

func (b Bus) String() string {
	s := ""
	add := func(m Bus, name string) {
		if b&m != 0 {
			if s != "" {
				s += ","
			}
			s += name
		}
	}
	add(BusParallel, "parallel")
	add(BusLPC, "lpc")
	add(BusFWH, "fwh")
	add(BusSPI, "spi")
	if s == "" {
		s = "none"
	}
	return s
}

// WPRange is one protection window the chip can be told to enforce.
type WPRange struct {
	Start uint32
	Len   uint32
}

// WPDecode maps one block-protect bit pattern to the range it selects.
type WPDecode struct {
	BP    uint8
	Range WPRange
}

// WPDesc describes how write protection is encoded in the chip's status
// register. BP bits live at SR1[2:2+BPBits), SRP0 at SR1 bit 7.
type WPDesc struct {
	BPBits int
	Ranges []WPDecode
}

// Chip is one entry of the static chip table. TotalSize is in KiB, like
// the datasheets quote it.
type Chip struct {
	Vendor string
	Name   string
	Bus    Bus

	ManufacturerID uint8
	ModelID        uint16

	TotalSize  uint32
	PageSize   uint32
	SectorSize uint32
	BlockSize  uint32

	// WP is nil for chips whose protection scheme we cannot drive.
	WP *WPDesc
}

// Size returns the chip size in bytes.
func (c *Chip) Size() uint32 {
	return c.TotalSize * 1024
}

// ByName returns the first table entry with the given name, or nil.
func ByName(name string) *Chip {
	for i := range Chips {
		if Chips[i].Name == name {
			return &Chips[i]
		}
	}
	return nil
}
