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

package chip

// upperBP builds the usual "upper 1/64 ... upper 1/2, all" block-protect
// decode table used by Winbond, GigaDevice and friends when TB=0.
// BP=0 protects nothing, the all-ones pattern protects the whole array.
func upperBP(sizeKiB uint32, bpBits int) *WPDesc {
	size := sizeKiB * 1024
	max := uint8(1<<bpBits) - 1
	d := &WPDesc{BPBits: bpBits}
	d.Ranges = append(d.Ranges, WPDecode{BP: 0, Range: WPRange{0, 0}})
	for bp := uint8(1); bp < max; bp++ {
		l := size >> uint(max-bp)
		if l > size {
			l = size
		}
		d.Ranges = append(d.Ranges, WPDecode{BP: bp, Range: WPRange{size - l, l}})
	}
	d.Ranges = append(d.Ranges, WPDecode{BP: max, Range: WPRange{0, size}})
	return d
}

// Chips is the static chip table. Probing walks it in order, so more
// specific entries must precede generic ones. GD25Q127C and GD25Q128C
// share a JEDEC ID and are only distinguishable by name.
var Chips = []Chip{
	{
		Vendor:         "Winbond",
		Name:           "W25Q64.V",
		Bus:            BusSPI,
		ManufacturerID: 0xef,
		ModelID:        0x4017,
		TotalSize:      8192,
		PageSize:       256,
		SectorSize:     4 * 1024,
		BlockSize:      64 * 1024,
		WP:             upperBP(8192, 3),
	},
	{
		Vendor:         "Winbond",
		Name:           "W25Q128.V",
		Bus:            BusSPI,
		ManufacturerID: 0xef,
		ModelID:        0x4018,
		TotalSize:      16384,
		PageSize:       256,
		SectorSize:     4 * 1024,
		BlockSize:      64 * 1024,
		WP:             upperBP(16384, 3),
	},
	{
		Vendor:         "GigaDevice",
		Name:           "GD25Q127C",
		Bus:            BusSPI,
		ManufacturerID: 0xc8,
		ModelID:        0x4018,
		TotalSize:      16384,
		PageSize:       256,
		SectorSize:     4 * 1024,
		BlockSize:      64 * 1024,
		WP:             upperBP(16384, 3),
	},
	{
		Vendor:         "GigaDevice",
		Name:           "GD25Q128C",
		Bus:            BusSPI,
		ManufacturerID: 0xc8,
		ModelID:        0x4018,
		TotalSize:      16384,
		PageSize:       256,
		SectorSize:     4 * 1024,
		BlockSize:      64 * 1024,
		WP:             upperBP(16384, 3),
	},
	{
		Vendor:         "Macronix",
		Name:           "MX25L6405D",
		Bus:            BusSPI,
		ManufacturerID: 0xc2,
		ModelID:        0x2017,
		TotalSize:      8192,
		PageSize:       256,
		SectorSize:     4 * 1024,
		BlockSize:      64 * 1024,
		WP:             nil,
	},
	{
		Vendor:         "Eon",
		Name:           "EN25Q32B",
		Bus:            BusSPI,
		ManufacturerID: 0x1c,
		ModelID:        0x3016,
		TotalSize:      4096,
		PageSize:       256,
		SectorSize:     4 * 1024,
		BlockSize:      64 * 1024,
		WP:             nil,
	},
	{
		Vendor:         "SST",
		Name:           "SST49LF004A",
		Bus:            BusParallel | BusLPC | BusFWH,
		ManufacturerID: 0xbf,
		ModelID:        0x0060,
		TotalSize:      512,
		PageSize:       0,
		SectorSize:     4 * 1024,
		BlockSize:      64 * 1024,
		WP:             nil,
	},
}
