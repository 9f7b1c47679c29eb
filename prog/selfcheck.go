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
	"github.com/openfw/flashkit/chip"
	"github.com/openfw/flashkit/msg"
)

// Selfcheck runs consistency assertions over the static chip and
// programmer tables. Returns the number of problems found; anything
// nonzero means the build is broken.
func Selfcheck() int {
	ret := 0

	seen := map[string]bool{}
	for _, p := range table {
		if p == nil || p.Name == "" || p.Init == nil {
			msg.Gerr("Programmer table entry is malformed!")
			ret++
			continue
		}
		if seen[p.Name] {
			msg.Gerr("Programmer %s appears twice in the table!", p.Name)
			ret++
		}
		seen[p.Name] = true
	}

	for i := range chip.Chips {
		ch := &chip.Chips[i]
		if ch.Name == "" || ch.Vendor == "" {
			msg.Gerr("Chip table entry %d has no name!", i)
			ret++
			continue
		}
		if ch.TotalSize == 0 {
			msg.Gerr("Chip %s has zero size!", ch.Name)
			ret++
		}
		if ch.Bus == chip.BusNone {
			msg.Gerr("Chip %s has no bus type!", ch.Name)
			ret++
		}
		if ch.Bus&chip.BusSPI != 0 && ch.PageSize == 0 {
			msg.Gerr("SPI chip %s has no page size!", ch.Name)
			ret++
		}
		if ch.WP != nil {
			max := uint8(1<<ch.WP.BPBits) - 1
			for _, d := range ch.WP.Ranges {
				if d.BP > max {
					msg.Gerr("Chip %s: BP pattern 0x%x exceeds %d bits!", ch.Name, d.BP, ch.WP.BPBits)
					ret++
				}
				if d.Range.Start+d.Range.Len > ch.Size() {
					msg.Gerr("Chip %s: WP range 0x%x+0x%x exceeds chip size!",
						ch.Name, d.Range.Start, d.Range.Len)
					ret++
				}
			}
		}
	}

	return ret
}
