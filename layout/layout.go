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

// Package layout models a named partition of a chip's address space.
// Region geometry is fixed at insertion time, only the inclusion flags
// are mutable afterwards.
package layout

import (
	"strings"

	"github.com/juju/errors"

	"github.com/openfw/flashkit/msg"
)

const (
	// MaxRegions bounds the number of regions in one layout.
	MaxRegions = 32
	// NameLen is the fmap-compatible cap on region name length.
	NameLen = 32
)

// Region is one named byte range, inclusive on both ends.
type Region struct {
	Start    uint32
	End      uint32
	Name     string
	Included bool
}

// Layout is an insertion-ordered list of regions.
type Layout struct {
	regions []Region
}

// New returns an empty layout.
func New() *Layout {
	return &Layout{}
}

// TrimName applies the fmap name discipline: cut at the first NUL, cap at
// NameLen bytes.
func TrimName(name string) string {
	if i := strings.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	if len(name) > NameLen {
		name = name[:NameLen]
	}
	return name
}

// AddRegion appends a region. Geometry is validated, the name is trimmed
// to the fmap length discipline.
func (l *Layout) AddRegion(start, end uint32, name string) error {
	if len(l.regions) >= MaxRegions {
		return errors.Errorf("too many regions (max %d)", MaxRegions)
	}
	if start > end {
		return errors.Errorf("region %q: start 0x%x beyond end 0x%x", name, start, end)
	}
	name = TrimName(name)
	if name == "" {
		return errors.Errorf("region name must not be empty")
	}
	l.regions = append(l.regions, Region{Start: start, End: end, Name: name})
	return nil
}

// IncludeRegion marks every region named name as included. It is an error
// if no region matches.
func (l *Layout) IncludeRegion(name string) error {
	found := false
	for i := range l.regions {
		if l.regions[i].Name == name {
			l.regions[i].Included = true
			found = true
		}
	}
	if !found {
		return errors.Errorf("invalid region name specified: %q", name)
	}
	return nil
}

// NumRegions returns the region count.
func (l *Layout) NumRegions() int {
	return len(l.regions)
}

// Regions returns the regions in insertion order. The returned slice is
// the layout's backing storage; callers must treat it as read-only.
func (l *Layout) Regions() []Region {
	return l.regions
}

// IncludedRanges returns the [start,end] pairs of all included regions,
// in insertion order. Empty result means no region was included.
func (l *Layout) IncludedRanges() []Region {
	var rr []Region
	for _, r := range l.regions {
		if r.Included {
			rr = append(rr, r)
		}
	}
	return rr
}

// Covers reports whether addr falls inside any included region. With no
// included regions every address is covered (whole-chip semantics).
func (l *Layout) Covers(addr uint32) bool {
	inc := l.IncludedRanges()
	if len(inc) == 0 {
		return true
	}
	for _, r := range inc {
		if addr >= r.Start && addr <= r.End {
			return true
		}
	}
	return false
}

// Reset drops all regions, returning the layout to its freshly constructed
// state.
func (l *Layout) Reset() {
	l.regions = nil
}

var global = New()

// Global returns the process-wide shared layout that the fmap builders
// accumulate into.
func Global() *Layout {
	return global
}

// Debug logs the layout's regions at debug level through the relay.
func (l *Layout) Debug() {
	for _, r := range l.regions {
		msg.Gdbg("region %08x - %08x named %s", r.Start, r.End, r.Name)
	}
}
