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
	"github.com/openfw/flashkit/fmap"
	"github.com/openfw/flashkit/ich"
	"github.com/openfw/flashkit/layout"
	"github.com/openfw/flashkit/msg"
)

// Layout is an opaque handle to an ordered set of named chip regions.
type Layout struct {
	l      *layout.Layout
	shared bool
}

// Return codes of LayoutReadFromIFD. Code 6 is reserved for hosts the
// descriptor parser is not implemented on; it cannot occur in this
// implementation.
const (
	ifdErrOther       = 1
	ifdErrRead        = 2
	ifdErrChipParse   = 3
	ifdErrDumpParse   = 4
	ifdErrMismatch    = 5
	ifdErrUnsupported = 6
)

// LayoutNew returns a fresh empty layout to be populated with
// LayoutAddRegion.
func LayoutNew() *Layout {
	return &Layout{l: layout.New()}
}

// LayoutReadFromIFD reads the Intel flash descriptor from offset 0 of
// the chip and builds a layout from its region table. dump, when
// non-nil, must parse to an identical region table or the call fails.
//
// Returns (layout, 0) on success. Other codes, with a nil layout:
// 2 when the descriptor could not be read, 3 when the descriptor on
// flash does not parse, 4 when dump does not parse, 5 when the two
// region tables differ, 6 where descriptor parsing is not implemented,
// 1 on any other error.
func LayoutReadFromIFD(f *FlashCtx, dump []byte) (*Layout, int) {
	if err := f.ctx.PrepareAccess(true, false, false, false); err != nil {
		msg.Gerr("Failed to prepare flash access: %v", err)
		return nil, ifdErrOther
	}
	defer f.ctx.FinalizeAccess()

	msg.Ginfo("Reading ich descriptor... ")
	desc, err := f.ctx.ReadAt(0, ich.DescriptorLen)
	if err != nil {
		msg.Gerr("Read operation failed!")
		msg.Ginfo("FAILED.")
		return nil, ifdErrRead
	}
	msg.Ginfo("done.")

	chipRegions, err := ich.Parse(desc)
	if err != nil {
		msg.Gerr("Couldn't parse the descriptor!")
		return nil, ifdErrChipParse
	}

	if dump != nil {
		dumpRegions, err := ich.Parse(dump)
		if err != nil {
			msg.Gerr("Couldn't parse the descriptor!")
			return nil, ifdErrDumpParse
		}
		if !ich.RegionsEqual(chipRegions, dumpRegions) {
			msg.Gerr("Descriptors don't match!")
			return nil, ifdErrMismatch
		}
	}

	l := layout.New()
	for _, r := range chipRegions {
		if err := l.AddRegion(r.Start, r.End, r.Name); err != nil {
			msg.Gerr("Error adding layout entry: %v", err)
			return nil, ifdErrOther
		}
	}
	return &Layout{l: l}, 0
}

// parseFmap appends every fmap area to the shared global layout.
func parseFmap(fm *fmap.FMap) int {
	l := layout.Global()
	if l.NumRegions()+len(fm.Areas) > layout.MaxRegions {
		msg.Gerr("Cannot add fmap entries to layout - Too many entries.")
		return 1
	}
	for _, a := range fm.Areas {
		if err := l.AddRegion(a.Offset, a.Offset+a.Size-1, a.Name); err != nil {
			msg.Gerr("Error adding layout entry: %v", err)
			return 1
		}
		msg.Gdbg("fmap %08x - %08x named %s", a.Offset, a.Offset+a.Size-1, layout.TrimName(a.Name))
	}
	return 0
}

// LayoutReadFmapFromROM searches [offset, offset+length) of the chip for
// an fmap and appends its areas, none of them included, to the shared
// layout, which is returned. Consecutive calls accumulate into the same
// layout.
//
// Returns (layout, 0) on success; (nil, 3) where fmap parsing is not
// implemented; (nil, 1) on any failure.
func LayoutReadFmapFromROM(f *FlashCtx, offset, length uint) (*Layout, int) {
	msg.Gdbg("Attempting to read fmap from ROM content.")
	if err := f.ctx.PrepareAccess(true, false, false, false); err != nil {
		msg.Gerr("Failed to prepare flash access: %v", err)
		return nil, 1
	}
	fm, err := fmap.ReadFromROM(func(start uint32, n int) ([]byte, error) {
		return f.ctx.ReadAt(start, n)
	}, uint32(offset), uint32(length))
	f.ctx.FinalizeAccess()
	if err != nil {
		msg.Gerr("Failed to read fmap from ROM.")
		return nil, 1
	}

	msg.Gdbg("Adding fmap layout to global layout.")
	if parseFmap(fm) != 0 {
		msg.Gerr("Failed to add fmap regions to layout.")
		return nil, 1
	}
	return &Layout{l: layout.Global(), shared: true}, 0
}

// LayoutReadFmapFromBuffer is LayoutReadFmapFromROM over a caller-held
// image instead of the chip. A nil or empty buf fails with 1.
func LayoutReadFmapFromBuffer(f *FlashCtx, buf []byte) (*Layout, int) {
	if len(buf) == 0 {
		return nil, 1
	}
	msg.Gdbg("Attempting to read fmap from buffer.")
	fm, err := fmap.ReadFromBuffer(buf)
	if err != nil {
		msg.Gerr("Failed to read fmap from buffer.")
		return nil, 1
	}

	msg.Gdbg("Adding fmap layout to global layout.")
	if parseFmap(fm) != 0 {
		msg.Gerr("Failed to add fmap regions to layout.")
		return nil, 1
	}
	return &Layout{l: layout.Global(), shared: true}, 0
}

// LayoutAddRegion appends the region [start, end] under the given name.
// Returns 0 on success, nonzero when the region table is full or the
// region is malformed.
func LayoutAddRegion(l *Layout, start, end uint, name string) int {
	if err := l.l.AddRegion(uint32(start), uint32(end), name); err != nil {
		msg.Gerr("Error adding layout entry: %v", err)
		return 1
	}
	return 0
}

// LayoutIncludeRegion marks every region named name as included,
// constraining subsequent image and erase operations on any context the
// layout is attached to. Returns 0 on success, nonzero when no region
// has that name.
func LayoutIncludeRegion(l *Layout, name string) int {
	if err := l.l.IncludeRegion(name); err != nil {
		msg.Gerr("%v", err)
		return 1
	}
	return 0
}

// LayoutSet attaches l to the context. The context does not own the
// layout: the caller must keep it alive as long as operations on the
// context may observe it. Passing nil detaches.
func LayoutSet(f *FlashCtx, l *Layout) {
	if l == nil {
		f.ctx.Layout = nil
		return
	}
	f.ctx.Layout = l.l
}

// LayoutRelease frees the layout. Safe on nil and on double release.
// Releasing the shared layout the fmap builders return resets it for
// reuse.
func LayoutRelease(l *Layout) {
	if l == nil || l.l == nil {
		return
	}
	l.l.Reset()
	l.l = nil
}
