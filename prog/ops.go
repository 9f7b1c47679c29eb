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
	"bytes"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/openfw/flashkit/msg"
)

// span is one contiguous address window an operation works on.
type span struct {
	start uint32
	end   uint32 // inclusive
}

// opSpans returns the windows an operation must touch: the included
// regions of the attached layout, or the whole chip when no layout is
// attached or nothing is included.
func opSpans(c *Context) []span {
	whole := []span{{0, c.Size() - 1}}
	if c.Layout == nil {
		return whole
	}
	inc := c.Layout.IncludedRanges()
	if len(inc) == 0 {
		return whole
	}
	var ss []span
	for _, r := range inc {
		end := r.End
		if end >= c.Size() {
			end = c.Size() - 1
		}
		if r.Start > end {
			continue
		}
		ss = append(ss, span{r.Start, end})
	}
	return ss
}

func wholeChip(c *Context, ss []span) bool {
	return len(ss) == 1 && ss[0].start == 0 && ss[0].end == c.Size()-1
}

// PrepareAccess readies the chip for the requested kinds of operation.
// Every successful call must be paired with FinalizeAccess.
func (c *Context) PrepareAccess(read, write, erase, verify bool) error {
	if c.Chip == nil || c.Mst == nil {
		return errors.Errorf("context has no probed chip")
	}
	if c.Mst.SPI == nil && c.Mst.Opaque == nil {
		return errors.Errorf("master %s has no transport", c.Mst.Name)
	}
	glog.V(1).Infof("prepare access to %s: read=%v write=%v erase=%v verify=%v",
		c.Chip.Name, read, write, erase, verify)
	if (write || erase) && c.Mst.SPI != nil {
		// Make sure no earlier cycle is still in flight.
		if err := spiWaitIdle(c.Mst.SPI, sectorTimeout); err != nil {
			return errors.Annotatef(err, "chip not idle")
		}
	}
	return nil
}

// FinalizeAccess undoes PrepareAccess.
func (c *Context) FinalizeAccess() {
	glog.V(1).Infof("finalize access to %s", c.Chip.Name)
}

// ReadAt reads length bytes at start, bypassing the layout. Used by the
// descriptor and fmap readers.
func (c *Context) ReadAt(start uint32, length int) ([]byte, error) {
	if length <= 0 {
		return nil, nil
	}
	buf := make([]byte, length)
	if err := c.readSpan(span{start, start + uint32(length) - 1}, buf, start); err != nil {
		return nil, errors.Trace(err)
	}
	return buf, nil
}

func (c *Context) readSpan(s span, image []byte, base uint32) error {
	dst := image[s.start-base : s.end-base+1]
	if c.Mst.SPI != nil {
		return errors.Trace(spiRead(c.Mst.SPI, s.start, dst))
	}
	return errors.Trace(c.Mst.Opaque.Read(s.start, dst))
}

// Read fills buf (one full chip image) from the chip, honoring the
// layout: only included spans are read, the rest of buf is left as-is.
func Read(c *Context, buf []byte) error {
	if uint32(len(buf)) != c.Size() {
		return errors.Errorf("buffer length %d does not match chip size %d", len(buf), c.Size())
	}
	if err := c.PrepareAccess(true, false, false, false); err != nil {
		return errors.Trace(err)
	}
	defer c.FinalizeAccess()
	for _, s := range opSpans(c) {
		if err := c.readSpan(s, buf, 0); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Verify compares buf (one full chip image) against the chip over the
// included spans.
func Verify(c *Context, buf []byte) error {
	if uint32(len(buf)) != c.Size() {
		return errors.Errorf("buffer length %d does not match chip size %d", len(buf), c.Size())
	}
	if err := c.PrepareAccess(true, false, false, true); err != nil {
		return errors.Trace(err)
	}
	defer c.FinalizeAccess()
	return errors.Trace(verifySpans(c, buf, opSpans(c)))
}

func verifySpans(c *Context, buf []byte, ss []span) error {
	for _, s := range ss {
		have := make([]byte, s.end-s.start+1)
		if err := c.readSpan(s, have, s.start); err != nil {
			return errors.Trace(err)
		}
		want := buf[s.start : s.end+1]
		if i := firstDiff(have, want); i >= 0 {
			return errors.Errorf("verify failed at 0x%x: expected 0x%02x, found 0x%02x",
				s.start+uint32(i), want[i], have[i])
		}
	}
	return nil
}

func firstDiff(a, b []byte) int {
	for i := range a {
		if a[i] != b[i] {
			return i
		}
	}
	return -1
}

// Erase erases the included spans (sector-aligned), or the whole chip in
// one cycle when nothing constrains the operation.
func Erase(c *Context) error {
	if err := c.PrepareAccess(false, false, true, false); err != nil {
		return errors.Trace(err)
	}
	defer c.FinalizeAccess()

	ss := opSpans(c)
	if c.Mst.Opaque != nil {
		for _, s := range ss {
			if err := c.Mst.Opaque.Erase(s.start, s.end-s.start+1); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	}
	if wholeChip(c, ss) {
		msg.Ginfo("Erasing flash chip... ")
		if err := spiChipErase(c.Mst.SPI); err != nil {
			msg.Gerr("Chip erase failed!")
			return errors.Trace(err)
		}
		msg.Ginfo("Erase done.")
		return nil
	}
	sector := c.sectorSize()
	for _, s := range ss {
		for addr := s.start - s.start%sector; addr <= s.end; addr += sector {
			if err := spiSectorErase(c.Mst.SPI, addr); err != nil {
				return errors.Trace(err)
			}
		}
	}
	return nil
}

func (c *Context) sectorSize() uint32 {
	if c.Chip.SectorSize > 0 {
		return c.Chip.SectorSize
	}
	return 4096
}

// Write programs buf (one full chip image) over the included spans.
// ref, when non-nil, is taken as the chip's current contents and lets us
// skip sectors that already hold the desired data. With the
// verify-after-write flag set the written spans (or the whole chip, with
// verify-whole-chip) are read back and compared.
func Write(c *Context, buf, ref []byte) error {
	if uint32(len(buf)) != c.Size() {
		return errors.Errorf("buffer length %d does not match chip size %d", len(buf), c.Size())
	}
	if ref != nil && len(ref) != len(buf) {
		return errors.Errorf("reference length %d does not match chip size %d", len(ref), c.Size())
	}
	if err := c.PrepareAccess(false, true, true, c.Flags.VerifyAfterWrite); err != nil {
		return errors.Trace(err)
	}
	defer c.FinalizeAccess()

	ss := opSpans(c)
	skipped := 0
	for _, s := range ss {
		if c.Mst.Opaque != nil {
			if err := c.Mst.Opaque.Erase(s.start, s.end-s.start+1); err != nil {
				return errors.Trace(err)
			}
			if err := c.Mst.Opaque.Write(s.start, buf[s.start:s.end+1]); err != nil {
				return errors.Trace(err)
			}
			continue
		}
		sector := c.sectorSize()
		for addr := s.start - s.start%sector; addr <= s.end; addr += sector {
			end := addr + sector - 1
			if end >= c.Size() {
				end = c.Size() - 1
			}
			want := buf[addr : end+1]
			if ref != nil && bytes.Equal(ref[addr:end+1], want) {
				skipped++
				continue
			}
			if err := spiSectorErase(c.Mst.SPI, addr); err != nil {
				return errors.Trace(err)
			}
			if err := spiPageProgram(c.Mst.SPI, c.pageSize(), addr, want); err != nil {
				return errors.Trace(err)
			}
		}
	}
	if skipped > 0 {
		glog.V(1).Infof("%d sectors already held the desired contents", skipped)
	}

	if c.Flags.VerifyAfterWrite {
		vs := ss
		if c.Flags.VerifyWholeChip {
			vs = []span{{0, c.Size() - 1}}
		}
		msg.Ginfo("Verifying flash... ")
		if err := verifySpans(c, buf, vs); err != nil {
			msg.Gerr("VERIFY FAILED!")
			return errors.Trace(err)
		}
		msg.Ginfo("VERIFIED.")
	}
	return nil
}

func (c *Context) pageSize() uint32 {
	if c.Chip.PageSize > 0 {
		return c.Chip.PageSize
	}
	return 256
}
