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
	"github.com/openfw/flashkit/msg"
	"github.com/openfw/flashkit/prog"
)

// FlashCtx is an opaque handle to one probed chip within the live
// session.
type FlashCtx struct {
	ctx prog.Context
}

// Flag selects one of the per-context behavior switches.
type Flag int

const (
	FlagForce Flag = iota
	FlagForceBoardmismatch
	FlagVerifyAfterWrite
	FlagVerifyWholeChip
)

// FlashProbe probes for a flash chip on every registered master, in
// registration order; the first matching master wins. chipName restricts
// the probe to chips of that name, "" considers all known chips.
//
// Returns (ctx, 0) when exactly one chip matches. Other codes, with a nil
// context: 2 when no chip was found, 3 when multiple chips matched, 1 on
// any other failure. Probes must not overlap; the chip-name hint is
// process-wide.
func FlashProbe(p *Programmer, chipName string) (*FlashCtx, int) {
	ret := 2

	prog.SetChipToProbe(chipName)

	f := &FlashCtx{}
	var second prog.Context
	for _, m := range prog.RegisteredMasters() {
		flashIdx := -1
		if ret != 0 {
			if flashIdx = prog.ProbeFlash(m, 0, &f.ctx); flashIdx == -1 {
				continue
			}
		}
		ret = 0
		// We found one chip, now check that there is no second match.
		if prog.ProbeFlash(m, flashIdx+1, &second) != -1 {
			ret = 3
			break
		}
	}
	if ret != 0 {
		return nil, ret
	}
	return f, 0
}

// FlashGetsize returns the size of the probed chip in bytes.
func FlashGetsize(f *FlashCtx) uint {
	return uint(f.ctx.Size())
}

// FlashErase erases the chip, honoring the context's flags and, when a
// layout with included regions is attached, only the included regions.
// Returns 0 on success.
func FlashErase(f *FlashCtx) int {
	if err := prog.Erase(&f.ctx); err != nil {
		msg.Gerr("Erase failed: %v", err)
		return 1
	}
	return 0
}

// FlashRelease frees the context. Safe on nil.
func FlashRelease(f *FlashCtx) {
	if f == nil {
		return
	}
	f.ctx = prog.Context{}
}

// FlagSet sets one behavior flag on the context. Unknown flags are
// ignored.
func FlagSet(f *FlashCtx, flag Flag, value bool) {
	switch flag {
	case FlagForce:
		f.ctx.Flags.Force = value
	case FlagForceBoardmismatch:
		f.ctx.Flags.ForceBoardmismatch = value
	case FlagVerifyAfterWrite:
		f.ctx.Flags.VerifyAfterWrite = value
	case FlagVerifyWholeChip:
		f.ctx.Flags.VerifyWholeChip = value
	}
}

// FlagGet reads one behavior flag. Unknown flags read as false.
func FlagGet(f *FlashCtx, flag Flag) bool {
	switch flag {
	case FlagForce:
		return f.ctx.Flags.Force
	case FlagForceBoardmismatch:
		return f.ctx.Flags.ForceBoardmismatch
	case FlagVerifyAfterWrite:
		return f.ctx.Flags.VerifyAfterWrite
	case FlagVerifyWholeChip:
		return f.ctx.Flags.VerifyWholeChip
	}
	return false
}

// ImageRead reads the chip into buf, whose length must equal
// FlashGetsize. Returns 0 on success.
func ImageRead(f *FlashCtx, buf []byte) int {
	if uint(len(buf)) != FlashGetsize(f) {
		msg.Gerr("Buffer size %d doesn't match chip size %d!", len(buf), FlashGetsize(f))
		return 1
	}
	if err := prog.Read(&f.ctx, buf); err != nil {
		msg.Gerr("Read failed: %v", err)
		return 1
	}
	return 0
}

// ImageWrite writes buf to the chip; the length must equal FlashGetsize.
// refbuf, when non-nil, is taken as the chip's current contents so
// unchanged parts can be skipped. Returns 0 on success.
func ImageWrite(f *FlashCtx, buf, refbuf []byte) int {
	if uint(len(buf)) != FlashGetsize(f) {
		msg.Gerr("Buffer size %d doesn't match chip size %d!", len(buf), FlashGetsize(f))
		return 1
	}
	if err := prog.Write(&f.ctx, buf, refbuf); err != nil {
		msg.Gerr("Write failed: %v", err)
		return 1
	}
	return 0
}

// ImageVerify compares buf against the chip; the length must equal
// FlashGetsize. Returns 0 when the contents match.
func ImageVerify(f *FlashCtx, buf []byte) int {
	if uint(len(buf)) != FlashGetsize(f) {
		msg.Gerr("Buffer size %d doesn't match chip size %d!", len(buf), FlashGetsize(f))
		return 1
	}
	if err := prog.Verify(&f.ctx, buf); err != nil {
		msg.Gerr("Verify failed: %v", err)
		return 1
	}
	return 0
}
