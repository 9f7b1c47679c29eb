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
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/openfw/flashkit/layout"

	_ "github.com/openfw/flashkit/prog/dummy"
)

// openDummy starts a dummy-programmer session, probes, and tears both
// down when the test ends. Sessions are process-wide, so tests must not
// run in parallel.
func openDummy(t *testing.T, params, chipName string) (*Programmer, *FlashCtx) {
	t.Helper()
	if Init(true) != 0 {
		t.Fatal("Init failed")
	}
	p, ret := ProgrammerInit("dummy", params)
	if ret != 0 {
		t.Fatalf("ProgrammerInit(dummy, %q) = %d", params, ret)
	}
	f, ret := FlashProbe(p, chipName)
	if ret != 0 {
		ProgrammerShutdown(p)
		Shutdown()
		t.Fatalf("FlashProbe(%q) = %d", chipName, ret)
	}
	t.Cleanup(func() {
		FlashRelease(f)
		ProgrammerShutdown(p)
		Shutdown()
	})
	return p, f
}

func TestInitShutdown(t *testing.T) {
	if ret := Init(true); ret != 0 {
		t.Fatalf("Init(true) = %d", ret)
	}
	if ret := Shutdown(); ret != 0 {
		t.Fatalf("Shutdown() = %d", ret)
	}
	if ret := Init(false); ret != 0 {
		t.Fatalf("Init(false) = %d", ret)
	}
	Shutdown()
}

func TestUnknownProgrammer(t *testing.T) {
	var lines []string
	SetLogCallback(func(level LogLevel, message string) int {
		if level == MsgInfo {
			lines = append(lines, message)
		}
		return 0
	})
	defer SetLogCallback(nil)

	p, ret := ProgrammerInit("notaprogrammer", "")
	if p != nil || ret != 1 {
		t.Fatalf("got (%v, %d), want (nil, 1)", p, ret)
	}
	all := strings.Join(lines, "\n")
	if !strings.Contains(all, `Unknown programmer "notaprogrammer"`) {
		t.Errorf("no unknown-programmer message in %q", all)
	}
	if !strings.Contains(all, "dummy") {
		t.Errorf("valid choices listing does not mention dummy: %q", all)
	}
}

func TestProbeAndGetsize(t *testing.T) {
	_, f := openDummy(t, "bus=spi", "")
	if size := FlashGetsize(f); size != 16*1024*1024 {
		t.Errorf("FlashGetsize = %d, want 16 MiB", size)
	}
}

func TestProbeNoChipFound(t *testing.T) {
	if Init(true) != 0 {
		t.Fatal("Init failed")
	}
	defer Shutdown()
	p, ret := ProgrammerInit("dummy", "emulate=W25Q128.V")
	if ret != 0 {
		t.Fatal("ProgrammerInit failed")
	}
	defer ProgrammerShutdown(p)

	f, ret := FlashProbe(p, "MX25L6405D")
	if f != nil || ret != 2 {
		t.Errorf("probe for the wrong chip: got (%v, %d), want (nil, 2)", f, ret)
	}
}

func TestProbeAmbiguous(t *testing.T) {
	if Init(true) != 0 {
		t.Fatal("Init failed")
	}
	defer Shutdown()
	p, ret := ProgrammerInit("dummy", "emulate=GD25Q127C")
	if ret != 0 {
		t.Fatal("ProgrammerInit failed")
	}
	defer ProgrammerShutdown(p)

	// GD25Q127C and GD25Q128C share a JEDEC ID: an unrestricted probe
	// must refuse to pick one.
	f, ret := FlashProbe(p, "")
	if f != nil || ret != 3 {
		t.Fatalf("ambiguous probe: got (%v, %d), want (nil, 3)", f, ret)
	}
	// Naming the chip resolves the tie.
	f, ret = FlashProbe(p, "GD25Q127C")
	if ret != 0 {
		t.Fatalf("named probe failed: %d", ret)
	}
	FlashRelease(f)
}

func TestFlags(t *testing.T) {
	_, f := openDummy(t, "", "")
	for _, flag := range []Flag{FlagForce, FlagForceBoardmismatch, FlagVerifyAfterWrite, FlagVerifyWholeChip} {
		if FlagGet(f, flag) {
			t.Errorf("flag %d set on a fresh context", flag)
		}
		FlagSet(f, flag, true)
		if !FlagGet(f, flag) {
			t.Errorf("flag %d did not stick", flag)
		}
		FlagSet(f, flag, false)
		if FlagGet(f, flag) {
			t.Errorf("flag %d did not clear", flag)
		}
	}
	if FlagGet(f, Flag(99)) {
		t.Error("unknown flag reads as true")
	}
	FlagSet(f, Flag(99), true) // must be ignored
	if FlagGet(f, Flag(99)) {
		t.Error("unknown flag stuck")
	}
}

func TestImageOps(t *testing.T) {
	_, f := openDummy(t, "emulate=EN25Q32B", "")
	size := FlashGetsize(f)

	// Wrong buffer lengths are rejected up front.
	if ret := ImageRead(f, make([]byte, size-1)); ret != 1 {
		t.Errorf("short read buffer accepted: %d", ret)
	}
	if ret := ImageWrite(f, make([]byte, size+1), nil); ret != 1 {
		t.Errorf("long write buffer accepted: %d", ret)
	}
	if ret := ImageVerify(f, make([]byte, 0)); ret != 1 {
		t.Errorf("empty verify buffer accepted: %d", ret)
	}

	buf := make([]byte, size)
	if ret := ImageRead(f, buf); ret != 0 {
		t.Fatalf("ImageRead = %d", ret)
	}
	if !bytes.Equal(buf, bytes.Repeat([]byte{0xff}, int(size))) {
		t.Error("fresh emulated chip is not blank")
	}

	image := make([]byte, size)
	for i := range image {
		image[i] = byte(i)
	}
	FlagSet(f, FlagVerifyAfterWrite, true)
	if ret := ImageWrite(f, image, buf); ret != 0 {
		t.Fatalf("ImageWrite = %d", ret)
	}
	if ret := ImageVerify(f, image); ret != 0 {
		t.Errorf("ImageVerify = %d after write", ret)
	}
	image[42] ^= 0xff
	if ret := ImageVerify(f, image); ret != 1 {
		t.Errorf("verify against a modified image = %d, want 1", ret)
	}
	image[42] ^= 0xff

	if ret := FlashErase(f); ret != 0 {
		t.Fatalf("FlashErase = %d", ret)
	}
	if ret := ImageRead(f, buf); ret != 0 {
		t.Fatal("read after erase failed")
	}
	if !bytes.Equal(buf, bytes.Repeat([]byte{0xff}, int(size))) {
		t.Error("erase left data behind")
	}
}

func TestLayoutConstrainedImageOps(t *testing.T) {
	_, f := openDummy(t, "emulate=EN25Q32B", "")
	size := FlashGetsize(f)

	l := LayoutNew()
	defer LayoutRelease(l)
	if ret := LayoutAddRegion(l, 0x10000, 0x1ffff, "rw"); ret != 0 {
		t.Fatal("LayoutAddRegion failed")
	}
	if ret := LayoutAddRegion(l, 0x20000, 0x2ffff, "ro"); ret != 0 {
		t.Fatal("LayoutAddRegion failed")
	}
	if ret := LayoutIncludeRegion(l, "nosuch"); ret == 0 {
		t.Error("including a missing region succeeded")
	}
	if ret := LayoutIncludeRegion(l, "rw"); ret != 0 {
		t.Fatal("LayoutIncludeRegion failed")
	}
	LayoutSet(f, l)

	image := bytes.Repeat([]byte{0x42}, int(size))
	if ret := ImageWrite(f, image, nil); ret != 0 {
		t.Fatalf("ImageWrite = %d", ret)
	}

	// Only the included region was touched; check with the layout
	// detached so the read sees the whole chip.
	LayoutSet(f, nil)
	buf := make([]byte, size)
	if ret := ImageRead(f, buf); ret != 0 {
		t.Fatal("ImageRead failed")
	}
	if buf[0x10000] != 0x42 || buf[0x1ffff] != 0x42 {
		t.Error("included region was not written")
	}
	if buf[0xffff] != 0xff || buf[0x20000] != 0xff {
		t.Error("write leaked outside the included region")
	}
}

type fmArea struct {
	off, size uint32
	name      string
}

// fmapImage serializes a flashmap with the given areas into img at off.
func fmapImage(img []byte, off int, name string, areas ...fmArea) {
	b := img[off:]
	copy(b, "__FMAP__")
	b[8], b[9] = 1, 1
	binary.LittleEndian.PutUint64(b[10:], 0)
	binary.LittleEndian.PutUint32(b[18:], uint32(len(img)))
	for i := 0; i < 32; i++ {
		b[22+i] = 0
	}
	copy(b[22:22+32], name)
	binary.LittleEndian.PutUint16(b[22+32:], uint16(len(areas)))
	p := b[56:]
	for _, a := range areas {
		binary.LittleEndian.PutUint32(p, a.off)
		binary.LittleEndian.PutUint32(p[4:], a.size)
		for i := 0; i < 32; i++ {
			p[8+i] = 0
		}
		copy(p[8:8+32], a.name)
		binary.LittleEndian.PutUint16(p[8+32:], 0)
		p = p[42:]
	}
}

func TestLayoutFmapFromBuffer(t *testing.T) {
	_, f := openDummy(t, "emulate=EN25Q32B", "")

	img := make([]byte, 0x40000)
	fmapImage(img, 0x20000, "FLASH",
		fmArea{0x00000, 0x10000, "BOOT"},
		fmArea{0x10000, 0x10000, "RW"},
		fmArea{0x20000, 0x10000, "RO"})

	if l, ret := LayoutReadFmapFromBuffer(f, nil); l != nil || ret != 1 {
		t.Errorf("nil buffer: got (%v, %d), want (nil, 1)", l, ret)
	}

	l, ret := LayoutReadFmapFromBuffer(f, img)
	if ret != 0 {
		t.Fatalf("LayoutReadFmapFromBuffer = %d", ret)
	}
	defer LayoutRelease(l)
	if got := layout.Global().NumRegions(); got != 3 {
		t.Fatalf("global layout holds %d regions, want 3", got)
	}
	if ret := LayoutIncludeRegion(l, "RW"); ret != 0 {
		t.Fatal("fmap-derived region RW not found")
	}
	inc := layout.Global().IncludedRanges()
	if len(inc) != 1 || inc[0].Start != 0x10000 || inc[0].End != 0x1ffff {
		t.Errorf("RW resolves to %+v", inc)
	}

	// A second decode accumulates into the same shared layout.
	l2, ret := LayoutReadFmapFromBuffer(f, img)
	if ret != 0 {
		t.Fatal("second decode failed")
	}
	if l2.l != l.l {
		t.Error("fmap builders returned distinct layouts")
	}
	if got := layout.Global().NumRegions(); got != 6 {
		t.Errorf("global layout holds %d regions after accumulation, want 6", got)
	}

	// Releasing the shared layout resets it for the next user.
	LayoutRelease(l2)
	if got := layout.Global().NumRegions(); got != 0 {
		t.Errorf("global layout holds %d regions after release, want 0", got)
	}
}

func TestLayoutFmapFromROM(t *testing.T) {
	_, f := openDummy(t, "emulate=EN25Q32B", "")
	size := FlashGetsize(f)

	image := bytes.Repeat([]byte{0xff}, int(size))
	fmapImage(image, 0x100000, "FLASH",
		fmArea{0x00000, 0x80000, "COREBOOT"},
		fmArea{0x80000, 0x80000, "RW_A"})
	if ret := ImageWrite(f, image, nil); ret != 0 {
		t.Fatal("flashing the fmap image failed")
	}

	l, ret := LayoutReadFmapFromROM(f, 0, size)
	if ret != 0 {
		t.Fatalf("LayoutReadFmapFromROM = %d", ret)
	}
	defer LayoutRelease(l)
	if got := layout.Global().NumRegions(); got != 2 {
		t.Fatalf("global layout holds %d regions, want 2", got)
	}
	if ret := LayoutIncludeRegion(l, "RW_A"); ret != 0 {
		t.Error("region RW_A not found")
	}

	// A window that does not contain the fmap fails cleanly.
	layout.Global().Reset()
	if l, ret := LayoutReadFmapFromROM(f, 0, 0x1000); l != nil || ret != 1 {
		t.Errorf("fmap search in empty window: got (%v, %d), want (nil, 1)", l, ret)
	}
}

// ifdImage builds a minimal Intel flash descriptor with the given FLREG
// region registers.
func ifdImage(flregs ...uint32) []byte {
	const frba = 0x40
	b := make([]byte, 0x1000)
	for i := range b {
		b[i] = 0xff
	}
	binary.LittleEndian.PutUint32(b[0x10:], 0x0ff0a55a)
	// FRBA at bits 16..23 (in units of 16), NR at bits 24..26.
	flmap0 := uint32(frba>>4)<<16 | uint32(len(flregs)-1)<<24
	binary.LittleEndian.PutUint32(b[0x14:], flmap0)
	for i, r := range flregs {
		binary.LittleEndian.PutUint32(b[frba+4*i:], r)
	}
	return b
}

func flreg(base, limit uint32) uint32 {
	return (base>>12)&0x1fff | ((limit>>12)&0x1fff)<<16
}

func TestLayoutFromIFD(t *testing.T) {
	_, f := openDummy(t, "emulate=EN25Q32B", "")
	size := FlashGetsize(f)

	// A blank chip carries no descriptor.
	if l, ret := LayoutReadFromIFD(f, nil); l != nil || ret != 3 {
		t.Fatalf("IFD on a blank chip: got (%v, %d), want (nil, 3)", l, ret)
	}

	desc := ifdImage(
		flreg(0x000000, 0x000fff), // fd
		flreg(0x100000, 0x3fffff), // bios
		flreg(0x001000, 0x0fffff), // me
	)
	image := bytes.Repeat([]byte{0xff}, int(size))
	copy(image, desc)
	if ret := ImageWrite(f, image, nil); ret != 0 {
		t.Fatal("flashing the descriptor failed")
	}

	l, ret := LayoutReadFromIFD(f, nil)
	if ret != 0 {
		t.Fatalf("LayoutReadFromIFD = %d", ret)
	}
	if ret := LayoutIncludeRegion(l, "bios"); ret != 0 {
		t.Error("descriptor region bios not found")
	}
	if inc := l.l.IncludedRanges(); len(inc) != 1 || inc[0].Start != 0x100000 || inc[0].End != 0x3fffff {
		t.Errorf("bios resolves to %+v", inc)
	}
	LayoutRelease(l)

	// A matching dump parses and compares clean.
	if _, ret := LayoutReadFromIFD(f, desc); ret != 0 {
		t.Errorf("matching dump rejected: %d", ret)
	}
	// A dump that is not a descriptor at all.
	if l, ret := LayoutReadFromIFD(f, make([]byte, 0x1000)); l != nil || ret != 4 {
		t.Errorf("garbage dump: got (%v, %d), want (nil, 4)", l, ret)
	}
	// A well-formed dump with a different region table.
	other := ifdImage(
		flreg(0x000000, 0x000fff),
		flreg(0x200000, 0x3fffff),
	)
	if l, ret := LayoutReadFromIFD(f, other); l != nil || ret != 5 {
		t.Errorf("mismatched dump: got (%v, %d), want (nil, 5)", l, ret)
	}
}

func TestWPCfgAccessors(t *testing.T) {
	c, res := WPCfgNew()
	if res != WPOK || c == nil {
		t.Fatalf("WPCfgNew: (%v, %d)", c, res)
	}
	defer WPCfgRelease(c)
	if m := WPGetMode(c); m != WPModeDisabled {
		t.Errorf("fresh cfg mode %d", m)
	}
	WPSetMode(c, WPModeHardware)
	WPSetRange(c, 0x700000, 0x100000)
	if m := WPGetMode(c); m != WPModeHardware {
		t.Errorf("mode did not stick: %d", m)
	}
	if s, n := WPGetRange(c); s != 0x700000 || n != 0x100000 {
		t.Errorf("range did not stick: (0x%x, 0x%x)", s, n)
	}
}

func TestWP(t *testing.T) {
	_, f := openDummy(t, "emulate=W25Q64.V", "")
	size := FlashGetsize(f)

	cfg, _ := WPCfgNew()
	defer WPCfgRelease(cfg)
	if res := WPReadCfg(cfg, f); res != WPOK {
		t.Fatalf("WPReadCfg = %d", res)
	}
	if m := WPGetMode(cfg); m != WPModeDisabled {
		t.Errorf("fresh chip mode %d, want disabled", m)
	}
	if s, n := WPGetRange(cfg); s != 0 || n != 0 {
		t.Errorf("fresh chip range (0x%x, 0x%x), want (0, 0)", s, n)
	}

	rr, res := WPGetAvailableRanges(f)
	if res != WPOK {
		t.Fatalf("WPGetAvailableRanges = %d", res)
	}
	defer WPRangesRelease(rr)
	count := WPRangesGetCount(rr)
	if count == 0 {
		t.Fatal("no available ranges")
	}
	if s, n, res := WPRangesGetRange(rr, 0); res != WPOK || s != 0 || n != 0 {
		t.Errorf("range 0: (0x%x, 0x%x, %d)", s, n, res)
	}
	// The all-ones BP pattern covers the whole chip and sits last.
	ws, wn, res := WPRangesGetRange(rr, count-1)
	if res != WPOK || ws != 0 || wn != size {
		t.Errorf("last range: (0x%x, 0x%x, %d), want whole chip", ws, wn, res)
	}
	if _, _, res := WPRangesGetRange(rr, count); res != WPErrOther {
		t.Errorf("out-of-bounds range index = %d, want %d", res, WPErrOther)
	}

	// Protect the whole chip in hardware mode and read it back.
	WPSetMode(cfg, WPModeHardware)
	WPSetRange(cfg, ws, wn)
	if res := WPWriteCfg(f, cfg); res != WPOK {
		t.Fatalf("WPWriteCfg = %d", res)
	}
	back, _ := WPCfgNew()
	if res := WPReadCfg(back, f); res != WPOK {
		t.Fatal("readback failed")
	}
	if m := WPGetMode(back); m != WPModeHardware {
		t.Errorf("readback mode %d, want hardware", m)
	}
	if s, n := WPGetRange(back); s != ws || n != wn {
		t.Errorf("readback range (0x%x, 0x%x), want (0x%x, 0x%x)", s, n, ws, wn)
	}

	// Unsupported requests are refused without touching the chip.
	WPSetRange(cfg, 123, 456)
	if res := WPWriteCfg(f, cfg); res != WPErrRangeUnsupported {
		t.Errorf("bogus range = %d, want %d", res, WPErrRangeUnsupported)
	}
	WPSetRange(cfg, ws, wn)
	WPSetMode(cfg, WPModePowerCycle)
	if res := WPWriteCfg(f, cfg); res != WPErrModeUnsupported {
		t.Errorf("power-cycle mode = %d, want %d", res, WPErrModeUnsupported)
	}

	// Disable protection again.
	WPSetMode(cfg, WPModeDisabled)
	WPSetRange(cfg, 0, 0)
	if res := WPWriteCfg(f, cfg); res != WPOK {
		t.Fatalf("disabling WP = %d", res)
	}
	if res := WPReadCfg(back, f); res != WPOK || WPGetMode(back) != WPModeDisabled {
		t.Error("WP did not disable")
	}
}

func TestWPChipUnsupported(t *testing.T) {
	_, f := openDummy(t, "emulate=MX25L6405D", "")
	cfg, _ := WPCfgNew()
	if res := WPReadCfg(cfg, f); res != WPErrChipUnsupported {
		t.Errorf("WPReadCfg = %d, want %d", res, WPErrChipUnsupported)
	}
	if res := WPWriteCfg(f, cfg); res != WPErrChipUnsupported {
		t.Errorf("WPWriteCfg = %d, want %d", res, WPErrChipUnsupported)
	}
	if rr, res := WPGetAvailableRanges(f); rr != nil || res != WPErrRangeListUnavailable {
		t.Errorf("WPGetAvailableRanges: (%v, %d), want (nil, %d)", rr, res, WPErrRangeListUnavailable)
	}
}

func TestWPNonSPI(t *testing.T) {
	_, f := openDummy(t, "bus=parallel,emulate=SST49LF004A", "")
	cfg, _ := WPCfgNew()
	if res := WPReadCfg(cfg, f); res != WPErrOther {
		t.Errorf("WPReadCfg over parallel = %d, want %d", res, WPErrOther)
	}
	if res := WPWriteCfg(f, cfg); res != WPErrOther {
		t.Errorf("WPWriteCfg over parallel = %d, want %d", res, WPErrOther)
	}
	if rr, res := WPGetAvailableRanges(f); rr != nil || res != WPErrOther {
		t.Errorf("WPGetAvailableRanges over parallel: (%v, %d)", rr, res)
	}
}

func TestParallelImageOps(t *testing.T) {
	_, f := openDummy(t, "bus=parallel,emulate=SST49LF004A", "")
	size := FlashGetsize(f)
	if size != 512*1024 {
		t.Fatalf("FlashGetsize = %d, want 512 KiB", size)
	}
	image := bytes.Repeat([]byte{0x5a}, int(size))
	if ret := ImageWrite(f, image, nil); ret != 0 {
		t.Fatalf("ImageWrite = %d", ret)
	}
	if ret := ImageVerify(f, image); ret != 0 {
		t.Errorf("ImageVerify = %d", ret)
	}
	if ret := FlashErase(f); ret != 0 {
		t.Errorf("FlashErase = %d", ret)
	}
	buf := make([]byte, size)
	if ret := ImageRead(f, buf); ret != 0 {
		t.Fatal("ImageRead failed")
	}
	if !bytes.Equal(buf, bytes.Repeat([]byte{0xff}, int(size))) {
		t.Error("erase left data behind")
	}
}

func TestLogCallbackRelay(t *testing.T) {
	var got []LogLevel
	ret := 7
	SetLogCallback(func(level LogLevel, message string) int {
		got = append(got, level)
		return ret
	})
	defer SetLogCallback(nil)

	_, f := openDummy(t, "emulate=EN25Q32B", "")
	if r := FlashErase(f); r != 0 {
		t.Fatal("erase failed")
	}
	info := 0
	for _, l := range got {
		if l == MsgInfo {
			info++
		}
	}
	if info == 0 {
		t.Error("whole-chip erase emitted no INFO messages")
	}
}
