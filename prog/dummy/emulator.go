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

package dummy

import (
	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/openfw/flashkit/chip"
)

// emulator models one SPI NOR chip: flash array, status register, write
// enable latch. Writes can only clear bits, erases set them; protected
// ranges (per the chip's BP decode table) silently ignore both, like the
// real parts do.
type emulator struct {
	chip    *chip.Chip
	storage []byte
	sr      uint8
	wel     bool
}

const (
	cmdWRSR = 0x01
	cmdPP   = 0x02
	cmdREAD = 0x03
	cmdRDSR = 0x05
	cmdWREN = 0x06
	cmdSE   = 0x20
	cmdCE   = 0xc7
	cmdBE   = 0xd8
	cmdRDID = 0x9f
)

func (e *emulator) MaxDataRead() int  { return 1024 }
func (e *emulator) MaxDataWrite() int { return 256 }

func (e *emulator) addr(w []byte) uint32 {
	return uint32(w[1])<<16 | uint32(w[2])<<8 | uint32(w[3])
}

// protected reports whether byte address a falls in the currently
// selected protection range.
func (e *emulator) protected(a uint32) bool {
	d := e.chip.WP
	if d == nil {
		return false
	}
	bp := (e.sr >> 2) & (uint8(1<<d.BPBits) - 1)
	for _, dec := range d.Ranges {
		if dec.BP == bp {
			return a >= dec.Range.Start && a < dec.Range.Start+dec.Range.Len
		}
	}
	return false
}

func (e *emulator) Command(w []byte, readLen int) ([]byte, error) {
	if len(w) == 0 {
		return nil, errors.Errorf("empty SPI command")
	}
	switch w[0] {
	case cmdRDID:
		id := []byte{e.chip.ManufacturerID, byte(e.chip.ModelID >> 8), byte(e.chip.ModelID)}
		if readLen < len(id) {
			id = id[:readLen]
		}
		return id, nil

	case cmdRDSR:
		out := make([]byte, readLen)
		for i := range out {
			out[i] = e.sr
		}
		return out, nil

	case cmdWREN:
		e.wel = true
		return nil, nil

	case cmdWRSR:
		if len(w) < 2 {
			return nil, errors.Errorf("WRSR without data")
		}
		if e.wel {
			e.sr = w[1] & 0xfc // WIP and WEL are read-only
			e.wel = false
		}
		return nil, nil

	case cmdREAD:
		if len(w) < 4 {
			return nil, errors.Errorf("READ without address")
		}
		a := e.addr(w)
		if int(a)+readLen > len(e.storage) {
			return nil, errors.Errorf("read beyond end of flash (0x%x+%d)", a, readLen)
		}
		out := make([]byte, readLen)
		copy(out, e.storage[a:])
		return out, nil

	case cmdPP:
		if len(w) < 5 {
			return nil, errors.Errorf("page program without data")
		}
		if !e.wel {
			glog.V(2).Infof("dummy: PP ignored, WEL not set")
			return nil, nil
		}
		e.wel = false
		a := e.addr(w)
		data := w[4:]
		if int(a)+len(data) > len(e.storage) {
			return nil, errors.Errorf("program beyond end of flash (0x%x+%d)", a, len(data))
		}
		for i, b := range data {
			if e.protected(a + uint32(i)) {
				continue
			}
			e.storage[a+uint32(i)] &= b
		}
		return nil, nil

	case cmdSE, cmdBE:
		if len(w) < 4 {
			return nil, errors.Errorf("erase without address")
		}
		if !e.wel {
			glog.V(2).Infof("dummy: erase ignored, WEL not set")
			return nil, nil
		}
		e.wel = false
		size := e.chip.SectorSize
		if w[0] == cmdBE {
			size = e.chip.BlockSize
		}
		a := e.addr(w) &^ (size - 1)
		e.eraseRange(a, size)
		return nil, nil

	case cmdCE:
		if !e.wel {
			glog.V(2).Infof("dummy: chip erase ignored, WEL not set")
			return nil, nil
		}
		e.wel = false
		e.eraseRange(0, uint32(len(e.storage)))
		return nil, nil
	}
	return nil, errors.Errorf("unhandled SPI command 0x%02x", w[0])
}

func (e *emulator) eraseRange(start, length uint32) {
	for a := start; a < start+length && int(a) < len(e.storage); a++ {
		if e.protected(a) {
			continue
		}
		e.storage[a] = 0xff
	}
}

// OpaqueMaster implementation, used when emulating a parallel chip.

func (e *emulator) Probe() (uint8, uint16, error) {
	return e.chip.ManufacturerID, e.chip.ModelID, nil
}

func (e *emulator) Read(start uint32, buf []byte) error {
	if int(start)+len(buf) > len(e.storage) {
		return errors.Errorf("read beyond end of flash")
	}
	copy(buf, e.storage[start:])
	return nil
}

func (e *emulator) Write(start uint32, buf []byte) error {
	if int(start)+len(buf) > len(e.storage) {
		return errors.Errorf("write beyond end of flash")
	}
	copy(e.storage[start:], buf)
	return nil
}

func (e *emulator) Erase(start, length uint32) error {
	if int(start)+int(length) > len(e.storage) {
		return errors.Errorf("erase beyond end of flash")
	}
	e.eraseRange(start, length)
	return nil
}
