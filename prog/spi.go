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
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

// Standard SPI NOR command set (25-series).
const (
	spiCmdWRSR = 0x01
	spiCmdPP   = 0x02
	spiCmdREAD = 0x03
	spiCmdRDSR = 0x05
	spiCmdWREN = 0x06
	spiCmdSE   = 0x20
	spiCmdCE   = 0xc7
	spiCmdBE   = 0xd8
	spiCmdRDID = 0x9f

	srWIP = 1 << 0
)

const (
	pollInterval = 10 * time.Microsecond

	programTimeout   = 100 * time.Millisecond
	sectorTimeout    = 2 * time.Second
	chipEraseTimeout = 200 * time.Second
	wrsrTimeout      = 100 * time.Millisecond
)

func addr24(cmd byte, addr uint32) []byte {
	return []byte{cmd, byte(addr >> 16), byte(addr >> 8), byte(addr)}
}

// SPIReadID issues RDID and returns the JEDEC manufacturer and model IDs.
func SPIReadID(m SPIMaster) (uint8, uint16, error) {
	b, err := m.Command([]byte{spiCmdRDID}, 3)
	if err != nil {
		return 0, 0, errors.Annotatef(err, "RDID")
	}
	if len(b) < 3 {
		return 0, 0, errors.Errorf("short RDID response (%d bytes)", len(b))
	}
	glog.V(2).Infof("RDID: %02x %02x %02x", b[0], b[1], b[2])
	return b[0], uint16(b[1])<<8 | uint16(b[2]), nil
}

// SPIReadSR reads status register 1.
func SPIReadSR(m SPIMaster) (uint8, error) {
	b, err := m.Command([]byte{spiCmdRDSR}, 1)
	if err != nil {
		return 0, errors.Annotatef(err, "RDSR")
	}
	if len(b) < 1 {
		return 0, errors.Errorf("short RDSR response")
	}
	return b[0], nil
}

// SPIWriteSR writes status register 1 and waits for the cycle to finish.
func SPIWriteSR(m SPIMaster, val uint8) error {
	if err := spiWriteEnable(m); err != nil {
		return errors.Trace(err)
	}
	if _, err := m.Command([]byte{spiCmdWRSR, val}, 0); err != nil {
		return errors.Annotatef(err, "WRSR")
	}
	return spiWaitIdle(m, wrsrTimeout)
}

func spiWriteEnable(m SPIMaster) error {
	_, err := m.Command([]byte{spiCmdWREN}, 0)
	return errors.Annotatef(err, "WREN")
}

func spiWaitIdle(m SPIMaster, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		sr, err := SPIReadSR(m)
		if err != nil {
			return errors.Trace(err)
		}
		if sr&srWIP == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Errorf("chip busy after %s", timeout)
		}
		Udelay(uint(pollInterval / time.Microsecond))
	}
}

func spiRead(m SPIMaster, start uint32, buf []byte) error {
	chunk := m.MaxDataRead()
	if chunk <= 0 {
		chunk = 256
	}
	for done := 0; done < len(buf); {
		n := len(buf) - done
		if n > chunk {
			n = chunk
		}
		b, err := m.Command(addr24(spiCmdREAD, start+uint32(done)), n)
		if err != nil {
			return errors.Annotatef(err, "read at 0x%x", start+uint32(done))
		}
		if len(b) != n {
			return errors.Errorf("short read at 0x%x: %d of %d", start+uint32(done), len(b), n)
		}
		copy(buf[done:], b)
		done += n
	}
	return nil
}

func spiPageProgram(m SPIMaster, pageSize uint32, start uint32, data []byte) error {
	max := m.MaxDataWrite()
	if max <= 0 {
		max = int(pageSize)
	}
	for done := 0; done < len(data); {
		addr := start + uint32(done)
		// Never cross a page boundary in one program cycle.
		n := int(pageSize - addr%pageSize)
		if n > len(data)-done {
			n = len(data) - done
		}
		if n > max {
			n = max
		}
		if err := spiWriteEnable(m); err != nil {
			return errors.Trace(err)
		}
		cmd := append(addr24(spiCmdPP, addr), data[done:done+n]...)
		if _, err := m.Command(cmd, 0); err != nil {
			return errors.Annotatef(err, "page program at 0x%x", addr)
		}
		if err := spiWaitIdle(m, programTimeout); err != nil {
			return errors.Trace(err)
		}
		done += n
	}
	return nil
}

func spiSectorErase(m SPIMaster, addr uint32) error {
	if err := spiWriteEnable(m); err != nil {
		return errors.Trace(err)
	}
	if _, err := m.Command(addr24(spiCmdSE, addr), 0); err != nil {
		return errors.Annotatef(err, "sector erase at 0x%x", addr)
	}
	return spiWaitIdle(m, sectorTimeout)
}

func spiChipErase(m SPIMaster) error {
	if err := spiWriteEnable(m); err != nil {
		return errors.Trace(err)
	}
	if _, err := m.Command([]byte{spiCmdCE}, 0); err != nil {
		return errors.Annotatef(err, "chip erase")
	}
	return spiWaitIdle(m, chipEraseTimeout)
}
