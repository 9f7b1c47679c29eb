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

// Package ch341a drives the WinChipHead CH341A USB-to-SPI bridge found
// on the ubiquitous black "SPI programmer" boards.
package ch341a

import (
	"github.com/golang/glog"
	"github.com/google/gousb"
	"github.com/juju/errors"

	"github.com/openfw/flashkit/chip"
	"github.com/openfw/flashkit/msg"
	"github.com/openfw/flashkit/prog"
)

const (
	vendorID  = 0x1a86
	productID = 0x5512

	// One bulk packet: command byte plus up to 31 data bytes.
	packetLen = 0x20

	cmdSPIStream = 0xa8
	cmdUIOStream = 0xab

	uioStmOut = 0x80
	uioStmDir = 0x40
	uioStmEnd = 0x20

	// Pin states on the UIO port: bit 0 is CS, kept high when idle.
	pinsCSHigh = 0x37
	pinsCSLow  = 0x36
	pinsDirOut = 0x3f
)

func init() {
	prog.RegisterProgrammer(&prog.Programmer{Name: "ch341a_spi", Init: progInit})
}

func progInit(params string) error {
	if params != "" {
		return errors.Errorf("ch341a_spi takes no parameters")
	}
	uctx := gousb.NewContext()
	devs, err := uctx.OpenDevices(func(dd *gousb.DeviceDesc) bool {
		glog.V(1).Infof("USB dev %+v", dd)
		return dd.Vendor == vendorID && dd.Product == productID
	})
	// OpenDevices may fail overall but still return results. Only fail if
	// no devices were returned.
	if err != nil && len(devs) == 0 {
		uctx.Close()
		return errors.Annotatef(err, "failed to enumerate USB devices")
	}
	if len(devs) == 0 {
		uctx.Close()
		msg.Gerr("Couldn't find a CH341A device (%04x:%04x).", vendorID, productID)
		return errors.Errorf("no CH341A found")
	}
	dev := devs[0]
	for _, d := range devs[1:] {
		d.Close()
	}

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		uctx.Close()
		return errors.Annotatef(err, "cannot claim CH341A interface")
	}
	out, err := intf.OutEndpoint(2)
	if err == nil {
		var in *gousb.InEndpoint
		in, err = intf.InEndpoint(2)
		if err == nil {
			m := &master{out: out, in: in}
			if err = m.idle(); err == nil {
				prog.RegisterMaster(&prog.Master{
					Name:  "ch341a_spi",
					Buses: chip.BusSPI,
					SPI:   m,
				})
				prog.RegisterShutdown(func() error {
					m.idle()
					done()
					dev.Close()
					return uctx.Close()
				})
				return nil
			}
		}
	}
	done()
	dev.Close()
	uctx.Close()
	return errors.Annotatef(err, "CH341A setup failed")
}

type master struct {
	out *gousb.OutEndpoint
	in  *gousb.InEndpoint
}

func (m *master) MaxDataRead() int  { return 4096 }
func (m *master) MaxDataWrite() int { return 256 }

// The CH341A clocks bits LSB first; SPI flashes want MSB first, so every
// byte crosses through this table.
var bitSwap = func() [256]byte {
	var t [256]byte
	for i := 0; i < 256; i++ {
		b := byte(i)
		b = b>>4 | b<<4
		b = b>>2&0x33 | b<<2&0xcc
		b = b>>1&0x55 | b<<1&0xaa
		t[i] = b
	}
	return t
}()

func (m *master) uio(ops ...byte) error {
	buf := append([]byte{cmdUIOStream}, ops...)
	buf = append(buf, uioStmEnd)
	_, err := m.out.Write(buf)
	return errors.Trace(err)
}

// idle parks the bus: pins driven, CS deasserted.
func (m *master) idle() error {
	return m.uio(uioStmOut|pinsCSHigh, uioStmDir|pinsDirOut)
}

func (m *master) selectCS(assert bool) error {
	pins := byte(pinsCSHigh)
	if assert {
		pins = pinsCSLow
	}
	return m.uio(uioStmOut | pins)
}

// transfer shifts buf out while capturing the same number of bytes in.
func (m *master) transfer(buf []byte) ([]byte, error) {
	res := make([]byte, 0, len(buf))
	for off := 0; off < len(buf); off += packetLen - 1 {
		n := len(buf) - off
		if n > packetLen-1 {
			n = packetLen - 1
		}
		pkt := make([]byte, 0, n+1)
		pkt = append(pkt, cmdSPIStream)
		for _, b := range buf[off : off+n] {
			pkt = append(pkt, bitSwap[b])
		}
		if _, err := m.out.Write(pkt); err != nil {
			return nil, errors.Annotatef(err, "bulk out")
		}
		rx := make([]byte, n)
		got, err := m.in.Read(rx)
		if err != nil {
			return nil, errors.Annotatef(err, "bulk in")
		}
		if got != n {
			return nil, errors.Errorf("short SPI transfer: %d of %d", got, n)
		}
		for _, b := range rx {
			res = append(res, bitSwap[b])
		}
	}
	return res, nil
}

// Command implements prog.SPIMaster.
func (m *master) Command(w []byte, readLen int) ([]byte, error) {
	if err := m.selectCS(true); err != nil {
		return nil, errors.Trace(err)
	}
	defer m.selectCS(false)

	buf := make([]byte, len(w)+readLen)
	copy(buf, w)
	for i := len(w); i < len(buf); i++ {
		buf[i] = 0xff
	}
	rx, err := m.transfer(buf)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return rx[len(w):], nil
}
