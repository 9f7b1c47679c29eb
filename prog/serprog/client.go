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

package serprog

import (
	"bytes"
	"io"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

// serprog wire protocol, version 1.
const (
	respACK = 0x06
	respNAK = 0x15

	cmdNOP      = 0x00
	cmdQIface   = 0x01
	cmdQCmdMap  = 0x02
	cmdQPgmName = 0x03
	cmdQSerBuf  = 0x04
	cmdQBusType = 0x05
	cmdSyncNOP  = 0x10
	cmdSBusType = 0x12
	cmdOSPIOp   = 0x13

	ifaceVersion = 1
	cmdMapLen    = 32
	pgmNameLen   = 16
)

// Client speaks serprog over any byte stream; the transport is an
// io.ReadWriter so tests can drive it with an in-memory pipe.
type Client struct {
	rw     io.ReadWriter
	cmdMap [cmdMapLen]byte
}

func NewClient(rw io.ReadWriter) *Client {
	return &Client{rw: rw}
}

func (c *Client) readFull(buf []byte) error {
	_, err := io.ReadFull(c.rw, buf)
	return errors.Trace(err)
}

func (c *Client) expectACK(what string) error {
	var b [1]byte
	if err := c.readFull(b[:]); err != nil {
		return errors.Annotatef(err, "%s", what)
	}
	switch b[0] {
	case respACK:
		return nil
	case respNAK:
		return errors.Errorf("%s: NAK", what)
	}
	return errors.Errorf("%s: unexpected response 0x%02x", what, b[0])
}

// Handshake synchronizes with the device and checks the protocol
// version and command map.
func (c *Client) Handshake() error {
	// SYNCNOP answers NAK then ACK, which lets us find the frame
	// boundary after a reboot mid-command.
	if _, err := c.rw.Write([]byte{cmdSyncNOP}); err != nil {
		return errors.Trace(err)
	}
	var b [2]byte
	if err := c.readFull(b[:]); err != nil {
		return errors.Annotatef(err, "SYNCNOP")
	}
	if b[0] != respNAK || b[1] != respACK {
		return errors.Errorf("SYNCNOP: bad response % x", b[:])
	}

	if _, err := c.rw.Write([]byte{cmdQIface}); err != nil {
		return errors.Trace(err)
	}
	if err := c.expectACK("Q_IFACE"); err != nil {
		return errors.Trace(err)
	}
	var ver [2]byte
	if err := c.readFull(ver[:]); err != nil {
		return errors.Trace(err)
	}
	v := uint16(ver[0]) | uint16(ver[1])<<8
	if v != ifaceVersion {
		return errors.Errorf("unsupported serprog interface version %d", v)
	}

	if _, err := c.rw.Write([]byte{cmdQCmdMap}); err != nil {
		return errors.Trace(err)
	}
	if err := c.expectACK("Q_CMDMAP"); err != nil {
		return errors.Trace(err)
	}
	if err := c.readFull(c.cmdMap[:]); err != nil {
		return errors.Trace(err)
	}
	glog.V(2).Infof("serprog command map: % x", c.cmdMap[:])
	return nil
}

// Supports reports whether the device implements the given command.
func (c *Client) Supports(cmd byte) bool {
	return c.cmdMap[cmd/8]&(1<<(cmd%8)) != 0
}

// ProgrammerName queries the device's self-reported name.
func (c *Client) ProgrammerName() (string, error) {
	if !c.Supports(cmdQPgmName) {
		return "", nil
	}
	if _, err := c.rw.Write([]byte{cmdQPgmName}); err != nil {
		return "", errors.Trace(err)
	}
	if err := c.expectACK("Q_PGMNAME"); err != nil {
		return "", errors.Trace(err)
	}
	var name [pgmNameLen]byte
	if err := c.readFull(name[:]); err != nil {
		return "", errors.Trace(err)
	}
	n := name[:]
	if i := bytes.IndexByte(n, 0); i >= 0 {
		n = n[:i]
	}
	return string(n), nil
}

// Command implements prog.SPIMaster via O_SPIOP: send len(w) bytes, read
// readLen back, all in one chip select.
func (c *Client) Command(w []byte, readLen int) ([]byte, error) {
	hdr := []byte{
		cmdOSPIOp,
		byte(len(w)), byte(len(w) >> 8), byte(len(w) >> 16),
		byte(readLen), byte(readLen >> 8), byte(readLen >> 16),
	}
	if _, err := c.rw.Write(append(hdr, w...)); err != nil {
		return nil, errors.Trace(err)
	}
	if err := c.expectACK("O_SPIOP"); err != nil {
		return nil, errors.Trace(err)
	}
	if readLen == 0 {
		return nil, nil
	}
	buf := make([]byte, readLen)
	if err := c.readFull(buf); err != nil {
		return nil, errors.Trace(err)
	}
	return buf, nil
}

func (c *Client) MaxDataRead() int  { return 4096 }
func (c *Client) MaxDataWrite() int { return 256 }
