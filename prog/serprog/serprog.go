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

// Package serprog talks the serprog protocol to an external programmer
// attached over a serial port (Arduino/STM32 based SPI programmers,
// mostly).
//
// Parameters:
//
//	dev=<path>   serial device (required)
//	baud=<rate>  line speed (default 115200)
package serprog

import (
	"strconv"

	"github.com/cesanta/go-serial/serial"
	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/openfw/flashkit/chip"
	"github.com/openfw/flashkit/msg"
	"github.com/openfw/flashkit/prog"
)

func init() {
	prog.RegisterProgrammer(&prog.Programmer{Name: "serprog", Init: progInit})
}

func progInit(params string) error {
	dev := prog.ExtractParam(params, "dev")
	if dev == "" {
		msg.Gerr("No serial device given. Use flashkit -p serprog:dev=/dev/device,baud=rate")
		return errors.Errorf("missing dev parameter")
	}
	baud := uint(115200)
	if b := prog.ExtractParam(params, "baud"); b != "" {
		n, err := strconv.ParseUint(b, 10, 32)
		if err != nil || n == 0 {
			return errors.Errorf("invalid baud rate %q", b)
		}
		baud = uint(n)
	}

	port, err := serial.Open(serial.OpenOptions{
		PortName:              dev,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 500,
		MinimumReadSize:       0,
	})
	if err != nil {
		return errors.Annotatef(err, "cannot open %s", dev)
	}

	c := NewClient(port)
	if err := c.Handshake(); err != nil {
		port.Close()
		return errors.Annotatef(err, "serprog handshake on %s", dev)
	}
	name, err := c.ProgrammerName()
	if err == nil && name != "" {
		msg.Ginfo("serprog: Programmer name is \"%s\"", name)
	}
	if !c.Supports(cmdOSPIOp) {
		port.Close()
		return errors.Errorf("programmer on %s cannot do SPI operations", dev)
	}

	prog.RegisterMaster(&prog.Master{
		Name:  "serprog",
		Buses: chip.BusSPI,
		SPI:   c,
	})
	prog.RegisterShutdown(func() error {
		glog.V(1).Infof("serprog: closing %s", dev)
		return port.Close()
	})
	return nil
}
