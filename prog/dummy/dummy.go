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

// Package dummy is a programmer that emulates a flash chip in memory.
// It exists so the whole stack can run, and be tested, without hardware.
//
// Parameters:
//
//	bus=spi|parallel   transport to emulate (default spi)
//	emulate=<name>     chip to emulate (default W25Q128.V)
//	image=<path>       file to preload the emulated flash from
package dummy

import (
	"io/ioutil"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/openfw/flashkit/chip"
	"github.com/openfw/flashkit/prog"
)

const defaultChip = "W25Q128.V"

func init() {
	prog.RegisterProgrammer(&prog.Programmer{Name: "dummy", Init: progInit})
}

func progInit(params string) error {
	bus := prog.ExtractParam(params, "bus")
	if bus == "" {
		bus = "spi"
	}
	name := prog.ExtractParam(params, "emulate")
	if name == "" {
		name = defaultChip
	}
	ch := chip.ByName(name)
	if ch == nil {
		return errors.Errorf("cannot emulate unknown chip %q", name)
	}

	storage := make([]byte, ch.Size())
	for i := range storage {
		storage[i] = 0xff
	}
	if path := prog.ExtractParam(params, "image"); path != "" {
		img, err := ioutil.ReadFile(path)
		if err != nil {
			return errors.Annotatef(err, "cannot preload emulated flash")
		}
		copy(storage, img)
		glog.V(1).Infof("dummy: preloaded %d bytes from %s", len(img), path)
	}

	e := &emulator{chip: ch, storage: storage}
	switch bus {
	case "spi":
		if ch.Bus&chip.BusSPI == 0 {
			return errors.Errorf("chip %s is not an SPI chip", ch.Name)
		}
		prog.RegisterMaster(&prog.Master{
			Name:  "dummy_spi",
			Buses: chip.BusSPI,
			SPI:   e,
		})
	case "parallel":
		if ch.Bus&(chip.BusParallel|chip.BusLPC|chip.BusFWH) == 0 {
			return errors.Errorf("chip %s is not a parallel/LPC/FWH chip", ch.Name)
		}
		prog.RegisterMaster(&prog.Master{
			Name:   "dummy_parallel",
			Buses:  chip.BusParallel | chip.BusLPC | chip.BusFWH,
			Opaque: e,
		})
	default:
		return errors.Errorf("invalid bus type %q", bus)
	}
	prog.RegisterShutdown(func() error {
		glog.V(1).Infof("dummy: shutdown")
		return nil
	})
	return nil
}
