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

// Package prog is the engine core: the programmer registry, the
// registered bus masters of the live session, chip probing and the
// read/erase/write/verify algorithms.
//
// The registries are process-wide. At most one programmer session may be
// live at a time and nothing here is safe for concurrent use; the
// hardware is the serializing resource.
package prog

import (
	"github.com/juju/errors"

	"github.com/openfw/flashkit/chip"
	"github.com/openfw/flashkit/common/multierror"
	"github.com/openfw/flashkit/layout"
)

// Programmer is one entry of the programmer table. Init parses the
// driver-specific parameter string, opens the hardware and registers the
// masters it provides (and a shutdown hook to undo all of it).
type Programmer struct {
	Name string
	Init func(params string) error
}

var (
	table             []*Programmer
	registeredMasters []*Master
	shutdownFns       []func() error

	chipToProbe string
)

// RegisterProgrammer appends p to the programmer table. Called from driver
// package init functions; the table order is the registration order.
func RegisterProgrammer(p *Programmer) {
	table = append(table, p)
}

// Table returns the programmer table in registration order.
func Table() []*Programmer {
	return table
}

// ForName scans the table for a programmer with the given name and
// returns it together with its index, or (nil, -1).
func ForName(name string) (*Programmer, int) {
	for i, p := range table {
		if p.Name == name {
			return p, i
		}
	}
	return nil, -1
}

// RegisterMaster adds a bus master to the live session.
func RegisterMaster(m *Master) {
	registeredMasters = append(registeredMasters, m)
}

// RegisterShutdown schedules fn to run at session shutdown. Hooks run in
// reverse registration order.
func RegisterShutdown(fn func() error) {
	shutdownFns = append(shutdownFns, fn)
}

// RegisteredMasters returns the masters of the live session in
// registration order.
func RegisteredMasters() []*Master {
	return registeredMasters
}

// InitProgrammer starts a session on the programmer at the given table
// index.
func InitProgrammer(index int, params string) error {
	if index < 0 || index >= len(table) {
		return errors.Errorf("programmer index %d out of range", index)
	}
	if err := table[index].Init(params); err != nil {
		return errors.Annotatef(err, "programmer %s", table[index].Name)
	}
	if len(registeredMasters) == 0 {
		return errors.Errorf("programmer %s registered no masters", table[index].Name)
	}
	return nil
}

// ShutdownProgrammer tears the live session down: shutdown hooks in
// reverse order, then both registries are cleared. Every hook runs even
// when earlier ones fail; the failures are bundled.
func ShutdownProgrammer() error {
	var res error
	for i := len(shutdownFns) - 1; i >= 0; i-- {
		if err := shutdownFns[i](); err != nil {
			res = multierror.Append(res, err)
		}
	}
	shutdownFns = nil
	registeredMasters = nil
	return errors.Trace(res)
}

// SetChipToProbe sets the process-wide probing hint: empty means consider
// every chip, anything else restricts probing to chips of that name.
func SetChipToProbe(name string) {
	chipToProbe = name
}

// Flags are the per-context behavior switches.
type Flags struct {
	Force              bool
	ForceBoardmismatch bool
	VerifyAfterWrite   bool
	VerifyWholeChip    bool
}

// Context binds one probed chip to the master it was found on, plus the
// flags and the optional layout constraining operations on it.
type Context struct {
	Chip  *chip.Chip
	Mst   *Master
	Flags Flags

	// Layout is a non-owning reference; nil means whole chip.
	Layout *layout.Layout
}

// Size returns the chip size in bytes.
func (c *Context) Size() uint32 {
	return c.Chip.Size()
}
