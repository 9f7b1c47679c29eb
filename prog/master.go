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

import "github.com/openfw/flashkit/chip"

// SPIMaster is the transport a driver provides for SPI chips: one
// write-then-read transaction with chip select held throughout.
type SPIMaster interface {
	// Command sends w, then clocks readLen bytes back.
	Command(w []byte, readLen int) ([]byte, error)
	// MaxDataRead is the largest read payload per transaction.
	MaxDataRead() int
	// MaxDataWrite is the largest write payload per transaction.
	MaxDataWrite() int
}

// OpaqueMaster is the fallback transport for masters that do not expose
// raw bus cycles (memory-mapped controllers, kernel MTD and the like):
// the driver implements whole operations itself.
type OpaqueMaster interface {
	// Probe identifies the attached device.
	Probe() (manufacturerID uint8, modelID uint16, err error)
	Read(start uint32, buf []byte) error
	Write(start uint32, buf []byte) error
	Erase(start, length uint32) error
}

// Master is one bus path registered by the live programmer. Exactly one
// of SPI or Opaque is non-nil.
type Master struct {
	Name  string
	Buses chip.Bus

	SPI    SPIMaster
	Opaque OpaqueMaster
}
