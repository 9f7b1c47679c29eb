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
	"github.com/golang/glog"

	"github.com/openfw/flashkit/msg"
	"github.com/openfw/flashkit/prog"
)

// Programmer is an opaque handle to the live programmer session.
type Programmer struct {
	index int
}

// ProgrammerInit resolves name against the programmer table and starts a
// session with the driver-specific parameter string. Returns (handle, 0)
// on success. An unknown name emits an INFO listing of valid choices and
// returns (nil, 1). Only one session may be live at a time; that rule is
// the caller's to keep.
func ProgrammerInit(name, params string) (*Programmer, int) {
	p, idx := prog.ForName(name)
	if p == nil {
		msg.Ginfo("Error: Unknown programmer \"%s\". Valid choices are:", name)
		prog.ListProgrammersLinebreak(0, 80)
		return nil, 1
	}
	if err := prog.InitProgrammer(idx, params); err != nil {
		msg.Gerr("Error: Programmer initialization failed: %v", err)
		return nil, 1
	}
	return &Programmer{index: idx}, 0
}

// ProgrammerShutdown shuts the session down. The handle is consumed.
// Returns 0 on success.
func ProgrammerShutdown(p *Programmer) int {
	if err := prog.ShutdownProgrammer(); err != nil {
		glog.Errorf("programmer shutdown: %v", err)
		return 1
	}
	return 0
}
