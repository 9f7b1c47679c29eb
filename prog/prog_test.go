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
	"testing"

	"github.com/openfw/flashkit/msg"
)

func TestExtractParam(t *testing.T) {
	cases := []struct {
		params, key, want string
	}{
		{"dev=/dev/ttyUSB0,baud=115200", "dev", "/dev/ttyUSB0"},
		{"dev=/dev/ttyUSB0,baud=115200", "baud", "115200"},
		{"dev=/dev/ttyUSB0,baud=115200", "emulate", ""},
		{"", "dev", ""},
		{"bus=spi, emulate=W25Q64.V", "emulate", "W25Q64.V"},
		{"flag=", "flag", ""},
		{"a=b=c", "a", "b=c"},
	}
	for _, c := range cases {
		if got := ExtractParam(c.params, c.key); got != c.want {
			t.Errorf("ExtractParam(%q, %q) = %q, want %q", c.params, c.key, got, c.want)
		}
	}
}

func TestListProgrammersLinebreak(t *testing.T) {
	saved := table
	defer func() { table = saved }()
	table = nil
	for _, name := range []string{
		"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf",
		"hotel", "india", "juliett", "kilo", "lima", "mike", "november",
	} {
		RegisterProgrammer(&Programmer{Name: name, Init: func(string) error { return nil }})
	}

	var lines []string
	msg.SetCallback(func(level msg.Level, message string) int {
		if level == msg.LevelInfo {
			lines = append(lines, message)
		}
		return 0
	})
	defer msg.SetCallback(nil)

	ListProgrammersLinebreak(0, 40)
	if len(lines) < 2 {
		t.Fatalf("expected wrapping, got %d line(s): %v", len(lines), lines)
	}
	all := ""
	for _, l := range lines {
		if len(l) > 40 {
			t.Errorf("line longer than 40 columns: %q", l)
		}
		if all != "" {
			all += " "
		}
		all += l
	}
	want := "alpha, bravo, charlie, delta, echo, foxtrot, golf, hotel, india, juliett, kilo, lima, mike, november"
	if all != want {
		t.Errorf("joined listing:\n got %q\nwant %q", all, want)
	}
}

func TestSelfcheck(t *testing.T) {
	if n := Selfcheck(); n != 0 {
		t.Errorf("selfcheck found %d problems in the static tables", n)
	}
}

func TestUdelay(t *testing.T) {
	CalibrateDelay()
	// Nothing to assert beyond "does not hang"; both paths must return.
	Udelay(5)
	Udelay(500)
}
