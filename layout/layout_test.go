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

package layout

import (
	"fmt"
	"strings"
	"testing"
)

func TestAddRegion(t *testing.T) {
	l := New()
	cases := []struct {
		start, end uint32
		name       string
		ok         bool
	}{
		{0, 0xffff, "boot", true},
		{0x10000, 0x1ffff, "rw", true},
		{0x10000, 0x1ffff, "rw", true}, // duplicates are allowed
		{0x20000, 0x1ffff, "backwards", false},
		{0, 0xffff, "", false},
	}
	for i, c := range cases {
		err := l.AddRegion(c.start, c.end, c.name)
		if (err == nil) != c.ok {
			t.Errorf("case %d (%q): err=%v, want ok=%v", i, c.name, err, c.ok)
		}
	}
	if n := l.NumRegions(); n != 3 {
		t.Errorf("NumRegions = %d, want 3", n)
	}
	// Insertion order is preserved.
	rr := l.Regions()
	if rr[0].Name != "boot" || rr[1].Name != "rw" || rr[2].Name != "rw" {
		t.Errorf("unexpected region order: %v", rr)
	}
}

func TestAddRegionMax(t *testing.T) {
	l := New()
	for i := 0; i < MaxRegions; i++ {
		if err := l.AddRegion(uint32(i)*0x1000, uint32(i)*0x1000+0xfff, fmt.Sprintf("r%d", i)); err != nil {
			t.Fatalf("region %d rejected: %v", i, err)
		}
	}
	if err := l.AddRegion(0, 0xfff, "overflow"); err == nil {
		t.Errorf("region %d accepted beyond the maximum", MaxRegions)
	}
}

func TestIncludeRegion(t *testing.T) {
	l := New()
	for _, name := range []string{"a", "b", "a"} {
		if err := l.AddRegion(0, 0xfff, name); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.IncludeRegion("nope"); err == nil {
		t.Error("including a missing region succeeded")
	}
	if err := l.IncludeRegion("a"); err != nil {
		t.Fatal(err)
	}
	// Every region with the name gets included.
	rr := l.Regions()
	if !rr[0].Included || rr[1].Included || !rr[2].Included {
		t.Errorf("inclusion flags wrong: %v %v %v", rr[0].Included, rr[1].Included, rr[2].Included)
	}
	if got := len(l.IncludedRanges()); got != 2 {
		t.Errorf("IncludedRanges = %d entries, want 2", got)
	}
}

func TestCovers(t *testing.T) {
	l := New()
	l.AddRegion(0x1000, 0x1fff, "a")
	// Nothing included: everything is covered.
	if !l.Covers(0) || !l.Covers(0x5000) {
		t.Error("empty inclusion set should cover everything")
	}
	l.IncludeRegion("a")
	cases := []struct {
		addr uint32
		want bool
	}{
		{0x0fff, false},
		{0x1000, true},
		{0x1fff, true},
		{0x2000, false},
	}
	for _, c := range cases {
		if got := l.Covers(c.addr); got != c.want {
			t.Errorf("Covers(0x%x) = %v, want %v", c.addr, got, c.want)
		}
	}
}

func TestTrimName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"BOOT", "BOOT"},
		{"BOOT\x00\x00junk", "BOOT"},
		{strings.Repeat("x", 40), strings.Repeat("x", NameLen)},
		{"", ""},
	}
	for _, c := range cases {
		if got := TrimName(c.in); got != c.want {
			t.Errorf("TrimName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestReset(t *testing.T) {
	l := Global()
	l.AddRegion(0, 0xfff, "tmp")
	l.Reset()
	if l.NumRegions() != 0 {
		t.Error("Reset left regions behind")
	}
}
