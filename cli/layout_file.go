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
package main

import (
	"io/ioutil"
	"strconv"

	"github.com/juju/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/openfw/flashkit"
)

// hexInt accepts decimal and 0x-prefixed values, quoted or not.
type hexInt uint32

func (h *hexInt) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		var n uint32
		if err := unmarshal(&n); err != nil {
			return errors.Trace(err)
		}
		*h = hexInt(n)
		return nil
	}
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return errors.Trace(err)
	}
	*h = hexInt(n)
	return nil
}

type layoutRegion struct {
	Name  string `yaml:"name"`
	Start hexInt `yaml:"start"`
	End   hexInt `yaml:"end"`
}

type layoutDoc struct {
	Regions []layoutRegion `yaml:"regions"`
}

// loadLayoutFile reads a region layout from a YAML file:
//
//	regions:
//	  - {name: bios, start: "0x100000", end: "0x3fffff"}
//	  - {name: me, start: "0x1000", end: "0xfffff"}
func loadLayoutFile(path string) (*flashkit.Layout, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var doc layoutDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Annotatef(err, "malformed layout file")
	}
	if len(doc.Regions) == 0 {
		return nil, errors.Errorf("layout file describes no regions")
	}
	l := flashkit.LayoutNew()
	for _, r := range doc.Regions {
		if flashkit.LayoutAddRegion(l, uint(r.Start), uint(r.End), r.Name) != 0 {
			flashkit.LayoutRelease(l)
			return nil, errors.Errorf("bad region %q (0x%x..0x%x)", r.Name, r.Start, r.End)
		}
	}
	return l, nil
}
