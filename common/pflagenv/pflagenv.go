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

// Package pflagenv fills unset pflag flags from environment variables:
// the flag some-flag with prefix FK_ is looked up as FK_SOME_FLAG.
// Flags given on the command line always win, even when set to their
// default value.
package pflagenv

import (
	"os"
	"strings"

	"github.com/spf13/pflag"
)

// ParseFlagSet applies the environment to every flag of fs that was not
// set on the command line. Call it after fs.Parse.
func ParseFlagSet(fs *pflag.FlagSet, envPrefix string) {
	// pflag does not distinguish "set to the default" from "not set",
	// except through Visit, which only walks the set flags.
	nonset := make(map[string]*pflag.Flag)
	fs.VisitAll(func(f *pflag.Flag) {
		nonset[f.Name] = f
	})
	fs.Visit(func(f *pflag.Flag) {
		delete(nonset, f.Name)
	})

	for name, f := range nonset {
		if v := os.Getenv(envName(name, envPrefix)); v != "" {
			f.Value.Set(v)
			f.Changed = true
		}
	}
}

// Parse is ParseFlagSet over pflag.CommandLine.
func Parse(envPrefix string) {
	ParseFlagSet(pflag.CommandLine, envPrefix)
}

func envName(flagName, envPrefix string) string {
	return envPrefix + strings.Replace(strings.ToUpper(flagName), "-", "_", -1)
}
