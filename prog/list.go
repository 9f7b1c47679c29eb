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

import "github.com/openfw/flashkit/msg"

// ListProgrammersLinebreak emits the programmer names at INFO level,
// comma separated and wrapped so no line exceeds cols columns. startcol
// indents every line by that many spaces.
func ListProgrammersLinebreak(startcol, cols int) {
	indent := ""
	for i := 0; i < startcol; i++ {
		indent += " "
	}
	line := indent
	for i, p := range table {
		item := p.Name
		if i < len(table)-1 {
			item += ","
		}
		if line != indent && len(line)+1+len(item) > cols {
			msg.Ginfo("%s", line)
			line = indent
		}
		if line != indent {
			line += " "
		}
		line += item
	}
	if line != indent {
		msg.Ginfo("%s", line)
	}
}
