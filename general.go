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

import "github.com/openfw/flashkit/prog"

// Init initializes the library. With performSelfcheck set, consistency
// checks run over the static chip and programmer tables first; a failure
// there returns 1 with no further side effects. Returns 0 on success.
func Init(performSelfcheck bool) int {
	if performSelfcheck && prog.Selfcheck() != 0 {
		return 1
	}
	prog.CalibrateDelay()
	return 0
}

// Shutdown releases the library. Call exactly once per successful Init.
// Returns 0.
func Shutdown() int {
	return 0
}
