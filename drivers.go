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

// The standard programmer drivers register themselves into the
// programmer table. Importing them here means every consumer of the
// facade gets the full table.
import (
	_ "github.com/openfw/flashkit/prog/ch341a"
	_ "github.com/openfw/flashkit/prog/dummy"
	_ "github.com/openfw/flashkit/prog/serprog"
)
