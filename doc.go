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

// Package flashkit is the stable, embeddable surface of the flash
// programming engine: reading, erasing, writing, verifying and
// write-protecting SPI NOR and similar non-volatile memory chips.
//
// Every entry point reports status as a small integer so that bindings
// and front-ends in any language see the same contract. Handles returned
// here (Programmer, FlashCtx, Layout, WPCfg, WPRanges) are opaque;
// consumers must not depend on their contents.
//
// The usual session looks like this: install a log callback, Init, a
// ProgrammerInit, FlashProbe for a context, optionally build and attach a
// layout, run image or write-protect operations, FlashRelease, then
// ProgrammerShutdown and Shutdown. At most one programmer session may be
// live at a time, and nothing in this package may be called concurrently
// with anything else in it; the facade does not guard either rule.
package flashkit
