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

import "github.com/openfw/flashkit/msg"

// LogLevel is the ordered severity scale of engine diagnostics. The
// integer values are part of the public contract.
type LogLevel = msg.Level

const (
	MsgError  LogLevel = msg.LevelError  // 0
	MsgWarn   LogLevel = msg.LevelWarn   // 1
	MsgInfo   LogLevel = msg.LevelInfo   // 2
	MsgDebug  LogLevel = msg.LevelDebug  // 3
	MsgDebug2 LogLevel = msg.LevelDebug2 // 4
	MsgSpew   LogLevel = msg.LevelSpew   // 5
)

// LogCallback receives every diagnostic the engine emits: a level and the
// finished message. The message content is advisory and must not be
// parsed. Threshold filtering is the callback's job.
type LogCallback = msg.Callback

// SetLogCallback installs the process-wide log sink. Passing nil discards
// all messages. Must not race with message-producing operations; the
// callback must stay valid for the lifetime of any active session.
func SetLogCallback(cb LogCallback) {
	msg.SetCallback(cb)
}
