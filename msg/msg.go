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

// Package msg is the diagnostic relay between the flash engine and whatever
// front-end is driving it. There is exactly one process-wide sink; when no
// sink is installed messages are discarded. Threshold policy (which levels
// to show) is the sink's business, not ours.
package msg

import "fmt"

type Level int

const (
	LevelError Level = 0
	LevelWarn  Level = 1
	LevelInfo  Level = 2
	LevelDebug Level = 3
	// LevelDebug2 is for messages that are only useful when debugging the
	// engine itself, LevelSpew for raw wire traffic.
	LevelDebug2 Level = 4
	LevelSpew   Level = 5
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelDebug2:
		return "debug2"
	case LevelSpew:
		return "spew"
	}
	return fmt.Sprintf("level%d", int(l))
}

// Callback receives a level and a finished, formatted message. The return
// value is passed back to the emitting code and is otherwise uninterpreted.
type Callback func(level Level, message string) int

var sink Callback

// SetCallback installs cb as the process-wide sink. Passing nil uninstalls
// the current sink. Must not be called while engine operations are in
// flight.
func SetCallback(cb Callback) {
	sink = cb
}

// Emit renders format/args and hands the result to the installed sink.
// Returns 0 when no sink is installed.
func Emit(level Level, format string, args ...interface{}) int {
	if sink == nil {
		return 0
	}
	return sink(level, fmt.Sprintf(format, args...))
}

func Gerr(format string, args ...interface{}) int {
	return Emit(LevelError, format, args...)
}

func Gwarn(format string, args ...interface{}) int {
	return Emit(LevelWarn, format, args...)
}

func Ginfo(format string, args ...interface{}) int {
	return Emit(LevelInfo, format, args...)
}

func Gdbg(format string, args ...interface{}) int {
	return Emit(LevelDebug, format, args...)
}

func Gspew(format string, args ...interface{}) int {
	return Emit(LevelSpew, format, args...)
}
