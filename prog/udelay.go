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
	"time"

	"github.com/golang/glog"
)

// Bit-banging drivers need delays well below what timer sleeps can hit
// reliably, so short waits spin. loopsPerUsec is measured once at init.
var loopsPerUsec uint64 = 1000

// Busy-wait spinning shorter than this; sleep for anything longer.
const spinThreshold = 100 // microseconds

//go:noinline
func spin(n uint64) {
	for i := uint64(0); i < n; i++ {
	}
}

// CalibrateDelay measures the spin rate used by Udelay.
func CalibrateDelay() {
	const probeLoops = 1 << 22
	start := time.Now()
	spin(probeLoops)
	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Nanosecond
	}
	lpu := probeLoops * uint64(time.Microsecond) / uint64(elapsed)
	if lpu == 0 {
		lpu = 1
	}
	loopsPerUsec = lpu
	glog.V(1).Infof("delay calibration: %d loops/us (probe took %s)", loopsPerUsec, elapsed)
}

// Udelay waits for usecs microseconds.
func Udelay(usecs uint) {
	if usecs > spinThreshold {
		time.Sleep(time.Duration(usecs) * time.Microsecond)
		return
	}
	spin(loopsPerUsec * uint64(usecs))
}
