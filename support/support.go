/*
 * Pandos - Support level: layer state and support structure pool.
 *
 * Copyright 2025, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package support

import (
	"github.com/minhdang26403/pandos/defs"
	"github.com/minhdang26403/pandos/kernel/nucleus"
	"github.com/minhdang26403/pandos/machine"
)

// Layer carries everything the support level owns: the swap pool, the
// per-device mutexes, the support structure pool, the delay and
// logical-semaphore facilities and the master semaphore the
// instantiator joins on.
type Layer struct {
	kern *nucleus.Kernel
	m    *machine.Machine

	uprocs int
	progs  []nucleus.Program

	masterSem int
	devMutex  [defs.NumDevices]int

	swap swapPool

	globalPgTbl [defs.KUSegSharePages]defs.PTE

	supStorage [defs.MaxUProcs]defs.Support
	supFree    []*defs.Support

	adl  delayList
	alsl logicalSemList
}

// Build the support level for n U-procs running the given programs
// (one per ASID, reused cyclically if fewer are supplied).
func New(k *nucleus.Kernel, n int, progs []nucleus.Program) *Layer {
	if n > defs.MaxUProcs {
		n = defs.MaxUProcs
	}
	return &Layer{
		kern:   k,
		m:      k.Machine(),
		uprocs: n,
		progs:  progs,
	}
}

func (l *Layer) supportAlloc() *defs.Support {
	if len(l.supFree) == 0 {
		return nil
	}
	sup := l.supFree[len(l.supFree)-1]
	l.supFree = l.supFree[:len(l.supFree)-1]
	*sup = defs.Support{}
	return sup
}

func (l *Layer) supportFree(sup *defs.Support) {
	l.supFree = append(l.supFree, sup)
}

// SYS9 and every program trap end here: give back the swap frames,
// signal the instantiator, recycle the support structure and die.
func (l *Layer) terminate(c *nucleus.CPU, sup *defs.Support) {
	l.releaseFrames(c, sup.ASID)
	c.Verhogen(&l.masterSem)
	l.supportFree(sup)
	c.Terminate()
}

// A program trap is fatal to the offending U-proc.
func (l *Layer) trap(c *nucleus.CPU, sup *defs.Support) {
	l.terminate(c, sup)
}

// Same, for faults taken while holding a mutex the dying process must
// not carry to its grave.
func (l *Layer) trapWith(c *nucleus.CPU, sup *defs.Support, held *int) {
	c.Verhogen(held)
	l.terminate(c, sup)
}
