/*
 * Pandos - Nucleus: round-robin scheduler.
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

package nucleus

import (
	"log/slog"

	"github.com/minhdang26403/pandos/defs"
	"github.com/minhdang26403/pandos/kernel/pcb"
)

// Dispatch the next ready process, or idle until a device makes one
// ready. The caller either parks afterwards (waitForDispatch), is the
// dispatched process itself, or unwinds if the machine halted.
//
// Triage when the ready queue is empty: no processes at all means a
// normal halt; soft-blocked processes mean the machine waits for I/O;
// otherwise nothing can ever run again and the machine stops with a
// deadlock status.
func (k *Kernel) schedule() {
	for {
		if k.halted {
			return
		}
		if p := k.ready.Remove(); p != nil {
			k.dispatch(p)
			return
		}
		if k.procCnt == 0 {
			k.halt(HaltOK)
			return
		}
		if k.softBlockCnt == 0 {
			slog.Error("nucleus: deadlock", "procs", k.procCnt)
			k.halt(HaltDeadlock)
			return
		}
		k.idle()
	}
}

// Hand the CPU to p for a fresh time slice.
func (k *Kernel) dispatch(p *pcb.PCB) {
	k.current = p
	k.quantumStart = k.m.Now()
	k.m.SetPLT(defs.Quantum)
	t := k.threads[p]
	if !t.started {
		t.started = true
		k.spawn(t)
		return
	}
	t.cond.Broadcast()
}

// Nothing ready but I/O outstanding: step the clock to the next
// device or timer event and service whatever interrupts it raised.
// The interval timer is always armed, so there is always a next
// deadline.
func (k *Kernel) idle() {
	k.m.StopPLT()
	d, ok := k.m.NextDeadline()
	if !ok {
		slog.Error("nucleus: wait with no pending events")
		k.halt(HaltDeadlock)
		return
	}
	k.m.AdvanceTo(d)
	k.serviceInterrupts(k.m.PendingLines())
}
