/*
 * Pandos - Nucleus: interrupt delivery and service.
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
	"github.com/minhdang26403/pandos/defs"
	"github.com/minhdang26403/pandos/machine/device"
)

// Deliver pending interrupts to the running process. Called at every
// tick point. Lowest line first: an expired time slice preempts
// before device completions are serviced; those are picked up at the
// next process's first tick or in the idle loop.
func (k *Kernel) checkInterrupts(c *CPU) {
	live := &c.t.live
	if live.Status&defs.StatusIEc == 0 {
		return
	}
	ip := k.m.PendingLines() & live.Status & defs.StatusIMAll
	if live.Status&defs.StatusTE == 0 {
		ip &^= defs.StatusIM(defs.LinePLT)
	}
	if ip == 0 {
		return
	}
	if ip&defs.StatusIM(defs.LinePLT) != 0 {
		k.preempt(c)
		return
	}
	k.serviceInterrupts(ip)
}

// Time slice expired: save the running process at the back of the
// ready queue and dispatch the next one.
func (k *Kernel) preempt(c *CPU) {
	p := k.current
	p.State = c.t.live
	p.Time += k.m.Now() - k.quantumStart
	k.ready.Insert(p)
	k.current = nil
	k.schedule()
	c.t.waitForDispatch(k)
}

// Service the interval timer and every interrupting device. Control
// stays with the caller; device completions only make waiters ready.
func (k *Kernel) serviceInterrupts(ip uint32) {
	if ip&defs.StatusIM(defs.LineInterval) != 0 {
		k.intervalInterrupt()
	}
	for line := defs.LineDisk; line <= defs.LineTerminal; line++ {
		if ip&defs.StatusIM(line) == 0 {
			continue
		}
		devs := k.m.PendingDevs(line)
		for dev := 0; dev < defs.DevPerLine; dev++ {
			if devs&(1<<dev) != 0 {
				k.deviceInterrupt(line, dev)
			}
		}
	}
}

// The pseudo-clock ticked: reload it, release every waiter and reset
// the semaphore so the count never drifts across epochs.
func (k *Kernel) intervalInterrupt() {
	k.m.LoadInterval(defs.TickInterval)
	sem := &k.DeviceSem[defs.PseudoClock]
	for {
		p := k.asl.RemoveBlocked(sem)
		if p == nil {
			break
		}
		k.softBlockCnt--
		k.ready.Insert(p)
	}
	*sem = 0
}

// One device finished. Terminals carry two sub-devices behind the
// slot; the transmitter is served first.
func (k *Kernel) deviceInterrupt(line int, dev int) {
	if line == defs.LineTerminal {
		ts := k.m.DevRead(line, dev, device.RegTransStatus)
		if sideDone(ts) {
			k.ackDevice(line, dev, device.RegTransCommand, ts, DevSemIndex(line, dev, false))
		}
		rs := k.m.DevRead(line, dev, device.RegRecvStatus)
		if sideDone(rs) {
			k.ackDevice(line, dev, device.RegRecvCommand, rs, DevSemIndex(line, dev, true))
		}
		return
	}
	st := k.m.DevRead(line, dev, device.RegStatus)
	k.ackDevice(line, dev, device.RegCommand, st, DevSemIndex(line, dev, false))
}

// A terminal side has a completion to report when its status byte is
// neither ready nor busy.
func sideDone(status uint32) bool {
	code := status & defs.TermStatusMask
	return code != defs.DevStatusReady && code != defs.DevStatusBusy
}

// Acknowledge a completion and V the device semaphore. The waiter, if
// there is one, receives the completion status; otherwise it is saved
// for the SYS5 that has not arrived yet.
func (k *Kernel) ackDevice(line int, dev int, cmdReg int, status uint32, idx int) {
	k.m.DevWrite(line, dev, cmdReg, defs.DevCmdAck)
	k.savedDevStatus[idx] = status
	sem := &k.DeviceSem[idx]
	*sem++
	if *sem <= 0 {
		if p := k.asl.RemoveBlocked(sem); p != nil {
			p.State.Regs[defs.RegV0] = status
			k.softBlockCnt--
			k.ready.Insert(p)
		}
	}
}
