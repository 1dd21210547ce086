/*
 * Pandos - Nucleus: per-process CPU handle.
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
	"github.com/minhdang26403/pandos/machine"
)

// CPU is what a process program touches: translated memory access,
// SYSCALL, device registers, the status word and the TLB. Every
// operation costs a microsecond of virtual time and is a point where
// pending interrupts are delivered.
type CPU struct {
	k *Kernel
	t *thread
}

func (c *CPU) tick(cost uint64) {
	c.k.m.Tick(cost)
	c.k.checkInterrupts(c)
}

// Burn n microseconds of computation.
func (c *CPU) Compute(n uint64) {
	c.tick(n)
}

// Current time of day in microseconds.
func (c *CPU) Now() uint64 {
	return c.k.m.Now()
}

func (c *CPU) GetStatus() uint32 {
	return c.t.live.Status
}

// Replace the status word. Re-enabling interrupts delivers anything
// that became pending while masked.
func (c *CPU) SetStatus(s uint32) {
	c.t.live.Status = s
	c.k.checkInterrupts(c)
}

// ASID field of the live EntryHi.
func (c *CPU) ASID() int {
	return int(c.t.live.EntryHi & defs.ASIDMask >> defs.ASIDShift)
}

// Exception staging. The live state, with the cause and faulting
// EntryHi filled in, becomes the pushed exception state; the
// installed handler decides what happens next. Nested exceptions
// stack through the saved copies.

func (c *CPU) raise(cause uint32) {
	c.raiseAt(cause, c.t.live.EntryHi)
}

func (c *CPU) raiseAt(cause uint32, entryHi uint32) {
	k := c.k
	savedState, savedCPU := k.excState, k.excCPU
	k.excState = c.t.live
	k.excState.Cause = cause
	k.excState.EntryHi = entryHi
	k.excCPU = c
	k.m.PassUp.Exception.Handler()
	k.excState, k.excCPU = savedState, savedCPU
}

func (c *CPU) refillFault(entryHi uint32) {
	k := c.k
	savedState, savedCPU := k.excState, k.excCPU
	k.excState = c.t.live
	k.excState.EntryHi = entryHi
	k.excCPU = c
	k.m.PassUp.TLBRefill.Handler()
	k.excState, k.excCPU = savedState, savedCPU
}

// Map a virtual address to a physical one. Kernel-mode addresses
// below KUSEG map identically; KUSEG goes through the TLB regardless
// of mode, so support code reaches user buffers with the faulting
// process's ASID. Misses refill and retry; invalid or write-protected
// entries fault to the pager and retry after it returns.
func (c *CPU) translate(vaddr uint32, write bool) uint32 {
	live := &c.t.live
	if vaddr < defs.KUSeg {
		if live.Status&defs.StatusKUc != 0 {
			cause := defs.ExcAddrLoad
			if write {
				cause = defs.ExcAddrStore
			}
			c.raise(defs.CauseExc(cause))
		}
		return vaddr
	}
	entryHi := vaddr&defs.VPNMask | live.EntryHi&defs.ASIDMask
	for {
		idx, ok := c.k.m.TLB.Probe(entryHi)
		if !ok {
			c.refillFault(entryHi)
			continue
		}
		e := c.k.m.TLB.Entry(idx)
		if e.EntryLo&defs.PTEValid == 0 {
			cause := defs.ExcTLBLoad
			if write {
				cause = defs.ExcTLBStore
			}
			c.raiseAt(defs.CauseExc(cause), entryHi)
			continue
		}
		if write && e.EntryLo&defs.PTEDirty == 0 {
			c.raiseAt(defs.CauseExc(defs.ExcTLBMod), entryHi)
			continue
		}
		return e.EntryLo&defs.PFNMask | vaddr&^defs.VPNMask
	}
}

func (c *CPU) ReadWord(vaddr uint32) uint32 {
	c.tick(1)
	phys := c.translate(vaddr, false)
	v, ok := c.k.m.ReadPhys(phys)
	if !ok {
		c.raise(defs.CauseExc(defs.ExcBusData))
	}
	return v
}

func (c *CPU) WriteWord(vaddr uint32, value uint32) {
	c.tick(1)
	phys := c.translate(vaddr, true)
	if !c.k.m.WritePhys(phys, value) {
		c.raise(defs.CauseExc(defs.ExcBusData))
	}
}

func (c *CPU) ReadByte(vaddr uint32) byte {
	c.tick(1)
	phys := c.translate(vaddr, false)
	v, ok := c.k.m.ReadPhysByte(phys)
	if !ok {
		c.raise(defs.CauseExc(defs.ExcBusData))
	}
	return v
}

func (c *CPU) WriteByte(vaddr uint32, value byte) {
	c.tick(1)
	phys := c.translate(vaddr, true)
	if !c.k.m.WritePhysByte(phys, value) {
		c.raise(defs.CauseExc(defs.ExcBusData))
	}
}

// Device register access, at tick cost like any other bus cycle.
func (c *CPU) DevRead(line int, dev int, reg int) uint32 {
	c.tick(1)
	return c.k.m.DevRead(line, dev, reg)
}

func (c *CPU) DevWrite(line int, dev int, reg int, value uint32) {
	c.tick(1)
	c.k.m.DevWrite(line, dev, reg, value)
}

// Install one translation, replacing a matching entry if present so
// the TLB and page tables never disagree.
func (c *CPU) TLBUpdate(pte defs.PTE) {
	entry := machine.TLBEntry{EntryHi: pte.EntryHi, EntryLo: pte.EntryLo}
	if idx, ok := c.k.m.TLB.Probe(pte.EntryHi); ok {
		c.k.m.TLB.WriteIndexed(idx, entry)
		return
	}
	c.k.m.TLB.WriteRandom(entry)
}

func (c *CPU) TLBClear() {
	c.k.m.TLB.Clear()
}

// Numeric SYSCALL: the user-mode system call interface. Privileged
// numbers trap from user mode; numbers above 8 pass up to the
// support level.
func (c *CPU) Syscall(num uint32, a1 uint32, a2 uint32, a3 uint32) uint32 {
	c.tick(1)
	live := &c.t.live
	live.Regs[defs.RegA0] = num
	live.Regs[defs.RegA1] = a1
	live.Regs[defs.RegA2] = a2
	live.Regs[defs.RegA3] = a3
	live.PC += 4
	c.raise(defs.CauseExc(defs.ExcSyscall))
	return c.t.live.Regs[defs.RegV0]
}

// Typed kernel-mode system call wrappers. These are the SYSCALL
// interface for code already in kernel mode, where the arguments do
// not fit the register convention.

// SYS1: spawn a child process.
func (c *CPU) CreateProcess(st *defs.State, sup *defs.Support, prog Program) int {
	c.tick(1)
	return c.k.createProcess(st, sup, prog)
}

// SYS2: terminate this process and its progeny. Never returns.
func (c *CPU) Terminate() {
	c.tick(1)
	c.k.terminateCurrent()
}

// SYS3.
func (c *CPU) Passeren(sem *int) {
	c.tick(1)
	*sem--
	if *sem < 0 {
		c.k.blockCurrent(sem, &c.t.live)
	}
}

// SYS4.
func (c *CPU) Verhogen(sem *int) {
	c.tick(1)
	c.k.verhogen(sem)
}

// SYS5: P the device semaphore and collect the completion status.
func (c *CPU) WaitIO(line int, dev int, recv bool) uint32 {
	c.tick(1)
	k := c.k
	idx := DevSemIndex(line, dev, recv)
	sem := &k.DeviceSem[idx]
	*sem--
	if *sem < 0 {
		k.softBlockCnt++
		k.blockCurrent(sem, &c.t.live)
		return c.t.live.Regs[defs.RegV0]
	}
	return k.savedDevStatus[idx]
}

// SYS6: CPU time consumed by this process.
func (c *CPU) GetCPUTime() uint32 {
	c.tick(1)
	return uint32(c.k.current.Time + (c.k.m.Now() - c.k.quantumStart))
}

// SYS7: block until the next pseudo-clock tick.
func (c *CPU) WaitClock() {
	c.tick(1)
	c.k.waitClock(&c.t.live)
}

// SYS8.
func (c *CPU) SupportPtr() *defs.Support {
	c.tick(1)
	return c.k.current.Support
}

// Stop the whole machine. Never returns.
func (c *CPU) Halt() {
	c.k.halt(HaltOK)
	panic(errKilled)
}
