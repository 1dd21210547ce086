/*
 * Pandos - Nucleus: exception dispatch and system calls 1-8.
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
	"github.com/minhdang26403/pandos/kernel/pcb"
	"github.com/minhdang26403/pandos/machine"
)

// Entry point for every non-refill exception. The faulting state sits
// in excState. Interrupts never arrive here; they are delivered at
// tick points.
func (k *Kernel) generalHandler() {
	code := defs.CauseExcCode(k.excState.Cause)
	switch {
	case code == defs.ExcSyscall:
		k.syscallHandler()
	case code >= defs.ExcTLBMod && code <= defs.ExcTLBStore:
		k.passUpOrDie(defs.PgFaultExcept)
	default:
		k.passUpOrDie(defs.GeneralExcept)
	}
}

// Numeric SYSCALL dispatch. Privileged calls from user mode are
// rewritten as reserved-instruction faults; calls above 8 are the
// support level's business. Kernel-mode processes reach the calls
// whose arguments fit in registers; everything else uses the typed
// wrappers on CPU and never lands here.
func (k *Kernel) syscallHandler() {
	c := k.excCPU
	num := int(k.excState.Regs[defs.RegA0])

	if num >= defs.SysCreateProcess && num <= defs.SysGetSupportPtr &&
		k.excState.Status&defs.StatusKUc != 0 {
		k.excState.Cause = defs.CauseExc(defs.ExcReserved)
		k.passUpOrDie(defs.GeneralExcept)
		return
	}
	if num < defs.SysCreateProcess || num > defs.SysGetSupportPtr {
		k.passUpOrDie(defs.GeneralExcept)
		return
	}

	switch num {
	case defs.SysTerminateProcess:
		k.terminateCurrent()

	case defs.SysWaitIO:
		line := int(k.excState.Regs[defs.RegA1])
		dev := int(k.excState.Regs[defs.RegA2])
		recv := k.excState.Regs[defs.RegA3] != 0
		idx := DevSemIndex(line, dev, recv)
		sem := &k.DeviceSem[idx]
		*sem--
		if *sem < 0 {
			k.softBlockCnt++
			k.blockCurrent(sem, &k.excState)
		} else {
			k.excState.Regs[defs.RegV0] = k.savedDevStatus[idx]
			c.t.live = k.excState
		}

	case defs.SysGetCPUTime:
		k.excState.Regs[defs.RegV0] = uint32(k.current.Time + (k.m.Now() - k.quantumStart))
		c.t.live = k.excState

	case defs.SysWaitClock:
		k.waitClock(&k.excState)

	default:
		// Argument-passing convention only reaches these through
		// the typed wrappers.
		k.terminateCurrent()
	}
}

// Pass the exception in excState up to the support level, or
// terminate the process and its progeny if it has none. On return
// from the support handler the process resumes from the handler's
// updated exception state.
func (k *Kernel) passUpOrDie(index int) {
	c := k.excCPU
	sup := k.current.Support
	if sup == nil {
		k.terminateCurrent()
	}
	sup.ExceptState[index] = k.excState
	ctx := &sup.ExceptContext[index]
	c.t.live.Status = popStatus(ctx.Status)
	c.t.live.Regs[defs.RegSP] = ctx.StackPtr
	ctx.Handler()
	c.t.live = sup.ExceptState[index]
	c.t.live.Status = popStatus(c.t.live.Status)
}

// TLB refill: load the missing translation from the faulting
// process's page table (or the global one for the shared segment)
// and let the access retry. The entry is loaded whether or not it is
// valid; an invalid entry then faults as TLB-invalid and reaches the
// pager.
func (k *Kernel) refillHandler() {
	vpn := k.excState.EntryHi >> defs.VPNShift
	var pte defs.PTE
	switch {
	case defs.IsSharedVPN(vpn):
		if k.GlobalPgTbl == nil || vpn >= defs.VPNShareBase+defs.KUSegSharePages {
			k.addressError()
			return
		}
		pte = k.GlobalPgTbl[vpn-defs.VPNShareBase]
	case vpn == defs.VPNStack:
		pte = k.privatePTE(defs.StackPage)
	case vpn >= defs.VPNTextBase && vpn < defs.VPNTextBase+defs.StackPage:
		pte = k.privatePTE(int(vpn - defs.VPNTextBase))
	default:
		k.addressError()
		return
	}
	k.m.TLB.WriteRandom(machine.TLBEntry{EntryHi: pte.EntryHi, EntryLo: pte.EntryLo})
}

func (k *Kernel) privatePTE(index int) defs.PTE {
	sup := k.current.Support
	if sup == nil {
		k.addressError()
	}
	return sup.PrivatePgTbl[index]
}

func (k *Kernel) addressError() {
	k.excState.Cause = defs.CauseExc(defs.ExcAddrLoad)
	k.passUpOrDie(defs.GeneralExcept)
}

// Block the current process on sem with st as its saved state, give
// up the CPU, and return once it is dispatched again. CPU time
// accrues up to this point.
func (k *Kernel) blockCurrent(sem *int, st *defs.State) {
	p := k.current
	t := k.threads[p]
	p.State = *st
	p.Time += k.m.Now() - k.quantumStart
	k.asl.InsertBlocked(sem, p)
	k.current = nil
	k.schedule()
	t.waitForDispatch(k)
}

func (k *Kernel) waitClock(st *defs.State) {
	sem := &k.DeviceSem[defs.PseudoClock]
	*sem--
	k.softBlockCnt++
	k.blockCurrent(sem, st)
}

// V: wake the first waiter if any. Returns the process made ready.
func (k *Kernel) verhogen(sem *int) *pcb.PCB {
	*sem++
	if *sem <= 0 {
		if p := k.asl.RemoveBlocked(sem); p != nil {
			k.ready.Insert(p)
			return p
		}
	}
	return nil
}

func (k *Kernel) createProcess(st *defs.State, sup *defs.Support, prog Program) int {
	p := k.pool.Alloc()
	if p == nil {
		return -1
	}
	p.State = *st
	p.Support = sup
	k.procCnt++
	k.current.InsertChild(p)
	k.addThread(p, prog)
	k.ready.Insert(p)
	return 0
}

// Terminate the current process and everything below it in the
// process tree, then hand the CPU away. Unwinds the caller's
// goroutine and never returns.
func (k *Kernel) terminateCurrent() {
	p := k.current
	p.OutChild()
	k.reap(p)
	k.current = nil
	k.schedule()
	panic(errKilled)
}

// Remove one subtree from the system. A process blocked on a device
// semaphore was soft-blocked and the count drops; one blocked on a
// plain semaphore dies mid-P, so the stolen decrement is given back.
func (k *Kernel) reap(p *pcb.PCB) {
	for !p.EmptyChild() {
		k.reap(p.RemoveChild())
	}
	if p != k.current && k.ready.Out(p) == nil && p.Sem != nil {
		sem := p.Sem
		k.asl.OutBlocked(p)
		if k.isDeviceSem(sem) {
			k.softBlockCnt--
		} else {
			*sem++
		}
	}
	if t := k.threads[p]; t != nil {
		t.killed = true
		t.cond.Broadcast()
		delete(k.threads, p)
	}
	k.procCnt--
	k.pool.Free(p)
}
