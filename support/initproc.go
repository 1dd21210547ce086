/*
 * Pandos - Support level: the instantiator.
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
	"log/slog"

	"github.com/minhdang26403/pandos/defs"
	"github.com/minhdang26403/pandos/kernel/nucleus"
	"github.com/minhdang26403/pandos/machine/device"
)

// The instantiator: first process on the machine. Builds the support
// level, populates the backing store from the flash images, launches
// the delay daemon and the U-procs, joins on the master semaphore and
// stops the machine.
func (l *Layer) Instantiator(c *nucleus.CPU) {
	l.initSwap()
	l.initDelay()
	l.initLogicalSems()

	for i := range l.devMutex {
		l.devMutex[i] = 1
	}

	l.supFree = l.supFree[:0]
	for i := range l.supStorage {
		l.supFree = append(l.supFree, &l.supStorage[i])
	}

	// Shared segment translations: global, writable, not yet present.
	for i := range l.globalPgTbl {
		l.globalPgTbl[i] = defs.PTE{
			EntryHi: (defs.VPNShareBase + uint32(i)) << defs.VPNShift,
			EntryLo: defs.PTEGlobal | defs.PTEDirty,
		}
	}
	l.kern.GlobalPgTbl = &l.globalPgTbl

	l.initBackingStore(c)

	// Delay daemon: kernel mode, ASID 0, a stack page of its own below
	// the U-proc handler stacks.
	daemon := &defs.State{}
	daemon.Status = defs.StatusIEp | defs.StatusIMAll | defs.StatusTE
	daemon.Regs[defs.RegSP] = l.m.RAMTop() - uint32(2*defs.MaxUProcs+1)*defs.PageSize
	if c.CreateProcess(daemon, nil, l.delayDaemon) != 0 {
		slog.Error("support: cannot create delay daemon")
		c.Terminate()
	}

	for asid := 1; asid <= l.uprocs; asid++ {
		if !l.launchUProc(c, asid) {
			slog.Error("support: cannot launch U-proc", "asid", asid)
			c.Terminate()
		}
	}

	for i := 0; i < l.uprocs; i++ {
		c.Passeren(&l.masterSem)
	}
	slog.Debug("support: all U-procs done")
	c.Halt()
}

// Copy each U-proc's image from its flash device to its run of
// backing store sectors on disk zero, using the flash DMA buffer as
// the staging frame. The image's header gives its size.
func (l *Layer) initBackingStore(c *nucleus.CPU) {
	for asid := 1; asid <= l.uprocs; asid++ {
		devNo := asid - 1
		fl, ok := l.m.DeviceAt(defs.LineFlash, devNo).(*device.Flash)
		if !ok {
			continue
		}
		text := fl.HeaderWord(defs.TextSizeOffset)
		data := fl.HeaderWord(defs.DataSizeOffset)
		pages := int((text + data + defs.PageSize - 1) / defs.PageSize)
		if pages > defs.StackPage {
			pages = defs.StackPage
		}
		dma := flashDMAAddr(devNo)
		for blk := 0; blk < pages; blk++ {
			if l.flashOperation(c, devNo, blk, dma, false) != defs.DevStatusReady {
				slog.Error("support: flash read failed", "asid", asid, "block", blk)
				c.Terminate()
			}
			sector := (asid-1)*defs.MaxPages + blk
			if l.diskOperation(c, defs.BackingDisk, sector, dma, true) != defs.DevStatusReady {
				slog.Error("support: backing store write failed", "asid", asid, "sector", sector)
				c.Terminate()
			}
		}
	}
}

// Create one U-proc: fresh support structure, exception contexts
// bound to the pager and the general handler, an all-invalid private
// page table and the standard entry state.
func (l *Layer) launchUProc(c *nucleus.CPU, asid int) bool {
	sup := l.supportAlloc()
	if sup == nil {
		return false
	}
	sup.ASID = asid

	ramtop := l.m.RAMTop()
	stackTLB := ramtop - uint32(2*asid)*defs.PageSize
	stackGen := stackTLB + defs.PageSize

	handlerStatus := uint32(defs.StatusIEp | defs.StatusIMAll | defs.StatusTE)
	sup.ExceptContext[defs.PgFaultExcept] = defs.Context{
		Handler:  func() { l.pager(sup) },
		Status:   handlerStatus,
		StackPtr: stackTLB,
	}
	sup.ExceptContext[defs.GeneralExcept] = defs.Context{
		Handler:  func() { l.generalExceptionHandler(sup) },
		Status:   handlerStatus,
		StackPtr: stackGen,
	}

	for i := range sup.PrivatePgTbl {
		vpn := defs.VPNTextBase + uint32(i)
		if i == defs.StackPage {
			vpn = defs.VPNStack
		}
		sup.PrivatePgTbl[i] = defs.PTE{
			EntryHi: vpn<<defs.VPNShift | uint32(asid)<<defs.ASIDShift,
			EntryLo: defs.PTEDirty,
		}
	}

	st := &defs.State{}
	st.EntryHi = uint32(asid) << defs.ASIDShift
	st.PC = defs.UProcPC
	st.Regs[defs.RegT9] = defs.UProcPC
	st.Regs[defs.RegSP] = defs.UProcSP
	st.Status = defs.StatusKUp | defs.StatusIEp | defs.StatusIMAll | defs.StatusTE

	prog := l.progs[(asid-1)%len(l.progs)]
	return c.CreateProcess(st, sup, prog) == 0
}
