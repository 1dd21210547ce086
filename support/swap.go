/*
 * Pandos - Support level: swap pool and the pager.
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
)

// One swap pool frame. A nil sup with occupied set means the frame
// holds a page of the shared segment.
type swapFrame struct {
	occupied bool
	vpn      uint32
	sup      *defs.Support
}

type swapPool struct {
	mutex  int
	frames [defs.SwapPoolSize]swapFrame
	hand   int // next eviction victim, FIFO
}

// Frame for an incoming page: the first unoccupied frame when one
// exists, the FIFO hand otherwise. The hand only advances when a live
// page is about to be pushed out.
func (s *swapPool) pickFrame() int {
	for i := range s.frames {
		if !s.frames[i].occupied {
			return i
		}
	}
	frame := s.hand
	s.hand = (s.hand + 1) % defs.SwapPoolSize
	return frame
}

func (l *Layer) initSwap() {
	l.swap.mutex = 1
	for i := range l.swap.frames {
		l.swap.frames[i] = swapFrame{}
	}
	l.swap.hand = 0
}

// Physical address of swap frame i.
func swapFrameAddr(i int) uint32 {
	return defs.SwapPoolBase + uint32(i)*defs.PageSize
}

// Backing store sector for a virtual page. Private pages of each
// U-proc occupy a 32-sector run; the shared segment follows them.
func backingSector(asid int, vpn uint32) int {
	if defs.IsSharedVPN(vpn) {
		return defs.KUSegBaseSector + int(vpn-defs.VPNShareBase)
	}
	return (asid-1)*defs.MaxPages + pageIndex(vpn)
}

// Slot of a private VPN in the page table. Returns -1 for addresses
// no U-proc page maps.
func pageIndex(vpn uint32) int {
	if vpn == defs.VPNStack {
		return defs.StackPage
	}
	if vpn >= defs.VPNTextBase && vpn < defs.VPNTextBase+defs.StackPage {
		return int(vpn - defs.VPNTextBase)
	}
	return -1
}

// Page table entry behind a faulting VPN: the global table for the
// shared segment, the owner's private table otherwise.
func (l *Layer) pteFor(sup *defs.Support, vpn uint32) *defs.PTE {
	if defs.IsSharedVPN(vpn) {
		if vpn >= defs.VPNShareBase+defs.KUSegSharePages {
			return nil
		}
		return &l.globalPgTbl[vpn-defs.VPNShareBase]
	}
	idx := pageIndex(vpn)
	if idx < 0 {
		return nil
	}
	return &sup.PrivatePgTbl[idx]
}

// The pager. Runs as the page-fault handler of every U-proc, on the
// faulting process itself.
func (l *Layer) pager(sup *defs.Support) {
	c := l.kern.CurrentCPU()
	exc := &sup.ExceptState[defs.PgFaultExcept]

	// A write to a clean page is a program trap, not a fault the
	// pager can fix: U-proc pages are installed writable.
	if defs.CauseExcCode(exc.Cause) == defs.ExcTLBMod {
		l.trap(c, sup)
	}

	c.Passeren(&l.swap.mutex)

	vpn := exc.EntryHi >> defs.VPNShift
	pte := l.pteFor(sup, vpn)
	if pte == nil {
		l.trapWith(c, sup, &l.swap.mutex)
	}

	// Another U-proc may have brought a shared page in while this
	// one waited for the mutex.
	if defs.IsSharedVPN(vpn) && pte.EntryLo&defs.PTEValid != 0 {
		c.Verhogen(&l.swap.mutex)
		return
	}

	frame := l.swap.pickFrame()
	victim := &l.swap.frames[frame]

	if victim.occupied {
		if !l.evict(c, sup, victim, frame) {
			return // trapWith already unwound
		}
	}

	// Page the missing page in from the backing store.
	asid := sup.ASID
	if defs.IsSharedVPN(vpn) {
		asid = 0
	}
	status := l.diskOperation(c, defs.BackingDisk, backingSector(asid, vpn),
		swapFrameAddr(frame), false)
	if status != defs.DevStatusReady {
		c.Verhogen(&l.swap.mutex)
		l.trap(c, sup)
	}

	victim.occupied = true
	victim.vpn = vpn
	victim.sup = sup
	if defs.IsSharedVPN(vpn) {
		victim.sup = nil
	}

	// Publish the translation: page table and TLB change together,
	// with interrupts off.
	st := c.GetStatus()
	c.SetStatus(st &^ defs.StatusIEc)
	pte.EntryLo = swapFrameAddr(frame) | defs.PTEValid | defs.PTEDirty
	if defs.IsSharedVPN(vpn) {
		pte.EntryLo |= defs.PTEGlobal
	}
	c.TLBUpdate(*pte)
	c.SetStatus(st)

	c.Verhogen(&l.swap.mutex)
}

// Push an occupied frame's page out: invalidate its translation and
// write it to the backing store. Reports false if the victim write
// failed and the faulter was terminated.
func (l *Layer) evict(c *nucleus.CPU, sup *defs.Support, victim *swapFrame, frame int) bool {
	vpte := l.pteFor(victim.sup, victim.vpn)

	st := c.GetStatus()
	c.SetStatus(st &^ defs.StatusIEc)
	vpte.EntryLo &^= defs.PTEValid
	c.TLBClear()
	c.SetStatus(st)

	vasid := 0
	if victim.sup != nil {
		vasid = victim.sup.ASID
	}
	status := l.diskOperation(c, defs.BackingDisk, backingSector(vasid, victim.vpn),
		swapFrameAddr(frame), true)
	if status != defs.DevStatusReady {
		c.Verhogen(&l.swap.mutex)
		l.trap(c, sup)
		return false
	}
	victim.occupied = false
	return true
}

// Free every frame a dying U-proc owns. Shared frames stay: they
// belong to no one process.
func (l *Layer) releaseFrames(c *nucleus.CPU, asid int) {
	c.Passeren(&l.swap.mutex)
	st := c.GetStatus()
	c.SetStatus(st &^ defs.StatusIEc)
	for i := range l.swap.frames {
		f := &l.swap.frames[i]
		if f.occupied && f.sup != nil && f.sup.ASID == asid {
			f.occupied = false
		}
	}
	c.TLBClear()
	c.SetStatus(st)
	c.Verhogen(&l.swap.mutex)
}
