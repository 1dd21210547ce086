/*
 * Pandos - Swap pool tests.
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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhdang26403/pandos/defs"
	"github.com/minhdang26403/pandos/kernel/nucleus"
	"github.com/minhdang26403/pandos/machine"
	"github.com/minhdang26403/pandos/machine/device"
)

func TestPickFramePrefersUnoccupied(t *testing.T) {
	l := &Layer{}
	l.initSwap()
	for i := range l.swap.frames {
		l.swap.frames[i].occupied = true
	}
	l.swap.hand = 3

	l.swap.frames[7].occupied = false
	assert.Equal(t, 7, l.swap.pickFrame())
	// A free frame must not cost an eviction slot.
	assert.Equal(t, 3, l.swap.hand)
}

func TestPickFrameFIFOWhenFull(t *testing.T) {
	l := &Layer{}
	l.initSwap()
	for i := range l.swap.frames {
		l.swap.frames[i].occupied = true
	}
	for i := 0; i < 2*defs.SwapPoolSize; i++ {
		assert.Equal(t, i%defs.SwapPoolSize, l.swap.pickFrame())
	}
}

// Every occupied frame's page table entry must be valid and point
// back at the frame, and every valid entry of a live U-proc must map
// an occupied frame holding that page.
func checkSwapConsistency(t *testing.T, l *Layer, live ...*defs.Support) {
	t.Helper()
	for i := range l.swap.frames {
		f := &l.swap.frames[i]
		if !f.occupied {
			continue
		}
		pte := l.pteFor(f.sup, f.vpn)
		require.NotNil(t, pte, "frame %d has no page table entry", i)
		assert.NotZero(t, pte.EntryLo&defs.PTEValid, "frame %d owner marked invalid", i)
		assert.Equal(t, swapFrameAddr(i), pte.EntryLo&^uint32(defs.PageSize-1),
			"frame %d owner points elsewhere", i)
	}
	for _, sup := range live {
		for j := range sup.PrivatePgTbl {
			pte := &sup.PrivatePgTbl[j]
			if pte.EntryLo&defs.PTEValid == 0 {
				continue
			}
			addr := pte.EntryLo &^ uint32(defs.PageSize-1)
			fi := int(addr-defs.SwapPoolBase) / defs.PageSize
			require.True(t, fi >= 0 && fi < defs.SwapPoolSize,
				"asid %d page %d maps outside the pool", sup.ASID, j)
			f := &l.swap.frames[fi]
			assert.True(t, f.occupied, "asid %d page %d maps a free frame", sup.ASID, j)
			assert.Equal(t, pte.EntryHi>>defs.VPNShift, f.vpn,
				"asid %d page %d frame holds another page", sup.ASID, j)
			assert.Same(t, sup, f.sup, "asid %d page %d frame has another owner", sup.ASID, j)
		}
	}
}

// Drive the pager with synthetic faults from a kernel-mode process:
// fill the pool with two U-procs' pages, retire one U-proc, and check
// that its freed frame is reused before any live page is evicted.
func TestPagerReusesReleasedFrames(t *testing.T) {
	m := machine.NewMachine(256)
	dk := device.NewDisk(m, 0, 4, 8, 16)
	m.Install(defs.LineDisk, 0, dk)
	k := nucleus.New(m)
	l := New(k, 2, nil)

	status := k.Run(func(c *nucleus.CPU) {
		l.initSwap()
		for i := range l.devMutex {
			l.devMutex[i] = 1
		}

		makeSup := func(idx, asid int) *defs.Support {
			sup := &l.supStorage[idx]
			sup.ASID = asid
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
			return sup
		}
		sup1 := makeSup(0, 1)
		sup2 := makeSup(1, 2)

		fault := func(sup *defs.Support, vpn uint32) {
			sup.ExceptState[defs.PgFaultExcept].Cause = defs.CauseExc(defs.ExcTLBLoad)
			sup.ExceptState[defs.PgFaultExcept].EntryHi = vpn << defs.VPNShift
			l.pager(sup)
		}

		for i := 0; i < defs.SwapPoolSize-1; i++ {
			fault(sup1, defs.VPNTextBase+uint32(i))
		}
		fault(sup2, defs.VPNTextBase)
		checkSwapConsistency(t, l, sup1, sup2)

		// U-proc 2 dies. Its frame must be the next one handed out;
		// none of U-proc 1's live pages may be evicted for it.
		l.releaseFrames(c, 2)
		fault(sup1, defs.VPNTextBase+defs.SwapPoolSize-1)

		free := 0
		for i := range l.swap.frames {
			if !l.swap.frames[i].occupied {
				free++
			}
		}
		valid := 0
		for i := range sup1.PrivatePgTbl {
			if sup1.PrivatePgTbl[i].EntryLo&defs.PTEValid != 0 {
				valid++
			}
		}
		assert.Equal(t, 0, free)
		assert.Equal(t, defs.SwapPoolSize, valid)
		checkSwapConsistency(t, l, sup1)
		c.Terminate()
	})
	require.Equal(t, nucleus.HaltOK, status)
}
