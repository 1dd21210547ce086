/*
 * Pandos - Translation lookaside buffer.
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

package machine

import "github.com/minhdang26403/pandos/defs"

const TLBSize = 16

// One translation entry. EntryHi carries VPN and ASID, EntryLo the
// physical frame number plus the Global, Valid and Dirty bits.
type TLBEntry struct {
	EntryHi uint32
	EntryLo uint32
}

type tlb struct {
	entries [TLBSize]TLBEntry
	wand    int // next slot for WriteRandom, rotates deterministically
}

// Look up the entry matching the VPN in entryHi. A slot matches when
// the VPNs are equal and either the Global bit is set or the ASIDs
// agree. Returns the slot index and whether a match was found.
func (t *tlb) Probe(entryHi uint32) (int, bool) {
	vpn := entryHi & defs.VPNMask
	asid := entryHi & defs.ASIDMask
	for i := range t.entries {
		e := &t.entries[i]
		if e.EntryHi&defs.VPNMask != vpn {
			continue
		}
		if e.EntryLo&defs.PTEGlobal != 0 || e.EntryHi&defs.ASIDMask == asid {
			return i, true
		}
	}
	return 0, false
}

// Replace the entry in the given slot.
func (t *tlb) WriteIndexed(index int, entry TLBEntry) {
	t.entries[index&(TLBSize-1)] = entry
}

// Replace an arbitrary entry. Real hardware picks a random slot; the
// rotating index keeps replacement deterministic without favoring any
// slot.
func (t *tlb) WriteRandom(entry TLBEntry) {
	t.entries[t.wand] = entry
	t.wand = (t.wand + 1) % TLBSize
}

// Invalidate every entry.
func (t *tlb) Clear() {
	for i := range t.entries {
		t.entries[i] = TLBEntry{}
	}
	t.wand = 0
}

// Read back a slot. Debug and monitor use.
func (t *tlb) Entry(index int) TLBEntry {
	return t.entries[index&(TLBSize-1)]
}
