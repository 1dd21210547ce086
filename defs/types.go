/*
 * Pandos - Shared processor and support-level types.
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

package defs

// General register indices within State.Regs.
const (
	RegAT = 0
	RegV0 = 1
	RegV1 = 2
	RegA0 = 3
	RegA1 = 4
	RegA2 = 5
	RegA3 = 6
	RegT9 = 24
	RegSP = 26
	RegRA = 28
)

// Saved processor state: what the hardware pushes to the BIOS data
// page on an exception and what LDST loads back.
type State struct {
	EntryHi uint32
	Cause   uint32
	Status  uint32
	PC      uint32
	Regs    [31]uint32
}

// One page table entry.
type PTE struct {
	EntryHi uint32
	EntryLo uint32
}

// An exception context: where to go when an exception is passed up.
// Handler is the entry point, Status the processor status to run it
// under, StackPtr the stack it runs on.
type Context struct {
	Handler  func()
	Status   uint32
	StackPtr uint32
}

// Per-U-proc support structure. Slot 0 of the state/context pairs
// handles page faults, slot 1 everything else.
type Support struct {
	ASID          int
	ExceptState   [2]State
	ExceptContext [2]Context
	PrivatePgTbl  [MaxPages]PTE

	// Private semaphore the delay facility blocks this U-proc on.
	PrivateSem int
}
