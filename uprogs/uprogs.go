/*
 * Pandos - User mode test programs.
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

// Package uprogs holds user-mode programs in the spirit of the
// classic phase 3 testers. Every program talks to the machine only
// through translated memory access and the numeric SYSCALL interface,
// so all of its pages are demand-paged for real.
package uprogs

import (
	"encoding/binary"
	"strings"

	"github.com/minhdang26403/pandos/defs"
	"github.com/minhdang26403/pandos/kernel/nucleus"
)

// Programs selectable by name from a machine configuration.
func Lookup(name string) (nucleus.Program, bool) {
	switch strings.ToLower(name) {
	case "greeter":
		return Greeter(), true
	case "sweep":
		return PagerSweep(), true
	case "dma":
		return DMAPump(1, 5, 0, 40), true
	case "primes":
		return Primes(1000), true
	case "delay":
		return DelayCheck(1), true
	case "echo":
		return TermEcho(), true
	}
	return nil, false
}

// Scratch addresses inside the U-proc logical address space.
const (
	dataBase  = defs.KUSeg + 1*defs.PageSize // second page of .text/.data
	bufBase   = defs.KUSeg + 2*defs.PageSize // page-aligned DMA buffer
	stackTemp = defs.UProcSP - defs.PageSize // top stack page
)

// Build a flash image whose header words announce one page of text
// and the given number of data pages.
func BuildImage(dataPages int) []byte {
	image := make([]byte, defs.PageSize*(1+dataPages))
	binary.LittleEndian.PutUint32(image[defs.TextSizeOffset:], defs.PageSize)
	binary.LittleEndian.PutUint32(image[defs.DataSizeOffset:], uint32(dataPages*defs.PageSize))
	return image
}

func storeString(c *nucleus.CPU, vaddr uint32, s string) {
	for i := 0; i < len(s); i++ {
		c.WriteByte(vaddr+uint32(i), s[i])
	}
}

func loadString(c *nucleus.CPU, vaddr uint32, n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = c.ReadByte(vaddr + uint32(i))
	}
	return string(buf)
}

// Write a string to this U-proc's terminal.
func puts(c *nucleus.CPU, s string) int32 {
	storeString(c, dataBase, s)
	return int32(c.Syscall(defs.SysWriteTerminal, dataBase, uint32(len(s)), 0))
}

func terminate(c *nucleus.CPU) {
	c.Syscall(defs.SysTerminate, 0, 0, 0)
}

// Greeter prints one line and exits.
func Greeter() nucleus.Program {
	return func(c *nucleus.CPU) {
		puts(c, "hello\n")
		terminate(c)
	}
}

// PagerSweep touches every private page, stack included, writing a
// distinct marker to each and reading them all back. With more pages
// than swap frames this forces eviction and reload.
func PagerSweep() nucleus.Program {
	return func(c *nucleus.CPU) {
		marker := func(page int) uint32 {
			return 0xa5a50000 | uint32(page)
		}
		addr := func(page int) uint32 {
			if page == defs.StackPage {
				return defs.VPNStack << defs.VPNShift
			}
			return defs.KUSeg + uint32(page)*defs.PageSize
		}
		for page := 1; page < defs.MaxPages; page++ {
			c.WriteWord(addr(page)+64, marker(page))
		}
		for page := 1; page < defs.MaxPages; page++ {
			if c.ReadWord(addr(page)+64) != marker(page) {
				puts(c, "sweep bad\n")
				terminate(c)
			}
		}
		puts(c, "sweep ok\n")
		terminate(c)
	}
}

// DMAPump round-trips a page of data through a disk and a flash
// device with SYS14-SYS17.
func DMAPump(diskNo int, sector int, flashNo int, block int) nucleus.Program {
	return func(c *nucleus.CPU) {
		for i := uint32(0); i < defs.PageSize; i += defs.WordLen {
			c.WriteWord(bufBase+i, 0xd00d0000|i)
		}
		if int32(c.Syscall(defs.SysDiskWrite, bufBase, uint32(diskNo), uint32(sector))) < 0 {
			puts(c, "disk write bad\n")
			terminate(c)
		}
		for i := uint32(0); i < defs.PageSize; i += defs.WordLen {
			c.WriteWord(bufBase+i, 0)
		}
		if int32(c.Syscall(defs.SysDiskRead, bufBase, uint32(diskNo), uint32(sector))) < 0 {
			puts(c, "disk read bad\n")
			terminate(c)
		}
		for i := uint32(0); i < defs.PageSize; i += defs.WordLen {
			if c.ReadWord(bufBase+i) != 0xd00d0000|i {
				puts(c, "disk data bad\n")
				terminate(c)
			}
		}

		if int32(c.Syscall(defs.SysFlashWrite, bufBase, uint32(flashNo), uint32(block))) < 0 {
			puts(c, "flash write bad\n")
			terminate(c)
		}
		for i := uint32(0); i < defs.PageSize; i += defs.WordLen {
			c.WriteWord(bufBase+i, 0)
		}
		if int32(c.Syscall(defs.SysFlashRead, bufBase, uint32(flashNo), uint32(block))) < 0 {
			puts(c, "flash read bad\n")
			terminate(c)
		}
		for i := uint32(0); i < defs.PageSize; i += defs.WordLen {
			if c.ReadWord(bufBase+i) != 0xd00d0000|i {
				puts(c, "flash data bad\n")
				terminate(c)
			}
		}
		puts(c, "dma ok\n")
		terminate(c)
	}
}

// Fixed addresses in the shared segment used by the cooperative
// programs. The backing store starts zero-filled, so every semaphore
// and counter begins at zero.
const (
	shareSem     = defs.KUSegShareBase
	shareCounter = defs.KUSegShareBase + defs.WordLen
	shareDone    = defs.KUSegShareBase + 2*defs.WordLen
	shareOrder   = defs.KUSegShareBase + 0x40 // wake-order scratch
)

// SharedCounter increments a counter word in the shared segment under
// a logical semaphore, then signals a done semaphore. Run from
// several U-procs at once it checks mutual exclusion across address
// spaces.
func SharedCounter(rounds int) nucleus.Program {
	return func(c *nucleus.CPU) {
		for i := 0; i < rounds; i++ {
			c.Syscall(defs.SysPSemLogical, shareSem, 0, 0)
			c.WriteWord(shareCounter, c.ReadWord(shareCounter)+1)
			c.Syscall(defs.SysVSemLogical, shareSem, 0, 0)
		}
		c.Syscall(defs.SysVSemLogical, shareDone, 0, 0)
		puts(c, "count done\n")
		terminate(c)
	}
}

// Give the mutual-exclusion semaphore its free state. The shared page
// pages in zero-filled, so one V is enough.
func SharedCounterInit() nucleus.Program {
	return func(c *nucleus.CPU) {
		c.Syscall(defs.SysVSemLogical, shareSem, 0, 0)
		terminate(c)
	}
}

// SharedVerifier waits for the given number of workers to signal done,
// then reads the counter and reports whether it matches.
func SharedVerifier(workers int, expect uint32) nucleus.Program {
	return func(c *nucleus.CPU) {
		for i := 0; i < workers; i++ {
			c.Syscall(defs.SysPSemLogical, shareDone, 0, 0)
		}
		if c.ReadWord(shareCounter) == expect {
			puts(c, "total ok\n")
		} else {
			puts(c, "total bad\n")
		}
		terminate(c)
	}
}

// DelayOrder sleeps, then appends its tag to a scratch string in the
// shared segment. The wake times sit whole seconds apart, so the
// appends cannot collide. The reporter, which must be given the
// longest delay, prints the accumulated tags.
func DelayOrder(secs int, tag byte, report bool) nucleus.Program {
	return func(c *nucleus.CPU) {
		c.Syscall(defs.SysDelay, uint32(secs), 0, 0)
		idx := c.ReadWord(shareOrder)
		c.WriteByte(shareOrder+defs.WordLen+idx, tag)
		c.WriteWord(shareOrder, idx+1)
		if report {
			got := loadString(c, shareOrder+defs.WordLen, int(idx)+1)
			puts(c, got+"\n")
		}
		terminate(c)
	}
}

// DelayCheck verifies that SYS18 sleeps at least the asked-for time
// against the time of day clock.
func DelayCheck(secs int) nucleus.Program {
	return func(c *nucleus.CPU) {
		t0 := c.Syscall(defs.SysGetTOD, 0, 0, 0)
		c.Syscall(defs.SysDelay, uint32(secs), 0, 0)
		t1 := c.Syscall(defs.SysGetTOD, 0, 0, 0)
		if t1-t0 >= uint32(secs)*defs.Second {
			puts(c, "delay ok\n")
		} else {
			puts(c, "delay short\n")
		}
		terminate(c)
	}
}

// WildRead touches an address outside the logical address space. The
// resulting program trap must kill the process before the second
// line prints.
func WildRead() nucleus.Program {
	return func(c *nucleus.CPU) {
		puts(c, "before\n")
		c.ReadWord(0x70000000)
		puts(c, "after\n")
		terminate(c)
	}
}

// TermWriter sends one line out of its terminal.
func TermWriter(line string) nucleus.Program {
	return func(c *nucleus.CPU) {
		puts(c, line)
		terminate(c)
	}
}

// TermEcho reads one line from its terminal and prints a copy marked
// with a prefix.
func TermEcho() nucleus.Program {
	return func(c *nucleus.CPU) {
		n := int32(c.Syscall(defs.SysReadTerminal, stackTemp, 0, 0))
		if n <= 0 {
			puts(c, "read bad\n")
			terminate(c)
		}
		got := loadString(c, stackTemp, int(n))
		puts(c, "echo:"+got)
		terminate(c)
	}
}

// Primes prints the count of primes below the limit, keeping its
// sieve in paged memory so the work sweeps across data pages.
func Primes(limit int) nucleus.Program {
	return func(c *nucleus.CPU) {
		base := uint32(bufBase)
		for i := 0; i < limit; i++ {
			c.WriteByte(base+uint32(i), 1)
		}
		count := 0
		for p := 2; p < limit; p++ {
			if c.ReadByte(base+uint32(p)) == 0 {
				continue
			}
			count++
			for q := p * p; q < limit; q += p {
				c.WriteByte(base+uint32(q), 0)
			}
		}
		// One digit at a time, least significant last.
		digits := "0123456789"
		out := ""
		if count == 0 {
			out = "0"
		}
		for n := count; n > 0; n /= 10 {
			out = string(digits[n%10]) + out
		}
		puts(c, "primes "+out+"\n")
		terminate(c)
	}
}
