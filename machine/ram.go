/*
 * Pandos - Physical memory.
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

import (
	"encoding/binary"

	"github.com/minhdang26403/pandos/defs"
)

// RAM occupies physical addresses [RAMStart, RAMStart+len(ram)).
// Accesses outside that window are bus errors and report failure to
// the caller.

// Top of installed RAM (one past the last byte).
func (m *Machine) RAMTop() uint32 {
	return defs.RAMStart + uint32(len(m.ram))
}

func (m *Machine) validAddr(addr uint32, size uint32) bool {
	if addr < defs.RAMStart {
		return false
	}
	off := addr - defs.RAMStart
	return off+size <= uint32(len(m.ram))
}

// Read a word from physical memory. Reports false on a bus error.
func (m *Machine) ReadPhys(addr uint32) (uint32, bool) {
	if addr&3 != 0 || !m.validAddr(addr, 4) {
		return 0, false
	}
	off := addr - defs.RAMStart
	return binary.LittleEndian.Uint32(m.ram[off:]), true
}

// Write a word to physical memory. Reports false on a bus error.
func (m *Machine) WritePhys(addr uint32, value uint32) bool {
	if addr&3 != 0 || !m.validAddr(addr, 4) {
		return false
	}
	off := addr - defs.RAMStart
	binary.LittleEndian.PutUint32(m.ram[off:], value)
	return true
}

// Read a byte from physical memory.
func (m *Machine) ReadPhysByte(addr uint32) (byte, bool) {
	if !m.validAddr(addr, 1) {
		return 0, false
	}
	return m.ram[addr-defs.RAMStart], true
}

// Write a byte to physical memory.
func (m *Machine) WritePhysByte(addr uint32, value byte) bool {
	if !m.validAddr(addr, 1) {
		return false
	}
	m.ram[addr-defs.RAMStart] = value
	return true
}

// Copy one page of physical memory out of RAM. Used by DMA transfers.
func (m *Machine) ReadFrame(addr uint32, buf []byte) bool {
	if addr&(defs.PageSize-1) != 0 || !m.validAddr(addr, defs.PageSize) {
		return false
	}
	off := addr - defs.RAMStart
	copy(buf, m.ram[off:off+defs.PageSize])
	return true
}

// Copy one page of data into RAM. Used by DMA transfers.
func (m *Machine) WriteFrame(addr uint32, buf []byte) bool {
	if addr&(defs.PageSize-1) != 0 || !m.validAddr(addr, defs.PageSize) {
		return false
	}
	off := addr - defs.RAMStart
	copy(m.ram[off:off+defs.PageSize], buf)
	return true
}
