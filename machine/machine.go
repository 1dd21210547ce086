/*
 * Pandos - Simulated machine: RAM, TLB, timers, devices, interrupts.
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
	"github.com/minhdang26403/pandos/defs"
)

// A Device answers register reads and writes for one peripheral slot.
// Terminals expose four registers (receiver status/command, transmitter
// status/command); every other class exposes status, command, data0,
// data1.
type Device interface {
	ReadReg(reg int) uint32
	WriteReg(reg int, value uint32)
}

// Handlers the kernel installs at boot. The machine invokes nothing by
// itself; the running process's stepping code consults these when a
// translation misses or an exception must be raised.
type PassUpVector struct {
	TLBRefill defs.Context
	Exception defs.Context
}

// Machine is entirely passive. It tracks virtual time, physical
// memory, the TLB, the two timers and the per-line interrupt state.
// The kernel drives it by stepping time forward and polling pending
// interrupt lines.
type Machine struct {
	ram   []byte
	clock clock
	TLB   tlb

	devices [defs.DevIntNum][defs.DevPerLine]Device

	// Interrupt lines 1..7, stored as a bitmap shifted to the IP
	// field position (bit 8+line), and per-line device bitmaps for
	// lines 3..7.
	pendingLines uint32
	pendingDevs  [defs.DevIntNum]uint32

	pltDeadline   uint64
	pltArmed      bool
	intDeadline   uint64
	intArmed      bool

	PassUp PassUpVector
}

// Create a machine with the given amount of installed RAM.
func NewMachine(ramPages int) *Machine {
	return &Machine{ram: make([]byte, ramPages*defs.PageSize)}
}

// Current virtual time in microseconds.
func (m *Machine) Now() uint64 {
	return m.clock.Now()
}

// Schedule a callback delay microseconds from now. Devices use this
// for command completion.
func (m *Machine) After(delay uint64, callback func()) {
	m.clock.After(delay, callback)
}

// Attach a device to a line/slot pair. Lines run 3..7.
func (m *Machine) Install(line int, dev int, d Device) {
	m.devices[line-defs.LineDisk][dev] = d
}

// Installed device model at a slot, nil when empty.
func (m *Machine) DeviceAt(line int, dev int) Device {
	return m.devices[line-defs.LineDisk][dev]
}

// Read a device register. An empty slot reads as uninstalled.
func (m *Machine) DevRead(line int, dev int, reg int) uint32 {
	d := m.devices[line-defs.LineDisk][dev]
	if d == nil {
		if reg == 0 || reg == 2 {
			return defs.DevStatusUninstalled
		}
		return 0
	}
	return d.ReadReg(reg)
}

// Write a device register.
func (m *Machine) DevWrite(line int, dev int, reg int, value uint32) {
	d := m.devices[line-defs.LineDisk][dev]
	if d != nil {
		d.WriteReg(reg, value)
	}
}

// Raise the pending interrupt for one device.
func (m *Machine) RaiseIntr(line int, dev int) {
	m.pendingDevs[line-defs.LineDisk] |= 1 << dev
	m.pendingLines |= defs.StatusIM(line)
}

// Drop the pending interrupt for one device, clearing the line when no
// other device on it is interrupting.
func (m *Machine) DropIntr(line int, dev int) {
	idx := line - defs.LineDisk
	m.pendingDevs[idx] &^= 1 << dev
	if m.pendingDevs[idx] == 0 {
		m.pendingLines &^= defs.StatusIM(line)
	}
}

// Pending interrupt lines as IP-field bits (bit 8+line).
func (m *Machine) PendingLines() uint32 {
	return m.pendingLines
}

// Bitmap of interrupting devices on a peripheral line.
func (m *Machine) PendingDevs(line int) uint32 {
	return m.pendingDevs[line-defs.LineDisk]
}

// Load the processor local timer. Loading clears its pending
// interrupt.
func (m *Machine) SetPLT(us uint64) {
	m.pltDeadline = m.clock.Now() + us
	m.pltArmed = true
	m.pendingLines &^= defs.StatusIM(defs.LinePLT)
}

// Disarm the processor local timer. The scheduler idles without one.
func (m *Machine) StopPLT() {
	m.pltArmed = false
	m.pendingLines &^= defs.StatusIM(defs.LinePLT)
}

// Microseconds left on the local timer.
func (m *Machine) PLTRemaining() uint64 {
	if !m.pltArmed {
		return 0
	}
	now := m.clock.Now()
	if m.pltDeadline <= now {
		return 0
	}
	return m.pltDeadline - now
}

// Load the interval timer. Loading acknowledges (clears) its pending
// interrupt.
func (m *Machine) LoadInterval(us uint64) {
	m.intDeadline = m.clock.Now() + us
	m.intArmed = true
	m.pendingLines &^= defs.StatusIM(defs.LineInterval)
}

// Advance virtual time by cost microseconds, firing device events and
// timer expirations on the way.
func (m *Machine) Tick(cost uint64) {
	m.AdvanceTo(m.clock.Now() + cost)
}

// Advance virtual time to an absolute deadline.
func (m *Machine) AdvanceTo(to uint64) {
	for {
		next := to
		if d, ok := m.clock.NextDeadline(); ok && d < next {
			next = d
		}
		if m.pltArmed && m.pltDeadline < next {
			next = m.pltDeadline
		}
		if m.intArmed && m.intDeadline < next {
			next = m.intDeadline
		}
		m.clock.Advance(next)
		m.checkTimers()
		if next >= to {
			return
		}
	}
}

func (m *Machine) checkTimers() {
	now := m.clock.Now()
	if m.pltArmed && now >= m.pltDeadline {
		m.pltArmed = false
		m.pendingLines |= defs.StatusIM(defs.LinePLT)
	}
	if m.intArmed && now >= m.intDeadline {
		m.intArmed = false
		m.pendingLines |= defs.StatusIM(defs.LineInterval)
	}
}

// Earliest upcoming deadline among device events and the interval
// timer. The scheduler's idle loop sleeps to this point. Reports false
// when nothing is scheduled, which with the interval timer always
// rearmed means no devices are installed at all.
func (m *Machine) NextDeadline() (uint64, bool) {
	have := false
	var next uint64
	if d, ok := m.clock.NextDeadline(); ok {
		next, have = d, true
	}
	if m.intArmed && (!have || m.intDeadline < next) {
		next, have = m.intDeadline, true
	}
	return next, have
}
