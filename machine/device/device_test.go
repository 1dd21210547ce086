/*
 * Pandos - Device model tests.
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

package device

import (
	"testing"

	"github.com/minhdang26403/pandos/defs"
	"github.com/minhdang26403/pandos/machine"
)

func newTestMachine() *machine.Machine {
	return machine.NewMachine(64)
}

func runDevice(m *machine.Machine, line int, dev int) {
	// Step time until the device raises its interrupt.
	for i := 0; i < 100; i++ {
		if m.PendingDevs(line)&(1<<dev) != 0 {
			return
		}
		m.Tick(100)
	}
}

func TestDiskReadWrite(t *testing.T) {
	m := newTestMachine()
	dk := NewDisk(m, 0, 16, 2, 8)
	m.Install(defs.LineDisk, 0, dk)

	frame := uint32(defs.RAMStart + 4*defs.PageSize)
	m.WritePhys(frame, 0x12345678)
	m.WritePhys(frame+4, 0xcafef00d)

	// Seek cylinder 3, write head 1 sector 2, then read it back into
	// a different frame.
	m.DevWrite(defs.LineDisk, 0, RegCommand, 3<<defs.DiskCylShift|defs.DiskCmdSeek)
	if m.DevRead(defs.LineDisk, 0, RegStatus) != defs.DevStatusBusy {
		t.Error("disk not busy during seek")
	}
	runDevice(m, defs.LineDisk, 0)
	m.DevWrite(defs.LineDisk, 0, RegCommand, defs.DevCmdAck)

	m.DevWrite(defs.LineDisk, 0, RegData0, frame)
	m.DevWrite(defs.LineDisk, 0, RegCommand, 1<<defs.DiskHeadShift|2<<defs.DiskSectShift|defs.DiskCmdWrite)
	runDevice(m, defs.LineDisk, 0)
	if s := m.DevRead(defs.LineDisk, 0, RegStatus); s != defs.DevStatusReady {
		t.Errorf("disk write status got: %d expected: %d", s, defs.DevStatusReady)
	}
	m.DevWrite(defs.LineDisk, 0, RegCommand, defs.DevCmdAck)

	other := uint32(defs.RAMStart + 6*defs.PageSize)
	m.DevWrite(defs.LineDisk, 0, RegData0, other)
	m.DevWrite(defs.LineDisk, 0, RegCommand, 1<<defs.DiskHeadShift|2<<defs.DiskSectShift|defs.DiskCmdRead)
	runDevice(m, defs.LineDisk, 0)
	m.DevWrite(defs.LineDisk, 0, RegCommand, defs.DevCmdAck)

	v, _ := m.ReadPhys(other)
	w, _ := m.ReadPhys(other + 4)
	if v != 0x12345678 || w != 0xcafef00d {
		t.Errorf("disk readback got: %08x %08x expected: 12345678 cafef00d", v, w)
	}
}

func TestDiskGeometry(t *testing.T) {
	m := newTestMachine()
	dk := NewDisk(m, 1, 32, 2, 8)
	m.Install(defs.LineDisk, 1, dk)
	data1 := m.DevRead(defs.LineDisk, 1, RegData1)
	if defs.DiskCylinders(data1) != 32 || defs.DiskHeads(data1) != 2 || defs.DiskSectors(data1) != 8 {
		t.Errorf("geometry got: %08x expected: 32/2/8", data1)
	}
}

func TestDiskBadSeek(t *testing.T) {
	m := newTestMachine()
	dk := NewDisk(m, 0, 16, 2, 8)
	m.Install(defs.LineDisk, 0, dk)
	m.DevWrite(defs.LineDisk, 0, RegCommand, 99<<defs.DiskCylShift|defs.DiskCmdSeek)
	if s := m.DevRead(defs.LineDisk, 0, RegStatus); s != defs.DevStatusError {
		t.Errorf("bad seek status got: %d expected: %d", s, defs.DevStatusError)
	}
}

func TestFlashRoundTrip(t *testing.T) {
	m := newTestMachine()
	fl := NewFlash(m, 0, 64)
	m.Install(defs.LineFlash, 0, fl)

	frame := uint32(defs.RAMStart + 8*defs.PageSize)
	m.WritePhys(frame, 0xfeedface)

	m.DevWrite(defs.LineFlash, 0, RegData0, frame)
	m.DevWrite(defs.LineFlash, 0, RegCommand, 33<<8|defs.FlashCmdWrite)
	runDevice(m, defs.LineFlash, 0)
	m.DevWrite(defs.LineFlash, 0, RegCommand, defs.DevCmdAck)

	other := uint32(defs.RAMStart + 9*defs.PageSize)
	m.DevWrite(defs.LineFlash, 0, RegData0, other)
	m.DevWrite(defs.LineFlash, 0, RegCommand, 33<<8|defs.FlashCmdRead)
	runDevice(m, defs.LineFlash, 0)
	m.DevWrite(defs.LineFlash, 0, RegCommand, defs.DevCmdAck)

	if v, _ := m.ReadPhys(other); v != 0xfeedface {
		t.Errorf("flash readback got: %08x expected: feedface", v)
	}
}

func TestFlashBadBlock(t *testing.T) {
	m := newTestMachine()
	fl := NewFlash(m, 0, 32)
	m.Install(defs.LineFlash, 0, fl)
	m.DevWrite(defs.LineFlash, 0, RegCommand, 32<<8|defs.FlashCmdRead)
	if s := m.DevRead(defs.LineFlash, 0, RegStatus); s != defs.DevStatusError {
		t.Errorf("bad block status got: %d expected: %d", s, defs.DevStatusError)
	}
}

func TestFlashHeader(t *testing.T) {
	m := newTestMachine()
	fl := NewFlash(m, 0, 32)
	image := make([]byte, defs.PageSize)
	image[defs.TextSizeOffset] = 0x00
	image[defs.TextSizeOffset+1] = 0x10 // 0x1000 = one page of text
	fl.LoadImage(image)
	if v := fl.HeaderWord(defs.TextSizeOffset); v != 0x1000 {
		t.Errorf("text size got: %08x expected: 00001000", v)
	}
}

func TestPrinter(t *testing.T) {
	m := newTestMachine()
	pr := NewPrinter(m, 0)
	m.Install(defs.LinePrinter, 0, pr)

	for _, ch := range []byte("ok") {
		m.DevWrite(defs.LinePrinter, 0, RegData0, uint32(ch))
		m.DevWrite(defs.LinePrinter, 0, RegCommand, defs.PrinterCmdChar)
		runDevice(m, defs.LinePrinter, 0)
		if s := m.DevRead(defs.LinePrinter, 0, RegStatus); s != defs.DevStatusReady {
			t.Errorf("printer status got: %d expected: %d", s, defs.DevStatusReady)
		}
		m.DevWrite(defs.LinePrinter, 0, RegCommand, defs.DevCmdAck)
	}
	if pr.Output() != "ok" {
		t.Errorf("printer output got: %q expected: %q", pr.Output(), "ok")
	}
}

func TestTerminalTransmit(t *testing.T) {
	m := newTestMachine()
	tm := NewTerminal(m, 0)
	m.Install(defs.LineTerminal, 0, tm)

	m.DevWrite(defs.LineTerminal, 0, RegTransCommand, uint32('A')<<8|defs.TermCmdTransmit)
	if s := m.DevRead(defs.LineTerminal, 0, RegTransStatus); s != defs.DevStatusBusy {
		t.Errorf("transmitter status got: %d expected: %d", s, defs.DevStatusBusy)
	}
	runDevice(m, defs.LineTerminal, 0)
	s := m.DevRead(defs.LineTerminal, 0, RegTransStatus)
	if s&defs.TermStatusMask != defs.TermCharTransmitted || byte(s>>8) != 'A' {
		t.Errorf("transmit completion got: %08x expected: char A transmitted", s)
	}
	m.DevWrite(defs.LineTerminal, 0, RegTransCommand, defs.DevCmdAck)
	if tm.Output() != "A" {
		t.Errorf("terminal output got: %q expected: %q", tm.Output(), "A")
	}
}

func TestTerminalReceive(t *testing.T) {
	m := newTestMachine()
	tm := NewTerminal(m, 0)
	m.Install(defs.LineTerminal, 0, tm)

	// Receive issued before input arrives: stays busy, completes when
	// a character is typed.
	m.DevWrite(defs.LineTerminal, 0, RegRecvCommand, defs.TermCmdReceive)
	m.Tick(1000)
	if s := m.DevRead(defs.LineTerminal, 0, RegRecvStatus); s != defs.DevStatusBusy {
		t.Errorf("receiver status got: %d expected: %d", s, defs.DevStatusBusy)
	}
	tm.TypeInput("x")
	runDevice(m, defs.LineTerminal, 0)
	s := m.DevRead(defs.LineTerminal, 0, RegRecvStatus)
	if s&defs.TermStatusMask != defs.TermCharReceived || byte(s>>8) != 'x' {
		t.Errorf("receive completion got: %08x expected: char x received", s)
	}
	m.DevWrite(defs.LineTerminal, 0, RegRecvCommand, defs.DevCmdAck)
}

func TestTerminalSubDeviceIndependence(t *testing.T) {
	m := newTestMachine()
	tm := NewTerminal(m, 3)
	m.Install(defs.LineTerminal, 3, tm)

	tm.TypeInput("z")
	m.DevWrite(defs.LineTerminal, 3, RegRecvCommand, defs.TermCmdReceive)
	m.DevWrite(defs.LineTerminal, 3, RegTransCommand, uint32('q')<<8|defs.TermCmdTransmit)
	runDevice(m, defs.LineTerminal, 3)
	m.Tick(1000)

	// Both sides completed; acknowledging one keeps the line raised
	// for the other.
	m.DevWrite(defs.LineTerminal, 3, RegTransCommand, defs.DevCmdAck)
	if m.PendingDevs(defs.LineTerminal)&(1<<3) == 0 {
		t.Error("line dropped while receiver still pending")
	}
	m.DevWrite(defs.LineTerminal, 3, RegRecvCommand, defs.DevCmdAck)
	if m.PendingDevs(defs.LineTerminal)&(1<<3) != 0 {
		t.Error("line still raised after both sides acknowledged")
	}
}

func TestTerminalPeer(t *testing.T) {
	m := newTestMachine()
	t0 := NewTerminal(m, 0)
	t1 := NewTerminal(m, 1)
	m.Install(defs.LineTerminal, 0, t0)
	m.Install(defs.LineTerminal, 1, t1)
	t0.SetPeer(t1)

	m.DevWrite(defs.LineTerminal, 1, RegRecvCommand, defs.TermCmdReceive)
	m.DevWrite(defs.LineTerminal, 0, RegTransCommand, uint32('!')<<8|defs.TermCmdTransmit)
	runDevice(m, defs.LineTerminal, 1)
	s := m.DevRead(defs.LineTerminal, 1, RegRecvStatus)
	if s&defs.TermStatusMask != defs.TermCharReceived || byte(s>>8) != '!' {
		t.Errorf("peer receive got: %08x expected: char ! received", s)
	}
}
