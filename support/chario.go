/*
 * Pandos - Support level: character device services, SYS11-SYS13.
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
	"github.com/minhdang26403/pandos/machine/device"
)

// Each U-proc owns the printer and terminal numbered ASID-1.

func validString(vaddr uint32, length int, maxLen int) bool {
	return vaddr >= defs.KUSeg && length > 0 && length <= maxLen
}

// SYS11: print a string one character at a time. Returns the count
// transmitted, or the negated status of the character that failed.
func (l *Layer) sysWritePrinter(c *nucleus.CPU, sup *defs.Support, vaddr uint32, length int) int32 {
	if !validString(vaddr, length, defs.PrinterMaxLen) {
		l.trap(c, sup)
	}
	devNo := sup.ASID - 1
	mutex := &l.devMutex[nucleus.DevSemIndex(defs.LinePrinter, devNo, false)]
	c.Passeren(mutex)

	var result int32
	for i := 0; i < length; i++ {
		ch := c.ReadByte(vaddr + uint32(i))
		st := c.GetStatus()
		c.SetStatus(st &^ defs.StatusIEc)
		c.DevWrite(defs.LinePrinter, devNo, device.RegData0, uint32(ch))
		c.DevWrite(defs.LinePrinter, devNo, device.RegCommand, defs.PrinterCmdChar)
		status := c.WaitIO(defs.LinePrinter, devNo, false)
		c.SetStatus(st)
		if status != defs.DevStatusReady {
			result = -int32(status)
			break
		}
		result++
	}

	c.Verhogen(mutex)
	return result
}

// SYS12: transmit a string on this U-proc's terminal.
func (l *Layer) sysWriteTerminal(c *nucleus.CPU, sup *defs.Support, vaddr uint32, length int) int32 {
	if !validString(vaddr, length, defs.TerminalMaxLen) {
		l.trap(c, sup)
	}
	devNo := sup.ASID - 1
	mutex := &l.devMutex[nucleus.DevSemIndex(defs.LineTerminal, devNo, false)]
	c.Passeren(mutex)

	var result int32
	for i := 0; i < length; i++ {
		ch := c.ReadByte(vaddr + uint32(i))
		st := c.GetStatus()
		c.SetStatus(st &^ defs.StatusIEc)
		c.DevWrite(defs.LineTerminal, devNo, device.RegTransCommand,
			uint32(ch)<<8|defs.TermCmdTransmit)
		status := c.WaitIO(defs.LineTerminal, devNo, false)
		c.SetStatus(st)
		if status&defs.TermStatusMask != defs.TermCharTransmitted {
			result = -int32(status & defs.TermStatusMask)
			break
		}
		result++
	}

	c.Verhogen(mutex)
	return result
}

// SYS13: read from this U-proc's terminal up to and including a
// newline. Returns the count received, newline included, or the
// negated status of the receive that failed.
func (l *Layer) sysReadTerminal(c *nucleus.CPU, sup *defs.Support, vaddr uint32) int32 {
	if vaddr < defs.KUSeg {
		l.trap(c, sup)
	}
	devNo := sup.ASID - 1
	mutex := &l.devMutex[nucleus.DevSemIndex(defs.LineTerminal, devNo, true)]
	c.Passeren(mutex)

	var result int32
	for result < defs.TerminalMaxLen {
		st := c.GetStatus()
		c.SetStatus(st &^ defs.StatusIEc)
		c.DevWrite(defs.LineTerminal, devNo, device.RegRecvCommand, defs.TermCmdReceive)
		status := c.WaitIO(defs.LineTerminal, devNo, true)
		c.SetStatus(st)
		if status&defs.TermStatusMask != defs.TermCharReceived {
			result = -int32(status & defs.TermStatusMask)
			break
		}
		ch := byte(status >> 8)
		c.WriteByte(vaddr+uint32(result), ch)
		result++
		if ch == '\n' {
			break
		}
	}

	c.Verhogen(mutex)
	return result
}
