/*
 * Pandos - Printer device model.
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
	"io"
	"strings"

	"github.com/minhdang26403/pandos/defs"
)

const printTime = 200 // one character, microseconds

// Printer transmits one character per command. The byte to print sits
// in the low byte of DATA0. Output goes to an attached writer and is
// also kept in a buffer for inspection.
type Printer struct {
	regs

	out io.Writer
	buf strings.Builder
}

func NewPrinter(bus Bus, dev int) *Printer {
	return &Printer{
		regs: regs{bus: bus, line: defs.LinePrinter, dev: dev, status: defs.DevStatusReady},
	}
}

// Send printed characters to a writer as well as the capture buffer.
func (pr *Printer) Attach(w io.Writer) {
	pr.out = w
}

// Everything printed so far.
func (pr *Printer) Output() string {
	return pr.buf.String()
}

func (pr *Printer) ReadReg(reg int) uint32 {
	switch reg {
	case RegStatus:
		return pr.status
	case RegData0:
		return pr.data0
	}
	return 0
}

func (pr *Printer) WriteReg(reg int, value uint32) {
	switch reg {
	case RegCommand:
		pr.command(value)
	case RegData0:
		pr.data0 = value
	}
}

func (pr *Printer) command(value uint32) {
	if pr.status == defs.DevStatusBusy {
		return
	}
	switch value & 0xff {
	case defs.DevCmdAck, defs.DevCmdReset:
		pr.ack(defs.DevStatusReady)

	case defs.PrinterCmdChar:
		ch := byte(pr.data0)
		pr.status = defs.DevStatusBusy
		pr.bus.After(printTime, func() {
			pr.buf.WriteByte(ch)
			if pr.out != nil {
				pr.out.Write([]byte{ch})
			}
			pr.complete(defs.DevStatusReady)
		})

	default:
		pr.complete(defs.DevStatusIllegal)
	}
}
