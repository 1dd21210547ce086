/*
 * Pandos - Peripheral device common support.
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

// Bus is what a device needs from the machine: event scheduling,
// interrupt wires and DMA access to physical memory.
type Bus interface {
	After(delay uint64, callback func())
	RaiseIntr(line int, dev int)
	DropIntr(line int, dev int)
	ReadFrame(addr uint32, buf []byte) bool
	WriteFrame(addr uint32, buf []byte) bool
}

// Register indices for the four-register device classes.
const (
	RegStatus  = 0
	RegCommand = 1
	RegData0   = 2
	RegData1   = 3
)

// Terminal register indices.
const (
	RegRecvStatus   = 0
	RegRecvCommand  = 1
	RegTransStatus  = 2
	RegTransCommand = 3
)

// regs is the state shared by the single-function device classes
// (disk, flash, printer). The terminal keeps two sets of its own.
type regs struct {
	bus  Bus
	line int
	dev  int

	status  uint32
	data0   uint32
	data1   uint32
	pending bool
}

func (r *regs) complete(status uint32) {
	r.status = status
	r.pending = true
	r.bus.RaiseIntr(r.line, r.dev)
}

func (r *regs) ack(ready uint32) {
	r.status = ready
	if r.pending {
		r.pending = false
		r.bus.DropIntr(r.line, r.dev)
	}
}
