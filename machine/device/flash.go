/*
 * Pandos - Flash device model.
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
	"encoding/binary"

	"github.com/minhdang26403/pandos/defs"
)

const flashXferTime = 600 // one block read or write, microseconds

// Flash holds a fixed number of 4 KB blocks. DATA1 reports the block
// count; the command word carries (block << 8) | operation and DATA0
// the DMA frame address. Each flash carries one U-proc image whose
// header words at 0x14 and 0x24 give the .text and .data sizes.
type Flash struct {
	regs

	blocks [][]byte
}

func NewFlash(bus Bus, dev int, blocks int) *Flash {
	fl := &Flash{
		regs:   regs{bus: bus, line: defs.LineFlash, dev: dev, status: defs.DevStatusReady},
		blocks: make([][]byte, blocks),
	}
	fl.data1 = uint32(blocks)
	return fl
}

// Number of blocks on the device.
func (fl *Flash) Size() int {
	return len(fl.blocks)
}

// Store an image starting at block zero. Used at configuration time.
func (fl *Flash) LoadImage(image []byte) {
	for blk := 0; len(image) > 0 && blk < len(fl.blocks); blk++ {
		buf := fl.block(blk)
		n := copy(buf, image)
		image = image[n:]
	}
}

// Image header word, read without a DMA transfer. Configuration and
// backing store setup peek at the .text and .data sizes this way.
func (fl *Flash) HeaderWord(offset uint32) uint32 {
	buf := fl.block(int(offset) / defs.PageSize)
	return binary.LittleEndian.Uint32(buf[offset%defs.PageSize:])
}

func (fl *Flash) block(index int) []byte {
	if fl.blocks[index] == nil {
		fl.blocks[index] = make([]byte, defs.PageSize)
	}
	return fl.blocks[index]
}

func (fl *Flash) ReadReg(reg int) uint32 {
	switch reg {
	case RegStatus:
		return fl.status
	case RegData0:
		return fl.data0
	case RegData1:
		return fl.data1
	}
	return 0
}

func (fl *Flash) WriteReg(reg int, value uint32) {
	switch reg {
	case RegCommand:
		fl.command(value)
	case RegData0:
		fl.data0 = value
	}
}

func (fl *Flash) command(value uint32) {
	if fl.status == defs.DevStatusBusy {
		return
	}
	switch value & 0xff {
	case defs.DevCmdAck, defs.DevCmdReset:
		fl.ack(defs.DevStatusReady)

	case defs.FlashCmdRead, defs.FlashCmdWrite:
		blk := int(value >> 8)
		if blk >= len(fl.blocks) {
			fl.complete(defs.DevStatusError)
			return
		}
		write := value&0xff == defs.FlashCmdWrite
		addr := fl.data0
		fl.status = defs.DevStatusBusy
		fl.bus.After(flashXferTime, func() {
			buf := fl.block(blk)
			var ok bool
			if write {
				ok = fl.bus.ReadFrame(addr, buf)
			} else {
				ok = fl.bus.WriteFrame(addr, buf)
			}
			if !ok {
				fl.complete(defs.DevStatusError)
				return
			}
			fl.complete(defs.DevStatusReady)
		})

	default:
		fl.complete(defs.DevStatusIllegal)
	}
}
