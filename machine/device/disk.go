/*
 * Pandos - Disk device model.
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
	"os"

	"github.com/minhdang26403/pandos/defs"
)

const (
	diskSeekTime = 400 // per cylinder of travel, microseconds
	diskXferTime = 800 // one sector read or write
)

// Disk with cylinder/head/sector geometry. DATA1 reports the geometry,
// a seek positions the arm, and READBLK/WRITEBLK move one 4 KB sector
// between the platter and the DMA frame whose physical address is in
// DATA0. Sector storage is allocated on first touch.
type Disk struct {
	regs

	cylinders int
	heads     int
	sectors   int

	arm   int // current cylinder
	media map[int][]byte
}

func NewDisk(bus Bus, dev int, cylinders, heads, sectors int) *Disk {
	dk := &Disk{
		regs:      regs{bus: bus, line: defs.LineDisk, dev: dev, status: defs.DevStatusReady},
		cylinders: cylinders,
		heads:     heads,
		sectors:   sectors,
		media:     map[int][]byte{},
	}
	dk.data1 = uint32(cylinders)<<16 | uint32(heads)<<8 | uint32(sectors)
	return dk
}

// Total sectors on the disk.
func (dk *Disk) Size() int {
	return dk.cylinders * dk.heads * dk.sectors
}

// Direct sector access for loading the backing store at configuration
// time, before the machine runs.
func (dk *Disk) LoadSector(sect int, data []byte) {
	buf := dk.sector(sect)
	copy(buf, data)
}

// Preload sector storage from an image file at configuration time.
func (dk *Disk) Attach(fileName string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return err
	}
	for sect := 0; len(data) > 0 && sect < dk.Size(); sect++ {
		n := len(data)
		if n > defs.PageSize {
			n = defs.PageSize
		}
		copy(dk.sector(sect), data[:n])
		data = data[n:]
	}
	return nil
}

func (dk *Disk) sector(index int) []byte {
	buf, ok := dk.media[index]
	if !ok {
		buf = make([]byte, defs.PageSize)
		dk.media[index] = buf
	}
	return buf
}

func (dk *Disk) ReadReg(reg int) uint32 {
	switch reg {
	case RegStatus:
		return dk.status
	case RegData0:
		return dk.data0
	case RegData1:
		return dk.data1
	}
	return 0
}

func (dk *Disk) WriteReg(reg int, value uint32) {
	switch reg {
	case RegCommand:
		dk.command(value)
	case RegData0:
		dk.data0 = value
	}
}

func (dk *Disk) command(value uint32) {
	if dk.status == defs.DevStatusBusy {
		return
	}
	switch value & 0xff {
	case defs.DevCmdAck, defs.DevCmdReset:
		dk.ack(defs.DevStatusReady)

	case defs.DiskCmdSeek:
		cyl := int(value >> defs.DiskCylShift)
		if cyl >= dk.cylinders {
			dk.complete(defs.DevStatusError)
			return
		}
		travel := cyl - dk.arm
		if travel < 0 {
			travel = -travel
		}
		dk.status = defs.DevStatusBusy
		dk.bus.After(uint64(travel+1)*diskSeekTime, func() {
			dk.arm = cyl
			dk.complete(defs.DevStatusReady)
		})

	case defs.DiskCmdRead, defs.DiskCmdWrite:
		head := int(value >> defs.DiskHeadShift & 0xff)
		sect := int(value >> defs.DiskSectShift & 0xff)
		if head >= dk.heads || sect >= dk.sectors {
			dk.complete(defs.DevStatusError)
			return
		}
		write := value&0xff == defs.DiskCmdWrite
		index := (dk.arm*dk.heads+head)*dk.sectors + sect
		addr := dk.data0
		dk.status = defs.DevStatusBusy
		dk.bus.After(diskXferTime, func() {
			buf := dk.sector(index)
			var ok bool
			if write {
				ok = dk.bus.ReadFrame(addr, buf)
			} else {
				ok = dk.bus.WriteFrame(addr, buf)
			}
			if !ok {
				dk.complete(defs.DevStatusError)
				return
			}
			dk.complete(defs.DevStatusReady)
		})

	default:
		dk.complete(defs.DevStatusIllegal)
	}
}
