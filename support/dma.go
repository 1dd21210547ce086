/*
 * Pandos - Support level: DMA device operations, SYS14-SYS17.
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

// Move one sector between RAM and a disk. The command sequence (seek,
// then read or write) runs under the device mutex; each command and
// its WaitIO are fenced with interrupts off so the completion cannot
// slip between them.
func (l *Layer) diskOperation(c *nucleus.CPU, devNo int, sector int, physAddr uint32, write bool) uint32 {
	geometry := c.DevRead(defs.LineDisk, devNo, device.RegData1)
	heads := defs.DiskHeads(geometry)
	sects := defs.DiskSectors(geometry)
	if heads == 0 || sects == 0 {
		return defs.DevStatusUninstalled
	}
	cyl := sector / (heads * sects)
	rem := sector % (heads * sects)
	head := rem / sects
	sect := rem % sects
	if cyl >= defs.DiskCylinders(geometry) {
		return defs.DevStatusError
	}

	mutex := &l.devMutex[nucleus.DevSemIndex(defs.LineDisk, devNo, false)]
	c.Passeren(mutex)

	st := c.GetStatus()
	c.SetStatus(st &^ defs.StatusIEc)
	c.DevWrite(defs.LineDisk, devNo, device.RegCommand,
		uint32(cyl)<<defs.DiskCylShift|defs.DiskCmdSeek)
	status := c.WaitIO(defs.LineDisk, devNo, false)
	c.SetStatus(st)

	if status == defs.DevStatusReady {
		cmd := uint32(defs.DiskCmdRead)
		if write {
			cmd = defs.DiskCmdWrite
		}
		c.SetStatus(st &^ defs.StatusIEc)
		c.DevWrite(defs.LineDisk, devNo, device.RegData0, physAddr)
		c.DevWrite(defs.LineDisk, devNo, device.RegCommand,
			uint32(head)<<defs.DiskHeadShift|uint32(sect)<<defs.DiskSectShift|cmd)
		status = c.WaitIO(defs.LineDisk, devNo, false)
		c.SetStatus(st)
	}

	c.Verhogen(mutex)
	return status
}

// Move one block between RAM and a flash device.
func (l *Layer) flashOperation(c *nucleus.CPU, devNo int, block int, physAddr uint32, write bool) uint32 {
	mutex := &l.devMutex[nucleus.DevSemIndex(defs.LineFlash, devNo, false)]
	c.Passeren(mutex)

	cmd := uint32(defs.FlashCmdRead)
	if write {
		cmd = defs.FlashCmdWrite
	}
	st := c.GetStatus()
	c.SetStatus(st &^ defs.StatusIEc)
	c.DevWrite(defs.LineFlash, devNo, device.RegData0, physAddr)
	c.DevWrite(defs.LineFlash, devNo, device.RegCommand, uint32(block)<<8|cmd)
	status := c.WaitIO(defs.LineFlash, devNo, false)
	c.SetStatus(st)

	c.Verhogen(mutex)
	return status
}

// DMA staging buffers, one page per device.
func diskDMAAddr(devNo int) uint32 {
	return defs.DiskDMABase + uint32(devNo)*defs.PageSize
}

func flashDMAAddr(devNo int) uint32 {
	return defs.FlashDMABase + uint32(devNo)*defs.PageSize
}

// A U-proc DMA buffer must be one whole page inside its logical
// address space.
func validDMABuffer(vaddr uint32) bool {
	return vaddr >= defs.KUSeg && vaddr&(defs.PageSize-1) == 0
}

// Copy a page between a user virtual address and physical RAM,
// through the faulting process's translations. Word at a time; page
// faults resolve on the way.
func (l *Layer) copyPageIn(c *nucleus.CPU, vaddr uint32, physAddr uint32) {
	for off := uint32(0); off < defs.PageSize; off += defs.WordLen {
		c.WriteWord(physAddr+off, c.ReadWord(vaddr+off))
	}
}

func (l *Layer) copyPageOut(c *nucleus.CPU, vaddr uint32, physAddr uint32) {
	for off := uint32(0); off < defs.PageSize; off += defs.WordLen {
		c.WriteWord(vaddr+off, c.ReadWord(physAddr+off))
	}
}

// SYS14/15: write or read one disk sector. Disk zero is the backing
// store and is off limits to U-procs.
func (l *Layer) sysDiskPut(c *nucleus.CPU, sup *defs.Support, vaddr uint32, devNo int, sector int) int32 {
	if !validDMABuffer(vaddr) || devNo <= 0 || devNo >= defs.DevPerLine || sector < 0 {
		l.trap(c, sup)
	}
	dma := diskDMAAddr(devNo)
	l.copyPageIn(c, vaddr, dma)
	status := l.diskOperation(c, devNo, sector, dma, true)
	if status != defs.DevStatusReady {
		return -int32(status)
	}
	return int32(status)
}

func (l *Layer) sysDiskGet(c *nucleus.CPU, sup *defs.Support, vaddr uint32, devNo int, sector int) int32 {
	if !validDMABuffer(vaddr) || devNo <= 0 || devNo >= defs.DevPerLine || sector < 0 {
		l.trap(c, sup)
	}
	dma := diskDMAAddr(devNo)
	status := l.diskOperation(c, devNo, sector, dma, false)
	if status != defs.DevStatusReady {
		return -int32(status)
	}
	l.copyPageOut(c, vaddr, dma)
	return int32(status)
}

// SYS16/17: write or read one flash block. The first MaxPages blocks
// hold the U-proc image and stay read-only territory.
func (l *Layer) sysFlashPut(c *nucleus.CPU, sup *defs.Support, vaddr uint32, devNo int, block int) int32 {
	if !validDMABuffer(vaddr) || devNo < 0 || devNo >= defs.DevPerLine || block < defs.MaxPages {
		l.trap(c, sup)
	}
	dma := flashDMAAddr(devNo)
	l.copyPageIn(c, vaddr, dma)
	status := l.flashOperation(c, devNo, block, dma, true)
	if status != defs.DevStatusReady {
		return -int32(status)
	}
	return int32(status)
}

func (l *Layer) sysFlashGet(c *nucleus.CPU, sup *defs.Support, vaddr uint32, devNo int, block int) int32 {
	if !validDMABuffer(vaddr) || devNo < 0 || devNo >= defs.DevPerLine || block < defs.MaxPages {
		l.trap(c, sup)
	}
	dma := flashDMAAddr(devNo)
	status := l.flashOperation(c, devNo, block, dma, false)
	if status != defs.DevStatusReady {
		return -int32(status)
	}
	l.copyPageOut(c, vaddr, dma)
	return int32(status)
}
