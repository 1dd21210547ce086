package defs

/*
 * Pandos - Hardware and kernel-wide constants.
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

const (
	PageSize = 4096 // page size in bytes
	WordLen  = 4    // word size in bytes
	ByteLen  = 8

	MaxProc = 20   // maximum number of concurrent processes
	Quantum = 5000 // time slice in microseconds
)

// Status register bits.
const (
	StatusIEc = 1 << 0 // current global interrupt enable
	StatusKUc = 1 << 1 // current kernel/user mode (0 = kernel)
	StatusIEp = 1 << 2 // previous interrupt enable
	StatusKUp = 1 << 3 // previous kernel/user mode
	StatusIEo = 1 << 4 // old interrupt enable
	StatusKUo = 1 << 5 // old kernel/user mode

	StatusIMAll = 0xff00   // all interrupt lines unmasked
	StatusBEV   = 1 << 22  // bootstrap exception vector
	StatusTE    = 1 << 27  // local timer enable
)

// Interrupt mask bit for line i (bits 8-15 of the status word).
func StatusIM(line int) uint32 {
	return 1 << (8 + line)
}

// Cause register exception codes.
const (
	ExcInterrupt = 0  // device interrupt
	ExcTLBMod    = 1  // TLB modification
	ExcTLBLoad   = 2  // TLB invalid on load
	ExcTLBStore  = 3  // TLB invalid on store
	ExcAddrLoad  = 4  // address error on load
	ExcAddrStore = 5  // address error on store
	ExcBusInstr  = 6  // bus error on instruction fetch
	ExcBusData   = 7  // bus error on data access
	ExcSyscall   = 8  // SYSCALL instruction
	ExcBreak     = 9  // BREAK instruction
	ExcReserved  = 10 // reserved instruction
	ExcCoproc    = 11 // coprocessor unusable
	ExcOverflow  = 12 // arithmetic overflow
)

const excCodeShift = 2

// Build a cause word from an exception code.
func CauseExc(code int) uint32 {
	return uint32(code) << excCodeShift
}

// Extract the exception code from a cause word.
func CauseExcCode(cause uint32) int {
	return int((cause >> excCodeShift) & 0x1f)
}

// Extract the pending interrupt bits from a cause word.
func CauseIP(cause uint32) uint32 {
	return cause & 0xff00
}

// Device interrupt lines.
const (
	LinePLT      = 1 // processor local timer
	LineInterval = 2 // system-wide interval timer
	LineDisk     = 3
	LineFlash    = 4
	LineNetwork  = 5
	LinePrinter  = 6
	LineTerminal = 7
)

const (
	DevIntNum  = 5 // interrupt lines used by peripheral devices
	DevPerLine = 8 // devices per interrupt line

	// Four peripheral classes of eight devices plus split terminals:
	// (4 x 8) + (8 x 2) = 48 device semaphores.
	NumDevices  = 48
	PseudoClock = NumDevices // index of the pseudo-clock semaphore
)

// Device status codes common to all classes.
const (
	DevStatusUninstalled = 0
	DevStatusReady       = 1
	DevStatusIllegal     = 2
	DevStatusBusy        = 3
	DevStatusError       = 4
)

// Device command codes.
const (
	DevCmdReset = 0
	DevCmdAck   = 1

	DiskCmdSeek  = 2
	DiskCmdRead  = 3
	DiskCmdWrite = 4

	FlashCmdRead  = 2
	FlashCmdWrite = 3

	PrinterCmdChar = 2

	TermCmdTransmit = 2
	TermCmdReceive  = 2
)

// Terminal completion codes, carried in the low status byte.
const (
	TermCharReceived    = 5
	TermCharTransmitted = 5
	TermStatusMask      = 0xff
)

// Disk command field shifts and geometry extraction from DATA1.
const (
	DiskCylShift  = 8
	DiskSectShift = 8
	DiskHeadShift = 16
)

func DiskCylinders(data1 uint32) int { return int(data1 >> 16 & 0xffff) }
func DiskHeads(data1 uint32) int     { return int(data1 >> 8 & 0xff) }
func DiskSectors(data1 uint32) int   { return int(data1 & 0xff) }

// Memory layout.
const (
	KSeg0    = 0x00000000
	KSeg1    = 0x20000000
	KUSeg    = 0x80000000
	MaxAddr  = 0xffffffff
	RAMStart = 0x20000000

	DiskDMABase  = RAMStart + 32*PageSize      // DMA buffers, one page per disk
	FlashDMABase = DiskDMABase + 8*PageSize    // DMA buffers, one page per flash
	SwapPoolBase = FlashDMABase + 8*PageSize   // first swap pool frame
	SwapPoolSize = 2 * MaxUProcs               // frames in the swap pool
)

// Virtual memory management.
const (
	MaxPages  = 32           // pages per U-proc
	StackPage = MaxPages - 1 // page table slot of the stack page
	MaxUProcs = 8            // maximum concurrent user processes

	KUSegSharePages = 32 // pages in the shared logical address space

	UProcPC = 0x800000b0 // .text start
	UProcSP = 0xc0000000 // stack top

	VPNShift = 12
	VPNMask  = 0xfffff000
	PFNMask  = 0xfffff000

	ASIDShift = 6
	ASIDMask  = 0xfc0

	VPNTextBase   = 0x80000 // base VPN for .text/.data
	VPNStack      = 0xbffff // VPN of the stack page
	VPNShareBase  = 0xc0000 // base VPN of the shared region

	KUSegShareBase = VPNShareBase << VPNShift
	KUSegShareEnd  = KUSegShareBase + KUSegSharePages*PageSize

	// Backing store: private pages of U-proc asid occupy sectors
	// (asid-1)*32 .. (asid-1)*32+31, shared pages follow.
	KUSegBaseSector = MaxUProcs * MaxPages
	BackingDisk     = 0 // DISK0 holds the backing store

	AsidUnoccupied = -1 // free swap pool frame marker
)

// EntryLo bits.
const (
	PTEGlobal = 1 << 8
	PTEValid  = 1 << 9
	PTEDirty  = 1 << 10
)

// Shared page VPNs start at VPNShareBase.
func IsSharedVPN(vpn uint32) bool {
	return vpn >= VPNShareBase
}

// .aout header word offsets within block 0 of a flash image.
const (
	TextSizeOffset = 0x0014
	DataSizeOffset = 0x0024
)

// Pass-up indices into a support structure's state/context pairs.
const (
	PgFaultExcept = 0
	GeneralExcept = 1
)

const (
	TickInterval = 100000  // interval timer period in microseconds
	Second       = 1000000 // microseconds per second
)

// Nucleus system call codes.
const (
	SysCreateProcess    = 1
	SysTerminateProcess = 2
	SysPasseren         = 3
	SysVerhogen         = 4
	SysWaitIO           = 5
	SysGetCPUTime       = 6
	SysWaitClock        = 7
	SysGetSupportPtr    = 8
)

// Support level system call codes.
const (
	SysTerminate     = 9
	SysGetTOD        = 10
	SysWritePrinter  = 11
	SysWriteTerminal = 12
	SysReadTerminal  = 13
	SysDiskWrite     = 14
	SysDiskRead      = 15
	SysFlashWrite    = 16
	SysFlashRead     = 17
	SysDelay         = 18
	SysPSemLogical   = 19
	SysVSemLogical   = 20
)

// Character device limits.
const (
	PrinterMaxLen  = 128
	TerminalMaxLen = 128
)
