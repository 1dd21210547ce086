/*
 * Pandos - Support level: general exception handler, SYS9-SYS20
 * dispatch.
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
)

// Handler for everything that is not a page fault: the U-proc's
// system calls, and program traps, which are fatal. Runs on the
// faulting process. Each call dispatches independently; results land
// in the exception state's v0 and the process resumes past its
// SYSCALL.
func (l *Layer) generalExceptionHandler(sup *defs.Support) {
	c := l.kern.CurrentCPU()
	exc := &sup.ExceptState[defs.GeneralExcept]

	if defs.CauseExcCode(exc.Cause) != defs.ExcSyscall {
		l.trap(c, sup)
	}

	num := exc.Regs[defs.RegA0]
	a1 := exc.Regs[defs.RegA1]
	a2 := exc.Regs[defs.RegA2]
	a3 := exc.Regs[defs.RegA3]

	switch num {
	case defs.SysTerminate:
		l.terminate(c, sup)

	case defs.SysGetTOD:
		exc.Regs[defs.RegV0] = uint32(c.Now())

	case defs.SysWritePrinter:
		exc.Regs[defs.RegV0] = uint32(l.sysWritePrinter(c, sup, a1, int(int32(a2))))

	case defs.SysWriteTerminal:
		exc.Regs[defs.RegV0] = uint32(l.sysWriteTerminal(c, sup, a1, int(int32(a2))))

	case defs.SysReadTerminal:
		exc.Regs[defs.RegV0] = uint32(l.sysReadTerminal(c, sup, a1))

	case defs.SysDiskWrite:
		exc.Regs[defs.RegV0] = uint32(l.sysDiskPut(c, sup, a1, int(a2), int(int32(a3))))

	case defs.SysDiskRead:
		exc.Regs[defs.RegV0] = uint32(l.sysDiskGet(c, sup, a1, int(a2), int(int32(a3))))

	case defs.SysFlashWrite:
		exc.Regs[defs.RegV0] = uint32(l.sysFlashPut(c, sup, a1, int(a2), int(int32(a3))))

	case defs.SysFlashRead:
		exc.Regs[defs.RegV0] = uint32(l.sysFlashGet(c, sup, a1, int(a2), int(int32(a3))))

	case defs.SysDelay:
		l.sysDelay(c, sup, int32(a1))

	case defs.SysPSemLogical:
		l.sysPSemLogical(c, sup, a1)

	case defs.SysVSemLogical:
		l.sysVSemLogical(c, sup, a1)

	default:
		l.trap(c, sup)
	}
}
