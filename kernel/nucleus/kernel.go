/*
 * Pandos - Nucleus: kernel state, boot and the process execution model.
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

package nucleus

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/minhdang26403/pandos/defs"
	"github.com/minhdang26403/pandos/kernel/asl"
	"github.com/minhdang26403/pandos/kernel/pcb"
	"github.com/minhdang26403/pandos/machine"
)

// There is one virtual CPU: the kernel mutex. A process is a goroutine
// that runs only while it holds the mutex; blocking or losing the
// processor parks the goroutine on its condition variable until the
// scheduler dispatches it again. Virtual time advances only inside the
// mutex holder, so every run of the machine is deterministic.

// How the machine stopped.
const (
	HaltOK       = 0 // no more processes
	HaltDeadlock = 1 // processes remain but nothing can ever run
)

// A process body. It runs on the process's goroutine with the kernel
// mutex held and uses the CPU handle for every machine interaction.
// Returning is equivalent to terminating.
type Program func(c *CPU)

// Sentinel unwinding a terminated process's goroutine.
var errKilled = errors.New("process killed")

type thread struct {
	pcb     *pcb.PCB
	cond    *sync.Cond
	cpu     *CPU
	prog    Program
	live    defs.State // processor state while this process runs
	started bool
	killed  bool
}

type Kernel struct {
	mu sync.Mutex
	m  *machine.Machine

	pool    *pcb.Pool
	asl     *asl.List
	ready   pcb.Queue
	current *pcb.PCB
	threads map[*pcb.PCB]*thread

	procCnt      int
	softBlockCnt int
	quantumStart uint64

	// Device semaphores: one per peripheral sub-device plus the
	// pseudo-clock at the end. Completion statuses that arrive
	// before their waiter park here.
	DeviceSem      [defs.NumDevices + 1]int
	savedDevStatus [defs.NumDevices]uint32

	// Page table for the shared logical segment, installed by the
	// support level. Consulted by the TLB refill handler.
	GlobalPgTbl *[defs.KUSegSharePages]defs.PTE

	// Exception staging: the state pushed by the faulting processor
	// and the CPU it belongs to.
	excState defs.State
	excCPU   *CPU

	halted bool
	status int
	haltCh chan struct{}
}

func New(m *machine.Machine) *Kernel {
	return &Kernel{
		m:       m,
		pool:    pcb.NewPool(),
		asl:     asl.NewList(),
		threads: map[*pcb.PCB]*thread{},
		haltCh:  make(chan struct{}),
	}
}

// The machine this kernel drives.
func (k *Kernel) Machine() *machine.Machine {
	return k.m
}

// CPU handle of the running process. Support-level handlers fetch the
// faulting processor this way.
func (k *Kernel) CurrentCPU() *CPU {
	return k.threads[k.current].cpu
}

// Boot the machine with first as the initial process and run until
// halt. Returns how the machine stopped.
func (k *Kernel) Run(first Program) int {
	k.mu.Lock()

	k.m.PassUp.Exception = defs.Context{Handler: k.generalHandler}
	k.m.PassUp.TLBRefill = defs.Context{Handler: k.refillHandler}
	k.m.LoadInterval(defs.TickInterval)

	p := k.pool.Alloc()
	p.State.Status = defs.StatusIEp | defs.StatusIMAll | defs.StatusTE
	p.State.Regs[defs.RegSP] = k.m.RAMTop()
	k.procCnt = 1
	k.addThread(p, first)
	k.ready.Insert(p)
	slog.Debug("nucleus: boot")

	k.schedule()
	k.mu.Unlock()

	<-k.haltCh
	slog.Info("nucleus: halted", "status", k.status)
	return k.status
}

func (k *Kernel) addThread(p *pcb.PCB, prog Program) *thread {
	t := &thread{pcb: p, prog: prog}
	t.cond = sync.NewCond(&k.mu)
	t.cpu = &CPU{k: k, t: t}
	k.threads[p] = t
	return t
}

func (k *Kernel) spawn(t *thread) {
	go func() {
		k.mu.Lock()
		defer k.mu.Unlock()
		defer func() {
			if r := recover(); r != nil && r != errKilled { //nolint:errorlint
				panic(r)
			}
		}()
		t.waitForDispatch(k)
		t.prog(t.cpu)
		// Fell off the end of the program.
		k.terminateCurrent()
	}()
}

// Park until the scheduler hands this process the CPU, then load its
// saved state as the live processor state.
func (t *thread) waitForDispatch(k *Kernel) {
	for k.current != t.pcb {
		if t.killed {
			panic(errKilled)
		}
		t.cond.Wait()
	}
	if t.killed {
		panic(errKilled)
	}
	t.live = t.pcb.State
	t.live.Status = popStatus(t.live.Status)
}

// Loading a state acts like an exception return: the previous
// mode/interrupt bits become current.
func popStatus(s uint32) uint32 {
	s &^= defs.StatusKUc | defs.StatusIEc
	if s&defs.StatusKUp != 0 {
		s |= defs.StatusKUc
	}
	if s&defs.StatusIEp != 0 {
		s |= defs.StatusIEc
	}
	return s
}

// Stop the machine. Every remaining goroutine is released to unwind.
func (k *Kernel) halt(status int) {
	if k.halted {
		return
	}
	k.halted = true
	k.status = status
	for _, t := range k.threads {
		t.killed = true
		t.cond.Broadcast()
	}
	close(k.haltCh)
}

// Semaphore index for a device interrupt line and sub-device. The
// terminal's receiver side lives behind the transmitter block.
func DevSemIndex(line int, dev int, recv bool) int {
	idx := (line - defs.LineDisk) * defs.DevPerLine
	if recv {
		idx += defs.DevPerLine
	}
	return idx + dev
}

func (k *Kernel) isDeviceSem(sem *int) bool {
	for i := range k.DeviceSem {
		if sem == &k.DeviceSem[i] {
			return true
		}
	}
	return false
}
