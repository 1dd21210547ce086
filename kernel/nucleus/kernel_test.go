/*
 * Pandos - Nucleus tests.
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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhdang26403/pandos/defs"
	"github.com/minhdang26403/pandos/machine"
	"github.com/minhdang26403/pandos/machine/device"
)

func kernelStatus() uint32 {
	return defs.StatusIEp | defs.StatusIMAll | defs.StatusTE
}

func childState(k *Kernel) *defs.State {
	st := &defs.State{}
	st.Status = kernelStatus()
	st.Regs[defs.RegSP] = k.Machine().RAMTop() - defs.PageSize
	return st
}

func TestBootAndHalt(t *testing.T) {
	m := machine.NewMachine(64)
	k := New(m)
	ran := false
	status := k.Run(func(c *CPU) {
		ran = true
		c.Terminate()
	})
	require.Equal(t, HaltOK, status)
	assert.True(t, ran)
}

func TestProgramReturnTerminates(t *testing.T) {
	m := machine.NewMachine(64)
	k := New(m)
	status := k.Run(func(c *CPU) {})
	assert.Equal(t, HaltOK, status)
}

func TestDeadlockDetected(t *testing.T) {
	m := machine.NewMachine(64)
	k := New(m)
	sem := 0
	status := k.Run(func(c *CPU) {
		c.Passeren(&sem)
	})
	assert.Equal(t, HaltDeadlock, status)
}

func TestSemaphorePingPong(t *testing.T) {
	m := machine.NewMachine(64)
	k := New(m)
	s1, s2 := 1, 0
	var order []string

	status := k.Run(func(c *CPU) {
		ping := func(c *CPU) {
			for i := 0; i < 3; i++ {
				c.Passeren(&s1)
				order = append(order, "ping")
				c.Verhogen(&s2)
			}
			c.Terminate()
		}
		pong := func(c *CPU) {
			for i := 0; i < 3; i++ {
				c.Passeren(&s2)
				order = append(order, "pong")
				c.Verhogen(&s1)
			}
			c.Terminate()
		}
		require.Equal(t, 0, c.CreateProcess(childState(k), nil, ping))
		require.Equal(t, 0, c.CreateProcess(childState(k), nil, pong))
		c.Terminate()
	})
	require.Equal(t, HaltOK, status)
	assert.Equal(t, []string{"ping", "pong", "ping", "pong", "ping", "pong"}, order)
}

func TestRoundRobinPreemption(t *testing.T) {
	m := machine.NewMachine(64)
	k := New(m)
	var order []string

	worker := func(name string) Program {
		return func(c *CPU) {
			for i := 0; i < 6; i++ {
				order = append(order, name)
				c.Compute(2000)
			}
			c.Terminate()
		}
	}
	status := k.Run(func(c *CPU) {
		require.Equal(t, 0, c.CreateProcess(childState(k), nil, worker("a")))
		require.Equal(t, 0, c.CreateProcess(childState(k), nil, worker("b")))
		c.Terminate()
	})
	require.Equal(t, HaltOK, status)

	// 5 ms slices of 2 ms steps: three entries per slice, strict
	// alternation between the two workers.
	require.Len(t, order, 12)
	assert.Equal(t, []string{"a", "a", "a", "b", "b", "b", "a", "a", "a", "b", "b", "b"}, order)
}

func TestTerminateClosesSubtree(t *testing.T) {
	m := machine.NewMachine(64)
	k := New(m)
	sem := 0

	status := k.Run(func(c *CPU) {
		parent := func(c *CPU) {
			blocked := func(c *CPU) {
				c.Passeren(&sem) // never released
			}
			require.Equal(t, 0, c.CreateProcess(childState(k), nil, blocked))
			// Let the child run and block, then take the whole
			// subtree down.
			c.Compute(2 * defs.Quantum)
			c.Terminate()
		}
		require.Equal(t, 0, c.CreateProcess(childState(k), nil, parent))
		c.Terminate()
	})
	// If the blocked child survived its parent the machine would
	// deadlock instead of halting cleanly.
	assert.Equal(t, HaltOK, status)
}

func TestGetCPUTime(t *testing.T) {
	m := machine.NewMachine(64)
	k := New(m)
	var measured uint32
	status := k.Run(func(c *CPU) {
		c.Compute(3000)
		measured = c.GetCPUTime()
		c.Terminate()
	})
	require.Equal(t, HaltOK, status)
	assert.GreaterOrEqual(t, measured, uint32(3000))
	assert.Less(t, measured, uint32(3100))
}

func TestCPUTimeExcludesBlockedTime(t *testing.T) {
	m := machine.NewMachine(64)
	k := New(m)
	var measured uint32
	status := k.Run(func(c *CPU) {
		c.WaitClock() // a full pseudo-clock period off the CPU
		measured = c.GetCPUTime()
		c.Terminate()
	})
	require.Equal(t, HaltOK, status)
	assert.Less(t, measured, uint32(1000))
}

func TestWaitClock(t *testing.T) {
	m := machine.NewMachine(64)
	k := New(m)
	var woke uint64
	status := k.Run(func(c *CPU) {
		c.WaitClock()
		woke = c.Now()
		c.Terminate()
	})
	require.Equal(t, HaltOK, status)
	assert.GreaterOrEqual(t, woke, uint64(defs.TickInterval))
	assert.Less(t, woke, uint64(2*defs.TickInterval))
}

func TestWaitIOBlocking(t *testing.T) {
	m := machine.NewMachine(64)
	pr := device.NewPrinter(m, 0)
	m.Install(defs.LinePrinter, 0, pr)
	k := New(m)

	var st uint32
	status := k.Run(func(c *CPU) {
		c.DevWrite(defs.LinePrinter, 0, device.RegData0, uint32('x'))
		c.DevWrite(defs.LinePrinter, 0, device.RegCommand, defs.PrinterCmdChar)
		st = c.WaitIO(defs.LinePrinter, 0, false)
		c.Terminate()
	})
	require.Equal(t, HaltOK, status)
	assert.Equal(t, uint32(defs.DevStatusReady), st)
	assert.Equal(t, "x", pr.Output())
}

func TestWaitIOCompletionBeforeWait(t *testing.T) {
	m := machine.NewMachine(64)
	pr := device.NewPrinter(m, 1)
	m.Install(defs.LinePrinter, 1, pr)
	k := New(m)

	var st uint32
	status := k.Run(func(c *CPU) {
		c.DevWrite(defs.LinePrinter, 1, device.RegData0, uint32('y'))
		c.DevWrite(defs.LinePrinter, 1, device.RegCommand, defs.PrinterCmdChar)
		// Outrun the device, then wait: the completion arrived and
		// was parked on the semaphore.
		c.Compute(1000)
		st = c.WaitIO(defs.LinePrinter, 1, false)
		c.Terminate()
	})
	require.Equal(t, HaltOK, status)
	assert.Equal(t, uint32(defs.DevStatusReady), st)
}

func TestVerhogenBeforePasseren(t *testing.T) {
	m := machine.NewMachine(64)
	k := New(m)
	sem := 0
	status := k.Run(func(c *CPU) {
		c.Verhogen(&sem)
		c.Passeren(&sem) // must not block
		c.Terminate()
	})
	assert.Equal(t, HaltOK, status)
	assert.Equal(t, 0, sem)
}

func TestNegativeSemaphoreCountsWaiters(t *testing.T) {
	m := machine.NewMachine(64)
	k := New(m)
	sem := 0

	status := k.Run(func(c *CPU) {
		waiter := func(c *CPU) {
			c.Passeren(&sem)
			c.Terminate()
		}
		for i := 0; i < 3; i++ {
			require.Equal(t, 0, c.CreateProcess(childState(k), nil, waiter))
		}
		// Spin until all three have run and blocked.
		c.Compute(4 * defs.Quantum)

		// A negative value counts exactly the blocked processes.
		assert.Equal(t, -3, sem)
		assert.Equal(t, 3, k.asl.CountBlocked(&sem))

		for i := 0; i < 3; i++ {
			c.Verhogen(&sem)
		}
		assert.Equal(t, 0, sem)
		assert.Equal(t, 0, k.asl.CountBlocked(&sem))
		c.Terminate()
	})
	assert.Equal(t, HaltOK, status)
}

func TestCreateProcessExhaustion(t *testing.T) {
	m := machine.NewMachine(64)
	k := New(m)
	var rc int
	status := k.Run(func(c *CPU) {
		idle := func(c *CPU) {
			c.Terminate()
		}
		// One slot is taken by this process.
		for i := 0; i < defs.MaxProc-1; i++ {
			require.Equal(t, 0, c.CreateProcess(childState(k), nil, idle))
		}
		rc = c.CreateProcess(childState(k), nil, idle)
		c.Terminate()
	})
	require.Equal(t, HaltOK, status)
	assert.Equal(t, -1, rc)
}

func TestUserModePrivilegedSyscallDies(t *testing.T) {
	m := machine.NewMachine(64)
	k := New(m)

	status := k.Run(func(c *CPU) {
		user := func(c *CPU) {
			// No support structure: the rewritten
			// reserved-instruction fault is fatal.
			c.Syscall(defs.SysPasseren, 0, 0, 0)
			t.Error("survived a privileged syscall from user mode")
		}
		st := childState(k)
		st.Status |= defs.StatusKUp
		require.Equal(t, 0, c.CreateProcess(st, nil, user))
		c.Terminate()
	})
	assert.Equal(t, HaltOK, status)
}

func TestDevSemIndex(t *testing.T) {
	assert.Equal(t, 0, DevSemIndex(defs.LineDisk, 0, false))
	assert.Equal(t, 15, DevSemIndex(defs.LineFlash, 7, false))
	assert.Equal(t, 35, DevSemIndex(defs.LineTerminal, 3, false))
	assert.Equal(t, 43, DevSemIndex(defs.LineTerminal, 3, true))
}
