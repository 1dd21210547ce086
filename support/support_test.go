/*
 * Pandos - Support level scenario tests.
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

package support_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhdang26403/pandos/defs"
	"github.com/minhdang26403/pandos/kernel/nucleus"
	"github.com/minhdang26403/pandos/machine"
	"github.com/minhdang26403/pandos/machine/device"
	"github.com/minhdang26403/pandos/support"
	"github.com/minhdang26403/pandos/uprogs"
)

// A fully populated machine: backing store disk, a spare data disk,
// and one flash, printer and terminal per U-proc slot.
type rig struct {
	m     *machine.Machine
	k     *nucleus.Kernel
	disk0 *device.Disk
	disk1 *device.Disk
	flash [defs.MaxUProcs]*device.Flash
	prt   [defs.MaxUProcs]*device.Printer
	term  [defs.MaxUProcs]*device.Terminal
}

func newRig(nproc int) *rig {
	m := machine.NewMachine(256)
	r := &rig{m: m, k: nucleus.New(m)}

	// 512 sectors covers the private and shared backing store runs.
	r.disk0 = device.NewDisk(m, 0, 4, 8, 16)
	m.Install(defs.LineDisk, 0, r.disk0)
	r.disk1 = device.NewDisk(m, 1, 2, 4, 8)
	m.Install(defs.LineDisk, 1, r.disk1)

	for i := 0; i < nproc; i++ {
		r.flash[i] = device.NewFlash(m, i, 64)
		r.flash[i].LoadImage(uprogs.BuildImage(2))
		m.Install(defs.LineFlash, i, r.flash[i])
		r.prt[i] = device.NewPrinter(m, i)
		m.Install(defs.LinePrinter, i, r.prt[i])
		r.term[i] = device.NewTerminal(m, i)
		m.Install(defs.LineTerminal, i, r.term[i])
	}
	return r
}

func (r *rig) run(t *testing.T, progs ...nucleus.Program) {
	t.Helper()
	layer := support.New(r.k, len(progs), progs)
	status := r.k.Run(layer.Instantiator)
	require.Equal(t, nucleus.HaltOK, status)
}

func TestGreeters(t *testing.T) {
	r := newRig(3)
	r.run(t, uprogs.Greeter(), uprogs.Greeter(), uprogs.Greeter())
	for i := 0; i < 3; i++ {
		assert.Equal(t, "hello\n", r.term[i].Output())
	}
}

func TestPagerSweep(t *testing.T) {
	r := newRig(1)
	r.run(t, uprogs.PagerSweep())
	assert.Equal(t, "sweep ok\n", r.term[0].Output())
}

// Two full sweeps against a pool half the size of one address space:
// every frame gets evicted and reloaded many times over.
func TestPagerSweepConcurrent(t *testing.T) {
	r := newRig(2)
	r.run(t, uprogs.PagerSweep(), uprogs.PagerSweep())
	assert.Equal(t, "sweep ok\n", r.term[0].Output())
	assert.Equal(t, "sweep ok\n", r.term[1].Output())
}

func TestDMARoundTrip(t *testing.T) {
	r := newRig(1)
	r.run(t, uprogs.DMAPump(1, 5, 0, 40))
	assert.Equal(t, "dma ok\n", r.term[0].Output())
}

func TestSharedCounter(t *testing.T) {
	r := newRig(4)
	r.run(t,
		uprogs.SharedCounterInit(),
		uprogs.SharedCounter(1000),
		uprogs.SharedCounter(1000),
		uprogs.SharedVerifier(2, 2000))
	assert.Equal(t, "count done\n", r.term[1].Output())
	assert.Equal(t, "count done\n", r.term[2].Output())
	assert.Equal(t, "total ok\n", r.term[3].Output())
}

func TestDelayOrdering(t *testing.T) {
	r := newRig(3)
	r.run(t,
		uprogs.DelayOrder(3, 'c', true),
		uprogs.DelayOrder(1, 'a', false),
		uprogs.DelayOrder(2, 'b', false))
	assert.Equal(t, "abc\n", r.term[0].Output())
}

func TestDelayCheck(t *testing.T) {
	r := newRig(1)
	r.run(t, uprogs.DelayCheck(1))
	assert.Equal(t, "delay ok\n", r.term[0].Output())
}

func TestWildReadTerminates(t *testing.T) {
	r := newRig(1)
	r.run(t, uprogs.WildRead())
	assert.Equal(t, "before\n", r.term[0].Output())
}

// SYS14 against disk zero is a program trap; the offender dies before
// it can report back.
func TestBackingDiskOffLimits(t *testing.T) {
	r := newRig(1)
	prog := func(c *nucleus.CPU) {
		c.Syscall(defs.SysDiskWrite, defs.KUSeg+2*defs.PageSize, 0, 3)
		msg := "alive\n"
		base := uint32(defs.KUSeg + defs.PageSize)
		for i := 0; i < len(msg); i++ {
			c.WriteByte(base+uint32(i), msg[i])
		}
		c.Syscall(defs.SysWriteTerminal, base, uint32(len(msg)), 0)
		c.Syscall(defs.SysTerminate, 0, 0, 0)
	}
	r.run(t, prog)
	assert.Equal(t, "", r.term[0].Output())
}

func TestPrinterWrite(t *testing.T) {
	r := newRig(1)
	prog := func(c *nucleus.CPU) {
		msg := "printed line\n"
		base := uint32(defs.KUSeg + defs.PageSize)
		for i := 0; i < len(msg); i++ {
			c.WriteByte(base+uint32(i), msg[i])
		}
		n := int32(c.Syscall(defs.SysWritePrinter, base, uint32(len(msg)), 0))
		if n != int32(len(msg)) {
			c.Syscall(defs.SysTerminate, 0, 0, 0)
		}
		c.Syscall(defs.SysTerminate, 0, 0, 0)
	}
	r.run(t, prog)
	assert.Equal(t, "printed line\n", r.prt[0].Output())
}

func TestReadTerminalTyped(t *testing.T) {
	r := newRig(1)
	r.term[0].TypeInput("abc\n")
	r.run(t, uprogs.TermEcho())
	assert.Equal(t, "echo:abc\n", r.term[0].Output())
}

// Terminal zero's transmitter feeds terminal one's receiver, so what
// the first U-proc prints the second reads back.
func TestTerminalPassThrough(t *testing.T) {
	r := newRig(2)
	r.term[0].SetPeer(r.term[1])
	r.run(t, uprogs.TermWriter("hi echo\n"), uprogs.TermEcho())
	assert.Equal(t, "hi echo\n", r.term[0].Output())
	assert.Equal(t, "echo:hi echo\n", r.term[1].Output())
}
