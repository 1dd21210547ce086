/*
 * Pandos - PCB layer tests.
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

package pcb

import (
	"testing"

	"github.com/minhdang26403/pandos/defs"
)

func TestPoolExhaustion(t *testing.T) {
	pl := NewPool()
	var got []*PCB
	for {
		p := pl.Alloc()
		if p == nil {
			break
		}
		got = append(got, p)
	}
	if len(got) != defs.MaxProc {
		t.Errorf("allocated got: %d expected: %d", len(got), defs.MaxProc)
	}
	pl.Free(got[0])
	if pl.Alloc() == nil {
		t.Error("alloc failed after free")
	}
}

func TestAllocClearsFields(t *testing.T) {
	pl := NewPool()
	p := pl.Alloc()
	p.Time = 42
	sem := 0
	p.Sem = &sem
	p.State.PC = 0x100
	pl.Free(p)
	p = pl.Alloc()
	if p.Time != 0 || p.Sem != nil || p.State.PC != 0 {
		t.Error("allocated PCB carries stale fields")
	}
}

func TestQueueFIFO(t *testing.T) {
	pl := NewPool()
	var q Queue
	if !q.Empty() {
		t.Error("fresh queue not empty")
	}
	a, b, c := pl.Alloc(), pl.Alloc(), pl.Alloc()
	q.Insert(a)
	q.Insert(b)
	q.Insert(c)
	if q.Head() != a {
		t.Error("head is not the first inserted")
	}
	if q.Remove() != a || q.Remove() != b || q.Remove() != c {
		t.Error("queue order is not FIFO")
	}
	if !q.Empty() || q.Remove() != nil {
		t.Error("drained queue not empty")
	}
}

func TestQueueOut(t *testing.T) {
	pl := NewPool()
	var q Queue
	a, b, c := pl.Alloc(), pl.Alloc(), pl.Alloc()
	q.Insert(a)
	q.Insert(b)
	q.Insert(c)

	stranger := pl.Alloc()
	if q.Out(stranger) != nil {
		t.Error("removed a PCB that was never enqueued")
	}
	if q.Out(b) != b {
		t.Error("failed to remove middle entry")
	}
	if q.Remove() != a || q.Remove() != c {
		t.Error("queue broken after middle removal")
	}

	// Removing the tail must keep the circle intact.
	q.Insert(a)
	q.Insert(b)
	if q.Out(b) != b {
		t.Error("failed to remove tail entry")
	}
	if q.Head() != a || q.Remove() != a {
		t.Error("queue broken after tail removal")
	}
}

func TestTree(t *testing.T) {
	pl := NewPool()
	parent := pl.Alloc()
	c1, c2, c3 := pl.Alloc(), pl.Alloc(), pl.Alloc()
	if !parent.EmptyChild() {
		t.Error("fresh PCB has children")
	}
	parent.InsertChild(c1)
	parent.InsertChild(c2)
	parent.InsertChild(c3)

	if c2.Parent() != parent {
		t.Error("child does not know its parent")
	}
	// Children are LIFO.
	if parent.RemoveChild() != c3 {
		t.Error("remove did not return most recent child")
	}
	// Out of the middle of the sibling list.
	parent.InsertChild(c3)
	if c1.OutChild() != c1 {
		t.Error("failed to detach last sibling")
	}
	if c1.Parent() != nil {
		t.Error("detached child still has a parent")
	}
	if parent.RemoveChild() != c3 || parent.RemoveChild() != c2 {
		t.Error("sibling list broken after detach")
	}
	if !parent.EmptyChild() {
		t.Error("parent still has children")
	}
	if c2.OutChild() != nil {
		t.Error("detached an orphan")
	}
}

func TestOutChildMiddle(t *testing.T) {
	pl := NewPool()
	parent := pl.Alloc()
	c1, c2, c3 := pl.Alloc(), pl.Alloc(), pl.Alloc()
	parent.InsertChild(c1)
	parent.InsertChild(c2)
	parent.InsertChild(c3)

	// Detach from the middle; both sibling links must survive.
	if c2.OutChild() != c2 {
		t.Error("failed to detach middle sibling")
	}
	if c3.sib != c1 || c1.prevSib != c3 {
		t.Error("sibling links broken after middle detach")
	}
	if parent.RemoveChild() != c3 || parent.RemoveChild() != c1 {
		t.Error("remaining children out of order")
	}
	if !parent.EmptyChild() {
		t.Error("parent still has children")
	}
}

func TestQueueLen(t *testing.T) {
	pl := NewPool()
	var q Queue
	if q.Len() != 0 {
		t.Error("fresh queue has entries")
	}
	q.Insert(pl.Alloc())
	q.Insert(pl.Alloc())
	q.Insert(pl.Alloc())
	if q.Len() != 3 {
		t.Errorf("length got: %d expected: 3", q.Len())
	}
	q.Remove()
	if q.Len() != 2 {
		t.Errorf("length after remove got: %d expected: 2", q.Len())
	}
}
