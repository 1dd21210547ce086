/*
 * Pandos - Process control blocks, process queues and the process tree.
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

import "github.com/minhdang26403/pandos/defs"

// PCB is one process: queue links, tree links, the saved processor
// state, accumulated CPU time, the semaphore it is blocked on and its
// support structure.
type PCB struct {
	next *PCB
	prev *PCB

	parent  *PCB
	child   *PCB
	sib     *PCB
	prevSib *PCB

	State   defs.State
	Time    uint64
	Sem     *int
	Support *defs.Support
}

// Queue is a circular doubly-linked process queue addressed by its
// tail; the head is tail.next. The zero value is an empty queue.
type Queue struct {
	tail *PCB
}

func (q *Queue) Empty() bool {
	return q.tail == nil
}

// Number of entries on the queue.
func (q *Queue) Len() int {
	if q.tail == nil {
		return 0
	}
	n := 1
	for p := q.tail.next; p != q.tail; p = p.next {
		n++
	}
	return n
}

// Head of the queue without removing it, nil when empty.
func (q *Queue) Head() *PCB {
	if q.tail == nil {
		return nil
	}
	return q.tail.next
}

// Insert at the tail.
func (q *Queue) Insert(p *PCB) {
	if q.tail == nil {
		p.next = p
		p.prev = p
	} else {
		head := q.tail.next
		p.next = head
		p.prev = q.tail
		q.tail.next = p
		head.prev = p
	}
	q.tail = p
}

// Remove and return the head, nil when empty.
func (q *Queue) Remove() *PCB {
	if q.tail == nil {
		return nil
	}
	return q.Out(q.tail.next)
}

// Remove an arbitrary entry, nil if it is not on this queue.
func (q *Queue) Out(p *PCB) *PCB {
	if q.tail == nil {
		return nil
	}
	pos := q.tail
	for pos.next != p {
		pos = pos.next
		if pos == q.tail {
			return nil
		}
	}
	if p.next == p {
		q.tail = nil
	} else {
		pos.next = p.next
		p.next.prev = pos
		if q.tail == p {
			q.tail = pos
		}
	}
	p.next = nil
	p.prev = nil
	return p
}

// Pool is the fixed allocation arena for PCBs.
type Pool struct {
	storage [defs.MaxProc]PCB
	free    Queue
}

func NewPool() *Pool {
	pl := &Pool{}
	for i := range pl.storage {
		pl.free.Insert(&pl.storage[i])
	}
	return pl
}

// Allocate a PCB with every field cleared, nil when the pool is
// exhausted.
func (pl *Pool) Alloc() *PCB {
	p := pl.free.Remove()
	if p == nil {
		return nil
	}
	*p = PCB{}
	return p
}

// Return a PCB to the pool.
func (pl *Pool) Free(p *PCB) {
	pl.free.Insert(p)
}

// Process tree. Children form a null-terminated doubly-linked sibling
// list; new children go to the front.

func (p *PCB) EmptyChild() bool {
	return p.child == nil
}

func (p *PCB) Parent() *PCB {
	return p.parent
}

func (p *PCB) InsertChild(c *PCB) {
	c.parent = p
	c.prevSib = nil
	c.sib = p.child
	if p.child != nil {
		p.child.prevSib = c
	}
	p.child = c
}

// Detach and return the first child, nil if there is none.
func (p *PCB) RemoveChild() *PCB {
	c := p.child
	if c == nil {
		return nil
	}
	p.child = c.sib
	if c.sib != nil {
		c.sib.prevSib = nil
	}
	c.parent = nil
	c.sib = nil
	return c
}

// Detach this process from its parent, nil if it has no parent.
func (p *PCB) OutChild() *PCB {
	if p.parent == nil {
		return nil
	}
	if p.prevSib == nil {
		return p.parent.RemoveChild()
	}
	p.prevSib.sib = p.sib
	if p.sib != nil {
		p.sib.prevSib = p.prevSib
	}
	p.parent = nil
	p.sib = nil
	p.prevSib = nil
	return p
}
