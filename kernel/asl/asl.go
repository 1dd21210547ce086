/*
 * Pandos - Active semaphore list.
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

package asl

import (
	"unsafe"

	"github.com/minhdang26403/pandos/defs"
	"github.com/minhdang26403/pandos/kernel/pcb"
)

// Semaphores are identified by the address of their int cell. Active
// descriptors sit on a singly-linked list sorted by that address,
// between a low and a high sentinel, so insertion never needs a head
// special case. Each descriptor owns the queue of processes blocked
// on its semaphore; a descriptor with an empty queue is returned to
// the free list.

type semd struct {
	next *semd
	sem  *int
	key  uintptr // address of sem; sentinels use 0 and ^0
	procQ pcb.Queue
}

type List struct {
	storage [defs.MaxProc + 2]semd
	free    *semd
	head    *semd
}

func NewList() *List {
	l := &List{}
	lo := &l.storage[0]
	hi := &l.storage[1]
	lo.key = 0
	hi.key = ^uintptr(0)
	lo.next = hi
	l.head = lo
	for i := 2; i < len(l.storage); i++ {
		l.storage[i].next = l.free
		l.free = &l.storage[i]
	}
	return l
}

func semKey(sem *int) uintptr {
	// Semaphore identity is the cell's address; the ASL only orders
	// by it, never dereferences it as a pointer.
	return uintptr(unsafe.Pointer(sem))
}

// Descriptor preceding the first one whose key is >= key. The
// sentinels guarantee it exists.
func (l *List) findPrev(key uintptr) *semd {
	pos := l.head
	for pos.next.key < key {
		pos = pos.next
	}
	return pos
}

// Block p on sem. Reports false when no descriptor is free, which
// with MaxProc descriptors for MaxProc processes cannot happen unless
// the caller double-blocks a PCB.
func (l *List) InsertBlocked(sem *int, p *pcb.PCB) bool {
	key := semKey(sem)
	prev := l.findPrev(key)
	sd := prev.next
	if sd.key != key {
		sd = l.free
		if sd == nil {
			return false
		}
		l.free = sd.next
		sd.sem = sem
		sd.key = key
		sd.procQ = pcb.Queue{}
		sd.next = prev.next
		prev.next = sd
	}
	p.Sem = sem
	sd.procQ.Insert(p)
	return true
}

// Unblock the first process waiting on sem, nil if none.
func (l *List) RemoveBlocked(sem *int) *pcb.PCB {
	key := semKey(sem)
	prev := l.findPrev(key)
	sd := prev.next
	if sd.key != key {
		return nil
	}
	p := sd.procQ.Remove()
	if p != nil {
		p.Sem = nil
	}
	l.tryFree(prev, sd)
	return p
}

// Unblock a specific process from whatever semaphore it waits on,
// nil if it is not blocked. p.Sem is left in place: terminators use
// it to classify the semaphore the process was taken off.
func (l *List) OutBlocked(p *pcb.PCB) *pcb.PCB {
	if p.Sem == nil {
		return nil
	}
	key := semKey(p.Sem)
	prev := l.findPrev(key)
	sd := prev.next
	if sd.key != key {
		return nil
	}
	out := sd.procQ.Out(p)
	l.tryFree(prev, sd)
	return out
}

// Number of processes blocked on sem.
func (l *List) CountBlocked(sem *int) int {
	prev := l.findPrev(semKey(sem))
	sd := prev.next
	if sd.key != semKey(sem) {
		return 0
	}
	return sd.procQ.Len()
}

// First process waiting on sem without unblocking it.
func (l *List) HeadBlocked(sem *int) *pcb.PCB {
	prev := l.findPrev(semKey(sem))
	sd := prev.next
	if sd.key != semKey(sem) {
		return nil
	}
	return sd.procQ.Head()
}

func (l *List) tryFree(prev *semd, sd *semd) {
	if !sd.procQ.Empty() {
		return
	}
	prev.next = sd.next
	sd.sem = nil
	sd.next = l.free
	l.free = sd
}
