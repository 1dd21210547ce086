/*
 * Pandos - Support level: logical semaphores in the shared segment,
 * SYS19-SYS20.
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
)

// A logical semaphore is a word in the shared segment, named by its
// virtual address. The value lives in paged memory; the waiter queue
// lives here, as a circular FIFO of descriptors addressed by a tail
// pointer. V releases the oldest waiter on the address.

type lsemd struct {
	next    *lsemd
	semAddr uint32
	sup     *defs.Support
}

type logicalSemList struct {
	mutex   int
	tail    *lsemd // tail.next is the oldest waiter
	free    *lsemd
	storage [defs.MaxUProcs]lsemd
}

func (l *Layer) initLogicalSems() {
	a := &l.alsl
	a.mutex = 1
	a.tail = nil
	a.free = nil
	for i := range a.storage {
		a.storage[i].next = a.free
		a.free = &a.storage[i]
	}
}

func (a *logicalSemList) enqueue(semAddr uint32, sup *defs.Support) bool {
	d := a.free
	if d == nil {
		return false
	}
	a.free = d.next
	d.semAddr = semAddr
	d.sup = sup
	if a.tail == nil {
		d.next = d
	} else {
		d.next = a.tail.next
		a.tail.next = d
	}
	a.tail = d
	return true
}

// Remove and return the oldest waiter on semAddr, nil if none.
func (a *logicalSemList) dequeue(semAddr uint32) *defs.Support {
	if a.tail == nil {
		return nil
	}
	prev := a.tail
	for {
		d := prev.next
		if d.semAddr == semAddr {
			if d.next == d {
				a.tail = nil
			} else {
				prev.next = d.next
				if a.tail == d {
					a.tail = prev
				}
			}
			sup := d.sup
			d.sup = nil
			d.next = a.free
			a.free = d
			return sup
		}
		prev = d
		if prev == a.tail {
			return nil
		}
	}
}

func validSemAddr(vaddr uint32) bool {
	return vaddr >= defs.KUSegShareBase && vaddr < defs.KUSegShareEnd &&
		vaddr&3 == 0
}

// SYS19: P a logical semaphore. The value is read and written through
// the shared segment's translations, so the access itself may fault
// and page in.
func (l *Layer) sysPSemLogical(c *nucleus.CPU, sup *defs.Support, semAddr uint32) {
	if !validSemAddr(semAddr) {
		l.trap(c, sup)
	}
	c.Passeren(&l.alsl.mutex)
	val := int32(c.ReadWord(semAddr)) - 1
	c.WriteWord(semAddr, uint32(val))
	if val < 0 {
		if !l.alsl.enqueue(semAddr, sup) {
			l.trapWith(c, sup, &l.alsl.mutex)
		}
		st := c.GetStatus()
		c.SetStatus(st &^ defs.StatusIEc)
		c.Verhogen(&l.alsl.mutex)
		c.Passeren(&sup.PrivateSem)
		c.SetStatus(st)
		return
	}
	c.Verhogen(&l.alsl.mutex)
}

// SYS20: V a logical semaphore, waking the oldest waiter.
func (l *Layer) sysVSemLogical(c *nucleus.CPU, sup *defs.Support, semAddr uint32) {
	if !validSemAddr(semAddr) {
		l.trap(c, sup)
	}
	c.Passeren(&l.alsl.mutex)
	val := int32(c.ReadWord(semAddr)) + 1
	c.WriteWord(semAddr, uint32(val))
	if val <= 0 {
		if waiter := l.alsl.dequeue(semAddr); waiter != nil {
			c.Verhogen(&waiter.PrivateSem)
		}
	}
	c.Verhogen(&l.alsl.mutex)
}
