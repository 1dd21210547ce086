/*
 * Pandos - Support level: delay facility, SYS18.
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

// The active delay list holds one descriptor per sleeping U-proc,
// sorted by wake time between a zero and an infinite sentinel. The
// delay daemon wakes on every pseudo-clock tick and releases whoever
// has come due.

type delayd struct {
	next     *delayd
	wakeTime uint64
	sup      *defs.Support
}

type delayList struct {
	mutex   int
	head    *delayd
	free    *delayd
	storage [defs.MaxUProcs + 2]delayd
}

func (l *Layer) initDelay() {
	a := &l.adl
	a.mutex = 1
	lo := &a.storage[0]
	hi := &a.storage[1]
	lo.wakeTime = 0
	hi.wakeTime = ^uint64(0)
	lo.next = hi
	hi.next = nil
	a.head = lo
	a.free = nil
	for i := 2; i < len(a.storage); i++ {
		a.storage[i].next = a.free
		a.free = &a.storage[i]
	}
}

// Insert a sleeper, keeping the list sorted by wake time. Reports
// false when no descriptor is free.
func (a *delayList) insert(wakeTime uint64, sup *defs.Support) bool {
	d := a.free
	if d == nil {
		return false
	}
	a.free = d.next
	d.wakeTime = wakeTime
	d.sup = sup

	pos := a.head
	for pos.next.wakeTime <= wakeTime {
		pos = pos.next
	}
	d.next = pos.next
	pos.next = d
	return true
}

// Pop the earliest sleeper if it is due, nil otherwise.
func (a *delayList) popExpired(now uint64) *defs.Support {
	d := a.head.next
	if d.wakeTime == ^uint64(0) || d.wakeTime > now {
		return nil
	}
	a.head.next = d.next
	sup := d.sup
	d.sup = nil
	d.next = a.free
	a.free = d
	return sup
}

// SYS18: sleep for a number of seconds. The list release and the
// sleep on the private semaphore happen with interrupts off so the
// daemon cannot signal between them.
func (l *Layer) sysDelay(c *nucleus.CPU, sup *defs.Support, secs int32) {
	if secs < 0 {
		l.trap(c, sup)
	}
	if secs == 0 {
		return
	}
	wake := c.Now() + uint64(secs)*defs.Second

	c.Passeren(&l.adl.mutex)
	if !l.adl.insert(wake, sup) {
		l.trapWith(c, sup, &l.adl.mutex)
	}
	st := c.GetStatus()
	c.SetStatus(st &^ defs.StatusIEc)
	c.Verhogen(&l.adl.mutex)
	c.Passeren(&sup.PrivateSem)
	c.SetStatus(st)
}

// The delay daemon: a kernel-mode process that turns pseudo-clock
// ticks into private semaphore signals.
func (l *Layer) delayDaemon(c *nucleus.CPU) {
	for {
		c.WaitClock()
		c.Passeren(&l.adl.mutex)
		now := c.Now()
		for {
			sup := l.adl.popExpired(now)
			if sup == nil {
				break
			}
			c.Verhogen(&sup.PrivateSem)
		}
		c.Verhogen(&l.adl.mutex)
	}
}
