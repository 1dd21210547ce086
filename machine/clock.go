/*
 * Pandos - Virtual microsecond clock and event scheduler.
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

package machine

// Time on the simulated machine is virtual: it advances only when the
// running process executes steps or when the scheduler idles waiting
// for a device. Events are kept on a singly-linked list ordered by
// absolute deadline. Callbacks run with the machine in whatever state
// the advancing caller holds; they must not advance the clock
// themselves.

type event struct {
	next     *event
	deadline uint64
	callback func()
}

type clock struct {
	now  uint64
	head *event
}

// Current virtual time in microseconds.
func (c *clock) Now() uint64 {
	return c.now
}

// Schedule callback to run delay microseconds from now. A zero delay
// fires on the next advance.
func (c *clock) After(delay uint64, callback func()) {
	ev := &event{deadline: c.now + delay, callback: callback}
	if c.head == nil || ev.deadline < c.head.deadline {
		ev.next = c.head
		c.head = ev
		return
	}
	pos := c.head
	for pos.next != nil && pos.next.deadline <= ev.deadline {
		pos = pos.next
	}
	ev.next = pos.next
	pos.next = ev
}

// Deadline of the nearest pending event, false if none scheduled.
func (c *clock) NextDeadline() (uint64, bool) {
	if c.head == nil {
		return 0, false
	}
	return c.head.deadline, true
}

// Advance the clock to the given time, firing every event that comes
// due on the way. Events scheduled by callbacks for times at or before
// the target fire in the same sweep.
func (c *clock) Advance(to uint64) {
	if to < c.now {
		return
	}
	for c.head != nil && c.head.deadline <= to {
		ev := c.head
		c.head = ev.next
		if ev.deadline > c.now {
			c.now = ev.deadline
		}
		ev.callback()
	}
	c.now = to
}
