package clock

/*
 * Caliptra MCU emulator - Tick clock and timer actions
 *
 * Copyright 2025, Caliptra Contributors
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

import (
	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

// Kind of a scheduled timer action.
type Kind int

const (
	// Poll marks the owning timer handle as fired; the bus poll after the
	// batch turns it into peripheral work.
	Poll Kind = iota
	// FireIrq raises an external interrupt line.
	FireIrq
	// Nmi delivers a non maskable interrupt with the given mcause.
	Nmi
	// WarmReset requests a warm reset of the core.
	WarmReset
	// UpdateReset requests a firmware update reset of the core.
	UpdateReset
)

// Action is one scheduled piece of deferred work.
type Action struct {
	Kind   Kind
	Irq    uint8  // FireIrq line number
	Mcause uint32 // Nmi cause
}

// ActionHandle identifies one scheduled action for Cancel and Fired.
type ActionHandle struct {
	tick      uint64
	cancelled bool
	action    Action
	prev      *ActionHandle
	next      *ActionHandle
}

// Clock is the shared monotonic tick counter plus the ordered queue of
// scheduled actions. It is owned by the emulator thread; peripherals hold it
// through Timer views.
type Clock struct {
	now  uint64
	head *ActionHandle
	tail *ActionHandle

	// sink receives every non poll action as it comes due. The machine
	// installs one and routes resets and interrupts to the right core.
	sink func(Action)
}

func New() *Clock {
	return &Clock{}
}

// Now returns the current tick.
func (c *Clock) Now() uint64 {
	return c.now
}

// SetActionSink installs the consumer for CPU bound actions.
func (c *Clock) SetActionSink(sink func(Action)) {
	c.sink = sink
}

// ScheduleIn queues an action delta ticks in the future. Actions scheduled
// for the same tick fire in insertion order. Ticks are expected to stay far
// below 2^63; crossing that is an implementation bug.
func (c *Clock) ScheduleIn(delta uint64, action Action) *ActionHandle {
	tick := c.now + delta
	if tick >= 1<<63 {
		panic("clock: scheduled tick overflows")
	}
	h := &ActionHandle{tick: tick, action: action}

	// Insert before the first node with a strictly later tick, keeping
	// equal ticks in arrival order.
	ptr := c.head
	for ptr != nil && ptr.tick <= tick {
		ptr = ptr.next
	}
	if ptr == nil {
		h.prev = c.tail
		if c.tail != nil {
			c.tail.next = h
		} else {
			c.head = h
		}
		c.tail = h
	} else {
		h.next = ptr
		h.prev = ptr.prev
		ptr.prev = h
		if h.prev != nil {
			h.prev.next = h
		} else {
			c.head = h
		}
	}
	return h
}

// Cancel removes a scheduled action. Cancelling twice, or cancelling an
// action that already fired, is a no-op.
func (c *Clock) Cancel(h *ActionHandle) {
	if h == nil || h.cancelled {
		return
	}
	h.cancelled = true
}

// Advance moves the clock forward by delta ticks, dispatching every action
// that comes due, in (tick, insertion) order. After each batch of actions at
// a unique tick the bus is polled exactly once so peripherals observe their
// fired timers.
func (c *Clock) Advance(delta uint64, bus rvbus.Bus) {
	target := c.now + delta
	for c.head != nil && c.head.tick <= target {
		batch := c.head.tick
		c.now = batch
		for c.head != nil && c.head.tick == batch {
			h := c.head
			c.head = h.next
			if c.head != nil {
				c.head.prev = nil
			} else {
				c.tail = nil
			}
			h.next = nil
			h.prev = nil
			if h.cancelled {
				continue
			}
			if h.action.Kind != Poll && c.sink != nil {
				c.sink(h.action)
			}
		}
		bus.Poll()
	}
	c.now = target
}

// Pending reports whether any uncancelled action is queued.
func (c *Clock) Pending() bool {
	for h := c.head; h != nil; h = h.next {
		if !h.cancelled {
			return true
		}
	}
	return false
}

// Timer is a peripheral's view onto the shared clock.
type Timer struct {
	clock *Clock
}

func NewTimer(c *Clock) Timer {
	return Timer{clock: c}
}

func (t Timer) Now() uint64 {
	return t.clock.Now()
}

// SchedulePollIn schedules a poll action and returns its handle. The owner
// keeps the handle and asks Fired for it from its Poll method.
func (t Timer) SchedulePollIn(delta uint64) *ActionHandle {
	return t.clock.ScheduleIn(delta, Action{Kind: Poll})
}

// ScheduleActionIn schedules a CPU bound action.
func (t Timer) ScheduleActionIn(delta uint64, action Action) *ActionHandle {
	return t.clock.ScheduleIn(delta, action)
}

// Cancel drops a pending handle. Safe on nil and on fired handles.
func (t Timer) Cancel(h *ActionHandle) {
	t.clock.Cancel(h)
}

// Fired reports, exactly once, that the handle's scheduled tick has been
// reached, then clears the caller's handle.
func (t Timer) Fired(h **ActionHandle) bool {
	if h == nil || *h == nil {
		return false
	}
	if (*h).cancelled {
		*h = nil
		return false
	}
	if (*h).tick <= t.clock.Now() {
		*h = nil
		return true
	}
	return false
}
