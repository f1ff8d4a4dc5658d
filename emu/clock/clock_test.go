package clock

/*
 * Caliptra MCU emulator - Clock tests
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
	"testing"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

// pollBus counts Poll calls and records the tick of each.
type pollBus struct {
	clock *Clock
	polls []uint64
}

func (b *pollBus) Read(rvbus.Size, uint32) (uint32, error) { return 0, rvbus.LoadAccessFault }
func (b *pollBus) Write(rvbus.Size, uint32, uint32) error  { return rvbus.StoreAccessFault }
func (b *pollBus) Poll()                                   { b.polls = append(b.polls, b.clock.Now()) }
func (b *pollBus) WarmReset()                              {}
func (b *pollBus) UpdateReset()                            {}

func TestAdvanceMovesNow(t *testing.T) {
	c := New()
	bus := &pollBus{clock: c}
	c.Advance(5, bus)
	if c.Now() != 5 {
		t.Errorf("now = %d, want 5", c.Now())
	}
	c.Advance(3, bus)
	if c.Now() != 8 {
		t.Errorf("now = %d, want 8", c.Now())
	}
	if len(bus.polls) != 0 {
		t.Errorf("polled with no actions scheduled: %v", bus.polls)
	}
}

func TestActionOrder(t *testing.T) {
	c := New()
	bus := &pollBus{clock: c}
	var order []string
	c.SetActionSink(func(a Action) {
		switch a.Kind {
		case FireIrq:
			order = append(order, "irq")
		case Nmi:
			order = append(order, "nmi")
		}
	})
	c.ScheduleIn(10, Action{Kind: Nmi})
	c.ScheduleIn(5, Action{Kind: FireIrq})
	c.Advance(20, bus)
	if len(order) != 2 || order[0] != "irq" || order[1] != "nmi" {
		t.Errorf("order = %v, want [irq nmi]", order)
	}
}

func TestTieBreakByInsertion(t *testing.T) {
	c := New()
	bus := &pollBus{clock: c}
	var order []uint32
	c.SetActionSink(func(a Action) {
		order = append(order, a.Mcause)
	})
	// A then B at the same tick: A must fire first.
	c.ScheduleIn(7, Action{Kind: Nmi, Mcause: 1})
	c.ScheduleIn(7, Action{Kind: Nmi, Mcause: 2})
	c.Advance(7, bus)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("order = %v, want [1 2]", order)
	}
}

func TestPollOncePerBatch(t *testing.T) {
	c := New()
	bus := &pollBus{clock: c}
	c.ScheduleIn(4, Action{Kind: Poll})
	c.ScheduleIn(4, Action{Kind: Poll})
	c.ScheduleIn(9, Action{Kind: Poll})
	c.Advance(10, bus)
	if len(bus.polls) != 2 {
		t.Fatalf("polls = %v, want one per unique tick", bus.polls)
	}
	if bus.polls[0] != 4 || bus.polls[1] != 9 {
		t.Errorf("poll ticks = %v, want [4 9]", bus.polls)
	}
}

func TestCancel(t *testing.T) {
	c := New()
	bus := &pollBus{clock: c}
	fired := 0
	c.SetActionSink(func(Action) { fired++ })
	h := c.ScheduleIn(5, Action{Kind: Nmi})
	c.Cancel(h)
	c.Cancel(h) // idempotent
	c.Advance(10, bus)
	if fired != 0 {
		t.Errorf("cancelled action fired %d times", fired)
	}
	// Cancelling after the fact is a no-op.
	h2 := c.ScheduleIn(1, Action{Kind: Nmi})
	c.Advance(5, bus)
	c.Cancel(h2)
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
}

func TestTimerFiredOnce(t *testing.T) {
	c := New()
	bus := &pollBus{clock: c}
	timer := NewTimer(c)
	h := timer.SchedulePollIn(3)
	if timer.Fired(&h) {
		t.Fatal("fired before due")
	}
	c.Advance(3, bus)
	if !timer.Fired(&h) {
		t.Fatal("not fired at due tick")
	}
	if timer.Fired(&h) {
		t.Fatal("fired twice")
	}
	if h != nil {
		t.Fatal("handle not cleared")
	}
}

func TestScheduleOverflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("no panic on overflow schedule")
		}
	}()
	c := New()
	c.ScheduleIn(1<<63, Action{Kind: Poll})
}

func TestPending(t *testing.T) {
	c := New()
	bus := &pollBus{clock: c}
	if c.Pending() {
		t.Error("pending on empty clock")
	}
	h := c.ScheduleIn(5, Action{Kind: Poll})
	if !c.Pending() {
		t.Error("not pending after schedule")
	}
	c.Cancel(h)
	if c.Pending() {
		t.Error("pending after cancel")
	}
	c.Advance(10, bus)
	if c.Pending() {
		t.Error("pending after drain")
	}
}
