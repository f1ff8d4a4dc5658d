package pic

/*
 * Caliptra MCU emulator - Interrupt controller tests
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

func TestLevelAndEnable(t *testing.T) {
	p := New()
	irq := p.RegisterIrq(9)
	if p.AnyPending() {
		t.Fatal("pending with no levels")
	}
	irq.SetLevel(true)
	if p.AnyPending() {
		t.Fatal("disabled line reported pending")
	}
	p.enable[9] = true
	if !p.AnyPending() {
		t.Fatal("enabled asserted line not pending")
	}
	n, ok := p.HighestPending()
	if !ok || n != 9 {
		t.Fatalf("highest = %d,%v", n, ok)
	}
	irq.SetLevel(false)
	if p.AnyPending() {
		t.Fatal("pending after level lowered")
	}
}

func TestHighestNumbered(t *testing.T) {
	p := New()
	a := p.RegisterIrq(3)
	b := p.RegisterIrq(60)
	p.enable[3] = true
	p.enable[60] = true
	a.SetLevel(true)
	b.SetLevel(true)
	if n, _ := p.HighestPending(); n != 60 {
		t.Errorf("highest = %d, want 60", n)
	}
	b.SetLevel(false)
	if n, _ := p.HighestPending(); n != 3 {
		t.Errorf("highest = %d, want 3", n)
	}
}

func TestDoubleRegisterPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("no panic on double registration")
		}
	}()
	p := New()
	p.RegisterIrq(5)
	p.RegisterIrq(5)
}

func TestRegisterWindow(t *testing.T) {
	p := New()
	irq := p.RegisterIrq(12)
	bus := &Bus{Pic: p}

	// Enable line 12 through meie.
	if err := bus.Write(rvbus.Word, 0x2000+4*12, 1); err != nil {
		t.Fatal(err)
	}
	irq.SetLevel(true)
	if !p.AnyPending() {
		t.Fatal("line not pending after meie write")
	}

	// meip reads the level.
	v, err := bus.Read(rvbus.Word, 0x1000+4*12)
	if err != nil || v != 1 {
		t.Fatalf("meip = %d, %v", v, err)
	}
	// Writes to meip are dropped.
	if err := bus.Write(rvbus.Word, 0x1000+4*12, 0); err != nil {
		t.Fatal(err)
	}
	if !p.Level(12) {
		t.Fatal("meip write changed level")
	}

	// Priority register round trips.
	if err := bus.Write(rvbus.Word, 4*12, 7); err != nil {
		t.Fatal(err)
	}
	v, _ = bus.Read(rvbus.Word, 4*12)
	if v != 7 {
		t.Errorf("meipl = %d, want 7", v)
	}

	// Sub-word access faults.
	if _, err := bus.Read(rvbus.Byte, 0); err != rvbus.LoadAccessFault {
		t.Errorf("byte read error = %v", err)
	}
}
