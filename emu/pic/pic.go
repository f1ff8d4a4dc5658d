package pic

/*
 * Caliptra MCU emulator - Platform interrupt controller
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
	"fmt"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

// Lines is the number of external interrupt lines the controller carries.
const Lines = 64

// Register window layout, one word per line per block.
const (
	meiplBase uint32 = 0x0000 // priority level, read/write
	meipBase  uint32 = 0x1000 // pending level, read only
	meieBase  uint32 = 0x2000 // enable, read/write
)

// Pic owns the level state of every external interrupt line. Peripherals
// mutate lines only through Irq handles; the CPU reads the aggregated output.
type Pic struct {
	level      [Lines]bool
	enable     [Lines]bool
	priority   [Lines]uint32
	registered [Lines]bool
}

func New() *Pic {
	return &Pic{}
}

// RegisterIrq hands out the owning handle for a line. Claiming the same line
// twice is a wiring bug.
func (p *Pic) RegisterIrq(n uint8) *Irq {
	if int(n) >= Lines {
		panic(fmt.Sprintf("pic: irq %d out of range", n))
	}
	if p.registered[n] {
		panic(fmt.Sprintf("pic: irq %d registered twice", n))
	}
	p.registered[n] = true
	return &Irq{pic: p, n: n}
}

// Registered reports whether a line already has an owner.
func (p *Pic) Registered(n uint8) bool {
	return int(n) < Lines && p.registered[n]
}

// HighestPending returns the highest numbered line that is asserted and
// enabled, which is the line the CPU claims.
func (p *Pic) HighestPending() (uint8, bool) {
	for n := Lines - 1; n >= 0; n-- {
		if p.level[n] && p.enable[n] {
			return uint8(n), true
		}
	}
	return 0, false
}

// AnyPending reports whether the external interrupt output to the CPU is
// asserted.
func (p *Pic) AnyPending() bool {
	_, ok := p.HighestPending()
	return ok
}

// Level reports the raw state of one line, enabled or not.
func (p *Pic) Level(n uint8) bool {
	return int(n) < Lines && p.level[n]
}

// Irq is the write capability for a single line.
type Irq struct {
	pic *Pic
	n   uint8
}

func (i *Irq) SetLevel(level bool) {
	i.pic.level[i.n] = level
}

func (i *Irq) Line() uint8 {
	return i.n
}

// Bus adapts the controller's register window onto the memory bus, VeeR EL2
// style: meipl, meip, meie blocks of one word per line.
type Bus struct {
	Pic *Pic
}

func (b *Bus) line(addr, base uint32) (int, bool) {
	off := addr - base
	if off%4 != 0 {
		return 0, false
	}
	n := int(off / 4)
	if n >= Lines {
		return 0, false
	}
	return n, true
}

func (b *Bus) Read(size rvbus.Size, addr uint32) (uint32, error) {
	if size != rvbus.Word {
		return 0, rvbus.LoadAccessFault
	}
	switch {
	case addr >= meieBase:
		if n, ok := b.line(addr, meieBase); ok {
			if b.Pic.enable[n] {
				return 1, nil
			}
			return 0, nil
		}
	case addr >= meipBase:
		if n, ok := b.line(addr, meipBase); ok {
			if b.Pic.level[n] {
				return 1, nil
			}
			return 0, nil
		}
	default:
		if n, ok := b.line(addr, meiplBase); ok {
			return b.Pic.priority[n], nil
		}
	}
	return 0, rvbus.LoadAccessFault
}

func (b *Bus) Write(size rvbus.Size, addr uint32, value uint32) error {
	if size != rvbus.Word {
		return rvbus.StoreAccessFault
	}
	switch {
	case addr >= meieBase:
		if n, ok := b.line(addr, meieBase); ok {
			b.Pic.enable[n] = value&1 != 0
			return nil
		}
	case addr >= meipBase:
		// Pending state is owned by the peripherals.
		if _, ok := b.line(addr, meipBase); ok {
			return nil
		}
	default:
		if n, ok := b.line(addr, meiplBase); ok {
			b.Pic.priority[n] = value & 0xf
			return nil
		}
	}
	return rvbus.StoreAccessFault
}

func (b *Bus) Poll()        {}
func (b *Bus) WarmReset()   {}
func (b *Bus) UpdateReset() {}
