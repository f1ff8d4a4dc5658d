package dma

/*
 * Caliptra MCU emulator - DMA engine
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

/*
   Block mover between the DMA RAM and the external test SRAM. Firmware
   stages source, destination and byte count, then sets the go bit; the copy
   lands after a fixed delay and completion or failure is reported through
   the event and error interrupt lines. Addresses are bus addresses; both
   regions are lent to the engine through set DMA RAM hooks.
*/

import (
	"github.com/chipsalliance/caliptra-mcu-emu/emu/clock"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/pic"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

// Register offsets.
const (
	SrcAddrOffset uint32 = 0x00
	DstAddrOffset uint32 = 0x04
	LenOffset     uint32 = 0x08
	CtrlOffset    uint32 = 0x0c
	StatusOffset  uint32 = 0x10
)

// Status bits.
const (
	StatusDone  uint32 = 1 << 0
	StatusError uint32 = 1 << 1
	StatusBusy  uint32 = 1 << 2
)

const transferDelay = 10

// region is one memory window lent to the engine.
type region struct {
	ram  *rvbus.Ram
	base uint32
}

func (r region) contains(addr, size uint32) bool {
	return r.ram != nil && addr >= r.base && addr+size <= r.base+r.ram.Len() &&
		addr+size >= addr
}

// Dma is the engine.
type Dma struct {
	timer clock.Timer

	errorIrq *pic.Irq
	eventIrq *pic.Irq

	regions []region

	src    uint32
	dst    uint32
	length uint32
	status uint32

	transfer *clock.ActionHandle
}

func New(clk *clock.Clock, errorIrq, eventIrq *pic.Irq) *Dma {
	return &Dma{
		timer:    clock.NewTimer(clk),
		errorIrq: errorIrq,
		eventIrq: eventIrq,
	}
}

// SetDmaRam lends a memory region to the engine at its bus base address.
func (d *Dma) SetDmaRam(ram *rvbus.Ram, base uint32) {
	d.regions = append(d.regions, region{ram: ram, base: base})
}

func (d *Dma) find(addr, size uint32) *region {
	for i := range d.regions {
		if d.regions[i].contains(addr, size) {
			return &d.regions[i]
		}
	}
	return nil
}

func (d *Dma) Read(size rvbus.Size, addr uint32) (uint32, error) {
	if size != rvbus.Word {
		return 0, rvbus.LoadAccessFault
	}
	switch addr {
	case SrcAddrOffset:
		return d.src, nil
	case DstAddrOffset:
		return d.dst, nil
	case LenOffset:
		return d.length, nil
	case CtrlOffset:
		return 0, nil
	case StatusOffset:
		return d.status, nil
	default:
		return 0, rvbus.LoadAccessFault
	}
}

func (d *Dma) Write(size rvbus.Size, addr uint32, value uint32) error {
	if size != rvbus.Word {
		return rvbus.StoreAccessFault
	}
	switch addr {
	case SrcAddrOffset:
		d.src = value
	case DstAddrOffset:
		d.dst = value
	case LenOffset:
		d.length = value
	case CtrlOffset:
		if value&1 != 0 && d.status&StatusBusy == 0 {
			d.status = StatusBusy
			d.transfer = d.timer.SchedulePollIn(transferDelay)
		}
	case StatusOffset:
		// Write one to clear the completion bits.
		d.status &^= value & (StatusDone | StatusError)
		if d.status&StatusDone == 0 {
			d.eventIrq.SetLevel(false)
		}
		if d.status&StatusError == 0 {
			d.errorIrq.SetLevel(false)
		}
	default:
		return rvbus.StoreAccessFault
	}
	return nil
}

// Poll completes a pending transfer.
func (d *Dma) Poll() {
	if !d.timer.Fired(&d.transfer) {
		return
	}
	src := d.find(d.src, d.length)
	dst := d.find(d.dst, d.length)
	if src == nil || dst == nil || d.length == 0 {
		d.status = StatusError
		d.errorIrq.SetLevel(true)
		return
	}
	copy(dst.ram.Data()[d.dst-dst.base:d.dst-dst.base+d.length],
		src.ram.Data()[d.src-src.base:d.src-src.base+d.length])
	d.status = StatusDone
	d.eventIrq.SetLevel(true)
}

func (d *Dma) WarmReset() {
	d.status = 0
	d.timer.Cancel(d.transfer)
	d.transfer = nil
}

func (d *Dma) UpdateReset() {}
