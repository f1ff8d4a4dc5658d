package doe

/*
 * Caliptra MCU emulator - DOE mailbox peripheral
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
   Data object exchange mailbox. The host side pushes whole data objects
   which firmware drains word by word; firmware responses travel the other
   way. Arrival of a host object raises the event interrupt.
*/

import (
	"sync"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/pic"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

// Register offsets.
const (
	StatusOffset  uint32 = 0x00
	DataInOffset  uint32 = 0x04
	DataOutOffset uint32 = 0x08
	CtrlOffset    uint32 = 0x0c
)

// Status bits.
const (
	StatusDataReady uint32 = 1 << 0
	StatusTxFull    uint32 = 1 << 1
)

// Ctrl bits.
const (
	CtrlObjectDone uint32 = 1 << 0
)

// Doe is the mailbox. The host side queue is mutex guarded so test drivers
// on other goroutines can push objects.
type Doe struct {
	mu sync.Mutex

	eventIrq *pic.Irq

	// Inbound data objects, word streams popped by firmware.
	inbound [][]uint32
	rdPos   int

	// Outbound object under construction by firmware.
	outbound []uint32
	done     [][]uint32
}

func New(eventIrq *pic.Irq) *Doe {
	return &Doe{eventIrq: eventIrq}
}

// PushObject queues a data object for firmware and raises the event line.
func (d *Doe) PushObject(words []uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inbound = append(d.inbound, append([]uint32(nil), words...))
	d.eventIrq.SetLevel(true)
}

// PopResponse returns the oldest completed firmware object.
func (d *Doe) PopResponse() ([]uint32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.done) == 0 {
		return nil, false
	}
	obj := d.done[0]
	d.done = d.done[1:]
	return obj, true
}

func (d *Doe) Read(size rvbus.Size, addr uint32) (uint32, error) {
	if size != rvbus.Word {
		return 0, rvbus.LoadAccessFault
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	switch addr {
	case StatusOffset:
		var s uint32
		if len(d.inbound) > 0 {
			s |= StatusDataReady
		}
		return s, nil
	case DataInOffset:
		if len(d.inbound) == 0 {
			return 0, nil
		}
		obj := d.inbound[0]
		if d.rdPos >= len(obj) {
			return 0, nil
		}
		w := obj[d.rdPos]
		d.rdPos++
		if d.rdPos >= len(obj) {
			d.inbound = d.inbound[1:]
			d.rdPos = 0
			if len(d.inbound) == 0 {
				d.eventIrq.SetLevel(false)
			}
		}
		return w, nil
	case DataOutOffset, CtrlOffset:
		return 0, nil
	default:
		return 0, rvbus.LoadAccessFault
	}
}

func (d *Doe) Write(size rvbus.Size, addr uint32, value uint32) error {
	if size != rvbus.Word {
		return rvbus.StoreAccessFault
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	switch addr {
	case DataOutOffset:
		d.outbound = append(d.outbound, value)
	case CtrlOffset:
		if value&CtrlObjectDone != 0 && len(d.outbound) > 0 {
			d.done = append(d.done, d.outbound)
			d.outbound = nil
		}
	case StatusOffset, DataInOffset:
		// Read only.
	default:
		return rvbus.StoreAccessFault
	}
	return nil
}

func (d *Doe) Poll()        {}
func (d *Doe) WarmReset()   {}
func (d *Doe) UpdateReset() {}
