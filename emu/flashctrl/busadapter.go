package flashctrl

/*
 * Caliptra MCU emulator - Flash controller bus adapter
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

// Generated from the flash controller register map.

import (
	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

// Register offsets.
const (
	IntStateOffset   uint32 = 0x00
	IntEnableOffset  uint32 = 0x04
	PageSizeOffset   uint32 = 0x08
	PageNumOffset    uint32 = 0x0c
	PageAddrOffset   uint32 = 0x10
	ControlOffset    uint32 = 0x14
	OpStatusOffset   uint32 = 0x18
	CtrlRegwenOffset uint32 = 0x1c
)

// Bus decodes window relative accesses into register accessors.
type Bus struct {
	Periph *FlashCtrl
}

func (b *Bus) Read(size rvbus.Size, addr uint32) (uint32, error) {
	if size != rvbus.Word {
		return 0, rvbus.LoadAccessFault
	}
	switch addr {
	case IntStateOffset:
		return b.Periph.ReadIntrState(), nil
	case IntEnableOffset:
		return b.Periph.ReadIntrEnable(), nil
	case PageSizeOffset:
		return b.Periph.ReadPageSize(), nil
	case PageNumOffset:
		return b.Periph.ReadPageNum(), nil
	case PageAddrOffset:
		return b.Periph.ReadPageAddr(), nil
	case ControlOffset:
		return b.Periph.ReadControl(), nil
	case OpStatusOffset:
		return b.Periph.ReadOpStatus(), nil
	case CtrlRegwenOffset:
		return b.Periph.ReadCtrlRegwen(), nil
	default:
		return 0, rvbus.LoadAccessFault
	}
}

func (b *Bus) Write(size rvbus.Size, addr uint32, value uint32) error {
	if size != rvbus.Word {
		return rvbus.StoreAccessFault
	}
	switch addr {
	case IntStateOffset:
		b.Periph.WriteIntrState(value)
	case IntEnableOffset:
		b.Periph.WriteIntrEnable(value)
	case PageSizeOffset:
		b.Periph.WritePageSize(value)
	case PageNumOffset:
		b.Periph.WritePageNum(value)
	case PageAddrOffset:
		b.Periph.WritePageAddr(value)
	case ControlOffset:
		b.Periph.WriteControl(value)
	case OpStatusOffset:
		b.Periph.WriteOpStatus(value)
	case CtrlRegwenOffset:
		// Hardware managed, writes dropped.
	default:
		return rvbus.StoreAccessFault
	}
	return nil
}

func (b *Bus) Poll() {
	b.Periph.Poll()
}

func (b *Bus) WarmReset() {
	b.Periph.WarmReset()
}

func (b *Bus) UpdateReset() {
	b.Periph.UpdateReset()
}
