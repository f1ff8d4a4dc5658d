package machine

/*
 * Caliptra MCU emulator - Caliptra mailbox window
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

// The Caliptra mailbox flavor streams its payload through data in/out ports
// with internal pointers instead of a directly addressed SRAM. The register
// file underneath is the shared mailbox state, so the security core and SoC
// agents see the same session.

import (
	"github.com/chipsalliance/caliptra-mcu-emu/emu/mailbox"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

// Caliptra mailbox register offsets.
const (
	calMboxLockOffset    uint32 = 0x00
	calMboxUserOffset    uint32 = 0x04
	calMboxCmdOffset     uint32 = 0x08
	calMboxDlenOffset    uint32 = 0x0c
	calMboxDataInOffset  uint32 = 0x10
	calMboxDataOutOffset uint32 = 0x14
	calMboxExecuteOffset uint32 = 0x18
	calMboxStatusOffset  uint32 = 0x1c
)

// calMailboxBus adapts the shared mailbox state to the Caliptra port style.
type calMailboxBus struct {
	mbox      *mailbox.Mailbox
	requester mailbox.RequesterID

	wrPtr uint32
	rdPtr uint32
}

func (b *calMailboxBus) Read(size rvbus.Size, addr uint32) (uint32, error) {
	if size != rvbus.Word {
		return 0, rvbus.LoadAccessFault
	}
	switch addr {
	case calMboxLockOffset:
		locked := b.mbox.ReadLock(b.requester)
		if locked == 0 {
			b.wrPtr = 0
			b.rdPtr = 0
		}
		return locked, nil
	case calMboxUserOffset:
		return b.mbox.ReadUser(), nil
	case calMboxCmdOffset:
		return b.mbox.ReadCmd(), nil
	case calMboxDlenOffset:
		return b.mbox.ReadDlen(), nil
	case calMboxDataOutOffset:
		w := b.mbox.ReadSram(b.rdPtr)
		b.rdPtr++
		return w, nil
	case calMboxExecuteOffset:
		return b.mbox.ReadExecute(), nil
	case calMboxStatusOffset:
		return b.mbox.ReadCmdStatus(), nil
	case calMboxDataInOffset:
		return 0, nil
	default:
		return 0, rvbus.LoadAccessFault
	}
}

func (b *calMailboxBus) Write(size rvbus.Size, addr uint32, value uint32) error {
	if size != rvbus.Word {
		return rvbus.StoreAccessFault
	}
	switch addr {
	case calMboxCmdOffset:
		b.mbox.WriteCmd(value)
	case calMboxDlenOffset:
		b.mbox.WriteDlen(value)
	case calMboxDataInOffset:
		b.mbox.WriteSram(b.wrPtr, value)
		b.wrPtr++
	case calMboxExecuteOffset:
		b.mbox.WriteExecute(value)
		if value&1 == 0 {
			b.wrPtr = 0
			b.rdPtr = 0
		}
	case calMboxStatusOffset:
		b.mbox.WriteCmdStatus(value)
	case calMboxLockOffset, calMboxUserOffset, calMboxDataOutOffset:
		// Read only.
	default:
		return rvbus.StoreAccessFault
	}
	return nil
}

func (b *calMailboxBus) Poll()        {}
func (b *calMailboxBus) WarmReset()   { b.wrPtr, b.rdPtr = 0, 0 }
func (b *calMailboxBus) UpdateReset() {}
