package mci

/*
 * Caliptra MCU emulator - MCI bus adapter
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

// Generated from the MCI register map. The two MCU mailboxes are windows
// inside the MCI region; their CSR banks sit above a shared SRAM aperture.

import (
	"github.com/chipsalliance/caliptra-mcu-emu/emu/mailbox"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

// MCI register offsets.
const (
	HwRevIDOffset         uint32 = 0x000
	FwFlowStatusOffset    uint32 = 0x010
	ResetReasonOffset     uint32 = 0x038
	ResetStatusOffset     uint32 = 0x040
	ResetRequestOffset    uint32 = 0x048
	WdtTimer1EnOffset     uint32 = 0x0b0
	WdtTimer1CtrlOffset   uint32 = 0x0b4
	WdtTimer1Period0Offset uint32 = 0x0b8
	WdtTimer1Period1Offset uint32 = 0x0bc
	WdtTimer2EnOffset     uint32 = 0x0c0
	WdtTimer2CtrlOffset   uint32 = 0x0c4
	WdtTimer2Period0Offset uint32 = 0x0c8
	WdtTimer2Period1Offset uint32 = 0x0cc
	WdtStatusOffset       uint32 = 0x0d0
	WdtCfg0Offset         uint32 = 0x0d4
	WdtCfg1Offset         uint32 = 0x0d8
	Error0IntrOffset      uint32 = 0x100
	Notif0IntrEnOffset    uint32 = 0x104
	Notif0IntrOffset      uint32 = 0x108

	// Mailbox windows inside the MCI region.
	Mbox0Offset uint32 = 0x40_0000
	Mbox1Offset uint32 = 0x80_0000
	MboxWindow  uint32 = 0x40_0000

	// Offsets inside a mailbox window.
	MboxSramOffset            uint32 = 0x00_0000
	MboxLockOffset            uint32 = 0x20_0000
	MboxUserOffset            uint32 = 0x20_0004
	MboxTargetUserOffset      uint32 = 0x20_0008
	MboxTargetUserValidOffset uint32 = 0x20_000c
	MboxCmdOffset             uint32 = 0x20_0010
	MboxDlenOffset            uint32 = 0x20_0014
	MboxExecuteOffset         uint32 = 0x20_0018
	MboxTargetStatusOffset    uint32 = 0x20_001c
	MboxCmdStatusOffset       uint32 = 0x20_0020
	MboxHwStatusOffset        uint32 = 0x20_0024
)

// Bus decodes the MCI window. Accesses arriving here come from the MCU core,
// so mailbox lock reads latch the MCU requester id.
type Bus struct {
	Periph    *Mci
	Requester mailbox.RequesterID
}

func (b *Bus) Read(size rvbus.Size, addr uint32) (uint32, error) {
	if size != rvbus.Word {
		return 0, rvbus.LoadAccessFault
	}
	switch {
	case addr >= Mbox1Offset && addr < Mbox1Offset+MboxWindow:
		return b.mboxRead(b.Periph.Mbox1, addr-Mbox1Offset)
	case addr >= Mbox0Offset && addr < Mbox0Offset+MboxWindow:
		return b.mboxRead(b.Periph.Mbox0, addr-Mbox0Offset)
	}
	switch addr {
	case HwRevIDOffset:
		return b.Periph.ReadHwRevID(), nil
	case FwFlowStatusOffset:
		return b.Periph.ReadFwFlowStatus(), nil
	case ResetReasonOffset:
		return b.Periph.ReadResetReason(), nil
	case ResetStatusOffset:
		return b.Periph.ReadResetStatus(), nil
	case ResetRequestOffset:
		return 0, nil
	case WdtTimer1EnOffset:
		return b.Periph.ReadWdtTimer1En(), nil
	case WdtTimer1CtrlOffset:
		return b.Periph.ReadWdtTimer1Ctrl(), nil
	case WdtTimer1Period0Offset:
		return b.Periph.ReadWdtTimer1Period(0), nil
	case WdtTimer1Period1Offset:
		return b.Periph.ReadWdtTimer1Period(1), nil
	case WdtTimer2EnOffset:
		return b.Periph.ReadWdtTimer2En(), nil
	case WdtTimer2CtrlOffset:
		return b.Periph.ReadWdtTimer2Ctrl(), nil
	case WdtTimer2Period0Offset:
		return b.Periph.ReadWdtTimer2Period(0), nil
	case WdtTimer2Period1Offset:
		return b.Periph.ReadWdtTimer2Period(1), nil
	case WdtStatusOffset:
		return b.Periph.ReadWdtStatus(), nil
	case WdtCfg0Offset:
		return b.Periph.ReadWdtCfg(0), nil
	case WdtCfg1Offset:
		return b.Periph.ReadWdtCfg(1), nil
	case Error0IntrOffset:
		return b.Periph.ReadError0Intr(), nil
	case Notif0IntrEnOffset:
		return b.Periph.ReadNotif0IntrEn(), nil
	case Notif0IntrOffset:
		return b.Periph.ReadNotif0Intr(), nil
	default:
		return 0, rvbus.LoadAccessFault
	}
}

func (b *Bus) Write(size rvbus.Size, addr uint32, value uint32) error {
	if size != rvbus.Word {
		return rvbus.StoreAccessFault
	}
	switch {
	case addr >= Mbox1Offset && addr < Mbox1Offset+MboxWindow:
		return b.mboxWrite(b.Periph.Mbox1, addr-Mbox1Offset, value)
	case addr >= Mbox0Offset && addr < Mbox0Offset+MboxWindow:
		return b.mboxWrite(b.Periph.Mbox0, addr-Mbox0Offset, value)
	}
	switch addr {
	case FwFlowStatusOffset:
		b.Periph.WriteFwFlowStatus(value)
	case ResetReasonOffset:
		b.Periph.WriteResetReason(value)
	case ResetRequestOffset:
		b.Periph.WriteResetRequest(value)
	case WdtTimer1EnOffset:
		b.Periph.WriteWdtTimer1En(value)
	case WdtTimer1CtrlOffset:
		b.Periph.WriteWdtTimer1Ctrl(value)
	case WdtTimer1Period0Offset:
		b.Periph.WriteWdtTimer1Period(0, value)
	case WdtTimer1Period1Offset:
		b.Periph.WriteWdtTimer1Period(1, value)
	case WdtTimer2EnOffset:
		b.Periph.WriteWdtTimer2En(value)
	case WdtTimer2CtrlOffset:
		b.Periph.WriteWdtTimer2Ctrl(value)
	case WdtTimer2Period0Offset:
		b.Periph.WriteWdtTimer2Period(0, value)
	case WdtTimer2Period1Offset:
		b.Periph.WriteWdtTimer2Period(1, value)
	case WdtCfg0Offset:
		b.Periph.WriteWdtCfg(0, value)
	case WdtCfg1Offset:
		b.Periph.WriteWdtCfg(1, value)
	case Notif0IntrEnOffset:
		b.Periph.WriteNotif0IntrEn(value)
	case Notif0IntrOffset:
		b.Periph.WriteNotif0Intr(value)
	case HwRevIDOffset, ResetStatusOffset, WdtStatusOffset, Error0IntrOffset:
		// Read only.
	default:
		return rvbus.StoreAccessFault
	}
	return nil
}

func (b *Bus) mboxRead(mb *mailbox.Mailbox, off uint32) (uint32, error) {
	if mb == nil {
		return 0, rvbus.LoadAccessFault
	}
	if off < MboxLockOffset {
		return mb.ReadSram(off / 4), nil
	}
	switch off {
	case MboxLockOffset:
		return mb.ReadLock(b.Requester), nil
	case MboxUserOffset:
		return mb.ReadUser(), nil
	case MboxTargetUserOffset:
		return mb.ReadTargetUser(), nil
	case MboxTargetUserValidOffset:
		return mb.ReadTargetUserValid(), nil
	case MboxCmdOffset:
		return mb.ReadCmd(), nil
	case MboxDlenOffset:
		return mb.ReadDlen(), nil
	case MboxExecuteOffset:
		return mb.ReadExecute(), nil
	case MboxTargetStatusOffset:
		return mb.ReadTargetStatus(), nil
	case MboxCmdStatusOffset:
		return mb.ReadCmdStatus(), nil
	case MboxHwStatusOffset:
		return mb.ReadHwStatus(), nil
	default:
		return 0, rvbus.LoadAccessFault
	}
}

func (b *Bus) mboxWrite(mb *mailbox.Mailbox, off uint32, value uint32) error {
	if mb == nil {
		return rvbus.StoreAccessFault
	}
	if off < MboxLockOffset {
		mb.WriteSram(off/4, value)
		return nil
	}
	switch off {
	case MboxTargetUserOffset:
		mb.WriteTargetUser(value)
	case MboxTargetUserValidOffset:
		mb.WriteTargetUserValid(value)
	case MboxCmdOffset:
		mb.WriteCmd(value)
	case MboxDlenOffset:
		mb.WriteDlen(value)
	case MboxExecuteOffset:
		mb.WriteExecute(value)
	case MboxTargetStatusOffset:
		mb.WriteTargetStatus(value)
	case MboxCmdStatusOffset:
		mb.WriteCmdStatus(value)
	case MboxLockOffset, MboxUserOffset, MboxHwStatusOffset:
		// Read only.
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
