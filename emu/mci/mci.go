package mci

/*
 * Caliptra MCU emulator - MCI peripheral
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
   The MCI block carries the MCU's housekeeping: firmware flow status, reset
   reason and request, the two cascaded watchdog timers and the notification
   interrupt block that fans the mailbox doorbells into one external
   interrupt line. The two MCU mailboxes are windows inside the MCI region;
   their register files live in the mailbox package and are shared with out
   of band requesters.

   Watchdog cascade: timer1 expiry latches T1Timeout. If timer2 is disabled
   it is borrowed as the second stage and armed with its period; its expiry
   then raises an NMI. If firmware enabled timer2 itself, its expiry only
   latches status.
*/

import (
	"log/slog"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/clock"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/mailbox"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/pic"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/regs"
)

// Watchdog status bits.
var (
	WdtT1Timeout = regs.Bit(0)
	WdtT2Timeout = regs.Bit(1)
)

// Notification interrupt bits, enable and status share the layout.
var (
	NotifCmdAvail   = regs.Bit(0)
	NotifTargetDone = regs.Bit(1)
)

// Reset reason bits.
var (
	ResetReasonPowerUp     = regs.Bit(0)
	ResetReasonWarm        = regs.Bit(1)
	ResetReasonFwBoot      = regs.Bit(2)
	ResetReasonFwHitless   = regs.Bit(3)
)

const (
	hwRevID = 0x1000

	resetStatusMcuMask uint32 = 0x2

	// NMIs do not fire immediately; a couple of instructions is a typical
	// delay on VeeR.
	nmiDelay = 2

	nmiCauseWdtTimeout uint32 = 0x0000_0000
)

// Mci is the MCI peripheral bound to the MCU core's interrupt line.
type Mci struct {
	timer clock.Timer
	irq   *pic.Irq

	fwFlowStatus uint32
	resetReason  regs.RW
	resetStatus  uint32

	wdtTimer1En      regs.RW
	wdtTimer1Ctrl    regs.RW
	wdtTimer1Period  [2]uint32
	wdtTimer2En      regs.RW
	wdtTimer2Ctrl    regs.RW
	wdtTimer2Period  [2]uint32
	wdtStatus        regs.RW
	wdtCfg           [2]uint32
	error0Intr       regs.RW
	notif0IntrEn     regs.RW
	notif0Intr       regs.RW

	wdtTimer1Expired *clock.ActionHandle
	wdtTimer2Expired *clock.ActionHandle
	mcuResetRequest  *clock.ActionHandle
	assertMcuReset   *clock.ActionHandle
	deassertMcuReset *clock.ActionHandle

	Mbox0 *mailbox.Mailbox
	Mbox1 *mailbox.Mailbox
}

// New wires the MCI to the shared clock, its notification interrupt line and
// the two mailbox register files.
func New(clk *clock.Clock, irq *pic.Irq, mbox0, mbox1 *mailbox.Mailbox) *Mci {
	m := &Mci{
		timer: clock.NewTimer(clk),
		irq:   irq,
		Mbox0: mbox0,
		Mbox1: mbox1,
	}
	m.resetReason.SetBits(ResetReasonPowerUp.Mask)
	return m
}

func (m *Mci) ReadHwRevID() uint32 {
	return hwRevID
}

func (m *Mci) ReadFwFlowStatus() uint32 {
	return m.fwFlowStatus
}

func (m *Mci) WriteFwFlowStatus(val uint32) {
	m.fwFlowStatus = val
}

func (m *Mci) ReadResetReason() uint32 {
	return m.resetReason.Get()
}

func (m *Mci) WriteResetReason(val uint32) {
	m.resetReason.Set(val)
}

func (m *Mci) ReadResetStatus() uint32 {
	return m.resetStatus
}

// WriteResetRequest starts the MCU reset sequence.
func (m *Mci) WriteResetRequest(val uint32) {
	if val&1 == 0 {
		return
	}
	if m.mcuResetRequest == nil {
		m.mcuResetRequest = m.timer.SchedulePollIn(10)
	}
}

func (m *Mci) wdt1Period() uint64 {
	return uint64(m.wdtTimer1Period[1])<<32 | uint64(m.wdtTimer1Period[0])
}

func (m *Mci) wdt2Period() uint64 {
	return uint64(m.wdtTimer2Period[1])<<32 | uint64(m.wdtTimer2Period[0])
}

func (m *Mci) ReadWdtTimer1En() uint32 {
	return m.wdtTimer1En.Get()
}

func (m *Mci) WriteWdtTimer1En(val uint32) {
	m.wdtTimer1En.Set(val & 1)
	m.wdtStatus.ClearBits(WdtT1Timeout.Mask)
	if m.wdtTimer1En.IsSet(regs.Bit(0)) {
		m.wdtTimer1Expired = m.timer.SchedulePollIn(m.wdt1Period())
	} else {
		m.timer.Cancel(m.wdtTimer1Expired)
		m.wdtTimer1Expired = nil
	}
}

func (m *Mci) ReadWdtTimer1Ctrl() uint32 {
	return m.wdtTimer1Ctrl.Get()
}

// WriteWdtTimer1Ctrl restarts the running timer when the restart bit is set.
func (m *Mci) WriteWdtTimer1Ctrl(val uint32) {
	if val&1 != 0 && m.wdtTimer1En.IsSet(regs.Bit(0)) {
		m.wdtStatus.ClearBits(WdtT1Timeout.Mask)
		m.timer.Cancel(m.wdtTimer1Expired)
		m.wdtTimer1Expired = m.timer.SchedulePollIn(m.wdt1Period())
	}
}

func (m *Mci) ReadWdtTimer1Period(index int) uint32 {
	return m.wdtTimer1Period[index]
}

func (m *Mci) WriteWdtTimer1Period(index int, val uint32) {
	m.wdtTimer1Period[index] = val
}

func (m *Mci) ReadWdtTimer2En() uint32 {
	return m.wdtTimer2En.Get()
}

func (m *Mci) WriteWdtTimer2En(val uint32) {
	m.wdtTimer2En.Set(val & 1)
	m.wdtStatus.ClearBits(WdtT2Timeout.Mask)
	if m.wdtTimer2En.IsSet(regs.Bit(0)) {
		m.wdtTimer2Expired = m.timer.SchedulePollIn(m.wdt2Period())
	} else {
		m.timer.Cancel(m.wdtTimer2Expired)
		m.wdtTimer2Expired = nil
	}
}

func (m *Mci) ReadWdtTimer2Ctrl() uint32 {
	return m.wdtTimer2Ctrl.Get()
}

func (m *Mci) WriteWdtTimer2Ctrl(val uint32) {
	if val&1 != 0 && m.wdtTimer2En.IsSet(regs.Bit(0)) {
		m.wdtStatus.ClearBits(WdtT2Timeout.Mask)
		m.timer.Cancel(m.wdtTimer2Expired)
		m.wdtTimer2Expired = m.timer.SchedulePollIn(m.wdt2Period())
	}
}

func (m *Mci) ReadWdtTimer2Period(index int) uint32 {
	return m.wdtTimer2Period[index]
}

func (m *Mci) WriteWdtTimer2Period(index int, val uint32) {
	m.wdtTimer2Period[index] = val
}

func (m *Mci) ReadWdtStatus() uint32 {
	return m.wdtStatus.Get()
}

func (m *Mci) ReadWdtCfg(index int) uint32 {
	return m.wdtCfg[index]
}

func (m *Mci) WriteWdtCfg(index int, val uint32) {
	m.wdtCfg[index] = val
}

func (m *Mci) ReadError0Intr() uint32 {
	return m.error0Intr.Get()
}

func (m *Mci) ReadNotif0IntrEn() uint32 {
	return m.notif0IntrEn.Get()
}

func (m *Mci) WriteNotif0IntrEn(val uint32) {
	m.notif0IntrEn.Set(val)
}

func (m *Mci) ReadNotif0Intr() uint32 {
	return m.notif0Intr.Get()
}

// WriteNotif0Intr is write one to clear; when all bits clear the interrupt
// line drops.
func (m *Mci) WriteNotif0Intr(val uint32) {
	m.notif0Intr.ClearBits(val)
	if m.notif0Intr.Get() == 0 {
		m.irq.SetLevel(false)
	}
}

// Poll advances the watchdog cascade, the reset sequence and drains mailbox
// notifications into the interrupt block.
func (m *Mci) Poll() {
	if m.timer.Fired(&m.wdtTimer1Expired) {
		m.wdtStatus.SetBits(WdtT1Timeout.Mask)
		if !m.wdtTimer2En.IsSet(regs.Bit(0)) {
			// Borrow timer2 as the second stage.
			m.wdtStatus.ClearBits(WdtT2Timeout.Mask)
			m.wdtTimer2Expired = m.timer.SchedulePollIn(m.wdt2Period())
		}
	}

	if m.timer.Fired(&m.wdtTimer2Expired) {
		m.wdtStatus.SetBits(WdtT2Timeout.Mask)
		if !m.wdtTimer2En.IsSet(regs.Bit(0)) {
			m.timer.ScheduleActionIn(nmiDelay, clock.Action{
				Kind:   clock.Nmi,
				Mcause: nmiCauseWdtTimeout,
			})
		}
	}

	if m.timer.Fired(&m.mcuResetRequest) {
		slog.Info("mci: mcu reset requested")
		m.timer.ScheduleActionIn(100, clock.Action{Kind: clock.UpdateReset})
		m.wdtTimer2Expired = nil
		m.assertMcuReset = m.timer.SchedulePollIn(100)
	}
	if m.timer.Fired(&m.assertMcuReset) {
		m.resetStatus |= resetStatusMcuMask
		m.deassertMcuReset = m.timer.SchedulePollIn(1000)
	}
	if m.timer.Fired(&m.deassertMcuReset) {
		m.resetStatus &^= resetStatusMcuMask
		m.irq.SetLevel(false)
	}

	m.drainMailboxNotifs(m.Mbox0)
	m.drainMailboxNotifs(m.Mbox1)
}

func (m *Mci) drainMailboxNotifs(mb *mailbox.Mailbox) {
	if mb == nil {
		return
	}
	for {
		ev, ok := mb.TakeNotif()
		if !ok {
			return
		}
		switch ev {
		case mailbox.NotifCmdAvailable:
			if m.notif0IntrEn.IsSet(NotifCmdAvail) {
				m.notif0Intr.SetBits(NotifCmdAvail.Mask)
			}
		case mailbox.NotifTargetDone:
			if m.notif0IntrEn.IsSet(NotifTargetDone) {
				m.notif0Intr.SetBits(NotifTargetDone.Mask)
			}
		}
		if m.notif0Intr.Get() != 0 {
			m.irq.SetLevel(true)
		}
	}
}

// WarmReset clears the mailbox protocol state and latches the reason.
func (m *Mci) WarmReset() {
	m.resetReason.SetBits(ResetReasonWarm.Mask)
	if m.Mbox0 != nil {
		m.Mbox0.Reset()
	}
	if m.Mbox1 != nil {
		m.Mbox1.Reset()
	}
}

func (m *Mci) UpdateReset() {
	m.resetReason.SetBits(ResetReasonFwHitless.Mask)
}
