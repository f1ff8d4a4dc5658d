package cpu

/*
 * Caliptra MCU emulator - RISC-V CPU core
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
   The two cores in the subsystem are VeeR EL2 class RV32IMACF machines with
   machine mode only. One Step call retires exactly one instruction or takes
   one pending trap. Loads and stores flow through the memory bus; bus faults
   come back as the matching architectural exception. External interrupts are
   level signals aggregated by the platform interrupt controller; the core
   claims the highest numbered pending line whenever mstatus.MIE and mie.MEIE
   allow it, and exposes the claimed line through the meihap CSR the way the
   VeeR external interrupt hardware does.
*/

import (
	"log/slog"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/clock"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/pic"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

// StepAction is the result of a single Step.
type StepAction int

const (
	Continue StepAction = iota
	Break
	Fatal
)

// TraceFn receives the pc and raw encoding of every retired instruction.
// Compressed instructions arrive in their 16 bit form.
type TraceFn func(pc uint32, instr uint32, compressed bool)

// Cpu is one RISC-V core. External register access (monitor, FFI) must not
// overlap a Step call; the emulator is single threaded by design.
type Cpu struct {
	xregs [32]uint32
	fregs [32]uint64 // NaN boxed single precision
	pc    uint32
	csr   csrFile

	bus   rvbus.Bus
	clock *clock.Clock
	pic   *pic.Pic

	// Load reservation for LR/SC.
	resValid bool
	resAddr  uint32

	// Pending non maskable interrupt, delivered before the next fetch.
	nmiPending bool
	nmiCause   uint32

	// Pending reset requests routed from timer actions.
	warmResetPending   bool
	updateResetPending bool
	resetPC            uint32
}

// New builds a core over its bus. The PIC may be nil for a core without
// external interrupt wiring.
func New(bus rvbus.Bus, clk *clock.Clock, p *pic.Pic) *Cpu {
	return &Cpu{
		bus:   bus,
		clock: clk,
		pic:   p,
		csr:   newCsrFile(),
	}
}

// Bus returns the core's memory bus, for monitor and FFI access.
func (c *Cpu) Bus() rvbus.Bus {
	return c.bus
}

// ReadPC returns the current program counter.
func (c *Cpu) ReadPC() uint32 {
	return c.pc
}

// WritePC sets the program counter. Used at boot and by debuggers.
func (c *Cpu) WritePC(pc uint32) {
	c.pc = pc
	c.resetPC = pc
}

// ReadXReg returns an integer register; x0 always reads zero.
func (c *Cpu) ReadXReg(reg uint8) uint32 {
	if reg == 0 || reg > 31 {
		return 0
	}
	return c.xregs[reg]
}

// WriteXReg sets an integer register; writes to x0 are dropped.
func (c *Cpu) WriteXReg(reg uint8, value uint32) {
	if reg == 0 || reg > 31 {
		return
	}
	c.xregs[reg] = value
}

// ReadCsr returns a CSR value by number.
func (c *Cpu) ReadCsr(num uint16) uint32 {
	if num == CsrMip {
		return c.mip()
	}
	return c.csr.read(num)
}

// WriteCsr sets a CSR value by number.
func (c *Cpu) WriteCsr(num uint16, value uint32) {
	c.csr.write(num, value)
}

// PostNmi queues a non maskable interrupt for delivery on the next step.
func (c *Cpu) PostNmi(mcause uint32) {
	c.nmiPending = true
	c.nmiCause = mcause
}

// HandleAction routes a fired timer action into the core.
func (c *Cpu) HandleAction(a clock.Action) {
	switch a.Kind {
	case clock.Nmi:
		c.PostNmi(a.Mcause)
	case clock.WarmReset:
		c.warmResetPending = true
	case clock.UpdateReset:
		c.updateResetPending = true
	case clock.FireIrq:
		// Level is owned by the scheduling peripheral's Irq handle;
		// nothing to latch here.
	}
}

// mip synthesizes the pending register from the live PIC output.
func (c *Cpu) mip() uint32 {
	var v uint32
	if c.pic != nil && c.pic.AnyPending() {
		v |= mipMEIP
	}
	return v
}

// interruptReady returns the claimable external line, if any.
func (c *Cpu) interruptReady() (uint8, bool) {
	if c.pic == nil {
		return 0, false
	}
	if c.csr.mstatus&mstatusMIE == 0 || c.csr.mie&mipMEIP == 0 {
		return 0, false
	}
	return c.pic.HighestPending()
}

// takeTrap vectors into the machine trap handler.
func (c *Cpu) takeTrap(cause, tval uint32) StepAction {
	c.csr.mepc = c.pc
	c.csr.mcause = cause
	c.csr.mtval = tval
	mst := c.csr.mstatus
	if mst&mstatusMIE != 0 {
		mst |= mstatusMPIE
	} else {
		mst &^= mstatusMPIE
	}
	mst &^= mstatusMIE
	mst |= mstatusMPP
	c.csr.mstatus = mst

	base := c.csr.mtvec &^ 3
	if base == 0 {
		// No trap handler installed; nothing sane to do but stop the core.
		slog.Error("cpu: trap with no handler", "mcause", cause, "pc", c.pc)
		return Fatal
	}
	if c.csr.mtvec&1 != 0 && cause&0x8000_0000 != 0 {
		c.pc = base + 4*(cause&0x7fff_ffff)
	} else {
		c.pc = base
	}
	return Continue
}

// mret returns from the trap handler.
func (c *Cpu) mret() {
	c.pc = c.csr.mepc
	mst := c.csr.mstatus
	if mst&mstatusMPIE != 0 {
		mst |= mstatusMIE
	} else {
		mst &^= mstatusMIE
	}
	mst |= mstatusMPIE
	c.csr.mstatus = mst
}

// Step retires one instruction or takes one pending trap.
func (c *Cpu) Step(trace TraceFn) StepAction {
	if c.updateResetPending {
		c.updateResetPending = false
		c.reset()
		if c.bus != nil {
			c.bus.UpdateReset()
		}
		return Continue
	}
	if c.warmResetPending {
		c.warmResetPending = false
		c.reset()
		if c.bus != nil {
			c.bus.WarmReset()
		}
		return Continue
	}

	c.csr.mcycle++

	if c.nmiPending {
		c.nmiPending = false
		return c.takeTrap(c.nmiCause, 0)
	}

	if line, ok := c.interruptReady(); ok {
		c.csr.meihap = uint32(line) << 2
		return c.takeTrap(IntMachineExternal, 0)
	}

	instr, raw, compressed, fault := c.fetch()
	if fault != 0 {
		return c.takeTrap(fault, c.pc)
	}
	if trace != nil {
		if compressed {
			trace(c.pc, raw, true)
		} else {
			trace(c.pc, instr, false)
		}
	}
	action := c.execute(instr, compressed)
	c.xregs[0] = 0
	if action == Continue {
		c.csr.minstret++
	}
	return action
}

// fetch reads the instruction at pc, expanding compressed encodings; raw is
// the encoding as stored in memory. The returned fault is an exception cause,
// zero meaning success.
func (c *Cpu) fetch() (instr, raw uint32, compressed bool, fault uint32) {
	if c.pc&1 != 0 {
		return 0, 0, false, ExcInstrAddrMisaligned
	}
	lo, err := c.bus.Read(rvbus.HalfWord, c.pc)
	if err != nil {
		return 0, 0, false, ExcInstrAccessFault
	}
	if lo&3 != 3 {
		expanded, ok := expandCompressed(uint16(lo))
		if !ok {
			return uint32(lo), lo & 0xffff, true, 0 // decoded as illegal downstream
		}
		return expanded, lo & 0xffff, true, 0
	}
	hi, err := c.bus.Read(rvbus.HalfWord, c.pc+2)
	if err != nil {
		return 0, 0, false, ExcInstrAccessFault
	}
	word := lo&0xffff | hi<<16
	return word, word, false, 0
}

// reset returns the core to its boot state, keeping the bus wiring.
func (c *Cpu) reset() {
	for i := range c.xregs {
		c.xregs[i] = 0
	}
	for i := range c.fregs {
		c.fregs[i] = 0
	}
	c.csr = newCsrFile()
	c.resValid = false
	c.nmiPending = false
	c.pc = c.resetPC
}

// load runs a bus read, translating faults to exception causes.
func (c *Cpu) load(size rvbus.Size, addr uint32) (uint32, uint32) {
	value, err := c.bus.Read(size, addr)
	if err == nil {
		return value, 0
	}
	if f, ok := err.(rvbus.Fault); ok {
		switch f {
		case rvbus.LoadAddrMisaligned:
			return 0, ExcLoadAddrMisaligned
		case rvbus.StoreAddrMisaligned:
			return 0, ExcStoreAddrMisaligned
		case rvbus.StoreAccessFault:
			return 0, ExcStoreAccessFault
		}
	}
	return 0, ExcLoadAccessFault
}

// store runs a bus write, translating faults to exception causes.
func (c *Cpu) store(size rvbus.Size, addr uint32, value uint32) uint32 {
	err := c.bus.Write(size, addr, value)
	if err == nil {
		return 0
	}
	if f, ok := err.(rvbus.Fault); ok {
		switch f {
		case rvbus.StoreAddrMisaligned:
			return ExcStoreAddrMisaligned
		case rvbus.LoadAddrMisaligned:
			return ExcLoadAddrMisaligned
		case rvbus.LoadAccessFault:
			return ExcLoadAccessFault
		}
	}
	return ExcStoreAccessFault
}
