package cpu

/*
 * Caliptra MCU emulator - RISC-V instruction execution
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
	"math"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

// Immediate extractors for the five instruction formats.
func immI(instr uint32) int32 {
	return int32(instr) >> 20
}

func immS(instr uint32) int32 {
	return int32(instr&0xfe00_0000)>>20 | int32(instr>>7&0x1f)
}

func immB(instr uint32) int32 {
	return int32(instr&0x8000_0000)>>19 |
		int32(instr<<4&0x800) |
		int32(instr>>20&0x7e0) |
		int32(instr>>7&0x1e)
}

func immU(instr uint32) int32 {
	return int32(instr & 0xffff_f000)
}

func immJ(instr uint32) int32 {
	return int32(instr&0x8000_0000)>>11 |
		int32(instr&0xf_f000) |
		int32(instr>>9&0x800) |
		int32(instr>>20&0x7fe)
}

// execute runs one expanded 32 bit instruction. The pc advance for a
// compressed instruction is two bytes.
func (c *Cpu) execute(instr uint32, compressed bool) StepAction {
	step := uint32(4)
	if compressed {
		step = 2
	}
	next := c.pc + step

	opcode := instr & 0x7f
	rd := uint8(instr >> 7 & 0x1f)
	funct3 := instr >> 12 & 7
	rs1 := uint8(instr >> 15 & 0x1f)
	rs2 := uint8(instr >> 20 & 0x1f)
	funct7 := instr >> 25

	switch opcode {
	case 0x37: // LUI
		c.setX(rd, uint32(immU(instr)))

	case 0x17: // AUIPC
		c.setX(rd, c.pc+uint32(immU(instr)))

	case 0x6f: // JAL
		c.setX(rd, next)
		next = c.pc + uint32(immJ(instr))

	case 0x67: // JALR
		target := (c.xregs[rs1] + uint32(immI(instr))) &^ 1
		c.setX(rd, next)
		next = target

	case 0x63: // branches
		taken := false
		a, b := c.xregs[rs1], c.xregs[rs2]
		switch funct3 {
		case 0:
			taken = a == b
		case 1:
			taken = a != b
		case 4:
			taken = int32(a) < int32(b)
		case 5:
			taken = int32(a) >= int32(b)
		case 6:
			taken = a < b
		case 7:
			taken = a >= b
		default:
			return c.takeTrap(ExcIllegalInstr, instr)
		}
		if taken {
			next = c.pc + uint32(immB(instr))
		}

	case 0x03: // loads
		addr := c.xregs[rs1] + uint32(immI(instr))
		var value uint32
		var fault uint32
		switch funct3 {
		case 0: // LB
			value, fault = c.load(rvbus.Byte, addr)
			value = uint32(int32(int8(value)))
		case 1: // LH
			value, fault = c.load(rvbus.HalfWord, addr)
			value = uint32(int32(int16(value)))
		case 2: // LW
			value, fault = c.load(rvbus.Word, addr)
		case 4: // LBU
			value, fault = c.load(rvbus.Byte, addr)
		case 5: // LHU
			value, fault = c.load(rvbus.HalfWord, addr)
		default:
			return c.takeTrap(ExcIllegalInstr, instr)
		}
		if fault != 0 {
			return c.takeTrap(fault, addr)
		}
		c.setX(rd, value)

	case 0x23: // stores
		addr := c.xregs[rs1] + uint32(immS(instr))
		var fault uint32
		switch funct3 {
		case 0:
			fault = c.store(rvbus.Byte, addr, c.xregs[rs2])
		case 1:
			fault = c.store(rvbus.HalfWord, addr, c.xregs[rs2])
		case 2:
			fault = c.store(rvbus.Word, addr, c.xregs[rs2])
		default:
			return c.takeTrap(ExcIllegalInstr, instr)
		}
		if fault != 0 {
			return c.takeTrap(fault, addr)
		}

	case 0x13: // register-immediate ALU
		imm := uint32(immI(instr))
		a := c.xregs[rs1]
		shamt := imm & 0x1f
		switch funct3 {
		case 0:
			c.setX(rd, a+imm)
		case 1:
			if funct7 != 0 {
				return c.takeTrap(ExcIllegalInstr, instr)
			}
			c.setX(rd, a<<shamt)
		case 2:
			if int32(a) < int32(imm) {
				c.setX(rd, 1)
			} else {
				c.setX(rd, 0)
			}
		case 3:
			if a < imm {
				c.setX(rd, 1)
			} else {
				c.setX(rd, 0)
			}
		case 4:
			c.setX(rd, a^imm)
		case 5:
			switch funct7 &^ 1 {
			case 0x00:
				c.setX(rd, a>>shamt)
			case 0x20:
				c.setX(rd, uint32(int32(a)>>shamt))
			default:
				return c.takeTrap(ExcIllegalInstr, instr)
			}
		case 6:
			c.setX(rd, a|imm)
		case 7:
			c.setX(rd, a&imm)
		}

	case 0x33: // register-register ALU and M extension
		a, b := c.xregs[rs1], c.xregs[rs2]
		if funct7 == 1 {
			c.setX(rd, mulDiv(funct3, a, b))
			break
		}
		switch funct3<<8 | funct7 {
		case 0x000:
			c.setX(rd, a+b)
		case 0x020:
			c.setX(rd, a-b)
		case 0x100:
			c.setX(rd, a<<(b&0x1f))
		case 0x200:
			if int32(a) < int32(b) {
				c.setX(rd, 1)
			} else {
				c.setX(rd, 0)
			}
		case 0x300:
			if a < b {
				c.setX(rd, 1)
			} else {
				c.setX(rd, 0)
			}
		case 0x400:
			c.setX(rd, a^b)
		case 0x500:
			c.setX(rd, a>>(b&0x1f))
		case 0x520:
			c.setX(rd, uint32(int32(a)>>(b&0x1f)))
		case 0x600:
			c.setX(rd, a|b)
		case 0x700:
			c.setX(rd, a&b)
		default:
			return c.takeTrap(ExcIllegalInstr, instr)
		}

	case 0x0f: // FENCE and FENCE.I, no-ops on this core
		break

	case 0x73: // SYSTEM
		if funct3 == 0 {
			switch instr {
			case 0x0000_0073: // ECALL
				return c.takeTrap(ExcEcallM, 0)
			case 0x0010_0073: // EBREAK
				return Break
			case 0x3020_0073: // MRET
				c.mret()
				return Continue
			case 0x1050_0073: // WFI, treated as a pause
				break
			default:
				return c.takeTrap(ExcIllegalInstr, instr)
			}
			break
		}
		num := uint16(instr >> 20)
		var src uint32
		if funct3 >= 5 {
			src = uint32(rs1) // zimm
		} else {
			src = c.xregs[rs1]
		}
		old := c.ReadCsr(num)
		switch funct3 & 3 {
		case 1: // CSRRW
			c.WriteCsr(num, src)
		case 2: // CSRRS
			if rs1 != 0 {
				c.WriteCsr(num, old|src)
			}
		case 3: // CSRRC
			if rs1 != 0 {
				c.WriteCsr(num, old&^src)
			}
		default:
			return c.takeTrap(ExcIllegalInstr, instr)
		}
		c.setX(rd, old)

	case 0x2f: // A extension
		if funct3 != 2 {
			return c.takeTrap(ExcIllegalInstr, instr)
		}
		if action, ok := c.atomic(instr, rd, rs1, rs2); !ok {
			return action
		}

	case 0x07: // FLW
		if funct3 != 2 {
			return c.takeTrap(ExcIllegalInstr, instr)
		}
		addr := c.xregs[rs1] + uint32(immI(instr))
		value, fault := c.load(rvbus.Word, addr)
		if fault != 0 {
			return c.takeTrap(fault, addr)
		}
		c.setF(rd, value)

	case 0x27: // FSW
		if funct3 != 2 {
			return c.takeTrap(ExcIllegalInstr, instr)
		}
		addr := c.xregs[rs1] + uint32(immS(instr))
		if fault := c.store(rvbus.Word, addr, c.getFBits(rs2)); fault != 0 {
			return c.takeTrap(fault, addr)
		}

	case 0x43, 0x47, 0x4b, 0x4f: // fused multiply-add family
		if funct7&3 != 0 {
			return c.takeTrap(ExcIllegalInstr, instr)
		}
		rs3 := uint8(instr >> 27)
		a, b, d := c.getF(rs1), c.getF(rs2), c.getF(rs3)
		var r float32
		switch opcode {
		case 0x43:
			r = a*b + d
		case 0x47:
			r = a*b - d
		case 0x4b:
			r = -(a * b) + d
		default:
			r = -(a * b) - d
		}
		c.setF(rd, math.Float32bits(r))

	case 0x53: // single precision FP ops
		if action, ok := c.fpOp(instr, rd, rs1, rs2, funct3, funct7); !ok {
			return action
		}

	default:
		return c.takeTrap(ExcIllegalInstr, instr)
	}

	c.pc = next
	return Continue
}

// setX writes an integer register honoring the x0 sink.
func (c *Cpu) setX(rd uint8, value uint32) {
	if rd != 0 {
		c.xregs[rd] = value
	}
}

// mulDiv implements the M extension with the architectural edge cases:
// division by zero yields all ones (or the dividend for remainder), and the
// most negative value divided by minus one wraps.
func mulDiv(funct3, a, b uint32) uint32 {
	switch funct3 {
	case 0: // MUL
		return a * b
	case 1: // MULH
		return uint32(uint64(int64(int32(a))*int64(int32(b))) >> 32)
	case 2: // MULHSU
		return uint32(uint64(int64(int32(a))*int64(b)) >> 32)
	case 3: // MULHU
		return uint32(uint64(a) * uint64(b) >> 32)
	case 4: // DIV
		if b == 0 {
			return 0xffff_ffff
		}
		if a == 0x8000_0000 && b == 0xffff_ffff {
			return a
		}
		return uint32(int32(a) / int32(b))
	case 5: // DIVU
		if b == 0 {
			return 0xffff_ffff
		}
		return a / b
	case 6: // REM
		if b == 0 {
			return a
		}
		if a == 0x8000_0000 && b == 0xffff_ffff {
			return 0
		}
		return uint32(int32(a) % int32(b))
	default: // REMU
		if b == 0 {
			return a
		}
		return a % b
	}
}

// atomic implements LR/SC and the AMO group. Returns ok=false with the trap
// action when the access faults or the encoding is illegal.
func (c *Cpu) atomic(instr uint32, rd, rs1, rs2 uint8) (StepAction, bool) {
	funct5 := instr >> 27
	addr := c.xregs[rs1]

	if funct5 == 0x02 { // LR.W
		value, fault := c.load(rvbus.Word, addr)
		if fault != 0 {
			return c.takeTrap(fault, addr), false
		}
		c.resValid = true
		c.resAddr = addr
		c.setX(rd, value)
		return Continue, true
	}
	if funct5 == 0x03 { // SC.W
		if !c.resValid || c.resAddr != addr {
			c.resValid = false
			c.setX(rd, 1)
			return Continue, true
		}
		c.resValid = false
		if fault := c.store(rvbus.Word, addr, c.xregs[rs2]); fault != 0 {
			return c.takeTrap(fault, addr), false
		}
		c.setX(rd, 0)
		return Continue, true
	}

	old, fault := c.load(rvbus.Word, addr)
	if fault != 0 {
		return c.takeTrap(fault, addr), false
	}
	src := c.xregs[rs2]
	var result uint32
	switch funct5 {
	case 0x00: // AMOADD
		result = old + src
	case 0x01: // AMOSWAP
		result = src
	case 0x04: // AMOXOR
		result = old ^ src
	case 0x08: // AMOOR
		result = old | src
	case 0x0c: // AMOAND
		result = old & src
	case 0x10: // AMOMIN
		if int32(old) < int32(src) {
			result = old
		} else {
			result = src
		}
	case 0x14: // AMOMAX
		if int32(old) > int32(src) {
			result = old
		} else {
			result = src
		}
	case 0x18: // AMOMINU
		if old < src {
			result = old
		} else {
			result = src
		}
	case 0x1c: // AMOMAXU
		if old > src {
			result = old
		} else {
			result = src
		}
	default:
		return c.takeTrap(ExcIllegalInstr, instr), false
	}
	if fault := c.store(rvbus.Word, addr, result); fault != 0 {
		return c.takeTrap(fault, addr), false
	}
	c.setX(rd, old)
	return Continue, true
}

// NaN boxing helpers for the single precision register file.

func (c *Cpu) getFBits(reg uint8) uint32 {
	v := c.fregs[reg]
	if v>>32 != 0xffff_ffff {
		return 0x7fc0_0000 // canonical NaN for an unboxed value
	}
	return uint32(v)
}

func (c *Cpu) getF(reg uint8) float32 {
	return math.Float32frombits(c.getFBits(reg))
}

func (c *Cpu) setF(reg uint8, bits uint32) {
	c.fregs[reg] = 0xffff_ffff_0000_0000 | uint64(bits)
	c.csr.mstatus |= mstatusFS
}

// fpOp implements the OP-FP encodings for single precision.
func (c *Cpu) fpOp(instr uint32, rd, rs1, rs2 uint8, funct3, funct7 uint32) (StepAction, bool) {
	a, b := c.getF(rs1), c.getF(rs2)
	switch funct7 {
	case 0x00:
		c.setF(rd, math.Float32bits(a+b))
	case 0x04:
		c.setF(rd, math.Float32bits(a-b))
	case 0x08:
		c.setF(rd, math.Float32bits(a*b))
	case 0x0c:
		c.setF(rd, math.Float32bits(a/b))
	case 0x2c:
		if rs2 != 0 {
			return c.takeTrap(ExcIllegalInstr, instr), false
		}
		c.setF(rd, math.Float32bits(float32(math.Sqrt(float64(a)))))
	case 0x10: // sign injection
		ab, bb := c.getFBits(rs1), c.getFBits(rs2)
		switch funct3 {
		case 0:
			c.setF(rd, ab&0x7fff_ffff|bb&0x8000_0000)
		case 1:
			c.setF(rd, ab&0x7fff_ffff|^bb&0x8000_0000)
		case 2:
			c.setF(rd, ab^bb&0x8000_0000)
		default:
			return c.takeTrap(ExcIllegalInstr, instr), false
		}
	case 0x14: // min/max
		switch funct3 {
		case 0:
			c.setF(rd, math.Float32bits(fmin(a, b)))
		case 1:
			c.setF(rd, math.Float32bits(fmax(a, b)))
		default:
			return c.takeTrap(ExcIllegalInstr, instr), false
		}
	case 0x60: // FCVT.W.S / FCVT.WU.S
		switch rs2 {
		case 0:
			c.setX(rd, uint32(cvtToInt32(a)))
		case 1:
			c.setX(rd, cvtToUint32(a))
		default:
			return c.takeTrap(ExcIllegalInstr, instr), false
		}
	case 0x68: // FCVT.S.W / FCVT.S.WU
		switch rs2 {
		case 0:
			c.setF(rd, math.Float32bits(float32(int32(c.xregs[rs1]))))
		case 1:
			c.setF(rd, math.Float32bits(float32(c.xregs[rs1])))
		default:
			return c.takeTrap(ExcIllegalInstr, instr), false
		}
	case 0x50: // compares
		var r uint32
		switch funct3 {
		case 2:
			if a == b {
				r = 1
			}
		case 1:
			if a < b {
				r = 1
			}
		case 0:
			if a <= b {
				r = 1
			}
		default:
			return c.takeTrap(ExcIllegalInstr, instr), false
		}
		c.setX(rd, r)
	case 0x70: // FMV.X.W / FCLASS.S
		switch funct3 {
		case 0:
			c.setX(rd, c.getFBits(rs1))
		case 1:
			c.setX(rd, fclass(c.getFBits(rs1)))
		default:
			return c.takeTrap(ExcIllegalInstr, instr), false
		}
	case 0x78: // FMV.W.X
		if funct3 != 0 {
			return c.takeTrap(ExcIllegalInstr, instr), false
		}
		c.setF(rd, c.xregs[rs1])
	default:
		return c.takeTrap(ExcIllegalInstr, instr), false
	}
	return Continue, true
}

func fmin(a, b float32) float32 {
	switch {
	case a != a:
		return b
	case b != b:
		return a
	case a < b:
		return a
	default:
		return b
	}
}

func fmax(a, b float32) float32 {
	switch {
	case a != a:
		return b
	case b != b:
		return a
	case a > b:
		return a
	default:
		return b
	}
}

func cvtToInt32(f float32) int32 {
	switch {
	case f != f:
		return math.MaxInt32
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	default:
		return int32(f)
	}
}

func cvtToUint32(f float32) uint32 {
	switch {
	case f != f:
		return math.MaxUint32
	case f >= math.MaxUint32:
		return math.MaxUint32
	case f <= 0:
		return 0
	default:
		return uint32(f)
	}
}

// fclass returns the FCLASS.S result mask for a raw single.
func fclass(bits uint32) uint32 {
	sign := bits>>31 != 0
	exp := bits >> 23 & 0xff
	frac := bits & 0x7f_ffff
	switch {
	case exp == 0xff && frac != 0:
		if frac&0x40_0000 != 0 {
			return 1 << 9 // quiet NaN
		}
		return 1 << 8 // signaling NaN
	case exp == 0xff && sign:
		return 1 << 0 // -inf
	case exp == 0xff:
		return 1 << 7 // +inf
	case exp == 0 && frac == 0 && sign:
		return 1 << 3 // -0
	case exp == 0 && frac == 0:
		return 1 << 4 // +0
	case exp == 0 && sign:
		return 1 << 2 // negative subnormal
	case exp == 0:
		return 1 << 5 // positive subnormal
	case sign:
		return 1 << 1 // negative normal
	default:
		return 1 << 6 // positive normal
	}
}
