package cpu

/*
 * Caliptra MCU emulator - Compressed instruction expansion
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

// Builders for the 32 bit formats the expander emits.

func encR(funct7 uint32, rs2, rs1 uint32, funct3 uint32, rd uint32, opcode uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encI(imm uint32, rs1 uint32, funct3 uint32, rd uint32, opcode uint32) uint32 {
	return imm<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encS(imm uint32, rs2, rs1 uint32, funct3 uint32, opcode uint32) uint32 {
	return (imm>>5)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | (imm&0x1f)<<7 | opcode
}

func encB(imm uint32, rs2, rs1 uint32, funct3 uint32, opcode uint32) uint32 {
	return (imm>>12&1)<<31 | (imm>>5&0x3f)<<25 | rs2<<20 | rs1<<15 |
		funct3<<12 | (imm>>1&0xf)<<8 | (imm>>11&1)<<7 | opcode
}

func encJ(imm uint32, rd uint32, opcode uint32) uint32 {
	return (imm>>20&1)<<31 | (imm>>1&0x3ff)<<21 | (imm>>11&1)<<20 |
		(imm>>12&0xff)<<12 | rd<<7 | opcode
}

func encU(imm uint32, rd uint32, opcode uint32) uint32 {
	return imm&0xffff_f000 | rd<<7 | opcode
}

// signExt sign extends the low bits of v.
func signExt(v uint32, bits uint) uint32 {
	shift := 32 - bits
	return uint32(int32(v<<shift) >> shift)
}

// expandCompressed rewrites a 16 bit encoding into its 32 bit equivalent.
// Returns ok=false for reserved or illegal encodings.
func expandCompressed(instr uint16) (uint32, bool) {
	i := uint32(instr)
	if i == 0 {
		return 0, false // defined illegal
	}
	op := i & 3
	funct3 := i >> 13 & 7
	// rd'/rs1'/rs2' map onto x8..x15.
	rdP := i>>2&7 + 8
	rs1P := i>>7&7 + 8

	switch op {
	case 0:
		switch funct3 {
		case 0: // C.ADDI4SPN
			imm := i>>7&0x30 | i>>1&0x3c0 | i>>4&4 | i>>2&8
			if imm == 0 {
				return 0, false
			}
			return encI(imm, 2, 0, rdP, 0x13), true
		case 2: // C.LW
			imm := i>>7&0x38 | i<<1&0x40 | i>>4&4
			return encI(imm, rs1P, 2, rdP, 0x03), true
		case 3: // C.FLW
			imm := i>>7&0x38 | i<<1&0x40 | i>>4&4
			return encI(imm, rs1P, 2, rdP, 0x07), true
		case 6: // C.SW
			imm := i>>7&0x38 | i<<1&0x40 | i>>4&4
			return encS(imm, rdP, rs1P, 2, 0x23), true
		case 7: // C.FSW
			imm := i>>7&0x38 | i<<1&0x40 | i>>4&4
			return encS(imm, rdP, rs1P, 2, 0x27), true
		}
		return 0, false

	case 1:
		rd := i >> 7 & 0x1f
		switch funct3 {
		case 0: // C.ADDI
			imm := signExt(i>>7&0x20|i>>2&0x1f, 6)
			return encI(imm&0xfff, rd, 0, rd, 0x13), true
		case 1: // C.JAL
			return encJ(cjImm(i), 1, 0x6f), true
		case 2: // C.LI
			imm := signExt(i>>7&0x20|i>>2&0x1f, 6)
			return encI(imm&0xfff, 0, 0, rd, 0x13), true
		case 3:
			if rd == 2 { // C.ADDI16SP
				imm := signExt(i>>3&0x200|i>>2&0x10|i<<1&0x40|i<<4&0x180|i<<3&0x20, 10)
				if imm == 0 {
					return 0, false
				}
				return encI(imm&0xfff, 2, 0, 2, 0x13), true
			}
			// C.LUI
			imm := signExt(i<<5&0x2_0000|i<<10&0x1_f000, 18)
			if imm == 0 || rd == 0 {
				return 0, false
			}
			return encU(imm, rd, 0x37), true
		case 4:
			funct2 := i >> 10 & 3
			switch funct2 {
			case 0: // C.SRLI
				shamt := i>>7&0x20 | i>>2&0x1f
				return encI(shamt, rs1P, 5, rs1P, 0x13), true
			case 1: // C.SRAI
				shamt := i>>7&0x20 | i>>2&0x1f
				return encI(0x400|shamt, rs1P, 5, rs1P, 0x13), true
			case 2: // C.ANDI
				imm := signExt(i>>7&0x20|i>>2&0x1f, 6)
				return encI(imm&0xfff, rs1P, 7, rs1P, 0x13), true
			default:
				rs2P := i>>2&7 + 8
				switch i >> 5 & 3 {
				case 0: // C.SUB
					return encR(0x20, rs2P, rs1P, 0, rs1P, 0x33), true
				case 1: // C.XOR
					return encR(0, rs2P, rs1P, 4, rs1P, 0x33), true
				case 2: // C.OR
					return encR(0, rs2P, rs1P, 6, rs1P, 0x33), true
				default: // C.AND
					return encR(0, rs2P, rs1P, 7, rs1P, 0x33), true
				}
			}
		case 5: // C.J
			return encJ(cjImm(i), 0, 0x6f), true
		case 6: // C.BEQZ
			return encB(cbImm(i), 0, rs1P, 0, 0x63), true
		case 7: // C.BNEZ
			return encB(cbImm(i), 0, rs1P, 1, 0x63), true
		}
		return 0, false

	default: // op == 2
		rd := i >> 7 & 0x1f
		rs2 := i >> 2 & 0x1f
		switch funct3 {
		case 0: // C.SLLI
			shamt := i>>7&0x20 | i>>2&0x1f
			return encI(shamt, rd, 1, rd, 0x13), true
		case 2: // C.LWSP
			if rd == 0 {
				return 0, false
			}
			imm := i>>7&0x20 | i>>2&0x1c | i<<4&0xc0
			return encI(imm, 2, 2, rd, 0x03), true
		case 3: // C.FLWSP
			imm := i>>7&0x20 | i>>2&0x1c | i<<4&0xc0
			return encI(imm, 2, 2, rd, 0x07), true
		case 4:
			if i>>12&1 == 0 {
				if rs2 == 0 { // C.JR
					if rd == 0 {
						return 0, false
					}
					return encI(0, rd, 0, 0, 0x67), true
				}
				// C.MV
				return encR(0, rs2, 0, 0, rd, 0x33), true
			}
			if rs2 == 0 {
				if rd == 0 { // C.EBREAK
					return 0x0010_0073, true
				}
				// C.JALR
				return encI(0, rd, 0, 1, 0x67), true
			}
			// C.ADD
			return encR(0, rs2, rd, 0, rd, 0x33), true
		case 6: // C.SWSP
			imm := i>>7&0x3c | i>>1&0xc0
			return encS(imm, rs2, 2, 2, 0x23), true
		case 7: // C.FSWSP
			imm := i>>7&0x3c | i>>1&0xc0
			return encS(imm, rs2, 2, 2, 0x27), true
		}
		return 0, false
	}
}

// cjImm extracts the C.J/C.JAL target offset.
func cjImm(i uint32) uint32 {
	imm := i>>1&0x800 | i>>7&0x10 | i>>1&0x300 | i<<2&0x400 |
		i>>1&0x40 | i<<1&0x80 | i>>2&0xe | i<<3&0x20
	return signExt(imm, 12)
}

// cbImm extracts the C.BEQZ/C.BNEZ target offset.
func cbImm(i uint32) uint32 {
	imm := i>>4&0x100 | i<<1&0xc0 | i<<3&0x20 | i>>7&0x18 | i>>2&0x6
	return signExt(imm, 9)
}
