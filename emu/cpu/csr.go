package cpu

/*
 * Caliptra MCU emulator - RISC-V machine mode CSR file
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

// Machine mode CSR addresses used by this core (RISC-V privileged spec).
const (
	CsrMstatus  uint16 = 0x300
	CsrMie      uint16 = 0x304
	CsrMtvec    uint16 = 0x305
	CsrMscratch uint16 = 0x340
	CsrMepc     uint16 = 0x341
	CsrMcause   uint16 = 0x342
	CsrMtval    uint16 = 0x343
	CsrMip      uint16 = 0x344
	CsrMeihap   uint16 = 0xbc0
	CsrMcycle   uint16 = 0xb00
	CsrMinstret uint16 = 0xb02
)

// mstatus fields touched by this core.
const (
	mstatusMIE  uint32 = 1 << 3
	mstatusMPIE uint32 = 1 << 7
	mstatusMPP  uint32 = 3 << 11
	mstatusFS   uint32 = 3 << 13
)

// mip/mie bit for the aggregated external interrupt line.
const mipMEIP uint32 = 1 << 11

// Exception causes (mcause with the interrupt bit clear).
const (
	ExcInstrAddrMisaligned uint32 = 0
	ExcInstrAccessFault    uint32 = 1
	ExcIllegalInstr        uint32 = 2
	ExcEcallM              uint32 = 11
	ExcLoadAddrMisaligned  uint32 = 4
	ExcLoadAccessFault     uint32 = 5
	ExcStoreAddrMisaligned uint32 = 6
	ExcStoreAccessFault    uint32 = 7
)

// Interrupt causes (mcause with the interrupt bit set).
const IntMachineExternal uint32 = 0x8000_0000 | 11

// csrFile holds the machine mode CSRs backing this core.
type csrFile struct {
	mstatus  uint32
	mie      uint32
	mtvec    uint32
	mscratch uint32
	mepc     uint32
	mcause   uint32
	mtval    uint32
	meihap   uint32
	mcycle   uint32
	minstret uint32
}

func newCsrFile() csrFile {
	return csrFile{}
}

// read returns a CSR value by number. CsrMip is synthesized elsewhere and
// never reaches here.
func (f *csrFile) read(num uint16) uint32 {
	switch num {
	case CsrMstatus:
		return f.mstatus
	case CsrMie:
		return f.mie
	case CsrMtvec:
		return f.mtvec
	case CsrMscratch:
		return f.mscratch
	case CsrMepc:
		return f.mepc
	case CsrMcause:
		return f.mcause
	case CsrMtval:
		return f.mtval
	case CsrMeihap:
		return f.meihap
	case CsrMcycle:
		return f.mcycle
	case CsrMinstret:
		return f.minstret
	}
	return 0
}

// write sets a CSR value by number. Writes to unknown or read only CSR
// numbers are dropped.
func (f *csrFile) write(num uint16, value uint32) {
	switch num {
	case CsrMstatus:
		f.mstatus = value
	case CsrMie:
		f.mie = value
	case CsrMtvec:
		f.mtvec = value
	case CsrMscratch:
		f.mscratch = value
	case CsrMepc:
		f.mepc = value
	case CsrMcause:
		f.mcause = value
	case CsrMtval:
		f.mtval = value
	case CsrMeihap:
		f.meihap = value
	case CsrMcycle:
		f.mcycle = value
	case CsrMinstret:
		f.minstret = value
	}
}
