package cpu

/*
 * Caliptra MCU emulator - CPU core tests
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
	"encoding/binary"
	"testing"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/clock"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/pic"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

// newTestCpu builds a core over 64K of RAM at address zero.
func newTestCpu(t *testing.T, program []uint32) (*Cpu, *rvbus.Ram, *pic.Pic) {
	t.Helper()
	ram := rvbus.NewRam(64 * 1024)
	for i, w := range program {
		binary.LittleEndian.PutUint32(ram.Data()[i*4:], w)
	}
	bus := rvbus.NewRootBus()
	if err := bus.Mount("ram", 0, ram.Len(), ram); err != nil {
		t.Fatal(err)
	}
	clk := clock.New()
	p := pic.New()
	cpu := New(bus, clk, p)
	return cpu, ram, p
}

func step(t *testing.T, c *Cpu, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if action := c.Step(nil); action != Continue {
			t.Fatalf("step %d: unexpected action %v", i, action)
		}
	}
}

// enableLine sets a line's enable bit through the PIC register window.
func enableLine(t *testing.T, p *pic.Pic, line uint32) {
	t.Helper()
	if err := (&pic.Bus{Pic: p}).Write(rvbus.Word, 0x2000+4*line, 1); err != nil {
		t.Fatalf("enable line %d: %v", line, err)
	}
}

func TestXRegs(t *testing.T) {
	cpu, _, _ := newTestCpu(t, nil)
	for reg := uint8(1); reg < 32; reg++ {
		cpu.WriteXReg(reg, uint32(reg)*0x1111)
		if got := cpu.ReadXReg(reg); got != uint32(reg)*0x1111 {
			t.Errorf("x%d = %08x, want %08x", reg, got, uint32(reg)*0x1111)
		}
	}
	cpu.WriteXReg(0, 0xdeadbeef)
	if got := cpu.ReadXReg(0); got != 0 {
		t.Errorf("x0 = %08x, want 0", got)
	}
}

func TestAluImmediate(t *testing.T) {
	// addi x1, x0, 5; slli x1, x1, 3; xori x2, x1, 0xff
	cpu, _, _ := newTestCpu(t, []uint32{
		0x0050_0093,
		0x0030_9093,
		0x0ff0_c113,
	})
	step(t, cpu, 3)
	if got := cpu.ReadXReg(1); got != 40 {
		t.Errorf("x1 = %d, want 40", got)
	}
	if got := cpu.ReadXReg(2); got != 40^0xff {
		t.Errorf("x2 = %d, want %d", got, 40^0xff)
	}
	if pc := cpu.ReadPC(); pc != 12 {
		t.Errorf("pc = %d, want 12", pc)
	}
}

func TestLuiAuipc(t *testing.T) {
	// lui x5, 0x12345; auipc x6, 0x1
	cpu, _, _ := newTestCpu(t, []uint32{
		0x1234_52b7,
		0x0000_1317,
	})
	step(t, cpu, 2)
	if got := cpu.ReadXReg(5); got != 0x1234_5000 {
		t.Errorf("x5 = %08x", got)
	}
	if got := cpu.ReadXReg(6); got != 0x1004 {
		t.Errorf("x6 = %08x, want 00001004", got)
	}
}

func TestLoadStoreRoundTrip(t *testing.T) {
	// addi x1, x0, 0x7a; sw x1, 256(x0); lw x2, 256(x0); lb x3, 256(x0)
	cpu, _, _ := newTestCpu(t, []uint32{
		0x07a0_0093,
		0x1010_2023,
		0x1000_2103,
		0x1000_0183,
	})
	step(t, cpu, 4)
	if got := cpu.ReadXReg(2); got != 0x7a {
		t.Errorf("x2 = %08x, want 0x7a", got)
	}
	if got := cpu.ReadXReg(3); got != 0x7a {
		t.Errorf("x3 = %08x, want 0x7a", got)
	}
}

func TestBranchLoop(t *testing.T) {
	// addi x1, x0, 3
	// loop: addi x1, x1, -1; bne x1, x0, loop
	cpu, _, _ := newTestCpu(t, []uint32{
		0x0030_0093,
		0xfff0_8093,
		0xfe00_9ee3,
	})
	step(t, cpu, 7)
	if got := cpu.ReadXReg(1); got != 0 {
		t.Errorf("x1 = %d, want 0", got)
	}
	if pc := cpu.ReadPC(); pc != 12 {
		t.Errorf("pc = %d, want 12", pc)
	}
}

func TestJalJalr(t *testing.T) {
	// jal x1, +8; nop; jalr x1, 0(x1)
	cpu, _, _ := newTestCpu(t, []uint32{
		0x0080_00ef,
		0x0000_0013,
		0x0000_80e7,
	})
	step(t, cpu, 1)
	if pc := cpu.ReadPC(); pc != 8 {
		t.Fatalf("pc after jal = %d, want 8", pc)
	}
	if got := cpu.ReadXReg(1); got != 4 {
		t.Fatalf("x1 = %d, want 4", got)
	}
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		funct3 uint32
		a, b   uint32
		want   uint32
	}{
		{0, 7, 6, 42},
		{0, 0xffff_ffff, 2, 0xffff_fffe},
		{1, 0x8000_0000, 0x8000_0000, 0x4000_0000},
		{3, 0xffff_ffff, 0xffff_ffff, 0xffff_fffe},
		{4, 42, 7, 6},
		{4, 1, 0, 0xffff_ffff},
		{4, 0x8000_0000, 0xffff_ffff, 0x8000_0000},
		{5, 42, 0, 0xffff_ffff},
		{6, 43, 7, 1},
		{6, 43, 0, 43},
		{6, 0x8000_0000, 0xffff_ffff, 0},
		{7, 43, 0, 43},
	}
	for _, tc := range tests {
		if got := mulDiv(tc.funct3, tc.a, tc.b); got != tc.want {
			t.Errorf("mulDiv(%d, %08x, %08x) = %08x, want %08x",
				tc.funct3, tc.a, tc.b, got, tc.want)
		}
	}
}

func TestCsrAccess(t *testing.T) {
	// csrrwi mscratch, 5; csrrsi mscratch, 2; csrrw x1, mscratch, x0
	cpu, _, _ := newTestCpu(t, []uint32{
		0x3402_d073,
		0x3401_6073,
		0x3400_10f3,
	})
	step(t, cpu, 3)
	if got := cpu.ReadXReg(1); got != 7 {
		t.Errorf("x1 = %d, want 7", got)
	}
	if got := cpu.ReadCsr(CsrMscratch); got != 0 {
		t.Errorf("mscratch = %d, want 0", got)
	}
}

func TestMisalignedLoadTrap(t *testing.T) {
	// lw x1, 2(x0) with a trap handler at 0x100
	cpu, _, _ := newTestCpu(t, []uint32{
		0x0020_2083,
	})
	cpu.WriteCsr(CsrMtvec, 0x100)
	if action := cpu.Step(nil); action != Continue {
		t.Fatalf("action = %v", action)
	}
	if got := cpu.ReadCsr(CsrMcause); got != ExcLoadAddrMisaligned {
		t.Errorf("mcause = %d, want %d", got, ExcLoadAddrMisaligned)
	}
	if got := cpu.ReadCsr(CsrMtval); got != 2 {
		t.Errorf("mtval = %d, want 2", got)
	}
	if pc := cpu.ReadPC(); pc != 0x100 {
		t.Errorf("pc = %08x, want 0x100", pc)
	}
}

func TestAccessFaultTrap(t *testing.T) {
	// lw x1, 0(x2) with x2 pointing far outside RAM
	cpu, _, _ := newTestCpu(t, []uint32{
		0x0001_2083,
	})
	cpu.WriteCsr(CsrMtvec, 0x100)
	cpu.WriteXReg(2, 0xf000_0000)
	cpu.Step(nil)
	if got := cpu.ReadCsr(CsrMcause); got != ExcLoadAccessFault {
		t.Errorf("mcause = %d, want %d", got, ExcLoadAccessFault)
	}
}

func TestTrapWithoutHandlerIsFatal(t *testing.T) {
	cpu, _, _ := newTestCpu(t, []uint32{
		0xffff_ffff, // illegal
	})
	if action := cpu.Step(nil); action != Fatal {
		t.Fatalf("action = %v, want Fatal", action)
	}
}

func TestEbreakBreaks(t *testing.T) {
	cpu, _, _ := newTestCpu(t, []uint32{
		0x0010_0073,
	})
	if action := cpu.Step(nil); action != Break {
		t.Fatalf("action = %v, want Break", action)
	}
}

func TestEcallTrap(t *testing.T) {
	cpu, _, _ := newTestCpu(t, []uint32{
		0x0000_0073,
	})
	cpu.WriteCsr(CsrMtvec, 0x200)
	cpu.Step(nil)
	if got := cpu.ReadCsr(CsrMcause); got != ExcEcallM {
		t.Errorf("mcause = %d, want %d", got, ExcEcallM)
	}
}

func TestExternalInterrupt(t *testing.T) {
	cpu, _, p := newTestCpu(t, []uint32{
		0x0000_0013, // nop
		0x0000_0013,
	})
	irq := p.RegisterIrq(17)
	enableLine(t, p, 17)
	cpu.WriteCsr(CsrMtvec, 0x300)
	cpu.WriteCsr(CsrMie, 1<<11)
	cpu.WriteCsr(CsrMstatus, 1<<3)

	// A pulse while interrupts are enabled but before the level settles must
	// not be claimed once lowered.
	irq.SetLevel(true)
	irq.SetLevel(false)
	cpu.Step(nil)
	if pc := cpu.ReadPC(); pc != 4 {
		t.Fatalf("spurious interrupt: pc = %08x", pc)
	}

	irq.SetLevel(true)
	cpu.Step(nil)
	if pc := cpu.ReadPC(); pc != 0x300 {
		t.Fatalf("pc = %08x, want 0x300", pc)
	}
	if got := cpu.ReadCsr(CsrMcause); got != IntMachineExternal {
		t.Errorf("mcause = %08x", got)
	}
	if got := cpu.ReadCsr(CsrMeihap); got != 17<<2 {
		t.Errorf("meihap = %08x, want %08x", got, 17<<2)
	}
	if got := cpu.ReadCsr(CsrMstatus); got&(1<<3) != 0 {
		t.Errorf("mstatus.MIE still set after trap: %08x", got)
	}
}

func TestInterruptMaskedByMie(t *testing.T) {
	cpu, _, p := newTestCpu(t, []uint32{
		0x0000_0013,
	})
	irq := p.RegisterIrq(3)
	enableLine(t, p, 3)
	cpu.WriteCsr(CsrMtvec, 0x300)
	cpu.WriteCsr(CsrMstatus, 1<<3)
	irq.SetLevel(true)
	cpu.Step(nil)
	if pc := cpu.ReadPC(); pc != 4 {
		t.Fatalf("interrupt taken with mie.MEIE clear: pc = %08x", pc)
	}
}

func TestHighestLineWins(t *testing.T) {
	cpu, _, p := newTestCpu(t, []uint32{
		0x0000_0013,
	})
	low := p.RegisterIrq(4)
	high := p.RegisterIrq(40)
	enableLine(t, p, 4)
	enableLine(t, p, 40)
	cpu.WriteCsr(CsrMtvec, 0x300)
	cpu.WriteCsr(CsrMie, 1<<11)
	cpu.WriteCsr(CsrMstatus, 1<<3)
	low.SetLevel(true)
	high.SetLevel(true)
	cpu.Step(nil)
	if got := cpu.ReadCsr(CsrMeihap); got != 40<<2 {
		t.Errorf("meihap = %08x, want %08x", got, 40<<2)
	}
}

func TestMret(t *testing.T) {
	cpu, _, _ := newTestCpu(t, []uint32{
		0x3020_0073, // mret
	})
	cpu.WriteCsr(CsrMepc, 0x40)
	cpu.WriteCsr(CsrMstatus, 1<<7) // MPIE
	cpu.Step(nil)
	if pc := cpu.ReadPC(); pc != 0x40 {
		t.Errorf("pc = %08x, want 0x40", pc)
	}
	if got := cpu.ReadCsr(CsrMstatus); got&(1<<3) == 0 {
		t.Errorf("mstatus.MIE not restored: %08x", got)
	}
}

func TestAmoSwapAdd(t *testing.T) {
	// amoswap.w x3, x2, (x1); amoadd.w x4, x2, (x1)
	cpu, ram, _ := newTestCpu(t, []uint32{
		0x0820_a1af,
		0x0020_a22f,
	})
	binary.LittleEndian.PutUint32(ram.Data()[0x400:], 10)
	cpu.WriteXReg(1, 0x400)
	cpu.WriteXReg(2, 7)
	step(t, cpu, 2)
	if got := cpu.ReadXReg(3); got != 10 {
		t.Errorf("amoswap old = %d, want 10", got)
	}
	if got := cpu.ReadXReg(4); got != 7 {
		t.Errorf("amoadd old = %d, want 7", got)
	}
	if got := binary.LittleEndian.Uint32(ram.Data()[0x400:]); got != 14 {
		t.Errorf("mem = %d, want 14", got)
	}
}

func TestLrSc(t *testing.T) {
	// lr.w x3, (x1); sc.w x4, x2, (x1); sc.w x5, x2, (x1)
	cpu, ram, _ := newTestCpu(t, []uint32{
		0x1000_a1af,
		0x1820_a22f,
		0x1820_a2af,
	})
	binary.LittleEndian.PutUint32(ram.Data()[0x500:], 0x55)
	cpu.WriteXReg(1, 0x500)
	cpu.WriteXReg(2, 0x66)
	step(t, cpu, 3)
	if got := cpu.ReadXReg(3); got != 0x55 {
		t.Errorf("lr = %02x, want 0x55", got)
	}
	if got := cpu.ReadXReg(4); got != 0 {
		t.Errorf("first sc = %d, want 0 (success)", got)
	}
	if got := cpu.ReadXReg(5); got != 1 {
		t.Errorf("second sc = %d, want 1 (no reservation)", got)
	}
}

func TestCompressedExpand(t *testing.T) {
	tests := []struct {
		name  string
		raw   uint16
		want  uint32
	}{
		{"c.addi x8, 1", 0x0405, 0x0014_0413},
		{"c.li x10, 3", 0x450d, 0x0030_0513},
		{"c.mv x10, x11", 0x852e, 0x00b0_0533},
		{"c.add x10, x11", 0x952e, 0x00b5_0533},
		{"c.ebreak", 0x9002, 0x0010_0073},
		{"c.jr x1", 0x8082, 0x0000_8067},
	}
	for _, tc := range tests {
		got, ok := expandCompressed(tc.raw)
		if !ok {
			t.Errorf("%s: decode failed", tc.name)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: %08x, want %08x", tc.name, got, tc.want)
		}
	}
	if _, ok := expandCompressed(0); ok {
		t.Error("all-zero encoding decoded")
	}
}

func TestCompressedStep(t *testing.T) {
	// c.li x10, 3 ; c.addi x10, 1 (pc advances by 2)
	cpu, ram, _ := newTestCpu(t, nil)
	binary.LittleEndian.PutUint16(ram.Data()[0:], 0x450d)
	binary.LittleEndian.PutUint16(ram.Data()[2:], 0x0505)
	step(t, cpu, 2)
	if got := cpu.ReadXReg(10); got != 4 {
		t.Errorf("x10 = %d, want 4", got)
	}
	if pc := cpu.ReadPC(); pc != 4 {
		t.Errorf("pc = %d, want 4", pc)
	}
}

func TestFloatMoveAndArith(t *testing.T) {
	// fmv.w.x f1, x1; fmv.w.x f2, x2; fadd.s f3, f1, f2; fmv.x.w x3, f3
	cpu, _, _ := newTestCpu(t, []uint32{
		0xf000_80d3,
		0xf001_0153,
		0x0020_81d3,
		0xe001_81d3,
	})
	cpu.WriteXReg(1, 0x3f80_0000) // 1.0
	cpu.WriteXReg(2, 0x4000_0000) // 2.0
	step(t, cpu, 4)
	if got := cpu.ReadXReg(3); got != 0x4040_0000 { // 3.0
		t.Errorf("x3 = %08x, want 40400000", got)
	}
}

func TestCounters(t *testing.T) {
	cpu, _, _ := newTestCpu(t, []uint32{
		0x0000_0013,
		0x0000_0013,
	})
	step(t, cpu, 2)
	if got := cpu.ReadCsr(CsrMinstret); got != 2 {
		t.Errorf("minstret = %d, want 2", got)
	}
	if got := cpu.ReadCsr(CsrMcycle); got != 2 {
		t.Errorf("mcycle = %d, want 2", got)
	}
}
