package dma

/*
 * Caliptra MCU emulator - DMA engine tests
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
	"bytes"
	"testing"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/clock"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/pic"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

const (
	ramBase  = 0x4000_0000
	sramBase = 0x8800_0000
)

func newFixture(t *testing.T) (*clock.Clock, *pic.Pic, *Dma, *rvbus.Ram, *rvbus.Ram) {
	t.Helper()
	clk := clock.New()
	p := pic.New()
	d := New(clk, p.RegisterIrq(23), p.RegisterIrq(24))
	ram := rvbus.NewRam(0x1000)
	sram := rvbus.NewRam(0x1000)
	d.SetDmaRam(ram, ramBase)
	d.SetDmaRam(sram, sramBase)
	return clk, p, d, ram, sram
}

func TestTransfer(t *testing.T) {
	clk, p, d, ram, sram := newFixture(t)
	copy(ram.Data()[0x100:], bytes.Repeat([]byte{0x7e}, 64))

	d.Write(rvbus.Word, SrcAddrOffset, ramBase+0x100)
	d.Write(rvbus.Word, DstAddrOffset, sramBase+0x200)
	d.Write(rvbus.Word, LenOffset, 64)
	d.Write(rvbus.Word, CtrlOffset, 1)

	v, _ := d.Read(rvbus.Word, StatusOffset)
	if v&StatusBusy == 0 {
		t.Fatal("not busy after start")
	}
	clk.Advance(transferDelay, d)
	v, _ = d.Read(rvbus.Word, StatusOffset)
	if v&StatusDone == 0 {
		t.Fatalf("status = %#x, want done", v)
	}
	if !p.Level(24) {
		t.Fatal("event irq not asserted")
	}
	if !bytes.Equal(sram.Data()[0x200:0x240], bytes.Repeat([]byte{0x7e}, 64)) {
		t.Fatal("copy mismatch")
	}
	// W1C drops the line.
	d.Write(rvbus.Word, StatusOffset, StatusDone)
	if p.Level(24) {
		t.Fatal("event irq still asserted")
	}
}

func TestBadRangeErrors(t *testing.T) {
	clk, p, d, _, _ := newFixture(t)
	d.Write(rvbus.Word, SrcAddrOffset, 0x1234_0000)
	d.Write(rvbus.Word, DstAddrOffset, sramBase)
	d.Write(rvbus.Word, LenOffset, 16)
	d.Write(rvbus.Word, CtrlOffset, 1)
	clk.Advance(transferDelay, d)
	v, _ := d.Read(rvbus.Word, StatusOffset)
	if v&StatusError == 0 {
		t.Fatalf("status = %#x, want error", v)
	}
	if !p.Level(23) {
		t.Fatal("error irq not asserted")
	}
}
