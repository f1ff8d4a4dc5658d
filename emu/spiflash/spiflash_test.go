package spiflash

/*
 * Caliptra MCU emulator - SPI flash tests
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
	"errors"
	"testing"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/clock"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

// idleBus satisfies the clock's poll target when nothing else is mounted.
type idleBus struct{}

func (idleBus) Read(rvbus.Size, uint32) (uint32, error) { return 0, rvbus.LoadAccessFault }
func (idleBus) Write(rvbus.Size, uint32, uint32) error  { return rvbus.StoreAccessFault }
func (idleBus) Poll()                                   {}
func (idleBus) WarmReset()                              {}
func (idleBus) UpdateReset()                            {}

func TestReadID(t *testing.T) {
	chip := New(clock.New())
	id, err := chip.Command(OpReadID, 0, nil, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(id, jedecID) {
		t.Errorf("id = % x", id)
	}
}

func TestProgramRequiresWriteEnable(t *testing.T) {
	chip := New(clock.New())
	_, err := chip.Command(OpPageProgram, 0, []byte{1, 2, 3}, 0)
	if !errors.Is(err, ErrWriteDisabled) {
		t.Fatalf("error = %v, want write disabled", err)
	}
}

func TestProgramReadRoundTrip(t *testing.T) {
	clk := clock.New()
	chip := New(clk)
	data := bytes.Repeat([]byte{0x5a}, 16)
	if _, err := chip.Command(OpWriteEnable, 0, nil, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := chip.Command(OpPageProgram, 0x1000, data, 0); err != nil {
		t.Fatal(err)
	}
	clk.Advance(PageProgramTicks, idleBus{})
	out, err := chip.Command(OpReadData, 0x1000, nil, 16)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("read back = % x", out)
	}
	// WEL clears after program.
	if chip.Status()&StatusWel != 0 {
		t.Error("WEL still set after program")
	}
}

func TestCrossPageProgramRejected(t *testing.T) {
	chip := New(clock.New())
	chip.Command(OpWriteEnable, 0, nil, 0)
	_, err := chip.Command(OpPageProgram, PageSize-4, make([]byte, 8), 0)
	if !errors.Is(err, ErrCrossPageProgram) {
		t.Fatalf("error = %v, want cross page", err)
	}
}

func TestEraseAlignment(t *testing.T) {
	chip := New(clock.New())
	chip.Command(OpWriteEnable, 0, nil, 0)
	_, err := chip.Command(OpSectorErase, 100, nil, 0)
	if !errors.Is(err, ErrEraseAddrUnaligned) {
		t.Fatalf("error = %v, want unaligned", err)
	}
}

func TestSectorEraseTiming(t *testing.T) {
	clk := clock.New()
	chip := New(clk)

	// Program a byte to zero, then erase its sector.
	chip.Command(OpWriteEnable, 0, nil, 0)
	chip.Command(OpPageProgram, SectorSize, []byte{0x00}, 0)
	clk.Advance(PageProgramTicks, idleBus{})

	chip.Command(OpWriteEnable, 0, nil, 0)
	if _, err := chip.Command(OpSectorErase, SectorSize, nil, 0); err != nil {
		t.Fatal(err)
	}
	// Busy for the sector erase duration.
	if chip.Status()&StatusWip == 0 {
		t.Fatal("not busy during erase")
	}
	if _, err := chip.Command(OpReadData, 0, nil, 1); !errors.Is(err, ErrBusy) {
		t.Fatalf("read while busy: %v", err)
	}
	clk.Advance(SectorEraseTicks, idleBus{})
	if chip.Status()&StatusWip != 0 {
		t.Fatal("still busy after erase time")
	}
	out, err := chip.Command(OpReadData, SectorSize, nil, SectorSize)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range out {
		if b != 0xff {
			t.Fatal("erased sector not 0xFF")
		}
	}
}

func TestEraseDurations(t *testing.T) {
	tests := []struct {
		op    uint8
		ticks uint64
		addr  uint32
	}{
		{OpSectorErase, SectorEraseTicks, SectorSize},
		{OpBlock32Erase, Block32EraseTicks, Block32Size},
		{OpBlock64Erase, Block64EraseTicks, Block64Size},
		{OpChipErase, ChipEraseTicks, 0},
	}
	for _, tc := range tests {
		clk := clock.New()
		chip := New(clk)
		chip.Command(OpWriteEnable, 0, nil, 0)
		if _, err := chip.Command(tc.op, tc.addr, nil, 0); err != nil {
			t.Fatalf("op %#x: %v", tc.op, err)
		}
		clk.Advance(tc.ticks-1, idleBus{})
		if chip.Status()&StatusWip == 0 {
			t.Errorf("op %#x: idle one tick early", tc.op)
		}
		clk.Advance(1, idleBus{})
		if chip.Status()&StatusWip != 0 {
			t.Errorf("op %#x: busy past duration", tc.op)
		}
	}
}

func TestInvalidOpcode(t *testing.T) {
	chip := New(clock.New())
	_, err := chip.Command(0xAB, 0, nil, 0)
	if !errors.Is(err, ErrInvalidOpcode) {
		t.Fatalf("error = %v, want invalid opcode", err)
	}
}

func TestHostWindow(t *testing.T) {
	clk := clock.New()
	bus := &Bus{Chip: New(clk)}

	wr := func(off, val uint32) {
		if err := bus.Write(rvbus.Word, off, val); err != nil {
			t.Fatalf("write %#x: %v", off, err)
		}
	}
	rd := func(off uint32) uint32 {
		v, err := bus.Read(rvbus.Word, off)
		if err != nil {
			t.Fatalf("read %#x: %v", off, err)
		}
		return v
	}

	// WREN, then program four bytes at 0x2000 through the buffer.
	wr(OpcodeOffset, uint32(OpWriteEnable))
	wr(CtrlOffset, 1)
	wr(BufferOffset, 0xdead_beef)
	wr(OpcodeOffset, uint32(OpPageProgram))
	wr(AddrOffset, 0x2000)
	wr(LenOffset, 4)
	wr(CtrlOffset, 1)
	if got := rd(ErrorOffset); got != ErrCodeNone {
		t.Fatalf("error = %d", got)
	}
	clk.Advance(PageProgramTicks, bus)

	// Read back through the window.
	wr(OpcodeOffset, uint32(OpReadData))
	wr(AddrOffset, 0x2000)
	wr(LenOffset, 4)
	wr(CtrlOffset, 1)
	if got := rd(BufferOffset); got != 0xdead_beef {
		t.Fatalf("read back = %#x", got)
	}

	// A write without WREN reports the error code.
	wr(OpcodeOffset, uint32(OpPageProgram))
	wr(CtrlOffset, 1)
	if got := rd(ErrorOffset); got != ErrCodeWriteDisabled {
		t.Fatalf("error = %d, want write disabled", got)
	}
}
