package spiflash

/*
 * Caliptra MCU emulator - SPI NOR flash model
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
   JEDEC style NOR flash chip with the usual opcode set. Program and erase
   require a prior write enable; the latch clears after every program or
   erase. Busy timing follows the part datasheet in emulator ticks, surfaced
   through the status register's WIP bit.
*/

import (
	"errors"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/clock"
)

// Chip geometry.
const (
	PageSize    = 256
	SectorSize  = 4 * 1024
	Block32Size = 32 * 1024
	Block64Size = 64 * 1024
	ChipSize    = 16 * 1024 * 1024
)

// Erase and program durations in emulator ticks.
const (
	SectorEraseTicks  = 50
	Block32EraseTicks = 120
	Block64EraseTicks = 150
	ChipEraseTicks    = 200_000
	PageProgramTicks  = 1
)

// Opcodes.
const (
	OpWriteEnable  uint8 = 0x06
	OpWriteDisable uint8 = 0x04
	OpReadStatus   uint8 = 0x05
	OpReadData     uint8 = 0x03
	OpPageProgram  uint8 = 0x02
	OpSectorErase  uint8 = 0x20
	OpBlock32Erase uint8 = 0x52
	OpBlock64Erase uint8 = 0xd8
	OpChipErase    uint8 = 0xc7
	OpReadID       uint8 = 0x9f
)

// Status register bits.
const (
	StatusWip uint8 = 1 << 0
	StatusWel uint8 = 1 << 1
)

// Command errors.
var (
	ErrInvalidOpcode        = errors.New("spiflash: invalid opcode")
	ErrCrossPageProgram     = errors.New("spiflash: program crosses page boundary")
	ErrEraseAddrUnaligned   = errors.New("spiflash: erase address unaligned")
	ErrWriteDisabled        = errors.New("spiflash: write enable latch clear")
	ErrAddressOutOfRange    = errors.New("spiflash: address out of range")
	ErrBusy                 = errors.New("spiflash: busy")
)

var jedecID = []byte{0xc2, 0x20, 0x18}

// Chip is the flash part. All timing is in emulator ticks via the shared
// clock.
type Chip struct {
	data      []byte
	wel       bool
	busyUntil uint64
	timer     clock.Timer
}

func New(clk *clock.Clock) *Chip {
	data := make([]byte, ChipSize)
	for i := range data {
		data[i] = 0xff
	}
	return &Chip{data: data, timer: clock.NewTimer(clk)}
}

// Data exposes the array for preloading images.
func (c *Chip) Data() []byte {
	return c.data
}

func (c *Chip) busy() bool {
	return c.timer.Now() < c.busyUntil
}

// Status returns the live status register.
func (c *Chip) Status() uint8 {
	var s uint8
	if c.busy() {
		s |= StatusWip
	}
	if c.wel {
		s |= StatusWel
	}
	return s
}

func (c *Chip) erase(addr uint32, size uint32, ticks uint64) error {
	if addr%size != 0 {
		return ErrEraseAddrUnaligned
	}
	if addr+size > ChipSize {
		return ErrAddressOutOfRange
	}
	if !c.wel {
		return ErrWriteDisabled
	}
	for i := addr; i < addr+size; i++ {
		c.data[i] = 0xff
	}
	c.wel = false
	c.busyUntil = c.timer.Now() + ticks
	return nil
}

// Command executes one opcode. wr carries program data, rdLen asks for read
// data. Commands other than status reads are rejected while busy.
func (c *Chip) Command(op uint8, addr uint32, wr []byte, rdLen int) ([]byte, error) {
	if op == OpReadStatus {
		return []byte{c.Status()}, nil
	}
	if c.busy() {
		return nil, ErrBusy
	}
	switch op {
	case OpReadID:
		return append([]byte(nil), jedecID...), nil
	case OpWriteEnable:
		c.wel = true
		return nil, nil
	case OpWriteDisable:
		c.wel = false
		return nil, nil
	case OpReadData:
		if int(addr)+rdLen > ChipSize {
			return nil, ErrAddressOutOfRange
		}
		out := make([]byte, rdLen)
		copy(out, c.data[addr:])
		return out, nil
	case OpPageProgram:
		if !c.wel {
			return nil, ErrWriteDisabled
		}
		if len(wr) == 0 || len(wr) > PageSize {
			return nil, ErrCrossPageProgram
		}
		if addr%PageSize+uint32(len(wr)) > PageSize {
			return nil, ErrCrossPageProgram
		}
		if int(addr)+len(wr) > ChipSize {
			return nil, ErrAddressOutOfRange
		}
		// NOR programming only clears bits.
		for i, b := range wr {
			c.data[addr+uint32(i)] &= b
		}
		c.wel = false
		c.busyUntil = c.timer.Now() + PageProgramTicks
		return nil, nil
	case OpSectorErase:
		return nil, c.erase(addr, SectorSize, SectorEraseTicks)
	case OpBlock32Erase:
		return nil, c.erase(addr, Block32Size, Block32EraseTicks)
	case OpBlock64Erase:
		return nil, c.erase(addr, Block64Size, Block64EraseTicks)
	case OpChipErase:
		if !c.wel {
			return nil, ErrWriteDisabled
		}
		for i := range c.data {
			c.data[i] = 0xff
		}
		c.wel = false
		c.busyUntil = c.timer.Now() + ChipEraseTicks
		return nil, nil
	default:
		return nil, ErrInvalidOpcode
	}
}
