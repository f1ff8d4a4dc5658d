package spiflash

/*
 * Caliptra MCU emulator - SPI host register window
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

// Generated from the SPI host register map. Firmware stages opcode, address
// and length, moves data through the buffer window, then sets the go bit.

import (
	"encoding/binary"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

// Register offsets.
const (
	OpcodeOffset uint32 = 0x00
	AddrOffset   uint32 = 0x04
	LenOffset    uint32 = 0x08
	CtrlOffset   uint32 = 0x0c
	StatusOffset uint32 = 0x10
	ErrorOffset  uint32 = 0x14

	BufferOffset uint32 = 0x100
	BufferSize   uint32 = 256
)

// Error codes surfaced in the error register.
const (
	ErrCodeNone uint32 = iota
	ErrCodeInvalidOpcode
	ErrCodeCrossPageProgram
	ErrCodeEraseAddrUnaligned
	ErrCodeWriteDisabled
	ErrCodeAddressOutOfRange
	ErrCodeBusy
)

// Bus is the SPI host front end over the flash chip.
type Bus struct {
	Chip *Chip

	opcode uint32
	addr   uint32
	length uint32
	errCode uint32
	buf    [BufferSize]byte
}

func errorCode(err error) uint32 {
	switch err {
	case nil:
		return ErrCodeNone
	case ErrInvalidOpcode:
		return ErrCodeInvalidOpcode
	case ErrCrossPageProgram:
		return ErrCodeCrossPageProgram
	case ErrEraseAddrUnaligned:
		return ErrCodeEraseAddrUnaligned
	case ErrWriteDisabled:
		return ErrCodeWriteDisabled
	case ErrAddressOutOfRange:
		return ErrCodeAddressOutOfRange
	default:
		return ErrCodeBusy
	}
}

func (b *Bus) Read(size rvbus.Size, addr uint32) (uint32, error) {
	if size != rvbus.Word {
		return 0, rvbus.LoadAccessFault
	}
	if addr >= BufferOffset && addr < BufferOffset+BufferSize {
		return binary.LittleEndian.Uint32(b.buf[addr-BufferOffset:]), nil
	}
	switch addr {
	case OpcodeOffset:
		return b.opcode, nil
	case AddrOffset:
		return b.addr, nil
	case LenOffset:
		return b.length, nil
	case CtrlOffset:
		return 0, nil
	case StatusOffset:
		return uint32(b.Chip.Status()), nil
	case ErrorOffset:
		return b.errCode, nil
	default:
		return 0, rvbus.LoadAccessFault
	}
}

func (b *Bus) Write(size rvbus.Size, addr uint32, value uint32) error {
	if size != rvbus.Word {
		return rvbus.StoreAccessFault
	}
	if addr >= BufferOffset && addr < BufferOffset+BufferSize {
		binary.LittleEndian.PutUint32(b.buf[addr-BufferOffset:], value)
		return nil
	}
	switch addr {
	case OpcodeOffset:
		b.opcode = value & 0xff
	case AddrOffset:
		b.addr = value
	case LenOffset:
		if value > BufferSize {
			value = BufferSize
		}
		b.length = value
	case CtrlOffset:
		if value&1 != 0 {
			b.run()
		}
	case ErrorOffset:
		// Write one to clear.
		if value != 0 {
			b.errCode = ErrCodeNone
		}
	case StatusOffset:
		// Read only.
	default:
		return rvbus.StoreAccessFault
	}
	return nil
}

// run executes the staged command against the chip.
func (b *Bus) run() {
	op := uint8(b.opcode)
	var wr []byte
	rdLen := 0
	switch op {
	case OpPageProgram:
		wr = b.buf[:b.length]
	case OpReadData, OpReadID, OpReadStatus:
		rdLen = int(b.length)
	}
	out, err := b.Chip.Command(op, b.addr, wr, rdLen)
	b.errCode = errorCode(err)
	if err == nil && len(out) > 0 {
		copy(b.buf[:], out)
	}
}

func (b *Bus) Poll()        {}
func (b *Bus) WarmReset()   {}
func (b *Bus) UpdateReset() {}
