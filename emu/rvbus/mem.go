package rvbus

/*
 * Caliptra MCU emulator - RAM and ROM bus leaves
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
	"io"
)

// Ram is a read/write memory region. Addresses are window relative. An
// optional backing writer mirrors every store, used by regions that must
// survive for post mortem inspection.
type Ram struct {
	data    []byte
	mirror  io.WriterAt
	readOnly bool
}

func NewRam(size int) *Ram {
	return &Ram{data: make([]byte, size)}
}

// NewRamFrom seeds a region with content, padded with zeros to size.
func NewRamFrom(content []byte, size int) *Ram {
	if size < len(content) {
		size = len(content)
	}
	ram := &Ram{data: make([]byte, size)}
	copy(ram.data, content)
	return ram
}

// NewRom seeds a read only region. Stores report a store access fault.
func NewRom(content []byte, size int) *Ram {
	ram := NewRamFrom(content, size)
	ram.readOnly = true
	return ram
}

// SetMirror installs a write through target. Each store is replayed at the
// same offset; mirror errors are ignored, the in core copy stays the truth.
func (r *Ram) SetMirror(w io.WriterAt) {
	r.mirror = w
}

// Data exposes the raw backing store for DMA style block transfers.
func (r *Ram) Data() []byte {
	return r.data
}

func (r *Ram) Len() uint32 {
	return uint32(len(r.data))
}

func (r *Ram) Read(size Size, addr uint32) (uint32, error) {
	if !size.Valid() {
		return 0, LoadAccessFault
	}
	if addr&(uint32(size)-1) != 0 {
		return 0, LoadAddrMisaligned
	}
	if addr+uint32(size) > uint32(len(r.data)) || addr+uint32(size) < addr {
		return 0, LoadAccessFault
	}
	switch size {
	case Byte:
		return uint32(r.data[addr]), nil
	case HalfWord:
		return uint32(binary.LittleEndian.Uint16(r.data[addr:])), nil
	default:
		return binary.LittleEndian.Uint32(r.data[addr:]), nil
	}
}

func (r *Ram) Write(size Size, addr uint32, value uint32) error {
	if !size.Valid() {
		return StoreAccessFault
	}
	if addr&(uint32(size)-1) != 0 {
		return StoreAddrMisaligned
	}
	if addr+uint32(size) > uint32(len(r.data)) || addr+uint32(size) < addr {
		return StoreAccessFault
	}
	if r.readOnly {
		return StoreAccessFault
	}
	switch size {
	case Byte:
		r.data[addr] = uint8(value)
	case HalfWord:
		binary.LittleEndian.PutUint16(r.data[addr:], uint16(value))
	default:
		binary.LittleEndian.PutUint32(r.data[addr:], value)
	}
	if r.mirror != nil {
		_, _ = r.mirror.WriteAt(r.data[addr:addr+uint32(size)], int64(addr))
	}
	return nil
}

func (r *Ram) Poll()        {}
func (r *Ram) WarmReset()   {}
func (r *Ram) UpdateReset() {}
