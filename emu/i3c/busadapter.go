package i3c

/*
 * Caliptra MCU emulator - I3C register window
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

// Generated from the I3C core register map, recovery interface section.
// Multi byte blocks are exposed as little endian dword arrays.

import (
	"encoding/binary"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

// Register offsets.
const (
	HciVersionOffset  uint32 = 0x000
	DynamicAddrOffset uint32 = 0x004

	ProtCap0Offset            uint32 = 0x100 // 4 dwords
	DeviceID0Offset           uint32 = 0x110 // 6 dwords
	DeviceStatus0Offset       uint32 = 0x130 // 2 dwords
	DeviceResetOffset         uint32 = 0x138
	RecoveryCtrlOffset        uint32 = 0x13c
	RecoveryStatusOffset      uint32 = 0x140
	HwStatusOffset            uint32 = 0x144
	IndirectFifoCtrl0Offset   uint32 = 0x148
	IndirectFifoCtrl1Offset   uint32 = 0x14c
	IndirectFifoStatus0Offset uint32 = 0x150 // 5 dwords
	IndirectFifoDataOffset    uint32 = 0x164

	hciVersion = 0x120
)

// Bus exposes the target's recovery register file to the MCU core.
type Bus struct {
	Periph *Target
}

// blockDword reads dword index i of a byte block, zero padded past the end.
func blockDword(block []byte, i uint32) uint32 {
	var buf [4]byte
	off := int(i * 4)
	if off < len(block) {
		copy(buf[:], block[off:])
	}
	return binary.LittleEndian.Uint32(buf[:])
}

func (b *Bus) Read(size rvbus.Size, addr uint32) (uint32, error) {
	if size != rvbus.Word {
		return 0, rvbus.LoadAccessFault
	}
	t := b.Periph
	switch {
	case addr == HciVersionOffset:
		return hciVersion, nil
	case addr == DynamicAddrOffset:
		return uint32(t.dynamicAddr), nil
	case addr >= ProtCap0Offset && addr < ProtCap0Offset+16:
		return blockDword(t.regs.ProtCap[:], (addr-ProtCap0Offset)/4), nil
	case addr >= DeviceID0Offset && addr < DeviceID0Offset+24:
		return blockDword(t.regs.DeviceID[:], (addr-DeviceID0Offset)/4), nil
	case addr >= DeviceStatus0Offset && addr < DeviceStatus0Offset+8:
		return blockDword(t.regs.DeviceStatus[:], (addr-DeviceStatus0Offset)/4), nil
	case addr == DeviceResetOffset:
		return blockDword(t.regs.DeviceReset[:], 0), nil
	case addr == RecoveryCtrlOffset:
		return blockDword(t.regs.RecoveryCtrl[:], 0), nil
	case addr == RecoveryStatusOffset:
		return blockDword(t.regs.RecoveryStatus[:], 0), nil
	case addr == HwStatusOffset:
		return blockDword(t.regs.HwStatus[:], 0), nil
	case addr == IndirectFifoCtrl0Offset:
		// cms and reset bytes.
		return uint32(t.regs.IndirectFifoCtrl[0]) | uint32(t.regs.IndirectFifoCtrl[1])<<8, nil
	case addr == IndirectFifoCtrl1Offset:
		return t.regs.FifoCtrlImageLen(), nil
	case addr >= IndirectFifoStatus0Offset && addr < IndirectFifoStatus0Offset+20:
		t.syncFifoStatus()
		return blockDword(t.regs.IndirectFifoStatus[:], (addr-IndirectFifoStatus0Offset)/4), nil
	case addr == IndirectFifoDataOffset:
		return 0, nil
	default:
		return 0, rvbus.LoadAccessFault
	}
}

func (b *Bus) Write(size rvbus.Size, addr uint32, value uint32) error {
	if size != rvbus.Word {
		return rvbus.StoreAccessFault
	}
	t := b.Periph
	switch addr {
	case RecoveryCtrlOffset:
		t.regs.RecoveryCtrl[0] = byte(value)
		t.regs.RecoveryCtrl[1] = byte(value >> 8)
		t.regs.RecoveryCtrl[2] = byte(value >> 16)
	case RecoveryStatusOffset:
		t.regs.RecoveryStatus[0] = byte(value)
		t.regs.RecoveryStatus[1] = byte(value >> 8)
	case DeviceStatus0Offset:
		t.regs.DeviceStatus[0] = byte(value)
		t.regs.DeviceStatus[1] = byte(value >> 8)
		t.regs.DeviceStatus[2] = byte(value >> 16)
		t.regs.DeviceStatus[3] = byte(value >> 24)
	case DeviceResetOffset:
		t.regs.DeviceReset[0] = byte(value)
		t.regs.DeviceReset[1] = byte(value >> 8)
		t.regs.DeviceReset[2] = byte(value >> 16)
	case HciVersionOffset, DynamicAddrOffset:
		// Read only.
	default:
		// The remaining recovery blocks are read only from the fabric.
		if addr >= ProtCap0Offset && addr <= IndirectFifoDataOffset {
			return nil
		}
		return rvbus.StoreAccessFault
	}
	return nil
}

func (b *Bus) Poll() {
	b.Periph.Poll()
}

func (b *Bus) WarmReset() {
	b.Periph.WarmReset()
}

func (b *Bus) UpdateReset() {
	b.Periph.UpdateReset()
}
