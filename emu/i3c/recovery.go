package i3c

/*
 * Caliptra MCU emulator - Recovery command set definitions
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

import "encoding/binary"

// Recovery command codes on the I3C wire.
const (
	CmdProtCap            uint8 = 34
	CmdDeviceID           uint8 = 35
	CmdDeviceStatus       uint8 = 36
	CmdDeviceReset        uint8 = 37
	CmdRecoveryCtrl       uint8 = 38
	CmdRecoveryStatus     uint8 = 39
	CmdHwStatus           uint8 = 40
	CmdIndirectCtrl       uint8 = 41
	CmdIndirectStatus     uint8 = 42
	CmdIndirectData       uint8 = 43
	CmdVendor             uint8 = 44
	CmdIndirectFifoCtrl   uint8 = 45
	CmdIndirectFifoStatus uint8 = 46
	CmdIndirectFifoData   uint8 = 47
)

// payloadBounds is the legal payload length range per command code.
type payloadBounds struct {
	min int
	max int
}

var commandBounds = map[uint8]payloadBounds{
	CmdProtCap:            {15, 15},
	CmdDeviceID:           {24, 255},
	CmdDeviceStatus:       {7, 255},
	CmdDeviceReset:        {3, 3},
	CmdRecoveryCtrl:       {3, 3},
	CmdRecoveryStatus:     {2, 2},
	CmdHwStatus:           {4, 255},
	CmdIndirectCtrl:       {6, 6},
	CmdIndirectStatus:     {6, 6},
	CmdIndirectData:       {1, 252},
	CmdVendor:             {1, 255},
	CmdIndirectFifoCtrl:   {6, 6},
	CmdIndirectFifoStatus: {20, 20},
	CmdIndirectFifoData:   {1, 4095},
}

// CommandBounds returns the (min, max) payload bounds of a recovery command,
// with ok=false for unknown codes.
func CommandBounds(code uint8) (int, int, bool) {
	b, ok := commandBounds[code]
	if !ok {
		return 0, 0, false
	}
	return b.min, b.max, true
}

// Device status byte values.
const (
	DeviceStatusHealthy         uint8 = 0x01
	DeviceStatusRecoveryMode    uint8 = 0x03
	DeviceStatusRecoveryPending uint8 = 0x04
)

// Recovery status low nibble values.
const (
	RecoveryStatusAwaitingImage uint8 = 0x01
	RecoveryStatusBootingImage  uint8 = 0x02
	RecoveryStatusSuccessful    uint8 = 0x03
)

// RecoveryRegs is the recovery register file behind the standardized command
// codes. The byte layouts match the wire payloads one to one.
type RecoveryRegs struct {
	ProtCap            [15]byte
	DeviceID           [24]byte
	DeviceStatus       [7]byte
	DeviceReset        [3]byte
	RecoveryCtrl       [3]byte
	RecoveryStatus     [2]byte
	HwStatus           [4]byte
	IndirectFifoCtrl   [6]byte
	IndirectFifoStatus [20]byte
}

func newRecoveryRegs() RecoveryRegs {
	r := RecoveryRegs{}
	copy(r.ProtCap[:8], "OCP RECV")
	r.ProtCap[8] = 1 // major
	r.ProtCap[9] = 1 // minor
	// Capability bits: device status, indirect ctrl, push style image.
	r.ProtCap[10] = 0x3f
	r.DeviceStatus[0] = DeviceStatusHealthy
	// Empty FIFO at reset.
	r.IndirectFifoStatus[0] = 1
	return r
}

// FifoCtrlImageLen reads the streamed image length, in 4 byte units, from
// the indirect FIFO control block.
func (r *RecoveryRegs) FifoCtrlImageLen() uint32 {
	return binary.LittleEndian.Uint32(r.IndirectFifoCtrl[2:])
}

// SetFifoEmpty maintains the FIFO empty/full bits in the status block.
func (r *RecoveryRegs) SetFifoEmpty(empty bool) {
	if empty {
		r.IndirectFifoStatus[0] = 1
	} else {
		r.IndirectFifoStatus[0] = 0
	}
}
