package i3c

/*
 * Caliptra MCU emulator - I3C target state machine
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
   The target starts unconfigured; an ENTDAA from the controller assigns its
   dynamic address and arms private transfers. Recovery register blocks sit
   behind the standardized command codes: a block read is a one byte command
   write followed by a repeated start read of length and payload, a block
   write carries code, length and payload in a single transfer.

   Streamed firmware arrives through the indirect FIFO: the control block
   programs the image length, data blocks accumulate until the full image is
   present, then the assembled image is announced to the security core over
   the event channel.
*/

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/clock"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/events"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/pic"
)

// Wire level errors.
var (
	ErrInvalidAddress     = errors.New("i3c: invalid address")
	ErrInvalidAddressMode = errors.New("i3c: invalid address mode")
	ErrInvalidLength      = errors.New("i3c: invalid length")
	ErrPecMismatch        = errors.New("i3c: pec mismatch")
	ErrNack               = errors.New("i3c: nack")
	ErrUnknownCommand     = errors.New("i3c: unknown recovery command")
)

// IBI mandatory data bytes the target raises.
const (
	IbiRecoveryWake uint8 = 0x01
)

// Target is the I3C target device inside the MCU subsystem.
type Target struct {
	staticAddr  uint8
	dynamicAddr uint8

	timer clock.Timer
	irq   *pic.Irq

	regs RecoveryRegs

	// Last command code written, pending a repeated start read.
	lastCmd      uint8
	lastCmdValid bool

	pecEnabled bool

	// Image assembly state for the indirect FIFO.
	image      []byte
	imageID    uint8
	writeIndex uint32

	ibi []uint8

	// inbox receives recovery block events from other devices; toCaliptra
	// announces completed images.
	inbox      *events.Channel
	toCaliptra func(events.Event)
}

// NewTarget wires the target to the clock and its interrupt line.
func NewTarget(clk *clock.Clock, irq *pic.Irq, staticAddr uint8) *Target {
	return &Target{
		timer:      clock.NewTimer(clk),
		irq:        irq,
		staticAddr: staticAddr,
		regs:       newRecoveryRegs(),
	}
}

// RegisterEventChannels installs the target's inbox and the path toward the
// security core.
func (t *Target) RegisterEventChannels(inbox *events.Channel, toCaliptra func(events.Event)) {
	t.inbox = inbox
	t.toCaliptra = toCaliptra
}

// SetPecEnabled turns packet error codes on for private transfers.
func (t *Target) SetPecEnabled(enabled bool) {
	t.pecEnabled = enabled
}

// DynamicAddr returns the assigned dynamic address, zero when unconfigured.
func (t *Target) DynamicAddr() uint8 {
	return t.dynamicAddr
}

// AssignDynamicAddress is the ENTDAA entry point.
func (t *Target) AssignDynamicAddress(addr uint8) error {
	if addr == 0 || addr > 0x7e {
		return ErrInvalidAddress
	}
	t.dynamicAddr = addr
	return nil
}

// EnterRecoveryMode flips the device status to awaiting a recovery image and
// wakes the management controller with an in band interrupt.
func (t *Target) EnterRecoveryMode() {
	t.regs.DeviceStatus[0] = DeviceStatusRecoveryMode
	t.regs.RecoveryStatus[0] = RecoveryStatusAwaitingImage
	t.RaiseIbi(IbiRecoveryWake)
}

// RaiseIbi queues an in band interrupt with the given mandatory data byte.
func (t *Target) RaiseIbi(mdb uint8) {
	t.ibi = append(t.ibi, mdb)
}

// PollIbi pops the next pending in band interrupt.
func (t *Target) PollIbi() (uint8, bool) {
	if len(t.ibi) == 0 {
		return 0, false
	}
	mdb := t.ibi[0]
	t.ibi = t.ibi[1:]
	return mdb, true
}

// PrivateWrite handles a controller to target transfer. A single byte is a
// command latch for a following block read; anything longer is a block write
// of code, length and payload.
func (t *Target) PrivateWrite(data []byte) error {
	if t.dynamicAddr == 0 {
		return ErrInvalidAddress
	}
	if len(data) == 0 {
		return ErrInvalidLength
	}
	if len(data) == 1 {
		t.lastCmd = data[0]
		t.lastCmdValid = true
		return nil
	}
	if t.pecEnabled {
		if len(data) < 2 {
			return ErrInvalidLength
		}
		body, pec := data[:len(data)-1], data[len(data)-1]
		if Pec(body) != pec {
			return ErrPecMismatch
		}
		data = body
	}
	if len(data) < 3 {
		return ErrInvalidLength
	}
	code := data[0]
	length := int(binary.LittleEndian.Uint16(data[1:3]))
	payload := data[3:]
	if length != len(payload) {
		return ErrInvalidLength
	}
	minLen, maxLen, ok := CommandBounds(code)
	if !ok {
		return ErrUnknownCommand
	}
	if length < minLen || length > maxLen {
		return ErrInvalidLength
	}
	return t.blockWrite(code, payload)
}

// PrivateRead answers the repeated start read phase of a block read.
func (t *Target) PrivateRead(max int) ([]byte, error) {
	if t.dynamicAddr == 0 {
		return nil, ErrInvalidAddress
	}
	if !t.lastCmdValid {
		return nil, ErrNack
	}
	t.lastCmdValid = false
	payload, err := t.blockRead(t.lastCmd)
	if err != nil {
		return nil, err
	}
	resp := make([]byte, 0, len(payload)+3)
	resp = append(resp, byte(len(payload)), byte(len(payload)>>8))
	resp = append(resp, payload...)
	if t.pecEnabled {
		resp = append(resp, Pec(resp))
	}
	if len(resp) > max {
		return nil, ErrInvalidLength
	}
	return resp, nil
}

// blockRead serves the current value of a recovery register block.
func (t *Target) blockRead(code uint8) ([]byte, error) {
	switch code {
	case CmdProtCap:
		return t.regs.ProtCap[:], nil
	case CmdDeviceID:
		return t.regs.DeviceID[:], nil
	case CmdDeviceStatus:
		return t.regs.DeviceStatus[:], nil
	case CmdDeviceReset:
		return t.regs.DeviceReset[:], nil
	case CmdRecoveryCtrl:
		return t.regs.RecoveryCtrl[:], nil
	case CmdRecoveryStatus:
		return t.regs.RecoveryStatus[:], nil
	case CmdHwStatus:
		return t.regs.HwStatus[:], nil
	case CmdIndirectFifoCtrl:
		return t.regs.IndirectFifoCtrl[:], nil
	case CmdIndirectFifoStatus:
		t.syncFifoStatus()
		return t.regs.IndirectFifoStatus[:], nil
	default:
		return nil, ErrUnknownCommand
	}
}

// blockWrite applies a block write to the register file.
func (t *Target) blockWrite(code uint8, payload []byte) error {
	switch code {
	case CmdIndirectFifoCtrl:
		copy(t.regs.IndirectFifoCtrl[:], payload)
		if payload[1]&1 != 0 {
			// Reset bit flushes the assembly state.
			t.image = nil
			t.writeIndex = 0
			t.regs.SetFifoEmpty(true)
			return nil
		}
		t.image = make([]byte, 0, t.regs.FifoCtrlImageLen()*4)
		t.writeIndex = 0
		t.regs.SetFifoEmpty(true)
		t.syncFifoStatus()
	case CmdIndirectFifoData:
		t.image = append(t.image, payload...)
		t.writeIndex += uint32(len(payload)) / 4
		t.syncFifoStatus()
		if uint32(len(t.image)) >= t.regs.FifoCtrlImageLen()*4 && t.regs.FifoCtrlImageLen() > 0 {
			t.imageComplete()
		}
	case CmdRecoveryCtrl:
		copy(t.regs.RecoveryCtrl[:], payload)
		if payload[2] == 0x0f {
			// Activate the streamed image.
			t.regs.RecoveryStatus[0] = RecoveryStatusBootingImage
		}
	case CmdDeviceReset:
		copy(t.regs.DeviceReset[:], payload)
	case CmdRecoveryStatus:
		copy(t.regs.RecoveryStatus[:], payload)
	case CmdDeviceStatus:
		copy(t.regs.DeviceStatus[:], payload[:min(len(payload), len(t.regs.DeviceStatus))])
	default:
		// The remaining blocks are read only from the wire.
		slog.Debug("i3c: dropped block write", "code", code)
	}
	return nil
}

// imageComplete hands the assembled image to the security core.
func (t *Target) imageComplete() {
	image := t.image
	t.image = nil
	t.regs.RecoveryStatus[0] = RecoveryStatusBootingImage
	if t.toCaliptra != nil {
		t.toCaliptra(events.Event{
			Src:  events.TagMcuCore,
			Dest: events.TagCaliptraCore,
			Data: events.RecoveryImageAvailable{ImageID: t.imageID, Image: image},
		})
	}
	t.imageID++
	t.writeIndex = 0
	// Await the next image until recovery is activated.
	t.regs.RecoveryStatus[0] = RecoveryStatusAwaitingImage
}

// syncFifoStatus rebuilds the live fields of the indirect FIFO status block.
func (t *Target) syncFifoStatus() {
	binary.LittleEndian.PutUint32(t.regs.IndirectFifoStatus[4:], t.writeIndex)
	binary.LittleEndian.PutUint32(t.regs.IndirectFifoStatus[8:], t.writeIndex)
	binary.LittleEndian.PutUint32(t.regs.IndirectFifoStatus[12:], t.regs.FifoCtrlImageLen())
	binary.LittleEndian.PutUint32(t.regs.IndirectFifoStatus[16:], 256/4)
	// Blocks are consumed as they arrive, so the FIFO reads empty.
	t.regs.SetFifoEmpty(true)
}

// ImagesDelivered reports how many full images have been streamed.
func (t *Target) ImagesDelivered() uint8 {
	return t.imageID
}

// Poll drains recovery block events from other devices into the register
// file and answers read requests.
func (t *Target) Poll() {
	if t.inbox == nil {
		return
	}
	for {
		ev, ok := t.inbox.Recv()
		if !ok {
			return
		}
		switch data := ev.Data.(type) {
		case events.RecoveryBlockWrite:
			if err := t.blockWrite(data.Code, data.Payload); err != nil {
				slog.Warn("i3c: recovery block write failed",
					"code", data.Code, "err", err)
			}
		case events.RecoveryBlockReadRequest:
			payload, err := t.blockRead(data.Code)
			if err != nil {
				slog.Warn("i3c: recovery block read failed",
					"code", data.Code, "err", err)
				continue
			}
			if t.toCaliptra != nil {
				t.toCaliptra(events.Event{
					Src:  ev.Dest,
					Dest: ev.Src,
					Data: events.RecoveryBlockReadResponse{
						Code:       data.Code,
						TargetAddr: data.TargetAddr,
						SourceAddr: data.SourceAddr,
						Payload:    append([]byte(nil), payload...),
					},
				})
			}
		case events.Wakeup:
			// Nothing to do; the poll itself is the wake.
		default:
			slog.Debug("i3c: dropped event", "data", fmt.Sprintf("%T", ev.Data))
		}
	}
}

func (t *Target) WarmReset() {
	t.lastCmdValid = false
	t.image = nil
	t.writeIndex = 0
	t.regs = newRecoveryRegs()
}

func (t *Target) UpdateReset() {}
