package bmc

/*
 * Caliptra MCU emulator - Recovery BMC agent
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
   The BMC pushes the fixed ordered set of firmware images (Caliptra runtime,
   SoC manifest, MCU runtime) through the recovery command set. It runs
   synchronously with the emulator: the step body executes at most once every
   128 emulator steps and the device status poll at most once every 10000, so
   a stalled target degenerates into cheap amortized checks instead of a
   spin. An in band interrupt from the target short circuits the status wait.
*/

import (
	"encoding/binary"
	"log/slog"
	"sync/atomic"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/events"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/i3c"
)

const (
	// BlockSize is the streaming granule; images are zero padded to a
	// multiple of it.
	BlockSize = 256

	stepCadence       = 128
	statusPollCadence = 10000
)

type state int

const (
	stateWaitStatus state = iota
	stateWriteCtrl
	stateStream
	stateActivate
	stateDone
)

// Bmc streams recovery images into the target through the I3C controller.
type Bmc struct {
	ctrl    *i3c.Controller
	running *atomic.Bool

	images    [][]byte
	blocks    [][]byte
	ctrlLen   uint32
	state     state
	imageID   uint8
	stepCount uint64

	lastStatusPoll uint64

	// inbox carries recovery block events from the target side; the shadow
	// register blocks answer read requests.
	inbox   *events.Channel
	respond func(events.Event)
	shadow  map[uint8][]byte
}

// New builds the agent over an initialized controller. The running flag is
// shared with the emulator top level; flipping it false stops the agent at
// its next opportunity.
func New(ctrl *i3c.Controller, running *atomic.Bool) *Bmc {
	return &Bmc{
		ctrl:    ctrl,
		running: running,
		state:   stateWaitStatus,
		shadow:  map[uint8][]byte{},
	}
}

// RegisterEventChannels wires the BMC's inbox and its response path.
func (b *Bmc) RegisterEventChannels(inbox *events.Channel, respond func(events.Event)) {
	b.inbox = inbox
	b.respond = respond
}

// PushRecoveryImage queues one firmware image for streaming, in delivery
// order.
func (b *Bmc) PushRecoveryImage(image []byte) {
	b.images = append(b.images, image)
}

// Active reports whether the agent still has work.
func (b *Bmc) Active() bool {
	return b.state != stateDone
}

// splitBlocks cuts an image into zero padded streaming blocks.
func splitBlocks(image []byte) [][]byte {
	var blocks [][]byte
	for off := 0; off < len(image); off += BlockSize {
		block := make([]byte, BlockSize)
		copy(block, image[off:])
		blocks = append(blocks, block)
	}
	return blocks
}

// paddedLen returns the image length rounded up to the block size.
func paddedLen(image []byte) uint32 {
	blocks := (len(image) + BlockSize - 1) / BlockSize
	return uint32(blocks * BlockSize)
}

// Step runs one cadence gated slice of the recovery flow.
func (b *Bmc) Step() {
	if b.state == stateDone {
		return
	}
	if b.running != nil && !b.running.Load() {
		b.state = stateDone
		return
	}
	b.stepCount++
	if b.stepCount%stepCadence != 0 {
		return
	}

	b.drainEvents()

	switch b.state {
	case stateWaitStatus:
		// An IBI means the target just entered recovery mode; otherwise
		// only poll the status register on the slow cadence.
		if _, ok := b.ctrl.PollIbi(); !ok {
			if b.stepCount-b.lastStatusPoll < statusPollCadence {
				return
			}
		}
		b.lastStatusPoll = b.stepCount
		status, err := b.ctrl.BlockRead(i3c.CmdDeviceStatus)
		if err != nil {
			slog.Warn("bmc: device status read failed", "err", err)
			return
		}
		if status[0] != i3c.DeviceStatusRecoveryMode {
			return
		}
		b.state = stateWriteCtrl

	case stateWriteCtrl:
		if len(b.images) == 0 {
			b.state = stateActivate
			return
		}
		image := b.images[0]
		b.images = b.images[1:]
		b.blocks = splitBlocks(image)
		b.ctrlLen = paddedLen(image) / 4

		payload := make([]byte, 6)
		binary.LittleEndian.PutUint32(payload[2:], b.ctrlLen)
		if err := b.ctrl.BlockWrite(i3c.CmdIndirectFifoCtrl, payload); err != nil {
			slog.Error("bmc: indirect fifo ctrl write failed", "err", err)
			b.state = stateDone
			return
		}
		// The target must echo the programmed length; a mismatch means the
		// two sides disagree about the image and the stream cannot proceed.
		echo, err := b.ctrl.BlockRead(i3c.CmdIndirectFifoCtrl)
		if err != nil {
			slog.Error("bmc: indirect fifo ctrl read back failed", "err", err)
			b.state = stateDone
			return
		}
		if got := binary.LittleEndian.Uint32(echo[2:]); got != b.ctrlLen {
			slog.Error("bmc: image length echo mismatch",
				"want", b.ctrlLen, "got", got)
			b.state = stateDone
			return
		}
		b.state = stateStream

	case stateStream:
		for len(b.blocks) > 0 {
			status, err := b.ctrl.BlockRead(i3c.CmdIndirectFifoStatus)
			if err != nil {
				slog.Warn("bmc: fifo status read failed", "err", err)
				return
			}
			if status[0]&1 == 0 {
				// FIFO not empty; let the target drain.
				return
			}
			block := b.blocks[0]
			b.blocks = b.blocks[1:]
			if err := b.ctrl.BlockWrite(i3c.CmdIndirectFifoData, block); err != nil {
				slog.Error("bmc: fifo data write failed", "err", err)
				b.state = stateDone
				return
			}
		}
		b.imageID++
		slog.Info("bmc: image streamed", "image", b.imageID)
		if len(b.images) > 0 {
			b.state = stateWriteCtrl
		} else {
			b.state = stateActivate
		}

	case stateActivate:
		if err := b.ctrl.BlockWrite(i3c.CmdRecoveryCtrl, []byte{0, 0, 0x0f}); err != nil {
			slog.Error("bmc: recovery activate failed", "err", err)
		}
		b.state = stateDone
	}
}

// drainEvents answers recovery block traffic arriving over the event
// channels.
func (b *Bmc) drainEvents() {
	if b.inbox == nil {
		return
	}
	for {
		ev, ok := b.inbox.Recv()
		if !ok {
			return
		}
		switch data := ev.Data.(type) {
		case events.RecoveryBlockWrite:
			b.shadow[data.Code] = append([]byte(nil), data.Payload...)
		case events.RecoveryBlockReadRequest:
			if b.respond == nil {
				continue
			}
			payload := b.shadow[data.Code]
			b.respond(events.Event{
				Src:  events.TagBmc,
				Dest: ev.Src,
				Data: events.RecoveryBlockReadResponse{
					Code:       data.Code,
					TargetAddr: data.TargetAddr,
					SourceAddr: data.SourceAddr,
					Payload:    append([]byte(nil), payload...),
				},
			})
		case events.Wakeup:
			// Fall through to the state machine.
		}
	}
}
