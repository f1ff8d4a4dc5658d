package i3c

/*
 * Caliptra MCU emulator - I3C controller
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
   Host side controller in the style of the XI3C driver: configure, assign a
   dynamic address, then polled sends and split receives. MasterRecv arms a
   read; MasterRecvFinish completes it, so a caller that must keep the bus
   poller running can interleave the two.
*/

import (
	"encoding/binary"
	"errors"
)

var ErrNotConfigured = errors.New("i3c: controller not configured")

// Device is the controller's view of a bus target.
type Device interface {
	DynamicAddr() uint8
	AssignDynamicAddress(addr uint8) error
	PrivateWrite(data []byte) error
	PrivateRead(max int) ([]byte, error)
	PollIbi() (uint8, bool)
}

// Controller emulates the host bridge the management controller drives.
type Controller struct {
	dev         Device
	initialized bool
	sclkHz      uint32
	pecEnabled  bool

	recvArmed bool
	recvMax   int
}

func NewController() *Controller {
	return &Controller{}
}

// CfgInitialize binds the controller to a target and assigns its dynamic
// address, the ENTDAA step.
func (c *Controller) CfgInitialize(dev Device, dynamicAddr uint8) error {
	if err := dev.AssignDynamicAddress(dynamicAddr); err != nil {
		return err
	}
	c.dev = dev
	c.initialized = true
	return nil
}

// SetSClk programs the serial clock rate. The emulation keeps the value for
// inspection only.
func (c *Controller) SetSClk(hz uint32) {
	c.sclkHz = hz
}

// SClk returns the programmed serial clock rate.
func (c *Controller) SClk() uint32 {
	return c.sclkHz
}

// SetPecEnabled turns packet error codes on for both directions.
func (c *Controller) SetPecEnabled(enabled bool) {
	c.pecEnabled = enabled
	if t, ok := c.dev.(*Target); ok {
		t.SetPecEnabled(enabled)
	}
}

// MasterSendPolled writes data to the addressed target.
func (c *Controller) MasterSendPolled(addr uint8, data []byte) error {
	if !c.initialized {
		return ErrNotConfigured
	}
	if addr != c.dev.DynamicAddr() {
		return ErrInvalidAddress
	}
	return c.dev.PrivateWrite(data)
}

// MasterRecv arms a read of at most max bytes.
func (c *Controller) MasterRecv(addr uint8, max int) error {
	if !c.initialized {
		return ErrNotConfigured
	}
	if addr != c.dev.DynamicAddr() {
		return ErrInvalidAddress
	}
	c.recvArmed = true
	c.recvMax = max
	return nil
}

// MasterRecvFinish completes an armed read. cancel, when non nil and closed,
// aborts the wait; with the in process target the data is already there, so
// the check is a single poll.
func (c *Controller) MasterRecvFinish(cancel <-chan struct{}) ([]byte, error) {
	if !c.initialized || !c.recvArmed {
		return nil, ErrNotConfigured
	}
	c.recvArmed = false
	if cancel != nil {
		select {
		case <-cancel:
			return nil, ErrNack
		default:
		}
	}
	return c.dev.PrivateRead(c.recvMax)
}

// PollIbi reports a pending in band interrupt from the target.
func (c *Controller) PollIbi() (uint8, bool) {
	if !c.initialized {
		return 0, false
	}
	return c.dev.PollIbi()
}

// BlockWrite runs a recovery block write: code, length, payload in one
// transfer, PEC appended when enabled.
func (c *Controller) BlockWrite(code uint8, payload []byte) error {
	frame := make([]byte, 0, len(payload)+4)
	frame = append(frame, code, byte(len(payload)), byte(len(payload)>>8))
	frame = append(frame, payload...)
	if c.pecEnabled {
		frame = append(frame, Pec(frame))
	}
	return c.MasterSendPolled(c.dev.DynamicAddr(), frame)
}

// BlockRead runs a recovery block read: command write, repeated start read,
// then length validation against the command's payload bounds. A length
// outside the bounds leaves the payload unconsumed.
func (c *Controller) BlockRead(code uint8) ([]byte, error) {
	if !c.initialized {
		return nil, ErrNotConfigured
	}
	minLen, maxLen, ok := CommandBounds(code)
	if !ok {
		return nil, ErrUnknownCommand
	}
	if err := c.MasterSendPolled(c.dev.DynamicAddr(), []byte{code}); err != nil {
		return nil, err
	}
	if err := c.MasterRecv(c.dev.DynamicAddr(), maxLen+3); err != nil {
		return nil, err
	}
	raw, err := c.MasterRecvFinish(nil)
	if err != nil {
		return nil, err
	}
	if len(raw) < 2 {
		return nil, ErrInvalidLength
	}
	if c.pecEnabled {
		body, pec := raw[:len(raw)-1], raw[len(raw)-1]
		if Pec(body) != pec {
			return nil, ErrPecMismatch
		}
		raw = body
	}
	length := int(binary.LittleEndian.Uint16(raw[:2]))
	if length < minLen || length > maxLen {
		return nil, ErrInvalidLength
	}
	if len(raw)-2 < length {
		return nil, ErrInvalidLength
	}
	return raw[2 : 2+length], nil
}
