package ctrl

/*
 * Caliptra MCU emulator - Emulator control peripheral
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
   The control window lets firmware end the session and read the generic
   input wires the host wiggles at construction. A write to the exit offset
   requests emulator shutdown with that code; success and failure conventions
   live in the machine package's exit code table.
*/

import (
	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

// Register offsets.
const (
	ExitOffset        uint32 = 0x00
	GenericInput0Offset uint32 = 0x08
	GenericInput1Offset uint32 = 0x0c
)

// Ctrl requests emulator shutdown on behalf of firmware.
type Ctrl struct {
	exitFn  func(code uint32)
	inputs  [2]uint32
}

// New builds the control peripheral; exitFn runs on the emulator thread when
// firmware writes the exit register.
func New(exitFn func(code uint32)) *Ctrl {
	return &Ctrl{exitFn: exitFn}
}

// SetGenericInput presents host controlled wires to firmware.
func (c *Ctrl) SetGenericInput(index int, value uint32) {
	if index >= 0 && index < len(c.inputs) {
		c.inputs[index] = value
	}
}

func (c *Ctrl) Read(size rvbus.Size, addr uint32) (uint32, error) {
	if size != rvbus.Word {
		return 0, rvbus.LoadAccessFault
	}
	switch addr {
	case ExitOffset:
		return 0, nil
	case GenericInput0Offset:
		return c.inputs[0], nil
	case GenericInput1Offset:
		return c.inputs[1], nil
	default:
		return 0, rvbus.LoadAccessFault
	}
}

func (c *Ctrl) Write(size rvbus.Size, addr uint32, value uint32) error {
	if size != rvbus.Word {
		return rvbus.StoreAccessFault
	}
	switch addr {
	case ExitOffset:
		if c.exitFn != nil {
			c.exitFn(value)
		}
		return nil
	case GenericInput0Offset, GenericInput1Offset:
		return nil
	default:
		return rvbus.StoreAccessFault
	}
}

func (c *Ctrl) Poll()        {}
func (c *Ctrl) WarmReset()   {}
func (c *Ctrl) UpdateReset() {}
