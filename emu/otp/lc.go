package otp

/*
 * Caliptra MCU emulator - Lifecycle controller
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
	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

// Lifecycle states, encoded the way firmware reads them.
const (
	LcStateRaw           uint32 = 0
	LcStateTestUnlocked  uint32 = 1
	LcStateManufacturing uint32 = 2
	LcStateProduction    uint32 = 3
	LcStateRma           uint32 = 4
)

// Lifecycle register offsets.
const (
	LcStateOffset          uint32 = 0x00
	LcTransitionCntOffset  uint32 = 0x04
	LcTransitionCmdOffset  uint32 = 0x08
	LcTransitionRegwenOffset uint32 = 0x0c
)

// Lc is the lifecycle controller. Transitions are accepted but only counted;
// the state itself is fixed at construction the way the silicon fixes it at
// boot.
type Lc struct {
	state       uint32
	transitions uint32
}

func NewLc(state uint32) *Lc {
	return &Lc{state: state}
}

func (l *Lc) State() uint32 {
	return l.state
}

func (l *Lc) Read(size rvbus.Size, addr uint32) (uint32, error) {
	if size != rvbus.Word {
		return 0, rvbus.LoadAccessFault
	}
	switch addr {
	case LcStateOffset:
		return l.state, nil
	case LcTransitionCntOffset:
		return l.transitions, nil
	case LcTransitionCmdOffset:
		return 0, nil
	case LcTransitionRegwenOffset:
		return 1, nil
	default:
		return 0, rvbus.LoadAccessFault
	}
}

func (l *Lc) Write(size rvbus.Size, addr uint32, value uint32) error {
	if size != rvbus.Word {
		return rvbus.StoreAccessFault
	}
	switch addr {
	case LcTransitionCmdOffset:
		if value&1 != 0 {
			l.transitions++
		}
		return nil
	case LcStateOffset, LcTransitionCntOffset, LcTransitionRegwenOffset:
		return nil
	default:
		return rvbus.StoreAccessFault
	}
}

func (l *Lc) Poll()        {}
func (l *Lc) WarmReset()   {}
func (l *Lc) UpdateReset() {}
