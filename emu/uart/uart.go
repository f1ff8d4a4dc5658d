package uart

/*
 * Caliptra MCU emulator - UART peripheral
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
	"io"
	"sync"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

// Register offsets.
const (
	TxDataOffset uint32 = 0x00
	RxDataOffset uint32 = 0x04
	StatusOffset uint32 = 0x08
)

// Status bits.
const (
	StatusTxReady uint32 = 1 << 0
	StatusRxValid uint32 = 1 << 1
)

// RxSlot is the single byte handoff between a host side reader thread and
// the emulator thread. It is the only UART state that crosses threads.
type RxSlot struct {
	mu    sync.Mutex
	b     byte
	valid bool
}

// Put offers a byte to the slot. Returns false when a previous byte has not
// been consumed yet.
func (s *RxSlot) Put(b byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.valid {
		return false
	}
	s.b = b
	s.valid = true
	return true
}

// Take removes the pending byte, if any.
func (s *RxSlot) Take() (byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid {
		return 0, false
	}
	s.valid = false
	return s.b, true
}

// Ready reports whether a byte is waiting.
func (s *RxSlot) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valid
}

// Uart is a transmit console plus a one byte receive side fed by the host.
type Uart struct {
	sink    io.Writer
	capture []byte
	keep    bool
	rx      *RxSlot
}

// New builds a UART writing to sink (may be nil). When capture is true the
// full output history stays available through Output.
func New(sink io.Writer, capture bool, rx *RxSlot) *Uart {
	return &Uart{sink: sink, keep: capture, rx: rx}
}

// Output returns the captured transmit history.
func (u *Uart) Output() []byte {
	return u.capture
}

// DrainOutput returns and clears the captured transmit history.
func (u *Uart) DrainOutput() []byte {
	out := u.capture
	u.capture = nil
	return out
}

func (u *Uart) Read(size rvbus.Size, addr uint32) (uint32, error) {
	if size != rvbus.Word {
		return 0, rvbus.LoadAccessFault
	}
	switch addr {
	case RxDataOffset:
		if u.rx != nil {
			if b, ok := u.rx.Take(); ok {
				return uint32(b), nil
			}
		}
		return 0, nil
	case StatusOffset:
		status := StatusTxReady
		if u.rx != nil && u.rx.Ready() {
			status |= StatusRxValid
		}
		return status, nil
	case TxDataOffset:
		return 0, nil
	default:
		return 0, rvbus.LoadAccessFault
	}
}

func (u *Uart) Write(size rvbus.Size, addr uint32, value uint32) error {
	if size != rvbus.Word {
		return rvbus.StoreAccessFault
	}
	switch addr {
	case TxDataOffset:
		b := byte(value)
		if u.keep {
			u.capture = append(u.capture, b)
		}
		if u.sink != nil {
			_, _ = u.sink.Write([]byte{b})
		}
		return nil
	case RxDataOffset, StatusOffset:
		return nil
	default:
		return rvbus.StoreAccessFault
	}
}

func (u *Uart) Poll()        {}
func (u *Uart) WarmReset()   {}
func (u *Uart) UpdateReset() {}
