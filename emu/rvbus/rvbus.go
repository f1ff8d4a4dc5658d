package rvbus

/*
 * Caliptra MCU emulator - Memory bus definitions
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
	"fmt"
	"sort"
)

// Size of a single bus access in bytes.
type Size uint32

const (
	Byte     Size = 1
	HalfWord Size = 2
	Word     Size = 4
)

// Valid reports whether s is one of the three architectural access sizes.
func (s Size) Valid() bool {
	return s == Byte || s == HalfWord || s == Word
}

// Fault is a bus access error. The CPU converts faults into the matching
// architectural exception; peripherals latch them into status registers.
type Fault uint8

const (
	LoadAddrMisaligned Fault = iota + 1
	LoadAccessFault
	StoreAddrMisaligned
	StoreAccessFault
)

func (f Fault) Error() string {
	switch f {
	case LoadAddrMisaligned:
		return "load address misaligned"
	case LoadAccessFault:
		return "load access fault"
	case StoreAddrMisaligned:
		return "store address misaligned"
	case StoreAccessFault:
		return "store access fault"
	default:
		return fmt.Sprintf("bus fault %d", uint8(f))
	}
}

// AccessFault returns the access fault variant for the direction of a transfer.
func AccessFault(store bool) Fault {
	if store {
		return StoreAccessFault
	}
	return LoadAccessFault
}

// MisalignedFault returns the misaligned fault variant for the direction of a
// transfer.
func MisalignedFault(store bool) Fault {
	if store {
		return StoreAddrMisaligned
	}
	return LoadAddrMisaligned
}

// Bus is the interface shared by every addressable device, from single
// peripherals up to the root bus itself. Addresses passed to a mounted device
// are relative to its window base. Poll lets timer driven devices convert
// deferred work into register visible state; it is called by the clock after
// every batch of timer actions.
type Bus interface {
	Read(size Size, addr uint32) (uint32, error)
	Write(size Size, addr uint32, value uint32) error
	Poll()
	WarmReset()
	UpdateReset()
}

// window maps [base, base+size) onto a device.
type window struct {
	base uint32
	size uint32
	name string
	dev  Bus
}

// RootBus routes accesses to mounted devices by address window, falling back
// to an ordered list of delegate buses for anything unmatched.
type RootBus struct {
	windows   []window
	delegates []Bus
}

func NewRootBus() *RootBus {
	return &RootBus{}
}

// Mount attaches a device at [base, base+size). Overlapping windows are a
// configuration bug and rejected outright.
func (b *RootBus) Mount(name string, base uint32, size uint32, dev Bus) error {
	if size == 0 {
		return fmt.Errorf("bus window %s: zero size", name)
	}
	if base+size < base {
		return fmt.Errorf("bus window %s: wraps address space", name)
	}
	for i := range b.windows {
		w := &b.windows[i]
		if base < w.base+w.size && w.base < base+size {
			return fmt.Errorf("bus window %s [%08x,%08x) overlaps %s [%08x,%08x)",
				name, base, base+size, w.name, w.base, w.base+w.size)
		}
	}
	b.windows = append(b.windows, window{base: base, size: size, name: name, dev: dev})
	sort.Slice(b.windows, func(i, j int) bool {
		return b.windows[i].base < b.windows[j].base
	})
	return nil
}

// Delegate appends a fallback bus consulted, in order, when no window claims
// an address or a claiming device reports an access fault.
func (b *RootBus) Delegate(dev Bus) {
	b.delegates = append(b.delegates, dev)
}

// find returns the device window containing addr, or nil.
func (b *RootBus) find(addr uint32) *window {
	lo, hi := 0, len(b.windows)
	for lo < hi {
		mid := (lo + hi) / 2
		w := &b.windows[mid]
		switch {
		case addr < w.base:
			hi = mid
		case addr >= w.base+w.size:
			lo = mid + 1
		default:
			return w
		}
	}
	return nil
}

func (b *RootBus) Read(size Size, addr uint32) (uint32, error) {
	if !size.Valid() {
		return 0, LoadAccessFault
	}
	if addr&(uint32(size)-1) != 0 {
		return 0, LoadAddrMisaligned
	}
	if w := b.find(addr); w != nil {
		value, err := w.dev.Read(size, addr-w.base)
		if err != LoadAccessFault {
			return value, err
		}
	}
	for _, d := range b.delegates {
		value, err := d.Read(size, addr)
		if err != LoadAccessFault {
			return value, err
		}
	}
	return 0, LoadAccessFault
}

func (b *RootBus) Write(size Size, addr uint32, value uint32) error {
	if !size.Valid() {
		return StoreAccessFault
	}
	if addr&(uint32(size)-1) != 0 {
		return StoreAddrMisaligned
	}
	if w := b.find(addr); w != nil {
		err := w.dev.Write(size, addr-w.base, value)
		if err != StoreAccessFault {
			return err
		}
	}
	for _, d := range b.delegates {
		err := d.Write(size, addr, value)
		if err != StoreAccessFault {
			return err
		}
	}
	return StoreAccessFault
}

func (b *RootBus) Poll() {
	for i := range b.windows {
		b.windows[i].dev.Poll()
	}
	for _, d := range b.delegates {
		d.Poll()
	}
}

func (b *RootBus) WarmReset() {
	for i := range b.windows {
		b.windows[i].dev.WarmReset()
	}
	for _, d := range b.delegates {
		d.WarmReset()
	}
}

func (b *RootBus) UpdateReset() {
	for i := range b.windows {
		b.windows[i].dev.UpdateReset()
	}
	for _, d := range b.delegates {
		d.UpdateReset()
	}
}
