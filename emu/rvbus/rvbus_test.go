package rvbus

/*
 * Caliptra MCU emulator - Bus routing tests
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
	"testing"
)

func TestRamRoundTrip(t *testing.T) {
	ram := NewRam(256)
	sizes := []Size{Byte, HalfWord, Word}
	values := []uint32{0xa5, 0xbeef, 0xdead_beef}
	for i, size := range sizes {
		addr := uint32(i * 8)
		if err := ram.Write(size, addr, values[i]); err != nil {
			t.Fatalf("write size %d: %v", size, err)
		}
		got, err := ram.Read(size, addr)
		if err != nil {
			t.Fatalf("read size %d: %v", size, err)
		}
		if got != values[i] {
			t.Errorf("size %d: got %08x, want %08x", size, got, values[i])
		}
	}
}

func TestRamLittleEndian(t *testing.T) {
	ram := NewRam(16)
	if err := ram.Write(Word, 0, 0x0403_0201); err != nil {
		t.Fatal(err)
	}
	for i := uint32(0); i < 4; i++ {
		b, _ := ram.Read(Byte, i)
		if b != i+1 {
			t.Errorf("byte %d = %d, want %d", i, b, i+1)
		}
	}
}

func TestRamFaults(t *testing.T) {
	ram := NewRam(16)
	if _, err := ram.Read(Word, 2); err != LoadAddrMisaligned {
		t.Errorf("misaligned word read: %v", err)
	}
	if _, err := ram.Read(HalfWord, 1); err != LoadAddrMisaligned {
		t.Errorf("misaligned half read: %v", err)
	}
	if err := ram.Write(Word, 2, 0); err != StoreAddrMisaligned {
		t.Errorf("misaligned word write: %v", err)
	}
	if _, err := ram.Read(Word, 16); err != LoadAccessFault {
		t.Errorf("out of range read: %v", err)
	}
	if err := ram.Write(Word, 0xffff_fffc, 0); err != StoreAccessFault {
		t.Errorf("out of range write: %v", err)
	}
}

func TestRomRejectsStores(t *testing.T) {
	rom := NewRom([]byte{1, 2, 3, 4}, 16)
	v, err := rom.Read(Word, 0)
	if err != nil || v != 0x0403_0201 {
		t.Fatalf("rom read = %08x, %v", v, err)
	}
	if err := rom.Write(Word, 0, 0); err != StoreAccessFault {
		t.Errorf("rom write error = %v", err)
	}
}

func TestRootBusRouting(t *testing.T) {
	bus := NewRootBus()
	a := NewRam(0x100)
	b := NewRam(0x100)
	if err := bus.Mount("a", 0x1000, 0x100, a); err != nil {
		t.Fatal(err)
	}
	if err := bus.Mount("b", 0x2000, 0x100, b); err != nil {
		t.Fatal(err)
	}
	if err := bus.Write(Word, 0x1010, 0x11); err != nil {
		t.Fatal(err)
	}
	if err := bus.Write(Word, 0x2010, 0x22); err != nil {
		t.Fatal(err)
	}
	// Each device sees window relative addresses.
	if v, _ := a.Read(Word, 0x10); v != 0x11 {
		t.Errorf("a[0x10] = %x", v)
	}
	if v, _ := b.Read(Word, 0x10); v != 0x22 {
		t.Errorf("b[0x10] = %x", v)
	}
	if v, _ := bus.Read(Word, 0x2010); v != 0x22 {
		t.Errorf("bus read = %x", v)
	}
}

func TestRootBusFaults(t *testing.T) {
	bus := NewRootBus()
	if err := bus.Mount("ram", 0x1000, 0x100, NewRam(0x100)); err != nil {
		t.Fatal(err)
	}
	if _, err := bus.Read(Word, 0x1002); err != LoadAddrMisaligned {
		t.Errorf("misaligned: %v", err)
	}
	if _, err := bus.Read(Word, 0x3000); err != LoadAccessFault {
		t.Errorf("unmapped read: %v", err)
	}
	if err := bus.Write(Word, 0x3000, 1); err != StoreAccessFault {
		t.Errorf("unmapped write: %v", err)
	}
}

func TestRootBusOverlapRejected(t *testing.T) {
	bus := NewRootBus()
	if err := bus.Mount("a", 0x1000, 0x200, NewRam(0x200)); err != nil {
		t.Fatal(err)
	}
	if err := bus.Mount("b", 0x11f0, 0x100, NewRam(0x100)); err == nil {
		t.Fatal("overlapping window accepted")
	}
	if err := bus.Mount("c", 0x1200, 0x100, NewRam(0x100)); err != nil {
		t.Fatalf("adjacent window rejected: %v", err)
	}
}

func TestDelegateFallThrough(t *testing.T) {
	bus := NewRootBus()
	if err := bus.Mount("ram", 0x1000, 0x100, NewRam(0x100)); err != nil {
		t.Fatal(err)
	}
	delegate := NewRootBus()
	dram := NewRam(0x100)
	if err := delegate.Mount("dram", 0x9000, 0x100, dram); err != nil {
		t.Fatal(err)
	}
	bus.Delegate(delegate)

	if err := bus.Write(Word, 0x9004, 0x77); err != nil {
		t.Fatalf("delegate write: %v", err)
	}
	v, err := bus.Read(Word, 0x9004)
	if err != nil || v != 0x77 {
		t.Fatalf("delegate read = %x, %v", v, err)
	}
	// Still faults when nobody claims the address.
	if _, err := bus.Read(Word, 0xf000_0000); err != LoadAccessFault {
		t.Errorf("unclaimed read: %v", err)
	}
}

type writeAtBuf struct {
	data []byte
}

func (w *writeAtBuf) WriteAt(p []byte, off int64) (int, error) {
	copy(w.data[off:], p)
	return len(p), nil
}

func TestRamMirror(t *testing.T) {
	ram := NewRam(32)
	mirror := &writeAtBuf{data: make([]byte, 32)}
	ram.SetMirror(mirror)
	if err := ram.Write(Word, 8, 0x0102_0304); err != nil {
		t.Fatal(err)
	}
	if mirror.data[8] != 4 || mirror.data[11] != 1 {
		t.Errorf("mirror = % x", mirror.data[8:12])
	}
}
