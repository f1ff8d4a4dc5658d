package regs

/*
 * Caliptra MCU emulator - Register cell tests
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

import "testing"

func TestFields(t *testing.T) {
	op := Bits(1, 2)
	if op.Mask != 0x6 || op.Shift != 1 {
		t.Fatalf("field = %+v", op)
	}
	if op.Val(3) != 0x6 {
		t.Fatalf("val = %#x", op.Val(3))
	}
	if Bit(31).Mask != 0x8000_0000 {
		t.Fatal("bit 31 mask")
	}
}

func TestModifyPreservesNeighbors(t *testing.T) {
	r := NewRW(0xffff_ffff)
	f := Bits(8, 4)
	r.Modify(f, 0x5)
	if got := r.Get(); got != 0xffff_f5ff {
		t.Fatalf("reg = %#x", got)
	}
	if got := r.Read(f); got != 0x5 {
		t.Fatalf("field = %#x", got)
	}
}

func TestSetClearBits(t *testing.T) {
	var r RW
	r.SetBits(0x3)
	if !r.IsSet(Bit(0)) || !r.IsSet(Bit(1)) {
		t.Fatal("bits not set")
	}
	r.ClearBits(0x1)
	if r.IsSet(Bit(0)) || !r.IsSet(Bit(1)) {
		t.Fatalf("reg = %#x", r.Get())
	}
}
