package regs

/*
 * Caliptra MCU emulator - Register cells for generated peripheral adapters
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

// Field describes one bit field of a 32 bit register: a mask and the shift of
// its least significant bit. Field values move between the register and the
// caller already shifted down.
type Field struct {
	Mask  uint32
	Shift uint
}

// Bit builds a single bit field at position n.
func Bit(n uint) Field {
	return Field{Mask: 1 << n, Shift: n}
}

// Bits builds a field of width bits starting at position lsb.
func Bits(lsb, width uint) Field {
	return Field{Mask: ((1 << width) - 1) << lsb, Shift: lsb}
}

// Val places a field value into register position.
func (f Field) Val(v uint32) uint32 {
	return (v << f.Shift) & f.Mask
}

// RW is a 32 bit read/write register cell. The zero value is a register
// holding zero.
type RW struct {
	v uint32
}

func NewRW(v uint32) RW {
	return RW{v: v}
}

func (r *RW) Get() uint32 {
	return r.v
}

func (r *RW) Set(v uint32) {
	r.v = v
}

// IsSet reports whether every bit of the field's mask is set.
func (r *RW) IsSet(f Field) bool {
	return r.v&f.Mask == f.Mask
}

// Read returns the shifted down value of a field.
func (r *RW) Read(f Field) uint32 {
	return (r.v & f.Mask) >> f.Shift
}

// Modify replaces one field, leaving the rest of the register untouched.
func (r *RW) Modify(f Field, v uint32) {
	r.v = (r.v &^ f.Mask) | ((v << f.Shift) & f.Mask)
}

// SetBits sets every bit in the mask.
func (r *RW) SetBits(mask uint32) {
	r.v |= mask
}

// ClearBits clears every bit in the mask.
func (r *RW) ClearBits(mask uint32) {
	r.v &^= mask
}
