package machine

/*
 * Caliptra MCU emulator - Memory layout
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

// Layout fixes the (offset, size) of every region on the MCU fabric. The
// defaults match the subsystem integration map; every field except PicSize,
// DoeOffset and DoeSize can be overridden per instance through Overrides.
// Those three always keep their defaults.
type Layout struct {
	RomOffset  uint32
	RomSize    uint32
	UartOffset uint32
	UartSize   uint32
	CtrlOffset uint32
	CtrlSize   uint32
	SpiOffset  uint32
	SpiSize    uint32
	RamOffset  uint32
	RamSize    uint32
	PicOffset  uint32
	PicSize    uint32

	ExternalTestSramOffset uint32
	ExternalTestSramSize   uint32
	DccmOffset             uint32
	DccmSize               uint32

	I3cOffset            uint32
	I3cSize              uint32
	PrimaryFlashOffset   uint32
	PrimaryFlashSize     uint32
	SecondaryFlashOffset uint32
	SecondaryFlashSize   uint32
	MciOffset            uint32
	MciSize              uint32
	DmaOffset            uint32
	DmaSize              uint32
	MboxOffset           uint32
	MboxSize             uint32
	SocOffset            uint32
	SocSize              uint32
	OtpOffset            uint32
	OtpSize              uint32
	LcOffset             uint32
	LcSize               uint32
	DoeOffset            uint32
	DoeSize              uint32
}

// DefaultLayout returns the integration map defaults.
func DefaultLayout() Layout {
	return Layout{
		RomOffset:  0x8000_0000,
		RomSize:    0x0001_0000,
		UartOffset: 0x1000_1000,
		UartSize:   0x100,
		CtrlOffset: 0x1000_2000,
		CtrlSize:   0x100,
		SpiOffset:  0x1000_3000,
		SpiSize:    0x200,
		RamOffset:  0x4000_0000,
		RamSize:    0x0026_0000,
		PicOffset:  0x6000_0000,
		PicSize:    0x0001_0000,

		ExternalTestSramOffset: 0x8800_0000,
		ExternalTestSramSize:   0x0100_0000,
		DccmOffset:             0x5000_0000,
		DccmSize:               0x0002_0000,

		I3cOffset:            0x2000_4000,
		I3cSize:              0x1000,
		PrimaryFlashOffset:   0x2100_0000,
		PrimaryFlashSize:     0x1000,
		SecondaryFlashOffset: 0x2100_1000,
		SecondaryFlashSize:   0x1000,
		MciOffset:            0x2140_0000,
		MciSize:              0x00c0_0000,
		DmaOffset:            0x2200_0000,
		DmaSize:              0x1000,
		MboxOffset:           0x3002_0000,
		MboxSize:             0x0001_0000,
		SocOffset:            0x3003_0000,
		SocSize:              0x1000,
		OtpOffset:            0x7000_0000,
		OtpSize:              0x1000,
		LcOffset:             0x7000_1000,
		LcSize:               0x1000,
		DoeOffset:            0x2100_2000,
		DoeSize:              0x2000,
	}
}

// Overrides carries per instance layout changes; a negative value keeps the
// default.
type Overrides struct {
	RomOffset  int64
	RomSize    int64
	UartOffset int64
	UartSize   int64
	CtrlOffset int64
	CtrlSize   int64
	SpiOffset  int64
	SpiSize    int64
	RamOffset  int64
	RamSize    int64
	PicOffset  int64

	ExternalTestSramOffset int64
	ExternalTestSramSize   int64
	DccmOffset             int64
	DccmSize               int64

	I3cOffset            int64
	I3cSize              int64
	PrimaryFlashOffset   int64
	PrimaryFlashSize     int64
	SecondaryFlashOffset int64
	SecondaryFlashSize   int64
	MciOffset            int64
	MciSize              int64
	DmaOffset            int64
	DmaSize              int64
	MboxOffset           int64
	MboxSize             int64
	SocOffset            int64
	SocSize              int64
	OtpOffset            int64
	OtpSize              int64
	LcOffset             int64
	LcSize               int64
}

// NewOverrides returns an Overrides with every field set to keep defaults.
func NewOverrides() Overrides {
	return Overrides{
		RomOffset: -1, RomSize: -1, UartOffset: -1, UartSize: -1,
		CtrlOffset: -1, CtrlSize: -1, SpiOffset: -1, SpiSize: -1,
		RamOffset: -1, RamSize: -1, PicOffset: -1,
		ExternalTestSramOffset: -1, ExternalTestSramSize: -1,
		DccmOffset: -1, DccmSize: -1,
		I3cOffset: -1, I3cSize: -1,
		PrimaryFlashOffset: -1, PrimaryFlashSize: -1,
		SecondaryFlashOffset: -1, SecondaryFlashSize: -1,
		MciOffset: -1, MciSize: -1, DmaOffset: -1, DmaSize: -1,
		MboxOffset: -1, MboxSize: -1, SocOffset: -1, SocSize: -1,
		OtpOffset: -1, OtpSize: -1, LcOffset: -1, LcSize: -1,
	}
}

func override(dst *uint32, v int64) {
	if v >= 0 {
		*dst = uint32(v)
	}
}

// Apply folds the overrides into a layout.
func (l Layout) Apply(o Overrides) Layout {
	override(&l.RomOffset, o.RomOffset)
	override(&l.RomSize, o.RomSize)
	override(&l.UartOffset, o.UartOffset)
	override(&l.UartSize, o.UartSize)
	override(&l.CtrlOffset, o.CtrlOffset)
	override(&l.CtrlSize, o.CtrlSize)
	override(&l.SpiOffset, o.SpiOffset)
	override(&l.SpiSize, o.SpiSize)
	override(&l.RamOffset, o.RamOffset)
	override(&l.RamSize, o.RamSize)
	override(&l.PicOffset, o.PicOffset)
	override(&l.ExternalTestSramOffset, o.ExternalTestSramOffset)
	override(&l.ExternalTestSramSize, o.ExternalTestSramSize)
	override(&l.DccmOffset, o.DccmOffset)
	override(&l.DccmSize, o.DccmSize)
	override(&l.I3cOffset, o.I3cOffset)
	override(&l.I3cSize, o.I3cSize)
	override(&l.PrimaryFlashOffset, o.PrimaryFlashOffset)
	override(&l.PrimaryFlashSize, o.PrimaryFlashSize)
	override(&l.SecondaryFlashOffset, o.SecondaryFlashOffset)
	override(&l.SecondaryFlashSize, o.SecondaryFlashSize)
	override(&l.MciOffset, o.MciOffset)
	override(&l.MciSize, o.MciSize)
	override(&l.DmaOffset, o.DmaOffset)
	override(&l.DmaSize, o.DmaSize)
	override(&l.MboxOffset, o.MboxOffset)
	override(&l.MboxSize, o.MboxSize)
	override(&l.SocOffset, o.SocOffset)
	override(&l.SocSize, o.SocSize)
	override(&l.OtpOffset, o.OtpOffset)
	override(&l.OtpSize, o.OtpSize)
	override(&l.LcOffset, o.LcOffset)
	override(&l.LcSize, o.LcSize)
	return l
}
