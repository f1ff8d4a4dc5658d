package flashctrl

/*
 * Caliptra MCU emulator - Flash controller peripheral
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
   The controller moves whole pages between a backing file and a page buffer
   in DMA RAM. Software programs page_num and page_addr, then sets control
   with the start bit and an operation. Writes to control are locked out by
   ctrl_regwen while an operation is outstanding; the regwen re-arms when the
   completion interrupt state is cleared. The operation itself runs after a
   fixed I/O start delay on the shared clock.
*/

import (
	"io"
	"os"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/clock"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/pic"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/regs"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

const (
	// PageSize is the page size of the flash parts behind the controller.
	PageSize = 256

	// MaxPages bounds the backing storage at 64 MiB.
	MaxPages = 64 * 1024 * 1024 / PageSize

	// ioStartDelay is the tick delay between the start bit and the
	// operation executing.
	ioStartDelay = 200
)

// Operations accepted in control.op.
type Operation uint32

const (
	OpReadPage  Operation = 1
	OpWritePage Operation = 2
	OpErasePage Operation = 3
)

// Error codes latched into op_status.err.
type OpError uint32

const (
	ReadError OpError = iota
	WriteError
	EraseError
	InvalidOp
	DmaRamAccessError
)

// Register fields.
var (
	IntrError = regs.Bit(0)
	IntrEvent = regs.Bit(1)

	CtrlStart = regs.Bit(0)
	CtrlOp    = regs.Bits(1, 2)

	StatusDone = regs.Bit(0)
	StatusErr  = regs.Bit(1)
	StatusCode = regs.Bits(4, 3)

	RegwenEn = regs.Bit(0)
)

// FlashCtrl is one flash controller instance. Two are mounted, primary and
// secondary.
type FlashCtrl struct {
	intrState  regs.RW
	intrEnable regs.RW
	pageSize   regs.RW
	pageNum    regs.RW
	pageAddr   regs.RW
	control    regs.RW
	opStatus   regs.RW
	ctrlRegwen regs.RW

	dmaRam  *rvbus.Ram
	ramBase uint32

	timer clock.Timer
	file  *os.File
	buf   [PageSize]byte

	opStart *clock.ActionHandle

	errorIrq *pic.Irq
	eventIrq *pic.Irq
}

// New opens (creating if needed) the backing file and wires the interrupt
// lines. initial, when non nil, seeds the file from offset zero.
func New(clk *clock.Clock, path string, errorIrq, eventIrq *pic.Irq, initial []byte) (*FlashCtrl, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	if initial != nil {
		if _, err := file.WriteAt(initial, 0); err != nil {
			file.Close()
			return nil, err
		}
	}
	return &FlashCtrl{
		timer:      clock.NewTimer(clk),
		file:       file,
		errorIrq:   errorIrq,
		eventIrq:   eventIrq,
		ctrlRegwen: regs.NewRW(1),
	}, nil
}

// SetDmaRam lends the controller its page buffer RAM. base is the bus address
// of the region, used to validate page_addr.
func (f *FlashCtrl) SetDmaRam(ram *rvbus.Ram, base uint32) {
	f.dmaRam = ram
	f.ramBase = base
}

// Close releases the backing file.
func (f *FlashCtrl) Close() error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

func (f *FlashCtrl) raiseEvent() {
	f.intrState.SetBits(IntrEvent.Mask)
	if f.intrEnable.IsSet(IntrEvent) {
		f.eventIrq.SetLevel(true)
		f.timer.SchedulePollIn(10)
	}
}

func (f *FlashCtrl) raiseError() {
	f.intrState.SetBits(IntrError.Mask)
	if f.intrEnable.IsSet(IntrError) {
		f.errorIrq.SetLevel(true)
		f.timer.SchedulePollIn(1)
	}
}

func (f *FlashCtrl) complete(opErr *OpError) {
	if opErr == nil {
		f.opStatus.SetBits(StatusDone.Mask)
		f.raiseEvent()
		return
	}
	f.opStatus.SetBits(StatusErr.Mask)
	f.opStatus.Modify(StatusCode, uint32(*opErr))
	f.raiseError()
}

// dmaRangeOK checks the page buffer lies fully inside the DMA RAM window.
func (f *FlashCtrl) dmaRangeOK(addr uint32) bool {
	if f.dmaRam == nil {
		return false
	}
	return addr >= f.ramBase && addr+PageSize <= f.ramBase+f.dmaRam.Len()
}

func (f *FlashCtrl) readPage() *OpError {
	pageNum := f.pageNum.Get()
	if pageNum >= MaxPages || f.file == nil {
		return errPtr(ReadError)
	}
	if !f.dmaRangeOK(f.pageAddr.Get()) {
		return errPtr(DmaRamAccessError)
	}
	if _, err := f.file.ReadAt(f.buf[:], int64(pageNum)*PageSize); err != nil && err != io.EOF {
		return errPtr(ReadError)
	}
	start := f.pageAddr.Get() - f.ramBase
	copy(f.dmaRam.Data()[start:start+PageSize], f.buf[:])
	return nil
}

func (f *FlashCtrl) writePage() *OpError {
	pageNum := f.pageNum.Get()
	if pageNum >= MaxPages || f.file == nil {
		return errPtr(WriteError)
	}
	if !f.dmaRangeOK(f.pageAddr.Get()) {
		return errPtr(DmaRamAccessError)
	}
	start := f.pageAddr.Get() - f.ramBase
	copy(f.buf[:], f.dmaRam.Data()[start:start+PageSize])
	if _, err := f.file.WriteAt(f.buf[:], int64(pageNum)*PageSize); err != nil {
		return errPtr(WriteError)
	}
	return nil
}

func (f *FlashCtrl) erasePage() *OpError {
	pageNum := f.pageNum.Get()
	if pageNum >= MaxPages || f.file == nil {
		return errPtr(EraseError)
	}
	blank := [PageSize]byte{}
	for i := range blank {
		blank[i] = 0xff
	}
	if _, err := f.file.WriteAt(blank[:], int64(pageNum)*PageSize); err != nil {
		return errPtr(EraseError)
	}
	return nil
}

func errPtr(e OpError) *OpError {
	return &e
}

// processIO runs the operation latched in control.
func (f *FlashCtrl) processIO() {
	if !f.control.IsSet(CtrlStart) {
		return
	}
	switch Operation(f.control.Read(CtrlOp)) {
	case OpReadPage:
		f.complete(f.readPage())
	case OpWritePage:
		f.complete(f.writePage())
	case OpErasePage:
		f.complete(f.erasePage())
	default:
		f.complete(errPtr(InvalidOp))
	}
}

// Register accessors, one pair per field block, called by the bus adapter.

func (f *FlashCtrl) ReadIntrState() uint32 {
	return f.intrState.Get()
}

// WriteIntrState is write-1-to-clear. Clearing a completion state re-arms
// ctrl_regwen for the next operation.
func (f *FlashCtrl) WriteIntrState(val uint32) {
	w := regs.NewRW(val)
	if w.IsSet(IntrError) {
		f.intrState.ClearBits(IntrError.Mask)
		f.errorIrq.SetLevel(false)
		f.ctrlRegwen.SetBits(RegwenEn.Mask)
	}
	if w.IsSet(IntrEvent) {
		f.intrState.ClearBits(IntrEvent.Mask)
		f.eventIrq.SetLevel(false)
		f.ctrlRegwen.SetBits(RegwenEn.Mask)
	}
}

func (f *FlashCtrl) ReadIntrEnable() uint32 {
	return f.intrEnable.Get()
}

// WriteIntrEnable raises a line at once when its state bit is already set.
func (f *FlashCtrl) WriteIntrEnable(val uint32) {
	w := regs.NewRW(val)
	if f.intrState.IsSet(IntrError) && w.IsSet(IntrError) {
		f.errorIrq.SetLevel(true)
		f.timer.SchedulePollIn(1)
	}
	if f.intrState.IsSet(IntrEvent) && w.IsSet(IntrEvent) {
		f.eventIrq.SetLevel(true)
		f.timer.SchedulePollIn(1)
	}
	f.intrEnable.Set(val)
}

// ReadPageSize always reports the fixed page size, whatever was written.
func (f *FlashCtrl) ReadPageSize() uint32 {
	return PageSize
}

func (f *FlashCtrl) WritePageSize(val uint32) {
	f.pageSize.Set(val)
}

func (f *FlashCtrl) ReadPageNum() uint32 {
	return f.pageNum.Get()
}

func (f *FlashCtrl) WritePageNum(val uint32) {
	f.pageNum.Set(val)
}

func (f *FlashCtrl) ReadPageAddr() uint32 {
	return f.pageAddr.Get()
}

func (f *FlashCtrl) WritePageAddr(val uint32) {
	f.pageAddr.Set(val)
}

func (f *FlashCtrl) ReadControl() uint32 {
	return f.control.Get()
}

// WriteControl latches the next operation. Dropped silently while regwen is
// clear.
func (f *FlashCtrl) WriteControl(val uint32) {
	if !f.ctrlRegwen.IsSet(RegwenEn) {
		return
	}
	f.control.Set(val)
	if f.control.IsSet(CtrlStart) {
		f.ctrlRegwen.ClearBits(RegwenEn.Mask)
		f.opStart = f.timer.SchedulePollIn(ioStartDelay)
	}
}

func (f *FlashCtrl) ReadOpStatus() uint32 {
	return f.opStatus.Get()
}

func (f *FlashCtrl) WriteOpStatus(val uint32) {
	f.opStatus.Set(val)
}

func (f *FlashCtrl) ReadCtrlRegwen() uint32 {
	return f.ctrlRegwen.Get()
}

// Poll runs the deferred operation once its start delay elapses.
func (f *FlashCtrl) Poll() {
	if f.timer.Fired(&f.opStart) {
		f.processIO()
	}
}

func (f *FlashCtrl) WarmReset()   {}
func (f *FlashCtrl) UpdateReset() {}
