package flashctrl

/*
 * Caliptra MCU emulator - Flash controller tests
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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/clock"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/pic"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

const testRamBase = 0x4000_0000

type fixture struct {
	clk  *clock.Clock
	pic  *pic.Pic
	bus  *Bus
	ctrl *FlashCtrl
	ram  *rvbus.Ram
	path string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.New()
	p := pic.New()
	path := filepath.Join(t.TempDir(), "flash.bin")
	ctrl, err := New(clk, path, p.RegisterIrq(19), p.RegisterIrq(20), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ctrl.Close() })
	ram := rvbus.NewRam(0x1000)
	ctrl.SetDmaRam(ram, testRamBase)
	return &fixture{clk: clk, pic: p, bus: &Bus{Periph: ctrl}, ctrl: ctrl, ram: ram, path: path}
}

func (f *fixture) write(t *testing.T, offset, value uint32) {
	t.Helper()
	if err := f.bus.Write(rvbus.Word, offset, value); err != nil {
		t.Fatalf("write %#x: %v", offset, err)
	}
}

func (f *fixture) read(t *testing.T, offset uint32) uint32 {
	t.Helper()
	v, err := f.bus.Read(rvbus.Word, offset)
	if err != nil {
		t.Fatalf("read %#x: %v", offset, err)
	}
	return v
}

func (f *fixture) run(ticks uint64) {
	f.clk.Advance(ticks, f.bus)
}

func (f *fixture) start(t *testing.T, op Operation, pageNum, pageAddr uint32) {
	t.Helper()
	f.write(t, PageAddrOffset, pageAddr)
	f.write(t, PageNumOffset, pageNum)
	f.write(t, ControlOffset, CtrlStart.Mask|CtrlOp.Val(uint32(op)))
	f.run(1000)
}

func TestRegisterAccess(t *testing.T) {
	f := newFixture(t)
	f.write(t, IntEnableOffset, IntrError.Mask)
	if got := f.read(t, IntEnableOffset); got != IntrError.Mask {
		t.Errorf("intr_enable = %#x", got)
	}
	f.write(t, PageNumOffset, 0x100)
	if got := f.read(t, PageNumOffset); got != 0x100 {
		t.Errorf("page_num = %#x", got)
	}
	// Page size always reads the fixed size.
	f.write(t, PageSizeOffset, 4096)
	if got := f.read(t, PageSizeOffset); got != PageSize {
		t.Errorf("page_size = %d, want %d", got, PageSize)
	}
	// Interrupt state is write one to clear, so a write cannot set it.
	f.write(t, IntStateOffset, IntrEvent.Mask)
	if got := f.read(t, IntStateOffset); got != 0 {
		t.Errorf("intr_state = %#x, want 0", got)
	}
	if got := f.read(t, CtrlRegwenOffset); got != 1 {
		t.Errorf("ctrl_regwen = %d, want 1", got)
	}
}

func TestWriteThenReadPage(t *testing.T) {
	f := newFixture(t)
	const pageNum = 100
	data := bytes.Repeat([]byte{0xaa}, PageSize)
	copy(f.ram.Data()[0x100:], data)

	f.start(t, OpWritePage, pageNum, testRamBase+0x100)
	if got := f.read(t, OpStatusOffset); got&StatusDone.Mask == 0 {
		t.Fatalf("op_status = %#x, want done", got)
	}
	if got := f.read(t, IntStateOffset); got&IntrEvent.Mask == 0 {
		t.Fatalf("intr_state = %#x, want event", got)
	}
	onDisk, err := os.ReadFile(f.path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(onDisk[pageNum*PageSize:(pageNum+1)*PageSize], data) {
		t.Error("page content mismatch on disk")
	}

	// Clear completion, read it back into a different buffer.
	f.write(t, IntStateOffset, IntrEvent.Mask)
	f.write(t, OpStatusOffset, 0)
	f.start(t, OpReadPage, pageNum, testRamBase+0x800)
	if !bytes.Equal(f.ram.Data()[0x800:0x800+PageSize], data) {
		t.Error("read back mismatch")
	}
}

func TestErasePage(t *testing.T) {
	f := newFixture(t)
	const pageNum = 50
	copy(f.ram.Data()[0:], bytes.Repeat([]byte{0xbb}, PageSize))
	f.start(t, OpWritePage, pageNum, testRamBase)
	f.write(t, IntStateOffset, IntrEvent.Mask)
	f.write(t, OpStatusOffset, 0)

	f.start(t, OpErasePage, pageNum, 0)
	if got := f.read(t, OpStatusOffset); got&StatusDone.Mask == 0 {
		t.Fatalf("op_status = %#x, want done", got)
	}
	onDisk, err := os.ReadFile(f.path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(onDisk[pageNum*PageSize:(pageNum+1)*PageSize],
		bytes.Repeat([]byte{0xff}, PageSize)) {
		t.Error("erased page not all 0xFF")
	}
}

func TestPageNumBoundary(t *testing.T) {
	f := newFixture(t)
	f.start(t, OpErasePage, MaxPages, 0)
	status := f.read(t, OpStatusOffset)
	if status&StatusErr.Mask == 0 {
		t.Fatalf("op_status = %#x, want error", status)
	}
	if code := OpError((status & StatusCode.Mask) >> StatusCode.Shift); code != EraseError {
		t.Errorf("err code = %d, want %d", code, EraseError)
	}
	if got := f.read(t, IntStateOffset); got&IntrError.Mask == 0 {
		t.Errorf("intr_state = %#x, want error", got)
	}

	// MaxPages-1 succeeds.
	f.write(t, IntStateOffset, IntrError.Mask)
	f.write(t, OpStatusOffset, 0)
	f.start(t, OpErasePage, MaxPages-1, 0)
	if got := f.read(t, OpStatusOffset); got&StatusDone.Mask == 0 {
		t.Errorf("op_status = %#x, want done", got)
	}
}

func TestDmaRangeError(t *testing.T) {
	f := newFixture(t)
	f.start(t, OpWritePage, 1, 0x1000) // far outside the DMA window
	status := f.read(t, OpStatusOffset)
	if status&StatusErr.Mask == 0 {
		t.Fatalf("op_status = %#x, want error", status)
	}
	if code := OpError((status & StatusCode.Mask) >> StatusCode.Shift); code != DmaRamAccessError {
		t.Errorf("err code = %d, want %d", code, DmaRamAccessError)
	}
}

func TestInvalidOp(t *testing.T) {
	f := newFixture(t)
	f.write(t, ControlOffset, CtrlStart.Mask) // op = 0
	f.run(1000)
	status := f.read(t, OpStatusOffset)
	if code := OpError((status & StatusCode.Mask) >> StatusCode.Shift); code != InvalidOp {
		t.Errorf("err code = %d, want %d", code, InvalidOp)
	}
}

func TestControlLockedWhileBusy(t *testing.T) {
	f := newFixture(t)
	f.write(t, ControlOffset, CtrlStart.Mask|CtrlOp.Val(uint32(OpErasePage)))
	if got := f.read(t, CtrlRegwenOffset); got != 0 {
		t.Fatalf("ctrl_regwen = %d, want 0 while busy", got)
	}
	// A second write while locked is silently dropped.
	f.write(t, ControlOffset, CtrlStart.Mask|CtrlOp.Val(uint32(OpWritePage)))
	if got := f.read(t, ControlOffset); Operation((got&CtrlOp.Mask)>>CtrlOp.Shift) != OpErasePage {
		t.Errorf("control overwritten while locked: %#x", got)
	}
	f.run(1000)
	// Completion alone does not re-arm; clearing interrupt state does.
	if got := f.read(t, CtrlRegwenOffset); got != 0 {
		t.Fatalf("ctrl_regwen re-armed before W1C")
	}
	f.write(t, IntStateOffset, IntrEvent.Mask)
	if got := f.read(t, CtrlRegwenOffset); got != 1 {
		t.Fatalf("ctrl_regwen = %d after W1C, want 1", got)
	}
}

func TestEventInterruptFiresOnce(t *testing.T) {
	f := newFixture(t)
	f.write(t, IntEnableOffset, IntrEvent.Mask)
	copy(f.ram.Data()[0:], bytes.Repeat([]byte{0xcc}, PageSize))
	f.start(t, OpWritePage, 3, testRamBase)
	if !f.pic.Level(20) {
		t.Fatal("event irq not asserted")
	}
	f.write(t, IntStateOffset, IntrEvent.Mask)
	if f.pic.Level(20) {
		t.Fatal("event irq still asserted after W1C")
	}
}
