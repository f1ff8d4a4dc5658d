package uart

/*
 * Caliptra MCU emulator - UART tests
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
	"testing"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

func TestTransmitCaptureAndSink(t *testing.T) {
	var sink bytes.Buffer
	u := New(&sink, true, nil)
	for _, b := range []byte("hi\n") {
		if err := u.Write(rvbus.Word, TxDataOffset, uint32(b)); err != nil {
			t.Fatal(err)
		}
	}
	if sink.String() != "hi\n" {
		t.Errorf("sink = %q", sink.String())
	}
	if string(u.Output()) != "hi\n" {
		t.Errorf("capture = %q", u.Output())
	}
	if string(u.DrainOutput()) != "hi\n" || u.Output() != nil {
		t.Error("drain did not clear the capture")
	}
}

func TestReceiveSlot(t *testing.T) {
	rx := &RxSlot{}
	u := New(nil, false, rx)

	v, _ := u.Read(rvbus.Word, StatusOffset)
	if v&StatusRxValid != 0 {
		t.Fatal("rx valid with empty slot")
	}
	if !rx.Put('z') {
		t.Fatal("put failed")
	}
	v, _ = u.Read(rvbus.Word, StatusOffset)
	if v&StatusRxValid == 0 {
		t.Fatal("rx not valid")
	}
	v, _ = u.Read(rvbus.Word, RxDataOffset)
	if v != 'z' {
		t.Fatalf("rx = %#x", v)
	}
	if _, ok := rx.Take(); ok {
		t.Fatal("slot not drained")
	}
}

func TestSubWordAccessFaults(t *testing.T) {
	u := New(nil, false, nil)
	if _, err := u.Read(rvbus.Byte, StatusOffset); err != rvbus.LoadAccessFault {
		t.Errorf("byte read error = %v", err)
	}
	if err := u.Write(rvbus.HalfWord, TxDataOffset, 0); err != rvbus.StoreAccessFault {
		t.Errorf("half write error = %v", err)
	}
}
