package otp

/*
 * Caliptra MCU emulator - OTP tests
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
	"path/filepath"
	"testing"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

func TestPartitionLayoutNonOverlapping(t *testing.T) {
	for i, a := range Partitions {
		if a.Offset+a.Size > FuseBytes {
			t.Errorf("%s extends past the fuse array", a.Name)
		}
		for _, b := range Partitions[i+1:] {
			if a.Offset < b.Offset+b.Size && b.Offset < a.Offset+a.Size {
				t.Errorf("%s overlaps %s", a.Name, b.Name)
			}
		}
	}
}

func TestAccessorOffsets(t *testing.T) {
	vendor := bytes.Repeat([]byte{0x42}, 48)
	o, err := New(Args{VendorPkHash: vendor})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(o.VendorPkHash(), vendor) {
		t.Error("vendor pk hash mismatch")
	}
	// The accessor's bytes sit at the partition base in the raw array.
	bus := &Bus{Periph: o}
	v, err := bus.Read(rvbus.Word, PartVendorPkHash.Offset)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x4242_4242 {
		t.Errorf("raw word = %#x", v)
	}
}

func TestSvnFuses(t *testing.T) {
	svn := uint8(3)
	maxSvn := uint8(7)
	o, err := New(Args{SocManifestSvn: &svn, SocManifestMaxSvn: &maxSvn})
	if err != nil {
		t.Fatal(err)
	}
	if o.SocManifestSvn() != 3 || o.SocManifestMaxSvn() != 7 {
		t.Errorf("svn = %d/%d", o.SocManifestSvn(), o.SocManifestMaxSvn())
	}
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "otp.bin")
	vendor := bytes.Repeat([]byte{0x11}, 48)
	o, err := New(Args{FileName: path, VendorPkHash: vendor})
	if err != nil {
		t.Fatal(err)
	}
	if err := o.Close(); err != nil {
		t.Fatal(err)
	}
	// A second instance sees the burned values.
	o2, err := New(Args{FileName: path})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(o2.VendorPkHash(), vendor) {
		t.Error("fuses not persisted")
	}
}

func TestSecretZeroizedOnClose(t *testing.T) {
	o, err := New(Args{})
	if err != nil {
		t.Fatal(err)
	}
	secret := bytes.Repeat([]byte{0x77}, int(PartVendorSecretProd.Size))
	o.WritePartition(PartVendorSecretProd, secret)
	if err := o.Close(); err != nil {
		t.Fatal(err)
	}
	for _, b := range o.ReadPartition(PartVendorSecretProd) {
		if b != 0 {
			t.Fatal("secret partition not zeroized")
		}
	}
	// Non secret partitions survive.
	o2, _ := New(Args{VendorPkHash: bytes.Repeat([]byte{5}, 48)})
	o2.Close()
	if o2.VendorPkHash()[0] != 5 {
		t.Error("non secret partition zeroized")
	}
}

func TestFusesReadOnlyFromBus(t *testing.T) {
	o, _ := New(Args{})
	bus := &Bus{Periph: o}
	if err := bus.Write(rvbus.Word, 0, 1); err != rvbus.StoreAccessFault {
		t.Errorf("write error = %v", err)
	}
	if _, err := bus.Read(rvbus.Word, FuseBytes); err != rvbus.LoadAccessFault {
		t.Errorf("out of range read error = %v", err)
	}
}

func TestLifecycle(t *testing.T) {
	lc := NewLc(LcStateProduction)
	v, err := lc.Read(rvbus.Word, LcStateOffset)
	if err != nil || v != LcStateProduction {
		t.Fatalf("state = %d, %v", v, err)
	}
	if err := lc.Write(rvbus.Word, LcTransitionCmdOffset, 1); err != nil {
		t.Fatal(err)
	}
	v, _ = lc.Read(rvbus.Word, LcTransitionCntOffset)
	if v != 1 {
		t.Errorf("transition count = %d", v)
	}
	// State is fixed for the session.
	lc.Write(rvbus.Word, LcStateOffset, LcStateRma)
	v, _ = lc.Read(rvbus.Word, LcStateOffset)
	if v != LcStateProduction {
		t.Errorf("state changed to %d", v)
	}
}
