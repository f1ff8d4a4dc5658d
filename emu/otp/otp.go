package otp

/*
 * Caliptra MCU emulator - OTP fuse controller
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
   The fuse map is a fixed offset layout generated from the hardware
   description: every partition is a (byte offset, byte size) pair with a
   typed accessor. The whole array can be persisted to a file between runs;
   secret partitions are zeroized when the controller closes.
*/

import (
	"encoding/binary"
	"os"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

// FuseBytes is the size of the fuse array.
const FuseBytes = 4096

// Partition describes one fuse partition.
type Partition struct {
	Name   string
	Offset uint32
	Size   uint32
	Secret bool
}

// Fuse partition map. Offsets are generated from the hardware description.
var (
	PartTestUnlockToken   = Partition{Name: "TEST_UNLOCK_TOKEN", Offset: 0x000, Size: 64, Secret: true}
	PartManufState        = Partition{Name: "MANUF_STATE", Offset: 0x040, Size: 64}
	PartOwnerPkHash       = Partition{Name: "OWNER_PK_HASH", Offset: 0x080, Size: 48}
	PartVendorPkHash      = Partition{Name: "VENDOR_PK_HASH", Offset: 0x0b0, Size: 48}
	PartVendorPqcType     = Partition{Name: "VENDOR_PQC_TYPE", Offset: 0x0e0, Size: 4}
	PartSocManifestSvn    = Partition{Name: "SOC_MANIFEST_SVN", Offset: 0x0e4, Size: 16}
	PartSocManifestMaxSvn = Partition{Name: "SOC_MANIFEST_MAX_SVN", Offset: 0x0f4, Size: 4}
	PartVendorHashesProd  = Partition{Name: "VENDOR_HASHES_PROD", Offset: 0x100, Size: 256}
	PartVendorSecretProd  = Partition{Name: "VENDOR_SECRET_PROD", Offset: 0x200, Size: 128, Secret: true}
	PartLifeCycle         = Partition{Name: "LIFE_CYCLE", Offset: 0x280, Size: 88}
)

// Partitions lists the full map in layout order.
var Partitions = []Partition{
	PartTestUnlockToken,
	PartManufState,
	PartOwnerPkHash,
	PartVendorPkHash,
	PartVendorPqcType,
	PartSocManifestSvn,
	PartSocManifestMaxSvn,
	PartVendorHashesProd,
	PartVendorSecretProd,
	PartLifeCycle,
}

// PQC key types burned into the vendor PQC fuse.
const (
	PqcTypeLms   uint32 = 0
	PqcTypeMldsa uint32 = 1
)

// Args carries the host provided fuse values.
type Args struct {
	FileName string // optional persistence file

	OwnerPkHash              []byte
	VendorPkHash             []byte
	VendorPqcType            uint32
	SocManifestSvn           *uint8
	SocManifestMaxSvn        *uint8
	VendorHashesProdPartition []byte
}

// Otp is the fuse controller.
type Otp struct {
	fuses [FuseBytes]byte
	path  string
}

// New loads the persisted fuse array, if any, then applies the host provided
// values on top.
func New(args Args) (*Otp, error) {
	o := &Otp{path: args.FileName}
	if args.FileName != "" {
		data, err := os.ReadFile(args.FileName)
		switch {
		case err == nil:
			copy(o.fuses[:], data)
		case os.IsNotExist(err):
			// First run, fuses start blank.
		default:
			return nil, err
		}
	}
	if args.OwnerPkHash != nil {
		o.WritePartition(PartOwnerPkHash, args.OwnerPkHash)
	}
	if args.VendorPkHash != nil {
		o.WritePartition(PartVendorPkHash, args.VendorPkHash)
	}
	var pqc [4]byte
	binary.LittleEndian.PutUint32(pqc[:], args.VendorPqcType)
	o.WritePartition(PartVendorPqcType, pqc[:])
	if args.SocManifestSvn != nil {
		o.fuses[PartSocManifestSvn.Offset] = *args.SocManifestSvn
	}
	if args.SocManifestMaxSvn != nil {
		o.fuses[PartSocManifestMaxSvn.Offset] = *args.SocManifestMaxSvn
	}
	if args.VendorHashesProdPartition != nil {
		o.WritePartition(PartVendorHashesProd, args.VendorHashesProdPartition)
	}
	return o, nil
}

// ReadPartition returns a copy of the partition's bytes.
func (o *Otp) ReadPartition(p Partition) []byte {
	out := make([]byte, p.Size)
	copy(out, o.fuses[p.Offset:p.Offset+p.Size])
	return out
}

// ReadByte returns one byte at a field offset inside a partition.
func (o *Otp) ReadByte(p Partition, off uint32) byte {
	if off >= p.Size {
		return 0
	}
	return o.fuses[p.Offset+off]
}

// WritePartition burns bytes into a partition, truncated to its size.
func (o *Otp) WritePartition(p Partition, data []byte) {
	n := uint32(len(data))
	if n > p.Size {
		n = p.Size
	}
	copy(o.fuses[p.Offset:p.Offset+n], data[:n])
}

// Typed accessors.

func (o *Otp) OwnerPkHash() []byte {
	return o.ReadPartition(PartOwnerPkHash)
}

func (o *Otp) VendorPkHash() []byte {
	return o.ReadPartition(PartVendorPkHash)
}

func (o *Otp) VendorPqcType() uint32 {
	return binary.LittleEndian.Uint32(o.fuses[PartVendorPqcType.Offset:])
}

func (o *Otp) SocManifestSvn() byte {
	return o.ReadByte(PartSocManifestSvn, 0)
}

func (o *Otp) SocManifestMaxSvn() byte {
	return o.ReadByte(PartSocManifestMaxSvn, 0)
}

// Close persists the fuse array (when configured) and zeroizes every secret
// partition in memory.
func (o *Otp) Close() error {
	var err error
	if o.path != "" {
		err = os.WriteFile(o.path, o.fuses[:], 0o644)
	}
	for _, p := range Partitions {
		if !p.Secret {
			continue
		}
		for i := p.Offset; i < p.Offset+p.Size; i++ {
			o.fuses[i] = 0
		}
	}
	return err
}

// Bus exposes the fuse array read only, one little endian word at a time.
type Bus struct {
	Periph *Otp
}

func (b *Bus) Read(size rvbus.Size, addr uint32) (uint32, error) {
	if size != rvbus.Word {
		return 0, rvbus.LoadAccessFault
	}
	if addr+4 > FuseBytes {
		return 0, rvbus.LoadAccessFault
	}
	return binary.LittleEndian.Uint32(b.Periph.fuses[addr:]), nil
}

func (b *Bus) Write(size rvbus.Size, addr uint32, value uint32) error {
	// Fuses are not writable from the fabric.
	return rvbus.StoreAccessFault
}

func (b *Bus) Poll()        {}
func (b *Bus) WarmReset()   {}
func (b *Bus) UpdateReset() {}
