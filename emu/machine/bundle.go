package machine

/*
 * Caliptra MCU emulator - Recovery bundle loader
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
   A recovery bundle is one file carrying the three streaming boot images
   plus identification metadata, CBOR encoded. It stands in for a full
   firmware update package when one is not available; the package decoder
   proper is an external collaborator.
*/

import (
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// RecoveryBundle is the on disk bundle format.
type RecoveryBundle struct {
	Version          uint32 `cbor:"1,keyasint"`
	Vendor           string `cbor:"2,keyasint,omitempty"`
	CaliptraFirmware []byte `cbor:"3,keyasint"`
	SocManifest      []byte `cbor:"4,keyasint"`
	McuFirmware      []byte `cbor:"5,keyasint"`
}

// bundleVersion is the only on disk version understood.
const bundleVersion = 1

var errBundleVersion = errors.New("machine: unsupported recovery bundle version")

// LoadBundle reads and decodes a recovery bundle file.
func LoadBundle(path string) (*RecoveryBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var bundle RecoveryBundle
	if err := cbor.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("machine: decode recovery bundle: %w", err)
	}
	if bundle.Version != bundleVersion {
		return nil, errBundleVersion
	}
	return &bundle, nil
}

// SaveBundle encodes a bundle to disk, for building test fixtures and
// development images.
func SaveBundle(path string, bundle *RecoveryBundle) error {
	bundle.Version = bundleVersion
	data, err := cbor.Marshal(bundle)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
