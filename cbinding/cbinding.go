/*
 * Caliptra MCU emulator - C binding
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

// Build with: go build -buildmode=c-shared -o libcaliptra_mcu_emu.so ./cbinding

package main

/*
#include <stdint.h>
#include <stddef.h>

typedef struct emulator_config {
	const char *rom_path;
	const char *firmware_path;
	const char *caliptra_rom_path;
	const char *caliptra_firmware_path;
	const char *soc_manifest_path;
	const char *otp_path;
	int active_mode;

	// Region overrides; negative means use the default.
	int64_t rom_offset;
	int64_t rom_size;
	int64_t uart_offset;
	int64_t uart_size;
	int64_t sram_offset;
	int64_t sram_size;
	int64_t i3c_offset;
	int64_t i3c_size;
	int64_t mci_offset;
	int64_t mci_size;
	int64_t otp_offset;
	int64_t otp_size;

	// Optional callbacks servicing unmapped address ranges. Both return
	// non zero on success.
	int (*external_read)(uint32_t size, uint32_t addr, uint32_t *value);
	int (*external_write)(uint32_t size, uint32_t addr, uint32_t value);
} emulator_config_t;

static int call_external_read(int (*fn)(uint32_t, uint32_t, uint32_t *),
	uint32_t size, uint32_t addr, uint32_t *value) {
	return fn(size, addr, value);
}

static int call_external_write(int (*fn)(uint32_t, uint32_t, uint32_t),
	uint32_t size, uint32_t addr, uint32_t value) {
	return fn(size, addr, value);
}
*/
import "C"

import (
	"os"
	"sync"
	"unsafe"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/cpu"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/machine"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/otp"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/uart"
)

// Error codes returned across the boundary.
const (
	errOK              C.int = 0
	errNullPointer     C.int = 1
	errInvalidArgument C.int = 2
	errInitFailure     C.int = 3
	errBusFault        C.int = 4
)

// Step results returned by emulator_step.
const (
	stepContinue C.int = 0
	stepBreak    C.int = 1
	stepFatal    C.int = 2
)

// instances maps opaque handles to machines. Handle zero is never issued.
var (
	mu         sync.Mutex
	instances  = map[C.longlong]*machine.Machine{}
	nextHandle C.longlong = 1
)

func lookup(handle C.longlong) *machine.Machine {
	mu.Lock()
	defer mu.Unlock()
	return instances[handle]
}

func loadFile(path *C.char) ([]byte, error) {
	if path == nil {
		return nil, nil
	}
	return os.ReadFile(C.GoString(path))
}

//export emulator_init
func emulator_init(config *C.emulator_config_t, handleOut *C.longlong) C.int {
	if config == nil || handleOut == nil {
		return errNullPointer
	}
	if config.rom_path == nil {
		return errInvalidArgument
	}

	rom, err := loadFile(config.rom_path)
	if err != nil {
		return errInitFailure
	}

	overrides := machine.NewOverrides()
	overrides.RomOffset = int64(config.rom_offset)
	overrides.RomSize = int64(config.rom_size)
	overrides.UartOffset = int64(config.uart_offset)
	overrides.UartSize = int64(config.uart_size)
	overrides.RamOffset = int64(config.sram_offset)
	overrides.RamSize = int64(config.sram_size)
	overrides.I3cOffset = int64(config.i3c_offset)
	overrides.I3cSize = int64(config.i3c_size)
	overrides.MciOffset = int64(config.mci_offset)
	overrides.MciSize = int64(config.mci_size)
	overrides.OtpOffset = int64(config.otp_offset)
	overrides.OtpSize = int64(config.otp_size)

	cfg := machine.Config{
		Layout:      machine.DefaultLayout().Apply(overrides),
		Rom:         rom,
		ActiveMode:  config.active_mode != 0,
		CaptureUart: true,
		UartRx:      &uart.RxSlot{},
	}
	if cfg.McuFirmware, err = loadFile(config.firmware_path); err != nil {
		return errInitFailure
	}
	if cfg.CaliptraRom, err = loadFile(config.caliptra_rom_path); err != nil {
		return errInitFailure
	}
	if cfg.CaliptraFirmware, err = loadFile(config.caliptra_firmware_path); err != nil {
		return errInitFailure
	}
	if cfg.SocManifest, err = loadFile(config.soc_manifest_path); err != nil {
		return errInitFailure
	}
	if config.otp_path != nil {
		cfg.Otp = otp.Args{FileName: C.GoString(config.otp_path)}
	}

	if config.external_read != nil {
		fn := config.external_read
		cfg.ExternalRead = func(size rvbus.Size, addr uint32) (uint32, bool) {
			var value C.uint32_t
			ok := C.call_external_read(fn, C.uint32_t(size), C.uint32_t(addr), &value)
			return uint32(value), ok != 0
		}
	}
	if config.external_write != nil {
		fn := config.external_write
		cfg.ExternalWrite = func(size rvbus.Size, addr uint32, value uint32) bool {
			ok := C.call_external_write(fn, C.uint32_t(size), C.uint32_t(addr),
				C.uint32_t(value))
			return ok != 0
		}
	}

	m, err := machine.New(cfg)
	if err != nil {
		return errInitFailure
	}

	mu.Lock()
	handle := nextHandle
	nextHandle++
	instances[handle] = m
	mu.Unlock()

	*handleOut = handle
	return errOK
}

//export emulator_step
func emulator_step(handle C.longlong) C.int {
	m := lookup(handle)
	if m == nil {
		return stepFatal
	}
	switch m.Step() {
	case cpu.Continue:
		return stepContinue
	case cpu.Break:
		return stepBreak
	default:
		return stepFatal
	}
}

//export emulator_destroy
func emulator_destroy(handle C.longlong) C.int {
	mu.Lock()
	m := instances[handle]
	delete(instances, handle)
	mu.Unlock()
	if m == nil {
		return errInvalidArgument
	}
	m.Stop()
	m.Close()
	return errOK
}

//export emulator_read_xreg
func emulator_read_xreg(handle C.longlong, reg C.uint32_t, value *C.uint32_t) C.int {
	m := lookup(handle)
	if m == nil {
		return errInvalidArgument
	}
	if value == nil {
		return errNullPointer
	}
	if reg > 31 {
		return errInvalidArgument
	}
	*value = C.uint32_t(m.McuCpu.ReadXReg(uint8(reg)))
	return errOK
}

//export emulator_write_xreg
func emulator_write_xreg(handle C.longlong, reg C.uint32_t, value C.uint32_t) C.int {
	m := lookup(handle)
	if m == nil {
		return errInvalidArgument
	}
	if reg > 31 {
		return errInvalidArgument
	}
	m.McuCpu.WriteXReg(uint8(reg), uint32(value))
	return errOK
}

//export emulator_read_csr
func emulator_read_csr(handle C.longlong, num C.uint32_t, value *C.uint32_t) C.int {
	m := lookup(handle)
	if m == nil {
		return errInvalidArgument
	}
	if value == nil {
		return errNullPointer
	}
	if num > 0xfff {
		return errInvalidArgument
	}
	*value = C.uint32_t(m.McuCpu.ReadCsr(uint16(num)))
	return errOK
}

//export emulator_write_csr
func emulator_write_csr(handle C.longlong, num C.uint32_t, value C.uint32_t) C.int {
	m := lookup(handle)
	if m == nil {
		return errInvalidArgument
	}
	if num > 0xfff {
		return errInvalidArgument
	}
	m.McuCpu.WriteCsr(uint16(num), uint32(value))
	return errOK
}

//export emulator_read_pc
func emulator_read_pc(handle C.longlong, value *C.uint32_t) C.int {
	m := lookup(handle)
	if m == nil {
		return errInvalidArgument
	}
	if value == nil {
		return errNullPointer
	}
	*value = C.uint32_t(m.McuCpu.ReadPC())
	return errOK
}

//export emulator_write_pc
func emulator_write_pc(handle C.longlong, value C.uint32_t) C.int {
	m := lookup(handle)
	if m == nil {
		return errInvalidArgument
	}
	m.McuCpu.WritePC(uint32(value))
	return errOK
}

//export emulator_set_external_interrupt
func emulator_set_external_interrupt(handle C.longlong, line C.uint32_t, level C.int) C.int {
	m := lookup(handle)
	if m == nil {
		return errInvalidArgument
	}
	if line > 63 {
		return errInvalidArgument
	}
	if err := m.SetExternalInterrupt(uint8(line), level != 0); err != nil {
		return errInvalidArgument
	}
	return errOK
}

//export emulator_read_bus
func emulator_read_bus(handle C.longlong, size C.uint32_t, addr C.uint32_t, value *C.uint32_t) C.int {
	m := lookup(handle)
	if m == nil {
		return errInvalidArgument
	}
	if value == nil {
		return errNullPointer
	}
	sz := rvbus.Size(size)
	if !sz.Valid() {
		return errInvalidArgument
	}
	v, err := m.McuBus().Read(sz, uint32(addr))
	if err != nil {
		return errBusFault
	}
	*value = C.uint32_t(v)
	return errOK
}

//export emulator_write_bus
func emulator_write_bus(handle C.longlong, size C.uint32_t, addr C.uint32_t, value C.uint32_t) C.int {
	m := lookup(handle)
	if m == nil {
		return errInvalidArgument
	}
	sz := rvbus.Size(size)
	if !sz.Valid() {
		return errInvalidArgument
	}
	if err := m.McuBus().Write(sz, uint32(addr), uint32(value)); err != nil {
		return errBusFault
	}
	return errOK
}

//export emulator_get_uart_output
func emulator_get_uart_output(handle C.longlong, buf *C.uint8_t, bufLen C.size_t, outLen *C.size_t) C.int {
	m := lookup(handle)
	if m == nil {
		return errInvalidArgument
	}
	if buf == nil || outLen == nil {
		return errNullPointer
	}
	out := m.Uart.DrainOutput()
	n := len(out)
	if n > int(bufLen) {
		n = int(bufLen)
	}
	dst := unsafe.Slice((*byte)(buf), int(bufLen))
	copy(dst, out[:n])
	*outLen = C.size_t(n)
	return errOK
}

//export emulator_send_uart_char
func emulator_send_uart_char(handle C.longlong, ch C.uint8_t) C.int {
	m := lookup(handle)
	if m == nil {
		return errInvalidArgument
	}
	if m.UartRx == nil || !m.UartRx.Put(byte(ch)) {
		return errInvalidArgument
	}
	return errOK
}

//export emulator_uart_rx_ready
func emulator_uart_rx_ready(handle C.longlong) C.int {
	m := lookup(handle)
	if m == nil || m.UartRx == nil {
		return 0
	}
	if m.UartRx.Ready() {
		return 0
	}
	return 1
}

//export emulator_trigger_exit
func emulator_trigger_exit(handle C.longlong) C.int {
	m := lookup(handle)
	if m == nil {
		return errInvalidArgument
	}
	m.Stop()
	return errOK
}

func main() {}
