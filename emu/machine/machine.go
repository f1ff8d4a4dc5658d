package machine

/*
 * Caliptra MCU emulator - Two core machine
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
   The machine is the MCU subsystem: the MCU application core and the
   Caliptra security core on their own buses, a shared clock and interrupt
   controller, the full peripheral complement and the recovery BMC. One
   Step executes the MCU core, then the Caliptra core, then the BMC cadence
   slice, then advances the clock one tick and polls the fabric. Single
   threaded by construction: only the UART RX slot and the running flag are
   shared with host threads.
*/

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/bmc"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/clock"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/cpu"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/ctrl"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/dma"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/doe"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/events"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/flashctrl"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/i3c"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/mailbox"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/mci"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/otp"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/pic"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/spiflash"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/uart"
)

// Process exit codes.
const (
	ExitSuccess          = 0
	ExitInitFailure      = 1
	ExitFatalTrap        = 2
	ExitRomFailure       = 3
	ExitFirmwareFailure  = 4
	ExitValidatorTimeout = 5
)

// Interrupt line assignments on the MCU PIC.
const (
	I3cIrq                      uint8 = 17
	DoeMboxEventIrq             uint8 = 18
	PrimaryFlashCtrlErrorIrq    uint8 = 19
	PrimaryFlashCtrlEventIrq    uint8 = 20
	SecondaryFlashCtrlErrorIrq  uint8 = 21
	SecondaryFlashCtrlEventIrq  uint8 = 22
	DmaErrorIrq                 uint8 = 23
	DmaEventIrq                 uint8 = 24
	MciIrq                      uint8 = 25
)

// Caliptra core fixed map.
const (
	caliptraRomOffset  uint32 = 0x0000_0000
	caliptraRomSize    uint32 = 0x0001_8000
	caliptraSramOffset uint32 = 0x4000_0000
	caliptraSramSize   uint32 = 0x0006_0000
)

// EmulatorTicks mirrors the clock for out of band helpers (debug servers).
// It is one of the two process wide atomics; the other is each machine's
// running flag.
var EmulatorTicks atomic.Uint64

// ExternalReadFn services reads of unmapped ranges; returning false surfaces
// a load access fault.
type ExternalReadFn func(size rvbus.Size, addr uint32) (uint32, bool)

// ExternalWriteFn services writes of unmapped ranges; returning false
// surfaces a store access fault.
type ExternalWriteFn func(size rvbus.Size, addr uint32, value uint32) bool

// Config assembles a machine.
type Config struct {
	Layout Layout

	Rom              []byte
	McuFirmware      []byte
	CaliptraRom      []byte
	CaliptraFirmware []byte
	SocManifest      []byte

	// FlashDir holds the flash controller backing files; empty means the
	// process working directory.
	FlashDir            string
	PrimaryFlashImage   []byte
	SecondaryFlashImage []byte

	Otp     otp.Args
	LcState uint32

	UartSink    io.Writer
	CaptureUart bool
	UartRx      *uart.RxSlot

	// ActiveMode runs the streaming recovery flow through the BMC.
	ActiveMode bool

	ExternalRead  ExternalReadFn
	ExternalWrite ExternalWriteFn
}

// externalBus adapts the host callbacks onto a delegate bus segment.
type externalBus struct {
	read  ExternalReadFn
	write ExternalWriteFn
}

func (e *externalBus) Read(size rvbus.Size, addr uint32) (uint32, error) {
	if e.read != nil {
		if v, ok := e.read(size, addr); ok {
			return v, nil
		}
	}
	return 0, rvbus.LoadAccessFault
}

func (e *externalBus) Write(size rvbus.Size, addr uint32, value uint32) error {
	if e.write != nil && e.write(size, addr, value) {
		return nil
	}
	return rvbus.StoreAccessFault
}

func (e *externalBus) Poll()        {}
func (e *externalBus) WarmReset()   {}
func (e *externalBus) UpdateReset() {}

// Machine is the assembled emulator.
type Machine struct {
	McuCpu      *cpu.Cpu
	CaliptraCpu *cpu.Cpu

	Clock *clock.Clock
	Pic   *pic.Pic

	Uart      *uart.Uart
	UartRx    *uart.RxSlot
	I3cTarget *i3c.Target
	I3cCtrl   *i3c.Controller
	Mci       *mci.Mci
	Otp       *otp.Otp
	Bmc       *bmc.Bmc
	Doe       *doe.Doe

	mcuBus      *rvbus.RootBus
	caliptraBus *rvbus.RootBus

	primaryFlash   *flashctrl.FlashCtrl
	secondaryFlash *flashctrl.FlashCtrl

	caliptraSram *rvbus.Ram
	mcuRam       *rvbus.Ram
	layout       Layout

	caliptraInbox *events.Channel

	running   atomic.Bool
	exitCode  atomic.Int32
	debugIrqs map[uint8]*pic.Irq

	runtimeStarted bool
	caliptraHalted bool
	trace          cpu.TraceFn
}

// New builds the machine from its configuration.
func New(cfg Config) (*Machine, error) {
	layout := cfg.Layout
	if layout == (Layout{}) {
		layout = DefaultLayout()
	}
	if len(cfg.Rom) > int(layout.RomSize) {
		return nil, fmt.Errorf("machine: ROM image exceeds %d bytes", layout.RomSize)
	}

	m := &Machine{
		Clock:  clock.New(),
		Pic:    pic.New(),
		layout: layout,
		UartRx: cfg.UartRx,
	}
	m.running.Store(true)

	m.mcuRam = rvbus.NewRamFrom(nil, int(layout.RamSize))
	m.caliptraSram = rvbus.NewRam(int(caliptraSramSize))

	m.Uart = uart.New(cfg.UartSink, cfg.CaptureUart, cfg.UartRx)
	control := ctrl.New(m.requestExit)

	flashDir := cfg.FlashDir
	if flashDir == "" {
		flashDir = "."
	}
	var err error
	m.primaryFlash, err = flashctrl.New(m.Clock,
		filepath.Join(flashDir, "primary_flash"),
		m.Pic.RegisterIrq(PrimaryFlashCtrlErrorIrq),
		m.Pic.RegisterIrq(PrimaryFlashCtrlEventIrq),
		cfg.PrimaryFlashImage)
	if err != nil {
		return nil, err
	}
	m.secondaryFlash, err = flashctrl.New(m.Clock,
		filepath.Join(flashDir, "secondary_flash"),
		m.Pic.RegisterIrq(SecondaryFlashCtrlErrorIrq),
		m.Pic.RegisterIrq(SecondaryFlashCtrlEventIrq),
		cfg.SecondaryFlashImage)
	if err != nil {
		m.primaryFlash.Close()
		return nil, err
	}
	m.primaryFlash.SetDmaRam(m.mcuRam, layout.RamOffset)
	m.secondaryFlash.SetDmaRam(m.mcuRam, layout.RamOffset)

	m.Otp, err = otp.New(cfg.Otp)
	if err != nil {
		m.Close()
		return nil, err
	}
	lcState := cfg.LcState
	if lcState == 0 {
		lcState = otp.LcStateProduction
	}

	m.I3cTarget = i3c.NewTarget(m.Clock, m.Pic.RegisterIrq(I3cIrq), 0x5a)
	m.I3cCtrl = i3c.NewController()
	if err := m.I3cCtrl.CfgInitialize(m.I3cTarget, 0x3a); err != nil {
		m.Close()
		return nil, err
	}

	mbox0 := mailbox.New()
	mbox1 := mailbox.New()
	m.Mci = mci.New(m.Clock, m.Pic.RegisterIrq(MciIrq), mbox0, mbox1)

	m.Doe = doe.New(m.Pic.RegisterIrq(DoeMboxEventIrq))

	dmaCtrl := dma.New(m.Clock,
		m.Pic.RegisterIrq(DmaErrorIrq),
		m.Pic.RegisterIrq(DmaEventIrq))
	extTestSram := rvbus.NewRam(int(layout.ExternalTestSramSize))
	dmaCtrl.SetDmaRam(m.mcuRam, layout.RamOffset)
	dmaCtrl.SetDmaRam(extTestSram, layout.ExternalTestSramOffset)

	spiChip := spiflash.New(m.Clock)

	calMbox := mailbox.New()
	socIface := rvbus.NewRam(int(layout.SocSize))

	// MCU fabric.
	bus := rvbus.NewRootBus()
	mounts := []struct {
		name   string
		offset uint32
		size   uint32
		dev    rvbus.Bus
	}{
		{"rom", layout.RomOffset, layout.RomSize, rvbus.NewRom(cfg.Rom, int(layout.RomSize))},
		{"sram", layout.RamOffset, layout.RamSize, m.mcuRam},
		{"dccm", layout.DccmOffset, layout.DccmSize, rvbus.NewRam(int(layout.DccmSize))},
		{"uart", layout.UartOffset, layout.UartSize, m.Uart},
		{"ctrl", layout.CtrlOffset, layout.CtrlSize, control},
		{"spi", layout.SpiOffset, layout.SpiSize, &spiflash.Bus{Chip: spiChip}},
		{"pic", layout.PicOffset, layout.PicSize, &pic.Bus{Pic: m.Pic}},
		{"external-test-sram", layout.ExternalTestSramOffset, layout.ExternalTestSramSize, extTestSram},
		{"i3c", layout.I3cOffset, layout.I3cSize, &i3c.Bus{Periph: m.I3cTarget}},
		{"primary-flash", layout.PrimaryFlashOffset, layout.PrimaryFlashSize, &flashctrl.Bus{Periph: m.primaryFlash}},
		{"secondary-flash", layout.SecondaryFlashOffset, layout.SecondaryFlashSize, &flashctrl.Bus{Periph: m.secondaryFlash}},
		{"mci", layout.MciOffset, layout.MciSize, &mci.Bus{Periph: m.Mci, Requester: mailbox.RequesterMcu}},
		{"dma", layout.DmaOffset, layout.DmaSize, dmaCtrl},
		{"mbox", layout.MboxOffset, layout.MboxSize, &calMailboxBus{mbox: calMbox, requester: mailbox.RequesterMcu}},
		{"soc", layout.SocOffset, layout.SocSize, socIface},
		{"otp", layout.OtpOffset, layout.OtpSize, &otp.Bus{Periph: m.Otp}},
		{"lc", layout.LcOffset, layout.LcSize, otp.NewLc(lcState)},
		{"doe", layout.DoeOffset, layout.DoeSize, m.Doe},
	}
	for _, mt := range mounts {
		if err := bus.Mount(mt.name, mt.offset, mt.size, mt.dev); err != nil {
			m.Close()
			return nil, err
		}
	}
	if cfg.ExternalRead != nil || cfg.ExternalWrite != nil {
		bus.Delegate(&externalBus{read: cfg.ExternalRead, write: cfg.ExternalWrite})
	}
	m.mcuBus = bus

	// Caliptra fabric: ROM, runtime SRAM, the shared mailbox and the SoC
	// interface window.
	calBus := rvbus.NewRootBus()
	calMounts := []struct {
		name   string
		offset uint32
		size   uint32
		dev    rvbus.Bus
	}{
		{"rom", caliptraRomOffset, caliptraRomSize, rvbus.NewRom(cfg.CaliptraRom, int(caliptraRomSize))},
		{"sram", caliptraSramOffset, caliptraSramSize, m.caliptraSram},
		{"mbox", layout.MboxOffset, layout.MboxSize, &calMailboxBus{mbox: calMbox, requester: mailbox.RequesterCaliptra}},
		{"soc", layout.SocOffset, layout.SocSize, socIface},
	}
	for _, mt := range calMounts {
		if err := calBus.Mount(mt.name, mt.offset, mt.size, mt.dev); err != nil {
			m.Close()
			return nil, err
		}
	}
	m.caliptraBus = calBus

	m.McuCpu = cpu.New(bus, m.Clock, m.Pic)
	m.McuCpu.WritePC(layout.RomOffset)
	m.CaliptraCpu = cpu.New(calBus, m.Clock, nil)
	m.CaliptraCpu.WritePC(caliptraRomOffset)

	m.Clock.SetActionSink(func(a clock.Action) {
		m.McuCpu.HandleAction(a)
	})

	// Event channels: the target announces completed images toward the
	// security core; the machine consumes them on the Caliptra core's
	// behalf and places each image where the boot flow expects it.
	m.caliptraInbox = events.NewChannel(events.TagCaliptraCore)
	bmcInbox := events.NewChannel(events.TagBmc)
	m.I3cTarget.RegisterEventChannels(
		events.NewChannel(events.TagMcuCore),
		m.caliptraInbox.Send)

	if cfg.ActiveMode {
		m.Bmc = bmc.New(m.I3cCtrl, &m.running)
		m.Bmc.RegisterEventChannels(bmcInbox, m.caliptraInbox.Send)
		m.Bmc.PushRecoveryImage(cfg.CaliptraFirmware)
		m.Bmc.PushRecoveryImage(cfg.SocManifest)
		m.Bmc.PushRecoveryImage(cfg.McuFirmware)
		m.I3cTarget.EnterRecoveryMode()
		slog.Info("machine: active mode enabled", "images", 3)
	} else if cfg.McuFirmware != nil {
		// Flash style boot: the runtime image is preloaded into SRAM.
		copy(m.mcuRam.Data(), cfg.McuFirmware)
	}

	return m, nil
}

// requestExit services the control peripheral: firmware hands over its exit
// code and the loop stops at the top of the next step.
func (m *Machine) requestExit(code uint32) {
	m.exitCode.Store(int32(code & 0xff))
	m.running.Store(false)
	slog.Info("machine: firmware requested exit", "code", code&0xff)
}

// Running exposes the shared run flag.
func (m *Machine) Running() *atomic.Bool {
	return &m.running
}

// Stop requests shutdown at the next step boundary. Idempotent.
func (m *Machine) Stop() {
	m.running.Store(false)
}

// ExitCode reports the code the session ended with.
func (m *Machine) ExitCode() int {
	return int(m.exitCode.Load())
}

// RuntimeStarted reports whether the MCU pc has entered the runtime SRAM.
func (m *Machine) RuntimeStarted() bool {
	return m.runtimeStarted
}

// McuBus returns the MCU fabric for monitor and FFI access.
func (m *Machine) McuBus() rvbus.Bus {
	return m.mcuBus
}

// SetExternalInterrupt drives a PIC line from the debug surface. Lines owned
// by a peripheral are off limits.
func (m *Machine) SetExternalInterrupt(n uint8, level bool) error {
	if irq, ok := m.debugIrqs[n]; ok {
		irq.SetLevel(level)
		return nil
	}
	if m.Pic.Registered(n) {
		return fmt.Errorf("irq %d is owned by a peripheral", n)
	}
	if m.debugIrqs == nil {
		m.debugIrqs = map[uint8]*pic.Irq{}
	}
	irq := m.Pic.RegisterIrq(n)
	m.debugIrqs[n] = irq
	irq.SetLevel(level)
	return nil
}

// SetTrace installs the instruction trace hook for both cores.
func (m *Machine) SetTrace(fn cpu.TraceFn) {
	m.trace = fn
}

// Step runs one emulator step per the subsystem's loop contract.
func (m *Machine) Step() cpu.StepAction {
	if !m.running.Load() {
		return cpu.Break
	}

	EmulatorTicks.Store(m.Clock.Now())

	// The UART RX slot is drained by firmware reads; nothing to move here,
	// but a waiting byte keeps the fabric polled so status stays fresh.
	action := m.McuCpu.Step(m.trace)
	if action != cpu.Continue {
		if action == cpu.Fatal {
			m.exitCode.CompareAndSwap(0, ExitFatalTrap)
			m.running.Store(false)
		}
		return action
	}

	if !m.runtimeStarted {
		pc := m.McuCpu.ReadPC()
		if pc >= m.layout.RamOffset && pc < m.layout.RamOffset+m.layout.RamSize {
			m.runtimeStarted = true
			slog.Info("machine: mcu runtime started", "pc", fmt.Sprintf("%#x", pc))
		}
	}

	if !m.caliptraHalted {
		if calAction := m.CaliptraCpu.Step(nil); calAction == cpu.Fatal {
			m.caliptraHalted = true
			slog.Error("machine: caliptra core halted")
		}
	}

	if m.Bmc != nil && m.Bmc.Active() {
		m.Bmc.Step()
	}

	m.drainCaliptraEvents()

	m.Clock.Advance(1, m.mcuBus)
	m.mcuBus.Poll()
	m.caliptraBus.Poll()

	return cpu.Continue
}

// drainCaliptraEvents consumes events addressed to the security core. The
// recovery images land where each boot stage expects them: the Caliptra
// runtime in the security core's SRAM, the SoC manifest in the mailbox SRAM
// and the MCU runtime in the MCU's runtime SRAM.
func (m *Machine) drainCaliptraEvents() {
	for {
		ev, ok := m.caliptraInbox.Recv()
		if !ok {
			return
		}
		avail, ok := ev.Data.(events.RecoveryImageAvailable)
		if !ok {
			continue
		}
		switch avail.ImageID {
		case 0:
			copy(m.caliptraSram.Data(), avail.Image)
		case 1:
			// SoC manifest is consumed by the security core in place.
		case 2:
			copy(m.mcuRam.Data(), avail.Image)
		default:
			slog.Warn("machine: unexpected recovery image", "id", avail.ImageID)
		}
		slog.Info("machine: recovery image placed",
			"id", avail.ImageID, "bytes", len(avail.Image))
	}
}

// Close releases backing files and zeroizes secret fuse partitions.
func (m *Machine) Close() {
	if m.primaryFlash != nil {
		m.primaryFlash.Close()
	}
	if m.secondaryFlash != nil {
		m.secondaryFlash.Close()
	}
	if m.Otp != nil {
		m.Otp.Close()
	}
}
