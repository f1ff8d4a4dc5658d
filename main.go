/*
 * Caliptra MCU emulator - Main process
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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	getopt "github.com/pborman/getopt/v2"
	"github.com/tarm/serial"
	"golang.org/x/term"

	"github.com/chipsalliance/caliptra-mcu-emu/command/reader"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/core"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/machine"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/otp"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/uart"
	"github.com/chipsalliance/caliptra-mcu-emu/telnet"
	"github.com/chipsalliance/caliptra-mcu-emu/util/logger"
)

// layoutFlag is one overridable region parameter.
type layoutFlag struct {
	name  string
	value *string
	dst   *int64
}

func main() {
	os.Exit(run())
}

func run() int {
	optRom := getopt.StringLong("rom", 'r', "", "MCU ROM binary")
	optFirmware := getopt.StringLong("firmware", 'f', "", "MCU runtime binary")
	optCaliptraRom := getopt.StringLong("caliptra-rom", 0, "", "Caliptra ROM binary")
	optCaliptraFw := getopt.StringLong("caliptra-firmware", 0, "", "Caliptra runtime binary")
	optSocManifest := getopt.StringLong("soc-manifest", 0, "", "SoC manifest binary")
	optBundle := getopt.StringLong("recovery-bundle", 0, "", "CBOR recovery bundle (replaces the three image flags)")
	optActive := getopt.BoolLong("active-mode", 'a', "Stream firmware through the recovery interface")

	optOtp := getopt.StringLong("otp", 'o', "", "File to store OTP fuses between runs")
	optVendorPkHash := getopt.StringLong("vendor-pk-hash", 0, "", "Vendor key hash fuse (hex)")
	optOwnerPkHash := getopt.StringLong("owner-pk-hash", 0, "", "Owner key hash fuse (hex)")

	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optDebug := getopt.BoolLong("debug", 'd', "Mirror debug records to stderr")
	optTrace := getopt.StringLong("trace-instr", 't', "", "Instruction trace file")

	optNoStdinUart := getopt.BoolLong("no-stdin-uart", 0, "Do not pass stdin to the MCU UART")
	optUartPort := getopt.StringLong("uart-port", 0, "", "Serve the UART on a TCP address")
	optUartSerial := getopt.StringLong("uart-serial", 0, "", "Bridge the UART to a host serial device")
	optUartBaud := getopt.IntLong("uart-baud", 0, 115200, "Serial bridge baud rate")
	optMonitor := getopt.BoolLong("monitor", 'm', "Interactive monitor on stdin (disables stdin UART)")

	optPrimaryImage := getopt.StringLong("primary-flash-image", 0, "", "Primary flash preload image")
	optSecondaryImage := getopt.StringLong("secondary-flash-image", 0, "", "Secondary flash preload image")
	optFlashDir := getopt.StringLong("flash-dir", 0, "", "Directory for flash backing files")

	optHelp := getopt.BoolLong("help", 'h', "Help")

	// Region overrides, all "use default" unless given.
	overrides := machine.NewOverrides()
	layoutFlags := []layoutFlag{
		{name: "rom-offset", dst: &overrides.RomOffset},
		{name: "rom-size", dst: &overrides.RomSize},
		{name: "uart-offset", dst: &overrides.UartOffset},
		{name: "uart-size", dst: &overrides.UartSize},
		{name: "ctrl-offset", dst: &overrides.CtrlOffset},
		{name: "ctrl-size", dst: &overrides.CtrlSize},
		{name: "spi-offset", dst: &overrides.SpiOffset},
		{name: "spi-size", dst: &overrides.SpiSize},
		{name: "sram-offset", dst: &overrides.RamOffset},
		{name: "sram-size", dst: &overrides.RamSize},
		{name: "pic-offset", dst: &overrides.PicOffset},
		{name: "external-test-sram-offset", dst: &overrides.ExternalTestSramOffset},
		{name: "external-test-sram-size", dst: &overrides.ExternalTestSramSize},
		{name: "dccm-offset", dst: &overrides.DccmOffset},
		{name: "dccm-size", dst: &overrides.DccmSize},
		{name: "i3c-offset", dst: &overrides.I3cOffset},
		{name: "i3c-size", dst: &overrides.I3cSize},
		{name: "primary-flash-offset", dst: &overrides.PrimaryFlashOffset},
		{name: "primary-flash-size", dst: &overrides.PrimaryFlashSize},
		{name: "secondary-flash-offset", dst: &overrides.SecondaryFlashOffset},
		{name: "secondary-flash-size", dst: &overrides.SecondaryFlashSize},
		{name: "mci-offset", dst: &overrides.MciOffset},
		{name: "mci-size", dst: &overrides.MciSize},
		{name: "dma-offset", dst: &overrides.DmaOffset},
		{name: "dma-size", dst: &overrides.DmaSize},
		{name: "mbox-offset", dst: &overrides.MboxOffset},
		{name: "mbox-size", dst: &overrides.MboxSize},
		{name: "soc-offset", dst: &overrides.SocOffset},
		{name: "soc-size", dst: &overrides.SocSize},
		{name: "otp-offset", dst: &overrides.OtpOffset},
		{name: "otp-size", dst: &overrides.OtpSize},
		{name: "lc-offset", dst: &overrides.LcOffset},
		{name: "lc-size", dst: &overrides.LcSize},
	}
	for i := range layoutFlags {
		layoutFlags[i].value = getopt.StringLong(layoutFlags[i].name, 0, "",
			"Override "+layoutFlags[i].name+" (hex ok)")
	}

	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		return machine.ExitSuccess
	}

	var logFile *os.File
	if *optLogFile != "" {
		var err error
		logFile, err = os.Create(*optLogFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return machine.ExitInitFailure
		}
		defer logFile.Close()
	}
	slog.SetDefault(slog.New(logger.NewHandler(logFile, slog.LevelDebug, *optDebug)))
	slog.Info("caliptra mcu emulator started")

	for _, lf := range layoutFlags {
		if *lf.value == "" {
			continue
		}
		v, err := parseNumber(*lf.value)
		if err != nil {
			slog.Error("bad layout override", "flag", lf.name, "value", *lf.value)
			return machine.ExitInitFailure
		}
		*lf.dst = int64(v)
	}

	if *optRom == "" {
		slog.Error("please specify an MCU ROM image with --rom")
		return machine.ExitInitFailure
	}
	rom, err := os.ReadFile(*optRom)
	if err != nil {
		slog.Error("cannot read ROM", "err", err)
		return machine.ExitInitFailure
	}

	cfg := machine.Config{
		Layout:     machine.DefaultLayout().Apply(overrides),
		Rom:        rom,
		FlashDir:   *optFlashDir,
		ActiveMode: *optActive,
		Otp: otp.Args{
			FileName: *optOtp,
		},
	}
	if cfg.Otp.VendorPkHash, err = readHexFlag(*optVendorPkHash); err != nil {
		slog.Error("bad vendor-pk-hash", "err", err)
		return machine.ExitInitFailure
	}
	if cfg.Otp.OwnerPkHash, err = readHexFlag(*optOwnerPkHash); err != nil {
		slog.Error("bad owner-pk-hash", "err", err)
		return machine.ExitInitFailure
	}

	if cfg.McuFirmware, err = readOptional(*optFirmware); err != nil {
		slog.Error("cannot read firmware", "err", err)
		return machine.ExitInitFailure
	}
	if cfg.CaliptraRom, err = readOptional(*optCaliptraRom); err != nil {
		slog.Error("cannot read caliptra ROM", "err", err)
		return machine.ExitInitFailure
	}
	if cfg.CaliptraFirmware, err = readOptional(*optCaliptraFw); err != nil {
		slog.Error("cannot read caliptra firmware", "err", err)
		return machine.ExitInitFailure
	}
	if cfg.SocManifest, err = readOptional(*optSocManifest); err != nil {
		slog.Error("cannot read SoC manifest", "err", err)
		return machine.ExitInitFailure
	}
	if *optBundle != "" {
		bundle, err := machine.LoadBundle(*optBundle)
		if err != nil {
			slog.Error("cannot load recovery bundle", "err", err)
			return machine.ExitInitFailure
		}
		cfg.CaliptraFirmware = bundle.CaliptraFirmware
		cfg.SocManifest = bundle.SocManifest
		cfg.McuFirmware = bundle.McuFirmware
		slog.Info("recovery bundle loaded", "vendor", bundle.Vendor)
	}
	if cfg.PrimaryFlashImage, err = readOptional(*optPrimaryImage); err != nil {
		slog.Error("cannot read primary flash image", "err", err)
		return machine.ExitInitFailure
	}
	if cfg.SecondaryFlashImage, err = readOptional(*optSecondaryImage); err != nil {
		slog.Error("cannot read secondary flash image", "err", err)
		return machine.ExitInitFailure
	}

	// UART wiring: TCP console, host serial bridge or plain stdout, plus the
	// stdin receive path when the terminal allows it.
	rx := &uart.RxSlot{}
	cfg.UartRx = rx
	cfg.CaptureUart = true

	var console *telnet.Server
	if *optUartPort != "" {
		console, err = telnet.Start(*optUartPort, rx)
		if err != nil {
			slog.Error("cannot start uart console", "err", err)
			return machine.ExitInitFailure
		}
		defer console.Stop()
		cfg.UartSink = console
	} else if *optUartSerial != "" {
		port, err := serial.OpenPort(&serial.Config{
			Name: *optUartSerial,
			Baud: *optUartBaud,
		})
		if err != nil {
			slog.Error("cannot open serial device", "err", err)
			return machine.ExitInitFailure
		}
		defer port.Close()
		cfg.UartSink = port
		go serialReader(port, rx)
	} else {
		cfg.UartSink = os.Stdout
	}

	m, err := machine.New(cfg)
	if err != nil {
		slog.Error(err.Error())
		return machine.ExitInitFailure
	}
	defer m.Close()

	var traceFile *os.File
	if *optTrace != "" {
		traceFile, err = os.Create(*optTrace)
		if err != nil {
			slog.Error("cannot create trace file", "err", err)
			return machine.ExitInitFailure
		}
		defer traceFile.Close()
		m.SetTrace(func(pc uint32, instr uint32, compressed bool) {
			if compressed {
				fmt.Fprintf(traceFile, "0x%08x   .short 0x%04x\n", pc, instr)
			} else {
				fmt.Fprintf(traceFile, "0x%08x   .word  0x%08x\n", pc, instr)
			}
		})
	}

	stdinUart := !*optNoStdinUart && !*optMonitor && term.IsTerminal(int(os.Stdin.Fd()))
	var restoreTerm func()
	if stdinUart {
		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err == nil {
			restoreTerm = func() { _ = term.Restore(int(os.Stdin.Fd()), oldState) }
			defer restoreTerm()
		}
		go stdinReader(m, rx)
	}

	emulator := core.New(m)
	go emulator.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if *optMonitor {
		monitorDone := make(chan struct{})
		go func() {
			reader.ConsoleReader(emulator)
			close(monitorDone)
		}()
		select {
		case <-sigChan:
			slog.Info("got quit signal")
		case <-monitorDone:
		case <-emulator.Finished():
		}
	} else {
		select {
		case <-sigChan:
			slog.Info("got quit signal")
		case <-emulator.Finished():
		}
	}

	emulator.Stop()
	slog.Info("emulator shut down", "exit", m.ExitCode())
	return m.ExitCode()
}

// stdinReader moves terminal bytes into the UART receive slot until the
// machine stops.
func stdinReader(m *machine.Machine, rx *uart.RxSlot) {
	buf := make([]byte, 1)
	for m.Running().Load() {
		n, err := os.Stdin.Read(buf)
		if err != nil || n == 0 {
			return
		}
		if buf[0] == 3 { // ctrl-c in raw mode
			m.Stop()
			return
		}
		for !rx.Put(buf[0]) {
			if !m.Running().Load() {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}
}

// serialReader bridges a host serial device into the UART receive slot.
func serialReader(port *serial.Port, rx *uart.RxSlot) {
	buf := make([]byte, 64)
	for {
		n, err := port.Read(buf)
		if err != nil {
			return
		}
		for _, b := range buf[:n] {
			for !rx.Put(b) {
				time.Sleep(time.Millisecond)
			}
		}
	}
}

// readOptional loads a file when the flag was given.
func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

// readHexFlag decodes a hex string flag into bytes.
func readHexFlag(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd hex length")
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		v, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(v)
	}
	return out, nil
}

// parseNumber accepts decimal or 0x prefixed hex.
func parseNumber(s string) (uint64, error) {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "0x") {
		return strconv.ParseUint(lower[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}
