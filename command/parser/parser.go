package parser

/*
 * Caliptra MCU emulator - Monitor command parser
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
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/core"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/machine"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/rvbus"
)

var commandNames = []string{
	"csr", "go", "halt", "help", "irq", "mem", "pc", "quit", "reg", "step",
}

// CompleteCmd returns command names matching a prefix, for line completion.
func CompleteCmd(line string) []string {
	var out []string
	for _, name := range commandNames {
		if strings.HasPrefix(name, strings.ToLower(line)) {
			out = append(out, name)
		}
	}
	return out
}

// parseNumber accepts decimal or 0x hex.
func parseNumber(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"),
		numberBase(s), 64)
}

func numberBase(s string) int {
	if strings.HasPrefix(strings.ToLower(s), "0x") {
		return 16
	}
	return 10
}

// parseReg accepts x0..x31 or a bare register number.
func parseReg(s string) (uint8, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "x")
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || n > 31 {
		return 0, fmt.Errorf("bad register %q", s)
	}
	return uint8(n), nil
}

// ProcessCommand executes one monitor line. Returns quit=true on quit.
func ProcessCommand(line string, c *core.Core) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "quit", "exit":
		return true, nil

	case "help", "?":
		fmt.Println("commands:")
		fmt.Println("  step [n]         single step the machine")
		fmt.Println("  go               resume free running execution")
		fmt.Println("  halt             pause execution")
		fmt.Println("  pc [value]       read or set the MCU pc")
		fmt.Println("  reg xN [value]   read or set an MCU register")
		fmt.Println("  csr num [value]  read or set an MCU CSR")
		fmt.Println("  mem addr [value] read or write a bus word")
		fmt.Println("  irq n 0|1        drive an external interrupt line")
		fmt.Println("  quit             leave the emulator")
		return false, nil

	case "step":
		n := 1
		if len(args) > 0 {
			v, err := parseNumber(args[0])
			if err != nil {
				return false, err
			}
			n = int(v)
		}
		c.StepN(n)
		c.Do(func(m *machine.Machine) {
			fmt.Printf("pc %08x\n", m.McuCpu.ReadPC())
		})
		return false, nil

	case "go":
		c.Resume()
		return false, nil

	case "halt":
		c.Halt()
		return false, nil

	case "pc":
		c.Do(func(m *machine.Machine) {
			if len(args) > 0 {
				if v, err := parseNumber(args[0]); err == nil {
					m.McuCpu.WritePC(uint32(v))
				}
			}
			fmt.Printf("pc %08x\n", m.McuCpu.ReadPC())
		})
		return false, nil

	case "reg":
		if len(args) == 0 {
			c.Do(func(m *machine.Machine) {
				for reg := uint8(0); reg < 32; reg++ {
					fmt.Printf("x%-2d %08x", reg, m.McuCpu.ReadXReg(reg))
					if reg%4 == 3 {
						fmt.Println()
					} else {
						fmt.Print("  ")
					}
				}
			})
			return false, nil
		}
		reg, err := parseReg(args[0])
		if err != nil {
			return false, err
		}
		c.Do(func(m *machine.Machine) {
			if len(args) > 1 {
				if v, perr := parseNumber(args[1]); perr == nil {
					m.McuCpu.WriteXReg(reg, uint32(v))
				}
			}
			fmt.Printf("x%d %08x\n", reg, m.McuCpu.ReadXReg(reg))
		})
		return false, nil

	case "csr":
		if len(args) == 0 {
			return false, errors.New("csr needs a register number")
		}
		num, err := parseNumber(args[0])
		if err != nil {
			return false, err
		}
		c.Do(func(m *machine.Machine) {
			if len(args) > 1 {
				if v, perr := parseNumber(args[1]); perr == nil {
					m.McuCpu.WriteCsr(uint16(num), uint32(v))
				}
			}
			fmt.Printf("csr %03x %08x\n", num, m.McuCpu.ReadCsr(uint16(num)))
		})
		return false, nil

	case "mem":
		if len(args) == 0 {
			return false, errors.New("mem needs an address")
		}
		addr, err := parseNumber(args[0])
		if err != nil {
			return false, err
		}
		var accessErr error
		c.Do(func(m *machine.Machine) {
			if len(args) > 1 {
				v, perr := parseNumber(args[1])
				if perr != nil {
					accessErr = perr
					return
				}
				accessErr = m.McuBus().Write(rvbus.Word, uint32(addr), uint32(v))
				if accessErr != nil {
					return
				}
			}
			var v uint32
			v, accessErr = m.McuBus().Read(rvbus.Word, uint32(addr))
			if accessErr == nil {
				fmt.Printf("%08x: %08x\n", addr, v)
			}
		})
		return false, accessErr

	case "irq":
		if len(args) < 2 {
			return false, errors.New("irq needs a line and a level")
		}
		line, err := parseNumber(args[0])
		if err != nil {
			return false, err
		}
		level, err := parseNumber(args[1])
		if err != nil {
			return false, err
		}
		var irqErr error
		c.Do(func(m *machine.Machine) {
			irqErr = m.SetExternalInterrupt(uint8(line), level != 0)
		})
		return false, irqErr

	default:
		return false, fmt.Errorf("unknown command %q, try help", cmd)
	}
}
