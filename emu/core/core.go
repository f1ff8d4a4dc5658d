package core

/*
 * Caliptra MCU emulator - Emulator run loop
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
   One goroutine owns the machine and drives Step. Everything else - the
   interactive monitor, the debug surfaces - reaches the machine by posting
   closures that run between steps, so no outside caller ever touches
   emulator state concurrently with a step.
*/

import (
	"log/slog"
	"sync"
	"time"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/cpu"
	"github.com/chipsalliance/caliptra-mcu-emu/emu/machine"
)

// Core runs a machine on its own goroutine.
type Core struct {
	machine *machine.Machine

	wg       sync.WaitGroup
	done     chan struct{}
	finished chan struct{}
	requests chan request

	// go/halt state of the free running loop; single stepping works while
	// halted.
	halted bool
}

type request struct {
	fn   func(*machine.Machine)
	done chan struct{}
}

// New wraps a machine. Start must be called to begin execution.
func New(m *machine.Machine) *Core {
	return &Core{
		machine:  m,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		requests: make(chan request),
	}
}

// Start is the emulator goroutine body.
func (c *Core) Start() {
	c.wg.Add(1)
	defer c.wg.Done()
	defer close(c.finished)
	for {
		if !c.halted {
			switch c.machine.Step() {
			case cpu.Continue:
			case cpu.Break:
				if !c.machine.Running().Load() {
					slog.Info("emulator stopped", "exit", c.machine.ExitCode())
					return
				}
				c.halted = true
			case cpu.Fatal:
				slog.Error("mcu core fatal trap, halting")
				return
			}
			select {
			case <-c.done:
				return
			case req := <-c.requests:
				c.serve(req)
			default:
			}
			continue
		}

		// Halted: block until told otherwise.
		select {
		case <-c.done:
			return
		case req := <-c.requests:
			c.serve(req)
		}
	}
}

func (c *Core) serve(req request) {
	req.fn(c.machine)
	close(req.done)
}

// Do runs fn on the emulator goroutine, between steps, and waits for it.
func (c *Core) Do(fn func(*machine.Machine)) {
	req := request{fn: fn, done: make(chan struct{})}
	select {
	case c.requests <- req:
		<-req.done
	case <-c.done:
	case <-c.finished:
	}
}

// Halt pauses free running execution.
func (c *Core) Halt() {
	c.Do(func(*machine.Machine) { c.halted = true })
}

// Resume continues free running execution.
func (c *Core) Resume() {
	c.Do(func(*machine.Machine) { c.halted = false })
}

// StepN single steps the machine n times.
func (c *Core) StepN(n int) {
	c.Do(func(m *machine.Machine) {
		for i := 0; i < n; i++ {
			if m.Step() != cpu.Continue {
				return
			}
		}
	})
}

// Finished is closed when the run loop exits on its own.
func (c *Core) Finished() <-chan struct{} {
	return c.finished
}

// Stop shuts the loop down.
func (c *Core) Stop() {
	c.machine.Stop()
	close(c.done)
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		slog.Warn("timed out waiting for emulator to finish")
	}
}
