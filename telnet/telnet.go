package telnet

/*
 * Caliptra MCU emulator - UART console server
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
   Serves the MCU UART over TCP. Clients get the usual character at a time
   telnet session: we will echo, suppress go ahead and run binary, and IAC
   sequences from the client are stripped before their bytes reach the UART
   receive slot.
*/

import (
	"log/slog"
	"net"
	"sync"

	"github.com/chipsalliance/caliptra-mcu-emu/emu/uart"
)

// Telnet protocol bytes.
const (
	tnIAC  byte = 255
	tnDONT byte = 254
	tnDO   byte = 253
	tnWONT byte = 252
	tnWILL byte = 251
	tnSB   byte = 250
	tnSE   byte = 240

	tnOptionBinary byte = 0
	tnOptionEcho   byte = 1
	tnOptionSGA    byte = 3
)

// Receiver line states.
const (
	tnStateData int = 1 + iota
	tnStateIAC
	tnStateOption
	tnStateSB
	tnStateSE
)

var initString = []byte{
	tnIAC, tnWILL, tnOptionEcho,
	tnIAC, tnWILL, tnOptionSGA,
	tnIAC, tnWILL, tnOptionBinary,
}

// Server fans UART transmit data out to every connected client and funnels
// client keystrokes into the UART receive slot.
type Server struct {
	listener net.Listener
	rx       *uart.RxSlot

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	wg   sync.WaitGroup
	done chan struct{}
}

// Start listens on addr (for example "localhost:4321").
func Start(addr string, rx *uart.RxSlot) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	server := &Server{
		listener: listener,
		rx:       rx,
		conns:    map[net.Conn]struct{}{},
		done:     make(chan struct{}),
	}
	server.wg.Add(1)
	go server.accept()
	slog.Info("uart console listening", "addr", addr)
	return server, nil
}

// Write broadcasts UART transmit bytes to every client; it is the UART's
// sink side and must never block the emulator, so failed writes just drop
// the client.
func (s *Server) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		if _, err := conn.Write(p); err != nil {
			conn.Close()
			delete(s.conns, conn)
		}
	}
	return len(p), nil
}

// Stop closes the listener and every client connection.
func (s *Server) Stop() {
	close(s.done)
	s.listener.Close()
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				slog.Warn("uart console accept failed", "err", err)
				return
			}
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		_, _ = conn.Write(initString)
		s.wg.Add(1)
		go s.serve(conn)
	}
}

// serve strips telnet protocol from the inbound stream and feeds the rest
// to the UART receive slot.
func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	state := tnStateData
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		for _, b := range buf[:n] {
			switch state {
			case tnStateData:
				if b == tnIAC {
					state = tnStateIAC
					continue
				}
				// Drop when firmware has not consumed the last byte;
				// the console is best effort.
				s.rx.Put(b)
			case tnStateIAC:
				switch b {
				case tnIAC:
					s.rx.Put(b)
					state = tnStateData
				case tnWILL, tnWONT, tnDO, tnDONT:
					state = tnStateOption
				case tnSB:
					state = tnStateSB
				default:
					state = tnStateData
				}
			case tnStateOption:
				state = tnStateData
			case tnStateSB:
				if b == tnIAC {
					state = tnStateSE
				}
			case tnStateSE:
				if b == tnSE {
					state = tnStateData
				} else {
					state = tnStateSB
				}
			}
		}
	}
}
