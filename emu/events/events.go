package events

/*
 * Caliptra MCU emulator - Cross device event channels
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

import "sync"

// DeviceTag names an event endpoint.
type DeviceTag uint8

const (
	TagCaliptraCore DeviceTag = iota
	TagMcuCore
	TagBmc
	TagExternal
)

func (t DeviceTag) String() string {
	switch t {
	case TagCaliptraCore:
		return "caliptra-core"
	case TagMcuCore:
		return "mcu-core"
	case TagBmc:
		return "bmc"
	default:
		return "external"
	}
}

// Data is the payload of an event. Exactly one variant per message.
type Data interface {
	isEventData()
}

// RecoveryBlockReadRequest asks the recovery agent for the current value of a
// recovery register block.
type RecoveryBlockReadRequest struct {
	Code       uint8
	TargetAddr uint32
	SourceAddr uint32
}

// RecoveryBlockReadResponse carries the requested block back.
type RecoveryBlockReadResponse struct {
	Code       uint8
	TargetAddr uint32
	SourceAddr uint32
	Payload    []byte
}

// RecoveryBlockWrite pushes a new value for a recovery register block.
type RecoveryBlockWrite struct {
	Code       uint8
	TargetAddr uint32
	Payload    []byte
}

// RecoveryImageAvailable announces a fully streamed firmware image.
type RecoveryImageAvailable struct {
	ImageID uint8
	Image   []byte
}

// Wakeup nudges a dormant endpoint without carrying data.
type Wakeup struct{}

func (RecoveryBlockReadRequest) isEventData()  {}
func (RecoveryBlockReadResponse) isEventData() {}
func (RecoveryBlockWrite) isEventData()        {}
func (RecoveryImageAvailable) isEventData()    {}
func (Wakeup) isEventData()                    {}

// Event is one message between devices.
type Event struct {
	Src  DeviceTag
	Dest DeviceTag
	Data Data
}

// Channel is an unbounded FIFO with a single receiver. Senders may be cloned
// freely across goroutines; the receiver drops events whose Dest does not
// match its own tag.
type Channel struct {
	mu    sync.Mutex
	dest  DeviceTag
	queue []Event
}

func NewChannel(dest DeviceTag) *Channel {
	return &Channel{dest: dest}
}

// Send enqueues an event. Never blocks; back pressure, if ever needed, is the
// receiver's concern.
func (c *Channel) Send(e Event) {
	c.mu.Lock()
	c.queue = append(c.queue, e)
	c.mu.Unlock()
}

// Recv pops the next event addressed to this endpoint, discarding any
// mismatched destinations ahead of it.
func (c *Channel) Recv() (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.queue) > 0 {
		e := c.queue[0]
		c.queue = c.queue[1:]
		if e.Dest == c.dest {
			return e, true
		}
	}
	return Event{}, false
}

// Empty reports whether anything is queued, matched or not.
func (c *Channel) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue) == 0
}
