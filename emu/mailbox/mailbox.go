package mailbox

/*
 * Caliptra MCU emulator - MCU mailbox register file
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
   Doorbell style mailbox shared between a sender on the fabric and the MCU
   as target. Reading lock with the mailbox free acquires it and latches the
   reader's requester id into mbox_user. The sender stages cmd, dlen and the
   SRAM payload, then rings the doorbell by writing execute. The target
   answers through cmd_status and its own status register, and the sender
   releases everything by clearing execute.

   The register file is shared between the MCI bus adapter and out of band
   requesters (SoC agents, the FFI surface), so the state sits behind a
   mutex even though the emulator itself is single threaded.
*/

import (
	"log/slog"
	"sync"
)

// RequesterID identifies a fabric agent on the mailbox.
type RequesterID uint32

const (
	RequesterMcu      RequesterID = 0
	RequesterCaliptra RequesterID = 1
	// SoC agents use ids at and above RequesterSocBase.
	RequesterSocBase RequesterID = 0x10
)

// Command and target status codes.
const (
	StatusIdle uint32 = iota
	StatusBusy
	StatusDataReady
	StatusFailure
)

// Notification events drained by the MCI interrupt block.
type NotifEvent uint8

const (
	NotifCmdAvailable NotifEvent = iota + 1
	NotifTargetDone
)

// DefaultSramBytes is the mailbox SRAM capacity.
const DefaultSramBytes = 256 * 1024

// Mailbox is one mailbox instance (the MCI carries two).
type Mailbox struct {
	mu sync.Mutex

	locked bool
	user   RequesterID

	targetUser      uint32
	targetUserValid bool

	cmd     uint32
	dlen    uint32
	execute bool

	cmdStatus    uint32
	targetStatus uint32

	sram []uint32

	notif []NotifEvent
}

func New() *Mailbox {
	return &Mailbox{sram: make([]uint32, DefaultSramBytes/4)}
}

// NewWithSize builds a mailbox with a specific SRAM capacity in bytes.
func NewWithSize(bytes int) *Mailbox {
	return &Mailbox{sram: make([]uint32, bytes/4)}
}

// SramWords returns the SRAM capacity in words.
func (m *Mailbox) SramWords() uint32 {
	return uint32(len(m.sram))
}

// ReadLock implements the read to acquire protocol: 0 means the caller now
// holds the lock, 1 means it is already held.
func (m *Mailbox) ReadLock(requester RequesterID) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return 1
	}
	m.locked = true
	m.user = requester
	return 0
}

// ReadUser returns the requester id latched by the last lock acquisition.
func (m *Mailbox) ReadUser() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint32(m.user)
}

func (m *Mailbox) ReadTargetUser() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.targetUser
}

// WriteTargetUser records the target's identity for audit. Locked out once
// target_user_valid is set.
func (m *Mailbox) WriteTargetUser(val uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.targetUserValid {
		return
	}
	m.targetUser = val
}

func (m *Mailbox) ReadTargetUserValid() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.targetUserValid {
		return 1
	}
	return 0
}

func (m *Mailbox) WriteTargetUserValid(val uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targetUserValid = val&1 != 0
}

func (m *Mailbox) ReadCmd() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cmd
}

func (m *Mailbox) WriteCmd(val uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cmd = val
}

func (m *Mailbox) ReadDlen() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dlen
}

func (m *Mailbox) WriteDlen(val uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dlen = val
}

func (m *Mailbox) ReadExecute() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.execute {
		return 1
	}
	return 0
}

// WriteExecute rings or clears the doorbell. Setting execute without holding
// the lock is a protocol violation: the write is dropped and logged, nothing
// else happens. Clearing execute releases the lock and resets both statuses.
func (m *Mailbox) WriteExecute(val uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val&1 != 0 {
		if !m.locked {
			slog.Warn("mailbox: execute without lock, dropped")
			return
		}
		if !m.execute {
			m.execute = true
			m.notif = append(m.notif, NotifCmdAvailable)
		}
		return
	}
	if m.execute {
		m.execute = false
		m.locked = false
		m.cmdStatus = StatusIdle
		m.targetStatus = StatusIdle
	}
}

func (m *Mailbox) ReadCmdStatus() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cmdStatus
}

// WriteCmdStatus is the target's answer; data ready and failure raise the
// target done notification.
func (m *Mailbox) WriteCmdStatus(val uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cmdStatus = val & 3
	if m.cmdStatus == StatusDataReady || m.cmdStatus == StatusFailure {
		m.notif = append(m.notif, NotifTargetDone)
	}
}

func (m *Mailbox) ReadTargetStatus() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.targetStatus
}

func (m *Mailbox) WriteTargetStatus(val uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targetStatus = val & 3
}

func (m *Mailbox) ReadHwStatus() uint32 {
	return 0
}

// ReadSram returns the word at index; out of range reads as zero.
func (m *Mailbox) ReadSram(index uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index >= uint32(len(m.sram)) {
		return 0
	}
	return m.sram[index]
}

// WriteSram stores a word. Writes beyond dlen are allowed and do not extend
// dlen; writes beyond the SRAM are dropped.
func (m *Mailbox) WriteSram(index uint32, val uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index >= uint32(len(m.sram)) {
		return
	}
	m.sram[index] = val
}

// TakeNotif pops the oldest pending notification, if any.
func (m *Mailbox) TakeNotif() (NotifEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.notif) == 0 {
		return 0, false
	}
	ev := m.notif[0]
	m.notif = m.notif[1:]
	return ev, true
}

// Reset clears the whole protocol state: lock, doorbell and statuses.
func (m *Mailbox) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = false
	m.execute = false
	m.cmdStatus = StatusIdle
	m.targetStatus = StatusIdle
	m.notif = nil
}
