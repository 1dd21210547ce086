/*
 * Pandos - Terminal device model.
 *
 * Copyright 2025, Richard Cornwell
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

package device

import (
	"io"
	"strings"

	"github.com/minhdang26403/pandos/defs"
)

const termCharTime = 100 // one character each way, microseconds

// Terminal is two sub-devices behind one interrupt slot: a receiver
// (registers 0/1) and a transmitter (registers 2/3). Each side keeps
// its own status and pending interrupt; the line bit stays raised
// while either side is pending. A command while a side is busy is
// ignored; ACK readies that side only.
//
// The status byte distinguishes in-flight from done: BUSY means the
// operation has not completed, CHAR_TRANSMITTED / CHAR_RECEIVED report
// success, anything else is an error.
type Terminal struct {
	bus Bus
	dev int

	recvStatus   uint32
	transStatus  uint32
	recvPending  bool
	transPending bool
	recvWaiting  bool // RECEIVECHAR issued with no input available

	input []byte
	out   io.Writer
	buf   strings.Builder
	peer  *Terminal
}

func NewTerminal(bus Bus, dev int) *Terminal {
	return &Terminal{
		bus:         bus,
		dev:         dev,
		recvStatus:  defs.DevStatusReady,
		transStatus: defs.DevStatusReady,
	}
}

// Send transmitted characters to a writer as well as the capture
// buffer.
func (tm *Terminal) Attach(w io.Writer) {
	tm.out = w
}

// Everything transmitted so far.
func (tm *Terminal) Output() string {
	return tm.buf.String()
}

// Queue characters for the receiver, completing a waiting RECEIVECHAR.
func (tm *Terminal) TypeInput(s string) {
	tm.inject([]byte(s))
}

func (tm *Terminal) inject(chars []byte) {
	tm.input = append(tm.input, chars...)
	if tm.recvWaiting && len(tm.input) > 0 {
		tm.recvWaiting = false
		tm.startReceive()
	}
}

// Crosslink two terminals: what one transmits the other receives.
func (tm *Terminal) SetPeer(peer *Terminal) {
	tm.peer = peer
}

func (tm *Terminal) ReadReg(reg int) uint32 {
	switch reg {
	case RegRecvStatus:
		return tm.recvStatus
	case RegTransStatus:
		return tm.transStatus
	}
	return 0
}

func (tm *Terminal) WriteReg(reg int, value uint32) {
	switch reg {
	case RegRecvCommand:
		tm.recvCommand(value)
	case RegTransCommand:
		tm.transCommand(value)
	}
}

func (tm *Terminal) raise() {
	tm.bus.RaiseIntr(defs.LineTerminal, tm.dev)
}

func (tm *Terminal) settle() {
	if !tm.recvPending && !tm.transPending {
		tm.bus.DropIntr(defs.LineTerminal, tm.dev)
	}
}

func (tm *Terminal) transCommand(value uint32) {
	if tm.transStatus == defs.DevStatusBusy {
		return
	}
	switch value & 0xff {
	case defs.DevCmdAck, defs.DevCmdReset:
		tm.transStatus = defs.DevStatusReady
		tm.transPending = false
		tm.settle()

	case defs.TermCmdTransmit:
		ch := byte(value >> 8)
		tm.transStatus = defs.DevStatusBusy
		tm.bus.After(termCharTime, func() {
			tm.buf.WriteByte(ch)
			if tm.out != nil {
				tm.out.Write([]byte{ch})
			}
			if tm.peer != nil {
				tm.peer.inject([]byte{ch})
			}
			tm.transStatus = defs.TermCharTransmitted | uint32(ch)<<8
			tm.transPending = true
			tm.raise()
		})

	default:
		tm.transStatus = defs.DevStatusIllegal
		tm.transPending = true
		tm.raise()
	}
}

func (tm *Terminal) recvCommand(value uint32) {
	if tm.recvStatus == defs.DevStatusBusy {
		return
	}
	switch value & 0xff {
	case defs.DevCmdAck, defs.DevCmdReset:
		tm.recvStatus = defs.DevStatusReady
		tm.recvPending = false
		tm.recvWaiting = false
		tm.settle()

	case defs.TermCmdReceive:
		tm.recvStatus = defs.DevStatusBusy
		if len(tm.input) == 0 {
			// Completes when input shows up.
			tm.recvWaiting = true
			return
		}
		tm.startReceive()

	default:
		tm.recvStatus = defs.DevStatusIllegal
		tm.recvPending = true
		tm.raise()
	}
}

func (tm *Terminal) startReceive() {
	ch := tm.input[0]
	tm.input = tm.input[1:]
	tm.bus.After(termCharTime, func() {
		tm.recvStatus = defs.TermCharReceived | uint32(ch)<<8
		tm.recvPending = true
		tm.raise()
	})
}
