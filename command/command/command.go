/*
 * Pandos - Monitor session: machine assembly and control.
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

// Package command assembles a machine from a parsed configuration and
// exposes it to the monitor: queue terminal input, boot, and inspect
// device output and memory afterwards.
package command

import (
	"errors"
	"fmt"
	"os"

	"github.com/minhdang26403/pandos/config/configparser"
	"github.com/minhdang26403/pandos/defs"
	"github.com/minhdang26403/pandos/kernel/nucleus"
	"github.com/minhdang26403/pandos/machine"
	"github.com/minhdang26403/pandos/machine/device"
	"github.com/minhdang26403/pandos/support"
	"github.com/minhdang26403/pandos/uprogs"
)

type Session struct {
	cfg *configparser.Config
	m   *machine.Machine
	k   *nucleus.Kernel

	disks     [defs.DevPerLine]*device.Disk
	flashes   [defs.DevPerLine]*device.Flash
	printers  [defs.DevPerLine]*device.Printer
	terminals [defs.DevPerLine]*device.Terminal

	progs []nucleus.Program

	ran    bool
	status int
}

// Build a machine from the configuration. Disk zero is mandatory: it
// backs the virtual memory of every U-proc.
func NewSession(cfg *configparser.Config) (*Session, error) {
	s := &Session{cfg: cfg}
	s.m = machine.NewMachine(cfg.RAMPages)
	s.k = nucleus.New(s.m)

	type peerLink struct{ from, to int }
	var peers []peerLink

	for i := range cfg.Stanzas {
		st := &cfg.Stanzas[i]
		switch st.Class {
		case "disk":
			cyl, err := st.Number("cyl", 4)
			if err != nil {
				return nil, err
			}
			heads, err := st.Number("heads", 8)
			if err != nil {
				return nil, err
			}
			sects, err := st.Number("sects", 16)
			if err != nil {
				return nil, err
			}
			dk := device.NewDisk(s.m, st.Unit, cyl, heads, sects)
			if file, ok := st.Lookup("file"); ok {
				if err := dk.Attach(file); err != nil {
					return nil, err
				}
			}
			s.disks[st.Unit] = dk
			s.m.Install(defs.LineDisk, st.Unit, dk)

		case "flash":
			blocks, err := st.Number("blocks", 64)
			if err != nil {
				return nil, err
			}
			fl := device.NewFlash(s.m, st.Unit, blocks)
			if image, ok := st.Lookup("image"); ok {
				data, err := os.ReadFile(image)
				if err != nil {
					return nil, err
				}
				fl.LoadImage(data)
			}
			s.flashes[st.Unit] = fl
			s.m.Install(defs.LineFlash, st.Unit, fl)

		case "printer":
			pr := device.NewPrinter(s.m, st.Unit)
			s.printers[st.Unit] = pr
			s.m.Install(defs.LinePrinter, st.Unit, pr)

		case "terminal":
			tm := device.NewTerminal(s.m, st.Unit)
			s.terminals[st.Unit] = tm
			s.m.Install(defs.LineTerminal, st.Unit, tm)
			if peer, err := st.Number("peer", -1); err != nil {
				return nil, err
			} else if peer >= 0 {
				peers = append(peers, peerLink{st.Unit, peer})
			}
		}
	}

	if s.disks[defs.BackingDisk] == nil {
		return nil, errors.New("disk 0 (backing store) not configured")
	}

	for _, link := range peers {
		if s.terminals[link.to] == nil {
			return nil, fmt.Errorf("terminal %d peers with missing terminal %d",
				link.from, link.to)
		}
		s.terminals[link.from].SetPeer(s.terminals[link.to])
	}

	// Each U-proc boots from the flash numbered ASID-1. A prog option
	// names one of the built in programs and supplies its image.
	for asid := 1; asid <= cfg.UProcs; asid++ {
		fl := s.flashes[asid-1]
		if fl == nil {
			break
		}
		st := findFlash(cfg, asid-1)
		name, ok := st.Lookup("prog")
		if !ok {
			break
		}
		prog, found := uprogs.Lookup(name)
		if !found {
			return nil, fmt.Errorf("flash %d: unknown program %s", asid-1, name)
		}
		if _, hasImage := st.Lookup("image"); !hasImage {
			fl.LoadImage(uprogs.BuildImage(2))
		}
		s.progs = append(s.progs, prog)
	}
	if len(s.progs) == 0 {
		return nil, errors.New("no U-proc programs configured")
	}
	return s, nil
}

func findFlash(cfg *configparser.Config, unit int) *configparser.Stanza {
	for i := range cfg.Stanzas {
		if cfg.Stanzas[i].Class == "flash" && cfg.Stanzas[i].Unit == unit {
			return &cfg.Stanzas[i]
		}
	}
	return nil
}

// Boot and run the machine to completion. A session runs once.
func (s *Session) Run() (int, error) {
	if s.ran {
		return s.status, errors.New("machine already ran; restart the monitor")
	}
	s.ran = true
	layer := support.New(s.k, len(s.progs), s.progs)
	s.status = s.k.Run(layer.Instantiator)
	return s.status, nil
}

func (s *Session) Ran() bool {
	return s.ran
}

// Queue input on a terminal before the machine runs.
func (s *Session) Type(unit int, text string) error {
	if unit < 0 || unit >= defs.DevPerLine || s.terminals[unit] == nil {
		return fmt.Errorf("no terminal %d", unit)
	}
	s.terminals[unit].TypeInput(text)
	return nil
}

func (s *Session) TerminalOutput(unit int) (string, error) {
	if unit < 0 || unit >= defs.DevPerLine || s.terminals[unit] == nil {
		return "", fmt.Errorf("no terminal %d", unit)
	}
	return s.terminals[unit].Output(), nil
}

func (s *Session) PrinterOutput(unit int) (string, error) {
	if unit < 0 || unit >= defs.DevPerLine || s.printers[unit] == nil {
		return "", fmt.Errorf("no printer %d", unit)
	}
	return s.printers[unit].Output(), nil
}

// Physical memory word, for post-mortem poking around.
func (s *Session) ReadMem(addr uint32) (uint32, bool) {
	return s.m.ReadPhys(addr)
}

// Virtual time in microseconds.
func (s *Session) Time() uint64 {
	return s.m.Now()
}
