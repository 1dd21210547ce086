/*
 * Pandos - Monitor command parser.
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

package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	command "github.com/minhdang26403/pandos/command/command"
	"github.com/minhdang26403/pandos/kernel/nucleus"
	"github.com/minhdang26403/pandos/util/hex"
)

type cmdDef struct {
	name string
	args string // shown by help
	help string
	fn   func(*command.Session, []string) error
}

var commands = []cmdDef{
	{"run", "", "boot the machine and run to halt", cmdRun},
	{"type", "<term> <text>", "queue a line of terminal input", cmdType},
	{"term", "<term>", "show a terminal's output", cmdTerm},
	{"printer", "<unit>", "show a printer's output", cmdPrinter},
	{"mem", "<hexaddr>", "read a physical memory word", cmdMem},
	{"dump", "<hexaddr> [words]", "dump physical memory", cmdDump},
	{"time", "", "show virtual time", cmdTime},
	{"help", "", "list commands", nil},
	{"quit", "", "leave the monitor", nil},
	{"exit", "", "leave the monitor", nil},
}

// cmdHelp iterates over commands, so assigning it directly in the table
// would create an initialization cycle.
func init() {
	for i := range commands {
		if commands[i].name == "help" {
			commands[i].fn = cmdHelp
		}
	}
}

// Run one monitor command. Reports true when the monitor should stop.
func ProcessCommand(line string, sess *command.Session) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	name := strings.ToLower(fields[0])

	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}
		if cmd.fn == nil {
			return true, nil
		}
		return false, cmd.fn(sess, fields[1:])
	}
	return false, errors.New("unknown command: " + name)
}

func unitArg(args []string) (int, error) {
	if len(args) < 1 {
		return 0, errors.New("unit number required")
	}
	unit, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, errors.New("bad unit number: " + args[0])
	}
	return unit, nil
}

func cmdRun(sess *command.Session, _ []string) error {
	status, err := sess.Run()
	if err != nil {
		return err
	}
	switch status {
	case nucleus.HaltOK:
		fmt.Println("System halted.")
	case nucleus.HaltDeadlock:
		fmt.Println("System halted: deadlock.")
	}
	return nil
}

func cmdType(sess *command.Session, args []string) error {
	unit, err := unitArg(args)
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return errors.New("text required")
	}
	return sess.Type(unit, strings.Join(args[1:], " ")+"\n")
}

func cmdTerm(sess *command.Session, args []string) error {
	unit, err := unitArg(args)
	if err != nil {
		return err
	}
	out, err := sess.TerminalOutput(unit)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func cmdPrinter(sess *command.Session, args []string) error {
	unit, err := unitArg(args)
	if err != nil {
		return err
	}
	out, err := sess.PrinterOutput(unit)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func cmdMem(sess *command.Session, args []string) error {
	if len(args) < 1 {
		return errors.New("address required")
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 32)
	if err != nil {
		return errors.New("bad address: " + args[0])
	}
	value, ok := sess.ReadMem(uint32(addr))
	if !ok {
		return errors.New("bus error")
	}
	fmt.Printf("%08x: %08x\n", addr, value)
	return nil
}

func cmdDump(sess *command.Session, args []string) error {
	if len(args) < 1 {
		return errors.New("address required")
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 32)
	if err != nil {
		return errors.New("bad address: " + args[0])
	}
	count := 16
	if len(args) > 1 {
		count, err = strconv.Atoi(args[1])
		if err != nil || count < 1 {
			return errors.New("bad word count")
		}
	}

	var str strings.Builder
	base := uint32(addr) &^ 3
	for count > 0 {
		var words []uint32
		for i := 0; i < 4 && count > 0; i++ {
			value, ok := sess.ReadMem(base + uint32(4*len(words)))
			if !ok {
				return errors.New("bus error")
			}
			words = append(words, value)
			count--
		}
		hex.FormatLine(&str, base, words)
		base += uint32(4 * len(words))
	}
	fmt.Print(str.String())
	return nil
}

func cmdTime(sess *command.Session, _ []string) error {
	fmt.Printf("%d us\n", sess.Time())
	return nil
}

func cmdHelp(_ *command.Session, _ []string) error {
	for _, cmd := range commands {
		fmt.Printf("  %-8s %-14s %s\n", cmd.name, cmd.args, cmd.help)
	}
	return nil
}
