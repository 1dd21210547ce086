/*
 * Pandos - Configuration file parser.
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

package configparser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/minhdang26403/pandos/defs"
)

/* Configuration file format:
 *
 * '#' indicates comment, rest of line is ignored.
 * <line> := <class> <unit> *(<option>) |
 *           'ram' <number> |
 *           'uprocs' <number> |
 *           'logfile' <quoteopt>
 * <class> := 'disk' | 'flash' | 'printer' | 'terminal'
 * <option> ::= <name> ['=' <quoteopt>]
 * <quoteopt> ::= <string> | '"' *(<letter> | <whitespace>) '"'
 * <string> ::= *(<letter> | <number>)
 */

// One name[=value] option on a device line.
type Option struct {
	Name  string
	Value string
}

// One device line: class, unit number and its options.
type Stanza struct {
	Class   string
	Unit    int
	Options []Option
}

// Parsed configuration for a whole machine.
type Config struct {
	RAMPages int
	UProcs   int
	LogFile  string
	Stanzas  []Stanza
}

// Current option line being parsed.
type optionLine struct {
	line string // Current option line.
	pos  int    // Current position in line.
}

var deviceClasses = map[string]int{
	"DISK":     defs.LineDisk,
	"FLASH":    defs.LineFlash,
	"PRINTER":  defs.LinePrinter,
	"TERMINAL": defs.LineTerminal,
}

var lineNumber int

// Load in a configuration file.
func LoadConfigFile(name string) (*Config, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Load(file)
}

// Parse a configuration from a reader.
func Load(rd io.Reader) (*Config, error) {
	cfg := &Config{
		RAMPages: 256,
		UProcs:   defs.MaxUProcs,
	}

	lineNumber = 0
	reader := bufio.NewReader(rd)
	for {
		var err error

		line := optionLine{}
		line.line, err = reader.ReadString('\n')
		lineNumber++
		if len(line.line) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		err = line.parseLine(cfg)
		if err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Value of a named option, if present.
func (s *Stanza) Lookup(name string) (string, bool) {
	name = strings.ToUpper(name)
	for _, opt := range s.Options {
		if strings.ToUpper(opt.Name) == name {
			return opt.Value, true
		}
	}
	return "", false
}

// Numeric option with a default.
func (s *Stanza) Number(name string, def int) (int, error) {
	value, ok := s.Lookup(name)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("option %s is not a number: %s", name, value)
	}
	return n, nil
}

// Parse one line from file.
func (line *optionLine) parseLine(cfg *Config) error {
	line.skipSpace()
	if line.isEOL() {
		return nil
	}

	name, err := line.getName()
	if err != nil {
		return err
	}
	name = strings.ToUpper(name)

	switch name {
	case "RAM":
		return line.parseNumberSetting(&cfg.RAMPages)

	case "UPROCS":
		if err := line.parseNumberSetting(&cfg.UProcs); err != nil {
			return err
		}
		if cfg.UProcs < 1 || cfg.UProcs > defs.MaxUProcs {
			return fmt.Errorf("uprocs out of range, line: %d", lineNumber)
		}
		return nil

	case "LOGFILE":
		line.skipSpace()
		// The scanner expects to sit on the delimiter before the value.
		line.pos--
		value, ok := line.parseQuoteString()
		if !ok {
			return fmt.Errorf("invalid quoted string, line: %d", lineNumber)
		}
		cfg.LogFile = value
		return nil
	}

	_, ok := deviceClasses[name]
	if !ok {
		return fmt.Errorf("unknown directive %s, line: %d", name, lineNumber)
	}

	stanza := Stanza{Class: strings.ToLower(name)}
	line.skipSpace()
	unit, err := line.getName()
	if err != nil || unit == "" {
		return fmt.Errorf("device %s requires a unit number, line: %d", name, lineNumber)
	}
	stanza.Unit, err = strconv.Atoi(unit)
	if err != nil || stanza.Unit < 0 || stanza.Unit >= defs.DevPerLine {
		return fmt.Errorf("bad unit number %s, line: %d", unit, lineNumber)
	}

	options, err := line.parseOptions()
	if err != nil {
		return err
	}
	stanza.Options = options
	cfg.Stanzas = append(cfg.Stanzas, stanza)
	return nil
}

// Settings of the form 'name <number>'.
func (line *optionLine) parseNumberSetting(out *int) error {
	line.skipSpace()
	value, err := line.getName()
	if err != nil || value == "" {
		return fmt.Errorf("setting requires a number, line: %d", lineNumber)
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("bad number %s, line: %d", value, lineNumber)
	}
	*out = n
	return nil
}

// Skip forward over line until none whitespace character found.
func (line *optionLine) skipSpace() {
	for {
		if line.pos >= len(line.line) {
			return
		}
		if unicode.IsSpace(rune(line.line[line.pos])) {
			line.pos++
			continue
		}
		return
	}
}

// Check if at end of line.
func (line *optionLine) isEOL() bool {
	if line.pos >= len(line.line) {
		return true
	}

	if line.line[line.pos] == '#' {
		return true
	}
	return false
}

// Return next letter or digit in line. 0 if EOL or space.
func (line *optionLine) getNext(inQuote bool) byte {
	line.pos++
	if line.isEOL() {
		return 0
	}
	by := line.line[line.pos]
	if unicode.IsLetter(rune(by)) || unicode.IsNumber(rune(by)) || inQuote {
		return by
	}
	return 0
}

// Peek at next character.
func (line *optionLine) getPeek() byte {
	if (line.pos + 1) >= len(line.line) {
		return 0
	}
	return line.line[line.pos+1]
}

// Parse string that is "string" or just string.
func (line *optionLine) parseQuoteString() (string, bool) {
	inQuote := false
	value := ""

	// If quote, set we are in quoted string
	if line.getPeek() == '"' {
		inQuote = true
		_ = line.getNext(true)
	}

	for {
		by := line.getNext(inQuote)
		// If processing a quoted string "" gets replaced by single quote
		if by == '"' && inQuote {
			by = line.getNext(inQuote)
			if by != '"' {
				// Hit end of string.
				return value, true
			}
		}

		space := unicode.IsSpace(rune(by))
		// Space terminates a non quoted string.
		if !inQuote && (space || by == 0) {
			return value, true
		}

		value += string(by)
		// If we hit end of line, stop processing.
		if line.isEOL() {
			return value, !inQuote
		}
	}
}

// Parse option or directive name.
func (line *optionLine) getName() (string, error) {
	// Check if end of line.
	if line.isEOL() {
		return "", nil
	}

	// First character must be alphanumeric.
	by := line.line[line.pos]
	if !unicode.IsLetter(rune(by)) && !unicode.IsNumber(rune(by)) {
		return "", fmt.Errorf("invalid option encountered line: %d [%d]", lineNumber, line.pos)
	}
	value := ""

	for {
		value += string([]byte{by})
		by = line.getNext(false)
		if by == 0 {
			break
		}
	}

	return value, nil
}

// Parse one name[=value] option.
func (line *optionLine) parseOption() (*Option, error) {
	// Skip leading space
	line.skipSpace()

	value, err := line.getName()
	if value == "" {
		return nil, err
	}

	option := Option{Name: value}

	// If at end of line done.
	if line.isEOL() {
		return &option, nil
	}

	// Check if equals option.
	if line.line[line.pos] == '=' {
		v, ok := line.parseQuoteString()
		if !ok {
			return nil, fmt.Errorf("invalid quoted string line: %d [%d]", lineNumber, line.pos)
		}
		option.Value = v
	}

	return &option, nil
}

// Collect all options for line.
func (line *optionLine) parseOptions() ([]Option, error) {
	options := []Option{}
	for {
		option, err := line.parseOption()
		if err != nil {
			return nil, err
		}
		if option == nil {
			break
		}
		options = append(options, *option)
	}
	return options, nil
}
