/*
 * Pandos - Configuration file parser test cases.
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
	"strings"
	"testing"
)

func TestParseSettings(t *testing.T) {
	cfg, err := Load(strings.NewReader(
		"# test machine\n" +
			"ram 128\n" +
			"uprocs 3\n" +
			"logfile \"pandos.log\"\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RAMPages != 128 {
		t.Errorf("ram got: %d expected: %d", cfg.RAMPages, 128)
	}
	if cfg.UProcs != 3 {
		t.Errorf("uprocs got: %d expected: %d", cfg.UProcs, 3)
	}
	if cfg.LogFile != "pandos.log" {
		t.Errorf("logfile got: %q expected: %q", cfg.LogFile, "pandos.log")
	}
}

func TestParseDevices(t *testing.T) {
	cfg, err := Load(strings.NewReader(
		"disk 0 cyl=4 heads=8 sects=16\n" +
			"flash 2 blocks=64 prog=greeter\n" +
			"printer 0\n" +
			"terminal 1 peer=0  # crosslinked\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Stanzas) != 4 {
		t.Fatalf("stanza count got: %d expected: %d", len(cfg.Stanzas), 4)
	}

	disk := cfg.Stanzas[0]
	if disk.Class != "disk" || disk.Unit != 0 {
		t.Errorf("disk stanza got: %s %d", disk.Class, disk.Unit)
	}
	cyl, err := disk.Number("cyl", 0)
	if err != nil || cyl != 4 {
		t.Errorf("cyl got: %d expected: %d", cyl, 4)
	}

	flash := cfg.Stanzas[1]
	if flash.Unit != 2 {
		t.Errorf("flash unit got: %d expected: %d", flash.Unit, 2)
	}
	prog, ok := flash.Lookup("prog")
	if !ok || prog != "greeter" {
		t.Errorf("prog got: %q expected: %q", prog, "greeter")
	}

	term := cfg.Stanzas[3]
	peer, err := term.Number("peer", -1)
	if err != nil || peer != 0 {
		t.Errorf("peer got: %d expected: %d", peer, 0)
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Load(strings.NewReader("disk 0\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RAMPages != 256 {
		t.Errorf("default ram got: %d expected: %d", cfg.RAMPages, 256)
	}
	n, err := cfg.Stanzas[0].Number("cyl", 4)
	if err != nil || n != 4 {
		t.Errorf("default cyl got: %d expected: %d", n, 4)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"widget 0\n",
		"disk x\n",
		"disk 9\n",
		"uprocs 99\n",
		"uprocs\n",
	}
	for _, c := range cases {
		if _, err := Load(strings.NewReader(c)); err == nil {
			t.Errorf("no error for %q", strings.TrimSpace(c))
		}
	}
}
