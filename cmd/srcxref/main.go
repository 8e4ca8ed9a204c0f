// This file is part of Gopher2600.
//
// Gopher2600 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gopher2600 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Gopher2600.  If not, see <https://www.gnu.org/licenses/>.

// Command srcxref is a thin batch-mode front end over the core: it loads
// one binary, answers one query against it (list instructions, resolve an
// address to a frame, resolve an address to source), and exits. It does not
// attempt to reproduce the interactive UI collaborators this project's
// core leaves out of scope.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/nevakrien/sourceviewer/internal/disasm"
	"github.com/nevakrien/sourceviewer/internal/dwarfsurface"
	"github.com/nevakrien/sourceviewer/internal/frame"
	"github.com/nevakrien/sourceviewer/internal/logger"
	"github.com/nevakrien/sourceviewer/internal/registry"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flgs := flag.NewFlagSet("srcxref", flag.ContinueOnError)
	err := flgs.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Println("Commands: DISASM, FRAME, LINE")
			return 0
		}
		return 2
	}
	args = flgs.Args()

	var mode string
	if len(args) > 0 {
		mode = strings.ToUpper(args[0])
		args = args[1:]
	}

	switch mode {
	case "DISASM":
		err = disasmCmd(args)
	case "FRAME":
		err = frameCmd(args)
	case "LINE":
		err = lineCmd(args)
	default:
		err = fmt.Errorf("unknown command: %q (want DISASM, FRAME or LINE)", mode)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "* error in %s: %s\n", mode, err)
		var buf strings.Builder
		logger.Tail(&buf, 20)
		if buf.Len() > 0 {
			fmt.Fprint(os.Stderr, buf.String())
		}
		return 1
	}
	return 0
}

// disasmCmd disassembles every Code section of a binary and prints each
// instruction, one per line.
func disasmCmd(args []string) error {
	flgs := flag.NewFlagSet("DISASM", flag.ContinueOnError)
	step := flgs.Uint64("step", disasm.DefaultStep, "region-discovery probe stride in bytes")
	workers := flgs.Int("workers", 0, "worker count (0 means one per CPU)")
	if err := flgs.Parse(args); err != nil {
		return err
	}
	if flgs.NArg() != 1 {
		return errors.New("usage: srcxref DISASM <binary>")
	}

	files := registry.NewFileRegistry()
	obj, err := files.GetMachine(flgs.Arg(0))
	if err != nil {
		return err
	}

	surf := dwarfsurface.New(obj)
	opts := disasm.Options{Step: *step, Workers: *workers}

	for _, sec := range obj.CodeSections() {
		instrs, err := disasm.Section(sec, obj.Arch, surf, opts)
		if err != nil {
			return err
		}
		for _, ins := range instrs {
			fmt.Printf("%#08x  %-8s %s\n", ins.Address, ins.Mnemonic, ins.OpStr)
		}
	}
	return nil
}

// frameCmd resolves an address to its enclosing function, following
// split-DWARF continuations against the same file registry the binary was
// loaded through.
func frameCmd(args []string) error {
	flgs := flag.NewFlagSet("FRAME", flag.ContinueOnError)
	if err := flgs.Parse(args); err != nil {
		return err
	}
	if flgs.NArg() != 2 {
		return errors.New("usage: srcxref FRAME <binary> <address>")
	}

	addr, err := parseAddress(flgs.Arg(1))
	if err != nil {
		return err
	}

	files := registry.NewFileRegistry()
	obj, err := files.GetMachine(flgs.Arg(0))
	if err != nil {
		return err
	}

	surf := dwarfsurface.New(obj)
	name, ok, err := frame.Resolve(surf, files, addr)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("<no frame information>")
		return nil
	}
	fmt.Println(name)
	return nil
}

// lineCmd resolves an address to its source file and line using the
// binary's DWARF line table directly, without walking the function chain.
func lineCmd(args []string) error {
	flgs := flag.NewFlagSet("LINE", flag.ContinueOnError)
	if err := flgs.Parse(args); err != nil {
		return err
	}
	if flgs.NArg() != 2 {
		return errors.New("usage: srcxref LINE <binary> <address>")
	}

	addr, err := parseAddress(flgs.Arg(1))
	if err != nil {
		return err
	}

	files := registry.NewFileRegistry()
	obj, err := files.GetMachine(flgs.Arg(0))
	if err != nil {
		return err
	}

	surf := dwarfsurface.New(obj)
	loc, ok, err := surf.FindLocation(addr)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("<no location information>")
		return nil
	}
	fmt.Printf("%s:%d:%d\n", loc.File, loc.Line, loc.Column)
	return nil
}

func parseAddress(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	addr, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return addr, nil
}
