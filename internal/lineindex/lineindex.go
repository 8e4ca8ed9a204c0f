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

// Package lineindex builds the bidirectional address-to-source index
// described in spec.md §4.5, classifying every disassembled instruction of
// a binary into its source file and line using the DWARF Surface's
// find_location. The scan itself is grounded in
// coprocessor/developer/dwarf/dwarf_process_lines.go's per-instruction
// address-to-line classification loop; the Go rewrite classifies into an
// ordered-by-line map instead of the coprocessor's register-state table.
package lineindex

import (
	"sort"
	"sync"

	"github.com/nevakrien/sourceviewer/internal/dwarfsurface"
	"github.com/nevakrien/sourceviewer/internal/object"
)

// UnknownFile is the synthetic pseudo-file name under which FileMap exposes
// unknown_file's contents as an ordinary LineMap, resolving the Open
// Question of whether unknown-file instructions should also be reachable
// through a catch-all LineMap for UI display: they are, under this name.
const UnknownFile = "<unknown>"

// LineMap is the per-source-file line→instructions index, plus the
// unknown-line bucket for instructions whose compile unit resolved but
// whose line-program row carried no line number.
type LineMap struct {
	byLine      map[int][]object.Instruction
	unknownLine []object.Instruction
}

// ByLine returns the instructions mapped to line, or nil if none.
func (m *LineMap) ByLine(line int) []object.Instruction {
	if m == nil {
		return nil
	}
	return m.byLine[line]
}

// UnknownLine returns every instruction whose source file resolved but
// whose line number did not.
func (m *LineMap) UnknownLine() []object.Instruction {
	if m == nil {
		return nil
	}
	return m.unknownLine
}

// Lines returns every line present in ascending order, matching spec.md
// §4.5's "iteration over LineMap is in ascending line order".
func (m *LineMap) Lines() []int {
	if m == nil {
		return nil
	}
	lines := make([]int, 0, len(m.byLine))
	for l := range m.byLine {
		lines = append(lines, l)
	}
	sort.Ints(lines)
	return lines
}

func (m *LineMap) insert(line int, ins object.Instruction) {
	if line <= 0 {
		m.unknownLine = append(m.unknownLine, ins)
		return
	}
	if m.byLine == nil {
		m.byLine = make(map[int][]object.Instruction)
	}
	m.byLine[line] = append(m.byLine[line], ins)
}

// FileMap is the per-binary index spec.md §4.5 builds: a map from source
// path to LineMap, plus the unknown-file bucket for instructions with no
// resolvable location at all.
type FileMap struct {
	byFile      map[string]*LineMap
	unknownFile []object.Instruction
}

// Get returns the LineMap for path, or nil if path was never seen. Passing
// UnknownFile returns a synthetic LineMap exposing unknown_file's contents
// under line 0's unknown-line bucket.
func (f *FileMap) Get(path string) *LineMap {
	if f == nil {
		return nil
	}
	if path == UnknownFile {
		return &LineMap{unknownLine: f.unknownFile}
	}
	return f.byFile[path]
}

// UnknownFile returns every instruction with no resolvable source location
// at all.
func (f *FileMap) UnknownFile() []object.Instruction {
	if f == nil {
		return nil
	}
	return f.unknownFile
}

// Files returns every source path present, in no particular order.
func (f *FileMap) Files() []string {
	if f == nil {
		return nil
	}
	out := make([]string, 0, len(f.byFile))
	for path := range f.byFile {
		out = append(out, path)
	}
	return out
}

func (f *FileMap) lineMap(path string) *LineMap {
	if f.byFile == nil {
		f.byFile = make(map[string]*LineMap)
	}
	lm, ok := f.byFile[path]
	if !ok {
		lm = &LineMap{}
		f.byFile[path] = lm
	}
	return lm
}

// DecodeFunc decodes one Code section's instructions, computing a fresh
// result rather than consulting the section's own memoised cell; a closure
// over disasm.Strategy fits this type (one over disasm.Section does not: it
// already drives the same cell this package's caller drives via
// sec.Instructions, and nesting the two would deadlock on sec's
// one-shot cell).
type DecodeFunc func(*object.Section) ([]object.Instruction, error)

// Build runs build_line_map (spec.md §4.5): every Code section of obj is
// ensured disassembled via decode, then every instruction is classified by
// surf.FindLocation into FileMap[file].by_line[line], FileMap[file].
// unknown_line, or FileMap.unknown_file.
func Build(obj *object.ObjectFile, surf *dwarfsurface.Surface, decode DecodeFunc) (*FileMap, error) {
	fm := &FileMap{}

	for _, sec := range obj.CodeSections() {
		instrs, err := sec.Instructions(decode)
		if err != nil {
			return nil, err
		}

		for _, ins := range instrs {
			if surf == nil {
				fm.unknownFile = append(fm.unknownFile, ins)
				continue
			}
			loc, ok, err := surf.FindLocation(ins.Address)
			if err != nil || !ok || loc.File == "" {
				fm.unknownFile = append(fm.unknownFile, ins)
				continue
			}
			fm.lineMap(loc.File).insert(loc.Line, ins)
		}
	}

	return fm, nil
}

// Cache memoises one FileMap per ObjectFile, matching spec.md §6's
// "ObjectFile.line_map() triggers index build on first call" contract
// without requiring ObjectFile itself to depend on this package (which
// would cycle back through object's dependents).
type Cache struct {
	mu    sync.Mutex
	built map[*object.ObjectFile]*FileMap
	errs  map[*object.ObjectFile]error
}

// Get returns obj's FileMap, building it via Build on the first call for
// obj and sharing the result (success or failure) on every later call.
func (c *Cache) Get(obj *object.ObjectFile, surf *dwarfsurface.Surface, decode DecodeFunc) (*FileMap, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if fm, ok := c.built[obj]; ok {
		return fm, c.errs[obj]
	}

	fm, err := Build(obj, surf, decode)

	if c.built == nil {
		c.built = make(map[*object.ObjectFile]*FileMap)
		c.errs = make(map[*object.ObjectFile]error)
	}
	c.built[obj] = fm
	c.errs[obj] = err

	return fm, err
}
