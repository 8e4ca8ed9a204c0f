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

// Package registry holds the memoised path-keyed stores described in
// spec.md §4.6: a FileRegistry mapping filesystem path to parsed
// ObjectFile, and a CodeRegistry mapping source path to source text plus a
// cross-binary reverse index. Both follow the mutex-guarded map idiom of
// disassembly/symbols/symbols.go, adapted from a single flat symbol table
// to a pair of memoised path→result caches.
package registry

import (
	"os"
	"sync"

	"github.com/nevakrien/sourceviewer/internal/dwarfsurface"
	"github.com/nevakrien/sourceviewer/internal/lineindex"
	"github.com/nevakrien/sourceviewer/internal/object"
	"github.com/nevakrien/sourceviewer/internal/xerrors"
)

// fileEntry is one FileRegistry slot: at most one of obj/err is ever
// meaningful once populated.
type fileEntry struct {
	obj *object.ObjectFile
	err error
}

// FileRegistry memoises path→parsed-ObjectFile and keeps every file's raw
// bytes in an arena for the registry's own lifetime; the parsed
// Section.Data slices are copies and do not point into it. Both success
// and failure are memoised per spec.md §4.6; a later IoError on a path that previously
// parsed successfully does not invalidate the cached success (resolved
// Open Question (b) in the project's supplemented-features notes).
type FileRegistry struct {
	mu      sync.Mutex
	entries map[string]*fileEntry
	arena   [][]byte
}

// NewFileRegistry returns an empty registry.
func NewFileRegistry() *FileRegistry {
	return &FileRegistry{entries: make(map[string]*fileEntry)}
}

// GetMachine returns the ObjectFile parsed from path, parsing and caching
// it on the first call. A cached failure is returned again verbatim on
// every later call for the same path; it is never retried.
func (r *FileRegistry) GetMachine(path string) (*object.ObjectFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[path]; ok {
		return e.obj, e.err
	}

	data, ioErr := os.ReadFile(path)
	if ioErr != nil {
		err := xerrors.New(xerrors.KindIO, "registry: %s: %w", path, ioErr)
		r.entries[path] = &fileEntry{err: err}
		return nil, err
	}
	r.arena = append(r.arena, data)

	obj, err := object.Parse(data)
	if err != nil {
		err = xerrors.New(xerrors.KindObjectParse, "registry: %s: %w", path, err)
	}
	r.entries[path] = &fileEntry{obj: obj, err: err}
	return obj, err
}

// Resolve satisfies frame.Loader: a supplementary split-DWARF path is just
// another path through the same memoised FileRegistry, joined with
// compDir first per the DW_AT_comp_dir convention.
func (r *FileRegistry) Resolve(compDir, path string) (*dwarfsurface.Surface, error) {
	full := path
	if compDir != "" && len(path) > 0 && !os.IsPathSeparator(path[0]) {
		full = compDir + string(os.PathSeparator) + path
	}
	obj, err := r.GetMachine(full)
	if err != nil {
		return nil, err
	}
	return dwarfsurface.New(obj), nil
}

// Paths returns every path currently registered, in no particular order.
// CodeRegistry's population step uses this to scan every binary's FileMap
// for a given source path.
func (r *FileRegistry) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for p, e := range r.entries {
		if e.obj != nil {
			out = append(out, p)
		}
	}
	return out
}

// Get returns the already-cached ObjectFile for path without attempting to
// parse it, or nil if path has not been registered (or failed to parse).
func (r *FileRegistry) Get(path string) *object.ObjectFile {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[path]; ok {
		return e.obj
	}
	return nil
}

// CodeFile is the in-memory view of one source file: its raw text, a
// reverse index from line number to the binaries and instructions that
// reference it, and any non-fatal errors accumulated while populating that
// index.
type CodeFile struct {
	Path   string
	Text   string
	Errors []error

	mu      sync.Mutex
	byLine  map[int]map[string][]object.Instruction
}

// ByLine returns, for line, the instructions contributed by each binary
// path that references it.
func (c *CodeFile) ByLine(line int) map[string][]object.Instruction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byLine[line]
}

func (c *CodeFile) extend(binaryPath string, fm *lineindex.FileMap) {
	lm := fm.Get(c.Path)
	if lm == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byLine == nil {
		c.byLine = make(map[int]map[string][]object.Instruction)
	}
	for _, line := range lm.Lines() {
		if c.byLine[line] == nil {
			c.byLine[line] = make(map[string][]object.Instruction)
		}
		c.byLine[line][binaryPath] = append(c.byLine[line][binaryPath], lm.ByLine(line)...)
	}
}

type codeEntry struct {
	file *CodeFile
	err  error
}

// LineMapSource resolves a registered binary's FileMap for population,
// normally FileRegistry plus a line-index cache composed by the caller.
type LineMapSource interface {
	FileMapFor(path string) (*lineindex.FileMap, error)
}

// CodeRegistry memoises path→CodeFile the same way FileRegistry memoises
// path→ObjectFile.
type CodeRegistry struct {
	mu      sync.Mutex
	entries map[string]*codeEntry
}

// NewCodeRegistry returns an empty registry.
func NewCodeRegistry() *CodeRegistry {
	return &CodeRegistry{entries: make(map[string]*codeEntry)}
}

// GetSourceFile returns path's CodeFile, reading its text and caching the
// (possibly empty) CodeFile on the first call. When populate is true, every
// path currently registered in files is scanned via source for its FileMap
// restricted to path, extending the reverse index; a per-binary failure is
// appended to the CodeFile's Errors and does not abort the rest of
// population, per spec.md §4.6.
func (r *CodeRegistry) GetSourceFile(path string, populate bool, files *FileRegistry, source LineMapSource) (*CodeFile, error) {
	r.mu.Lock()
	cached, ok := r.entries[path]
	r.mu.Unlock()

	var cf *CodeFile
	var err error
	if ok {
		cf, err = cached.file, cached.err
	} else {
		text, ioErr := os.ReadFile(path)
		if ioErr != nil {
			err = xerrors.New(xerrors.KindIO, "registry: %s: %w", path, ioErr)
		} else {
			cf = &CodeFile{Path: path, Text: string(text)}
		}
		r.mu.Lock()
		r.entries[path] = &codeEntry{file: cf, err: err}
		r.mu.Unlock()
	}

	if err != nil || cf == nil || !populate || files == nil || source == nil {
		return cf, err
	}

	for _, binaryPath := range files.Paths() {
		fm, ferr := source.FileMapFor(binaryPath)
		if ferr != nil {
			cf.Errors = append(cf.Errors, ferr)
			continue
		}
		cf.extend(binaryPath, fm)
	}

	return cf, nil
}
