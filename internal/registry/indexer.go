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

package registry

import (
	"sync"

	"github.com/nevakrien/sourceviewer/internal/disasm"
	"github.com/nevakrien/sourceviewer/internal/dwarfsurface"
	"github.com/nevakrien/sourceviewer/internal/lineindex"
	"github.com/nevakrien/sourceviewer/internal/object"
	"github.com/nevakrien/sourceviewer/internal/xerrors"
)

// Indexer composes a FileRegistry with disassembly and line-index building
// to satisfy LineMapSource, wiring the driver spec.md §2 describes: "builds
// the Line Index on demand" against binaries already in the File Registry.
type Indexer struct {
	Files   *FileRegistry
	Options disasm.Options

	mu       sync.Mutex
	surfaces map[*object.ObjectFile]*dwarfsurface.Surface
	cache    lineindex.Cache
}

// NewIndexer wires files for on-demand disassembly and line-index builds.
func NewIndexer(files *FileRegistry) *Indexer {
	return &Indexer{Files: files, surfaces: make(map[*object.ObjectFile]*dwarfsurface.Surface)}
}

func (x *Indexer) surfaceFor(obj *object.ObjectFile) *dwarfsurface.Surface {
	x.mu.Lock()
	defer x.mu.Unlock()
	if s, ok := x.surfaces[obj]; ok {
		return s
	}
	s := dwarfsurface.New(obj)
	x.surfaces[obj] = s
	return s
}

// FileMapFor returns binaryPath's FileMap, parsing, disassembling and
// indexing it on demand through x.Files and the shared disasm/lineindex
// caches.
func (x *Indexer) FileMapFor(binaryPath string) (*lineindex.FileMap, error) {
	obj, err := x.Files.GetMachine(binaryPath)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, xerrors.New(xerrors.KindObjectParse, "registry: %s: no object file", binaryPath)
	}

	surf := x.surfaceFor(obj)
	decode := func(sec *object.Section) ([]object.Instruction, error) {
		return disasm.Strategy(sec, obj.Arch, surf, x.Options)
	}

	return x.cache.Get(obj, surf, decode)
}
