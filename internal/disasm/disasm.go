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

package disasm

import (
	"github.com/nevakrien/sourceviewer/internal/dwarfsurface"
	"github.com/nevakrien/sourceviewer/internal/object"
)

// Strategy chooses and runs the parallel region-split strategy when surf
// carries usable DWARF, falling back to the sequential strategy otherwise,
// per spec.md §4.2. Unlike Section, it does not consult or populate sec's
// own memoised instruction cell; callers driving sec.Instructions directly
// (to avoid nesting one onecell.Cell.Get inside another) should use this
// instead of Section.
func Strategy(sec *object.Section, arch object.Arch, surf *dwarfsurface.Surface, opts Options) ([]object.Instruction, error) {
	if surf != nil && surf.HasDWARF() {
		return Parallel(sec, arch, surf, opts)
	}
	return Sequential(sec, arch)
}

// Section decodes a Code section via Strategy, memoised on sec by
// (*object.Section).Instructions, so Section is safe to call once per
// section and let callers share the cached vector afterwards.
func Section(sec *object.Section, arch object.Arch, surf *dwarfsurface.Surface, opts Options) ([]object.Instruction, error) {
	return sec.Instructions(func(s *object.Section) ([]object.Instruction, error) {
		return Strategy(s, arch, surf, opts)
	})
}
