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
	"github.com/nevakrien/sourceviewer/internal/object"
)

// Sequential decodes sec's entire byte range with a single decoder starting
// at its base address, per spec.md §4.2's sequential strategy. This is used
// directly when the object carries no usable DWARF, and as the region-split
// strategy's own fallback when discovery finds fewer than two regions.
func Sequential(sec *object.Section, arch object.Arch) ([]object.Instruction, error) {
	if len(sec.Data) == 0 {
		return nil, nil
	}

	eng, err := newEngine(arch)
	if err != nil {
		return nil, err
	}
	defer eng.Close()

	instrs, err := decodeBlock(eng, sec.Data, sec.Addr)
	if err != nil {
		return nil, err
	}
	renumber(instrs)
	return instrs, nil
}
