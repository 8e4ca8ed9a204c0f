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
	"sort"

	"github.com/nevakrien/sourceviewer/internal/dwarfsurface"
	"github.com/nevakrien/sourceviewer/internal/object"
	"github.com/nevakrien/sourceviewer/internal/xerrors"
)

// Address decodes and returns the single instruction at addr, narrowing the
// decode window to the enclosing function range when DWARF function bounds
// are available, per spec.md §4.2's point-lookup supplement: a bare decode
// of the whole containing section for one address would also risk decoding
// past the end of a short function into unrelated bytes, so FunctionRanges
// is consulted first where it can narrow the window.
func Address(obj *object.ObjectFile, arch object.Arch, surf *dwarfsurface.Surface, addr uint64) (object.Instruction, error) {
	sec := obj.SectionFor(addr)
	if sec == nil {
		return object.Instruction{}, xerrors.New(xerrors.KindObjectParse, "disasm: address %#x is not in any code section", addr)
	}

	lo, hi := sec.Addr, sec.End()
	if surf != nil {
		if narrowLo, narrowHi, ok := enclosingFunction(surf, addr); ok {
			lo, hi = narrowLo, narrowHi
		}
	}

	eng, err := newEngine(arch)
	if err != nil {
		return object.Instruction{}, err
	}
	defer eng.Close()

	offLo, offHi := lo-sec.Addr, hi-sec.Addr
	instrs, err := decodeBlock(eng, sec.Data[offLo:offHi], lo)
	if err != nil {
		return object.Instruction{}, err
	}

	idx := sort.Search(len(instrs), func(i int) bool { return instrs[i].Address >= addr })
	if idx < len(instrs) && instrs[idx].Address == addr {
		return instrs[idx], nil
	}
	return object.Instruction{}, xerrors.New(xerrors.KindObjectParse, "disasm: address %#x does not align to an instruction boundary", addr)
}

// enclosingFunction returns the narrowest known function range covering
// addr, or ok=false if none is known (a stripped function, or a binary with
// no DWARF function-range coverage at addr).
func enclosingFunction(surf *dwarfsurface.Surface, addr uint64) (lo, hi uint64, ok bool) {
	ranges, err := surf.FunctionRanges()
	if err != nil {
		return 0, 0, false
	}

	found := false
	for _, r := range ranges {
		if !r.HighPCKnown || r.LowPC > addr || addr >= r.HighPC {
			continue
		}
		if !found || r.HighPC-r.LowPC < hi-lo {
			lo, hi = r.LowPC, r.HighPC
			found = true
		}
	}
	return lo, hi, found
}
