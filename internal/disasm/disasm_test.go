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
	"testing"

	"github.com/nevakrien/sourceviewer/internal/dwarfsurface"
	"github.com/nevakrien/sourceviewer/internal/object"
	"github.com/nevakrien/sourceviewer/internal/testhelp"
)

// nopRet is "nop; nop; ret" in x86-64 machine code: 90 90 c3.
var nopRet = []byte{0x90, 0x90, 0xc3}

func TestSequentialRenumbersFromZero(t *testing.T) {
	sec := &object.Section{Name: ".text", Kind: object.SectionCode, Addr: 0x1000, Data: nopRet}
	instrs, err := Sequential(sec, object.ArchX86_64)
	testhelp.ExpectSuccess(t, err)
	if len(instrs) == 0 {
		t.Fatalf("expected at least one decoded instruction")
	}
	for i, ins := range instrs {
		testhelp.ExpectEquality(t, ins.Serial, i)
	}
}

func TestSequentialEmptySection(t *testing.T) {
	sec := &object.Section{Name: ".text", Kind: object.SectionCode, Addr: 0x1000}
	instrs, err := Sequential(sec, object.ArchX86_64)
	testhelp.ExpectSuccess(t, err)
	testhelp.ExpectEquality(t, len(instrs), 0)
}

func TestSequentialUnsupportedArch(t *testing.T) {
	sec := &object.Section{Name: ".text", Kind: object.SectionCode, Addr: 0x1000, Data: nopRet}
	_, err := Sequential(sec, object.ArchUnknown)
	testhelp.ExpectFailure(t, err)
}

func TestDiscoverRegionsFallsBackWithoutDWARF(t *testing.T) {
	obj := &object.ObjectFile{Format: object.FormatELF, Arch: object.ArchX86_64}
	surf := dwarfsurface.New(obj)
	sec := &object.Section{Name: ".text", Kind: object.SectionCode, Addr: 0x1000, Data: nopRet}

	// an object with no DWARF sections at all cannot build a dwarf.Data
	// (debug/dwarf rejects an empty .debug_info), so HasDWARF is false;
	// Parallel called directly must still fall back to Sequential.
	instrs, err := Parallel(sec, object.ArchX86_64, surf, Options{})
	testhelp.ExpectSuccess(t, err)
	if len(instrs) == 0 {
		t.Fatalf("expected fallback sequential decode to produce instructions")
	}
}

func TestAddressNotInAnySection(t *testing.T) {
	obj := &object.ObjectFile{Format: object.FormatELF, Arch: object.ArchX86_64}
	_, err := Address(obj, object.ArchX86_64, nil, 0xdead)
	testhelp.ExpectFailure(t, err)
}

func TestAddressPointLookup(t *testing.T) {
	obj := &object.ObjectFile{
		Format: object.FormatELF,
		Arch:   object.ArchX86_64,
		Sections: []*object.Section{
			{Name: ".text", Kind: object.SectionCode, Addr: 0x1000, Data: nopRet},
		},
	}
	ins, err := Address(obj, object.ArchX86_64, nil, 0x1001)
	testhelp.ExpectSuccess(t, err)
	testhelp.ExpectEquality(t, ins.Address, uint64(0x1001))
}

func TestAddressMisaligned(t *testing.T) {
	obj := &object.ObjectFile{
		Format: object.FormatELF,
		Arch:   object.ArchX86_64,
		Sections: []*object.Section{
			// a 5-byte CALL rel32 (opcode 0xe8 plus a 4-byte
			// displacement): 0x1001 falls inside the instruction's operand
			// bytes and is not itself an instruction boundary.
			{Name: ".text", Kind: object.SectionCode, Addr: 0x1000, Data: []byte{0xe8, 0x00, 0x00, 0x00, 0x00}},
		},
	}
	_, err := Address(obj, object.ArchX86_64, nil, 0x1001)
	testhelp.ExpectFailure(t, err)
}
