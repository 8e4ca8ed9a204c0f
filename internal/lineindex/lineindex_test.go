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

package lineindex

import (
	"testing"

	"github.com/nevakrien/sourceviewer/internal/dwarfsurface"
	"github.com/nevakrien/sourceviewer/internal/object"
	"github.com/nevakrien/sourceviewer/internal/testhelp"
)

func staticDecode(instrs []object.Instruction) DecodeFunc {
	return func(*object.Section) ([]object.Instruction, error) {
		return instrs, nil
	}
}

// TestBuildWithoutDWARFIsAllUnknown covers S2-adjacent behaviour: with no
// DWARF surface, every instruction lands in the unknown_file bucket.
func TestBuildWithoutDWARFIsAllUnknown(t *testing.T) {
	obj := &object.ObjectFile{
		Format: object.FormatELF,
		Arch:   object.ArchX86_64,
		Sections: []*object.Section{
			{Name: ".text", Kind: object.SectionCode, Addr: 0x1000, Data: []byte{0x90}},
		},
	}
	instrs := []object.Instruction{{Address: 0x1000, Size: 1, Mnemonic: "nop", OpStr: ""}}

	fm, err := Build(obj, nil, staticDecode(instrs))
	testhelp.ExpectSuccess(t, err)
	testhelp.ExpectEquality(t, len(fm.UnknownFile()), 1)
	testhelp.ExpectEquality(t, len(fm.Files()), 0)
}

func TestFileMapUnknownFilePseudoFile(t *testing.T) {
	fm := &FileMap{unknownFile: []object.Instruction{{Address: 0x2000}}}
	lm := fm.Get(UnknownFile)
	if lm == nil {
		t.Fatalf("expected a synthetic LineMap for %q", UnknownFile)
	}
	testhelp.ExpectEquality(t, len(lm.UnknownLine()), 1)
}

func TestLineMapInsertAndOrderedLines(t *testing.T) {
	lm := &LineMap{}
	lm.insert(10, object.Instruction{Address: 1})
	lm.insert(3, object.Instruction{Address: 2})
	lm.insert(10, object.Instruction{Address: 3})
	lm.insert(0, object.Instruction{Address: 4})

	testhelp.ExpectEquality(t, lm.Lines(), []int{3, 10})
	testhelp.ExpectEquality(t, len(lm.ByLine(10)), 2)
	testhelp.ExpectEquality(t, len(lm.UnknownLine()), 1)
}

func TestCacheMemoisesPerObject(t *testing.T) {
	obj := &object.ObjectFile{
		Format: object.FormatELF,
		Arch:   object.ArchX86_64,
		Sections: []*object.Section{
			{Name: ".text", Kind: object.SectionCode, Addr: 0x1000, Data: []byte{0x90}},
		},
	}
	surf := dwarfsurface.New(obj)

	calls := 0
	decode := func(s *object.Section) ([]object.Instruction, error) {
		calls++
		return []object.Instruction{{Address: s.Addr}}, nil
	}

	var cache Cache
	fm1, err := cache.Get(obj, surf, decode)
	testhelp.ExpectSuccess(t, err)
	fm2, err := cache.Get(obj, surf, decode)
	testhelp.ExpectSuccess(t, err)

	if fm1 != fm2 {
		t.Fatalf("expected the same FileMap instance on the second Get")
	}
	testhelp.ExpectEquality(t, calls, 1)
}
