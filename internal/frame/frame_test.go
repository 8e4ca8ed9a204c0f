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

package frame

import (
	"testing"

	"github.com/nevakrien/sourceviewer/internal/dwarfsurface"
	"github.com/nevakrien/sourceviewer/internal/object"
	"github.com/nevakrien/sourceviewer/internal/testhelp"
)

type nilLoader struct{}

func (nilLoader) Resolve(compDir, path string) (*dwarfsurface.Surface, error) {
	return nil, nil
}

func TestResolveNoDWARFReturnsEmpty(t *testing.T) {
	obj := &object.ObjectFile{Format: object.FormatELF, Arch: object.ArchX86_64}
	surf := dwarfsurface.New(obj)

	name, ok, err := Resolve(surf, nilLoader{}, 0x1000)
	testhelp.ExpectSuccess(t, err)
	testhelp.ExpectEquality(t, ok, false)
	testhelp.ExpectEquality(t, name, "")
}

func TestDemangleNamePassesThroughPlainNames(t *testing.T) {
	testhelp.ExpectEquality(t, demangleName("main"), "main")
	testhelp.ExpectEquality(t, demangleName(""), "")
}

func TestDemangleNameItaniumMangled(t *testing.T) {
	// _Z3fooi is Itanium mangling for foo(int).
	got := demangleName("_Z3fooi")
	testhelp.ExpectInequality(t, got, "_Z3fooi")
}
