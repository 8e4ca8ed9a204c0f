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
	"os"
	"path/filepath"
	"testing"

	"github.com/nevakrien/sourceviewer/internal/lineindex"
	"github.com/nevakrien/sourceviewer/internal/object"
	"github.com/nevakrien/sourceviewer/internal/testhelp"
)

func TestFileRegistryMemoisesFailure(t *testing.T) {
	r := NewFileRegistry()
	missing := filepath.Join(t.TempDir(), "does-not-exist")

	_, err1 := r.GetMachine(missing)
	testhelp.ExpectFailure(t, err1)

	_, err2 := r.GetMachine(missing)
	testhelp.ExpectFailure(t, err2)

	if len(r.entries) != 1 {
		t.Fatalf("expected exactly one cached entry, got %d", len(r.entries))
	}
}

func TestFileRegistryParsesOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.bin")
	if err := os.WriteFile(path, []byte("not an object file"), 0o644); err != nil {
		t.Fatalf("setup: %s", err)
	}

	r := NewFileRegistry()
	_, err1 := r.GetMachine(path)
	testhelp.ExpectFailure(t, err1)
	_, err2 := r.GetMachine(path)
	testhelp.ExpectFailure(t, err2)

	// unsupported-format parse failures are memoised the same as IoErrors.
	if len(r.entries) != 1 {
		t.Fatalf("expected exactly one cached entry, got %d", len(r.entries))
	}
}

type stubSource struct {
	fm  *lineindex.FileMap
	err error
}

func (s stubSource) FileMapFor(path string) (*lineindex.FileMap, error) {
	return s.fm, s.err
}

func TestCodeRegistryPopulatesReverseIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shared.c")
	if err := os.WriteFile(path, []byte("int main() {}\n"), 0o644); err != nil {
		t.Fatalf("setup: %s", err)
	}

	binPath := filepath.Join(dir, "a.bin")
	files := NewFileRegistry()
	files.entries[binPath] = &fileEntry{obj: &object.ObjectFile{}}

	fm, err := lineindex.Build(&object.ObjectFile{
		Sections: []*object.Section{
			{Name: ".text", Kind: object.SectionCode, Addr: 0x1000, Data: []byte{0x90}},
		},
	}, nil, func(*object.Section) ([]object.Instruction, error) {
		return []object.Instruction{{Address: 0x1000}}, nil
	})
	testhelp.ExpectSuccess(t, err)

	codes := NewCodeRegistry()
	cf, err := codes.GetSourceFile(path, true, files, stubSource{fm: fm})
	testhelp.ExpectSuccess(t, err)
	if cf == nil {
		t.Fatalf("expected a CodeFile")
	}
	// the stub FileMap has no entries for "shared.c" itself (everything
	// landed in unknown_file), so the reverse index stays empty but
	// population must still succeed without error.
	testhelp.ExpectEquality(t, len(cf.ByLine(1)), 0)
}

func TestCodeRegistryMissingFile(t *testing.T) {
	codes := NewCodeRegistry()
	_, err := codes.GetSourceFile(filepath.Join(t.TempDir(), "missing.c"), false, nil, nil)
	testhelp.ExpectFailure(t, err)
}
