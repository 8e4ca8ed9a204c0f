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

// Package dwarfsurface wraps debug/dwarf behind the address-to-source
// contract spec.md §4.3 describes, the way
// coprocessor/developer/dwarf/dwarf_builder.go drives debug/dwarf's Reader
// and LineReader directly rather than reimplementing DWARF parsing.
package dwarfsurface

import (
	"debug/dwarf"

	"github.com/nevakrien/sourceviewer/internal/logger"
	"github.com/nevakrien/sourceviewer/internal/object"
	"github.com/nevakrien/sourceviewer/internal/onecell"
	"github.com/nevakrien/sourceviewer/internal/xerrors"
)

// logicalSections is the list of DWARF sections spec.md §4.3 names that
// debug/dwarf.New accepts positionally. Order matters: it matches New's
// parameter order.
var logicalSections = []string{
	"debug_abbrev", "debug_aranges", "debug_frame", "debug_info",
	"debug_line", "debug_pubnames", "debug_ranges", "debug_str",
}

// extraSections are registered after New via AddSection: DWARF5 additions
// and the exception/unwind sections, none of which are fatal to be
// missing.
var extraSections = []string{
	"debug_line_str", "debug_str_offsets", "debug_addr", "debug_rnglists",
	"debug_loclists", "debug_types", "debug_macinfo", "debug_macro",
	"debug_pubtypes", "debug_cu_index", "debug_tu_index",
	"eh_frame", "eh_frame_hdr", "debug_loc",
}

// Surface is the lazily-built DWARF view of one ObjectFile. The zero value
// is not usable; construct with New.
type Surface struct {
	obj  *object.ObjectFile
	data onecell.Cell[*dwarf.Data]
}

// New wraps obj. No DWARF section is read until the first query.
func New(obj *object.ObjectFile) *Surface {
	return &Surface{obj: obj}
}

// sectionBytes looks up a logical DWARF section by trying both the ELF/PE
// dotted convention and the Mach-O double-underscore convention, returning
// an empty slice (never nil-with-error) when absent, per spec.md §4.3.
func sectionBytes(obj *object.ObjectFile, logical string) []byte {
	for _, prefix := range [...]string{".", "__"} {
		if sec := obj.SectionByName(prefix + logical); sec != nil {
			return sec.Data
		}
	}
	return []byte{}
}

func (s *Surface) data_() (*dwarf.Data, error) {
	return s.data.Get(func() (*dwarf.Data, error) {
		return buildData(s.obj)
	})
}

func buildData(obj *object.ObjectFile) (*dwarf.Data, error) {
	args := make([][]byte, len(logicalSections))
	for i, name := range logicalSections {
		args[i] = sectionBytes(obj, name)
	}

	d, err := dwarf.New(args[0], args[1], args[2], args[3], args[4], args[5], args[6], args[7])
	if err != nil {
		return nil, xerrors.New(xerrors.KindDwarf, "dwarf: %s", err)
	}

	for _, name := range extraSections {
		data := sectionBytes(obj, name)
		if len(data) == 0 {
			continue
		}
		if err := d.AddSection("."+name, data); err != nil {
			// a malformed optional section degrades the feature it backs
			// (split-dwarf addressing, unwind info) but must not abort
			// the rest of the DWARF surface.
			logger.Logf("dwarf", "optional section %s rejected: %s", name, err)
		}
	}

	return d, nil
}

// HasDWARF reports whether the object carries any usable DWARF data at
// all, without surfacing a parse error for a binary that simply has none.
func (s *Surface) HasDWARF() bool {
	d, err := s.data_()
	return err == nil && d != nil
}
