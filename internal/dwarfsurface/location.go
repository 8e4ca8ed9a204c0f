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

package dwarfsurface

import (
	"debug/dwarf"
	"errors"
	"io"
	"sort"

	"github.com/nevakrien/sourceviewer/internal/xerrors"
)

// Location is a resolved source position.
type Location struct {
	File   string
	Line   int
	Column int
}

// compileUnits walks the top-level entries, returning every
// DW_TAG_compile_unit entry found. Nested child entries are not descended
// into here; callers that need a unit's line program re-enter the Reader
// via LineReader(cu).
func compileUnits(d *dwarf.Data) ([]*dwarf.Entry, error) {
	var units []*dwarf.Entry
	r := d.Reader()
	for {
		e, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, xerrors.New(xerrors.KindDwarf, "dwarf: %s", err)
		}
		if e == nil {
			break
		}
		if e.Tag == dwarf.TagCompileUnit {
			units = append(units, e)
			r.SkipChildren()
		}
	}
	return units, nil
}

// unitCoversAddr reports whether cu's low_pc/high_pc or range list contains
// addr. A unit with no address attributes at all (a skeleton unit
// referencing split DWARF, or one the compiler genuinely left address-less)
// is reported as not covering any address. FindLocation still tries such
// units after the covering ones; FindFrames skips them.
func unitCoversAddr(d *dwarf.Data, cu *dwarf.Entry, addr uint64) bool {
	if low, high, ok := lowHigh(cu); ok {
		return addr >= low && addr < high
	}
	if ranges, err := d.Ranges(cu); err == nil {
		for _, rg := range ranges {
			if addr >= rg[0] && addr < rg[1] {
				return true
			}
		}
	}
	return false
}

// lowHigh extracts DW_AT_low_pc/DW_AT_high_pc, resolving DW_AT_high_pc per
// spec.md §4.3: the attribute's form determines whether it is an absolute
// address or an offset from low_pc.
func lowHigh(e *dwarf.Entry) (low, high uint64, ok bool) {
	lowField := e.AttrField(dwarf.AttrLowpc)
	if lowField == nil {
		return 0, 0, false
	}
	low, ok = lowField.Val.(uint64)
	if !ok {
		return 0, 0, false
	}

	highField := e.AttrField(dwarf.AttrHighpc)
	if highField == nil {
		return low, low, true
	}
	switch highField.Class {
	case dwarf.ClassAddress:
		high, _ = highField.Val.(uint64)
	case dwarf.ClassConstant:
		switch v := highField.Val.(type) {
		case int64:
			high = low + uint64(v)
		case uint64:
			high = low + v
		}
	default:
		high = low
	}
	return low, high, true
}

// FindLocation returns the first matching line-program row covering addr,
// across every compile unit, or ok=false if none does.
func (s *Surface) FindLocation(addr uint64) (Location, bool, error) {
	d, err := s.data_()
	if err != nil {
		return Location{}, false, err
	}

	units, err := compileUnits(d)
	if err != nil {
		return Location{}, false, err
	}

	// units whose range covers addr are tried first so an inexact fallback
	// scan of every unit only happens for stripped-down line programs with
	// no address attributes on the compile unit DIE itself.
	ordered := make([]*dwarf.Entry, 0, len(units))
	var fallback []*dwarf.Entry
	for _, cu := range units {
		if unitCoversAddr(d, cu, addr) {
			ordered = append(ordered, cu)
		} else {
			fallback = append(fallback, cu)
		}
	}
	ordered = append(ordered, fallback...)

	for _, cu := range ordered {
		lr, err := d.LineReader(cu)
		if err != nil || lr == nil {
			continue
		}
		var entry dwarf.LineEntry
		if err := lr.SeekPC(addr, &entry); err != nil {
			continue
		}
		return Location{File: entryFileName(entry), Line: entry.Line, Column: entry.Column}, true, nil
	}

	return Location{}, false, nil
}

func entryFileName(e dwarf.LineEntry) string {
	if e.File == nil {
		return ""
	}
	return e.File.Name
}

// rangeEntry is one precomputed row of a FindLocationRange result.
type rangeEntry struct {
	start, length uint64
	loc           Location
}

// RangeIter is a finite, forward-only, non-restartable sequence of
// (start, length, location) triples, per spec.md §4.3.
type RangeIter struct {
	entries []rangeEntry
	idx     int
}

// Next advances the iterator. ok is false once the sequence is exhausted.
func (it *RangeIter) Next() (start, length uint64, loc Location, ok bool) {
	if it == nil || it.idx >= len(it.entries) {
		return 0, 0, Location{}, false
	}
	e := it.entries[it.idx]
	it.idx++
	return e.start, e.length, e.loc, true
}

// FindLocationRange returns every line-program row whose address falls in
// [lo, hi), clipped to that window, across every compile unit overlapping
// the window. Consecutive identical-location rows are not merged: each row
// is exactly one line-table entry, which is what the region-split
// algorithm in spec.md §4.2 needs to find resynchronisation points.
func (s *Surface) FindLocationRange(lo, hi uint64) (*RangeIter, error) {
	d, err := s.data_()
	if err != nil {
		return nil, err
	}

	units, err := compileUnits(d)
	if err != nil {
		return nil, err
	}

	var rows []rangeEntry
	for _, cu := range units {
		lr, err := d.LineReader(cu)
		if err != nil || lr == nil {
			continue
		}

		var entries []dwarf.LineEntry
		for {
			var le dwarf.LineEntry
			err := lr.Next(&le)
			if err != nil {
				break
			}
			entries = append(entries, le)
		}

		for i, le := range entries {
			if le.EndSequence {
				continue
			}
			start := le.Address
			end := start + 1
			if i+1 < len(entries) {
				end = entries[i+1].Address
			}
			if end <= lo || start >= hi {
				continue
			}
			if start < lo {
				start = lo
			}
			if end > hi {
				end = hi
			}
			if end <= start {
				continue
			}
			rows = append(rows, rangeEntry{
				start:  start,
				length: end - start,
				loc:    Location{File: entryFileName(le), Line: le.Line, Column: le.Column},
			})
		}
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].start < rows[j].start })

	return &RangeIter{entries: rows}, nil
}
