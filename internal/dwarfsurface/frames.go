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

	"github.com/nevakrien/sourceviewer/internal/xerrors"
)

// FunctionEntry is one entry of FunctionRanges: a named (or anonymous)
// address range contributed by a DIE that carries address attributes.
type FunctionEntry struct {
	Name        string
	LowPC       uint64
	HighPC      uint64
	HighPCKnown bool
}

// FunctionRanges walks every compilation unit's DIEs and collects every DIE
// with DW_AT_low_pc, DW_AT_entry_pc or DW_AT_ranges, per spec.md §4.3.
func (s *Surface) FunctionRanges() ([]FunctionEntry, error) {
	d, err := s.data_()
	if err != nil {
		return nil, err
	}

	var out []FunctionEntry
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

		name, _ := e.Val(dwarf.AttrName).(string)

		if low, high, ok := lowHigh(e); ok {
			out = append(out, FunctionEntry{Name: name, LowPC: low, HighPC: high, HighPCKnown: true})
			continue
		}

		if entryField := e.AttrField(dwarf.AttrEntrypc); entryField != nil {
			if addr, ok := entryField.Val.(uint64); ok {
				out = append(out, FunctionEntry{Name: name, LowPC: addr})
				continue
			}
		}

		if ranges, err := d.Ranges(e); err == nil && len(ranges) > 0 {
			for _, rg := range ranges {
				out = append(out, FunctionEntry{Name: name, LowPC: rg[0], HighPC: rg[1], HighPCKnown: true})
			}
		}
	}
	return out, nil
}

// Frame is one entry of an inlined-call chain, innermost first.
type Frame struct {
	Function string
	File     string
	Line     int
}

// LoadRequest asks the driver to resolve a supplementary split-DWARF file
// identified by (CompDir, Path); CompDir may be empty.
type LoadRequest struct {
	CompDir string
	Path    string
}

// FrameResult is the outcome of one step of the find-frames state machine
// described in spec.md §4.4. Exactly one of Load, Frames (possibly empty)
// or Err is meaningful: Load != nil means the driver must resolve a
// supplementary file and call ContinueFindFrames; otherwise the lookup is
// finished.
type FrameResult struct {
	Load   *LoadRequest
	Frames []Frame
	Err    error
}

// FindFrames resolves addr to its enclosing function, following an
// abstract-origin chain for inlined calls. If the compile unit covering
// addr carries DW_AT_GNU_dwo_name or DW_AT_dwo_name and no DW_AT_low_pc (so
// it covers addr only through its range list), the result carries a Load
// request instead of frames, with DW_AT_comp_dir when the unit has one. A
// unit that names a split-DWARF file but does carry DW_AT_low_pc is
// searched for frames directly.
func (s *Surface) FindFrames(addr uint64) FrameResult {
	d, err := s.data_()
	if err != nil {
		return FrameResult{Err: err}
	}

	units, err := compileUnits(d)
	if err != nil {
		return FrameResult{Err: err}
	}

	for _, cu := range units {
		if !unitCoversAddr(d, cu, addr) {
			continue
		}

		if req, ok := skeletonLoadRequest(cu); ok {
			return FrameResult{Load: &req}
		}

		frames, err := functionFrames(d, cu, addr)
		if err != nil {
			return FrameResult{Err: err}
		}
		return FrameResult{Frames: frames}
	}

	return FrameResult{}
}

// ContinueFindFrames resumes a lookup after the driver resolved a
// supplementary file (or failed to: supplementary may be nil, in which
// case the continuation proceeds with no additional data, per spec.md
// §4.4's "resumed with no data" rule).
func (s *Surface) ContinueFindFrames(addr uint64, supplementary *Surface) FrameResult {
	if supplementary == nil {
		return FrameResult{}
	}
	return supplementary.FindFrames(addr)
}

// DW_AT_GNU_dwo_name (GNU split-DWARF vendor extension, pre-DWARF5) and
// DW_AT_dwo_name (standardised in DWARF5) are not both exposed as named
// constants in every debug/dwarf release, so they are spelled out here by
// attribute number.
const (
	attrGNUDwoName dwarf.Attr = 0x2130
	attrDwoName    dwarf.Attr = 0x76
)

func skeletonLoadRequest(cu *dwarf.Entry) (LoadRequest, bool) {
	if _, _, ok := lowHigh(cu); ok {
		return LoadRequest{}, false
	}

	name, _ := cu.Val(attrGNUDwoName).(string)
	if name == "" {
		name, _ = cu.Val(attrDwoName).(string)
	}
	if name == "" {
		return LoadRequest{}, false
	}

	compDir, _ := cu.Val(dwarf.AttrCompDir).(string)
	return LoadRequest{CompDir: compDir, Path: name}, true
}

func functionFrames(d *dwarf.Data, cu *dwarf.Entry, addr uint64) ([]Frame, error) {
	var frames []Frame

	r := d.Reader()
	r.Seek(cu.Offset)
	// skip the compile unit DIE itself; Seek positions the reader to read
	// it again on the next Next() call.
	if _, err := r.Next(); err != nil {
		return nil, xerrors.New(xerrors.KindDwarf, "dwarf: %s", err)
	}

	depth := 0
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
		if e.Tag == 0 {
			// end of the compile unit's children (a null entry); we have
			// returned to the unit's own depth.
			if depth == 0 {
				break
			}
			depth--
			continue
		}

		switch e.Tag {
		case dwarf.TagSubprogram, dwarf.TagInlinedSubroutine:
			if low, high, ok := lowHigh(e); ok && addr >= low && addr < high {
				name, _ := e.Val(dwarf.AttrName).(string)
				if name == "" {
					name = resolveAbstractOrigin(d, e)
				}
				file, line := callFileLine(e)
				frames = append([]Frame{{Function: name, File: file, Line: line}}, frames...)
			}
		}

		if e.Children {
			depth++
		}
	}

	return frames, nil
}

func resolveAbstractOrigin(d *dwarf.Data, e *dwarf.Entry) string {
	off, ok := e.Val(dwarf.AttrAbstractOrigin).(dwarf.Offset)
	if !ok {
		off, ok = e.Val(dwarf.AttrSpecification).(dwarf.Offset)
		if !ok {
			return ""
		}
	}
	r := d.Reader()
	r.Seek(off)
	origin, err := r.Next()
	if err != nil || origin == nil {
		return ""
	}
	name, _ := origin.Val(dwarf.AttrName).(string)
	return name
}

func callFileLine(e *dwarf.Entry) (string, int) {
	line, _ := e.Val(dwarf.AttrCallLine).(int64)
	// DW_AT_call_file is a file table index, not resolvable to a name
	// without a line reader for the compile unit; left to the caller.
	return "", int(line)
}
