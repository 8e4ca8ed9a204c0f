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

// Package frame drives dwarfsurface's find-frames state machine to
// completion, resolving split-DWARF Load continuations against a caller-
// supplied Loader and demangling the resolved function name. The driver
// owns the continuation loop itself; the resolved Surface never holds a
// back-reference to whatever drove it.
package frame

import (
	"path/filepath"

	"github.com/ianlancetaylor/demangle"

	"github.com/nevakrien/sourceviewer/internal/dwarfsurface"
	"github.com/nevakrien/sourceviewer/internal/logger"
)

// Loader resolves a supplementary split-DWARF file by (compDir, path),
// normally backed by a file registry. Resolve returning a nil Surface with
// a nil error is treated the same as an error: no supplementary data is
// available, and the lookup continues unresolved rather than aborting.
type Loader interface {
	Resolve(compDir, path string) (*dwarfsurface.Surface, error)
}

// Resolve runs the find-frames/continue-find-frames state machine to
// completion against surf, using loader to satisfy any Load request, and
// returns the demangled name of the innermost frame that carries one. It
// reports ok=false, with no error, when the address resolves to frames but
// none of them names a function, and also when the lookup itself fails (for
// example on a binary with no DWARF); such a failure is logged.
func Resolve(surf *dwarfsurface.Surface, loader Loader, addr uint64) (string, bool, error) {
	result := surf.FindFrames(addr)

	for result.Load != nil {
		req := result.Load
		var supplementary *dwarfsurface.Surface
		if loader != nil {
			resolved, err := loader.Resolve(req.CompDir, req.Path)
			if err == nil {
				supplementary = resolved
			}
		}
		result = surf.ContinueFindFrames(addr, supplementary)
	}

	if result.Err != nil {
		logger.Logf("frame", "%#x: %s", addr, result.Err)
		return "", false, nil
	}

	for _, f := range result.Frames {
		if f.Function != "" {
			return demangleName(f.Function), true, nil
		}
	}
	return "", false, nil
}

func joinPath(result dwarfsurface.FrameResult) string {
	if result.Load != nil {
		return filepath.Join(result.Load.CompDir, result.Load.Path)
	}
	return ""
}

// demangleName runs name through demangle.Filter, which auto-detects and
// handles both Itanium C++ mangling and Rust's (legacy and v0) mangling.
// Anything it does not recognise, including plain C symbols, passes
// through unchanged rather than erroring: a demangle failure must never
// drop a frame from the chain.
func demangleName(name string) string {
	if name == "" {
		return name
	}
	return demangle.Filter(name)
}
