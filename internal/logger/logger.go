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

// Package logger is a small process-wide ring-buffered log for non-fatal
// conditions a component reports without aborting its caller: an optional
// DWARF section that debug/dwarf rejected, or a frame lookup that failed
// and degraded to an unknown function name.
package logger

import (
	"fmt"
	"io"
	"sync"
)

type entry struct {
	tag string
	msg string
}

func (e entry) String() string {
	return fmt.Sprintf("%s: %s\n", e.tag, e.msg)
}

// capacity is the number of entries retained before the oldest are
// discarded. The UI and batch subcommands only ever want the tail of the
// log so unbounded growth buys nothing.
const capacity = 1000

var (
	mu      sync.Mutex
	entries []entry
)

// Log appends a single pre-formatted message under tag.
func Log(tag string, msg string) {
	add(tag, msg)
}

// Logf appends a formatted message under tag.
func Logf(tag string, format string, args ...interface{}) {
	add(tag, fmt.Sprintf(format, args...))
}

func add(tag string, msg string) {
	mu.Lock()
	defer mu.Unlock()

	entries = append(entries, entry{tag: tag, msg: msg})
	if len(entries) > capacity {
		entries = entries[len(entries)-capacity:]
	}
}

// Write dumps every retained entry to w, oldest first.
func Write(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	for _, e := range entries {
		io.WriteString(w, e.String())
	}
}

// Tail dumps the most recent n entries to w, oldest first. Asking for more
// entries than are available is not an error; Tail writes what it has.
func Tail(w io.Writer, n int) {
	mu.Lock()
	defer mu.Unlock()

	if n > len(entries) {
		n = len(entries)
	}
	for _, e := range entries[len(entries)-n:] {
		io.WriteString(w, e.String())
	}
}

// Clear empties the log. Used by tests to keep cases independent.
func Clear() {
	mu.Lock()
	defer mu.Unlock()
	entries = nil
}
