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

// Package testhelp collects the small assertion helpers used by this
// module's tests, in place of a third-party assertion library.
package testhelp

import (
	"math"
	"reflect"
	"strings"
	"testing"
)

// ExpectSuccess fails the test unless v indicates success: true, a nil
// error, nil itself, or any non-bool non-error value are all treated as
// success.
func ExpectSuccess(t *testing.T, v interface{}) {
	t.Helper()
	if isFailure(v) {
		t.Errorf("unexpected failure: %v", v)
	}
}

// ExpectFailure fails the test unless v indicates failure: a non-nil error
// or the boolean false.
func ExpectFailure(t *testing.T, v interface{}) {
	t.Helper()
	if !isFailure(v) {
		t.Errorf("expected failure, got: %v", v)
	}
}

func isFailure(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return !x
	case error:
		return x != nil
	default:
		return false
	}
}

// ExpectEquality fails the test unless got and want are deeply equal.
func ExpectEquality(t *testing.T, got interface{}, want interface{}) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

// ExpectInequality fails the test if got and want are deeply equal.
func ExpectInequality(t *testing.T, got interface{}, want interface{}) {
	t.Helper()
	if reflect.DeepEqual(got, want) {
		t.Errorf("got %v, did not want %v", got, want)
	}
}

// ExpectApproximate fails the test unless got and want are within delta of
// one another.
func ExpectApproximate(t *testing.T, got float64, want float64, delta float64) {
	t.Helper()
	if math.Abs(got-want) > delta {
		t.Errorf("got %v, want %v (+/- %v)", got, want, delta)
	}
}

// Equate is ExpectEquality under a name that reads as an assertion
// ("equate this to true"); the arguments are in the same order.
func Equate(t *testing.T, got interface{}, want interface{}) {
	t.Helper()
	ExpectEquality(t, got, want)
}

// Writer is an in-memory io.Writer used to capture output for comparison,
// the way the logger tests assert on accumulated text
// without touching the filesystem.
type Writer struct {
	strings.Builder
}

// Compare reports whether the writer's accumulated content equals s.
func (w *Writer) Compare(s string) bool {
	return w.String() == s
}

// Clear empties the writer's buffer.
func (w *Writer) Clear() {
	w.Reset()
}
