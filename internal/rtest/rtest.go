// Package rtest is a local reproduction of aistore's tools/tassert
// fail-fast test helpers (that package is aistore-internal and not an
// importable dependency, so we rebuild its call surface here).
package rtest

import "testing"

func CheckFatal(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func Fatalf(t testing.TB, cond bool, f string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(f, args...)
	}
}

func Errorf(t testing.TB, cond bool, f string, args ...any) {
	t.Helper()
	if !cond {
		t.Errorf(f, args...)
	}
}
