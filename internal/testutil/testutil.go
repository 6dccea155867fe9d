// Package testutil provides shared test helpers for building study fixtures
// on disk and inspecting what a study left behind.
package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// WriteFiles creates dir and writes each name/body pair into it.
func WriteFiles(t testing.TB, dir string, files map[string]string) {
	t.Helper()
	AssertNoError(t, os.MkdirAll(dir, 0755))
	for name, body := range files {
		AssertNoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
}

// ListNames returns the sorted names of regular files in dir ending in
// suffix. A missing directory yields nil.
func ListNames(t testing.TB, dir, suffix string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	AssertNoError(t, err)

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}
