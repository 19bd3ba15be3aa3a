package testutil

import (
	"os"
	"testing"

	"github.com/silt-dev/silt/mir"
)

// ParseModule parses src as a textual module, failing the test on error.
func ParseModule(t *testing.T, src string) *mir.Module {
	t.Helper()
	m, err := mir.ParseModuleString(src)
	if err != nil {
		t.Fatalf("module failed to parse: %v", err)
	}
	return m
}

// ParseFunction parses src and returns its single function.
func ParseFunction(t *testing.T, src string) *mir.Function {
	t.Helper()
	m := ParseModule(t, src)
	if len(m.Funcs) != 1 {
		t.Fatalf("expected exactly one function, got %d", len(m.Funcs))
	}
	return m.Funcs[0]
}

// LoadModule parses the module stored at path, failing the test on error.
func LoadModule(t *testing.T, path string) *mir.Module {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	m, err := mir.ParseModule(f)
	if err != nil {
		t.Fatalf("%s failed to parse: %v", path, err)
	}
	return m
}
