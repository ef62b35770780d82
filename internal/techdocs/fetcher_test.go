package techdocs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dnswlt/techdocs/internal/catalog"
)

// writeTree writes files (relative path -> content) below dir.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for p, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", p, err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", p, err)
		}
	}
}

func TestFetchError(t *testing.T) {
	ref := catalog.NewRef("component", "default", "foo")
	err := error(fetchError(SourceSite, ref, fs.ErrPermission))

	if !errors.Is(err, ErrFetchFailure) {
		t.Error("FetchError should match ErrFetchFailure")
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Error("FetchError should unwrap to its cause")
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Source != SourceSite || fe.Ref != ref {
		t.Errorf("errors.As(%v) = %+v", err, fe)
	}
	want := "failed to fetch site metadata for component:default/foo: permission denied"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestCheckRef(t *testing.T) {
	tests := []struct {
		ref     catalog.Ref
		wantErr bool
	}{
		{catalog.NewRef("component", "default", "foo"), false},
		{catalog.NewRef("Component", "Default", "Foo.Bar"), false},
		{catalog.NewRef("", "default", "foo"), true},
		{catalog.NewRef("component", "", "foo"), true},
		{catalog.NewRef("component", "default", ""), true},
		{catalog.NewRef("component", "..", "foo"), true},
		{catalog.NewRef("component", "default", "a/b"), true},
		{catalog.NewRef("component", "default", `a\b`), true},
	}
	for _, tc := range tests {
		err := checkRef(tc.ref)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidRef) {
				t.Errorf("checkRef(%v) = %v, want ErrInvalidRef", tc.ref, err)
			}
		} else if err != nil {
			t.Errorf("checkRef(%v) failed: %v", tc.ref, err)
		}
	}
}

func TestReporterFunc(t *testing.T) {
	var mu sync.Mutex
	var got []error
	r := ReporterFunc(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, err)
	})
	r.Report(ErrFetchFailure)
	if len(got) != 1 || got[0] != ErrFetchFailure {
		t.Errorf("ReporterFunc recorded %v", got)
	}
	// Must not panic.
	LogReporter{}.Report(ErrFetchFailure)
}
