package gitclient

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/go-cmp/cmp"
)

type testRepo struct {
	dir  string
	repo *git.Repository
	wt   *git.Worktree
}

func (r *testRepo) writeFile(t *testing.T, path, content string) {
	t.Helper()
	full := filepath.Join(r.dir, path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func (r *testRepo) commit(t *testing.T, msg string) {
	t.Helper()
	if _, err := r.wt.Add("."); err != nil {
		t.Fatalf("Failed to add files: %v", err)
	}
	_, err := r.wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test User",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
}

func (r *testRepo) tag(t *testing.T, name string) {
	t.Helper()
	head, err := r.repo.Head()
	if err != nil {
		t.Fatalf("Failed to get HEAD: %v", err)
	}
	if _, err := r.repo.CreateTag(name, head.Hash(), nil); err != nil {
		t.Fatalf("Failed to create tag %s: %v", name, err)
	}
}

// createTestRepo initializes a git repo in a temp dir holding a catalog
// and generated documentation metadata.
//
// v1.0.0 (tag)
//   - catalog/catalog-info.yaml
//   - docs/default/component/foo/techdocs_metadata.json ("v1")
//
// v2.0.0 (tag)
//   - docs/default/component/foo/techdocs_metadata.json ("v2")
//
// feature/mkdocs (branch)
//   - docs/default/component/bar/mkdocs.yml
func createTestRepo(t *testing.T) *testRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("Failed to init git repo: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Failed to get worktree: %v", err)
	}
	r := &testRepo{dir: dir, repo: repo, wt: wt}

	r.writeFile(t, "catalog/catalog-info.yaml", "kind: Component\nmetadata:\n  name: foo\n")
	r.writeFile(t, "docs/default/component/foo/techdocs_metadata.json", `{"site_name": "v1"}`)
	r.commit(t, "Initial commit")
	r.tag(t, "v1.0.0")

	r.writeFile(t, "docs/default/component/foo/techdocs_metadata.json", `{"site_name": "v2"}`)
	r.commit(t, "Second commit")
	r.tag(t, "v2.0.0")

	err = wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("feature/mkdocs"),
		Create: true,
	})
	if err != nil {
		t.Fatalf("Failed to checkout branch: %v", err)
	}
	r.writeFile(t, "docs/default/component/bar/mkdocs.yml", "site_name: bar\n")
	r.commit(t, "Branch commit")

	// Switch back to master so it's the HEAD when cloned
	err = wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("master"),
	})
	if err != nil {
		t.Fatalf("Failed to checkout master: %v", err)
	}
	return r
}

func TestClient(t *testing.T) {
	r := createTestRepo(t)

	client, err := New(r.dir, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	t.Run("DefaultBranch", func(t *testing.T) {
		branch, err := client.DefaultBranch()
		if err != nil {
			t.Fatalf("DefaultBranch failed: %v", err)
		}
		if branch != "master" {
			t.Errorf("DefaultBranch() = %q, want %q", branch, "master")
		}
	})

	t.Run("ListReferences", func(t *testing.T) {
		refs, err := client.ListReferences()
		if err != nil {
			t.Fatalf("ListReferences failed: %v", err)
		}
		slices.Sort(refs)
		want := []string{"feature/mkdocs", "master", "v1.0.0", "v2.0.0"}
		if diff := cmp.Diff(want, refs); diff != "" {
			t.Errorf("ListReferences mismatch (-want +got):\n%s", diff)
		}
	})

	readTests := []struct {
		revision string
		path     string
		want     string
	}{
		{"v1.0.0", "docs/default/component/foo/techdocs_metadata.json", `{"site_name": "v1"}`},
		{"v2.0.0", "docs/default/component/foo/techdocs_metadata.json", `{"site_name": "v2"}`},
		{"master", "docs/default/component/foo/techdocs_metadata.json", `{"site_name": "v2"}`},
		{"feature/mkdocs", "docs/default/component/bar/mkdocs.yml", "site_name: bar\n"},
	}
	for _, tc := range readTests {
		t.Run("ReadFile "+tc.revision, func(t *testing.T) {
			content, err := client.ReadFile(tc.revision, tc.path)
			if err != nil {
				t.Fatalf("ReadFile failed: %v", err)
			}
			if string(content) != tc.want {
				t.Errorf("ReadFile(%q, %q) = %q, want %q", tc.revision, tc.path, content, tc.want)
			}
		})
	}

	t.Run("ReadFile missing", func(t *testing.T) {
		_, err := client.ReadFile("master", "docs/default/component/bar/mkdocs.yml")
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("ReadFile of missing file: got %v, want fs.ErrNotExist", err)
		}
	})

	t.Run("ReadFile unknown revision", func(t *testing.T) {
		_, err := client.ReadFile("v9.9.9", "catalog/catalog-info.yaml")
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			t.Errorf("ReadFile at unknown revision: got %v, want revision error", err)
		}
	})

	t.Run("ListFilesRecursive", func(t *testing.T) {
		files, err := client.ListFilesRecursive("feature/mkdocs", "docs")
		if err != nil {
			t.Fatalf("ListFilesRecursive failed: %v", err)
		}
		slices.Sort(files)
		want := []string{"default/component/bar/mkdocs.yml", "default/component/foo/techdocs_metadata.json"}
		if diff := cmp.Diff(want, files); diff != "" {
			t.Errorf("ListFilesRecursive mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("ListFilesRecursive missing dir", func(t *testing.T) {
		_, err := client.ListFilesRecursive("master", "nope")
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("ListFilesRecursive of missing dir: got %v, want fs.ErrNotExist", err)
		}
	})
}

func TestClient_Update(t *testing.T) {
	r := createTestRepo(t)
	client, err := New(r.dir, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	r.writeFile(t, "docs/default/component/baz/techdocs_metadata.json", `{"site_name": "baz"}`)
	r.commit(t, "Add baz docs")
	r.tag(t, "v3.0.0")

	if _, err := client.ReadFile("v3.0.0", "docs/default/component/baz/techdocs_metadata.json"); err == nil {
		t.Fatal("v3.0.0 should not be visible before Update")
	}
	if err := client.Update(); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	content, err := client.ReadFile("v3.0.0", "docs/default/component/baz/techdocs_metadata.json")
	if err != nil {
		t.Fatalf("ReadFile after Update failed: %v", err)
	}
	if string(content) != `{"site_name": "baz"}` {
		t.Errorf("ReadFile after Update = %q", content)
	}
	// A second update without remote changes is a no-op.
	if err := client.Update(); err != nil {
		t.Errorf("second Update failed: %v", err)
	}
}
