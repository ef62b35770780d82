package techdocs

import (
	"context"
	"errors"
	"testing"

	"github.com/dnswlt/techdocs/internal/api"
	"github.com/dnswlt/techdocs/internal/catalog"
	"github.com/dnswlt/techdocs/internal/store"
	"github.com/google/go-cmp/cmp"
)

func TestSiteFetcher(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"docs/test-namespace/test/test-name/techdocs_metadata.json": `{"site_name": "test-site-name", "site_description": "test-site-desc", "build_timestamp": 42}`,
		"docs/default/component/draft/mkdocs.yml":                   "site_name: Draft\nsite_description: Not built yet\nnav:\n  - index.md\n",
		"docs/default/component/alias/mkdocs.yaml":                  "site_name: Alias\n",
		"docs/default/component/broken/techdocs_metadata.json":      "{not json",
	})
	f := NewSiteFetcher(store.NewDiskStore(dir), "docs")
	ctx := context.Background()

	tests := []struct {
		name string
		ref  catalog.Ref
		want *api.SiteMetadata
	}{
		{
			name: "techdocs_metadata.json",
			ref:  catalog.NewRef("test", "test-namespace", "test-name"),
			want: &api.SiteMetadata{SiteName: "test-site-name", SiteDescription: "test-site-desc", BuildTimestamp: 42},
		},
		{
			name: "mkdocs.yml fallback",
			ref:  catalog.NewRef("component", "default", "draft"),
			want: &api.SiteMetadata{SiteName: "Draft", SiteDescription: "Not built yet"},
		},
		{
			name: "mkdocs.yaml fallback",
			ref:  catalog.NewRef("component", "default", "alias"),
			want: &api.SiteMetadata{SiteName: "Alias"},
		},
		{
			name: "no docs",
			ref:  catalog.NewRef("component", "default", "undocumented"),
			want: nil,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.FetchSiteMetadata(ctx, tc.ref)
			if err != nil {
				t.Fatalf("FetchSiteMetadata failed: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("FetchSiteMetadata mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("decoding failure", func(t *testing.T) {
		got, err := f.FetchSiteMetadata(ctx, catalog.NewRef("component", "default", "broken"))
		if !errors.Is(err, ErrFetchFailure) {
			t.Errorf("FetchSiteMetadata = (%v, %v), want fetch failure", got, err)
		}
		var fe *FetchError
		if errors.As(err, &fe) && fe.Source != SourceSite {
			t.Errorf("FetchError.Source = %q, want %q", fe.Source, SourceSite)
		}
	})

	t.Run("path traversal", func(t *testing.T) {
		_, err := f.FetchSiteMetadata(ctx, catalog.NewRef("component", "..", "secrets"))
		if !errors.Is(err, ErrInvalidRef) {
			t.Errorf("FetchSiteMetadata = %v, want ErrInvalidRef", err)
		}
	})
}
