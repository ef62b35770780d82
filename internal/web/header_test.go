package web

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dnswlt/techdocs/internal/api"
	"github.com/dnswlt/techdocs/internal/catalog"
	"github.com/dnswlt/techdocs/internal/reader"
	"github.com/dnswlt/techdocs/internal/routes"
	"github.com/google/go-cmp/cmp"
)

var testRef = catalog.NewRef("test", "test-namespace", "test-name")

func settledModel(entity *api.EntityMetadata, site *api.SiteMetadata) reader.ReadModel {
	m := reader.ReadModel{
		Ref:          testRef,
		Entity:       entity,
		Site:         site,
		EntityStatus: reader.Absent,
		SiteStatus:   reader.Absent,
		Generation:   1,
		Version:      3,
	}
	if entity != nil {
		m.EntityStatus = reader.Ready
	}
	if site != nil {
		m.SiteStatus = reader.Ready
	}
	return m
}

func renderHeaderHTML(t *testing.T, s *Server, m reader.ReadModel) string {
	t.Helper()
	var buf bytes.Buffer
	if err := s.renderHeader(&buf, s.headerView(m)); err != nil {
		t.Fatalf("renderHeader failed: %v", err)
	}
	return buf.String()
}

func TestTitleFallback(t *testing.T) {
	tests := []struct {
		name string
		site *api.SiteMetadata
		want string
	}{
		{"no site", nil, "test-name"},
		{"empty site name", &api.SiteMetadata{SiteDescription: "d"}, "test-name"},
		{"site name", &api.SiteMetadata{SiteName: "My Site"}, "My Site"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := titleFallback(settledModel(nil, tc.site)); got != tc.want {
				t.Errorf("titleFallback() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestHasDescription(t *testing.T) {
	tests := []struct {
		name string
		site *api.SiteMetadata
		want bool
	}{
		{"no site", nil, false},
		{"empty description", &api.SiteMetadata{SiteName: "n"}, false},
		{"description", &api.SiteMetadata{SiteDescription: "d"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := hasDescription(settledModel(nil, tc.site)); got != tc.want {
				t.Errorf("hasDescription() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNewHeaderView(t *testing.T) {
	entity := &api.EntityMetadata{
		Kind:      "test",
		Namespace: "test-namespace",
		Name:      "test-name",
		Owner:     "group:default/team-a",
		Lifecycle: "production",
		LocationMetadata: &api.LocationMetadata{
			Type:   "url",
			Target: "https://git.example.com/repo/catalog-info.yaml",
		},
	}
	site := &api.SiteMetadata{SiteName: "Test Site", SiteDescription: "About *this*"}
	resolver := routes.NewPathResolver(routes.DefaultRegistry())

	got := NewHeaderView(settledModel(entity, site), resolver)
	want := HeaderView{
		Ref:            testRef,
		Title:          "Test Site",
		Description:    "About *this*",
		HasDescription: true,
		TypeLabel:      "Docs",
		Breadcrumb: Link{
			Label: "test:test-namespace/test-name",
			Href:  "/catalog/test-namespace/test/test-name",
		},
		Owner:     "group:default/team-a",
		Lifecycle: "production",
		Source: &Link{
			Label: "https://git.example.com/repo/catalog-info.yaml",
			Href:  "https://git.example.com/repo/catalog-info.yaml",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NewHeaderView mismatch (-want +got):\n%s", diff)
	}
}

func TestNewHeaderView_FileLocationIsNotLinked(t *testing.T) {
	entity := &api.EntityMetadata{
		LocationMetadata: &api.LocationMetadata{Type: "file", Target: "catalog/components.yml"},
	}
	v := NewHeaderView(settledModel(entity, nil), routes.NewPathResolver(routes.DefaultRegistry()))
	if v.Source == nil || v.Source.Href != "" || v.Source.Label != "catalog/components.yml" {
		t.Errorf("Source = %+v, want unlinked label", v.Source)
	}
}

func TestNewHeaderView_Pending(t *testing.T) {
	m := reader.ReadModel{Ref: testRef, Generation: 1, Version: 1}
	v := NewHeaderView(m, routes.NewPathResolver(routes.DefaultRegistry()))
	if !v.Loading {
		t.Error("Loading = false for pending model")
	}
	if v.Title != "test-name" || v.Breadcrumb.Href == "" {
		t.Errorf("pending header lacks fallback title or breadcrumb: %+v", v)
	}
}

func TestRenderHeader_GracefulMinimum(t *testing.T) {
	s := newTestServer(t, ServerOptions{}, newFakeSources())

	models := map[string]reader.ReadModel{
		"pending": {Ref: testRef, Generation: 1, Version: 1},
		"absent":  settledModel(nil, nil),
		"failed": {
			Ref:          testRef,
			EntityStatus: reader.Failed,
			SiteStatus:   reader.Failed,
			Generation:   1,
			Version:      3,
		},
	}
	for name, m := range models {
		t.Run(name, func(t *testing.T) {
			got := renderHeaderHTML(t, s, m)
			if !strings.Contains(got, "<header") || !strings.Contains(got, "</header>") {
				t.Fatalf("no header element in %q", got)
			}
			if !strings.Contains(got, ">test-name</h1>") {
				t.Errorf("header does not show the fallback title: %q", got)
			}
			if strings.Contains(got, "reader-description") {
				t.Errorf("header shows a description placeholder: %q", got)
			}
		})
	}
}

func TestRenderHeader_TitleAndDescription(t *testing.T) {
	s := newTestServer(t, ServerOptions{}, newFakeSources())
	site := &api.SiteMetadata{SiteName: "test-site-name", SiteDescription: "test-site-desc"}

	got := renderHeaderHTML(t, s, settledModel(nil, site))

	if n := strings.Count(got, "test-site-name"); n != 2 {
		t.Errorf("site name occurs %d times, want 2:\n%s", n, got)
	}
	if n := strings.Count(got, "test-site-desc"); n != 1 {
		t.Errorf("site description occurs %d times, want 1:\n%s", n, got)
	}
}

func TestRenderHeader_Breadcrumb(t *testing.T) {
	s := newTestServer(t, ServerOptions{}, newFakeSources())

	got := renderHeaderHTML(t, s, settledModel(nil, nil))

	want := `<a href="/catalog/test-namespace/test/test-name">test:test-namespace/test-name</a>`
	if !strings.Contains(got, want) {
		t.Errorf("header does not contain breadcrumb link %s:\n%s", want, got)
	}
}

func TestRenderHeader_IndependentOfEntityMetadata(t *testing.T) {
	s := newTestServer(t, ServerOptions{}, newFakeSources())
	site := &api.SiteMetadata{SiteName: "Site"}
	bare := &api.EntityMetadata{Kind: "test", Namespace: "test-namespace", Name: "test-name"}
	rich := &api.EntityMetadata{Kind: "test", Namespace: "test-namespace", Name: "test-name", Owner: "team-a"}

	without := renderHeaderHTML(t, s, settledModel(nil, site))
	withBare := renderHeaderHTML(t, s, settledModel(bare, site))
	withRich := renderHeaderHTML(t, s, settledModel(rich, site))

	if diff := cmp.Diff(without, withBare); diff != "" {
		t.Errorf("entity metadata without enrichments changed the header (-without +with):\n%s", diff)
	}
	link := `<a href="/catalog/test-namespace/test/test-name">test:test-namespace/test-name</a>`
	for name, got := range map[string]string{"without": without, "rich": withRich} {
		if !strings.Contains(got, link) {
			t.Errorf("%s: breadcrumb link missing:\n%s", name, got)
		}
	}
	if !strings.Contains(withRich, "Owner: team-a") {
		t.Errorf("owner badge missing:\n%s", withRich)
	}
}

func TestRenderHeader_MarkdownDescription(t *testing.T) {
	s := newTestServer(t, ServerOptions{}, newFakeSources())
	site := &api.SiteMetadata{SiteDescription: "Uses **bold** and <script>alert(1)</script>"}

	got := renderHeaderHTML(t, s, settledModel(nil, site))

	if !strings.Contains(got, "<strong>bold</strong>") {
		t.Errorf("markdown not rendered:\n%s", got)
	}
	if strings.Contains(got, "<script>") {
		t.Errorf("raw HTML in description was not omitted:\n%s", got)
	}
}

func TestRenderHeader_HeaderType(t *testing.T) {
	s := newTestServer(t, ServerOptions{}, newFakeSources())
	s.opts.UI.HeaderType = "Handbook"

	got := renderHeaderHTML(t, s, settledModel(nil, nil))

	if !strings.Contains(got, `<span class="reader-type">Handbook</span>`) {
		t.Errorf("header type label missing:\n%s", got)
	}
}
