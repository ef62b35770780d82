package web

import (
	"github.com/dnswlt/techdocs/internal/catalog"
	"github.com/dnswlt/techdocs/internal/reader"
	"github.com/dnswlt/techdocs/internal/routes"
)

const defaultHeaderType = "Docs"

// Link is a rendered hyperlink. Links with an empty Href are shown as plain text.
type Link struct {
	Label string
	Href  string
}

// HeaderView is the presentation model of the reader page header.
// It is derived from a reader.ReadModel and never depends on the entity
// metadata for its structural parts (title, breadcrumb).
type HeaderView struct {
	Ref catalog.Ref
	// Title is shown as the page heading and in the sub-heading trail.
	Title string
	// Description is markdown and only rendered if HasDescription is true.
	Description    string
	HasDescription bool
	// TypeLabel prefixes the title in the sub-heading trail.
	TypeLabel  string
	Breadcrumb Link

	// Enrichments from the entity metadata. Empty if unavailable.
	Owner     string
	Lifecycle string
	Source    *Link

	// Loading is true while at least one fetch has not settled.
	Loading bool
}

// titleFallback returns the site name if the site metadata has one,
// else the name of the entity reference.
func titleFallback(m reader.ReadModel) string {
	if m.Site != nil && m.Site.SiteName != "" {
		return m.Site.SiteName
	}
	return m.Ref.Name
}

// hasDescription reports whether the site metadata carries a description.
func hasDescription(m reader.ReadModel) bool {
	return m.Site != nil && m.Site.SiteDescription != ""
}

// sourceLink derives a link to the entity's source from its location.
// Only "url" locations are linked; other location types are shown as text.
func sourceLink(m reader.ReadModel) *Link {
	if m.Entity == nil || m.Entity.LocationMetadata == nil || m.Entity.LocationMetadata.Target == "" {
		return nil
	}
	loc := m.Entity.LocationMetadata
	l := &Link{Label: loc.Target}
	if loc.Type == "url" {
		l.Href = loc.Target
	}
	return l
}

func NewHeaderView(m reader.ReadModel, resolver *routes.PathResolver) HeaderView {
	v := HeaderView{
		Ref:       m.Ref,
		Title:     titleFallback(m),
		TypeLabel: defaultHeaderType,
		Breadcrumb: Link{
			Label: resolver.Label(m.Ref),
			Href:  resolver.Resolve(m.Ref),
		},
		Loading: !m.Settled(),
	}
	if hasDescription(m) {
		v.HasDescription = true
		v.Description = m.Site.SiteDescription
	}
	if m.Entity != nil {
		v.Owner = m.Entity.Owner
		v.Lifecycle = m.Entity.Lifecycle
		v.Source = sourceLink(m)
	}
	return v
}
