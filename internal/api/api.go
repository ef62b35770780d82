// This file contains the wire types exchanged with catalog and techdocs backends.
// Entity descriptors are broadly compatible with backstage.io's types:
// https://backstage.io/docs/features/software-catalog/descriptor-format#contents
package api

import (
	"strings"

	"github.com/dnswlt/techdocs/internal/catalog"
)

// Well-known annotations.
const (
	AnnotTechDocsRef      = "backstage.io/techdocs-ref"
	AnnotManagedByLoc     = "backstage.io/managed-by-location"
	AnnotSourceLocation   = "backstage.io/source-location"
	AnnotViewURL          = "backstage.io/view-url"
	AnnotEditURL          = "backstage.io/edit-url"
	DefaultAPIVersion     = "backstage.io/v1alpha1"
	TechDocsMetadataFile  = "techdocs_metadata.json"
	MkDocsConfigFile      = "mkdocs.yml"
	MkDocsConfigFileAlias = "mkdocs.yaml"
)

// Entity is the generic descriptor of a catalog entity.
// Only the fields relevant for documentation pages are modelled explicitly.
type Entity struct {
	APIVersion string      `yaml:"apiVersion,omitempty" json:"apiVersion,omitempty"`
	Kind       string      `yaml:"kind,omitempty" json:"kind,omitempty"`
	Metadata   *Metadata   `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Spec       *EntitySpec `yaml:"spec,omitempty" json:"spec,omitempty"`
}

type Metadata struct {
	// [required]
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// If empty, the entity is assumed to live in the default namespace.
	Namespace   string            `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Title       string            `yaml:"title,omitempty" json:"title,omitempty"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty" json:"annotations,omitempty"`
	Tags        []string          `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// EntitySpec holds the spec fields shared by most entity kinds.
// All other spec fields are retained in Extra.
type EntitySpec struct {
	Type      string         `yaml:"type,omitempty" json:"type,omitempty"`
	Lifecycle string         `yaml:"lifecycle,omitempty" json:"lifecycle,omitempty"`
	Owner     string         `yaml:"owner,omitempty" json:"owner,omitempty"`
	Extra     map[string]any `yaml:",inline" json:"-"`
}

// LocationMetadata describes where an entity's source lives,
// e.g. {Type: "url", Target: "https://github.com/org/repo/blob/main/catalog-info.yaml"}.
type LocationMetadata struct {
	Type   string `json:"type"`
	Target string `json:"target"`
}

// EntityRecord is the JSON document served by techdocs backends
// for an entity: the entity itself plus its location.
type EntityRecord struct {
	Entity
	LocationMetadata *LocationMetadata `json:"locationMetadata,omitempty"`
}

// EntityMetadata is the flattened, read-only view of a catalog entity
// used by documentation pages.
type EntityMetadata struct {
	Kind             string
	Namespace        string
	Name             string
	Title            string
	Description      string
	Type             string
	Lifecycle        string
	Owner            string
	LocationMetadata *LocationMetadata
}

// SiteMetadata describes a generated documentation site.
// The JSON field names match the techdocs_metadata.json files
// produced by the techdocs generator.
type SiteMetadata struct {
	SiteName        string   `json:"site_name,omitempty"`
	SiteDescription string   `json:"site_description,omitempty"`
	BuildTimestamp  int64    `json:"build_timestamp,omitempty"`
	EtagHash        string   `json:"etag,omitempty"`
	Files           []string `json:"files,omitempty"`
}

// MkDocsConfig holds the fields of an mkdocs.yml that describe the site.
type MkDocsConfig struct {
	SiteName        string `yaml:"site_name"`
	SiteDescription string `yaml:"site_description"`
}

func (m *MkDocsConfig) SiteMetadata() *SiteMetadata {
	return &SiteMetadata{
		SiteName:        m.SiteName,
		SiteDescription: m.SiteDescription,
	}
}

// GetRef returns the entity reference of e. The kind is lowercased, as kinds in
// YAML are conventionally capitalized ("kind: Component") while references use
// lowercase kinds ("component:default/foo"). Namespace and name are kept verbatim.
func (e *Entity) GetRef() catalog.Ref {
	var namespace, name string
	if e.Metadata != nil {
		namespace = e.Metadata.Namespace
		name = e.Metadata.Name
	}
	if namespace == "" {
		namespace = catalog.DefaultNamespace
	}
	return catalog.NewRef(strings.ToLower(e.Kind), namespace, name)
}

func (e *Entity) annotation(key string) string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata.Annotations[key]
}

// HasTechDocs reports whether the entity declares generated documentation.
func (e *Entity) HasTechDocs() bool {
	return e.annotation(AnnotTechDocsRef) != ""
}

// Location returns the source location of the entity, derived from the
// source-location annotation or, failing that, the managed-by-location annotation.
func (e *Entity) Location() *LocationMetadata {
	if loc := ParseLocation(e.annotation(AnnotSourceLocation)); loc != nil {
		return loc
	}
	return ParseLocation(e.annotation(AnnotManagedByLoc))
}

// ToMetadata flattens e into an EntityMetadata. If loc is nil, the location
// is derived from the entity's annotations.
func (e *Entity) ToMetadata(loc *LocationMetadata) *EntityMetadata {
	ref := e.GetRef()
	m := &EntityMetadata{
		Kind:             ref.Kind,
		Namespace:        ref.Namespace,
		Name:             ref.Name,
		LocationMetadata: loc,
	}
	if e.Metadata != nil {
		m.Title = e.Metadata.Title
		m.Description = e.Metadata.Description
	}
	if e.Spec != nil {
		m.Type = e.Spec.Type
		m.Lifecycle = e.Spec.Lifecycle
		m.Owner = e.Spec.Owner
	}
	if m.LocationMetadata == nil {
		m.LocationMetadata = e.Location()
	}
	return m
}

// ParseLocation parses location references of the form <type>:<target>,
// e.g. "url:https://example.com/catalog-info.yaml". It returns nil for
// empty or malformed input.
func ParseLocation(s string) *LocationMetadata {
	typ, target, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found || typ == "" || target == "" {
		return nil
	}
	return &LocationMetadata{Type: typ, Target: target}
}
