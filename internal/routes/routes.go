// Package routes maps symbolic route names to URL paths.
package routes

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dnswlt/techdocs/internal/catalog"
)

const (
	RouteEntity = "entity"
	RouteRoot   = "root"

	DefaultEntityTemplate = "/catalog/:namespace/:kind/:name"
	DefaultRootTemplate   = "/docs"
)

// Registry holds the URL templates of the routes mounted in the application.
// Templates use ":namespace", ":kind", and ":name" placeholders.
type Registry struct {
	templates map[string]string
}

func NewRegistry(templates map[string]string) (*Registry, error) {
	r := &Registry{
		templates: map[string]string{
			RouteEntity: DefaultEntityTemplate,
			RouteRoot:   DefaultRootTemplate,
		},
	}
	for name, tmpl := range templates {
		if tmpl == "" {
			continue
		}
		if !strings.HasPrefix(tmpl, "/") {
			return nil, fmt.Errorf("route %q: template %q must start with /", name, tmpl)
		}
		r.templates[name] = strings.TrimSuffix(tmpl, "/*")
	}
	return r, nil
}

// DefaultRegistry returns a registry with the default route templates.
func DefaultRegistry() *Registry {
	r, _ := NewRegistry(nil)
	return r
}

// Resolve substitutes the fields of ref into the template of the named route.
// Routes without placeholders ignore ref.
func (r *Registry) Resolve(routeName string, ref catalog.Ref) (string, error) {
	tmpl, ok := r.templates[routeName]
	if !ok {
		return "", fmt.Errorf("no route named %q", routeName)
	}
	return substitute(tmpl, ref), nil
}

// Template returns the raw template of the named route.
func (r *Registry) Template(routeName string) string {
	return r.templates[routeName]
}

func substitute(tmpl string, ref catalog.Ref) string {
	segments := strings.Split(tmpl, "/")
	for i, s := range segments {
		switch s {
		case ":namespace":
			segments[i] = url.PathEscape(ref.Namespace)
		case ":kind":
			segments[i] = url.PathEscape(ref.Kind)
		case ":name":
			segments[i] = url.PathEscape(ref.Name)
		}
	}
	return strings.Join(segments, "/")
}

// PathResolver derives the breadcrumb target and label of a catalog entity.
type PathResolver struct {
	entityTemplate string
}

func NewPathResolver(reg *Registry) *PathResolver {
	tmpl := reg.Template(RouteEntity)
	if tmpl == "" {
		tmpl = DefaultEntityTemplate
	}
	return &PathResolver{entityTemplate: tmpl}
}

// Resolve returns the path of the catalog page of ref. Fields are substituted
// verbatim, without case transformation. Resolve is total.
func (p *PathResolver) Resolve(ref catalog.Ref) string {
	return substitute(p.entityTemplate, ref)
}

// Label returns the visible label of the breadcrumb link: <kind>:<namespace>/<name>.
func (p *PathResolver) Label(ref catalog.Ref) string {
	return ref.Kind + ":" + ref.Namespace + "/" + ref.Name
}
