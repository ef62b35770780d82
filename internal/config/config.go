package config

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/dnswlt/techdocs/internal/routes"
	"github.com/dnswlt/techdocs/internal/store"
	"gopkg.in/yaml.v3"
)

// HelpLink is a custom link shown in the footer.
type HelpLink struct {
	Title string `yaml:"title"`
	URL   string `yaml:"url"`
}

// UIConfig has configuration that only affects the UI.
// We cannot put it into the web package as that would generate
// a cyclic dependency.
type UIConfig struct {
	// An optional custom help link shown at the bottom of the UI.
	HelpLink *HelpLink `yaml:"helpLink"`
	// The label preceding the page title in the reader header, e.g. "Docs".
	HeaderType string `yaml:"headerType"`
}

// Bundle is the umbrella struct for the serialized application configuration YAML.
// It bundles the package-specific configurations.
type Bundle struct {
	// Route templates by route name, e.g. "entity": "/catalog/:namespace/:kind/:name".
	Routes map[string]string `yaml:"routes"`
	UI     UIConfig          `yaml:"ui"`
}

// Registry returns the route registry configured by the bundle.
// Routes missing from the bundle use their default templates.
func (b *Bundle) Registry() (*routes.Registry, error) {
	return routes.NewRegistry(b.Routes)
}

func Parse(bs []byte) (*Bundle, error) {
	dec := yaml.NewDecoder(bytes.NewReader(bs))
	dec.KnownFields(true)
	var bundle Bundle
	if err := dec.Decode(&bundle); err != nil {
		return nil, err
	}

	// Validate computed fields
	if _, err := bundle.Registry(); err != nil {
		return nil, fmt.Errorf("invalid routes: %v", err)
	}
	if hl := bundle.UI.HelpLink; hl != nil {
		u, err := url.Parse(hl.URL)
		if err != nil || hl.URL == "" {
			return nil, fmt.Errorf("invalid helpLink URL %q", hl.URL)
		}
		if hl.Title == "" {
			hl.Title = u.Host
		}
	}
	return &bundle, nil
}

func Load(st store.Store, configPath string) (*Bundle, error) {
	bs, err := st.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not read config %q: %w", configPath, err)
	}
	bundle, err := Parse(bs)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration YAML in %q: %v", configPath, err)
	}
	return bundle, nil
}
