package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ReadEntities decodes all entity documents in a (multi-document) YAML file.
// path is only used in error messages.
func ReadEntities(bs []byte, path string) ([]*Entity, error) {
	dec := yaml.NewDecoder(bytes.NewReader(bs))

	var entities []*Entity
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode YAML node in %q: %w", path, err)
		}
		// node.Content will be empty for blank documents (e.g., just "---")
		if len(node.Content) == 0 {
			continue
		}
		var e Entity
		if err := node.Decode(&e); err != nil {
			return nil, fmt.Errorf("error in document %q starting at line %d: %v", path, node.Line, err)
		}
		if e.Kind == "" || e.Metadata == nil || e.Metadata.Name == "" {
			return nil, fmt.Errorf("error in document %q starting at line %d: kind and metadata.name are required", path, node.Line)
		}
		entities = append(entities, &e)
	}
	return entities, nil
}

// DecodeEntityRecord decodes the JSON entity document served by techdocs backends.
func DecodeEntityRecord(bs []byte) (*EntityRecord, error) {
	var rec EntityRecord
	if err := json.Unmarshal(bs, &rec); err != nil {
		return nil, fmt.Errorf("invalid entity JSON: %w", err)
	}
	if rec.Kind == "" || rec.Metadata == nil || rec.Metadata.Name == "" {
		return nil, fmt.Errorf("invalid entity JSON: kind and metadata.name are required")
	}
	return &rec, nil
}

// DecodeSiteMetadata decodes a techdocs_metadata.json document.
func DecodeSiteMetadata(bs []byte) (*SiteMetadata, error) {
	var md SiteMetadata
	if err := json.Unmarshal(bs, &md); err != nil {
		return nil, fmt.Errorf("invalid techdocs metadata JSON: %w", err)
	}
	return &md, nil
}

// DecodeMkDocsConfig extracts the site fields from an mkdocs.yml document.
// Unknown keys (nav, theme, plugins, ...) are ignored.
func DecodeMkDocsConfig(bs []byte) (*MkDocsConfig, error) {
	var cfg MkDocsConfig
	if err := yaml.Unmarshal(bs, &cfg); err != nil {
		return nil, fmt.Errorf("invalid mkdocs YAML: %w", err)
	}
	return &cfg, nil
}
