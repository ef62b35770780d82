// Package techdocs provides the metadata sources of documentation pages:
// the catalog entity an entity's docs belong to, and the descriptor of the
// generated documentation site.
//
// Both sources distinguish "no data" from failure: a fetcher returns
// (nil, nil) if the backing source has no record, and a *FetchError if
// the record could not be retrieved or decoded.
package techdocs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"

	"github.com/dnswlt/techdocs/internal/api"
	"github.com/dnswlt/techdocs/internal/catalog"
)

var (
	// ErrFetchFailure matches every *FetchError via errors.Is.
	ErrFetchFailure = errors.New("fetch failure")
	ErrInvalidRef   = errors.New("invalid entity reference")
)

// EntityMetadataFetcher retrieves the catalog record of an entity.
type EntityMetadataFetcher interface {
	FetchEntityMetadata(ctx context.Context, ref catalog.Ref) (*api.EntityMetadata, error)
}

// SiteMetadataFetcher retrieves the descriptor of an entity's documentation site.
type SiteMetadataFetcher interface {
	FetchSiteMetadata(ctx context.Context, ref catalog.Ref) (*api.SiteMetadata, error)
}

// Source identifies which metadata source a FetchError originates from.
type Source string

const (
	SourceEntity Source = "entity"
	SourceSite   Source = "site"
)

// FetchError is a transport or decoding failure of a metadata fetch.
type FetchError struct {
	Source Source
	Ref    catalog.Ref
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s metadata for %s: %v", e.Source, e.Ref, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailure
}

func fetchError(src Source, ref catalog.Ref, err error) *FetchError {
	return &FetchError{Source: src, Ref: ref, Err: err}
}

// checkRef validates the preconditions fetchers impose on refs: all fields
// are non-empty and usable as a single path segment.
func checkRef(ref catalog.Ref) error {
	if err := ref.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRef, err)
	}
	for _, s := range []string{ref.Kind, ref.Namespace, ref.Name} {
		if s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
			return fmt.Errorf("%w: %q is not a valid path segment", ErrInvalidRef, s)
		}
	}
	return nil
}

// refPath returns the <namespace>/<kind>/<name> triplet path used by
// techdocs storage layouts and backend URLs.
func refPath(ref catalog.Ref) string {
	return path.Join(ref.Namespace, ref.Kind, ref.Name)
}

// ErrorReporter receives fetch failures. Implementations must be safe for
// concurrent use.
type ErrorReporter interface {
	Report(err error)
}

// ReporterFunc adapts a function to the ErrorReporter interface.
type ReporterFunc func(err error)

func (f ReporterFunc) Report(err error) {
	f(err)
}

// LogReporter writes fetch failures to the standard logger.
type LogReporter struct{}

func (LogReporter) Report(err error) {
	log.Printf("techdocs: %v", err)
}
