package techdocs

import (
	"context"
	"errors"
	"io/fs"
	"path"

	"github.com/dnswlt/techdocs/internal/api"
	"github.com/dnswlt/techdocs/internal/catalog"
	"github.com/dnswlt/techdocs/internal/store"
)

// SiteFetcher is a SiteMetadataFetcher that reads generated documentation
// from a store laid out as <docsDir>/<namespace>/<kind>/<name>/.
//
// The site descriptor is read from techdocs_metadata.json. Sites that were
// not built yet fall back to the site_name and site_description of their
// mkdocs.yml.
type SiteFetcher struct {
	st      store.Store
	docsDir string
}

var _ SiteMetadataFetcher = (*SiteFetcher)(nil)

func NewSiteFetcher(st store.Store, docsDir string) *SiteFetcher {
	return &SiteFetcher{st: st, docsDir: docsDir}
}

// readOptional reads p from the store; a missing file yields (nil, nil).
func (f *SiteFetcher) readOptional(p string) ([]byte, error) {
	bs, err := f.st.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return bs, err
}

func (f *SiteFetcher) FetchSiteMetadata(ctx context.Context, ref catalog.Ref) (*api.SiteMetadata, error) {
	if err := checkRef(ref); err != nil {
		return nil, fetchError(SourceSite, ref, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fetchError(SourceSite, ref, err)
	}
	dir := path.Join(f.docsDir, refPath(ref))

	bs, err := f.readOptional(path.Join(dir, api.TechDocsMetadataFile))
	if err != nil {
		return nil, fetchError(SourceSite, ref, err)
	}
	if bs != nil {
		md, err := api.DecodeSiteMetadata(bs)
		if err != nil {
			return nil, fetchError(SourceSite, ref, err)
		}
		return md, nil
	}

	for _, name := range []string{api.MkDocsConfigFile, api.MkDocsConfigFileAlias} {
		bs, err := f.readOptional(path.Join(dir, name))
		if err != nil {
			return nil, fetchError(SourceSite, ref, err)
		}
		if bs == nil {
			continue
		}
		cfg, err := api.DecodeMkDocsConfig(bs)
		if err != nil {
			return nil, fetchError(SourceSite, ref, err)
		}
		return cfg.SiteMetadata(), nil
	}
	return nil, nil
}
