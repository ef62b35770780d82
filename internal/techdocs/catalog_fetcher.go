package techdocs

import (
	"context"
	"fmt"
	"log"
	"slices"

	"github.com/dnswlt/techdocs/internal/api"
	"github.com/dnswlt/techdocs/internal/catalog"
	"github.com/dnswlt/techdocs/internal/store"
	"golang.org/x/sync/errgroup"
)

const catalogReadConcurrency = 8

type indexedEntity struct {
	entity *api.Entity
	path   string
}

// CatalogIndex is an immutable index of the entities found in a catalog directory.
type CatalogIndex struct {
	entities map[catalog.Ref]indexedEntity
}

// LoadCatalog reads all YAML files under catalogDir in st and indexes the
// entities they contain. Files are read concurrently. Duplicate entity
// references are an error.
func LoadCatalog(ctx context.Context, st store.Store, catalogDir string) (*CatalogIndex, error) {
	files, err := store.CatalogFiles(st, catalogDir)
	if err != nil {
		return nil, fmt.Errorf("could not list catalog files in %q: %v", catalogDir, err)
	}

	perFile := make([][]*api.Entity, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(catalogReadConcurrency)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bs, err := st.ReadFile(f)
			if err != nil {
				return fmt.Errorf("could not read %q: %v", f, err)
			}
			entities, err := api.ReadEntities(bs, f)
			if err != nil {
				return err
			}
			perFile[i] = entities
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := &CatalogIndex{entities: make(map[catalog.Ref]indexedEntity)}
	for i, entities := range perFile {
		for _, e := range entities {
			ref := e.GetRef()
			if prev, ok := idx.entities[ref]; ok {
				return nil, fmt.Errorf("duplicate entity %s in %q (first defined in %q)", ref, files[i], prev.path)
			}
			idx.entities[ref] = indexedEntity{entity: e, path: files[i]}
		}
	}
	log.Printf("Indexed %d catalog entities from %d files", len(idx.entities), len(files))
	return idx, nil
}

func (x *CatalogIndex) Size() int {
	return len(x.entities)
}

// Lookup returns the entity with the given reference, or nil.
func (x *CatalogIndex) Lookup(ref catalog.Ref) *api.Entity {
	return x.entities[ref].entity
}

// DocumentedRefs returns the sorted references of all entities that declare
// generated documentation.
func (x *CatalogIndex) DocumentedRefs() []catalog.Ref {
	var refs []catalog.Ref
	for ref, ie := range x.entities {
		if ie.entity.HasTechDocs() {
			refs = append(refs, ref)
		}
	}
	slices.SortFunc(refs, catalog.Ref.Compare)
	return refs
}

// CatalogFetcher is an EntityMetadataFetcher backed by a CatalogIndex.
type CatalogFetcher struct {
	index *CatalogIndex
}

var _ EntityMetadataFetcher = (*CatalogFetcher)(nil)

func NewCatalogFetcher(index *CatalogIndex) *CatalogFetcher {
	return &CatalogFetcher{index: index}
}

func (f *CatalogFetcher) Index() *CatalogIndex {
	return f.index
}

// FetchEntityMetadata returns the indexed entity or (nil, nil) if the
// catalog has no such entity. Entities without location annotations get
// the catalog file they were read from as their location.
func (f *CatalogFetcher) FetchEntityMetadata(ctx context.Context, ref catalog.Ref) (*api.EntityMetadata, error) {
	if err := checkRef(ref); err != nil {
		return nil, fetchError(SourceEntity, ref, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fetchError(SourceEntity, ref, err)
	}
	ie, ok := f.index.entities[ref]
	if !ok {
		return nil, nil
	}
	loc := ie.entity.Location()
	if loc == nil {
		loc = &api.LocationMetadata{Type: "file", Target: ie.path}
	}
	return ie.entity.ToMetadata(loc), nil
}
