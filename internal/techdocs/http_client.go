package techdocs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dnswlt/techdocs/internal/api"
	"github.com/dnswlt/techdocs/internal/catalog"
)

const maxResponseBytes = 1 << 20

// HTTPClient fetches entity and site metadata from a remote techdocs backend:
//
//	GET <base>/metadata/entity/<namespace>/<kind>/<name>
//	GET <base>/metadata/techdocs/<namespace>/<kind>/<name>
//
// A 404 response means the backend has no record.
type HTTPClient struct {
	baseURL *url.URL
	client  *http.Client
}

var _ EntityMetadataFetcher = (*HTTPClient)(nil)
var _ SiteMetadataFetcher = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the backend at baseURL.
// If client is nil, http.DefaultClient is used.
func NewHTTPClient(baseURL string, client *http.Client) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %v", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme must be http or https", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{baseURL: u, client: client}, nil
}

func (c *HTTPClient) endpoint(kind string, ref catalog.Ref) string {
	u := *c.baseURL
	// Refs are checked to be valid path segments, so u.String() escapes them correctly.
	u.Path = strings.TrimSuffix(u.Path, "/") + "/metadata/" + kind + "/" + refPath(ref)
	u.RawPath = ""
	return u.String()
}

// get performs a GET request and returns the response body.
// A 404 response yields (nil, nil).
func (c *HTTPClient) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %s", target, resp.Status)
	}
	bs, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("GET %s: failed to read body: %v", target, err)
	}
	return bs, nil
}

func (c *HTTPClient) FetchEntityMetadata(ctx context.Context, ref catalog.Ref) (*api.EntityMetadata, error) {
	if err := checkRef(ref); err != nil {
		return nil, fetchError(SourceEntity, ref, err)
	}
	bs, err := c.get(ctx, c.endpoint("entity", ref))
	if err != nil {
		return nil, fetchError(SourceEntity, ref, err)
	}
	if bs == nil {
		return nil, nil
	}
	rec, err := api.DecodeEntityRecord(bs)
	if err != nil {
		return nil, fetchError(SourceEntity, ref, err)
	}
	return rec.ToMetadata(rec.LocationMetadata), nil
}

func (c *HTTPClient) FetchSiteMetadata(ctx context.Context, ref catalog.Ref) (*api.SiteMetadata, error) {
	if err := checkRef(ref); err != nil {
		return nil, fetchError(SourceSite, ref, err)
	}
	bs, err := c.get(ctx, c.endpoint("techdocs", ref))
	if err != nil {
		return nil, fetchError(SourceSite, ref, err)
	}
	if bs == nil {
		return nil, nil
	}
	md, err := api.DecodeSiteMetadata(bs)
	if err != nil {
		return nil, fetchError(SourceSite, ref, err)
	}
	return md, nil
}
