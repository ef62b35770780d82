package web

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	assets "github.com/dnswlt/techdocs"
	"github.com/dnswlt/techdocs/internal/catalog"
	"github.com/dnswlt/techdocs/internal/config"
	"github.com/dnswlt/techdocs/internal/reader"
	"github.com/dnswlt/techdocs/internal/routes"
	"github.com/dnswlt/techdocs/internal/techdocs"
)

const (
	DefaultSettleTimeout = 5 * time.Second

	headerTemplate = "_reader_header.html"
)

type ServerOptions struct {
	Addr    string // E.g., "localhost:8080"
	BaseDir string // Directory from which resources (templates etc.) are read.
	// Maximum time a page request waits for the metadata fetches to settle.
	// After that, the header is rendered with the data available.
	SettleTimeout time.Duration
	UI            config.UIConfig
	// Route templates. If nil, the default routes are used.
	Routes *routes.Registry
	// Optional catalog index used to list documented entities on the index page.
	Index *techdocs.CatalogIndex
	// Receiver of fetch failures. If nil, failures are logged.
	ErrorReporter techdocs.ErrorReporter
}

type Server struct {
	opts     ServerOptions
	template *template.Template
	entities techdocs.EntityMetadataFetcher
	sites    techdocs.SiteMetadataFetcher
	routes   *routes.Registry
	resolver *routes.PathResolver
}

func NewServer(opts ServerOptions, entities techdocs.EntityMetadataFetcher, sites techdocs.SiteMetadataFetcher) (*Server, error) {
	if opts.SettleTimeout <= 0 {
		opts.SettleTimeout = DefaultSettleTimeout
	}
	if opts.ErrorReporter == nil {
		opts.ErrorReporter = techdocs.LogReporter{}
	}
	reg := opts.Routes
	if reg == nil {
		reg = routes.DefaultRegistry()
	}
	s := &Server{
		opts:     opts,
		entities: entities,
		sites:    sites,
		routes:   reg,
		resolver: routes.NewPathResolver(reg),
	}
	if err := s.reloadTemplates(); err != nil {
		return nil, err
	}
	return s, nil
}

// withRequestLogging wraps a handler and logs each request.
// Logs include method, path, status, duration, remote address, and the request ID.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		reqID := requestID(r)
		w.Header().Set(requestIDHeader, reqID)
		// Wrap ResponseWriter to capture status code
		lrw := &loggingResponseWriter{ResponseWriter: w}

		next.ServeHTTP(lrw, r)

		duration := time.Since(start)
		log.Printf("%s %s %d %dms (remote=%s, id=%s)",
			r.Method,
			r.URL.Path,
			lrw.statusCode,
			duration.Milliseconds(),
			r.RemoteAddr,
			reqID,
		)
	})
}

func (s *Server) reloadTemplates() error {
	tmpl := template.New("root")
	tmpl = tmpl.Funcs(map[string]any{
		"markdown":  markdown,
		"urlencode": urlencode,
		"docsURL":   docsURL,
	})
	var err error
	if s.opts.BaseDir == "" {
		s.template, err = tmpl.ParseFS(assets.Files, "templates/*.html")
	} else {
		s.template, err = tmpl.ParseGlob(path.Join(s.opts.BaseDir, "templates/*.html"))
	}
	return err
}

func (s *Server) newAggregator(ctx context.Context) *reader.Aggregator {
	return reader.New(s.entities, s.sites,
		reader.WithErrorReporter(s.opts.ErrorReporter),
		reader.WithBaseContext(ctx))
}

func (s *Server) headerView(m reader.ReadModel) HeaderView {
	v := NewHeaderView(m, s.resolver)
	if s.opts.UI.HeaderType != "" {
		v.TypeLabel = s.opts.UI.HeaderType
	}
	return v
}

// settledHeader fetches the metadata of ref and returns the header view
// once both fetches settled or the settle timeout expired.
func (s *Server) settledHeader(ctx context.Context, ref catalog.Ref) HeaderView {
	agg := s.newAggregator(ctx)
	defer agg.Close()
	agg.Adopt(ref)

	ctx, cancel := context.WithTimeout(ctx, s.opts.SettleTimeout)
	defer cancel()
	m, err := agg.WaitSettled(ctx)
	if err != nil {
		log.Printf("Metadata for %s not settled (%v), rendering partial header (entity: %v, site: %v)",
			ref, err, m.EntityStatus, m.SiteStatus)
	}
	return s.headerView(m)
}

func (s *Server) renderHeader(w io.Writer, v HeaderView) error {
	return s.template.ExecuteTemplate(w, headerTemplate, v)
}

// RenderHeader fetches the metadata of ref and writes the rendered header to w.
func (s *Server) RenderHeader(ctx context.Context, w io.Writer, ref catalog.Ref) error {
	return s.renderHeader(w, s.settledHeader(ctx, ref))
}

// pathRef extracts the entity reference from the {namespace}/{kind}/{name} path values.
func pathRef(r *http.Request) (catalog.Ref, error) {
	ref := catalog.NewRef(r.PathValue("kind"), r.PathValue("namespace"), r.PathValue("name"))
	if err := ref.Validate(); err != nil {
		return catalog.Ref{}, err
	}
	return ref, nil
}

func (s *Server) serveReaderPage(w http.ResponseWriter, r *http.Request, ref catalog.Ref) {
	v := s.settledHeader(r.Context(), ref)
	params := map[string]any{
		"Header":    v,
		"EventsURL": headerEventsURL(ref),
	}
	s.serveHTMLPage(w, r, "reader_page.html", params)
}

func (s *Server) serveHeader(w http.ResponseWriter, r *http.Request, ref catalog.Ref) {
	var output bytes.Buffer
	if err := s.renderHeader(&output, s.settledHeader(r.Context(), ref)); err != nil {
		log.Printf("Failed to render header for %s: %v", ref, err)
		http.Error(w, "Template rendering error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	w.Write(output.Bytes())
}

// writeEvent writes a server-sent event. Multi-line data is split into
// one data field per line.
func writeEvent(w io.Writer, event string, data []byte) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "event: %s\n", event)
	for _, line := range strings.Split(string(data), "\n") {
		fmt.Fprintf(&buf, "data: %s\n", strings.TrimSuffix(line, "\r"))
	}
	buf.WriteString("\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// serveHeaderEvents streams a "header" event with the re-rendered header
// for every change of the read model of ref, followed by a "done" event
// once both fetches settled.
func (s *Server) serveHeaderEvents(w http.ResponseWriter, r *http.Request, ref catalog.Ref) {
	rc := http.NewResponseController(w)

	agg := s.newAggregator(r.Context())
	defer agg.Close()
	// A single adoption yields at most three notifications.
	updates := make(chan reader.ReadModel, 4)
	unsubscribe := agg.Subscribe(func(m reader.ReadModel) {
		select {
		case updates <- m:
		default:
			log.Printf("Dropping header update for %s (version %d)", m.Ref, m.Version)
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	agg.Adopt(ref)

	for {
		select {
		case <-r.Context().Done():
			return
		case m := <-updates:
			var output bytes.Buffer
			if err := s.renderHeader(&output, s.headerView(m)); err != nil {
				log.Printf("Failed to render header for %s: %v", ref, err)
				return
			}
			if err := writeEvent(w, "header", output.Bytes()); err != nil {
				return
			}
			if m.Settled() {
				writeEvent(w, "done", nil)
			}
			if err := rc.Flush(); err != nil {
				log.Printf("Cannot stream header events: %v", err)
				return
			}
			if m.Settled() {
				return
			}
		}
	}
}

// indexEntry is a row of the documentation index.
type indexEntry struct {
	Label string
	Href  string
	Title string
	Owner string
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	var entries []indexEntry
	if s.opts.Index != nil {
		for _, ref := range s.opts.Index.DocumentedRefs() {
			e := s.opts.Index.Lookup(ref)
			entry := indexEntry{
				Label: s.resolver.Label(ref),
				Href:  docsURL(ref),
			}
			if e.Metadata != nil {
				entry.Title = e.Metadata.Title
			}
			if e.Spec != nil {
				entry.Owner = e.Spec.Owner
			}
			entries = append(entries, entry)
		}
	}
	s.serveHTMLPage(w, r, "docs_index.html", map[string]any{
		"Entries": entries,
	})
}

func (s *Server) serveHTMLPage(w http.ResponseWriter, r *http.Request, templateFile string, params map[string]any) {
	var output bytes.Buffer

	templateParams := map[string]any{
		"Now":      time.Now().Format("2006-01-02 15:04:05"),
		"HelpLink": s.opts.UI.HelpLink,
	}
	// Copy template params
	for k, v := range params {
		templateParams[k] = v
	}

	err := s.template.ExecuteTemplate(&output, templateFile, templateParams)
	if err != nil {
		log.Printf("Failed to render template %q: %v", templateFile, err)
		http.Error(w, "Template rendering error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	w.Write(output.Bytes())
}

// withRef parses the entity reference from the request path and calls h.
func withRef(h func(http.ResponseWriter, *http.Request, catalog.Ref)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := pathRef(r)
		if err != nil {
			http.Error(w, "Invalid entity reference", http.StatusBadRequest)
			return
		}
		h(w, r, ref)
	}
}

func (s *Server) routesMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /docs", s.serveIndex)
	mux.HandleFunc("GET /docs/{namespace}/{kind}/{name}", withRef(s.serveReaderPage))
	mux.HandleFunc("GET /docs/{namespace}/{kind}/{name}/header", withRef(s.serveHeader))
	mux.HandleFunc("GET /docs/{namespace}/{kind}/{name}/header/events", withRef(s.serveHeaderEvents))

	// Health check. Useful for cloud deployments.
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	// Default route (all other paths): redirect to the root page
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "", http.StatusBadRequest)
			return
		}
		refererURL, err := url.Parse(r.Header.Get("Referer"))
		if err == nil && refererURL.Host == r.Host {
			// Request is coming from our own domain: this indicates an internal broken link.
			http.Error(w, "Broken link", http.StatusNotFound)
			return
		}
		root, err := s.routes.Resolve(routes.RouteRoot, catalog.Ref{})
		if err != nil {
			http.Error(w, "", http.StatusNotFound)
			return
		}
		http.Redirect(w, r, root, http.StatusTemporaryRedirect)
	})

	return mux
}

// Serve starts the HTTP server on s.opts.Addr using the wrapped handler.
func (s *Server) Serve() error {
	handler := s.Handler()
	log.Printf("Go server listening on http://%s", s.opts.Addr)
	return http.ListenAndServe(s.opts.Addr, handler)
}

func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.routesMux())
}
