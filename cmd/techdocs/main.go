package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dnswlt/techdocs/internal/catalog"
	"github.com/dnswlt/techdocs/internal/config"
	"github.com/dnswlt/techdocs/internal/gitclient"
	"github.com/dnswlt/techdocs/internal/store"
	"github.com/dnswlt/techdocs/internal/techdocs"
	"github.com/dnswlt/techdocs/internal/web"
	"github.com/peterbourgon/ff/v3"
	"golang.org/x/sync/errgroup"
)

func gitClientAuthFromEnv() *gitclient.Auth {
	user := os.Getenv("TECHDOCS_GIT_USER")
	if user == "" {
		return nil
	}
	pass := os.Getenv("TECHDOCS_GIT_PASSWORD")
	return &gitclient.Auth{
		Username: user,
		Password: pass,
	}
}

// Options contains program options that can be set via command-line flags or environment variables.
type Options struct {
	Addr          string
	RootDir       string
	GitURL        string
	GitRef        string
	CatalogDir    string
	DocsDir       string
	BackendURL    string
	ConfigFile    string
	BaseDir       string
	SettleTimeout time.Duration
	Concurrency   int
}

func main() {
	if len(os.Args) < 2 {
		// Default to "serve"
		runServe(os.Args[1:])
		return
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "render-header":
		runRenderHeader(os.Args[2:])
	default:
		// Also default to serve if the argument looks like a flag
		if strings.HasPrefix(os.Args[1], "-") {
			runServe(os.Args[1:])
			return
		}
		fmt.Fprintf(os.Stderr, "Unknown command %q. Available commands: serve, render-header\n", os.Args[1])
		os.Exit(1)
	}
}

// registerSourceFlags registers the flags shared by all commands that read metadata.
func registerSourceFlags(fs *flag.FlagSet, opts *Options) {
	fs.StringVar(&opts.RootDir, "root-dir", ".", "Root directory of the local data store")
	fs.StringVar(&opts.GitURL, "git-url", "", "URL of the git repository to use as the data store")
	fs.StringVar(&opts.GitRef, "git-ref", "", "Git ref (branch or tag) to use")
	fs.StringVar(&opts.CatalogDir, "catalog-dir", "catalog", "Path to the catalog directory containing YAML files (relative to git root or local -root-dir)")
	fs.StringVar(&opts.DocsDir, "docs-dir", "docs", "Path to the generated documentation, laid out as <namespace>/<kind>/<name> (relative to git root or local -root-dir)")
	fs.StringVar(&opts.BackendURL, "backend-url", "", "Base URL of a techdocs backend. If set, metadata is fetched from the backend instead of the data store.")
	fs.StringVar(&opts.ConfigFile, "config", "techdocs.yml", "Path to the optional configuration YAML file (relative to git root or local -root-dir)")
	fs.StringVar(&opts.BaseDir, "base-dir", "", "Base directory for resource files. If empty, uses embedded resources (recommended for production).")
	fs.DurationVar(&opts.SettleTimeout, "settle-timeout", web.DefaultSettleTimeout, "Maximum time to wait for metadata before rendering a header with the data available")
}

func parseFlags(fs *flag.FlagSet, args []string) {
	err := ff.Parse(fs, args, ff.WithEnvVarPrefix("TECHDOCS"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(args []string) {
	var opts Options
	fs := flag.NewFlagSet("techdocs serve", flag.ExitOnError)
	fs.StringVar(&opts.Addr, "addr", "localhost:8080", "Address to listen on")
	registerSourceFlags(fs, &opts)
	parseFlags(fs, args)
	log.Printf("Using config from flags/env vars: %+v", opts)

	server := createServer(opts)
	log.Fatal(server.Serve()) // Never returns
}

func runRenderHeader(args []string) {
	var opts Options
	fs := flag.NewFlagSet("techdocs render-header", flag.ExitOnError)
	fs.IntVar(&opts.Concurrency, "concurrency", 4, "Maximum number of headers rendered concurrently")
	registerSourceFlags(fs, &opts)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: techdocs render-header [flags] <kind:namespace/name>...\n")
		fs.PrintDefaults()
	}
	parseFlags(fs, args)

	var refs []catalog.Ref
	for _, arg := range fs.Args() {
		ref, err := catalog.ParseRef(arg)
		if err != nil {
			log.Fatalf("Invalid entity reference %q: %v", arg, err)
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		fs.Usage()
		os.Exit(1)
	}

	server := createServer(opts)
	outputs := make([]bytes.Buffer, len(refs))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(max(opts.Concurrency, 1))
	for i, ref := range refs {
		g.Go(func() error {
			if err := server.RenderHeader(ctx, &outputs[i], ref); err != nil {
				return fmt.Errorf("failed to render header for %s: %v", ref, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
	for i := range outputs {
		os.Stdout.Write(outputs[i].Bytes())
	}
}

func createServer(opts Options) *web.Server {
	var bundle *config.Bundle
	serverOpts := web.ServerOptions{
		Addr:          opts.Addr,
		BaseDir:       opts.BaseDir,
		SettleTimeout: opts.SettleTimeout,
	}
	var (
		entities techdocs.EntityMetadataFetcher
		sites    techdocs.SiteMetadataFetcher
	)
	if opts.BackendURL != "" {
		log.Printf("Fetching metadata from techdocs backend at %s", opts.BackendURL)
		client, err := techdocs.NewHTTPClient(opts.BackendURL, nil)
		if err != nil {
			log.Fatalf("Invalid -backend-url: %v", err)
		}
		entities, sites = client, client
		if opts.RootDir != "" || opts.GitURL != "" {
			bundle = loadConfig(createStore(opts), opts.ConfigFile)
		}
	} else {
		st := createStore(opts)
		bundle = loadConfig(st, opts.ConfigFile)
		idx, err := techdocs.LoadCatalog(context.Background(), st, opts.CatalogDir)
		if err != nil {
			log.Fatalf("Could not load catalog: %v", err)
		}
		log.Printf("Catalog has %d entities, %d with documentation", idx.Size(), len(idx.DocumentedRefs()))
		entities = techdocs.NewCatalogFetcher(idx)
		sites = techdocs.NewSiteFetcher(st, opts.DocsDir)
		serverOpts.Index = idx
	}

	if bundle != nil {
		reg, err := bundle.Registry()
		if err != nil {
			log.Fatalf("Invalid routes in configuration: %v", err)
		}
		serverOpts.Routes = reg
		serverOpts.UI = bundle.UI
	}

	server, err := web.NewServer(serverOpts, entities, sites)
	if err != nil {
		log.Fatalf("Could not create server: %v", err)
	}
	return server
}

// loadConfig reads the configuration bundle from st. A missing file yields nil.
func loadConfig(st store.Store, configFile string) *config.Bundle {
	if configFile == "" {
		return nil
	}
	bundle, err := config.Load(st, configFile)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("No configuration file %q, using defaults", configFile)
		return nil
	}
	if err != nil {
		log.Fatalf("Could not load configuration: %v", err)
	}
	return bundle
}

func createStore(opts Options) store.Store {
	var src store.Source
	if opts.GitURL != "" {
		auth := gitClientAuthFromEnv()
		log.Printf("Retrieving data from git URL %s", opts.GitURL)
		loader, err := gitclient.New(opts.GitURL, auth)
		if err != nil {
			log.Fatalf("Failed to retrieve git repo: %v", err)
		}
		ref := opts.GitRef
		if ref == "" {
			ref, err = loader.DefaultBranch()
			if err != nil {
				log.Fatalf("No git-ref specified and no default branch found: %v", err)
			}
		}
		log.Printf("Using git ref %q", ref)
		src = store.NewGitSource(loader, ref)
	} else if opts.RootDir != "" {
		log.Printf("Using local store at %s", opts.RootDir)
		src = store.NewDiskStore(opts.RootDir)
	} else {
		log.Fatalf("Neither -root-dir nor -git-url specified")
	}
	st, err := src.Store("")
	if err != nil {
		log.Fatalf("Could not open store: %v", err)
	}
	return st
}
