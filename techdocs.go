package techdocs

import "embed"

// Files contains the HTML templates of the web UI.
//
//go:embed templates/*.html
var Files embed.FS
