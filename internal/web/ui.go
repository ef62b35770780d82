package web

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"

	"github.com/dnswlt/techdocs/internal/catalog"
	"github.com/yuin/goldmark"
)

// docsURL returns the path of the reader page of ref.
func docsURL(ref catalog.Ref) string {
	return "/docs/" + url.PathEscape(ref.Namespace) + "/" + url.PathEscape(ref.Kind) + "/" + url.PathEscape(ref.Name)
}

func headerEventsURL(ref catalog.Ref) string {
	return docsURL(ref) + "/header/events"
}

func urlencode(s string) (string, error) {
	return url.PathEscape(s), nil
}

func markdown(input string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(input), &buf); err != nil {
		return "", fmt.Errorf("failed to process markdown: %v", err)
	}
	return template.HTML(buf.String()), nil
}
