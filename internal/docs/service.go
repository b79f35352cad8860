// Package docs renders the operator documentation (AsciiDoc files in the
// docs directory, including the generated api.adoc) to HTML and serves it
// under /docs/.
package docs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bytesparadise/libasciidoc"
	"github.com/bytesparadise/libasciidoc/pkg/configuration"
)

// ErrNotFound is returned for names outside the docs directory listing.
var ErrNotFound = errors.New("document not found")

type Service struct {
	docsDir string
	cache   map[string]string // filename -> html content
	mu      sync.RWMutex
}

func NewService(docsDir string) *Service {
	return &Service{
		docsDir: docsDir,
		cache:   make(map[string]string),
	}
}

// GetDoc returns the rendered HTML body of filename.
func (s *Service) GetDoc(ctx context.Context, filename string) (string, error) {
	if filename != filepath.Base(filename) || !strings.HasSuffix(filename, ".adoc") {
		return "", fmt.Errorf("%w: %s", ErrNotFound, filename)
	}

	s.mu.RLock()
	content, ok := s.cache[filename]
	s.mu.RUnlock()
	if ok {
		return content, nil
	}

	data, err := os.ReadFile(filepath.Join(s.docsDir, filename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return "", fmt.Errorf("failed to read doc file: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	output := bytes.NewBuffer(nil)
	config := configuration.NewConfiguration(
		configuration.WithHeaderFooter(false),
		configuration.WithAttribute("toc", "left"),
	)

	if _, err := libasciidoc.Convert(bytes.NewReader(data), output, config); err != nil {
		return "", fmt.Errorf("failed to convert asciidoc: %w", err)
	}

	html := output.String()

	s.mu.Lock()
	s.cache[filename] = html
	s.mu.Unlock()

	return html, nil
}

// ListDocs returns the .adoc files in the docs directory, sorted.
func (s *Service) ListDocs() ([]string, error) {
	entries, err := os.ReadDir(s.docsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}

	docs := []string{}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".adoc") {
			docs = append(docs, entry.Name())
		}
	}
	sort.Strings(docs)
	return docs, nil
}

// Invalidate drops cached renderings, e.g. after docgen rewrote api.adoc.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

var pageTmpl = template.Must(template.New("doc").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<nav>{{range .Docs}}<a href="/docs/{{.}}">{{.}}</a> {{end}}</nav>
<main>{{.Body}}</main>
</body></html>
`))

type page struct {
	Title string
	Docs  []string
	Body  template.HTML
}

// ServeHTTP serves /docs/ (index) and /docs/<name>.adoc (rendered).
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	docs, err := s.ListDocs()
	if err != nil {
		http.Error(w, "Failed to list docs", http.StatusInternalServerError)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/docs/")
	p := page{Title: "prm documentation", Docs: docs}
	if name != "" {
		body, err := s.GetDoc(r.Context(), name)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			log.Printf("WARN: render doc %s: %v", name, err)
			http.Error(w, "Failed to render document", http.StatusInternalServerError)
			return
		}
		p.Title = name
		p.Body = template.HTML(body)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTmpl.Execute(w, p); err != nil {
		log.Printf("WARN: execute doc template: %v", err)
	}
}
