// Package docs renders the operator documentation shipped with cmx. Pages
// are AsciiDoc files in a single directory and are converted to HTML on
// first access.
package docs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytesparadise/libasciidoc"
	"github.com/bytesparadise/libasciidoc/pkg/configuration"
)

// ErrNotFound is returned for a page name that does not name a document.
var ErrNotFound = errors.New("document not found")

// Page is a rendered document.
type Page struct {
	Name  string
	Title string
	HTML  string

	modTime time.Time
}

// Service renders and caches the documents of one directory.
type Service struct {
	docsDir string
	cache   map[string]*Page
	mu      sync.RWMutex
}

// NewService returns a Service for the .adoc files in docsDir.
func NewService(docsDir string) *Service {
	return &Service{
		docsDir: docsDir,
		cache:   make(map[string]*Page),
	}
}

// validName reports whether name is a bare .adoc file name.
func validName(name string) bool {
	if !strings.HasSuffix(name, ".adoc") || len(name) == len(".adoc") {
		return false
	}
	return filepath.Base(name) == name && !strings.HasPrefix(name, ".")
}

// GetDoc returns the rendered page for name. A page is re-rendered when its
// source changed since it was cached.
func (s *Service) GetDoc(ctx context.Context, name string) (*Page, error) {
	if !validName(name) {
		return nil, ErrNotFound
	}
	path := filepath.Join(s.docsDir, name)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat doc file: %w", err)
	}

	s.mu.RLock()
	page, ok := s.cache[name]
	s.mu.RUnlock()
	if ok && page.modTime.Equal(info.ModTime()) {
		return page, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read doc file: %w", err)
	}

	output := bytes.NewBuffer(nil)
	config := configuration.NewConfiguration(
		configuration.WithHeaderFooter(false),
		configuration.WithAttribute("toc", "left"),
	)
	meta, err := libasciidoc.Convert(bytes.NewReader(data), output, config)
	if err != nil {
		return nil, fmt.Errorf("failed to convert asciidoc: %w", err)
	}

	page = &Page{
		Name:    name,
		Title:   meta.Title,
		HTML:    output.String(),
		modTime: info.ModTime(),
	}
	if page.Title == "" {
		page.Title = strings.TrimSuffix(name, ".adoc")
	}

	s.mu.Lock()
	s.cache[name] = page
	s.mu.Unlock()

	return page, nil
}

// ListDocs returns the names of all documents, sorted.
func (s *Service) ListDocs() ([]string, error) {
	entries, err := os.ReadDir(s.docsDir)
	if err != nil {
		return nil, err
	}

	var docs []string
	for _, entry := range entries {
		if !entry.IsDir() && validName(entry.Name()) {
			docs = append(docs, entry.Name())
		}
	}
	sort.Strings(docs)
	return docs, nil
}
