// Package templates resolves style names to compiled page templates.
//
// A Cache is created once at startup and lives for the process lifetime.
// Entries are never invalidated. Two goroutines missing on the same name may
// both compile it; the last insert wins, which is harmless because compiled
// templates for a name are interchangeable.
package templates

import (
	"bytes"
	"fmt"
	"html/template"
	"slices"
	"sync"

	"github.com/Anilcodes01/proto-book/internal/domain"
	"github.com/rs/zerolog"
)

const DefaultName = "classic"

// Names lists the styles a request may ask for.
var Names = []string{"classic", "modern", "minimalist"}

// Template is a compiled page layout.
type Template struct {
	name string
	tmpl *template.Template
}

type pageData struct {
	Title   string
	Content template.HTML
}

func (t *Template) Name() string {
	return t.name
}

// Execute wraps extracted body HTML in the layout. content is inserted as
// trusted markup; title is escaped.
func (t *Template) Execute(title, content string) (string, error) {
	var buf bytes.Buffer
	data := pageData{
		Title:   title,
		Content: template.HTML(content), // #nosec G203 -- produced by the extractor, which escapes all text
	}
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %q: %w", t.name, err)
	}
	return buf.String(), nil
}

type Cache struct {
	source Source
	logger zerolog.Logger

	mu       sync.RWMutex
	compiled map[string]*Template
}

func NewCache(source Source, logger zerolog.Logger) *Cache {
	return &Cache{
		source:   source,
		logger:   logger.With().Str("component", "templates").Logger(),
		compiled: make(map[string]*Template),
	}
}

// ResolveName maps a requested style onto the allow-list.
func ResolveName(name string) string {
	if slices.Contains(Names, name) {
		return name
	}
	return DefaultName
}

// Resolve returns the compiled template for name, loading it on first use.
// Unknown names resolve to DefaultName.
func (c *Cache) Resolve(name string) (*Template, error) {
	resolved := ResolveName(name)
	if resolved != name && name != "" {
		c.logger.Warn().Str("requested", name).Str("using", resolved).Msg("template not allowed, using default")
	}

	c.mu.RLock()
	cached, ok := c.compiled[resolved]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	source, err := c.source.Load(resolved)
	if err != nil {
		return nil, &domain.TemplateLoadError{Name: resolved, Err: err}
	}
	tmpl, err := template.New(resolved).Parse(source)
	if err != nil {
		return nil, &domain.TemplateLoadError{Name: resolved, Err: err}
	}

	compiled := &Template{name: resolved, tmpl: tmpl}
	c.mu.Lock()
	c.compiled[resolved] = compiled
	c.mu.Unlock()

	c.logger.Debug().Str("template", resolved).Msg("compiled and cached template")
	return compiled, nil
}
