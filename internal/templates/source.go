package templates

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed assets/*.html
var builtin embed.FS

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrInvalidName      = errors.New("invalid template name")
	ErrInvalidDir       = errors.New("invalid templates directory")
)

// Source returns raw template text by style name.
type Source interface {
	Load(name string) (string, error)
}

// EmbeddedSource serves the styles compiled into the binary.
type EmbeddedSource struct{}

func (EmbeddedSource) Load(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	content, err := builtin.ReadFile("assets/" + name + ".html")
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}
	return string(content), nil
}

// DirSource reads {dir}/{name}.html from the filesystem.
type DirSource struct {
	dir string
}

func NewDirSource(dir string) (*DirSource, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidDir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: not a directory: %s", ErrInvalidDir, abs)
	}
	return &DirSource{dir: abs}, nil
}

func (d *DirSource) Load(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	content, err := os.ReadFile(filepath.Join(d.dir, name+".html")) // #nosec G304 -- name validated above
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
		}
		return "", fmt.Errorf("read template %q: %w", name, err)
	}
	return string(content), nil
}

// FallbackSource tries each source in order until one has the template.
type FallbackSource []Source

func (f FallbackSource) Load(name string) (string, error) {
	lastErr := fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	for _, src := range f {
		content, err := src.Load(name)
		if err == nil {
			return content, nil
		}
		if !errors.Is(err, ErrTemplateNotFound) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

// validateName rejects names that could escape the template directory.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if strings.ContainsAny(name, `/\.`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
