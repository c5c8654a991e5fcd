package render

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/Anilcodes01/proto-book/internal/domain"
)

// Locator resolves the browser executable used for rendering sessions.
type Locator interface {
	Locate(ctx context.Context) (string, error)
}

type LocatorFunc func(ctx context.Context) (string, error)

func (f LocatorFunc) Locate(ctx context.Context) (string, error) {
	return f(ctx)
}

// BundledLocator resolves rod's managed Chromium build, downloading it into
// RootDir on first use. Used in hosted environments without a system browser.
//
// The resolved path is cached. rod's resolver re-validates the install by
// launching it and wipes the directory when that fails, which would pull the
// binary out from under sessions already running from it, so it only runs
// again once the cached binary is gone.
type BundledLocator struct {
	RootDir string

	resolve func(ctx context.Context, rootDir string) (string, error)

	mu   sync.Mutex
	path string
}

func NewBundledLocator(rootDir string) *BundledLocator {
	return &BundledLocator{RootDir: rootDir, resolve: resolveBundled}
}

func (l *BundledLocator) Locate(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.path != "" {
		if err := checkExecutable(l.path); err == nil {
			return l.path, nil
		}
		l.path = ""
	}

	resolve := l.resolve
	if resolve == nil {
		resolve = resolveBundled
	}
	bin, err := resolve(ctx, strings.TrimSpace(l.RootDir))
	if err != nil {
		return "", fmt.Errorf("%w: resolve bundled browser: %v", domain.ErrRendererUnavailable, err)
	}
	if strings.TrimSpace(bin) == "" {
		return "", fmt.Errorf("%w: bundled browser resolved to an empty path", domain.ErrRendererUnavailable)
	}
	if err := checkExecutable(bin); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRendererUnavailable, err)
	}

	l.path = bin
	return bin, nil
}

func resolveBundled(ctx context.Context, rootDir string) (string, error) {
	b := launcher.NewBrowser()
	b.Context = ctx
	if rootDir != "" {
		b.RootDir = rootDir
	}
	return b.Get()
}

// LocalLocator uses a pre-installed browser. An empty Path falls back to the
// usual install locations.
type LocalLocator struct {
	Path string
}

func (l LocalLocator) Locate(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	bin := strings.TrimSpace(l.Path)
	if bin == "" {
		found, ok := launcher.LookPath()
		if !ok {
			return "", fmt.Errorf("%w: no browser found; set ROD_BROWSER_BIN", domain.ErrRendererUnavailable)
		}
		bin = found
	}

	if err := checkExecutable(bin); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRendererUnavailable, err)
	}
	return bin, nil
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("browser not accessible at %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("browser path %s is not a regular file", path)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("browser at %s is not executable", path)
	}
	return nil
}
