package render

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anilcodes01/proto-book/internal/domain"
)

type fakeSession struct {
	pdf      []byte
	err      error
	closeErr error
	closed   int
	html     string
	settle   time.Duration
	deadline bool
}

func (s *fakeSession) PrintPDF(ctx context.Context, html string, settle time.Duration) ([]byte, error) {
	s.html = html
	s.settle = settle
	_, s.deadline = ctx.Deadline()
	return s.pdf, s.err
}

func (s *fakeSession) Close() error {
	s.closed++
	return s.closeErr
}

type fakeLauncher struct {
	session *fakeSession
	err     error
	bin     string
	calls   int
}

func (l *fakeLauncher) Launch(_ context.Context, bin string) (Session, error) {
	l.calls++
	l.bin = bin
	if l.err != nil {
		return nil, l.err
	}
	return l.session, nil
}

func staticLocator(path string) Locator {
	return LocatorFunc(func(context.Context) (string, error) { return path, nil })
}

func newTestRenderer(loc Locator, l Launcher, buf *bytes.Buffer) *Renderer {
	return New(loc, l, Options{}, zerolog.New(buf))
}

func TestRenderReturnsPDFAndClosesSession(t *testing.T) {
	pdf := bytes.Repeat([]byte("x"), 512)
	session := &fakeSession{pdf: pdf}
	l := &fakeLauncher{session: session}
	var logs bytes.Buffer

	got, err := newTestRenderer(staticLocator("/usr/bin/chromium"), l, &logs).Render(context.Background(), "<p>hi</p>")
	require.NoError(t, err)
	assert.Equal(t, pdf, got)
	assert.Equal(t, "/usr/bin/chromium", l.bin)
	assert.Equal(t, "<p>hi</p>", session.html)
	assert.Equal(t, DefaultSettleTimeout, session.settle)
	assert.True(t, session.deadline)
	assert.Equal(t, 1, session.closed)
	assert.NotContains(t, logs.String(), "suspiciously small")
}

func TestRenderSmallPDFWarnsButSucceeds(t *testing.T) {
	session := &fakeSession{pdf: []byte("%PDF")}
	var logs bytes.Buffer

	got, err := newTestRenderer(staticLocator("chrome"), &fakeLauncher{session: session}, &logs).Render(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), got)
	assert.Contains(t, logs.String(), "suspiciously small")
	assert.Equal(t, 1, session.closed)
}

func TestRenderLocatorFailureIsUnavailable(t *testing.T) {
	l := &fakeLauncher{session: &fakeSession{}}
	loc := LocatorFunc(func(context.Context) (string, error) { return "", errors.New("no chromium") })

	_, err := newTestRenderer(loc, l, &bytes.Buffer{}).Render(context.Background(), "<p/>")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRendererUnavailable)
	assert.NotErrorIs(t, err, domain.ErrRender)
	assert.Zero(t, l.calls)
}

func TestRenderLaunchFailureIsRenderError(t *testing.T) {
	l := &fakeLauncher{err: errors.New("exec format error")}

	_, err := newTestRenderer(staticLocator("chrome"), l, &bytes.Buffer{}).Render(context.Background(), "<p/>")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRender)
}

func TestRenderPrintFailureClosesSession(t *testing.T) {
	session := &fakeSession{err: context.DeadlineExceeded, closeErr: errors.New("already gone")}
	var logs bytes.Buffer

	_, err := newTestRenderer(staticLocator("chrome"), &fakeLauncher{session: session}, &logs).Render(context.Background(), "<p/>")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRender)
	assert.NotContains(t, err.Error(), "already gone")
	assert.Equal(t, 1, session.closed)
	assert.Contains(t, logs.String(), "failed to close rendering session")
}

func TestRenderCustomOptions(t *testing.T) {
	session := &fakeSession{pdf: []byte("tiny")}
	var logs bytes.Buffer
	r := New(staticLocator("chrome"), &fakeLauncher{session: session}, Options{SettleTimeout: time.Second, MinPDFBytes: 2}, zerolog.New(&logs))

	_, err := r.Render(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, time.Second, session.settle)
	assert.NotContains(t, logs.String(), "suspiciously small")
}

func TestLocalLocator(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "chrome")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))
	plain := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(plain, []byte("data"), 0o644))

	got, err := LocalLocator{Path: exe}.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, exe, got)

	for name, path := range map[string]string{
		"missing":        filepath.Join(dir, "nope"),
		"directory":      dir,
		"not executable": plain,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LocalLocator{Path: path}.Locate(context.Background())
			assert.ErrorIs(t, err, domain.ErrRendererUnavailable)
		})
	}
}

func TestBundledLocatorResolvesOnce(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "chrome")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))

	calls := 0
	l := NewBundledLocator(dir)
	l.resolve = func(_ context.Context, rootDir string) (string, error) {
		calls++
		assert.Equal(t, dir, rootDir)
		return exe, nil
	}

	for range 3 {
		got, err := l.Locate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, exe, got)
	}
	assert.Equal(t, 1, calls)

	require.NoError(t, os.Remove(exe))
	_, err := l.Locate(context.Background())
	assert.ErrorIs(t, err, domain.ErrRendererUnavailable)
	assert.Equal(t, 2, calls)
}

func TestBundledLocatorDoesNotCacheFailures(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "chrome")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))

	calls := 0
	l := NewBundledLocator(dir)
	l.resolve = func(context.Context, string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("download interrupted")
		}
		return exe, nil
	}

	_, err := l.Locate(context.Background())
	assert.ErrorIs(t, err, domain.ErrRendererUnavailable)

	got, err := l.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, exe, got)
	assert.Equal(t, 2, calls)
}

func TestPageCountRejectsGarbage(t *testing.T) {
	_, err := PageCount([]byte("not a pdf"))
	assert.Error(t, err)
}

func TestRenderWithInstalledBrowser(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no local browser found")
	}

	r := New(LocalLocator{Path: bin}, RodLauncher{NoSandbox: true}, Options{}, zerolog.Nop())
	pdf, err := r.Render(context.Background(), "<html><body><h1>Chapter</h1><p>Text</p></body></html>")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	pages, err := PageCount(pdf)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
}
