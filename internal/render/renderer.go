package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"

	"github.com/Anilcodes01/proto-book/internal/domain"
)

const (
	DefaultSettleTimeout = 30 * time.Second
	DefaultMinPDFBytes   = 100
)

type Options struct {
	SettleTimeout time.Duration
	MinPDFBytes   int
}

// Renderer converts HTML pages to PDF, one browser session per call.
type Renderer struct {
	locator  Locator
	launcher Launcher
	opts     Options
	logger   zerolog.Logger
}

func New(locator Locator, launcher Launcher, opts Options, logger zerolog.Logger) *Renderer {
	if opts.SettleTimeout <= 0 {
		opts.SettleTimeout = DefaultSettleTimeout
	}
	if opts.MinPDFBytes <= 0 {
		opts.MinPDFBytes = DefaultMinPDFBytes
	}
	return &Renderer{
		locator:  locator,
		launcher: launcher,
		opts:     opts,
		logger:   logger.With().Str("component", "renderer").Logger(),
	}
}

// Render prints html as an A4 PDF. Locator failures are reported as
// domain.ErrRendererUnavailable, everything after as domain.ErrRender.
func (r *Renderer) Render(ctx context.Context, html string) ([]byte, error) {
	bin, err := r.locator.Locate(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrRendererUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrRendererUnavailable, err)
	}

	session, err := r.launcher.Launch(ctx, bin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRender, err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			r.logger.Warn().Err(cerr).Msg("failed to close rendering session")
		}
	}()

	settleCtx, cancel := context.WithTimeout(ctx, r.opts.SettleTimeout)
	defer cancel()

	pdf, err := session.PrintPDF(settleCtx, html, r.opts.SettleTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRender, err)
	}

	r.inspect(pdf)
	return pdf, nil
}

func (r *Renderer) inspect(pdf []byte) {
	if len(pdf) < r.opts.MinPDFBytes {
		r.logger.Warn().
			Int("bytes", len(pdf)).
			Int("min_bytes", r.opts.MinPDFBytes).
			Msg("rendered pdf is suspiciously small")
	}

	pages, err := PageCount(pdf)
	if err != nil {
		r.logger.Warn().Err(err).Int("bytes", len(pdf)).Msg("could not inspect rendered pdf")
		return
	}
	r.logger.Debug().Int("bytes", len(pdf)).Int("pages", pages).Msg("rendered pdf")
}

// PageCount reads the page count of a PDF document.
func PageCount(pdf []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(pdf), conf)
	if err != nil {
		return 0, fmt.Errorf("count pdf pages: %w", err)
	}
	return n, nil
}
