package render

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// A4 with 2cm margins, in inches.
const (
	paperWidthInches  = 8.27
	paperHeightInches = 11.69
	marginInches      = 2 / 2.54

	requestIdleWindow = 500 * time.Millisecond
)

// Session is one isolated browser instance, used for a single conversion.
type Session interface {
	PrintPDF(ctx context.Context, html string, settle time.Duration) ([]byte, error)
	Close() error
}

// Launcher starts rendering sessions.
type Launcher interface {
	Launch(ctx context.Context, bin string) (Session, error)
}

// RodLauncher starts a headless Chromium process per session.
type RodLauncher struct {
	NoSandbox bool
}

func (l RodLauncher) Launch(ctx context.Context, bin string) (Session, error) {
	lc := launcher.New().
		Context(ctx).
		Bin(bin).
		Headless(true).
		NoSandbox(l.NoSandbox).
		Leakless(false)

	u, err := lc.Launch()
	if err != nil {
		lc.Kill()
		lc.Cleanup()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().Context(ctx).ControlURL(u)
	if err := browser.Connect(); err != nil {
		lc.Kill()
		lc.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	return &rodSession{launcher: lc, browser: browser}, nil
}

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
}

func (s *rodSession) PrintPDF(ctx context.Context, html string, settle time.Duration) ([]byte, error) {
	page, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	page = page.Timeout(settle)

	waitIdle := page.WaitRequestIdle(requestIdleWindow, nil, nil, nil)
	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait for load: %w", err)
	}
	waitIdle()
	if err := page.GetContext().Err(); err != nil {
		return nil, fmt.Errorf("content did not settle within %s: %w", settle, err)
	}

	reader, err := page.PDF(printOptions())
	if err != nil {
		return nil, fmt.Errorf("print to pdf: %w", err)
	}
	pdf, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf stream: %w", err)
	}
	return pdf, nil
}

// Close tears down the browser and its process even if the CDP close fails.
func (s *rodSession) Close() error {
	err := s.browser.Close()
	s.launcher.Kill()
	s.launcher.Cleanup()
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

func printOptions() *proto.PagePrintToPDF {
	return &proto.PagePrintToPDF{
		PaperWidth:      floatPtr(paperWidthInches),
		PaperHeight:     floatPtr(paperHeightInches),
		MarginTop:       floatPtr(marginInches),
		MarginBottom:    floatPtr(marginInches),
		MarginLeft:      floatPtr(marginInches),
		MarginRight:     floatPtr(marginInches),
		PrintBackground: true,
	}
}

func floatPtr(v float64) *float64 {
	return &v
}
