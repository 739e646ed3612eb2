// Package capture renders live pages in headless Chrome and produces
// full-page or element-scoped PNG screenshots for visual comparison.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/DaveSmith227/vizspec/pkg/models"
)

// Capturer produces a screenshot for a request. Implementations must be
// safe for concurrent use.
type Capturer interface {
	Capture(ctx context.Context, req Request) ([]byte, error)
}

// Request describes a single screenshot.
type Request struct {
	URL      string
	Viewport models.Viewport
	// Selector scopes the screenshot to a single element. Empty means
	// full page.
	Selector      string
	SettleTimeout time.Duration
}

// Options configures the browser engine.
type Options struct {
	Headless bool
	// SettleTimeout bounds navigation plus load for requests that do not
	// set their own.
	SettleTimeout time.Duration
}

// Engine owns a Chrome instance shared across captures. The browser is
// launched lazily on first use and torn down by Close.
type Engine struct {
	opts Options

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

func NewEngine(opts Options) *Engine {
	if opts.SettleTimeout <= 0 {
		opts.SettleTimeout = 30 * time.Second
	}
	return &Engine{opts: opts}
}

// ParseViewport parses a "WIDTHxHEIGHT" string such as "1280x720".
func ParseViewport(s string) (models.Viewport, error) {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(s)), "x", 2)
	if len(parts) != 2 {
		return models.Viewport{}, fmt.Errorf("%w: viewport %q is not WIDTHxHEIGHT", models.ErrConfiguration, s)
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil || w <= 0 {
		return models.Viewport{}, fmt.Errorf("%w: viewport width %q", models.ErrConfiguration, parts[0])
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil || h <= 0 {
		return models.Viewport{}, fmt.Errorf("%w: viewport height %q", models.ErrConfiguration, parts[1])
	}
	return models.Viewport{Width: w, Height: h}, nil
}

// Capture navigates to the URL at the requested viewport and returns PNG
// bytes. Navigation and settle are bounded by the request timeout; a
// deadline maps to ErrCaptureTimeout so callers can retry.
func (e *Engine) Capture(ctx context.Context, req Request) ([]byte, error) {
	browser, err := e.acquire()
	if err != nil {
		return nil, err
	}

	timeout := req.SettleTimeout
	if timeout <= 0 {
		timeout = e.opts.SettleTimeout
	}
	capCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("%w: create page: %v", models.ErrCapture, err)
	}
	defer page.Close()

	if req.Viewport.Width > 0 && req.Viewport.Height > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             req.Viewport.Width,
			Height:            req.Viewport.Height,
			DeviceScaleFactor: 1,
		}); err != nil {
			return nil, fmt.Errorf("%w: set viewport: %v", models.ErrCapture, err)
		}
	}

	if err := page.Context(capCtx).Navigate(req.URL); err != nil {
		return nil, captureErr(capCtx, fmt.Sprintf("navigate %s", req.URL), err)
	}
	if err := page.Context(capCtx).WaitLoad(); err != nil {
		return nil, captureErr(capCtx, fmt.Sprintf("settle %s", req.URL), err)
	}

	if req.Selector != "" {
		el, err := page.Context(capCtx).Element(req.Selector)
		if err != nil {
			return nil, captureErr(capCtx, fmt.Sprintf("select %q", req.Selector), err)
		}
		data, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
		if err != nil {
			return nil, captureErr(capCtx, "element screenshot", err)
		}
		return data, nil
	}

	data, err := page.Context(capCtx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, captureErr(capCtx, "screenshot", err)
	}
	return data, nil
}

// Close shuts down Chrome. The engine cannot be reused afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.browser != nil {
		e.browser.Close()
		e.browser = nil
	}
	if e.lnch != nil {
		e.lnch.Cleanup()
		e.lnch = nil
	}
	return nil
}

func (e *Engine) acquire() (*rod.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, fmt.Errorf("%w: capture engine is closed", models.ErrCapture)
	}
	if e.browser != nil {
		return e.browser, nil
	}

	l := launcher.New().Headless(e.opts.Headless)
	wsURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: launch chrome: %v", models.ErrCapture, err)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("%w: connect chrome: %v", models.ErrCapture, err)
	}

	log.Printf("[capture] launched chrome (headless=%v)", e.opts.Headless)
	e.browser = b
	e.lnch = l
	return b, nil
}

func captureErr(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", models.ErrCaptureTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %v", models.ErrCapture, op, err)
}
