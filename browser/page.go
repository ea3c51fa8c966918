// Package browser drives a headless Chrome page through chromedp, buffering its console output
// so that failed screenshot assertions can show what the page logged while rendering.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

var ErrMissingSelector = errors.New("selector not found")

// Page is a single browser tab.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	logs    []string
	lastURL string
}

// New starts a browser allocated from ctx and opens a tab in it. Call Close when done.
func New(ctx context.Context, debug bool) (*Page, error) {
	var cancel context.CancelFunc
	if debug {
		ctx, cancel = chromedp.NewContext(ctx, chromedp.WithErrorf(log.Printf))
	} else {
		ctx, cancel = chromedp.NewContext(ctx)
	}

	// The first Run allocates the browser, which lives as long as the context passed to it.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	p := &Page{ctx: ctx, cancel: cancel}
	chromedp.ListenTarget(ctx, p.onEvent)
	return p, nil
}

// Close shuts down the tab and its browser.
func (p *Page) Close() {
	p.cancel()
}

func (p *Page) onEvent(ev any) {
	switch ev := ev.(type) {
	case *runtime.EventConsoleAPICalled:
		args := make([]string, 0, len(ev.Args))
		for _, arg := range ev.Args {
			args = append(args, consoleArg(arg))
		}
		p.appendLog("[" + string(ev.Type) + "] " + strings.Join(args, " "))

	case *runtime.EventExceptionThrown:
		if ev.ExceptionDetails == nil {
			return
		}
		msg := ev.ExceptionDetails.Text
		if ev.ExceptionDetails.Exception != nil && ev.ExceptionDetails.Exception.Description != "" {
			msg = ev.ExceptionDetails.Exception.Description
		}
		p.appendLog("[exception] " + msg)
	}
}

// consoleArg renders a console argument the way it would read in DevTools: strings unquoted.
func consoleArg(arg *runtime.RemoteObject) string {
	if arg.Value == nil {
		return arg.Description
	}
	if s, err := strconv.Unquote(string(arg.Value)); err == nil {
		return s
	}
	return string(arg.Value)
}

func (p *Page) appendLog(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logs = append(p.logs, msg)
}

// Logs returns the console messages logged since the last navigation.
func (p *Page) Logs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.logs...)
}

// Navigate loads url at the given viewport size, discarding logs from the previous page.
func (p *Page) Navigate(ctx context.Context, url string, width, height int64) error {
	slog.Debug("navigate", "url", url)

	p.mu.Lock()
	p.logs = nil
	p.lastURL = url
	p.mu.Unlock()

	return p.run(ctx,
		chromedp.EmulateViewport(width, height),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// URL returns the current address of the page, or the last navigated URL if it cannot be read.
func (p *Page) URL(ctx context.Context) string {
	var url string
	if err := p.run(ctx, chromedp.Location(&url)); err != nil || url == "" {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.lastURL
	}
	return url
}

// Evaluate runs js in the page and stores its result in res.
func (p *Page) Evaluate(ctx context.Context, js string, res any) error {
	return p.run(ctx, chromedp.Evaluate(js, res))
}

// Screenshot captures a PNG of the element matching selector, or of the full page if selector
// is empty. Hidden elements are made visible first.
func (p *Page) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	slog.Debug("screenshot", "selector", selector)

	var buf []byte
	if selector == "" {
		if err := p.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
			return nil, err
		}
		return buf, nil
	}

	// Un-hide the selected element before attempting a screenshot.
	js := fmt.Sprintf(`(function() {
		var el = document.querySelector(%s);
		if (el) {
			el.style.visibility = '';
			el.style.display = 'block';
			return true;
		}
		return false;
	})()`, strconv.Quote(selector))

	var foundSelector bool
	if err := p.run(ctx, chromedp.Evaluate(js, &foundSelector)); err != nil {
		return nil, err
	}
	if !foundSelector {
		return nil, ErrMissingSelector
	}

	if err := p.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond), // Allow fonts to finish downloading.
		chromedp.Screenshot(selector, &buf, chromedp.NodeVisible),
	); err != nil {
		return nil, err
	}
	return buf, nil
}

// run executes actions on the tab, honoring both the tab’s lifetime and ctx’s deadline.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(runCtx, deadline)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}
