// Package browse is the live snapshot provider: it drives headless Chrome
// via Rod, navigates to a page, and serializes the rendered DOM plus the
// readable CSSOM into a snapshot.Page. Cross-origin stylesheets the browser
// refuses to expose come back as typed denied sheets, never as errors.
package browse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/domaudit/netsafe"
	"github.com/hazyhaar/domaudit/snapshot"
)

// Config configures the provider.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome. Empty = launch
	// a local one via the Rod launcher.
	RemoteURL string

	// NavigateTimeout bounds navigation plus load wait. Default 30s.
	NavigateTimeout time.Duration

	// AllowPrivate disables the SSRF guard so audits can target staging
	// hosts on private networks. Off by default.
	AllowPrivate bool

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Provider holds one Chrome connection and produces page snapshots from it.
// Safe for concurrent Snapshot calls; each call gets its own tab.
type Provider struct {
	cfg Config

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// New creates a Provider. Chrome is launched lazily on the first Snapshot.
func New(cfg Config) *Provider {
	cfg.defaults()
	return &Provider{cfg: cfg}
}

// Snapshot navigates to url in a fresh stealth tab and freezes the rendered
// state. The engine identifier selects the viewport (e.g.
// "chromium-1280x800") and is recorded on the snapshot.
func (p *Provider) Snapshot(ctx context.Context, url, engine string) (*snapshot.Page, error) {
	if !p.cfg.AllowPrivate {
		if err := netsafe.ValidateURL(url); err != nil {
			return nil, fmt.Errorf("browse: %w", err)
		}
	}

	b, err := p.connect()
	if err != nil {
		return nil, err
	}

	tab, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browse: create tab: %w", err)
	}
	defer tab.Close()

	w, h := ParseEngine(engine)
	if err := tab.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width: w, Height: h, DeviceScaleFactor: 1,
	}); err != nil {
		p.cfg.Logger.Warn("browse: set viewport failed", "engine", engine, "error", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, p.cfg.NavigateTimeout)
	defer cancel()

	if err := tab.Context(navCtx).Navigate(url); err != nil {
		return nil, fmt.Errorf("browse: navigate %s: %w", url, err)
	}
	if err := tab.Context(navCtx).WaitLoad(); err != nil {
		// A slow page is still auditable once navigation committed.
		p.cfg.Logger.Warn("browse: load wait timed out, snapshotting anyway", "url", url, "error", err)
	}

	dom, err := tab.Context(navCtx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browse: serialize DOM %s: %w", url, err)
	}

	opts := []snapshot.Option{snapshot.WithEngine(engine)}
	opts = append(opts, p.collectStylesheets(navCtx, tab, url)...)

	return snapshot.ParseString(url, dom.Value.Str(), opts...)
}

// Close shuts Chrome down. The provider cannot be reused afterwards.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.browser != nil {
		p.browser.Close()
		p.browser = nil
	}
	if p.lnch != nil {
		p.lnch.Cleanup()
		p.lnch = nil
	}
	return nil
}

func (p *Provider) connect() (*rod.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("browse: provider is closed")
	}
	if p.browser != nil {
		return p.browser, nil
	}

	wsURL := p.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browse: launch: %w", err)
		}
		wsURL = u
		p.lnch = l
		p.cfg.Logger.Info("browse: launched local chrome", "url", wsURL)
	} else {
		p.cfg.Logger.Info("browse: connecting to remote chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browse: connect: %w", err)
	}
	p.browser = b
	return b, nil
}

// sheetDump is the per-stylesheet record the in-page script produces.
type sheetDump struct {
	Href   string `json:"href"`
	CSS    string `json:"css"`
	Denied bool   `json:"denied"`
}

// collectStylesheets reads document.styleSheets from inside the page. A
// SecurityError on cssRules is the cross-origin case: the sheet is reported
// as denied. Inline <style> sheets (no href) are skipped here because the
// DOM parse collects them itself.
func (p *Provider) collectStylesheets(ctx context.Context, tab *rod.Page, url string) []snapshot.Option {
	res, err := tab.Context(ctx).Eval(`() => {
		const out = [];
		for (const sheet of document.styleSheets) {
			const href = sheet.href || "";
			if (!href) continue;
			try {
				let css = "";
				for (const rule of sheet.cssRules) css += rule.cssText + "\n";
				out.push({href, css, denied: false});
			} catch (e) {
				out.push({href, css: "", denied: true});
			}
		}
		return JSON.stringify(out);
	}`)
	if err != nil {
		p.cfg.Logger.Warn("browse: stylesheet collection failed", "url", url, "error", err)
		return nil
	}

	var dumps []sheetDump
	if err := json.Unmarshal([]byte(res.Value.Str()), &dumps); err != nil {
		p.cfg.Logger.Warn("browse: stylesheet decode failed", "url", url, "error", err)
		return nil
	}

	var opts []snapshot.Option
	for _, d := range dumps {
		if d.Denied {
			opts = append(opts, snapshot.WithDeniedStylesheet(d.Href))
			continue
		}
		opts = append(opts, snapshot.WithStylesheet(d.Href, d.CSS))
	}
	return opts
}

// ParseEngine extracts the viewport from an engine identifier of the form
// "<name>-<width>x<height>". Unparseable identifiers get 1280x800.
func ParseEngine(engine string) (width, height int) {
	width, height = 1280, 800
	i := strings.LastIndex(engine, "-")
	if i < 0 {
		return width, height
	}
	parts := strings.SplitN(engine[i+1:], "x", 2)
	if len(parts) != 2 {
		return width, height
	}
	w, werr := strconv.Atoi(parts[0])
	h, herr := strconv.Atoi(parts[1])
	if werr != nil || herr != nil || w <= 0 || h <= 0 {
		return width, height
	}
	return w, h
}
