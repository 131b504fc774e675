package discover

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/devicelab-dev/ui-coverage/pkg/core"
	"github.com/devicelab-dev/ui-coverage/pkg/logger"
)

// LiveConfig configures browser discovery.
type LiveConfig struct {
	Browser       string // chromium, firefox or webkit
	Headless      bool
	Timeout       time.Duration
	IncludeHidden bool
	DriverDir     string // where the Playwright driver is installed
}

// Live discovers elements on a running page through Playwright. The
// browser starts on the first Discover call and is reused until Close.
type Live struct {
	cfg LiveConfig
	log *zap.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

// NewLive creates a live discoverer.
func NewLive(cfg LiveConfig, log *zap.Logger) *Live {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Browser == "" {
		cfg.Browser = "chromium"
	}
	return &Live{cfg: cfg, log: logger.OrNop(log).Named("discover")}
}

// Discover navigates to url and returns its interactive elements.
func (l *Live) Discover(ctx context.Context, url string) ([]core.ElementDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	browser, err := l.launch()
	if err != nil {
		return nil, core.ErrDiscoveryFailed.WithCause(err).WithDetails(map[string]interface{}{"target": url})
	}

	page, err := browser.NewPage()
	if err != nil {
		return nil, core.ErrDiscoveryFailed.WithCause(err).WithDetails(map[string]interface{}{"target": url})
	}
	defer page.Close()

	timeout := float64(l.cfg.Timeout.Milliseconds())
	page.SetDefaultTimeout(timeout)

	start := time.Now()
	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(timeout),
	}); err != nil {
		return nil, core.ErrDiscoveryFailed.WithCause(err).WithDetails(map[string]interface{}{"target": url})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := page.Evaluate(extractScript, map[string]interface{}{
		"query":         InteractiveQuery,
		"includeHidden": l.cfg.IncludeHidden,
	})
	if err != nil {
		return nil, core.ErrDiscoveryFailed.WithCause(fmt.Errorf("evaluate extractor: %w", err))
	}

	raws := ParseRawElements(result)
	elements := make([]core.ElementDescriptor, 0, len(raws))
	for _, raw := range raws {
		elements = append(elements, Describe(raw, core.SourceLivePage, page.URL()))
	}

	l.log.Debug("page discovered",
		zap.String("url", url),
		zap.Int("elements", len(elements)),
		zap.Duration("took", time.Since(start)))
	return elements, nil
}

// Close stops the browser and the Playwright driver.
func (l *Live) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	if l.browser != nil {
		if err := l.browser.Close(); err != nil {
			firstErr = err
		}
		l.browser = nil
	}
	if l.pw != nil {
		if err := l.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		l.pw = nil
	}
	return firstErr
}

func (l *Live) launch() (playwright.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.browser != nil {
		return l.browser, nil
	}

	pw, err := playwright.Run(&playwright.RunOptions{
		DriverDirectory: l.cfg.DriverDir,
		Browsers:        []string{l.cfg.Browser},
		Verbose:         false,
	})
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	var bt playwright.BrowserType
	switch l.cfg.Browser {
	case "firefox":
		bt = pw.Firefox
	case "webkit":
		bt = pw.WebKit
	default:
		bt = pw.Chromium
	}

	browser, err := bt.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.cfg.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch %s: %w", l.cfg.Browser, err)
	}

	l.pw, l.browser = pw, browser
	l.log.Info("browser started", zap.String("browser", l.cfg.Browser), zap.Bool("headless", l.cfg.Headless))
	return browser, nil
}

// ParseRawElements converts the extractor script's result into raw
// elements. Entries of the wrong shape are skipped.
func ParseRawElements(result interface{}) []RawElement {
	items, ok := result.([]interface{})
	if !ok {
		return nil
	}

	out := make([]RawElement, 0, len(items))
	for _, item := range items {
		data, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if raw, ok := parseRawElement(data); ok {
			out = append(out, raw)
		}
	}
	return out
}

func parseRawElement(data map[string]interface{}) (RawElement, bool) {
	tag, _ := data["tag"].(string)
	if tag == "" {
		return RawElement{}, false
	}

	raw := RawElement{
		Tag:        tag,
		Attributes: map[string]string{},
		Enabled:    true,
	}
	raw.Text, _ = data["text"].(string)
	raw.LabelText, _ = data["label"].(string)
	raw.ParentSelector, _ = data["parentSelector"].(string)
	if v, ok := data["visible"].(bool); ok {
		raw.Visible = v
	}
	if v, ok := data["enabled"].(bool); ok {
		raw.Enabled = v
	}
	if v, ok := data["inNav"].(bool); ok {
		raw.InNav = v
	}
	if n, ok := data["nth"].(float64); ok {
		raw.NthOfType = int(n)
	}

	if attrs, ok := data["attributes"].(map[string]interface{}); ok {
		for k, v := range attrs {
			if s, ok := v.(string); ok {
				raw.Attributes[k] = s
			}
		}
	}

	if b, ok := data["bounds"].(map[string]interface{}); ok {
		bounds := &core.Bounds{}
		bounds.X, _ = b["x"].(float64)
		bounds.Y, _ = b["y"].(float64)
		bounds.Width, _ = b["width"].(float64)
		bounds.Height, _ = b["height"].(float64)
		raw.Bounds = bounds
	}

	return raw, true
}

// extractScript runs in the page and returns one plain object per
// interactive element.
const extractScript = `({ query, includeHidden }) => {
	const isVisible = (el) => {
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		return style.display !== 'none' &&
			style.visibility !== 'hidden' &&
			style.opacity !== '0' &&
			rect.width > 0 && rect.height > 0;
	};

	const labelFor = (el) => {
		if (el.labels && el.labels.length > 0) {
			return Array.from(el.labels).map(l => l.textContent.trim()).join(' ');
		}
		const by = el.getAttribute('aria-labelledby');
		if (by) {
			return by.split(/\s+/).map(id => {
				const ref = document.getElementById(id);
				return ref ? ref.textContent.trim() : '';
			}).join(' ').trim();
		}
		return '';
	};

	const position = (el) => {
		const parent = el.parentElement;
		if (!parent) return { nth: 0, parentSelector: '' };
		const same = Array.from(parent.children).filter(c => c.tagName === el.tagName);
		const nth = same.length > 1 ? same.indexOf(el) + 1 : 0;
		const parentSelector = parent.id ? '#' + CSS.escape(parent.id) : '';
		return { nth, parentSelector };
	};

	const out = [];
	document.querySelectorAll(query).forEach(el => {
		if (el.tagName === 'INPUT' && el.type === 'hidden') return;
		const visible = isVisible(el);
		if (!visible && !includeHidden) return;

		const attributes = {};
		for (const a of el.attributes) attributes[a.name] = a.value;

		const rect = el.getBoundingClientRect();
		const { nth, parentSelector } = position(el);

		out.push({
			tag: el.tagName.toLowerCase(),
			attributes,
			text: (el.innerText || el.textContent || '').trim().substring(0, 200),
			label: labelFor(el),
			visible,
			enabled: !el.disabled && el.getAttribute('aria-disabled') !== 'true',
			inNav: !!el.closest('nav, [role=navigation]'),
			nth,
			parentSelector,
			bounds: { x: rect.x, y: rect.y, width: rect.width, height: rect.height },
		});
	});
	return out;
}`
