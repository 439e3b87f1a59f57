// Package browser wraps github.com/go-rod/rod into the action-kind surface
// the browser tool needs: navigate, snapshot (ref-numbered interactive
// elements), click, type, scroll, evaluate, wait, screenshot. One Session
// owns one headless Chrome tab; a Manager keeps one Session per sandbox key
// alive across tool calls so a multi-step browsing task keeps its page.
package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const defaultNavTimeout = 30 * time.Second

// interactiveSelectors lists the elements a snapshot exposes as ref-numbered
// targets: the things a human could click, type into, or follow.
var interactiveSelectors = []string{
	"a[href]", "button", "input", "textarea", "select",
	"[role=button]", "[role=link]", "[onclick]",
}

// Manager keeps one browser Session per sandbox/session key alive between
// tool calls, mirroring internal/sandbox.Manager's keyed-reuse shape.
type Manager struct {
	headless bool

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a Manager. Sessions are launched lazily on first use.
func NewManager(headless bool) *Manager {
	return &Manager{headless: headless, sessions: make(map[string]*Session)}
}

// Get returns the Session for key, launching a new Chrome instance if none
// exists yet.
func (m *Manager) Get(key string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[key]; ok {
		return s, nil
	}

	s, err := newSession(m.headless)
	if err != nil {
		return nil, err
	}
	m.sessions[key] = s
	return s, nil
}

// Close tears down and forgets the Session for key, if one exists.
func (m *Manager) Close(key string) error {
	m.mu.Lock()
	s, ok := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return s.Close()
}

// CloseAll tears down every live Session. Called on process shutdown so a
// crash doesn't leak Chrome processes.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
}

// Session is one browser tab plus the ref table its last Snapshot produced.
type Session struct {
	browser *rod.Browser

	mu      sync.Mutex
	page    *rod.Page
	refs    map[string]*rod.Element
	nextRef int
}

func newSession(headless bool) (*Session, error) {
	u, err := launcher.New().Headless(headless).Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch chrome: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect to chrome: %w", err)
	}

	return &Session{browser: b, refs: make(map[string]*rod.Element)}, nil
}

// Close releases the Chrome instance backing this Session.
func (s *Session) Close() error {
	if s.browser == nil {
		return nil
	}
	return s.browser.Close()
}

// Navigate loads url in the session's page, creating the page on first use.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page == nil {
		page, err := s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
		if err != nil {
			return fmt.Errorf("browser: open page: %w", err)
		}
		s.page = page
	}

	page := s.page.Context(ctx).Timeout(defaultNavTimeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("browser: wait for load of %s: %w", url, err)
	}

	s.refs = make(map[string]*rod.Element)
	s.nextRef = 0
	return nil
}

// Snapshot returns a textual outline of the page's interactive elements,
// each tagged with a ref ("e1", "e2", ...) that Click/Type address.
func (s *Session) Snapshot(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page == nil {
		return "", fmt.Errorf("browser: no page loaded, navigate first")
	}
	page := s.page.Context(ctx)

	title, err := page.Eval(`() => document.title`)
	if err != nil {
		return "", fmt.Errorf("browser: read title: %w", err)
	}

	s.refs = make(map[string]*rod.Element)
	s.nextRef = 0

	var out string
	out += fmt.Sprintf("Title: %s\nURL: %s\n", title.Value.String(), page.MustInfo().URL)

	for _, sel := range interactiveSelectors {
		elements, err := page.Elements(sel)
		if err != nil {
			continue // selector not supported by this document, skip
		}
		for _, el := range elements {
			ref := s.allocRef(el)
			desc := describeElement(el)
			out += fmt.Sprintf("[%s] %s\n", ref, desc)
		}
	}

	return out, nil
}

func (s *Session) allocRef(el *rod.Element) string {
	s.nextRef++
	ref := fmt.Sprintf("e%d", s.nextRef)
	s.refs[ref] = el
	return ref
}

func describeElement(el *rod.Element) string {
	tag, err := el.Eval(`() => this.tagName.toLowerCase()`)
	tagName := "element"
	if err == nil {
		tagName = tag.Value.String()
	}
	text, _ := el.Text()
	if len(text) > 80 {
		text = text[:80] + "..."
	}
	return fmt.Sprintf("<%s> %s", tagName, text)
}

func (s *Session) resolveRef(ref string) (*rod.Element, error) {
	el, ok := s.refs[ref]
	if !ok {
		return nil, fmt.Errorf("browser: unknown ref %q, call snapshot first", ref)
	}
	return el, nil
}

// Click clicks the element identified by a Snapshot ref.
func (s *Session) Click(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, err := s.resolveRef(ref)
	if err != nil {
		return err
	}
	return el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

// Type focuses the element identified by ref and types text into it.
func (s *Session) Type(ctx context.Context, ref, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, err := s.resolveRef(ref)
	if err != nil {
		return err
	}
	return el.Context(ctx).Input(text)
}

// Scroll scrolls the page by (dx, dy) pixels from the current position.
func (s *Session) Scroll(ctx context.Context, dx, dy float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page == nil {
		return fmt.Errorf("browser: no page loaded, navigate first")
	}
	return s.page.Context(ctx).Mouse.Scroll(dx, dy, 1)
}

// Evaluate runs js in the page and returns its JSON-stringified result.
func (s *Session) Evaluate(ctx context.Context, js string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page == nil {
		return "", fmt.Errorf("browser: no page loaded, navigate first")
	}
	result, err := s.page.Context(ctx).Eval(js)
	if err != nil {
		return "", fmt.Errorf("browser: evaluate: %w", err)
	}
	return result.Value.String(), nil
}

// Wait blocks until selector appears, up to timeout.
func (s *Session) Wait(ctx context.Context, selector string, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page == nil {
		return fmt.Errorf("browser: no page loaded, navigate first")
	}
	if timeout <= 0 {
		timeout = defaultNavTimeout
	}
	page := s.page.Context(ctx).Timeout(timeout)
	_, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("browser: wait for %q: %w", selector, err)
	}
	return nil
}

// ScreenshotResult holds a captured frame plus the device scale it was taken at.
type ScreenshotResult struct {
	Base64      string
	ScaleFactor float64
}

// Screenshot captures the current page as a PNG, optionally the full
// scrollable page rather than just the viewport.
func (s *Session) Screenshot(ctx context.Context, fullPage bool) (*ScreenshotResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page == nil {
		return nil, fmt.Errorf("browser: no page loaded, navigate first")
	}

	page := s.page.Context(ctx)
	opts := &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng}
	if fullPage {
		metrics, err := proto.PageGetLayoutMetrics{}.Call(page)
		if err == nil && metrics.CSSContentSize != nil {
			opts.Clip = &proto.PageViewport{
				X: 0, Y: 0,
				Width:  metrics.CSSContentSize.Width,
				Height: metrics.CSSContentSize.Height,
				Scale:  1,
			}
		}
	}

	data, err := page.Screenshot(fullPage, opts)
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}

	scale := 1.0
	if metrics, err := proto.PageGetLayoutMetrics{}.Call(page); err == nil && metrics.VisualViewport != nil {
		scale = metrics.VisualViewport.Scale
	}

	return &ScreenshotResult{
		Base64:      base64.StdEncoding.EncodeToString(data),
		ScaleFactor: scale,
	}, nil
}
