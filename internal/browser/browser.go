// Package browser maintains a lazy connection to a Chrome instance over the
// DevTools Protocol and exposes the small page-context capabilities keybridge
// needs: resolve an element, run a function on it, read page state.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/keybridge-cli/keybridge/internal/keycombo"
)

// Manager manages a lazy connection to Chrome via CDP. It implements
// keycombo.Bridge; element handles are Runtime remote object IDs.
type Manager struct {
	debugURL string

	mu        sync.Mutex
	allocCtx  context.Context
	allocCanc context.CancelFunc
	ctx       context.Context
	ctxCanc   context.CancelFunc
}

var _ keycombo.Bridge = (*Manager)(nil)

// NewManager returns a manager for the Chrome debug endpoint at host:port.
// No connection is made until the first command.
func NewManager(host string, port int) *Manager {
	return &Manager{debugURL: fmt.Sprintf("http://%s:%d", host, port)}
}

// ensureConnected lazily connects (or reconnects) to Chrome CDP.
func (m *Manager) ensureConnected() (context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// If we already have a context, test it with a simple action.
	if m.ctx != nil {
		err := chromedp.Run(m.ctx)
		if err == nil {
			return m.ctx, nil
		}
		log.Printf("[browser] existing connection stale: %v, reconnecting", err)
		m.close()
	}

	wsURL, err := m.wsURL()
	if err != nil {
		return nil, fmt.Errorf("Chrome CDP not available: %w", err)
	}

	// Find the first page target via the HTTP debug API. We avoid using a
	// temporary chromedp context for target discovery because creating and
	// cancelling contexts on the allocator can leave stale session state
	// that breaks subsequent CDP domain calls.
	targetID, err := m.findPageTarget()
	if err != nil {
		return nil, fmt.Errorf("no page target found: %w", err)
	}

	allocCtx, allocCanc := chromedp.NewRemoteAllocator(context.Background(), wsURL)
	m.allocCtx = allocCtx
	m.allocCanc = allocCanc

	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithTargetID(targetID))
	m.ctx = ctx
	m.ctxCanc = cancel

	if err := chromedp.Run(ctx); err != nil {
		m.close()
		return nil, fmt.Errorf("failed to attach to page: %w", err)
	}

	log.Printf("[browser] connected to Chrome CDP, target=%s", targetID)
	return ctx, nil
}

func (m *Manager) wsURL() (string, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(m.debugURL + "/json/version")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var data struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", err
	}
	if data.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("empty webSocketDebuggerUrl")
	}
	return data.WebSocketDebuggerURL, nil
}

// TargetInfo summarizes an entry of the /json/list debug endpoint.
type TargetInfo struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Targets lists the debuggable targets Chrome currently exposes.
func (m *Manager) Targets() ([]TargetInfo, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(m.debugURL + "/json/list")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var targets []TargetInfo
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// findPageTarget prefers type "page", falling back to any target.
func (m *Manager) findPageTarget() (target.ID, error) {
	targets, err := m.Targets()
	if err != nil {
		return "", err
	}
	for _, t := range targets {
		if t.Type == "page" {
			return target.ID(t.ID), nil
		}
	}
	if len(targets) > 0 {
		return target.ID(targets[0].ID), nil
	}
	return "", fmt.Errorf("no targets available")
}

func (m *Manager) close() {
	if m.ctxCanc != nil {
		m.ctxCanc()
		m.ctxCanc = nil
	}
	if m.allocCanc != nil {
		m.allocCanc()
		m.allocCanc = nil
	}
	m.ctx = nil
	m.allocCtx = nil
}

// Close is called on shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.close()
}

// Available reports whether the debug port accepts connections.
func (m *Manager) Available() bool {
	addr := m.debugURL[len("http://"):]
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// eval evaluates a JS expression in the page and unmarshals the by-value
// result into out when out is non-nil.
func (m *Manager) eval(callerCtx context.Context, expr string, out interface{}) error {
	if err := callerCtx.Err(); err != nil {
		return err
	}
	ctx, err := m.ensureConnected()
	if err != nil {
		return err
	}
	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		res, exp, err := runtime.Evaluate(expr).WithReturnByValue(true).Do(ctx)
		if err != nil {
			return err
		}
		if exp != nil {
			return exp
		}
		if out != nil && res != nil && len(res.Value) > 0 {
			return json.Unmarshal([]byte(res.Value), out)
		}
		return nil
	}))
}

// Platform returns the page runtime's platform identification string.
func (m *Manager) Platform(callerCtx context.Context) (string, error) {
	var platform string
	if err := m.eval(callerCtx, "navigator.platform", &platform); err != nil {
		return "", fmt.Errorf("platform failed: %w", err)
	}
	return platform, nil
}

// Selection returns the page's current text selection.
func (m *Manager) Selection(callerCtx context.Context) (string, error) {
	var text string
	if err := m.eval(callerCtx, "window.getSelection().toString()", &text); err != nil {
		return "", fmt.Errorf("selection failed: %w", err)
	}
	return text, nil
}

// ResolveSelector resolves a CSS selector to an element handle. The handle
// stays valid until the page navigates or the node is garbage collected.
func (m *Manager) ResolveSelector(callerCtx context.Context, selector string) (string, error) {
	if err := callerCtx.Err(); err != nil {
		return "", err
	}
	ctx, err := m.ensureConnected()
	if err != nil {
		return "", err
	}

	var objID runtime.RemoteObjectID
	expr := fmt.Sprintf("document.querySelector(%s)", strconv.Quote(selector))
	if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		res, exp, err := runtime.Evaluate(expr).Do(ctx)
		if err != nil {
			return err
		}
		if exp != nil {
			return exp
		}
		if res == nil || res.ObjectID == "" || res.Subtype == "null" {
			return fmt.Errorf("no element matches selector %q", selector)
		}
		objID = res.ObjectID
		return nil
	})); err != nil {
		return "", err
	}
	return string(objID), nil
}

// CallOnElement runs a JS function declaration with `this` bound to the
// element and waits for completion. Part of the keycombo.Bridge contract.
func (m *Manager) CallOnElement(callerCtx context.Context, element string, fn string) error {
	if err := callerCtx.Err(); err != nil {
		return err
	}
	ctx, err := m.ensureConnected()
	if err != nil {
		return err
	}
	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, exp, err := runtime.CallFunctionOn(fn).
			WithObjectID(runtime.RemoteObjectID(element)).Do(ctx)
		if err != nil {
			return err
		}
		if exp != nil {
			return exp
		}
		return nil
	}))
}

// Navigate opens url in the attached page.
func (m *Manager) Navigate(callerCtx context.Context, url string) error {
	if err := callerCtx.Err(); err != nil {
		return err
	}
	ctx, err := m.ensureConnected()
	if err != nil {
		return err
	}
	if err := chromedp.Run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate failed: %w", err)
	}
	// Wait briefly for the page to settle.
	chromedp.Run(ctx, chromedp.Sleep(500*time.Millisecond))
	return nil
}

// Location returns the attached page's current URL.
func (m *Manager) Location(callerCtx context.Context) (string, error) {
	if err := callerCtx.Err(); err != nil {
		return "", err
	}
	ctx, err := m.ensureConnected()
	if err != nil {
		return "", err
	}
	var url string
	if err := chromedp.Run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("url failed: %w", err)
	}
	return url, nil
}

// Title returns the attached page's title.
func (m *Manager) Title(callerCtx context.Context) (string, error) {
	if err := callerCtx.Err(); err != nil {
		return "", err
	}
	ctx, err := m.ensureConnected()
	if err != nil {
		return "", err
	}
	var title string
	if err := chromedp.Run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("title failed: %w", err)
	}
	return title, nil
}
