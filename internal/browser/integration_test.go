package browser

import (
	"context"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keybridge-cli/keybridge/internal/keycombo"
)

// These tests drive a real Chrome. Start one with
// --remote-debugging-port and point KEYBRIDGE_TEST_CDP at it, e.g.
//
//	KEYBRIDGE_TEST_CDP=localhost:9222 go test ./internal/browser/
func liveManager(t *testing.T) *Manager {
	t.Helper()
	endpoint := os.Getenv("KEYBRIDGE_TEST_CDP")
	if endpoint == "" {
		t.Skip("set KEYBRIDGE_TEST_CDP=host:port to run against a live Chrome")
	}
	host, portStr, err := net.SplitHostPort(endpoint)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	m := NewManager(host, port)
	t.Cleanup(m.Close)
	return m
}

func openFixture(t *testing.T, m *Manager, ctx context.Context, html string) {
	t.Helper()
	require.NoError(t, m.Navigate(ctx, "data:text/html,"+url.PathEscape(html)))
}

func TestPressSelectsAllWithoutListeners(t *testing.T) {
	m := liveManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	openFixture(t, m, ctx, `<div id="t">hello world</div>`)

	element, err := m.ResolveSelector(ctx, "#t")
	require.NoError(t, err)

	require.NoError(t, keycombo.Press(ctx, m, element, "a", keycombo.ModMeta))

	text, err := m.Selection(ctx)
	require.NoError(t, err)
	assert.Contains(t, text, "hello world")
}

func TestPressRespectsPreventDefault(t *testing.T) {
	m := liveManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	openFixture(t, m, ctx, `<div id="t">hello world</div>`)

	element, err := m.ResolveSelector(ctx, "#t")
	require.NoError(t, err)

	// An app-level select-all handler: cancels the character keydown.
	require.NoError(t, m.CallOnElement(ctx, element, `function() {
		window.__downs = 0;
		this.addEventListener('keydown', function(e) {
			if (e.key === 'a') {
				window.__downs++;
				e.preventDefault();
			}
		});
	}`))

	require.NoError(t, keycombo.Press(ctx, m, element, "a", keycombo.ModControl))

	text, err := m.Selection(ctx)
	require.NoError(t, err)
	assert.Empty(t, text, "cancelled keydown must suppress the select-all fallback")

	var downs int
	require.NoError(t, m.eval(ctx, "window.__downs", &downs))
	assert.Equal(t, 1, downs, "listener must observe exactly one character keydown")
}

func TestPressOtherKeyDispatchesThreeEvents(t *testing.T) {
	m := liveManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	openFixture(t, m, ctx, `<div id="t">hello world</div>`)

	element, err := m.ResolveSelector(ctx, "#t")
	require.NoError(t, err)

	// Capturing listener at the document root sees the full sequence.
	require.NoError(t, m.CallOnElement(ctx, element, `function() {
		window.__seen = [];
		var rec = function(e) { window.__seen.push(e.type + ':' + e.key); };
		document.addEventListener('keydown', rec, true);
		document.addEventListener('keyup', rec, true);
	}`))

	require.NoError(t, keycombo.Press(ctx, m, element, "b", keycombo.ModControl))

	var seen []string
	require.NoError(t, m.eval(ctx, "window.__seen", &seen))
	require.Len(t, seen, 3)
	// The modifier depends on the host Chrome's platform; the shape does not.
	mod := strings.TrimPrefix(seen[0], "keydown:")
	assert.Contains(t, []string{"Control", "Meta"}, mod)
	assert.Equal(t, "keydown:b", seen[1])
	assert.Equal(t, "keyup:"+mod, seen[2])

	text, err := m.Selection(ctx)
	require.NoError(t, err)
	assert.Empty(t, text, "non-'a' keys never trigger select-all")
}
