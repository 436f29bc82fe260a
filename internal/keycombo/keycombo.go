// Package keycombo emulates a modifier+character keyboard shortcut inside a
// page's JavaScript context. It builds the exact event sequence a real
// browser produces for a shortcut like Ctrl+A / Cmd+A, dispatches it against
// a target element, and triggers the native fallback behaviour only when no
// listener cancelled the character keydown.
package keycombo

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"unicode"
)

// Modifier is the platform-neutral label for the shortcut's held key.
type Modifier string

const (
	ModControl Modifier = "Control"
	ModMeta    Modifier = "Meta"
)

// Legacy keyCode/which values for the modifier keydown/keyup events.
const (
	metaKeyCode    = 93
	controlKeyCode = 17
)

// ParseModifier maps user input ("control", "ctrl", "meta", "cmd", ...) to a
// Modifier. The parsed value is advisory only: Press re-derives the actual
// modifier from the page's platform string.
func ParseModifier(s string) (Modifier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "control", "ctrl":
		return ModControl, nil
	case "meta", "cmd", "command":
		return ModMeta, nil
	default:
		return "", fmt.Errorf("unknown modifier %q (want Control or Meta)", s)
	}
}

// DeriveModifier picks the modifier a real user's OS would hold for the
// "command" shortcut on the given platform identification string
// (navigator.platform). Mac-family platforms use Meta, everything else
// Control.
func DeriveModifier(platform string) Modifier {
	p := strings.ToLower(platform)
	for _, prefix := range []string{"mac", "iphone", "ipad", "ipod"} {
		if strings.HasPrefix(p, prefix) {
			return ModMeta
		}
	}
	return ModControl
}

func (m Modifier) code() string {
	if m == ModMeta {
		return "MetaLeft"
	}
	return "ControlLeft"
}

func (m Modifier) keyCode() int {
	if m == ModMeta {
		return metaKeyCode
	}
	return controlKeyCode
}

// charKeyCode derives the legacy keyCode for a character key: the code point
// of the uppercased first rune. Longer strings truncate to the first rune.
func charKeyCode(char string) int {
	for _, r := range char {
		return int(unicode.ToUpper(r))
	}
	return 0
}

// Bridge runs procedures inside a remote page's JavaScript context. It is the
// only capability the emulator needs from an automation harness; element is
// an opaque handle previously resolved by the bridge.
type Bridge interface {
	// Platform returns the page runtime's platform identification string.
	Platform(ctx context.Context) (string, error)
	// CallOnElement runs a JS function declaration with `this` bound to the
	// element and waits for it to complete.
	CallOnElement(ctx context.Context, element string, fn string) error
}

type fixedPlatform struct {
	Bridge
	platform string
}

func (f fixedPlatform) Platform(ctx context.Context) (string, error) {
	return f.platform, nil
}

// FixedPlatform wraps b so Platform always reports platform instead of
// asking the page. Used when a platform override is configured, and to avoid
// re-reading the page platform when the caller already holds it.
func FixedPlatform(b Bridge, platform string) Bridge {
	return fixedPlatform{Bridge: b, platform: platform}
}

// Press dispatches the shortcut <modifier>+<char> against element. The
// requested modifier selects nothing by itself: the actual modifier is
// re-derived from the page's platform so tests written with either label
// still produce platform-correct events. Press resolves once the in-page
// sequence ran; it reports no outcome beyond bridge errors.
func Press(ctx context.Context, bridge Bridge, element string, char string, requested Modifier) error {
	platform, err := bridge.Platform(ctx)
	if err != nil {
		return fmt.Errorf("read page platform: %w", err)
	}

	actual := DeriveModifier(platform)
	if actual != requested {
		log.Printf("[keycombo] requested %s but platform %q uses %s", requested, platform, actual)
	}

	return bridge.CallOnElement(ctx, element, dispatchScript(actual, char))
}

// dispatchScript builds the in-page procedure. Run with `this` bound to the
// target element, it dispatches exactly three events, strictly ordered:
// modifier keydown, character keydown, modifier keyup. No character keyup is
// synthesized; most shortcut handlers key off keydown and the reduced event
// count is part of the observable contract. The character keydown counts as
// cancelled when dispatchEvent returns false or defaultPrevented is set
// afterwards; only an uncancelled "a" triggers the native select-all command
// the browser would otherwise perform itself.
//
// The KeyboardEvent constructor ignores the legacy keyCode/which/charCode
// fields, so they are installed with Object.defineProperties.
func dispatchScript(m Modifier, char string) string {
	return fmt.Sprintf(`function() {
		var mk = function(type, key, code, location, keyCode) {
			var e = new KeyboardEvent(type, {
				key: key,
				code: code,
				location: location,
				ctrlKey: %t,
				metaKey: %t,
				bubbles: true,
				cancelable: true
			});
			Object.defineProperties(e, {
				keyCode: {value: keyCode},
				which: {value: keyCode},
				charCode: {value: 0}
			});
			return e;
		};
		this.dispatchEvent(mk('keydown', %[3]s, %[4]s, 1, %[5]d));
		var ev = mk('keydown', %[6]s, %[7]s, 0, %[8]d);
		var canceled = !this.dispatchEvent(ev) || ev.defaultPrevented;
		if (!canceled && %[6]s === 'a') {
			document.execCommand('selectAll');
		}
		this.dispatchEvent(mk('keyup', %[3]s, %[4]s, 1, %[5]d));
	}`,
		m == ModControl,
		m == ModMeta,
		strconv.Quote(string(m)),
		strconv.Quote(m.code()),
		m.keyCode(),
		strconv.Quote(char),
		strconv.Quote("Key"+strings.ToUpper(char)),
		charKeyCode(char),
	)
}
