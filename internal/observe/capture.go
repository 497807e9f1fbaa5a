// internal/observe/capture.go
package observe

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// collectScript walks the DOM for elements matching sel and returns a JSON
// array of addressable elements. Boxes are optional and either
// viewport-relative or page-relative; the caller tags the coordinate space
// accordingly.
const collectScript = `
(() => {
	const sel = %q;
	const max = %d;
	const wantBox = %t;
	const pageSpace = %t;
	const visibleOnly = %t;
	const out = [];
	const roleMap = {A:'link', BUTTON:'button', SELECT:'combobox', TEXTAREA:'textbox',
		H1:'heading', H2:'heading', H3:'heading', NAV:'navigation', MAIN:'main', FORM:'form'};
	const roleOf = (el) => {
		const explicit = el.getAttribute('role');
		if (explicit) return explicit;
		if (el.tagName === 'INPUT') {
			return (el.type === 'submit' || el.type === 'button') ? 'button'
				: (el.type === 'checkbox' ? 'checkbox' : (el.type === 'radio' ? 'radio' : 'textbox'));
		}
		return roleMap[el.tagName] || el.tagName.toLowerCase();
	};
	const cssPath = (el) => {
		if (el.id) return '#' + CSS.escape(el.id);
		const nameAttr = el.getAttribute('name');
		if (nameAttr) return el.tagName.toLowerCase() + '[name="' + nameAttr + '"]';
		const parts = [];
		let node = el;
		while (node && node.nodeType === 1 && parts.length < 6) {
			let part = node.tagName.toLowerCase();
			const parent = node.parentElement;
			if (parent) {
				const same = Array.from(parent.children).filter(c => c.tagName === node.tagName);
				if (same.length > 1) part += ':nth-of-type(' + (same.indexOf(node) + 1) + ')';
			}
			parts.unshift(part);
			if (node.id) { parts[0] = '#' + CSS.escape(node.id); break; }
			node = parent;
		}
		return parts.join(' > ');
	};
	for (const el of document.querySelectorAll(sel)) {
		if (out.length >= max) break;
		const rect = el.getBoundingClientRect();
		if (visibleOnly && (rect.width === 0 || rect.height === 0)) continue;
		const row = {
			locator: cssPath(el),
			role: roleOf(el),
			text: (el.innerText || el.value || '').trim().slice(0, 120),
			name: el.getAttribute('name') || ''
		};
		if (wantBox) {
			row.box = pageSpace
				? {x: rect.x + window.scrollX, y: rect.y + window.scrollY, width: rect.width, height: rect.height}
				: {x: rect.x, y: rect.y, width: rect.width, height: rect.height};
		}
		out.push(row);
	}
	return JSON.stringify(out);
})()
`

// collect runs the collector in the session's selected page.
func collect(ctx context.Context, sess schemas.BrowserSession, sel string, max int, wantBox, pageSpace, visibleOnly bool) ([]schemas.AddressableElement, string, error) {
	script := fmt.Sprintf(collectScript, sel, max, wantBox, pageSpace, visibleOnly)

	var raw, url string
	if err := chromedp.Run(sess.Ctx(),
		chromedp.Location(&url),
		chromedp.Evaluate(script, &raw),
	); err != nil {
		return nil, "", fmt.Errorf("element collection failed: %w", err)
	}

	var elements []schemas.AddressableElement
	if err := json.UnmarshalFromString(raw, &elements); err != nil {
		return nil, "", fmt.Errorf("failed to decode collected elements: %w", err)
	}
	return elements, url, nil
}

// -- Structural --

// structuralStrategy captures the cheapest view: landmarks and the primary
// interactive elements. Enough for "click Apply" on most pages.
type structuralStrategy struct {
	logger *zap.Logger
}

func (s *structuralStrategy) Level() schemas.FidelityLevel { return schemas.FidelityStructural }

func (s *structuralStrategy) Capture(ctx context.Context, sess schemas.BrowserSession, _ schemas.Intent, detail schemas.DetailLevel) (schemas.PageObservation, error) {
	max := 25
	if detail == schemas.DetailHigh {
		max = 80
	}
	version := sess.DOMVersion()
	elements, url, err := collect(ctx, sess, "h1, h2, h3, nav, main, form, a[href], button, input[type=submit]", max, false, false, true)
	if err != nil {
		return schemas.PageObservation{}, err
	}
	return schemas.PageObservation{
		Level:      schemas.FidelityStructural,
		Detail:     detail,
		DOMVersion: version,
		URL:        url,
		Elements:   elements,
	}, nil
}

// -- Listing --

// listingStrategy enumerates every interactive element, including form
// controls. Low detail lists only visible elements.
type listingStrategy struct {
	logger *zap.Logger
}

func (s *listingStrategy) Level() schemas.FidelityLevel { return schemas.FidelityListing }

func (s *listingStrategy) Capture(ctx context.Context, sess schemas.BrowserSession, _ schemas.Intent, detail schemas.DetailLevel) (schemas.PageObservation, error) {
	max, visibleOnly := 80, true
	if detail == schemas.DetailHigh {
		max, visibleOnly = 200, false
	}
	version := sess.DOMVersion()
	elements, url, err := collect(ctx, sess,
		"a[href], button, input, select, textarea, [role=button], [onclick], [tabindex]",
		max, false, false, visibleOnly)
	if err != nil {
		return schemas.PageObservation{}, err
	}
	return schemas.PageObservation{
		Level:      schemas.FidelityListing,
		Detail:     detail,
		DOMVersion: version,
		URL:        url,
		Elements:   elements,
	}, nil
}

// -- Visual --

// visualStrategy captures bounding boxes for spatial interaction. Low
// detail covers the current viewport in viewport space; high detail covers
// the whole document in page space. The space tag decides which click
// primitive is valid downstream.
type visualStrategy struct {
	logger *zap.Logger
}

func (s *visualStrategy) Level() schemas.FidelityLevel { return schemas.FidelityVisual }

func (s *visualStrategy) Capture(ctx context.Context, sess schemas.BrowserSession, _ schemas.Intent, detail schemas.DetailLevel) (schemas.PageObservation, error) {
	version := sess.DOMVersion()

	space := schemas.SpaceViewport
	pageSpace, visibleOnly, max := false, true, 120
	if detail == schemas.DetailHigh {
		space = schemas.SpacePage
		pageSpace, visibleOnly, max = true, false, 300
	}

	elements, url, err := collect(ctx, sess,
		"a[href], button, input, select, textarea, canvas, [role=button], [onclick]",
		max, true, pageSpace, visibleOnly)
	if err != nil {
		return schemas.PageObservation{}, err
	}
	return schemas.PageObservation{
		Level:      schemas.FidelityVisual,
		Detail:     detail,
		DOMVersion: version,
		URL:        url,
		Space:      space,
		Elements:   elements,
	}, nil
}
