// internal/observe/query.go
package observe

import (
	"context"
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// queryStrategy captures the page's outer HTML and evaluates a targeted
// XPath built from the intent's hints. More expensive than listing (full
// document transfer and parse) but finds elements the interactive-element
// scan misses, e.g. text wrapped in generic containers.
type queryStrategy struct {
	logger *zap.Logger
}

func (s *queryStrategy) Level() schemas.FidelityLevel { return schemas.FidelityQuery }

func (s *queryStrategy) Capture(ctx context.Context, sess schemas.BrowserSession, intent schemas.Intent, detail schemas.DetailLevel) (schemas.PageObservation, error) {
	version := sess.DOMVersion()

	scope := "body"
	if detail == schemas.DetailHigh {
		scope = "html"
	}

	var outer, url string
	if err := chromedp.Run(sess.Ctx(),
		chromedp.Location(&url),
		chromedp.OuterHTML(scope, &outer),
	); err != nil {
		return schemas.PageObservation{}, fmt.Errorf("outer HTML capture failed: %w", err)
	}

	doc, err := htmlquery.Parse(strings.NewReader(outer))
	if err != nil {
		return schemas.PageObservation{}, fmt.Errorf("failed to parse captured HTML: %w", err)
	}

	expr := xpathFor(intent.Target)
	nodes, err := htmlquery.QueryAll(doc, expr)
	if err != nil {
		return schemas.PageObservation{}, fmt.Errorf("xpath %q failed: %w", expr, err)
	}

	elements := make([]schemas.AddressableElement, 0, len(nodes))
	for _, node := range nodes {
		elements = append(elements, schemas.AddressableElement{
			Locator: xpathOf(node),
			Role:    roleOf(node),
			Text:    strings.TrimSpace(htmlquery.InnerText(node)),
			Name:    htmlquery.SelectAttr(node, "name"),
		})
	}

	return schemas.PageObservation{
		Level:      schemas.FidelityQuery,
		Detail:     detail,
		DOMVersion: version,
		URL:        url,
		Elements:   elements,
	}, nil
}

// xpathFor translates the target spec into an XPath expression.
func xpathFor(spec schemas.TargetSpec) string {
	if strings.HasPrefix(spec.Locator, "/") || strings.HasPrefix(spec.Locator, "(") {
		return spec.Locator
	}
	var preds []string
	if spec.Name != "" {
		preds = append(preds, fmt.Sprintf("@name=%s", xpathLiteral(spec.Name)))
	}
	if spec.Text != "" {
		preds = append(preds, fmt.Sprintf("contains(normalize-space(.), %s)", xpathLiteral(spec.Text)))
	}
	axis := "//*"
	switch strings.ToLower(spec.Role) {
	case "button":
		axis = "//*[self::button or self::input[@type='submit'] or @role='button']"
	case "link":
		axis = "//a"
	case "textbox":
		axis = "//*[self::input or self::textarea]"
	case "combobox":
		axis = "//select"
	}
	if len(preds) == 0 {
		return axis
	}
	return axis + "[" + strings.Join(preds, " and ") + "]"
}

// xpathLiteral quotes a string for embedding in an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	// Mixed quotes: concat pieces split on single quotes.
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// xpathOf builds a positional XPath locator for a parsed node so the
// executor can address it via the browser's search facility.
func xpathOf(node *html.Node) string {
	var parts []string
	for n := node; n != nil && n.Type == html.ElementNode; n = n.Parent {
		pos := 1
		for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
			if sib.Type == html.ElementNode && sib.Data == n.Data {
				pos++
			}
		}
		parts = append([]string{fmt.Sprintf("%s[%d]", n.Data, pos)}, parts...)
	}
	return "/" + strings.Join(parts, "/")
}

func roleOf(node *html.Node) string {
	if r := htmlquery.SelectAttr(node, "role"); r != "" {
		return r
	}
	switch node.Data {
	case "a":
		return "link"
	case "button":
		return "button"
	case "select":
		return "combobox"
	case "input", "textarea":
		return "textbox"
	}
	return node.Data
}
