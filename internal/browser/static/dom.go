package static

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/actuate/api/schemas"
)

// Elements that never render a box.
var nonRendered = map[string]bool{
	"head": true, "script": true, "style": true, "template": true,
	"title": true, "meta": true, "link": true, "noscript": true,
}

var textInputTypes = map[string]bool{
	"": true, "text": true, "email": true, "password": true, "search": true,
	"tel": true, "url": true, "number": true,
}

func tag(n *html.Node) string { return strings.ToLower(n.Data) }

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasAttr(n *html.Node, key string) bool {
	_, ok := attr(n, key)
	return ok
}

func inputType(n *html.Node) string {
	return strings.ToLower(htmlquery.SelectAttr(n, "type"))
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// attached reports whether n is still reachable from root.
func attached(root, n *html.Node) bool {
	for c := n; c != nil; c = c.Parent {
		if c == root {
			return true
		}
	}
	return false
}

func closest(n *html.Node, match func(*html.Node) bool) *html.Node {
	for c := n; c != nil; c = c.Parent {
		if c.Type == html.ElementNode && match(c) {
			return c
		}
	}
	return nil
}

func findParentForm(n *html.Node) *html.Node {
	if n.Parent == nil {
		return nil
	}
	return closest(n.Parent, func(c *html.Node) bool { return tag(c) == "form" })
}

func isVisible(n *html.Node) bool {
	if tag(n) == "input" && inputType(n) == "hidden" {
		return false
	}
	for c := n; c != nil; c = c.Parent {
		if c.Type != html.ElementNode {
			continue
		}
		if nonRendered[tag(c)] || hasAttr(c, "hidden") {
			return false
		}
		style := strings.ToLower(strings.ReplaceAll(htmlquery.SelectAttr(c, "style"), " ", ""))
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}

func isEnabled(n *html.Node) bool {
	if hasAttr(n, "disabled") {
		return false
	}
	switch tag(n) {
	case "input", "button", "select", "textarea":
		if fs := closest(n.Parent, func(c *html.Node) bool { return tag(c) == "fieldset" }); fs != nil && hasAttr(fs, "disabled") {
			return false
		}
	}
	return true
}

func isTextEntry(n *html.Node) bool {
	if n == nil || !isEnabled(n) || hasAttr(n, "readonly") {
		return false
	}
	switch tag(n) {
	case "textarea":
		return true
	case "input":
		return textInputTypes[inputType(n)]
	}
	return false
}

func isFocusable(n *html.Node) bool {
	switch tag(n) {
	case "input", "button", "select", "textarea":
		return isEnabled(n)
	case "a":
		return hasAttr(n, "href")
	}
	return hasAttr(n, "tabindex")
}

// value returns the current value of a form control, or the text of
// anything else.
func value(n *html.Node) string {
	switch tag(n) {
	case "input":
		return htmlquery.SelectAttr(n, "value")
	case "textarea":
		return htmlquery.InnerText(n)
	case "select":
		opt := htmlquery.FindOne(n, ".//option[@selected]")
		if opt == nil {
			opt = htmlquery.FindOne(n, ".//option")
		}
		if opt == nil {
			return ""
		}
		if v, ok := attr(opt, "value"); ok {
			return v
		}
		return strings.TrimSpace(htmlquery.InnerText(opt))
	}
	return htmlquery.InnerText(n)
}

func setValue(n *html.Node, v string) {
	if tag(n) == "textarea" {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		n.AppendChild(&html.Node{Type: html.TextNode, Data: v})
		return
	}
	setAttr(n, "value", v)
}

// assignValue is setValue extended to selects, where v names an option by
// value or label.
func assignValue(n *html.Node, v string) error {
	if tag(n) != "select" {
		setValue(n, v)
		return nil
	}
	opts := htmlquery.Find(n, ".//option")
	var pick *html.Node
	for _, opt := range opts {
		label := strings.TrimSpace(htmlquery.InnerText(opt))
		if val, ok := attr(opt, "value"); (ok && val == v) || label == v {
			pick = opt
			break
		}
	}
	if pick == nil {
		return fmt.Errorf("select has no option %q", v)
	}
	for _, opt := range opts {
		removeAttr(opt, "selected")
	}
	setAttr(pick, "selected", "selected")
	return nil
}

func property(n *html.Node, name string) string {
	switch name {
	case "value":
		return value(n)
	case "text":
		return strings.Join(strings.Fields(htmlquery.InnerText(n)), " ")
	case "checked":
		return strconv.FormatBool(hasAttr(n, "checked"))
	case "tag":
		return tag(n)
	}
	return htmlquery.SelectAttr(n, name)
}

// selectRadio checks n and unchecks the rest of its group.
func selectRadio(n *html.Node) {
	name := htmlquery.SelectAttr(n, "name")
	if name == "" {
		setAttr(n, "checked", "checked")
		return
	}
	root := findParentForm(n)
	if root == nil {
		root = n
		for root.Parent != nil {
			root = root.Parent
		}
	}
	radios := htmlquery.Find(root, fmt.Sprintf(".//input[@type='radio' and @name=%s]", xpathLiteral(name)))
	for _, r := range radios {
		if r == n {
			setAttr(r, "checked", "checked")
		} else {
			removeAttr(r, "checked")
		}
	}
}

// nudgeRange moves a range input by dx pixels, one step per pixel, clamped
// to [min, max].
func nudgeRange(n *html.Node, dx float64) {
	num := func(key string, def float64) float64 {
		if v, err := strconv.ParseFloat(htmlquery.SelectAttr(n, key), 64); err == nil {
			return v
		}
		return def
	}
	lo, hi, step := num("min", 0), num("max", 100), num("step", 1)
	cur := num("value", lo+(hi-lo)/2)
	next := cur + dx*step
	if next < lo {
		next = lo
	}
	if next > hi {
		next = hi
	}
	setAttr(n, "value", strconv.FormatFloat(next, 'f', -1, 64))
}

// focusableAfter returns the next focusable element in document order,
// wrapping around.
func focusableAfter(doc, cur *html.Node) *html.Node {
	var all []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isFocusable(n) && isVisible(n) {
			all = append(all, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if len(all) == 0 {
		return nil
	}
	for i, n := range all {
		if n == cur {
			return all[(i+1)%len(all)]
		}
	}
	return all[0]
}

// xpathLiteral quotes s as an XPath string literal.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = "'" + p + "'"
	}
	return "concat(" + strings.Join(quoted, `, "'", `) + ")"
}

// queryNodes resolves loc against doc. CSS selectors go through cascadia,
// everything else is rewritten to XPath.
func queryNodes(doc *html.Node, loc schemas.Locator) ([]*html.Node, error) {
	if loc.Strategy == schemas.StrategyCSS {
		sel, err := cascadia.Compile(loc.Query)
		if err != nil {
			return nil, err
		}
		return sel.MatchAll(doc), nil
	}
	expr, err := locatorXPath(loc)
	if err != nil {
		return nil, err
	}
	return htmlquery.QueryAll(doc, expr)
}

func locatorXPath(loc schemas.Locator) (string, error) {
	switch loc.Strategy {
	case schemas.StrategyXPath:
		return loc.Query, nil
	case schemas.StrategyID:
		return "//*[@id=" + xpathLiteral(loc.Query) + "]", nil
	case schemas.StrategyLinkText:
		return "//a[normalize-space(.)=" + xpathLiteral(strings.TrimSpace(loc.Query)) + "]", nil
	}
	return "", fmt.Errorf("unsupported locator strategy %q", loc.Strategy)
}
