package static

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/actuate/api/schemas"
)

// page is the state of one browsing context. Element IDs embed the document
// generation, so anything minted before a navigation resolves as stale.
type page struct {
	handle     schemas.Handle
	url        *url.URL
	doc        *html.Node
	generation int

	ids      map[*html.Node]string
	nodes    map[string]*html.Node
	nextNode int

	dialog  *pendingDialog
	history []DialogRecord

	hover   *html.Node
	pressed *html.Node
	focus   *html.Node
	dragged bool
	// selectAll marks the focused field's whole value as selected.
	selectAll bool
	held      map[schemas.Key]bool
}

func newPage(h schemas.Handle) *page {
	return &page{handle: h, held: make(map[schemas.Key]bool)}
}

// install replaces the document and resets everything tied to the old one.
func (p *page) install(u *url.URL, doc *html.Node) {
	p.url = u
	p.doc = doc
	p.generation++
	p.ids = make(map[*html.Node]string)
	p.nodes = make(map[string]*html.Node)
	p.nextNode = 0
	p.hover, p.pressed, p.focus = nil, nil, nil
	p.dragged, p.selectAll = false, false

	if n := htmlquery.FindOne(doc, "//*[@autofocus]"); n != nil {
		p.focus = n
	}
}

func (p *page) mint(n *html.Node, loc schemas.Locator) schemas.Element {
	id, ok := p.ids[n]
	if !ok {
		p.nextNode++
		id = fmt.Sprintf("%s:%d:%d", p.handle, p.generation, p.nextNode)
		p.ids[n] = id
		p.nodes[id] = n
	}
	return schemas.Element{ID: id, Context: p.handle, Locator: loc}
}

// lookup returns the node behind el if it still belongs to the current
// document.
func (p *page) lookup(el schemas.Element) (*html.Node, bool) {
	if el.Context != p.handle {
		return nil, false
	}
	n, ok := p.nodes[el.ID]
	if !ok || !attached(p.doc, n) {
		return nil, false
	}
	return n, true
}

func (p *page) title() string {
	if n := htmlquery.FindOne(p.doc, "//title"); n != nil {
		return strings.TrimSpace(htmlquery.InnerText(n))
	}
	return ""
}

func (p *page) modifierHeld() bool {
	return p.held[schemas.KeyControl] || p.held[schemas.KeyMeta]
}
