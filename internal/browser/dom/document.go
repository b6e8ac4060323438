// browser/dom/document.go
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/xkilldash9x/boxedit/api/schemas"
	"github.com/xkilldash9x/boxedit/internal/browser/eventtarget"
	"github.com/xkilldash9x/boxedit/internal/browser/layout"
	"github.com/xkilldash9x/boxedit/internal/browser/style"
)

// Document is an in-memory HTML document with just enough layout to answer
// getBoundingClientRect for positioned elements. Like a browser DOM it is
// owned by a single goroutine; it is not safe for concurrent use.
type Document struct {
	logger   *zap.Logger
	root     *html.Node
	body     *html.Node
	viewport layout.Viewport

	elements map[*html.Node]*Element
	events   *eventtarget.Target

	nextWatchID int
	watches     []*watch
}

type watch struct {
	id   int
	node *html.Node
	fn   func(schemas.ChangeKind)
}

var (
	_ schemas.Document     = (*Document)(nil)
	_ schemas.EventTarget  = (*Document)(nil)
	_ schemas.ChangeSource = (*Document)(nil)
)

// Parse reads an HTML document. Missing html/body elements are synthesized
// by the HTML parser.
func Parse(r io.Reader, viewport layout.Viewport, logger *zap.Logger) (*Document, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: failed to parse document: %w", err)
	}
	body := htmlquery.FindOne(root, "//body")
	if body == nil {
		return nil, fmt.Errorf("dom: document has no body")
	}
	return &Document{
		logger:   logger.Named("dom"),
		root:     root,
		body:     body,
		viewport: viewport,
		elements: make(map[*html.Node]*Element),
		events:   eventtarget.New(),
	}, nil
}

// ParseString is Parse for a string.
func ParseString(s string, viewport layout.Viewport, logger *zap.Logger) (*Document, error) {
	return Parse(strings.NewReader(s), viewport, logger)
}

// Viewport returns the current viewport size.
func (d *Document) Viewport() layout.Viewport { return d.viewport }

// SetViewport resizes the viewport and notifies every watcher.
func (d *Document) SetViewport(vp layout.Viewport) {
	d.viewport = vp
	d.logger.Debug("Viewport resized.", zap.Float64("width", vp.Width), zap.Float64("height", vp.Height))
	for _, w := range d.snapshotWatches() {
		w.fn(schemas.ChangeViewport)
	}
}

// Body returns the body element.
func (d *Document) Body() *Element { return d.wrap(d.body) }

// Query returns the first element matching an XPath expression.
func (d *Document) Query(xpath string) (*Element, error) {
	node, err := htmlquery.Query(d.root, xpath)
	if err != nil {
		return nil, fmt.Errorf("dom: invalid xpath %q: %w", xpath, err)
	}
	if node == nil || node.Type != html.ElementNode {
		return nil, fmt.Errorf("dom: no element matches %q", xpath)
	}
	return d.wrap(node), nil
}

// QueryAll returns every element matching an XPath expression.
func (d *Document) QueryAll(xpath string) ([]*Element, error) {
	nodes, err := htmlquery.QueryAll(d.root, xpath)
	if err != nil {
		return nil, fmt.Errorf("dom: invalid xpath %q: %w", xpath, err)
	}
	out := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			out = append(out, d.wrap(n))
		}
	}
	return out, nil
}

// Render serializes the document back to HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String renders the document, mostly for tests and debugging.
func (d *Document) String() string {
	var buf bytes.Buffer
	_ = d.Render(&buf)
	return buf.String()
}

// -- schemas.Document --

// CreateElement returns a new detached element.
func (d *Document) CreateElement(tag string) (schemas.Element, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return nil, fmt.Errorf("dom: empty tag name")
	}
	return d.wrap(&html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}), nil
}

// AppendToRoot attaches el as the last child of body.
func (d *Document) AppendToRoot(el schemas.Element) error {
	e, err := d.own(el)
	if err != nil {
		return err
	}
	if e.node.Parent != nil {
		return fmt.Errorf("dom: element %s already has a parent", e.ID())
	}
	d.body.AppendChild(e.node)
	d.notifyMutation(e.node)
	return nil
}

// RemoveElement detaches el from its parent. Watchers inside the removed
// subtree are notified so they observe the detached state.
func (d *Document) RemoveElement(el schemas.Element) error {
	e, err := d.own(el)
	if err != nil {
		return err
	}
	if e.node.Parent == nil {
		return nil
	}
	e.node.Parent.RemoveChild(e.node)
	for _, w := range d.snapshotWatches() {
		if isAncestorOrSelf(e.node, w.node) {
			w.fn(schemas.ChangeMutation)
		}
	}
	return nil
}

// ElementFromPoint returns the topmost hit-testable element at (x, y).
// Higher z-index wins; among equals the later element in document order wins.
func (d *Document) ElementFromPoint(x, y float64) schemas.Element {
	var (
		best      *html.Node
		bestZ     int
		bestFound bool
	)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if !layout.IsDisplayed(d.styles(c)) {
				continue
			}
			if d.pointerEvents(c) && d.layoutRect(c).Contains(x, y) {
				z := d.zIndex(c)
				if !bestFound || z >= bestZ {
					best, bestZ, bestFound = c, z, true
				}
			}
			walk(c)
		}
	}
	walk(d.root)
	if best == nil {
		return nil
	}
	return d.wrap(best)
}

// -- schemas.EventTarget --

// AddEventListener registers a document-level listener.
func (d *Document) AddEventListener(t schemas.EventType, fn func(schemas.InputEvent)) func() {
	return d.events.AddEventListener(t, fn)
}

// Dispatch delivers ev to document listeners. Pointer and touch presses
// without a target are hit-tested first.
func (d *Document) Dispatch(ev schemas.InputEvent) {
	if ev.Target == nil {
		switch ev.Type {
		case schemas.EventPointerDown:
			ev.Target = d.ElementFromPoint(ev.X, ev.Y)
		case schemas.EventTouchStart:
			if len(ev.Touches) > 0 {
				ev.Target = d.ElementFromPoint(ev.Touches[0].X, ev.Touches[0].Y)
			}
		}
	}
	d.events.Dispatch(ev)
}

// -- schemas.ChangeSource --

// Watch calls fn whenever el may have moved: a style or attribute write on
// el or an ancestor, attachment changes, or a viewport resize.
func (d *Document) Watch(el schemas.Element, fn func(schemas.ChangeKind)) func() {
	e, err := d.own(el)
	if err != nil {
		d.logger.Warn("Cannot watch a foreign element.", zap.Error(err))
		return func() {}
	}
	d.nextWatchID++
	w := &watch{id: d.nextWatchID, node: e.node, fn: fn}
	d.watches = append(d.watches, w)
	return func() { d.unwatch(w.id) }
}

func (d *Document) unwatch(id int) {
	for i, w := range d.watches {
		if w.id == id {
			d.watches = append(d.watches[:i:i], d.watches[i+1:]...)
			return
		}
	}
}

func (d *Document) snapshotWatches() []*watch {
	return append([]*watch(nil), d.watches...)
}

// notifyMutation tells watchers of changed and its descendants that their
// layout inputs changed.
func (d *Document) notifyMutation(changed *html.Node) {
	for _, w := range d.snapshotWatches() {
		if isAncestorOrSelf(changed, w.node) {
			w.fn(schemas.ChangeMutation)
		}
	}
}

// -- layout --

func (d *Document) wrap(n *html.Node) *Element {
	if e, ok := d.elements[n]; ok {
		return e
	}
	e := &Element{doc: d, node: n}
	d.elements[n] = e
	return e
}

func (d *Document) own(el schemas.Element) (*Element, error) {
	e, ok := el.(*Element)
	if !ok || e == nil || e.doc != d {
		return nil, fmt.Errorf("dom: element does not belong to this document")
	}
	return e, nil
}

func (d *Document) styles(n *html.Node) style.Declarations {
	return style.Parse(htmlquery.SelectAttr(n, "style"))
}

func (d *Document) connected(n *html.Node) bool {
	return isAncestorOrSelf(d.root, n)
}

// layoutRect computes the viewport-space bounding box of n.
func (d *Document) layoutRect(n *html.Node) schemas.Rect {
	if n == nil || n.Type != html.ElementNode || !d.connected(n) {
		return schemas.Rect{}
	}
	for a := n; a != nil && a.Type == html.ElementNode; a = a.Parent {
		if !layout.IsDisplayed(d.styles(a)) {
			return schemas.Rect{}
		}
	}
	if n == d.body || n.DataAtom == atom.Html {
		return d.viewport.Rect()
	}

	s := d.styles(n)
	parentRect := d.layoutRect(n.Parent)
	origin := schemas.Point{X: parentRect.Left, Y: parentRect.Top}

	var cb schemas.Rect
	switch layout.PositionOf(s) {
	case layout.PositionFixed:
		cb = d.viewport.Rect()
	case layout.PositionAbsolute:
		cb = d.containingBlock(n)
	default:
		cb = parentRect
	}
	box := layout.ResolveBox(s, cb, origin, d.viewport)
	return layout.BoundingRect(s, box, d.viewport)
}

// containingBlock returns the rect of the nearest positioned ancestor, or
// the viewport when there is none.
func (d *Document) containingBlock(n *html.Node) schemas.Rect {
	for a := n.Parent; a != nil && a.Type == html.ElementNode; a = a.Parent {
		if a == d.body {
			break
		}
		if layout.IsPositioned(d.styles(a)) {
			return d.layoutRect(a)
		}
	}
	return d.viewport.Rect()
}

// pointerEvents resolves the inherited pointer-events property.
func (d *Document) pointerEvents(n *html.Node) bool {
	for a := n; a != nil && a.Type == html.ElementNode; a = a.Parent {
		if v := d.styles(a).Get("pointer-events"); v != "" {
			return v != "none"
		}
	}
	return true
}

// zIndex returns the z-index of the nearest positioned ancestor-or-self that
// sets one. This flattens stacking contexts, which is enough for overlays.
func (d *Document) zIndex(n *html.Node) int {
	for a := n; a != nil && a.Type == html.ElementNode; a = a.Parent {
		s := d.styles(a)
		if v := s.Get("z-index"); v != "" && layout.PositionOf(s) != layout.PositionStatic {
			if z, err := strconv.Atoi(v); err == nil {
				return z
			}
		}
	}
	return 0
}

func isAncestorOrSelf(ancestor, n *html.Node) bool {
	for a := n; a != nil; a = a.Parent {
		if a == ancestor {
			return true
		}
	}
	return false
}
