// browser/dom/element.go
package dom

import (
	"fmt"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/boxedit/api/schemas"
)

// Element wraps an html.Node. Each node has exactly one wrapper per
// document, so Elements can be compared and used as map keys.
type Element struct {
	doc  *Document
	node *html.Node
}

var _ schemas.Element = (*Element)(nil)

// Node exposes the underlying html node.
func (e *Element) Node() *html.Node { return e.node }

// ID returns the element's id attribute, or a unique XPath when it has none.
func (e *Element) ID() string {
	if id := htmlquery.SelectAttr(e.node, "id"); id != "" {
		return id
	}
	return UniqueXPath(e.node)
}

// Style returns the inline value of property.
func (e *Element) Style(property string) string {
	return e.doc.styles(e.node).Get(property)
}

// SetStyle writes an inline property. Detached elements reject writes with
// schemas.ErrDetached and are left untouched.
func (e *Element) SetStyle(property, value string) error {
	if !e.IsConnected() {
		return schemas.ErrDetached
	}
	decls := e.doc.styles(e.node).Set(property, value)
	setAttr(e.node, "style", decls.String())
	e.doc.notifyMutation(e.node)
	return nil
}

// BoundingClientRect returns the element's rendered box in viewport coordinates.
func (e *Element) BoundingClientRect() schemas.Rect {
	return e.doc.layoutRect(e.node)
}

// Parent returns the parent element, or nil at the top of the tree.
func (e *Element) Parent() schemas.Element {
	p := e.node.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return e.doc.wrap(p)
}

// IsConnected reports whether the element is attached to the document.
func (e *Element) IsConnected() bool {
	return e.doc.connected(e.node)
}

func (e *Element) Attr(name string) string {
	return htmlquery.SelectAttr(e.node, name)
}

// SetAttr sets an attribute. Detached elements accept attribute writes so
// they can be prepared before insertion.
func (e *Element) SetAttr(name, value string) error {
	setAttr(e.node, name, value)
	if e.IsConnected() {
		e.doc.notifyMutation(e.node)
	}
	return nil
}

// AppendElement attaches child, an element of the same document, as the
// last child of e, moving it if it already has a parent.
func (e *Element) AppendElement(child schemas.Element) error {
	c, err := e.doc.own(child)
	if err != nil {
		return err
	}
	if isAncestorOrSelf(c.node, e.node) {
		return fmt.Errorf("dom: cannot append %s inside itself", c.ID())
	}
	if c.node.Parent != nil {
		c.node.Parent.RemoveChild(c.node)
	}
	e.node.AppendChild(c.node)
	if c.IsConnected() {
		e.doc.notifyMutation(c.node)
	}
	return nil
}

func setAttr(n *html.Node, name, value string) {
	for i := range n.Attr {
		if n.Attr[i].Key == name && n.Attr[i].Namespace == "" {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}
