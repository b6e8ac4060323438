package overlay

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/beevik/etree"

	"github.com/xkilldash9x/boxedit/api/schemas"
)

const snapshotMargin = 16

// Snapshot renders the target, its parent and the handles as an SVG
// document in viewport coordinates. parent may be a zero Rect when unknown.
func (v *View) Snapshot(parent schemas.Rect) *etree.Document {
	v.mu.Lock()
	target, size, color := v.rect, v.cfg.HandleSize, v.cfg.BorderColor
	v.mu.Unlock()

	view := target
	if parent.Valid() {
		view = union(parent, target)
	}
	view = schemas.Rect{
		Left:   view.Left - snapshotMargin,
		Top:    view.Top - snapshotMargin,
		Width:  view.Width + 2*snapshotMargin,
		Height: view.Height + 2*snapshotMargin,
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	svg := doc.CreateElement("svg")
	svg.CreateAttr("xmlns", "http://www.w3.org/2000/svg")
	svg.CreateAttr("viewBox", fmt.Sprintf("%s %s %s %s", num(view.Left), num(view.Top), num(view.Width), num(view.Height)))
	svg.CreateAttr("width", num(view.Width))
	svg.CreateAttr("height", num(view.Height))
	svg.CreateAttr("data-node-id", v.nodeID)

	if parent.Valid() {
		p := rectElement(svg, "parent", parent)
		p.CreateAttr("fill", "none")
		p.CreateAttr("stroke", "#999999")
		p.CreateAttr("stroke-dasharray", "4 2")
	}
	t := rectElement(svg, "target", target)
	t.CreateAttr("fill", "none")
	t.CreateAttr("stroke", color)
	t.CreateAttr("stroke-width", "2")

	handles := svg.CreateElement("g")
	handles.CreateAttr("id", "handles")
	for _, kind := range schemas.ResizeHandles {
		r, _ := handleRect(target, kind, size)
		h := rectElement(handles, "handle-"+kind.String(), r)
		h.CreateAttr(HandleAttr, kind.String())
		h.CreateAttr("fill", color)
		h.CreateAttr("stroke", "white")
	}

	c := target.Center()
	label := svg.CreateElement("text")
	label.CreateAttr("x", num(target.Left))
	label.CreateAttr("y", num(target.Top-size))
	label.CreateAttr("font-size", "10")
	label.SetText(fmt.Sprintf("%s (%s, %s) %s×%s", v.nodeID, num(c.X), num(c.Y), num(target.Width), num(target.Height)))
	doc.Indent(2)
	return doc
}

// WriteSVG writes Snapshot(parent) to w.
func (v *View) WriteSVG(w io.Writer, parent schemas.Rect) error {
	if _, err := v.Snapshot(parent).WriteTo(w); err != nil {
		return fmt.Errorf("overlay: writing svg: %w", err)
	}
	return nil
}

func rectElement(parent *etree.Element, id string, r schemas.Rect) *etree.Element {
	el := parent.CreateElement("rect")
	el.CreateAttr("id", id)
	el.CreateAttr("x", num(r.Left))
	el.CreateAttr("y", num(r.Top))
	el.CreateAttr("width", num(r.Width))
	el.CreateAttr("height", num(r.Height))
	return el
}

func union(a, b schemas.Rect) schemas.Rect {
	left, top := math.Min(a.Left, b.Left), math.Min(a.Top, b.Top)
	right, bottom := math.Max(a.Right(), b.Right()), math.Max(a.Bottom(), b.Bottom())
	return schemas.Rect{Left: left, Top: top, Width: right - left, Height: bottom - top}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
