package cdp

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/boxedit/api/schemas"
)

// Element is a registered node of a Page. Methods that cannot return an
// error report zero values when the evaluation fails.
type Element struct {
	page *Page
	id   string
}

var _ schemas.Element = (*Element)(nil)

func (e *Element) ID() string { return e.id }

func (e *Element) Style(property string) string {
	v, err := eval[string](context.Background(), e.page, js(`const el = R.get(%s);
return el ? el.style.getPropertyValue(%s) : "";`, e.id, property))
	if err != nil {
		e.debug("Style read failed.", err)
	}
	return v
}

// SetStyle writes an inline property; an empty value removes it. Detached
// elements return schemas.ErrDetached.
func (e *Element) SetStyle(property, value string) error {
	ok, err := eval[bool](context.Background(), e.page, js(`const el = R.get(%s);
if (!el || !el.isConnected) return false;
if (%[3]s === "") el.style.removeProperty(%[2]s); else el.style.setProperty(%[2]s, %[3]s);
return true;`, e.id, property, value))
	if err != nil {
		return err
	}
	if !ok {
		return schemas.ErrDetached
	}
	return nil
}

func (e *Element) BoundingClientRect() schemas.Rect {
	r, err := eval[schemas.Rect](context.Background(), e.page, js(`const el = R.get(%s);
if (!el || !el.isConnected) return {left: 0, top: 0, width: 0, height: 0};
const r = el.getBoundingClientRect();
return {left: r.left, top: r.top, width: r.width, height: r.height};`, e.id))
	if err != nil {
		e.debug("Rect read failed.", err)
	}
	return r
}

func (e *Element) Parent() schemas.Element {
	p, err := e.page.register(context.Background(), js("(R.get(%s) || {}).parentElement", e.id))
	if err != nil {
		e.debug("Parent lookup failed.", err)
		return nil
	}
	if p == nil {
		return nil
	}
	return p
}

func (e *Element) IsConnected() bool {
	ok, err := eval[bool](context.Background(), e.page, js(`const el = R.get(%s);
return !!el && el.isConnected;`, e.id))
	if err != nil {
		e.debug("Connection check failed.", err)
	}
	return ok
}

func (e *Element) Attr(name string) string {
	v, err := eval[string](context.Background(), e.page, js(`const el = R.get(%s);
return (el && el.getAttribute(%s)) || "";`, e.id, name))
	if err != nil {
		e.debug("Attribute read failed.", err)
	}
	return v
}

// SetAttr sets an attribute. Detached elements accept it so they can be
// prepared before insertion.
func (e *Element) SetAttr(name, value string) error {
	res, err := eval[string](context.Background(), e.page, js(`const el = R.get(%s);
if (!el) return "missing";
el.setAttribute(%s, %s);
return "";`, e.id, name, value))
	if err != nil {
		return err
	}
	return e.page.outcome(e.id, res)
}

// AppendElement moves child to the end of e's children.
func (e *Element) AppendElement(child schemas.Element) error {
	c, err := e.page.own(child)
	if err != nil {
		return err
	}
	res, err := eval[string](context.Background(), e.page, js(`const p = R.get(%s), c = R.get(%s);
if (!p || !c) return "missing";
if (c.contains(p)) return "cycle";
p.appendChild(c);
return "";`, e.id, c.id))
	if err != nil {
		return err
	}
	return e.page.outcome(c.id, res)
}

func (e *Element) debug(msg string, err error) {
	e.page.logger.Debug(msg, zap.String("element", e.id), zap.Error(err))
}
