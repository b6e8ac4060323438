package replay

import (
	"context"

	"github.com/xkilldash9x/boxedit/api/schemas"
	"github.com/xkilldash9x/boxedit/internal/browser/dom"
	"github.com/xkilldash9x/boxedit/internal/browser/layout"
)

// Page is a document a script can be replayed against.
type Page interface {
	schemas.Document
	schemas.EventTarget
	// Find resolves a script target.
	Find(ctx context.Context, selector string) (schemas.Element, error)
	// Dispatch delivers ev to the page's listeners, hit-testing presses
	// that carry no target.
	Dispatch(ctx context.Context, ev schemas.InputEvent) error
	Resize(ctx context.Context, width, height float64) error
	// Source pushes layout changes, or is nil when the page must be polled.
	Source() schemas.ChangeSource
}

// DOMPage adapts an in-memory document. Targets are XPath expressions.
type DOMPage struct {
	*dom.Document
}

var _ Page = DOMPage{}

// NewDOMPage wraps doc.
func NewDOMPage(doc *dom.Document) DOMPage { return DOMPage{Document: doc} }

func (p DOMPage) Find(_ context.Context, selector string) (schemas.Element, error) {
	el, err := p.Query(selector)
	if err != nil {
		return nil, err
	}
	return el, nil
}

func (p DOMPage) Dispatch(ctx context.Context, ev schemas.InputEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.Document.Dispatch(ev)
	return nil
}

func (p DOMPage) Resize(ctx context.Context, width, height float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.SetViewport(layout.Viewport{Width: width, Height: height})
	return nil
}

func (p DOMPage) Source() schemas.ChangeSource { return p.Document }
