// Package cdp implements the editor's document interfaces on a live Chrome
// tab. Elements are handles into a registry kept on the page; every
// operation is a short JavaScript evaluation bounded by a timeout.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/boxedit/api/schemas"
	"github.com/xkilldash9x/boxedit/internal/browser/eventtarget"
	"github.com/xkilldash9x/boxedit/internal/config"
)

const defaultTimeout = 10 * time.Second

// registry installs window.__boxedit, which maps ids to nodes. Ids are
// chosen by the caller; a node keeps the first id it was registered under.
const registry = `window.__boxedit = window.__boxedit || (function () {
	const byId = new Map();
	const ids = new WeakMap();
	return {
		get(id) { return byId.get(id) || null; },
		register(node, id) {
			if (!node || node.nodeType !== 1) return "";
			if (ids.has(node)) return ids.get(node);
			ids.set(node, id);
			byId.set(id, node);
			return id;
		},
	};
})();
`

// Page is a Chrome tab. Input events are not sent to Chrome; Dispatch
// hit-tests in the page and delivers them to Go listeners.
type Page struct {
	logger      *zap.Logger
	cfg         config.BrowserConfig
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	timeout     time.Duration
	events      *eventtarget.Target

	mu       sync.Mutex
	elements map[string]*Element
}

var _ schemas.Document = (*Page)(nil)
var _ schemas.EventTarget = (*Page)(nil)

// Open starts a browser as configured and opens a blank tab sized to the
// configured viewport.
func Open(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Page, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(cfg.Viewport.Width, cfg.Viewport.Height),
	)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancel := chromedp.NewContext(allocCtx)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	p := &Page{
		logger:      logger.Named("cdp"),
		cfg:         cfg,
		ctx:         tabCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		timeout:     timeout,
		events:      eventtarget.New(),
		elements:    make(map[string]*Element),
	}
	// The first Run allocates the browser and must use the tab context
	// itself; a derived context would close the tab when it ends.
	if err := chromedp.Run(tabCtx); err != nil {
		p.Close()
		return nil, fmt.Errorf("cdp: starting browser: %w", err)
	}
	if err := p.Resize(ctx, float64(cfg.Viewport.Width), float64(cfg.Viewport.Height)); err != nil {
		p.Close()
		return nil, err
	}
	p.logger.Debug("Browser tab opened.", zap.Bool("headless", cfg.Headless))
	return p, nil
}

// Close shuts the tab and the browser.
func (p *Page) Close() {
	p.cancel()
	p.allocCancel()
}

// Navigate loads url. Elements obtained before navigating become detached.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("cdp: navigating to %s: %w", url, err)
	}
	p.mu.Lock()
	p.elements = make(map[string]*Element)
	p.mu.Unlock()
	return nil
}

// run executes actions on the tab. The operation ends at the page timeout
// or when ctx is done, whichever comes first.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	if err != nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("timed out after %s: %w", p.timeout, err)
	}
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// envelope carries every evaluation result so null and undefined never
// reach chromedp's decoder.
type envelope[T any] struct {
	V T `json:"v"`
}

// eval runs body as the body of a function receiving the registry as R and
// decodes its return value into a T.
func eval[T any](ctx context.Context, p *Page, body string) (T, error) {
	var zero T
	expr := registry + "JSON.stringify({v: (function (R) {\n" + body + "\n})(window.__boxedit)})"
	var raw string
	err := p.run(ctx, chromedp.Evaluate(expr, &raw, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithReturnByValue(true)
	}))
	if err != nil {
		return zero, fmt.Errorf("cdp: evaluating: %w", err)
	}
	var env envelope[T]
	if err := json.UnmarshalFromString(raw, &env); err != nil {
		return zero, fmt.Errorf("cdp: decoding %q: %w", raw, err)
	}
	return env.V, nil
}

// js formats a script, JSON-encoding every argument.
func js(format string, args ...interface{}) string {
	enc := make([]interface{}, len(args))
	for i, a := range args {
		enc[i] = literal(a)
	}
	return fmt.Sprintf(format, enc...)
}

func literal(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// element returns the Element for a registry id, or nil for "".
func (p *Page) element(id string) *Element {
	if id == "" {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.elements[id]; ok {
		return el
	}
	el := &Element{page: p, id: id}
	p.elements[id] = el
	return el
}

func (p *Page) own(el schemas.Element) (*Element, error) {
	e, ok := el.(*Element)
	if !ok || e == nil || e.page != p {
		return nil, fmt.Errorf("cdp: element %T does not belong to this page", el)
	}
	return e, nil
}

// register resolves an expression yielding a node to an Element.
func (p *Page) register(ctx context.Context, nodeExpr string) (*Element, error) {
	id, err := eval[string](ctx, p, "return R.register("+nodeExpr+", "+literal(uuid.NewString())+");")
	if err != nil {
		return nil, err
	}
	return p.element(id), nil
}

// Find returns the first element matching a CSS selector.
func (p *Page) Find(ctx context.Context, selector string) (schemas.Element, error) {
	el, err := p.register(ctx, js("document.querySelector(%s)", selector))
	if err != nil {
		return nil, fmt.Errorf("cdp: querying %q: %w", selector, err)
	}
	if el == nil {
		return nil, fmt.Errorf("cdp: no element matches %q", selector)
	}
	return el, nil
}

// -- schemas.Document --

func (p *Page) CreateElement(tag string) (schemas.Element, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return nil, fmt.Errorf("cdp: empty tag name")
	}
	el, err := p.register(context.Background(), js("document.createElement(%s)", tag))
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, fmt.Errorf("cdp: creating <%s> failed", tag)
	}
	return el, nil
}

func (p *Page) AppendToRoot(el schemas.Element) error {
	e, err := p.own(el)
	if err != nil {
		return err
	}
	res, err := eval[string](context.Background(), p, js(`const el = R.get(%s);
if (!el) return "missing";
if (el.parentNode) return "attached";
document.body.appendChild(el);
return "";`, e.id))
	if err != nil {
		return err
	}
	return p.outcome(e.id, res)
}

func (p *Page) RemoveElement(el schemas.Element) error {
	e, err := p.own(el)
	if err != nil {
		return err
	}
	_, err = eval[bool](context.Background(), p, js(`const el = R.get(%s);
if (el && el.parentNode) el.parentNode.removeChild(el);
return true;`, e.id))
	return err
}

func (p *Page) ElementFromPoint(x, y float64) schemas.Element {
	el, err := p.register(context.Background(), js("document.elementFromPoint(%s, %s)", x, y))
	if err != nil {
		p.logger.Debug("Hit test failed.", zap.Error(err))
		return nil
	}
	if el == nil {
		return nil
	}
	return el
}

func (p *Page) outcome(id, res string) error {
	switch res {
	case "":
		return nil
	case "missing":
		return fmt.Errorf("cdp: element %s: %w", id, schemas.ErrDetached)
	case "attached":
		return fmt.Errorf("cdp: element %s already has a parent", id)
	case "cycle":
		return fmt.Errorf("cdp: cannot append %s inside itself", id)
	}
	return fmt.Errorf("cdp: element %s: %s", id, res)
}

// -- schemas.EventTarget --

func (p *Page) AddEventListener(t schemas.EventType, fn func(schemas.InputEvent)) func() {
	return p.events.AddEventListener(t, fn)
}

// Dispatch delivers ev to the page's listeners. Presses without a target
// are hit-tested in the page first.
func (p *Page) Dispatch(ctx context.Context, ev schemas.InputEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.Target == nil {
		switch ev.Type {
		case schemas.EventPointerDown:
			ev.Target = p.ElementFromPoint(ev.X, ev.Y)
		case schemas.EventTouchStart:
			if len(ev.Touches) > 0 {
				ev.Target = p.ElementFromPoint(ev.Touches[0].X, ev.Touches[0].Y)
			}
		}
	}
	p.events.Dispatch(ev)
	return nil
}

// Resize changes the emulated viewport.
func (p *Page) Resize(ctx context.Context, width, height float64) error {
	if err := p.run(ctx, p.viewportAction(width, height)); err != nil {
		return fmt.Errorf("cdp: resizing viewport: %w", err)
	}
	return nil
}

func (p *Page) viewportAction(width, height float64) chromedp.Action {
	return emulation.SetDeviceMetricsOverride(int64(width), int64(height), 1, false)
}

// Source returns nil: Chrome layout changes are not pushed, so observers
// of this page poll.
func (p *Page) Source() schemas.ChangeSource { return nil }
