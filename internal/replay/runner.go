// Package replay runs gesture scripts against a page through the whole
// editor: RectObserver, EditableBox, OverlayView and InteractionController.
package replay

import (
	"context"
	"fmt"
	"sync"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/boxedit/api/schemas"
	"github.com/xkilldash9x/boxedit/internal/boxerr"
	"github.com/xkilldash9x/boxedit/internal/config"
	"github.com/xkilldash9x/boxedit/internal/editbox"
	"github.com/xkilldash9x/boxedit/internal/events"
	"github.com/xkilldash9x/boxedit/internal/interaction"
	"github.com/xkilldash9x/boxedit/internal/overlay"
	"github.com/xkilldash9x/boxedit/internal/rectobserver"
	"github.com/xkilldash9x/boxedit/internal/script"
)

// ReportedStyles are the inline properties copied into a Report.
var ReportedStyles = []string{"left", "top", "width", "height", "transform"}

// Runner replays scripts. A Runner may run several scripts concurrently as
// long as each uses its own Page.
type Runner struct {
	logger *zap.Logger
	cfg    config.Interface
	bus    *events.Bus
	// Snapshot adds an SVG of the overlay to each report.
	Snapshot bool
}

// NewRunner creates a runner. bus may be nil; when set, every box publishes
// its hooks and errors to it.
func NewRunner(cfg config.Interface, logger *zap.Logger, bus *events.Bus) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger.Named("replay"), cfg: cfg, bus: bus}
}

// HookCounts counts hook invocations.
type HookCounts struct {
	Enter  int `json:"enter"`
	Exit   int `json:"exit"`
	Drag   int `json:"drag"`
	Cancel int `json:"cancel"`
}

// StepError is an editor error reported while a step ran. Step 0 is setup
// or teardown.
type StepError struct {
	Step    int    `json:"step"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Report is the outcome of one script.
type Report struct {
	Script    string                 `json:"script,omitempty"`
	Target    string                 `json:"target"`
	NodeID    string                 `json:"node_id"`
	Mode      editbox.Mode           `json:"mode"`
	Committed *schemas.PercentCSS    `json:"committed,omitempty"`
	Percent   *schemas.PercentBounds `json:"percent,omitempty"`
	// Bounds is the last pixel bounds reported by a drag update.
	Bounds *schemas.Bounds   `json:"bounds,omitempty"`
	Rect   schemas.Rect      `json:"rect"`
	Style  map[string]string `json:"style"`
	Hooks  HookCounts        `json:"hooks"`
	Errors []StepError       `json:"errors,omitempty"`
	Steps  int               `json:"steps"`
	SVG    *etree.Document   `json:"-"`
}

// recorder collects hook calls and errors for a report.
type recorder struct {
	mu        sync.Mutex
	step      int
	precision int
	report    *Report
}

func (r *recorder) setStep(i int) {
	r.mu.Lock()
	r.step = i
	r.mu.Unlock()
}

func (r *recorder) hooks() editbox.Hooks {
	return editbox.Hooks{
		OnEnterEditing: func() {
			r.mu.Lock()
			r.report.Hooks.Enter++
			r.mu.Unlock()
		},
		OnExitEditing: func(pb schemas.PercentBounds) {
			css := pb.CSS(r.precision)
			r.mu.Lock()
			r.report.Hooks.Exit++
			r.report.Percent, r.report.Committed = &pb, &css
			r.mu.Unlock()
		},
		OnDragUpdate: func(b schemas.Bounds) {
			r.mu.Lock()
			r.report.Hooks.Drag++
			r.report.Bounds = &b
			r.mu.Unlock()
		},
		OnCancel: func() {
			r.mu.Lock()
			r.report.Hooks.Cancel++
			r.mu.Unlock()
		},
	}
}

func (r *recorder) HandleError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Errors = append(r.report.Errors, StepError{
		Step:    r.step,
		Kind:    boxerr.KindOf(err).String(),
		Message: err.Error(),
	})
}

// chainHooks calls a, then b.
func chainHooks(a, b editbox.Hooks) editbox.Hooks {
	return editbox.Hooks{
		OnEnterEditing: func() {
			if a.OnEnterEditing != nil {
				a.OnEnterEditing()
			}
			if b.OnEnterEditing != nil {
				b.OnEnterEditing()
			}
		},
		OnExitEditing: func(pb schemas.PercentBounds) {
			if a.OnExitEditing != nil {
				a.OnExitEditing(pb)
			}
			if b.OnExitEditing != nil {
				b.OnExitEditing(pb)
			}
		},
		OnDragUpdate: func(bb schemas.Bounds) {
			if a.OnDragUpdate != nil {
				a.OnDragUpdate(bb)
			}
			if b.OnDragUpdate != nil {
				b.OnDragUpdate(bb)
			}
		},
		OnCancel: func() {
			if a.OnCancel != nil {
				a.OnCancel()
			}
			if b.OnCancel != nil {
				b.OnCancel()
			}
		},
	}
}

// editor is the engine wired onto one page for one target.
type editor struct {
	page     Page
	target   schemas.Element
	observer *rectobserver.Observer
	box      *editbox.EditableBox
	view     *overlay.View
	ctrl     *interaction.Controller
}

func (r *Runner) wire(ctx context.Context, page Page, s *script.Script, rec *recorder) (*editor, error) {
	target, err := page.Find(ctx, s.Target)
	if err != nil {
		return nil, fmt.Errorf("replay: finding target %q: %w", s.Target, err)
	}

	observer := rectobserver.New(r.logger, r.cfg.Observer(), page.Source())

	editorCfg := r.cfg.Editor()
	if s.MinWidth > 0 {
		editorCfg.MinWidth = s.MinWidth
	}
	if s.MinHeight > 0 {
		editorCfg.MinHeight = s.MinHeight
	}
	rec.precision = editorCfg.PercentPrecision
	nodeID := "bb-" + uuid.NewString()
	opts := editbox.OptionsFromConfig(editorCfg, r.logger)
	opts.NodeID = nodeID
	opts.Observer = observer
	opts.Hooks = rec.hooks()
	opts.Errors = rec
	if r.bus != nil {
		pub := events.NewPublisher(r.bus, nodeID, r.cfg.Events().PublishTimeout, editorCfg.PercentPrecision, r.logger)
		opts.Hooks = chainHooks(opts.Hooks, pub.Hooks())
		opts.Errors = pub.ErrorHandler(rec)
	}
	box, err := editbox.New(target, opts)
	if err != nil {
		return nil, err
	}

	view := overlay.New(r.logger, page, target, observer, box.NodeID(), r.cfg.Overlay())
	if err := view.Create(); err != nil {
		return nil, fmt.Errorf("replay: creating overlay: %w", err)
	}
	ctrl := interaction.New(box, view, page, interaction.Options{
		DragThreshold: editorCfg.DragThreshold,
		Logger:        r.logger,
		Errors:        opts.Errors,
	})
	ctrl.Attach()
	return &editor{page: page, target: target, observer: observer, box: box, view: view, ctrl: ctrl}, nil
}

// Run replays s against page and reports the final state. A press still
// held after the last step is released as if the pointer went up. The
// returned error covers setup and page failures; editor errors are part of
// the report.
func (r *Runner) Run(ctx context.Context, page Page, s *script.Script) (*Report, error) {
	report := &Report{Script: s.Name, Target: s.Target, Style: make(map[string]string)}
	rec := &recorder{report: report}

	ed, err := r.wire(ctx, page, s, rec)
	if err != nil {
		return nil, err
	}
	report.NodeID = ed.box.NodeID()
	logger := r.logger.With(zap.String("node_id", report.NodeID), zap.String("script", s.Name))
	logger.Info("Replaying script.", zap.String("target", s.Target), zap.Int("steps", len(s.Steps)))

	p := &player{editor: ed, held: schemas.ModNone}
	for i := range s.Steps {
		if err := ctx.Err(); err != nil {
			ed.teardown(rec)
			return nil, err
		}
		rec.setStep(i + 1)
		if err := p.play(ctx, s.Steps[i]); err != nil {
			ed.teardown(rec)
			return nil, fmt.Errorf("replay: step %d (%s): %w", i+1, s.Steps[i].Action(), err)
		}
		if page.Source() == nil {
			ed.observer.Poll()
		}
		report.Steps++
	}

	rec.setStep(0)
	ed.ctrl.Detach()
	if page.Source() == nil {
		ed.observer.Poll()
	}

	report.Mode = ed.box.Mode()
	report.Rect = ed.observer.GetRect(ed.target)
	for _, prop := range ReportedStyles {
		if v := ed.target.Style(prop); v != "" {
			report.Style[prop] = v
		}
	}
	if r.Snapshot {
		parent, _ := ed.observer.StableParentRect(ed.target)
		report.SVG = ed.view.Snapshot(parent)
	}
	ed.teardown(rec)

	logger.Info("Script replayed.",
		zap.Stringer("mode", report.Mode),
		zap.Int("errors", len(report.Errors)),
		zap.Int("drag_updates", report.Hooks.Drag))
	return report, nil
}

func (e *editor) teardown(rec *recorder) {
	e.ctrl.Detach()
	if err := e.view.Destroy(); err != nil {
		rec.HandleError(err)
	}
}

// player turns steps into input events.
type player struct {
	*editor
	pos  schemas.Point
	held schemas.KeyModifier
}

var modifierKeys = []struct {
	mod  schemas.KeyModifier
	name string
}{
	{schemas.ModShift, "Shift"},
	{schemas.ModAlt, "Alt"},
	{schemas.ModCtrl, "Control"},
	{schemas.ModMeta, "Meta"},
}

func (p *player) play(ctx context.Context, st script.Step) error {
	switch st.Action() {
	case script.ActionPointer, script.ActionTouch:
		pos, err := p.locate(st)
		if err != nil {
			return err
		}
		p.pos = pos
		ev := schemas.InputEvent{
			Type:      eventType(st),
			PointerID: st.PointerID,
			X:         pos.X,
			Y:         pos.Y,
			Modifiers: p.held,
		}
		if st.Action() == script.ActionTouch && (st.Phase() == "start" || st.Phase() == "move") {
			ev.Touches = []schemas.TouchPoint{{ID: st.PointerID, X: pos.X, Y: pos.Y}}
		}
		return p.page.Dispatch(ctx, ev)

	case script.ActionKey:
		mods := st.ModifierMask()
		if st.Phase() == "down" {
			p.held |= mods
		} else {
			p.held &^= mods
		}
		key := st.KeyName
		if key == "" {
			for _, m := range modifierKeys {
				if mods.Has(m.mod) {
					key = m.name
					break
				}
			}
		}
		t := schemas.EventKeyDown
		if st.Phase() == "up" {
			t = schemas.EventKeyUp
		}
		return p.page.Dispatch(ctx, schemas.InputEvent{Type: t, Key: key, Modifiers: p.held})

	case script.ActionViewport:
		return p.page.Resize(ctx, st.Viewport[0], st.Viewport[1])

	case script.ActionDeselect:
		// Commit failures reach the report through the box's error handler.
		_ = p.ctrl.Deselect()
		return nil
	}
	return fmt.Errorf("unknown action %s", st.Action())
}

// locate resolves the position of a pointer or touch step. Steps without a
// location reuse the previous position.
func (p *player) locate(st script.Step) (schemas.Point, error) {
	if h := st.HandleKind(); h != schemas.HandleInvalid {
		r, ok := p.view.HandleRect(h)
		if !ok {
			return schemas.Point{}, fmt.Errorf("overlay has no %s handle", h)
		}
		return r.Center(), nil
	}
	at, relative, ok := st.Position()
	switch {
	case !ok:
		return p.pos, nil
	case relative:
		return schemas.Point{X: p.pos.X + at.X, Y: p.pos.Y + at.Y}, nil
	}
	return at, nil
}

func eventType(st script.Step) schemas.EventType {
	if st.Action() == script.ActionTouch {
		switch st.Phase() {
		case "start":
			return schemas.EventTouchStart
		case "move":
			return schemas.EventTouchMove
		case "end":
			return schemas.EventTouchEnd
		}
		return schemas.EventTouchCancel
	}
	switch st.Phase() {
	case "down":
		return schemas.EventPointerDown
	case "move":
		return schemas.EventPointerMove
	case "up":
		return schemas.EventPointerUp
	}
	return schemas.EventPointerCancel
}
