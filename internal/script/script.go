// Package script reads YAML gesture scripts: a target element and the
// pointer, touch and key steps to replay against it.
package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/boxedit/api/schemas"
)

// Action is what a step does.
type Action int

const (
	ActionPointer Action = iota + 1
	ActionTouch
	ActionKey
	ActionViewport
	ActionDeselect
)

func (a Action) String() string {
	switch a {
	case ActionPointer:
		return "pointer"
	case ActionTouch:
		return "touch"
	case ActionKey:
		return "key"
	case ActionViewport:
		return "viewport"
	case ActionDeselect:
		return "deselect"
	default:
		return "unknown"
	}
}

// Step is one line of a script. Exactly one of Pointer, Touch, Key,
// Viewport and Deselect is set.
type Step struct {
	Pointer  string    `yaml:"pointer,omitempty"`
	Touch    string    `yaml:"touch,omitempty"`
	Key      string    `yaml:"key,omitempty"`
	Viewport []float64 `yaml:"viewport,omitempty,flow"`
	Deselect bool      `yaml:"deselect,omitempty"`

	// Handle presses at the centre of the named overlay handle.
	Handle string `yaml:"handle,omitempty"`
	// At is an absolute viewport position.
	At []float64 `yaml:"at,omitempty,flow"`
	// By is relative to the previous pointer position.
	By []float64 `yaml:"by,omitempty,flow"`
	// PointerID defaults to 1.
	PointerID int `yaml:"pointer_id,omitempty"`

	Modifiers []string `yaml:"modifiers,omitempty,flow"`
	// KeyName is the DOM key value, e.g. "Escape".
	KeyName string `yaml:"key_name,omitempty"`

	// Resolved by Validate.
	action  Action
	handle  schemas.HandleKind
	mods    schemas.KeyModifier
	pointer schemas.Point
}

// Action returns the validated action of the step.
func (s Step) Action() Action { return s.action }

// HandleKind returns the validated handle, or HandleInvalid when none.
func (s Step) HandleKind() schemas.HandleKind { return s.handle }

// ModifierMask returns the validated modifier bitmask.
func (s Step) ModifierMask() schemas.KeyModifier { return s.mods }

// Position returns At or By as a point; ok is false when neither is set.
func (s Step) Position() (p schemas.Point, relative, ok bool) {
	switch {
	case len(s.At) == 2:
		return schemas.Point{X: s.At[0], Y: s.At[1]}, false, true
	case len(s.By) == 2:
		return schemas.Point{X: s.By[0], Y: s.By[1]}, true, true
	}
	return schemas.Point{}, false, false
}

// Phase returns the sub-action ("down", "move", "start", ...).
func (s Step) Phase() string {
	switch s.action {
	case ActionPointer:
		return s.Pointer
	case ActionTouch:
		return s.Touch
	case ActionKey:
		return s.Key
	}
	return ""
}

// Script is a parsed gesture script.
type Script struct {
	// Name is the file the script came from, if any.
	Name string `yaml:"-"`
	// Target selects the edited element: an XPath for in-memory documents,
	// a CSS selector for Chrome pages.
	Target    string  `yaml:"target"`
	MinWidth  float64 `yaml:"min_width,omitempty"`
	MinHeight float64 `yaml:"min_height,omitempty"`
	Steps     []Step  `yaml:"steps"`
}

var phases = map[Action][]string{
	ActionPointer: {"down", "move", "up", "cancel"},
	ActionTouch:   {"start", "move", "end", "cancel"},
	ActionKey:     {"down", "up"},
}

// Parse decodes and validates a script. Unknown keys are rejected.
func Parse(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Script
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("script: empty document")
		}
		return nil, fmt.Errorf("script: decoding: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// ParseBytes is Parse for a byte slice.
func ParseBytes(b []byte) (*Script, error) {
	return Parse(bytes.NewReader(b))
}

// Load reads and parses the script at path.
func Load(path string) (*Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script: reading %s: %w", path, err)
	}
	s, err := ParseBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.Name = path
	return s, nil
}

// Validate checks every step and resolves handles and modifiers.
func (s *Script) Validate() error {
	if strings.TrimSpace(s.Target) == "" {
		return fmt.Errorf("script: target is required")
	}
	if s.MinWidth < 0 || s.MinHeight < 0 {
		return fmt.Errorf("script: min_width and min_height must not be negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("script: no steps")
	}
	for i := range s.Steps {
		if err := s.Steps[i].validate(); err != nil {
			return fmt.Errorf("script: step %d: %w", i+1, err)
		}
	}
	return nil
}

func (st *Step) validate() error {
	var actions []Action
	if st.Pointer != "" {
		actions = append(actions, ActionPointer)
	}
	if st.Touch != "" {
		actions = append(actions, ActionTouch)
	}
	if st.Key != "" {
		actions = append(actions, ActionKey)
	}
	if st.Viewport != nil {
		actions = append(actions, ActionViewport)
	}
	if st.Deselect {
		actions = append(actions, ActionDeselect)
	}
	if len(actions) != 1 {
		return fmt.Errorf("exactly one of pointer, touch, key, viewport, deselect is required")
	}
	st.action = actions[0]

	mods, unknown := schemas.ParseKeyModifiers(st.Modifiers)
	if len(unknown) > 0 {
		return fmt.Errorf("unknown modifiers %v", unknown)
	}
	st.mods = mods
	if st.PointerID == 0 {
		st.PointerID = 1
	}

	switch st.action {
	case ActionViewport:
		if len(st.Viewport) != 2 || st.Viewport[0] <= 0 || st.Viewport[1] <= 0 {
			return fmt.Errorf("viewport needs a positive [width, height]")
		}
		return nil
	case ActionDeselect:
		return nil
	}

	phase := strings.ToLower(st.Phase())
	if !contains(phases[st.action], phase) {
		return fmt.Errorf("%s: unknown phase %q (want one of %s)", st.action, st.Phase(), strings.Join(phases[st.action], ", "))
	}
	switch st.action {
	case ActionPointer:
		st.Pointer = phase
	case ActionTouch:
		st.Touch = phase
	case ActionKey:
		st.Key = phase
		if st.KeyName == "" && st.mods == schemas.ModNone {
			return fmt.Errorf("key: needs key_name or modifiers")
		}
		return nil
	}

	if st.At != nil && len(st.At) != 2 {
		return fmt.Errorf("at needs [x, y]")
	}
	if st.By != nil && len(st.By) != 2 {
		return fmt.Errorf("by needs [dx, dy]")
	}
	located := 0
	for _, set := range []bool{st.Handle != "", st.At != nil, st.By != nil} {
		if set {
			located++
		}
	}
	if located > 1 {
		return fmt.Errorf("use only one of handle, at, by")
	}
	if st.Handle != "" {
		h, err := schemas.ParseHandleKind(st.Handle)
		if err != nil {
			return err
		}
		st.handle = h
	}
	switch phase {
	case "up", "cancel", "end":
	default:
		if located == 0 {
			return fmt.Errorf("%s %s needs handle, at or by", st.action, phase)
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
