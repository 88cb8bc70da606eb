// File: internal/scenario/scenario.go
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/actuate/api/schemas"
)

// Scenario is a declarative driving script: an ordered list of steps run
// against one session.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Timeout and Interval override the session's wait timing for every step
	// that waits, unless the step sets its own timeout.
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty"`
	Steps    []Step        `yaml:"steps"`

	// Dir is the directory relative navigate targets are resolved against.
	Dir string `yaml:"-"`
}

// Target names an element by exactly one locator strategy.
type Target struct {
	XPath    string `yaml:"xpath,omitempty"`
	ID       string `yaml:"id,omitempty"`
	CSS      string `yaml:"css,omitempty"`
	LinkText string `yaml:"link_text,omitempty"`
}

// IsZero reports whether no strategy is set.
func (t Target) IsZero() bool { return t == Target{} }

// Locator converts the target into a driver locator.
func (t Target) Locator() (schemas.Locator, error) {
	var locs []schemas.Locator
	if t.XPath != "" {
		locs = append(locs, schemas.XPath(t.XPath))
	}
	if t.ID != "" {
		locs = append(locs, schemas.ByID(t.ID))
	}
	if t.CSS != "" {
		locs = append(locs, schemas.CSS(t.CSS))
	}
	if t.LinkText != "" {
		locs = append(locs, schemas.LinkText(t.LinkText))
	}
	switch len(locs) {
	case 1:
		return locs[0], nil
	case 0:
		return schemas.Locator{}, errors.New("target needs one of xpath, id, css or link_text")
	default:
		return schemas.Locator{}, fmt.Errorf("target sets %d locator strategies, want exactly one", len(locs))
	}
}

// Step is one scenario instruction. Exactly one field is set.
type Step struct {
	Navigate string      `yaml:"navigate,omitempty"`
	Await    *AwaitStep  `yaml:"await,omitempty"`
	Click    *Target     `yaml:"click,omitempty"`
	Type     *TypeStep   `yaml:"type,omitempty"`
	Chain    []ChainStep `yaml:"chain,omitempty"`
	Drag     *DragStep   `yaml:"drag,omitempty"`
	Invoke   *InvokeStep `yaml:"invoke,omitempty"`
	Switch   *SwitchStep `yaml:"switch,omitempty"`
	Dialog   *DialogStep `yaml:"dialog,omitempty"`
	Expect   *ExpectStep `yaml:"expect,omitempty"`

	// Line is the source line of the step, when parsed from YAML.
	Line int `yaml:"-"`
}

var stepKinds = []string{"navigate", "await", "click", "type", "chain", "drag", "invoke", "switch", "dialog", "expect"}

// Kind names the step's action, or "" when none or several are set.
func (s Step) Kind() string {
	kinds := s.kinds()
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

func (s Step) kinds() []string {
	var out []string
	add := func(set bool, k string) {
		if set {
			out = append(out, k)
		}
	}
	add(s.Navigate != "", "navigate")
	add(s.Await != nil, "await")
	add(s.Click != nil, "click")
	add(s.Type != nil, "type")
	add(s.Chain != nil, "chain")
	add(s.Drag != nil, "drag")
	add(s.Invoke != nil, "invoke")
	add(s.Switch != nil, "switch")
	add(s.Dialog != nil, "dialog")
	add(s.Expect != nil, "expect")
	return out
}

func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	key, err := singleKey(node, "step", stepKinds)
	if err != nil {
		return err
	}
	type plain Step
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = Step(p)
	s.Line = node.Line
	if key == "dialog" && s.Dialog == nil {
		s.Dialog = &DialogStep{}
	}
	return nil
}

// AwaitStep waits for exactly one condition. AnyOf and AllOf compose nested
// conditions; a nested step must not set its own timeout.
type AwaitStep struct {
	Present   *Target     `yaml:"present,omitempty"`
	Visible   *Target     `yaml:"visible,omitempty"`
	Clickable *Target     `yaml:"clickable,omitempty"`
	Invisible *Target     `yaml:"invisible,omitempty"`
	Dialog    bool        `yaml:"dialog,omitempty"`
	Contexts  int         `yaml:"contexts,omitempty"`
	Title     string      `yaml:"title,omitempty"`
	URL       string      `yaml:"url,omitempty"`
	AnyOf     []AwaitStep `yaml:"any_of,omitempty"`
	AllOf     []AwaitStep `yaml:"all_of,omitempty"`

	Timeout time.Duration `yaml:"timeout,omitempty"`
}

func (a AwaitStep) conditions() int {
	n := 0
	for _, set := range []bool{
		a.Present != nil, a.Visible != nil, a.Clickable != nil, a.Invisible != nil,
		a.Dialog, a.Contexts > 0, a.Title != "", a.URL != "",
		len(a.AnyOf) > 0, len(a.AllOf) > 0,
	} {
		if set {
			n++
		}
	}
	return n
}

// TypeStep focuses the target with a click and types Text into it.
type TypeStep struct {
	Target `yaml:",inline"`
	Text   string `yaml:"text"`
}

// DragStep drags the target by DX, DY pixels.
type DragStep struct {
	Target `yaml:",inline"`
	DX     float64 `yaml:"dx"`
	DY     float64 `yaml:"dy"`
}

// InvokeStep applies a scripted effect to the target. Effect defaults to click;
// Value is what set_value assigns.
type InvokeStep struct {
	Target `yaml:",inline"`
	Effect schemas.Effect `yaml:"effect,omitempty"`
	Value  *string        `yaml:"value,omitempty"`
}

// ChainStep is one step of an action chain. Exactly one field is set. An
// empty Click or PressAndHold target acts at the current pointer position.
type ChainStep struct {
	MoveTo       *Target `yaml:"move_to,omitempty"`
	KeyDown      string  `yaml:"key_down,omitempty"`
	KeyUp        string  `yaml:"key_up,omitempty"`
	SendKeys     string  `yaml:"send_keys,omitempty"`
	PressAndHold *Target `yaml:"press_and_hold,omitempty"`
	Release      bool    `yaml:"release,omitempty"`
	Click        *Target `yaml:"click,omitempty"`
}

var chainKinds = []string{"move_to", "key_down", "key_up", "send_keys", "press_and_hold", "release", "click"}

func (c *ChainStep) UnmarshalYAML(node *yaml.Node) error {
	key, err := singleKey(node, "chain step", chainKinds)
	if err != nil {
		return err
	}
	type plain ChainStep
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = ChainStep(p)
	// "click:" with no value clicks at the pointer.
	switch key {
	case "click":
		if c.Click == nil {
			c.Click = &Target{}
		}
	case "press_and_hold":
		if c.PressAndHold == nil {
			c.PressAndHold = &Target{}
		}
	}
	return nil
}

func (c ChainStep) kinds() int {
	n := 0
	for _, set := range []bool{
		c.MoveTo != nil, c.KeyDown != "", c.KeyUp != "", c.SendKeys != "",
		c.PressAndHold != nil, c.Release, c.Click != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// SwitchStep moves focus to another browsing context. Exactly one field is set.
type SwitchStep struct {
	// New switches to a context opened since the last switch, waiting for
	// one to appear.
	New bool `yaml:"new,omitempty"`
	// Title switches to the first context, in handle order, whose title
	// contains the text.
	Title    string        `yaml:"title,omitempty"`
	Handle   string        `yaml:"handle,omitempty"`
	Original bool          `yaml:"original,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// DialogStep waits for a dialog in the focused context, optionally checks it,
// and answers it.
type DialogStep struct {
	Type    schemas.DialogType `yaml:"type,omitempty"`
	Message string             `yaml:"message,omitempty"`
	// Text is entered into a prompt before it is answered.
	Text    *string       `yaml:"text,omitempty"`
	Action  string        `yaml:"action,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

const (
	DialogAccept  = "accept"
	DialogDismiss = "dismiss"
)

// ExpectStep asserts on the page, waiting until the assertion holds. It
// checks either a property of the target, the focused context's title or URL,
// or the number of open contexts.
type ExpectStep struct {
	Target   `yaml:",inline"`
	Property string  `yaml:"property,omitempty"`
	Equals   *string `yaml:"equals,omitempty"`
	Contains string  `yaml:"contains,omitempty"`

	Title    string `yaml:"title,omitempty"`
	URL      string `yaml:"url,omitempty"`
	Contexts int    `yaml:"contexts,omitempty"`

	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// singleKey checks that node is a mapping with exactly one of the allowed keys.
func singleKey(node *yaml.Node, what string, allowed []string) (string, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return "", fmt.Errorf("line %d: %s must be a mapping with exactly one of: %s",
			node.Line, what, strings.Join(allowed, ", "))
	}
	key := node.Content[0].Value
	if !slices.Contains(allowed, key) {
		return "", fmt.Errorf("line %d: unknown %s %q", node.Content[0].Line, what, key)
	}
	return key, nil
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("scenario is empty")
		}
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Load reads and parses the scenario at path. Relative navigate targets are
// resolved against the file's directory.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolving scenario directory: %w", err)
	}
	sc.Dir = abs
	return sc, nil
}

// Validate reports every problem in the scenario at once.
func (sc *Scenario) Validate() error {
	var errs []error
	if strings.TrimSpace(sc.Name) == "" {
		errs = append(errs, errors.New("scenario name is required"))
	}
	if sc.Timeout < 0 || sc.Interval < 0 {
		errs = append(errs, errors.New("timeout and interval must not be negative"))
	}
	if len(sc.Steps) == 0 {
		errs = append(errs, errors.New("scenario has no steps"))
	}
	for i, st := range sc.Steps {
		if err := st.validate(); err != nil {
			errs = append(errs, stepPrefix(i, st, err))
		}
	}
	return errors.Join(errs...)
}

func stepPrefix(i int, st Step, err error) error {
	if st.Line > 0 {
		return fmt.Errorf("step %d (line %d): %w", i, st.Line, err)
	}
	return fmt.Errorf("step %d: %w", i, err)
}

func (s Step) validate() error {
	switch kinds := s.kinds(); len(kinds) {
	case 0:
		return errors.New("step has no action")
	case 1:
	default:
		return fmt.Errorf("step sets several actions: %s", strings.Join(kinds, ", "))
	}

	switch {
	case s.Await != nil:
		return s.Await.validate(true)
	case s.Click != nil:
		_, err := s.Click.Locator()
		return err
	case s.Type != nil:
		_, err := s.Type.Locator()
		return err
	case s.Chain != nil:
		if len(s.Chain) == 0 {
			return errors.New("chain is empty")
		}
		for j, c := range s.Chain {
			if err := c.validate(); err != nil {
				return fmt.Errorf("chain step %d: %w", j, err)
			}
		}
	case s.Drag != nil:
		_, err := s.Drag.Locator()
		return err
	case s.Invoke != nil:
		if _, err := s.Invoke.Locator(); err != nil {
			return err
		}
		switch s.Invoke.Effect {
		case "", schemas.EffectClick, schemas.EffectScrollIntoView:
			if s.Invoke.Value != nil {
				return fmt.Errorf("value is only used by the set_value effect")
			}
		case schemas.EffectSetValue:
			if s.Invoke.Value == nil {
				return fmt.Errorf("set_value needs a value")
			}
		default:
			return fmt.Errorf("unknown effect %q", s.Invoke.Effect)
		}
	case s.Switch != nil:
		n := 0
		for _, set := range []bool{s.Switch.New, s.Switch.Title != "", s.Switch.Handle != "", s.Switch.Original} {
			if set {
				n++
			}
		}
		if n != 1 {
			return errors.New("switch needs exactly one of new, title, handle or original")
		}
	case s.Dialog != nil:
		switch s.Dialog.Action {
		case "", DialogAccept, DialogDismiss:
		default:
			return fmt.Errorf("unknown dialog action %q", s.Dialog.Action)
		}
		switch s.Dialog.Type {
		case "", schemas.DialogAlert, schemas.DialogConfirm, schemas.DialogPrompt, schemas.DialogBeforeUnload:
		default:
			return fmt.Errorf("unknown dialog type %q", s.Dialog.Type)
		}
	case s.Expect != nil:
		return s.Expect.validate()
	}
	return nil
}

func (a AwaitStep) validate(top bool) error {
	if n := a.conditions(); n != 1 {
		return fmt.Errorf("await needs exactly one condition, got %d", n)
	}
	if !top && a.Timeout != 0 {
		return errors.New("nested conditions cannot set a timeout")
	}
	for _, t := range []*Target{a.Present, a.Visible, a.Clickable, a.Invisible} {
		if t != nil {
			if _, err := t.Locator(); err != nil {
				return err
			}
		}
	}
	for _, nested := range append(slices.Clone(a.AnyOf), a.AllOf...) {
		if err := nested.validate(false); err != nil {
			return err
		}
	}
	return nil
}

func (c ChainStep) validate() error {
	if n := c.kinds(); n != 1 {
		return fmt.Errorf("chain step needs exactly one action, got %d", n)
	}
	for _, k := range []string{c.KeyDown, c.KeyUp} {
		if k != "" {
			if _, err := schemas.ParseKey(k); err != nil {
				return err
			}
		}
	}
	for _, t := range []*Target{c.MoveTo, c.PressAndHold, c.Click} {
		if t != nil && !t.IsZero() {
			if _, err := t.Locator(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e ExpectStep) validate() error {
	subjects := 0
	for _, set := range []bool{!e.Target.IsZero(), e.Title != "", e.URL != "", e.Contexts > 0} {
		if set {
			subjects++
		}
	}
	if subjects != 1 {
		return errors.New("expect needs exactly one of a target, title, url or contexts")
	}
	if e.Target.IsZero() {
		return nil
	}
	if _, err := e.Locator(); err != nil {
		return err
	}
	if (e.Equals == nil) == (e.Contains == "") {
		return errors.New("expect on an element needs exactly one of equals or contains")
	}
	return nil
}
