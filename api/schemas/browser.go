package schemas

import (
	"fmt"
	"sort"
)

// -- Context Schemas --

// Handle is an opaque token naming a browsing context (tab or window).
// Handles are minted by the driver and are only meaningful to it.
type Handle string

// HandleSet is an unordered set of context handles.
type HandleSet map[Handle]struct{}

// NewHandleSet builds a set from the given handles.
func NewHandleSet(handles ...Handle) HandleSet {
	s := make(HandleSet, len(handles))
	for _, h := range handles {
		s[h] = struct{}{}
	}
	return s
}

// Contains reports whether h is a member of the set.
func (s HandleSet) Contains(h Handle) bool {
	_, ok := s[h]
	return ok
}

// Diff returns the handles present in s but not in other.
func (s HandleSet) Diff(other HandleSet) HandleSet {
	out := make(HandleSet)
	for h := range s {
		if !other.Contains(h) {
			out[h] = struct{}{}
		}
	}
	return out
}

// Sorted returns the handles in lexical order. The order carries no meaning
// beyond making logs and test output stable.
func (s HandleSet) Sorted() []Handle {
	out := make([]Handle, 0, len(s))
	for h := range s {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ContextInfo describes a context so callers can tell contexts apart after switching.
type ContextInfo struct {
	Handle Handle `json:"handle" yaml:"handle"`
	Title  string `json:"title" yaml:"title"`
	URL    string `json:"url" yaml:"url"`
}

// -- Locator and Element Schemas --

// LocatorStrategy names how a locator query is interpreted by the driver.
type LocatorStrategy string

const (
	StrategyXPath    LocatorStrategy = "xpath"
	StrategyID       LocatorStrategy = "id"
	StrategyCSS      LocatorStrategy = "css"
	StrategyLinkText LocatorStrategy = "link_text"
)

// Locator is an opaque query description resolved by the driver.
type Locator struct {
	Strategy LocatorStrategy `json:"strategy" yaml:"strategy"`
	Query    string          `json:"query" yaml:"query"`
}

func XPath(q string) Locator    { return Locator{Strategy: StrategyXPath, Query: q} }
func ByID(id string) Locator    { return Locator{Strategy: StrategyID, Query: id} }
func CSS(q string) Locator      { return Locator{Strategy: StrategyCSS, Query: q} }
func LinkText(t string) Locator { return Locator{Strategy: StrategyLinkText, Query: t} }

func (l Locator) String() string {
	return fmt.Sprintf("%s=%q", l.Strategy, l.Query)
}

// Element is a transient reference to a node in some context's document.
// It can become stale at any time if the underlying node is removed or the
// context navigates.
type Element struct {
	ID      string  `json:"id"`
	Context Handle  `json:"context"`
	Locator Locator `json:"locator"`
}

func (e Element) String() string {
	return fmt.Sprintf("element %s (%s in %s)", e.ID, e.Locator, e.Context)
}

// ElementState is the snapshot of an element's interactability.
type ElementState struct {
	Attached bool `json:"attached"`
	Visible  bool `json:"visible"`
	Enabled  bool `json:"enabled"`
}

// -- Dialog Schemas --

// DialogType is the kind of modal dialog raised by a page.
type DialogType string

const (
	DialogAlert        DialogType = "alert"
	DialogConfirm      DialogType = "confirm"
	DialogPrompt       DialogType = "prompt"
	DialogBeforeUnload DialogType = "beforeunload"
)

// Dialog is a modal prompt raised by a context. At most one is active per context.
type Dialog struct {
	Type          DialogType `json:"type"`
	Message       string     `json:"message"`
	DefaultPrompt string     `json:"default_prompt,omitempty"`
	Context       Handle     `json:"context"`
}
