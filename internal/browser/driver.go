// Package browser wraps go-rod behind the narrow UI capability the probing
// logic consumes: locate elements through ordered selector fallbacks, click,
// wait, type, evaluate page scripts, and observe JavaScript dialogs.
package browser

import "time"

// Strategy is one way to locate an element. Method is "css" or "xpath".
type Strategy struct {
	Method string `yaml:"method"`
	Query  string `yaml:"query"`
}

// Selector is an ordered list of strategies tried in sequence. Callers never
// learn which strategy matched, only that elements were found or not.
type Selector []Strategy

// Css builds a single-strategy CSS selector.
func Css(query string) Selector {
	return Selector{{Method: "css", Query: query}}
}

// Key identifies a special (non-text) key sent to an element.
type Key int

const (
	KeyHome Key = iota
	KeyDelete
)

// Element is an opaque handle to a located DOM node.
type Element interface{}

// Driver is the UI automation capability. Implementations must make every
// method safe to call sequentially from a single goroutine.
type Driver interface {
	// FindElements resolves the selector's strategies in order and returns
	// the matches of the first strategy that finds anything. An empty slice
	// with a nil error means "not found".
	FindElements(sel Selector) ([]Element, error)
	// FindElementsIn is FindElements scoped to a parent element's subtree.
	FindElementsIn(parent Element, sel Selector) ([]Element, error)
	Click(el Element) error
	WaitVisible(el Element, timeout time.Duration) error
	Text(el Element) (string, error)
	Attribute(el Element, name string) (string, error)
	SendText(el Element, text string) error
	SendKey(el Element, key Key) error
	// Eval runs js (a function expression) in the page context and decodes
	// its JSON result into out. A nil out discards the result.
	Eval(js string, out interface{}, args ...interface{}) error
	ScrollIntoView(el Element) error
	Sleep(d time.Duration)
	// AcceptAlert waits up to timeout for a JavaScript dialog, accepts it,
	// and returns its message. ok is false when no dialog appeared.
	AcceptAlert(timeout time.Duration) (text string, ok bool)
}

// FirstElement resolves a selector and returns the first match, or nil when
// nothing was found.
func FirstElement(d Driver, sel Selector) (Element, error) {
	els, err := d.FindElements(sel)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, nil
	}
	return els[0], nil
}
