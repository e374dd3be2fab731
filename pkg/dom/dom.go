// Package dom provides a small mutable HTML document model backed by goquery.
//
// A Document stands in for the browser page: widgets resolve their container
// inside it, toggle classes on the trigger and insert rendered fragments.
package dom

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var (
	// ErrNilTarget is returned when no target reference was supplied.
	ErrNilTarget = errors.New("dom: target is nil")

	// ErrUnsupportedTarget is returned for target types Resolve does not understand.
	ErrUnsupportedTarget = errors.New("dom: unsupported target type")

	// ErrNotFound is returned when a target resolves to no element.
	ErrNotFound = errors.New("dom: element not found")

	// ErrDetached is returned when mutating an element that was removed.
	ErrDetached = errors.New("dom: element is detached")
)

// Document is a parsed HTML document safe for use by multiple goroutines.
type Document struct {
	mu  sync.Mutex
	doc *goquery.Document
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{doc: doc}, nil
}

// ParseString parses an HTML document held in a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// HTML serializes the whole document.
func (d *Document) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Html()
}

// Resolve locates a single element. target may be a CSS selector string, a
// *goquery.Selection, an *html.Node or an *Element. Only the first match is used.
func (d *Document) Resolve(target any) (*Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var sel *goquery.Selection
	switch t := target.(type) {
	case nil:
		return nil, ErrNilTarget
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, ErrNilTarget
		}
		m, err := cascadia.Compile(t)
		if err != nil {
			return nil, fmt.Errorf("%w: selector %q: %v", ErrUnsupportedTarget, t, err)
		}
		sel = d.doc.FindMatcher(m)
	case *goquery.Selection:
		if t == nil {
			return nil, ErrNilTarget
		}
		sel = d.doc.FindSelection(t)
	case *html.Node:
		if t == nil {
			return nil, ErrNilTarget
		}
		sel = d.doc.FindNodes(t)
	case *Element:
		if t == nil {
			return nil, ErrNilTarget
		}
		sel = d.doc.FindSelection(t.sel)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedTarget, target)
	}

	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, target)
	}
	return &Element{doc: d, sel: sel.First()}, nil
}

// Element is a single node in a Document.
type Element struct {
	doc *Document
	sel *goquery.Selection
}

// FindByClass returns the first descendant carrying class.
func (e *Element) FindByClass(class string) (*Element, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	match := e.sel.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.HasClass(class)
	})
	if match.Length() == 0 {
		return nil, fmt.Errorf("%w: class %q", ErrNotFound, class)
	}
	return &Element{doc: e.doc, sel: match.First()}, nil
}

// AddClass adds a class to the element.
func (e *Element) AddClass(class string) {
	e.doc.mu.Lock()
	e.sel.AddClass(class)
	e.doc.mu.Unlock()
}

// RemoveClass removes a class from the element.
func (e *Element) RemoveClass(class string) {
	e.doc.mu.Lock()
	e.sel.RemoveClass(class)
	e.doc.mu.Unlock()
}

// HasClass reports whether the element carries class.
func (e *Element) HasClass(class string) bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.sel.HasClass(class)
}

// InsertBefore parses fragment and inserts it as preceding siblings.
func (e *Element) InsertBefore(fragment string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	if !e.attached() {
		return ErrDetached
	}
	if fragment == "" {
		return nil
	}
	e.sel.BeforeHtml(fragment)
	return nil
}

// Remove detaches the element from the document.
func (e *Element) Remove() {
	e.doc.mu.Lock()
	e.sel.Remove()
	e.doc.mu.Unlock()
}

// Attached reports whether the element is still part of the document.
func (e *Element) Attached() bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.attached()
}

func (e *Element) attached() bool {
	n := e.sel.Get(0)
	return n != nil && n.Parent != nil
}

// OuterHTML serializes the element itself.
func (e *Element) OuterHTML() (string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return goquery.OuterHtml(e.sel)
}

// Node exposes the underlying node.
func (e *Element) Node() *html.Node {
	return e.sel.Get(0)
}
