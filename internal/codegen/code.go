package codegen

import (
	"fmt"
	"maps"
	"strings"

	"github.com/roach88/mlcg/internal/ir"
)

// Expr is a rendered fragment of target text.
type Expr struct {
	Text string

	// Atomic fragments need no parentheses when embedded in a larger
	// expression: names, literals, calls and indexing.
	Atomic bool
}

// Atom creates an atomic fragment.
func Atom(text string) Expr {
	return Expr{Text: text, Atomic: true}
}

// Compound creates a fragment that must be parenthesized when embedded.
func Compound(text string) Expr {
	return Expr{Text: text}
}

// Wrapped returns the text, parenthesized unless atomic.
func (e Expr) Wrapped() string {
	if e.Atomic {
		return e.Text
	}
	return "(" + e.Text + ")"
}

func (e Expr) String() string {
	return e.Text
}

// HeaderSet is an ordered, deduplicated set of required external
// declarations (C headers, VHDL packages).
type HeaderSet struct {
	order []string
	seen  map[string]bool
}

// NewHeaderSet creates an empty header set.
func NewHeaderSet() *HeaderSet {
	return &HeaderSet{seen: make(map[string]bool)}
}

// Add appends headers not already present, preserving first-added order.
func (h *HeaderSet) Add(headers ...string) {
	for _, hdr := range headers {
		if hdr == "" || h.seen[hdr] {
			continue
		}
		h.seen[hdr] = true
		h.order = append(h.order, hdr)
	}
}

// List returns the headers in first-added order.
func (h *HeaderSet) List() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// Len returns the number of distinct headers.
func (h *HeaderSet) Len() int {
	return len(h.order)
}

// truncate drops every header added after the first n.
func (h *HeaderSet) truncate(n int) {
	for _, hdr := range h.order[n:] {
		delete(h.seen, hdr)
	}
	h.order = h.order[:n]
}

// RenderContext is the side channel of one render call.
type RenderContext struct {
	// Language is the output language being rendered.
	Language Language

	// Headers accumulates the external declarations operators require.
	Headers *HeaderSet

	// Result is the caller-provided output binding, consumed by Result()
	// operands. Nil when the caller provides none.
	Result *Expr
}

// NewRenderContext creates a render context writing headers into headers.
func NewRenderContext(lang Language, headers *HeaderSet) *RenderContext {
	if headers == nil {
		headers = NewHeaderSet()
	}
	return &RenderContext{Language: lang, Headers: headers}
}

// WithResult returns a copy of ctx carrying the given output binding.
func (ctx *RenderContext) WithResult(result Expr) *RenderContext {
	cp := *ctx
	cp.Result = &result
	return &cp
}

// CodeObject is the caller-owned output buffer of one generation unit:
// required headers, declarations and statements, in emission order.
type CodeObject struct {
	language Language
	headers  *HeaderSet
	decls    []string
	stmts    []string
	names    map[string]bool
	next     int
}

// NewCodeObject creates an empty output buffer for lang.
func NewCodeObject(lang Language) *CodeObject {
	return &CodeObject{
		language: lang,
		headers:  NewHeaderSet(),
		names:    make(map[string]bool),
	}
}

// Language returns the output language.
func (c *CodeObject) Language() Language {
	return c.language
}

// Headers returns the header set operators render into.
func (c *CodeObject) Headers() *HeaderSet {
	return c.headers
}

// Reserve marks name as taken so FreshName never returns it.
func (c *CodeObject) Reserve(name string) {
	c.names[name] = true
}

// FreshName returns an unused temporary name with the given prefix.
func (c *CodeObject) FreshName(prefix string) string {
	for {
		name := fmt.Sprintf("%s%d", prefix, c.next)
		c.next++
		if !c.names[name] {
			c.names[name] = true
			return name
		}
	}
}

// codeMark is a restorable position in a CodeObject.
type codeMark struct {
	headers int
	decls   int
	stmts   int
	names   map[string]bool
	next    int
}

func (c *CodeObject) mark() codeMark {
	return codeMark{
		headers: c.headers.Len(),
		decls:   len(c.decls),
		stmts:   len(c.stmts),
		names:   maps.Clone(c.names),
		next:    c.next,
	}
}

// rollback discards everything emitted since m was taken.
func (c *CodeObject) rollback(m codeMark) {
	c.headers.truncate(m.headers)
	c.decls = c.decls[:m.decls]
	c.stmts = c.stmts[:m.stmts]
	c.names = m.names
	c.next = m.next
}

// Declare appends a raw declaration.
func (c *CodeObject) Declare(decl string) {
	c.decls = append(c.decls, decl)
}

// Statement appends a raw statement.
func (c *CodeObject) Statement(stmt string) {
	c.stmts = append(c.stmts, stmt)
}

// Bind emits the language-specific definition of name as value.
func (c *CodeObject) Bind(name string, f ir.Format, value Expr) error {
	c.Reserve(name)
	switch c.language {
	case LanguageC:
		typ, err := TypeName(LanguageC, f)
		if err != nil {
			return err
		}
		c.Statement(fmt.Sprintf("%s %s = %s;", typ, name, value.Text))
	case LanguageGappa:
		c.Statement(fmt.Sprintf("%s = %s;", name, value.Text))
	case LanguageVHDL:
		typ, err := TypeName(LanguageVHDL, f)
		if err != nil {
			return err
		}
		c.Declare(fmt.Sprintf("signal %s : %s;", name, typ))
		c.Statement(fmt.Sprintf("%s <= %s;", name, value.Text))
	default:
		return fmt.Errorf("cannot bind %s in language %s", name, c.language)
	}
	return nil
}

// String assembles the unit: headers, declarations and statements, each
// section separated by a blank line.
func (c *CodeObject) String() string {
	var sections []string
	if hdr := c.renderHeaders(); hdr != "" {
		sections = append(sections, hdr)
	}
	if len(c.decls) > 0 {
		sections = append(sections, strings.Join(c.decls, "\n"))
	}
	if len(c.stmts) > 0 {
		sections = append(sections, strings.Join(c.stmts, "\n"))
	}
	if len(sections) == 0 {
		return ""
	}
	return strings.Join(sections, "\n\n") + "\n"
}

func (c *CodeObject) renderHeaders() string {
	headers := c.headers.List()
	if len(headers) == 0 {
		return ""
	}
	var lines []string
	switch c.language {
	case LanguageC:
		for _, h := range headers {
			lines = append(lines, fmt.Sprintf("#include <%s>", h))
		}
	case LanguageVHDL:
		lines = append(lines, "library ieee;")
		for _, h := range headers {
			lines = append(lines, fmt.Sprintf("use %s;", h))
		}
	default:
		return ""
	}
	return strings.Join(lines, "\n")
}
