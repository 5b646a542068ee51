package dom

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/eugenenazirov/envfriend/internal/diag"
	"github.com/eugenenazirov/envfriend/internal/urltemplate"
)

// AttrResolver turns a templated attribute value into its final form.
type AttrResolver func(ctx context.Context, template string) (string, error)

// Options carries the context an injection runs with.
type Options struct {
	Project string `json:"project"`
	Host    string `json:"host,omitempty"`
	Inline  bool   `json:"inline,omitempty"`

	Resolve AttrResolver `json:"-"`
}

type appendDetails struct {
	Element Element `json:"element"`
	Options Options `json:"options"`
}

// Injector appends elements to documents and records each append.
type Injector struct {
	diag *diag.Log
}

// NewInjector returns an Injector recording to log. A nil log disables recording.
func NewInjector(log *diag.Log) *Injector {
	return &Injector{diag: log}
}

// AppendEl creates each element in order, resolving templated attributes through
// opts.Resolve, and appends it to the first node matching its target. It stops at
// the first failure; elements appended before it stay in doc.
func (i *Injector) AppendEl(ctx context.Context, doc *html.Node, elements []Element, opts Options) error {
	for idx, el := range elements {
		node, err := i.build(ctx, el, opts)
		if err != nil {
			return fmt.Errorf("element %d: %w", idx, err)
		}

		selector := el.TargetOrDefault()
		sel, err := cascadia.Compile(selector)
		if err != nil {
			return fmt.Errorf("element %d: %w %q: %v", idx, ErrInvalidSelector, selector, err)
		}
		parent := sel.MatchFirst(doc)
		if parent == nil {
			return fmt.Errorf("element %d: %w: %q", idx, ErrTargetNotFound, selector)
		}
		parent.AppendChild(node)

		if i.diag != nil {
			i.diag.Record(diag.Entry{
				Kind:    diag.KindElementAppended,
				Project: opts.Project,
				Message: "element appended",
				Details: appendDetails{Element: el, Options: opts},
			})
		}
	}
	return nil
}

func (i *Injector) build(ctx context.Context, el Element, opts Options) (*html.Node, error) {
	tag := strings.ToLower(strings.TrimSpace(el.Tag))
	if tag == "" {
		return nil, ErrMissingTag
	}

	attrs := make([]html.Attribute, 0, len(el.Attrs))
	for _, a := range el.Attrs {
		value := a.Value
		if opts.Resolve != nil && urltemplate.HasPlaceholder(value) {
			resolved, err := opts.Resolve(ctx, value)
			if err != nil {
				return nil, fmt.Errorf("resolve attribute %s: %w", a.Name, err)
			}
			value = resolved
		}
		attrs = append(attrs, html.Attribute{Key: a.Name, Val: value})
	}

	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}, nil
}

// Parse parses a complete HTML document. Missing head and body elements are
// created by the parser.
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Render writes doc as HTML.
func Render(w io.Writer, doc *html.Node) error {
	if err := html.Render(w, doc); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

// RenderString renders doc into a string.
func RenderString(doc *html.Node) (string, error) {
	var sb strings.Builder
	if err := Render(&sb, doc); err != nil {
		return "", err
	}
	return sb.String(), nil
}
