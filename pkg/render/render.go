// Package render turns post records into HTML fragments.
//
// By default every interpolated value is escaped and rendered HTML coming
// from the server (title, excerpt) is reduced to its text. Unescaped mode
// writes the server values verbatim, which allows markup injection from
// any record field and is only meant for trusted sources.
package render

import (
	"bytes"
	_ "embed"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/wp-loadmore/pkg/logging"
)

//go:embed post.tmpl
var postTpl string

var (
	escapedTpl = htmltemplate.Must(htmltemplate.New("post").Parse(postTpl))
	rawTpl     = texttemplate.Must(texttemplate.New("post").Parse(postTpl))
)

// DefaultPostClass is the class put on every rendered article.
const DefaultPostClass = "post"

// Options configures a Renderer.
type Options struct {
	// PostClass is the class of the article element. Child blocks derive
	// their classes from it ("post-header", "post-title", ...).
	PostClass string

	// DateFormat formats publish dates. Nil means no locale formatting is
	// available and the raw date string is emitted.
	DateFormat DateFormatter

	// Unescaped writes record fields into markup without escaping.
	Unescaped bool
}

// DefaultOptions returns escaping options with long date formatting.
func DefaultOptions() Options {
	return Options{
		PostClass:  DefaultPostClass,
		DateFormat: LongDate,
	}
}

// Renderer renders posts with a fixed set of options.
type Renderer struct {
	opts   Options
	logger zerolog.Logger
}

type view struct {
	Class       string
	ID          string
	Image       *Image
	Title       string
	Link        string
	Date        string
	DisplayDate string
	Authors     string
	HasExcerpt  bool
	Excerpt     string
}

// New creates a Renderer.
func New(opts Options) *Renderer {
	if strings.TrimSpace(opts.PostClass) == "" {
		opts.PostClass = DefaultPostClass
	}
	r := &Renderer{
		opts:   opts,
		logger: logging.NewLogger("render"),
	}
	if opts.Unescaped {
		r.logger.Warn().
			Str("post_class", opts.PostClass).
			Msg("Rendering without HTML escaping; record fields can inject markup")
	}
	return r
}

// Render renders a single post.
func (r *Renderer) Render(p Post) (string, error) {
	var buf bytes.Buffer
	if err := r.render(&buf, p); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderAll renders posts in order and concatenates the fragments.
func (r *Renderer) RenderAll(posts []Post) (string, error) {
	var buf bytes.Buffer
	for _, p := range posts {
		if err := r.render(&buf, p); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func (r *Renderer) render(buf *bytes.Buffer, p Post) error {
	v := r.view(p)
	if r.opts.Unescaped {
		return rawTpl.Execute(buf, v)
	}
	return escapedTpl.Execute(buf, v)
}

func (r *Renderer) view(p Post) view {
	v := view{
		Class:       r.opts.PostClass,
		ID:          p.ID(),
		Title:       p.Title(),
		Link:        p.Link(),
		Date:        p.Date(),
		DisplayDate: FormatDate(p.Date(), r.opts.DateFormat),
		Authors:     strings.Join(p.Authors(), ", "),
	}
	if img, ok := p.Thumbnail(); ok {
		v.Image = &img
	}
	if excerpt, ok := p.Excerpt(); ok {
		v.HasExcerpt = true
		v.Excerpt = excerpt
	}
	if !r.opts.Unescaped {
		v.Title = plainText(v.Title)
		v.Excerpt = plainText(v.Excerpt)
	}
	return v
}

// plainText reduces an HTML snippet to its text content. Entities are decoded
// here and re-escaped by the template.
func plainText(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}
