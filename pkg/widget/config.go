package widget

import (
	"strings"

	"github.com/Sternrassler/wp-loadmore/pkg/query"
	"github.com/Sternrassler/wp-loadmore/pkg/render"
)

// Query parameter names understood by the posts endpoint.
const (
	ParamPerPage = "per_page"
	ParamOffset  = "offset"
	ParamEmbed   = "_embed"
)

// Config holds the widget configuration. Zero fields of an overlay passed
// to New keep the defaults.
type Config struct {
	// BaseURL is the posts endpoint, e.g. https://blog.example.com/wp-json/wp/v2/posts.
	BaseURL string

	// Params are appended to BaseURL in order. per_page is the page size
	// and offset the pagination cursor.
	Params *query.Params

	// TriggerClass locates the trigger inside the container.
	TriggerClass string

	// LoadingClass is present on the trigger while a request is in flight.
	LoadingClass string

	// PostClass is the class of each rendered article.
	PostClass string

	// UserAgent is sent upstream when the widget builds its own client.
	UserAgent string

	// InfiniteScroll is accepted for compatibility. A server-side document
	// has no scroll position; callers wanting every page use LoadAll.
	InfiniteScroll bool

	// Unescaped renders record fields without HTML escaping.
	Unescaped bool

	// DateFormat formats publish dates. RawDates disables formatting and
	// shows the date string as received.
	DateFormat render.DateFormatter
	RawDates   bool

	// Lifecycle callbacks. All optional.
	OnCreate func()
	OnFetch  func()
	OnAppend func()
	OnFail   func()
}

// DefaultConfig returns the widget defaults.
func DefaultConfig() Config {
	return Config{
		Params: query.New(
			query.Param{Key: ParamPerPage, Value: 10},
			query.Param{Key: ParamOffset, Value: 0},
			query.Param{Key: ParamEmbed, Value: true},
		),
		TriggerClass: "load-more",
		LoadingClass: "loading",
		PostClass:    render.DefaultPostClass,
		UserAgent:    "wp-loadmore/1.0",
		DateFormat:   render.LongDate,
	}
}

// Merge returns c with the non-zero fields of overlay applied. Params are
// merged key by key, keeping the order of c.
func (c Config) Merge(overlay Config) Config {
	out := c
	out.Params = c.Params.Merge(overlay.Params)

	if s := strings.TrimSpace(overlay.BaseURL); s != "" {
		out.BaseURL = s
	}
	if overlay.TriggerClass != "" {
		out.TriggerClass = overlay.TriggerClass
	}
	if overlay.LoadingClass != "" {
		out.LoadingClass = overlay.LoadingClass
	}
	if overlay.PostClass != "" {
		out.PostClass = overlay.PostClass
	}
	if overlay.UserAgent != "" {
		out.UserAgent = overlay.UserAgent
	}
	if overlay.DateFormat != nil {
		out.DateFormat = overlay.DateFormat
	}
	out.InfiniteScroll = c.InfiniteScroll || overlay.InfiniteScroll
	out.Unescaped = c.Unescaped || overlay.Unescaped
	out.RawDates = c.RawDates || overlay.RawDates

	if overlay.OnCreate != nil {
		out.OnCreate = overlay.OnCreate
	}
	if overlay.OnFetch != nil {
		out.OnFetch = overlay.OnFetch
	}
	if overlay.OnAppend != nil {
		out.OnAppend = overlay.OnAppend
	}
	if overlay.OnFail != nil {
		out.OnFail = overlay.OnFail
	}
	return out
}

func (c Config) renderOptions() render.Options {
	opts := render.Options{
		PostClass:  c.PostClass,
		DateFormat: c.DateFormat,
		Unescaped:  c.Unescaped,
	}
	if c.RawDates {
		opts.DateFormat = nil
	}
	return opts
}
