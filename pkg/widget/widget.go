// Package widget implements a "load more" controller over a server-side
// HTML document.
//
// A Widget is bound to one container and one trigger element. Each call to
// Load is one activation of the trigger: it requests the next window of
// posts, renders them and inserts the markup right before the trigger. When
// the offset reaches the server-reported total the trigger is removed and
// the widget is done.
//
// Setup problems never panic. New and Mount return an inert widget together
// with the error; every Load on it fails with ErrInert.
package widget

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/wp-loadmore/pkg/client"
	"github.com/Sternrassler/wp-loadmore/pkg/dom"
	"github.com/Sternrassler/wp-loadmore/pkg/logging"
	"github.com/Sternrassler/wp-loadmore/pkg/pagination"
	"github.com/Sternrassler/wp-loadmore/pkg/query"
	"github.com/Sternrassler/wp-loadmore/pkg/render"
)

// Prometheus metrics for load cycles.
var (
	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loadmore_cycles_total",
		Help: "Load cycles by outcome",
	}, []string{"outcome"})

	recordsRendered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loadmore_records_rendered_total",
		Help: "Records rendered into documents",
	})
)

var (
	// ErrNoContainer is returned when the container reference is missing or does not resolve.
	ErrNoContainer = errors.New("widget: container not found")

	// ErrTriggerNotFound is returned when no trigger element is available.
	ErrTriggerNotFound = errors.New("widget: trigger not found")

	// ErrInvalidConfig is returned for unusable configuration values.
	ErrInvalidConfig = errors.New("widget: invalid config")

	// ErrInert is returned by Load on a widget whose setup failed.
	ErrInert = errors.New("widget: inert")

	// ErrBusy is returned by Load while another load is in flight.
	ErrBusy = errors.New("widget: load already in progress")

	// ErrExhausted is returned by Load after the last page was loaded.
	ErrExhausted = errors.New("widget: all posts loaded")
)

// Trigger is the element whose activation starts a load cycle. Rendered
// markup is inserted immediately before it.
type Trigger interface {
	AddClass(class string)
	RemoveClass(class string)
	InsertBefore(fragment string) error
	Remove()
}

// Container holds the trigger.
type Container interface {
	Trigger(class string) (Trigger, error)
}

// Fetcher issues the posts request. *client.Client implements it.
type Fetcher interface {
	FetchPosts(ctx context.Context, rawURL string) (*client.Page, error)
}

type elementContainer struct {
	el *dom.Element
}

func (c elementContainer) Trigger(class string) (Trigger, error) {
	t, err := c.el.FindByClass(class)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// FromElement adapts a document element to a Container.
func FromElement(el *dom.Element) Container {
	if el == nil {
		return nil
	}
	return elementContainer{el: el}
}

// Option customizes a Widget.
type Option func(*options)

type options struct {
	trigger Trigger
	fetcher Fetcher
	drain   pagination.Config
}

// WithTrigger supplies the trigger directly instead of looking it up by class.
func WithTrigger(t Trigger) Option {
	return func(o *options) { o.trigger = t }
}

// WithFetcher replaces the HTTP client.
func WithFetcher(f Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithDrainConfig configures LoadAll.
func WithDrainConfig(cfg pagination.Config) Option {
	return func(o *options) { o.drain = cfg }
}

// Result describes one completed load cycle.
type Result struct {
	URL     string
	Records int
	Offset  int
	Total   int
	Done    bool
}

// State is a snapshot of the widget.
type State struct {
	Offset   int
	PageSize int
	Total    int
	Loading  bool
	Done     bool
	Inert    bool
}

// Widget is a load-more controller. It is safe for concurrent use; at most
// one load runs at a time.
type Widget struct {
	cfg      Config
	trigger  Trigger
	fetcher  Fetcher
	renderer *render.Renderer
	drain    pagination.Config
	logger   zerolog.Logger
	setupErr error

	// slot holds a token while a load is in flight.
	slot chan struct{}

	mu     sync.Mutex
	params *query.Params
	cursor *pagination.Cursor
	done   bool
}

// New binds a widget to container. overlay is merged onto DefaultConfig.
// On failure the returned widget is inert and the error says why.
func New(container Container, overlay Config, opts ...Option) (*Widget, error) {
	cfg := DefaultConfig().Merge(overlay)
	o := options{drain: pagination.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	w := &Widget{
		cfg:    cfg,
		params: cfg.Params,
		drain:  o.drain,
		slot:   make(chan struct{}, 1),
		logger: logging.NewLogger("widget"),
	}

	if container == nil && o.trigger == nil {
		return w.inert(ErrNoContainer)
	}

	if err := validateBaseURL(cfg.BaseURL); err != nil {
		return w.inert(err)
	}

	pageSize, ok := cfg.Params.Int(ParamPerPage)
	if !ok {
		return w.inert(fmt.Errorf("%w: %s must be an integer", ErrInvalidConfig, ParamPerPage))
	}
	offset, ok := cfg.Params.Int(ParamOffset)
	if !ok {
		return w.inert(fmt.Errorf("%w: %s must be an integer", ErrInvalidConfig, ParamOffset))
	}
	cursor, err := pagination.NewCursor(offset, pageSize)
	if err != nil {
		return w.inert(fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	w.cursor = cursor

	w.trigger = o.trigger
	if w.trigger == nil {
		t, err := container.Trigger(cfg.TriggerClass)
		if err != nil {
			return w.inert(fmt.Errorf("%w: class %q: %w", ErrTriggerNotFound, cfg.TriggerClass, err))
		}
		w.trigger = t
	}

	w.fetcher = o.fetcher
	if w.fetcher == nil {
		c, err := client.New(client.DefaultConfig(cfg.UserAgent))
		if err != nil {
			return w.inert(fmt.Errorf("%w: %w", ErrInvalidConfig, err))
		}
		w.fetcher = c
	}

	w.renderer = render.New(cfg.renderOptions())

	if cfg.InfiniteScroll {
		w.logger.Info().Msg("Infinite scroll requested; no scroll events exist server-side, use LoadAll")
	}

	w.logger.Debug().
		Str("base_url", cfg.BaseURL).
		Int("offset", offset).
		Int("page_size", pageSize).
		Msg("Widget ready")

	w.fire("create", cfg.OnCreate)
	return w, nil
}

// Mount resolves target inside doc and binds a widget to it. target may be
// anything dom.Document.Resolve accepts.
func Mount(doc *dom.Document, target any, overlay Config, opts ...Option) (*Widget, error) {
	if doc == nil {
		w, err := New(nil, overlay, opts...)
		return w, err
	}
	el, err := doc.Resolve(target)
	if err != nil {
		w := &Widget{
			cfg:    DefaultConfig().Merge(overlay),
			slot:   make(chan struct{}, 1),
			logger: logging.NewLogger("widget"),
		}
		return w.inert(fmt.Errorf("%w: %w", ErrNoContainer, err))
	}
	return New(FromElement(el), overlay, opts...)
}

func (w *Widget) inert(err error) (*Widget, error) {
	w.setupErr = err
	w.logger.Error().Err(err).Msg("Widget setup failed; widget is inert")
	return w, err
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: base url: %w", ErrInvalidConfig, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base url %q must be absolute", ErrInvalidConfig, raw)
	}
	return nil
}

// Err returns the setup error of an inert widget.
func (w *Widget) Err() error {
	return w.setupErr
}

// URL returns the URL the next load would request.
func (w *Widget) URL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.params.BuildURL(w.cfg.BaseURL)
}

// State returns a snapshot of the widget.
func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := State{
		Loading: len(w.slot) > 0,
		Done:    w.done,
		Inert:   w.setupErr != nil,
	}
	if w.cursor != nil {
		s.Offset = w.cursor.Offset
		s.PageSize = w.cursor.PageSize
		s.Total = w.cursor.Total
	}
	return s
}

// Load runs one fetch cycle: build the URL, mark the trigger as loading,
// request the next page, render it and insert it before the trigger.
// Calling Load while another load is in flight returns ErrBusy without a
// request.
func (w *Widget) Load(ctx context.Context) (Result, error) {
	if w.setupErr != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInert, w.setupErr)
	}

	select {
	case w.slot <- struct{}{}:
	default:
		cyclesTotal.WithLabelValues("busy").Inc()
		w.logger.Warn().Msg("Load ignored; a request is already in flight")
		return Result{}, ErrBusy
	}
	defer func() { <-w.slot }()

	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		return Result{}, ErrExhausted
	}
	reqURL := w.params.BuildURL(w.cfg.BaseURL)
	w.mu.Unlock()

	logger := w.logger.With().Str("url", reqURL).Logger()
	logger.Debug().Msg("Loading posts")

	w.trigger.AddClass(w.cfg.LoadingClass)
	w.fire("fetch", w.cfg.OnFetch)

	page, err := w.fetcher.FetchPosts(ctx, reqURL)
	w.trigger.RemoveClass(w.cfg.LoadingClass)
	if err != nil {
		return Result{URL: reqURL}, w.fail(logger, err)
	}

	fragment, err := w.renderer.RenderAll(page.Posts)
	if err != nil {
		cyclesTotal.WithLabelValues("render_error").Inc()
		logger.Error().Err(err).Msg("Rendering posts failed")
		return Result{URL: reqURL}, fmt.Errorf("render posts: %w", err)
	}

	w.fire("append", w.cfg.OnAppend)
	if err := w.trigger.InsertBefore(fragment); err != nil {
		cyclesTotal.WithLabelValues("insert_error").Inc()
		logger.Error().Err(err).Msg("Inserting posts failed")
		return Result{URL: reqURL}, fmt.Errorf("insert posts: %w", err)
	}

	w.mu.Lock()
	offset := w.cursor.Advance()
	w.params.Set(ParamOffset, offset)
	w.cursor.Observe(page.Total)
	done := w.cursor.Exhausted()
	w.done = done
	total := w.cursor.Total
	w.mu.Unlock()

	if done {
		w.trigger.Remove()
	}

	cyclesTotal.WithLabelValues("success").Inc()
	recordsRendered.Add(float64(len(page.Posts)))
	logger.Info().
		Int("records", len(page.Posts)).
		Int("offset", offset).
		Int("total", total).
		Bool("done", done).
		Msg("Posts loaded")

	return Result{
		URL:     reqURL,
		Records: len(page.Posts),
		Offset:  offset,
		Total:   total,
		Done:    done,
	}, nil
}

// fail reports a failed cycle. HTTP and network failures run OnFail; a
// malformed success body is only reported.
func (w *Widget) fail(logger zerolog.Logger, err error) error {
	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr):
		cyclesTotal.WithLabelValues("http_error").Inc()
		logger.Error().
			Int("status", apiErr.StatusCode).
			Str("error_class", string(apiErr.ErrorClass)).
			Msg(apiErr.Message)
		w.fire("fail", w.cfg.OnFail)
	case errors.Is(err, client.ErrMalformedResponse):
		cyclesTotal.WithLabelValues("malformed").Inc()
		logger.Error().Err(err).Msg("Response is not a list of posts")
	default:
		cyclesTotal.WithLabelValues("error").Inc()
		logger.Error().Err(err).Msg("Load failed")
		w.fire("fail", w.cfg.OnFail)
	}
	return err
}

// fire runs a callback. A panicking callback is logged and does not
// interrupt the cycle.
func (w *Widget) fire(name string, fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().
				Str("callback", name).
				Interface("panic", r).
				Msg("Callback panicked")
		}
	}()
	fn()
}

// LoadAll loads pages until the widget is done. It stands in for infinite
// scrolling, which has no meaning for a server-side document. It returns
// the number of pages loaded by this call.
func (w *Widget) LoadAll(ctx context.Context) (int, error) {
	if w.setupErr != nil {
		return 0, fmt.Errorf("%w: %w", ErrInert, w.setupErr)
	}
	if w.State().Done {
		return 0, nil
	}
	return pagination.Drain(ctx, w.drain, func(ctx context.Context) (pagination.Progress, error) {
		res, err := w.Load(ctx)
		if err != nil {
			return pagination.Progress{}, err
		}
		return pagination.Progress{Offset: res.Offset, Total: res.Total, Done: res.Done}, nil
	})
}
