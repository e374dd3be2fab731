// Package config holds the file/env configuration of the loadmore command.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/wp-loadmore/pkg/client"
	"github.com/Sternrassler/wp-loadmore/pkg/pagination"
	"github.com/Sternrassler/wp-loadmore/pkg/query"
	"github.com/Sternrassler/wp-loadmore/pkg/widget"
)

// AppConfig holds application-level settings.
type AppConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`
}

// WidgetConfig mirrors widget.Config in a form viper can decode.
type WidgetConfig struct {
	BaseURL        string   `mapstructure:"base_url"`
	Query          []string `mapstructure:"query"` // "key=value" or bare "key"
	TriggerClass   string   `mapstructure:"trigger_class"`
	LoadingClass   string   `mapstructure:"loading_class"`
	PostClass      string   `mapstructure:"post_class"`
	UserAgent      string   `mapstructure:"user_agent"`
	InfiniteScroll bool     `mapstructure:"infinite_scroll"`
	Unescaped      bool     `mapstructure:"unescaped"`
	RawDates       bool     `mapstructure:"raw_dates"`
	Timeout        string   `mapstructure:"timeout"`   // duration string, e.g. "15s"
	MaxPages       int      `mapstructure:"max_pages"` // bound for loading everything
}

// ServerConfig controls the fragment server.
type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	RequestTimeout string `mapstructure:"request_timeout"`
}

// Config is the top-level configuration structure.
type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Widget WidgetConfig `mapstructure:"widget"`
	Server ServerConfig `mapstructure:"server"`
}

// FillDefaults applies default values if not provided.
func (c *Config) FillDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Widget.TriggerClass == "" {
		c.Widget.TriggerClass = "load-more"
	}
	if c.Widget.LoadingClass == "" {
		c.Widget.LoadingClass = "loading"
	}
	if c.Widget.PostClass == "" {
		c.Widget.PostClass = "post"
	}
	if c.Widget.UserAgent == "" {
		c.Widget.UserAgent = "wp-loadmore/1.0"
	}
	if c.Widget.Timeout == "" {
		c.Widget.Timeout = "15s"
	}
	if c.Widget.MaxPages == 0 {
		c.Widget.MaxPages = 1000
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RequestTimeout == "" {
		c.Server.RequestTimeout = "30s"
	}
}

// Keys lists every configuration key so env overrides work without a file.
func Keys() []string {
	return []string{
		"app.log_level",
		"app.log_pretty",
		"widget.base_url",
		"widget.query",
		"widget.trigger_class",
		"widget.loading_class",
		"widget.post_class",
		"widget.user_agent",
		"widget.infinite_scroll",
		"widget.unescaped",
		"widget.raw_dates",
		"widget.timeout",
		"widget.max_pages",
		"server.addr",
		"server.request_timeout",
	}
}

// Params parses the configured query entries.
func (w WidgetConfig) Params() (*query.Params, error) {
	p, err := query.ParseList(w.Query)
	if err != nil {
		return nil, fmt.Errorf("widget.query: %w", err)
	}
	return p, nil
}

// Widget builds the widget configuration. Query entries are merged onto the
// widget defaults, so per_page=5 replaces only the page size.
func (w WidgetConfig) Widget() (widget.Config, error) {
	params, err := w.Params()
	if err != nil {
		return widget.Config{}, err
	}
	return widget.Config{
		BaseURL:        strings.TrimSpace(w.BaseURL),
		Params:         params,
		TriggerClass:   w.TriggerClass,
		LoadingClass:   w.LoadingClass,
		PostClass:      w.PostClass,
		UserAgent:      w.UserAgent,
		InfiniteScroll: w.InfiniteScroll,
		Unescaped:      w.Unescaped,
		RawDates:       w.RawDates,
	}, nil
}

// Client builds the HTTP client configuration.
func (w WidgetConfig) Client() (client.Config, error) {
	cfg := client.DefaultConfig(w.UserAgent)
	if w.Timeout != "" {
		d, err := time.ParseDuration(w.Timeout)
		if err != nil {
			return client.Config{}, fmt.Errorf("widget.timeout: %w", err)
		}
		cfg.Timeout = d
	}
	return cfg, nil
}

// Drain builds the configuration used when loading every page.
func (w WidgetConfig) Drain() pagination.Config {
	cfg := pagination.DefaultConfig()
	if w.MaxPages > 0 {
		cfg.MaxPages = w.MaxPages
	}
	return cfg
}

// Timeout parses the per-request timeout of the fragment server.
func (s ServerConfig) Timeout() (time.Duration, error) {
	d, err := time.ParseDuration(s.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("server.request_timeout: %w", err)
	}
	return d, nil
}
