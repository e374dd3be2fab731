package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/wp-loadmore/internal/config"
	"github.com/Sternrassler/wp-loadmore/internal/testutil"
	"github.com/Sternrassler/wp-loadmore/pkg/client"
	"github.com/Sternrassler/wp-loadmore/pkg/widget"
)

func newTestServer(t *testing.T, mock *testutil.MockWP, query ...string) *server {
	t.Helper()
	cfg := config.Config{Widget: config.WidgetConfig{BaseURL: mock.PostsURL(), Query: query}}
	cfg.FillDefaults()

	wcfg, err := cfg.Widget.Widget()
	if err != nil {
		t.Fatalf("Widget() error: %v", err)
	}
	c, err := client.New(client.DefaultConfig("loadmore-test/1.0"))
	if err != nil {
		t.Fatalf("client.New() error: %v", err)
	}
	return newServer(wcfg, c, 5*time.Second)
}

func get(t *testing.T, h http.Handler, target string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestFragmentEndpoint(t *testing.T) {
	mock := testutil.NewMockWP(5)
	defer mock.Close()
	s := newTestServer(t, mock, "per_page=2")

	t.Run("first page", func(t *testing.T) {
		resp, body := get(t, s.router, "/fragment")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
		}
		if resp.Header.Get(client.HeaderTotal) != "5" || resp.Header.Get(HeaderNextOffset) != "2" {
			t.Errorf("headers = %v", resp.Header)
		}
		if strings.Count(body, "<article") != 2 || !strings.Contains(body, `id="post-1"`) {
			t.Errorf("body = %s", body)
		}
		if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
			t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
		}
	})

	t.Run("explicit window", func(t *testing.T) {
		resp, body := get(t, s.router, "/fragment?offset=4&per_page=3")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if resp.Header.Get(HeaderNextOffset) != "7" {
			t.Errorf("X-Next-Offset = %q, want 7", resp.Header.Get(HeaderNextOffset))
		}
		if strings.Count(body, "<article") != 1 || !strings.Contains(body, `id="post-5"`) {
			t.Errorf("body = %s", body)
		}
		q := mock.GetLastQuery()
		if q.Get("offset") != "4" || q.Get("per_page") != "3" {
			t.Errorf("upstream query = %v", q)
		}
	})

	t.Run("invalid offset", func(t *testing.T) {
		resp, body := get(t, s.router, "/fragment?offset=abc")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
		var msg map[string]string
		if err := json.Unmarshal([]byte(body), &msg); err != nil || !strings.Contains(msg["message"], "offset") {
			t.Errorf("body = %s", body)
		}
	})

	t.Run("zero page size", func(t *testing.T) {
		resp, _ := get(t, s.router, "/fragment?per_page=0")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestFragmentUpstreamErrors(t *testing.T) {
	tests := []struct {
		name       string
		resp       testutil.MockResponse
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "upstream error status",
			resp:       testutil.NewErrorResponse(http.StatusBadRequest, "rest_post_invalid_page_number", "The page number requested is larger than the number of pages available."),
			wantStatus: http.StatusBadRequest,
			wantMsg:    "The page number requested is larger than the number of pages available.",
		},
		{
			name:       "upstream server error",
			resp:       testutil.NewErrorResponse(http.StatusServiceUnavailable, "maintenance", "down for maintenance"),
			wantStatus: http.StatusServiceUnavailable,
			wantMsg:    "down for maintenance",
		},
		{
			name:       "malformed body",
			resp:       testutil.NewObjectResponse(),
			wantStatus: http.StatusBadGateway,
			wantMsg:    "upstream response is not a list of posts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockWP(0)
			defer mock.Close()
			mock.SetResponse(testutil.PostsPath, tt.resp)

			resp, body := get(t, newTestServer(t, mock).router, "/fragment")
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var msg map[string]string
			if err := json.Unmarshal([]byte(body), &msg); err != nil {
				t.Fatalf("body is not JSON: %s", body)
			}
			if msg["message"] != tt.wantMsg {
				t.Errorf("message = %q, want %q", msg["message"], tt.wantMsg)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mock := testutil.NewMockWP(1)
	defer mock.Close()
	s := newTestServer(t, mock)

	// One cycle so the labelled collectors have samples.
	if resp, _ := get(t, s.router, "/fragment"); resp.StatusCode != http.StatusOK {
		t.Fatalf("fragment status = %d", resp.StatusCode)
	}

	resp, body := get(t, s.router, "/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "# HELP") || !strings.Contains(body, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
	for _, name := range []string{"loadmore_cycles_total", "loadmore_records_rendered_total", "wp_requests_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestRunFetch(t *testing.T) {
	mock := testutil.NewMockWP(5)
	defer mock.Close()

	cfg := config.Config{Widget: config.WidgetConfig{BaseURL: mock.PostsURL(), Query: []string{"per_page=2"}}}
	cfg.FillDefaults()

	tests := []struct {
		name         string
		opts         fetchOptions
		wantArticles int
		wantTrigger  bool
	}{
		{"one click", fetchOptions{target: "#posts", clicks: 1}, 2, true},
		{"two clicks", fetchOptions{target: "#posts", clicks: 2}, 4, true},
		{"more clicks than pages", fetchOptions{target: "#posts", clicks: 9}, 5, false},
		{"all", fetchOptions{target: "#posts", all: true}, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := runFetch(context.Background(), cfg, tt.opts, &out); err != nil {
				t.Fatalf("runFetch() error: %v", err)
			}
			html := out.String()
			if n := strings.Count(html, "<article"); n != tt.wantArticles {
				t.Errorf("articles = %d, want %d", n, tt.wantArticles)
			}
			if got := strings.Contains(html, `class="load-more"`); got != tt.wantTrigger {
				t.Errorf("trigger present = %v, want %v", got, tt.wantTrigger)
			}
		})
	}
}

func TestRunFetchPageFile(t *testing.T) {
	mock := testutil.NewMockWP(1)
	defer mock.Close()

	page := filepath.Join(t.TempDir(), "index.html")
	doc := `<html><body><section class="feed"><a class="more" href="#">More</a></section></body></html>`
	if err := os.WriteFile(page, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Config{Widget: config.WidgetConfig{BaseURL: mock.PostsURL(), TriggerClass: "more"}}
	cfg.FillDefaults()

	var out bytes.Buffer
	if err := runFetch(context.Background(), cfg, fetchOptions{page: page, target: ".feed", clicks: 1}, &out); err != nil {
		t.Fatalf("runFetch() error: %v", err)
	}
	if !strings.Contains(out.String(), `<section class="feed"><article class="post" id="post-1">`) {
		t.Errorf("post not inserted into the section: %s", out.String())
	}
}

func TestRunFetchErrors(t *testing.T) {
	mock := testutil.NewMockWP(0)
	defer mock.Close()
	mock.SetResponse(testutil.PostsPath, testutil.NewErrorResponse(http.StatusInternalServerError, "boom", "boom"))

	cfg := config.Config{Widget: config.WidgetConfig{BaseURL: mock.PostsURL()}}
	cfg.FillDefaults()

	var out bytes.Buffer
	var apiErr *client.APIError
	err := runFetch(context.Background(), cfg, fetchOptions{target: "#posts", clicks: 1}, &out)
	if err == nil || !errors.As(err, &apiErr) {
		t.Errorf("runFetch() error = %v, want APIError", err)
	}

	err = runFetch(context.Background(), cfg, fetchOptions{target: "#missing", clicks: 1}, &out)
	if !errors.Is(err, widget.ErrNoContainer) {
		t.Errorf("runFetch() error = %v, want ErrNoContainer", err)
	}
}

func TestRootCommandConfigFile(t *testing.T) {
	mock := testutil.NewMockWP(3)
	defer mock.Close()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	yaml := "app:\n  log_level: disabled\nwidget:\n  base_url: " + mock.PostsURL() + "\n  query:\n    - per_page=1\n    - orderby=date\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(dir, "out.html")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", cfgPath, "fetch", "--clicks", "2", "--out", outPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "<article"); n != 2 {
		t.Errorf("articles = %d, want 2", n)
	}
	if q := mock.GetLastQuery(); q.Get("orderby") != "date" || q.Get("offset") != "1" {
		t.Errorf("upstream query = %v", q)
	}
}

func TestRootCommandEnv(t *testing.T) {
	mock := testutil.NewMockWP(2)
	defer mock.Close()

	t.Setenv("LOADMORE_APP_LOG_LEVEL", "disabled")
	t.Setenv("LOADMORE_WIDGET_BASE_URL", mock.PostsURL())
	t.Setenv("LOADMORE_WIDGET_INFINITE_SCROLL", "true")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"fetch", "--query", "per_page=1"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if n := strings.Count(out.String(), "<article"); n != 2 {
		t.Errorf("articles = %d, want 2", n)
	}
	if mock.GetRequestCount() != 2 {
		t.Errorf("requests = %d, want 2", mock.GetRequestCount())
	}
}
