// Package testutil provides testing utilities for the load-more widget.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// PostsPath is the REST route served by MockWP.
const PostsPath = "/wp-json/wp/v2/posts"

// MockResponse defines a fixed response for a path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockWP is an httptest WordPress stand-in. By default PostsPath serves
// windows of the configured posts selected by the offset and per_page
// query parameters, with X-WP-Total and X-WP-TotalPages headers.
type MockWP struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	posts    []map[string]any
	total    int // reported total; -1 means len(posts), -2 omits the header

	// Tracking
	RequestCount   int
	LastQuery      url.Values
	LastRequestHdr http.Header
}

// NewMockWP creates a mock server holding n generated posts.
func NewMockWP(n int) *MockWP {
	m := &MockWP{
		handlers: make(map[string]http.HandlerFunc),
		posts:    GeneratePosts(n),
		total:    -1,
	}

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.RequestCount++
		m.LastQuery = r.URL.Query()
		m.LastRequestHdr = r.Header.Clone()
		handler, exists := m.handlers[r.URL.Path]
		m.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		if r.URL.Path == PostsPath {
			m.postsHandler(w, r)
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]any{
			"code":    "rest_no_route",
			"message": "No route was found matching the URL and request method.",
			"data":    map[string]int{"status": http.StatusNotFound},
		})
	}))

	return m
}

// URL returns the mock server URL.
func (m *MockWP) URL() string {
	return m.server.URL
}

// PostsURL returns the absolute posts endpoint URL.
func (m *MockWP) PostsURL() string {
	return m.server.URL + PostsPath
}

// Close shuts down the mock server.
func (m *MockWP) Close() {
	m.server.Close()
}

// SetTotal overrides the reported X-WP-Total. Pass -1 to report the real
// count and -2 to omit the header.
func (m *MockWP) SetTotal(total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = total
}

// SetHandler sets a custom handler for a specific path.
func (m *MockWP) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockWP) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockWP) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastQuery returns the query of the most recent request.
func (m *MockWP) GetLastQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery
}

func (m *MockWP) postsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	perPage := atoiDefault(q.Get("per_page"), 10)
	offset := atoiDefault(q.Get("offset"), 0)

	m.mu.RLock()
	all := m.posts
	total := m.total
	m.mu.RUnlock()

	if perPage < 1 || perPage > 100 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code":    "rest_invalid_param",
			"message": "Invalid parameter(s): per_page",
			"data":    map[string]int{"status": http.StatusBadRequest},
		})
		return
	}

	if total == -1 {
		total = len(all)
	}
	if total >= 0 {
		w.Header().Set("X-WP-Total", strconv.Itoa(total))
		w.Header().Set("X-WP-TotalPages", strconv.Itoa((total+perPage-1)/perPage))
	}

	window := []map[string]any{}
	if offset < len(all) {
		end := offset + perPage
		if end > len(all) {
			end = len(all)
		}
		window = all[offset:end]
	}
	writeJSON(w, http.StatusOK, window)
}

// GeneratePosts builds n post records shaped like the REST API with _embed.
// Even ids carry a featured image, odd ids have none.
func GeneratePosts(n int) []map[string]any {
	posts := make([]map[string]any, 0, n)
	for i := 1; i <= n; i++ {
		p := map[string]any{
			"id":      i,
			"date":    fmt.Sprintf("2024-01-%02dT09:00:00", (i-1)%28+1),
			"link":    fmt.Sprintf("https://blog.example.com/post-%d/", i),
			"title":   map[string]any{"rendered": fmt.Sprintf("Post %d", i)},
			"excerpt": map[string]any{"rendered": fmt.Sprintf("<p>Excerpt %d</p>\n", i)},
		}
		embedded := map[string]any{
			"author": []any{map[string]any{"name": "Ann"}},
		}
		if i%2 == 0 {
			embedded["wp:featuredmedia"] = []any{map[string]any{
				"media_details": map[string]any{"sizes": map[string]any{"thumbnail": map[string]any{
					"source_url": fmt.Sprintf("https://blog.example.com/img-%d.jpg", i),
					"width":      150,
					"height":     150,
				}}},
			}}
		}
		p["_embedded"] = embedded
		posts = append(posts, p)
	}
	return posts
}

// NewErrorResponse creates a REST error envelope response.
func NewErrorResponse(status int, code, message string) MockResponse {
	body, _ := json.Marshal(map[string]any{
		"code":    code,
		"message": message,
		"data":    map[string]int{"status": status},
	})
	return MockResponse{
		StatusCode: status,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json; charset=UTF-8"},
	}
}

// NewObjectResponse creates a 200 response whose body is an object, not an array.
func NewObjectResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"id": 1, "title": {"rendered": "not a list"}}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=UTF-8",
			"X-WP-Total":   "1",
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
