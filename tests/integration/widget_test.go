package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/wp-loadmore/internal/testutil"
	"github.com/Sternrassler/wp-loadmore/pkg/client"
	"github.com/Sternrassler/wp-loadmore/pkg/dom"
	"github.com/Sternrassler/wp-loadmore/pkg/query"
	"github.com/Sternrassler/wp-loadmore/pkg/widget"
)

const (
	fixturePosts   = 5
	fixturePerPage = 2
)

// nginxConf serves pre-rendered windows of the posts listing selected by
// the offset query parameter, with the pagination headers WordPress sends.
var nginxConf = fmt.Sprintf(`server {
    listen 80;
    root /usr/share/nginx/html;

    location = /health {
        return 200 'OK';
    }

    location = /wp-json/wp/v2/posts {
        default_type application/json;
        add_header X-WP-Total %d always;
        add_header X-WP-TotalPages %d always;
        try_files /offset-$arg_offset.json =404;
    }

    location = /wp-json/wp/v2/broken {
        default_type application/json;
        return 200 '{"code":"not_a_list"}';
    }

    location = /wp-json/wp/v2/error {
        default_type application/json;
        return 500 '{"code":"internal_error","message":"database gone"}';
    }
}
`, fixturePosts, (fixturePosts+fixturePerPage-1)/fixturePerPage)

// setupWordPress starts an nginx container serving post fixtures.
func setupWordPress(t *testing.T) (string, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	files := []testcontainers.ContainerFile{{
		Reader:            strings.NewReader(nginxConf),
		ContainerFilePath: "/etc/nginx/conf.d/default.conf",
		FileMode:          0o644,
	}}
	posts := testutil.GeneratePosts(fixturePosts)
	for offset := 0; offset < fixturePosts; offset += fixturePerPage {
		end := min(offset+fixturePerPage, fixturePosts)
		body, err := json.Marshal(posts[offset:end])
		if err != nil {
			t.Fatalf("Failed to encode fixture: %v", err)
		}
		files = append(files, testcontainers.ContainerFile{
			Reader:            bytes.NewReader(body),
			ContainerFilePath: fmt.Sprintf("/usr/share/nginx/html/offset-%d.json", offset),
			FileMode:          0o644,
		})
	}

	req := testcontainers.ContainerRequest{
		Image:        "nginx:1.27-alpine",
		ExposedPorts: []string{"80/tcp"},
		Files:        files,
		WaitingFor:   wait.ForHTTP("/health").WithPort("80/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available: %v", err)
	}

	endpoint, err := container.Endpoint(ctx, "http")
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to get container endpoint: %v", err)
	}

	cleanup := func() {
		container.Terminate(ctx)
	}
	return endpoint, cleanup
}

func mount(t *testing.T, baseURL string, overlay widget.Config) (*dom.Document, *widget.Widget) {
	t.Helper()
	doc, err := dom.ParseString(`<html><body><div id="posts"><button class="load-more">More</button></div></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	c, err := client.New(client.DefaultConfig("wp-loadmore-integration/1.0"))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	overlay.BaseURL = baseURL
	overlay.Params = query.New(query.Param{Key: widget.ParamPerPage, Value: fixturePerPage})

	w, err := widget.Mount(doc, "#posts", overlay, widget.WithFetcher(c))
	if err != nil {
		t.Fatalf("Mount() error: %v", err)
	}
	return doc, w
}

// TestLoadAllAgainstServer walks every page served by the container.
func TestLoadAllAgainstServer(t *testing.T) {
	endpoint, cleanup := setupWordPress(t)
	defer cleanup()

	doc, w := mount(t, endpoint+testutil.PostsPath, widget.Config{})

	res, err := w.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if res.Records != 2 || res.Total != fixturePosts || res.Done {
		t.Errorf("first Result = %+v", res)
	}

	pages, err := w.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll() error: %v", err)
	}
	if pages != 2 {
		t.Errorf("pages = %d, want 2", pages)
	}

	html, err := doc.HTML()
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(html, "<article"); n != fixturePosts {
		t.Errorf("articles = %d, want %d", n, fixturePosts)
	}
	if strings.Contains(html, "load-more") {
		t.Error("trigger should be removed after the last page")
	}
	for i := 1; i <= fixturePosts; i++ {
		if !strings.Contains(html, fmt.Sprintf(`id="post-%d"`, i)) {
			t.Errorf("post %d missing", i)
		}
	}
}

// TestFailuresAgainstServer checks both failure paths against real HTTP.
func TestFailuresAgainstServer(t *testing.T) {
	endpoint, cleanup := setupWordPress(t)
	defer cleanup()

	t.Run("error status", func(t *testing.T) {
		failed := 0
		_, w := mount(t, endpoint+"/wp-json/wp/v2/error", widget.Config{OnFail: func() { failed++ }})

		_, err := w.Load(context.Background())
		var apiErr *client.APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
			t.Fatalf("Load() error = %v, want 500 APIError", err)
		}
		if apiErr.Message != "database gone" {
			t.Errorf("Message = %q", apiErr.Message)
		}
		if failed != 1 {
			t.Errorf("OnFail calls = %d, want 1", failed)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		doc, w := mount(t, endpoint+"/wp-json/wp/v2/broken", widget.Config{})

		if _, err := w.Load(context.Background()); !errors.Is(err, client.ErrMalformedResponse) {
			t.Fatalf("Load() error = %v, want ErrMalformedResponse", err)
		}
		html, _ := doc.HTML()
		if strings.Contains(html, "<article") {
			t.Error("nothing should be inserted for a malformed body")
		}
	})
}
