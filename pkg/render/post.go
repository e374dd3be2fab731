package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sternrassler/wp-loadmore/pkg/lookup"
)

// Post is one decoded record from the posts endpoint. The schema belongs to
// the server; accessors report absence instead of failing on missing paths.
type Post struct {
	raw map[string]any
}

// Image is a featured image size.
type Image struct {
	URL    string
	Width  int
	Height int
}

// NewPost wraps an already decoded record.
func NewPost(raw map[string]any) Post {
	return Post{raw: raw}
}

// DecodePosts decodes a JSON array of objects. Numbers are kept as json.Number.
func DecodePosts(data []byte) ([]Post, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	if raw == nil {
		return nil, errors.New("decode posts: body is not an array")
	}
	posts := make([]Post, 0, len(raw))
	for _, r := range raw {
		posts = append(posts, NewPost(r))
	}
	return posts, nil
}

// Raw returns the underlying record.
func (p Post) Raw() map[string]any {
	return p.raw
}

// ID returns the record id as text.
func (p Post) ID() string {
	s, _ := lookup.String(p.any(), "id")
	return s
}

// Link returns the permalink.
func (p Post) Link() string {
	s, _ := lookup.String(p.any(), "link")
	return s
}

// Date returns the publish date exactly as the server sent it.
func (p Post) Date() string {
	s, _ := lookup.String(p.any(), "date")
	return s
}

// Title returns title.rendered.
func (p Post) Title() string {
	s, _ := lookup.String(p.any(), "title", "rendered")
	return s
}

// Excerpt returns excerpt.rendered and whether it was present.
func (p Post) Excerpt() (string, bool) {
	return lookup.String(p.any(), "excerpt", "rendered")
}

// Thumbnail returns the thumbnail size of the first embedded featured media.
func (p Post) Thumbnail() (Image, bool) {
	thumb, ok := lookup.Get(p.any(), "_embedded", "wp:featuredmedia", 0, "media_details", "sizes", "thumbnail")
	if !ok {
		return Image{}, false
	}
	src, ok := lookup.String(thumb, "source_url")
	if !ok {
		return Image{}, false
	}
	w, _ := lookup.Int(thumb, "width")
	h, _ := lookup.Int(thumb, "height")
	return Image{URL: src, Width: w, Height: h}, true
}

// Authors returns the names of embedded authors in order.
func (p Post) Authors() []string {
	list, ok := lookup.Slice(p.any(), "_embedded", "author")
	if !ok {
		return nil
	}
	var names []string
	for i := range list {
		if name, ok := lookup.String(list, i, "name"); ok && name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (p Post) any() any {
	if p.raw == nil {
		return nil
	}
	return p.raw
}
