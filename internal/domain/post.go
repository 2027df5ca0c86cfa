package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Category is read-only reference data attached to a post
type Category struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// Author references the user who wrote a post. The API may send it as a
// bare username, a numeric id, or an object.
type Author struct {
	ID       int    `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
}

func (a *Author) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Author{}
		return nil
	}

	switch data[0] {
	case '"':
		var username string
		if err := json.Unmarshal(data, &username); err != nil {
			return err
		}
		*a = Author{Username: username}
		return nil
	case '{':
		type plain Author
		var p plain
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*a = Author(p)
		return nil
	default:
		id, err := strconv.Atoi(string(data))
		if err != nil {
			return fmt.Errorf("invalid author reference %s: %w", data, err)
		}
		*a = Author{ID: id}
		return nil
	}
}

// Post is a blog post. Slug is the external key used in API paths.
type Post struct {
	ID          int       `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Image       *string   `json:"image,omitempty"`
	Category    Category  `json:"category"`
	User        Author    `json:"user"`
	CreatedAt   time.Time `json:"created_at"`
	Views       int       `json:"views"`
}

// PostList is the paginated envelope returned by the post list endpoint
type PostList struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []Post  `json:"results"`
}
