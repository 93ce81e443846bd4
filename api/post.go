package api

import "time"

// Post is a published post as served by the posts API.
type Post struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Date        string     `json:"date"`
	URL         string     `json:"url"`
	Status      string     `json:"status,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

type PostList struct {
	Posts  []Post `json:"posts"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

type Error struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
