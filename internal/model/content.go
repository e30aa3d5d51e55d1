package model

import (
	"strings"
	"time"
)

const (
	CollectionBlog     = "blog"
	CollectionProjects = "projects"
)

// Entry is a markdown document from one of the content collections
// (blog posts, portfolio projects).
type Entry struct {
	Collection  string    `json:"collection"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Date        time.Time `json:"date"`
	Author      string    `json:"author,omitempty"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	HeroImage   string    `json:"hero_image,omitempty"`
	URL         string    `json:"url,omitempty"` // external link for projects
	Featured    bool      `json:"featured,omitempty"`
	Draft       bool      `json:"-"`
	ReadTime    int       `json:"read_time"`
	HTMLContent string    `json:"html,omitempty"`
}

func (e *Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
