package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/daghondi/ghondiclaude.tech/internal/markdown"
	"github.com/daghondi/ghondiclaude.tech/internal/model"
	"github.com/daghondi/ghondiclaude.tech/internal/validation"
)

var ErrContentNotFound = errors.New("content not found")

// ContentService reads blog posts and project pages from Markdown files
// with YAML front matter, one directory per collection.
type ContentService struct {
	parser      *markdown.Parser
	contentPath string
}

func NewContentService(contentPath string) *ContentService {
	return &ContentService{
		parser:      markdown.NewParser(),
		contentPath: contentPath,
	}
}

// List returns the published entries of a collection, newest first.
// A non-empty tag filters case-insensitively.
func (s *ContentService) List(collection, tag string) ([]*model.Entry, error) {
	if !validCollection(collection) {
		return nil, ErrContentNotFound
	}

	pattern := filepath.Join(s.contentPath, collection, "*.md")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	entries := []*model.Entry{}
	for _, file := range files {
		slug := strings.TrimSuffix(filepath.Base(file), ".md")
		if validation.ValidateSlug(slug) != nil {
			continue
		}
		entry, err := s.load(collection, slug)
		if err != nil || entry.Draft {
			continue
		}
		if tag != "" && !entry.HasTag(tag) {
			continue
		}
		entry.HTMLContent = ""
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Featured != entries[j].Featured {
			return entries[i].Featured
		}
		return entries[i].Date.After(entries[j].Date)
	})

	return entries, nil
}

// Get returns a single published entry with rendered HTML.
func (s *ContentService) Get(collection, slug string) (*model.Entry, error) {
	if !validCollection(collection) || validation.ValidateSlug(slug) != nil {
		return nil, ErrContentNotFound
	}

	entry, err := s.load(collection, slug)
	if err != nil {
		return nil, err
	}
	if entry.Draft {
		return nil, ErrContentNotFound
	}
	return entry, nil
}

func (s *ContentService) load(collection, slug string) (*model.Entry, error) {
	path := filepath.Join(s.contentPath, collection, slug+".md")
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", collection, slug, err)
	}

	htmlContent, meta, err := s.parser.ParseWithFrontmatter(content)
	if err != nil {
		return nil, err
	}

	entry := &model.Entry{
		Collection:  collection,
		Slug:        slug,
		HTMLContent: string(htmlContent),
	}

	entry.Title, _ = meta["title"].(string)
	entry.Author, _ = meta["author"].(string)
	entry.Description, _ = meta["description"].(string)
	entry.HeroImage, _ = meta["hero_image"].(string)
	entry.URL, _ = meta["url"].(string)
	entry.Featured, _ = meta["featured"].(bool)
	entry.Draft, _ = meta["draft"].(bool)

	switch date := meta["date"].(type) {
	case string:
		parsed, err := time.Parse("2006-01-02", date)
		if err == nil {
			entry.Date = parsed
		}
	case time.Time:
		entry.Date = date
	}

	tags, ok := meta["tags"].([]any)
	if ok {
		for _, tag := range tags {
			tagStr, ok := tag.(string)
			if ok {
				entry.Tags = append(entry.Tags, tagStr)
			}
		}
	}

	entry.ReadTime = calculateReadTime(string(markdown.StripFrontmatter(content)))

	return entry, nil
}

func validCollection(collection string) bool {
	return collection == model.CollectionBlog || collection == model.CollectionProjects
}

func calculateReadTime(content string) int {
	words := strings.Fields(content)
	wordsPerMinute := 200
	readTime := len(words) / wordsPerMinute
	if readTime < 1 {
		readTime = 1
	}
	return readTime
}
