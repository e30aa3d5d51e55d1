package email

import (
	"embed"
	"fmt"
	"path"
	"strings"

	"github.com/osteele/liquid"

	"github.com/daghondi/ghondiclaude.tech/internal/markdown"
)

const (
	TemplateVerify  = "verify"
	TemplateWelcome = "welcome"
	TemplateContact = "contact"
)

//go:embed templates/*.md
var templatesFS embed.FS

// markdownPunctuation is every character CommonMark allows to be backslash escaped.
const markdownPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// EscapeMarkdown backslash-escapes s so that it renders as literal text.
// Escaping '.' and ':' also keeps GFM autolinking from turning it into a link.
func EscapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(markdownPunctuation, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Templates renders the embedded message templates. Each template is Liquid
// over Markdown with a YAML front matter block that carries the subject.
//
// Caller supplied values go through the "md" filter. The HTML body is
// rendered with it escaping Markdown, the text body with it passing values through.
type Templates struct {
	parser *markdown.Parser
	html   map[string]*liquid.Template
	text   map[string]*liquid.Template
}

func NewTemplates() (*Templates, error) {
	htmlEngine := liquid.NewEngine()
	htmlEngine.RegisterFilter("md", EscapeMarkdown)
	textEngine := liquid.NewEngine()
	textEngine.RegisterFilter("md", func(s string) string { return s })

	files, err := templatesFS.ReadDir("templates")
	if err != nil {
		return nil, err
	}

	t := &Templates{
		parser: markdown.NewParser(),
		html:   make(map[string]*liquid.Template, len(files)),
		text:   make(map[string]*liquid.Template, len(files)),
	}
	for _, f := range files {
		src, err := templatesFS.ReadFile(path.Join("templates", f.Name()))
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(f.Name(), ".md")

		htmlTpl, perr := htmlEngine.ParseString(string(src))
		if perr != nil {
			return nil, fmt.Errorf("parse template %s: %w", f.Name(), perr)
		}
		textTpl, perr := textEngine.ParseString(string(src))
		if perr != nil {
			return nil, fmt.Errorf("parse template %s: %w", f.Name(), perr)
		}
		t.html[name] = htmlTpl
		t.text[name] = textTpl
	}

	return t, nil
}

// Render returns a message with subject, HTML and text filled in. The caller sets To.
func (t *Templates) Render(name string, data map[string]any) (Message, error) {
	htmlTpl, ok := t.html[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown email template: %s", name)
	}

	source, rerr := htmlTpl.Render(liquid.Bindings(data))
	if rerr != nil {
		return Message{}, fmt.Errorf("render template %s: %w", name, rerr)
	}
	text, rerr := t.text[name].Render(liquid.Bindings(data))
	if rerr != nil {
		return Message{}, fmt.Errorf("render template %s: %w", name, rerr)
	}

	html, meta, err := t.parser.ParseWithFrontmatter(source)
	if err != nil {
		return Message{}, fmt.Errorf("render template %s: %w", name, err)
	}

	subject, _ := meta["subject"].(string)
	if subject == "" {
		return Message{}, fmt.Errorf("template %s has no subject", name)
	}

	return Message{
		Subject: subject,
		HTML:    string(html),
		Text:    strings.TrimSpace(string(markdown.StripFrontmatter(text))) + "\n",
		Tag:     name,
	}, nil
}
