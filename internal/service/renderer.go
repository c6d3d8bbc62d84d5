package service

import (
	"context"
	"io"
	"strings"
	"unicode"

	"github.com/valyala/fasttemplate"

	"signalhub/internal/domain"
)

const (
	placeholderStart = "{"
	placeholderEnd   = "}"
)

// Placeholders lists the distinct {name} markers in content in order of first
// appearance. Braces around anything other than a word are plain text.
func Placeholders(content string) []string {
	var names []string
	seen := make(map[string]bool)

	fasttemplate.ExecuteFuncString(content, placeholderStart, placeholderEnd, func(w io.Writer, tag string) (int, error) {
		if _, name, ok := splitTag(tag); ok && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		return 0, nil
	})
	return names
}

// RenderContent substitutes every placeholder in content with its value from
// vars. All placeholders must be supplied; the error lists every missing name.
// Extra entries in vars are ignored.
func RenderContent(content string, vars map[string]string) (string, error) {
	var missing []string
	for _, name := range Placeholders(content) {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", domain.MissingTemplateVariable(missing)
	}

	return fasttemplate.ExecuteFuncString(content, placeholderStart, placeholderEnd, func(w io.Writer, tag string) (int, error) {
		literal, name, ok := splitTag(tag)
		if !ok {
			return io.WriteString(w, placeholderStart+tag+placeholderEnd)
		}
		return io.WriteString(w, literal+vars[name])
	}), nil
}

// splitTag handles a scanned tag. fasttemplate pairs the first "{" with the
// next "}", so for text like `{"a": "{name}"` the tag is `"a": "{name`; the
// placeholder is what follows the last "{" and the rest is literal text.
func splitTag(tag string) (literal, name string, ok bool) {
	if i := strings.LastIndex(tag, placeholderStart); i >= 0 {
		literal, tag = placeholderStart+tag[:i], tag[i+1:]
	}
	if !isPlaceholderName(tag) {
		return "", "", false
	}
	return literal, tag, true
}

func isPlaceholderName(tag string) bool {
	if tag == "" {
		return false
	}
	for _, r := range tag {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// TemplateRenderer resolves stored templates by identifier.
type TemplateRenderer struct {
	templates domain.TemplateRepository
}

// NewTemplateRenderer creates a TemplateRenderer
func NewTemplateRenderer(templates domain.TemplateRepository) *TemplateRenderer {
	return &TemplateRenderer{templates: templates}
}

// Render loads the active template identified by identifier and renders it.
func (r *TemplateRenderer) Render(ctx context.Context, identifier string, vars map[string]string) (string, error) {
	tmpl, err := r.templates.GetByIdentifier(ctx, identifier)
	if err != nil {
		return "", err
	}
	if !tmpl.IsActive {
		return "", domain.NewError(domain.KindInvalidConfiguration, "template %q is inactive", identifier).
			WithField("identifier")
	}
	return RenderContent(tmpl.Content, vars)
}
