// Package templates renders the hub's pages. Layouts are embedded html/template
// files exposed as templ components so handlers serve them with templ.Handler.
package templates

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/a-h/templ"
)

//go:embed html/*.tmpl
var files embed.FS

// Fragments live in partials.tmpl and are shared by every page set.
const (
	layoutFile  = "html/layout.tmpl"
	partialFile = "html/partials.tmpl"
)

// Renderer holds one parsed template set per page.
type Renderer struct {
	pages     map[string]*template.Template
	fragments *template.Template
}

// New parses every embedded page against the shared layout and partials.
func New() (*Renderer, error) {
	entries, err := fs.Glob(files, "html/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("templates: glob: %w", err)
	}

	base, err := template.New("_root").Funcs(funcMap()).ParseFS(files, layoutFile, partialFile)
	if err != nil {
		return nil, fmt.Errorf("templates: parse layout: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, entry := range entries {
		if entry == layoutFile || entry == partialFile {
			continue
		}
		name := strings.TrimSuffix(path.Base(entry), ".tmpl")
		set, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("templates: clone for %s: %w", name, err)
		}
		if _, err := set.ParseFS(files, entry); err != nil {
			return nil, fmt.Errorf("templates: parse %s: %w", name, err)
		}
		r.pages[name] = set
	}

	fragments, err := base.Clone()
	if err != nil {
		return nil, fmt.Errorf("templates: clone fragments: %w", err)
	}
	r.fragments = fragments
	return r, nil
}

// MustNew is New for process start-up.
func MustNew() *Renderer {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

// Page renders the named page inside the base layout.
func (r *Renderer) Page(name string, data any) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		set, ok := r.pages[name]
		if !ok {
			return fmt.Errorf("templates: unknown page %q", name)
		}
		return set.ExecuteTemplate(w, "base", data)
	})
}

// Fragment renders one named template without the layout, for htmx swaps.
func (r *Renderer) Fragment(name string, data any) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if r.fragments.Lookup(name) == nil {
			return fmt.Errorf("templates: unknown fragment %q", name)
		}
		return r.fragments.ExecuteTemplate(w, name, data)
	})
}

// HasPage reports whether name was parsed.
func (r *Renderer) HasPage(name string) bool {
	_, ok := r.pages[name]
	return ok
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"year": func() int { return time.Now().Year() },
		"add":  func(a, b int) int { return a + b },
		"seq": func(n int) []int {
			out := make([]int, n)
			for i := range out {
				out[i] = i + 1
			}
			return out
		},
		"initials": initials,
		"isActive": func(current, target string) bool {
			if target == "/" {
				return current == "/"
			}
			return current == target || strings.HasPrefix(current, target+"/")
		},
		"lower": strings.ToLower,
		"fieldError": func(name string, errs map[string]string) FieldError {
			return FieldError{Name: name, Error: errs[name]}
		},
	}
}

func initials(name string) string {
	var b strings.Builder
	for _, part := range strings.Fields(name) {
		for _, r := range part {
			b.WriteRune(r)
			break
		}
		if b.Len() >= 2 {
			break
		}
	}
	return strings.ToUpper(b.String())
}
