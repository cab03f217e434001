// Package view renders HTML documents from a small placeholder syntax.
//
// Supported markup:
//
//	{{path.to.key}}                  interpolation, missing keys render as ""
//	{{#if path.to.key}}...{{/if}}    emitted when the value is truthy
//	{{#each items}}...{{/each}}      repeated per element of a top-level slice
//
// A view is rendered first, then placed into the layout at {{{content}}} and
// the combined document is rendered again with the same data, so layout
// placeholders such as the page title resolve too.
//
// Interpolated values are inserted verbatim. Nothing is HTML-escaped, so
// callers must not pass untrusted markup through views.
//
// Empty slices and maps are falsy in {{#if}}, so a block guarded by a list
// disappears when the list is empty. Values such as a zero count or an empty
// string are falsy too; see Truthy for the full rules.
package view

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/freekieb7/storefront/filesystem"
)

// Data is the mapping views are rendered against.
type Data = map[string]any

const (
	DefaultLayout      = "layouts.html"
	ContentPlaceholder = "{{{content}}}"
	Extension          = ".html"
)

var (
	ifBlock   = regexp.MustCompile(`\{\{#if ([\w.]+)\}\}((?s:.*?))\{\{/if\}\}`)
	eachBlock = regexp.MustCompile(`\{\{#each (\w+)\}\}((?s:.*?))\{\{/each\}\}`)
	variable  = regexp.MustCompile(`\{\{([\w.]+)\}\}`)
)

type Engine struct {
	dir    string
	layout string
	fs     filesystem.Filesystem
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]string
}

type Option func(*Engine)

func WithLayout(name string) Option {
	return func(engine *Engine) {
		engine.layout = name
	}
}

func WithFilesystem(fs filesystem.Filesystem) Option {
	return func(engine *Engine) {
		engine.fs = fs
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(engine *Engine) {
		engine.logger = logger
	}
}

// New creates an engine reading views from dir.
func New(dir string, opts ...Option) *Engine {
	engine := &Engine{
		dir:    dir,
		layout: DefaultLayout,
		fs:     filesystem.NewLocalFileSystem(),
		logger: slog.Default(),
		cache:  make(map[string]string),
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// Render renders the named view inside the layout.
func (engine *Engine) Render(name string, data Data) (string, error) {
	layout, err := engine.load(filepath.Join(engine.dir, engine.layout))
	if err != nil {
		return "", fmt.Errorf("view: rendering %s: %w", name, err)
	}

	source, err := engine.load(filepath.Join(engine.dir, name+Extension))
	if err != nil {
		return "", fmt.Errorf("view: rendering %s: %w", name, err)
	}

	content := Process(source, data)
	document := strings.Replace(layout, ContentPlaceholder, content, 1)

	return Process(document, data), nil
}

// ClearCache drops every cached source; the next render reads from disk.
func (engine *Engine) ClearCache() {
	engine.mu.Lock()
	engine.cache = make(map[string]string)
	engine.mu.Unlock()
}

// Dir returns the views directory.
func (engine *Engine) Dir() string {
	return engine.dir
}

func (engine *Engine) load(path string) (string, error) {
	engine.mu.RLock()
	source, found := engine.cache[path]
	engine.mu.RUnlock()
	if found {
		return source, nil
	}

	content, err := engine.fs.ReadFile(path)
	if err != nil {
		return "", err
	}

	source = string(content)

	engine.mu.Lock()
	engine.cache[path] = source
	engine.mu.Unlock()

	engine.logger.Debug("view source loaded", "path", path, "bytes", len(content))

	return source, nil
}

// Process runs the conditional, loop and interpolation passes over source, in
// that order.
func Process(source string, data Data) string {
	source = replace(ifBlock, source, func(groups []string) string {
		if Truthy(Resolve(groups[1], data)) {
			return groups[2]
		}
		return ""
	})

	source = replace(eachBlock, source, func(groups []string) string {
		items, ok := elements(data[groups[1]])
		if !ok {
			return ""
		}

		var b strings.Builder
		for _, item := range items {
			b.WriteString(replace(variable, groups[2], func(inner []string) string {
				return Format(Resolve(inner[1], item))
			}))
		}
		return b.String()
	})

	return replace(variable, source, func(groups []string) string {
		return Format(Resolve(groups[1], data))
	})
}

// replace is regexp.ReplaceAllStringFunc with access to the capture groups.
func replace(re *regexp.Regexp, src string, fn func(groups []string) string) string {
	matches := re.FindAllStringSubmatchIndex(src, -1)
	if len(matches) == 0 {
		return src
	}

	var b strings.Builder
	last := 0
	for _, loc := range matches {
		b.WriteString(src[last:loc[0]])

		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = src[loc[2*i]:loc[2*i+1]]
			}
		}

		b.WriteString(fn(groups))
		last = loc[1]
	}
	b.WriteString(src[last:])

	return b.String()
}
