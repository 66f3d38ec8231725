// Package prompt loads named prompt templates and interpolates
// {{NAME}} placeholders. Deliberately stdlib-only: text/template
// errors on unresolved keys, but spec requires unresolved
// placeholders to be left verbatim, so substitution is a hand-rolled
// scan instead (see DESIGN.md).
package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"discord-marketing/pipeline/errkind"
)

// Builder loads and caches named templates from a directory.
type Builder struct {
	dir   string
	mu    sync.RWMutex
	cache map[string]string
}

// New returns a Builder rooted at dir.
func New(dir string) *Builder {
	return &Builder{dir: dir, cache: make(map[string]string)}
}

var placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// Load reads and caches the named template (file "<name>.txt" under
// the builder's directory), returning the cached copy on subsequent
// calls.
func (b *Builder) Load(name string) (string, error) {
	b.mu.RLock()
	if tpl, ok := b.cache[name]; ok {
		b.mu.RUnlock()
		return tpl, nil
	}
	b.mu.RUnlock()

	path := filepath.Join(b.dir, name+".txt")
	contents, err := os.ReadFile(path)
	if err != nil {
		return "", errkind.Wrap(err, errkind.Configuration, "read prompt template "+name)
	}

	b.mu.Lock()
	b.cache[name] = string(contents)
	b.mu.Unlock()
	return string(contents), nil
}

// Render loads the named template and replaces every {{NAME}}
// occurrence with the corresponding value in vars: scalars via
// string conversion, containers (slices, maps, structs) via JSON
// encoding. Placeholders with no entry in vars are left verbatim.
func (b *Builder) Render(name string, vars map[string]any) (string, error) {
	tpl, err := b.Load(name)
	if err != nil {
		return "", err
	}
	return Interpolate(tpl, vars)
}

// Interpolate applies {{NAME}} substitution to an arbitrary template
// string, independent of the cache. Exposed so callers with inline
// templates (tests, CLI ad-hoc prompts) don't need a file on disk.
func Interpolate(tpl string, vars map[string]any) (string, error) {
	var marshalErr error
	result := placeholderPattern.ReplaceAllStringFunc(tpl, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		val, ok := vars[name]
		if !ok {
			return match
		}
		rendered, err := stringify(val)
		if err != nil {
			marshalErr = err
			return match
		}
		return rendered
	})
	if marshalErr != nil {
		return "", errkind.Wrap(marshalErr, errkind.Validation, "render prompt placeholder")
	}
	return result, nil
}

func stringify(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case fmt.Stringer:
		return t.String(), nil
	}
	switch v.(type) {
	case int, int32, int64, float32, float64, bool:
		return fmt.Sprintf("%v", v), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
