// Package prompt renders LLM prompts from text/template sources and tracks
// a digest of the template content so generated records can reference the
// exact prompt revision that produced them.
package prompt

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"text/template"
)

// Template wraps a parsed text/template with optional function map.
type Template struct {
	path  string
	funcs template.FuncMap

	mu   sync.RWMutex
	tmpl *template.Template
	hash string
}

// NewTemplate parses the template at path using the provided functions.
func NewTemplate(path string, funcs template.FuncMap) (*Template, error) {
	if path == "" {
		return nil, fmt.Errorf("prompt template path is empty")
	}
	t := &Template{path: path, funcs: funcs}
	if err := t.reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// NewTemplateFromString parses an in-memory template, used for the embedded
// default when no template file is configured.
func NewTemplateFromString(name, content string, funcs template.FuncMap) (*Template, error) {
	t := &Template{path: name, funcs: funcs}
	if err := t.parse(name, []byte(content)); err != nil {
		return nil, err
	}
	return t, nil
}

// Render executes the template with the provided data.
func (t *Template) Render(data any) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.tmpl == nil {
		return "", fmt.Errorf("prompt template %q not parsed", t.path)
	}

	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute prompt template %q: %w", t.path, err)
	}
	return buf.String(), nil
}

// Reload reparses the underlying template from disk.
func (t *Template) Reload() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reload()
}

// Digest returns the sha256 hash of the template content.
func (t *Template) Digest() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.hash
}

func (t *Template) reload() error {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return fmt.Errorf("read prompt template %q: %w", t.path, err)
	}
	return t.parse(filepath.Base(t.path), data)
}

func (t *Template) parse(name string, data []byte) error {
	tmpl := template.New(name).Option("missingkey=error")
	if len(t.funcs) > 0 {
		tmpl = tmpl.Funcs(t.funcs)
	}
	if _, err := tmpl.Parse(string(data)); err != nil {
		return fmt.Errorf("parse prompt template %q: %w", name, err)
	}
	sum := sha256.Sum256(data)
	t.tmpl = tmpl
	t.hash = hex.EncodeToString(sum[:])
	return nil
}
