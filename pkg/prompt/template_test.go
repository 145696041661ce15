package prompt

import (
	"os"
	"path/filepath"
	"testing"
	"text/template"

	"github.com/stretchr/testify/require"
)

func TestNewTemplateFromString(t *testing.T) {
	tmpl, err := NewTemplateFromString("probe", "price is {{.Price}}", nil)
	require.NoError(t, err)

	out, err := tmpl.Render(map[string]any{"Price": 42.5})
	require.NoError(t, err)
	require.Equal(t, "price is 42.5", out)
	require.Len(t, tmpl.Digest(), 64)
}

func TestRenderMissingKeyFails(t *testing.T) {
	tmpl, err := NewTemplateFromString("probe", "{{.Missing}}", nil)
	require.NoError(t, err)

	_, err = tmpl.Render(map[string]any{"Other": 1})
	require.Error(t, err)
}

func TestNewTemplateFromFileWithFuncs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("{{upper .Word}}"), 0o644))

	tmpl, err := NewTemplate(path, template.FuncMap{
		"upper": func(s string) string {
			out := make([]rune, 0, len(s))
			for _, r := range s {
				if r >= 'a' && r <= 'z' {
					r -= 32
				}
				out = append(out, r)
			}
			return string(out)
		},
	})
	require.NoError(t, err)

	out, err := tmpl.Render(map[string]any{"Word": "buy"})
	require.NoError(t, err)
	require.Equal(t, "BUY", out)
}

func TestDigestChangesOnReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	tmpl, err := NewTemplate(path, nil)
	require.NoError(t, err)
	first := tmpl.Digest()

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	require.NoError(t, tmpl.Reload())
	require.NotEqual(t, first, tmpl.Digest())
}
