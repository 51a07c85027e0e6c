package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ExampleModule is a compiled module with one exported material M whose
// parameter f is enabled by c, and an unexported helper material.
const ExampleModule = `
module_name = "::example"

material "M" {
  exported  = true
  thumbnail = "M.png"
  annotation "::anno::description" { description = "demo" }

  parameter "c" {
    type    = color
    default = [1, 1, 1]
    annotation "::anno::display_name" { name = "Tint" }
  }
  parameter "f" {
    type      = float
    enable_if = c != [0, 0, 0]
  }

  temporary "t0" { value = df::diffuse_reflection_bsdf(c, f) }
  body = material(temporary.t0)
}

material "Hidden" {
  parameter "roughness" {
    type    = float
    default = 0.5
  }
  body = material(df::specular_bsdf(roughness))
}
`

// WriteFiles writes files, keyed by slash-separated relative path, below a
// fresh temporary directory and returns that directory.
func WriteFiles(t testing.TB, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

// WriteModule writes src as a compiled module file into a temporary
// directory and returns its path.
func WriteModule(t testing.TB, name, src string) string {
	t.Helper()
	root := WriteFiles(t, map[string]string{name: src})
	return filepath.Join(root, name)
}

// Rewrite replaces the content of an existing file, as a module edit
// between two loads does.
func Rewrite(t testing.TB, path, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
}
