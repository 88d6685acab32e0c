package styles

import (
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bep/godartsass/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileMissingFile(t *testing.T) {
	d := NewDartSass("")
	defer d.Close()

	_, err := d.Compile(filepath.Join(t.TempDir(), "main.scss"))
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestCompilerFunc(t *testing.T) {
	var c Compiler = CompilerFunc(func(path string) (string, error) {
		return "a{}/*" + filepath.Base(path) + "*/", nil
	})
	css, err := c.Compile("scss/main.scss")
	require.NoError(t, err)
	assert.Equal(t, "a{}/*main.scss*/", css)
}

func TestSourceSyntax(t *testing.T) {
	assert.Equal(t, godartsass.SourceSyntaxSCSS, sourceSyntax("main.scss"))
	assert.Equal(t, godartsass.SourceSyntaxSASS, sourceSyntax("main.sass"))
	assert.Equal(t, godartsass.SourceSyntaxCSS, sourceSyntax("main.css"))
}

func TestCloseWithoutStart(t *testing.T) {
	require.NoError(t, NewDartSass("").Close())
}

func dartSassBinary(t *testing.T) string {
	t.Helper()
	p, err := exec.LookPath("dart-sass")
	if err != nil {
		t.Skip("dart-sass not installed")
	}
	return p
}

func TestCompileCompressed(t *testing.T) {
	bin := dartSassBinary(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_vars.scss"), []byte("$accent: #ff0000;\n"), 0o644))
	main := filepath.Join(dir, "main.scss")
	require.NoError(t, os.WriteFile(main, []byte("@use 'vars';\nbody {\n  a { color: vars.$accent; }\n}\n"), 0o644))

	d := NewDartSass(bin)
	defer d.Close()

	css, err := d.Compile(main)
	require.NoError(t, err)
	assert.Equal(t, "body a{color:red}", strings.TrimSpace(css))
}

func TestCompileSyntaxError(t *testing.T) {
	bin := dartSassBinary(t)
	main := filepath.Join(t.TempDir(), "main.scss")
	require.NoError(t, os.WriteFile(main, []byte("body { color: ; "), 0o644))

	d := NewDartSass(bin)
	defer d.Close()

	_, err := d.Compile(main)
	require.Error(t, err)
}
