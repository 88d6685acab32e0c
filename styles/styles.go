// Package styles compiles SCSS stylesheets to compressed CSS.
package styles

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/godartsass/v2"
)

// ErrUnavailable is returned when no Sass compiler binary can be started.
var ErrUnavailable = errors.New("styles: sass compiler unavailable")

// Compiler turns the stylesheet at path into CSS. Implementations compile from
// disk on every call.
type Compiler interface {
	Compile(path string) (string, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(path string) (string, error)

func (f CompilerFunc) Compile(path string) (string, error) { return f(path) }

// DartSass compiles through the Dart Sass embedded protocol. The compiler
// process is started on first use and shared by later calls.
type DartSass struct {
	// Binary is the Dart Sass executable; empty means "sass" on PATH.
	Binary  string
	Timeout time.Duration

	mu         sync.Mutex
	transpiler *godartsass.Transpiler
}

// NewDartSass returns a DartSass compiler using binary.
func NewDartSass(binary string) *DartSass {
	return &DartSass{Binary: binary, Timeout: 30 * time.Second}
}

func (d *DartSass) start() (*godartsass.Transpiler, error) {
	if d.transpiler != nil {
		return d.transpiler, nil
	}
	t, err := godartsass.Start(godartsass.Options{
		DartSassEmbeddedFilename: d.Binary,
		Timeout:                  d.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	d.transpiler = t
	return t, nil
}

// Compile reads the SCSS file at path and returns compressed CSS. Imports are
// resolved relative to the file's directory.
func (d *DartSass) Compile(path string) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("styles: read %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("styles: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.start()
	if err != nil {
		return "", err
	}
	res, err := t.Execute(godartsass.Args{
		Source:       string(src),
		URL:          "file://" + filepath.ToSlash(abs),
		OutputStyle:  godartsass.OutputStyleCompressed,
		SourceSyntax: sourceSyntax(path),
		IncludePaths: []string{filepath.Dir(abs)},
	})
	if err != nil {
		return "", fmt.Errorf("styles: compile %s: %w", path, err)
	}
	return res.CSS, nil
}

// Close stops the compiler process if it was started.
func (d *DartSass) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.transpiler == nil {
		return nil
	}
	err := d.transpiler.Close()
	d.transpiler = nil
	return err
}

func sourceSyntax(path string) godartsass.SourceSyntax {
	switch filepath.Ext(path) {
	case ".sass":
		return godartsass.SourceSyntaxSASS
	case ".css":
		return godartsass.SourceSyntaxCSS
	}
	return godartsass.SourceSyntaxSCSS
}
